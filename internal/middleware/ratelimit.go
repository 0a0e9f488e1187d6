package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-proctor/internal/response"
	"golang.org/x/time/rate"
)

const visitorIdle = 3 * time.Minute

// RateLimiter keeps one token bucket per client key.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	now      func() time.Time
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a RateLimiter allowing perSecond events with the
// given burst per key.
func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	rl := &RateLimiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Limit(perSecond),
		burst:    burst,
		now:      time.Now,
	}

	// Cleanup stale visitors every minute.
	go func() {
		for range time.Tick(time.Minute) {
			rl.cleanup()
		}
	}()

	return rl
}

// Allow reports whether key may proceed now.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	v, exists := rl.visitors[key]
	if !exists {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// ClientKey identifies the caller for rate limiting: token type and subject
// when authenticated, the client IP otherwise.
func ClientKey(c *gin.Context) string {
	if claims := GetClaims(c); claims != nil {
		return string(claims.TokenType) + ":" + claims.Subject
	}
	return c.ClientIP()
}

// Middleware returns a Gin middleware that rate-limits by ClientKey.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.Allow(ClientKey(c)) {
			response.AbortFail(c, http.StatusTooManyRequests, response.ErrRateLimitExceeded)
			return
		}
		c.Next()
	}
}

func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.now()
	for key, v := range rl.visitors {
		if now.Sub(v.lastSeen) > visitorIdle {
			delete(rl.visitors, key)
		}
	}
}
