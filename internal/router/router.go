package router

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/handler"
	"github.com/stemsi/exstem-proctor/internal/middleware"
	"github.com/stemsi/exstem-proctor/internal/response"
	"github.com/stemsi/exstem-proctor/internal/service"
)

// paperMaxAge is how long a browser may reuse a fetched paper.
const paperMaxAge = 300

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth    *handler.AuthHandler
	Session *handler.SessionHandler
	Test    *handler.TestHandler
	WS      *handler.WSHandler
	Monitor *handler.MonitorHandler
	System  *handler.SystemHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
	log zerolog.Logger,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Apply brotli middleware globally. Streams are skipped by path as well,
	// for SSE clients that do not send an event-stream Accept header.
	router.Use(middleware.BrotliWithConfig(middleware.BrotliConfig{
		Quality:   middleware.DefaultBrotliConfig.Quality,
		MinLength: middleware.DefaultBrotliConfig.MinLength,
		Skipper: func(c *gin.Context) bool {
			p := c.Request.URL.Path
			return strings.HasSuffix(p, "/stream") || strings.HasSuffix(p, "/system/metrics")
		},
	}))

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	actionLimiter := middleware.NewRateLimiter(cfg.ActionRatePerSecond, cfg.ActionRateBurst)

	// ─── 1. Auth Group ─────────────────────────────────────────────────
	auth := router.Group("/api/v1/auth")
	{
		auth.GET("/candidate/me",
			middleware.RequireCandidateJWT(authService),
			middleware.RejectRevokedTokens(authService, log),
			handlers.Auth.Me,
		)
		auth.POST("/candidate/logout",
			middleware.RequireCandidateJWT(authService),
			middleware.RejectRevokedTokens(authService, log),
			handlers.Auth.CandidateLogout,
		)
		auth.GET("/proctor/me",
			middleware.RequireProctorJWT(authService),
			middleware.RejectRevokedTokens(authService, log),
			handlers.Auth.Me,
		)
	}

	// ─── 2. Candidate Group (JWT + Revocation) ─────────────────────────
	candidateAPI := router.Group("/api/v1/candidate")
	candidateAPI.Use(
		middleware.RequireCandidateJWT(authService),
		middleware.RejectRevokedTokens(authService, log),
	)
	{
		candidateAPI.GET("/tests/:test_id/paper", middleware.PrivateCache(paperMaxAge), handlers.Session.GetPaper)
		candidateAPI.POST("/tests/:test_id/session", middleware.NoStore(), handlers.Session.OpenSession)
		candidateAPI.GET("/tests/:test_id/session", middleware.NoStore(), handlers.Session.GetSession)
		candidateAPI.POST("/tests/:test_id/session/actions",
			middleware.NoStore(),
			actionLimiter.Middleware(),
			handlers.Session.Dispatch,
		)
	}

	// ─── 3. WebSocket Group (Candidate WS Auth) ─────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(
		middleware.RequireCandidateWSAuth(authService),
		middleware.RejectRevokedTokens(authService, log),
	)
	{
		ws.GET("/candidate/tests/:test_id/stream", handlers.WS.SessionStream)
	}

	// ─── 4. Proctor Group (JWT + Test Scopes) ───────────────────────────
	proctorAPI := router.Group("/api/v1/proctor")
	proctorAPI.Use(
		middleware.RequireProctorJWT(authService),
		middleware.RejectRevokedTokens(authService, log),
	)
	{
		proctorAPI.POST("/tokens/revoke", handlers.Auth.RevokeToken)
		proctorAPI.GET("/system/metrics", handlers.System.SystemMetricsSSE)

		tests := proctorAPI.Group("/tests/:test_id")
		tests.Use(middleware.RequireTestScope("test_id"))
		{
			tests.GET("", handlers.Test.Get)
			tests.PUT("", handlers.Test.Upsert)
			tests.GET("/progress", handlers.Monitor.GetProgress)
			tests.GET("/progress/stream", handlers.Monitor.StreamProgress)
		}
	}

	return router
}
