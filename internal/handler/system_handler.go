package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/middleware"
	"github.com/stemsi/exstem-proctor/internal/response"
)

const metricsInterval = 7 * time.Second

// SessionCounter reports how many sessions this node is running.
type SessionCounter interface {
	Active() int
}

// SystemHandler streams Go runtime, queue and session metrics via SSE.
type SystemHandler struct {
	rdb       *redis.Client
	sessions  SessionCounter
	startTime time.Time
	log       zerolog.Logger
}

// NewSystemHandler creates a new SystemHandler. rdb may be nil.
func NewSystemHandler(rdb *redis.Client, sessions SessionCounter, log zerolog.Logger) *SystemHandler {
	return &SystemHandler{
		rdb:       rdb,
		sessions:  sessions,
		startTime: time.Now(),
		log:       log.With().Str("component", "system_handler").Logger(),
	}
}

type systemMetrics struct {
	Timestamp int64  `json:"timestamp"`
	Uptime    string `json:"uptime"`

	// Go Application
	Goroutines int    `json:"goroutines"`
	HeapAlloc  uint64 `json:"heap_alloc"`
	HeapSys    uint64 `json:"heap_sys"`
	StackInuse uint64 `json:"stack_inuse"`
	NumGC      uint32 `json:"num_gc"`
	GoVersion  string `json:"go_version"`
	NumCPU     int    `json:"num_cpu"`

	ActiveSessions int `json:"active_sessions"`

	// Worker Queues
	QueueAnswers     int64 `json:"queue_answers"`
	QueueViolations  int64 `json:"queue_violations"`
	QueueSubmissions int64 `json:"queue_submissions"`
}

// SystemMetricsSSE godoc
// GET /api/v1/proctor/system/metrics
func (h *SystemHandler) SystemMetricsSSE(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	reqCtx := c.Request.Context()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	h.log.Info().Str("proctor_id", claims.Subject).Msg("Proctor connected to system metrics SSE")

	ticker := time.NewTicker(metricsInterval)
	defer ticker.Stop()

	// Send immediately on connect, then every tick
	h.writeMetrics(c, reqCtx)

	for {
		select {
		case <-reqCtx.Done():
			h.log.Info().Str("proctor_id", claims.Subject).Msg("Proctor disconnected from system metrics SSE")
			return
		case <-ticker.C:
			h.writeMetrics(c, reqCtx)
		}
	}
}

func (h *SystemHandler) writeMetrics(c *gin.Context, ctx context.Context) {
	data, err := json.Marshal(h.collect(ctx))
	if err != nil {
		return
	}
	writeSSE(c, data)
}

func (h *SystemHandler) collect(ctx context.Context) systemMetrics {
	m := systemMetrics{
		Timestamp: time.Now().Unix(),
		Uptime:    formatDuration(time.Since(h.startTime)),
		GoVersion: runtime.Version(),
		NumCPU:    runtime.NumCPU(),
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	m.Goroutines = runtime.NumGoroutine()
	m.HeapAlloc = ms.HeapAlloc
	m.HeapSys = ms.Sys
	m.StackInuse = ms.StackInuse
	m.NumGC = ms.NumGC

	if h.sessions != nil {
		m.ActiveSessions = h.sessions.Active()
	}

	if h.rdb == nil {
		return m
	}

	// ── Worker Queues (pipelined LLEN) ──
	ctx, cancel := context.WithTimeout(ctx, refreshTimeout)
	defer cancel()
	pipe := h.rdb.Pipeline()
	answersCmd := pipe.LLen(ctx, config.WorkerKey.PersistAnswersQueue)
	violationsCmd := pipe.LLen(ctx, config.WorkerKey.PersistViolationsQueue)
	submissionsCmd := pipe.LLen(ctx, config.WorkerKey.PersistSubmissionsQueue)
	if _, err := pipe.Exec(ctx); err == nil {
		m.QueueAnswers, _ = answersCmd.Result()
		m.QueueViolations, _ = violationsCmd.Result()
		m.QueueSubmissions, _ = submissionsCmd.Result()
	} else {
		h.log.Warn().Err(err).Msg("Failed to read queue depths")
	}

	return m
}

func formatDuration(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}
	return fmt.Sprintf("%dm %ds", minutes, seconds)
}
