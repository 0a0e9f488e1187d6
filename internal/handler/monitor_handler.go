package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/middleware"
	"github.com/stemsi/exstem-proctor/internal/response"
	"github.com/stemsi/exstem-proctor/internal/service"
)

const (
	refreshInterval   = 15 * time.Second
	keepAliveInterval = 30 * time.Second
	refreshTimeout    = 5 * time.Second // prevent slow queries from blocking the SSE loop
)

type MonitorHandler struct {
	rdb            *redis.Client
	testService    *service.TestService
	monitorService *service.MonitorService
	log            zerolog.Logger
}

// NewMonitorHandler creates a new MonitorHandler. rdb may be nil, in which
// case the stream only refreshes on its timer.
func NewMonitorHandler(
	rdb *redis.Client,
	testService *service.TestService,
	monitorService *service.MonitorService,
	log zerolog.Logger,
) *MonitorHandler {
	return &MonitorHandler{
		rdb:            rdb,
		testService:    testService,
		monitorService: monitorService,
		log:            log.With().Str("component", "monitor_handler").Logger(),
	}
}

// GetProgress godoc
// GET /api/v1/proctor/tests/:test_id/progress
func (h *MonitorHandler) GetProgress(c *gin.Context) {
	if middleware.GetClaims(c) == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	progress, err := h.monitorService.GetTestProgress(c.Request.Context(), c.Param("test_id"))
	if err != nil {
		h.log.Error().Err(err).Str("test_id", c.Param("test_id")).Msg("Failed to fetch test progress")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, progress)
}

// StreamProgress godoc
// GET /api/v1/proctor/tests/:test_id/progress/stream
// Server-sent events: a snapshot on connect, then violation and submission
// events as they happen and a fresh snapshot every refreshInterval.
func (h *MonitorHandler) StreamProgress(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	testID := c.Param("test_id")
	if _, err := h.testService.GetTest(c.Request.Context(), testID); err != nil {
		status, code := sessionError(err)
		response.Fail(c, status, code)
		return
	}

	reqCtx := c.Request.Context()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	h.sendSnapshot(c, reqCtx, testID, "snapshot")

	var events <-chan *redis.Message
	if h.rdb != nil {
		pubsub := h.rdb.Subscribe(reqCtx, config.CacheKey.TestMonitorChannel(testID))
		defer pubsub.Close()
		events = pubsub.Channel()
	}

	keepAliveTicker := time.NewTicker(keepAliveInterval)
	defer keepAliveTicker.Stop()

	refreshTicker := time.NewTicker(refreshInterval)
	defer refreshTicker.Stop()

	h.log.Info().Str("test_id", testID).Str("proctor_id", claims.Subject).Msg("Proctor attached to progress stream")

	pingPayload, _ := json.Marshal(map[string]string{"type": "ping"})

	for {
		select {
		case <-reqCtx.Done():
			h.log.Info().Str("test_id", testID).Str("proctor_id", claims.Subject).Msg("Proctor detached from progress stream")
			return

		case msg, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			// Forward raw JSON; the publisher already encoded it.
			writeSSE(c, []byte(msg.Payload))

		case <-refreshTicker.C:
			h.sendSnapshot(c, reqCtx, testID, "refresh")

		case <-keepAliveTicker.C:
			writeSSE(c, pingPayload)
		}
	}
}

func (h *MonitorHandler) sendSnapshot(c *gin.Context, parentCtx context.Context, testID, kind string) {
	ctx, cancel := context.WithTimeout(parentCtx, refreshTimeout)
	defer cancel()

	progress, err := h.monitorService.GetTestProgress(ctx, testID)
	if err != nil {
		h.log.Warn().Err(err).Str("test_id", testID).Msg("Failed to fetch progress for stream")
		return
	}

	c.SSEvent("message", gin.H{"type": kind, "data": progress})
	c.Writer.Flush()
}

func writeSSE(c *gin.Context, payload []byte) {
	c.Writer.Write([]byte("data: "))
	c.Writer.Write(payload)
	c.Writer.Write([]byte("\n\n"))
	c.Writer.Flush()
}
