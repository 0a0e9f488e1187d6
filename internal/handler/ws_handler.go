package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/middleware"
	"github.com/stemsi/exstem-proctor/internal/response"
	"github.com/stemsi/exstem-proctor/internal/service"
	"github.com/stemsi/exstem-proctor/internal/session"
	"github.com/stemsi/exstem-proctor/internal/validator"
	ws "github.com/stemsi/exstem-proctor/internal/websocket"
)

const (
	// unloadTimeout bounds the checkpoint save after a client drops.
	unloadTimeout = 3 * time.Second
	outboxSize    = 16
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams a candidate's session over a WebSocket.
type WSHandler struct {
	sessionService *service.SessionService
	limiter        *middleware.RateLimiter
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler. Commands are rate-limited per client
// when limiter is non-nil; pings never are.
func NewWSHandler(sessionService *service.SessionService, limiter *middleware.RateLimiter, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		sessionService: sessionService,
		limiter:        limiter,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// SessionStream godoc
// WS /ws/v1/candidate/tests/:test_id/stream
// Opens the session, sends its state, then relays commands in and updates
// out until the session exits or the client leaves.
func (h *WSHandler) SessionStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	testID := c.Param("test_id")

	// Open before upgrading so failures are still plain HTTP errors.
	runner, err := h.sessionService.Open(c.Request.Context(), testID, claims.Subject)
	if err != nil {
		status, code := sessionError(err)
		if status >= http.StatusInternalServerError {
			h.log.Error().Err(err).Str("test_id", testID).Str("candidate_id", claims.Subject).Msg("Failed to open session for stream")
		}
		response.Fail(c, status, code)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().
		Str("candidate_id", claims.Subject).
		Str("test_id", testID).
		Logger()

	updates, unsubscribe := runner.Subscribe()
	defer unsubscribe()

	view, err := runner.View(c.Request.Context())
	if err != nil {
		ws.WriteClose(conn, "session closed")
		return
	}

	outbox := make(chan any, outboxSize)
	outbox <- ws.StateMessage(view)

	writerDone := make(chan struct{})
	go h.writeLoop(conn, wsLog, updates, outbox, writerDone)

	wsLog.Info().Msg("Candidate connected")
	h.readLoop(c.Request.Context(), conn, wsLog, middleware.ClientKey(c), runner, outbox, writerDone)

	// A dropped connection is the equivalent of the page unloading.
	select {
	case <-runner.Done():
	default:
		ctx, cancel := context.WithTimeout(context.Background(), unloadTimeout)
		if _, _, err := runner.Dispatch(ctx, session.Command{Action: session.ActionUnload}); err != nil {
			wsLog.Debug().Err(err).Msg("Unload on disconnect skipped")
		}
		cancel()
	}

	unsubscribe()
	<-writerDone
	wsLog.Info().Msg("Candidate disconnected")
}

// readLoop decodes client messages until the connection fails or the writer
// has shut the connection down.
func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, log zerolog.Logger, clientKey string, runner *session.Runner, outbox chan<- any, writerDone <-chan struct{}) {
	ws.PrepareRead(conn)
	for {
		var msg ws.ClientMessage
		if err := ws.ReadJSON(conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Msg("Unexpected close")
			} else {
				log.Debug().Msg("Connection closed")
			}
			return
		}

		var reply any
		switch {
		case msg.Action == ws.ActionPing:
			reply = ws.PongResponse{Event: ws.EventPong, Ref: msg.Ref}
		case h.limiter != nil && !h.limiter.Allow(clientKey):
			reply = ws.ErrorResponse{
				Event: ws.EventError,
				Code:  string(response.ErrRateLimitExceeded),
				Error: response.GetMessage(response.ErrRateLimitExceeded),
				Ref:   msg.Ref,
			}
		default:
			if fields := validator.Struct(&msg); fields != nil {
				reply = ws.ErrorResponse{
					Event:  ws.EventError,
					Code:   string(response.ErrValidation),
					Error:  response.GetMessage(response.ErrValidation),
					Fields: fields,
					Ref:    msg.Ref,
				}
				break
			}
			// Successful commands reach the client through the subscription.
			if _, _, err := runner.Dispatch(ctx, msg.Command); err != nil {
				_, code := sessionError(err)
				reply = ws.ErrorResponse{Event: ws.EventError, Code: string(code), Error: response.GetMessage(code), Ref: msg.Ref}
			}
		}
		if reply == nil {
			continue
		}

		select {
		case outbox <- reply:
		case <-writerDone:
			return
		}
	}
}

// writeLoop is the only goroutine that writes to conn.
func (h *WSHandler) writeLoop(conn *websocket.Conn, log zerolog.Logger, updates <-chan session.Update, outbox <-chan any, done chan<- struct{}) {
	defer close(done)
	// Unblocks the reader once we stop writing.
	defer conn.Close()

	ping := time.NewTicker(ws.PingPeriod)
	defer ping.Stop()

	for {
		select {
		case u, ok := <-updates:
			if !ok {
				ws.WriteClose(conn, "session closed")
				return
			}
			if err := ws.WriteTyped(conn, ws.FromUpdate(u)); err != nil {
				log.Debug().Err(err).Msg("Write failed")
				return
			}
			if u.Kind == session.UpdateExit {
				ws.WriteClose(conn, "session ended")
				return
			}
		case m := <-outbox:
			if err := ws.WriteTyped(conn, m); err != nil {
				log.Debug().Err(err).Msg("Write failed")
				return
			}
		case <-ping.C:
			if err := ws.WritePing(conn); err != nil {
				return
			}
		}
	}
}
