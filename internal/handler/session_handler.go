package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/middleware"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/response"
	"github.com/stemsi/exstem-proctor/internal/service"
	"github.com/stemsi/exstem-proctor/internal/session"
	"github.com/stemsi/exstem-proctor/internal/validator"
)

// SessionHandler handles candidate-facing test session endpoints.
type SessionHandler struct {
	sessionService *service.SessionService
	testService    *service.TestService
	log            zerolog.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(
	sessionService *service.SessionService,
	testService *service.TestService,
	log zerolog.Logger,
) *SessionHandler {
	return &SessionHandler{
		sessionService: sessionService,
		testService:    testService,
		log:            log.With().Str("component", "session_handler").Logger(),
	}
}

// actionResult is the body returned for a dispatched action.
type actionResult struct {
	Session model.SessionView `json:"session"`
	Notices []model.Notice    `json:"notices"`
	Exit    bool              `json:"exit"`
}

// OpenSession godoc
// POST /api/v1/candidate/tests/:test_id/session
// Opens (or reattaches to) the candidate's session, restoring any checkpoint.
func (h *SessionHandler) OpenSession(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	r, err := h.sessionService.Open(c.Request.Context(), c.Param("test_id"), claims.Subject)
	if err != nil {
		h.fail(c, err)
		return
	}

	view, err := r.View(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"session": view})
}

// GetSession godoc
// GET /api/v1/candidate/tests/:test_id/session
// Returns the current view of an open session.
func (h *SessionHandler) GetSession(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	r, err := h.sessionService.Get(c.Param("test_id"), claims.Subject)
	if err != nil {
		h.fail(c, err)
		return
	}

	view, err := r.View(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"session": view})
}

// Dispatch godoc
// POST /api/v1/candidate/tests/:test_id/session/actions
// Applies one candidate action. Rejected actions still return the unchanged view.
func (h *SessionHandler) Dispatch(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var cmd session.Command
	if fields := validator.Bind(c, &cmd); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	res, view, err := h.sessionService.Dispatch(c.Request.Context(), c.Param("test_id"), claims.Subject, cmd)
	if err != nil {
		status, code := sessionError(err)
		if status >= http.StatusInternalServerError {
			h.log.Error().Err(err).Str("action", string(cmd.Action)).Str("candidate_id", claims.Subject).Msg("Dispatch failed")
		}
		if view.SessionID == "" {
			response.Fail(c, status, code)
			return
		}
		response.FailWithData(c, status, code, actionResult{Session: view, Notices: nonNil(res.Notices), Exit: res.Exit})
		return
	}

	response.Success(c, http.StatusOK, actionResult{Session: view, Notices: nonNil(res.Notices), Exit: res.Exit})
}

// GetPaper godoc
// GET /api/v1/candidate/tests/:test_id/paper
// Returns the test definition for rendering.
// SECURITY: Requires an open session for this test, so candidates cannot
// browse papers they were not admitted to.
func (h *SessionHandler) GetPaper(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	testID := c.Param("test_id")
	if _, err := h.sessionService.Get(testID, claims.Subject); err != nil {
		response.Fail(c, http.StatusForbidden, response.ErrSessionNotOpen)
		return
	}

	test, err := h.testService.GetTest(c.Request.Context(), testID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, test)
}

func (h *SessionHandler) fail(c *gin.Context, err error) {
	status, code := sessionError(err)
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("Request failed")
	}
	response.Fail(c, status, code)
}

func nonNil(n []model.Notice) []model.Notice {
	if n == nil {
		return []model.Notice{}
	}
	return n
}
