package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/middleware"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/response"
	"github.com/stemsi/exstem-proctor/internal/service"
	"github.com/stemsi/exstem-proctor/internal/validator"
)

// TestHandler handles proctor management of test definitions.
type TestHandler struct {
	testService *service.TestService
	log         zerolog.Logger
}

// NewTestHandler creates a new TestHandler.
func NewTestHandler(testService *service.TestService, log zerolog.Logger) *TestHandler {
	return &TestHandler{
		testService: testService,
		log:         log.With().Str("component", "test_handler").Logger(),
	}
}

// Get godoc
// GET /api/v1/proctor/tests/:test_id
func (h *TestHandler) Get(c *gin.Context) {
	if middleware.GetClaims(c) == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	test, err := h.testService.GetTest(c.Request.Context(), c.Param("test_id"))
	if err != nil {
		status, code := sessionError(err)
		if status >= http.StatusInternalServerError {
			h.log.Error().Err(err).Str("test_id", c.Param("test_id")).Msg("Failed to load test")
		}
		response.Fail(c, status, code)
		return
	}
	response.Success(c, http.StatusOK, test)
}

// Upsert godoc
// PUT /api/v1/proctor/tests/:test_id
// Creates or replaces a test definition. The id comes from the path.
func (h *TestHandler) Upsert(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	testID := c.Param("test_id")
	if testID == "" || len(testID) > 64 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.Test
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	req.ID = testID

	if err := h.testService.Upsert(c.Request.Context(), &req); err != nil {
		if errors.Is(err, service.ErrInvalidTest) {
			response.FailWithFields(c, http.StatusBadRequest, response.ErrInvalidTest, map[string]string{"test": err.Error()})
			return
		}
		h.log.Error().Err(err).Str("test_id", testID).Msg("Failed to store test")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	h.log.Info().Str("test_id", testID).Str("proctor_id", claims.Subject).Msg("Test definition updated")
	response.Success(c, http.StatusOK, &req)
}
