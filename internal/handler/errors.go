package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/stemsi/exstem-proctor/internal/response"
	"github.com/stemsi/exstem-proctor/internal/service"
	"github.com/stemsi/exstem-proctor/internal/session"
)

// sessionError maps session and service errors onto an HTTP status and API
// error code. Unknown errors become 500.
func sessionError(err error) (int, response.ErrCode) {
	switch {
	case session.IsBadCommand(err) && errors.Is(err, session.ErrUnknownAction):
		return http.StatusBadRequest, response.ErrUnknownAction
	case session.IsBadCommand(err):
		return http.StatusBadRequest, response.ErrValidation
	case errors.Is(err, session.ErrNotAccepted):
		return http.StatusBadRequest, response.ErrInstructionsRequired
	case errors.Is(err, session.ErrInvalidOption):
		return http.StatusBadRequest, response.ErrInvalidOption
	case errors.Is(err, session.ErrIndexOutOfRange):
		return http.StatusBadRequest, response.ErrIndexOutOfRange
	case errors.Is(err, session.ErrUnknownQuestion):
		return http.StatusNotFound, response.ErrUnknownQuestion
	case errors.Is(err, session.ErrInvalidTransition):
		return http.StatusConflict, response.ErrInvalidTransition
	case errors.Is(err, session.ErrSectionLocked):
		return http.StatusConflict, response.ErrSectionLocked
	case errors.Is(err, session.ErrSubmitting):
		return http.StatusConflict, response.ErrSubmissionInProgress
	case errors.Is(err, session.ErrSessionClosed):
		return http.StatusGone, response.ErrSessionClosed
	case errors.Is(err, service.ErrSessionNotOpen):
		return http.StatusNotFound, response.ErrSessionNotOpen
	case errors.Is(err, service.ErrAlreadySubmitted):
		return http.StatusConflict, response.ErrAlreadySubmitted
	case errors.Is(err, service.ErrTestNotFound):
		return http.StatusNotFound, response.ErrTestNotFound
	case errors.Is(err, service.ErrShuttingDown),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, response.ErrUnavailable
	default:
		return http.StatusInternalServerError, response.ErrInternal
	}
}
