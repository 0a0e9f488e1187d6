package session

import "errors"

// Domain Errors
var (
	ErrInvalidTransition = errors.New("operation not allowed in current phase")
	ErrNotAccepted       = errors.New("instructions must be accepted before starting")
	ErrSubmitting        = errors.New("submission in progress")
	ErrUnknownQuestion   = errors.New("unknown question")
	ErrInvalidOption     = errors.New("invalid option for question")
	ErrSectionLocked     = errors.New("question is outside the current section")
	ErrIndexOutOfRange   = errors.New("question index out of range")
	ErrAlreadyMounted    = errors.New("session already mounted")
	ErrSessionClosed     = errors.New("session is closed")
	ErrNoClient          = errors.New("no client connected")
	ErrUnknownAction     = errors.New("unknown action")
)
