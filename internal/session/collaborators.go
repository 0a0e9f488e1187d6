package session

import (
	"context"
	"time"

	"github.com/stemsi/exstem-proctor/internal/model"
)

// Submitter hands a finished session to whoever grades and stores it.
type Submitter interface {
	Submit(ctx context.Context, sub model.Submission) error
}

// Journal receives fine-grained progress events for live proctoring. Errors
// are logged by the caller and never block the session.
type Journal interface {
	RecordAnswer(ctx context.Context, ref model.SessionRef, questionID, answer string) error
	RecordViolation(ctx context.Context, ref model.SessionRef, count int, at time.Time) error
}

// Screen controls the candidate's display mode. Both calls are best-effort.
type Screen interface {
	EnterFullscreen() error
	ExitFullscreen() error
}

// Deferrer runs work and later calls done with its result. Inline runs both
// immediately; the Runner runs work on its own goroutine and posts done back
// onto the session loop.
type Deferrer func(work func() error, done func(error))

// Inline is the synchronous Deferrer.
func Inline(work func() error, done func(error)) { done(work()) }

type nopScreen struct{}

func (nopScreen) EnterFullscreen() error { return nil }
func (nopScreen) ExitFullscreen() error  { return nil }

type nopJournal struct{}

func (nopJournal) RecordAnswer(context.Context, model.SessionRef, string, string) error    { return nil }
func (nopJournal) RecordViolation(context.Context, model.SessionRef, int, time.Time) error { return nil }
