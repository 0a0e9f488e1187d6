package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/stemsi/exstem-proctor/internal/checkpoint"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/metrics"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/session"
)

// Domain Errors
var (
	ErrAlreadySubmitted = errors.New("test already submitted")
	ErrSessionNotOpen   = errors.New("session is not open")
	ErrShuttingDown     = errors.New("server is shutting down")
)

// TestSource resolves test definitions.
type TestSource interface {
	GetTest(ctx context.Context, testID string) (*model.Test, error)
}

// SubmissionChecker reports whether a session was already submitted.
type SubmissionChecker interface {
	Submitted(ctx context.Context, sessionID string) (bool, error)
}

// SessionDeps are the collaborators shared by every session on this node.
type SessionDeps struct {
	Tests     TestSource
	Store     checkpoint.Store
	Submitter session.Submitter
	Journal   session.Journal
	// Guard may be nil, in which case retakes are not blocked.
	Guard SubmissionChecker
	// Clock defaults to the system clock.
	Clock session.TickSource
}

// SessionService keeps one Runner per open candidate session.
type SessionService struct {
	deps SessionDeps
	cfg  session.Config
	log  zerolog.Logger

	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	opening singleflight.Group

	mu      sync.Mutex
	runners map[string]*session.Runner
	closed  bool
}

// NewSessionService creates a new SessionService. Runners live until their
// session exits, they sit idle past cfg.IdleTimeout, or Shutdown is called.
func NewSessionService(deps SessionDeps, cfg session.Config, log zerolog.Logger) *SessionService {
	if deps.Clock == nil {
		deps.Clock = session.SystemTime{}
	}
	base, cancel := context.WithCancel(context.Background())
	return &SessionService{
		deps:    deps,
		cfg:     cfg,
		log:     log.With().Str("component", "session_service").Logger(),
		base:    base,
		cancel:  cancel,
		runners: make(map[string]*session.Runner),
	}
}

// Open returns the live runner for a candidate's test session, creating and
// mounting one if needed. Concurrent opens of the same session share one
// runner.
func (s *SessionService) Open(ctx context.Context, testID, candidateID string) (*session.Runner, error) {
	sessionID := config.CacheKey.SessionID(testID, candidateID)
	if r := s.lookup(sessionID); r != nil {
		return r, nil
	}

	v, err, _ := s.opening.Do(sessionID, func() (any, error) {
		if r := s.lookup(sessionID); r != nil {
			return r, nil
		}
		return s.open(ctx, model.SessionRef{SessionID: sessionID, TestID: testID, CandidateID: candidateID})
	})
	if err != nil {
		return nil, err
	}
	return v.(*session.Runner), nil
}

func (s *SessionService) open(ctx context.Context, ref model.SessionRef) (*session.Runner, error) {
	if s.deps.Guard != nil {
		done, err := s.deps.Guard.Submitted(ctx, ref.SessionID)
		if err != nil {
			return nil, fmt.Errorf("check submission: %w", err)
		}
		if done {
			return nil, ErrAlreadySubmitted
		}
	}

	test, err := s.deps.Tests.GetTest(ctx, ref.TestID)
	if err != nil {
		return nil, err
	}

	o, err := session.NewOrchestrator(ref, test, s.cfg, session.Deps{
		Store:     s.deps.Store,
		Submitter: s.deps.Submitter,
		Journal:   s.deps.Journal,
		Now:       s.deps.Clock.Now,
		Log:       s.log,
	})
	if err != nil {
		return nil, fmt.Errorf("build session: %w", err)
	}
	if err := o.Mount(ctx); err != nil {
		return nil, fmt.Errorf("mount session: %w", err)
	}
	r := session.NewRunner(o, s.deps.Clock, s.log)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrShuttingDown
	}
	s.runners[ref.SessionID] = r
	s.wg.Add(1)
	s.mu.Unlock()

	metrics.SessionsActive.Inc()
	go s.run(ref.SessionID, r)

	s.log.Info().
		Str("session_id", ref.SessionID).
		Str("test_id", ref.TestID).
		Str("candidate_id", ref.CandidateID).
		Msg("Session opened")
	return r, nil
}

func (s *SessionService) run(sessionID string, r *session.Runner) {
	defer s.wg.Done()
	defer metrics.SessionsActive.Dec()

	r.Run(s.base)

	s.mu.Lock()
	if s.runners[sessionID] == r {
		delete(s.runners, sessionID)
	}
	s.mu.Unlock()
	s.log.Debug().Str("session_id", sessionID).Msg("Session released")
}

// lookup returns a runner that has not exited yet.
func (s *SessionService) lookup(sessionID string) *session.Runner {
	s.mu.Lock()
	r := s.runners[sessionID]
	s.mu.Unlock()
	if r == nil {
		return nil
	}
	select {
	case <-r.Done():
		return nil
	default:
		return r
	}
}

// Get returns the live runner for a session that is already open.
func (s *SessionService) Get(testID, candidateID string) (*session.Runner, error) {
	if r := s.lookup(config.CacheKey.SessionID(testID, candidateID)); r != nil {
		return r, nil
	}
	return nil, ErrSessionNotOpen
}

// Dispatch runs one command against an open session.
func (s *SessionService) Dispatch(ctx context.Context, testID, candidateID string, cmd session.Command) (session.Result, model.SessionView, error) {
	r, err := s.Get(testID, candidateID)
	if err != nil {
		return session.Result{}, model.SessionView{}, err
	}
	return r.Dispatch(ctx, cmd)
}

// LiveViews snapshots every open session of a test.
func (s *SessionService) LiveViews(ctx context.Context, testID string) []model.SessionView {
	s.mu.Lock()
	runners := make([]*session.Runner, 0, len(s.runners))
	for _, r := range s.runners {
		if r.Ref().TestID == testID {
			runners = append(runners, r)
		}
	}
	s.mu.Unlock()

	views := make([]model.SessionView, 0, len(runners))
	for _, r := range runners {
		v, err := r.View(ctx)
		if err != nil {
			// Exited between the snapshot and the query.
			continue
		}
		views = append(views, v)
	}
	return views
}

// Active returns the number of open sessions.
func (s *SessionService) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.runners)
}

// Shutdown stops accepting sessions, cancels every runner (each saves a final
// checkpoint) and waits for them or for ctx.
func (s *SessionService) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	n := len(s.runners)
	s.mu.Unlock()

	s.log.Info().Int("sessions", n).Msg("Stopping session runners...")
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info().Msg("All session runners stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("session shutdown: %w", ctx.Err())
	}
}
