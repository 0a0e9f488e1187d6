package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/session"
)

func flatTest(id string, n int) *model.Test {
	t := &model.Test{ID: id, Name: "Reasoning", Type: "screening", DurationSeconds: 600}
	for i := 0; i < n; i++ {
		q := model.Question{ID: fmt.Sprintf("%s-q%d", id, i+1), Prompt: "Pick one", Marks: 1}
		for _, l := range model.OptionLabels {
			q.Options = append(q.Options, model.Option{Label: l, Text: l})
		}
		t.Questions = append(t.Questions, q)
	}
	return t
}

// fakeTestRepo is an in-memory TestRepository.
type fakeTestRepo struct {
	mu     sync.Mutex
	tests  map[string]*model.Test
	gets   int
	getErr error
}

func newFakeTestRepo(tests ...*model.Test) *fakeTestRepo {
	r := &fakeTestRepo{tests: make(map[string]*model.Test)}
	for _, t := range tests {
		r.tests[t.ID] = t
	}
	return r
}

func (r *fakeTestRepo) GetByID(_ context.Context, id string) (*model.Test, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gets++
	if r.getErr != nil {
		return nil, r.getErr
	}
	t, ok := r.tests[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return t, nil
}

func (r *fakeTestRepo) Upsert(_ context.Context, t *model.Test) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tests[t.ID] = t
	return nil
}

func (r *fakeTestRepo) ListAll(_ context.Context) ([]model.Test, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Test, 0, len(r.tests))
	for _, t := range r.tests {
		out = append(out, *t)
	}
	return out, nil
}

func (r *fakeTestRepo) getCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gets
}

type recordingSubmitter struct {
	mu   sync.Mutex
	subs []model.Submission
}

func (s *recordingSubmitter) Submit(_ context.Context, sub model.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, sub)
	return nil
}

func (s *recordingSubmitter) all() []model.Submission {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Submission(nil), s.subs...)
}

type fixedGuard struct {
	submitted map[string]bool
}

func (g fixedGuard) Submitted(_ context.Context, sessionID string) (bool, error) {
	return g.submitted[sessionID], nil
}

// stillClock never ticks, so sessions only move when commanded.
type stillClock struct{ now time.Time }

func (c stillClock) Now() time.Time                         { return c.now }
func (stillClock) NewTicker(time.Duration) session.Ticker { return stillTicker{} }

type stillTicker struct{}

func (stillTicker) C() <-chan time.Time { return nil }
func (stillTicker) Stop()               {}

// steppingClock ticks only when step is called.
type steppingClock struct {
	mu  sync.Mutex
	now time.Time
	ch  chan time.Time
}

func newSteppingClock() *steppingClock {
	return &steppingClock{now: time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC), ch: make(chan time.Time)}
}

func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *steppingClock) NewTicker(time.Duration) session.Ticker { return steppingTicker{ch: c.ch} }

// step moves the clock by d and delivers one tick.
func (c *steppingClock) step(t *testing.T, d time.Duration) {
	t.Helper()
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	c.mu.Unlock()

	select {
	case c.ch <- now:
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not take the tick")
	}
}

type steppingTicker struct{ ch chan time.Time }

func (t steppingTicker) C() <-chan time.Time { return t.ch }
func (steppingTicker) Stop()                 {}
