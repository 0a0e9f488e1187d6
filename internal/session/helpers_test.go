package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/stemsi/exstem-proctor/internal/checkpoint"
	"github.com/stemsi/exstem-proctor/internal/model"
)

func mcq(id string) model.Question {
	opts := make([]model.Option, 0, len(model.OptionLabels))
	for _, l := range model.OptionLabels {
		opts = append(opts, model.Option{Label: l, Text: id + l})
	}
	return model.Question{ID: id, Prompt: "Prompt " + id, Options: opts, Marks: 1}
}

func section(id string, n int) model.Section {
	s := model.Section{ID: id, Name: "Section " + id}
	for i := 0; i < n; i++ {
		s.Questions = append(s.Questions, mcq(fmt.Sprintf("%s-q%d", id, i+1)))
	}
	return s
}

// sectionedTest builds a test with one section per size.
func sectionedTest(duration int, sizes ...int) *model.Test {
	t := &model.Test{ID: "t1", Name: "Aptitude", Type: "placement", HasSections: true, DurationSeconds: duration}
	for i, n := range sizes {
		t.Sections = append(t.Sections, section(fmt.Sprintf("s%d", i+1), n))
	}
	return t
}

func withCoding(t *model.Test, ids ...string) *model.Test {
	t.HasCodingSection = true
	for _, id := range ids {
		t.CodingQuestions = append(t.CodingQuestions, model.CodingQuestion{ID: id, Title: "Problem " + id, Points: 10})
	}
	return t
}

// fakeClock is a settable wall clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeSubmitter struct {
	mu   sync.Mutex
	subs []model.Submission
	err  error
}

func (f *fakeSubmitter) Submit(_ context.Context, sub model.Submission) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.subs = append(f.subs, sub)
	return nil
}

func (f *fakeSubmitter) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeSubmitter) submissions() []model.Submission {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Submission, len(f.subs))
	copy(out, f.subs)
	return out
}

type fakeScreen struct {
	enterErr error
	entered  int
	exited   int
}

func (s *fakeScreen) EnterFullscreen() error {
	s.entered++
	return s.enterErr
}

func (s *fakeScreen) ExitFullscreen() error {
	s.exited++
	return nil
}

type fakeJournal struct {
	mu         sync.Mutex
	answers    []string
	violations []int
}

func (j *fakeJournal) RecordAnswer(_ context.Context, _ model.SessionRef, qid, answer string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.answers = append(j.answers, qid+"="+answer)
	return nil
}

func (j *fakeJournal) RecordViolation(_ context.Context, _ model.SessionRef, count int, _ time.Time) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.violations = append(j.violations, count)
	return nil
}

// failingStore wraps a store and fails saves while broken is set.
type failingStore struct {
	inner  checkpoint.Store
	broken bool
	clears int
}

func (s *failingStore) Save(ctx context.Context, id string, cp *model.Checkpoint) error {
	if s.broken {
		return errors.New("store unavailable")
	}
	return s.inner.Save(ctx, id, cp)
}

func (s *failingStore) Load(ctx context.Context, id string) (*model.Checkpoint, error) {
	return s.inner.Load(ctx, id)
}

func (s *failingStore) Clear(ctx context.Context, id string) error {
	s.clears++
	return s.inner.Clear(ctx, id)
}

// heldDefer keeps deferred work until release runs it.
type heldDefer struct {
	work func() error
	done func(error)
}

func (d *heldDefer) run(work func() error, done func(error)) {
	d.work, d.done = work, done
}

func (d *heldDefer) release() {
	work, done := d.work, d.done
	d.work, d.done = nil, nil
	done(work())
}
