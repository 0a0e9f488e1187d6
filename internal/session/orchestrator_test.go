package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/exstem-proctor/internal/checkpoint"
	"github.com/stemsi/exstem-proctor/internal/model"
)

var testRef = model.SessionRef{SessionID: "candidate:c1:test:t1", TestID: "t1", CandidateID: "c1"}

type harness struct {
	t       *testing.T
	ctx     context.Context
	o       *Orchestrator
	mem     *checkpoint.MemoryStore
	store   *failingStore
	sub     *fakeSubmitter
	screen  *fakeScreen
	journal *fakeJournal
	clock   *fakeClock
	cfg     Config
	test    *model.Test
}

func newHarness(t *testing.T, test *model.Test, cfg Config) *harness {
	t.Helper()
	mem := checkpoint.NewMemoryStore()
	h := &harness{
		t:       t,
		ctx:     context.Background(),
		mem:     mem,
		store:   &failingStore{inner: mem},
		sub:     &fakeSubmitter{},
		screen:  &fakeScreen{},
		journal: &fakeJournal{},
		clock:   newFakeClock(),
		cfg:     cfg,
		test:    test,
	}
	h.o = h.build()
	return h
}

// build creates and mounts a fresh orchestrator sharing the harness' collaborators.
func (h *harness) build() *Orchestrator {
	h.t.Helper()
	o, err := NewOrchestrator(testRef, h.test, h.cfg, Deps{
		Store:     h.store,
		Submitter: h.sub,
		Journal:   h.journal,
		Screen:    h.screen,
		Now:       h.clock.Now,
		Log:       zerolog.Nop(),
	})
	require.NoError(h.t, err)
	require.NoError(h.t, o.Mount(h.ctx))
	return o
}

func (h *harness) start() {
	h.t.Helper()
	_, err := h.o.Start(h.ctx, true)
	require.NoError(h.t, err)
}

func (h *harness) tick(n int) {
	for i := 0; i < n; i++ {
		h.clock.Advance(time.Second)
		h.o.Tick(h.ctx)
	}
}

func (h *harness) hide(n int) {
	for i := 0; i < n; i++ {
		h.o.VisibilityHidden(h.ctx)
		h.o.VisibilityVisible()
	}
}

func (h *harness) must(res Result, err error) Result {
	h.t.Helper()
	require.NoError(h.t, err)
	return res
}

func hasNotice(res Result, code string) bool {
	for _, n := range res.Notices {
		if n.Code == code {
			return true
		}
	}
	return false
}

func TestOrchestrator_StartRequiresAcceptance(t *testing.T) {
	h := newHarness(t, sectionedTest(600, 2), Config{})

	_, err := h.o.Start(h.ctx, false)
	assert.ErrorIs(t, err, ErrNotAccepted)
	assert.Equal(t, model.PhaseInstructions, h.o.Phase())

	_, err = h.o.SelectAnswer(h.ctx, "s1-q1", "A")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	h.start()
	assert.Equal(t, model.PhaseMcqActive, h.o.Phase())
	assert.Equal(t, 1, h.screen.entered)
	assert.True(t, h.o.ledger.IsVisited("s1-q1"))
	assert.Equal(t, 600, h.o.View().RemainingSeconds)
}

func TestOrchestrator_CancelExits(t *testing.T) {
	h := newHarness(t, sectionedTest(600, 2), Config{})

	res, err := h.o.Cancel()
	require.NoError(t, err)
	assert.True(t, res.Exit)
	assert.True(t, h.o.Closed())

	_, err = h.o.Start(h.ctx, true)
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestOrchestrator_MountOnlyOnce(t *testing.T) {
	h := newHarness(t, sectionedTest(600, 2), Config{})
	assert.ErrorIs(t, h.o.Mount(h.ctx), ErrAlreadyMounted)
}

func TestOrchestrator_FullscreenFailureIsNotFatal(t *testing.T) {
	h := newHarness(t, sectionedTest(600, 1), Config{})
	h.screen.enterErr = errors.New("denied")

	h.start()
	assert.Equal(t, model.PhaseMcqActive, h.o.Phase())

	h.must(h.o.RequestSubmit())
	h.must(h.o.ConfirmSubmit(h.ctx))
	assert.Equal(t, 0, h.screen.exited, "no exit without a successful enter")
}

func TestOrchestrator_TwoSectionWalkthrough(t *testing.T) {
	h := newHarness(t, sectionedTest(1800, 3, 3), Config{})
	h.start()

	h.must(h.o.SelectAnswer(h.ctx, "s1-q1", "B"))
	h.must(h.o.Advance(h.ctx))
	h.must(h.o.ToggleReviewMark(h.ctx, "s1-q2"))
	h.must(h.o.Advance(h.ctx))
	h.must(h.o.Advance(h.ctx))
	assert.Equal(t, model.PhaseSectionCompleteConfirm, h.o.Phase())

	h.must(h.o.ReviewSection())
	assert.Equal(t, model.PhaseMcqActive, h.o.Phase())
	h.must(h.o.Advance(h.ctx))
	require.Equal(t, model.PhaseSectionCompleteConfirm, h.o.Phase())

	h.must(h.o.ProceedSection(h.ctx))
	assert.Equal(t, model.PhaseMcqActive, h.o.Phase())
	assert.Equal(t, model.SectionCounts{Answered: 1, NotAnswered: 1, Marked: 1, NotVisited: 0}, h.o.ledger.SectionCountsAt(0))

	v := h.o.View()
	assert.Equal(t, 1, v.SectionIndex)
	assert.Equal(t, 0, v.QuestionIndex)
	assert.Equal(t, "s2-q1", v.CurrentQuestionID)

	_, err := h.o.SelectAnswer(h.ctx, "s1-q3", "A")
	assert.ErrorIs(t, err, ErrSectionLocked)

	h.must(h.o.GoTo(h.ctx, 2))
	h.must(h.o.Advance(h.ctx))
	h.must(h.o.ProceedSection(h.ctx))
	require.Equal(t, model.PhaseSubmitConfirm, h.o.Phase())

	h.must(h.o.CancelSubmit())
	assert.Equal(t, model.PhaseMcqActive, h.o.Phase())
	h.must(h.o.RequestSubmit())

	res := h.must(h.o.ConfirmSubmit(h.ctx))
	assert.True(t, res.Exit)
	assert.Equal(t, model.PhaseSubmitted, res.Phase)
	assert.True(t, hasNotice(res, "submitted"))

	subs := h.sub.submissions()
	require.Len(t, subs, 1)
	assert.False(t, subs[0].Forced)
	require.Len(t, subs[0].Answers, 6)
	assert.Equal(t, "B", subs[0].Answers[0].SelectedAnswer)
	assert.Equal(t, "", subs[0].Answers[1].SelectedAnswer)
	assert.Equal(t, 1, h.screen.exited)
}

func TestOrchestrator_ExpiryWithCodingPendingJumpsToCoding(t *testing.T) {
	h := newHarness(t, withCoding(sectionedTest(300, 4), "c1", "c2"), Config{})
	h.start()

	h.tick(300)

	assert.Equal(t, model.PhaseCodingActive, h.o.Phase())
	assert.Empty(t, h.sub.submissions(), "expiry with coding pending must not submit")
	v := h.o.View()
	assert.True(t, v.McqCompleted)
	assert.Equal(t, "c1", v.SelectedCodingQuestionID)
	assert.Equal(t, int(DefaultCodingGrace/time.Second), v.RemainingSeconds)

	h.tick(10)
	assert.Equal(t, model.PhaseCodingActive, h.o.Phase())
	assert.Empty(t, h.sub.submissions())
}

func TestOrchestrator_ForcedCodingThenLongIdleSubmits(t *testing.T) {
	h := newHarness(t, withCoding(sectionedTest(300, 2), "c1"), Config{})
	h.start()

	h.tick(300)
	require.Equal(t, model.PhaseCodingActive, h.o.Phase())

	h.tick(86400)

	assert.Equal(t, model.PhaseSubmitted, h.o.Phase())
	subs := h.sub.submissions()
	require.Len(t, subs, 1)
	assert.True(t, subs[0].Forced)
	assert.Equal(t, ReasonClock, subs[0].Reason)
}

func TestOrchestrator_ForcedCodingThenResume(t *testing.T) {
	grace := int(DefaultCodingGrace / time.Second)

	tests := []struct {
		name          string
		away          time.Duration
		wantPhase     model.Phase
		wantRemaining int
		wantSubmits   int
	}{
		{"within coding budget", time.Second, model.PhaseCodingActive, grace - 1, 0},
		{"after coding budget", time.Hour, model.PhaseSubmitted, 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, withCoding(sectionedTest(300, 2), "c1"), Config{})
			h.start()
			h.tick(300)
			require.Equal(t, model.PhaseCodingActive, h.o.Phase())

			cp := h.o.Checkpoint()
			require.NotNil(t, cp.ForcedCoding)
			assert.True(t, *cp.ForcedCoding)
			h.o.Unload(h.ctx)

			h.clock.Advance(tt.away)
			h.o = h.build()
			h.start()

			assert.Equal(t, tt.wantPhase, h.o.Phase())
			assert.Equal(t, tt.wantRemaining, h.o.View().RemainingSeconds)
			assert.Len(t, h.sub.submissions(), tt.wantSubmits)
		})
	}
}

func TestOrchestrator_ResumedForcedCodingSubmitsOnExpiry(t *testing.T) {
	h := newHarness(t, withCoding(sectionedTest(300, 2), "c1"), Config{ViolationThreshold: 3})
	h.start()
	h.hide(3)
	require.Equal(t, model.PhaseCodingActive, h.o.Phase())
	h.o.Unload(h.ctx)

	h.o = h.build()
	h.start()
	require.Equal(t, model.PhaseCodingActive, h.o.Phase())

	// The clock now expires inside coding, which submits.
	h.tick(300)
	subs := h.sub.submissions()
	require.Len(t, subs, 1)
	assert.Equal(t, ReasonClock, subs[0].Reason)
}

func TestOrchestrator_ExpiryWithGraceRestartsClock(t *testing.T) {
	h := newHarness(t, withCoding(sectionedTest(60, 2), "c1"), Config{CodingGrace: 30 * time.Second})
	h.start()

	h.tick(60)
	require.Equal(t, model.PhaseCodingActive, h.o.Phase())
	assert.Equal(t, 30, h.o.View().RemainingSeconds)

	h.tick(30)
	assert.Equal(t, model.PhaseSubmitted, h.o.Phase())
	subs := h.sub.submissions()
	require.Len(t, subs, 1)
	assert.True(t, subs[0].Forced)
	assert.Equal(t, ReasonClock, subs[0].Reason)
}

func TestOrchestrator_ExpiryAfterMCQSubmitsExactlyOnce(t *testing.T) {
	h := newHarness(t, sectionedTest(120, 2), Config{})
	h.start()
	h.must(h.o.SelectAnswer(h.ctx, "s1-q2", "D"))

	h.tick(200)

	subs := h.sub.submissions()
	require.Len(t, subs, 1)
	assert.True(t, subs[0].Forced)
	assert.Equal(t, 2, subs[0].TimeSpentMinutes)
	assert.Equal(t, model.PhaseSubmitted, h.o.Phase())
}

func TestOrchestrator_ExpiryInCodingSubmits(t *testing.T) {
	h := newHarness(t, withCoding(sectionedTest(90, 1), "c1"), Config{})
	h.start()
	h.must(h.o.Advance(h.ctx))
	h.must(h.o.ProceedSection(h.ctx))
	require.Equal(t, model.PhaseCodingTransition, h.o.Phase())
	h.must(h.o.EnterCoding(h.ctx))
	h.must(h.o.RecordCodingSubmission(h.ctx, "run-1", 7.5))

	h.tick(90)

	subs := h.sub.submissions()
	require.Len(t, subs, 1)
	assert.Equal(t, []model.CodingSubmission{{SubmissionID: "run-1", QuestionID: "c1", Score: 7.5}}, subs[0].CodingSubmissions)
}

func TestOrchestrator_ViolationsInCodingSubmitWithEmptyAnswers(t *testing.T) {
	h := newHarness(t, withCoding(sectionedTest(1800, 2, 2), "c1"), Config{ViolationThreshold: 3})
	h.start()
	h.must(h.o.SelectAnswer(h.ctx, "s1-q1", "A"))
	h.must(h.o.Advance(h.ctx))
	h.must(h.o.Advance(h.ctx))
	h.must(h.o.ProceedSection(h.ctx))
	h.must(h.o.Advance(h.ctx))
	h.must(h.o.Advance(h.ctx))
	h.must(h.o.ProceedSection(h.ctx))
	h.must(h.o.EnterCoding(h.ctx))
	require.True(t, h.o.View().McqCompleted)

	h.hide(3)
	h.hide(2)

	subs := h.sub.submissions()
	require.Len(t, subs, 1)
	assert.True(t, subs[0].Forced)
	assert.Equal(t, ReasonViolations, subs[0].Reason)
	assert.Equal(t, 3, subs[0].ViolationCount)
	assert.Equal(t, []model.AnswerRecord{
		{QuestionID: "s1-q1", SelectedAnswer: "A"},
		{QuestionID: "s1-q2", SelectedAnswer: ""},
		{QuestionID: "s2-q1", SelectedAnswer: ""},
		{QuestionID: "s2-q2", SelectedAnswer: ""},
	}, subs[0].Answers)
	assert.Equal(t, []int{1, 2, 3}, h.journal.violations)
}

func TestOrchestrator_ViolationsDuringMCQForceCodingOnce(t *testing.T) {
	h := newHarness(t, withCoding(sectionedTest(1800, 3), "c1"), Config{ViolationThreshold: 3})
	h.start()

	h.hide(2)
	assert.Equal(t, model.PhaseMcqActive, h.o.Phase())

	res := h.o.VisibilityHidden(h.ctx)
	assert.True(t, hasNotice(res, "forced_coding"))
	assert.Equal(t, model.PhaseCodingActive, h.o.Phase())
	h.o.VisibilityVisible()

	// Counting continues, but the threshold crossing already fired.
	h.hide(4)
	assert.Equal(t, 7, h.o.View().ViolationCount)
	assert.Equal(t, model.PhaseCodingActive, h.o.Phase())
	assert.Empty(t, h.sub.submissions())
}

func TestOrchestrator_HiddenBeforeStartIsNotCounted(t *testing.T) {
	h := newHarness(t, sectionedTest(600, 1), Config{})
	h.hide(5)
	h.start()
	assert.Equal(t, 0, h.o.View().ViolationCount)
}

func TestOrchestrator_HideLeftOverFromInstructionsDoesNotMaskViolation(t *testing.T) {
	h := newHarness(t, sectionedTest(600, 1), Config{})
	h.o.VisibilityHidden(h.ctx)
	h.start()

	res := h.o.VisibilityHidden(h.ctx)
	assert.True(t, hasNotice(res, "violation_recorded"))
	assert.Equal(t, 1, h.o.View().ViolationCount)
}

func TestOrchestrator_SubmissionFailureIsRetryable(t *testing.T) {
	h := newHarness(t, sectionedTest(600, 1), Config{CheckpointOnChange: true})
	h.start()
	h.must(h.o.SelectAnswer(h.ctx, "s1-q1", "C"))
	h.must(h.o.RequestSubmit())

	h.sub.setErr(errors.New("upstream down"))
	res := h.must(h.o.ConfirmSubmit(h.ctx))
	assert.Equal(t, model.PhaseSubmitConfirm, res.Phase)
	assert.False(t, res.Exit)
	assert.True(t, hasNotice(res, "submission_failed"))
	assert.False(t, h.o.View().Submitting)

	_, err := h.mem.Load(h.ctx, testRef.SessionID)
	require.NoError(t, err, "checkpoint is kept after a failed submission")

	h.sub.setErr(nil)
	res = h.must(h.o.ConfirmSubmit(h.ctx))
	assert.True(t, res.Exit)
	require.Len(t, h.sub.submissions(), 1)

	_, err = h.mem.Load(h.ctx, testRef.SessionID)
	assert.ErrorIs(t, err, checkpoint.ErrNotFound)
	assert.Equal(t, 1, h.store.clears)
}

func TestOrchestrator_ExpiryDuringFailedSubmissionIsReplayed(t *testing.T) {
	h := newHarness(t, sectionedTest(60, 1), Config{})
	held := &heldDefer{}
	h.o.bindRuntime(held.run, h.screen)
	h.start()

	h.tick(5)
	h.must(h.o.RequestSubmit())
	h.must(h.o.ConfirmSubmit(h.ctx))
	require.True(t, h.o.View().Submitting)

	h.tick(60)
	require.True(t, h.o.View().Submitting)

	h.sub.setErr(errors.New("upstream down"))
	held.release()
	require.True(t, h.o.View().Submitting, "the expiry is replayed as a forced submission")

	h.sub.setErr(nil)
	held.release()

	assert.Equal(t, model.PhaseSubmitted, h.o.Phase())
	subs := h.sub.submissions()
	require.Len(t, subs, 1)
	assert.True(t, subs[0].Forced)
	assert.Equal(t, ReasonClock, subs[0].Reason)
}

func TestOrchestrator_FailedForcedSubmissionIsRetried(t *testing.T) {
	h := newHarness(t, sectionedTest(30, 1), Config{})
	h.start()

	h.sub.setErr(errors.New("upstream down"))
	h.tick(30)
	require.Equal(t, model.PhaseMcqActive, h.o.Phase())
	require.Empty(t, h.sub.submissions())

	h.sub.setErr(nil)
	h.tick(int(forceRetryInterval/time.Second) - 1)
	assert.Empty(t, h.sub.submissions(), "no retry before the interval")

	h.tick(1)
	assert.Equal(t, model.PhaseSubmitted, h.o.Phase())
	subs := h.sub.submissions()
	require.Len(t, subs, 1)
	assert.True(t, subs[0].Forced)
	assert.Equal(t, ReasonClock, subs[0].Reason)
}

func TestOrchestrator_SubmittingBlocksCommands(t *testing.T) {
	test := sectionedTest(600, 1)
	mem := checkpoint.NewMemoryStore()
	sub := &fakeSubmitter{}
	var pending func()
	o, err := NewOrchestrator(testRef, test, Config{}, Deps{
		Store:     mem,
		Submitter: sub,
		Log:       zerolog.Nop(),
		Defer: func(work func() error, done func(error)) {
			pending = func() { done(work()) }
		},
	})
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, o.Mount(ctx))
	_, err = o.Start(ctx, true)
	require.NoError(t, err)
	_, err = o.RequestSubmit()
	require.NoError(t, err)
	_, err = o.ConfirmSubmit(ctx)
	require.NoError(t, err)
	require.NotNil(t, pending)
	assert.True(t, o.View().Submitting)

	_, err = o.ConfirmSubmit(ctx)
	assert.ErrorIs(t, err, ErrSubmitting)
	_, err = o.CancelSubmit()
	assert.ErrorIs(t, err, ErrSubmitting)

	// Expiry while a submission is pending does not start another one.
	for i := 0; i < 700; i++ {
		o.Tick(ctx)
	}
	o.Unload(ctx)
	_, err = mem.Load(ctx, testRef.SessionID)
	assert.ErrorIs(t, err, checkpoint.ErrNotFound, "no saves while submitting")

	pending()
	assert.Len(t, sub.submissions(), 1)
	assert.Equal(t, model.PhaseSubmitted, o.Phase())
}

func TestOrchestrator_RequestSubmitFromMCQNeedsNoCoding(t *testing.T) {
	h := newHarness(t, withCoding(sectionedTest(600, 2), "c1"), Config{})
	h.start()
	_, err := h.o.RequestSubmit()
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestOrchestrator_CodingOnlyTestStartsInCoding(t *testing.T) {
	test := withCoding(&model.Test{ID: "t1", Name: "Coding round", DurationSeconds: 900}, "c1", "c2")
	h := newHarness(t, test, Config{})
	h.start()

	assert.Equal(t, model.PhaseCodingActive, h.o.Phase())
	v := h.o.View()
	assert.True(t, v.McqCompleted)
	assert.Equal(t, "c1", v.SelectedCodingQuestionID)

	h.must(h.o.SelectCodingQuestion(h.ctx, "c2"))
	h.must(h.o.RecordCodingSubmission(h.ctx, "r1", 4))
	h.must(h.o.RequestSubmit())
	h.must(h.o.RecordCodingSubmission(h.ctx, "r2", 6))
	h.must(h.o.ConfirmSubmit(h.ctx))

	subs := h.sub.submissions()
	require.Len(t, subs, 1)
	assert.Empty(t, subs[0].Answers)
	assert.Len(t, subs[0].CodingSubmissions, 2)
}

func TestOrchestrator_CheckpointRoundTrip(t *testing.T) {
	test := withCoding(sectionedTest(1200, 3, 2), "c1", "c2")
	h := newHarness(t, test, Config{})
	h.start()
	h.must(h.o.SelectAnswer(h.ctx, "s1-q1", "A"))
	h.must(h.o.ToggleReviewMark(h.ctx, "s1-q1"))
	h.tick(45)
	h.must(h.o.GoTo(h.ctx, 2))
	h.hide(1)
	h.o.Unload(h.ctx)

	before := h.o.View()
	h.clock.Advance(15 * time.Second)

	h.o = h.build()
	h.start()
	after := h.o.View()

	assert.Equal(t, before.Answers, after.Answers)
	assert.Equal(t, before.MarkedForReview, after.MarkedForReview)
	assert.Equal(t, before.Visited, after.Visited)
	assert.Equal(t, before.SectionIndex, after.SectionIndex)
	assert.Equal(t, before.QuestionIndex, after.QuestionIndex)
	assert.Equal(t, 1, after.ViolationCount)
	assert.Equal(t, 1200-45-15, after.RemainingSeconds, "the clock keeps running while away")
	assert.Equal(t, 45, h.o.ledger.TimeSpent("s1-q1"))
}

func TestOrchestrator_ResumeAfterMCQCompletedGoesToCoding(t *testing.T) {
	test := withCoding(sectionedTest(1200, 1), "c1", "c2")
	h := newHarness(t, test, Config{})
	h.start()
	h.must(h.o.Advance(h.ctx))
	h.must(h.o.ProceedSection(h.ctx))
	h.must(h.o.EnterCoding(h.ctx))
	h.must(h.o.SelectCodingQuestion(h.ctx, "c2"))
	h.o.Unload(h.ctx)

	h.o = h.build()
	h.start()
	assert.Equal(t, model.PhaseCodingActive, h.o.Phase())
	assert.Equal(t, "c2", h.o.View().SelectedCodingQuestionID)
}

func TestOrchestrator_ResumePastDeadlineSubmits(t *testing.T) {
	h := newHarness(t, sectionedTest(300, 2), Config{})
	h.start()
	h.must(h.o.SelectAnswer(h.ctx, "s1-q1", "B"))
	h.o.Unload(h.ctx)

	h.clock.Advance(time.Hour)
	h.o = h.build()
	h.start()

	assert.Equal(t, model.PhaseSubmitted, h.o.Phase())
	subs := h.sub.submissions()
	require.Len(t, subs, 1)
	assert.Equal(t, "B", subs[0].Answers[0].SelectedAnswer)
}

func TestOrchestrator_ResumeAtThresholdDoesNotRefire(t *testing.T) {
	count := 3
	completed := false
	h := newHarness(t, withCoding(sectionedTest(600, 2), "c1"), Config{ViolationThreshold: 3})
	require.NoError(t, h.mem.Save(h.ctx, testRef.SessionID, &model.Checkpoint{ViolationCount: &count, McqCompleted: &completed}))

	h.o = h.build()
	h.start()
	h.hide(1)

	assert.Equal(t, 4, h.o.View().ViolationCount)
	assert.Equal(t, model.PhaseMcqActive, h.o.Phase())
	assert.Empty(t, h.sub.submissions())
}

func TestOrchestrator_ResumeClockFallbacks(t *testing.T) {
	remaining := 200
	started := newFakeClock().Now().Add(-100 * time.Second).UnixMilli()

	tests := []struct {
		name string
		cp   *model.Checkpoint
		want int
	}{
		{"remaining only", &model.Checkpoint{RemainingSeconds: &remaining}, 200},
		{"started at", &model.Checkpoint{StartedAt: &started, RemainingSeconds: &remaining}, 500},
		{"empty record", &model.Checkpoint{}, 600},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, sectionedTest(600, 1), Config{})
			require.NoError(t, h.mem.Save(h.ctx, testRef.SessionID, tt.cp))
			h.o = h.build()
			h.start()
			assert.Equal(t, tt.want, h.o.View().RemainingSeconds)
		})
	}
}

func TestOrchestrator_CorruptCheckpointStartsFresh(t *testing.T) {
	h := newHarness(t, sectionedTest(600, 2), Config{})
	h.mem.Put(testRef.SessionID, []byte("{not json"))

	h.o = h.build()
	h.start()
	assert.Empty(t, h.o.View().Answers)
	assert.Equal(t, 600, h.o.View().RemainingSeconds)
}

func TestOrchestrator_CheckpointOnChangeSurvivesSaveFailure(t *testing.T) {
	h := newHarness(t, sectionedTest(600, 2), Config{CheckpointOnChange: true})
	h.start()
	h.store.broken = true
	h.must(h.o.SelectAnswer(h.ctx, "s1-q1", "A"))

	h.store.broken = false
	h.must(h.o.SelectAnswer(h.ctx, "s1-q2", "B"))
	cp, err := h.mem.Load(h.ctx, testRef.SessionID)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"s1-q1": "A", "s1-q2": "B"}, cp.Answers)
}

func TestOrchestrator_TimeWarnings(t *testing.T) {
	h := newHarness(t, sectionedTest(400, 1), Config{})
	h.start()

	var warned int
	for i := 0; i < 399; i++ {
		h.clock.Advance(time.Second)
		if hasNotice(h.o.Tick(h.ctx), "time_warning") {
			warned++
		}
	}
	assert.Equal(t, 2, warned)
}

func TestOrchestrator_JournalsAnswers(t *testing.T) {
	h := newHarness(t, sectionedTest(600, 2), Config{})
	h.start()
	h.must(h.o.SelectAnswer(h.ctx, "s1-q1", "A"))
	h.must(h.o.ClearResponse(h.ctx, "s1-q1"))
	assert.Equal(t, []string{"s1-q1=A", "s1-q1="}, h.journal.answers)
}
