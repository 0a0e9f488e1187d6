package session

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-proctor/internal/checkpoint"
	"github.com/stemsi/exstem-proctor/internal/metrics"
	"github.com/stemsi/exstem-proctor/internal/model"
)

// Forced transition reasons.
const (
	ReasonClock      = "clock"
	ReasonViolations = "violations"
)

const (
	// DefaultCodingGrace is the coding budget after expiry forces the coding
	// jump, used when Config.CodingGrace is unset.
	DefaultCodingGrace = 5 * time.Minute
	// forceRetryInterval spaces retries of a failed forced submission.
	forceRetryInterval = 15 * time.Second
)

// Config holds per-session policy.
type Config struct {
	ViolationThreshold int
	// CheckpointOnChange saves after every state change instead of only on unload.
	CheckpointOnChange bool
	// CodingGrace restarts the clock when expiry forces the coding jump.
	CodingGrace time.Duration
	// IdleTimeout stops a Runner that has no clients and no running clock.
	// Zero disables eviction.
	IdleTimeout time.Duration
}

// Deps are the collaborators of an Orchestrator. Store and Submitter are
// required; the rest fall back to no-ops.
type Deps struct {
	Store     checkpoint.Store
	Submitter Submitter
	Journal   Journal
	Screen    Screen
	Defer     Deferrer
	Now       func() time.Time
	Log       zerolog.Logger
}

// Result is what the presentation layer gets back from every operation.
type Result struct {
	Phase   model.Phase    `json:"phase"`
	Notices []model.Notice `json:"notices,omitempty"`
	// Exit tells the caller the session is over and its surface can close.
	Exit bool `json:"exit"`
}

// Orchestrator is the per-session state machine. It is not safe for
// concurrent use; the Runner serializes every call onto one goroutine.
type Orchestrator struct {
	ref  model.SessionRef
	test *model.Test
	cfg  Config

	store     checkpoint.Store
	submitter Submitter
	journal   Journal
	screen    Screen
	deferFn   Deferrer
	now       func() time.Time
	log       zerolog.Logger

	ledger  *Ledger
	clock   *Clock
	monitor *Monitor
	coding  *CodingBridge

	phase       model.Phase
	returnPhase model.Phase

	mounted      bool
	restored     bool
	mcqCompleted bool
	startedAt    time.Time
	deadline     time.Time
	// restoredRemaining is -1 unless a checkpoint carried remaining_seconds.
	restoredRemaining int

	forcedCoding   bool
	thresholdFired bool
	submitting     bool
	fullscreen     bool
	closed         bool

	// submitReason is set while a forced submission is in flight.
	submitReason string
	// pendingForce is a forced trigger still owed to the session; retryAt
	// holds it back after a failed forced submission.
	pendingForce string
	retryAt      time.Time

	notices []model.Notice
}

// NewOrchestrator builds a session in the instructions phase.
func NewOrchestrator(ref model.SessionRef, test *model.Test, cfg Config, deps Deps) (*Orchestrator, error) {
	if test == nil {
		return nil, errors.New("session: test is required")
	}
	if deps.Store == nil || deps.Submitter == nil {
		return nil, errors.New("session: store and submitter are required")
	}
	if cfg.ViolationThreshold <= 0 {
		cfg.ViolationThreshold = 3
	}
	if cfg.CodingGrace <= 0 {
		cfg.CodingGrace = DefaultCodingGrace
	}

	o := &Orchestrator{
		ref:               ref,
		test:              test,
		cfg:               cfg,
		store:             deps.Store,
		submitter:         deps.Submitter,
		journal:           deps.Journal,
		screen:            deps.Screen,
		deferFn:           deps.Defer,
		now:               deps.Now,
		log:               deps.Log.With().Str("component", "session").Str("session_id", ref.SessionID).Logger(),
		phase:             model.PhaseInstructions,
		restoredRemaining: -1,
	}
	if o.journal == nil {
		o.journal = nopJournal{}
	}
	if o.screen == nil {
		o.screen = nopScreen{}
	}
	if o.deferFn == nil {
		o.deferFn = Inline
	}
	if o.now == nil {
		o.now = time.Now
	}

	o.ledger = NewLedger(test.MCQSections())
	o.clock = NewClock(o.onTick, o.onExpire)
	o.monitor = NewMonitor(o.onViolation)
	o.coding = NewCodingBridge(test.CodingQuestions)
	return o, nil
}

// bindRuntime swaps in the Runner's deferrer and screen.
func (o *Orchestrator) bindRuntime(d Deferrer, s Screen) {
	o.deferFn = d
	o.screen = s
}

// Mount loads the checkpoint, if any. It may run only once per session.
// Unreadable checkpoints are logged and ignored.
func (o *Orchestrator) Mount(ctx context.Context) error {
	if o.mounted {
		return ErrAlreadyMounted
	}
	o.mounted = true

	cp, err := o.store.Load(ctx, o.ref.SessionID)
	switch {
	case errors.Is(err, checkpoint.ErrNotFound):
		return nil
	case err != nil:
		o.log.Warn().Err(err).Msg("Checkpoint unreadable, starting fresh")
		return nil
	}
	o.hydrate(cp)
	return nil
}

func (o *Orchestrator) hydrate(cp *model.Checkpoint) {
	repaired := o.ledger.restore(cp)
	if cp.ViolationCount != nil {
		o.monitor.restore(*cp.ViolationCount)
	}
	if cp.McqCompleted != nil {
		o.mcqCompleted = *cp.McqCompleted
	}
	if cp.ForcedCoding != nil {
		o.forcedCoding = *cp.ForcedCoding
	}
	o.coding.restore(cp)
	if cp.StartedAt != nil && *cp.StartedAt > 0 {
		o.startedAt = time.UnixMilli(*cp.StartedAt)
	}
	if cp.DeadlineAt != nil && *cp.DeadlineAt > 0 {
		o.deadline = time.UnixMilli(*cp.DeadlineAt)
	}
	if cp.RemainingSeconds != nil && *cp.RemainingSeconds >= 0 {
		o.restoredRemaining = *cp.RemainingSeconds
	}
	o.restored = true

	ev := o.log.Info().Int("violations", o.monitor.Count()).Bool("mcq_completed", o.mcqCompleted)
	if len(repaired) > 0 {
		ev = ev.Strs("repaired", repaired)
	}
	ev.Msg("Session restored from checkpoint")
}

// Start leaves the instructions. The candidate must have accepted them.
func (o *Orchestrator) Start(ctx context.Context, accepted bool) (Result, error) {
	if err := o.require(model.PhaseInstructions); err != nil {
		return o.result(), err
	}
	if !accepted {
		return o.result(), ErrNotAccepted
	}

	if err := o.screen.EnterFullscreen(); err != nil {
		o.log.Warn().Err(err).Msg("Fullscreen request failed")
	} else {
		o.fullscreen = true
	}

	now := o.now()
	remaining := o.resumeSeconds(now)
	if o.startedAt.IsZero() {
		o.startedAt = now
	}
	o.deadline = now.Add(time.Duration(remaining) * time.Second)

	o.monitor.Arm()
	if o.monitor.Count() >= o.cfg.ViolationThreshold {
		o.thresholdFired = true
	}
	metrics.SessionsStarted.Inc()

	switch {
	case !o.test.HasMCQ():
		o.enterCoding()
	case o.mcqCompleted && o.test.HasCoding():
		o.enterCoding()
	default:
		o.phase = model.PhaseMcqActive
		o.ledger.VisitCurrent()
	}
	o.log.Info().Str("phase", string(o.phase)).Int("remaining", remaining).Msg("Session started")

	o.clock.Start(ctx, remaining)
	o.changed(ctx)
	return o.result(), nil
}

// resumeSeconds decides how long the clock runs for on Start. A restored
// session resumes against its recorded deadline, clamped to the test duration
// or the coding grace period, whichever is longer. A deadline that has passed
// yields zero, and the expiry then replays the same forced decision.
func (o *Orchestrator) resumeSeconds(now time.Time) int {
	full := o.test.DurationSeconds
	if !o.restored {
		return full
	}

	limit := full
	if grace := ceilSeconds(o.cfg.CodingGrace); grace > limit {
		limit = grace
	}

	var rem int
	switch {
	case !o.deadline.IsZero():
		rem = ceilSeconds(o.deadline.Sub(now))
	case !o.startedAt.IsZero():
		rem = full - int(now.Sub(o.startedAt)/time.Second)
		limit = full
	case o.restoredRemaining >= 0:
		rem = o.restoredRemaining
		limit = full
	default:
		return full
	}
	if rem < 0 {
		rem = 0
	}
	if rem > limit {
		rem = limit
	}
	return rem
}

// Cancel abandons the session from the instructions screen.
func (o *Orchestrator) Cancel() (Result, error) {
	if err := o.require(model.PhaseInstructions); err != nil {
		return o.result(), err
	}
	o.closed = true
	o.log.Info().Msg("Session cancelled at instructions")
	return o.result(), nil
}

// SelectAnswer records an option for a question of the current section.
func (o *Orchestrator) SelectAnswer(ctx context.Context, questionID, option string) (Result, error) {
	if err := o.require(model.PhaseMcqActive); err != nil {
		return o.result(), err
	}
	if err := o.ledger.SelectAnswer(questionID, option); err != nil {
		return o.result(), err
	}
	o.journalAnswer(ctx, questionID, option)
	o.changed(ctx)
	return o.result(), nil
}

// ClearResponse drops the answer and review flag of a question.
func (o *Orchestrator) ClearResponse(ctx context.Context, questionID string) (Result, error) {
	if err := o.require(model.PhaseMcqActive); err != nil {
		return o.result(), err
	}
	if err := o.ledger.ClearResponse(questionID); err != nil {
		return o.result(), err
	}
	o.journalAnswer(ctx, questionID, "")
	o.changed(ctx)
	return o.result(), nil
}

// ToggleReviewMark flips a question's review flag.
func (o *Orchestrator) ToggleReviewMark(ctx context.Context, questionID string) (Result, error) {
	if err := o.require(model.PhaseMcqActive); err != nil {
		return o.result(), err
	}
	if _, err := o.ledger.ToggleReviewMark(questionID); err != nil {
		return o.result(), err
	}
	o.changed(ctx)
	return o.result(), nil
}

// GoTo jumps to a question of the current section.
func (o *Orchestrator) GoTo(ctx context.Context, index int) (Result, error) {
	if err := o.require(model.PhaseMcqActive); err != nil {
		return o.result(), err
	}
	if err := o.ledger.GoTo(index); err != nil {
		return o.result(), err
	}
	o.changed(ctx)
	return o.result(), nil
}

// Advance moves to the next question, or asks to leave the section when the
// cursor is on its last question.
func (o *Orchestrator) Advance(ctx context.Context) (Result, error) {
	if err := o.require(model.PhaseMcqActive); err != nil {
		return o.result(), err
	}
	if o.ledger.Advance() {
		o.phase = model.PhaseSectionCompleteConfirm
	}
	o.changed(ctx)
	return o.result(), nil
}

// ReviewSection returns to the current section without moving the cursor.
func (o *Orchestrator) ReviewSection() (Result, error) {
	if err := o.require(model.PhaseSectionCompleteConfirm); err != nil {
		return o.result(), err
	}
	o.phase = model.PhaseMcqActive
	return o.result(), nil
}

// ProceedSection leaves the current section for good.
func (o *Orchestrator) ProceedSection(ctx context.Context) (Result, error) {
	if err := o.require(model.PhaseSectionCompleteConfirm); err != nil {
		return o.result(), err
	}
	switch {
	case o.ledger.NextSection():
		o.phase = model.PhaseMcqActive
	case o.test.HasCoding():
		o.phase = model.PhaseCodingTransition
	default:
		o.returnPhase = model.PhaseMcqActive
		o.phase = model.PhaseSubmitConfirm
	}
	o.changed(ctx)
	return o.result(), nil
}

// EnterCoding moves from the coding transition screen into the coding section.
func (o *Orchestrator) EnterCoding(ctx context.Context) (Result, error) {
	if err := o.require(model.PhaseCodingTransition); err != nil {
		return o.result(), err
	}
	o.enterCoding()
	o.changed(ctx)
	return o.result(), nil
}

// SelectCodingQuestion switches the coding question on display.
func (o *Orchestrator) SelectCodingQuestion(ctx context.Context, id string) (Result, error) {
	if err := o.require(model.PhaseCodingActive); err != nil {
		return o.result(), err
	}
	if err := o.coding.SelectQuestion(id); err != nil {
		return o.result(), err
	}
	o.changed(ctx)
	return o.result(), nil
}

// RecordCodingSubmission stores a result reported by the coding sandbox.
// Late results are still accepted while the submit dialog is open.
func (o *Orchestrator) RecordCodingSubmission(ctx context.Context, submissionID string, score float64) (Result, error) {
	if err := o.require(model.PhaseCodingActive, model.PhaseSubmitConfirm); err != nil {
		return o.result(), err
	}
	if o.phase == model.PhaseSubmitConfirm && o.returnPhase != model.PhaseCodingActive {
		return o.result(), fmt.Errorf("%w: %s", ErrInvalidTransition, o.phase)
	}
	s := o.coding.RecordSubmission(submissionID, score)
	o.notify(model.NoticeInfo, "coding_submission_recorded",
		fmt.Sprintf("Submission %s recorded (score %g)", s.SubmissionID, s.Score))
	o.changed(ctx)
	return o.result(), nil
}

// VisibilityHidden reports the page was hidden or lost focus.
func (o *Orchestrator) VisibilityHidden(ctx context.Context) Result {
	if o.closed {
		return o.result()
	}
	o.monitor.Hidden(ctx)
	return o.result()
}

// VisibilityVisible reports the page is back in the foreground.
func (o *Orchestrator) VisibilityVisible() Result {
	o.monitor.Visible()
	return o.result()
}

// Tick advances the session by one second.
func (o *Orchestrator) Tick(ctx context.Context) Result {
	if o.phase == model.PhaseMcqActive && o.clock.Running() {
		o.ledger.Credit(1)
	}
	o.clock.Tick(ctx)

	if o.pendingForce != "" && !o.submitting && !o.now().Before(o.retryAt) {
		reason := o.pendingForce
		o.pendingForce = ""
		o.log.Info().Str("reason", reason).Msg("Retrying forced submission")
		o.force(ctx, reason)
	}
	return o.result()
}

// RequestSubmit opens the submit dialog. From the MCQ phase this is only
// possible when the test has no coding section.
func (o *Orchestrator) RequestSubmit() (Result, error) {
	if err := o.require(model.PhaseMcqActive, model.PhaseCodingActive); err != nil {
		return o.result(), err
	}
	if o.phase == model.PhaseMcqActive && o.test.HasCoding() {
		return o.result(), fmt.Errorf("%w: coding section pending", ErrInvalidTransition)
	}
	o.returnPhase = o.phase
	o.phase = model.PhaseSubmitConfirm
	return o.result(), nil
}

// CancelSubmit closes the submit dialog.
func (o *Orchestrator) CancelSubmit() (Result, error) {
	if err := o.require(model.PhaseSubmitConfirm); err != nil {
		return o.result(), err
	}
	o.phase = o.returnPhase
	if o.phase == "" {
		o.phase = model.PhaseMcqActive
	}
	return o.result(), nil
}

// ConfirmSubmit starts the final submission.
func (o *Orchestrator) ConfirmSubmit(ctx context.Context) (Result, error) {
	if err := o.require(model.PhaseSubmitConfirm); err != nil {
		return o.result(), err
	}
	o.submit(ctx, false, "")
	return o.result(), nil
}

// Unload saves a checkpoint. It is a no-op outside the active phases and
// while a submission is pending.
func (o *Orchestrator) Unload(ctx context.Context) Result {
	if o.phase.Active() && !o.submitting && !o.closed {
		o.save(ctx)
	}
	return o.result()
}

// View returns a snapshot for rendering.
func (o *Orchestrator) View() model.SessionView {
	si, qi := o.ledger.Position()
	v := model.SessionView{
		SessionID:                o.ref.SessionID,
		TestID:                   o.ref.TestID,
		CandidateID:              o.ref.CandidateID,
		TestType:                 o.test.Type,
		Phase:                    o.phase,
		SectionIndex:             si,
		QuestionIndex:            qi,
		Answers:                  o.ledger.Answers(),
		MarkedForReview:          o.ledger.Marked(),
		Visited:                  o.ledger.Visited(),
		SectionCounts:            o.ledger.SectionCounts(),
		RemainingSeconds:         o.clock.Remaining(),
		ViolationCount:           o.monitor.Count(),
		ViolationThreshold:       o.cfg.ViolationThreshold,
		McqCompleted:             o.mcqCompleted,
		SelectedCodingQuestionID: o.coding.Selected(),
		CodingSubmissions:        o.coding.Submissions(),
		Submitting:               o.submitting,
	}
	if o.phase == model.PhaseInstructions {
		v.RemainingSeconds = o.resumeSeconds(o.now())
	}
	if q := o.ledger.CurrentQuestion(); q != nil {
		v.CurrentQuestionID = q.ID
	}
	return v
}

// Phase returns the current phase.
func (o *Orchestrator) Phase() model.Phase { return o.phase }

// Closed reports whether the session has ended, by cancel or submission.
func (o *Orchestrator) Closed() bool { return o.closed }

// Ref returns the session identity.
func (o *Orchestrator) Ref() model.SessionRef { return o.ref }

// Idle reports whether the session is waiting on the candidate alone: it has
// not started, or its clock is stopped with nothing in flight.
func (o *Orchestrator) Idle() bool {
	if o.closed || o.submitting {
		return false
	}
	return o.phase == model.PhaseInstructions || !o.clock.Running()
}

func (o *Orchestrator) onTick(ctx context.Context, remaining int) {
	switch remaining {
	case 300:
		o.notify(model.NoticeWarning, "time_warning", "5 minutes remaining")
	case 60:
		o.notify(model.NoticeWarning, "time_warning", "1 minute remaining")
	}
}

func (o *Orchestrator) onExpire(ctx context.Context) {
	o.log.Info().Str("phase", string(o.phase)).Msg("Session clock expired")
	o.force(ctx, ReasonClock)
}

func (o *Orchestrator) onViolation(ctx context.Context, count int) {
	metrics.Violations.Inc()
	if err := o.journal.RecordViolation(ctx, o.ref, count, o.now()); err != nil {
		o.log.Warn().Err(err).Int("count", count).Msg("Failed to journal violation")
	}
	o.log.Warn().Int("count", count).Int("threshold", o.cfg.ViolationThreshold).Msg("Visibility violation")
	o.notify(model.NoticeWarning, "violation_recorded",
		fmt.Sprintf("Leaving the test window was recorded (%d of %d)", count, o.cfg.ViolationThreshold))

	if count >= o.cfg.ViolationThreshold && !o.thresholdFired {
		o.thresholdFired = true
		o.force(ctx, ReasonViolations)
		return
	}
	o.changed(ctx)
}

// force applies a clock- or violation-driven transition. A trigger that
// arrives while a submission is in flight is kept for finishSubmit.
func (o *Orchestrator) force(ctx context.Context, reason string) {
	if o.closed || !o.phase.Active() {
		return
	}
	if o.submitting {
		if o.submitReason == "" {
			o.pendingForce = reason
		}
		return
	}

	if !o.mcqCompleted && o.test.HasCoding() && !o.forcedCoding {
		o.forcedCoding = true
		metrics.ForcedTransitions.WithLabelValues("coding", reason).Inc()
		o.enterCoding()
		o.log.Info().Str("reason", reason).Msg("Forced into coding section")
		o.notify(model.NoticeWarning, "forced_coding", "The MCQ section has ended. Moving to the coding section.")

		if reason == ReasonClock {
			grace := ceilSeconds(o.cfg.CodingGrace)
			o.deadline = o.now().Add(time.Duration(grace) * time.Second)
			o.clock.Start(ctx, grace)
		}
		o.changed(ctx)
		return
	}

	metrics.ForcedTransitions.WithLabelValues("submit", reason).Inc()
	o.log.Info().Str("reason", reason).Msg("Forcing final submission")
	o.submit(ctx, true, reason)
}

func (o *Orchestrator) enterCoding() {
	o.mcqCompleted = true
	o.phase = model.PhaseCodingActive
	o.coding.SelectFirst()
}

// submit hands the final payload to the Submitter exactly once at a time.
func (o *Orchestrator) submit(ctx context.Context, forced bool, reason string) {
	if o.submitting || o.closed {
		return
	}
	o.submitting = true
	o.submitReason = ""
	if forced {
		o.submitReason = reason
	}

	if o.fullscreen {
		if err := o.screen.ExitFullscreen(); err != nil {
			o.log.Warn().Err(err).Msg("Fullscreen exit failed")
		}
		o.fullscreen = false
	}

	sub := o.buildSubmission(forced, reason)
	o.deferFn(
		func() error { return o.submitter.Submit(ctx, sub) },
		func(err error) { o.finishSubmit(ctx, err) },
	)
}

func (o *Orchestrator) finishSubmit(ctx context.Context, err error) {
	o.submitting = false
	forcedBy := o.submitReason
	o.submitReason = ""
	if err != nil {
		metrics.Submissions.WithLabelValues(metrics.ResultFailure).Inc()
		o.log.Error().Err(err).Str("phase", string(o.phase)).Str("forced_by", forcedBy).Msg("Final submission failed")
		o.notify(model.NoticeError, "submission_failed", "Submission failed. Please try again.")

		switch {
		case forcedBy != "":
			o.pendingForce = forcedBy
			o.retryAt = o.now().Add(forceRetryInterval)
		case o.pendingForce != "":
			reason := o.pendingForce
			o.pendingForce = ""
			o.force(ctx, reason)
		}
		return
	}

	o.pendingForce = ""

	metrics.Submissions.WithLabelValues(metrics.ResultSuccess).Inc()
	if err := o.store.Clear(ctx, o.ref.SessionID); err != nil {
		o.log.Warn().Err(err).Msg("Failed to clear checkpoint after submission")
	}
	o.clock.Stop()
	o.monitor.Disarm()
	o.phase = model.PhaseSubmitted
	o.closed = true
	o.log.Info().Msg("Session submitted")
	o.notify(model.NoticeInfo, "submitted", "Your test has been submitted.")
}

func (o *Orchestrator) buildSubmission(forced bool, reason string) model.Submission {
	questions := o.test.AllQuestions()
	answers := make([]model.AnswerRecord, 0, len(questions))
	for _, q := range questions {
		a, _ := o.ledger.Answer(q.ID)
		answers = append(answers, model.AnswerRecord{
			QuestionID:       q.ID,
			SelectedAnswer:   a,
			TimeSpentSeconds: o.ledger.TimeSpent(q.ID),
		})
	}

	now := o.now()
	minutes := 0
	if !o.startedAt.IsZero() && now.After(o.startedAt) {
		minutes = int(now.Sub(o.startedAt) / time.Minute)
	}

	return model.Submission{
		SessionRef:        o.ref,
		Answers:           answers,
		TimeSpentMinutes:  minutes,
		CodingSubmissions: o.coding.Submissions(),
		ViolationCount:    o.monitor.Count(),
		Forced:            forced,
		Reason:            reason,
		SubmittedAt:       now,
	}
}

// Checkpoint builds the durable snapshot of the session.
func (o *Orchestrator) Checkpoint() *model.Checkpoint {
	now := o.now()
	cp := &model.Checkpoint{SavedAt: now.UnixMilli()}
	o.ledger.snapshot(cp)

	violations := o.monitor.Count()
	cp.ViolationCount = &violations
	completed := o.mcqCompleted
	cp.McqCompleted = &completed
	forced := o.forcedCoding
	cp.ForcedCoding = &forced
	selected := o.coding.Selected()
	cp.SelectedCodingQuestionID = &selected
	cp.CodingSubmissions = o.coding.Submissions()

	if !o.startedAt.IsZero() {
		started := o.startedAt.UnixMilli()
		cp.StartedAt = &started
	}
	if !o.deadline.IsZero() {
		deadline := o.deadline.UnixMilli()
		cp.DeadlineAt = &deadline
	}
	remaining := o.clock.Remaining()
	cp.RemainingSeconds = &remaining
	return cp
}

func (o *Orchestrator) save(ctx context.Context) {
	if err := o.store.Save(ctx, o.ref.SessionID, o.Checkpoint()); err != nil {
		metrics.CheckpointSaves.WithLabelValues(metrics.ResultFailure).Inc()
		o.log.Warn().Err(err).Msg("Checkpoint save failed")
		return
	}
	metrics.CheckpointSaves.WithLabelValues(metrics.ResultSuccess).Inc()
}

// changed persists eagerly when configured to.
func (o *Orchestrator) changed(ctx context.Context) {
	if o.cfg.CheckpointOnChange && o.phase.Active() && !o.submitting && !o.closed {
		o.save(ctx)
	}
}

func (o *Orchestrator) journalAnswer(ctx context.Context, questionID, answer string) {
	if err := o.journal.RecordAnswer(ctx, o.ref, questionID, answer); err != nil {
		o.log.Warn().Err(err).Str("question_id", questionID).Msg("Failed to journal answer")
	}
}

// require gates user operations on the current phase.
func (o *Orchestrator) require(phases ...model.Phase) error {
	if o.closed {
		return ErrSessionClosed
	}
	if o.submitting {
		return ErrSubmitting
	}
	for _, p := range phases {
		if o.phase == p {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrInvalidTransition, o.phase)
}

func (o *Orchestrator) notify(level model.NoticeLevel, code, msg string) {
	o.notices = append(o.notices, model.Notice{Level: level, Code: code, Message: msg})
}

// result drains pending notices into a Result.
func (o *Orchestrator) result() Result {
	r := Result{Phase: o.phase, Notices: o.notices, Exit: o.closed}
	o.notices = nil
	return r
}

func ceilSeconds(d time.Duration) int {
	return int(math.Ceil(d.Seconds()))
}
