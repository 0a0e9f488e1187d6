package session

import (
	"fmt"
	"sort"

	"github.com/stemsi/exstem-proctor/internal/model"
)

// Ledger owns per-question answer state, review and visit flags and the
// current position inside the MCQ sections. It never looks at the clock or
// the violation monitor.
type Ledger struct {
	sections []model.Section
	index    map[string]position

	answers   map[string]string
	marked    map[string]struct{}
	visited   map[string]struct{}
	timeSpent map[string]int

	sectionIdx  int
	questionIdx int
}

type position struct {
	section  int
	question int
}

// NewLedger creates a ledger positioned at the first question of the first section.
func NewLedger(sections []model.Section) *Ledger {
	l := &Ledger{
		sections:  sections,
		index:     make(map[string]position),
		answers:   make(map[string]string),
		marked:    make(map[string]struct{}),
		visited:   make(map[string]struct{}),
		timeSpent: make(map[string]int),
	}
	for si, s := range sections {
		for qi, q := range s.Questions {
			l.index[q.ID] = position{section: si, question: qi}
		}
	}
	return l
}

// SelectAnswer records optionLabel as the answer to questionID. Answering a
// question also marks it visited. Only questions of the current section can
// be changed.
func (l *Ledger) SelectAnswer(questionID, optionLabel string) error {
	q, err := l.editable(questionID)
	if err != nil {
		return err
	}
	if !q.HasOption(optionLabel) {
		return fmt.Errorf("%w: %q on %s", ErrInvalidOption, optionLabel, questionID)
	}
	l.answers[questionID] = optionLabel
	l.visited[questionID] = struct{}{}
	return nil
}

// ClearResponse removes both the answer and the review flag of a question.
func (l *Ledger) ClearResponse(questionID string) error {
	if _, err := l.editable(questionID); err != nil {
		return err
	}
	delete(l.answers, questionID)
	delete(l.marked, questionID)
	return nil
}

// ToggleReviewMark flips the review flag and returns the new state.
func (l *Ledger) ToggleReviewMark(questionID string) (bool, error) {
	if _, err := l.editable(questionID); err != nil {
		return false, err
	}
	if _, ok := l.marked[questionID]; ok {
		delete(l.marked, questionID)
		return false, nil
	}
	l.marked[questionID] = struct{}{}
	l.visited[questionID] = struct{}{}
	return true, nil
}

// MarkVisited adds a question to the visited set. Repeated visits are no-ops.
func (l *Ledger) MarkVisited(questionID string) error {
	if _, err := l.editable(questionID); err != nil {
		return err
	}
	l.visited[questionID] = struct{}{}
	return nil
}

// GoTo moves to index within the current section and marks it visited.
func (l *Ledger) GoTo(index int) error {
	sec := l.currentSection()
	if sec == nil || index < 0 || index >= len(sec.Questions) {
		return fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	l.questionIdx = index
	l.visited[sec.Questions[index].ID] = struct{}{}
	return nil
}

// Advance moves to the next question of the current section. It returns true
// without moving when the current question is the last one of the section.
func (l *Ledger) Advance() bool {
	sec := l.currentSection()
	if sec == nil || l.questionIdx >= len(sec.Questions)-1 {
		return true
	}
	l.questionIdx++
	l.visited[sec.Questions[l.questionIdx].ID] = struct{}{}
	return false
}

// HasNextSection reports whether a section follows the current one.
func (l *Ledger) HasNextSection() bool {
	return l.sectionIdx+1 < len(l.sections)
}

// NextSection moves to the first question of the following section. The
// section index never moves backwards.
func (l *Ledger) NextSection() bool {
	if !l.HasNextSection() {
		return false
	}
	l.sectionIdx++
	l.questionIdx = 0
	if sec := l.currentSection(); sec != nil && len(sec.Questions) > 0 {
		l.visited[sec.Questions[0].ID] = struct{}{}
	}
	return true
}

// VisitCurrent marks the current question visited.
func (l *Ledger) VisitCurrent() {
	if q := l.CurrentQuestion(); q != nil {
		l.visited[q.ID] = struct{}{}
	}
}

// Credit adds seconds to the time spent on the current question.
func (l *Ledger) Credit(seconds int) {
	if q := l.CurrentQuestion(); q != nil && seconds > 0 {
		l.timeSpent[q.ID] += seconds
	}
}

// SectionCounts partitions the active section's questions.
func (l *Ledger) SectionCounts() model.SectionCounts {
	return l.SectionCountsAt(l.sectionIdx)
}

// SectionCountsAt partitions the questions of section i. A marked question
// counts as marked whatever its answer; answered beats visited.
func (l *Ledger) SectionCountsAt(i int) model.SectionCounts {
	var c model.SectionCounts
	if i < 0 || i >= len(l.sections) {
		return c
	}
	for _, q := range l.sections[i].Questions {
		_, marked := l.marked[q.ID]
		_, answered := l.answers[q.ID]
		_, visited := l.visited[q.ID]
		switch {
		case marked:
			c.Marked++
		case answered:
			c.Answered++
		case visited:
			c.NotAnswered++
		default:
			c.NotVisited++
		}
	}
	return c
}

// Position returns the current section and question indices.
func (l *Ledger) Position() (section, question int) {
	return l.sectionIdx, l.questionIdx
}

// CurrentQuestion returns the question under the cursor, or nil when the
// ledger has no questions.
func (l *Ledger) CurrentQuestion() *model.Question {
	sec := l.currentSection()
	if sec == nil || l.questionIdx >= len(sec.Questions) {
		return nil
	}
	return &sec.Questions[l.questionIdx]
}

// Answer returns the recorded answer for a question.
func (l *Ledger) Answer(questionID string) (string, bool) {
	a, ok := l.answers[questionID]
	return a, ok
}

// Answers returns a copy of the answer map.
func (l *Ledger) Answers() map[string]string {
	out := make(map[string]string, len(l.answers))
	for k, v := range l.answers {
		out[k] = v
	}
	return out
}

// TimeSpent returns the seconds credited to a question.
func (l *Ledger) TimeSpent(questionID string) int { return l.timeSpent[questionID] }

// Marked returns the review-flagged question ids in traversal order.
func (l *Ledger) Marked() []string { return l.ordered(l.marked) }

// Visited returns the visited question ids in traversal order.
func (l *Ledger) Visited() []string { return l.ordered(l.visited) }

// IsVisited reports whether a question has been visited.
func (l *Ledger) IsVisited(questionID string) bool {
	_, ok := l.visited[questionID]
	return ok
}

// IsMarked reports whether a question carries a review flag.
func (l *Ledger) IsMarked(questionID string) bool {
	_, ok := l.marked[questionID]
	return ok
}

func (l *Ledger) snapshot(cp *model.Checkpoint) {
	cp.Answers = l.Answers()
	cp.MarkedForReview = l.Marked()
	cp.Visited = l.Visited()
	si, qi := l.sectionIdx, l.questionIdx
	cp.SectionIndex = &si
	cp.QuestionIndex = &qi
	if len(l.timeSpent) > 0 {
		cp.TimeSpent = make(map[string]int, len(l.timeSpent))
		for k, v := range l.timeSpent {
			cp.TimeSpent[k] = v
		}
	}
}

// restore overwrites ledger state from a checkpoint field by field. Unknown
// question ids and out-of-range positions are dropped; it reports what it
// had to repair.
func (l *Ledger) restore(cp *model.Checkpoint) (repaired []string) {
	for qid, label := range cp.Answers {
		q, err := l.question(qid)
		if err != nil || !q.HasOption(label) {
			repaired = append(repaired, "answer:"+qid)
			continue
		}
		l.answers[qid] = label
	}
	for _, qid := range cp.MarkedForReview {
		if _, ok := l.index[qid]; ok {
			l.marked[qid] = struct{}{}
		}
	}
	for _, qid := range cp.Visited {
		if _, ok := l.index[qid]; ok {
			l.visited[qid] = struct{}{}
		}
	}
	for qid, secs := range cp.TimeSpent {
		if _, ok := l.index[qid]; ok && secs > 0 {
			l.timeSpent[qid] = secs
		}
	}
	// An answered question is a visited question.
	for qid := range l.answers {
		if _, ok := l.visited[qid]; !ok {
			l.visited[qid] = struct{}{}
			repaired = append(repaired, "visited:"+qid)
		}
	}

	if cp.SectionIndex != nil {
		if si := *cp.SectionIndex; si >= 0 && si < len(l.sections) {
			l.sectionIdx = si
		} else {
			repaired = append(repaired, "section_index")
		}
	}
	if cp.QuestionIndex != nil {
		if sec := l.currentSection(); sec != nil && *cp.QuestionIndex >= 0 && *cp.QuestionIndex < len(sec.Questions) {
			l.questionIdx = *cp.QuestionIndex
		} else {
			repaired = append(repaired, "question_index")
		}
	}
	return repaired
}

func (l *Ledger) currentSection() *model.Section {
	if l.sectionIdx < 0 || l.sectionIdx >= len(l.sections) {
		return nil
	}
	return &l.sections[l.sectionIdx]
}

func (l *Ledger) question(questionID string) (*model.Question, error) {
	pos, ok := l.index[questionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownQuestion, questionID)
	}
	return &l.sections[pos.section].Questions[pos.question], nil
}

// editable resolves a question that belongs to the current section.
func (l *Ledger) editable(questionID string) (*model.Question, error) {
	q, err := l.question(questionID)
	if err != nil {
		return nil, err
	}
	if l.index[questionID].section != l.sectionIdx {
		return nil, fmt.Errorf("%w: %s", ErrSectionLocked, questionID)
	}
	return q, nil
}

func (l *Ledger) ordered(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for qid := range set {
		out = append(out, qid)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := l.index[out[i]], l.index[out[j]]
		if a.section != b.section {
			return a.section < b.section
		}
		return a.question < b.question
	})
	return out
}
