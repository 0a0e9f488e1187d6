package session

import (
	"fmt"

	"github.com/stemsi/exstem-proctor/internal/model"
)

// CodingBridge tracks the selected coding question and the results the
// coding sandbox reports back. Execution itself happens elsewhere.
type CodingBridge struct {
	questions   []model.CodingQuestion
	selected    string
	submissions []model.CodingSubmission
}

// NewCodingBridge creates a bridge with nothing selected.
func NewCodingBridge(questions []model.CodingQuestion) *CodingBridge {
	return &CodingBridge{questions: questions}
}

// SelectQuestion points the bridge at a coding question. Questions can be
// revisited in any order.
func (b *CodingBridge) SelectQuestion(id string) error {
	for _, q := range b.questions {
		if q.ID == id {
			b.selected = id
			return nil
		}
	}
	return fmt.Errorf("%w: coding question %s", ErrUnknownQuestion, id)
}

// SelectFirst selects the first coding question when nothing is selected yet.
func (b *CodingBridge) SelectFirst() {
	if b.selected == "" && len(b.questions) > 0 {
		b.selected = b.questions[0].ID
	}
}

// RecordSubmission appends a sandbox result. Entries are never deduplicated
// and scores are taken as reported.
func (b *CodingBridge) RecordSubmission(submissionID string, score float64) model.CodingSubmission {
	s := model.CodingSubmission{SubmissionID: submissionID, QuestionID: b.selected, Score: score}
	b.submissions = append(b.submissions, s)
	return s
}

// Selected returns the selected coding question id, or "".
func (b *CodingBridge) Selected() string { return b.selected }

// Submissions returns a copy of the recorded submissions in arrival order.
func (b *CodingBridge) Submissions() []model.CodingSubmission {
	out := make([]model.CodingSubmission, len(b.submissions))
	copy(out, b.submissions)
	return out
}

func (b *CodingBridge) restore(cp *model.Checkpoint) {
	if cp.SelectedCodingQuestionID != nil && *cp.SelectedCodingQuestionID != "" {
		_ = b.SelectQuestion(*cp.SelectedCodingQuestionID)
	}
	if len(cp.CodingSubmissions) > 0 {
		b.submissions = append(b.submissions[:0], cp.CodingSubmissions...)
	}
}
