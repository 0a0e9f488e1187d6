package model

import (
	"errors"
	"fmt"
)

// OptionLabels are the four labels a multiple-choice question offers.
var OptionLabels = []string{"A", "B", "C", "D"}

// Option is one labeled answer choice of a Question.
type Option struct {
	Label    string `json:"label" binding:"required,oneof=A B C D"`
	Text     string `json:"text" binding:"max=2000"`
	ImageURL string `json:"image_url,omitempty" binding:"omitempty,max=2048"`
}

// Question is an immutable multiple-choice question.
type Question struct {
	ID       string   `json:"id" binding:"required,max=64"`
	Prompt   string   `json:"prompt" binding:"required,max=4000"`
	ImageURL string   `json:"image_url,omitempty" binding:"omitempty,max=2048"`
	Options  []Option `json:"options" binding:"required,len=4,dive"`
	Marks    float64  `json:"marks" binding:"min=0"`
}

// HasOption reports whether label is one of the question's option labels.
func (q *Question) HasOption(label string) bool {
	for _, o := range q.Options {
		if o.Label == label {
			return true
		}
	}
	return false
}

// Section is an ordered block of questions. Once exited it cannot be re-entered.
type Section struct {
	ID string `json:"id" binding:"required,max=64"`
	// Name is shown in the section header.
	Name string `json:"name" binding:"max=255"`
	// DurationMinutes is informational only; the session clock is authoritative.
	DurationMinutes int        `json:"duration_minutes" binding:"min=0"`
	Questions       []Question `json:"questions" binding:"dive"`
}

// CodingQuestion is opaque beyond its identity and point value; content and
// execution belong to the coding sandbox.
type CodingQuestion struct {
	ID     string  `json:"id" binding:"required,max=64"`
	Title  string  `json:"title" binding:"required,max=255"`
	Points float64 `json:"points" binding:"min=0"`
}

// Test is the externally supplied definition a session runs against.
type Test struct {
	ID   string `json:"id"`
	Name string `json:"name" binding:"required,min=1,max=255"`
	// Type only changes what the submission confirmation displays.
	Type             string           `json:"type" binding:"max=64"`
	HasSections      bool             `json:"has_sections"`
	Sections         []Section        `json:"sections,omitempty" binding:"omitempty,dive"`
	Questions        []Question       `json:"questions,omitempty" binding:"omitempty,dive"`
	HasCodingSection bool             `json:"has_coding_section"`
	CodingQuestions  []CodingQuestion `json:"coding_questions,omitempty" binding:"omitempty,dive"`
	DurationSeconds  int              `json:"duration_seconds" binding:"required,min=1,max=86400"`
	TotalMarks       float64          `json:"total_marks" binding:"min=0"`
}

// MCQSections returns the sections a session walks through. A flat test is
// presented as a single implicit section.
func (t *Test) MCQSections() []Section {
	if t.HasSections {
		return t.Sections
	}
	if len(t.Questions) == 0 {
		return nil
	}
	return []Section{{ID: t.ID, Name: t.Name, Questions: t.Questions}}
}

// AllQuestions returns every MCQ question in traversal order.
func (t *Test) AllQuestions() []Question {
	var out []Question
	for _, s := range t.MCQSections() {
		out = append(out, s.Questions...)
	}
	return out
}

// HasMCQ reports whether the test has at least one multiple-choice question.
func (t *Test) HasMCQ() bool {
	for _, s := range t.MCQSections() {
		if len(s.Questions) > 0 {
			return true
		}
	}
	return false
}

// HasCoding reports whether the test carries a coding section with content.
func (t *Test) HasCoding() bool {
	return t.HasCodingSection && len(t.CodingQuestions) > 0
}

// Validate checks the structural rules binding tags cannot express.
func (t *Test) Validate() error {
	if !t.HasMCQ() && !t.HasCoding() {
		return errors.New("test has neither questions nor a coding section")
	}

	seen := make(map[string]struct{})
	for si, s := range t.MCQSections() {
		if t.HasSections && len(s.Questions) == 0 {
			return fmt.Errorf("section %d (%s) has no questions", si, s.ID)
		}
		for _, q := range s.Questions {
			if _, dup := seen[q.ID]; dup {
				return fmt.Errorf("duplicate question id %q", q.ID)
			}
			seen[q.ID] = struct{}{}

			if len(q.Options) != len(OptionLabels) {
				return fmt.Errorf("question %q must have %d options", q.ID, len(OptionLabels))
			}
			for i, o := range q.Options {
				if o.Label != OptionLabels[i] {
					return fmt.Errorf("question %q option %d must be labeled %s", q.ID, i, OptionLabels[i])
				}
			}
		}
	}

	coding := make(map[string]struct{})
	for _, cq := range t.CodingQuestions {
		if _, dup := coding[cq.ID]; dup {
			return fmt.Errorf("duplicate coding question id %q", cq.ID)
		}
		coding[cq.ID] = struct{}{}
	}
	return nil
}
