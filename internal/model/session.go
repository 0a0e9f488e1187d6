package model

import "time"

// Phase is the top-level discriminant of session progress.
type Phase string

const (
	PhaseInstructions           Phase = "INSTRUCTIONS"
	PhaseMcqActive              Phase = "MCQ_ACTIVE"
	PhaseSectionCompleteConfirm Phase = "SECTION_COMPLETE_CONFIRM"
	PhaseCodingTransition       Phase = "CODING_TRANSITION"
	PhaseCodingActive           Phase = "CODING_ACTIVE"
	PhaseSubmitConfirm          Phase = "SUBMIT_CONFIRM"
	PhaseSubmitted              Phase = "SUBMITTED"
)

// Active reports whether the candidate is past the instructions and not yet submitted.
func (p Phase) Active() bool {
	return p != PhaseInstructions && p != PhaseSubmitted && p != ""
}

// SectionCounts partitions a section's questions. The four fields always sum
// to the section's question count.
type SectionCounts struct {
	Answered    int `json:"answered"`
	NotAnswered int `json:"not_answered"`
	Marked      int `json:"marked"`
	NotVisited  int `json:"not_visited"`
}

// Total returns the number of questions covered by the partition.
func (c SectionCounts) Total() int {
	return c.Answered + c.NotAnswered + c.Marked + c.NotVisited
}

// CodingSubmission is one result reported by the coding sandbox.
type CodingSubmission struct {
	SubmissionID string  `json:"submission_id"`
	QuestionID   string  `json:"question_id,omitempty"`
	Score        float64 `json:"score"`
}

// AnswerRecord is one entry of the final answer array.
type AnswerRecord struct {
	QuestionID       string `json:"question_id"`
	SelectedAnswer   string `json:"selected_answer"`
	TimeSpentSeconds int    `json:"time_spent_seconds"`
}

// SessionRef identifies a candidate's session for one test.
type SessionRef struct {
	SessionID   string `json:"session_id"`
	TestID      string `json:"test_id"`
	CandidateID string `json:"candidate_id"`
}

// Submission is the payload handed to the submission collaborator.
type Submission struct {
	SessionRef
	Answers           []AnswerRecord     `json:"answers"`
	TimeSpentMinutes  int                `json:"time_spent_minutes"`
	CodingSubmissions []CodingSubmission `json:"coding_submissions"`
	ViolationCount    int                `json:"violation_count"`
	Forced            bool               `json:"forced"`
	Reason            string             `json:"reason,omitempty"`
	SubmittedAt       time.Time          `json:"submitted_at"`
}

// Checkpoint is the durable snapshot used to resume after a reload. Every
// field is optional on read so older or partial records still hydrate.
type Checkpoint struct {
	Answers                  map[string]string  `json:"answers,omitempty"`
	MarkedForReview          []string           `json:"marked_for_review,omitempty"`
	Visited                  []string           `json:"visited,omitempty"`
	SectionIndex             *int               `json:"section_index,omitempty"`
	QuestionIndex            *int               `json:"question_index,omitempty"`
	ViolationCount           *int               `json:"violation_count,omitempty"`
	McqCompleted             *bool              `json:"mcq_completed,omitempty"`
	ForcedCoding             *bool              `json:"forced_coding,omitempty"`
	SelectedCodingQuestionID *string            `json:"selected_coding_question_id,omitempty"`
	CodingSubmissions        []CodingSubmission `json:"coding_submissions,omitempty"`
	TimeSpent                map[string]int     `json:"time_spent,omitempty"`
	// StartedAt and DeadlineAt are Unix milliseconds.
	StartedAt        *int64 `json:"started_at,omitempty"`
	DeadlineAt       *int64 `json:"deadline_at,omitempty"`
	RemainingSeconds *int   `json:"remaining_seconds,omitempty"`
	SavedAt          int64  `json:"saved_at,omitempty"`
}

// NoticeLevel grades a Notice for the presentation layer.
type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeWarning NoticeLevel = "warning"
	NoticeError   NoticeLevel = "error"
)

// Notice is a transient message the presentation layer may show as a toast.
type Notice struct {
	Level   NoticeLevel `json:"level"`
	Code    string      `json:"code"`
	Message string      `json:"message"`
}

// SessionView is a read-only snapshot of a session for rendering.
type SessionView struct {
	SessionID                string             `json:"session_id"`
	TestID                   string             `json:"test_id"`
	CandidateID              string             `json:"candidate_id"`
	TestType                 string             `json:"test_type,omitempty"`
	Phase                    Phase              `json:"phase"`
	SectionIndex             int                `json:"section_index"`
	QuestionIndex            int                `json:"question_index"`
	CurrentQuestionID        string             `json:"current_question_id,omitempty"`
	Answers                  map[string]string  `json:"answers"`
	MarkedForReview          []string           `json:"marked_for_review"`
	Visited                  []string           `json:"visited"`
	SectionCounts            SectionCounts      `json:"section_counts"`
	RemainingSeconds         int                `json:"remaining_seconds"`
	ViolationCount           int                `json:"violation_count"`
	ViolationThreshold       int                `json:"violation_threshold"`
	McqCompleted             bool               `json:"mcq_completed"`
	SelectedCodingQuestionID string             `json:"selected_coding_question_id,omitempty"`
	CodingSubmissions        []CodingSubmission `json:"coding_submissions"`
	Submitting               bool               `json:"submitting"`
}
