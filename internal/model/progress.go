package model

import "time"

// SubmissionSummary is a persisted final submission as proctors see it.
type SubmissionSummary struct {
	SessionID        string    `json:"session_id"`
	CandidateID      string    `json:"candidate_id"`
	AnsweredCount    int       `json:"answered_count"`
	CodingCount      int       `json:"coding_count"`
	ViolationCount   int       `json:"violation_count"`
	TimeSpentMinutes int       `json:"time_spent_minutes"`
	Forced           bool      `json:"forced"`
	Reason           string    `json:"reason,omitempty"`
	SubmittedAt      time.Time `json:"submitted_at"`
}

// CandidateProgress is one candidate's row on the proctor dashboard.
type CandidateProgress struct {
	CandidateID    string       `json:"candidate_id"`
	Live           *SessionView `json:"live,omitempty"`
	AnsweredCount  int64        `json:"answered_count"`
	ViolationCount int64        `json:"violation_count"`
	Submitted      bool         `json:"submitted"`
}

// TestProgress aggregates live and persisted progress for one test.
type TestProgress struct {
	TestID          string              `json:"test_id"`
	Candidates      []CandidateProgress `json:"candidates"`
	LiveSessions    int                 `json:"live_sessions"`
	Submissions     []SubmissionSummary `json:"submissions"`
	TotalViolations int64               `json:"total_violations"`
	GeneratedAt     time.Time           `json:"generated_at"`
}
