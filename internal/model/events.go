package model

import "time"

// AnswerEvent is a journaled answer change. An empty Answer clears the response.
type AnswerEvent struct {
	SessionRef
	QuestionID string    `json:"question_id"`
	Answer     string    `json:"answer"`
	At         time.Time `json:"at"`
}

// ViolationEvent is a journaled visibility violation with the running count.
type ViolationEvent struct {
	SessionRef
	Count int       `json:"count"`
	At    time.Time `json:"at"`
}
