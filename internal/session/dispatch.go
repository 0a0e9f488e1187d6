package session

import (
	"context"
	"errors"
	"fmt"
)

// Action names accepted by Dispatch.
type Action string

const (
	ActionStart          Action = "start"
	ActionCancel         Action = "cancel"
	ActionSelectAnswer   Action = "select_answer"
	ActionClearResponse  Action = "clear_response"
	ActionToggleReview   Action = "toggle_review"
	ActionGoTo           Action = "go_to"
	ActionAdvance        Action = "advance"
	ActionReviewSection  Action = "review_section"
	ActionProceedSection Action = "proceed_section"
	ActionEnterCoding    Action = "enter_coding"
	ActionSelectCoding   Action = "select_coding"
	ActionCodingResult   Action = "coding_result"
	ActionVisibility     Action = "visibility"
	ActionRequestSubmit  Action = "request_submit"
	ActionConfirmSubmit  Action = "confirm_submit"
	ActionCancelSubmit   Action = "cancel_submit"
	ActionUnload         Action = "unload"
)

// Command is one candidate action as it arrives over REST or WebSocket.
type Command struct {
	Action       Action   `json:"action" binding:"required,max=32"`
	Accepted     bool     `json:"accepted,omitempty"`
	QuestionID   string   `json:"question_id,omitempty" binding:"max=64"`
	Option       string   `json:"option,omitempty" binding:"omitempty,oneof=A B C D"`
	Index        *int     `json:"index,omitempty" binding:"omitempty,min=0"`
	SubmissionID string   `json:"submission_id,omitempty" binding:"max=128"`
	Score        *float64 `json:"score,omitempty"`
	Hidden       *bool    `json:"hidden,omitempty"`
}

var errMissingField = errors.New("missing field")

// Dispatch routes a Command to the matching operation.
func (o *Orchestrator) Dispatch(ctx context.Context, cmd Command) (Result, error) {
	switch cmd.Action {
	case ActionStart:
		return o.Start(ctx, cmd.Accepted)
	case ActionCancel:
		return o.Cancel()
	case ActionSelectAnswer:
		if cmd.QuestionID == "" || cmd.Option == "" {
			return o.result(), fmt.Errorf("%w: question_id and option", errMissingField)
		}
		return o.SelectAnswer(ctx, cmd.QuestionID, cmd.Option)
	case ActionClearResponse:
		return o.ClearResponse(ctx, cmd.QuestionID)
	case ActionToggleReview:
		return o.ToggleReviewMark(ctx, cmd.QuestionID)
	case ActionGoTo:
		if cmd.Index == nil {
			return o.result(), fmt.Errorf("%w: index", errMissingField)
		}
		return o.GoTo(ctx, *cmd.Index)
	case ActionAdvance:
		return o.Advance(ctx)
	case ActionReviewSection:
		return o.ReviewSection()
	case ActionProceedSection:
		return o.ProceedSection(ctx)
	case ActionEnterCoding:
		return o.EnterCoding(ctx)
	case ActionSelectCoding:
		return o.SelectCodingQuestion(ctx, cmd.QuestionID)
	case ActionCodingResult:
		if cmd.SubmissionID == "" || cmd.Score == nil {
			return o.result(), fmt.Errorf("%w: submission_id and score", errMissingField)
		}
		return o.RecordCodingSubmission(ctx, cmd.SubmissionID, *cmd.Score)
	case ActionVisibility:
		if cmd.Hidden == nil {
			return o.result(), fmt.Errorf("%w: hidden", errMissingField)
		}
		if *cmd.Hidden {
			return o.VisibilityHidden(ctx), nil
		}
		return o.VisibilityVisible(), nil
	case ActionRequestSubmit:
		return o.RequestSubmit()
	case ActionConfirmSubmit:
		return o.ConfirmSubmit(ctx)
	case ActionCancelSubmit:
		return o.CancelSubmit()
	case ActionUnload:
		return o.Unload(ctx), nil
	default:
		return o.result(), fmt.Errorf("%w: %q", ErrUnknownAction, cmd.Action)
	}
}

// IsBadCommand reports whether err came from a malformed command rather than
// from session state.
func IsBadCommand(err error) bool {
	return errors.Is(err, errMissingField) || errors.Is(err, ErrUnknownAction)
}
