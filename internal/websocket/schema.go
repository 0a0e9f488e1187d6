package websocket

import (
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/session"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

// ActionPing keeps the stream alive; every other action is a session command.
const ActionPing session.Action = "ping"

// ClientMessage is one session command plus an optional correlation ref the
// server echoes back on errors.
type ClientMessage struct {
	session.Command
	Ref string `json:"ref,omitempty" binding:"max=64"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventState  Event = "state"
	EventScreen Event = "screen"
	EventExit   Event = "exit"
	EventError  Event = "error"
	EventPong   Event = "pong"
)

// UpdateMessage carries a session update to the client.
type UpdateMessage struct {
	Event      Event              `json:"event"`
	View       *model.SessionView `json:"view,omitempty"`
	Notices    []model.Notice     `json:"notices,omitempty"`
	Fullscreen *bool              `json:"fullscreen,omitempty"`
}

type ErrorResponse struct {
	Event  Event             `json:"event"`
	Code   string            `json:"code"`
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
	Ref    string            `json:"ref,omitempty"`
}

type PongResponse struct {
	Event Event  `json:"event"`
	Ref   string `json:"ref,omitempty"`
}

// FromUpdate maps a runner update onto the wire format.
func FromUpdate(u session.Update) UpdateMessage {
	ev := EventState
	switch u.Kind {
	case session.UpdateScreen:
		ev = EventScreen
	case session.UpdateExit:
		ev = EventExit
	}
	return UpdateMessage{Event: ev, View: u.View, Notices: u.Notices, Fullscreen: u.Fullscreen}
}

// StateMessage wraps a plain view, used for the snapshot sent on connect.
func StateMessage(v model.SessionView) UpdateMessage {
	return UpdateMessage{Event: EventState, View: &v}
}
