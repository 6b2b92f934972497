package websocket

import (
	"github.com/google/uuid"
	"github.com/stemsi/classroom-backend/internal/catalog"
	"github.com/stemsi/classroom-backend/internal/examsession"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAnswer   Action = "answer"
	ActionNext     Action = "next"
	ActionPrevious Action = "previous"
	ActionSubmit   Action = "submit"
	ActionClose    Action = "close"
	ActionPing     Action = "ping"
)

// RequestPayload is every client message. Option is only read for ActionAnswer.
type RequestPayload struct {
	Action Action `json:"action"`
	Option string `json:"option,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventState  Event = "state"
	EventNotice Event = "notice"
	EventClosed Event = "closed"
	EventError  Event = "error"
	EventPong   Event = "pong"
)

// StateResponse carries the current session view. Sent every second while a
// session is open and after each accepted action.
type StateResponse struct {
	Event   Event            `json:"event"`
	Session examsession.View `json:"session"`
}

// NoticeResponse forwards a catalog notice.
type NoticeResponse struct {
	Event  Event          `json:"event"`
	Notice catalog.Notice `json:"notice"`
}

// ClosedResponse reports that the tracked session ended. Outcome is set when
// a live attempt was submitted.
type ClosedResponse struct {
	Event     Event            `json:"event"`
	SessionID uuid.UUID        `json:"session_id"`
	Outcome   *catalog.Outcome `json:"outcome,omitempty"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Code  string `json:"code"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
