package websocket

import "time"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionPing Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError Event = "error"
	EventPong  Event = "pong"

	// EventPrincipalChanged tells the client its roles, permissions or
	// verification state changed and it should re-probe /auth/details.
	EventPrincipalChanged Event = "principal_changed"
	// EventSessionRevoked tells the client its token is no longer valid.
	EventSessionRevoked Event = "session_revoked"
)

// SessionEvent is published on a user's redis channel and relayed as-is
// to that user's open event streams. A session_revoked event with a TokenID
// only concerns the stream opened with that token; without one it ends
// every stream of the user.
type SessionEvent struct {
	Event   Event     `json:"event"`
	UserID  string    `json:"userId"`
	TokenID string    `json:"tokenId,omitempty"`
	At      time.Time `json:"at"`
}

// Concerns reports whether the event applies to a stream opened with tokenID.
func (e SessionEvent) Concerns(tokenID string) bool {
	return e.Event != EventSessionRevoked || e.TokenID == "" || e.TokenID == tokenID
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
