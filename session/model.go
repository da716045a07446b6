package session

import "time"

// Identity is what the client knows about the logged in user.
type Identity struct {
	Username  string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// State is an immutable snapshot of the session.
type State struct {
	Token    string
	Identity *Identity
}

// Authenticated reports whether the snapshot holds a token.
func (s State) Authenticated() bool {
	return s.Token != ""
}

// Reason tells subscribers why the session changed.
type Reason string

const (
	// ReasonRestored is sent when New adopts a persisted token.
	ReasonRestored Reason = "restored"
	// ReasonSet is sent after a successful SetToken.
	ReasonSet Reason = "set"
	// ReasonCleared is sent after Logout removed a held token.
	ReasonCleared Reason = "cleared"
	// ReasonMalformed is sent when a token failed to decode and the session was cleared.
	ReasonMalformed Reason = "malformed"
)

// Change is delivered to subscribers after every mutation.
type Change struct {
	Reason Reason
	State  State
	Err    error
}
