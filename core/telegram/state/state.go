// Package state provides a lightweight FSM/session manager for Telegram
// conversations. A user owns at most one session at a time; starting a new
// flow overwrites whatever was in progress.
package state

import tele "gopkg.in/telebot.v4"

// State identifies a finite-state-machine step used in conversations.
type State string

const (
	// StateIdle indicates there is no active conversation with the user.
	StateIdle State = "idle"
)

// Session stores conversation state and the payload collected so far.
type Session struct {
	State State
	Data  map[string]any
}

// Manager orchestrates user sessions and FSM state transitions.
type Manager interface {
	// Begin replaces any existing session with a fresh one in the given
	// state. This is the cancel-by-overwrite entry point for new flows.
	Begin(userID int64, st State)

	SetState(userID int64, st State)
	GetState(userID int64) State

	SetData(userID int64, key string, value any)
	GetData(userID int64, key string) (any, bool)
	GetString(userID int64, key string) (string, bool)
	GetInt64(userID int64, key string) (int64, bool)

	// Clear removes the session entirely.
	Clear(userID int64)

	// InProgress reports whether the user has an active non-idle state.
	InProgress(userID int64) bool

	// RegisterHandler associates a state with the handler invoked for
	// updates arriving while a user sits in that state.
	RegisterHandler(st State, h tele.HandlerFunc)

	// ManagerHandler dispatches an update to the handler registered for
	// the sender's current state, if any.
	ManagerHandler(c tele.Context) error
}
