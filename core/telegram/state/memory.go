package state

import (
	"log/slog"
	"sync"

	"github.com/freshmanacadamy/gebeyabot/core/logger"
	tghelpers "github.com/freshmanacadamy/gebeyabot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

type memoryManager struct {
	mu       sync.RWMutex
	sessions map[int64]*Session

	handlersMu sync.RWMutex
	handlers   map[State]tele.HandlerFunc
}

// NewMemoryManager constructs the in-memory Manager implementation. Session
// state is process-local by design; it does not survive restarts.
func NewMemoryManager() Manager {
	return &memoryManager{
		sessions: make(map[int64]*Session),
		handlers: make(map[State]tele.HandlerFunc),
	}
}

// Begin replaces any existing session with a fresh one in the given state.
func (m *memoryManager) Begin(userID int64, st State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[userID] = &Session{State: st, Data: make(map[string]any)}
}

// SetState sets the FSM state for the given user, creating a session if necessary.
func (m *memoryManager) SetState(userID int64, st State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[userID]
	if !ok {
		sess = &Session{Data: make(map[string]any)}
		m.sessions[userID] = sess
	}
	sess.State = st
}

// GetState returns the current FSM state of a user, or StateIdle if none exists.
func (m *memoryManager) GetState(userID int64) State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if sess, ok := m.sessions[userID]; ok {
		return sess.State
	}
	return StateIdle
}

// SetData stores a payload key/value pair for the given user session.
func (m *memoryManager) SetData(userID int64, key string, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[userID]
	if !ok {
		sess = &Session{Data: make(map[string]any)}
		m.sessions[userID] = sess
	}
	sess.Data[key] = value
}

// GetData retrieves a payload value by key for the given user session.
func (m *memoryManager) GetData(userID int64, key string) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[userID]
	if !ok {
		return nil, false
	}
	val, ok := sess.Data[key]
	return val, ok
}

// GetString retrieves a payload value by key and asserts it as string.
func (m *memoryManager) GetString(userID int64, key string) (string, bool) {
	val, found := m.GetData(userID, key)
	if !found {
		return "", false
	}
	s, ok := val.(string)
	return s, ok
}

// GetInt64 retrieves a payload value by key and asserts it as int64.
func (m *memoryManager) GetInt64(userID int64, key string) (int64, bool) {
	val, found := m.GetData(userID, key)
	if !found {
		return 0, false
	}
	v, ok := val.(int64)
	return v, ok
}

// Clear removes the entire session for a user.
func (m *memoryManager) Clear(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
}

// InProgress reports whether the user currently has an active FSM state.
func (m *memoryManager) InProgress(userID int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[userID]
	return ok && sess.State != StateIdle
}

// RegisterHandler associates a state with its handler.
func (m *memoryManager) RegisterHandler(st State, h tele.HandlerFunc) {
	if h == nil {
		return
	}
	m.handlersMu.Lock()
	defer m.handlersMu.Unlock()
	m.handlers[st] = h
}

// ManagerHandler executes the handler function registered for the user's current state, if any.
func (m *memoryManager) ManagerHandler(c tele.Context) error {
	userID := c.Sender().ID
	current := m.GetState(userID)
	ctx := tghelpers.BuildContext(c)
	logger.Debug(ctx, "tg", "fsm.manager",
		slog.String("status", "ok"),
		slog.Int64("user_id", userID),
		slog.String("state", string(current)),
	)

	m.handlersMu.RLock()
	handler, ok := m.handlers[current]
	m.handlersMu.RUnlock()
	if ok {
		return handler(c)
	}
	return nil
}
