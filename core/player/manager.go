package player

import "sync"

// Manager owns at most one engine per playback session. The single media
// handle belongs to exactly one engine at a time; switching songs goes
// through the same engine's Load, which resets it, and closing a session
// releases the engine entirely.
type Manager struct {
	mu      sync.Mutex
	engines map[string]*Engine
}

// NewManager creates an empty manager.
func NewManager() *Manager {
	return &Manager{engines: make(map[string]*Engine)}
}

// Open returns the session's engine, creating it when absent.
func (m *Manager) Open(sessionID string) *Engine {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.engines[sessionID]; ok {
		return e
	}
	e := NewEngine()
	m.engines[sessionID] = e
	return e
}

// Close tears the session's engine down.
func (m *Manager) Close(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.engines, sessionID)
}

// Count reports the number of live sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.engines)
}
