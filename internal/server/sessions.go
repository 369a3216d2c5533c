package server

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nutanixed/prism-vnc-proxy/internal/console"
)

// ConsoleSession tracks one managed console channel.
type ConsoleSession struct {
	ID         string
	VMUUID     string
	SourceIP   string
	StartedAt  time.Time
	Controller *console.Controller
}

// SessionManager tracks active console sessions by ID.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*ConsoleSession
}

func NewSessionManager() *SessionManager {
	return &SessionManager{sessions: make(map[string]*ConsoleSession)}
}

// Add registers a new session and returns its generated ID.
func (m *SessionManager) Add(vmUUID, sourceIP string, ctrl *console.Controller) *ConsoleSession {
	sess := &ConsoleSession{
		ID:         uuid.NewString(),
		VMUUID:     vmUUID,
		SourceIP:   sourceIP,
		StartedAt:  time.Now(),
		Controller: ctrl,
	}
	m.mu.Lock()
	m.sessions[sess.ID] = sess
	m.mu.Unlock()
	return sess
}

// Remove drops a session from tracking.
func (m *SessionManager) Remove(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// Get returns a session by ID, or nil.
func (m *SessionManager) Get(id string) *ConsoleSession {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[id]
}

// List returns a snapshot of active sessions.
func (m *SessionManager) List() []*ConsoleSession {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*ConsoleSession, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

// Count returns the number of active sessions.
func (m *SessionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// CloseAll ends every active session. Used during shutdown.
func (m *SessionManager) CloseAll() {
	m.mu.Lock()
	sessions := make([]*ConsoleSession, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*ConsoleSession)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Controller.EndSession()
	}
}
