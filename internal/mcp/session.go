package mcp

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/promptliano/promptliano/internal/ident"
)

// Transport identifies how a session is attached; the idle TTL
// depends on it.
type Transport string

const (
	TransportStdio Transport = "stdio"
	TransportHTTP  Transport = "http"
)

// Session is one client binding established by initialize.
type Session struct {
	ID           string
	ProjectID    *int64
	Transport    Transport
	CreatedAt    time.Time
	LastActivity time.Time
	Capabilities map[string]interface{}
	ClientInfo   ClientInfo
}

// SessionManager owns the session table and its TTL sweep.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	clock    ident.Clock
	log      *zap.Logger
	ttlStdio time.Duration
	ttlHTTP  time.Duration
	sweep    time.Duration

	stop chan struct{}
	done chan struct{}
}

// NewSessionManager creates a manager; call Start to begin sweeping.
func NewSessionManager(clock ident.Clock, log *zap.Logger, ttlStdio, ttlHTTP, sweep time.Duration) *SessionManager {
	return &SessionManager{
		sessions: make(map[string]*Session),
		clock:    clock,
		log:      log.Named("sessions"),
		ttlStdio: ttlStdio,
		ttlHTTP:  ttlHTTP,
		sweep:    sweep,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Create registers a new session and returns it.
func (m *SessionManager) Create(transport Transport, projectID *int64, caps map[string]interface{}, client ClientInfo) *Session {
	now := m.clock.Now()
	s := &Session{
		ID:           uuid.NewString(),
		ProjectID:    projectID,
		Transport:    transport,
		CreatedAt:    now,
		LastActivity: now,
		Capabilities: caps,
		ClientInfo:   client,
	}
	m.mu.Lock()
	m.sessions[s.ID] = s
	n := len(m.sessions)
	m.mu.Unlock()
	sessionsActive.Set(float64(n))
	m.log.Debug("session created",
		zap.String("session_id", s.ID),
		zap.String("transport", string(transport)),
		zap.String("client", client.Name))
	return s
}

// Touch looks up a session and refreshes its activity timestamp.
func (m *SessionManager) Touch(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	s.LastActivity = m.clock.Now()
	return s, true
}

// Get looks up a session without refreshing activity.
func (m *SessionManager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// BindProject attaches a project to the session.
func (m *SessionManager) BindProject(id string, projectID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		s.ProjectID = &projectID
	}
}

// Remove drops a session, typically on transport close.
func (m *SessionManager) Remove(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	n := len(m.sessions)
	m.mu.Unlock()
	sessionsActive.Set(float64(n))
}

// Count reports live sessions.
func (m *SessionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// SweepOnce evicts sessions idle past their transport TTL and
// returns how many were removed.
func (m *SessionManager) SweepOnce() int {
	now := m.clock.Now()
	m.mu.Lock()
	var evicted int
	for id, s := range m.sessions {
		ttl := m.ttlHTTP
		if s.Transport == TransportStdio {
			ttl = m.ttlStdio
		}
		if now.Sub(s.LastActivity) > ttl {
			delete(m.sessions, id)
			evicted++
		}
	}
	n := len(m.sessions)
	m.mu.Unlock()
	sessionsActive.Set(float64(n))
	if evicted > 0 {
		m.log.Info("evicted idle sessions", zap.Int("count", evicted))
	}
	return evicted
}

// Start launches the background sweep ticker.
func (m *SessionManager) Start() {
	go func() {
		defer close(m.done)
		ticker := time.NewTicker(m.sweep)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.SweepOnce()
			case <-m.stop:
				return
			}
		}
	}()
}

// Stop halts the sweep loop.
func (m *SessionManager) Stop() {
	close(m.stop)
	<-m.done
}
