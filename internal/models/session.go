package models

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SessionInfo is a point-in-time view of a Session.
type SessionInfo struct {
	ID         string     `json:"id"`
	Transport  string     `json:"transport"` // "stdio", "sse" or "streamable-http"
	Status     string     `json:"status"`    // "active" or "closed"
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	ToolCalls  int        `json:"tool_calls"`
	LastTool   string     `json:"last_tool,omitempty"`
}

// Session is one connected MCP client.
type Session struct {
	ID        string
	Transport string
	Status    string
	StartedAt time.Time

	finishedAt *time.Time
	toolCalls  int
	lastTool   string
	mu         sync.Mutex
}

// RecordCall notes a tool invocation.
func (s *Session) RecordCall(tool string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.toolCalls++
	s.lastTool = tool
}

// Close marks the session as closed.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Status == "closed" {
		return
	}
	s.Status = "closed"
	now := time.Now()
	s.finishedAt = &now
}

// Snapshot returns a copy safe to serialize while the session is in use.
func (s *Session) Snapshot() SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionInfo{
		ID:         s.ID,
		Transport:  s.Transport,
		Status:     s.Status,
		StartedAt:  s.StartedAt,
		FinishedAt: s.finishedAt,
		ToolCalls:  s.toolCalls,
		LastTool:   s.lastTool,
	}
}

// SessionStore is an in-memory thread-safe store for sessions.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionStore creates an empty session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*Session)}
}

// Create registers a new active session, assigning it a UUID.
func (s *SessionStore) Create(transport string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := &Session{
		ID:        uuid.New().String(),
		Transport: transport,
		Status:    "active",
		StartedAt: time.Now(),
	}
	s.sessions[sess.ID] = sess
	return sess
}

// Get returns a session by ID, or nil if not found.
func (s *SessionStore) Get(id string) *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[id]
}

// Remove drops a session by ID.
func (s *SessionStore) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return false
	}
	delete(s.sessions, id)
	return true
}

// List returns snapshots of all sessions, most recent first.
func (s *SessionStore) List() []SessionInfo {
	s.mu.RLock()
	result := make([]SessionInfo, 0, len(s.sessions))
	for _, sess := range s.sessions {
		result = append(result, sess.Snapshot())
	}
	s.mu.RUnlock()
	sort.Slice(result, func(i, j int) bool {
		return result[i].StartedAt.After(result[j].StartedAt)
	})
	return result
}

// Active returns the number of sessions that have not closed.
func (s *SessionStore) Active() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, sess := range s.sessions {
		sess.mu.Lock()
		if sess.Status == "active" {
			n++
		}
		sess.mu.Unlock()
	}
	return n
}
