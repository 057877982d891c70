package auth

import (
	"sync"
	"time"
)

// MemorySessionStore is the in-process SessionStore. Sessions are
// ephemeral: a restart logs everyone out, which is acceptable for this
// deployment shape.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

var _ SessionStore = (*MemorySessionStore)(nil)

// NewMemorySessionStore constructs an empty store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]*Session)}
}

func (s *MemorySessionStore) Put(sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.Token] = sess
}

// Get returns a copy so callers never mutate shared state outside Put.
func (s *MemorySessionStore) Get(token string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[token]
	if !ok {
		return nil, false
	}
	cp := *sess
	return &cp, true
}

func (s *MemorySessionStore) Delete(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
}

// Replace installs sess under its new token and invalidates the old one
// in a single critical section, so no request can observe both tokens
// live or neither.
func (s *MemorySessionStore) Replace(oldToken string, sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, oldToken)
	s.sessions[sess.Token] = sess
}

func (s *MemorySessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *MemorySessionStore) Sweep(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed int
	for token, sess := range s.sessions {
		if sess.LastActivity.Before(cutoff) {
			delete(s.sessions, token)
			removed++
		}
	}
	return removed
}
