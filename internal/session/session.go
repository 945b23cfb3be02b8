package session

import (
	"maps"
	"sync"
	"time"
)

// Session is the live view of the authenticated user. The Manager mutates it
// in place; callers holding the pointer observe every update.
type Session struct {
	mu                   sync.RWMutex
	connected            bool
	initialConnectionAt  time.Time
	lastConnectionAt     time.Time
	connectionErrorCount int
	claims               map[string]any
}

func newSession() *Session {
	return &Session{claims: make(map[string]any)}
}

// Connected reports whether the session is authenticated on a live socket.
func (s *Session) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// InitialConnectionAt is the time of the first successful authentication.
// The zero time means the session never connected.
func (s *Session) InitialConnectionAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialConnectionAt
}

// LastConnectionAt is the time of the most recent re-authentication after a
// drop. The zero time means no reconnection happened yet.
func (s *Session) LastConnectionAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastConnectionAt
}

// ConnectionErrorCount counts reconnections.
func (s *Session) ConnectionErrorCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connectionErrorCount
}

// Claims returns a copy of the merged token claims.
func (s *Session) Claims() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.claims)
}

// Claim returns a single claim.
func (s *Session) Claim(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.claims[key]
	return v, ok
}

// setConnected stores the flag and returns the previous value.
func (s *Session) setConnected(connected bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.connected
	s.connected = connected
	return prev
}

// markConnected flips the session to connected and stamps the connection
// time. It returns true for the first connection ever.
func (s *Session) markConnected(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.connected = true
	if s.initialConnectionAt.IsZero() {
		s.initialConnectionAt = now
		return true
	}
	s.lastConnectionAt = now
	s.connectionErrorCount++
	return false
}

func (s *Session) mergeClaims(claims map[string]any) {
	s.mu.Lock()
	maps.Copy(s.claims, claims)
	s.mu.Unlock()
}
