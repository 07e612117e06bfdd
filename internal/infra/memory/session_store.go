package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"quiz-session-service/internal/domain"
)

// SessionStore is an in-memory implementation of app.EphemeralStore with
// per-key expiry.
type SessionStore struct {
	mu       sync.Mutex
	now      func() time.Time
	sessions map[string]ephemeralEntry
}

type ephemeralEntry struct {
	steps     []string
	expiresAt time.Time
}

func NewSessionStore() *SessionStore {
	return NewSessionStoreWithClock(time.Now)
}

// NewSessionStoreWithClock allows simulated expiry in tests.
func NewSessionStoreWithClock(now func() time.Time) *SessionStore {
	return &SessionStore{
		now:      now,
		sessions: make(map[string]ephemeralEntry),
	}
}

func (s *SessionStore) Set(_ context.Context, key string, steps []string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(key, steps, ttl)
	return nil
}

func (s *SessionStore) SetIfAbsent(_ context.Context, key string, steps []string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.liveLocked(key); ok {
		return false, nil
	}
	s.setLocked(key, steps, ttl)
	return true, nil
}

func (s *SessionStore) Get(_ context.Context, key string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.liveLocked(key)
	if !ok {
		return nil, fmt.Errorf("%w: session %s", domain.ErrNotFound, key)
	}
	return append([]string(nil), entry.steps...), nil
}

func (s *SessionStore) TTL(_ context.Context, key string) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.liveLocked(key)
	if !ok {
		return 0, fmt.Errorf("%w: session %s", domain.ErrNotFound, key)
	}
	return entry.expiresAt.Sub(s.now()), nil
}

func (s *SessionStore) setLocked(key string, steps []string, ttl time.Duration) {
	s.sessions[key] = ephemeralEntry{
		steps:     append([]string(nil), steps...),
		expiresAt: s.now().Add(ttl),
	}
}

// liveLocked returns the entry if it has not expired, dropping it otherwise.
func (s *SessionStore) liveLocked(key string) (ephemeralEntry, bool) {
	entry, ok := s.sessions[key]
	if !ok {
		return ephemeralEntry{}, false
	}
	if !entry.expiresAt.After(s.now()) {
		delete(s.sessions, key)
		return ephemeralEntry{}, false
	}
	return entry, true
}
