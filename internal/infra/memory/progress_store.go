package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"quiz-session-service/internal/domain"
)

// ProgressStore keeps durable sessions in memory. Save is a compare-and-swap
// on Session.Version under the store lock.
type ProgressStore struct {
	mu       sync.RWMutex
	sessions map[progressKey]domain.Session
}

type progressKey struct {
	userID string
	quizID string
}

func NewProgressStore() *ProgressStore {
	return &ProgressStore{sessions: make(map[progressKey]domain.Session)}
}

func (s *ProgressStore) FindOne(_ context.Context, userID, quizID string) (domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[progressKey{userID, quizID}]
	if !ok {
		return domain.Session{}, fmt.Errorf("%w: session for quiz %s", domain.ErrNotFound, quizID)
	}
	return cloneSession(session), nil
}

func (s *ProgressStore) Create(_ context.Context, session domain.Session) (domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := progressKey{session.UserID, session.QuizID}
	if _, ok := s.sessions[key]; ok {
		return domain.Session{}, domain.ErrAlreadyStarted
	}
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	session.Version = 0
	s.sessions[key] = cloneSession(session)
	return session, nil
}

func (s *ProgressStore) Save(_ context.Context, session domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := progressKey{session.UserID, session.QuizID}
	current, ok := s.sessions[key]
	if !ok {
		return fmt.Errorf("%w: session for quiz %s", domain.ErrNotFound, session.QuizID)
	}
	if current.Version != session.Version {
		return domain.ErrConcurrentUpdate
	}
	session.Version++
	s.sessions[key] = cloneSession(session)
	return nil
}

// ListByUser returns sessions oldest first.
func (s *ProgressStore) ListByUser(_ context.Context, userID string) ([]domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Session, 0)
	for key, session := range s.sessions {
		if key.userID == userID {
			out = append(out, cloneSession(session))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func cloneSession(s domain.Session) domain.Session {
	progress := make([]domain.ProgressEntry, len(s.Progress))
	for i, entry := range s.Progress {
		entry.Answer = append([]string(nil), entry.Answer...)
		progress[i] = entry
	}
	s.Progress = progress
	return s
}
