package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"quiz-session-service/internal/domain"
)

// QuizStore keeps quiz definitions in memory.
type QuizStore struct {
	mu      sync.RWMutex
	quizzes map[string]domain.Quiz
}

func NewQuizStore(quizzes ...domain.Quiz) *QuizStore {
	s := &QuizStore{quizzes: make(map[string]domain.Quiz)}
	for _, q := range quizzes {
		s.quizzes[q.ID] = cloneQuiz(q)
	}
	return s
}

func (s *QuizStore) GetQuiz(_ context.Context, id string) (domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	quiz, ok := s.quizzes[id]
	if !ok {
		return domain.Quiz{}, fmt.Errorf("%w: quiz %s", domain.ErrNotFound, id)
	}
	return cloneQuiz(quiz), nil
}

// CreateQuiz assigns an id when the quiz has none.
func (s *QuizStore) CreateQuiz(_ context.Context, quiz domain.Quiz) (domain.Quiz, error) {
	if err := quiz.Validate(); err != nil {
		return domain.Quiz{}, err
	}
	if quiz.ID == "" {
		quiz.ID = uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.quizzes[quiz.ID]; ok {
		return domain.Quiz{}, fmt.Errorf("%w: quiz %s exists", domain.ErrInvalidQuiz, quiz.ID)
	}
	s.quizzes[quiz.ID] = cloneQuiz(quiz)
	return quiz, nil
}

func cloneQuiz(q domain.Quiz) domain.Quiz {
	q.Steps = append([]string(nil), q.Steps...)
	return q
}
