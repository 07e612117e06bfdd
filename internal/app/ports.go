package app

import (
	"context"
	"time"

	"quiz-session-service/internal/domain"
)

// StepCatalog reads immutable step records. GetStep returns domain.ErrNotFound
// on a miss. SampleRandom draws up to n distinct steps uniformly and returns
// fewer when the catalog is smaller.
type StepCatalog interface {
	GetStep(ctx context.Context, id string) (domain.Step, error)
	SampleRandom(ctx context.Context, n int) ([]domain.Step, error)
}

// QuizStore holds quiz definitions.
type QuizStore interface {
	GetQuiz(ctx context.Context, id string) (domain.Quiz, error)
	CreateQuiz(ctx context.Context, quiz domain.Quiz) (domain.Quiz, error)
}

// EphemeralStore is a TTL key/value store holding ordered step id lists.
// SetIfAbsent returns false without writing when key is live.
type EphemeralStore interface {
	Set(ctx context.Context, key string, steps []string, ttl time.Duration) error
	SetIfAbsent(ctx context.Context, key string, steps []string, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) ([]string, error)
	TTL(ctx context.Context, key string) (time.Duration, error)
}

// ProgressStore persists durable sessions, one per (user, quiz).
// Create returns domain.ErrAlreadyStarted for a second record of the same pair.
// Save writes session only if the stored version still equals session.Version
// and bumps it; otherwise it returns domain.ErrConcurrentUpdate.
type ProgressStore interface {
	FindOne(ctx context.Context, userID, quizID string) (domain.Session, error)
	Create(ctx context.Context, session domain.Session) (domain.Session, error)
	Save(ctx context.Context, session domain.Session) error
	ListByUser(ctx context.Context, userID string) ([]domain.Session, error)
}

// UserDirectory records which durable sessions belong to a user.
type UserDirectory interface {
	AppendHistory(ctx context.Context, userID, sessionID string) error
}

// Recorder receives domain events for metrics.
type Recorder interface {
	SessionCreated(kind domain.SessionKind)
	AnswerRecorded(mode domain.Mode, correct bool)
}

type nopRecorder struct{}

func (nopRecorder) SessionCreated(domain.SessionKind) {}

func (nopRecorder) AnswerRecorded(domain.Mode, bool) {}
