package postgres

import (
	"time"

	"github.com/uptrace/bun"

	"quiz-session-service/internal/domain"
)

type quizRow struct {
	bun.BaseModel `bun:"table:quizzes,alias:q"`

	ID        string    `bun:"id,pk"`
	Name      string    `bun:"name,notnull"`
	Steps     []string  `bun:"steps,type:jsonb,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}

func (r quizRow) toDomain() domain.Quiz {
	return domain.Quiz{ID: r.ID, Name: r.Name, Steps: r.Steps, CreatedAt: r.CreatedAt}
}

type historyRow struct {
	bun.BaseModel `bun:"table:histories,alias:h"`

	ID        string                 `bun:"id,pk"`
	UserID    string                 `bun:"user_id,notnull"`
	QuizID    string                 `bun:"quiz_id,notnull"`
	QuizName  string                 `bun:"quiz_name,notnull"`
	Score     int                    `bun:"score,notnull"`
	Progress  []domain.ProgressEntry `bun:"progress,type:jsonb,notnull"`
	Completed bool                   `bun:"completed,notnull"`
	LastStep  int                    `bun:"last_step,notnull"`
	Version   int                    `bun:"version,notnull"`
	CreatedAt time.Time              `bun:"created_at,notnull"`
	UpdatedAt time.Time              `bun:"updated_at,notnull"`
}

func newHistoryRow(s domain.Session) *historyRow {
	progress := s.Progress
	if progress == nil {
		progress = []domain.ProgressEntry{}
	}
	return &historyRow{
		ID:        s.ID,
		UserID:    s.UserID,
		QuizID:    s.QuizID,
		QuizName:  s.QuizName,
		Score:     s.Score,
		Progress:  progress,
		Completed: s.Completed,
		LastStep:  s.LastStep,
		Version:   s.Version,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

func (r historyRow) toDomain() domain.Session {
	return domain.Session{
		ID:        r.ID,
		UserID:    r.UserID,
		QuizID:    r.QuizID,
		QuizName:  r.QuizName,
		Score:     r.Score,
		Progress:  r.Progress,
		Completed: r.Completed,
		LastStep:  r.LastStep,
		Version:   r.Version,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

type userHistoryRow struct {
	bun.BaseModel `bun:"table:user_history,alias:uh"`

	UserID    string    `bun:"user_id,pk"`
	HistoryID string    `bun:"history_id,pk"`
	AddedAt   time.Time `bun:"added_at,notnull"`
}
