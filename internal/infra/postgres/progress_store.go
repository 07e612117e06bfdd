package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"quiz-session-service/internal/domain"
)

// ProgressStore keeps durable sessions in the histories table. The
// (user_id, quiz_id) unique constraint enforces one record per pair and the
// version column backs Save.
type ProgressStore struct {
	db *bun.DB
}

func NewProgressStore(db *bun.DB) *ProgressStore {
	return &ProgressStore{db: db}
}

func (s *ProgressStore) FindOne(ctx context.Context, userID, quizID string) (domain.Session, error) {
	var row historyRow
	err := s.db.NewSelect().Model(&row).
		Where("h.user_id = ?", userID).
		Where("h.quiz_id = ?", quizID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Session{}, fmt.Errorf("%w: session for quiz %s", domain.ErrNotFound, quizID)
	}
	if err != nil {
		return domain.Session{}, fmt.Errorf("load history: %w", err)
	}
	return row.toDomain(), nil
}

func (s *ProgressStore) Create(ctx context.Context, session domain.Session) (domain.Session, error) {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	session.Version = 0
	if _, err := s.db.NewInsert().Model(newHistoryRow(session)).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return domain.Session{}, domain.ErrAlreadyStarted
		}
		return domain.Session{}, fmt.Errorf("insert history: %w", err)
	}
	return session, nil
}

func (s *ProgressStore) Save(ctx context.Context, session domain.Session) error {
	row := newHistoryRow(session)
	row.Version = session.Version + 1
	res, err := s.db.NewUpdate().Model(row).
		Column("score", "progress", "completed", "last_step", "version", "updated_at").
		Where("h.id = ?", session.ID).
		Where("h.version = ?", session.Version).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update history: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update history: %w", err)
	}
	if n == 0 {
		exists, err := s.db.NewSelect().Model((*historyRow)(nil)).Where("h.id = ?", session.ID).Exists(ctx)
		if err != nil {
			return fmt.Errorf("check history: %w", err)
		}
		if !exists {
			return fmt.Errorf("%w: session %s", domain.ErrNotFound, session.ID)
		}
		return domain.ErrConcurrentUpdate
	}
	return nil
}

func (s *ProgressStore) ListByUser(ctx context.Context, userID string) ([]domain.Session, error) {
	var rows []historyRow
	err := s.db.NewSelect().Model(&rows).
		Where("h.user_id = ?", userID).
		Order("h.created_at ASC", "h.id ASC").
		Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("list histories: %w", err)
	}
	out := make([]domain.Session, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}
