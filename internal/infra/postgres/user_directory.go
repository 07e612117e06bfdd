package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

// UserDirectory links users to their history rows.
type UserDirectory struct {
	db  *bun.DB
	now func() time.Time
}

func NewUserDirectory(db *bun.DB) *UserDirectory {
	return &UserDirectory{db: db, now: time.Now}
}

func (d *UserDirectory) AppendHistory(ctx context.Context, userID, sessionID string) error {
	row := &userHistoryRow{UserID: userID, HistoryID: sessionID, AddedAt: d.now().UTC()}
	if _, err := d.db.NewInsert().Model(row).On("CONFLICT DO NOTHING").Exec(ctx); err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

// History returns the history ids linked to userID, oldest first.
func (d *UserDirectory) History(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := d.db.NewSelect().Model((*userHistoryRow)(nil)).
		Column("history_id").
		Where("uh.user_id = ?", userID).
		Order("uh.added_at ASC").
		Scan(ctx, &ids)
	if err != nil {
		return nil, fmt.Errorf("list user history: %w", err)
	}
	return ids, nil
}
