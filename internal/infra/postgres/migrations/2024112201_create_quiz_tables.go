package migrations

import (
	"context"
	_ "embed"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

//go:embed 0001_create_steps.sql
var createStepsSQL string

//go:embed 0002_create_quizzes.sql
var createQuizzesSQL string

//go:embed 0003_create_histories.sql
var createHistoriesSQL string

//go:embed 0004_create_user_history.sql
var createUserHistorySQL string

var Migrations = migrate.NewMigrations()

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			for _, stmt := range []string{createStepsSQL, createQuizzesSQL, createHistoriesSQL, createUserHistorySQL} {
				if _, err := db.ExecContext(ctx, stmt); err != nil {
					return err
				}
			}
			return nil
		},
		func(ctx context.Context, db *bun.DB) error {
			for _, table := range []string{"user_history", "histories", "quizzes", "steps"} {
				if _, err := db.ExecContext(ctx, `DROP TABLE IF EXISTS `+table); err != nil {
					return err
				}
			}
			return nil
		},
	)
}
