package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"quiz-session-service/internal/config"
	"quiz-session-service/internal/infra/mongodb"
	"quiz-session-service/internal/infra/postgres"
)

// NewMigrateCmd applies Postgres migrations or Mongo indexes, depending on
// store.backend.
func NewMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrations(cmd.Context(), *configPath)
		},
	}
}

func runMigrations(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	switch cfg.Store.Backend {
	case "postgres":
		db := postgres.OpenDB(cfg.Postgres.URL)
		defer db.Close()
		if err := postgres.Migrate(ctx, db); err != nil {
			return err
		}
	case "mongo":
		client, err := mongodb.Connect(ctx, cfg.Mongo.URI)
		if err != nil {
			return err
		}
		defer func() { _ = client.Disconnect(context.Background()) }()
		if err := mongodb.EnsureIndexes(ctx, client.Database(cfg.Mongo.Database)); err != nil {
			return err
		}
	default:
		return fmt.Errorf("backend %q has nothing to migrate", cfg.Store.Backend)
	}
	log.WithField("backend", cfg.Store.Backend).Info("migrations applied")
	return nil
}
