package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"quiz-session-service/internal/app"
	"quiz-session-service/internal/config"
	"quiz-session-service/internal/infra/memory"
	"quiz-session-service/internal/infra/mongodb"
	"quiz-session-service/internal/infra/postgres"
	infraredis "quiz-session-service/internal/infra/redis"
	"quiz-session-service/internal/seed"
)

// backend bundles the stores selected by store.backend.
type backend struct {
	catalog  app.StepCatalog
	writer   seed.StepWriter
	quizzes  app.QuizStore
	progress app.ProgressStore
	users    app.UserDirectory
	sessions app.EphemeralStore

	closers []func()
}

func (b *backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func openBackend(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (*backend, error) {
	b := &backend{}
	var err error
	switch cfg.Store.Backend {
	case "postgres":
		err = b.openPostgres(ctx, cfg)
	case "mongo":
		err = b.openMongo(ctx, cfg)
	default:
		b.openMemory(ctx, log)
	}
	if err != nil {
		b.Close()
		return nil, err
	}

	cacheTTL := config.TTLDuration(cfg.Quiz.StepCacheTTL, 10*time.Minute)
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		b.closers = append(b.closers, func() { _ = client.Close() })
		if err := client.Ping(ctx).Err(); err != nil {
			b.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		b.sessions = infraredis.NewSessionStore(client)
		if cfg.Store.Backend != "memory" {
			b.catalog = infraredis.NewStepCache(client, b.catalog, cacheTTL, infraredis.WithCacheLogger(log))
		}
	} else {
		b.sessions = memory.NewSessionStore()
		if cfg.Store.Backend != "memory" {
			b.catalog = memory.NewStepCache(b.catalog, cacheTTL)
		}
	}

	log.WithFields(logrus.Fields{"backend": cfg.Store.Backend, "redis": cfg.Redis.Addr != ""}).Info("stores ready")
	return b, nil
}

func (b *backend) openMemory(ctx context.Context, log logrus.FieldLogger) {
	catalog := memory.NewStepCatalog()
	quizzes := memory.NewQuizStore()
	// The in-memory backend starts empty, so it is seeded on open.
	if err := seed.Run(ctx, catalog, quizzes, log); err != nil {
		log.WithError(err).Warn("seeding in-memory catalog failed")
	}
	b.catalog = catalog
	b.writer = catalog
	b.quizzes = quizzes
	b.progress = memory.NewProgressStore()
	b.users = memory.NewUserDirectory()
}

func (b *backend) openPostgres(ctx context.Context, cfg config.Config) error {
	db := postgres.OpenDB(cfg.Postgres.URL)
	b.closers = append(b.closers, func() { _ = db.Close() })
	if err := postgres.Migrate(ctx, db); err != nil {
		return err
	}

	pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	b.closers = append(b.closers, pool.Close)

	catalog := postgres.NewStepCatalog(pool)
	b.catalog = catalog
	b.writer = catalog
	b.quizzes = postgres.NewQuizStore(db)
	b.progress = postgres.NewProgressStore(db)
	b.users = postgres.NewUserDirectory(db)
	return nil
}

func (b *backend) openMongo(ctx context.Context, cfg config.Config) error {
	client, err := mongodb.Connect(ctx, cfg.Mongo.URI)
	if err != nil {
		return err
	}
	b.closers = append(b.closers, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.Disconnect(shutdownCtx)
	})

	db := client.Database(cfg.Mongo.Database)
	if err := mongodb.EnsureIndexes(ctx, db); err != nil {
		return err
	}
	catalog := mongodb.NewStepCatalog(db)
	b.catalog = catalog
	b.writer = catalog
	b.quizzes = mongodb.NewQuizStore(db)
	b.progress = mongodb.NewProgressStore(db)
	b.users = mongodb.NewUserDirectory(db)
	return nil
}
