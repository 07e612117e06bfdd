package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"quiz-session-service/internal/app"
	"quiz-session-service/internal/config"
	"quiz-session-service/internal/logging"
	"quiz-session-service/internal/metrics"
	transport "quiz-session-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := logging.New(cfg.Log.Level, cfg.Log.Format)

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, err := openBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer stores.Close()

	m := metrics.New()
	service := app.NewQuizService(
		stores.catalog,
		stores.quizzes,
		stores.sessions,
		stores.progress,
		stores.users,
		app.WithLogger(log),
		app.WithRecorder(m),
		app.WithSessionTTL(config.TTLDuration(cfg.Quiz.SessionTTL, app.DefaultSessionTTL)),
		app.WithSizes(cfg.Quiz.DefaultSize, cfg.Quiz.MaxSize),
	)
	if cfg.Auth.JWTSecret == "" {
		log.Warn("auth.jwt_secret is empty; every token will be rejected")
	}
	router := transport.NewRouter(transport.RouterDeps{
		Service:  service,
		Identity: transport.NewIdentityResolver(cfg.Auth.JWTSecret, cfg.Auth.CookieName),
		Metrics:  m,
		Logger:   log,
	})

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithField("port", finalPort).Info("starting quiz service")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.WithError(err).Error("server stopped")
		return err
	}
	return nil
}

func newLogger(cfg config.Config) logrus.FieldLogger {
	return logging.New(cfg.Log.Level, cfg.Log.Format)
}
