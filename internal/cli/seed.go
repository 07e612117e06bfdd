package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"quiz-session-service/internal/config"
	"quiz-session-service/internal/seed"
)

// NewSeedCmd loads the demo steps and quizzes into the configured backend.
func NewSeedCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load the demo step catalog and quizzes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if cfg.Store.Backend == "memory" {
				return fmt.Errorf("the memory backend is seeded on start")
			}
			log := newLogger(cfg)
			stores, err := openBackend(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer stores.Close()
			return seed.Run(cmd.Context(), stores.writer, stores.quizzes, log)
		},
	}
}
