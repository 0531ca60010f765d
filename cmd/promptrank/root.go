package main

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/formbricks/promptrank/internal/config"
	"github.com/formbricks/promptrank/internal/observability"
)

var globalConfig *config.Config

var rootCmd = &cobra.Command{
	Use:   "promptrank",
	Short: "Rank prompt submissions by similarity to a reference prompt",
	Long: `promptrank stores prompt submissions, embeds them with an embedding provider,
and ranks candidates by cosine similarity to the reference prompt.

Configuration comes from the environment (and an optional .env file).`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		globalConfig = cfg

		slog.SetDefault(observability.NewLogger(cfg.LogLevel, cmd.ErrOrStderr()))
		cmd.SetContext(observability.WithRunID(cmd.Context(), uuid.NewString()))

		return nil
	},
}
