package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/formbricks/promptrank/internal/service"
)

const workerShutdownTimeout = 30 * time.Second

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Process prompt embedding jobs from the River queue",
	Long: `Run River workers for the embeddings queue until interrupted (postgres only).
In-flight jobs are given time to finish on shutdown.`,
	RunE: runWorker,
}

var workerEnqueue bool

func init() {
	rootCmd.AddCommand(workerCmd)

	workerCmd.Flags().BoolVar(&workerEnqueue, "enqueue", false, "Enqueue jobs for prompts missing an embedding before starting")
}

func runWorker(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	app, err := NewApp(ctx, globalConfig, appOptions{queue: true, work: true})
	if err != nil {
		return err
	}
	defer app.Close(context.WithoutCancel(ctx))

	if workerEnqueue {
		enqueued, err := app.BackfillService(app.river).EnqueueBackfill(ctx, service.RankedCategories)
		if err != nil {
			return fmt.Errorf("enqueue backfill: %w", err)
		}

		slog.InfoContext(ctx, "worker: backfill enqueued", "enqueued", enqueued)
	}

	if err := app.river.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("start River: %w", err)
	}

	slog.InfoContext(ctx, "worker: started",
		"queue_workers", globalConfig.EmbeddingMaxConcurrent,
		"max_attempts", globalConfig.EmbeddingMaxAttempts,
	)

	<-ctx.Done()

	slog.Info("worker: shutting down")

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), workerShutdownTimeout)
	defer cancel()

	if err := app.river.Stop(stopCtx); err != nil {
		return fmt.Errorf("stop River: %w", err)
	}

	slog.Info("worker: stopped")

	return nil
}
