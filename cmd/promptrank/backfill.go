package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/formbricks/promptrank/internal/models"
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Embed reference and candidate prompts that have no embedding",
	Long: `Embed every reference and candidate prompt that has no embedding yet.
Existing embeddings are never regenerated.

With --enqueue, one River job per prompt is inserted instead and "promptrank worker" does the work.`,
	RunE: runBackfill,
}

var (
	backfillEnqueue    bool
	backfillCategories []string
)

func init() {
	rootCmd.AddCommand(backfillCmd)

	backfillCmd.Flags().BoolVar(&backfillEnqueue, "enqueue", false, "Insert River jobs instead of embedding inline (postgres only)")
	backfillCmd.Flags().StringSliceVar(&backfillCategories, "category",
		[]string{string(models.CategoryReference), string(models.CategoryCandidate)},
		"Categories to backfill: reference, candidate")
}

func toCategories(values []string) []models.Category {
	out := make([]models.Category, len(values))
	for i, v := range values {
		out[i] = models.Category(v)
	}

	return out
}

func runBackfill(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	scope := toCategories(backfillCategories)

	app, err := NewApp(ctx, globalConfig, appOptions{embedder: !backfillEnqueue, queue: backfillEnqueue})
	if err != nil {
		return err
	}
	defer app.Close(ctx)

	out := cmd.OutOrStdout()

	if backfillEnqueue {
		enqueued, err := app.BackfillService(app.river).EnqueueBackfill(ctx, scope)
		if err != nil {
			return fmt.Errorf("enqueue backfill: %w", err)
		}

		fmt.Fprintf(out, "Enqueued %d embedding job(s).\n", enqueued)

		return nil
	}

	stats, err := app.BackfillService(nil).BackfillEmbeddings(ctx, scope)
	if err != nil {
		return fmt.Errorf("backfill: %w", err)
	}

	fmt.Fprintf(out, "Scanned %d, embedded %d, skipped %d, failed %d.\n",
		stats.Scanned, stats.Embedded, stats.Skipped, stats.Failed)

	if stats.Failed > 0 {
		return fmt.Errorf("backfill: %d prompt(s) failed; run again to retry", stats.Failed)
	}

	return nil
}
