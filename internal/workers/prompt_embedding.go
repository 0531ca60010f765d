// Package workers provides River job workers for prompt embeddings.
package workers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/riverqueue/river"

	"github.com/formbricks/promptrank/internal/embeddings"
	"github.com/formbricks/promptrank/internal/observability"
	"github.com/formbricks/promptrank/internal/rankerrors"
	"github.com/formbricks/promptrank/internal/service"
)

const (
	promptEmbeddingTimeout = time.Minute
	defaultSnoozeDelay     = 30 * time.Second
)

// promptEmbedder is the minimal interface needed by the worker.
type promptEmbedder interface {
	EmbedPrompt(ctx context.Context, id uuid.UUID) error
}

// PromptEmbeddingWorker generates and stores the embedding for one prompt.
type PromptEmbeddingWorker struct {
	river.WorkerDefaults[service.PromptEmbeddingArgs]

	embedder    promptEmbedder
	metrics     observability.EmbeddingMetrics
	snoozeDelay time.Duration
}

// NewPromptEmbeddingWorker creates the worker. metrics may be nil when metrics are disabled.
// snoozeDelay is how long a job waits when another process holds the embedding claim; non-positive uses 30s.
func NewPromptEmbeddingWorker(
	embedder promptEmbedder,
	metrics observability.EmbeddingMetrics,
	snoozeDelay time.Duration,
) *PromptEmbeddingWorker {
	if snoozeDelay <= 0 {
		snoozeDelay = defaultSnoozeDelay
	}

	return &PromptEmbeddingWorker{
		embedder:    embedder,
		metrics:     metrics,
		snoozeDelay: snoozeDelay,
	}
}

// Timeout limits how long a single embedding job can run.
func (w *PromptEmbeddingWorker) Timeout(*river.Job[service.PromptEmbeddingArgs]) time.Duration {
	return promptEmbeddingTimeout
}

// Work embeds the prompt. A deleted prompt completes the job. A claim held elsewhere or an edit during
// generation snoozes it.
// Provider failures retry until the last attempt, which is logged and completed.
func (w *PromptEmbeddingWorker) Work(ctx context.Context, job *river.Job[service.PromptEmbeddingArgs]) error {
	id := job.Args.PromptID

	err := w.embedder.EmbedPrompt(ctx, id)
	switch {
	case err == nil:
		slog.InfoContext(ctx, "embedding: job done", "prompt_id", id, "job_id", job.ID)

		return nil

	case errors.Is(err, rankerrors.ErrNotFound):
		w.recordError(ctx, "get_prompt_failed")
		slog.InfoContext(ctx, "embedding: prompt deleted before job ran", "prompt_id", id, "job_id", job.ID)

		return nil

	case errors.Is(err, embeddings.ErrEmptyText):
		slog.InfoContext(ctx, "embedding: skipped (empty prompt)", "prompt_id", id, "job_id", job.ID)

		return nil

	case errors.Is(err, service.ErrEmbeddingInProgress):
		w.recordError(ctx, "in_progress")
		slog.DebugContext(ctx, "embedding: claim held elsewhere, snoozing", "prompt_id", id, "delay", w.snoozeDelay)

		return river.JobSnooze(w.snoozeDelay)

	case errors.Is(err, service.ErrPromptChanged):
		w.recordError(ctx, "prompt_changed")
		slog.InfoContext(ctx, "embedding: prompt edited mid-job, snoozing", "prompt_id", id, "job_id", job.ID)

		return river.JobSnooze(time.Second)

	case errors.Is(err, embeddings.ErrProvider):
		w.recordError(ctx, "provider_failed")

		if job.Attempt >= job.MaxAttempts {
			slog.ErrorContext(ctx, "embedding: provider failed (final attempt)",
				"prompt_id", id,
				"job_id", job.ID,
				"attempt", job.Attempt,
				"error", err,
			)

			return nil
		}

		return fmt.Errorf("embed prompt %s: %w", id, err)

	default:
		w.recordError(ctx, "store_failed")

		return fmt.Errorf("embed prompt %s: %w", id, err)
	}
}

func (w *PromptEmbeddingWorker) recordError(ctx context.Context, reason string) {
	if w.metrics != nil {
		w.metrics.RecordWorkerError(ctx, reason)
	}
}
