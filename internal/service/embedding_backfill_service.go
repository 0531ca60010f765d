package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/riverqueue/river"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/formbricks/promptrank/internal/embeddings"
	"github.com/formbricks/promptrank/internal/models"
	"github.com/formbricks/promptrank/internal/observability"
	"github.com/formbricks/promptrank/internal/rankerrors"
)

// ErrEmbeddingInProgress is returned when another process holds the embedding claim on a prompt
// that still has no embedding.
var ErrEmbeddingInProgress = errors.New("embedding in progress in another process")

// ErrPromptChanged is returned when the prompt text was edited while its embedding was being generated.
// The stale vector is discarded.
var ErrPromptChanged = errors.New("prompt text changed while embedding")

// ErrNoInserter is returned by EnqueueBackfill when the service has no job inserter.
var ErrNoInserter = errors.New("embedding backfill: no job inserter configured")

const defaultClaimTTL = 2 * time.Minute

// RankedCategories are the categories whose prompts are embedded and ranked.
var RankedCategories = []models.Category{models.CategoryReference, models.CategoryCandidate}

// BackfillStats summarizes one backfill pass.
type BackfillStats struct {
	Scanned  int `json:"scanned"`
	Embedded int `json:"embedded"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

// EmbeddingBackfillServiceParams holds dependencies for EmbeddingBackfillService.
type EmbeddingBackfillServiceParams struct {
	Store    EmbeddingStore
	Embedder Embedder
	// Inserter enqueues River jobs for EnqueueBackfill. Optional.
	Inserter PromptEmbeddingInserter
	// ClaimTTL bounds how long a claim from a crashed process blocks others. Default 2m.
	ClaimTTL time.Duration
	// Concurrency is the number of prompts embedded at once by BackfillEmbeddings. Default 1.
	Concurrency int
	// RateLimit caps provider calls per second. 0 disables pacing.
	RateLimit float64
	// MaxAttempts per enqueued job. 0 uses the River default.
	MaxAttempts int
	Metrics     observability.EmbeddingMetrics
}

// EmbeddingBackfillService makes sure reference and candidate prompts carry an embedding.
// An existing embedding is never regenerated; only prompts with no embedding are touched.
type EmbeddingBackfillService struct {
	store       EmbeddingStore
	embedder    Embedder
	inserter    PromptEmbeddingInserter
	claimTTL    time.Duration
	concurrency int
	maxAttempts int
	limiter     *rate.Limiter
	metrics     observability.EmbeddingMetrics
	inflight    singleflight.Group
}

// NewEmbeddingBackfillService creates an EmbeddingBackfillService.
func NewEmbeddingBackfillService(params EmbeddingBackfillServiceParams) *EmbeddingBackfillService {
	claimTTL := params.ClaimTTL
	if claimTTL <= 0 {
		claimTTL = defaultClaimTTL
	}

	concurrency := params.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if params.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(params.RateLimit), 1)
	}

	return &EmbeddingBackfillService{
		store:       params.Store,
		embedder:    params.Embedder,
		inserter:    params.Inserter,
		claimTTL:    claimTTL,
		concurrency: concurrency,
		maxAttempts: params.MaxAttempts,
		limiter:     limiter,
		metrics:     params.Metrics,
	}
}

// UpdatePromptEmbeddings embeds every reference and candidate prompt that has no embedding.
func (s *EmbeddingBackfillService) UpdatePromptEmbeddings(ctx context.Context) (BackfillStats, error) {
	return s.BackfillEmbeddings(ctx, RankedCategories)
}

func validateScope(scope []models.Category) error {
	if len(scope) == 0 {
		return rankerrors.NewValidationError("category", "at least one category is required")
	}

	for _, c := range scope {
		if !c.Ranked() {
			return rankerrors.NewValidationError("category",
				fmt.Sprintf("category %q is not embedded; use reference or candidate", c))
		}
	}

	return nil
}

// BackfillEmbeddings embeds every prompt in scope that has no embedding.
// A provider failure on one prompt is logged and counted in Failed; the pass continues.
// Store errors and cancellation abort the pass.
func (s *EmbeddingBackfillService) BackfillEmbeddings(ctx context.Context, scope []models.Category) (BackfillStats, error) {
	var stats BackfillStats

	if err := validateScope(scope); err != nil {
		return stats, err
	}

	prompts, err := s.store.Find(ctx, models.PromptFilter{Categories: scope, MissingEmbedding: true})
	if err != nil {
		return stats, fmt.Errorf("list prompts for backfill: %w", err)
	}

	stats.Scanned = len(prompts)
	if len(prompts) == 0 {
		slog.InfoContext(ctx, "backfill: nothing to embed")

		return stats, nil
	}

	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i := range prompts {
		p := &prompts[i]

		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}

			_, err := s.EnsureEmbedding(gctx, p)
			outcome := classifyBackfillError(gctx, err)

			mu.Lock()
			defer mu.Unlock()

			switch outcome {
			case "embedded":
				stats.Embedded++
			case "skipped":
				stats.Skipped++
				slog.InfoContext(ctx, "backfill: prompt skipped", "prompt_id", p.ID, "reason", err)
			case "failed":
				stats.Failed++
				slog.WarnContext(ctx, "backfill: prompt failed", "prompt_id", p.ID, "error", err)
			default:
				return fmt.Errorf("embed prompt %s: %w", p.ID, err)
			}

			return nil
		})
	}

	err = g.Wait()
	s.recordStats(ctx, stats)

	if err != nil {
		return stats, err
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return stats, ctxErr
	}

	slog.InfoContext(ctx, "backfill: done",
		"scanned", stats.Scanned,
		"embedded", stats.Embedded,
		"skipped", stats.Skipped,
		"failed", stats.Failed,
	)

	return stats, nil
}

// classifyBackfillError maps a per-prompt error to embedded, skipped, failed, or abort.
func classifyBackfillError(ctx context.Context, err error) string {
	switch {
	case err == nil:
		return "embedded"
	case ctx.Err() != nil:
		return "abort"
	case errors.Is(err, embeddings.ErrProvider):
		return "failed"
	case errors.Is(err, ErrEmbeddingInProgress),
		errors.Is(err, ErrPromptChanged),
		errors.Is(err, embeddings.ErrEmptyText),
		errors.Is(err, rankerrors.ErrNotFound):
		return "skipped"
	default:
		return "abort"
	}
}

func (s *EmbeddingBackfillService) recordStats(ctx context.Context, stats BackfillStats) {
	if s.metrics == nil {
		return
	}

	s.metrics.RecordBackfillOutcome(ctx, "embedded", int64(stats.Embedded))
	s.metrics.RecordBackfillOutcome(ctx, "skipped", int64(stats.Skipped))
	s.metrics.RecordBackfillOutcome(ctx, "failed", int64(stats.Failed))
}

// EnsureEmbedding returns the prompt's embedding, generating and storing it when absent.
// Concurrent calls for the same prompt in this process share one provider call; across processes the
// store claim lets one caller generate while others get ErrEmbeddingInProgress.
// On success prompt.Embedding is set.
func (s *EmbeddingBackfillService) EnsureEmbedding(ctx context.Context, prompt *models.Prompt) ([]float32, error) {
	if prompt.HasEmbedding() {
		return prompt.Embedding, nil
	}

	if strings.TrimSpace(prompt.Prompt) == "" {
		return nil, embeddings.ErrEmptyText
	}

	id, text := prompt.ID, prompt.Prompt

	v, err, _ := s.inflight.Do(id.String(), func() (any, error) {
		return s.generate(ctx, id, text)
	})
	if err != nil {
		return nil, err
	}

	emb, _ := v.([]float32)
	prompt.Embedding = emb

	return emb, nil
}

func (s *EmbeddingBackfillService) generate(ctx context.Context, id uuid.UUID, text string) ([]float32, error) {
	claimed, err := s.store.ClaimEmbedding(ctx, id, s.claimTTL)
	if err != nil {
		return nil, fmt.Errorf("claim embedding: %w", err)
	}

	if !claimed {
		current, err := s.store.GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("reload prompt: %w", err)
		}

		if current.HasEmbedding() {
			return current.Embedding, nil
		}

		return nil, ErrEmbeddingInProgress
	}

	if err := s.limiter.Wait(ctx); err != nil {
		s.releaseClaim(ctx, id)

		return nil, fmt.Errorf("wait for provider rate limit: %w", err)
	}

	emb, err := s.embedder.Embed(ctx, text)
	if err != nil {
		s.releaseClaim(ctx, id)

		return nil, err
	}

	stored, err := s.store.SetEmbedding(ctx, id, emb, text)
	if err != nil {
		s.releaseClaim(ctx, id)

		return nil, fmt.Errorf("store embedding: %w", err)
	}

	if !stored {
		s.releaseClaim(ctx, id)
		slog.InfoContext(ctx, "embedding: prompt edited during generation, discarded", "prompt_id", id)

		return nil, ErrPromptChanged
	}

	slog.DebugContext(ctx, "embedding: stored", "prompt_id", id, "dimensions", len(emb))

	return emb, nil
}

// releaseClaim runs even when ctx is cancelled so an aborted pass does not block others until the TTL.
func (s *EmbeddingBackfillService) releaseClaim(ctx context.Context, id uuid.UUID) {
	if err := s.store.ReleaseEmbeddingClaim(context.WithoutCancel(ctx), id); err != nil {
		slog.WarnContext(ctx, "embedding: release claim failed", "prompt_id", id, "error", err)
	}
}

// EmbedPrompt loads a prompt by ID and ensures it has an embedding. Prompts outside the ranked
// categories are left alone. Used by the River worker.
func (s *EmbeddingBackfillService) EmbedPrompt(ctx context.Context, id uuid.UUID) error {
	prompt, err := s.store.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get prompt: %w", err)
	}

	if !prompt.Category.Ranked() {
		slog.DebugContext(ctx, "embedding: skip, category is not ranked", "prompt_id", id, "category", prompt.Category)

		return nil
	}

	_, err = s.EnsureEmbedding(ctx, prompt)

	return err
}

// EnqueueBackfill inserts one prompt_embedding job per prompt in scope that has no embedding and returns
// the number of jobs enqueued. Prompts that already have an outstanding job are not enqueued again.
// Insert failures for single prompts are logged and skipped.
func (s *EmbeddingBackfillService) EnqueueBackfill(ctx context.Context, scope []models.Category) (int, error) {
	if s.inserter == nil {
		return 0, ErrNoInserter
	}

	if err := validateScope(scope); err != nil {
		return 0, err
	}

	prompts, err := s.store.Find(ctx, models.PromptFilter{Categories: scope, MissingEmbedding: true})
	if err != nil {
		return 0, fmt.Errorf("list prompts for backfill: %w", err)
	}

	opts := &river.InsertOpts{
		Queue:       EmbeddingsQueueName,
		MaxAttempts: s.maxAttempts,
		UniqueOpts:  river.UniqueOpts{ByArgs: true, ByState: uniqueOutstandingStates},
	}

	enqueued := 0

	for _, p := range prompts {
		if err := ctx.Err(); err != nil {
			return enqueued, err
		}

		res, err := s.inserter.Insert(ctx, PromptEmbeddingArgs{PromptID: p.ID}, opts)
		if err != nil {
			slog.ErrorContext(ctx, "backfill: enqueue failed", "prompt_id", p.ID, "error", err)

			continue
		}

		if res != nil && res.UniqueSkippedAsDuplicate {
			slog.DebugContext(ctx, "backfill: job already outstanding", "prompt_id", p.ID)

			continue
		}

		enqueued++
	}

	if s.metrics != nil {
		s.metrics.RecordJobsEnqueued(ctx, int64(enqueued))
	}

	slog.InfoContext(ctx, "backfill: jobs enqueued", "candidates", len(prompts), "enqueued", enqueued)

	return enqueued, nil
}
