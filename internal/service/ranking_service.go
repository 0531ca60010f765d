package service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/formbricks/promptrank/internal/embeddings"
	"github.com/formbricks/promptrank/internal/models"
	"github.com/formbricks/promptrank/internal/observability"
	vec "github.com/formbricks/promptrank/pkg/embeddings"
)

const tracerName = "github.com/formbricks/promptrank/internal/service"

// Ranking variants, used as the metric variant attribute.
const (
	variantSubmissions = "submissions"
	variantReport      = "report"
)

// RankOptions selects the candidates to rank. Empty Statuses ranks candidates of every status.
type RankOptions struct {
	Statuses []models.Status
}

// RankingServiceParams holds dependencies for RankingService.
type RankingServiceParams struct {
	Store   EmbeddingStore
	Ensurer EmbeddingEnsurer
	Metrics observability.RankingMetrics
}

// RankingService orders candidate prompts by cosine similarity to the reference prompt.
// It keeps no state between calls; every ranking re-reads the store.
type RankingService struct {
	store   EmbeddingStore
	ensurer EmbeddingEnsurer
	metrics observability.RankingMetrics
}

// NewRankingService creates a RankingService.
func NewRankingService(params RankingServiceParams) *RankingService {
	return &RankingService{
		store:   params.Store,
		ensurer: params.Ensurer,
		metrics: params.Metrics,
	}
}

// GetRankedSubmissions ranks completed candidates and reports similarity as a percentage rounded to 2 decimals.
// Returns an empty slice when there is no reference prompt.
func (s *RankingService) GetRankedSubmissions(ctx context.Context) ([]models.RankedSubmission, error) {
	ranked, err := s.rank(ctx, variantSubmissions, RankOptions{Statuses: []models.Status{models.StatusCompleted}})
	if err != nil {
		return nil, err
	}

	out := make([]models.RankedSubmission, len(ranked))
	for i, r := range ranked {
		out[i] = models.RankedSubmission{
			ID:            r.Prompt.ID,
			OwnerName:     r.Prompt.OwnerName,
			Prompt:        r.Prompt.Prompt,
			Status:        r.Prompt.Status,
			ImageFilename: r.Prompt.ImageFilename,
			Similarity:    vec.Percentage(r.Score),
		}
	}

	return out, nil
}

// RankReport ranks candidates of every status with raw cosine scores.
func (s *RankingService) RankReport(ctx context.Context) ([]models.RankedPrompt, error) {
	return s.rank(ctx, variantReport, RankOptions{})
}

// Rank returns candidates matching opts ordered by raw cosine similarity to the reference, highest first.
// Ties keep store order. Returns an empty slice when there is no reference prompt.
func (s *RankingService) Rank(ctx context.Context, opts RankOptions) ([]models.RankedPrompt, error) {
	variant := variantReport
	if slices.Equal(opts.Statuses, []models.Status{models.StatusCompleted}) {
		variant = variantSubmissions
	}

	return s.rank(ctx, variant, opts)
}

func (s *RankingService) rank(ctx context.Context, variant string, opts RankOptions) ([]models.RankedPrompt, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "RankingService.Rank")
	defer span.End()

	span.SetAttributes(attribute.String("ranking.variant", variant))

	start := time.Now()

	ranked, err := s.doRank(ctx, opts)

	outcome := "success"

	switch {
	case err != nil:
		outcome = "error"

		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	case len(ranked) == 0:
		outcome = "empty"
	}

	span.SetAttributes(attribute.Int("ranking.results", len(ranked)))

	if s.metrics != nil {
		s.metrics.RecordRanking(ctx, variant, outcome, time.Since(start))
	}

	return ranked, err
}

func (s *RankingService) doRank(ctx context.Context, opts RankOptions) ([]models.RankedPrompt, error) {
	reference, err := s.store.FindOne(ctx, models.PromptFilter{Categories: []models.Category{models.CategoryReference}})
	if err != nil {
		return nil, fmt.Errorf("find reference prompt: %w", err)
	}

	if reference == nil {
		slog.InfoContext(ctx, "ranking: no reference prompt, nothing to rank")

		return []models.RankedPrompt{}, nil
	}

	refEmbedding, err := s.ensurer.EnsureEmbedding(ctx, reference)
	if err != nil {
		return nil, fmt.Errorf("ensure reference embedding: %w", err)
	}

	candidates, err := s.store.Find(ctx, models.PromptFilter{
		Categories: []models.Category{models.CategoryCandidate},
		Statuses:   opts.Statuses,
	})
	if err != nil {
		return nil, fmt.Errorf("find candidate prompts: %w", err)
	}

	ranked := make([]models.RankedPrompt, 0, len(candidates))

	for i := range candidates {
		candidate := &candidates[i]

		emb, err := s.ensurer.EnsureEmbedding(ctx, candidate)
		if err != nil {
			reason, skip := skipReason(err)
			if !skip || ctx.Err() != nil {
				return nil, fmt.Errorf("ensure embedding for prompt %s: %w", candidate.ID, err)
			}

			slog.WarnContext(ctx, "ranking: candidate skipped", "prompt_id", candidate.ID, "reason", reason, "error", err)

			if s.metrics != nil {
				s.metrics.RecordCandidateSkipped(ctx, reason)
			}

			continue
		}

		score, err := vec.CosineSimilarity(refEmbedding, emb)
		if err != nil {
			return nil, fmt.Errorf("score prompt %s: %w", candidate.ID, err)
		}

		ranked = append(ranked, models.RankedPrompt{Prompt: *candidate, Score: score})
	}

	slices.SortStableFunc(ranked, func(a, b models.RankedPrompt) int {
		return cmp.Compare(b.Score, a.Score)
	})

	return ranked, nil
}

// skipReason reports whether a candidate's embedding error only excludes that candidate.
func skipReason(err error) (string, bool) {
	switch {
	case errors.Is(err, embeddings.ErrProvider):
		return "provider_error", true
	case errors.Is(err, embeddings.ErrEmptyText):
		return "empty_prompt", true
	case errors.Is(err, ErrEmbeddingInProgress):
		return "in_progress", true
	case errors.Is(err, ErrPromptChanged):
		return "prompt_changed", true
	default:
		return "", false
	}
}
