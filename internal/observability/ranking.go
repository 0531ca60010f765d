package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// RankingMetrics records ranking request metrics.
type RankingMetrics interface {
	RecordRanking(ctx context.Context, variant, outcome string, duration time.Duration)
	RecordCandidateSkipped(ctx context.Context, reason string)
}

type rankingMetrics struct {
	rankings metric.Int64Counter
	duration metric.Float64Histogram
	skipped  metric.Int64Counter
}

// NewRankingMetrics creates RankingMetrics. Returns (nil, nil) when meter is nil (metrics disabled).
func NewRankingMetrics(meter metric.Meter) (RankingMetrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	rankings, err := meter.Int64Counter(
		MetricNameRankings,
		metric.WithDescription("Ranking computations by variant and outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("create rankings counter: %w", err)
	}

	duration, err := meter.Float64Histogram(
		MetricNameRankingDuration,
		metric.WithDescription("Ranking computation duration including inline embedding (seconds)"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create ranking duration histogram: %w", err)
	}

	skipped, err := meter.Int64Counter(
		MetricNameRankingCandidatesSkipped,
		metric.WithDescription("Candidates left out of a ranking because no embedding could be obtained"),
	)
	if err != nil {
		return nil, fmt.Errorf("create ranking candidates skipped counter: %w", err)
	}

	return &rankingMetrics{rankings: rankings, duration: duration, skipped: skipped}, nil
}

func (r *rankingMetrics) RecordRanking(ctx context.Context, variant, outcome string, duration time.Duration) {
	variant = NormalizeReason(variant, AllowedRankingVariants)
	outcome = NormalizeReason(outcome, AllowedRankingOutcomes)

	r.rankings.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrVariant, variant),
		attribute.String(AttrOutcome, outcome),
	))
	r.duration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String(AttrVariant, variant)))
}

func (r *rankingMetrics) RecordCandidateSkipped(ctx context.Context, reason string) {
	reason = NormalizeReason(reason, AllowedSkipReasons)
	r.skipped.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrReason, reason)))
}
