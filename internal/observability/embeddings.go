package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// EmbeddingMetrics records embedding pipeline metrics (provider calls, backfill, River jobs).
// Methods accept ctx for future exemplar support.
type EmbeddingMetrics interface {
	RecordProviderCall(ctx context.Context, provider, outcome string, duration time.Duration)
	RecordBackfillOutcome(ctx context.Context, outcome string, count int64)
	RecordJobsEnqueued(ctx context.Context, count int64)
	RecordWorkerError(ctx context.Context, reason string)
}

type embeddingMetrics struct {
	providerCalls    metric.Int64Counter
	providerDuration metric.Float64Histogram
	backfillPrompts  metric.Int64Counter
	jobsEnqueued     metric.Int64Counter
	workerErrors     metric.Int64Counter
}

// NewEmbeddingMetrics creates EmbeddingMetrics. Returns (nil, nil) when meter is nil (metrics disabled).
func NewEmbeddingMetrics(meter metric.Meter) (EmbeddingMetrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	providerCalls, err := meter.Int64Counter(
		MetricNameEmbeddingProviderCalls,
		metric.WithDescription("Embedding provider calls by provider and outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("create embedding provider calls counter: %w", err)
	}

	providerDuration, err := meter.Float64Histogram(
		MetricNameEmbeddingProviderDuration,
		metric.WithDescription("Embedding provider call duration (seconds)"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create embedding provider duration histogram: %w", err)
	}

	backfillPrompts, err := meter.Int64Counter(
		MetricNameBackfillPrompts,
		metric.WithDescription("Prompts visited by embedding backfill, by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("create backfill prompts counter: %w", err)
	}

	jobsEnqueued, err := meter.Int64Counter(
		MetricNameEmbeddingJobsEnqueued,
		metric.WithDescription("Prompt embedding jobs enqueued"),
	)
	if err != nil {
		return nil, fmt.Errorf("create embedding jobs enqueued counter: %w", err)
	}

	workerErrors, err := meter.Int64Counter(
		MetricNameEmbeddingWorkerErrors,
		metric.WithDescription("Prompt embedding worker errors by reason"),
	)
	if err != nil {
		return nil, fmt.Errorf("create embedding worker errors counter: %w", err)
	}

	return &embeddingMetrics{
		providerCalls:    providerCalls,
		providerDuration: providerDuration,
		backfillPrompts:  backfillPrompts,
		jobsEnqueued:     jobsEnqueued,
		workerErrors:     workerErrors,
	}, nil
}

func (e *embeddingMetrics) RecordProviderCall(ctx context.Context, provider, outcome string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String(AttrProvider, NormalizeReason(provider, AllowedProviders)),
		attribute.String(AttrOutcome, NormalizeReason(outcome, AllowedProviderOutcomes)),
	)
	e.providerCalls.Add(ctx, 1, attrs)
	e.providerDuration.Record(ctx, duration.Seconds(), attrs)
}

func (e *embeddingMetrics) RecordBackfillOutcome(ctx context.Context, outcome string, count int64) {
	if count <= 0 {
		return
	}

	outcome = NormalizeReason(outcome, AllowedBackfillOutcomes)
	e.backfillPrompts.Add(ctx, count, metric.WithAttributes(attribute.String(AttrOutcome, outcome)))
}

func (e *embeddingMetrics) RecordJobsEnqueued(ctx context.Context, count int64) {
	e.jobsEnqueued.Add(ctx, count)
}

func (e *embeddingMetrics) RecordWorkerError(ctx context.Context, reason string) {
	reason = NormalizeReason(reason, AllowedWorkerReasons)
	e.workerErrors.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrReason, reason)))
}
