// Package observability provides OpenTelemetry metrics, tracing, and log correlation for promptrank.
package observability

// Metric names (OpenTelemetry, exported over OTLP).
const (
	MetricNameEmbeddingProviderCalls    = "promptrank_embedding_provider_calls_total"
	MetricNameEmbeddingProviderDuration = "promptrank_embedding_provider_duration_seconds"
	MetricNameBackfillPrompts           = "promptrank_backfill_prompts_total"
	MetricNameEmbeddingJobsEnqueued     = "promptrank_embedding_jobs_enqueued_total"
	MetricNameEmbeddingWorkerErrors     = "promptrank_embedding_worker_errors_total"
	MetricNameRankings                  = "promptrank_rankings_total"
	MetricNameRankingDuration           = "promptrank_ranking_duration_seconds"
	MetricNameRankingCandidatesSkipped  = "promptrank_ranking_candidates_skipped_total"
)

// Attribute keys.
const (
	AttrProvider = "provider"
	AttrOutcome  = "outcome"
	AttrReason   = "reason"
	AttrVariant  = "variant"
)

// AllowedProviders for the provider attribute.
var AllowedProviders = map[string]bool{
	"openai": true,
	"google": true,
	"mock":   true,
}

// AllowedProviderOutcomes for promptrank_embedding_provider_calls_total.
var AllowedProviderOutcomes = map[string]bool{
	"success":            true,
	"error":              true,
	"dimension_mismatch": true,
}

// AllowedBackfillOutcomes for promptrank_backfill_prompts_total.
var AllowedBackfillOutcomes = map[string]bool{
	"embedded": true,
	"skipped":  true,
	"failed":   true,
}

// AllowedWorkerReasons for promptrank_embedding_worker_errors_total.
var AllowedWorkerReasons = map[string]bool{
	"get_prompt_failed": true,
	"provider_failed":   true,
	"in_progress":       true,
	"prompt_changed":    true,
	"store_failed":      true,
}

// AllowedRankingVariants for the variant attribute.
var AllowedRankingVariants = map[string]bool{
	"submissions": true,
	"report":      true,
}

// AllowedRankingOutcomes for promptrank_rankings_total.
var AllowedRankingOutcomes = map[string]bool{
	"success": true,
	"empty":   true,
	"error":   true,
}

// AllowedSkipReasons for promptrank_ranking_candidates_skipped_total.
var AllowedSkipReasons = map[string]bool{
	"provider_error": true,
	"empty_prompt":   true,
	"in_progress":    true,
	"prompt_changed": true,
}

// NormalizeReason returns reason if in allowed, otherwise "other".
func NormalizeReason(reason string, allowed map[string]bool) string {
	if allowed[reason] {
		return reason
	}

	return "other"
}
