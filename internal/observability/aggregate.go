package observability

import (
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all promptrank metric collectors. When metrics are disabled, all fields are nil.
type Metrics struct {
	Embeddings EmbeddingMetrics
	Ranking    RankingMetrics
}

// NewMetrics creates EmbeddingMetrics and RankingMetrics from the given meter.
// Returns (nil, nil) when meter is nil (metrics disabled).
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	embeddings, err := NewEmbeddingMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("embedding metrics: %w", err)
	}

	ranking, err := NewRankingMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("ranking metrics: %w", err)
	}

	return &Metrics{
		Embeddings: embeddings,
		Ranking:    ranking,
	}, nil
}
