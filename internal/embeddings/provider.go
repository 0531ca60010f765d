package embeddings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/formbricks/promptrank/internal/observability"
	vec "github.com/formbricks/promptrank/pkg/embeddings"
)

// ErrEmptyText is returned when asked to embed text that is empty after trimming.
var ErrEmptyText = errors.New("embeddings: text is empty")

// ErrProvider is the sentinel for embedding provider failures.
var ErrProvider = &ProviderError{}

// ProviderError wraps a failure of the embedding client (network, auth, quota, malformed response).
type ProviderError struct {
	Provider string
	Err      error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	switch {
	case e.Provider != "" && e.Err != nil:
		return "embedding provider " + e.Provider + ": " + e.Err.Error()
	case e.Err != nil:
		return "embedding provider: " + e.Err.Error()
	default:
		return "embedding provider error"
	}
}

// Unwrap returns the client error.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Is implements the error interface for error comparison.
func (e *ProviderError) Is(target error) bool {
	_, ok := target.(*ProviderError)

	return ok
}

const defaultTimeout = 30 * time.Second

// Provider produces embeddings of a fixed dimensionality from a Client.
// It does not cache and does not retry; retries belong to the HTTP transport given to the client.
type Provider struct {
	client     Client
	name       string
	dimensions int
	timeout    time.Duration
	metrics    observability.EmbeddingMetrics
}

// ProviderOption configures a Provider.
type ProviderOption func(*Provider)

// WithName sets the provider name used in errors and metrics (e.g. "openai").
func WithName(name string) ProviderOption {
	return func(p *Provider) {
		p.name = name
	}
}

// WithTimeout bounds each embedding call. Non-positive values are ignored.
func WithTimeout(d time.Duration) ProviderOption {
	return func(p *Provider) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithMetrics records provider call outcomes. Nil disables metrics.
func WithMetrics(m observability.EmbeddingMetrics) ProviderOption {
	return func(p *Provider) {
		p.metrics = m
	}
}

// NewProvider creates a Provider that expects vectors of exactly dimensions entries.
func NewProvider(client Client, dimensions int, opts ...ProviderOption) *Provider {
	p := &Provider{
		client:     client,
		dimensions: dimensions,
		timeout:    defaultTimeout,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Dimensions returns the configured embedding length.
func (p *Provider) Dimensions() int {
	return p.dimensions
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return p.name
}

// Embed returns the embedding for text.
// Errors: ErrEmptyText for blank input; *ProviderError for client failures and for vectors of the wrong length.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	emb, err := p.client.CreateEmbedding(callCtx, text)
	elapsed := time.Since(start)

	if err != nil {
		p.record(ctx, "error", elapsed)

		return nil, &ProviderError{Provider: p.name, Err: err}
	}

	if len(emb) != p.dimensions {
		p.record(ctx, "dimension_mismatch", elapsed)

		return nil, &ProviderError{
			Provider: p.name,
			Err:      fmt.Errorf("%w: got %d, want %d", vec.ErrDimensionMismatch, len(emb), p.dimensions),
		}
	}

	p.record(ctx, "success", elapsed)

	return emb, nil
}

func (p *Provider) record(ctx context.Context, outcome string, elapsed time.Duration) {
	if p.metrics != nil {
		p.metrics.RecordProviderCall(ctx, p.name, outcome, elapsed)
	}
}
