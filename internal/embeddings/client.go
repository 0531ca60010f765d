// Package embeddings turns prompt text into fixed-size vectors through a pluggable embedding client.
package embeddings

import "context"

// Client defines the interface for generating text embeddings.
// Implemented by openai.Client, googleai.Client and MockClient.
type Client interface {
	// CreateEmbedding returns the embedding vector for a single input text.
	CreateEmbedding(ctx context.Context, input string) ([]float32, error)
}
