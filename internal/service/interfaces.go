package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/formbricks/promptrank/internal/models"
)

// PromptsRepository defines the interface for prompt data access.
// Implemented by repository.PromptsRepository (Postgres) and repository.SQLitePromptsRepository.
type PromptsRepository interface {
	EmbeddingStore
	Create(ctx context.Context, req *models.CreatePromptRequest) (*models.Prompt, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, req *models.UpdatePromptStatusRequest) (*models.Prompt, error)
	UpdatePrompt(ctx context.Context, id uuid.UUID, text string) (*models.Prompt, error)
}

// EmbeddingStore is the part of the prompt store used by backfill and ranking.
type EmbeddingStore interface {
	// Find returns matching prompts in store order. FindOne returns nil, nil when nothing matches.
	Find(ctx context.Context, filter models.PromptFilter) ([]models.Prompt, error)
	FindOne(ctx context.Context, filter models.PromptFilter) (*models.Prompt, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Prompt, error)
	// SetEmbedding stores an embedding generated from text. It reports false when the prompt text has
	// changed since, in which case nothing is written.
	SetEmbedding(ctx context.Context, id uuid.UUID, embedding []float32, text string) (bool, error)
	ClaimEmbedding(ctx context.Context, id uuid.UUID, ttl time.Duration) (bool, error)
	ReleaseEmbeddingClaim(ctx context.Context, id uuid.UUID) error
}

// Embedder turns prompt text into a vector. Implemented by embeddings.Provider.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// EmbeddingEnsurer guarantees a prompt carries an embedding. Implemented by EmbeddingBackfillService.
type EmbeddingEnsurer interface {
	EnsureEmbedding(ctx context.Context, prompt *models.Prompt) ([]float32, error)
}
