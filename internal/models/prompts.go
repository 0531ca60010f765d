package models

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// Category classifies a prompt. Only reference and candidate prompts take part in ranking.
type Category string

// Prompt categories.
const (
	CategoryReference Category = "reference"
	CategoryCandidate Category = "candidate"
	CategoryGallery   Category = "gallery"
)

// IsValid reports whether c is a known category.
func (c Category) IsValid() bool {
	switch c {
	case CategoryReference, CategoryCandidate, CategoryGallery:
		return true
	default:
		return false
	}
}

// Ranked reports whether prompts of this category are embedded and ranked.
func (c Category) Ranked() bool {
	return c == CategoryReference || c == CategoryCandidate
}

// Status is the image generation status written by the image pipeline.
type Status string

// Prompt statuses.
const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusFailed:
		return true
	default:
		return false
	}
}

// Prompt is a submitted or reference prompt.
// Embedding is nil until it has been generated; once set it is only cleared when the prompt text changes.
type Prompt struct {
	ID                  uuid.UUID  `json:"id"`
	OwnerName           string     `json:"owner_name"`
	Prompt              string     `json:"prompt"`
	Category            Category   `json:"category"`
	Status              Status     `json:"status"`
	Embedding           []float32  `json:"embedding,omitempty"`
	EmbeddingPromptHash *string    `json:"embedding_prompt_hash,omitempty"`
	EmbeddingClaimedAt  *time.Time `json:"-"`
	ImageFilename       *string    `json:"image_filename,omitempty"`
	Error               *string    `json:"error,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// HasEmbedding reports whether the prompt carries a usable embedding.
func (p Prompt) HasEmbedding() bool {
	return len(p.Embedding) > 0
}

// PromptHash returns the hex sha256 of the prompt text an embedding was generated from.
func PromptHash(text string) string {
	sum := sha256.Sum256([]byte(text))

	return hex.EncodeToString(sum[:])
}

// PromptFilter selects prompts from the store. Empty slices match everything.
type PromptFilter struct {
	Categories       []Category
	Statuses         []Status
	MissingEmbedding bool
}

// CreatePromptRequest represents the request to create a prompt.
type CreatePromptRequest struct {
	OwnerName     string   `json:"owner_name" yaml:"owner_name"`
	Prompt        string   `json:"prompt" yaml:"prompt"`
	Category      Category `json:"category" yaml:"category"`
	Status        Status   `json:"status" yaml:"status"`
	ImageFilename *string  `json:"image_filename,omitempty" yaml:"image_filename,omitempty"`
}

// UpdatePromptStatusRequest carries the image pipeline outcome for a prompt.
type UpdatePromptStatusRequest struct {
	Status        Status  `json:"status"`
	ImageFilename *string `json:"image_filename,omitempty"`
	Error         *string `json:"error,omitempty"`
}

// RankedPrompt pairs a prompt with its raw cosine similarity to the reference prompt.
type RankedPrompt struct {
	Prompt Prompt  `json:"prompt"`
	Score  float64 `json:"score"`
}

// RankedSubmission is the user-facing ranking row. Similarity is a percentage rounded to 2 decimals.
type RankedSubmission struct {
	ID            uuid.UUID `json:"id"`
	OwnerName     string    `json:"owner_name"`
	Prompt        string    `json:"prompt"`
	Status        Status    `json:"status"`
	ImageFilename *string   `json:"image_filename,omitempty"`
	Similarity    float64   `json:"similarity"`
}
