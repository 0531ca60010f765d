package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/formbricks/promptrank/internal/models"
	"github.com/formbricks/promptrank/internal/rankerrors"
)

// PromptsService handles submissions and the image pipeline's status updates.
type PromptsService struct {
	repo PromptsRepository
}

// NewPromptsService creates a new prompts service.
func NewPromptsService(repo PromptsRepository) *PromptsService {
	return &PromptsService{repo: repo}
}

// Submit stores a new candidate prompt in pending state. It has no embedding until the next backfill or ranking.
func (s *PromptsService) Submit(ctx context.Context, ownerName, prompt string) (*models.Prompt, error) {
	ownerName = strings.TrimSpace(ownerName)
	prompt = strings.TrimSpace(prompt)

	if ownerName == "" {
		return nil, rankerrors.NewValidationError("owner_name", "owner_name is required")
	}

	if prompt == "" {
		return nil, rankerrors.NewValidationError("prompt", "prompt is required")
	}

	created, err := s.repo.Create(ctx, &models.CreatePromptRequest{
		OwnerName: ownerName,
		Prompt:    prompt,
		Category:  models.CategoryCandidate,
		Status:    models.StatusPending,
	})
	if err != nil {
		return nil, fmt.Errorf("submit prompt: %w", err)
	}

	slog.InfoContext(ctx, "prompts: submitted", "prompt_id", created.ID, "owner_name", ownerName)

	return created, nil
}

// GetPrompt retrieves a single prompt by ID.
func (s *PromptsService) GetPrompt(ctx context.Context, id uuid.UUID) (*models.Prompt, error) {
	return s.repo.GetByID(ctx, id)
}

// MarkCompleted records a generated image for the prompt.
func (s *PromptsService) MarkCompleted(ctx context.Context, id uuid.UUID, imageFilename string) (*models.Prompt, error) {
	imageFilename = strings.TrimSpace(imageFilename)
	if imageFilename == "" {
		return nil, rankerrors.NewValidationError("image_filename", "image_filename is required")
	}

	return s.repo.UpdateStatus(ctx, id, &models.UpdatePromptStatusRequest{
		Status:        models.StatusCompleted,
		ImageFilename: &imageFilename,
	})
}

// MarkFailed records an image generation failure for the prompt.
func (s *PromptsService) MarkFailed(ctx context.Context, id uuid.UUID, reason string) (*models.Prompt, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "image generation failed"
	}

	return s.repo.UpdateStatus(ctx, id, &models.UpdatePromptStatusRequest{
		Status: models.StatusFailed,
		Error:  &reason,
	})
}

// UpdatePrompt replaces the prompt text. A changed text drops the stored embedding so it is regenerated.
func (s *PromptsService) UpdatePrompt(ctx context.Context, id uuid.UUID, text string) (*models.Prompt, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, rankerrors.NewValidationError("prompt", "prompt is required")
	}

	return s.repo.UpdatePrompt(ctx, id, text)
}

// SeedFile is the YAML layout accepted by LoadSeedFile.
type SeedFile struct {
	Prompts []models.CreatePromptRequest `yaml:"prompts"`
}

// SeedStats summarizes a Seed call.
type SeedStats struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
}

// LoadSeedFile parses seed prompts from YAML.
func LoadSeedFile(r io.Reader) ([]models.CreatePromptRequest, error) {
	var file SeedFile

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}

		return nil, fmt.Errorf("decode seed file: %w", err)
	}

	return file.Prompts, nil
}

func validateSeed(i int, req *models.CreatePromptRequest) error {
	req.OwnerName = strings.TrimSpace(req.OwnerName)
	req.Prompt = strings.TrimSpace(req.Prompt)

	if req.OwnerName == "" {
		return rankerrors.NewValidationError("owner_name", fmt.Sprintf("prompts[%d]: owner_name is required", i))
	}

	if req.Prompt == "" {
		return rankerrors.NewValidationError("prompt", fmt.Sprintf("prompts[%d]: prompt is required", i))
	}

	if !req.Category.IsValid() {
		return rankerrors.NewValidationError("category", fmt.Sprintf("prompts[%d]: invalid category %q", i, req.Category))
	}

	if req.Status == "" {
		req.Status = models.StatusCompleted
	}

	if !req.Status.IsValid() {
		return rankerrors.NewValidationError("status", fmt.Sprintf("prompts[%d]: invalid status %q", i, req.Status))
	}

	return nil
}

type seedKey struct {
	owner, prompt string
	category      models.Category
}

// Seed creates the given prompts, skipping any whose owner, text and category already exist.
// Status defaults to completed. All requests are validated before anything is written.
func (s *PromptsService) Seed(ctx context.Context, reqs []models.CreatePromptRequest) (SeedStats, error) {
	var stats SeedStats

	for i := range reqs {
		if err := validateSeed(i, &reqs[i]); err != nil {
			return stats, err
		}
	}

	existing, err := s.repo.Find(ctx, models.PromptFilter{})
	if err != nil {
		return stats, fmt.Errorf("list existing prompts: %w", err)
	}

	seen := make(map[seedKey]bool, len(existing))
	for _, p := range existing {
		seen[seedKey{p.OwnerName, p.Prompt, p.Category}] = true
	}

	for i := range reqs {
		req := &reqs[i]
		key := seedKey{req.OwnerName, req.Prompt, req.Category}

		if seen[key] {
			stats.Skipped++

			continue
		}

		if _, err := s.repo.Create(ctx, req); err != nil {
			return stats, fmt.Errorf("seed prompt %d: %w", i, err)
		}

		seen[key] = true
		stats.Created++
	}

	slog.InfoContext(ctx, "prompts: seeded", "created", stats.Created, "skipped", stats.Skipped)

	return stats, nil
}
