// Package repository provides data access for prompts on Postgres (pgvector) and SQLite.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/formbricks/promptrank/internal/models"
	"github.com/formbricks/promptrank/internal/rankerrors"
)

var errEmbeddingScanInvalidType = errors.New("prompts.embedding: unsupported scan source")

// nullableEmbedding reads prompts.embedding. The column stays NULL until a prompt is embedded, and
// pgvector.Vector cannot scan NULL, so NULL and empty input both yield a nil slice.
type nullableEmbedding []float32

func (n *nullableEmbedding) Scan(src any) error {
	*n = nil

	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		if len(v) == 0 {
			return nil
		}

		var vec pgvector.Vector
		if err := vec.DecodeBinary(v); err != nil {
			return fmt.Errorf("decode prompts.embedding: %w", err)
		}

		*n = vec.Slice()

		return nil
	default:
		return fmt.Errorf("%w: %T", errEmbeddingScanInvalidType, src)
	}
}

const promptColumns = `id, owner_name, prompt, category, status, embedding, embedding_prompt_hash,
	embedding_claimed_at, image_filename, error, created_at, updated_at`

// PromptsRepository handles data access for prompts stored in Postgres.
type PromptsRepository struct {
	db *pgxpool.Pool
}

// NewPromptsRepository creates a new prompts repository.
func NewPromptsRepository(db *pgxpool.Pool) *PromptsRepository {
	return &PromptsRepository{db: db}
}

// EnsureSchema creates the prompts table and indexes when missing.
// The vector extension must already exist (see database.EnsureVectorExtension).
func (r *PromptsRepository) EnsureSchema(ctx context.Context, dimensions int) error {
	if _, err := r.db.Exec(ctx, postgresSchemaFor(dimensions)); err != nil {
		return rankerrors.NewStoreError("ensure schema", err)
	}

	return nil
}

func scanPrompt(row pgx.Row) (*models.Prompt, error) {
	var (
		p   models.Prompt
		emb nullableEmbedding
	)

	err := row.Scan(
		&p.ID, &p.OwnerName, &p.Prompt, &p.Category, &p.Status, &emb, &p.EmbeddingPromptHash,
		&p.EmbeddingClaimedAt, &p.ImageFilename, &p.Error, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.Embedding = emb

	return &p, nil
}

// buildFilterConditions builds the WHERE clause and args for a prompt filter.
// Returns the WHERE clause (including " WHERE " prefix if conditions exist) and the args slice.
func buildFilterConditions(filter models.PromptFilter) (whereClause string, args []any) {
	var conditions []string

	argCount := 1

	if len(filter.Categories) > 0 {
		categories := make([]string, len(filter.Categories))
		for i, c := range filter.Categories {
			categories[i] = string(c)
		}

		conditions = append(conditions, fmt.Sprintf("category = ANY($%d)", argCount))
		args = append(args, categories)
		argCount++
	}

	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}

		conditions = append(conditions, fmt.Sprintf("status = ANY($%d)", argCount))
		args = append(args, statuses)
	}

	if filter.MissingEmbedding {
		conditions = append(conditions, "embedding IS NULL")
	}

	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	return whereClause, args
}

// Find returns prompts matching filter in store order (created_at, id).
func (r *PromptsRepository) Find(ctx context.Context, filter models.PromptFilter) ([]models.Prompt, error) {
	whereClause, args := buildFilterConditions(filter)
	query := "SELECT " + promptColumns + " FROM prompts" + whereClause + " ORDER BY created_at ASC, id ASC"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, rankerrors.NewStoreError("find prompts", err)
	}
	defer rows.Close()

	prompts := []models.Prompt{}

	for rows.Next() {
		p, err := scanPrompt(rows)
		if err != nil {
			return nil, rankerrors.NewStoreError("scan prompt", err)
		}

		prompts = append(prompts, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, rankerrors.NewStoreError("iterate prompts", err)
	}

	return prompts, nil
}

// FindOne returns the first prompt matching filter in store order, or nil when none match.
func (r *PromptsRepository) FindOne(ctx context.Context, filter models.PromptFilter) (*models.Prompt, error) {
	whereClause, args := buildFilterConditions(filter)
	query := "SELECT " + promptColumns + " FROM prompts" + whereClause + " ORDER BY created_at ASC, id ASC LIMIT 1"

	p, err := scanPrompt(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			//nolint:nilnil // no match is not an error for FindOne
			return nil, nil
		}

		return nil, rankerrors.NewStoreError("find prompt", err)
	}

	return p, nil
}

// GetByID retrieves a single prompt by ID.
func (r *PromptsRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Prompt, error) {
	query := "SELECT " + promptColumns + " FROM prompts WHERE id = $1"

	p, err := scanPrompt(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, rankerrors.NewNotFoundError("prompt", "prompt not found")
		}

		return nil, rankerrors.NewStoreError("get prompt", err)
	}

	return p, nil
}

// Create inserts a new prompt with a time-ordered ID and no embedding.
func (r *PromptsRepository) Create(ctx context.Context, req *models.CreatePromptRequest) (*models.Prompt, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate prompt id: %w", err)
	}

	now := time.Now().UTC()
	query := `
		INSERT INTO prompts (id, owner_name, prompt, category, status, image_filename, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		RETURNING ` + promptColumns

	p, err := scanPrompt(r.db.QueryRow(ctx, query,
		id, req.OwnerName, req.Prompt, req.Category, req.Status, req.ImageFilename, now,
	))
	if err != nil {
		return nil, rankerrors.NewStoreError("create prompt", err)
	}

	return p, nil
}

// UpdateStatus records the image pipeline outcome for a prompt.
func (r *PromptsRepository) UpdateStatus(
	ctx context.Context, id uuid.UUID, req *models.UpdatePromptStatusRequest,
) (*models.Prompt, error) {
	query := `
		UPDATE prompts
		SET status = $1, image_filename = COALESCE($2, image_filename), error = $3, updated_at = $4
		WHERE id = $5
		RETURNING ` + promptColumns

	p, err := scanPrompt(r.db.QueryRow(ctx, query, req.Status, req.ImageFilename, req.Error, time.Now().UTC(), id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, rankerrors.NewNotFoundError("prompt", "prompt not found")
		}

		return nil, rankerrors.NewStoreError("update prompt status", err)
	}

	return p, nil
}

// UpdatePrompt replaces the prompt text. When the text changes the embedding, its hash and any claim are
// cleared so the next backfill regenerates it.
func (r *PromptsRepository) UpdatePrompt(ctx context.Context, id uuid.UUID, text string) (*models.Prompt, error) {
	query := `
		UPDATE prompts
		SET embedding = CASE WHEN prompt = $1 THEN embedding ELSE NULL END,
		    embedding_prompt_hash = CASE WHEN prompt = $1 THEN embedding_prompt_hash ELSE NULL END,
		    embedding_claimed_at = CASE WHEN prompt = $1 THEN embedding_claimed_at ELSE NULL END,
		    prompt = $1,
		    updated_at = $2
		WHERE id = $3
		RETURNING ` + promptColumns

	p, err := scanPrompt(r.db.QueryRow(ctx, query, text, time.Now().UTC(), id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, rankerrors.NewNotFoundError("prompt", "prompt not found")
		}

		return nil, rankerrors.NewStoreError("update prompt", err)
	}

	return p, nil
}

// SetEmbedding stores an embedding generated from text together with the text's hash and clears any claim.
// It reports false when the prompt no longer holds text, leaving the row untouched.
func (r *PromptsRepository) SetEmbedding(
	ctx context.Context, id uuid.UUID, embedding []float32, text string,
) (bool, error) {
	result, err := r.db.Exec(ctx, `
		UPDATE prompts
		SET embedding = $1, embedding_prompt_hash = $2, embedding_claimed_at = NULL, updated_at = $3
		WHERE id = $4 AND prompt = $5`,
		pgvector.NewVector(embedding), models.PromptHash(text), time.Now().UTC(), id, text,
	)
	if err != nil {
		return false, rankerrors.NewStoreError("set embedding", err)
	}

	if result.RowsAffected() == 1 {
		return true, nil
	}

	return false, r.requireExists(ctx, id, "set embedding")
}

// requireExists returns a NotFoundError when no prompt has id.
func (r *PromptsRepository) requireExists(ctx context.Context, id uuid.UUID, op string) error {
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM prompts WHERE id = $1)`, id).Scan(&exists); err != nil {
		return rankerrors.NewStoreError(op, err)
	}

	if !exists {
		return rankerrors.NewNotFoundError("prompt", "prompt not found")
	}

	return nil
}

// ClaimEmbedding marks the prompt as being embedded by the caller. It succeeds only when the prompt has no
// embedding and no live claim (a claim older than ttl is considered abandoned).
func (r *PromptsRepository) ClaimEmbedding(ctx context.Context, id uuid.UUID, ttl time.Duration) (bool, error) {
	now := time.Now().UTC()

	result, err := r.db.Exec(ctx, `
		UPDATE prompts SET embedding_claimed_at = $1
		WHERE id = $2 AND embedding IS NULL
		  AND (embedding_claimed_at IS NULL OR embedding_claimed_at < $3)`,
		now, id, now.Add(-ttl),
	)
	if err != nil {
		return false, rankerrors.NewStoreError("claim embedding", err)
	}

	if result.RowsAffected() == 1 {
		return true, nil
	}

	return false, r.requireExists(ctx, id, "claim embedding")
}

// ReleaseEmbeddingClaim drops the caller's claim after a failed embedding attempt.
func (r *PromptsRepository) ReleaseEmbeddingClaim(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.Exec(ctx, `UPDATE prompts SET embedding_claimed_at = NULL WHERE id = $1`, id); err != nil {
		return rankerrors.NewStoreError("release embedding claim", err)
	}

	return nil
}
