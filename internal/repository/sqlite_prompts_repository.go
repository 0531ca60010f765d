package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/formbricks/promptrank/internal/models"
	"github.com/formbricks/promptrank/internal/rankerrors"
)

// sqliteTimeLayout is fixed-width so text ordering matches time ordering. Times are always UTC.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLitePromptsRepository stores prompts in a single SQLite file. Embeddings are float32 BLOBs.
type SQLitePromptsRepository struct {
	db *sql.DB
}

// NewSQLitePromptsRepository creates a prompts repository on an open SQLite handle.
func NewSQLitePromptsRepository(db *sql.DB) *SQLitePromptsRepository {
	return &SQLitePromptsRepository{db: db}
}

// EnsureSchema creates the prompts table and indexes when missing.
func (r *SQLitePromptsRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, sqliteSchema); err != nil {
		return rankerrors.NewStoreError("ensure schema", err)
	}

	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(sqliteTimeLayout, s)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLitePrompt(row rowScanner) (*models.Prompt, error) {
	var (
		p                    models.Prompt
		emb                  []byte
		claimedAt            sql.NullString
		createdAt, updatedAt string
	)

	err := row.Scan(
		&p.ID, &p.OwnerName, &p.Prompt, &p.Category, &p.Status, &emb, &p.EmbeddingPromptHash,
		&claimedAt, &p.ImageFilename, &p.Error, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if p.Embedding, err = decodeEmbedding(emb); err != nil {
		return nil, err
	}

	if claimedAt.Valid {
		t, err := parseTime(claimedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse embedding_claimed_at: %w", err)
		}

		p.EmbeddingClaimedAt = &t
	}

	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}

	if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}

	return &p, nil
}

// buildSQLiteFilterConditions is the SQLite form of buildFilterConditions (IN lists instead of ANY).
func buildSQLiteFilterConditions(filter models.PromptFilter) (whereClause string, args []any) {
	var conditions []string

	if len(filter.Categories) > 0 {
		placeholders := make([]string, len(filter.Categories))
		for i, c := range filter.Categories {
			placeholders[i] = "?"
			args = append(args, string(c))
		}

		conditions = append(conditions, "category IN ("+strings.Join(placeholders, ", ")+")")
	}

	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			placeholders[i] = "?"
			args = append(args, string(s))
		}

		conditions = append(conditions, "status IN ("+strings.Join(placeholders, ", ")+")")
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
func (r *SQLitePromptsRepository) Find(ctx context.Context, filter models.PromptFilter) ([]models.Prompt, error) {
	whereClause, args := buildSQLiteFilterConditions(filter)
	query := "SELECT " + promptColumns + " FROM prompts" + whereClause + " ORDER BY created_at ASC, id ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, rankerrors.NewStoreError("find prompts", err)
	}
	defer rows.Close()

	prompts := []models.Prompt{}

	for rows.Next() {
		p, err := scanSQLitePrompt(rows)
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
func (r *SQLitePromptsRepository) FindOne(ctx context.Context, filter models.PromptFilter) (*models.Prompt, error) {
	whereClause, args := buildSQLiteFilterConditions(filter)
	query := "SELECT " + promptColumns + " FROM prompts" + whereClause + " ORDER BY created_at ASC, id ASC LIMIT 1"

	p, err := scanSQLitePrompt(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			//nolint:nilnil // no match is not an error for FindOne
			return nil, nil
		}

		return nil, rankerrors.NewStoreError("find prompt", err)
	}

	return p, nil
}

// GetByID retrieves a single prompt by ID.
func (r *SQLitePromptsRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Prompt, error) {
	p, err := scanSQLitePrompt(r.db.QueryRowContext(ctx, "SELECT "+promptColumns+" FROM prompts WHERE id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, rankerrors.NewNotFoundError("prompt", "prompt not found")
		}

		return nil, rankerrors.NewStoreError("get prompt", err)
	}

	return p, nil
}

// Create inserts a new prompt with a time-ordered ID and no embedding.
func (r *SQLitePromptsRepository) Create(ctx context.Context, req *models.CreatePromptRequest) (*models.Prompt, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate prompt id: %w", err)
	}

	now := formatTime(time.Now())
	query := `
		INSERT INTO prompts (id, owner_name, prompt, category, status, image_filename, created_at, updated_at)
		VALUES (?1, ?2, ?3, ?4, ?5, ?6, ?7, ?7)
		RETURNING ` + promptColumns

	p, err := scanSQLitePrompt(r.db.QueryRowContext(ctx, query,
		id, req.OwnerName, req.Prompt, string(req.Category), string(req.Status), req.ImageFilename, now,
	))
	if err != nil {
		return nil, rankerrors.NewStoreError("create prompt", err)
	}

	return p, nil
}

// UpdateStatus records the image pipeline outcome for a prompt.
func (r *SQLitePromptsRepository) UpdateStatus(
	ctx context.Context, id uuid.UUID, req *models.UpdatePromptStatusRequest,
) (*models.Prompt, error) {
	query := `
		UPDATE prompts
		SET status = ?1, image_filename = COALESCE(?2, image_filename), error = ?3, updated_at = ?4
		WHERE id = ?5
		RETURNING ` + promptColumns

	p, err := scanSQLitePrompt(r.db.QueryRowContext(ctx, query,
		string(req.Status), req.ImageFilename, req.Error, formatTime(time.Now()), id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, rankerrors.NewNotFoundError("prompt", "prompt not found")
		}

		return nil, rankerrors.NewStoreError("update prompt status", err)
	}

	return p, nil
}

// UpdatePrompt replaces the prompt text, clearing the embedding, its hash and any claim when the text changes.
func (r *SQLitePromptsRepository) UpdatePrompt(ctx context.Context, id uuid.UUID, text string) (*models.Prompt, error) {
	query := `
		UPDATE prompts
		SET embedding = CASE WHEN prompt = ?1 THEN embedding ELSE NULL END,
		    embedding_prompt_hash = CASE WHEN prompt = ?1 THEN embedding_prompt_hash ELSE NULL END,
		    embedding_claimed_at = CASE WHEN prompt = ?1 THEN embedding_claimed_at ELSE NULL END,
		    prompt = ?1,
		    updated_at = ?2
		WHERE id = ?3
		RETURNING ` + promptColumns

	p, err := scanSQLitePrompt(r.db.QueryRowContext(ctx, query, text, formatTime(time.Now()), id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, rankerrors.NewNotFoundError("prompt", "prompt not found")
		}

		return nil, rankerrors.NewStoreError("update prompt", err)
	}

	return p, nil
}

// SetEmbedding stores an embedding generated from text; see PromptsRepository.SetEmbedding.
func (r *SQLitePromptsRepository) SetEmbedding(
	ctx context.Context, id uuid.UUID, embedding []float32, text string,
) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE prompts
		SET embedding = ?1, embedding_prompt_hash = ?2, embedding_claimed_at = NULL, updated_at = ?3
		WHERE id = ?4 AND prompt = ?5`,
		encodeEmbedding(embedding), models.PromptHash(text), formatTime(time.Now()), id, text,
	)
	if err != nil {
		return false, rankerrors.NewStoreError("set embedding", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, rankerrors.NewStoreError("set embedding", err)
	}

	if n == 1 {
		return true, nil
	}

	return false, r.requireExists(ctx, id, "set embedding")
}

// requireExists returns a NotFoundError when no prompt has id.
func (r *SQLitePromptsRepository) requireExists(ctx context.Context, id uuid.UUID, op string) error {
	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM prompts WHERE id = ?)`, id).Scan(&exists); err != nil {
		return rankerrors.NewStoreError(op, err)
	}

	if !exists {
		return rankerrors.NewNotFoundError("prompt", "prompt not found")
	}

	return nil
}

// ClaimEmbedding marks the prompt as being embedded by the caller; see PromptsRepository.ClaimEmbedding.
func (r *SQLitePromptsRepository) ClaimEmbedding(ctx context.Context, id uuid.UUID, ttl time.Duration) (bool, error) {
	now := time.Now()

	result, err := r.db.ExecContext(ctx, `
		UPDATE prompts SET embedding_claimed_at = ?1
		WHERE id = ?2 AND embedding IS NULL
		  AND (embedding_claimed_at IS NULL OR embedding_claimed_at < ?3)`,
		formatTime(now), id, formatTime(now.Add(-ttl)),
	)
	if err != nil {
		return false, rankerrors.NewStoreError("claim embedding", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, rankerrors.NewStoreError("claim embedding", err)
	}

	if n == 1 {
		return true, nil
	}

	return false, r.requireExists(ctx, id, "claim embedding")
}

// ReleaseEmbeddingClaim drops the caller's claim after a failed embedding attempt.
func (r *SQLitePromptsRepository) ReleaseEmbeddingClaim(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE prompts SET embedding_claimed_at = NULL WHERE id = ?`, id); err != nil {
		return rankerrors.NewStoreError("release embedding claim", err)
	}

	return nil
}
