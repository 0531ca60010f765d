package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formbricks/promptrank/internal/models"
	"github.com/formbricks/promptrank/internal/rankerrors"
	"github.com/formbricks/promptrank/pkg/database"
)

func newSQLiteRepo(t *testing.T) *SQLitePromptsRepository {
	t.Helper()

	ctx := context.Background()
	db, err := database.OpenSQLite(ctx, database.MemoryDSN)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo := NewSQLitePromptsRepository(db)
	require.NoError(t, repo.EnsureSchema(ctx))

	return repo
}

func createPrompt(t *testing.T, repo *SQLitePromptsRepository, owner, text string, c models.Category, s models.Status) *models.Prompt {
	t.Helper()

	p, err := repo.Create(context.Background(), &models.CreatePromptRequest{
		OwnerName: owner, Prompt: text, Category: c, Status: s,
	})
	require.NoError(t, err)

	return p
}

func TestSQLitePromptsRepository_CreateAndGet(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()

	img := "fox.png"
	created, err := repo.Create(ctx, &models.CreatePromptRequest{
		OwnerName: "ana", Prompt: "a fox", Category: models.CategoryCandidate, Status: models.StatusPending,
		ImageFilename: &img,
	})
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.Equal(t, "ana", created.OwnerName)
	assert.Equal(t, models.CategoryCandidate, created.Category)
	assert.Equal(t, models.StatusPending, created.Status)
	assert.Nil(t, created.Embedding)
	assert.Nil(t, created.EmbeddingPromptHash)
	require.NotNil(t, created.ImageFilename)
	assert.Equal(t, "fox.png", *created.ImageFilename)
	assert.False(t, created.CreatedAt.IsZero())

	got, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, created.CreatedAt, got.CreatedAt)

	_, err = repo.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, rankerrors.ErrNotFound)
}

func TestSQLitePromptsRepository_CreateRejectsInvalidCategory(t *testing.T) {
	repo := newSQLiteRepo(t)

	_, err := repo.Create(context.Background(), &models.CreatePromptRequest{
		OwnerName: "ana", Prompt: "a fox", Category: "inicio", Status: models.StatusPending,
	})

	assert.ErrorIs(t, err, rankerrors.ErrStore)
}

func TestSQLitePromptsRepository_FindFiltersAndOrder(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()

	ref := createPrompt(t, repo, "admin", "reference", models.CategoryReference, models.StatusCompleted)
	a := createPrompt(t, repo, "ana", "a", models.CategoryCandidate, models.StatusCompleted)
	b := createPrompt(t, repo, "bo", "b", models.CategoryCandidate, models.StatusPending)
	createPrompt(t, repo, "gal", "g", models.CategoryGallery, models.StatusCompleted)
	c := createPrompt(t, repo, "cy", "c", models.CategoryCandidate, models.StatusCompleted)

	all, err := repo.Find(ctx, models.PromptFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 5)
	assert.Equal(t, ref.ID, all[0].ID)

	completed, err := repo.Find(ctx, models.PromptFilter{
		Categories: []models.Category{models.CategoryCandidate},
		Statuses:   []models.Status{models.StatusCompleted},
	})
	require.NoError(t, err)
	require.Len(t, completed, 2)
	assert.Equal(t, a.ID, completed[0].ID)
	assert.Equal(t, c.ID, completed[1].ID)

	setEmbedding(t, repo, a.ID, []float32{1, 0}, "a")

	missing, err := repo.Find(ctx, models.PromptFilter{
		Categories:       []models.Category{models.CategoryReference, models.CategoryCandidate},
		MissingEmbedding: true,
	})
	require.NoError(t, err)

	ids := make([]uuid.UUID, len(missing))
	for i, p := range missing {
		ids[i] = p.ID
	}
	assert.Equal(t, []uuid.UUID{ref.ID, b.ID, c.ID}, ids)

	none, err := repo.Find(ctx, models.PromptFilter{Statuses: []models.Status{models.StatusFailed}})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestSQLitePromptsRepository_FindOne(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()
	refFilter := models.PromptFilter{Categories: []models.Category{models.CategoryReference}}

	p, err := repo.FindOne(ctx, refFilter)
	require.NoError(t, err)
	assert.Nil(t, p)

	first := createPrompt(t, repo, "admin", "first", models.CategoryReference, models.StatusCompleted)
	createPrompt(t, repo, "admin", "second", models.CategoryReference, models.StatusCompleted)

	p, err = repo.FindOne(ctx, refFilter)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, first.ID, p.ID)
}

func setEmbedding(t *testing.T, repo *SQLitePromptsRepository, id uuid.UUID, vec []float32, text string) {
	t.Helper()

	stored, err := repo.SetEmbedding(context.Background(), id, vec, text)
	require.NoError(t, err)
	require.True(t, stored)
}

func TestSQLitePromptsRepository_SetEmbedding(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()
	p := createPrompt(t, repo, "ana", "a fox", models.CategoryCandidate, models.StatusPending)

	claimed, err := repo.ClaimEmbedding(ctx, p.ID, time.Minute)
	require.NoError(t, err)
	require.True(t, claimed)

	vec := []float32{0.6, 0.8, 0}
	setEmbedding(t, repo, p.ID, vec, "a fox")

	got, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, vec, got.Embedding)
	require.NotNil(t, got.EmbeddingPromptHash)
	assert.Equal(t, models.PromptHash("a fox"), *got.EmbeddingPromptHash)
	assert.Nil(t, got.EmbeddingClaimedAt)

	_, err = repo.SetEmbedding(ctx, uuid.New(), vec, "a fox")
	assert.ErrorIs(t, err, rankerrors.ErrNotFound)
}

func TestSQLitePromptsRepository_SetEmbedding_TextChanged(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()
	p := createPrompt(t, repo, "ana", "a fox", models.CategoryCandidate, models.StatusPending)

	claimed, err := repo.ClaimEmbedding(ctx, p.ID, time.Minute)
	require.NoError(t, err)
	require.True(t, claimed)

	edited, err := repo.UpdatePrompt(ctx, p.ID, "a wolf")
	require.NoError(t, err)
	assert.Nil(t, edited.EmbeddingClaimedAt, "editing the text drops the claim")

	stored, err := repo.SetEmbedding(ctx, p.ID, []float32{1, 0}, "a fox")
	require.NoError(t, err)
	assert.False(t, stored)

	got, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Embedding)
	assert.Nil(t, got.EmbeddingPromptHash)

	setEmbedding(t, repo, p.ID, []float32{0, 1}, "a wolf")
}

func TestSQLitePromptsRepository_ClaimEmbedding(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()
	p := createPrompt(t, repo, "ana", "a fox", models.CategoryCandidate, models.StatusPending)

	t.Run("first claim wins", func(t *testing.T) {
		claimed, err := repo.ClaimEmbedding(ctx, p.ID, time.Minute)
		require.NoError(t, err)
		assert.True(t, claimed)

		got, err := repo.GetByID(ctx, p.ID)
		require.NoError(t, err)
		assert.NotNil(t, got.EmbeddingClaimedAt)
	})

	t.Run("live claim blocks others", func(t *testing.T) {
		claimed, err := repo.ClaimEmbedding(ctx, p.ID, time.Minute)
		require.NoError(t, err)
		assert.False(t, claimed)
	})

	t.Run("expired claim can be taken over", func(t *testing.T) {
		time.Sleep(5 * time.Millisecond)

		claimed, err := repo.ClaimEmbedding(ctx, p.ID, time.Millisecond)
		require.NoError(t, err)
		assert.True(t, claimed)
	})

	t.Run("released claim can be retaken", func(t *testing.T) {
		require.NoError(t, repo.ReleaseEmbeddingClaim(ctx, p.ID))

		claimed, err := repo.ClaimEmbedding(ctx, p.ID, time.Minute)
		require.NoError(t, err)
		assert.True(t, claimed)
	})

	t.Run("embedded prompt is never claimed", func(t *testing.T) {
		setEmbedding(t, repo, p.ID, []float32{1}, "a fox")

		claimed, err := repo.ClaimEmbedding(ctx, p.ID, time.Nanosecond)
		require.NoError(t, err)
		assert.False(t, claimed)
	})

	t.Run("unknown prompt", func(t *testing.T) {
		_, err := repo.ClaimEmbedding(ctx, uuid.New(), time.Minute)
		assert.ErrorIs(t, err, rankerrors.ErrNotFound)
	})
}

func TestSQLitePromptsRepository_UpdateStatus(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()
	p := createPrompt(t, repo, "ana", "a fox", models.CategoryCandidate, models.StatusPending)

	img := "ana_fox.png"
	updated, err := repo.UpdateStatus(ctx, p.ID, &models.UpdatePromptStatusRequest{
		Status: models.StatusCompleted, ImageFilename: &img,
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, updated.Status)
	require.NotNil(t, updated.ImageFilename)
	assert.Equal(t, img, *updated.ImageFilename)
	assert.Nil(t, updated.Error)

	reason := "quota exceeded"
	updated, err = repo.UpdateStatus(ctx, p.ID, &models.UpdatePromptStatusRequest{
		Status: models.StatusFailed, Error: &reason,
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, updated.Status)
	require.NotNil(t, updated.Error)
	assert.Equal(t, reason, *updated.Error)
	require.NotNil(t, updated.ImageFilename, "image filename is kept when not provided")

	_, err = repo.UpdateStatus(ctx, uuid.New(), &models.UpdatePromptStatusRequest{Status: models.StatusCompleted})
	assert.ErrorIs(t, err, rankerrors.ErrNotFound)
}

func TestSQLitePromptsRepository_UpdatePrompt(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()
	p := createPrompt(t, repo, "ana", "a fox", models.CategoryCandidate, models.StatusCompleted)
	setEmbedding(t, repo, p.ID, []float32{1, 0}, "a fox")

	t.Run("same text keeps the embedding", func(t *testing.T) {
		got, err := repo.UpdatePrompt(ctx, p.ID, "a fox")
		require.NoError(t, err)
		assert.Equal(t, []float32{1, 0}, got.Embedding)
		assert.NotNil(t, got.EmbeddingPromptHash)
	})

	t.Run("new text clears the embedding", func(t *testing.T) {
		got, err := repo.UpdatePrompt(ctx, p.ID, "a wolf")
		require.NoError(t, err)
		assert.Equal(t, "a wolf", got.Prompt)
		assert.Nil(t, got.Embedding)
		assert.Nil(t, got.EmbeddingPromptHash)
	})

	t.Run("unknown prompt", func(t *testing.T) {
		_, err := repo.UpdatePrompt(ctx, uuid.New(), "x")
		assert.ErrorIs(t, err, rankerrors.ErrNotFound)
	})
}
