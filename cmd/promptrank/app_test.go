package main

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formbricks/promptrank/internal/config"
	"github.com/formbricks/promptrank/internal/embeddings"
	"github.com/formbricks/promptrank/internal/models"
	"github.com/formbricks/promptrank/internal/openai"
	"github.com/formbricks/promptrank/internal/service"
	"github.com/formbricks/promptrank/pkg/database"
)

func sqliteConfig() *config.Config {
	return &config.Config{
		StoreDriver:            config.StoreDriverSQLite,
		SQLitePath:             database.MemoryDSN,
		EmbeddingProvider:      config.EmbeddingProviderMock,
		EmbeddingDimensions:    64,
		EmbeddingTimeout:       5 * time.Second,
		EmbeddingClaimTTL:      time.Minute,
		BackfillConcurrency:    1,
		EmbeddingMaxConcurrent: 1,
		EmbeddingMaxAttempts:   3,
	}
}

func TestNewEmbeddingClient(t *testing.T) {
	ctx := context.Background()

	t.Run("mock", func(t *testing.T) {
		client, err := newEmbeddingClient(ctx, sqliteConfig())
		require.NoError(t, err)
		assert.IsType(t, &embeddings.MockClient{}, client)
	})

	t.Run("openai", func(t *testing.T) {
		cfg := sqliteConfig()
		cfg.EmbeddingProvider = config.EmbeddingProviderOpenAI
		cfg.EmbeddingProviderAPIKey = "sk-test"

		client, err := newEmbeddingClient(ctx, cfg)
		require.NoError(t, err)
		require.IsType(t, &openai.Client{}, client)
		assert.Equal(t, openai.DefaultModel, client.(*openai.Client).Model())
	})

	t.Run("unsupported", func(t *testing.T) {
		cfg := sqliteConfig()
		cfg.EmbeddingProvider = "local"

		_, err := newEmbeddingClient(ctx, cfg)
		require.ErrorIs(t, err, errUnsupportedEmbeddingProvider)
	})
}

func TestNewProviderHTTPClient(t *testing.T) {
	cfg := sqliteConfig()
	cfg.EmbeddingHTTPMaxRetries = 2

	client := newProviderHTTPClient(cfg)

	require.NotNil(t, client)
	assert.NotNil(t, client.Transport)
}

func TestNewApp_QueueRequiresPostgres(t *testing.T) {
	_, err := NewApp(context.Background(), sqliteConfig(), appOptions{queue: true})

	require.ErrorIs(t, err, errQueueRequiresPostgres)
}

func TestApp_SeedBackfillAndRankOnSQLite(t *testing.T) {
	ctx := context.Background()

	app, err := NewApp(ctx, sqliteConfig(), appOptions{embedder: true})
	require.NoError(t, err)
	defer app.Close(ctx)

	seed := `
prompts:
  - owner_name: admin
    prompt: apple, orange, avocado
    category: reference
  - owner_name: copycat
    prompt: apple, orange, avocado
    category: candidate
  - owner_name: partial
    prompt: apple and a banana
    category: candidate
  - owner_name: unrelated
    prompt: submarine under the polar ice
    category: candidate
  - owner_name: waiting
    prompt: apple, orange, avocado
    category: candidate
    status: pending
  - owner_name: gallery
    prompt: apple, orange, avocado
    category: gallery
`
	reqs, err := service.LoadSeedFile(strings.NewReader(seed))
	require.NoError(t, err)

	stats, err := app.PromptsService().Seed(ctx, reqs)
	require.NoError(t, err)
	assert.Equal(t, 6, stats.Created)

	backfill, err := app.BackfillService(nil).UpdatePromptEmbeddings(ctx)
	require.NoError(t, err)
	assert.Equal(t, service.BackfillStats{Scanned: 5, Embedded: 5}, backfill)

	again, err := app.BackfillService(nil).UpdatePromptEmbeddings(ctx)
	require.NoError(t, err)
	assert.Equal(t, service.BackfillStats{}, again)

	ranked, err := app.RankingService().GetRankedSubmissions(ctx)
	require.NoError(t, err)
	require.Len(t, ranked, 3)
	assert.Equal(t, "copycat", ranked[0].OwnerName)
	assert.InDelta(t, 100.0, ranked[0].Similarity, 1e-9)
	assert.Equal(t, "partial", ranked[1].OwnerName)
	assert.Equal(t, "unrelated", ranked[2].OwnerName)

	report, err := app.RankingService().RankReport(ctx)
	require.NoError(t, err)
	assert.Len(t, report, 4)

	gallery, err := app.store.Find(ctx, models.PromptFilter{Categories: []models.Category{models.CategoryGallery}})
	require.NoError(t, err)
	require.Len(t, gallery, 1)
	assert.False(t, gallery[0].HasEmbedding(), "gallery prompts are never embedded")
}
