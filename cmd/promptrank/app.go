package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/formbricks/promptrank/internal/config"
	"github.com/formbricks/promptrank/internal/embeddings"
	"github.com/formbricks/promptrank/internal/googleai"
	"github.com/formbricks/promptrank/internal/observability"
	"github.com/formbricks/promptrank/internal/openai"
	"github.com/formbricks/promptrank/internal/repository"
	"github.com/formbricks/promptrank/internal/service"
	"github.com/formbricks/promptrank/internal/workers"
	"github.com/formbricks/promptrank/pkg/database"
)

var (
	errUnsupportedEmbeddingProvider = errors.New("unsupported embedding provider")
	errQueueRequiresPostgres        = errors.New("job queue requires STORE_DRIVER=postgres")
)

// appOptions selects the optional parts a command needs.
type appOptions struct {
	embedder bool
	queue    bool
	// work registers the embedding worker on the River client so it can process jobs.
	work bool
}

// App holds the dependencies of one CLI invocation.
type App struct {
	cfg            *config.Config
	pool           *pgxpool.Pool
	sqlite         *sql.DB
	store          service.PromptsRepository
	provider       *embeddings.Provider
	river          *river.Client[pgx.Tx]
	meterProvider  *sdkmetric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	metrics        *observability.Metrics
}

// NewApp opens the store and builds the parts selected by opts. Call Close when done.
func NewApp(ctx context.Context, cfg *config.Config, opts appOptions) (*App, error) {
	if opts.queue && cfg.StoreDriver != config.StoreDriverPostgres {
		return nil, errQueueRequiresPostgres
	}

	app := &App{cfg: cfg}

	if err := app.build(ctx, opts); err != nil {
		app.Close(context.WithoutCancel(ctx))

		return nil, err
	}

	return app, nil
}

func (a *App) build(ctx context.Context, opts appOptions) error {
	if err := a.setupObservability(); err != nil {
		return err
	}

	if err := a.openStore(ctx); err != nil {
		return err
	}

	if opts.embedder || opts.work {
		provider, err := newEmbeddingProvider(ctx, a.cfg, a.embeddingMetrics())
		if err != nil {
			return err
		}

		a.provider = provider
	}

	if opts.queue {
		client, err := a.newRiverClient(ctx, opts.work)
		if err != nil {
			return err
		}

		a.river = client
	}

	return nil
}

// setupObservability installs meter and tracer providers when their exporters are configured.
func (a *App) setupObservability() error {
	if a.cfg.OtelMetricsExporter == "" {
		slog.Debug("metrics not enabled (OTEL_METRICS_EXPORTER empty or unset)")
	} else {
		mp, err := observability.NewMeterProvider(a.cfg)
		if err != nil {
			return fmt.Errorf("create meter provider: %w", err)
		}

		if mp != nil {
			a.meterProvider = mp
			otel.SetMeterProvider(mp)

			if a.metrics, err = observability.NewMetrics(mp.Meter("promptrank")); err != nil {
				return fmt.Errorf("create metrics: %w", err)
			}
		}
	}

	if a.cfg.OtelTracesExporter == "" {
		slog.Debug("tracing not enabled (OTEL_TRACES_EXPORTER empty or unset)")

		return nil
	}

	tp, err := observability.NewTracerProvider(a.cfg)
	if err != nil {
		return fmt.Errorf("create tracer provider: %w", err)
	}

	if tp != nil {
		a.tracerProvider = tp
		otel.SetTracerProvider(tp)
	}

	return nil
}

func (a *App) embeddingMetrics() observability.EmbeddingMetrics {
	if a.metrics == nil {
		return nil
	}

	return a.metrics.Embeddings
}

func (a *App) rankingMetrics() observability.RankingMetrics {
	if a.metrics == nil {
		return nil
	}

	return a.metrics.Ranking
}

// openStore connects to the configured store and makes sure the prompts schema exists.
func (a *App) openStore(ctx context.Context) error {
	switch a.cfg.StoreDriver {
	case config.StoreDriverSQLite:
		db, err := database.OpenSQLite(ctx, a.cfg.SQLitePath)
		if err != nil {
			return fmt.Errorf("open sqlite: %w", err)
		}

		a.sqlite = db
		repo := repository.NewSQLitePromptsRepository(db)

		if err := repo.EnsureSchema(ctx); err != nil {
			return err
		}

		a.store = repo

		return nil

	default:
		if err := database.EnsureVectorExtension(ctx, a.cfg.DatabaseURL); err != nil {
			return fmt.Errorf("ensure vector extension: %w", err)
		}

		pool, err := database.NewPostgresPool(ctx, a.cfg.DatabaseURL, database.WithVectorTypes())
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}

		a.pool = pool
		repo := repository.NewPromptsRepository(pool)

		if err := repo.EnsureSchema(ctx, a.cfg.EmbeddingDimensions); err != nil {
			return err
		}

		a.store = repo

		return nil
	}
}

// newProviderHTTPClient returns the HTTP client handed to provider SDKs. Retries happen here, at the
// transport boundary; the core never retries.
func newProviderHTTPClient(cfg *config.Config) *http.Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.EmbeddingHTTPMaxRetries
	retryClient.HTTPClient.Timeout = cfg.EmbeddingTimeout
	retryClient.Logger = nil // provider errors are logged by the caller

	return retryClient.StandardClient()
}

// newEmbeddingClient builds the SDK client for cfg.EmbeddingProvider.
func newEmbeddingClient(ctx context.Context, cfg *config.Config) (embeddings.Client, error) {
	switch cfg.EmbeddingProvider {
	case config.EmbeddingProviderOpenAI:
		return openai.NewClient(cfg.EmbeddingProviderAPIKey,
			openai.WithModel(cfg.EmbeddingModel),
			openai.WithDimensions(cfg.EmbeddingDimensions),
			openai.WithHTTPClient(newProviderHTTPClient(cfg)),
		), nil
	case config.EmbeddingProviderGoogle:
		client, err := googleai.NewClient(ctx, cfg.EmbeddingProviderAPIKey,
			googleai.WithModel(cfg.EmbeddingModel),
			googleai.WithDimensions(cfg.EmbeddingDimensions),
			googleai.WithHTTPClient(newProviderHTTPClient(cfg)),
		)
		if err != nil {
			return nil, fmt.Errorf("create google embedding client: %w", err)
		}

		return client, nil
	case config.EmbeddingProviderMock:
		return embeddings.NewMockClient(cfg.EmbeddingDimensions), nil
	default:
		return nil, fmt.Errorf("%w: %s", errUnsupportedEmbeddingProvider, cfg.EmbeddingProvider)
	}
}

func newEmbeddingProvider(
	ctx context.Context, cfg *config.Config, metrics observability.EmbeddingMetrics,
) (*embeddings.Provider, error) {
	client, err := newEmbeddingClient(ctx, cfg)
	if err != nil {
		return nil, err
	}

	slog.Debug("embeddings: provider ready",
		"provider", cfg.EmbeddingProvider,
		"model", cfg.EmbeddingModel,
		"dimensions", cfg.EmbeddingDimensions,
	)

	return embeddings.NewProvider(client, cfg.EmbeddingDimensions,
		embeddings.WithName(cfg.EmbeddingProvider),
		embeddings.WithTimeout(cfg.EmbeddingTimeout),
		embeddings.WithMetrics(metrics),
	), nil
}

// newRiverClient migrates the River tables and creates the client. With work set, the embedding
// worker is registered and the embeddings queue is served.
func (a *App) newRiverClient(ctx context.Context, work bool) (*river.Client[pgx.Tx], error) {
	driver := riverpgxv5.New(a.pool)

	migrator, err := rivermigrate.New(driver, nil)
	if err != nil {
		return nil, fmt.Errorf("create River migrator: %w", err)
	}

	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		return nil, fmt.Errorf("migrate River tables: %w", err)
	}

	// Insert-only clients carry no workers or queues.
	riverCfg := &river.Config{}

	if work {
		riverWorkers := river.NewWorkers()
		embedWorker := workers.NewPromptEmbeddingWorker(a.BackfillService(nil), a.embeddingMetrics(), a.cfg.EmbeddingClaimTTL/4)
		river.AddWorker(riverWorkers, embedWorker)

		riverCfg.Workers = riverWorkers
		riverCfg.Queues = map[string]river.QueueConfig{
			service.EmbeddingsQueueName: {MaxWorkers: a.cfg.EmbeddingMaxConcurrent},
		}
		riverCfg.ErrorHandler = &workers.ErrorHandler{}
		riverCfg.MaxAttempts = a.cfg.EmbeddingMaxAttempts
	}

	client, err := river.NewClient(driver, riverCfg)
	if err != nil {
		return nil, fmt.Errorf("create River client: %w", err)
	}

	return client, nil
}

// BackfillService returns the backfill service over the app's store and provider.
func (a *App) BackfillService(inserter service.PromptEmbeddingInserter) *service.EmbeddingBackfillService {
	var embedder service.Embedder
	if a.provider != nil {
		embedder = a.provider
	}

	return service.NewEmbeddingBackfillService(service.EmbeddingBackfillServiceParams{
		Store:       a.store,
		Embedder:    embedder,
		Inserter:    inserter,
		ClaimTTL:    a.cfg.EmbeddingClaimTTL,
		Concurrency: a.cfg.BackfillConcurrency,
		RateLimit:   a.cfg.EmbeddingRateLimit,
		MaxAttempts: a.cfg.EmbeddingMaxAttempts,
		Metrics:     a.embeddingMetrics(),
	})
}

// RankingService returns the ranking service; missing embeddings are generated inline.
func (a *App) RankingService() *service.RankingService {
	return service.NewRankingService(service.RankingServiceParams{
		Store:   a.store,
		Ensurer: a.BackfillService(nil),
		Metrics: a.rankingMetrics(),
	})
}

// PromptsService returns the submission and seeding service.
func (a *App) PromptsService() *service.PromptsService {
	return service.NewPromptsService(a.store)
}

// Close releases the store and flushes telemetry. Safe to call on a partially built App.
func (a *App) Close(ctx context.Context) {
	if a.pool != nil {
		a.pool.Close()
	}

	if a.sqlite != nil {
		if err := a.sqlite.Close(); err != nil {
			slog.Error("close sqlite", "error", err)
		}
	}

	if err := shutdownObservability(ctx, a.tracerProvider, a.meterProvider); err != nil {
		slog.Error("shutdown observability", "error", err)
	}
}

// shutdownObservability shuts down tracer and meter providers. Logs secondary errors, returns the first.
func shutdownObservability(ctx context.Context, tracer *sdktrace.TracerProvider, meter *sdkmetric.MeterProvider) error {
	var first error

	if tracer != nil {
		if err := observability.ShutdownTracerProvider(ctx, tracer); err != nil {
			first = err
		}
	}

	if meter != nil {
		if err := observability.ShutdownMeterProvider(ctx, meter); err != nil {
			if first == nil {
				first = err
			} else {
				slog.Error("shutdown meter provider", "error", err)
			}
		}
	}

	return first
}
