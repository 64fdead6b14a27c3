// Package app provides application initialization and dependency
// wiring. Setup builds every component in dependency order and returns
// an App whose Close releases them in reverse.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/compat_oai/openai"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/satchel0/satchel/db"
	"github.com/satchel0/satchel/internal/api"
	"github.com/satchel0/satchel/internal/config"
	"github.com/satchel0/satchel/internal/embedding"
	"github.com/satchel0/satchel/internal/enrich"
	"github.com/satchel0/satchel/internal/log"
	"github.com/satchel0/satchel/internal/observability"
	"github.com/satchel0/satchel/internal/query"
	"github.com/satchel0/satchel/internal/scrape"
	"github.com/satchel0/satchel/internal/search"
	"github.com/satchel0/satchel/internal/security"
	"github.com/satchel0/satchel/internal/store"
	"github.com/satchel0/satchel/internal/vision"
)

// App is the application container.
type App struct {
	Config *config.Config
	Logger log.Logger

	// Genkit is nil when no AI provider key is configured; every AI
	// consumer degrades deterministically in that case.
	Genkit    *genkit.Genkit
	DBPool    *pgxpool.Pool
	Store     *store.Store
	Generator *embedding.Generator
	Enricher  *enrich.Service
	Queue     *enrich.Queue
	Searcher  *search.Service
	Server    *api.Server

	otelCleanup func()
	dbCleanup   func()
}

// Setup creates and initializes the application. On error everything
// already initialized is released.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &App{Config: cfg, Logger: logger}
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	// Tracing must be registered before genkit.Init so the
	// TracerProvider picks up the service name.
	a.otelCleanup = observability.Setup(ctx, observability.Config{
		AgentHost:   cfg.Datadog.AgentHost,
		Environment: cfg.Datadog.Environment,
		ServiceName: cfg.Datadog.ServiceName,
	})

	pool, dbCleanup, err := provideDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.dbCleanup = dbCleanup
	a.DBPool = pool

	a.Genkit = provideGenkit(ctx, logger)

	st, err := store.New(pool, logger)
	if err != nil {
		return nil, err
	}
	a.Store = st

	a.Generator = embedding.NewGenerator(provideEmbeddingProviders(a.Genkit, cfg), logger)

	validator := security.NewURLValidator()
	fetcher, err := scrape.NewFetcher(cfg.Scraper, validator, nil, logger)
	if err != nil {
		return nil, fmt.Errorf("creating fetcher: %w", err)
	}
	scraper := scrape.NewScraper(fetcher, logger)

	tagTimeout := time.Duration(cfg.TagTimeoutMs) * time.Millisecond
	visionTimeout := time.Duration(cfg.VisionTimeoutMs) * time.Millisecond
	embedTimeout := time.Duration(cfg.EmbedTimeoutMs) * time.Millisecond

	analyzer := vision.NewAnalyzer(a.Genkit, cfg.FullVisionModelName(),
		validator.Client(visionTimeout), visionTimeout, logger)
	tagger := enrich.NewTagger(a.Genkit, cfg.FullModelName(), cfg.Limits, tagTimeout, logger)

	weights := embedding.ComposeWeights{
		TitleRepeat:   embedding.DefaultWeights.TitleRepeat,
		TagRepeat:     embedding.DefaultWeights.TagRepeat,
		ContentBudget: cfg.Limits.ContentCharBudget,
		TotalBudget:   cfg.Limits.TotalCharBudget,
	}
	a.Queue = enrich.NewQueue(st, st, a.Generator, weights, embedTimeout, logger)
	a.Enricher = enrich.NewService(scraper, analyzer, tagger, st, a.Queue, cfg.Limits, logger)

	parser := query.NewParser(a.Genkit, cfg.FullModelName(), tagTimeout, logger)
	reranker := search.NewReranker(a.Genkit, cfg.FullModelName(), tagTimeout, logger)
	a.Searcher = search.NewService(parser, st, a.Generator, reranker, search.Options{
		OverfetchFactor: cfg.Limits.OverfetchFactor,
	}, logger)

	server, err := api.NewServer(api.ServerConfig{
		Logger:   logger,
		Saver:    a.Enricher,
		Searcher: a.Searcher,
		Store:    st,
		Pool:     pool,
	})
	if err != nil {
		return nil, fmt.Errorf("creating API server: %w", err)
	}
	a.Server = server

	return a, nil
}

// Close releases resources in reverse initialization order.
func (a *App) Close() error {
	if a.dbCleanup != nil {
		a.dbCleanup()
		a.dbCleanup = nil
	}
	if a.otelCleanup != nil {
		a.otelCleanup()
		a.otelCleanup = nil
	}
	return nil
}

// provideGenkit initializes Genkit with every AI provider whose key is
// present. No key at all means no Genkit: saves and searches still work
// through the deterministic fallbacks.
func provideGenkit(ctx context.Context, logger log.Logger) *genkit.Genkit {
	hasGemini := config.HasGeminiKey()
	hasOpenAI := config.HasOpenAIKey()

	var g *genkit.Genkit
	switch {
	case hasGemini && hasOpenAI:
		g = genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}, &openai.OpenAI{}))
	case hasGemini:
		g = genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	case hasOpenAI:
		g = genkit.Init(ctx, genkit.WithPlugins(&openai.OpenAI{}))
	default:
		logger.Warn("no AI provider key configured, running without AI enrichment")
		return nil
	}
	if g == nil {
		logger.Warn("genkit initialization failed, running without AI enrichment")
		return nil
	}
	logger.Info("initialized AI providers", "gemini", hasGemini, "openai", hasOpenAI)
	return g
}

// provideEmbeddingProviders builds the embedding fallback chain. The
// configured provider goes first; the other key, when present, serves
// as fallback.
func provideEmbeddingProviders(g *genkit.Genkit, cfg *config.Config) []embedding.Provider {
	if g == nil {
		return nil
	}

	var gemini, oai embedding.Provider
	if config.HasGeminiKey() {
		gemini = embedding.NewGeminiProvider(g, cfg.GeminiEmbedderModel, config.GeminiEmbeddingDim)
	}
	if config.HasOpenAIKey() {
		oai = embedding.NewOpenAIProvider(g, cfg.OpenAIEmbedderModel, config.OpenAIEmbeddingDim)
	}

	if cfg.Provider == config.ProviderOpenAI {
		return []embedding.Provider{oai, gemini}
	}
	return []embedding.Provider{gemini, oai}
}

// provideDBPool runs migrations and creates the connection pool.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, func(), error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, nil, fmt.Errorf("parsing connection config: %w", err)
	}
	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, func() { pool.Close() }, nil
}
