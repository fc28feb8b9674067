package cmd

import (
	"context"
	"log/slog"

	"github.com/parallax-rag/parallax/internal/backend"
	"github.com/parallax-rag/parallax/internal/backend/cloudsearch"
	"github.com/parallax-rag/parallax/internal/backend/graph"
	"github.com/parallax-rag/parallax/internal/backend/vector"
	"github.com/parallax-rag/parallax/internal/catalog"
	"github.com/parallax-rag/parallax/internal/embed"
	"github.com/parallax-rag/parallax/internal/errors"
	"github.com/parallax-rag/parallax/internal/ingest"
	"github.com/parallax-rag/parallax/internal/search"
	"github.com/parallax-rag/parallax/internal/telemetry"
	"github.com/parallax-rag/parallax/internal/tenant"

	"golang.org/x/time/rate"
)

// app wires the configured backends together for one CLI invocation.
type app struct {
	db       *catalog.DB
	store    *catalog.Store
	registry *tenant.Registry
	limiter  *tenant.Limiter
	metrics  *telemetry.Collector
	logger   *slog.Logger

	cloud       backend.Adapter
	vectorStore backend.Adapter
	graphStore  backend.Adapter
}

// openApp connects to the catalog and constructs the configured
// adapters. The cloud-search adapter is omitted when no base URL is
// configured.
func openApp(ctx context.Context) (*app, error) {
	logger := slog.Default()

	db, err := catalog.Open(ctx, catalog.Config{
		Host:         cfg.Catalog.Host,
		Port:         cfg.Catalog.Port,
		User:         cfg.Catalog.User,
		Password:     cfg.Catalog.Password,
		Database:     cfg.Catalog.Database,
		SSLMode:      cfg.Catalog.SSLMode,
		EmbeddingDim: cfg.Catalog.EmbeddingDim,
		MaxOpenConns: cfg.Catalog.MaxOpenConns,
	}, logger)
	if err != nil {
		return nil, err
	}

	store := catalog.NewStore(db)

	a := &app{
		db:       db,
		store:    store,
		registry: tenant.NewRegistry(store),
		limiter: tenant.NewLimiter(tenant.LimiterConfig{
			MaxConcurrentIngest: int64(cfg.Limits.MaxConcurrentIngest),
			QueryRate:           rate.Limit(cfg.Limits.QueryRate),
			QueryBurst:          cfg.Limits.QueryBurst,
		}),
		metrics: telemetry.NewCollector(),
		logger:  logger,
	}

	embedder, err := embed.NewHTTPEmbedder(embed.HTTPConfig{
		Endpoint:   cfg.Embeddings.Host + "/api/embeddings",
		Model:      cfg.Embeddings.Model,
		Dimensions: cfg.Embeddings.Dimensions,
		Timeout:    cfg.Embeddings.Timeout,
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	a.vectorStore = vector.New(db, store, embedder, logger)
	a.graphStore = graph.New(db, graph.MetadataExtractor{}, logger)

	if cfg.CloudSearch.BaseURL != "" {
		cloud, err := cloudsearch.New(cloudsearch.Config{
			BaseURL:                    cfg.CloudSearch.BaseURL,
			APIKey:                     cfg.CloudSearch.APIKey,
			ConnectorID:                cfg.CloudSearch.ConnectorID,
			ConnectorPrefix:            cfg.CloudSearch.ConnectorPrefix,
			RequireNativeTenantScoping: cfg.CloudSearch.RequireNativeTenantScoping,
			Timeout:                    cfg.CloudSearch.Timeout,
		}, logger)
		if err != nil {
			db.Close()
			return nil, err
		}
		a.cloud = cloud
	}

	return a, nil
}

// Close releases the catalog connection.
func (a *app) Close() {
	if a.db != nil {
		a.db.Close()
	}
}

// orchestrator builds the ingestion orchestrator over the configured
// adapters.
func (a *app) orchestrator() (*ingest.Orchestrator, error) {
	orchCfg := ingest.Config{
		Retry: errors.RetryConfig{
			MaxAttempts:  cfg.Retry.MaxAttempts,
			InitialDelay: cfg.Retry.InitialDelay,
			MaxDelay:     cfg.Retry.MaxDelay,
			Multiplier:   2.0,
			Jitter:       true,
		},
		Workers: cfg.Ingest.Workers,
	}
	return ingest.New(a.cloud, a.vectorStore, a.graphStore, a.limiter, a.metrics, orchCfg, a.logger)
}

// synthesizer builds the hybrid search synthesizer.
func (a *app) synthesizer() (*search.Synthesizer, error) {
	adapters := []backend.Adapter{a.cloud, a.vectorStore, a.graphStore}
	return search.New(adapters, a.limiter, a.metrics, search.Config{
		Weights: search.Weights{
			CloudSearch: cfg.Search.CloudSearchWeight,
			Graph:       cfg.Search.GraphWeight,
			Vector:      cfg.Search.VectorWeight,
		},
		Limit:   cfg.Search.MaxResults,
		Timeout: cfg.Search.Timeout,
	}, a.logger)
}
