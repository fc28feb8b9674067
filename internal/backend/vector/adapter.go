// Package vector implements the backend adapter for the Postgres/pgvector
// similarity store. Tenant isolation is row-level: every chunk row carries
// the tenant id and every query filters on it in SQL.
package vector

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/parallax-rag/parallax/internal/backend"
	"github.com/parallax-rag/parallax/internal/catalog"
	"github.com/parallax-rag/parallax/internal/embed"
	"github.com/parallax-rag/parallax/internal/errors"
	"github.com/parallax-rag/parallax/internal/tenant"
)

// Adapter is the pgvector-backed retrieval adapter.
type Adapter struct {
	store    *catalog.Store
	db       *catalog.DB
	embedder embed.Embedder
	logger   *slog.Logger
}

var (
	_ backend.Adapter = (*Adapter)(nil)
	_ backend.Clearer = (*Adapter)(nil)
)

// New creates the vector adapter. The embedder may be nil, in which case
// ingestion still works (chunk embeddings arrive pre-computed) but queries
// are rejected with a capability error.
func New(db *catalog.DB, store *catalog.Store, embedder embed.Embedder, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{store: store, db: db, embedder: embedder, logger: logger}
}

// Name returns the backend name.
func (a *Adapter) Name() string {
	return backend.Vector
}

// Capabilities reports native tenant scoping and destructive clear support.
func (a *Adapter) Capabilities() backend.Capabilities {
	return backend.Capabilities{
		TenantScopedQueries: true,
		DestructiveClear:    true,
	}
}

// Ingest upserts the document together with its chunks. The store commits
// both in one transaction, so a retried leg either finds the full write
// from a prior attempt (reported as AlreadyPresent) or starts clean.
func (a *Adapter) Ingest(ctx context.Context, tctx tenant.Context, doc *backend.Document, chunks []*backend.Chunk) (*backend.Record, error) {
	if err := tctx.Require(tenant.ScopeIngest); err != nil {
		return nil, err
	}

	ref, err := a.store.UpsertDocument(ctx, doc, chunks)
	if err != nil {
		return nil, a.tag(err)
	}

	if !ref.AlreadyPresent {
		a.logger.Debug("vector leg ingested document",
			slog.String("tenant", tctx.TenantID),
			slog.String("document", doc.ID),
			slog.Int("version", ref.Version),
			slog.Int("chunks", len(chunks)))
	}

	return &backend.Record{
		Backend:        backend.Vector,
		ExternalID:     ref.RID.String(),
		AlreadyPresent: ref.AlreadyPresent,
	}, nil
}

// Query embeds the query text and runs a tenant-scoped similarity search.
func (a *Adapter) Query(ctx context.Context, tctx tenant.Context, query string, limit int) ([]backend.SearchHit, error) {
	if err := tctx.Require(tenant.ScopeQuery); err != nil {
		return nil, err
	}
	if a.embedder == nil {
		return nil, errors.New(errors.ErrCodeCapabilityMissing,
			"vector queries require an embedding client", nil).WithBackend(backend.Vector)
	}

	embedding, err := a.embedder.Embed(ctx, query)
	if err != nil {
		return nil, a.tag(err)
	}

	rows, err := a.store.SearchChunks(ctx, tctx.TenantID, embedding, limit)
	if err != nil {
		return nil, a.tag(err)
	}

	hits := make([]backend.SearchHit, 0, len(rows))
	for _, row := range rows {
		raw, _ := json.Marshal(row)
		hits = append(hits, backend.SearchHit{
			Backend:    backend.Vector,
			ExternalID: row.RID.String(),
			TenantID:   row.TenantID,
			Score:      row.Score,
			Title:      row.Title,
			Snippet:    snippet(row.Content),
			Source:     row.Source,
			Raw:        raw,
		})
	}
	return hits, nil
}

// Clear removes the tenant's documents and chunks.
func (a *Adapter) Clear(ctx context.Context, tctx tenant.Context) error {
	if err := tctx.Require(tenant.ScopeIngest); err != nil {
		return err
	}
	return a.tag(a.store.ClearTenantDocuments(ctx, tctx.TenantID))
}

// Healthy probes the database connection.
func (a *Adapter) Healthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return a.db.Instance.PingContext(ctx) == nil
}

// tag stamps the backend name onto classified errors.
func (a *Adapter) tag(err error) error {
	if err == nil {
		return nil
	}
	return errors.Classify(err).WithBackend(backend.Vector)
}

const maxSnippetLen = 240

// snippet truncates on a rune boundary so multi-byte content never yields
// an invalid-UTF-8 snippet.
func snippet(content string) string {
	runes := []rune(content)
	if len(runes) <= maxSnippetLen {
		return content
	}
	return string(runes[:maxSnippetLen]) + "…"
}
