// Package backend defines the uniform contract over the three retrieval
// backends: the managed cloud search service, the pgvector similarity
// store, and the temporal knowledge graph. Adapters hide transport and
// auth details and raise the shared error taxonomy so the orchestration
// layer can treat them interchangeably.
package backend

import (
	"context"
	"encoding/json"

	"github.com/parallax-rag/parallax/internal/tenant"
)

// Backend names, used in outcomes, hits, and configuration.
const (
	CloudSearch = "cloudsearch"
	Vector      = "vector"
	Graph       = "graph"
)

// Priority returns the merge tie-break priority for a backend.
// Lower is better: cloud search > graph > vector.
func Priority(name string) int {
	switch name {
	case CloudSearch:
		return 0
	case Graph:
		return 1
	case Vector:
		return 2
	default:
		return 3
	}
}

// Document is an ingestable document. Content is immutable after creation;
// updates produce a new version rather than mutating in place.
type Document struct {
	// ID is unique within the tenant.
	ID string

	// TenantID is the owning tenant.
	TenantID string

	// Version increments on re-ingestion with changed content.
	Version int

	Title    string
	Source   string
	Content  string
	Metadata map[string]string
}

// Chunk is one ordered piece of a document, produced by the external
// chunker before ingestion. The tenant reference is denormalized so every
// isolation filter can act on the chunk row directly.
type Chunk struct {
	ID         string
	DocumentID string
	TenantID   string

	// Ordinal is the chunk's position within the document. All chunks of a
	// document share one ordinal namespace.
	Ordinal int

	Content    string
	TokenCount int

	// Embedding is optional. A chunk without one is skipped by the vector
	// leg, not treated as an error.
	Embedding []float32
}

// Record is the backend-assigned result of an ingestion leg.
type Record struct {
	// Backend is the adapter that produced this record.
	Backend string

	// ExternalID is the backend-assigned identifier for the document.
	ExternalID string

	// AlreadyPresent is true when the document was previously ingested and
	// the call updated in place instead of inserting.
	AlreadyPresent bool
}

// SearchHit is one result from one backend. Scores are backend-local and
// must be normalized before cross-backend comparison.
type SearchHit struct {
	Backend    string
	ExternalID string

	// TenantID is the tenant tag the backend returned for this hit.
	// The synthesizer asserts it matches the caller's tenant.
	TenantID string

	// Score is the backend-local relevance score.
	Score float64

	Title   string
	Snippet string

	// Source is the document's source locator, used as the default
	// cross-backend dedup key.
	Source string

	// Raw is the opaque backend payload, preserved for citation.
	Raw json.RawMessage
}

// Capabilities declares what an adapter can do. Capability negotiation
// happens at construction: a configuration that requires a missing
// capability is rejected loudly instead of guessed around.
type Capabilities struct {
	// TenantScopedQueries is true when the backend can natively restrict
	// queries to one tenant. Adapters without it must post-filter and say
	// so, or be rejected at setup.
	TenantScopedQueries bool

	// DestructiveClear is true when the adapter supports clearing a
	// tenant's data. The cloud search index is shared and expensive to
	// rebuild, so its adapter does not offer this.
	DestructiveClear bool
}

// Adapter is the uniform contract over one retrieval backend.
//
// Ingest must be idempotent under retry: re-ingesting the same
// (tenant, document-ID) pair updates in place or reports AlreadyPresent,
// never duplicates. Query must never return a hit belonging to a different
// tenant than tctx's.
type Adapter interface {
	// Name returns the backend name constant.
	Name() string

	// Capabilities returns what this adapter supports.
	Capabilities() Capabilities

	// Ingest writes one document and its chunks to the backend, tagging
	// everything with the tenant's isolation key.
	Ingest(ctx context.Context, tctx tenant.Context, doc *Document, chunks []*Chunk) (*Record, error)

	// Query returns up to limit hits scoped to tctx's tenant.
	Query(ctx context.Context, tctx tenant.Context, query string, limit int) ([]SearchHit, error)

	// Healthy probes whether the backend is reachable. Used to skip a
	// backend at orchestration time rather than fail mid-call.
	Healthy(ctx context.Context) bool
}

// Clearer is implemented by adapters whose tenant data may be wiped.
type Clearer interface {
	// Clear removes all data for the tenant.
	Clear(ctx context.Context, tctx tenant.Context) error
}
