package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/parallax-rag/parallax/internal/backend"
	"github.com/parallax-rag/parallax/internal/errors"
	"github.com/parallax-rag/parallax/internal/tenant"
)

// DocumentRef identifies a stored document row.
type DocumentRef struct {
	RID            uuid.UUID
	Version        int
	AlreadyPresent bool
}

// UpsertDocument stores a document and its chunks under (tenant, doc_id).
// Re-ingesting identical content reports AlreadyPresent and leaves the
// stored chunks untouched; changed content creates a new version of the
// same row and replaces the chunk set. The document row and its chunks
// commit in one transaction, so a failed ingestion leaves no half-written
// document behind and a retry takes the fresh-insert path.
func (s *Store) UpsertDocument(ctx context.Context, doc *backend.Document, chunks []*backend.Chunk) (*DocumentRef, error) {
	meta, err := json.Marshal(doc.Metadata)
	if err != nil {
		return nil, errors.ClientError("encode document metadata", err)
	}

	tx, err := s.db.Instance.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Classify(err)
	}
	defer func() { _ = tx.Rollback() }()

	var (
		rid     uuid.UUID
		version int
		content string
	)
	row := tx.QueryRowContext(ctx,
		`SELECT rid, version, content FROM documents
		 WHERE tenant_id = $1 AND doc_id = $2 FOR UPDATE`,
		doc.TenantID, doc.ID)
	err = row.Scan(&rid, &version, &content)

	switch {
	case err == sql.ErrNoRows:
		rid = uuid.New()
		version = 1
		_, err = tx.ExecContext(ctx,
			`INSERT INTO documents (rid, tenant_id, doc_id, version, title, source, content, metadata)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			rid, doc.TenantID, doc.ID, version, doc.Title, doc.Source, doc.Content, meta)
		if err != nil {
			return nil, errors.Classify(err)
		}

	case err != nil:
		return nil, errors.Classify(err)

	case content == doc.Content:
		// Idempotent re-ingest: the chunks committed with the document,
		// so there is nothing to write.
		if err := tx.Commit(); err != nil {
			return nil, errors.Classify(err)
		}
		doc.Version = version
		return &DocumentRef{RID: rid, Version: version, AlreadyPresent: true}, nil

	default:
		version++
		_, err = tx.ExecContext(ctx,
			`UPDATE documents
			 SET version = $2, title = $3, source = $4, content = $5, metadata = $6, updated_at = now()
			 WHERE rid = $1`,
			rid, version, doc.Title, doc.Source, doc.Content, meta)
		if err != nil {
			return nil, errors.Classify(err)
		}
	}

	if err := s.replaceChunks(ctx, tx, rid, chunks); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Classify(err)
	}

	s.db.Logger.Debug("stored document",
		slog.String("document", rid.String()),
		slog.Int("version", version),
		slog.Int("chunks", len(chunks)))

	doc.Version = version
	return &DocumentRef{RID: rid, Version: version}, nil
}

// replaceChunks swaps a document's chunks for the given set inside the
// caller's transaction. Chunks are only ever produced by one ingestion
// call, so replacement keeps one ordinal namespace per document.
func (s *Store) replaceChunks(ctx context.Context, tx *sql.Tx, docRID uuid.UUID, chunks []*backend.Chunk) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM chunks WHERE document_rid = $1`, docRID); err != nil {
		return errors.Classify(err)
	}

	for _, c := range chunks {
		var embedding any
		if len(c.Embedding) > 0 {
			embedding = pgvector.NewVector(c.Embedding)
		}

		_, err := tx.ExecContext(ctx,
			`INSERT INTO chunks (rid, tenant_id, document_rid, ordinal, content, token_count, embedding)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			uuid.New(), c.TenantID, docRID, c.Ordinal, c.Content, c.TokenCount, embedding)
		if err != nil {
			return errors.Classify(err)
		}
	}
	return nil
}

// ChunkHit is one row from a similarity search, joined with its document
// for attribution.
type ChunkHit struct {
	RID      uuid.UUID
	TenantID string
	DocID    string
	Ordinal  int
	Content  string
	Title    string
	Source   string

	// Score is cosine similarity in [0,1].
	Score float64
}

// SearchChunks runs a tenant-scoped cosine similarity search over chunk
// embeddings. The tenant filter is part of the SQL, never applied after
// the fact.
func (s *Store) SearchChunks(ctx context.Context, tenantID string, embedding []float32, limit int) ([]*ChunkHit, error) {
	vec := pgvector.NewVector(embedding)
	rows, err := s.db.Instance.QueryContext(ctx,
		`SELECT c.rid, c.tenant_id, d.doc_id, c.ordinal, c.content, d.title, d.source,
		        1 - (c.embedding <=> $2) AS score
		 FROM chunks c
		 JOIN documents d ON d.rid = c.document_rid
		 WHERE c.tenant_id = $1 AND c.embedding IS NOT NULL
		 ORDER BY c.embedding <=> $2
		 LIMIT $3`,
		tenantID, vec, limit)
	if err != nil {
		return nil, errors.Classify(err)
	}
	defer rows.Close()

	var hits []*ChunkHit
	for rows.Next() {
		h := &ChunkHit{}
		if err := rows.Scan(&h.RID, &h.TenantID, &h.DocID, &h.Ordinal,
			&h.Content, &h.Title, &h.Source, &h.Score); err != nil {
			return nil, errors.Classify(err)
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// ExistingFootprint reports how many of the named documents a tenant
// already stores and how many content bytes they hold. Quota admission
// subtracts this from an ingestion batch so an idempotent re-ingest is
// never counted as new load.
func (s *Store) ExistingFootprint(ctx context.Context, tenantID string, docIDs []string) (*tenant.Usage, error) {
	usage := &tenant.Usage{}
	err := s.db.Instance.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(octet_length(content)), 0)
		 FROM documents
		 WHERE tenant_id = $1 AND doc_id = ANY($2)`,
		tenantID, pq.Array(docIDs)).
		Scan(&usage.Documents, &usage.StorageBytes)
	if err != nil {
		return nil, errors.Classify(err)
	}
	return usage, nil
}

// ClearTenantDocuments removes all documents and chunks for a tenant.
// Used by the orchestrator's clear operation; the tenant row itself stays.
func (s *Store) ClearTenantDocuments(ctx context.Context, tenantID string) error {
	// Chunks cascade from documents.
	_, err := s.db.Instance.ExecContext(ctx,
		`DELETE FROM documents WHERE tenant_id = $1`, tenantID)
	if err != nil {
		return errors.Classify(err)
	}

	s.db.Logger.Info("cleared tenant documents", slog.String("tenant", tenantID))
	return nil
}
