package catalog

import (
	"context"
	"fmt"
	"time"
)

// Bootstrap creates the catalog tables and the pgvector extension.
// It is idempotent and safe to run on every startup.
func (s *Store) Bootstrap(ctx context.Context, embeddingDim int) error {
	if embeddingDim <= 0 {
		embeddingDim = DefaultEmbeddingDim
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector;`,

		`CREATE TABLE IF NOT EXISTS tenants (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'active',
			max_documents BIGINT NOT NULL DEFAULT 0,
			max_storage_bytes BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,

		`CREATE TABLE IF NOT EXISTS documents (
			rid UUID PRIMARY KEY,
			tenant_id TEXT NOT NULL REFERENCES tenants(id),
			doc_id TEXT NOT NULL,
			version INTEGER NOT NULL DEFAULT 1,
			title TEXT NOT NULL DEFAULT '',
			source TEXT NOT NULL DEFAULT '',
			content TEXT NOT NULL,
			metadata JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (tenant_id, doc_id)
		);`,

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS chunks (
			rid UUID PRIMARY KEY,
			tenant_id TEXT NOT NULL REFERENCES tenants(id),
			document_rid UUID NOT NULL REFERENCES documents(rid) ON DELETE CASCADE,
			ordinal INTEGER NOT NULL,
			content TEXT NOT NULL,
			token_count INTEGER NOT NULL DEFAULT 0,
			embedding vector(%d),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (document_rid, ordinal)
		);`, embeddingDim),

		`CREATE INDEX IF NOT EXISTS idx_documents_tenant ON documents(tenant_id);`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_tenant ON chunks(tenant_id);`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_embedding
			ON chunks USING hnsw (embedding vector_cosine_ops);`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Instance.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap catalog schema: %w", err)
		}
	}

	s.db.Logger.Info("checked/created catalog tables")
	return nil
}
