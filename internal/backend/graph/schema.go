package graph

import (
	"context"
	"time"
)

// Bootstrap creates the graph tables. Idempotent, run on every startup.
func (a *Adapter) Bootstrap(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	statements := []string{
		`CREATE TABLE IF NOT EXISTS graph_nodes (
			rid UUID PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			name TEXT NOT NULL,
			kind TEXT NOT NULL DEFAULT '',
			summary TEXT NOT NULL DEFAULT '',
			source_doc TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (tenant_id, name, kind)
		);`,

		`CREATE TABLE IF NOT EXISTS graph_edges (
			rid UUID PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			source_rid UUID NOT NULL REFERENCES graph_nodes(rid) ON DELETE CASCADE,
			target_rid UUID NOT NULL REFERENCES graph_nodes(rid) ON DELETE CASCADE,
			relation TEXT NOT NULL,
			fact TEXT NOT NULL,
			source_doc TEXT NOT NULL DEFAULT '',
			valid_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			invalid_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (tenant_id, source_rid, target_rid, relation, fact)
		);`,

		`CREATE INDEX IF NOT EXISTS idx_graph_nodes_tenant ON graph_nodes(tenant_id);`,
		`CREATE INDEX IF NOT EXISTS idx_graph_edges_tenant ON graph_edges(tenant_id);`,
		`CREATE INDEX IF NOT EXISTS idx_graph_nodes_search
			ON graph_nodes USING gin (to_tsvector('english', name || ' ' || summary));`,
		`CREATE INDEX IF NOT EXISTS idx_graph_edges_search
			ON graph_edges USING gin (to_tsvector('english', fact));`,
	}

	for _, stmt := range statements {
		if _, err := a.db.Instance.ExecContext(ctx, stmt); err != nil {
			return a.tag(err)
		}
	}

	a.db.Logger.Info("checked/created graph tables")
	return nil
}
