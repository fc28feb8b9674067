package graph

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/parallax-rag/parallax/internal/backend"
	"github.com/parallax-rag/parallax/internal/catalog"
	"github.com/parallax-rag/parallax/internal/errors"
	"github.com/parallax-rag/parallax/internal/tenant"
)

// Adapter is the temporal-knowledge-graph retrieval adapter.
type Adapter struct {
	db        *catalog.DB
	extractor Extractor
	logger    *slog.Logger
}

var (
	_ backend.Adapter = (*Adapter)(nil)
	_ backend.Clearer = (*Adapter)(nil)
)

// New creates the graph adapter. A nil extractor defaults to
// MetadataExtractor.
func New(db *catalog.DB, extractor Extractor, logger *slog.Logger) *Adapter {
	if extractor == nil {
		extractor = MetadataExtractor{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{db: db, extractor: extractor, logger: logger}
}

// Name returns the backend name.
func (a *Adapter) Name() string {
	return backend.Graph
}

// Capabilities reports native tenant scoping and destructive clear support.
func (a *Adapter) Capabilities() backend.Capabilities {
	return backend.Capabilities{
		TenantScopedQueries: true,
		DestructiveClear:    true,
	}
}

// Ingest persists the extractor's nodes and edges, tagging every row with
// the tenant namespace. Nodes upsert by (tenant, name, kind). A new fact
// between the same node pair and relation invalidates the previous one
// rather than deleting it. Re-ingesting the same document inserts nothing
// and reports AlreadyPresent.
func (a *Adapter) Ingest(ctx context.Context, tctx tenant.Context, doc *backend.Document, chunks []*backend.Chunk) (*backend.Record, error) {
	if err := tctx.Require(tenant.ScopeIngest); err != nil {
		return nil, err
	}

	nodes, edges, err := a.extractor.Extract(ctx, doc, chunks)
	if err != nil {
		return nil, a.tag(err)
	}

	tx, err := a.db.Instance.BeginTx(ctx, nil)
	if err != nil {
		return nil, a.tag(err)
	}
	defer func() { _ = tx.Rollback() }()

	inserted := 0
	nodeIDs := make(map[string]uuid.UUID, len(nodes))

	for _, n := range nodes {
		rid := uuid.New()
		var gotRID uuid.UUID
		var created bool
		err := tx.QueryRowContext(ctx,
			`INSERT INTO graph_nodes (rid, tenant_id, name, kind, summary, source_doc)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (tenant_id, name, kind)
			 DO UPDATE SET summary = EXCLUDED.summary
			 RETURNING rid, (xmax = 0)`,
			rid, tctx.TenantID, n.Name, n.Kind, n.Summary, doc.Source).
			Scan(&gotRID, &created)
		if err != nil {
			return nil, a.tag(err)
		}
		if created {
			inserted++
		}
		nodeIDs[n.Name] = gotRID
	}

	for _, e := range edges {
		srcID, err := a.resolveNode(ctx, tx, tctx.TenantID, nodeIDs, e.Source)
		if err != nil {
			return nil, err
		}
		dstID, err := a.resolveNode(ctx, tx, tctx.TenantID, nodeIDs, e.Target)
		if err != nil {
			return nil, err
		}

		validAt := e.ValidAt
		if validAt.IsZero() {
			validAt = time.Now().UTC()
		}

		// A new fact supersedes the currently valid one for the same
		// (source, target, relation) triple.
		_, err = tx.ExecContext(ctx,
			`UPDATE graph_edges SET invalid_at = $5
			 WHERE tenant_id = $1 AND source_rid = $2 AND target_rid = $3
			   AND relation = $4 AND fact <> $6 AND invalid_at IS NULL`,
			tctx.TenantID, srcID, dstID, e.Relation, validAt, e.Fact)
		if err != nil {
			return nil, a.tag(err)
		}

		res, err := tx.ExecContext(ctx,
			`INSERT INTO graph_edges (rid, tenant_id, source_rid, target_rid, relation, fact, source_doc, valid_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 ON CONFLICT (tenant_id, source_rid, target_rid, relation, fact) DO NOTHING`,
			uuid.New(), tctx.TenantID, srcID, dstID, e.Relation, e.Fact, doc.Source, validAt)
		if err != nil {
			return nil, a.tag(err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, a.tag(err)
	}

	a.logger.Debug("graph leg ingested document",
		slog.String("tenant", tctx.TenantID),
		slog.String("document", doc.ID),
		slog.Int("nodes", len(nodes)),
		slog.Int("edges", len(edges)))

	return &backend.Record{
		Backend:        backend.Graph,
		ExternalID:     doc.TenantID + "/" + doc.ID,
		AlreadyPresent: inserted == 0 && (len(nodes) > 0 || len(edges) > 0),
	}, nil
}

// resolveNode returns the node id for a name, looking it up when the edge
// references a node from an earlier extraction.
func (a *Adapter) resolveNode(ctx context.Context, tx *sql.Tx, tenantID string, known map[string]uuid.UUID, name string) (uuid.UUID, error) {
	if id, ok := known[name]; ok {
		return id, nil
	}

	var id uuid.UUID
	err := tx.QueryRowContext(ctx,
		`SELECT rid FROM graph_nodes WHERE tenant_id = $1 AND name = $2 LIMIT 1`,
		tenantID, name).Scan(&id)
	if err == sql.ErrNoRows {
		return uuid.Nil, errors.ClientError(
			fmt.Sprintf("edge references unknown node %q", name), nil).
			WithBackend(backend.Graph)
	}
	if err != nil {
		return uuid.Nil, a.tag(err)
	}

	known[name] = id
	return id, nil
}

// graphHit is the raw payload preserved on each hit for citation.
type graphHit struct {
	RID      string  `json:"rid"`
	Kind     string  `json:"kind"` // "node" or "edge"
	Name     string  `json:"name,omitempty"`
	Relation string  `json:"relation,omitempty"`
	Fact     string  `json:"fact,omitempty"`
	Summary  string  `json:"summary,omitempty"`
	Rank     float64 `json:"rank"`
}

// Query searches currently valid facts and node summaries for the tenant,
// ranked by full-text relevance. Matched nodes are expanded one hop to
// their valid edges so related facts surface alongside direct matches.
func (a *Adapter) Query(ctx context.Context, tctx tenant.Context, query string, limit int) ([]backend.SearchHit, error) {
	if err := tctx.Require(tenant.ScopeQuery); err != nil {
		return nil, err
	}

	hits := make([]backend.SearchHit, 0, limit)

	// Direct matches on node name/summary.
	nodeRows, err := a.db.Instance.QueryContext(ctx,
		`SELECT rid, name, summary, source_doc,
		        ts_rank(to_tsvector('english', name || ' ' || summary),
		                plainto_tsquery('english', $2)) AS rank
		 FROM graph_nodes
		 WHERE tenant_id = $1
		   AND to_tsvector('english', name || ' ' || summary) @@ plainto_tsquery('english', $2)
		 ORDER BY rank DESC
		 LIMIT $3`,
		tctx.TenantID, query, limit)
	if err != nil {
		return nil, a.tag(err)
	}
	defer nodeRows.Close()

	var matchedNodes []uuid.UUID
	for nodeRows.Next() {
		var (
			rid           uuid.UUID
			name, summary string
			sourceDoc     string
			rank          float64
		)
		if err := nodeRows.Scan(&rid, &name, &summary, &sourceDoc, &rank); err != nil {
			return nil, a.tag(err)
		}
		matchedNodes = append(matchedNodes, rid)

		raw, _ := json.Marshal(graphHit{RID: rid.String(), Kind: "node", Name: name, Summary: summary, Rank: rank})
		hits = append(hits, backend.SearchHit{
			Backend:    backend.Graph,
			ExternalID: rid.String(),
			TenantID:   tctx.TenantID,
			Score:      rank,
			Title:      name,
			Snippet:    summary,
			Source:     sourceDoc,
			Raw:        raw,
		})
	}
	if err := nodeRows.Err(); err != nil {
		return nil, a.tag(err)
	}

	// Direct matches on valid edge facts, plus one-hop expansion from
	// matched nodes. Invalidated facts stay out unless asked for history.
	edgeRows, err := a.db.Instance.QueryContext(ctx,
		`SELECT DISTINCT e.rid, e.relation, e.fact, e.source_doc,
		        COALESCE(ts_rank(to_tsvector('english', e.fact),
		                         plainto_tsquery('english', $2)), 0) AS rank
		 FROM graph_edges e
		 WHERE e.tenant_id = $1 AND e.invalid_at IS NULL
		   AND (to_tsvector('english', e.fact) @@ plainto_tsquery('english', $2)
		        OR e.source_rid = ANY($4::uuid[]) OR e.target_rid = ANY($4::uuid[]))
		 ORDER BY rank DESC
		 LIMIT $3`,
		tctx.TenantID, query, limit, nodeIDArray(matchedNodes))
	if err != nil {
		return nil, a.tag(err)
	}
	defer edgeRows.Close()

	for edgeRows.Next() {
		var (
			rid            uuid.UUID
			relation, fact string
			sourceDoc      string
			rank           float64
		)
		if err := edgeRows.Scan(&rid, &relation, &fact, &sourceDoc, &rank); err != nil {
			return nil, a.tag(err)
		}

		raw, _ := json.Marshal(graphHit{RID: rid.String(), Kind: "edge", Relation: relation, Fact: fact, Rank: rank})
		hits = append(hits, backend.SearchHit{
			Backend:    backend.Graph,
			ExternalID: rid.String(),
			TenantID:   tctx.TenantID,
			Score:      rank,
			Title:      relation,
			Snippet:    fact,
			Source:     sourceDoc,
			Raw:        raw,
		})
	}
	if err := edgeRows.Err(); err != nil {
		return nil, a.tag(err)
	}

	// Node and edge matches arrive from two statements; rank them as one
	// list so downstream merging sees this backend's true order.
	sortHitsByScore(hits)
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// sortHitsByScore orders hits by descending relevance, keeping the
// statement order for equal scores.
func sortHitsByScore(hits []backend.SearchHit) {
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
}

// Clear removes all of the tenant's nodes and edges.
func (a *Adapter) Clear(ctx context.Context, tctx tenant.Context) error {
	if err := tctx.Require(tenant.ScopeIngest); err != nil {
		return err
	}

	// Edges cascade from nodes, but orphan edges are deleted explicitly in
	// case of nodes cleared by an earlier partial run.
	if _, err := a.db.Instance.ExecContext(ctx,
		`DELETE FROM graph_edges WHERE tenant_id = $1`, tctx.TenantID); err != nil {
		return a.tag(err)
	}
	if _, err := a.db.Instance.ExecContext(ctx,
		`DELETE FROM graph_nodes WHERE tenant_id = $1`, tctx.TenantID); err != nil {
		return a.tag(err)
	}

	a.logger.Info("cleared tenant graph", slog.String("tenant", tctx.TenantID))
	return nil
}

// Healthy probes the database connection.
func (a *Adapter) Healthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return a.db.Instance.PingContext(ctx) == nil
}

func (a *Adapter) tag(err error) error {
	if err == nil {
		return nil
	}
	return errors.Classify(err).WithBackend(backend.Graph)
}

// nodeIDArray renders node ids as a Postgres uuid[] parameter.
func nodeIDArray(ids []uuid.UUID) any {
	ss := make([]string, len(ids))
	for i, id := range ids {
		ss[i] = id.String()
	}
	return pq.Array(ss)
}
