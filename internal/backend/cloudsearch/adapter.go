package cloudsearch

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/parallax-rag/parallax/internal/backend"
	"github.com/parallax-rag/parallax/internal/errors"
	"github.com/parallax-rag/parallax/internal/tenant"
)

// Adapter is the cloud search/QA service retrieval adapter.
type Adapter struct {
	client *client
	cfg    Config
	logger *slog.Logger

	mu          sync.Mutex
	connectorID string
}

var _ backend.Adapter = (*Adapter)(nil)

// New creates the cloud search adapter. Capability negotiation happens
// here: the service cannot natively scope queries to one tenant, so a
// configuration that demands native scoping is rejected loudly instead of
// silently post-filtering.
func New(cfg Config, logger *slog.Logger) (*Adapter, error) {
	if cfg.BaseURL == "" {
		return nil, errors.ClientError("cloud search base URL is required", nil)
	}
	if cfg.RequireNativeTenantScoping {
		return nil, errors.New(errors.ErrCodeCapabilityMissing,
			"cloud search service cannot scope queries to a tenant natively; "+
				"disable RequireNativeTenantScoping to accept post-filtering", nil).
			WithBackend(backend.CloudSearch)
	}
	if cfg.ConnectorPrefix == "" {
		cfg.ConnectorPrefix = "parallax"
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Adapter{
		client:      newClient(cfg),
		cfg:         cfg,
		logger:      logger,
		connectorID: cfg.ConnectorID,
	}, nil
}

// Name returns the backend name.
func (a *Adapter) Name() string {
	return backend.CloudSearch
}

// Capabilities: queries are post-filtered, and the shared remote index is
// never destructively cleared from here.
func (a *Adapter) Capabilities() backend.Capabilities {
	return backend.Capabilities{
		TenantScopedQueries: false,
		DestructiveClear:    false,
	}
}

// EnsureConnector resolves the connector for the given ingestion mode:
// "existing" verifies the pre-provisioned connector is reachable, "new"
// provisions a tenant-named connector (reusing it if it already exists).
// Missing remote configuration fails loudly; nothing is inferred.
func (a *Adapter) EnsureConnector(ctx context.Context, mode string, tenantID string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch mode {
	case "existing":
		if a.connectorID == "" {
			return "", errors.New(errors.ErrCodeCapabilityMissing,
				"existing mode requires a configured connector id", nil).
				WithBackend(backend.CloudSearch)
		}
		if _, err := a.client.getConnector(ctx, a.connectorID); err != nil {
			return "", a.tag(err)
		}
		return a.connectorID, nil

	case "new":
		name := a.cfg.ConnectorPrefix + "-" + tenantID
		conn, err := a.client.findConnector(ctx, name)
		if err != nil {
			return "", a.tag(err)
		}
		if conn == nil {
			conn, err = a.client.createConnector(ctx, name)
			if err != nil {
				return "", a.tag(err)
			}
			a.logger.Info("provisioned cloud search connector",
				slog.String("connector", conn.ID),
				slog.String("tenant", tenantID))
		}
		a.connectorID = conn.ID
		return conn.ID, nil

	default:
		return "", errors.ClientError("unknown connector mode "+mode, nil).
			WithBackend(backend.CloudSearch)
	}
}

// Ingest uploads the document with the tenant id embedded in its metadata.
// The external id is deterministic over (tenant, document-id) so retries
// update in place instead of duplicating.
func (a *Adapter) Ingest(ctx context.Context, tctx tenant.Context, doc *backend.Document, _ []*backend.Chunk) (*backend.Record, error) {
	if err := tctx.Require(tenant.ScopeIngest); err != nil {
		return nil, err
	}

	a.mu.Lock()
	connectorID := a.connectorID
	a.mu.Unlock()
	if connectorID == "" {
		return nil, errors.New(errors.ErrCodeCapabilityMissing,
			"no connector resolved; call EnsureConnector first", nil).
			WithBackend(backend.CloudSearch)
	}

	externalID := externalID(tctx.TenantID, doc.ID)
	metadata := map[string]string{tenantMetadataKey: tctx.TenantID}
	for k, v := range doc.Metadata {
		if k != tenantMetadataKey {
			metadata[k] = v
		}
	}

	resp, err := a.client.batchUpload(ctx, connectorID, []uploadDocument{{
		ID:       externalID,
		Title:    doc.Title,
		Content:  doc.Content,
		Source:   doc.Source,
		Metadata: metadata,
	}})
	if err != nil {
		return nil, a.tag(err)
	}

	already := false
	for _, r := range resp.Results {
		if r.ID == externalID && r.Status != "created" {
			already = true
		}
	}

	return &backend.Record{
		Backend:        backend.CloudSearch,
		ExternalID:     externalID,
		AlreadyPresent: already,
	}, nil
}

// Query asks the service and post-filters the hits to the caller's tenant.
// The service's indices are coarse-grained, so the metadata tag applied at
// upload is the isolation boundary; foreign hits never leave this method.
func (a *Adapter) Query(ctx context.Context, tctx tenant.Context, query string, limit int) ([]backend.SearchHit, error) {
	if err := tctx.Require(tenant.ScopeQuery); err != nil {
		return nil, err
	}

	a.mu.Lock()
	connectorID := a.connectorID
	a.mu.Unlock()

	resp, err := a.client.query(ctx, queryRequest{
		Query:       query,
		ConnectorID: connectorID,
		Limit:       limit,
	})
	if err != nil {
		return nil, a.tag(err)
	}

	hits := make([]backend.SearchHit, 0, len(resp.Results))
	filtered := 0
	for _, r := range resp.Results {
		hitTenant := r.Metadata[tenantMetadataKey]
		if hitTenant != tctx.TenantID {
			filtered++
			continue
		}

		raw, _ := json.Marshal(r)
		hits = append(hits, backend.SearchHit{
			Backend:    backend.CloudSearch,
			ExternalID: r.DocumentID,
			TenantID:   hitTenant,
			Score:      r.Score,
			Title:      r.Title,
			Snippet:    r.Excerpt,
			Source:     r.Source,
			Raw:        raw,
		})
	}

	if filtered > 0 {
		a.logger.Warn("post-filtered cross-tenant cloud search hits",
			slog.String("tenant", tctx.TenantID),
			slog.Int("filtered", filtered))
	}
	return hits, nil
}

// Healthy probes the service health endpoint.
func (a *Adapter) Healthy(ctx context.Context) bool {
	return a.client.health(ctx) == nil
}

func (a *Adapter) tag(err error) error {
	if err == nil {
		return nil
	}
	return errors.Classify(err).WithBackend(backend.CloudSearch)
}

// externalID derives the deterministic backend id for a document.
func externalID(tenantID, docID string) string {
	return tenantID + "/" + docID
}
