// Package cloudsearch implements the backend adapter for the managed cloud
// search/QA service. The service owns its index; this adapter only
// references it by external id. Tenant isolation is by metadata tagging
// plus mandatory post-filtering, since the service's indices are
// coarse-grained.
package cloudsearch

import "time"

// Config configures the cloud search client.
type Config struct {
	// BaseURL is the service endpoint.
	BaseURL string

	// APIKey authenticates every request.
	APIKey string

	// ConnectorID is the pre-provisioned connector used in "existing"
	// mode. Ignored in "new" mode.
	ConnectorID string

	// ConnectorPrefix names connectors provisioned in "new" mode; the
	// tenant id is appended.
	ConnectorPrefix string

	// RequireNativeTenantScoping rejects the adapter at construction when
	// set: this service cannot natively scope queries to a tenant, and
	// some deployments refuse to rely on post-filtering.
	RequireNativeTenantScoping bool

	// Timeout bounds each request.
	Timeout time.Duration

	// PoolSize caps idle connections and in-flight requests to the service.
	PoolSize int
}

// tenantMetadataKey is the metadata attribute carrying the tenant tag on
// every uploaded document.
const tenantMetadataKey = "tenant_id"

// connector is the remote connector resource.
type connector struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type connectorList struct {
	Connectors []connector `json:"connectors"`
}

type createConnectorRequest struct {
	Name string `json:"name"`
}

// uploadDocument is one document in a batch upload.
type uploadDocument struct {
	ID       string            `json:"id"`
	Title    string            `json:"title"`
	Content  string            `json:"content"`
	Source   string            `json:"source"`
	Metadata map[string]string `json:"metadata"`
}

type batchUploadRequest struct {
	Documents []uploadDocument `json:"documents"`
}

// batchUploadResponse reports per-document status: "created", "updated",
// or "unchanged".
type batchUploadResponse struct {
	Results []struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"results"`
}

type queryRequest struct {
	Query       string `json:"query"`
	ConnectorID string `json:"connector_id,omitempty"`
	Limit       int    `json:"limit"`
}

// queryResult is one hit from the service, with its proprietary ranking
// score and the metadata we tagged at upload time.
type queryResult struct {
	DocumentID string            `json:"document_id"`
	Title      string            `json:"title"`
	Excerpt    string            `json:"excerpt"`
	Source     string            `json:"source"`
	Score      float64           `json:"score"`
	Metadata   map[string]string `json:"metadata"`
}

type queryResponse struct {
	Results []queryResult `json:"results"`
}
