package tenant

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/parallax-rag/parallax/internal/errors"
)

// DefaultCacheSize is the maximum number of tenant records cached.
const DefaultCacheSize = 1024

// DefaultCacheTTL bounds how stale a cached tenant record may be.
// Suspension takes effect within this window.
const DefaultCacheTTL = 30 * time.Second

// Registry validates tenant contexts at the system boundary.
// Validation happens exactly once per request; the resulting Context is
// trusted downstream.
type Registry struct {
	store Store
	cache *expirable.LRU[string, *Record]
}

// RegistryOption configures a Registry.
type RegistryOption func(*registryConfig)

type registryConfig struct {
	cacheSize int
	cacheTTL  time.Duration
}

// WithCacheTTL overrides the tenant-record cache TTL.
func WithCacheTTL(ttl time.Duration) RegistryOption {
	return func(c *registryConfig) {
		c.cacheTTL = ttl
	}
}

// WithCacheSize overrides the tenant-record cache size.
func WithCacheSize(n int) RegistryOption {
	return func(c *registryConfig) {
		c.cacheSize = n
	}
}

// NewRegistry creates a tenant registry backed by the given store.
func NewRegistry(store Store, opts ...RegistryOption) *Registry {
	cfg := registryConfig{
		cacheSize: DefaultCacheSize,
		cacheTTL:  DefaultCacheTTL,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Registry{
		store: store,
		cache: expirable.NewLRU[string, *Record](cfg.cacheSize, nil, cfg.cacheTTL),
	}
}

// Authorize validates the tenant and returns the Context threaded through
// the rest of the call. It fails closed with Unauthorized when the tenant
// is missing, unknown, or not active.
func (r *Registry) Authorize(ctx context.Context, tenantID string, scopes []Scope, deadline time.Time) (Context, error) {
	if tenantID == "" {
		return Context{}, errors.Unauthorized("missing tenant identifier")
	}

	rec, err := r.lookup(ctx, tenantID)
	if err != nil {
		return Context{}, err
	}

	if rec.Status != StatusActive {
		return Context{}, errors.New(errors.ErrCodeTenantSuspended,
			fmt.Sprintf("tenant %s is %s", tenantID, rec.Status), nil)
	}

	return Context{
		TenantID: tenantID,
		Scopes:   scopes,
		Deadline: deadline,
	}, nil
}

// AuthorizeIngest is Authorize plus a quota check: the tenant must be under
// its document and storage limits before any backend leg runs. The added
// load is sized so admission control happens once, up front.
func (r *Registry) AuthorizeIngest(ctx context.Context, tenantID string, deadline time.Time, addDocuments int64, addBytes int64) (Context, error) {
	tctx, err := r.Authorize(ctx, tenantID, []Scope{ScopeIngest}, deadline)
	if err != nil {
		return Context{}, err
	}

	rec, err := r.lookup(ctx, tenantID)
	if err != nil {
		return Context{}, err
	}

	usage, err := r.store.GetUsage(ctx, tenantID)
	if err != nil {
		return Context{}, errors.Classify(err)
	}

	if rec.MaxDocuments > 0 && usage.Documents+addDocuments > rec.MaxDocuments {
		return Context{}, errors.QuotaExceeded(
			fmt.Sprintf("tenant %s document quota exceeded (%d/%d)",
				tenantID, usage.Documents+addDocuments, rec.MaxDocuments))
	}
	if rec.MaxStorageBytes > 0 && usage.StorageBytes+addBytes > rec.MaxStorageBytes {
		return Context{}, errors.QuotaExceeded(
			fmt.Sprintf("tenant %s storage quota exceeded (%d/%d bytes)",
				tenantID, usage.StorageBytes+addBytes, rec.MaxStorageBytes))
	}

	return tctx, nil
}

// Invalidate drops the cached record for a tenant. Called after
// administrative updates so status changes apply immediately.
func (r *Registry) Invalidate(tenantID string) {
	r.cache.Remove(tenantID)
}

func (r *Registry) lookup(ctx context.Context, tenantID string) (*Record, error) {
	if rec, ok := r.cache.Get(tenantID); ok {
		return rec, nil
	}

	rec, err := r.store.GetTenant(ctx, tenantID)
	if err != nil {
		if errors.GetCode(err) == errors.ErrCodeTenantNotFound {
			return nil, errors.Unauthorized("unknown tenant " + tenantID)
		}
		return nil, errors.Classify(err)
	}

	r.cache.Add(tenantID, rec)
	return rec, nil
}
