package tenant

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/parallax-rag/parallax/internal/errors"
)

// LimiterConfig bounds per-tenant resource consumption on the shared
// backend connections.
type LimiterConfig struct {
	// MaxConcurrentIngest caps in-flight ingestion calls per tenant.
	MaxConcurrentIngest int64

	// QueryRate is the sustained queries-per-second allowance per tenant.
	QueryRate rate.Limit

	// QueryBurst is the query burst allowance per tenant.
	QueryBurst int
}

// DefaultLimiterConfig returns the default per-tenant limits.
func DefaultLimiterConfig() LimiterConfig {
	return LimiterConfig{
		MaxConcurrentIngest: 4,
		QueryRate:           10,
		QueryBurst:          20,
	}
}

// Limiter enforces per-tenant rate limits so one tenant's bulk ingestion
// cannot starve another tenant's queries.
type Limiter struct {
	cfg LimiterConfig

	mu      sync.Mutex
	tenants map[string]*tenantLimits
}

type tenantLimits struct {
	ingest  *semaphore.Weighted
	queries *rate.Limiter
}

// NewLimiter creates a per-tenant limiter.
func NewLimiter(cfg LimiterConfig) *Limiter {
	if cfg.MaxConcurrentIngest <= 0 {
		cfg.MaxConcurrentIngest = DefaultLimiterConfig().MaxConcurrentIngest
	}
	if cfg.QueryRate <= 0 {
		cfg.QueryRate = DefaultLimiterConfig().QueryRate
	}
	if cfg.QueryBurst <= 0 {
		cfg.QueryBurst = DefaultLimiterConfig().QueryBurst
	}
	return &Limiter{
		cfg:     cfg,
		tenants: make(map[string]*tenantLimits),
	}
}

// AcquireIngest blocks until the tenant has an ingestion slot or the
// context is done. The returned release function must be called when the
// ingestion call finishes.
func (l *Limiter) AcquireIngest(ctx context.Context, tenantID string) (func(), error) {
	tl := l.forTenant(tenantID)
	if err := tl.ingest.Acquire(ctx, 1); err != nil {
		return nil, errors.Classify(err)
	}
	return func() { tl.ingest.Release(1) }, nil
}

// AllowQuery reports whether the tenant may issue a query right now.
// Rejections surface as RateLimited so callers can back off.
func (l *Limiter) AllowQuery(tenantID string) error {
	if !l.forTenant(tenantID).queries.Allow() {
		return errors.RateLimited("tenant query rate exceeded", nil).
			WithDetail("tenant", tenantID)
	}
	return nil
}

func (l *Limiter) forTenant(tenantID string) *tenantLimits {
	l.mu.Lock()
	defer l.mu.Unlock()

	tl, ok := l.tenants[tenantID]
	if !ok {
		tl = &tenantLimits{
			ingest:  semaphore.NewWeighted(l.cfg.MaxConcurrentIngest),
			queries: rate.NewLimiter(l.cfg.QueryRate, l.cfg.QueryBurst),
		}
		l.tenants[tenantID] = tl
	}
	return tl
}
