package search

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/parallax-rag/parallax/internal/backend"
	"github.com/parallax-rag/parallax/internal/errors"
	"github.com/parallax-rag/parallax/internal/telemetry"
	"github.com/parallax-rag/parallax/internal/tenant"
)

// Config tunes the synthesizer.
type Config struct {
	// Weights are the merge weights. Zero value uses the defaults.
	Weights Weights

	// Limit is the default number of merged results. Default 10.
	Limit int

	// Timeout bounds a query when neither the context nor the tenant
	// context carries a deadline. Default 10s.
	Timeout time.Duration

	// BackendShare is the fraction of the remaining budget each backend
	// leg receives. Legs run concurrently, so each gets most of the
	// budget while leaving room for the merge. Default 0.9.
	BackendShare float64
}

// DefaultConfig returns the default synthesizer configuration.
func DefaultConfig() Config {
	return Config{
		Weights:      DefaultWeights(),
		Limit:        10,
		Timeout:      10 * time.Second,
		BackendShare: 0.9,
	}
}

// Synthesizer fans a query out to every backend concurrently and merges
// whatever comes back before the deadline. A slow or failing backend
// costs its own contribution, never the whole query.
type Synthesizer struct {
	adapters []backend.Adapter
	merger   *Merger
	limiter  *tenant.Limiter
	metrics  *telemetry.Collector
	cfg      Config
	logger   *slog.Logger
}

// New creates a synthesizer over the given adapters. Nil adapters are
// skipped. The limiter and metrics collector may be nil.
func New(adapters []backend.Adapter, limiter *tenant.Limiter, metrics *telemetry.Collector, cfg Config, logger *slog.Logger) (*Synthesizer, error) {
	var active []backend.Adapter
	for _, a := range adapters {
		if a != nil {
			active = append(active, a)
		}
	}
	if len(active) == 0 {
		return nil, errors.ClientError("at least one backend adapter is required", nil)
	}

	if cfg.Limit <= 0 {
		cfg.Limit = DefaultConfig().Limit
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if cfg.BackendShare <= 0 || cfg.BackendShare > 1 {
		cfg.BackendShare = DefaultConfig().BackendShare
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Synthesizer{
		adapters: active,
		merger:   NewMerger(cfg.Weights),
		limiter:  limiter,
		metrics:  metrics,
		cfg:      cfg,
		logger:   logger,
	}, nil
}

// Options selects per-call query behavior.
type Options struct {
	// Limit caps the merged result count. Zero uses the configured
	// default.
	Limit int

	// Backends names the backends to include in the fan-out. Empty means
	// every configured backend; naming one that is not configured is a
	// client error.
	Backends []string
}

// legResult carries one backend's hits out of the fan-out.
type legResult struct {
	backend string
	hits    []backend.SearchHit
	latency time.Duration
	err     error
}

// Query runs the hybrid query. Backend failures and timeouts are
// reported in Response.Outcomes; the call itself errors only on
// authorization, rate limiting, or an isolation violation.
func (s *Synthesizer) Query(ctx context.Context, tctx tenant.Context, query string, opts Options) (*Response, error) {
	if err := tctx.Require(tenant.ScopeQuery); err != nil {
		return nil, err
	}
	if query == "" {
		return nil, errors.ClientError("query must not be empty", nil)
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = s.cfg.Limit
	}
	adapters, err := s.enabled(opts.Backends)
	if err != nil {
		return nil, err
	}

	if s.limiter != nil {
		if err := s.limiter.AllowQuery(tctx.TenantID); err != nil {
			return nil, err
		}
	}

	ctx, cancel := s.applyDeadline(ctx, tctx)
	defer cancel()

	start := time.Now()
	legs := s.fanOut(ctx, adapters, tctx, query, limit)

	lists := make(map[string][]backend.SearchHit, len(legs))
	outcomes := make([]BackendOutcome, 0, len(legs))
	for _, leg := range legs {
		if leg.err != nil {
			be := errors.Classify(leg.err)
			outcomes = append(outcomes, BackendOutcome{
				Backend: leg.backend,
				Latency: leg.latency,
				Class:   be.Class,
				Error:   be.Message,
			})
			s.recordLeg(leg, tctx.TenantID, true)
			s.logger.Warn("backend unavailable for query",
				slog.String("backend", leg.backend),
				slog.String("tenant", tctx.TenantID),
				slog.String("class", string(be.Class)))
			continue
		}
		lists[leg.backend] = leg.hits
		outcomes = append(outcomes, BackendOutcome{
			Backend: leg.backend,
			OK:      true,
			Hits:    len(leg.hits),
			Latency: leg.latency,
		})
		s.recordLeg(leg, tctx.TenantID, false)
	}

	if err := s.assertIsolation(tctx, lists); err != nil {
		return nil, err
	}

	results := s.merger.Merge(lists, limit)

	if s.metrics != nil {
		s.metrics.RecordQueryText(query, len(results))
	}

	return &Response{
		Results:  results,
		Outcomes: outcomes,
		Elapsed:  time.Since(start),
	}, nil
}

// applyDeadline folds the tenant deadline and the fallback timeout into
// the context.
func (s *Synthesizer) applyDeadline(ctx context.Context, tctx tenant.Context) (context.Context, context.CancelFunc) {
	if !tctx.Deadline.IsZero() {
		if d, ok := ctx.Deadline(); !ok || tctx.Deadline.Before(d) {
			return context.WithDeadline(ctx, tctx.Deadline)
		}
	}
	if _, ok := ctx.Deadline(); !ok {
		return context.WithTimeout(ctx, s.cfg.Timeout)
	}
	return context.WithCancel(ctx)
}

// enabled resolves the per-call backend set. An empty set means every
// configured adapter.
func (s *Synthesizer) enabled(names []string) ([]backend.Adapter, error) {
	if len(names) == 0 {
		return s.adapters, nil
	}

	byName := make(map[string]backend.Adapter, len(s.adapters))
	for _, a := range s.adapters {
		byName[a.Name()] = a
	}

	adapters := make([]backend.Adapter, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		a, ok := byName[name]
		if !ok {
			return nil, errors.ClientError("backend "+name+" is not configured", nil)
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		adapters = append(adapters, a)
	}
	return adapters, nil
}

// fanOut queries the enabled adapters concurrently, each under its share
// of the remaining budget. It always returns one legResult per adapter.
func (s *Synthesizer) fanOut(ctx context.Context, adapters []backend.Adapter, tctx tenant.Context, query string, limit int) []legResult {
	share := time.Duration(0)
	if deadline, ok := ctx.Deadline(); ok {
		share = time.Duration(float64(time.Until(deadline)) * s.cfg.BackendShare)
	}

	results := make([]legResult, len(adapters))
	g, gctx := errgroup.WithContext(ctx)

	for i, a := range adapters {
		i, a := i, a
		g.Go(func() error {
			legCtx := gctx
			var cancel context.CancelFunc
			if share > 0 {
				legCtx, cancel = context.WithTimeout(gctx, share)
				defer cancel()
			}

			legStart := time.Now()
			hits, err := a.Query(legCtx, tctx, query, limit)
			results[i] = legResult{
				backend: a.Name(),
				hits:    hits,
				latency: time.Since(legStart),
				err:     err,
			}
			// Leg failures are outcomes, not group errors.
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// assertIsolation verifies no backend leaked another tenant's data past
// the adapter-level filters. A violation fails the whole query closed.
func (s *Synthesizer) assertIsolation(tctx tenant.Context, lists map[string][]backend.SearchHit) error {
	for name, hits := range lists {
		for _, hit := range hits {
			if hit.TenantID != "" && hit.TenantID != tctx.TenantID {
				if s.metrics != nil {
					s.metrics.RecordIsolationViolation(name)
				}
				s.logger.Error("cross-tenant hit rejected",
					slog.String("backend", name),
					slog.String("tenant", tctx.TenantID),
					slog.String("hit_tenant", hit.TenantID))
				return errors.IsolationViolation("backend returned a hit for another tenant").WithBackend(name)
			}
		}
	}
	return nil
}

func (s *Synthesizer) recordLeg(leg legResult, tenantID string, unavailable bool) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordQuery(telemetry.QueryEvent{
		Backend:     leg.backend,
		TenantID:    tenantID,
		ResultCount: len(leg.hits),
		Latency:     leg.latency,
		Unavailable: unavailable,
		Timestamp:   time.Now(),
	})
}
