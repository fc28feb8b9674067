package ingest

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/parallax-rag/parallax/internal/backend"
	"github.com/parallax-rag/parallax/internal/errors"
	"github.com/parallax-rag/parallax/internal/telemetry"
	"github.com/parallax-rag/parallax/internal/tenant"
)

// ConnectorEnsurer is implemented by the cloud-search adapter to resolve
// its remote connector per the ingestion mode.
type ConnectorEnsurer interface {
	EnsureConnector(ctx context.Context, mode string, tenantID string) (string, error)
}

// Config configures the orchestrator.
type Config struct {
	// Retry is the retry policy applied to every leg call.
	Retry errors.RetryConfig

	// Workers caps concurrent documents within one ingestion call.
	Workers int
}

// DefaultConfig returns the default orchestrator configuration.
func DefaultConfig() Config {
	return Config{
		Retry:   errors.DefaultRetryConfig(),
		Workers: 4,
	}
}

// Orchestrator sequences multi-backend ingestion. The cloud-search leg
// runs first because the remote indexing step is the expensive one to
// redo; the vector and graph legs run concurrently after it and fail
// independently.
type Orchestrator struct {
	cloud  backend.Adapter
	vector backend.Adapter
	graph  backend.Adapter

	cfg      Config
	limiter  *tenant.Limiter
	metrics  *telemetry.Collector
	breakers map[string]*errors.CircuitBreaker
	pool     *ants.Pool
	logger   *slog.Logger
}

// New creates an ingestion orchestrator. Any adapter may be nil, which
// disables its leg; the metrics collector may be nil too. The cloud
// adapter should implement ConnectorEnsurer.
func New(cloud, vector, graph backend.Adapter, limiter *tenant.Limiter, metrics *telemetry.Collector, cfg Config, logger *slog.Logger) (*Orchestrator, error) {
	if vector == nil && graph == nil && cloud == nil {
		return nil, errors.ClientError("at least one backend adapter is required", nil)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultConfig().Workers
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = errors.DefaultRetryConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	pool, err := ants.NewPool(cfg.Workers)
	if err != nil {
		return nil, errors.InternalError("create ingestion worker pool", err)
	}

	breakers := make(map[string]*errors.CircuitBreaker)
	for _, a := range []backend.Adapter{cloud, vector, graph} {
		if a != nil {
			breakers[a.Name()] = errors.NewCircuitBreaker(a.Name())
		}
	}

	return &Orchestrator{
		cloud:    cloud,
		vector:   vector,
		graph:    graph,
		cfg:      cfg,
		limiter:  limiter,
		metrics:  metrics,
		breakers: breakers,
		pool:     pool,
		logger:   logger,
	}, nil
}

// Close releases the worker pool.
func (o *Orchestrator) Close() {
	o.pool.Release()
}

// Ingest writes the documents to every enabled backend and returns one
// DocumentResult per input, in input order. The call as a whole only
// errors on pre-flight failures (unauthorized, bad mode, connector
// resolution); backend failures are per-leg outcomes, never exceptions.
func (o *Orchestrator) Ingest(ctx context.Context, tctx tenant.Context, inputs []Input, opts Options) ([]DocumentResult, error) {
	if err := tctx.Require(tenant.ScopeIngest); err != nil {
		return nil, err
	}
	if _, err := ParseMode(string(opts.Mode)); err != nil {
		return nil, err
	}

	if o.limiter != nil {
		release, err := o.limiter.AcquireIngest(ctx, tctx.TenantID)
		if err != nil {
			return nil, err
		}
		defer release()
	}

	if opts.ClearBeforeIngest {
		if err := o.Clear(ctx, tctx); err != nil {
			return nil, err
		}
	}

	cloudEnabled := o.cloud != nil && opts.Mode != ModeSkip
	if cloudEnabled {
		// Connector resolution is a setup step: if the remote side is not
		// configured the whole call fails loudly before any document moves.
		ensurer, ok := o.cloud.(ConnectorEnsurer)
		if !ok {
			return nil, errors.New(errors.ErrCodeCapabilityMissing,
				"cloud adapter does not support connector provisioning", nil)
		}
		if _, err := ensurer.EnsureConnector(ctx, string(opts.Mode), tctx.TenantID); err != nil {
			return nil, err
		}
	}

	results := make([]DocumentResult, len(inputs))
	var wg sync.WaitGroup

	for i := range inputs {
		i := i
		wg.Add(1)
		err := o.pool.Submit(func() {
			defer wg.Done()
			results[i] = o.ingestDocument(ctx, tctx, inputs[i], cloudEnabled)
		})
		if err != nil {
			wg.Done()
			results[i] = DocumentResult{
				DocumentID: inputs[i].Document.ID,
				Status:     StatusFailed,
				Outcomes: []Outcome{{
					Backend: "orchestrator",
					Class:   errors.ClassInternal,
					Error:   err.Error(),
				}},
			}
		}
	}
	wg.Wait()

	return results, nil
}

// ingestDocument runs all enabled legs for one document: cloud first,
// then vector and graph concurrently. No leg failure stops the others.
func (o *Orchestrator) ingestDocument(ctx context.Context, tctx tenant.Context, in Input, cloudEnabled bool) DocumentResult {
	var outcomes []Outcome

	if cloudEnabled {
		outcomes = append(outcomes, o.runLeg(ctx, tctx, o.cloud, in))
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	for _, a := range []backend.Adapter{o.vector, o.graph} {
		if a == nil {
			continue
		}
		a := a
		wg.Add(1)
		go func() {
			defer wg.Done()
			out := o.runLeg(ctx, tctx, a, in)
			mu.Lock()
			outcomes = append(outcomes, out)
			mu.Unlock()
		}()
	}
	wg.Wait()

	result := DocumentResult{
		DocumentID: in.Document.ID,
		Status:     status(outcomes),
		Outcomes:   outcomes,
	}

	if result.Status != StatusSuccess {
		o.logger.Warn("document ingestion incomplete",
			slog.String("tenant", tctx.TenantID),
			slog.String("document", in.Document.ID),
			slog.String("status", string(result.Status)))
	}
	return result
}

// runLeg executes one backend leg under the retry policy and the
// backend's circuit breaker, and records its outcome.
func (o *Orchestrator) runLeg(ctx context.Context, tctx tenant.Context, a backend.Adapter, in Input) Outcome {
	name := a.Name()
	start := time.Now()

	breaker := o.breakers[name]
	if breaker != nil && !breaker.Allow() {
		out := Outcome{
			Backend: name,
			Class:   errors.ClassUnavailable,
			Error:   "circuit open: backend skipped",
			Latency: time.Since(start),
		}
		o.recordLeg(tctx.TenantID, out)
		return out
	}

	attempts := 0
	rec, err := errors.RetryWithResult(ctx, o.cfg.Retry, func(ctx context.Context) (*backend.Record, error) {
		attempts++
		return a.Ingest(ctx, tctx, in.Document, in.Chunks)
	})
	if breaker != nil {
		breaker.Record(err)
	}

	var out Outcome
	if err != nil {
		be := errors.Classify(err)
		out = Outcome{
			Backend:  name,
			Attempts: attempts,
			Class:    be.Class,
			Error:    be.Message,
			Latency:  time.Since(start),
		}
	} else {
		out = Outcome{
			Backend:        name,
			OK:             true,
			ExternalID:     rec.ExternalID,
			AlreadyPresent: rec.AlreadyPresent,
			Attempts:       attempts,
			Latency:        time.Since(start),
		}
	}
	o.recordLeg(tctx.TenantID, out)
	return out
}

func (o *Orchestrator) recordLeg(tenantID string, out Outcome) {
	if o.metrics == nil {
		return
	}
	o.metrics.RecordIngest(telemetry.IngestEvent{
		Backend:        out.Backend,
		TenantID:       tenantID,
		OK:             out.OK,
		AlreadyPresent: out.AlreadyPresent,
		Attempts:       out.Attempts,
		Latency:        out.Latency,
	})
}

// Clear wipes only the vector-store and graph state for the tenant. The
// cloud-search index is shared and expensive to rebuild, so it is never
// destructively cleared from this orchestrator.
func (o *Orchestrator) Clear(ctx context.Context, tctx tenant.Context) error {
	if err := tctx.Require(tenant.ScopeIngest); err != nil {
		return err
	}

	for _, a := range []backend.Adapter{o.vector, o.graph} {
		if a == nil {
			continue
		}
		clearer, ok := a.(backend.Clearer)
		if !ok {
			continue
		}
		if err := clearer.Clear(ctx, tctx); err != nil {
			return err
		}
	}

	o.logger.Info("cleared tenant backend state",
		slog.String("tenant", tctx.TenantID))
	return nil
}

// Health probes every configured adapter. A backend whose circuit is
// open reports unhealthy without being probed: the breaker already knows.
func (o *Orchestrator) Health(ctx context.Context) map[string]bool {
	health := make(map[string]bool)
	for _, a := range []backend.Adapter{o.cloud, o.vector, o.graph} {
		if a == nil {
			continue
		}
		name := a.Name()
		if breaker := o.breakers[name]; breaker != nil && !breaker.Allow() {
			health[name] = false
			continue
		}
		health[name] = a.Healthy(ctx)
	}
	return health
}
