package search

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parallax-rag/parallax/internal/backend"
	"github.com/parallax-rag/parallax/internal/errors"
	"github.com/parallax-rag/parallax/internal/telemetry"
	"github.com/parallax-rag/parallax/internal/tenant"
)

// queryFake is a scriptable adapter for synthesizer tests.
type queryFake struct {
	name  string
	hits  []backend.SearchHit
	err   error
	calls int32

	// hang blocks Query until the context is done.
	hang bool
}

func (f *queryFake) Name() string { return f.name }

func (f *queryFake) Capabilities() backend.Capabilities {
	return backend.Capabilities{TenantScopedQueries: true}
}

func (f *queryFake) Ingest(ctx context.Context, tctx tenant.Context, doc *backend.Document, chunks []*backend.Chunk) (*backend.Record, error) {
	return nil, errors.InternalError("not implemented", nil)
}

func (f *queryFake) Query(ctx context.Context, tctx tenant.Context, query string, limit int) ([]backend.SearchHit, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.hang {
		<-ctx.Done()
		return nil, errors.TimeoutError(f.name+" query", ctx.Err())
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.hits, nil
}

func (f *queryFake) Healthy(ctx context.Context) bool { return true }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func queryTenant() tenant.Context {
	return tenant.Context{
		TenantID: "acme",
		Scopes:   []tenant.Scope{tenant.ScopeQuery},
	}
}

func newTestSynthesizer(t *testing.T, cfg Config, adapters ...backend.Adapter) *Synthesizer {
	t.Helper()
	s, err := New(adapters, nil, nil, cfg, discardLogger())
	require.NoError(t, err)
	return s
}

func TestQueryMergesAcrossBackends(t *testing.T) {
	cloud := &queryFake{name: backend.CloudSearch, hits: []backend.SearchHit{hit(backend.CloudSearch, "docs/a.md", 0.9)}}
	vector := &queryFake{name: backend.Vector, hits: []backend.SearchHit{hit(backend.Vector, "docs/a.md", 0.6)}}
	graph := &queryFake{name: backend.Graph, hits: []backend.SearchHit{hit(backend.Graph, "docs/a.md", 0.8)}}

	s := newTestSynthesizer(t, Config{}, cloud, vector, graph)

	resp, err := s.Query(context.Background(), queryTenant(), "alpha", Options{})
	require.NoError(t, err)

	require.Len(t, resp.Results, 1)
	assert.InDelta(t, 0.795, resp.Results[0].Composite, 0.0001)
	assert.Len(t, resp.Results[0].Scores, 3)
	assert.Empty(t, resp.Unavailable())
}

func TestQueryHungBackendDoesNotBlockOthers(t *testing.T) {
	cloud := &queryFake{name: backend.CloudSearch, hits: []backend.SearchHit{hit(backend.CloudSearch, "docs/a.md", 0.9)}}
	vector := &queryFake{name: backend.Vector, hits: []backend.SearchHit{hit(backend.Vector, "docs/b.md", 0.6)}}
	graph := &queryFake{name: backend.Graph, hang: true}

	s := newTestSynthesizer(t, Config{Timeout: 150 * time.Millisecond}, cloud, vector, graph)

	start := time.Now()
	resp, err := s.Query(context.Background(), queryTenant(), "alpha", Options{})
	require.NoError(t, err)

	assert.Less(t, time.Since(start), time.Second)
	assert.Len(t, resp.Results, 2)
	assert.Equal(t, []string{backend.Graph}, resp.Unavailable())

	for _, o := range resp.Outcomes {
		if o.Backend == backend.Graph {
			assert.Equal(t, errors.ClassTransient, o.Class)
		}
	}
}

func TestQueryBackendFailureIsAnOutcome(t *testing.T) {
	cloud := &queryFake{name: backend.CloudSearch, err: errors.AuthError("bad key", nil)}
	vector := &queryFake{name: backend.Vector, hits: []backend.SearchHit{hit(backend.Vector, "docs/b.md", 0.6)}}

	s := newTestSynthesizer(t, Config{}, cloud, vector)

	resp, err := s.Query(context.Background(), queryTenant(), "alpha", Options{})
	require.NoError(t, err)

	assert.Len(t, resp.Results, 1)
	assert.Equal(t, []string{backend.CloudSearch}, resp.Unavailable())
}

func TestQueryIsolationViolationFailsClosed(t *testing.T) {
	leaked := hit(backend.Vector, "docs/z.md", 0.9)
	leaked.TenantID = "mallory"
	vector := &queryFake{name: backend.Vector, hits: []backend.SearchHit{leaked}}

	metrics := telemetry.NewCollector()
	s, err := New([]backend.Adapter{vector}, nil, metrics, Config{}, discardLogger())
	require.NoError(t, err)

	_, err = s.Query(context.Background(), queryTenant(), "alpha", Options{})
	require.Error(t, err)
	assert.Equal(t, errors.ClassIsolation, errors.GetClass(err))
	assert.EqualValues(t, 1, metrics.Snapshot().IsolationViolations)
}

func TestQueryRequiresQueryScope(t *testing.T) {
	vector := &queryFake{name: backend.Vector}
	s := newTestSynthesizer(t, Config{}, vector)

	tctx := tenant.Context{TenantID: "acme", Scopes: []tenant.Scope{tenant.ScopeIngest}}
	_, err := s.Query(context.Background(), tctx, "alpha", Options{})
	require.Error(t, err)
	assert.Equal(t, errors.ClassUnauthorized, errors.GetClass(err))
}

func TestQueryRejectsEmptyQuery(t *testing.T) {
	vector := &queryFake{name: backend.Vector}
	s := newTestSynthesizer(t, Config{}, vector)

	_, err := s.Query(context.Background(), queryTenant(), "", Options{})
	require.Error(t, err)
	assert.Equal(t, errors.ClassClient, errors.GetClass(err))
}

func TestQueryHonorsTenantDeadline(t *testing.T) {
	graph := &queryFake{name: backend.Graph, hang: true}
	s := newTestSynthesizer(t, Config{Timeout: time.Minute}, graph)

	tctx := queryTenant()
	tctx.Deadline = time.Now().Add(100 * time.Millisecond)

	start := time.Now()
	resp, err := s.Query(context.Background(), tctx, "alpha", Options{})
	require.NoError(t, err)

	assert.Less(t, time.Since(start), time.Second)
	assert.Empty(t, resp.Results)
	assert.Equal(t, []string{backend.Graph}, resp.Unavailable())
}

func TestQueryRecordsTelemetry(t *testing.T) {
	vector := &queryFake{name: backend.Vector, hits: []backend.SearchHit{hit(backend.Vector, "docs/a.md", 0.6)}}
	graph := &queryFake{name: backend.Graph, err: errors.TransientError("down", nil)}

	metrics := telemetry.NewCollector()
	s, err := New([]backend.Adapter{vector, graph}, nil, metrics, Config{}, discardLogger())
	require.NoError(t, err)

	_, err = s.Query(context.Background(), queryTenant(), "alpha", Options{})
	require.NoError(t, err)

	snap := metrics.Snapshot()
	assert.EqualValues(t, 1, snap.Backends[backend.Vector].Queries)
	assert.EqualValues(t, 1, snap.Backends[backend.Graph].Unavailable)
	assert.EqualValues(t, 1, snap.TotalQueries)
}

func TestQueryBackendSubsetSkipsExcluded(t *testing.T) {
	// Given: three configured backends
	cloud := &queryFake{name: backend.CloudSearch, hits: []backend.SearchHit{hit(backend.CloudSearch, "docs/a.md", 0.9)}}
	vector := &queryFake{name: backend.Vector, hits: []backend.SearchHit{hit(backend.Vector, "docs/b.md", 0.6)}}
	graph := &queryFake{name: backend.Graph, hits: []backend.SearchHit{hit(backend.Graph, "docs/c.md", 0.8)}}

	s := newTestSynthesizer(t, Config{}, cloud, vector, graph)

	// When: the call enables only the cloud and vector legs
	resp, err := s.Query(context.Background(), queryTenant(), "alpha",
		Options{Backends: []string{backend.CloudSearch, backend.Vector}})
	require.NoError(t, err)

	// Then: the graph backend is never queried and contributes nothing
	assert.EqualValues(t, 0, atomic.LoadInt32(&graph.calls))
	assert.Len(t, resp.Outcomes, 2)
	for _, r := range resp.Results {
		assert.NotContains(t, r.Scores, backend.Graph)
	}
}

func TestQueryUnknownBackendRejected(t *testing.T) {
	vector := &queryFake{name: backend.Vector}
	s := newTestSynthesizer(t, Config{}, vector)

	_, err := s.Query(context.Background(), queryTenant(), "alpha",
		Options{Backends: []string{"bleve"}})
	require.Error(t, err)
	assert.Equal(t, errors.ClassClient, errors.GetClass(err))
	assert.EqualValues(t, 0, atomic.LoadInt32(&vector.calls))
}

func TestNewRejectsEmptyAdapterList(t *testing.T) {
	_, err := New(nil, nil, nil, Config{}, discardLogger())
	require.Error(t, err)
}
