package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLatencyToBucket(t *testing.T) {
	tests := []struct {
		latency time.Duration
		want    LatencyBucket
	}{
		{10 * time.Millisecond, BucketP50},
		{75 * time.Millisecond, BucketP100},
		{200 * time.Millisecond, BucketP500},
		{1 * time.Second, BucketP2000},
		{3 * time.Second, BucketSlow},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LatencyToBucket(tt.latency))
	}
}

func TestCircularBufferEviction(t *testing.T) {
	buf := NewCircularBuffer[int](3)
	for i := 1; i <= 5; i++ {
		buf.Add(i)
	}
	assert.Equal(t, 3, buf.Size())
	assert.Equal(t, []int{3, 4, 5}, buf.Items())
}

func TestCircularBufferPartial(t *testing.T) {
	buf := NewCircularBuffer[string](5)
	buf.Add("a")
	buf.Add("b")
	assert.Equal(t, []string{"a", "b"}, buf.Items())
}

func TestCollectorQueryMetrics(t *testing.T) {
	c := NewCollector()

	c.RecordQuery(QueryEvent{Backend: "vector", ResultCount: 3, Latency: 20 * time.Millisecond})
	c.RecordQuery(QueryEvent{Backend: "vector", ResultCount: 0, Latency: 300 * time.Millisecond})
	c.RecordQuery(QueryEvent{Backend: "graph", Unavailable: true})

	snap := c.Snapshot()
	require.Contains(t, snap.Backends, "vector")
	require.Contains(t, snap.Backends, "graph")

	vec := snap.Backends["vector"]
	assert.EqualValues(t, 2, vec.Queries)
	assert.EqualValues(t, 1, vec.ZeroResults)
	assert.EqualValues(t, 1, vec.QueryLatencies[BucketP50])
	assert.EqualValues(t, 1, vec.QueryLatencies[BucketP500])

	assert.InDelta(t, 1.0, snap.UnavailabilityRate("graph"), 0.001)
	assert.InDelta(t, 0.0, snap.UnavailabilityRate("vector"), 0.001)
}

func TestCollectorIngestMetrics(t *testing.T) {
	c := NewCollector()

	c.RecordIngest(IngestEvent{Backend: "graph", OK: true, Attempts: 3, Latency: 40 * time.Millisecond})
	c.RecordIngest(IngestEvent{Backend: "graph", OK: false, Attempts: 1})
	c.RecordIngest(IngestEvent{Backend: "graph", OK: true, AlreadyPresent: true, Attempts: 1})

	snap := c.Snapshot()
	g := snap.Backends["graph"]
	assert.EqualValues(t, 3, g.Ingests)
	assert.EqualValues(t, 1, g.IngestFailures)
	assert.EqualValues(t, 2, g.IngestRetries)
	assert.EqualValues(t, 1, g.AlreadyPresent)
}

func TestCollectorZeroResultQueries(t *testing.T) {
	c := NewCollector()

	c.RecordQueryText("orphaned widgets", 0)
	c.RecordQueryText("known topic", 12)

	snap := c.Snapshot()
	assert.EqualValues(t, 2, snap.TotalQueries)
	assert.Equal(t, []string{"orphaned widgets"}, snap.ZeroResultQueries)
}

func TestCollectorIsolationViolations(t *testing.T) {
	c := NewCollector()
	c.RecordIsolationViolation("cloudsearch")
	c.RecordIsolationViolation("cloudsearch")

	snap := c.Snapshot()
	assert.EqualValues(t, 2, snap.IsolationViolations)
}

func TestSnapshotIsCopy(t *testing.T) {
	c := NewCollector()
	c.RecordQuery(QueryEvent{Backend: "vector", ResultCount: 1, Latency: time.Millisecond})

	snap := c.Snapshot()
	snap.Backends["vector"].Queries = 99

	again := c.Snapshot()
	assert.EqualValues(t, 1, again.Backends["vector"].Queries)
}

func TestBackendNamesSorted(t *testing.T) {
	c := NewCollector()
	c.RecordQuery(QueryEvent{Backend: "vector"})
	c.RecordQuery(QueryEvent{Backend: "cloudsearch"})
	c.RecordQuery(QueryEvent{Backend: "graph"})

	snap := c.Snapshot()
	assert.Equal(t, []string{"cloudsearch", "graph", "vector"}, snap.BackendNames())
}
