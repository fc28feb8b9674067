// Package telemetry collects per-backend query and ingestion metrics.
// All data is kept in memory and exposed via snapshots - no external
// reporting.
package telemetry

import (
	"sort"
	"sync"
	"time"
)

// LatencyBucket represents a latency histogram bucket.
type LatencyBucket string

const (
	BucketP50   LatencyBucket = "p50"   // <50ms
	BucketP100  LatencyBucket = "p100"  // 50-100ms
	BucketP500  LatencyBucket = "p500"  // 100-500ms
	BucketP2000 LatencyBucket = "p2000" // 500ms-2s
	BucketSlow  LatencyBucket = "slow"  // >=2s
)

// LatencyToBucket converts a duration to its histogram bucket.
func LatencyToBucket(d time.Duration) LatencyBucket {
	ms := d.Milliseconds()
	switch {
	case ms < 50:
		return BucketP50
	case ms < 100:
		return BucketP100
	case ms < 500:
		return BucketP500
	case ms < 2000:
		return BucketP2000
	default:
		return BucketSlow
	}
}

// QueryEvent records one backend leg of a hybrid query.
type QueryEvent struct {
	Backend     string
	TenantID    string
	ResultCount int
	Latency     time.Duration
	Unavailable bool
	Timestamp   time.Time
}

// IngestEvent records one backend leg of a document ingestion.
type IngestEvent struct {
	Backend        string
	TenantID       string
	OK             bool
	AlreadyPresent bool
	Attempts       int
	Latency        time.Duration
}

// CircularBuffer is a fixed-capacity FIFO buffer.
type CircularBuffer[T any] struct {
	items    []T
	head     int
	size     int
	capacity int
	mu       sync.RWMutex
}

// NewCircularBuffer creates a circular buffer with the given capacity.
func NewCircularBuffer[T any](capacity int) *CircularBuffer[T] {
	if capacity <= 0 {
		capacity = 100
	}
	return &CircularBuffer[T]{
		items:    make([]T, capacity),
		capacity: capacity,
	}
}

// Add adds an item to the buffer. If full, the oldest item is evicted.
func (b *CircularBuffer[T]) Add(item T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.items[b.head] = item
	b.head = (b.head + 1) % b.capacity

	if b.size < b.capacity {
		b.size++
	}
}

// Items returns all items in FIFO order, oldest first.
func (b *CircularBuffer[T]) Items() []T {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.size == 0 {
		return []T{}
	}

	result := make([]T, b.size)
	if b.size < b.capacity {
		copy(result, b.items[:b.size])
	} else {
		copy(result, b.items[b.head:])
		copy(result[b.capacity-b.head:], b.items[:b.head])
	}
	return result
}

// Size returns the current number of items in the buffer.
func (b *CircularBuffer[T]) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// BackendStats aggregates one backend's counters.
type BackendStats struct {
	Queries         int64                   `json:"queries"`
	ZeroResults     int64                   `json:"zero_results"`
	Unavailable     int64                   `json:"unavailable"`
	Ingests         int64                   `json:"ingests"`
	IngestFailures  int64                   `json:"ingest_failures"`
	IngestRetries   int64                   `json:"ingest_retries"`
	AlreadyPresent  int64                   `json:"already_present"`
	QueryLatencies  map[LatencyBucket]int64 `json:"query_latencies"`
	IngestLatencies map[LatencyBucket]int64 `json:"ingest_latencies"`
}

// Snapshot is an immutable view of the collected metrics.
type Snapshot struct {
	Backends            map[string]*BackendStats `json:"backends"`
	TotalQueries        int64                    `json:"total_queries"`
	IsolationViolations int64                    `json:"isolation_violations"`
	ZeroResultQueries   []string                 `json:"zero_result_queries"`
	Since               time.Time                `json:"since"`
}

// UnavailabilityRate returns the fraction of legs that were unavailable
// for the named backend, or 0 when it has seen no queries.
func (s *Snapshot) UnavailabilityRate(backend string) float64 {
	stats, ok := s.Backends[backend]
	if !ok || stats.Queries == 0 {
		return 0
	}
	return float64(stats.Unavailable) / float64(stats.Queries)
}

// BackendNames returns backend names sorted for stable reporting.
func (s *Snapshot) BackendNames() []string {
	names := make([]string, 0, len(s.Backends))
	for name := range s.Backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Collector gathers per-backend metrics. Thread-safe.
type Collector struct {
	mu sync.RWMutex

	backends            map[string]*BackendStats
	totalQueries        int64
	isolationViolations int64
	zeroResults         *CircularBuffer[string]
	startTime           time.Time
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{
		backends:    make(map[string]*BackendStats),
		zeroResults: NewCircularBuffer[string](100),
		startTime:   time.Now(),
	}
}

func (c *Collector) stats(backend string) *BackendStats {
	s, ok := c.backends[backend]
	if !ok {
		s = &BackendStats{
			QueryLatencies:  make(map[LatencyBucket]int64),
			IngestLatencies: make(map[LatencyBucket]int64),
		}
		c.backends[backend] = s
	}
	return s
}

// RecordQuery captures one backend query leg.
func (c *Collector) RecordQuery(event QueryEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.stats(event.Backend)
	s.Queries++
	if event.Unavailable {
		s.Unavailable++
	} else {
		s.QueryLatencies[LatencyToBucket(event.Latency)]++
		if event.ResultCount == 0 {
			s.ZeroResults++
		}
	}
}

// RecordQueryText tracks the query string for a hybrid query that
// returned no results from any backend.
func (c *Collector) RecordQueryText(query string, totalResults int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.totalQueries++
	if totalResults == 0 {
		c.zeroResults.Add(query)
	}
}

// RecordIngest captures one backend ingestion leg.
func (c *Collector) RecordIngest(event IngestEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.stats(event.Backend)
	s.Ingests++
	if !event.OK {
		s.IngestFailures++
	}
	if event.AlreadyPresent {
		s.AlreadyPresent++
	}
	if event.Attempts > 1 {
		s.IngestRetries += int64(event.Attempts - 1)
	}
	s.IngestLatencies[LatencyToBucket(event.Latency)]++
}

// RecordIsolationViolation counts a cross-tenant hit caught by the
// post-merge assertion. These should be zero in a healthy deployment.
func (c *Collector) RecordIsolationViolation(backend string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.isolationViolations++
	c.stats(backend)
}

// Snapshot returns a deep copy of the current metrics.
func (c *Collector) Snapshot() *Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	backends := make(map[string]*BackendStats, len(c.backends))
	for name, s := range c.backends {
		cp := *s
		cp.QueryLatencies = make(map[LatencyBucket]int64, len(s.QueryLatencies))
		for k, v := range s.QueryLatencies {
			cp.QueryLatencies[k] = v
		}
		cp.IngestLatencies = make(map[LatencyBucket]int64, len(s.IngestLatencies))
		for k, v := range s.IngestLatencies {
			cp.IngestLatencies[k] = v
		}
		backends[name] = &cp
	}

	return &Snapshot{
		Backends:            backends,
		TotalQueries:        c.totalQueries,
		IsolationViolations: c.isolationViolations,
		ZeroResultQueries:   c.zeroResults.Items(),
		Since:               c.startTime,
	}
}
