// Package telemetry tracks per-operation request metrics for the HTTP API.
// All data stays in memory and local to the process - no external reporting.
package telemetry

import (
	"sort"
	"sync"
	"time"
)

// LatencyBucket represents a latency histogram bucket.
type LatencyBucket string

const (
	BucketP10   LatencyBucket = "p10"   // <10ms
	BucketP50   LatencyBucket = "p50"   // 10-50ms
	BucketP100  LatencyBucket = "p100"  // 50-100ms
	BucketP500  LatencyBucket = "p500"  // 100-500ms
	BucketP1000 LatencyBucket = "p1000" // >=500ms
)

// LatencyToBucket converts a duration to its histogram bucket.
func LatencyToBucket(d time.Duration) LatencyBucket {
	ms := d.Milliseconds()
	switch {
	case ms < 10:
		return BucketP10
	case ms < 50:
		return BucketP50
	case ms < 100:
		return BucketP100
	case ms < 500:
		return BucketP500
	default:
		return BucketP1000
	}
}

// CircularBuffer is a fixed-capacity FIFO buffer.
type CircularBuffer[T any] struct {
	items    []T
	head     int // next write position
	size     int
	capacity int
	mu       sync.RWMutex
}

// NewCircularBuffer creates a new circular buffer with the given capacity.
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

// Items returns all items in the buffer in FIFO order (oldest first).
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
		// Buffer full, oldest item sits at head.
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

// Clear removes all items from the buffer.
func (b *CircularBuffer[T]) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.head = 0
	b.size = 0
}

// sample is one recorded request.
type sample struct {
	latency time.Duration
	ok      bool
}

// OpStats is the aggregated view of one operation's recent requests.
type OpStats struct {
	Count   int                   `json:"count"`
	Errors  int                   `json:"errors"`
	AvgMs   float64               `json:"avgMs"`
	P50Ms   int64                 `json:"p50Ms"`
	P95Ms   int64                 `json:"p95Ms"`
	Buckets map[LatencyBucket]int `json:"buckets"`
}

// DefaultWindow is how many recent requests each operation keeps.
const DefaultWindow = 512

// RequestMetrics aggregates request latencies per operation over a sliding
// window of recent requests.
type RequestMetrics struct {
	mu     sync.Mutex
	window int
	ops    map[string]*CircularBuffer[sample]
}

// NewRequestMetrics creates a tracker keeping window samples per operation.
func NewRequestMetrics(window int) *RequestMetrics {
	if window <= 0 {
		window = DefaultWindow
	}
	return &RequestMetrics{
		window: window,
		ops:    make(map[string]*CircularBuffer[sample]),
	}
}

// Record adds one request observation for op.
func (m *RequestMetrics) Record(op string, latency time.Duration, ok bool) {
	m.mu.Lock()
	buf, found := m.ops[op]
	if !found {
		buf = NewCircularBuffer[sample](m.window)
		m.ops[op] = buf
	}
	m.mu.Unlock()

	buf.Add(sample{latency: latency, ok: ok})
}

// Snapshot aggregates the current window for every operation.
func (m *RequestMetrics) Snapshot() map[string]OpStats {
	m.mu.Lock()
	bufs := make(map[string]*CircularBuffer[sample], len(m.ops))
	for op, buf := range m.ops {
		bufs[op] = buf
	}
	m.mu.Unlock()

	out := make(map[string]OpStats, len(bufs))
	for op, buf := range bufs {
		out[op] = aggregate(buf.Items())
	}
	return out
}

// Reset drops all recorded samples.
func (m *RequestMetrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops = make(map[string]*CircularBuffer[sample])
}

func aggregate(samples []sample) OpStats {
	stats := OpStats{Buckets: make(map[LatencyBucket]int)}
	if len(samples) == 0 {
		return stats
	}

	latencies := make([]int64, 0, len(samples))
	var totalMs int64
	for _, s := range samples {
		ms := s.latency.Milliseconds()
		latencies = append(latencies, ms)
		totalMs += ms
		stats.Buckets[LatencyToBucket(s.latency)]++
		if !s.ok {
			stats.Errors++
		}
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	stats.Count = len(samples)
	stats.AvgMs = float64(totalMs) / float64(len(samples))
	stats.P50Ms = percentile(latencies, 50)
	stats.P95Ms = percentile(latencies, 95)
	return stats
}

// percentile returns the p-th percentile of sorted values using
// nearest-rank.
func percentile(sorted []int64, p int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := (p*len(sorted) + 99) / 100
	if rank < 1 {
		rank = 1
	}
	if rank > len(sorted) {
		rank = len(sorted)
	}
	return sorted[rank-1]
}
