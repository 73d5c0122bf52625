package telemetry

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircularBufferFIFOOrder(t *testing.T) {
	buf := NewCircularBuffer[int](3)

	buf.Add(1)
	buf.Add(2)
	assert.Equal(t, []int{1, 2}, buf.Items())
	assert.Equal(t, 2, buf.Size())

	buf.Add(3)
	buf.Add(4) // evicts 1
	assert.Equal(t, []int{2, 3, 4}, buf.Items())
	assert.Equal(t, 3, buf.Size())
}

func TestCircularBufferClear(t *testing.T) {
	buf := NewCircularBuffer[string](2)
	buf.Add("a")
	buf.Clear()

	assert.Equal(t, 0, buf.Size())
	assert.Empty(t, buf.Items())
}

func TestCircularBufferZeroCapacityDefaults(t *testing.T) {
	buf := NewCircularBuffer[int](0)
	buf.Add(1)
	assert.Equal(t, 1, buf.Size())
}

func TestLatencyToBucket(t *testing.T) {
	tests := []struct {
		latency time.Duration
		want    LatencyBucket
	}{
		{5 * time.Millisecond, BucketP10},
		{25 * time.Millisecond, BucketP50},
		{75 * time.Millisecond, BucketP100},
		{250 * time.Millisecond, BucketP500},
		{2 * time.Second, BucketP1000},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LatencyToBucket(tt.latency), "latency %v", tt.latency)
	}
}

func TestRequestMetricsSnapshot(t *testing.T) {
	m := NewRequestMetrics(16)

	for i := 0; i < 9; i++ {
		m.Record("POST /api/v1/search", 10*time.Millisecond, true)
	}
	m.Record("POST /api/v1/search", 100*time.Millisecond, false)
	m.Record("POST /api/v1/crawl", 500*time.Millisecond, true)

	snap := m.Snapshot()
	require.Contains(t, snap, "POST /api/v1/search")
	require.Contains(t, snap, "POST /api/v1/crawl")

	search := snap["POST /api/v1/search"]
	assert.Equal(t, 10, search.Count)
	assert.Equal(t, 1, search.Errors)
	assert.Equal(t, int64(10), search.P50Ms)
	assert.Equal(t, int64(100), search.P95Ms)
	assert.InDelta(t, 19.0, search.AvgMs, 0.01)
	assert.Equal(t, 9, search.Buckets[BucketP50])
	assert.Equal(t, 1, search.Buckets[BucketP500])

	crawl := snap["POST /api/v1/crawl"]
	assert.Equal(t, 1, crawl.Count)
	assert.Equal(t, 0, crawl.Errors)
	assert.Equal(t, 1, crawl.Buckets[BucketP1000])
}

func TestRequestMetricsWindowEviction(t *testing.T) {
	m := NewRequestMetrics(4)

	// Four slow samples pushed out by four fast ones.
	for i := 0; i < 4; i++ {
		m.Record("op", time.Second, true)
	}
	for i := 0; i < 4; i++ {
		m.Record("op", time.Millisecond, true)
	}

	snap := m.Snapshot()
	assert.Equal(t, 4, snap["op"].Count)
	assert.Equal(t, int64(1), snap["op"].P95Ms)
}

func TestRequestMetricsReset(t *testing.T) {
	m := NewRequestMetrics(8)
	m.Record("op", time.Millisecond, true)
	m.Reset()

	assert.Empty(t, m.Snapshot())
}

func TestRequestMetricsConcurrentRecord(t *testing.T) {
	m := NewRequestMetrics(128)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			op := fmt.Sprintf("op-%d", g%2)
			for i := 0; i < 50; i++ {
				m.Record(op, time.Millisecond, true)
			}
		}(g)
	}
	wg.Wait()

	snap := m.Snapshot()
	total := 0
	for _, s := range snap {
		total += s.Count
	}
	assert.Equal(t, 256, total, "window of 128 per op caps two ops at 256")
}

func TestPercentileNearestRank(t *testing.T) {
	sorted := []int64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	assert.Equal(t, int64(5), percentile(sorted, 50))
	assert.Equal(t, int64(10), percentile(sorted, 95))
	assert.Equal(t, int64(1), percentile(sorted, 1))
	assert.Equal(t, int64(0), percentile(nil, 50))
}
