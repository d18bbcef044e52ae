// Package metrics is the in-memory metrics collector spec.md §6 describes:
// no persistence, reset on process restart, exposed only via GET /metrics.
//
// Grounded on the teacher's MetricsCollector: atomic counters for
// high-frequency events plus a bounded ring buffer per latency series so
// percentile stats stay O(1) to record and O(n-in-buffer) to summarize,
// rather than accumulating every sample forever.
package metrics

import (
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

const ringBufferSize = 4096

// Collector holds every counter and latency series this service reports.
type Collector struct {
	cacheHits      atomic.Int64
	cacheMisses    atomic.Int64
	cacheEvictions atomic.Int64

	fetchCount     atomic.Int64
	fetchErrors    atomic.Int64
	fetchByVariant sync.Map // string(variant) -> *atomic.Int64

	solveCount   atomic.Int64
	solveErrors  atomic.Int64
	unsolvable   atomic.Int64

	inFlight atomic.Int64

	fetchLatency *ringBuffer
	solveLatency *ringBuffer
}

// New constructs an empty Collector.
func New() *Collector {
	return &Collector{
		fetchLatency: newRingBuffer(ringBufferSize),
		solveLatency: newRingBuffer(ringBufferSize),
	}
}

func (c *Collector) RecordCacheHit()      { c.cacheHits.Add(1) }
func (c *Collector) RecordCacheMiss()     { c.cacheMisses.Add(1) }
func (c *Collector) RecordCacheEvictions(n int) {
	if n > 0 {
		c.cacheEvictions.Add(int64(n))
	}
}

// RecordFetch records one index fetch's outcome, latency, and the
// compression variant that served it ("zst", "bz2", or "" for
// uncompressed).
func (c *Collector) RecordFetch(variant string, d time.Duration, err error) {
	c.fetchCount.Add(1)
	if err != nil {
		c.fetchErrors.Add(1)
	}
	counter, _ := c.fetchByVariant.LoadOrStore(variant, new(atomic.Int64))
	counter.(*atomic.Int64).Add(1)
	c.fetchLatency.Add(d.Seconds())
}

// RecordSolve records one solve attempt's outcome and latency.
// unsolvable distinguishes a structured Unsolvable verdict from any other
// failure, since spec.md §7 treats it as a distinct, expected outcome.
func (c *Collector) RecordSolve(d time.Duration, err error, unsolvable bool) {
	c.solveCount.Add(1)
	if err != nil {
		c.solveErrors.Add(1)
	}
	if unsolvable {
		c.unsolvable.Add(1)
	}
	c.solveLatency.Add(d.Seconds())
}

// InFlightStart/End track the number of /solve requests currently being
// processed, for the in-flight gauge spec.md §6 names.
func (c *Collector) InFlightStart() { c.inFlight.Add(1) }
func (c *Collector) InFlightEnd()   { c.inFlight.Add(-1) }

// Snapshot is a point-in-time rendering of every metric, suitable for
// JSON serialization by GET /metrics.
type Snapshot struct {
	CacheHits      int64            `json:"cache_hits"`
	CacheMisses    int64            `json:"cache_misses"`
	CacheEvictions int64            `json:"cache_evictions"`
	FetchCount     int64            `json:"fetch_count"`
	FetchErrors    int64            `json:"fetch_errors"`
	FetchByVariant map[string]int64 `json:"fetch_by_variant"`
	FetchLatency   LatencyStats     `json:"fetch_latency_seconds"`
	SolveCount     int64            `json:"solve_count"`
	SolveErrors    int64            `json:"solve_errors"`
	Unsolvable     int64            `json:"unsolvable"`
	SolveLatency   LatencyStats     `json:"solve_latency_seconds"`
	InFlight       int64            `json:"in_flight"`
}

// Snapshot renders the current state of every metric.
func (c *Collector) Snapshot() Snapshot {
	byVariant := make(map[string]int64)
	c.fetchByVariant.Range(func(k, v any) bool {
		byVariant[k.(string)] = v.(*atomic.Int64).Load()
		return true
	})

	return Snapshot{
		CacheHits:      c.cacheHits.Load(),
		CacheMisses:    c.cacheMisses.Load(),
		CacheEvictions: c.cacheEvictions.Load(),
		FetchCount:     c.fetchCount.Load(),
		FetchErrors:    c.fetchErrors.Load(),
		FetchByVariant: byVariant,
		FetchLatency:   c.fetchLatency.Stats(),
		SolveCount:     c.solveCount.Load(),
		SolveErrors:    c.solveErrors.Load(),
		Unsolvable:     c.unsolvable.Load(),
		SolveLatency:   c.solveLatency.Stats(),
		InFlight:       c.inFlight.Load(),
	}
}

// LatencyStats summarizes a latency series in seconds.
type LatencyStats struct {
	Count int     `json:"count"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
	P50   float64 `json:"p50"`
	P90   float64 `json:"p90"`
	P99   float64 `json:"p99"`
}

// ringBuffer is a mutex-guarded fixed-size circular buffer of float64
// samples. The teacher's lock-free CAS ring buffer is overkill at this
// service's request volume (one sample per fetch/solve, not per cache
// operation), so this trades its lock-free head/tail bookkeeping for a
// single mutex — same bounded-memory, last-N-samples behavior.
type ringBuffer struct {
	mu      sync.Mutex
	samples []float64
	next    int
	filled  bool
}

func newRingBuffer(size int) *ringBuffer {
	return &ringBuffer{samples: make([]float64, size)}
}

func (r *ringBuffer) Add(v float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples[r.next] = v
	r.next++
	if r.next == len(r.samples) {
		r.next = 0
		r.filled = true
	}
}

func (r *ringBuffer) Stats() LatencyStats {
	r.mu.Lock()
	var values []float64
	if r.filled {
		values = append(values, r.samples...)
	} else {
		values = append(values, r.samples[:r.next]...)
	}
	r.mu.Unlock()

	if len(values) == 0 {
		return LatencyStats{}
	}

	sort.Float64s(values)
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return LatencyStats{
		Count: len(values),
		Min:   values[0],
		Max:   values[len(values)-1],
		Avg:   sum / float64(len(values)),
		P50:   percentile(values, 0.50),
		P90:   percentile(values, 0.90),
		P99:   percentile(values, 0.99),
	}
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
