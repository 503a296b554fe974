package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	Requests                  map[string]uint64 // key: kind + ":" + outcome
	ChallengesIssued          uint64
	Settlements               map[string]uint64
	SettlementDurationCount   uint64
	SettlementDurationTotalNs int64
	UpstreamDurationCount     uint64
	UpstreamDurationTotalNs   int64
	PriceCacheHits            uint64
	PriceCacheMisses          uint64
	UsageEventsPublished      map[string]uint64
	UsageEventsProcessed      map[string]uint64
	UsageQueueDepth           int64
	SnapshotPublishers        int64
}

// InMemoryRecorder stores metrics in memory for tests.
type InMemoryRecorder struct {
	mu                        sync.Mutex
	requests                  map[string]uint64
	settlements               map[string]uint64
	usagePublished            map[string]uint64
	usageProcessed            map[string]uint64
	challengesIssued          uint64
	settlementDurationCount   uint64
	settlementDurationTotalNs int64
	upstreamDurationCount     uint64
	upstreamDurationTotalNs   int64
	priceCacheHits            uint64
	priceCacheMisses          uint64
	usageQueueDepth           int64
	snapshotPublishers        int64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{
		requests:       make(map[string]uint64),
		settlements:    make(map[string]uint64),
		usagePublished: make(map[string]uint64),
		usageProcessed: make(map[string]uint64),
	}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Snapshot{
		Requests:                  copyMap(m.requests),
		ChallengesIssued:          atomic.LoadUint64(&m.challengesIssued),
		Settlements:               copyMap(m.settlements),
		SettlementDurationCount:   atomic.LoadUint64(&m.settlementDurationCount),
		SettlementDurationTotalNs: atomic.LoadInt64(&m.settlementDurationTotalNs),
		UpstreamDurationCount:     atomic.LoadUint64(&m.upstreamDurationCount),
		UpstreamDurationTotalNs:   atomic.LoadInt64(&m.upstreamDurationTotalNs),
		PriceCacheHits:            atomic.LoadUint64(&m.priceCacheHits),
		PriceCacheMisses:          atomic.LoadUint64(&m.priceCacheMisses),
		UsageEventsPublished:      copyMap(m.usagePublished),
		UsageEventsProcessed:      copyMap(m.usageProcessed),
		UsageQueueDepth:           atomic.LoadInt64(&m.usageQueueDepth),
		SnapshotPublishers:        atomic.LoadInt64(&m.snapshotPublishers),
	}
}

func copyMap(src map[string]uint64) map[string]uint64 {
	dst := make(map[string]uint64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// IncRequest increments the request counter for a kind/outcome pair.
func (m *InMemoryRecorder) IncRequest(kind, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[kind+":"+outcome]++
}

// IncChallengeIssued increments the challenge counter.
func (m *InMemoryRecorder) IncChallengeIssued() {
	atomic.AddUint64(&m.challengesIssued, 1)
}

// IncSettlement increments the settlement counter for a status.
func (m *InMemoryRecorder) IncSettlement(status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settlements[status]++
}

// ObserveSettlementDuration records settlement latency.
func (m *InMemoryRecorder) ObserveSettlementDuration(duration time.Duration) {
	atomic.AddUint64(&m.settlementDurationCount, 1)
	atomic.AddInt64(&m.settlementDurationTotalNs, duration.Nanoseconds())
}

// ObserveUpstreamDuration records upstream fetch latency.
func (m *InMemoryRecorder) ObserveUpstreamDuration(duration time.Duration) {
	atomic.AddUint64(&m.upstreamDurationCount, 1)
	atomic.AddInt64(&m.upstreamDurationTotalNs, duration.Nanoseconds())
}

// IncPriceCacheHit increments the price cache hit counter.
func (m *InMemoryRecorder) IncPriceCacheHit() {
	atomic.AddUint64(&m.priceCacheHits, 1)
}

// IncPriceCacheMiss increments the price cache miss counter.
func (m *InMemoryRecorder) IncPriceCacheMiss() {
	atomic.AddUint64(&m.priceCacheMisses, 1)
}

// IncUsageEventPublished increments the publish counter for a status.
func (m *InMemoryRecorder) IncUsageEventPublished(status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.usagePublished[status]++
}

// IncUsageEventProcessed increments the processed counter for a status.
func (m *InMemoryRecorder) IncUsageEventProcessed(status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.usageProcessed[status]++
}

// ObserveUsageBatchSize records a worker batch size. Only the count is
// kept; tests assert on processed counters instead.
func (m *InMemoryRecorder) ObserveUsageBatchSize(size int) {}

// SetUsageQueueDepth sets the usage stream depth gauge.
func (m *InMemoryRecorder) SetUsageQueueDepth(depth int64) {
	atomic.StoreInt64(&m.usageQueueDepth, depth)
}

// SetSnapshotPublishers sets the snapshot publisher gauge.
func (m *InMemoryRecorder) SetSnapshotPublishers(count int) {
	atomic.StoreInt64(&m.snapshotPublishers, int64(count))
}
