package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// IncRequest is a no-op.
func (n *NoopRecorder) IncRequest(kind, outcome string) {}

// IncChallengeIssued is a no-op.
func (n *NoopRecorder) IncChallengeIssued() {}

// IncSettlement is a no-op.
func (n *NoopRecorder) IncSettlement(status string) {}

// ObserveSettlementDuration is a no-op.
func (n *NoopRecorder) ObserveSettlementDuration(duration time.Duration) {}

// ObserveUpstreamDuration is a no-op.
func (n *NoopRecorder) ObserveUpstreamDuration(duration time.Duration) {}

// IncPriceCacheHit is a no-op.
func (n *NoopRecorder) IncPriceCacheHit() {}

// IncPriceCacheMiss is a no-op.
func (n *NoopRecorder) IncPriceCacheMiss() {}

// IncUsageEventPublished is a no-op.
func (n *NoopRecorder) IncUsageEventPublished(status string) {}

// IncUsageEventProcessed is a no-op.
func (n *NoopRecorder) IncUsageEventProcessed(status string) {}

// ObserveUsageBatchSize is a no-op.
func (n *NoopRecorder) ObserveUsageBatchSize(size int) {}

// SetUsageQueueDepth is a no-op.
func (n *NoopRecorder) SetUsageQueueDepth(depth int64) {}

// SetSnapshotPublishers is a no-op.
func (n *NoopRecorder) SetSnapshotPublishers(count int) {}
