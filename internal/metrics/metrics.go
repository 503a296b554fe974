// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Request metrics
	IncRequest(kind, outcome string) // kind: "preview" or "fetch"; outcome: "completed" or "failed"
	IncChallengeIssued()

	// Settlement metrics
	IncSettlement(status string) // status: "success", "rejected", "error"
	ObserveSettlementDuration(duration time.Duration)

	// Upstream publisher metrics
	ObserveUpstreamDuration(duration time.Duration)

	// Price cache metrics
	IncPriceCacheHit()
	IncPriceCacheMiss()

	// Usage pipeline metrics
	IncUsageEventPublished(status string) // status: "success" or "dropped"
	IncUsageEventProcessed(status string) // status: "success", "failed", "skipped"
	ObserveUsageBatchSize(size int)
	SetUsageQueueDepth(depth int64)

	// Reference data metrics
	SetSnapshotPublishers(count int)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
