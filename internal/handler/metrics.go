package handler

import (
	"fmt"
	"net/http"

	"github.com/tessera/tessera/internal/metrics"
)

// MetricsHandler exposes in-memory metrics.
type MetricsHandler struct {
	snapshotter metrics.Snapshotter
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(snapshotter metrics.Snapshotter) *MetricsHandler {
	return &MetricsHandler{snapshotter: snapshotter}
}

// Metrics returns metrics in Prometheus exposition format.
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	snap := h.snapshotter.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	for key, count := range snap.Requests {
		kind, outcome := splitCounterKey(key)
		writeMetric(w, "tessera_requests_total{kind=%q,outcome=%q} %d\n", kind, outcome, count)
	}
	writeMetric(w, "tessera_challenges_issued_total %d\n", snap.ChallengesIssued)

	for status, count := range snap.Settlements {
		writeMetric(w, "tessera_settlements_total{status=%q} %d\n", status, count)
	}
	writeMetric(w, "tessera_settlement_duration_seconds_count %d\n", snap.SettlementDurationCount)
	writeMetric(w, "tessera_settlement_duration_seconds_sum %.6f\n", float64(snap.SettlementDurationTotalNs)/1e9)

	writeMetric(w, "tessera_upstream_duration_seconds_count %d\n", snap.UpstreamDurationCount)
	writeMetric(w, "tessera_upstream_duration_seconds_sum %.6f\n", float64(snap.UpstreamDurationTotalNs)/1e9)

	writeMetric(w, "tessera_price_cache_hits_total %d\n", snap.PriceCacheHits)
	writeMetric(w, "tessera_price_cache_misses_total %d\n", snap.PriceCacheMisses)

	for status, count := range snap.UsageEventsPublished {
		writeMetric(w, "tessera_usage_events_published_total{status=%q} %d\n", status, count)
	}
	for status, count := range snap.UsageEventsProcessed {
		writeMetric(w, "tessera_usage_events_processed_total{status=%q} %d\n", status, count)
	}
	writeMetric(w, "tessera_usage_queue_depth %d\n", snap.UsageQueueDepth)

	writeMetric(w, "tessera_snapshot_publishers %d\n", snap.SnapshotPublishers)
}

// splitCounterKey splits a "kind:outcome" counter key.
func splitCounterKey(key string) (string, string) {
	for i := 0; i < len(key); i++ {
		if key[i] == ':' {
			return key[:i], key[i+1:]
		}
	}
	return key, ""
}

func writeMetric(w http.ResponseWriter, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
