package odin

import (
	"net/http"

	"github.com/odin-pipeline/odin-go/internal/metrics"
)

// MetricsHandler returns the Prometheus HTTP handler to mount at an
// embedder's metrics endpoint, the same handler cmd/odin-processor serves.
func MetricsHandler() http.Handler {
	return metrics.Handler()
}

// MetricsObserver implements Observer with both Prometheus gauges/counters
// and a lock-free in-process snapshot, for an embedder that wants exact
// counts without scraping HTTP (e.g. in its own tests).
type MetricsObserver = metrics.Observer

// PublishPluginStats sets a plugin's last/max/mean process_frame duration
// and queue depth gauges in one call.
func PublishPluginStats(plugin string, lastNs, maxNs, meanNs uint64, queueDepth int) {
	metrics.PublishPluginStats(plugin, lastNs, maxNs, meanNs, queueDepth)
}

// PublishAcquisitionCounters sets the written/processed frame-count gauges
// for a named acquisition.
func PublishAcquisitionCounters(acquisitionID string, framesWritten, framesProcessed int64) {
	metrics.PublishAcquisitionCounters(acquisitionID, framesWritten, framesProcessed)
}
