// Package metrics implements the pipeline's Prometheus exporter: atomic
// counters updated from the hot path, published as gauges/counters on an
// HTTP endpoint. Grounded on warpcomdev-asicamera2's promauto-registered
// GaugeVec style (internal/driver/camera/metrics.go), generalized from
// per-camera control-type gauges to per-plugin processing stats and
// acquisition counters.
package metrics

import (
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	framesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "odin_frames_received_total",
		Help: "Frames completed by the decoder and published on the frame-ready channel.",
	})

	framesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "odin_frames_dropped_total",
		Help: "Packets dropped by the decoder because no empty buffer was available.",
	})

	framesTimedout = promauto.NewCounter(prometheus.CounterOpts{
		Name: "odin_frames_timedout_total",
		Help: "Frames force-completed by monitor_buffers after exceeding frame_timeout_ms.",
	})

	pluginLastDuration = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "odin_plugin_process_duration_last_seconds",
		Help: "Most recent process_frame duration for a plugin.",
	}, []string{"plugin"})

	pluginMaxDuration = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "odin_plugin_process_duration_max_seconds",
		Help: "Maximum observed process_frame duration for a plugin.",
	}, []string{"plugin"})

	pluginMeanDuration = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "odin_plugin_process_duration_mean_seconds",
		Help: "Mean process_frame duration for a plugin.",
	}, []string{"plugin"})

	pluginQueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "odin_plugin_queue_depth",
		Help: "Current depth of a plugin's non-blocking work queue.",
	}, []string{"plugin"})

	acquisitionFramesWritten = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "odin_acquisition_frames_written",
		Help: "Highest contiguous dataset frame count observed for an acquisition.",
	}, []string{"acquisition"})

	acquisitionFramesProcessed = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "odin_acquisition_frames_processed",
		Help: "Frames successfully routed to a file for an acquisition.",
	}, []string{"acquisition"})
)

// ObserveFramesReceived increments the frames-received counter by count.
func ObserveFramesReceived(count uint64) { framesReceived.Add(float64(count)) }

// ObserveFramesDropped increments the frames-dropped counter by count.
func ObserveFramesDropped(count uint64) { framesDropped.Add(float64(count)) }

// ObserveFramesTimedout increments the frames-timedout counter by count.
func ObserveFramesTimedout(count uint64) { framesTimedout.Add(float64(count)) }

// ObservePluginDuration records a plugin's last observed process_frame
// duration in nanoseconds. Callers also pass max/mean when publishing a
// workqueue.Stats snapshot via PublishPluginStats.
func ObservePluginDuration(plugin string, durationNs uint64) {
	pluginLastDuration.WithLabelValues(plugin).Set(float64(durationNs) / 1e9)
}

// PublishPluginStats sets all three duration gauges and the queue depth for
// plugin in one call, matching the last/max/mean triple workqueue.Stats
// already aggregates.
func PublishPluginStats(plugin string, lastNs, maxNs, meanNs uint64, queueDepth int) {
	pluginLastDuration.WithLabelValues(plugin).Set(float64(lastNs) / 1e9)
	pluginMaxDuration.WithLabelValues(plugin).Set(float64(maxNs) / 1e9)
	pluginMeanDuration.WithLabelValues(plugin).Set(float64(meanNs) / 1e9)
	pluginQueueDepth.WithLabelValues(plugin).Set(float64(queueDepth))
}

// PublishAcquisitionCounters sets the written/processed gauges for a named
// acquisition.
func PublishAcquisitionCounters(acquisitionID string, framesWritten, framesProcessed int64) {
	acquisitionFramesWritten.WithLabelValues(acquisitionID).Set(float64(framesWritten))
	acquisitionFramesProcessed.WithLabelValues(acquisitionID).Set(float64(framesProcessed))
}

// Handler returns the HTTP handler to mount at the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Observer implements interfaces.Observer with lock-free atomic counters,
// for components that want an in-process snapshot in addition to (or
// instead of) the Prometheus registry — e.g. unit tests asserting on exact
// counts without scraping HTTP.
type Observer struct {
	received uint64
	dropped  uint64
}

// ObserveFramesReceived implements interfaces.Observer.
func (o *Observer) ObserveFramesReceived(count uint64) {
	atomic.AddUint64(&o.received, count)
	ObserveFramesReceived(count)
}

// ObserveFramesDropped implements interfaces.Observer.
func (o *Observer) ObserveFramesDropped(count uint64) {
	atomic.AddUint64(&o.dropped, count)
	ObserveFramesDropped(count)
}

// ObservePluginDuration implements interfaces.Observer.
func (o *Observer) ObservePluginDuration(plugin string, durationNs uint64) {
	ObservePluginDuration(plugin, durationNs)
}

// ObserveQueueDepth implements interfaces.Observer.
func (o *Observer) ObserveQueueDepth(plugin string, depth int) {
	pluginQueueDepth.WithLabelValues(plugin).Set(float64(depth))
}

// Received returns the in-process received counter.
func (o *Observer) Received() uint64 { return atomic.LoadUint64(&o.received) }

// Dropped returns the in-process dropped counter.
func (o *Observer) Dropped() uint64 { return atomic.LoadUint64(&o.dropped) }
