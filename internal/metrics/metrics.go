// Package metrics holds the Prometheus instrumentation for the gate
// controller. Register must be called exactly once, by main.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	ScansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gate_scans_total",
			Help: "Device card scans by outcome",
		},
		[]string{"outcome"},
	)

	DecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gate_decisions_total",
			Help: "Operator decisions by kind",
		},
		[]string{"kind"},
	)

	QueueSweptTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gate_queue_swept_total",
			Help: "Pending actions removed by the TTL sweep",
		},
	)

	QueuePurgedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gate_queue_purged_total",
			Help: "Abandoned processing claims removed by the pruner",
		},
	)

	CameraFallbacksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gate_camera_fallbacks_total",
			Help: "Snapshot captures that fell back to the placeholder",
		},
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"handler", "method", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"handler", "method"},
	)
)

func Register() {
	prometheus.MustRegister(
		ScansTotal,
		DecisionsTotal,
		QueueSweptTotal,
		QueuePurgedTotal,
		CameraFallbacksTotal,
		HTTPRequestsTotal,
		HTTPRequestDuration,
	)
}
