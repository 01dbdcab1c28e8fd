package events

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// publisherMetrics instruments the Event Publisher, grounded on the
// teacher's internal/realtime.RealtimeMetrics (ConnectionsActive etc.)
// generalized to a bus publisher instead of an in-process broadcaster.
type publisherMetrics struct {
	publishTotal    *prometheus.CounterVec
	publishFailures *prometheus.CounterVec
	publishDuration prometheus.Histogram
}

func newPublisherMetrics() *publisherMetrics {
	return &publisherMetrics{
		publishTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "library",
				Subsystem: "events",
				Name:      "published_total",
				Help:      "Events successfully published by subject.",
			},
			[]string{"subject"},
		),
		publishFailures: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "library",
				Subsystem: "events",
				Name:      "publish_failures_total",
				Help:      "Events that exhausted retry and were dropped, by subject.",
			},
			[]string{"subject"},
		),
		publishDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "library",
				Subsystem: "events",
				Name:      "publish_duration_seconds",
				Help:      "Time spent publishing an event, including retries.",
				Buckets:   []float64{.005, .01, .05, .1, .5, 1, 5, 15, 30},
			},
		),
	}
}

// streamMetrics instruments the websocket live-tail endpoint.
type streamMetrics struct {
	connectionsActive prometheus.Gauge
	droppedSlow       prometheus.Counter
}

func newStreamMetrics() *streamMetrics {
	return &streamMetrics{
		connectionsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "library",
				Subsystem: "events_stream",
				Name:      "connections_active",
				Help:      "Active websocket subscribers on the event stream.",
			},
		),
		droppedSlow: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "library",
				Subsystem: "events_stream",
				Name:      "dropped_slow_subscribers_total",
				Help:      "Subscribers disconnected for falling behind the stream buffer.",
			},
		),
	}
}
