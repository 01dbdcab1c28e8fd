package store

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// storeMetrics instruments the Store Gateway per backend (spec §9
// "operational metrics"), grounded on the teacher's
// pkg/history/metrics/history_metrics.go NewHistoryMetrics.
type storeMetrics struct {
	queryDuration *prometheus.HistogramVec
	queryErrors   *prometheus.CounterVec
	txTotal       *prometheus.CounterVec
}

func newStoreMetrics(backend string) *storeMetrics {
	return &storeMetrics{
		queryDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   "library",
				Subsystem:   "store",
				Name:        "query_duration_seconds",
				Help:        "Store gateway query duration in seconds.",
				Buckets:     []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
				ConstLabels: prometheus.Labels{"backend": backend},
			},
			[]string{"operation"},
		),
		queryErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   "library",
				Subsystem:   "store",
				Name:        "query_errors_total",
				Help:        "Store gateway query errors.",
				ConstLabels: prometheus.Labels{"backend": backend},
			},
			[]string{"operation"},
		),
		txTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   "library",
				Subsystem:   "store",
				Name:        "transactions_total",
				Help:        "Store gateway transactions by outcome.",
				ConstLabels: prometheus.Labels{"backend": backend},
			},
			[]string{"outcome"},
		),
	}
}
