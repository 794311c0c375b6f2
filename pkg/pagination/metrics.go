package pagination

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for controller fetches.
var (
	fetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pagination_fetches_total",
		Help: "Total fetch calls issued by pagination controllers by operation",
	}, []string{"operation"})

	fetchErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pagination_fetch_errors_total",
		Help: "Total failed fetch calls by operation",
	}, []string{"operation"})

	fetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pagination_fetch_duration_seconds",
		Help:    "Fetch duration in seconds by operation",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"operation"})

	modeTransitionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pagination_mode_transitions_total",
		Help: "Total switches from infinite-scroll to paged mode",
	})

	itemsFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pagination_items_fetched_total",
		Help: "Total items received from remote sources",
	})
)
