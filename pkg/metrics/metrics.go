// Package metrics provides the Prometheus registry and handler for feed-pager.
// All metrics are defined in their respective packages (pagination, querycache,
// source) to maintain modularity and avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by feed-pager.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer collects the metrics registered on Registry.
var Gatherer = prometheus.DefaultGatherer

// Names lists every metric exported by feed-pager packages.
var Names = []string{
	// pkg/pagination
	"pagination_fetches_total",
	"pagination_fetch_errors_total",
	"pagination_fetch_duration_seconds",
	"pagination_mode_transitions_total",
	"pagination_items_fetched_total",

	// pkg/querycache
	"querycache_hits_total",
	"querycache_misses_total",
	"querycache_writes_total",
	"querycache_errors_total",

	// pkg/source
	"source_requests_total",
	"source_request_duration_seconds",
	"source_errors_total",
	"source_retries_total",
	"source_retry_backoff_seconds",
	"source_retry_exhausted_total",
	"source_circuit_state",
}

// Handler returns the HTTP handler exposing Gatherer in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Pagination Metrics (pkg/pagination):
//   - pagination_fetches_total{operation} (Counter): Fetches by operation (initial, load_more, go_to_page)
//   - pagination_fetch_errors_total{operation} (Counter): Failed fetches by operation
//   - pagination_fetch_duration_seconds{operation} (Histogram): Fetch duration by operation
//   - pagination_mode_transitions_total (Counter): Switches from infinite-scroll to paged mode
//   - pagination_items_fetched_total (Counter): Items received from fetch functions
//
// Query Cache Metrics (pkg/querycache):
//   - querycache_hits_total{store} (Counter): Snapshot hits by store (memory, lru, redis)
//   - querycache_misses_total{store} (Counter): Snapshot misses by store
//   - querycache_writes_total{store} (Counter): Snapshot writes by store
//   - querycache_errors_total{store, operation} (Counter): Store operation errors
//
// Upstream Metrics (pkg/source):
//   - source_requests_total{endpoint, status} (Counter): Requests by endpoint and HTTP status
//   - source_request_duration_seconds{endpoint} (Histogram): Request duration including retries
//   - source_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network, decode, circuit_open)
//   - source_retries_total{error_class} (Counter): Retry attempts by error class
//   - source_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - source_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//   - source_circuit_state (Gauge): Circuit breaker state (0 closed, 1 half-open, 2 open)
//
// Example Prometheus Queries:
//
//   # Query Cache Hit Rate
//   sum(rate(querycache_hits_total[5m])) /
//   (sum(rate(querycache_hits_total[5m])) + sum(rate(querycache_misses_total[5m])))
//
//   # Fetch Error Rate by Operation
//   rate(pagination_fetch_errors_total[5m]) / rate(pagination_fetches_total[5m])
//
//   # P95 Upstream Latency
//   histogram_quantile(0.95, rate(source_request_duration_seconds_bucket[5m]))
//
//   # Lists Entering Paged Mode
//   rate(pagination_mode_transitions_total[1h])
