package querycache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks snapshot lookups that found an entry
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "querycache_hits_total",
			Help: "Total number of query cache hits",
		},
		[]string{"store"}, // "memory", "lru", "redis"
	)

	// CacheMisses tracks snapshot lookups that found nothing
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "querycache_misses_total",
			Help: "Total number of query cache misses",
		},
		[]string{"store"},
	)

	// CacheWrites tracks snapshot writes
	CacheWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "querycache_writes_total",
			Help: "Total number of query cache writes",
		},
		[]string{"store"},
	)

	// CacheErrors tracks store operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "querycache_errors_total",
			Help: "Total number of query cache operation errors",
		},
		[]string{"store", "operation"}, // "get", "set", "delete", "clear"
	)
)
