package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by kind
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quotegate_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"kind"}, // "price", "metrics"
	)

	// CacheMisses tracks cache misses by kind, store errors included
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quotegate_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"kind"},
	)

	// CacheWrittenBytes tracks serialized bytes written by kind
	CacheWrittenBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quotegate_cache_written_bytes_total",
			Help: "Total bytes written to the cache",
		},
		[]string{"kind"},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quotegate_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "decode", "reset"
	)
)
