package fetcher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the fetch pipelines.
var (
	fetchOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quotegate_fetch_outcomes_total",
		Help: "Fetch results by kind and where the value came from",
	}, []string{"kind", "outcome"}) // outcome: cache, stale, quote, chart, quoteSummary, gate_closed, throttled, not_found, degraded, panic

	fetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "quotegate_fetch_duration_seconds",
		Help:    "Fetch pipeline duration in seconds by kind",
		Buckets: []float64{0.005, 0.025, 0.1, 0.5, 1, 2, 5, 10},
	}, []string{"kind"})

	batchSymbols = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "quotegate_batch_symbols",
		Help:    "Number of symbols per batch request",
		Buckets: []float64{1, 5, 10, 25, 50, 100},
	})
)
