package yahoo

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for upstream calls.
var (
	providerRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quotegate_provider_requests_total",
		Help: "Total upstream requests by endpoint and status",
	}, []string{"endpoint", "status"})

	providerRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "quotegate_provider_request_duration_seconds",
		Help:    "Upstream request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	providerErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quotegate_provider_errors_total",
		Help: "Total upstream errors by class",
	}, []string{"class"})

	providerRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quotegate_provider_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	providerRetryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "quotegate_provider_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error class",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"error_class"})

	providerRetryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quotegate_provider_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error class",
	}, []string{"error_class"})
)
