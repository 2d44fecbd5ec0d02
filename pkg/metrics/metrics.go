// Package metrics exposes the Prometheus registry used by quotegate.
// All metrics are defined in their respective packages (cache, ratelimit,
// provider/yahoo, fetcher, portfolio) and registered via promauto.
//
// This package provides the scrape handler and the metric catalogue.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by quotegate.
var Registry = prometheus.DefaultRegisterer

// Gatherer collects the metrics registered in Registry.
var Gatherer = prometheus.DefaultGatherer

// Handler returns the /metrics scrape handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Cache Metrics (pkg/cache):
//   - quotegate_cache_hits_total{kind} (Counter): Cache hits by kind (price, metrics)
//   - quotegate_cache_misses_total{kind} (Counter): Cache misses, store errors included
//   - quotegate_cache_written_bytes_total{kind} (Counter): Serialized bytes written
//   - quotegate_cache_errors_total{operation} (Counter): Cache operation errors (get, set, decode, reset)
//
// Rate Limit Metrics (pkg/ratelimit):
//   - quotegate_rate_limit_rejections_total{domain} (Counter): Rejected hits per domain (ip, symbol, external)
//   - quotegate_throttle_collapsed_total (Counter): Upstream calls collapsed by the throttle guard
//   - quotegate_rate_limit_store_errors_total{operation} (Counter): Store failures that failed open
//
// Provider Metrics (pkg/provider/yahoo):
//   - quotegate_provider_requests_total{endpoint, status} (Counter): Upstream requests by endpoint and HTTP status
//   - quotegate_provider_request_duration_seconds{endpoint} (Histogram): Upstream request duration
//   - quotegate_provider_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network, decode)
//   - quotegate_provider_retries_total{error_class} (Counter): Retry attempts
//   - quotegate_provider_retry_backoff_seconds{error_class} (Histogram): Backoff duration
//   - quotegate_provider_retry_exhausted_total{error_class} (Counter): Requests that exhausted retries
//
// Fetch Metrics (pkg/fetcher):
//   - quotegate_fetch_outcomes_total{kind, outcome} (Counter): Where each price/metrics answer came from
//   - quotegate_fetch_duration_seconds{kind} (Histogram): End-to-end fetch duration
//   - quotegate_batch_symbols (Histogram): Symbols per batch request
//
// Portfolio Metrics (pkg/portfolio):
//   - quotegate_portfolio_items_enriched_total{outcome} (Counter): Live refresh results per item
//
// Example Prometheus Queries:
//
//   # Price Cache Hit Rate
//   sum(rate(quotegate_cache_hits_total{kind="price"}[5m])) /
//   (sum(rate(quotegate_cache_hits_total{kind="price"}[5m])) + sum(rate(quotegate_cache_misses_total{kind="price"}[5m])))
//
//   # Outbound Budget Exhaustion
//   rate(quotegate_rate_limit_rejections_total{domain="external"}[5m]) > 0
//
//   # Degraded Metrics Answers
//   rate(quotegate_fetch_outcomes_total{kind="metrics", outcome=~"gate_closed|throttled|degraded"}[5m])
//
//   # P95 Upstream Latency
//   histogram_quantile(0.95, rate(quotegate_provider_request_duration_seconds_bucket[5m]))
