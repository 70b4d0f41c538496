// Package metrics provides the centralized Prometheus registry reference for
// the ClinicalTrials.gov client. All metrics are defined in their respective
// packages (client, trials, cache, ratelimit) to maintain modularity and
// avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the client.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - ctgov_requests_total{endpoint, status} (Counter): Requests by endpoint and HTTP status ("cache" for cache hits)
//   - ctgov_request_duration_seconds{endpoint} (Histogram): Logical request duration by endpoint
//   - ctgov_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network, decode)
//
// Retry Metrics (pkg/client):
//   - ctgov_retries_total{error_class} (Counter): Failed attempts by error class
//   - ctgov_retry_exhausted_total{error_class} (Counter): Page requests that exhausted max retries
//
// Fetch Metrics (pkg/trials):
//   - ctgov_fetch_pages_total (Counter): Result pages fetched
//   - ctgov_fetch_studies_total (Counter): Study records fetched
//   - ctgov_fetch_duration_seconds (Histogram): Full fetch duration across all pages
//
// Cache Metrics (pkg/cache):
//   - ctgov_cache_hits_total (Counter): Response cache hits
//   - ctgov_cache_misses_total (Counter): Response cache misses
//   - ctgov_cache_size_bytes (Gauge): Bytes written to the cache
//   - ctgov_cache_errors_total{operation} (Counter): Cache operation errors
//
// Pacer Metrics (pkg/ratelimit):
//   - ctgov_pacer_waits_total (Counter): Requests delayed by pacing
//   - ctgov_pacer_wait_seconds (Histogram): Time spent waiting for a pacing slot
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(ctgov_cache_hits_total[5m])) /
//   (sum(rate(ctgov_cache_hits_total[5m])) + sum(rate(ctgov_cache_misses_total[5m])))
//
//   # Request Error Rate
//   rate(ctgov_errors_total[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(ctgov_request_duration_seconds_bucket[5m]))
//
//   # Studies fetched per second
//   rate(ctgov_fetch_studies_total[5m])
