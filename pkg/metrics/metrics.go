// Package metrics provides the centralized Prometheus metrics reference
// for the CRM adapter. All metrics are defined in their respective
// packages (client, fanout) via promauto to maintain modularity and avoid
// circular dependencies.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the adapter.
// All metrics are automatically registered via promauto in their packages.
var Registry = prometheus.DefaultRegisterer

// Handler returns the scrape handler for the adapter's metrics. The serve
// command mounts it on the optional metrics listener.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - crm_requests_total{path, status} (Counter): Total requests by path and HTTP status
//   - crm_request_duration_seconds{path} (Histogram): Request duration by path
//   - crm_errors_total{kind} (Counter): Errors by taxonomy kind
//     (unauthorized, forbidden, not_found, validation, rate_limited,
//     network_unreachable, unknown)
//
// Retry Metrics (pkg/client):
//   - crm_retries_total{kind} (Counter): Retry attempts by error kind
//   - crm_retry_backoff_seconds{kind} (Histogram): Backoff duration by error kind
//   - crm_retry_exhausted_total{kind} (Counter): Requests that exhausted max retries
//
// Fan-Out Metrics (pkg/fanout):
//   - crm_fanout_calls_total{result} (Counter): Member calls by success/failure
//   - crm_fanout_essential_failures_total (Counter): Composites failed by
//     their essential call
//
// Example Prometheus Queries:
//
//   # Request Error Rate
//   rate(crm_errors_total[5m])
//
//   # Retry Exhaustion by Kind
//   rate(crm_retry_exhausted_total[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(crm_request_duration_seconds_bucket[5m]))
//
//   # Partial-Failure Rate in Composites
//   rate(crm_fanout_calls_total{result="failure"}[5m]) /
//   rate(crm_fanout_calls_total[5m])
