// Package metrics holds the pipeline-level Prometheus metrics and the
// exposition handler.
//
// Request, cache and rate limit metrics live in their own packages
// (client, cache, ratelimit) and register on the same default registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the Prometheus registerer every package registers on.
var Registry = prometheus.DefaultRegisterer

var (
	// PullsTotal counts pull runs by result ("ok", "error").
	PullsTotal = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "linkedin_pulls_total",
		Help: "Total pull runs by result",
	}, []string{"result"})

	// ChunksTotal counts batch chunks by category and outcome.
	ChunksTotal = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "linkedin_batch_chunks_total",
		Help: "Batch chunks processed by category and outcome",
	}, []string{"category", "outcome"})

	// ElementsFetched counts elements returned per category.
	ElementsFetched = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "linkedin_elements_fetched_total",
		Help: "Elements fetched by category",
	}, []string{"category"})

	// RowsWritten counts rows published per output role.
	RowsWritten = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "linkedin_rows_written_total",
		Help: "Rows written to sinks by output role",
	}, []string{"output"})
)

// Handler serves the default gatherer in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Pipeline (pkg/metrics):
//   - linkedin_pulls_total{result}
//   - linkedin_batch_chunks_total{category, outcome}
//   - linkedin_elements_fetched_total{category}
//   - linkedin_rows_written_total{output}
//
// Requests (pkg/client):
//   - linkedin_requests_total{endpoint, status}
//   - linkedin_request_duration_seconds{endpoint}
//   - linkedin_errors_total{class}
//   - linkedin_retries_total{error_class}
//   - linkedin_retry_exhausted_total{error_class}
//
// Cache (pkg/cache):
//   - linkedin_cache_lookups_total{result="hit|absent|expired"}
//   - linkedin_cache_stored_bytes_total
//   - linkedin_cache_errors_total{operation="get|decode|set|delete"}
//
// Rate limiting (pkg/ratelimit):
//   - linkedin_rate_limit_wait_seconds
//   - linkedin_rate_limit_throttles_total
//
// Example Prometheus Queries:
//
//   # Share of chunks that stopped a batch
//   sum(rate(linkedin_batch_chunks_total{outcome="fatal_stop"}[1h]))
//     / sum(rate(linkedin_batch_chunks_total[1h]))
//
//   # P95 request latency
//   histogram_quantile(0.95, rate(linkedin_request_duration_seconds_bucket[5m]))
