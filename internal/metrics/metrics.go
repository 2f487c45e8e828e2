// Package metrics provides Prometheus metrics for docrepo
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for docrepo. A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Ingestion metrics
	IngestTotal *prometheus.CounterVec
	IngestBytes prometheus.Counter

	// OCR metrics
	OCRRunsTotal   *prometheus.CounterVec
	OCRRunDuration prometheus.Histogram

	// Search metrics
	SearchQueriesTotal prometheus.Counter
	SearchResultsTotal prometheus.Counter
	SearchDuration     prometheus.Histogram

	// gRPC request metrics
	GrpcRequestsTotal   *prometheus.CounterVec
	GrpcRequestDuration *prometheus.HistogramVec
}

// New creates all metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	m := &Metrics{}

	m.IngestTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docrepo_ingest_total",
			Help: "Total number of ingestion calls by outcome",
		},
		[]string{"outcome"},
	)

	m.IngestBytes = f.NewCounter(
		prometheus.CounterOpts{
			Name: "docrepo_ingest_bytes_total",
			Help: "Total number of payload bytes hashed by ingestion",
		},
	)

	m.OCRRunsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docrepo_ocr_runs_total",
			Help: "Total number of OCR runs by outcome",
		},
		[]string{"outcome"},
	)

	m.OCRRunDuration = f.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "docrepo_ocr_run_duration_seconds",
			Help:    "Duration of OCR runner invocations in seconds",
			Buckets: []float64{.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	m.SearchQueriesTotal = f.NewCounter(
		prometheus.CounterOpts{
			Name: "docrepo_search_queries_total",
			Help: "Total number of search queries",
		},
	)

	m.SearchResultsTotal = f.NewCounter(
		prometheus.CounterOpts{
			Name: "docrepo_search_results_total",
			Help: "Total number of search hits returned",
		},
	)

	m.SearchDuration = f.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "docrepo_search_duration_seconds",
			Help:    "Duration of search queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	m.GrpcRequestsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docrepo_grpc_requests_total",
			Help: "Total number of gRPC requests",
		},
		[]string{"method", "code"},
	)

	m.GrpcRequestDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docrepo_grpc_request_duration_seconds",
			Help:    "Duration of gRPC requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	return m
}

// ObserveIngest records one ingestion call.
func (m *Metrics) ObserveIngest(outcome string, bytes int64) {
	if m == nil {
		return
	}
	m.IngestTotal.WithLabelValues(outcome).Inc()
	if bytes > 0 {
		m.IngestBytes.Add(float64(bytes))
	}
}

// ObserveOCR records one runner invocation.
func (m *Metrics) ObserveOCR(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.OCRRunsTotal.WithLabelValues(outcome).Inc()
	m.OCRRunDuration.Observe(d.Seconds())
}

// ObserveSearch records one query that reached the store.
func (m *Metrics) ObserveSearch(hits int, d time.Duration) {
	if m == nil {
		return
	}
	m.SearchQueriesTotal.Inc()
	m.SearchResultsTotal.Add(float64(hits))
	m.SearchDuration.Observe(d.Seconds())
}

// ObserveGRPC records one unary call.
func (m *Metrics) ObserveGRPC(method, code string, d time.Duration) {
	if m == nil {
		return
	}
	m.GrpcRequestsTotal.WithLabelValues(method, code).Inc()
	m.GrpcRequestDuration.WithLabelValues(method).Observe(d.Seconds())
}
