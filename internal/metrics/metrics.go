package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is the collection of all Prometheus metrics for the pipeline.
type Metrics struct {
	registry *prometheus.Registry

	// Generator stage
	RunsGenerated      *prometheus.CounterVec
	GenerationDuration prometheus.Histogram

	// Executor stage
	ExecutionsTotal   *prometheus.CounterVec
	ExecutionDuration prometheus.Histogram
	EvidenceUploaded  *prometheus.CounterVec

	// Orchestrator
	BatchesTotal        prometheus.Counter
	BatchItemsProcessed prometheus.Counter

	// Queues
	QueueDepth *prometheus.GaugeVec

	// Status API
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates and registers all pipeline metrics on a private registry, so
// parallel tests never collide on the global one.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.RunsGenerated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qaflow_runs_generated_total",
			Help: "Total generation attempts by outcome",
		},
		[]string{"status"},
	)

	m.GenerationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "qaflow_generation_duration_seconds",
			Help:    "Duration of the generator stage in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	m.ExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qaflow_executions_total",
			Help: "Total executor runs by derived status",
		},
		[]string{"status"},
	)

	m.ExecutionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "qaflow_execution_duration_seconds",
			Help:    "Duration of the executor stage in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)

	m.EvidenceUploaded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qaflow_evidence_uploaded_total",
			Help: "Evidence files uploaded by category",
		},
		[]string{"category"},
	)

	m.BatchesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "qaflow_batches_total",
			Help: "Total batch sweeps executed",
		},
	)

	m.BatchItemsProcessed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "qaflow_batch_items_processed_total",
			Help: "Total work items processed across batches",
		},
	)

	m.QueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "qaflow_queue_depth",
			Help: "Messages waiting or claimed per queue",
		},
		[]string{"queue"},
	)

	m.HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qaflow_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	m.HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "qaflow_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	m.registry.MustRegister(
		m.RunsGenerated,
		m.GenerationDuration,
		m.ExecutionsTotal,
		m.ExecutionDuration,
		m.EvidenceUploaded,
		m.BatchesTotal,
		m.BatchItemsProcessed,
		m.QueueDepth,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
	)

	return m
}

// RequestTrackingMiddleware records request counts and latencies.
func (m *Metrics) RequestTrackingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		m.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, http.StatusText(rw.statusCode)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
}

// responseWriter is a wrapper to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Handler returns the Prometheus HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Gather exposes the registry for tests.
func (m *Metrics) Gather() prometheus.Gatherer {
	return m.registry
}
