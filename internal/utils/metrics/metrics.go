package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Quota metrics
	QuotaDecisionsTotal     *prometheus.CounterVec
	QuotaIncrementsTotal    *prometheus.CounterVec
	QuotaBackendErrorsTotal *prometheus.CounterVec

	// Upstream inference metrics
	UpstreamJobsTotal   *prometheus.CounterVec
	UpstreamJobDuration *prometheus.HistogramVec

	// Storage metrics
	StorageUploadsTotal  *prometheus.CounterVec
	StorageFallbackTotal *prometheus.CounterVec

	// Pipeline metrics
	GenerationRequestsTotal *prometheus.CounterVec
	GenerationDuration      prometheus.Histogram
	GeneratedArtifactsTotal prometheus.Counter
}

// New creates a new Metrics instance registered on reg.
// A nil reg registers on the default prometheus registry.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "popgraph"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		// HTTP metrics
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_in_flight",
				Help:      "Current number of HTTP requests being processed",
			},
		),

		// Quota metrics
		QuotaDecisionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "quota",
				Name:      "decisions_total",
				Help:      "Total number of quota admission decisions",
			},
			[]string{"tier", "decision"}, // decision: allowed, denied, unbounded, fail_open
		),
		QuotaIncrementsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "quota",
				Name:      "increments_total",
				Help:      "Total number of quota commits",
			},
			[]string{"status"},
		),
		QuotaBackendErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "quota",
				Name:      "backend_errors_total",
				Help:      "Total number of quota store errors",
			},
			[]string{"op"},
		),

		// Upstream inference metrics
		UpstreamJobsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "upstream",
				Name:      "jobs_total",
				Help:      "Total number of inference jobs by outcome",
			},
			[]string{"status"}, // succeeded, failed, timed_out
		),
		UpstreamJobDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "upstream",
				Name:      "job_duration_seconds",
				Help:      "Inference job duration from submit to terminal state",
				Buckets:   []float64{.5, 1, 2, 3, 5, 8, 13, 20, 30, 60},
			},
			[]string{"status"},
		),

		// Storage metrics
		StorageUploadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "storage",
				Name:      "uploads_total",
				Help:      "Total number of artifact uploads",
			},
			[]string{"status"},
		),
		StorageFallbackTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "storage",
				Name:      "fallback_total",
				Help:      "Total number of artifacts delivered inline instead of stored",
			},
			[]string{"reason"},
		),

		// Pipeline metrics
		GenerationRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "generation",
				Name:      "requests_total",
				Help:      "Total number of generation requests by outcome",
			},
			[]string{"tier", "outcome"},
		),
		GenerationDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "generation",
				Name:      "duration_seconds",
				Help:      "End to end generation request duration",
				Buckets:   []float64{1, 2.5, 5, 10, 20, 30, 60, 120, 300},
			},
		),
		GeneratedArtifactsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "generation",
				Name:      "artifacts_total",
				Help:      "Total number of artifacts delivered",
			},
		),
	}
}

// --- Convenience methods ---

// RecordHTTPRequest records an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	statusStr := statusCodeToString(status)
	m.HTTPRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// IncInFlight tracks a request entering the server.
func (m *Metrics) IncInFlight() {
	if m == nil {
		return
	}
	m.HTTPRequestsInFlight.Inc()
}

// DecInFlight tracks a request leaving the server.
func (m *Metrics) DecInFlight() {
	if m == nil {
		return
	}
	m.HTTPRequestsInFlight.Dec()
}

// RecordQuotaDecision records an admission decision.
func (m *Metrics) RecordQuotaDecision(tier, decision string) {
	if m == nil {
		return
	}
	m.QuotaDecisionsTotal.WithLabelValues(tier, decision).Inc()
}

// RecordQuotaIncrement records a quota commit.
func (m *Metrics) RecordQuotaIncrement(success bool) {
	if m == nil {
		return
	}
	status := "success"
	if !success {
		status = "error"
	}
	m.QuotaIncrementsTotal.WithLabelValues(status).Inc()
}

// RecordQuotaBackendError records a failed quota store operation.
func (m *Metrics) RecordQuotaBackendError(op string) {
	if m == nil {
		return
	}
	m.QuotaBackendErrorsTotal.WithLabelValues(op).Inc()
}

// RecordUpstreamJob records a terminal inference job.
func (m *Metrics) RecordUpstreamJob(status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.UpstreamJobsTotal.WithLabelValues(status).Inc()
	m.UpstreamJobDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordStorageUpload records an artifact upload attempt.
func (m *Metrics) RecordStorageUpload(success bool) {
	if m == nil {
		return
	}
	status := "success"
	if !success {
		status = "error"
	}
	m.StorageUploadsTotal.WithLabelValues(status).Inc()
}

// RecordStorageFallback records an artifact delivered inline.
func (m *Metrics) RecordStorageFallback(reason string) {
	if m == nil {
		return
	}
	m.StorageFallbackTotal.WithLabelValues(reason).Inc()
}

// RecordGeneration records a finished generation request.
func (m *Metrics) RecordGeneration(tier, outcome string, artifacts int, duration time.Duration) {
	if m == nil {
		return
	}
	m.GenerationRequestsTotal.WithLabelValues(tier, outcome).Inc()
	m.GenerationDuration.Observe(duration.Seconds())
	if artifacts > 0 {
		m.GeneratedArtifactsTotal.Add(float64(artifacts))
	}
}

// statusCodeToString converts an HTTP status code to a string category.
func statusCodeToString(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
