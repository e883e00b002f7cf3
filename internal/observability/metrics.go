package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "climaterisk"

// Metrics holds the Prometheus counters, histograms, and gauges for the service.
type Metrics struct {
	// Upstream analysis service calls.
	UpstreamRequests *prometheus.CounterVec   // labels: op, outcome={success,timeout,unreachable,invalid,not_found}
	UpstreamDuration *prometheus.HistogramVec // labels: op

	// Analysis job lifecycle.
	AnalysisStarts  *prometheus.CounterVec // labels: outcome={accepted,already_running,upstream_error}
	JobTransitions  *prometheus.CounterVec // labels: to
	JobSyncRuns     *prometheus.CounterVec // labels: outcome={success,error}
	JobsSynced      prometheus.Histogram
	JobsPurged      prometheus.Counter
	UnknownStatuses prometheus.Counter
	EventsPublished *prometheus.CounterVec // labels: outcome={success,error}

	BatchesStarted prometheus.Counter

	// HTTP API.
	HTTPRequests *prometheus.CounterVec   // labels: method, route, status
	HTTPDuration *prometheus.HistogramVec // labels: method, route
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	return newMetrics(prometheus.DefaultRegisterer)
}

// NewMetricsForTesting creates Metrics on a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics(prometheus.NewRegistry())
}

func newMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		UpstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Upstream analysis service calls by operation and outcome.",
		}, []string{"op", "outcome"}),
		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Upstream analysis service call duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"op"}),
		AnalysisStarts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_starts_total",
			Help:      "Start-analysis requests by outcome.",
		}, []string{"outcome"}),
		JobTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_job_transitions_total",
			Help:      "Applied analysis job state transitions by target state.",
		}, []string{"to"}),
		JobSyncRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_job_sync_runs_total",
			Help:      "Periodic active-job sync runs by outcome.",
		}, []string{"outcome"}),
		JobsSynced: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_jobs_synced",
			Help:      "Number of active jobs observed per sync run.",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100},
		}),
		JobsPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_jobs_purged_total",
			Help:      "Terminal analysis jobs removed by the retention sweep.",
		}),
		UnknownStatuses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_unknown_status_total",
			Help:      "Upstream job observations with an unrecognized status.",
		}),
		BatchesStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recommendation_batches_started_total",
			Help:      "Recommendation batches accepted upstream.",
		}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_events_published_total",
			Help:      "Job lifecycle events published by outcome.",
		}, []string{"outcome"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route pattern and status.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	reg.MustRegister(
		m.UpstreamRequests,
		m.UpstreamDuration,
		m.AnalysisStarts,
		m.JobTransitions,
		m.JobSyncRuns,
		m.JobsSynced,
		m.JobsPurged,
		m.UnknownStatuses,
		m.BatchesStarted,
		m.EventsPublished,
		m.HTTPRequests,
		m.HTTPDuration,
	)

	return m
}
