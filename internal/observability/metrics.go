package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the ingestion pipeline.
type Metrics struct {
	PassesTotal      *prometheus.CounterVec // labels: result={ok,degraded}
	PassInFlight     prometheus.Gauge
	PassDuration     prometheus.Histogram
	Candidates       *prometheus.CounterVec // labels: source, outcome
	SourcePollErrors *prometheus.CounterVec // labels: source
	AlertsPublished  *prometheus.CounterVec // labels: outcome={success,error}

	// Roof estimator metrics.
	RoofRequests    *prometheus.CounterVec // labels: outcome={success,error,circuit_open}
	RoofCache       *prometheus.CounterVec // labels: result={hit,miss}
	RoofAPIDuration prometheus.Histogram
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.PassesTotal,
		m.PassInFlight,
		m.PassDuration,
		m.Candidates,
		m.SourcePollErrors,
		m.AlertsPublished,
		m.RoofRequests,
		m.RoofCache,
		m.RoofAPIDuration,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		PassesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hailwatch",
			Name:      "passes_total",
			Help:      "Ingestion passes by result.",
		}, []string{"result"}),
		PassInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hailwatch",
			Name:      "pass_in_flight",
			Help:      "1 while an ingestion pass is running.",
		}),
		PassDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "hailwatch",
			Name:      "pass_duration_seconds",
			Help:      "Duration of a complete ingestion pass across all sources.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		Candidates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hailwatch",
			Name:      "candidates_total",
			Help:      "Candidates processed by source and outcome.",
		}, []string{"source", "outcome"}),
		SourcePollErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hailwatch",
			Name:      "source_poll_errors_total",
			Help:      "Source polls that failed and yielded no candidates.",
		}, []string{"source"}),
		AlertsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hailwatch",
			Name:      "alerts_published_total",
			Help:      "Inserted alerts published to the event topic by outcome.",
		}, []string{"outcome"}),
		RoofRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hailwatch",
			Name:      "roof_requests_total",
			Help:      "Roof estimator requests by outcome.",
		}, []string{"outcome"}),
		RoofCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hailwatch",
			Name:      "roof_cache_total",
			Help:      "Roof estimate cache lookups by result.",
		}, []string{"result"}),
		RoofAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "hailwatch",
			Name:      "roof_api_duration_seconds",
			Help:      "Overpass API request duration in seconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
		}),
	}
}
