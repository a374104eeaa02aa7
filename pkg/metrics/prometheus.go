package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	runsTotal    *prometheus.CounterVec
	assetsTotal  *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	assetsFitted prometheus.Gauge
	lastRun      prometheus.Gauge
	apiLatency   *prometheus.HistogramVec
	apiErrors    *prometheus.CounterVec
}

// New creates a recorder on the default Prometheus registry.
func New() *Recorder {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer creates a recorder on reg (useful for testing).
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		runsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "factorlens_runs_total",
				Help: "Total number of engine runs by status",
			},
			[]string{"status"},
		),
		assetsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "factorlens_assets_total",
				Help: "Assets processed by outcome (fitted or skip reason)",
			},
			[]string{"outcome"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "factorlens_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "factorlens_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"operation"},
		),
		assetsFitted: f.NewGauge(prometheus.GaugeOpts{
			Name: "factorlens_assets_fitted",
			Help: "Assets with a beta series in the latest run",
		}),
		lastRun: f.NewGauge(prometheus.GaugeOpts{
			Name: "factorlens_last_run_timestamp_seconds",
			Help: "Unix time of the latest successful run",
		}),
		apiLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "factorlens",
				Subsystem: "api",
				Name:      "latency_seconds",
				Help:      "Latency of API endpoints",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
		apiErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "factorlens",
				Subsystem: "api",
				Name:      "errors_total",
				Help:      "Errors by API endpoint",
			},
			[]string{"endpoint"},
		),
	}
}

// RecordRun records a finished refresh cycle.
func (r *Recorder) RecordRun(status string) {
	r.runsTotal.WithLabelValues(status).Inc()
}

// RecordAsset records the outcome of one asset in a run.
func (r *Recorder) RecordAsset(outcome string) {
	r.assetsTotal.WithLabelValues(outcome).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// SetAssetsFitted sets the fitted asset gauge.
func (r *Recorder) SetAssetsFitted(n int) {
	r.assetsFitted.Set(float64(n))
}

// SetLastRun sets the last-run timestamp gauge.
func (r *Recorder) SetLastRun(t time.Time) {
	r.lastRun.Set(float64(t.Unix()))
}

// ObserveAPI records one API call.
func (r *Recorder) ObserveAPI(endpoint string, d time.Duration, failed bool) {
	r.apiLatency.WithLabelValues(endpoint).Observe(d.Seconds())
	if failed {
		r.apiErrors.WithLabelValues(endpoint).Inc()
	}
}
