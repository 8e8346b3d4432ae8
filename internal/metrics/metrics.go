// Package metrics records per-step Prometheus metrics for a probe run and
// latency quantiles over step durations.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/influxdata/tdigest"
	"github.com/loykin/pushprobe/internal/step"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pushprobe"

// Recorder owns a private registry so repeated runs in one process (tests,
// the history command) never collide on the default registry.
type Recorder struct {
	suite    string
	registry *prometheus.Registry

	outcomes  *prometheus.CounterVec
	durations *prometheus.HistogramVec
	passed    prometheus.Gauge
	total     prometheus.Gauge
	lastRun   prometheus.Gauge

	// TDigest is not thread-safe
	mu     sync.Mutex
	digest *tdigest.TDigest
}

// New creates a Recorder labelling every series with suite.
func New(suite string) *Recorder {
	r := &Recorder{
		suite:    suite,
		registry: prometheus.NewRegistry(),
		digest:   tdigest.NewWithCompression(100),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "step_outcomes_total",
			Help:      "Step outcomes by suite, step and result",
		}, []string{"suite", "step", "result"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Step execution time",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15, 30},
		}, []string{"suite", "step"}),
		passed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "run_passed_steps",
			Help:        "Steps that passed in the last run",
			ConstLabels: prometheus.Labels{"suite": suite},
		}),
		total: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "run_total_steps",
			Help:        "Steps executed in the last run",
			ConstLabels: prometheus.Labels{"suite": suite},
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "run_last_timestamp_seconds",
			Help:        "Unix time the last run finished",
			ConstLabels: prometheus.Labels{"suite": suite},
		}),
	}
	r.registry.MustRegister(r.outcomes, r.durations, r.passed, r.total, r.lastRun)
	return r
}

// Observe records one outcome. It matches runner.Observer.
func (r *Recorder) Observe(o step.Outcome) {
	result := "fail"
	if o.Passed {
		result = "pass"
	}
	r.outcomes.WithLabelValues(r.suite, o.Name, result).Inc()
	r.durations.WithLabelValues(r.suite, o.Name).Observe(o.Duration.Seconds())

	r.mu.Lock()
	r.digest.Add(float64(o.Duration), 1)
	r.mu.Unlock()
}

// Finish records the run totals.
func (r *Recorder) Finish(passed, total int, at time.Time) {
	r.passed.Set(float64(passed))
	r.total.Set(float64(total))
	r.lastRun.Set(float64(at.Unix()))
}

// Latency returns quantiles over every observed step duration.
func (r *Recorder) Latency() Latency {
	r.mu.Lock()
	defer r.mu.Unlock()
	return latencyFrom(r.digest)
}

// Registry exposes the recorder's registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// WriteTextfile writes the registry for the node_exporter textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
