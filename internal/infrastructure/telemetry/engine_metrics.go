package telemetry

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// EngineMetrics exposes Prometheus collectors for computation runs.
type EngineMetrics struct {
	runs      *prometheus.CounterVec
	failures  *prometheus.CounterVec
	passes    prometheus.Histogram
	forced    prometheus.Counter
	duration  prometheus.Histogram
	taxpayers prometheus.Histogram
	finalSum  prometheus.Gauge
}

var (
	defaultEngineOnce    sync.Once
	defaultEngineMetrics *EngineMetrics
)

// NewEngineMetrics registers the engine collectors against registerer. A nil
// registerer uses the default Prometheus registerer, registered once.
func NewEngineMetrics(registerer prometheus.Registerer) *EngineMetrics {
	if registerer == nil {
		defaultEngineOnce.Do(func() {
			defaultEngineMetrics = buildEngineMetrics(prometheus.DefaultRegisterer)
		})
		return defaultEngineMetrics
	}
	return buildEngineMetrics(registerer)
}

func buildEngineMetrics(registerer prometheus.Registerer) *EngineMetrics {
	m := &EngineMetrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tpa_computation_runs_total",
			Help: "Computation runs by outcome.",
		}, []string{"status"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tpa_computation_failures_total",
			Help: "Failed computation runs by error code.",
		}, []string{"code"}),
		passes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tpa_computation_passes",
			Help:    "Adjustment passes needed per run.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
		forced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tpa_computation_forced_total",
			Help: "Runs whose pass budget was shrunk after a stall.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tpa_computation_duration_seconds",
			Help:    "Wall time of a computation run.",
			Buckets: prometheus.DefBuckets,
		}),
		taxpayers: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tpa_computation_taxpayers",
			Help:    "Taxpayer groups aggregated per run.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		finalSum: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tpa_computation_last_pass_sum",
			Help: "Sum of absolute adjustments of the last pass of the latest run.",
		}),
	}
	registerer.MustRegister(m.runs, m.failures, m.passes, m.forced, m.duration, m.taxpayers, m.finalSum)
	return m
}

// RunTracker instruments a single computation run.
type RunTracker struct {
	metrics *EngineMetrics
	start   time.Time
}

// Track starts a run tracker. It is safe on a nil receiver.
func (m *EngineMetrics) Track() *RunTracker {
	return &RunTracker{metrics: m, start: time.Now()}
}

// Converged records the shape of a finished iteration
func (t *RunTracker) Converged(passes int, forced bool, lastSum float64, taxpayers int) {
	if t == nil || t.metrics == nil {
		return
	}
	t.metrics.passes.Observe(float64(passes))
	if forced {
		t.metrics.forced.Inc()
	}
	t.metrics.finalSum.Set(lastSum)
	t.metrics.taxpayers.Observe(float64(taxpayers))
}

// End records duration and outcome and returns err untouched. code labels
// the failure and is ignored on success.
func (t *RunTracker) End(code string, err error) error {
	if t == nil || t.metrics == nil {
		return err
	}
	status := "success"
	if err != nil {
		status = "failure"
		if code == "" {
			code = "INTERNAL_ERROR"
		}
		t.metrics.failures.WithLabelValues(code).Inc()
	}
	t.metrics.runs.WithLabelValues(status).Inc()
	t.metrics.duration.Observe(time.Since(t.start).Seconds())
	return err
}
