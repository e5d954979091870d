package scheduler

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the Prometheus collectors Timer reports each phase's
// duration and outcome through, mirroring internal/market.Metrics'
// per-commodity counters but scoped per simulation phase instead.
type Metrics struct {
	PhaseDuration *prometheus.HistogramVec
	Completions   *prometheus.CounterVec
	Failures      *prometheus.CounterVec
}

// NewMetrics registers a fresh set of phase-labeled collectors against reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		PhaseDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cyclus_timer_phase_duration_seconds",
			Help:    "Wall-clock duration of each Timer phase (decay, tick, resolve).",
			Buckets: prometheus.DefBuckets,
		}, []string{"phase"}),
		Completions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cyclus_timer_phase_completions_total",
			Help: "Number of Timer phases that completed without error.",
		}, []string{"phase"}),
		Failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cyclus_timer_phase_failures_total",
			Help: "Number of Timer phases that returned an error.",
		}, []string{"phase"}),
	}
	for _, c := range []prometheus.Collector{m.PhaseDuration, m.Completions, m.Failures} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// startTimer returns a stop function recording phase's duration when
// called, or a no-op if m is nil (metrics disabled).
func (m *Metrics) startTimer(phase string) func() {
	if m == nil {
		return func() {}
	}
	timer := prometheus.NewTimer(prometheus.ObserverFunc(func(v float64) {
		m.PhaseDuration.WithLabelValues(phase).Observe(v)
	}))
	return func() { timer.ObserveDuration() }
}
