// Package metrics exposes Prometheus instrumentation for cycle cadence,
// gate outcomes and resolution-queue depth, per SPEC_FULL.md §11.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry wraps the collectors this process exports, registered once at
// startup against a dedicated prometheus.Registry (never the global
// DefaultRegisterer, so tests can build independent instances).
type Registry struct {
	Registry *prometheus.Registry

	CycleDuration  *prometheus.HistogramVec
	PhaseDuration  *prometheus.HistogramVec
	CycleFailures  prometheus.Counter
	GatePass       *prometheus.GaugeVec
	QueueDepth     prometheus.Gauge
	CollectorItems *prometheus.CounterVec
	CollectorFail  *prometheus.CounterVec
}

// New builds and registers every collector.
func New() *Registry {
	reg := prometheus.NewRegistry()

	m := &Registry{
		Registry: reg,
		CycleDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "agencyos",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of a full orchestrator cycle.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"success"}),
		PhaseDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "agencyos",
			Name:      "phase_duration_seconds",
			Help:      "Duration of one orchestrator phase.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"phase"}),
		CycleFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "agencyos",
			Name:      "cycle_failures_total",
			Help:      "Total cycles that ended with a failed phase.",
		}),
		GatePass: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "agencyos",
			Name:      "gate_pass",
			Help:      "1 if the gate passed on the last evaluation, 0 otherwise.",
		}, []string{"gate"}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "agencyos",
			Name:      "resolution_queue_depth",
			Help:      "Number of unresolved resolution_queue items.",
		}),
		CollectorItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agencyos",
			Name:      "collector_items_synced_total",
			Help:      "Artifacts synced per collector run.",
		}, []string{"collector"}),
		CollectorFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agencyos",
			Name:      "collector_failures_total",
			Help:      "Collector run failures by class.",
		}, []string{"collector", "class"}),
	}

	reg.MustRegister(
		m.CycleDuration, m.PhaseDuration, m.CycleFailures,
		m.GatePass, m.QueueDepth, m.CollectorItems, m.CollectorFail,
	)
	return m
}

// ObservePhase records one phase's wall-clock duration.
func (m *Registry) ObservePhase(phase string, seconds float64) {
	m.PhaseDuration.WithLabelValues(phase).Observe(seconds)
}

// ObserveCycle records one full cycle's duration and success flag.
func (m *Registry) ObserveCycle(seconds float64, success bool) {
	label := "true"
	if !success {
		label = "false"
		m.CycleFailures.Inc()
	}
	m.CycleDuration.WithLabelValues(label).Observe(seconds)
}

// SetGate records a gate's latest pass/fail state.
func (m *Registry) SetGate(gate string, pass bool) {
	v := 0.0
	if pass {
		v = 1.0
	}
	m.GatePass.WithLabelValues(gate).Set(v)
}

// SetQueueDepth records the current unresolved resolution-queue size.
func (m *Registry) SetQueueDepth(n int) {
	m.QueueDepth.Set(float64(n))
}

// ObserveCollector records one collector run's outcome.
func (m *Registry) ObserveCollector(collector string, itemsSynced int, failureClass string) {
	m.CollectorItems.WithLabelValues(collector).Add(float64(itemsSynced))
	if failureClass != "" {
		m.CollectorFail.WithLabelValues(collector, failureClass).Inc()
	}
}
