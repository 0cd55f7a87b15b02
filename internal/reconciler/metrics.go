package reconciler

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the reconciler's prometheus instrumentation. All metrics
// live under the "southd" namespace and are registered on the registry
// passed to NewMetrics, which the admin server exposes at /metrics.
type Metrics struct {
	Cycles          *prometheus.CounterVec
	HardwareErrors  *prometheus.CounterVec
	Notifications   *prometheus.CounterVec
	CommitFailures  prometheus.Counter
	RejectedConfigs prometheus.Counter
	EntitiesByState *prometheus.GaugeVec
}

// NewMetrics creates and registers the reconciler metrics. reg may be nil,
// in which case the metrics are created unregistered (tests).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "southd",
			Subsystem: "reconciler",
			Name:      "cycles_total",
			Help:      "Reconciliation cycles by result.",
		}, []string{"result"}),
		HardwareErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "southd",
			Subsystem: "reconciler",
			Name:      "hardware_errors_total",
			Help:      "Driver operation failures by operation.",
		}, []string{"op"}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "southd",
			Subsystem: "reconciler",
			Name:      "notifications_total",
			Help:      "Notifications emitted by event name.",
		}, []string{"event"}),
		CommitFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "southd",
			Subsystem: "reconciler",
			Name:      "state_commit_failures_total",
			Help:      "Datastore state commit failures.",
		}),
		RejectedConfigs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "southd",
			Subsystem: "reconciler",
			Name:      "rejected_configs_total",
			Help:      "Config deltas permanently rejected by hardware.",
		}),
		EntitiesByState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "southd",
			Subsystem: "reconciler",
			Name:      "entities",
			Help:      "Entities per reconciliation state.",
		}, []string{"state"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.Cycles,
			m.HardwareErrors,
			m.Notifications,
			m.CommitFailures,
			m.RejectedConfigs,
			m.EntitiesByState,
		)
	}
	return m
}

// workerRetired removes a retired entity from the state gauges.
func (m *Metrics) workerRetired(s State) {
	m.EntitiesByState.WithLabelValues(string(s)).Dec()
}

// stateTransition moves one entity between state gauges.
func (m *Metrics) stateTransition(from, to State) {
	if from == to {
		return
	}
	if from != "" {
		m.EntitiesByState.WithLabelValues(string(from)).Dec()
	}
	m.EntitiesByState.WithLabelValues(string(to)).Inc()
}
