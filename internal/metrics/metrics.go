package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	serverInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "dutywatch_server_info",
		Help: "Static server information, value is always 1.",
	}, []string{"version", "backend"})

	// DispatchTotal counts notifier dispatches by attempt kind and outcome
	// (ok, error, timeout).
	DispatchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dutywatch_dispatch_total",
		Help: "Reminder attempts dispatched through the notifier.",
	}, []string{"kind", "outcome"})

	// AcknowledgedTotal counts acknowledgments that flipped state.
	AcknowledgedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dutywatch_acknowledged_total",
		Help: "Keys acknowledged for the first time.",
	})

	// SweepDuration observes one full dispatch sweep over all tracked keys.
	SweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dutywatch_sweep_duration_seconds",
		Help:    "Duration of a scheduler dispatch sweep.",
		Buckets: prometheus.DefBuckets,
	})

	// TrackedKeys reports the number of keys currently under management.
	TrackedKeys = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dutywatch_tracked_keys",
		Help: "Pairing keys with a stored plan.",
	})
)

// Init records the server info metric.
func Init(version, backend string) {
	serverInfo.WithLabelValues(version, backend).Set(1)
}
