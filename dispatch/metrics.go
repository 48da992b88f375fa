package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const outcomeSuccess = "success"

type dispatchMetrics struct {
	tasks    *prometheus.CounterVec
	inFlight prometheus.Gauge
	queued   prometheus.Gauge
	duration *prometheus.HistogramVec
	dropped  *prometheus.CounterVec
}

// newDispatchMetrics creates the dispatcher collectors. A nil registerer
// leaves them unregistered.
func newDispatchMetrics(reg prometheus.Registerer) *dispatchMetrics {
	factory := promauto.With(reg)
	return &dispatchMetrics{
		tasks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wallet_dispatch_tasks_total",
				Help: "Dispatched wallet operations by operation and outcome code",
			},
			[]string{"operation", "outcome"},
		),
		inFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "wallet_dispatch_in_flight",
				Help: "Operations currently running on a worker",
			},
		),
		queued: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "wallet_dispatch_queued",
				Help: "Operations waiting for a free worker",
			},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wallet_dispatch_duration_seconds",
				Help:    "Time from a worker picking up an operation to its result being ready",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 65},
			},
			[]string{"operation"},
		),
		dropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wallet_dispatch_dropped_total",
				Help: "Results that could not be delivered because the foreground loop was closed",
			},
			[]string{"operation"},
		),
	}
}
