package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		subscriptionsActivatedTotal,
		reconcilerRunsTotal,
	)
}

var (
	subscriptionsActivatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscriptions_activated_total",
			Help: "AMC orders activated, by path (verify/reconciler).",
		},
		[]string{"path"},
	)

	reconcilerRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "activation_reconciler_items_total",
			Help: "Captured-but-inactive intents handled by the reconciler, by outcome.",
		},
		[]string{"outcome"}, // replayed|failed
	)
)

func IncActivation(path string) {
	subscriptionsActivatedTotal.WithLabelValues(norm(path)).Inc()
}

func IncReconciled(outcome string, n int) {
	reconcilerRunsTotal.WithLabelValues(norm(outcome)).Add(float64(n))
}
