package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		paymentVerifyRequests,
		paymentVerifyDuration,
		paymentFollowUpFailures,
	)
}

var (
	// result: ok|fail
	// reason (fail only): bad_json|validation|signature|not_found|amount|service|not_configured
	paymentVerifyRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_verify_requests_total",
			Help: "Count of /api/payments/verify calls by result and reason.",
		},
		[]string{"result", "reason"},
	)

	paymentVerifyDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_verify_duration_seconds",
			Help:    "Duration of /api/payments/verify handler in seconds.",
			Buckets: []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"result"},
	)

	// step: invoice|audit|documents
	paymentFollowUpFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_followup_failures_total",
			Help: "Non-fatal failures after activation, by step.",
		},
		[]string{"step"},
	)
)

func ObserveVerify(result, reason string, elapsed time.Duration) {
	if result == "ok" {
		reason = ""
	}
	paymentVerifyRequests.WithLabelValues(norm(result), norm(reason)).Inc()
	paymentVerifyDuration.WithLabelValues(norm(result)).Observe(elapsed.Seconds())
}

func IncFollowUpFailure(step string) {
	paymentFollowUpFailures.WithLabelValues(norm(step)).Inc()
}
