// File: internal/infra/metrics/metrics.go
package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(gatewayRequests, gatewayLatency) }

var (
	gatewayRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_requests_total",
			Help: "Outbound calls to payment and document services by target, operation and outcome.",
		},
		[]string{"target", "op", "success"},
	)

	gatewayLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_request_duration_seconds",
			Help:    "Latency of outbound calls in seconds.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"target", "op"},
	)
)

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// ObserveOutbound records one call to an external collaborator.
func ObserveOutbound(target, op string, success bool, elapsed time.Duration) {
	gatewayRequests.WithLabelValues(norm(target), norm(op), strconv.FormatBool(success)).Inc()
	gatewayLatency.WithLabelValues(norm(target), norm(op)).Observe(elapsed.Seconds())
}
