package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(rateLimitDecisions) }

var rateLimitDecisions = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "rate_limit_decisions_total",
		Help: "Rate limiter decisions per route.",
	},
	[]string{"route", "result"}, // result: allowed|limited|error
)

func IncRateLimit(route, result string) {
	rateLimitDecisions.WithLabelValues(norm(route), norm(result)).Inc()
}
