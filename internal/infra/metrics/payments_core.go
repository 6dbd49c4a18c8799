package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(ordersCreated, paymentsByStatus, capturedAmount, systemsActivated) }

var (
	ordersCreated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "amc_orders_created_total",
		Help: "Gateway orders requested, by result (created/rejected/gateway_error).",
	}, []string{"result"})

	paymentsByStatus = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "amc_payments_total",
		Help: "Verified payments by outcome (captured/already_processed/rejected).",
	}, []string{"status"})

	// Gateway amounts are minor units; exported in major units.
	capturedAmount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "amc_payments_captured_amount_total",
		Help: "Sum of captured payments in major currency units.",
	}, []string{"currency"})

	systemsActivated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "amc_systems_activated_total",
		Help: "Systems covered by newly captured contracts.",
	})
)

func IncOrderCreated(result string) { ordersCreated.WithLabelValues(norm(result)).Inc() }

func IncPayment(status string) { paymentsByStatus.WithLabelValues(norm(status)).Inc() }

func AddPaymentRevenue(currency string, minorUnits int64) {
	capturedAmount.WithLabelValues(norm(currency)).Add(float64(minorUnits) / 100)
}

func AddSystemsActivated(n int) {
	if n > 0 {
		systemsActivated.Add(float64(n))
	}
}
