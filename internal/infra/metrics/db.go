package metrics

import (
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(dbConns, dbEmptyAcquires) }

var (
	dbConns = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "db_pool_connections",
			Help: "Postgres pool connections by state (total/idle/acquired/max).",
		},
		[]string{"state"},
	)

	// Cumulative in pgx; exported as a gauge of the running total.
	dbEmptyAcquires = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_pool_empty_acquires",
			Help: "Acquires that had to wait because the pool was empty.",
		},
	)
)

// ObserveDBPool copies a pool snapshot into the gauges.
func ObserveDBPool(st *pgxpool.Stat) {
	if st == nil {
		return
	}
	dbConns.WithLabelValues("total").Set(float64(st.TotalConns()))
	dbConns.WithLabelValues("idle").Set(float64(st.IdleConns()))
	dbConns.WithLabelValues("acquired").Set(float64(st.AcquiredConns()))
	dbConns.WithLabelValues("max").Set(float64(st.MaxConns()))
	dbEmptyAcquires.Set(float64(st.EmptyAcquireCount()))
}
