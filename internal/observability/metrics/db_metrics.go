package metrics

import (
	"database/sql"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

func registerDBMetrics(db *sql.DB, logger *zap.Logger) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "charges_pending",
			Help: "Charges still pending payment",
		},
		func() float64 {
			return queryFloat(db, logger, "SELECT COUNT(*) FROM charges WHERE state = 'pending'")
		},
	))

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "outstanding_amount",
			Help: "Sum of outstanding amounts over pending charges",
		},
		func() float64 {
			return queryFloat(db, logger, "SELECT COALESCE(SUM(amount - paid), 0)::float8 FROM charges WHERE state = 'pending'")
		},
	))
}

func queryFloat(db *sql.DB, logger *zap.Logger, query string) float64 {
	if db == nil {
		return 0
	}
	var value float64
	if err := db.QueryRow(query).Scan(&value); err != nil {
		if logger != nil {
			logger.Warn("metrics query failed", zap.Error(err))
		}
		return 0
	}
	if value < 0 {
		return 0
	}
	return value
}
