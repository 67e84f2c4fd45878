package metrics

import (
	"database/sql"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const (
	metricPrefix = "club_ledger_"

	ResultSuccess = "success"
	ResultError   = "error"

	LinkResultReused = "reused"
	LinkResultMinted = "minted"
)

var (
	registerOnce sync.Once

	feeRunTotal       *prometheus.CounterVec
	feeRunLatency     *prometheus.HistogramVec
	feeChargesCreated *prometheus.CounterVec
	feeSkips          *prometheus.CounterVec

	paymentLinkTotal   *prometheus.CounterVec
	paymentLinkLatency *prometheus.HistogramVec

	paymentsRecorded *prometheus.CounterVec

	ledgerQueryTotal   *prometheus.CounterVec
	ledgerQueryLatency *prometheus.HistogramVec

	reportQueryTotal *prometheus.CounterVec

	exportTotal   *prometheus.CounterVec
	exportLatency *prometheus.HistogramVec
)

// Init registers billing metrics and DB-backed gauges.
func Init(db *sql.DB, logger *zap.Logger) {
	registerOnce.Do(func() {
		feeRunTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "fee_runs_total",
				Help: "Total fee generation runs by mode and result",
			},
			[]string{"mode", "result"},
		)
		feeRunLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "fee_run_latency_seconds",
				Help:    "Fee generation run latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"mode", "result"},
		)
		feeChargesCreated = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "fee_charges_created_total",
				Help: "Charges written by fee commits by kind",
			},
			[]string{"kind"},
		)
		feeSkips = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "fee_skips_total",
				Help: "Members skipped by fee commits by bucket",
			},
			[]string{"bucket"},
		)

		paymentLinkTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "payment_link_requests_total",
				Help: "Payment link requests by result",
			},
			[]string{"result"},
		)
		paymentLinkLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "payment_link_latency_seconds",
				Help:    "Payment link issuance latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		paymentsRecorded = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "payments_recorded_total",
				Help: "Payments recorded by charge kind and result",
			},
			[]string{"kind", "result"},
		)

		ledgerQueryTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ledger_queries_total",
				Help: "Member ledger queries by result",
			},
			[]string{"result"},
		)
		ledgerQueryLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "ledger_query_latency_seconds",
				Help:    "Member ledger query latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		reportQueryTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "report_queries_total",
				Help: "Report queries by report and result",
			},
			[]string{"report", "result"},
		)

		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "export_total",
				Help: "Total export operations by format and result",
			},
			[]string{"format", "result"},
		)
		exportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "export_latency_seconds",
				Help:    "Export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		prometheus.MustRegister(
			feeRunTotal,
			feeRunLatency,
			feeChargesCreated,
			feeSkips,
			paymentLinkTotal,
			paymentLinkLatency,
			paymentsRecorded,
			ledgerQueryTotal,
			ledgerQueryLatency,
			reportQueryTotal,
			exportTotal,
			exportLatency,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveFeeRun records a simulate or commit run.
func ObserveFeeRun(mode, result string, duration time.Duration) {
	if mode == "" {
		mode = "unknown"
	}
	if result == "" {
		result = ResultSuccess
	}
	if feeRunTotal != nil {
		feeRunTotal.WithLabelValues(mode, result).Inc()
	}
	if feeRunLatency != nil {
		feeRunLatency.WithLabelValues(mode, result).Observe(duration.Seconds())
	}
}

// AddFeeCharges counts charges created by a commit.
func AddFeeCharges(kind string, count int) {
	if count <= 0 {
		return
	}
	if feeChargesCreated != nil {
		feeChargesCreated.WithLabelValues(kind).Add(float64(count))
	}
}

// IncFeeSkip counts one skipped member.
func IncFeeSkip(bucket string) {
	if bucket == "" {
		bucket = "unknown"
	}
	if feeSkips != nil {
		feeSkips.WithLabelValues(bucket).Inc()
	}
}

// ObservePaymentLink records link issuance latency and result.
func ObservePaymentLink(result string, duration time.Duration) {
	if result == "" {
		result = ResultSuccess
	}
	if paymentLinkTotal != nil {
		paymentLinkTotal.WithLabelValues(result).Inc()
	}
	if paymentLinkLatency != nil {
		paymentLinkLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncPaymentRecorded counts payment recording attempts.
func IncPaymentRecorded(kind, result string) {
	if kind == "" {
		kind = "unknown"
	}
	if result == "" {
		result = ResultSuccess
	}
	if paymentsRecorded != nil {
		paymentsRecorded.WithLabelValues(kind, result).Inc()
	}
}

// ObserveLedgerQuery records ledger latency and result.
func ObserveLedgerQuery(result string, duration time.Duration) {
	if result == "" {
		result = ResultSuccess
	}
	if ledgerQueryTotal != nil {
		ledgerQueryTotal.WithLabelValues(result).Inc()
	}
	if ledgerQueryLatency != nil {
		ledgerQueryLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncReportQuery counts report queries.
func IncReportQuery(report, result string) {
	if report == "" {
		report = "unknown"
	}
	if result == "" {
		result = ResultSuccess
	}
	if reportQueryTotal != nil {
		reportQueryTotal.WithLabelValues(report, result).Inc()
	}
}

// ObserveExport records export latency and result.
func ObserveExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = ResultSuccess
	}
	if exportTotal != nil {
		exportTotal.WithLabelValues(format, result).Inc()
	}
	if exportLatency != nil {
		exportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}
