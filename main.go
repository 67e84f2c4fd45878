package main

import (
	"database/sql"
	"net/http"
	"os"
	"strconv"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"club-ledger/internal/audit"
	"club-ledger/internal/auth"
	billingapp "club-ledger/internal/billing/application"
	billing "club-ledger/internal/billing/domain"
	"club-ledger/internal/billing/infrastructure/memory"
	billingrepo "club-ledger/internal/billing/infrastructure/postgres"
	"club-ledger/internal/billing/infrastructure/refcode"
	billinginterfaces "club-ledger/internal/billing/interfaces"
	"club-ledger/internal/mpadapter"
	"club-ledger/internal/observability/logging"
	"club-ledger/internal/observability/metrics"
)

// store is what the billing services need from a backend.
type store interface {
	billing.MemberRepository
	billing.CatalogRepository
	billing.ChargeRepository
	billing.ReportRepository
}

func main() {
	cfg := loadConfig()
	logger, err := logging.New(cfg.LogMode)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	var (
		repo        store
		auditLogger audit.Store
		db          *sql.DB
	)
	switch cfg.Storage {
	case "memory":
		mem := memory.NewStore()
		memory.SeedDemo(mem)
		repo = mem
		auditLogger = audit.NewMemoryLog()
		logger.Warn("using in-memory storage with demo data")
	case "postgres":
		if cfg.DatabaseURL == "" {
			logger.Fatal("DATABASE_URL or PG_DSN is required")
		}
		db, err = sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("db open error", zap.Error(err))
		}
		defer db.Close()
		if err := db.Ping(); err != nil {
			logger.Fatal("db ping error", zap.Error(err))
		}
		repo = billingrepo.NewRepository(db)
		auditLogger = audit.NewRepository(db)
	default:
		logger.Fatal("unknown STORAGE", zap.String("storage", cfg.Storage))
	}
	metrics.Init(db, logger)

	policyCfg, err := billingapp.LoadConfig()
	if err != nil {
		logger.Fatal("billing config error", zap.Error(err))
	}
	refs, err := refcode.NewIssuer(cfg.RefcodeNode)
	if err != nil {
		logger.Fatal("reference issuer error", zap.Error(err))
	}
	gateway, err := mpadapter.NewClient(cfg.MPBaseURL, cfg.MPAccessToken)
	if err != nil {
		logger.Fatal("payment gateway error", zap.Error(err))
	}

	feeService, err := billingapp.NewFeeGenerationService(repo, repo, repo, refs, policyCfg.Policy(), billingapp.SystemClock{}, logger.Named("fees"))
	if err != nil {
		logger.Fatal("fee service error", zap.Error(err))
	}
	ledgerService, err := billingapp.NewLedgerService(repo, repo, refs, billingapp.SystemClock{}, logger.Named("ledger"))
	if err != nil {
		logger.Fatal("ledger service error", zap.Error(err))
	}
	linkService, err := billingapp.NewPaymentLinkService(repo, gateway, policyCfg, billingapp.SystemClock{}, logger.Named("links"))
	if err != nil {
		logger.Fatal("payment link service error", zap.Error(err))
	}
	reportService, err := billingapp.NewReportService(repo, repo)
	if err != nil {
		logger.Fatal("report service error", zap.Error(err))
	}
	catalogService, err := billingapp.NewCatalogService(repo, logger.Named("catalog"))
	if err != nil {
		logger.Fatal("catalog service error", zap.Error(err))
	}

	feeHandler, err := billinginterfaces.NewFeeHandler(feeService, auditLogger)
	if err != nil {
		logger.Fatal("fee handler error", zap.Error(err))
	}
	ledgerHandler, err := billinginterfaces.NewLedgerHandler(ledgerService, linkService, auditLogger)
	if err != nil {
		logger.Fatal("ledger handler error", zap.Error(err))
	}
	chargeHandler, err := billinginterfaces.NewChargeHandler(ledgerService, auditLogger)
	if err != nil {
		logger.Fatal("charge handler error", zap.Error(err))
	}
	memberHandler, err := billinginterfaces.NewMemberHandler(reportService, ledgerService, auditLogger)
	if err != nil {
		logger.Fatal("member handler error", zap.Error(err))
	}
	catalogHandler, err := billinginterfaces.NewCatalogHandler(catalogService, auditLogger)
	if err != nil {
		logger.Fatal("catalog handler error", zap.Error(err))
	}
	reportHandler, err := billinginterfaces.NewReportHandler(reportService)
	if err != nil {
		logger.Fatal("report handler error", zap.Error(err))
	}

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy, logger.Named("auth"))

	mux := http.NewServeMux()
	mux.Handle("/api/v1/fees/", feeHandler)
	mux.Handle("/api/v1/ledger", ledgerHandler)
	mux.Handle("/api/v1/ledger/", ledgerHandler)
	mux.Handle("/api/v1/charges/", chargeHandler)
	mux.Handle("/api/v1/members/", memberHandler)
	mux.Handle("/api/v1/categories", catalogHandler)
	mux.Handle("/api/v1/category/", catalogHandler)
	mux.Handle("/api/v1/disciplines", catalogHandler)
	mux.Handle("/api/v1/payment-methods", catalogHandler)
	mux.Handle("/api/v1/reports/", reportHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           loggingMiddleware(authMiddleware.Wrap(mux), logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	logger.Info("http listening", zap.String("addr", cfg.HTTPAddr), zap.String("storage", cfg.Storage))
	if err := server.ListenAndServe(); err != nil {
		logger.Fatal("http server stopped", zap.Error(err))
	}
}

type config struct {
	Storage       string
	DatabaseURL   string
	HTTPAddr      string
	LogMode       string
	JWTSecret     string
	RefcodeNode   int64
	MPBaseURL     string
	MPAccessToken string
}

func loadConfig() config {
	cfg := config{
		Storage:       getenvDefault("STORAGE", "postgres"),
		DatabaseURL:   getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:      getenvDefault("HTTP_ADDR", ":8080"),
		LogMode:       getenvDefault("LOG_MODE", "production"),
		JWTSecret:     getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		RefcodeNode:   int64(getenvIntDefault("REFCODE_NODE", 1)),
		MPBaseURL:     getenvDefault("MP_BASE_URL", "https://api.mercadopago.com"),
		MPAccessToken: getenvDefault("MP_ACCESS_TOKEN", ""),
	}
	if cfg.JWTSecret == "" {
		panic("AUTH_JWT_SECRET is required")
	}
	if cfg.MPAccessToken == "" {
		panic("MP_ACCESS_TOKEN is required")
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func loggingMiddleware(next http.Handler, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Info("http",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", resp.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
