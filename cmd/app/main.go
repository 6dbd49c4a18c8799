package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"

	"amc-subscription/internal/config"
	"amc-subscription/internal/domain/model"
	"amc-subscription/internal/domain/ports/adapter"
	"amc-subscription/internal/infra/adapters/documents"
	payAdapters "amc-subscription/internal/infra/adapters/payment"
	"amc-subscription/internal/infra/api"
	"amc-subscription/internal/infra/api/apiv1"
	pg "amc-subscription/internal/infra/db/postgres"
	"amc-subscription/internal/infra/logging"
	"amc-subscription/internal/infra/metrics"
	red "amc-subscription/internal/infra/redis"
	"amc-subscription/internal/infra/sched"
	"amc-subscription/internal/infra/worker"
	"amc-subscription/internal/usecase"
)

// Set with -ldflags "-X main.version=... -X main.commit=...".
var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.LoadConfig()
	if err != nil {
		// The logger depends on config; fall back to a bare one.
		l := zerolog.New(os.Stderr).With().Timestamp().Logger()
		l.Fatal().Err(err).Msg("config")
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] enabled")
	}

	// ---- Metrics ----
	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Postgres ----
	pool, err := pg.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	intentRepo := pg.NewPaymentIntentRepo(pool)
	orderRepo := pg.NewOrderRepo(pool)
	invoiceRepo := pg.NewInvoiceRepo(pool)
	auditRepo := pg.NewAuditLogRepo(pool)
	tm := pg.NewTxManager(pool)

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()
	rateLimiter := red.NewRateLimiter(redisClient)
	locker := red.NewLocker(redisClient)

	// ---- Payment gateway ----
	var gateway adapter.PaymentGateway
	if cfg.Runtime.Dev && cfg.Gateway.Sandbox {
		gateway = payAdapters.NewNoopPaymentGateway(cfg.Gateway.KeyID, cfg.Gateway.KeySecret)
		logger.Warn().Msg("payment gateway: local sandbox, no money moves")
	} else {
		rzp, err := payAdapters.NewRazorpayGateway(cfg.Gateway.KeyID, cfg.Gateway.KeySecret, cfg.Gateway.BaseURL, cfg.Gateway.Timeout)
		if err != nil {
			logger.Fatal().Err(err).Msg("razorpay gateway")
		}
		gateway = rzp
		logger.Info().Str("base_url", cfg.Gateway.BaseURL).Str("key_id", cfg.Gateway.KeyID).Msg("payment gateway: razorpay")
	}

	// ---- Documents ----
	var docQueue adapter.DocumentQueue
	var docWorker *worker.DocumentWorker
	var workerPool *worker.Pool
	if cfg.Documents.Enabled() {
		queue := red.NewDocumentQueue(redisClient, cfg.Documents.QueueKey, cfg.Documents.MaxAttempts, logger)
		docQueue = queue

		var cred documents.Credential = documents.StaticToken(cfg.Documents.Token)
		if cfg.Documents.SigningSecret != "" {
			cred = documents.NewSignedToken(cfg.Documents.SigningSecret, "amc-payments")
		}
		generator := documents.NewHTTPGenerator(cfg.Documents.URL, cred, cfg.Documents.Timeout)
		docWorker = worker.NewDocumentWorker(queue, generator, worker.DocumentWorkerOptions{
			StuckAfter: cfg.Documents.StuckAfter,
			JobTimeout: cfg.Documents.Timeout,
		}, logger)
		workerPool = worker.NewPool(cfg.Documents.Workers, logger)
	} else {
		logger.Warn().Msg("documents.url not set; invoices will not be emailed")
	}

	// ---- Use cases ----
	pricing := model.NewPricing(cfg.Pricing.UnitPrice)
	orderUC := usecase.NewOrderUseCase(intentRepo, gateway, pricing, cfg.Gateway.Currency, logger, cfg.Runtime.Dev)
	paymentUC := usecase.NewPaymentUseCase(intentRepo, orderRepo, invoiceRepo, auditRepo, tm, gateway, docQueue, pricing, logger)

	// ---- HTTP ----
	v1 := apiv1.NewServer(orderUC, paymentUC, rateLimiter, apiv1.Options{
		OrdersPerWindow: cfg.RateLimit.OrdersPerWindow,
		Window:          cfg.RateLimit.Window,
	}, logger)
	server := api.NewServer(cfg.Server, v1, map[string]api.Pinger{
		"postgres": pool,
		"redis":    redisClient,
	}, logger)
	go func() {
		if err := server.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
			cancel()
		}
	}()

	// ---- Background ----
	if docWorker != nil {
		workerPool.Start(ctx)
		go docWorker.Start(ctx, workerPool)
	}
	reconciler := sched.NewActivationReconciler(
		intentRepo, paymentUC, locker,
		cfg.Reconciler.Interval, cfg.Reconciler.GracePeriod, cfg.Reconciler.BatchSize,
		logger,
	)
	go reconciler.Start(ctx)
	go reportPoolStats(ctx, pool)

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case s := <-sigc:
		logger.Info().Str("signal", s.String()).Msg("shutdown requested")
	case <-ctx.Done():
	}
	cancel()

	shutdownCtx, stop := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	if workerPool != nil {
		workerPool.Stop()
	}
	logger.Info().Msg("bye")
}

func reportPoolStats(ctx context.Context, pool *pgxpool.Pool) {
	t := time.NewTicker(15 * time.Second)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			metrics.ObserveDBPool(pool.Stat())
		}
	}
}
