package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/yDkay/payment-system/api/routes"
	"github.com/yDkay/payment-system/internal/idempotency"
	"github.com/yDkay/payment-system/internal/intents"
	"github.com/yDkay/payment-system/internal/jobs"
	"github.com/yDkay/payment-system/internal/payments"
	"github.com/yDkay/payment-system/internal/refunds"
	"github.com/yDkay/payment-system/pkg/config"
	"github.com/yDkay/payment-system/pkg/db"
	"github.com/yDkay/payment-system/pkg/logger"
	"github.com/yDkay/payment-system/pkg/metrics"
	"github.com/yDkay/payment-system/pkg/migrate"
	"github.com/yDkay/payment-system/pkg/redis"
)

const shutdownGrace = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	var redisClient *redis.Client
	var idempotencyStore idempotency.Store = idempotency.NewMemoryStore()
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(context.Background(), cfg.Redis, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
		idempotencyStore, err = idempotency.NewRedisStore(redisClient)
		if err != nil {
			logg.Error(context.Background(), "failed to create idempotency store", err)
			os.Exit(1)
		}
	}

	idempotencyManager, err := idempotency.NewManager(idempotencyStore, cfg.Idempotency.TTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create idempotency manager", err)
		os.Exit(1)
	}

	stageMetrics := metrics.NewStageMetrics(prometheus.DefaultRegisterer)

	jobRepo := jobs.NewRepository(dbClient.DB())
	orchestrator, err := jobs.NewOrchestrator(jobRepo, cfg.Jobs, stageMetrics, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create orchestrator", err)
		os.Exit(1)
	}

	paymentRepo := payments.NewRepository(dbClient.DB())
	intentService, err := intents.NewService(dbClient, intents.NewRepository(dbClient.DB()), paymentRepo, jobRepo, orchestrator, cfg.Jobs, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create intent service", err)
		os.Exit(1)
	}
	refundService, err := refunds.NewService(dbClient, refunds.NewRepository(dbClient.DB()), paymentRepo, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create refund service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	deps := routes.Deps{
		Config:        cfg,
		Logger:        logg,
		DBPinger:      dbClient,
		Idempotency:   idempotencyManager,
		IntentService: intentService,
		RefundService: refundService,
		Metrics:       prometheus.DefaultGatherer,
	}
	if redisClient != nil {
		deps.RedisPinger = redisClient
	}
	handler := routes.NewRouter(deps)

	server := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})

	errCh := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	case <-ctx.Done():
	}

	logg.Info(ctx, "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	err = multierr.Append(
		server.Shutdown(shutdownCtx),
		intentService.Shutdown(shutdownCtx),
	)
	if err != nil {
		logg.Error(ctx, "shutdown finished with errors", err)
		os.Exit(1)
	}
	logg.Info(ctx, "shutdown complete")
}
