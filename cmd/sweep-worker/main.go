package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/yDkay/payment-system/internal/idempotency"
	"github.com/yDkay/payment-system/internal/jobs"
	"github.com/yDkay/payment-system/internal/sweeper"
	"github.com/yDkay/payment-system/pkg/config"
	"github.com/yDkay/payment-system/pkg/db"
	"github.com/yDkay/payment-system/pkg/logger"
	"github.com/yDkay/payment-system/pkg/metrics"
	"github.com/yDkay/payment-system/pkg/migrate"
	"github.com/yDkay/payment-system/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "sweep-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "sweep-worker",
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

	// Without Redis the worker falls back to an in-process lock and an
	// in-memory idempotency store. That store is empty in a fresh worker,
	// so the idempotency sweep is only meaningful against Redis.
	var lock sweeper.Lock
	var idempotencyStore idempotency.Store = idempotency.NewMemoryStore()
	if cfg.Redis.Enabled() {
		redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
		lock, err = sweeper.NewRedisLock(redisClient, redisClient.LockKey(fmt.Sprintf("sweep-worker:%s", cfg.App.Env)), 0)
		if err != nil {
			logg.Error(context.Background(), "failed to create sweeper lock", err)
			os.Exit(1)
		}
		idempotencyStore, err = idempotency.NewRedisStore(redisClient)
		if err != nil {
			logg.Error(context.Background(), "failed to create idempotency store", err)
			os.Exit(1)
		}
	} else {
		lock = sweeper.NewLocalLock()
	}

	idempotencyManager, err := idempotency.NewManager(idempotencyStore, cfg.Idempotency.TTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create idempotency manager", err)
		os.Exit(1)
	}

	idempotencyJob, err := sweeper.NewIdempotencyJob(idempotencyManager)
	if err != nil {
		logg.Error(context.Background(), "failed to create idempotency sweep job", err)
		os.Exit(1)
	}
	retentionJob, err := sweeper.NewJobRetentionJob(jobs.NewRepository(dbClient.DB()), cfg.Idempotency.JobRetention)
	if err != nil {
		logg.Error(context.Background(), "failed to create job retention sweep job", err)
		os.Exit(1)
	}

	service, err := sweeper.NewService(sweeper.ServiceParams{
		Logger:   logg,
		Registry: sweeper.NewRegistry(idempotencyJob, retentionJob),
		Lock:     lock,
		Metrics:  metrics.NewSweeperMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Idempotency.SweepInterval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create sweeper service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"interval": cfg.Idempotency.SweepInterval.String(),
	})

	logg.Info(ctx, "starting sweep worker")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "sweep worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "sweep worker stopped")
}
