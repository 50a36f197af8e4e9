package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/wholesale-hub/settlement/internal/app"
	jobmetrics "github.com/wholesale-hub/settlement/internal/jobs"
	"github.com/wholesale-hub/settlement/internal/platform/cache"
	"github.com/wholesale-hub/settlement/internal/platform/db"
	"github.com/wholesale-hub/settlement/internal/shared"
	"github.com/wholesale-hub/settlement/internal/supplier"
	"github.com/wholesale-hub/settlement/internal/wallet"
	"github.com/wholesale-hub/settlement/jobs"
)

func main() {
	if app.SkipStartup("worker") {
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg, "worker")

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := jobmetrics.NewMetrics(nil)
	locker := shared.NewLocker(redisClient, cfg.CheckoutLockTTL)
	balanceCache := cache.NewCache(redisClient, "settlement", cfg.CacheTTL)

	supplierService := supplier.NewService(supplier.NewRepository(pool), shared.NewAuditLogger(pool), balanceCache, logger)
	walletService := wallet.NewService(wallet.NewRepository(pool), logger)

	recalcJob := jobs.NewSupplierRecalcJob(supplierService, locker, logger, metrics)
	auditJob := jobs.NewWalletAuditJob(walletService, logger, metrics)
	cleanupJob := jobs.NewIdempotencyCleanupJob(shared.NewIdempotencyStore(pool), logger, metrics)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers:    jobs.Handlers(recalcJob, auditJob, cleanupJob),
		Cron:        jobs.DefaultCron(),
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("starting worker", slog.Int("concurrency", cfg.WorkerConcurrency))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
