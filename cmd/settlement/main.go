package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/wholesale-hub/settlement/cmd/settlement/cli"
	"github.com/wholesale-hub/settlement/internal/app"
	"github.com/wholesale-hub/settlement/internal/credit"
	"github.com/wholesale-hub/settlement/internal/inventory"
	"github.com/wholesale-hub/settlement/internal/observability"
	"github.com/wholesale-hub/settlement/internal/platform/cache"
	"github.com/wholesale-hub/settlement/internal/platform/db"
	"github.com/wholesale-hub/settlement/internal/segments"
	"github.com/wholesale-hub/settlement/internal/settlement"
	"github.com/wholesale-hub/settlement/internal/shared"
	"github.com/wholesale-hub/settlement/internal/supplier"
	"github.com/wholesale-hub/settlement/internal/wallet"
	"github.com/wholesale-hub/settlement/jobs"
)

func main() {
	if app.SkipStartup("api") {
		return
	}

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg, "api")

	if len(os.Args) > 1 && os.Args[1] == "jobs" {
		if err := runJobsCommand(cfg, os.Args[2:]); err != nil {
			logger.Error("jobs command", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.MigrationsAuto {
		if err := migrateUp(cfg, logger); err != nil {
			logger.Error("apply migrations", slog.Any("error", err))
			os.Exit(1)
		}
	}

	dbpool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

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

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(dbpool)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)
	locker := shared.NewLocker(redisClient, cfg.CheckoutLockTTL)
	balanceCache := cache.NewCache(redisClient, "settlement", cfg.CacheTTL)

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	inventoryService := inventory.NewService(inventory.NewRepository(dbpool), logger)
	supplierService := supplier.NewService(supplier.NewRepository(dbpool), auditLogger, balanceCache, logger).WithObserver(metrics)
	walletService := wallet.NewService(wallet.NewRepository(dbpool), logger)
	creditService := credit.NewService(credit.NewRepository(dbpool), logger)
	settlementService := settlement.NewService(
		settlement.NewRepository(dbpool),
		settlement.Config{TaxRate: cfg.TaxRate, WalletDiscountRate: cfg.WalletDiscountRate},
		settlement.Options{
			Locker:      locker,
			Idempotency: idempotencyStore,
			Enqueuer:    jobClient,
			Observer:    metrics,
		},
		logger,
	)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		InventoryHandler:  inventory.NewHandler(logger, inventoryService),
		SupplierHandler:   supplier.NewHandler(logger, supplierService),
		WalletHandler:     wallet.NewHandler(logger, walletService),
		CreditHandler:     credit.NewHandler(logger, creditService),
		SegmentsHandler:   segments.NewHandler(logger, segments.NewService(segments.NewRepository(dbpool), logger)),
		SettlementHandler: settlement.NewHandler(logger, settlementService),
		JobHandler:        jobs.NewHandler(inspector, logger),
		Metrics:           metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

func migrateUp(cfg *app.Config, logger *slog.Logger) error {
	migrator, err := db.NewMigrator(cfg.PGDSN, logger)
	if err != nil {
		return err
	}
	defer migrator.Close()
	return migrator.Up()
}

func runJobsCommand(cfg *app.Config, args []string) error {
	c, err := cli.NewJobsCLI(cfg.RedisAddr)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if len(args) == 0 || args[0] == "stats" {
		stats, err := c.InspectQueue(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("queue=%s pending=%d active=%d scheduled=%d retry=%d\n",
			stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry)
		return nil
	}
	info, err := c.Trigger(ctx, args[0], args[1:]...)
	if err != nil {
		return err
	}
	fmt.Printf("enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
	return nil
}
