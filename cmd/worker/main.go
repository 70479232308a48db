package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/munderdifflin/paperledger/internal/app"
	"github.com/munderdifflin/paperledger/internal/finance"
	"github.com/munderdifflin/paperledger/internal/ledger"
	"github.com/munderdifflin/paperledger/internal/orders"
	"github.com/munderdifflin/paperledger/internal/platform/db"
	"github.com/munderdifflin/paperledger/internal/shared"
	"github.com/munderdifflin/paperledger/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	store := ledger.NewStore(pool)
	auditLogger := shared.NewAuditLogger(pool)
	idempotencyStore := shared.NewIdempotencyStore(pool)

	financeService := finance.NewService(store, cfg.CashSafetyMargin)
	ordersService := orders.NewService(store, financeService, auditLogger, idempotencyStore)

	scanJob := jobs.NewLowStockScanJob(store, ordersService, logger)

	scanTask, err := jobs.NewLowStockScanTask(time.Time{})
	if err != nil {
		logger.Error("build scan task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskLowStockScan, Handler: scanJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.RestockScanCron, Task: scanTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
