package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/munderdifflin/paperledger/internal/app"
	"github.com/munderdifflin/paperledger/internal/finance"
	"github.com/munderdifflin/paperledger/internal/inventory"
	"github.com/munderdifflin/paperledger/internal/ledger"
	"github.com/munderdifflin/paperledger/internal/orders"
	"github.com/munderdifflin/paperledger/internal/platform/cache"
	"github.com/munderdifflin/paperledger/internal/platform/db"
	"github.com/munderdifflin/paperledger/internal/pricing"
	"github.com/munderdifflin/paperledger/internal/shared"
	"github.com/munderdifflin/paperledger/internal/workflow"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if redisClient == nil {
			return
		}
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	store := ledger.NewStore(pool)
	auditLogger := shared.NewAuditLogger(pool)
	idempotencyStore := shared.NewIdempotencyStore(pool)

	inventoryService := inventory.NewService(store)
	inventoryHandler := inventory.NewHandler(logger, inventoryService)

	historyCache := pricing.NewHistoryCache(redisClient, cfg.QuoteHistoryTTL)
	pricingService := pricing.NewService(store, historyCache)
	pricingHandler := pricing.NewHandler(logger, pricingService)

	financeService := finance.NewService(store, cfg.CashSafetyMargin)
	financeHandler := finance.NewHandler(logger, financeService)

	ordersService := orders.NewService(store, financeService, auditLogger, idempotencyStore)
	ordersHandler := orders.NewHandler(logger, ordersService)

	workflowService := workflow.NewService(logger, inventoryService, ordersService, financeService)
	workflowHandler := workflow.NewHandler(logger, workflowService)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		InventoryHandler: inventoryHandler,
		PricingHandler:   pricingHandler,
		OrdersHandler:    ordersHandler,
		FinanceHandler:   financeHandler,
		WorkflowHandler:  workflowHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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
