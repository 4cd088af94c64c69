package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/dealerdesk/dealerdesk/internal/app"
	"github.com/dealerdesk/dealerdesk/internal/billing"
	"github.com/dealerdesk/dealerdesk/internal/distribution"
	"github.com/dealerdesk/dealerdesk/internal/inventory"
	"github.com/dealerdesk/dealerdesk/internal/orders"
	"github.com/dealerdesk/dealerdesk/internal/platform/cache"
	"github.com/dealerdesk/dealerdesk/internal/platform/db"
	"github.com/dealerdesk/dealerdesk/internal/promotions"
	"github.com/dealerdesk/dealerdesk/jobs"
)

func main() {
	_ = godotenv.Load()

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
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	inventoryRepo := inventory.NewRepository(pool)
	snapshotCache := inventory.NewSnapshotCache(redisClient, 5*time.Minute)
	inventoryService := inventory.NewService(inventoryRepo, snapshotCache, logger)

	distributionRepo := distribution.NewRepository(pool)
	distributionService := distribution.NewService(distributionRepo, inventoryService, logger)

	promotionsRepo := promotions.NewRepository(pool)
	promotionsService := promotions.NewService(promotionsRepo, logger)

	billingRepo := billing.NewRepository(pool)

	ordersRepo := orders.NewRepository(pool)
	ordersService := orders.NewService(ordersRepo, promotionsRepo, billingRepo, inventoryService, logger)

	billingService := billing.NewService(billingRepo, ordersRepo, logger)

	// Align stored promotion statuses with the clock before taking traffic.
	if err := promotionsService.Sweep(ctx); err != nil {
		logger.Warn("startup promotion sweep", slog.Any("error", err))
	}

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	sweepClient := jobs.NewSweepClient(redisOpts)
	defer func() {
		if err := sweepClient.Close(); err != nil {
			logger.Warn("sweep client close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:              logger,
		Config:              cfg,
		InventoryHandler:    inventory.NewHandler(logger, inventoryService),
		DistributionHandler: distribution.NewHandler(logger, distributionService),
		OrdersHandler:       orders.NewHandler(logger, ordersService),
		PromotionsHandler:   promotions.NewHandler(logger, promotionsService),
		BillingHandler:      billing.NewHandler(logger, billingService),
		JobsHandler:         jobs.NewHandler(inspector, sweepClient, logger),
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
