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

	"github.com/ferreexpress/ferreexpress/internal/app"
	"github.com/ferreexpress/ferreexpress/internal/auth"
	"github.com/ferreexpress/ferreexpress/internal/catalog"
	"github.com/ferreexpress/ferreexpress/internal/discounts"
	"github.com/ferreexpress/ferreexpress/internal/inventory"
	"github.com/ferreexpress/ferreexpress/internal/notifications"
	"github.com/ferreexpress/ferreexpress/internal/observability"
	"github.com/ferreexpress/ferreexpress/internal/platform/cache"
	"github.com/ferreexpress/ferreexpress/internal/platform/db"
	"github.com/ferreexpress/ferreexpress/internal/rbac"
	"github.com/ferreexpress/ferreexpress/internal/sales/orders"
	"github.com/ferreexpress/ferreexpress/internal/sales/quotations"
	"github.com/ferreexpress/ferreexpress/internal/shared"
	"github.com/ferreexpress/ferreexpress/jobs"
	"github.com/ferreexpress/ferreexpress/report"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	if err := godotenv.Load(); err != nil {
		slog.Default().Debug(".env not found, relying on environment")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
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

	tokens, err := auth.NewTokens(auth.TokenConfig{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer, TTL: cfg.JWTTTL})
	if err != nil {
		logger.Error("init tokens", slog.Any("error", err))
		os.Exit(1)
	}
	rbacMiddleware := rbac.Middleware{Logger: logger}
	metrics := observability.NewMetrics()

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobClient := jobs.NewClient(redisOpts)
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	dispatcher := notifications.NewDispatcher(
		notifications.NewStore(dbpool),
		notifications.NewQueueMailer(jobClient),
		shared.NewAuditLogger(dbpool),
		logger,
	)

	discountService := discounts.NewService(
		discounts.NewRepository(dbpool),
		discounts.NewCache(redisClient, cfg.DiscountCacheTTL),
		logger,
	)

	reportClient := report.NewClient(cfg.GotenbergURL)

	quotationService := quotations.NewService(quotations.NewRepository(dbpool), discountService, dispatcher, logger, quotations.Options{
		Validity: cfg.QuoteValidity,
		Company:  report.Company{Name: cfg.CompanyName, TaxID: cfg.CompanyTaxID},
		Metrics:  metrics,
		Renderer: reportClient,
	})

	orderService := orders.NewService(orders.NewRepository(dbpool), inventory.NewLedger(), dispatcher, logger, orders.Options{
		ShippingFee: cfg.ShippingFee,
		Gateway:     orders.ParityGateway{},
		Keys:        shared.NewIdempotencyStore(dbpool),
		Metrics:     metrics,
	})

	inventoryService := inventory.NewService(inventory.NewRepository(dbpool))

	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		Metrics:           metrics,
		Auth:              auth.NewMiddleware(tokens, logger),
		RBAC:              rbacMiddleware,
		CatalogHandler:    catalog.NewHandler(logger, catalog.NewRepository(dbpool)),
		QuotationsHandler: quotations.NewHandler(logger, quotationService, rbacMiddleware),
		OrdersHandler:     orders.NewHandler(logger, orderService, rbacMiddleware),
		DiscountsHandler:  discounts.NewHandler(logger, discountService, rbacMiddleware),
		InventoryHandler:  inventory.NewHandler(logger, inventoryService, rbacMiddleware),
		ReportHandler:     report.NewHandler(reportClient, logger),
		JobHandler:        jobs.NewHandler(inspector, logger),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
