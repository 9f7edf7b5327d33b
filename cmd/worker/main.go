package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/ferreexpress/ferreexpress/internal/app"
	jobmetrics "github.com/ferreexpress/ferreexpress/internal/jobs"
	"github.com/ferreexpress/ferreexpress/internal/notifications"
	"github.com/ferreexpress/ferreexpress/internal/platform/db"
	"github.com/ferreexpress/ferreexpress/internal/sales/quotations"
	"github.com/ferreexpress/ferreexpress/internal/shared"
	"github.com/ferreexpress/ferreexpress/jobs"
)

const (
	expirySweepSpec      = "*/15 * * * *"
	idempotencyPurgeSpec = "0 3 * * *"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	metrics := jobmetrics.NewMetrics(nil)

	quotationService := quotations.NewService(quotations.NewRepository(pool), nil, nil, logger, quotations.Options{
		Validity: cfg.QuoteValidity,
	})
	expiryJob := jobs.NewQuotationExpiryJob(quotationService, logger, metrics)
	cleanupJob := &jobs.IdempotencyCleanupJob{
		Cleaner: shared.NewIdempotencyStore(pool),
		Logger:  logger,
		Metrics: metrics,
	}
	emailJob := jobs.NewSendEmailJob(notifications.NewSMTPSender(notifications.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		From:     cfg.SMTPFrom,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
	}), logger, metrics)

	expiryTask, err := jobs.NewQuotationExpiryTask(time.Now().UTC())
	if err != nil {
		logger.Error("build expiry task", slog.Any("error", err))
		os.Exit(1)
	}
	cleanupTask, err := jobs.NewIdempotencyCleanupTask(cfg.IdempotencyRetention)
	if err != nil {
		logger.Error("build cleanup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypeSendEmail, Handler: emailJob.Handle},
			{Type: jobs.TaskQuotationExpirySweep, Handler: expiryJob.Handle},
			{Type: jobs.TaskIdempotencyCleanup, Handler: cleanupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: expirySweepSpec, Task: expiryTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: idempotencyPurgeSpec, Task: cleanupTask, Options: []asynq.Option{asynq.MaxRetry(1)}},
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
