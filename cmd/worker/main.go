package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/synergyos/synergyos/internal/app"
	jobmetrics "github.com/synergyos/synergyos/internal/jobs"
	"github.com/synergyos/synergyos/internal/rbac"
	"github.com/synergyos/synergyos/jobs"
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

	docs, closeDocs, err := app.OpenDocstore(ctx, cfg, logger)
	if err != nil {
		logger.Error("open docstore", slog.Any("error", err))
		os.Exit(1)
	}
	defer closeDocs()

	seedJob := jobs.NewSeedJob(rbac.NewStore(docs), logger, jobmetrics.NewMetrics(nil))

	var cron []jobs.CronRegistration
	if cfg.SeedCron != "" {
		task, err := jobs.NewSeedTask(jobs.SeedPayload{RequestedBy: "cron", Reason: "scheduled"})
		if err != nil {
			logger.Error("build seed task", slog.Any("error", err))
			os.Exit(1)
		}
		cron = append(cron, jobs.CronRegistration{Spec: cfg.SeedCron, Task: task, Options: []asynq.Option{asynq.MaxRetry(3)}})
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   cfg.Redis().AsynqOpt(),
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskRBACSeed, Handler: seedJob.Handle},
		},
		Cron: cron,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("worker started", slog.Int("concurrency", cfg.WorkerConcurrency))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
