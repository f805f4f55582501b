package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/synergyos/synergyos/internal/app"
	"github.com/synergyos/synergyos/internal/observability"
	"github.com/synergyos/synergyos/internal/platform/cache"
	"github.com/synergyos/synergyos/internal/session"
	"github.com/synergyos/synergyos/jobs"
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
	logger.Info("feature flags", slog.Any("flags", app.NewSettings(cfg).Flags()))

	docs, closeDocs, err := app.OpenDocstore(ctx, cfg, logger)
	if err != nil {
		logger.Error("open docstore", slog.Any("error", err))
		os.Exit(1)
	}
	defer closeDocs()

	redisClient, err := cache.New(ctx, cfg.Redis())
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
	services := app.NewServices(app.Deps{
		Logger:   logger,
		Config:   cfg,
		Docs:     docs,
		Sessions: session.NewManager(redisClient, cfg.SessionTTL),
		Metrics:  metrics,
	})

	if cfg.SeedOnBoot {
		report, err := services.Roles.SeedRoles(ctx)
		if err != nil {
			logger.Error("seed roles", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("seed roles", slog.Bool("changed", report.Created()))
	}

	inspector := asynq.NewInspector(cfg.Redis().AsynqOpt())
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      services.Handler(jobs.NewHandler(inspector, logger)),
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
