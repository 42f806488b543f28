package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/aviation-mailbot/internal/app"
	"github.com/spec-kit/aviation-mailbot/internal/config"
	"github.com/spec-kit/aviation-mailbot/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	provider, err := observability.NewMeterProvider(ctx, cfg.App, cfg.Telemetry)
	if err != nil {
		logger.Fatal("failed to init metrics", zap.Error(err))
	}
	defer func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		_ = provider.Shutdown(shutdownCtx)
	}()

	metrics, err := observability.NewMetricsFromGlobal()
	if err != nil {
		logger.Fatal("failed to create instruments", zap.Error(err))
	}

	mailbot, err := app.New(ctx, cfg, logger, metrics)
	if err != nil {
		logger.Fatal("failed to start", zap.Error(err))
	}
	defer mailbot.Close()

	if cfg.App.RunScheduler {
		scheduler := mailbot.Scheduler()
		go func() {
			if err := scheduler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("scheduler stopped", zap.Error(err))
			}
		}()
	}

	server := mailbot.HTTP()
	go func() {
		if err := server.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()
	logger.Info("listening", zap.String("addr", cfg.App.Addr()))

	waitForShutdown(logger)

	cancel()
	_ = server.ShutdownWithTimeout(10 * time.Second)
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
