package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/hailwatch/internal/adapter/http"
	"github.com/couchcryptid/hailwatch/internal/app"
	"github.com/couchcryptid/hailwatch/internal/config"
	"github.com/couchcryptid/hailwatch/internal/observability"
	"github.com/couchcryptid/hailwatch/internal/scheduler"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logs := observability.NewLogStream(200, 64)
	logger := observability.NewLogger(cfg, logs)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger, metrics)
	if err != nil {
		logger.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	sched := scheduler.New(a.Pipeline, a.Store, cfg.PipelineLockName, cfg.PassInterval, logger)
	srv := httpadapter.NewServer(cfg.HTTPAddr, cfg.CORSOrigins, a.Store, a.Pipeline, logs, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	// Start periodic ingestion.
	if err := sched.Start(); err != nil {
		logger.Error("failed to start scheduler", "error", err)
		stop()
	}

	<-ctx.Done()
	logger.Info("shutting down")

	// A running pass is allowed to finish.
	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}
