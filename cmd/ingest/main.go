// Command ingest runs one ingestion pass over every enabled source and exits.
// It takes the same lock as the service, so it is safe to run from cron next
// to a running hailwatch instance.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/hailwatch/internal/app"
	"github.com/couchcryptid/hailwatch/internal/config"
	"github.com/couchcryptid/hailwatch/internal/observability"
	"github.com/couchcryptid/hailwatch/internal/scheduler"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}

	logger := observability.NewLogger(cfg, nil)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger, metrics)
	if err != nil {
		logger.Error("failed to build pipeline", "error", err)
		return 1
	}
	defer a.Close()

	report, ran, err := scheduler.RunLocked(ctx, a.Pipeline, a.Store, cfg.PipelineLockName, logger)
	if err != nil {
		logger.Error("ingestion pass not run", "error", err)
		return 1
	}
	if !ran {
		return 0
	}

	logger.Info("ingestion complete",
		"inserted", report.Inserted,
		"skipped_duplicate", report.SkippedDuplicate,
		"failed", report.FailedParse+report.FailedOther,
		"source_errors", report.SourceErrors,
	)
	return 0
}
