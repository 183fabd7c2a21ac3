// Package app wires configuration into a ready-to-run ingestion pipeline.
package app

import (
	"context"
	"fmt"
	"log/slog"

	kafkaadapter "github.com/couchcryptid/hailwatch/internal/adapter/kafka"
	"github.com/couchcryptid/hailwatch/internal/adapter/mailbox"
	"github.com/couchcryptid/hailwatch/internal/adapter/noaa"
	"github.com/couchcryptid/hailwatch/internal/adapter/overpass"
	"github.com/couchcryptid/hailwatch/internal/adapter/postgres"
	"github.com/couchcryptid/hailwatch/internal/config"
	"github.com/couchcryptid/hailwatch/internal/observability"
	"github.com/couchcryptid/hailwatch/internal/pipeline"
	"github.com/couchcryptid/hailwatch/internal/store"
)

// Store is everything the binaries need from the alert store.
type Store interface {
	pipeline.AlertStore
	Ping(ctx context.Context) error
	TryLock(ctx context.Context, name string) (release func(), acquired bool, err error)
}

// App holds the wired pipeline and the resources that must be closed.
type App struct {
	Pipeline *pipeline.Pipeline
	Store    Store
	closers  []func()
	logger   *slog.Logger
}

// New builds the store, sources, roof estimator and optional publisher from
// cfg. Any error here is a startup failure.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (*App, error) {
	a := &App{logger: logger}

	st, err := a.openStore(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Store = st

	sources := a.buildSources(cfg)
	if len(sources) == 0 {
		logger.Warn("no alert sources enabled; passes will be empty")
	}

	estimator := overpass.NewCachedEstimator(
		overpass.NewClient(cfg.OverpassURL, cfg.OverpassTimeout, metrics, logger),
		cfg.RoofCacheSize,
		metrics,
	)
	enricher := pipeline.NewRoofEnricher(estimator, cfg.RoofRadiusMeters, logger)

	var publisher pipeline.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		p := kafkaadapter.NewPublisher(cfg.KafkaBrokers, cfg.KafkaAlertTopic, logger)
		a.closers = append(a.closers, func() {
			if err := p.Close(); err != nil {
				logger.Error("kafka publisher close error", "error", err)
			}
		})
		publisher = p
		logger.Info("alert publishing enabled", "topic", cfg.KafkaAlertTopic)
	}

	a.Pipeline = pipeline.New(sources, st, enricher, publisher, logger, metrics)
	return a, nil
}

// Close releases resources in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *App) openStore(ctx context.Context, cfg *config.Config) (Store, error) {
	if cfg.StoreDriver == "memory" {
		a.logger.Warn("using in-memory alert store; alerts are lost on exit")
		return store.NewMemoryStore(), nil
	}

	pool, err := postgres.NewPool(ctx, postgres.PoolConfig{
		URL:     cfg.DatabaseURL,
		MinConn: cfg.DBPoolMin,
		MaxConn: cfg.DBPoolMax,
	})
	if err != nil {
		return nil, fmt.Errorf("open alert store: %w", err)
	}
	a.closers = append(a.closers, pool.Close)

	st := postgres.NewStore(pool, cfg.StoreTimeout)
	if err := st.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	a.logger.Info("postgres alert store ready", "pool_max", cfg.DBPoolMax)
	return st, nil
}

// buildSources returns the enabled sources, feed first.
func (a *App) buildSources(cfg *config.Config) []pipeline.Source {
	var sources []pipeline.Source
	if cfg.NOAAEnabled {
		sources = append(sources, noaa.NewClient(cfg.NOAAFeedURL, cfg.NOAAUserAgent, cfg.NOAATimeout, a.logger))
	}
	if cfg.MailboxEnabled {
		fetcher := mailbox.NewIMAPFetcher(mailbox.IMAPConfig{
			Addr:     cfg.MailboxAddr,
			User:     cfg.MailboxUser,
			Password: cfg.MailboxPassword,
			Folder:   cfg.MailboxFolder,
			Subject:  cfg.MailboxSubject,
			Timeout:  cfg.MailboxTimeout,
		}, a.logger)
		sources = append(sources, mailbox.NewAdapter(fetcher, cfg.MailboxWindow, a.logger))
	}
	for _, s := range sources {
		a.logger.Info("alert source enabled", "source", s.Name())
	}
	return sources
}
