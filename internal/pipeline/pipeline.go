// Package pipeline runs ingestion passes from the alert sources into the store.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/hailwatch/internal/domain"
	"github.com/couchcryptid/hailwatch/internal/observability"
)

// Source polls one upstream for alert candidates.
type Source interface {
	Name() domain.Source
	Poll(ctx context.Context) ([]domain.RawCandidate, error)
}

// AlertStore is the persistence gateway.
type AlertStore interface {
	Exists(ctx context.Context, alertID string) (bool, error)
	Insert(ctx context.Context, alert domain.Alert) error
}

// Publisher announces inserted alerts downstream.
type Publisher interface {
	Publish(ctx context.Context, alert domain.Alert) error
}

// Candidate outcomes, used as metric labels.
const (
	outcomeInserted     = "inserted"
	outcomeDuplicate    = "duplicate"
	outcomeDedupUnknown = "dedup_unknown"
	outcomeFailedParse  = "failed_parse"
	outcomeFailedOther  = "failed_other"
)

// PassReport summarizes one ingestion pass across all sources.
type PassReport struct {
	Attempted        int
	Inserted         int
	SkippedDuplicate int
	// FailedParse counts candidates that failed normalization. Records an
	// adapter drops before producing a candidate (a feed feature without
	// coordinates, a mail without a marker) are logged there and not counted.
	FailedParse int
	FailedOther int
	// DedupUnknown counts skipped candidates whose existence check failed.
	// It is a subset of SkippedDuplicate.
	DedupUnknown int
	SourceErrors int
	StartedAt    time.Time
	Duration     time.Duration
}

// Pipeline runs ingestion passes: poll each source in order, then normalize,
// deduplicate, enrich and insert every candidate.
type Pipeline struct {
	sources   []Source
	store     AlertStore
	dedup     *Deduplicator
	enricher  *RoofEnricher
	publisher Publisher
	logger    *slog.Logger
	metrics   *observability.Metrics
	completed atomic.Bool
}

// New creates a Pipeline. Sources are polled in the given order. A nil
// publisher disables event publishing.
func New(sources []Source, store AlertStore, enricher *RoofEnricher, publisher Publisher, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		sources:   sources,
		store:     store,
		dedup:     NewDeduplicator(store),
		enricher:  enricher,
		publisher: publisher,
		logger:    logger,
		metrics:   metrics,
	}
}

// CheckReadiness returns nil once at least one pass has completed.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.completed.Load() {
		return errors.New("no ingestion pass has completed yet")
	}
	return nil
}

// RunPass performs one sequential pass over all sources. Failures are
// isolated per candidate and per source; RunPass itself never fails.
func (p *Pipeline) RunPass(ctx context.Context) PassReport {
	report := PassReport{StartedAt: time.Now().UTC()}
	p.metrics.PassInFlight.Set(1)
	defer p.metrics.PassInFlight.Set(0)

	p.logger.Info("ingestion pass started", "sources", len(p.sources))

	for _, src := range p.sources {
		p.runSource(ctx, src, &report)
	}

	report.Duration = time.Since(report.StartedAt)
	p.metrics.PassDuration.Observe(report.Duration.Seconds())
	result := "ok"
	if report.SourceErrors > 0 || report.FailedOther > 0 || report.DedupUnknown > 0 {
		result = "degraded"
	}
	p.metrics.PassesTotal.WithLabelValues(result).Inc()
	p.completed.Store(true)

	p.logger.Info("ingestion pass finished",
		"result", result,
		"attempted", report.Attempted,
		"inserted", report.Inserted,
		"skipped_duplicate", report.SkippedDuplicate,
		"dedup_unknown", report.DedupUnknown,
		"failed_parse", report.FailedParse,
		"failed_other", report.FailedOther,
		"source_errors", report.SourceErrors,
		"duration", report.Duration,
	)
	return report
}

func (p *Pipeline) runSource(ctx context.Context, src Source, report *PassReport) {
	name := src.Name()
	candidates, err := src.Poll(ctx)
	if err != nil {
		p.logger.Error("source poll failed, continuing with no candidates", "source", name, "error", err)
		p.metrics.SourcePollErrors.WithLabelValues(string(name)).Inc()
		report.SourceErrors++
		return
	}
	p.logger.Info("source polled", "source", name, "candidates", len(candidates))

	for _, raw := range candidates {
		outcome := p.processCandidate(ctx, name, raw)
		p.metrics.Candidates.WithLabelValues(string(name), outcome).Inc()

		report.Attempted++
		switch outcome {
		case outcomeInserted:
			report.Inserted++
		case outcomeDuplicate:
			report.SkippedDuplicate++
		case outcomeDedupUnknown:
			report.SkippedDuplicate++
			report.DedupUnknown++
		case outcomeFailedParse:
			report.FailedParse++
		default:
			report.FailedOther++
		}
	}
}

// processCandidate carries one candidate through the stages and returns its
// outcome. It logs exactly one line per outcome.
func (p *Pipeline) processCandidate(ctx context.Context, src domain.Source, raw domain.RawCandidate) string {
	alert, err := domain.Normalize(raw, src)
	if err != nil {
		p.logger.Warn("failed to parse candidate, skipping",
			"source", src,
			"native_id", raw.NativeID,
			"error", err,
		)
		return outcomeFailedParse
	}

	dup, err := p.dedup.IsDuplicate(ctx, alert.AlertID)
	if err != nil {
		p.logger.Warn("duplicate status unknown, skipping",
			"source", src,
			"alert_id", alert.AlertID,
			"error", err,
		)
		return outcomeDedupUnknown
	}
	if dup {
		p.logger.Info("skipping duplicate", "source", src, "alert_id", alert.AlertID)
		return outcomeDuplicate
	}

	alert = p.enricher.Enrich(ctx, alert)

	p.logger.Info("uploading alert", "source", src, "alert_id", alert.AlertID)
	if err := p.store.Insert(ctx, alert); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			p.logger.Info("skipping duplicate", "source", src, "alert_id", alert.AlertID, "detected_by", "store")
			return outcomeDuplicate
		}
		p.logger.Error("failed to insert alert",
			"source", src,
			"alert_id", alert.AlertID,
			"error", err,
		)
		return outcomeFailedOther
	}
	p.logger.Info("uploaded alert",
		"source", src,
		"alert_id", alert.AlertID,
		"lat", alert.Lat,
		"lon", alert.Lon,
		"hail_size", alert.HailSize,
		"roof_count", alert.RoofCount,
	)

	p.publish(ctx, alert)
	return outcomeInserted
}

// publish is best effort. The alert is already persisted.
func (p *Pipeline) publish(ctx context.Context, alert domain.Alert) {
	if p.publisher == nil {
		return
	}
	if err := p.publisher.Publish(ctx, alert); err != nil {
		p.logger.Warn("publish alert failed", "alert_id", alert.AlertID, "error", err)
		p.metrics.AlertsPublished.WithLabelValues("error").Inc()
		return
	}
	p.metrics.AlertsPublished.WithLabelValues("success").Inc()
}
