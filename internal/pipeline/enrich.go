package pipeline

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/hailwatch/internal/domain"
)

// RoofEnricher fills in roof counts using domain enrichment functions.
type RoofEnricher struct {
	estimator    domain.RoofEstimator
	radiusMeters int
	logger       *slog.Logger
}

// NewRoofEnricher creates a RoofEnricher. Pass a nil estimator to disable roof
// estimates; every alert then gets roof_count 0.
func NewRoofEnricher(estimator domain.RoofEstimator, radiusMeters int, logger *slog.Logger) *RoofEnricher {
	return &RoofEnricher{
		estimator:    estimator,
		radiusMeters: radiusMeters,
		logger:       logger,
	}
}

// Enrich never fails.
func (e *RoofEnricher) Enrich(ctx context.Context, alert domain.Alert) domain.Alert {
	return domain.EnrichWithRoofCount(ctx, alert, e.estimator, e.radiusMeters, e.logger)
}
