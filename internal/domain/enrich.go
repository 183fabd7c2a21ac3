package domain

import (
	"context"
	"log/slog"
)

// EnrichWithRoofCount sets RoofCount from the estimator. It never fails: a nil
// estimator, an estimator error, or a negative count all leave RoofCount at 0
// so that missing roof data does not block ingestion.
func EnrichWithRoofCount(ctx context.Context, alert Alert, estimator RoofEstimator, radiusMeters int, logger *slog.Logger) Alert {
	alert.RoofCount = 0
	if estimator == nil {
		return alert
	}
	if radiusMeters <= 0 {
		radiusMeters = DefaultRoofRadiusMeters
	}

	count, err := estimator.EstimateBuildingCount(ctx, alert.Lat, alert.Lon, radiusMeters)
	if err != nil {
		logger.Warn("roof count failed, defaulting to 0",
			"alert_id", alert.AlertID,
			"lat", alert.Lat,
			"lon", alert.Lon,
			"error", err,
		)
		return alert
	}
	if count < 0 {
		logger.Warn("roof count negative, defaulting to 0",
			"alert_id", alert.AlertID,
			"count", count,
		)
		return alert
	}

	alert.RoofCount = count
	return alert
}
