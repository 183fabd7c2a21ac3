package domain

import "context"

// RoofEstimator counts buildings around a point.
type RoofEstimator interface {
	EstimateBuildingCount(ctx context.Context, lat, lon float64, radiusMeters int) (int, error)
}
