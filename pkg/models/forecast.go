package models

import "time"

// ForecastModel tags which projection path produced a ForecastResult.
type ForecastModel string

const (
	// ModelLinear is a least-squares trend fit on the trailing window.
	ModelLinear ForecastModel = "linear_trend"
	// ModelLinearSeasonal is the trend fit plus an hour-of-day adjustment.
	ModelLinearSeasonal ForecastModel = "linear_seasonal"
	// ModelTrailingPercentile is the deterministic fallback projection.
	ModelTrailingPercentile ForecastModel = "trailing_percentile"
)

// ForecastResult is the projected usage distribution at the end of the
// horizon. One per workload+dimension; consumed by the recommendation policy.
type ForecastResult struct {
	WorkloadID string
	Dimension  ResourceDimension

	PointForecast float64
	LowerBound    float64
	UpperBound    float64

	Horizon time.Duration

	// ModelConfidence is in [0, 1]. The fallback path uses a low fixed
	// value.
	ModelConfidence float64

	Model       ForecastModel
	ModelReason string
}

// Fallback reports whether the trailing-percentile path produced this result.
func (f *ForecastResult) Fallback() bool {
	return f.Model == ModelTrailingPercentile
}
