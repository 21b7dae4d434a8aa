package models

import "time"

// TimeRange is a half-open [Start, End) span of anomalous usage.
type TimeRange struct {
	Start time.Time
	End   time.Time
	// Peak is the highest value observed inside the range.
	Peak float64
}

// Duration returns the span length.
func (t TimeRange) Duration() time.Duration {
	return t.End.Sub(t.Start)
}

// HealthSignal holds derived health indicators for one workload+dimension.
// Read-only input to the recommendation policy.
type HealthSignal struct {
	WorkloadID string
	Dimension  ResourceDimension

	// RestartRate is restarts per hour over the analysis window.
	RestartRate float64

	// ThrottleRatio is the fraction of valid buckets at or above the
	// configured throttle threshold.
	ThrottleRatio float64

	// SaturationRatio is the fraction of valid buckets above the
	// high-utilization fraction of the current allocation ceiling.
	SaturationRatio float64

	OOMCount int

	AnomalyWindows []TimeRange
}
