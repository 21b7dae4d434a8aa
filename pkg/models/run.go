package models

import "time"

// WorkloadReport is the outcome of one workload+dimension pipeline.
// A failed analysis carries no recommendation, only the failing reason;
// it never blocks other workloads.
type WorkloadReport struct {
	Workload  *Workload
	Dimension ResourceDimension

	Recommendation *Recommendation
	Health         *HealthSignal
	Forecast       *ForecastResult
	Stats          SeriesStats
	Current        AllocationContext

	// Problematic mirrors the collector's recent-restart/crash-loop flag.
	Problematic bool

	// FailureReason is non-empty when Recommendation is nil.
	FailureReason string
}

// Recommended reports whether the pipeline produced a recommendation.
func (r *WorkloadReport) Recommended() bool {
	return r.Recommendation != nil
}

// RunSummary aggregates one advisory run across all analyzed workloads.
type RunSummary struct {
	RunID      string
	Source     string
	Namespace  string
	StartedAt  time.Time
	FinishedAt time.Time

	Reports []WorkloadReport

	Analyzed int
	Skipped  int
}
