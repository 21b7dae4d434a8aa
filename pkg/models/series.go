package models

import "time"

// ResourceDimension identifies which resource a series measures.
type ResourceDimension string

const (
	// DimensionCPU carries values in millicores.
	DimensionCPU ResourceDimension = "cpu"
	// DimensionMemory carries values in bytes.
	DimensionMemory ResourceDimension = "memory"
)

// Valid reports whether the dimension is one of the known values.
func (d ResourceDimension) Valid() bool {
	return d == DimensionCPU || d == DimensionMemory
}

// MetricPoint is a single observation. Immutable once recorded.
type MetricPoint struct {
	Timestamp time.Time
	Value     float64
}

// MetricSeries is the raw, ordered usage history for one workload and one
// resource dimension. Timestamps are strictly increasing; values are
// non-negative. Produced by an ingestion source, consumed read-only.
type MetricSeries struct {
	WorkloadID string
	Dimension  ResourceDimension
	Points     []MetricPoint
}

// BucketState describes how a resampled bucket obtained its value.
type BucketState string

const (
	// BucketObserved holds a value taken from the raw series.
	BucketObserved BucketState = "observed"
	// BucketFilled holds a value carried forward across a short gap.
	BucketFilled BucketState = "filled"
	// BucketExcluded marks a bucket inside a gap too long to fill. Its
	// value is undefined and it never contributes to statistics.
	BucketExcluded BucketState = "excluded"
)

// Bucket is one fixed-cadence slot of a cleaned series.
type Bucket struct {
	Time  time.Time
	Value float64
	State BucketState
}

// SeriesStats holds summary statistics over the valid buckets of a window.
type SeriesStats struct {
	P50    float64
	P90    float64
	P95    float64
	P99    float64
	Max    float64
	Min    float64
	Mean   float64
	StdDev float64
}

// CleanedSeries is a MetricSeries after resampling, gap handling and outlier
// clipping, plus summary statistics over the trailing window. Created by the
// metrics processor; immutable once produced; lives for one analysis run.
type CleanedSeries struct {
	WorkloadID string
	Dimension  ResourceDimension

	// Window covered by the buckets, [WindowStart, WindowEnd).
	WindowStart time.Time
	WindowEnd   time.Time
	Step        time.Duration

	// One bucket per step across the window, in time order.
	Buckets []Bucket

	Stats SeriesStats

	ValidCount    int
	FilledCount   int
	ExcludedCount int
	ClippedCount  int

	// Completeness is the fraction of buckets that are valid (observed or
	// filled). Feeds recommendation confidence.
	Completeness float64

	// CleaningNotes records clipping and gap decisions for rationale output.
	CleaningNotes []string
}

// ValidValues returns the values of observed and filled buckets in time order.
func (c *CleanedSeries) ValidValues() []float64 {
	values := make([]float64, 0, c.ValidCount)
	for _, b := range c.Buckets {
		if b.State != BucketExcluded {
			values = append(values, b.Value)
		}
	}
	return values
}

// Empty reports whether no valid buckets remain.
func (c *CleanedSeries) Empty() bool {
	return c.ValidCount == 0
}
