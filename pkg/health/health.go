// Package health derives per-workload health indicators from cleaned series
// and event logs: restart rate, throttling, saturation against the current
// allocation, and anomalous usage windows.
package health

import (
	"time"

	"github.com/kubesage/k8s-resource-advisor/pkg/models"
)

// Config controls the health thresholds.
type Config struct {
	// AnomalyK flags buckets above mean + AnomalyK * stddev. Default 3.
	AnomalyK float64

	// AnomalyMergeGap joins anomaly windows separated by less than this.
	AnomalyMergeGap time.Duration

	// ThrottleThreshold is the absolute usage value (series unit) at or
	// above which a bucket counts as throttled. Zero disables the ratio.
	ThrottleThreshold float64

	// SaturationFraction of the current allocation ceiling above which a
	// bucket counts as saturated. Default 0.9.
	SaturationFraction float64
}

// DefaultConfig returns the analyzer defaults.
func DefaultConfig() Config {
	return Config{
		AnomalyK:           3,
		AnomalyMergeGap:    5 * time.Minute,
		SaturationFraction: 0.9,
	}
}

func (c Config) normalized() Config {
	def := DefaultConfig()
	if c.AnomalyK <= 0 {
		c.AnomalyK = def.AnomalyK
	}
	if c.AnomalyMergeGap <= 0 {
		c.AnomalyMergeGap = def.AnomalyMergeGap
	}
	if c.SaturationFraction <= 0 {
		c.SaturationFraction = def.SaturationFraction
	}
	return c
}

// Analyzer computes health signals. Stateless; safe for concurrent use.
type Analyzer struct {
	cfg Config
}

// New creates an analyzer with the given configuration.
func New(cfg Config) *Analyzer {
	return &Analyzer{cfg: cfg.normalized()}
}

// Analyze derives the health signal for one workload+dimension. The current
// allocation is required: saturation is relative to the configured ceiling,
// and without it the analysis fails with MissingAllocationContextError.
// Inputs are never mutated; identical inputs yield identical signals.
func (a *Analyzer) Analyze(cleaned *models.CleanedSeries, events models.HealthEvents, alloc models.AllocationContext) (*models.HealthSignal, error) {
	ceiling, ok := alloc.Ceiling()
	if !ok {
		return nil, &models.MissingAllocationContextError{
			WorkloadID: cleaned.WorkloadID,
			Dimension:  cleaned.Dimension,
		}
	}

	signal := &models.HealthSignal{
		WorkloadID: cleaned.WorkloadID,
		Dimension:  cleaned.Dimension,
	}

	window := cleaned.WindowEnd.Sub(cleaned.WindowStart)
	if window > 0 {
		restarts := countInWindow(restartTimes(events.Restarts), cleaned.WindowStart, cleaned.WindowEnd)
		signal.RestartRate = float64(restarts) / window.Hours()
	}

	for _, oom := range events.OOMs {
		if inWindow(oom.Timestamp, cleaned.WindowStart, cleaned.WindowEnd) {
			signal.OOMCount++
		}
	}

	if cleaned.ValidCount > 0 {
		signal.ThrottleRatio = a.throttleRatio(cleaned)
		signal.SaturationRatio = a.saturationRatio(cleaned, ceiling)
	}

	signal.AnomalyWindows = a.anomalyWindows(cleaned)

	return signal, nil
}

func (a *Analyzer) throttleRatio(cleaned *models.CleanedSeries) float64 {
	if a.cfg.ThrottleThreshold <= 0 {
		return 0
	}
	throttled := 0
	for _, b := range cleaned.Buckets {
		if b.State != models.BucketExcluded && b.Value >= a.cfg.ThrottleThreshold {
			throttled++
		}
	}
	return float64(throttled) / float64(cleaned.ValidCount)
}

func (a *Analyzer) saturationRatio(cleaned *models.CleanedSeries, ceiling float64) float64 {
	threshold := a.cfg.SaturationFraction * ceiling
	saturated := 0
	for _, b := range cleaned.Buckets {
		if b.State != models.BucketExcluded && b.Value > threshold {
			saturated++
		}
	}
	return float64(saturated) / float64(cleaned.ValidCount)
}

// anomalyWindows finds contiguous runs of valid buckets above
// mean + k*stddev, then merges runs separated by less than the merge gap.
func (a *Analyzer) anomalyWindows(cleaned *models.CleanedSeries) []models.TimeRange {
	threshold := cleaned.Stats.Mean + a.cfg.AnomalyK*cleaned.Stats.StdDev

	var windows []models.TimeRange
	var current *models.TimeRange

	for _, b := range cleaned.Buckets {
		anomalous := b.State != models.BucketExcluded && b.Value > threshold
		if anomalous {
			if current == nil {
				current = &models.TimeRange{Start: b.Time, Peak: b.Value}
			} else if b.Value > current.Peak {
				current.Peak = b.Value
			}
			current.End = b.Time.Add(cleaned.Step)
			continue
		}
		if current != nil {
			windows = append(windows, *current)
			current = nil
		}
	}
	if current != nil {
		windows = append(windows, *current)
	}

	return mergeWindows(windows, a.cfg.AnomalyMergeGap)
}

func mergeWindows(windows []models.TimeRange, gap time.Duration) []models.TimeRange {
	if len(windows) < 2 {
		return windows
	}
	merged := []models.TimeRange{windows[0]}
	for _, w := range windows[1:] {
		last := &merged[len(merged)-1]
		if w.Start.Sub(last.End) < gap {
			last.End = w.End
			if w.Peak > last.Peak {
				last.Peak = w.Peak
			}
			continue
		}
		merged = append(merged, w)
	}
	return merged
}

func restartTimes(restarts []models.RestartEvent) []time.Time {
	times := make([]time.Time, len(restarts))
	for i, r := range restarts {
		times[i] = r.Timestamp
	}
	return times
}

func countInWindow(times []time.Time, start, end time.Time) int {
	n := 0
	for _, ts := range times {
		if inWindow(ts, start, end) {
			n++
		}
	}
	return n
}

func inWindow(ts, start, end time.Time) bool {
	return !ts.Before(start) && ts.Before(end)
}
