// Package processor turns raw metric series into fixed-cadence cleaned
// windows: it resamples, carries values across short gaps, excludes long
// gaps, clips outliers and computes the summary statistics every downstream
// analysis runs on.
package processor

import (
	"fmt"
	"sort"
	"time"

	"github.com/kubesage/k8s-resource-advisor/pkg/models"
)

// Config controls resampling, gap handling and outlier treatment.
type Config struct {
	// Step is the resampling cadence. Default one minute.
	Step time.Duration

	// MaxGapForFill is the longest run of empty buckets filled by
	// last-observed-value carry-forward. Longer gaps are excluded whole.
	// Linear interpolation is never used: it would hide spikes.
	MaxGapForFill time.Duration

	// MinValidPoints is the smallest number of valid buckets a series may
	// have after gap exclusion.
	MinValidPoints int

	// OutlierZ is the robust z-score (median + z * MAD) above which values
	// are clipped to the threshold. Zero disables z-clipping.
	OutlierZ float64

	// AbsoluteCeiling clips any value above it, in the series' unit.
	// Zero disables the ceiling.
	AbsoluteCeiling float64
}

// DefaultConfig returns the processing defaults.
func DefaultConfig() Config {
	return Config{
		Step:           time.Minute,
		MaxGapForFill:  5 * time.Minute,
		MinValidPoints: 10,
		OutlierZ:       4.0,
	}
}

// normalized fills zero fields with defaults.
func (c Config) normalized() Config {
	def := DefaultConfig()
	if c.Step <= 0 {
		c.Step = def.Step
	}
	if c.MaxGapForFill <= 0 {
		c.MaxGapForFill = def.MaxGapForFill
	}
	if c.MinValidPoints <= 0 {
		c.MinValidPoints = def.MinValidPoints
	}
	return c
}

// Processor cleans raw series. Stateless; safe for concurrent use.
type Processor struct {
	cfg Config
}

// New creates a processor with the given configuration.
func New(cfg Config) *Processor {
	return &Processor{cfg: cfg.normalized()}
}

// Process resamples the series into step-sized buckets over the trailing
// window ending at the series' last observation, fills short gaps by carrying
// the last observed value forward, excludes long gaps from statistics, clips
// outliers and computes summary statistics over the valid buckets.
//
// The input series is not modified. Points older than the window are ignored,
// not deleted.
func (p *Processor) Process(series models.MetricSeries, window time.Duration) (*models.CleanedSeries, error) {
	if window <= 0 {
		return nil, &models.InvalidWindowError{Window: window}
	}
	if len(series.Points) == 0 {
		return nil, &models.InsufficientDataError{
			WorkloadID:     series.WorkloadID,
			Dimension:      series.Dimension,
			ValidPoints:    0,
			RequiredPoints: p.cfg.MinValidPoints,
		}
	}

	step := p.cfg.Step
	bucketCount := int((window + step - 1) / step)

	// Anchor the window at the last observation so reprocessing the same
	// series reproduces the same buckets regardless of when it runs.
	last := latestTimestamp(series.Points)
	end := last.Truncate(step).Add(step)
	start := end.Add(-time.Duration(bucketCount) * step)

	buckets := p.resample(series.Points, start, step, bucketCount)
	filled, excluded := p.fillGaps(buckets)

	cleaned := &models.CleanedSeries{
		WorkloadID:    series.WorkloadID,
		Dimension:     series.Dimension,
		WindowStart:   start,
		WindowEnd:     end,
		Step:          step,
		Buckets:       buckets,
		FilledCount:   filled,
		ExcludedCount: excluded,
	}
	cleaned.ValidCount = bucketCount - excluded
	cleaned.Completeness = float64(cleaned.ValidCount) / float64(bucketCount)
	if excluded > 0 {
		cleaned.CleaningNotes = append(cleaned.CleaningNotes,
			fmt.Sprintf("excluded %d of %d buckets inside gaps longer than %v", excluded, bucketCount, p.cfg.MaxGapForFill))
	}

	p.clipOutliers(cleaned)

	if cleaned.ValidCount < p.cfg.MinValidPoints {
		return nil, &models.InsufficientDataError{
			WorkloadID:     series.WorkloadID,
			Dimension:      series.Dimension,
			ValidPoints:    cleaned.ValidCount,
			RequiredPoints: p.cfg.MinValidPoints,
		}
	}

	cleaned.Stats = CalculateStats(cleaned.ValidValues())
	return cleaned, nil
}

// resample assigns raw points to buckets. When several points land in one
// bucket the latest observation wins; averaging would smooth exactly the
// spikes the cleaning rules are built to preserve.
func (p *Processor) resample(points []models.MetricPoint, start time.Time, step time.Duration, count int) []models.Bucket {
	buckets := make([]models.Bucket, count)
	latest := make([]time.Time, count)
	for i := range buckets {
		buckets[i] = models.Bucket{
			Time:  start.Add(time.Duration(i) * step),
			State: models.BucketExcluded,
		}
	}

	for _, pt := range points {
		if pt.Timestamp.Before(start) {
			continue
		}
		idx := int(pt.Timestamp.Sub(start) / step)
		if idx < 0 || idx >= count {
			continue
		}
		if buckets[idx].State == models.BucketObserved && pt.Timestamp.Before(latest[idx]) {
			continue
		}
		buckets[idx].Value = pt.Value
		buckets[idx].State = models.BucketObserved
		latest[idx] = pt.Timestamp
	}

	return buckets
}

// fillGaps carries the last observed value across runs of empty buckets no
// longer than MaxGapForFill. Longer runs stay excluded whole; a gap is either
// trustworthy enough to bridge or it is not. Leading empties have nothing to
// carry and stay excluded.
func (p *Processor) fillGaps(buckets []models.Bucket) (filled, excluded int) {
	step := p.cfg.Step
	lastObserved := -1

	i := 0
	for i < len(buckets) {
		if buckets[i].State == models.BucketObserved {
			lastObserved = i
			i++
			continue
		}

		// Measure the run of empty buckets starting here.
		runStart := i
		for i < len(buckets) && buckets[i].State != models.BucketObserved {
			i++
		}
		runLen := i - runStart

		gap := time.Duration(runLen) * step
		if lastObserved >= 0 && gap <= p.cfg.MaxGapForFill {
			for j := runStart; j < runStart+runLen; j++ {
				buckets[j].Value = buckets[lastObserved].Value
				buckets[j].State = models.BucketFilled
			}
			filled += runLen
		} else {
			excluded += runLen
		}
	}

	return filled, excluded
}

// clipOutliers clips valid bucket values, first at the absolute ceiling, then
// at median + z*MAD. Values are clipped, never dropped, and every clip is
// recorded in the cleaning notes. The robust threshold survives reprocessing:
// upper-tail clipping moves neither the median nor the MAD, so running the
// processor over its own output clips nothing further.
func (p *Processor) clipOutliers(cleaned *models.CleanedSeries) {
	if p.cfg.AbsoluteCeiling > 0 {
		n := 0
		for i := range cleaned.Buckets {
			if cleaned.Buckets[i].State == models.BucketExcluded {
				continue
			}
			if cleaned.Buckets[i].Value > p.cfg.AbsoluteCeiling {
				cleaned.Buckets[i].Value = p.cfg.AbsoluteCeiling
				n++
			}
		}
		if n > 0 {
			cleaned.ClippedCount += n
			cleaned.CleaningNotes = append(cleaned.CleaningNotes,
				fmt.Sprintf("clipped %d values at absolute ceiling %.1f", n, p.cfg.AbsoluteCeiling))
		}
	}

	if p.cfg.OutlierZ <= 0 {
		return
	}
	values := cleaned.ValidValues()
	if len(values) < 3 {
		return
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	med := median(sorted)
	mad := medianAbsoluteDeviation(values, med)
	if mad == 0 {
		// Majority of values identical; nothing to normalize against.
		return
	}

	threshold := med + p.cfg.OutlierZ*mad
	n := 0
	for i := range cleaned.Buckets {
		if cleaned.Buckets[i].State == models.BucketExcluded {
			continue
		}
		if cleaned.Buckets[i].Value > threshold {
			cleaned.Buckets[i].Value = threshold
			n++
		}
	}
	if n > 0 {
		cleaned.ClippedCount += n
		cleaned.CleaningNotes = append(cleaned.CleaningNotes,
			fmt.Sprintf("clipped %d values above robust z threshold %.1f (z=%.1f)", n, threshold, p.cfg.OutlierZ))
	}
}

func latestTimestamp(points []models.MetricPoint) time.Time {
	last := points[0].Timestamp
	for _, pt := range points[1:] {
		if pt.Timestamp.After(last) {
			last = pt.Timestamp
		}
	}
	return last
}
