package processor

import (
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/kubesage/k8s-resource-advisor/pkg/models"
)

var seriesStart = time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

// minuteSeries builds a series with one point per given minute offset.
func minuteSeries(values map[int]float64) models.MetricSeries {
	minutes := make([]int, 0, len(values))
	for m := range values {
		minutes = append(minutes, m)
	}
	// Points must be in increasing time order.
	for i := 0; i < len(minutes); i++ {
		for j := i + 1; j < len(minutes); j++ {
			if minutes[j] < minutes[i] {
				minutes[i], minutes[j] = minutes[j], minutes[i]
			}
		}
	}

	points := make([]models.MetricPoint, 0, len(minutes))
	for _, m := range minutes {
		points = append(points, models.MetricPoint{
			Timestamp: seriesStart.Add(time.Duration(m) * time.Minute),
			Value:     values[m],
		})
	}
	return models.MetricSeries{
		WorkloadID: "payments/api",
		Dimension:  models.DimensionCPU,
		Points:     points,
	}
}

// constantSeries builds count one-minute points at a fixed value.
func constantSeries(count int, value float64) models.MetricSeries {
	values := make(map[int]float64, count)
	for i := 0; i < count; i++ {
		values[i] = value
	}
	return minuteSeries(values)
}

func TestProcessConstantSeries(t *testing.T) {
	p := New(DefaultConfig())

	cleaned, err := p.Process(constantSeries(60, 100), 60*time.Minute)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if cleaned.ValidCount != 60 {
		t.Errorf("Expected 60 valid buckets, got %d", cleaned.ValidCount)
	}
	if cleaned.Completeness != 1.0 {
		t.Errorf("Expected completeness 1.0, got %.2f", cleaned.Completeness)
	}
	if cleaned.Stats.P50 != 100 || cleaned.Stats.P99 != 100 || cleaned.Stats.Max != 100 {
		t.Errorf("Expected all percentiles 100, got p50=%.1f p99=%.1f max=%.1f",
			cleaned.Stats.P50, cleaned.Stats.P99, cleaned.Stats.Max)
	}
	if cleaned.Stats.StdDev != 0 {
		t.Errorf("Expected zero stddev, got %.4f", cleaned.Stats.StdDev)
	}
}

func TestProcessInvalidWindow(t *testing.T) {
	p := New(DefaultConfig())

	for _, window := range []time.Duration{0, -time.Minute} {
		_, err := p.Process(constantSeries(10, 100), window)
		if err == nil {
			t.Fatalf("Expected error for window %v, got nil", window)
		}
		if !models.IsInvalidWindow(err) {
			t.Errorf("Expected InvalidWindowError for window %v, got %v", window, err)
		}
	}
}

func TestProcessEmptySeries(t *testing.T) {
	p := New(DefaultConfig())

	_, err := p.Process(models.MetricSeries{WorkloadID: "a/b", Dimension: models.DimensionCPU}, time.Hour)
	if err == nil {
		t.Fatal("Expected error for empty series, got nil")
	}
	if !models.IsInsufficientData(err) {
		t.Errorf("Expected InsufficientDataError, got %v", err)
	}
}

func TestProcessShortGapCarriedForward(t *testing.T) {
	values := map[int]float64{}
	for m := 0; m < 10; m++ {
		values[m] = 100
	}
	values[9] = 140 // last value before the gap is the one carried
	for m := 13; m < 20; m++ {
		values[m] = 100
	}

	p := New(DefaultConfig())
	cleaned, err := p.Process(minuteSeries(values), 20*time.Minute)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if cleaned.FilledCount != 3 {
		t.Errorf("Expected 3 filled buckets, got %d", cleaned.FilledCount)
	}
	if cleaned.ExcludedCount != 0 {
		t.Errorf("Expected 0 excluded buckets, got %d", cleaned.ExcludedCount)
	}
	for _, b := range cleaned.Buckets {
		if b.State == models.BucketFilled && b.Value != 140 {
			t.Errorf("Expected filled bucket to carry 140, got %.1f at %v", b.Value, b.Time)
		}
	}
}

func TestProcessLongGapExcluded(t *testing.T) {
	// 20-minute gap against a 5-minute fill limit: the whole gap must be
	// excluded from statistics, not partially filled.
	values := map[int]float64{}
	for m := 0; m < 20; m++ {
		values[m] = 100
	}
	for m := 40; m < 60; m++ {
		values[m] = 200
	}

	p := New(DefaultConfig())
	cleaned, err := p.Process(minuteSeries(values), 60*time.Minute)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if cleaned.ExcludedCount != 20 {
		t.Errorf("Expected 20 excluded buckets, got %d", cleaned.ExcludedCount)
	}
	if cleaned.ValidCount != 40 {
		t.Errorf("Expected 40 valid buckets, got %d", cleaned.ValidCount)
	}
	if math.Abs(cleaned.Completeness-40.0/60.0) > 1e-9 {
		t.Errorf("Expected completeness 0.667, got %.3f", cleaned.Completeness)
	}

	// 20 values at 100 and 20 at 200: the median interpolates across the jump.
	if math.Abs(cleaned.Stats.P50-150) > 1e-9 {
		t.Errorf("Expected P50 150 over valid buckets only, got %.2f", cleaned.Stats.P50)
	}
	if cleaned.Stats.Max != 200 {
		t.Errorf("Expected max 200, got %.1f", cleaned.Stats.Max)
	}
}

func TestProcessInsufficientAfterGapExclusion(t *testing.T) {
	values := map[int]float64{}
	for m := 0; m < 20; m++ {
		values[m] = 100
	}
	for m := 40; m < 60; m++ {
		values[m] = 200
	}

	cfg := DefaultConfig()
	cfg.MinValidPoints = 50
	p := New(cfg)

	_, err := p.Process(minuteSeries(values), 60*time.Minute)
	if err == nil {
		t.Fatal("Expected InsufficientDataError, got nil")
	}
	if !models.IsInsufficientData(err) {
		t.Fatalf("Expected InsufficientDataError, got %v", err)
	}

	var insufficient *models.InsufficientDataError
	if !errors.As(err, &insufficient) {
		t.Fatalf("Expected typed InsufficientDataError, got %T", err)
	}
	if insufficient.ValidPoints != 40 || insufficient.RequiredPoints != 50 {
		t.Errorf("Expected 40 valid of 50 required, got %d of %d",
			insufficient.ValidPoints, insufficient.RequiredPoints)
	}
}

func TestProcessAbsoluteCeilingClip(t *testing.T) {
	values := map[int]float64{}
	for m := 0; m < 30; m++ {
		values[m] = 100 + float64(m%7)
	}
	values[12] = 5000
	values[25] = 2400

	cfg := DefaultConfig()
	cfg.AbsoluteCeiling = 1000
	cfg.OutlierZ = 0
	p := New(cfg)

	cleaned, err := p.Process(minuteSeries(values), 30*time.Minute)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	for _, b := range cleaned.Buckets {
		if b.State != models.BucketExcluded && b.Value > 1000 {
			t.Errorf("Bucket at %v exceeds ceiling: %.1f", b.Time, b.Value)
		}
	}
	if cleaned.ClippedCount != 2 {
		t.Errorf("Expected 2 clipped values, got %d", cleaned.ClippedCount)
	}
	if len(cleaned.CleaningNotes) == 0 {
		t.Error("Expected a cleaning note recording the clip")
	}
}

func TestProcessRobustOutlierClip(t *testing.T) {
	// Alternating 90/110 gives median 100 and MAD 10; with z=4 the
	// threshold is 140 and the single spike lands exactly on it.
	values := map[int]float64{}
	for m := 0; m < 30; m++ {
		if m%2 == 0 {
			values[m] = 90
		} else {
			values[m] = 110
		}
	}
	values[15] = 1000

	cfg := DefaultConfig()
	cfg.OutlierZ = 4
	p := New(cfg)

	cleaned, err := p.Process(minuteSeries(values), 30*time.Minute)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if cleaned.Stats.Max != 140 {
		t.Errorf("Expected spike clipped to 140, got max %.1f", cleaned.Stats.Max)
	}
	if cleaned.ClippedCount != 1 {
		t.Errorf("Expected 1 clipped value, got %d", cleaned.ClippedCount)
	}
}

func TestProcessConstantSeriesSkipsZClip(t *testing.T) {
	// MAD is zero for a constant series; z-clipping must not divide by it
	// or clip anything.
	cfg := DefaultConfig()
	cfg.OutlierZ = 4
	p := New(cfg)

	cleaned, err := p.Process(constantSeries(30, 100), 30*time.Minute)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if cleaned.ClippedCount != 0 {
		t.Errorf("Expected no clipping on constant series, got %d", cleaned.ClippedCount)
	}
}

func TestProcessIdempotent(t *testing.T) {
	values := map[int]float64{}
	for m := 0; m < 45; m++ {
		if m%2 == 0 {
			values[m] = 80 + float64(m%9)
		} else {
			values[m] = 120 - float64(m%5)
		}
	}
	values[7] = 900 // clipped on the first pass
	for m := 20; m < 23; m++ {
		delete(values, m) // short gap, carried forward
	}

	p := New(DefaultConfig())
	window := 45 * time.Minute

	first, err := p.Process(minuteSeries(values), window)
	if err != nil {
		t.Fatalf("First pass failed: %v", err)
	}

	// Rebuild a raw series from the cleaned output and process it again.
	var points []models.MetricPoint
	for _, b := range first.Buckets {
		if b.State == models.BucketExcluded {
			continue
		}
		points = append(points, models.MetricPoint{Timestamp: b.Time, Value: b.Value})
	}
	second, err := p.Process(models.MetricSeries{
		WorkloadID: first.WorkloadID,
		Dimension:  first.Dimension,
		Points:     points,
	}, window)
	if err != nil {
		t.Fatalf("Second pass failed: %v", err)
	}

	if !reflect.DeepEqual(first.Stats, second.Stats) {
		t.Errorf("Reprocessing drifted: first %+v, second %+v", first.Stats, second.Stats)
	}
	if second.ClippedCount != 0 {
		t.Errorf("Expected no re-clipping on cleaned input, got %d", second.ClippedCount)
	}
}

func TestProcessOnlyTrailingWindowCounted(t *testing.T) {
	values := map[int]float64{}
	for m := 0; m < 120; m++ {
		if m < 60 {
			values[m] = 500
		} else {
			values[m] = 100
		}
	}

	p := New(DefaultConfig())
	cleaned, err := p.Process(minuteSeries(values), 60*time.Minute)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	// Only the trailing hour (all at 100) is inside the window.
	if cleaned.Stats.Max != 100 {
		t.Errorf("Expected max 100 from trailing window, got %.1f", cleaned.Stats.Max)
	}
	if cleaned.ValidCount != 60 {
		t.Errorf("Expected 60 valid buckets, got %d", cleaned.ValidCount)
	}
}

func TestProcessLastObservationWinsInBucket(t *testing.T) {
	base := seriesStart
	series := models.MetricSeries{
		WorkloadID: "payments/api",
		Dimension:  models.DimensionCPU,
		Points: []models.MetricPoint{
			{Timestamp: base.Add(10 * time.Second), Value: 50},
			{Timestamp: base.Add(40 * time.Second), Value: 70},
			{Timestamp: base.Add(1 * time.Minute), Value: 90},
		},
	}

	cfg := DefaultConfig()
	cfg.MinValidPoints = 1
	p := New(cfg)

	cleaned, err := p.Process(series, 2*time.Minute)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	var got []float64
	for _, b := range cleaned.Buckets {
		if b.State != models.BucketExcluded {
			got = append(got, b.Value)
		}
	}
	want := []float64{70, 90}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected bucket values %v, got %v", want, got)
	}
}
