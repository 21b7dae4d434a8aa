package health

import (
	"reflect"
	"testing"
	"time"

	"github.com/kubesage/k8s-resource-advisor/pkg/models"
)

var windowStart = time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

// cleanedFromValues builds a fully-valid cleaned series with hand-set stats.
func cleanedFromValues(values []float64, stats models.SeriesStats) *models.CleanedSeries {
	buckets := make([]models.Bucket, len(values))
	for i, v := range values {
		buckets[i] = models.Bucket{
			Time:  windowStart.Add(time.Duration(i) * time.Minute),
			Value: v,
			State: models.BucketObserved,
		}
	}
	return &models.CleanedSeries{
		WorkloadID:   "payments/api",
		Dimension:    models.DimensionCPU,
		WindowStart:  windowStart,
		WindowEnd:    windowStart.Add(time.Duration(len(values)) * time.Minute),
		Step:         time.Minute,
		Buckets:      buckets,
		Stats:        stats,
		ValidCount:   len(values),
		Completeness: 1.0,
	}
}

func flatCleaned(count int, value float64) *models.CleanedSeries {
	values := make([]float64, count)
	for i := range values {
		values[i] = value
	}
	return cleanedFromValues(values, models.SeriesStats{
		P50: value, P90: value, P95: value, P99: value,
		Max: value, Min: value, Mean: value,
	})
}

func allocation(request, limit float64) models.AllocationContext {
	return models.AllocationContext{Request: request, Limit: limit}
}

func TestAnalyzeRestartRate(t *testing.T) {
	cleaned := flatCleaned(60, 100)
	events := models.HealthEvents{
		Restarts: []models.RestartEvent{
			{Timestamp: windowStart.Add(5 * time.Minute), Pod: "api-1"},
			{Timestamp: windowStart.Add(30 * time.Minute), Pod: "api-1"},
			{Timestamp: windowStart.Add(45 * time.Minute), Pod: "api-2"},
			{Timestamp: windowStart.Add(-10 * time.Minute), Pod: "api-1"}, // before window
		},
	}

	signal, err := New(DefaultConfig()).Analyze(cleaned, events, allocation(0, 200))
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	// 3 restarts over a one-hour window.
	if signal.RestartRate != 3.0 {
		t.Errorf("Expected restart rate 3.0/h, got %.2f", signal.RestartRate)
	}
}

func TestAnalyzeOOMCount(t *testing.T) {
	cleaned := flatCleaned(60, 100)
	events := models.HealthEvents{
		OOMs: []models.OOMEvent{
			{Timestamp: windowStart.Add(10 * time.Minute), Pod: "api-1"},
			{Timestamp: windowStart.Add(50 * time.Minute), Pod: "api-2"},
			{Timestamp: windowStart.Add(-time.Hour), Pod: "api-1"}, // before window
		},
	}

	signal, err := New(DefaultConfig()).Analyze(cleaned, events, allocation(0, 200))
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if signal.OOMCount != 2 {
		t.Errorf("Expected 2 OOM events in window, got %d", signal.OOMCount)
	}
}

func TestAnalyzeThrottleRatio(t *testing.T) {
	values := make([]float64, 40)
	for i := range values {
		if i < 10 {
			values[i] = 200 // at or above threshold
		} else {
			values[i] = 100
		}
	}
	cleaned := cleanedFromValues(values, models.SeriesStats{Mean: 125, StdDev: 43})

	cfg := DefaultConfig()
	cfg.ThrottleThreshold = 200
	signal, err := New(cfg).Analyze(cleaned, models.HealthEvents{}, allocation(0, 250))
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if signal.ThrottleRatio != 0.25 {
		t.Errorf("Expected throttle ratio 0.25, got %.2f", signal.ThrottleRatio)
	}
}

func TestAnalyzeThrottleDisabledWithoutThreshold(t *testing.T) {
	cleaned := flatCleaned(30, 500)

	signal, err := New(DefaultConfig()).Analyze(cleaned, models.HealthEvents{}, allocation(0, 500))
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if signal.ThrottleRatio != 0 {
		t.Errorf("Expected throttle ratio 0 with no threshold, got %.2f", signal.ThrottleRatio)
	}
}

func TestAnalyzeSaturationRatio(t *testing.T) {
	values := make([]float64, 20)
	for i := range values {
		if i%2 == 0 {
			values[i] = 195 // above 0.9 * 200
		} else {
			values[i] = 100
		}
	}
	cleaned := cleanedFromValues(values, models.SeriesStats{Mean: 147.5, StdDev: 47.5})

	signal, err := New(DefaultConfig()).Analyze(cleaned, models.HealthEvents{}, allocation(0, 200))
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if signal.SaturationRatio != 0.5 {
		t.Errorf("Expected saturation ratio 0.5, got %.2f", signal.SaturationRatio)
	}
}

func TestAnalyzeSaturationFallsBackToRequest(t *testing.T) {
	// No limit configured: the request is the only known ceiling.
	values := []float64{95, 95, 95, 95, 50, 50, 50, 50, 50, 50}
	cleaned := cleanedFromValues(values, models.SeriesStats{Mean: 68, StdDev: 22})

	signal, err := New(DefaultConfig()).Analyze(cleaned, models.HealthEvents{}, allocation(100, 0))
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if signal.SaturationRatio != 0.4 {
		t.Errorf("Expected saturation ratio 0.4 against request, got %.2f", signal.SaturationRatio)
	}
}

func TestAnalyzeMissingAllocation(t *testing.T) {
	cleaned := flatCleaned(30, 100)

	_, err := New(DefaultConfig()).Analyze(cleaned, models.HealthEvents{}, allocation(0, 0))
	if err == nil {
		t.Fatal("Expected error for unknown allocation, got nil")
	}
	if !models.IsMissingAllocationContext(err) {
		t.Errorf("Expected MissingAllocationContextError, got %v", err)
	}
}

func TestAnalyzeAnomalyWindows(t *testing.T) {
	// Mean 100, stddev 10: threshold at k=3 is 130. Two bursts two minutes
	// apart merge; a distant burst stays separate.
	values := make([]float64, 30)
	for i := range values {
		values[i] = 100
	}
	values[5], values[6] = 200, 220
	values[9], values[10] = 180, 180
	values[25] = 300

	cleaned := cleanedFromValues(values, models.SeriesStats{Mean: 100, StdDev: 10})

	signal, err := New(DefaultConfig()).Analyze(cleaned, models.HealthEvents{}, allocation(0, 400))
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if len(signal.AnomalyWindows) != 2 {
		t.Fatalf("Expected 2 anomaly windows after merging, got %d: %+v",
			len(signal.AnomalyWindows), signal.AnomalyWindows)
	}

	first := signal.AnomalyWindows[0]
	if !first.Start.Equal(windowStart.Add(5 * time.Minute)) {
		t.Errorf("Expected first window to start at +5m, got %v", first.Start)
	}
	if !first.End.Equal(windowStart.Add(11 * time.Minute)) {
		t.Errorf("Expected merged window to end at +11m, got %v", first.End)
	}
	if first.Peak != 220 {
		t.Errorf("Expected merged window peak 220, got %.1f", first.Peak)
	}

	second := signal.AnomalyWindows[1]
	if !second.Start.Equal(windowStart.Add(25 * time.Minute)) {
		t.Errorf("Expected second window to start at +25m, got %v", second.Start)
	}
	if second.Peak != 300 {
		t.Errorf("Expected second window peak 300, got %.1f", second.Peak)
	}
}

func TestAnalyzeNoAnomaliesOnFlatSeries(t *testing.T) {
	signal, err := New(DefaultConfig()).Analyze(flatCleaned(30, 100), models.HealthEvents{}, allocation(0, 200))
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if len(signal.AnomalyWindows) != 0 {
		t.Errorf("Expected no anomaly windows on flat series, got %d", len(signal.AnomalyWindows))
	}
}

func TestAnalyzeDeterministic(t *testing.T) {
	values := []float64{100, 120, 90, 400, 110, 95, 100, 105, 98, 102}
	cleaned := cleanedFromValues(values, models.SeriesStats{Mean: 132, StdDev: 89})
	events := models.HealthEvents{
		Restarts: []models.RestartEvent{{Timestamp: windowStart.Add(time.Minute), Pod: "api-1"}},
		OOMs:     []models.OOMEvent{{Timestamp: windowStart.Add(2 * time.Minute), Pod: "api-1"}},
	}

	a := New(DefaultConfig())
	first, err := a.Analyze(cleaned, events, allocation(150, 300))
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	second, err := a.Analyze(cleaned, events, allocation(150, 300))
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Errorf("Expected identical signals, got %+v and %+v", first, second)
	}
}
