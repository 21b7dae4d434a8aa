package policy

import (
	"math"
	"reflect"
	"testing"

	"github.com/kubesage/k8s-resource-advisor/pkg/models"
)

func cleanedFromStats(p50, p99, completeness float64, notes ...string) *models.CleanedSeries {
	return &models.CleanedSeries{
		WorkloadID:    "payments/api",
		Dimension:     models.DimensionCPU,
		Stats:         models.SeriesStats{P50: p50, P99: p99},
		Completeness:  completeness,
		CleaningNotes: notes,
	}
}

func healthySignal() *models.HealthSignal {
	return &models.HealthSignal{WorkloadID: "payments/api", Dimension: models.DimensionCPU}
}

func trendForecast(point, upper, confidence float64) *models.ForecastResult {
	return &models.ForecastResult{
		WorkloadID:      "payments/api",
		Dimension:       models.DimensionCPU,
		PointForecast:   point,
		LowerBound:      point,
		UpperBound:      upper,
		ModelConfidence: confidence,
		Model:           models.ModelLinear,
		ModelReason:     "trend model fit",
	}
}

func near(got, want, tol float64) bool {
	return math.Abs(got-want) <= tol
}

func hasRule(rationale []models.RationaleEntry, rule string) bool {
	for _, entry := range rationale {
		if entry.Rule == rule {
			return true
		}
	}
	return false
}

func TestRecommendSteadyWorkload(t *testing.T) {
	p := New(DefaultConfig())

	rec, err := p.Recommend(cleanedFromStats(100, 100, 1.0), healthySignal(), trendForecast(100, 100, 0.95))
	if err != nil {
		t.Fatalf("Recommend failed: %v", err)
	}

	if !near(rec.RecommendedRequest, 120, 1e-6) {
		t.Errorf("Expected request 120, got %f", rec.RecommendedRequest)
	}
	if !near(rec.RecommendedLimit, 150, 1e-6) {
		t.Errorf("Expected limit 150, got %f", rec.RecommendedLimit)
	}
	if !near(rec.Confidence, 0.97, 1e-6) {
		t.Errorf("Expected confidence 0.97, got %f", rec.Confidence)
	}
	if rec.WorkloadID != "payments/api" || rec.Dimension != models.DimensionCPU {
		t.Errorf("Recommendation lost workload identity: %s/%s", rec.WorkloadID, rec.Dimension)
	}
}

func TestRecommendOOMEscalatesLimit(t *testing.T) {
	p := New(DefaultConfig())
	cleaned := cleanedFromStats(100, 100, 1.0)
	fc := trendForecast(100, 100, 0.95)

	baseline, err := p.Recommend(cleaned, healthySignal(), fc)
	if err != nil {
		t.Fatalf("Recommend failed: %v", err)
	}

	oomSignal := healthySignal()
	oomSignal.OOMCount = 1
	escalated, err := p.Recommend(cleaned, oomSignal, fc)
	if err != nil {
		t.Fatalf("Recommend with OOM failed: %v", err)
	}

	if escalated.RecommendedLimit <= baseline.RecommendedLimit {
		t.Errorf("Expected OOM limit above %f, got %f", baseline.RecommendedLimit, escalated.RecommendedLimit)
	}
	if !near(escalated.RecommendedLimit, 180, 1e-6) {
		t.Errorf("Expected escalated limit 180, got %f", escalated.RecommendedLimit)
	}
	if !hasRule(escalated.Rationale, RuleOOMEscalation) {
		t.Error("Expected oom-escalation rationale entry")
	}
	if hasRule(baseline.Rationale, RuleOOMEscalation) {
		t.Error("Baseline without OOMs should not carry an oom-escalation entry")
	}
}

func TestRecommendThrottleBlendsRequestTowardLimit(t *testing.T) {
	p := New(DefaultConfig())
	cleaned := cleanedFromStats(100, 100, 1.0)
	fc := trendForecast(100, 100, 0.95)

	baseline, err := p.Recommend(cleaned, healthySignal(), fc)
	if err != nil {
		t.Fatalf("Recommend failed: %v", err)
	}

	throttled := healthySignal()
	throttled.ThrottleRatio = 0.4
	blended, err := p.Recommend(cleaned, throttled, fc)
	if err != nil {
		t.Fatalf("Recommend with throttling failed: %v", err)
	}

	if !near(blended.RecommendedRequest, 135, 1e-6) {
		t.Errorf("Expected blended request 135, got %f", blended.RecommendedRequest)
	}

	baselineGap := baseline.RecommendedLimit - baseline.RecommendedRequest
	blendedGap := blended.RecommendedLimit - blended.RecommendedRequest
	if blendedGap >= baselineGap {
		t.Errorf("Expected throttled request closer to limit: gap %f vs baseline %f", blendedGap, baselineGap)
	}
	if !hasRule(blended.Rationale, RuleThrottleBlend) {
		t.Error("Expected throttle-blend rationale entry")
	}
}

func TestRecommendFloorsTinyRequest(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinAllocation = 25
	p := New(cfg)

	rec, err := p.Recommend(cleanedFromStats(10, 12, 1.0), healthySignal(), trendForecast(10, 12, 0.9))
	if err != nil {
		t.Fatalf("Recommend failed: %v", err)
	}

	if rec.RecommendedRequest != 25 {
		t.Errorf("Expected floored request 25, got %f", rec.RecommendedRequest)
	}
	if rec.RecommendedLimit != 25 {
		t.Errorf("Expected limit clamped to floored request 25, got %f", rec.RecommendedLimit)
	}
	if !hasRule(rec.Rationale, RuleRequestFloor) {
		t.Error("Expected request-floor rationale entry")
	}
	if !hasRule(rec.Rationale, RuleLimitClamp) {
		t.Error("Expected limit-clamp rationale entry")
	}
}

func TestRecommendClampsLimitNeverSwaps(t *testing.T) {
	p := New(DefaultConfig())

	// Forecast far above history: request base outruns the limit base.
	rec, err := p.Recommend(cleanedFromStats(100, 110, 1.0), healthySignal(), trendForecast(1000, 120, 0.6))
	if err != nil {
		t.Fatalf("Recommend failed: %v", err)
	}

	if !near(rec.RecommendedRequest, 1200, 1e-6) {
		t.Errorf("Expected request 1200, got %f", rec.RecommendedRequest)
	}
	if rec.RecommendedLimit != rec.RecommendedRequest {
		t.Errorf("Expected limit clamped to request %f, got %f", rec.RecommendedRequest, rec.RecommendedLimit)
	}
	if !hasRule(rec.Rationale, RuleLimitClamp) {
		t.Error("Expected limit-clamp rationale entry")
	}
}

func TestRecommendLimitAlwaysCoversRequest(t *testing.T) {
	p := New(DefaultConfig())
	shapes := []struct {
		p50, p99, point, upper float64
	}{
		{100, 100, 100, 100},
		{50, 400, 60, 80},
		{100, 110, 1000, 120},
		{1, 2, 3, 4},
	}

	for _, shape := range shapes {
		rec, err := p.Recommend(cleanedFromStats(shape.p50, shape.p99, 1.0), healthySignal(), trendForecast(shape.point, shape.upper, 0.8))
		if err != nil {
			t.Fatalf("Recommend failed for %+v: %v", shape, err)
		}
		if rec.RecommendedRequest <= 0 {
			t.Errorf("Expected positive request for %+v, got %f", shape, rec.RecommendedRequest)
		}
		if rec.RecommendedLimit < rec.RecommendedRequest {
			t.Errorf("Limit %f below request %f for %+v", rec.RecommendedLimit, rec.RecommendedRequest, shape)
		}
	}
}

func TestRecommendRejectsZeroUsage(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinAllocation = 0
	p := New(cfg)

	_, err := p.Recommend(cleanedFromStats(0, 0, 1.0), healthySignal(), trendForecast(0, 0, 0.3))
	if err == nil {
		t.Fatal("Expected policy violation for all-zero inputs without a floor")
	}
	if !models.IsPolicyViolation(err) {
		t.Errorf("Expected PolicyViolationError, got %v", err)
	}
}

func TestRecommendRationaleOrder(t *testing.T) {
	p := New(DefaultConfig())
	cleaned := cleanedFromStats(100, 100, 1.0, "clipped 2 sample(s) above absolute ceiling 1000.0")
	signal := healthySignal()
	signal.OOMCount = 2

	rec, err := p.Recommend(cleaned, signal, trendForecast(100, 100, 0.95))
	if err != nil {
		t.Fatalf("Recommend failed: %v", err)
	}

	expected := []string{
		RuleCleaning,
		RuleForecastPath,
		RuleBaseRequest,
		RuleRequestHeadroom,
		RuleBaseLimit,
		RuleLimitHeadroom,
		RuleOOMEscalation,
	}
	if len(rec.Rationale) != len(expected) {
		t.Fatalf("Expected %d rationale entries, got %d: %+v", len(expected), len(rec.Rationale), rec.Rationale)
	}
	for i, rule := range expected {
		if rec.Rationale[i].Rule != rule {
			t.Errorf("Rationale[%d]: expected rule %q, got %q", i, rule, rec.Rationale[i].Rule)
		}
	}
}

func TestRecommendFallbackForecastNoted(t *testing.T) {
	p := New(DefaultConfig())
	fc := trendForecast(100, 110, 0.3)
	fc.Model = models.ModelTrailingPercentile
	fc.ModelReason = "12 valid points, trend model needs 30"

	rec, err := p.Recommend(cleanedFromStats(100, 100, 0.5), healthySignal(), fc)
	if err != nil {
		t.Fatalf("Recommend failed: %v", err)
	}

	if !hasRule(rec.Rationale, RuleForecastPath) {
		t.Fatal("Expected forecast-path rationale entry")
	}
	for _, entry := range rec.Rationale {
		if entry.Rule == RuleForecastPath {
			if entry.Detail == "" || entry.Detail[:len(models.ModelTrailingPercentile)] != string(models.ModelTrailingPercentile) {
				t.Errorf("Expected forecast-path detail to name %s, got %q", models.ModelTrailingPercentile, entry.Detail)
			}
		}
	}
	// 0.6*0.3 + 0.4*0.5 = 0.38
	if !near(rec.Confidence, 0.38, 1e-6) {
		t.Errorf("Expected blended confidence 0.38, got %f", rec.Confidence)
	}
}

func TestRecommendDeterministic(t *testing.T) {
	p := New(DefaultConfig())
	cleaned := cleanedFromStats(100, 140, 0.9, "excluded 3 bucket(s) in gap longer than 5m0s")
	signal := healthySignal()
	signal.ThrottleRatio = 0.4
	signal.OOMCount = 1
	fc := trendForecast(120, 160, 0.7)

	first, err := p.Recommend(cleaned, signal, fc)
	if err != nil {
		t.Fatalf("Recommend failed: %v", err)
	}
	second, err := p.Recommend(cleaned, signal, fc)
	if err != nil {
		t.Fatalf("Second Recommend failed: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Errorf("Expected identical recommendations, got %+v vs %+v", first, second)
	}
}
