package advisor

import (
	"context"
	"fmt"
	"math"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/kubesage/k8s-resource-advisor/pkg/models"
)

var baseTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type fakeSource struct {
	series    map[string]models.MetricSeries
	events    map[string]models.HealthEvents
	seriesErr map[string]error
	eventsErr map[string]error
}

func seriesKey(w models.Workload, dim models.ResourceDimension) string {
	return w.ID() + "/" + string(dim)
}

func (f *fakeSource) FetchSeries(_ context.Context, w models.Workload, dim models.ResourceDimension, _ time.Duration) (models.MetricSeries, error) {
	key := seriesKey(w, dim)
	if err, ok := f.seriesErr[key]; ok {
		return models.MetricSeries{}, err
	}
	return f.series[key], nil
}

func (f *fakeSource) FetchHealthEvents(_ context.Context, w models.Workload, _ time.Duration) (models.HealthEvents, error) {
	if err, ok := f.eventsErr[w.ID()]; ok {
		return models.HealthEvents{}, err
	}
	return f.events[w.ID()], nil
}

func (f *fakeSource) ListWorkloads(context.Context, string) ([]models.Workload, error) {
	return nil, nil
}

func (f *fakeSource) IsAvailable(context.Context) bool { return true }

func (f *fakeSource) Name() string { return "fake" }

type fakeResolver struct {
	alloc map[string]models.AllocationContext
	err   error
}

func (f *fakeResolver) AllocationFor(_ context.Context, w models.Workload, dim models.ResourceDimension) (models.AllocationContext, error) {
	if f.err != nil {
		return models.AllocationContext{}, f.err
	}
	return f.alloc[seriesKey(w, dim)], nil
}

func constantSeries(w models.Workload, dim models.ResourceDimension, minutes int, value float64) models.MetricSeries {
	points := make([]models.MetricPoint, 0, minutes)
	for i := 0; i < minutes; i++ {
		points = append(points, models.MetricPoint{Timestamp: baseTime.Add(time.Duration(i) * time.Minute), Value: value})
	}
	return models.MetricSeries{WorkloadID: w.ID(), Dimension: dim, Points: points}
}

func workload(name string) models.Workload {
	return models.Workload{Namespace: "default", Name: name, Kind: "Deployment", Container: name}
}

func testConfig() Config {
	return Config{
		Namespace:  "default",
		Window:     60 * time.Minute,
		Horizon:    10 * time.Minute,
		Dimensions: []models.ResourceDimension{models.DimensionCPU},
	}
}

func TestRunProducesRecommendations(t *testing.T) {
	api := workload("api")
	worker := workload("worker")
	source := &fakeSource{
		series: map[string]models.MetricSeries{
			seriesKey(api, models.DimensionCPU):    constantSeries(api, models.DimensionCPU, 60, 100),
			seriesKey(worker, models.DimensionCPU): constantSeries(worker, models.DimensionCPU, 60, 200),
		},
	}
	resolver := &fakeResolver{alloc: map[string]models.AllocationContext{
		seriesKey(api, models.DimensionCPU):    {Request: 100, Limit: 400},
		seriesKey(worker, models.DimensionCPU): {Request: 200, Limit: 800},
	}}

	engine := New(source, resolver, testConfig())
	summary, err := engine.Run(context.Background(), []models.Workload{worker, api})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if summary.RunID == "" {
		t.Error("Expected a run ID")
	}
	if summary.Source != "fake" {
		t.Errorf("Expected source fake, got %s", summary.Source)
	}
	if summary.Analyzed != 2 || summary.Skipped != 0 {
		t.Fatalf("Expected 2 analyzed and 0 skipped, got %d/%d", summary.Analyzed, summary.Skipped)
	}
	if len(summary.Reports) != 2 {
		t.Fatalf("Expected 2 reports, got %d", len(summary.Reports))
	}

	// Sorted by workload ID regardless of submission order.
	if summary.Reports[0].Workload.Name != "api" || summary.Reports[1].Workload.Name != "worker" {
		t.Errorf("Expected reports sorted api, worker; got %s, %s",
			summary.Reports[0].Workload.Name, summary.Reports[1].Workload.Name)
	}

	rec := summary.Reports[0].Recommendation
	if rec == nil {
		t.Fatal("Expected a recommendation for api")
	}
	if math.Abs(rec.RecommendedRequest-120) > 1e-6 {
		t.Errorf("Expected request 120, got %f", rec.RecommendedRequest)
	}
	if math.Abs(rec.RecommendedLimit-150) > 1e-6 {
		t.Errorf("Expected limit 150, got %f", rec.RecommendedLimit)
	}
}

func TestRunIsolatesWorkloadFailures(t *testing.T) {
	api := workload("api")
	broken := workload("broken")
	source := &fakeSource{
		series: map[string]models.MetricSeries{
			seriesKey(api, models.DimensionCPU): constantSeries(api, models.DimensionCPU, 60, 100),
		},
		seriesErr: map[string]error{
			seriesKey(broken, models.DimensionCPU): fmt.Errorf("prometheus unreachable"),
		},
	}
	resolver := &fakeResolver{alloc: map[string]models.AllocationContext{
		seriesKey(api, models.DimensionCPU): {Limit: 400},
	}}

	engine := New(source, resolver, testConfig())
	summary, err := engine.Run(context.Background(), []models.Workload{api, broken})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if summary.Analyzed != 1 || summary.Skipped != 1 {
		t.Fatalf("Expected 1 analyzed and 1 skipped, got %d/%d", summary.Analyzed, summary.Skipped)
	}
	for _, report := range summary.Reports {
		switch report.Workload.Name {
		case "api":
			if !report.Recommended() {
				t.Errorf("Expected recommendation for api, got failure %q", report.FailureReason)
			}
		case "broken":
			if report.Recommended() {
				t.Error("Expected no recommendation for broken workload")
			}
			if !strings.Contains(report.FailureReason, "fetch series") {
				t.Errorf("Expected fetch series failure reason, got %q", report.FailureReason)
			}
		}
	}
}

func TestRunReportsInsufficientData(t *testing.T) {
	sparse := workload("sparse")
	source := &fakeSource{
		series: map[string]models.MetricSeries{
			seriesKey(sparse, models.DimensionCPU): constantSeries(sparse, models.DimensionCPU, 3, 100),
		},
	}
	resolver := &fakeResolver{alloc: map[string]models.AllocationContext{
		seriesKey(sparse, models.DimensionCPU): {Limit: 400},
	}}

	engine := New(source, resolver, testConfig())
	summary, err := engine.Run(context.Background(), []models.Workload{sparse})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if summary.Skipped != 1 {
		t.Fatalf("Expected 1 skipped, got %d", summary.Skipped)
	}
	if !strings.Contains(summary.Reports[0].FailureReason, "insufficient data") {
		t.Errorf("Expected insufficient data reason, got %q", summary.Reports[0].FailureReason)
	}
}

func TestRunReportsMissingAllocation(t *testing.T) {
	api := workload("api")
	source := &fakeSource{
		series: map[string]models.MetricSeries{
			seriesKey(api, models.DimensionCPU): constantSeries(api, models.DimensionCPU, 60, 100),
		},
	}

	engine := New(source, &fakeResolver{}, testConfig())
	summary, err := engine.Run(context.Background(), []models.Workload{api})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if summary.Skipped != 1 {
		t.Fatalf("Expected 1 skipped, got %d", summary.Skipped)
	}
	if !strings.Contains(summary.Reports[0].FailureReason, "allocation") {
		t.Errorf("Expected allocation failure reason, got %q", summary.Reports[0].FailureReason)
	}
}

func TestRunCoversBothDimensions(t *testing.T) {
	api := workload("api")
	source := &fakeSource{
		series: map[string]models.MetricSeries{
			seriesKey(api, models.DimensionCPU):    constantSeries(api, models.DimensionCPU, 60, 100),
			seriesKey(api, models.DimensionMemory): constantSeries(api, models.DimensionMemory, 60, 256<<20),
		},
	}
	resolver := &fakeResolver{alloc: map[string]models.AllocationContext{
		seriesKey(api, models.DimensionCPU):    {Limit: 400},
		seriesKey(api, models.DimensionMemory): {Limit: 512 << 20},
	}}

	cfg := testConfig()
	cfg.Dimensions = []models.ResourceDimension{models.DimensionCPU, models.DimensionMemory}
	engine := New(source, resolver, cfg)

	summary, err := engine.Run(context.Background(), []models.Workload{api})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if summary.Analyzed != 2 {
		t.Fatalf("Expected 2 analyzed dimensions, got %d", summary.Analyzed)
	}
	if summary.Reports[0].Dimension != models.DimensionCPU || summary.Reports[1].Dimension != models.DimensionMemory {
		t.Errorf("Expected cpu then memory reports, got %s then %s",
			summary.Reports[0].Dimension, summary.Reports[1].Dimension)
	}
}

func TestRunRecommendationValuesDeterministic(t *testing.T) {
	api := workload("api")
	source := &fakeSource{
		series: map[string]models.MetricSeries{
			seriesKey(api, models.DimensionCPU): constantSeries(api, models.DimensionCPU, 60, 100),
		},
		events: map[string]models.HealthEvents{
			api.ID(): {OOMs: []models.OOMEvent{{Timestamp: baseTime.Add(30 * time.Minute), Pod: "api-1"}}},
		},
	}
	resolver := &fakeResolver{alloc: map[string]models.AllocationContext{
		seriesKey(api, models.DimensionCPU): {Limit: 400},
	}}

	engine := New(source, resolver, testConfig())

	first, err := engine.Run(context.Background(), []models.Workload{api})
	if err != nil {
		t.Fatalf("First run failed: %v", err)
	}
	second, err := engine.Run(context.Background(), []models.Workload{api})
	if err != nil {
		t.Fatalf("Second run failed: %v", err)
	}

	if first.RunID == second.RunID {
		t.Error("Expected distinct run IDs")
	}
	recA := first.Reports[0].Recommendation
	recB := second.Reports[0].Recommendation
	if recA == nil || recB == nil {
		t.Fatal("Expected recommendations from both runs")
	}
	if !reflect.DeepEqual(recA, recB) {
		t.Errorf("Expected identical recommendations across runs, got %+v vs %+v", recA, recB)
	}
}

func TestRunCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	api := workload("api")
	source := &fakeSource{
		series: map[string]models.MetricSeries{
			seriesKey(api, models.DimensionCPU): constantSeries(api, models.DimensionCPU, 60, 100),
		},
	}
	engine := New(source, &fakeResolver{}, testConfig())

	if _, err := engine.Run(ctx, []models.Workload{api}); err == nil {
		t.Error("Expected error from canceled context")
	}
}
