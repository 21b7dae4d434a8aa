package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kubesage/k8s-resource-advisor/pkg/models"
)

type fakeStore struct {
	runs    []*RunRecord
	records []*RecommendationRecord
	runErr  error
	recErr  error
}

func (f *fakeStore) SaveRun(ctx context.Context, run *RunRecord) error {
	if f.runErr != nil {
		return f.runErr
	}
	f.runs = append(f.runs, run)
	return nil
}

func (f *fakeStore) SaveRecommendation(ctx context.Context, rec *RecommendationRecord) error {
	if f.recErr != nil {
		return f.recErr
	}
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeStore) GetWorkloadHistory(ctx context.Context, workloadID string, limit int) ([]*RecommendationRecord, error) {
	return nil, nil
}

func (f *fakeStore) ListRecommendations(ctx context.Context, namespace string, limit int) ([]*RecommendationRecord, error) {
	return nil, nil
}

func (f *fakeStore) LogAction(ctx context.Context, entry *models.AuditEntry) error { return nil }

func (f *fakeStore) GetAuditLog(ctx context.Context, recommendationID string) ([]*models.AuditEntry, error) {
	return nil, nil
}

func (f *fakeStore) Ping(ctx context.Context) error { return nil }
func (f *fakeStore) Close() error                   { return nil }

func sampleSummary() *models.RunSummary {
	api := &models.Workload{Namespace: "payments", Name: "api", Kind: "Deployment"}
	worker := &models.Workload{Namespace: "payments", Name: "worker", Kind: "Deployment"}

	return &models.RunSummary{
		RunID:      "52f9b0ce-0000-4000-8000-1234567890ab",
		Source:     "file",
		Namespace:  "payments",
		StartedAt:  time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		FinishedAt: time.Date(2024, 5, 1, 12, 0, 30, 0, time.UTC),
		Analyzed:   1,
		Skipped:    1,
		Reports: []models.WorkloadReport{
			{
				Workload:  api,
				Dimension: models.DimensionCPU,
				Recommendation: &models.Recommendation{
					WorkloadID:         "payments/api",
					Dimension:          models.DimensionCPU,
					RecommendedRequest: 240,
					RecommendedLimit:   450,
					Confidence:         0.82,
					Rationale: []models.RationaleEntry{
						{Rule: "baseline", Detail: "request = max(p50, forecast) * 1.20"},
					},
				},
				Current: models.AllocationContext{Request: 500, Limit: 1000},
				Forecast: &models.ForecastResult{
					Model: models.ModelLinear,
				},
			},
			{
				Workload:      worker,
				Dimension:     models.DimensionCPU,
				FailureReason: "insufficient data: 3 valid buckets",
			},
		},
	}
}

func TestSaveSummary(t *testing.T) {
	store := &fakeStore{}
	summary := sampleSummary()

	err := SaveSummary(context.Background(), store, summary, map[string]any{"preset": "balanced"})
	if err != nil {
		t.Fatalf("SaveSummary failed: %v", err)
	}

	if len(store.runs) != 1 {
		t.Fatalf("Expected 1 run row, got %d", len(store.runs))
	}
	run := store.runs[0]
	if run.ID != summary.RunID {
		t.Errorf("Expected run ID %s, got %s", summary.RunID, run.ID)
	}
	if run.Analyzed != 1 || run.Skipped != 1 {
		t.Errorf("Expected totals 1/1, got %d/%d", run.Analyzed, run.Skipped)
	}
	if run.Config["preset"] != "balanced" {
		t.Errorf("Expected config snapshot to carry preset, got %v", run.Config)
	}

	// The failed report must not produce a row.
	if len(store.records) != 1 {
		t.Fatalf("Expected 1 recommendation row, got %d", len(store.records))
	}
	rec := store.records[0]
	if rec.Workload != "payments/api" {
		t.Errorf("Expected workload payments/api, got %s", rec.Workload)
	}
	if rec.RunID != summary.RunID {
		t.Errorf("Expected run ID on record, got %s", rec.RunID)
	}
	if rec.CurrentRequest != 500 || rec.CurrentLimit != 1000 {
		t.Errorf("Expected current allocation 500/1000, got %.0f/%.0f",
			rec.CurrentRequest, rec.CurrentLimit)
	}
	if rec.ModelUsed != "linear_trend" {
		t.Errorf("Expected model linear_trend, got %s", rec.ModelUsed)
	}
	if len(rec.Rationale) != 1 || rec.Rationale[0].Rule != "baseline" {
		t.Errorf("Expected rationale to survive flattening, got %+v", rec.Rationale)
	}
}

func TestSaveSummaryRunError(t *testing.T) {
	store := &fakeStore{runErr: errors.New("connection refused")}

	err := SaveSummary(context.Background(), store, sampleSummary(), nil)
	if err == nil {
		t.Fatal("Expected error when the run row cannot be saved")
	}
	if len(store.records) != 0 {
		t.Errorf("Expected no recommendation rows after run failure, got %d", len(store.records))
	}
}

func TestRecordFromReportWithoutForecast(t *testing.T) {
	w := &models.Workload{Namespace: "payments", Name: "api"}
	report := &models.WorkloadReport{
		Workload:       w,
		Dimension:      models.DimensionMemory,
		Recommendation: &models.Recommendation{RecommendedRequest: 128, RecommendedLimit: 256},
	}

	rec := RecordFromReport("run-1", report)
	if rec.ModelUsed != "" {
		t.Errorf("Expected empty model without forecast, got %s", rec.ModelUsed)
	}
	if rec.Dimension != models.DimensionMemory {
		t.Errorf("Expected memory dimension, got %s", rec.Dimension)
	}
}
