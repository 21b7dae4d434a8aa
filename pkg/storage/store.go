// Package storage persists advisory runs to Postgres so recommendations can
// be compared across time and actions taken on them audited.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/kubesage/k8s-resource-advisor/pkg/models"
)

// RunRecord is one persisted advisory run.
type RunRecord struct {
	ID         string
	Source     string
	Namespace  string
	StartedAt  time.Time
	FinishedAt time.Time
	Analyzed   int
	Skipped    int

	// Config is the effective configuration snapshot, stored as JSONB so a
	// stored recommendation can be read next to the settings that shaped it.
	Config map[string]any
}

// RecommendationRecord is one persisted recommendation: the emitted values
// plus the allocation they would replace.
type RecommendationRecord struct {
	ID        string
	RunID     string
	Workload  string
	Namespace string
	Dimension models.ResourceDimension

	RecommendedRequest float64
	RecommendedLimit   float64
	CurrentRequest     float64
	CurrentLimit       float64

	Confidence float64
	ModelUsed  string
	Rationale  []models.RationaleEntry
	CreatedAt  time.Time
}

// Store defines the interface for persistent storage.
type Store interface {
	SaveRun(ctx context.Context, run *RunRecord) error
	SaveRecommendation(ctx context.Context, rec *RecommendationRecord) error
	GetWorkloadHistory(ctx context.Context, workloadID string, limit int) ([]*RecommendationRecord, error)
	ListRecommendations(ctx context.Context, namespace string, limit int) ([]*RecommendationRecord, error)

	LogAction(ctx context.Context, entry *models.AuditEntry) error
	GetAuditLog(ctx context.Context, recommendationID string) ([]*models.AuditEntry, error)

	Ping(ctx context.Context) error
	Close() error
}

// SaveSummary persists a run and every recommendation it produced. Failed
// reports carry no values; they only show up in the run's skipped count.
func SaveSummary(ctx context.Context, store Store, summary *models.RunSummary, cfg map[string]any) error {
	run := &RunRecord{
		ID:         summary.RunID,
		Source:     summary.Source,
		Namespace:  summary.Namespace,
		StartedAt:  summary.StartedAt,
		FinishedAt: summary.FinishedAt,
		Analyzed:   summary.Analyzed,
		Skipped:    summary.Skipped,
		Config:     cfg,
	}
	if err := store.SaveRun(ctx, run); err != nil {
		return fmt.Errorf("save run: %w", err)
	}

	for i := range summary.Reports {
		report := &summary.Reports[i]
		if !report.Recommended() {
			continue
		}
		if err := store.SaveRecommendation(ctx, RecordFromReport(run.ID, report)); err != nil {
			return fmt.Errorf("save recommendation for %s: %w", report.Workload.ID(), err)
		}
	}
	return nil
}

// RecordFromReport flattens a pipeline outcome into its storable row.
// The store assigns the row ID and timestamp on insert when unset.
func RecordFromReport(runID string, report *models.WorkloadReport) *RecommendationRecord {
	rec := report.Recommendation
	record := &RecommendationRecord{
		ID:                 rec.ID,
		RunID:              runID,
		Workload:           report.Workload.ID(),
		Namespace:          report.Workload.Namespace,
		Dimension:          report.Dimension,
		RecommendedRequest: rec.RecommendedRequest,
		RecommendedLimit:   rec.RecommendedLimit,
		CurrentRequest:     report.Current.Request,
		CurrentLimit:       report.Current.Limit,
		Confidence:         rec.Confidence,
		Rationale:          rec.Rationale,
		CreatedAt:          rec.CreatedAt,
	}
	if report.Forecast != nil {
		record.ModelUsed = string(report.Forecast.Model)
	}
	return record
}
