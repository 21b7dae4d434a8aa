// Package output renders run summaries for the terminal: a human-readable
// text view, machine-readable JSON, and ready-to-apply kubectl commands.
// Failed workloads appear in every format with their failing reason.
package output

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/kubesage/k8s-resource-advisor/pkg/costing"
	"github.com/kubesage/k8s-resource-advisor/pkg/models"
	"github.com/kubesage/k8s-resource-advisor/pkg/quantity"
)

// Handler defines the interface for output formatting.
type Handler interface {
	Render(summary *models.RunSummary) error
	Format() string
}

// ForFormat returns the handler for an --output value.
func ForFormat(format string, w io.Writer, est *costing.Estimator) (Handler, error) {
	switch format {
	case "text", "":
		return NewText(w, est), nil
	case "json":
		return NewJSON(w, est), nil
	case "commands":
		return NewCommands(w), nil
	default:
		return nil, fmt.Errorf("unknown output format %q (want text, json or commands)", format)
	}
}

// workloadGroup collects the per-dimension reports of one workload, in the
// dimension order the engine emitted them.
type workloadGroup struct {
	workload *models.Workload
	reports  []*models.WorkloadReport
}

// groupByWorkload splits the sorted report list at workload boundaries.
func groupByWorkload(summary *models.RunSummary) []workloadGroup {
	var groups []workloadGroup
	for i := range summary.Reports {
		report := &summary.Reports[i]
		n := len(groups)
		if n == 0 || groups[n-1].workload.ID() != report.Workload.ID() {
			groups = append(groups, workloadGroup{workload: report.Workload})
			n++
		}
		groups[n-1].reports = append(groups[n-1].reports, report)
	}
	return groups
}

// recommendations returns the recommended values of the group keyed by
// dimension, for command generation.
func (g *workloadGroup) recommendations() map[models.ResourceDimension]*models.Recommendation {
	recs := make(map[models.ResourceDimension]*models.Recommendation)
	for _, report := range g.reports {
		if report.Recommended() {
			recs[report.Dimension] = report.Recommendation
		}
	}
	return recs
}

// problematic reports whether any dimension flagged recent instability.
func (g *workloadGroup) problematic() bool {
	for _, report := range g.reports {
		if report.Problematic {
			return true
		}
	}
	return false
}

// formatValue renders an engine value in the unit kubectl accepts.
func formatValue(v float64, dim models.ResourceDimension) string {
	switch dim {
	case models.DimensionCPU:
		return quantity.FormatCPU(int64(math.Round(v)))
	case models.DimensionMemory:
		return quantity.FormatMemory(int64(math.Round(v)))
	default:
		return fmt.Sprintf("%.0f", v)
	}
}

// rowSavings prices one recommendation against its current request. ok is
// false when there is nothing to compare: no estimator, no recommendation,
// or no configured request to price against.
func rowSavings(est *costing.Estimator, report *models.WorkloadReport) (float64, bool) {
	if est == nil || !report.Recommended() || report.Current.Request <= 0 {
		return 0, false
	}
	saved := est.EstimateMonthlySavings(report.Current.Request, report.Recommendation.RecommendedRequest, report.Dimension)
	return math.Round(saved*100) / 100, true
}

// totalSavings sums the priceable rows of the run.
func totalSavings(est *costing.Estimator, summary *models.RunSummary) float64 {
	var total float64
	for i := range summary.Reports {
		if saved, ok := rowSavings(est, &summary.Reports[i]); ok {
			total += saved
		}
	}
	return math.Round(total*100) / 100
}

// rationaleSummary joins the applied rules into one line for display.
func rationaleSummary(entries []models.RationaleEntry) string {
	parts := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Detail != "" {
			parts = append(parts, e.Detail)
		} else {
			parts = append(parts, e.Rule)
		}
	}
	return strings.Join(parts, "; ")
}

// pricingBasis names the provider and region savings were priced with.
func pricingBasis(est *costing.Estimator) string {
	if est == nil {
		return ""
	}
	if est.Region() == "" {
		return est.Provider()
	}
	return est.Provider() + "/" + est.Region()
}
