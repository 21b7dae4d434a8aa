// Package reporter turns a run summary into shareable report files: CSV for
// spreadsheets and HTML for humans. Terminal output lives in pkg/output.
package reporter

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/kubesage/k8s-resource-advisor/pkg/costing"
	"github.com/kubesage/k8s-resource-advisor/pkg/models"
	"github.com/kubesage/k8s-resource-advisor/pkg/quantity"
)

// Format selects the report file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatHTML Format = "html"
)

// Report contains all data for generating report files.
type Report struct {
	RunID        string
	Source       string
	Namespace    string
	GeneratedAt  time.Time
	PricingBasis string

	Rows []Row

	WorkloadCount       int
	RecommendedCount    int
	SkippedCount        int
	TotalMonthlySavings float64
}

// Row is one workload+dimension line of the report. Quantity fields are
// pre-formatted in kubectl form; empty means the value is not set.
type Row struct {
	Workload  string
	Namespace string
	Kind      string
	Dimension models.ResourceDimension

	CurrentRequest     string
	CurrentLimit       string
	RecommendedRequest string
	RecommendedLimit   string

	Confidence float64
	Model      string

	MonthlySavings float64
	HasSavings     bool

	Rationale     string
	FailureReason string
}

// Recommended reports whether this row carries values.
func (r Row) Recommended() bool { return r.FailureReason == "" }

// ConfidencePercent renders confidence for display.
func (r Row) ConfidencePercent() string {
	return fmt.Sprintf("%.0f%%", r.Confidence*100)
}

// ConfidenceClass buckets confidence for report styling.
func (r Row) ConfidenceClass() string {
	switch {
	case r.Confidence >= 0.75:
		return "high"
	case r.Confidence >= 0.5:
		return "medium"
	default:
		return "low"
	}
}

// SavingsDisplay renders the savings estimate, or a dash when the row has no
// configured request to price against.
func (r Row) SavingsDisplay() string {
	if !r.HasSavings {
		return "-"
	}
	return fmt.Sprintf("$%.2f", r.MonthlySavings)
}

// CurrentDisplay joins the configured request/limit pair for one table cell.
func (r Row) CurrentDisplay() string {
	return allocationDisplay(r.CurrentRequest, r.CurrentLimit)
}

// RecommendedDisplay joins the recommended request/limit pair.
func (r Row) RecommendedDisplay() string {
	return allocationDisplay(r.RecommendedRequest, r.RecommendedLimit)
}

func allocationDisplay(request, limit string) string {
	if request == "" && limit == "" {
		return "-"
	}
	if request == "" {
		request = "unset"
	}
	if limit == "" {
		limit = "unset"
	}
	return request + " / " + limit
}

// Build flattens a run summary into report rows. The estimator prices
// request deltas; nil disables the savings column.
func Build(summary *models.RunSummary, est *costing.Estimator) *Report {
	report := &Report{
		RunID:        summary.RunID,
		Source:       summary.Source,
		Namespace:    summary.Namespace,
		GeneratedAt:  summary.FinishedAt,
		PricingBasis: basis(est),
	}
	if report.GeneratedAt.IsZero() {
		report.GeneratedAt = time.Now()
	}

	seen := make(map[string]bool)
	for i := range summary.Reports {
		wr := &summary.Reports[i]
		row := buildRow(wr, est)

		report.Rows = append(report.Rows, row)
		if !seen[wr.Workload.ID()] {
			seen[wr.Workload.ID()] = true
			report.WorkloadCount++
		}
		if row.Recommended() {
			report.RecommendedCount++
			if row.HasSavings {
				report.TotalMonthlySavings += row.MonthlySavings
			}
		} else {
			report.SkippedCount++
		}
	}
	report.TotalMonthlySavings = math.Round(report.TotalMonthlySavings*100) / 100
	return report
}

func buildRow(wr *models.WorkloadReport, est *costing.Estimator) Row {
	row := Row{
		Workload:  wr.Workload.ID(),
		Namespace: wr.Workload.Namespace,
		Kind:      wr.Workload.Kind,
		Dimension: wr.Dimension,
	}

	if wr.Current.Request > 0 {
		row.CurrentRequest = formatValue(wr.Current.Request, wr.Dimension)
	}
	if wr.Current.Limit > 0 {
		row.CurrentLimit = formatValue(wr.Current.Limit, wr.Dimension)
	}

	if !wr.Recommended() {
		row.FailureReason = wr.FailureReason
		return row
	}

	rec := wr.Recommendation
	row.RecommendedRequest = formatValue(rec.RecommendedRequest, wr.Dimension)
	row.RecommendedLimit = formatValue(rec.RecommendedLimit, wr.Dimension)
	row.Confidence = rec.Confidence
	row.Rationale = rationaleSummary(rec.Rationale)
	if wr.Forecast != nil {
		row.Model = string(wr.Forecast.Model)
	}

	if est != nil && wr.Current.Request > 0 {
		saved := est.EstimateMonthlySavings(wr.Current.Request, rec.RecommendedRequest, wr.Dimension)
		row.MonthlySavings = math.Round(saved*100) / 100
		row.HasSavings = true
	}
	return row
}

// Write renders the report in the requested format.
func Write(report *Report, format Format, w io.Writer) error {
	switch format {
	case FormatCSV:
		return WriteCSV(report, w)
	case FormatHTML:
		return WriteHTML(report, w)
	default:
		return fmt.Errorf("unsupported report format: %s", format)
	}
}

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

func basis(est *costing.Estimator) string {
	if est == nil {
		return ""
	}
	if est.Region() == "" {
		return est.Provider()
	}
	return est.Provider() + "/" + est.Region()
}
