package output

import (
	"fmt"
	"io"

	"github.com/kubesage/k8s-resource-advisor/pkg/costing"
	"github.com/kubesage/k8s-resource-advisor/pkg/models"
)

// TextHandler renders the human-readable default view.
type TextHandler struct {
	w   io.Writer
	est *costing.Estimator
}

func NewText(w io.Writer, est *costing.Estimator) *TextHandler {
	return &TextHandler{w: w, est: est}
}

func (h *TextHandler) Format() string { return "text" }

func (h *TextHandler) Render(summary *models.RunSummary) error {
	groups := groupByWorkload(summary)
	if len(groups) == 0 {
		fmt.Fprintln(h.w, "No workloads analyzed")
		return nil
	}

	fmt.Fprintln(h.w, "=== Resource Recommendations ===")
	fmt.Fprintln(h.w)

	for i, group := range groups {
		fmt.Fprintf(h.w, "%d. %s", i+1, group.workload.ID())
		if group.workload.Kind != "" {
			fmt.Fprintf(h.w, " (%s)", group.workload.Kind)
		}
		if group.problematic() {
			fmt.Fprintf(h.w, " [recent restarts]")
		}
		fmt.Fprintln(h.w)

		for _, report := range group.reports {
			h.renderDimension(report)
		}

		if cmd := Command(group.workload, group.recommendations()); cmd != "" {
			fmt.Fprintf(h.w, "   command: %s\n", cmd)
		}
		fmt.Fprintln(h.w)
	}

	fmt.Fprintf(h.w, "Analyzed %d, recommended %d, skipped %d\n",
		summary.Analyzed+summary.Skipped, summary.Analyzed, summary.Skipped)
	if h.est != nil {
		fmt.Fprintf(h.w, "Total estimated savings: $%.2f/month (%s rates)\n",
			totalSavings(h.est, summary), pricingBasis(h.est))
	}
	return nil
}

func (h *TextHandler) renderDimension(report *models.WorkloadReport) {
	dim := report.Dimension

	if !report.Recommended() {
		fmt.Fprintf(h.w, "   %-7s no recommendation (%s)\n", dim+":", report.FailureReason)
		return
	}

	rec := report.Recommendation
	fmt.Fprintf(h.w, "   %-7s current  request=%s limit=%s\n",
		dim+":", allocValue(report.Current.Request, dim), allocValue(report.Current.Limit, dim))
	fmt.Fprintf(h.w, "           proposed request=%s limit=%s (confidence %.0f%%, %s)\n",
		formatValue(rec.RecommendedRequest, dim), formatValue(rec.RecommendedLimit, dim),
		rec.Confidence*100, modelName(report))
	if saved, ok := rowSavings(h.est, report); ok {
		fmt.Fprintf(h.w, "           est. savings $%.2f/month\n", saved)
	}
	if summary := rationaleSummary(rec.Rationale); summary != "" {
		fmt.Fprintf(h.w, "           rationale: %s\n", summary)
	}
}

// allocValue renders a configured allocation, or "unset" for the zero value.
func allocValue(v float64, dim models.ResourceDimension) string {
	if v <= 0 {
		return "unset"
	}
	return formatValue(v, dim)
}

func modelName(report *models.WorkloadReport) string {
	if report.Forecast == nil {
		return "no forecast"
	}
	return string(report.Forecast.Model)
}
