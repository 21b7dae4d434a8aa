package output

import (
	"encoding/json"
	"io"
	"time"

	"github.com/kubesage/k8s-resource-advisor/pkg/costing"
	"github.com/kubesage/k8s-resource-advisor/pkg/models"
)

// JSONHandler renders the machine-readable view. Quantities are emitted in
// kubectl form ("240m", "256Mi") so downstream tooling can apply them as-is.
type JSONHandler struct {
	w   io.Writer
	est *costing.Estimator
}

func NewJSON(w io.Writer, est *costing.Estimator) *JSONHandler {
	return &JSONHandler{w: w, est: est}
}

func (h *JSONHandler) Format() string { return "json" }

type jsonDocument struct {
	RunID      string    `json:"run_id"`
	Source     string    `json:"source"`
	Namespace  string    `json:"namespace,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Analyzed   int       `json:"analyzed"`
	Skipped    int       `json:"skipped"`

	PricingBasis        string  `json:"pricing_basis,omitempty"`
	TotalMonthlySavings float64 `json:"total_monthly_savings_usd"`

	Workloads []jsonWorkload `json:"workloads"`
}

type jsonWorkload struct {
	Workload    string `json:"workload"`
	Kind        string `json:"kind,omitempty"`
	Problematic bool   `json:"problematic,omitempty"`

	Recommendations []jsonRecommendation `json:"recommendations,omitempty"`
	Failures        []jsonFailure        `json:"failures,omitempty"`

	Command string `json:"command,omitempty"`
}

type jsonRecommendation struct {
	Dimension          string                  `json:"dimension"`
	CurrentRequest     string                  `json:"current_request,omitempty"`
	CurrentLimit       string                  `json:"current_limit,omitempty"`
	RecommendedRequest string                  `json:"recommended_request"`
	RecommendedLimit   string                  `json:"recommended_limit"`
	Confidence         float64                 `json:"confidence"`
	Model              string                  `json:"model,omitempty"`
	MonthlySavingsUSD  *float64                `json:"monthly_savings_usd,omitempty"`
	Rationale          []models.RationaleEntry `json:"rationale,omitempty"`
}

type jsonFailure struct {
	Dimension string `json:"dimension"`
	Reason    string `json:"reason"`
}

func (h *JSONHandler) Render(summary *models.RunSummary) error {
	doc := jsonDocument{
		RunID:               summary.RunID,
		Source:              summary.Source,
		Namespace:           summary.Namespace,
		StartedAt:           summary.StartedAt,
		FinishedAt:          summary.FinishedAt,
		Analyzed:            summary.Analyzed,
		Skipped:             summary.Skipped,
		PricingBasis:        pricingBasis(h.est),
		TotalMonthlySavings: totalSavings(h.est, summary),
		Workloads:           []jsonWorkload{},
	}

	for _, group := range groupByWorkload(summary) {
		w := jsonWorkload{
			Workload:    group.workload.ID(),
			Kind:        group.workload.Kind,
			Problematic: group.problematic(),
			Command:     Command(group.workload, group.recommendations()),
		}

		for _, report := range group.reports {
			if !report.Recommended() {
				w.Failures = append(w.Failures, jsonFailure{
					Dimension: string(report.Dimension),
					Reason:    report.FailureReason,
				})
				continue
			}

			rec := report.Recommendation
			row := jsonRecommendation{
				Dimension:          string(report.Dimension),
				RecommendedRequest: formatValue(rec.RecommendedRequest, report.Dimension),
				RecommendedLimit:   formatValue(rec.RecommendedLimit, report.Dimension),
				Confidence:         rec.Confidence,
				Model:              modelName(report),
				Rationale:          rec.Rationale,
			}
			if report.Current.Request > 0 {
				row.CurrentRequest = formatValue(report.Current.Request, report.Dimension)
			}
			if report.Current.Limit > 0 {
				row.CurrentLimit = formatValue(report.Current.Limit, report.Dimension)
			}
			if saved, ok := rowSavings(h.est, report); ok {
				row.MonthlySavingsUSD = &saved
			}
			w.Recommendations = append(w.Recommendations, row)
		}

		doc.Workloads = append(doc.Workloads, w)
	}

	encoder := json.NewEncoder(h.w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(doc)
}
