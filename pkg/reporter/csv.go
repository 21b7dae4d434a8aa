package reporter

import (
	"encoding/csv"
	"fmt"
	"io"
)

// WriteCSV creates a CSV report: one row per workload+dimension, followed by
// a summary block.
func WriteCSV(report *Report, writer io.Writer) error {
	w := csv.NewWriter(writer)
	defer w.Flush()

	header := []string{
		"Namespace",
		"Workload",
		"Kind",
		"Dimension",
		"Current Request",
		"Current Limit",
		"Recommended Request",
		"Recommended Limit",
		"Confidence",
		"Model",
		"Est. Monthly Savings ($)",
		"Notes",
	}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write CSV header: %w", err)
	}

	for _, row := range report.Rows {
		record := []string{
			row.Namespace,
			row.Workload,
			row.Kind,
			string(row.Dimension),
		}

		if row.Recommended() {
			savings := ""
			if row.HasSavings {
				savings = fmt.Sprintf("%.2f", row.MonthlySavings)
			}
			record = append(record,
				row.CurrentRequest,
				row.CurrentLimit,
				row.RecommendedRequest,
				row.RecommendedLimit,
				row.ConfidencePercent(),
				row.Model,
				savings,
				row.Rationale,
			)
		} else {
			record = append(record,
				row.CurrentRequest,
				row.CurrentLimit,
				"", "", "", "", "",
				"no recommendation: "+row.FailureReason,
			)
		}

		if err := w.Write(record); err != nil {
			return fmt.Errorf("write CSV row: %w", err)
		}
	}

	w.Write([]string{})
	w.Write([]string{"SUMMARY"})
	w.Write([]string{"Workloads", fmt.Sprintf("%d", report.WorkloadCount)})
	w.Write([]string{"Recommended", fmt.Sprintf("%d", report.RecommendedCount)})
	w.Write([]string{"Skipped", fmt.Sprintf("%d", report.SkippedCount)})
	w.Write([]string{"Total Est. Monthly Savings", fmt.Sprintf("$%.2f", report.TotalMonthlySavings)})
	if report.PricingBasis != "" {
		w.Write([]string{"Pricing Basis", report.PricingBasis})
	}

	return nil
}
