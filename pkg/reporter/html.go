package reporter

import (
	"fmt"
	"html/template"
	"io"
)

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Resource Advisor Report{{if .Namespace}} - {{.Namespace}}{{end}}</title>
    <style>
        * {
            margin: 0;
            padding: 0;
            box-sizing: border-box;
        }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif;
            background: #f5f7fa;
            color: #333;
            padding: 20px;
            line-height: 1.6;
        }
        .container {
            max-width: 1400px;
            margin: 0 auto;
            background: white;
            border-radius: 8px;
            box-shadow: 0 2px 8px rgba(0, 0, 0, 0.1);
            overflow: hidden;
        }
        .header {
            background: linear-gradient(135deg, #326ce5 0%, #1a4d8f 100%);
            color: white;
            padding: 40px;
        }
        .header h1 {
            font-size: 2.4em;
            margin-bottom: 12px;
        }
        .header .meta {
            opacity: 0.95;
            font-size: 1.05em;
        }
        .summary {
            display: grid;
            grid-template-columns: repeat(auto-fit, minmax(240px, 1fr));
            gap: 25px;
            padding: 40px;
            background: #f8f9fa;
        }
        .summary-card {
            background: white;
            padding: 28px;
            border-radius: 10px;
            border: 1px solid #e8eaed;
            box-shadow: 0 2px 8px rgba(0, 0, 0, 0.05);
        }
        .summary-card h3 {
            color: #5f6368;
            font-size: 0.8em;
            text-transform: uppercase;
            letter-spacing: 1.5px;
            margin-bottom: 12px;
            font-weight: 600;
        }
        .summary-card .value {
            font-size: 2.6em;
            font-weight: 700;
            color: #202124;
            line-height: 1;
        }
        .summary-card.savings {
            border-left: 6px solid #34a853;
        }
        .summary-card.savings .value {
            color: #34a853;
        }
        .summary-card.workloads {
            border-left: 6px solid #326ce5;
        }
        .summary-card.workloads .value {
            color: #326ce5;
        }
        .summary-card.skipped {
            border-left: 6px solid #fbbc04;
        }
        .summary-card.skipped .value {
            color: #fbbc04;
        }
        .section {
            padding: 40px;
        }
        .section h2 {
            font-size: 1.7em;
            margin-bottom: 24px;
            color: #202124;
        }
        .recommendations-table {
            width: 100%;
            border-collapse: separate;
            border-spacing: 0;
            background: white;
            border-radius: 8px;
            overflow: hidden;
            box-shadow: 0 2px 8px rgba(0, 0, 0, 0.05);
        }
        .recommendations-table th {
            background: #326ce5;
            color: white;
            padding: 14px 12px;
            text-align: left;
            font-weight: 600;
            font-size: 0.9em;
            text-transform: uppercase;
            letter-spacing: 0.5px;
        }
        .recommendations-table td {
            padding: 14px 12px;
            border-bottom: 1px solid #f0f2f4;
            vertical-align: top;
        }
        .recommendations-table tbody tr:last-child td {
            border-bottom: none;
        }
        .recommendations-table tr.no-rec td {
            color: #80868b;
            background: #fafbfc;
        }
        .kind {
            color: #5f6368;
            font-size: 0.85em;
        }
        .dim-badge {
            padding: 4px 10px;
            border-radius: 6px;
            font-size: 0.75em;
            font-weight: 700;
            text-transform: uppercase;
            letter-spacing: 0.5px;
            display: inline-block;
        }
        .dim-cpu {
            background: #e8f0fe;
            color: #1a73e8;
        }
        .dim-memory {
            background: #f3e8fd;
            color: #8430ce;
        }
        .conf-badge {
            padding: 4px 10px;
            border-radius: 6px;
            font-size: 0.8em;
            font-weight: 700;
            display: inline-block;
        }
        .conf-high {
            background: #e6f4ea;
            color: #1e8e3e;
        }
        .conf-medium {
            background: #fef7e0;
            color: #f9ab00;
        }
        .conf-low {
            background: #fce8e6;
            color: #d93025;
        }
        .savings-value {
            font-weight: 700;
            color: #34a853;
        }
        .notes {
            color: #5f6368;
            font-size: 0.9em;
        }
        .footer {
            background: #202124;
            color: #9aa0a6;
            padding: 28px 40px;
            text-align: center;
        }
        .footer strong {
            color: #fff;
        }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>Resource Advisor Report</h1>
            <div class="meta">
                <p><strong>Namespace:</strong> {{if .Namespace}}{{.Namespace}}{{else}}All Namespaces{{end}} | <strong>Source:</strong> {{.Source}}{{if .PricingBasis}} | <strong>Pricing:</strong> {{.PricingBasis}}{{end}}</p>
                <p><strong>Generated:</strong> {{.GeneratedAt.Format "January 2, 2006 15:04:05 MST"}}{{if .RunID}} | <strong>Run:</strong> {{.RunID}}{{end}}</p>
            </div>
        </div>

        <div class="summary">
            <div class="summary-card savings">
                <h3>Est. Monthly Savings</h3>
                <div class="value">${{printf "%.2f" .TotalMonthlySavings}}</div>
            </div>
            <div class="summary-card workloads">
                <h3>Workloads Analyzed</h3>
                <div class="value">{{.WorkloadCount}}</div>
            </div>
            <div class="summary-card workloads">
                <h3>Recommendations</h3>
                <div class="value">{{.RecommendedCount}}</div>
            </div>
            <div class="summary-card skipped">
                <h3>Skipped</h3>
                <div class="value">{{.SkippedCount}}</div>
            </div>
        </div>

        <div class="section">
            <h2>Recommendations</h2>
            <table class="recommendations-table">
                <thead>
                    <tr>
                        <th>Workload</th>
                        <th>Dimension</th>
                        <th>Current (req / limit)</th>
                        <th>Recommended (req / limit)</th>
                        <th>Confidence</th>
                        <th>Model</th>
                        <th>Savings / Month</th>
                        <th>Notes</th>
                    </tr>
                </thead>
                <tbody>
                    {{range .Rows}}
                    <tr{{if not .Recommended}} class="no-rec"{{end}}>
                        <td><strong>{{.Workload}}</strong>{{if .Kind}} <span class="kind">{{.Kind}}</span>{{end}}</td>
                        <td><span class="dim-badge dim-{{.Dimension}}">{{.Dimension}}</span></td>
                        <td>{{.CurrentDisplay}}</td>
                        {{if .Recommended}}
                        <td>{{.RecommendedDisplay}}</td>
                        <td><span class="conf-badge conf-{{.ConfidenceClass}}">{{.ConfidencePercent}}</span></td>
                        <td>{{.Model}}</td>
                        <td><span class="savings-value">{{.SavingsDisplay}}</span></td>
                        <td class="notes">{{.Rationale}}</td>
                        {{else}}
                        <td>-</td>
                        <td>-</td>
                        <td>-</td>
                        <td>-</td>
                        <td class="notes">no recommendation: {{.FailureReason}}</td>
                        {{end}}
                    </tr>
                    {{end}}
                </tbody>
            </table>
        </div>

        <div class="footer">
            <p>Generated by <strong>k8s-resource-advisor</strong></p>
        </div>
    </div>
</body>
</html>
`

// WriteHTML creates an HTML report.
func WriteHTML(report *Report, writer io.Writer) error {
	tmpl, err := template.New("report").Parse(htmlTemplate)
	if err != nil {
		return fmt.Errorf("parse template: %w", err)
	}
	if err := tmpl.Execute(writer, report); err != nil {
		return fmt.Errorf("execute template: %w", err)
	}
	return nil
}
