package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/kubesage/k8s-resource-advisor/pkg/models"
)

// Command builds the kubectl invocation that applies a workload's
// recommendations. Returns "" when nothing can be applied: no recommended
// values, or a bare pod whose resources cannot be patched in place.
func Command(w *models.Workload, recs map[models.ResourceDimension]*models.Recommendation) string {
	if len(recs) == 0 {
		return ""
	}

	kind := strings.ToLower(w.Kind)
	if kind == "" {
		kind = "deployment"
	}
	if kind == "pod" {
		return ""
	}

	var requests, limits []string
	for _, dim := range []models.ResourceDimension{models.DimensionCPU, models.DimensionMemory} {
		rec, ok := recs[dim]
		if !ok {
			continue
		}
		requests = append(requests, fmt.Sprintf("%s=%s", dim, formatValue(rec.RecommendedRequest, dim)))
		if rec.RecommendedLimit > 0 {
			limits = append(limits, fmt.Sprintf("%s=%s", dim, formatValue(rec.RecommendedLimit, dim)))
		}
	}
	if len(requests) == 0 {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "kubectl set resources %s %s", kind, w.Name)
	if w.Namespace != "" {
		fmt.Fprintf(&b, " -n %s", w.Namespace)
	}
	fmt.Fprintf(&b, " --requests=%s", strings.Join(requests, ","))
	if len(limits) > 0 {
		fmt.Fprintf(&b, " --limits=%s", strings.Join(limits, ","))
	}
	return b.String()
}

// CommandsHandler prints one kubectl command per workload, suitable for
// piping to a shell. Workloads without an applicable command become comment
// lines so nothing silently disappears from the stream.
type CommandsHandler struct {
	w io.Writer
}

func NewCommands(w io.Writer) *CommandsHandler {
	return &CommandsHandler{w: w}
}

func (h *CommandsHandler) Format() string { return "commands" }

func (h *CommandsHandler) Render(summary *models.RunSummary) error {
	for _, group := range groupByWorkload(summary) {
		cmd := Command(group.workload, group.recommendations())
		if cmd != "" {
			if _, err := fmt.Fprintln(h.w, cmd); err != nil {
				return err
			}
			continue
		}

		reason := "nothing to apply"
		for _, report := range group.reports {
			if report.FailureReason != "" {
				reason = report.FailureReason
				break
			}
		}
		if strings.EqualFold(group.workload.Kind, "pod") {
			reason = "bare pod, resize requires recreation"
		}
		if _, err := fmt.Fprintf(h.w, "# %s: %s\n", group.workload.ID(), reason); err != nil {
			return err
		}
	}
	return nil
}
