package kube

import (
	"fmt"
	"os"
	"strings"

	"github.com/kubesage/k8s-resource-advisor/pkg/quantity"
)

// Recorder appends pod samples to a metrics log and a health log in the
// line formats the file source replays:
//
//	[14:23:01] api-7f8d9c5b4-x2k8p 393m 256Mi
//	[14:23:01] api-7f8d9c5b4-x2k8p Running 3
type Recorder struct {
	metricsPath string
	healthPath  string
}

func NewRecorder(metricsPath, healthPath string) *Recorder {
	return &Recorder{metricsPath: metricsPath, healthPath: healthPath}
}

// WriteSamples appends one line per sample to both logs. Files are opened
// per call so a long collection survives rotation and crashes lose at most
// one tick.
func (r *Recorder) WriteSamples(samples []PodSample) error {
	var metrics, health strings.Builder
	for _, s := range samples {
		stamp := s.Timestamp.UTC().Format("15:04:05")
		fmt.Fprintf(&metrics, "[%s] %s %s %s\n",
			stamp, s.Pod, quantity.FormatCPU(s.CPUMillicores), quantity.FormatMemory(s.MemoryBytes))
		status := s.Status
		if status == "" {
			status = "Unknown"
		}
		fmt.Fprintf(&health, "[%s] %s %s %d\n", stamp, s.Pod, status, s.Restarts)
	}

	if err := appendFile(r.metricsPath, metrics.String()); err != nil {
		return fmt.Errorf("append metrics log: %w", err)
	}
	if err := appendFile(r.healthPath, health.String()); err != nil {
		return fmt.Errorf("append health log: %w", err)
	}
	return nil
}

func appendFile(path, content string) error {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := file.WriteString(content); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
