// Package quantity converts between Kubernetes resource strings and the
// numeric units the engine works in: millicores for CPU, bytes for memory.
package quantity

import (
	"fmt"

	"k8s.io/apimachinery/pkg/api/resource"
)

const mi = int64(1024 * 1024)

// ParseCPU converts a CPU quantity ("393m", "2", "0.5") to millicores.
func ParseCPU(s string) (int64, error) {
	q, err := resource.ParseQuantity(s)
	if err != nil {
		return 0, fmt.Errorf("parse cpu quantity %q: %w", s, err)
	}
	mc := q.MilliValue()
	if mc < 0 {
		return 0, fmt.Errorf("parse cpu quantity %q: negative value", s)
	}
	return mc, nil
}

// ParseMemory converts a memory quantity ("256Mi", "1Gi", "1048576") to bytes.
func ParseMemory(s string) (int64, error) {
	q, err := resource.ParseQuantity(s)
	if err != nil {
		return 0, fmt.Errorf("parse memory quantity %q: %w", s, err)
	}
	b := q.Value()
	if b < 0 {
		return 0, fmt.Errorf("parse memory quantity %q: negative value", s)
	}
	return b, nil
}

// FormatCPU renders millicores in the "393m" form kubectl accepts.
func FormatCPU(millicores int64) string {
	if millicores < 0 {
		millicores = 0
	}
	return fmt.Sprintf("%dm", millicores)
}

// FormatMemory renders bytes as whole mebibytes, rounded up so a formatted
// limit never ends below the value it was computed from.
func FormatMemory(bytes int64) string {
	if bytes < 0 {
		bytes = 0
	}
	return fmt.Sprintf("%dMi", (bytes+mi-1)/mi)
}
