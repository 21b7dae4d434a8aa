package models

import (
	"fmt"
	"time"
)

// Workload represents a Kubernetes workload under analysis
type Workload struct {
	Namespace string
	Name      string
	Kind      string // Deployment, StatefulSet, DaemonSet, Pod
	Container string
	ClusterID string
}

// ID returns the stable identifier used across series, signals and
// recommendations.
func (w *Workload) ID() string {
	if w.Namespace == "" {
		return w.Name
	}
	return fmt.Sprintf("%s/%s", w.Namespace, w.Name)
}

// AllocationContext is a workload's currently configured allocation for one
// resource dimension. A zero field means the value is not set on the cluster,
// not that it is zero.
type AllocationContext struct {
	Request float64
	Limit   float64
}

// Ceiling returns the reference allocation for saturation analysis: the
// limit when set, otherwise the request. ok is false when neither is known.
func (a AllocationContext) Ceiling() (float64, bool) {
	if a.Limit > 0 {
		return a.Limit, true
	}
	if a.Request > 0 {
		return a.Request, true
	}
	return 0, false
}

// RestartEvent is one observed container restart.
type RestartEvent struct {
	Timestamp time.Time
	Pod       string
}

// OOMEvent is one observed out-of-memory termination.
type OOMEvent struct {
	Timestamp time.Time
	Pod       string
}

// CrashLoopEvent is one observed CrashLoopBackOff waiting state.
type CrashLoopEvent struct {
	Timestamp time.Time
	Pod       string
}

// HealthEvents carries the restart and OOM logs an ingestion source observed
// for one workload over the lookback window.
type HealthEvents struct {
	Restarts   []RestartEvent
	OOMs       []OOMEvent
	CrashLoops []CrashLoopEvent
}

// ProblematicWithin reports whether the workload showed restarts or crash
// looping inside the recent window ending at ref.
func (h HealthEvents) ProblematicWithin(window time.Duration, ref time.Time) bool {
	cutoff := ref.Add(-window)
	for _, r := range h.Restarts {
		if !r.Timestamp.Before(cutoff) {
			return true
		}
	}
	for _, c := range h.CrashLoops {
		if !c.Timestamp.Before(cutoff) {
			return true
		}
	}
	return false
}
