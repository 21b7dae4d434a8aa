package datasource

import (
	"sort"
	"time"

	"github.com/kubesage/k8s-resource-advisor/pkg/models"
)

// accumulator builds per-workload series and health events from streamed pod
// observations. The file and cluster sources share it so replayed logs and
// live sampling produce identical semantics.
type accumulator struct {
	usage        map[string]map[models.ResourceDimension][]models.MetricPoint
	events       map[string]*models.HealthEvents
	lastRestarts map[string]int
}

func newAccumulator() *accumulator {
	return &accumulator{
		usage:        make(map[string]map[models.ResourceDimension][]models.MetricPoint),
		events:       make(map[string]*models.HealthEvents),
		lastRestarts: make(map[string]int),
	}
}

func (a *accumulator) addUsage(workload string, ts time.Time, cpuMillicores, memoryBytes float64) {
	dims, ok := a.usage[workload]
	if !ok {
		dims = make(map[models.ResourceDimension][]models.MetricPoint, 2)
		a.usage[workload] = dims
	}
	dims[models.DimensionCPU] = append(dims[models.DimensionCPU], models.MetricPoint{Timestamp: ts, Value: cpuMillicores})
	dims[models.DimensionMemory] = append(dims[models.DimensionMemory], models.MetricPoint{Timestamp: ts, Value: memoryBytes})
}

// addStatus records one pod health observation. Status tokens map to OOM and
// crash-loop events; restart-count increases become restart events. The
// first observation of a pod only sets its baseline.
func (a *accumulator) addStatus(workload, pod, status string, restarts int, ts time.Time) {
	events := a.eventsFor(workload)
	switch status {
	case "OOMKilled":
		events.OOMs = append(events.OOMs, models.OOMEvent{Timestamp: ts, Pod: pod})
	case "CrashLoopBackOff":
		events.CrashLoops = append(events.CrashLoops, models.CrashLoopEvent{Timestamp: ts, Pod: pod})
	}
	if prev, seen := a.lastRestarts[pod]; seen && restarts > prev {
		for i := 0; i < restarts-prev; i++ {
			events.Restarts = append(events.Restarts, models.RestartEvent{Timestamp: ts, Pod: pod})
		}
	}
	a.lastRestarts[pod] = restarts
}

func (a *accumulator) eventsFor(workload string) *models.HealthEvents {
	if events, ok := a.events[workload]; ok {
		return events
	}
	events := &models.HealthEvents{}
	a.events[workload] = events
	return events
}

// finalize sorts each series and collapses duplicate timestamps from sibling
// replicas, keeping the maximum. Call once after ingestion ends.
func (a *accumulator) finalize() {
	for _, dims := range a.usage {
		for dim, points := range dims {
			sort.SliceStable(points, func(i, j int) bool {
				return points[i].Timestamp.Before(points[j].Timestamp)
			})
			merged := points[:0]
			for _, pt := range points {
				last := len(merged) - 1
				if last >= 0 && merged[last].Timestamp.Equal(pt.Timestamp) {
					if pt.Value > merged[last].Value {
						merged[last].Value = pt.Value
					}
					continue
				}
				merged = append(merged, pt)
			}
			dims[dim] = merged
		}
	}
}

// series returns the workload's points for one dimension, filtered to the
// trailing window ending at the last observation.
func (a *accumulator) series(workload models.Workload, dim models.ResourceDimension, window time.Duration) models.MetricSeries {
	series := models.MetricSeries{WorkloadID: workload.ID(), Dimension: dim}
	points := a.usage[workload.Name][dim]
	if len(points) == 0 {
		return series
	}
	cutoff := points[len(points)-1].Timestamp.Add(-window)
	for _, pt := range points {
		if pt.Timestamp.After(cutoff) {
			series.Points = append(series.Points, pt)
		}
	}
	return series
}

func (a *accumulator) healthEvents(workload models.Workload) models.HealthEvents {
	if events, ok := a.events[workload.Name]; ok {
		return *events
	}
	return models.HealthEvents{}
}

// workloads lists every accumulated workload name, sorted, stamped with the
// given namespace and kinds where known.
func (a *accumulator) workloads(namespace string, kinds map[string]string) []models.Workload {
	names := make([]string, 0, len(a.usage))
	for name := range a.usage {
		names = append(names, name)
	}
	sort.Strings(names)

	workloads := make([]models.Workload, 0, len(names))
	for _, name := range names {
		workloads = append(workloads, models.Workload{
			Namespace: namespace,
			Name:      name,
			Kind:      kinds[name],
		})
	}
	return workloads
}
