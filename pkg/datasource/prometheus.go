package datasource

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"

	"github.com/kubesage/k8s-resource-advisor/pkg/models"
)

const promStep = time.Minute

// PrometheusSource reads usage series and health events from a Prometheus
// server scraping cAdvisor and kube-state-metrics.
type PrometheusSource struct {
	api     v1.API
	url     string
	timeout time.Duration
}

// NewPrometheusSource connects to the server at cfg.PrometheusURL.
func NewPrometheusSource(cfg Config) (*PrometheusSource, error) {
	client, err := api.NewClient(api.Config{Address: cfg.PrometheusURL})
	if err != nil {
		return nil, fmt.Errorf("create Prometheus client: %w", err)
	}
	return &PrometheusSource{
		api:     v1.NewAPI(client),
		url:     cfg.PrometheusURL,
		timeout: cfg.Timeout,
	}, nil
}

// FetchSeries queries the trailing window at 1-minute resolution. CPU comes
// from the usage counter and is rate-converted to millicores per series
// before replicas are merged; memory is the working-set gauge in bytes.
// Replicas are merged by taking the per-timestamp maximum so the series
// reflects the busiest pod, which is what per-replica sizing must cover.
func (p *PrometheusSource) FetchSeries(ctx context.Context, w models.Workload, dim models.ResourceDimension, window time.Duration) (models.MetricSeries, error) {
	var query string
	switch dim {
	case models.DimensionCPU:
		query = fmt.Sprintf(`container_cpu_usage_seconds_total{%s}`, p.usageSelector(w))
	case models.DimensionMemory:
		query = fmt.Sprintf(`container_memory_working_set_bytes{%s}`, p.usageSelector(w))
	default:
		return models.MetricSeries{}, fmt.Errorf("unknown dimension %q", dim)
	}

	end := time.Now().UTC().Truncate(promStep)
	matrix, err := p.queryMatrix(ctx, query, v1.Range{Start: end.Add(-window), End: end, Step: promStep})
	if err != nil {
		return models.MetricSeries{}, err
	}

	merged := make(map[int64]float64)
	for _, series := range matrix {
		points := decodePoints(series)
		if dim == models.DimensionCPU {
			points = counterToRate(points)
		}
		for _, pt := range points {
			if pt.Value < 0 {
				continue
			}
			key := pt.Timestamp.Unix()
			if current, ok := merged[key]; !ok || pt.Value > current {
				merged[key] = pt.Value
			}
		}
	}

	keys := make([]int64, 0, len(merged))
	for key := range merged {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	points := make([]models.MetricPoint, 0, len(keys))
	for _, key := range keys {
		points = append(points, models.MetricPoint{Timestamp: time.Unix(key, 0).UTC(), Value: merged[key]})
	}
	return models.MetricSeries{WorkloadID: w.ID(), Dimension: dim, Points: points}, nil
}

// FetchHealthEvents derives restart, OOM and crash-loop events from
// kube-state-metrics counters and state gauges over the window.
func (p *PrometheusSource) FetchHealthEvents(ctx context.Context, w models.Workload, window time.Duration) (models.HealthEvents, error) {
	end := time.Now().UTC().Truncate(promStep)
	r := v1.Range{Start: end.Add(-window), End: end, Step: promStep}
	selector := p.podSelector(w)
	var events models.HealthEvents

	restarts, err := p.queryMatrix(ctx, fmt.Sprintf(`kube_pod_container_status_restarts_total{%s}`, selector), r)
	if err != nil {
		return events, fmt.Errorf("restart counter: %w", err)
	}
	for _, series := range restarts {
		pod := string(series.Metric["pod"])
		for _, ts := range counterIncreases(series) {
			events.Restarts = append(events.Restarts, models.RestartEvent{Timestamp: ts, Pod: pod})
		}
	}

	ooms, err := p.queryMatrix(ctx, fmt.Sprintf(`kube_pod_container_status_last_terminated_reason{%s,reason="OOMKilled"}`, selector), r)
	if err != nil {
		return events, fmt.Errorf("oom reason gauge: %w", err)
	}
	for _, series := range ooms {
		pod := string(series.Metric["pod"])
		for _, ts := range gaugeActivations(series) {
			events.OOMs = append(events.OOMs, models.OOMEvent{Timestamp: ts, Pod: pod})
		}
	}

	crashes, err := p.queryMatrix(ctx, fmt.Sprintf(`kube_pod_container_status_waiting_reason{%s,reason="CrashLoopBackOff"}`, selector), r)
	if err != nil {
		return events, fmt.Errorf("waiting reason gauge: %w", err)
	}
	for _, series := range crashes {
		pod := string(series.Metric["pod"])
		for _, ts := range gaugeActivations(series) {
			events.CrashLoops = append(events.CrashLoops, models.CrashLoopEvent{Timestamp: ts, Pod: pod})
		}
	}

	return events, nil
}

// ListWorkloads discovers workload names from the pods currently reporting
// usage in the namespace, grouped by trimming the replica hash suffix.
func (p *PrometheusSource) ListWorkloads(ctx context.Context, namespace string) ([]models.Workload, error) {
	query := fmt.Sprintf(`container_memory_working_set_bytes{namespace=%q,container!="POD",pod!=""}`, namespace)

	qctx, cancel := p.queryContext(ctx)
	defer cancel()
	result, warnings, err := p.api.Query(qctx, query, time.Now())
	if err != nil {
		return nil, fmt.Errorf("list workloads: %w", err)
	}
	logWarnings(warnings)

	vector, ok := result.(model.Vector)
	if !ok {
		return nil, fmt.Errorf("unexpected result type %T", result)
	}

	seen := make(map[string]bool)
	var workloads []models.Workload
	for _, sample := range vector {
		name := WorkloadFromPod(string(sample.Metric["pod"]))
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		workloads = append(workloads, models.Workload{Namespace: namespace, Name: name})
	}
	sort.Slice(workloads, func(i, j int) bool { return workloads[i].Name < workloads[j].Name })
	return workloads, nil
}

// IsAvailable checks if the server answers a trivial query.
func (p *PrometheusSource) IsAvailable(ctx context.Context) bool {
	qctx, cancel := p.queryContext(ctx)
	defer cancel()
	_, _, err := p.api.Query(qctx, "up", time.Now())
	return err == nil
}

func (p *PrometheusSource) Name() string {
	return "prometheus"
}

func (p *PrometheusSource) queryMatrix(ctx context.Context, query string, r v1.Range) (model.Matrix, error) {
	qctx, cancel := p.queryContext(ctx)
	defer cancel()

	result, warnings, err := p.api.QueryRange(qctx, query, r)
	if err != nil {
		return nil, fmt.Errorf("prometheus query failed: %w", err)
	}
	logWarnings(warnings)

	matrix, ok := result.(model.Matrix)
	if !ok {
		return nil, fmt.Errorf("unexpected result type %T", result)
	}
	return matrix, nil
}

func (p *PrometheusSource) queryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.timeout > 0 {
		return context.WithTimeout(ctx, p.timeout)
	}
	return context.WithCancel(ctx)
}

func (p *PrometheusSource) usageSelector(w models.Workload) string {
	if w.Container != "" {
		return fmt.Sprintf(`namespace=%q,pod=~%q,container=%q`, w.Namespace, w.Name+"-.*", w.Container)
	}
	return fmt.Sprintf(`namespace=%q,pod=~%q,container!="POD"`, w.Namespace, w.Name+"-.*")
}

func (p *PrometheusSource) podSelector(w models.Workload) string {
	return fmt.Sprintf(`namespace=%q,pod=~%q`, w.Namespace, w.Name+"-.*")
}

func logWarnings(warnings v1.Warnings) {
	if len(warnings) > 0 {
		slog.Debug("prometheus warnings", slog.Any("warnings", warnings))
	}
}

func decodePoints(series *model.SampleStream) []models.MetricPoint {
	points := make([]models.MetricPoint, 0, len(series.Values))
	for _, value := range series.Values {
		points = append(points, models.MetricPoint{
			Timestamp: value.Timestamp.Time().UTC(),
			Value:     float64(value.Value),
		})
	}
	return points
}

// counterToRate converts cumulative CPU seconds to a millicore rate. Counter
// resets produce negative diffs and are skipped.
func counterToRate(points []models.MetricPoint) []models.MetricPoint {
	if len(points) < 2 {
		return nil
	}
	rates := make([]models.MetricPoint, 0, len(points)-1)
	for i := 1; i < len(points); i++ {
		seconds := points[i].Timestamp.Sub(points[i-1].Timestamp).Seconds()
		if seconds <= 0 {
			continue
		}
		diff := points[i].Value - points[i-1].Value
		if diff < 0 {
			continue
		}
		rates = append(rates, models.MetricPoint{
			Timestamp: points[i].Timestamp,
			Value:     diff / seconds * 1000,
		})
	}
	return rates
}

// counterIncreases returns one timestamp per unit increase of a counter
// series, so a double restart between samples counts twice.
func counterIncreases(series *model.SampleStream) []time.Time {
	var times []time.Time
	for i := 1; i < len(series.Values); i++ {
		diff := int(series.Values[i].Value - series.Values[i-1].Value)
		for j := 0; j < diff; j++ {
			times = append(times, series.Values[i].Timestamp.Time().UTC())
		}
	}
	return times
}

// gaugeActivations returns the timestamps where a 0/1 state gauge turns on.
func gaugeActivations(series *model.SampleStream) []time.Time {
	var times []time.Time
	prev := 0.0
	for i, value := range series.Values {
		current := float64(value.Value)
		if current >= 1 && (i == 0 || prev < 1) {
			times = append(times, value.Timestamp.Time().UTC())
		}
		prev = current
	}
	return times
}
