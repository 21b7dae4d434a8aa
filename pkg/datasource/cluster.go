package datasource

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kubesage/k8s-resource-advisor/pkg/kube"
	"github.com/kubesage/k8s-resource-advisor/pkg/models"
)

const (
	defaultSampleInterval = 30 * time.Second
	defaultSampleDuration = 10 * time.Minute
)

// ClusterSampler is the slice of the cluster client the live source needs.
type ClusterSampler interface {
	SamplePods(ctx context.Context, namespace string) ([]kube.PodSample, error)
	HealthEventsFor(ctx context.Context, w models.Workload, window time.Duration) (models.HealthEvents, error)
	Ping(ctx context.Context) (string, error)
}

// ClusterSource samples metrics.k8s.io for a bounded duration and then
// serves the collected series through the standard source contract. Without
// a metrics history store this is the only way to obtain a usage series
// from a bare cluster, so the analysis window equals the sampling window.
type ClusterSource struct {
	client    ClusterSampler
	namespace string
	interval  time.Duration
	duration  time.Duration

	mu      sync.Mutex
	sampled bool
	started time.Time
	loadErr error
	acc     *accumulator
	kinds   map[string]string
}

// NewClusterSource samples cfg.SampleDuration worth of data at
// cfg.SampleInterval once Collect runs.
func NewClusterSource(client ClusterSampler, namespace string, cfg Config) *ClusterSource {
	interval := cfg.SampleInterval
	if interval <= 0 {
		interval = defaultSampleInterval
	}
	duration := cfg.SampleDuration
	if duration <= 0 {
		duration = defaultSampleDuration
	}
	return &ClusterSource{
		client:    client,
		namespace: namespace,
		interval:  interval,
		duration:  duration,
		acc:       newAccumulator(),
		kinds:     make(map[string]string),
	}
}

// Collect runs the sampling loop. It blocks for the configured duration and
// is safe to call once; later calls return the first outcome.
func (s *ClusterSource) Collect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sampled {
		return s.loadErr
	}
	s.sampled = true
	s.started = time.Now().UTC()
	s.loadErr = s.sample(ctx)
	return s.loadErr
}

func (s *ClusterSource) sample(ctx context.Context) error {
	slog.Info("sampling cluster usage",
		slog.String("namespace", s.namespace),
		slog.Duration("interval", s.interval),
		slog.Duration("duration", s.duration),
	)

	deadline := time.Now().Add(s.duration)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		samples, err := s.client.SamplePods(ctx, s.namespace)
		if err != nil {
			return fmt.Errorf("sample pods: %w", err)
		}
		for _, sample := range samples {
			ts := sample.Timestamp.UTC().Truncate(time.Second)
			s.acc.addUsage(sample.Workload, ts, float64(sample.CPUMillicores), float64(sample.MemoryBytes))
			s.acc.addStatus(sample.Workload, sample.Pod, sample.Status, sample.Restarts, ts)
			if sample.Kind != "" {
				s.kinds[sample.Workload] = sample.Kind
			}
		}

		if !time.Now().Before(deadline) {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}

	s.acc.finalize()
	return nil
}

func (s *ClusterSource) FetchSeries(_ context.Context, w models.Workload, dim models.ResourceDimension, window time.Duration) (models.MetricSeries, error) {
	if err := s.ensure(); err != nil {
		return models.MetricSeries{}, err
	}
	return s.acc.series(w, dim, window), nil
}

// FetchHealthEvents combines events observed while sampling with the pods'
// last-termination history, which reaches back before sampling started.
// History events from the sampling period itself are dropped to avoid
// double counting.
func (s *ClusterSource) FetchHealthEvents(ctx context.Context, w models.Workload, window time.Duration) (models.HealthEvents, error) {
	if err := s.ensure(); err != nil {
		return models.HealthEvents{}, err
	}
	events := s.acc.healthEvents(w)

	history, err := s.client.HealthEventsFor(ctx, w, window)
	if err != nil {
		return models.HealthEvents{}, fmt.Errorf("fetch pod status history: %w", err)
	}
	for _, r := range history.Restarts {
		if r.Timestamp.Before(s.started) {
			events.Restarts = append(events.Restarts, r)
		}
	}
	for _, o := range history.OOMs {
		if o.Timestamp.Before(s.started) {
			events.OOMs = append(events.OOMs, o)
		}
	}
	// Live crash loops were already seen by the sampler.
	return events, nil
}

func (s *ClusterSource) ListWorkloads(_ context.Context, namespace string) ([]models.Workload, error) {
	if err := s.ensure(); err != nil {
		return nil, err
	}
	return s.acc.workloads(namespace, s.kinds), nil
}

func (s *ClusterSource) IsAvailable(ctx context.Context) bool {
	_, err := s.client.Ping(ctx)
	return err == nil
}

func (s *ClusterSource) Name() string {
	return "cluster"
}

func (s *ClusterSource) ensure() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.sampled {
		return fmt.Errorf("cluster source has no data: Collect was not run")
	}
	return s.loadErr
}
