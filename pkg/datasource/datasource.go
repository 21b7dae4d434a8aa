package datasource

import (
	"context"
	"time"

	"github.com/kubesage/k8s-resource-advisor/pkg/models"
)

// DataSource supplies raw usage series and health events for workloads.
// Implementations must return series ordered by time with non-negative
// values; the processor rejects anything else.
type DataSource interface {
	FetchSeries(ctx context.Context, workload models.Workload, dimension models.ResourceDimension, window time.Duration) (models.MetricSeries, error)
	FetchHealthEvents(ctx context.Context, workload models.Workload, window time.Duration) (models.HealthEvents, error)
	ListWorkloads(ctx context.Context, namespace string) ([]models.Workload, error)
	IsAvailable(ctx context.Context) bool
	Name() string
}

// Collector is implemented by sources that gather their data up front. The
// CLI runs Collect before analysis so fetches never block on ingestion.
type Collector interface {
	Collect(ctx context.Context) error
}

// Config carries connection settings for the source implementations.
type Config struct {
	PrometheusURL string
	Timeout       time.Duration

	// File replay settings.
	MetricsFile string
	HealthFile  string
	RunDate     time.Time

	// Live cluster sampling settings.
	SampleInterval time.Duration
	SampleDuration time.Duration
}
