// Package advisor runs the recommendation pipeline across workloads. Each
// workload+dimension flows through fetch, cleaning, health analysis and
// forecasting (the latter two concurrently), then the policy decision.
// Pipelines share nothing; one workload failing never blocks another.
package advisor

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kubesage/k8s-resource-advisor/pkg/datasource"
	"github.com/kubesage/k8s-resource-advisor/pkg/forecast"
	"github.com/kubesage/k8s-resource-advisor/pkg/health"
	"github.com/kubesage/k8s-resource-advisor/pkg/models"
	"github.com/kubesage/k8s-resource-advisor/pkg/policy"
	"github.com/kubesage/k8s-resource-advisor/pkg/processor"
)

// AllocationResolver reports the currently configured request/limit for one
// workload dimension. A zero AllocationContext means the allocation is
// unknown; errors are reserved for lookup failures.
type AllocationResolver interface {
	AllocationFor(ctx context.Context, workload models.Workload, dimension models.ResourceDimension) (models.AllocationContext, error)
}

// Config assembles the engine settings and the per-component configurations
// derived from them.
type Config struct {
	Namespace string

	// Window is the lookback over which series are fetched and analyzed.
	Window time.Duration

	// Horizon is how far past the window end the forecaster projects.
	Horizon time.Duration

	// FitTimeout bounds model fitting. On expiry the forecaster takes the
	// deterministic trailing-percentile fallback.
	FitTimeout time.Duration

	// ProblematicWindow is how far back restarts and crash loops mark a
	// workload as problematic in the run summary.
	ProblematicWindow time.Duration

	// Workers caps concurrent workload pipelines. Zero means
	// min(8, GOMAXPROCS).
	Workers int

	Dimensions []models.ResourceDimension

	Processor processor.Config
	Forecast  forecast.Config
	Health    map[models.ResourceDimension]health.Config
	Policy    map[models.ResourceDimension]policy.Config

	// PolicyFor optionally overrides Policy per workload, e.g. to keep
	// extra headroom for stateful kinds. Nil applies Policy[dimension] to
	// every workload.
	PolicyFor func(w models.Workload, dim models.ResourceDimension) policy.Config
}

func (c Config) normalized() Config {
	if c.Window <= 0 {
		c.Window = 24 * time.Hour
	}
	if c.Horizon <= 0 {
		c.Horizon = time.Hour
	}
	if c.FitTimeout <= 0 {
		c.FitTimeout = 5 * time.Second
	}
	if c.ProblematicWindow <= 0 {
		c.ProblematicWindow = 2 * time.Hour
	}
	if len(c.Dimensions) == 0 {
		c.Dimensions = []models.ResourceDimension{models.DimensionCPU, models.DimensionMemory}
	}
	if c.Workers <= 0 {
		c.Workers = defaultWorkers()
	}
	return c
}

func defaultWorkers() int {
	n := runtime.GOMAXPROCS(0)
	if n > 8 {
		n = 8
	}
	if n < 1 {
		n = 1
	}
	return n
}

// Engine wires the source and the analysis components into runnable
// pipelines.
type Engine struct {
	source     datasource.DataSource
	alloc      AllocationResolver
	proc       *processor.Processor
	forecaster forecast.Forecaster
	analyzers  map[models.ResourceDimension]*health.Analyzer
	policies   map[models.ResourceDimension]*policy.Policy
	cfg        Config
}

// New builds an engine from the source, allocation resolver and config.
func New(source datasource.DataSource, alloc AllocationResolver, cfg Config) *Engine {
	cfg = cfg.normalized()

	e := &Engine{
		source:     source,
		alloc:      alloc,
		proc:       processor.New(cfg.Processor),
		forecaster: forecast.New(cfg.Forecast),
		analyzers:  make(map[models.ResourceDimension]*health.Analyzer, len(cfg.Dimensions)),
		policies:   make(map[models.ResourceDimension]*policy.Policy, len(cfg.Dimensions)),
		cfg:        cfg,
	}
	for _, dim := range cfg.Dimensions {
		e.analyzers[dim] = health.New(cfg.Health[dim])
		e.policies[dim] = policy.New(cfg.Policy[dim])
	}
	return e
}

// Run analyzes every workload across the configured dimensions and returns
// the assembled summary. Reports are sorted by workload then dimension so
// identical inputs produce identical output regardless of scheduling.
func (e *Engine) Run(ctx context.Context, workloads []models.Workload) (*models.RunSummary, error) {
	summary := &models.RunSummary{
		RunID:     uuid.New().String(),
		Source:    e.source.Name(),
		Namespace: e.cfg.Namespace,
		StartedAt: time.Now().UTC(),
	}

	slog.Info("analysis run started",
		slog.String("run_id", summary.RunID),
		slog.String("source", summary.Source),
		slog.Int("workloads", len(workloads)),
		slog.Duration("window", e.cfg.Window),
		slog.Duration("horizon", e.cfg.Horizon),
	)

	jobCh := make(chan models.Workload)
	reportCh := make(chan models.WorkloadReport, len(workloads)*len(e.cfg.Dimensions))

	var wg sync.WaitGroup
	for i := 0; i < e.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for w := range jobCh {
				for _, report := range e.analyzeWorkload(ctx, w) {
					reportCh <- report
				}
			}
		}()
	}

	go func() {
		defer close(jobCh)
		for _, w := range workloads {
			select {
			case <-ctx.Done():
				return
			case jobCh <- w:
			}
		}
	}()

	wg.Wait()
	close(reportCh)

	for report := range reportCh {
		summary.Reports = append(summary.Reports, report)
		if report.Recommended() {
			summary.Analyzed++
		} else {
			summary.Skipped++
		}
	}
	sort.Slice(summary.Reports, func(i, j int) bool {
		a, b := summary.Reports[i], summary.Reports[j]
		if a.Workload.ID() != b.Workload.ID() {
			return a.Workload.ID() < b.Workload.ID()
		}
		return a.Dimension < b.Dimension
	})
	summary.FinishedAt = time.Now().UTC()

	slog.Info("analysis run finished",
		slog.String("run_id", summary.RunID),
		slog.Int("analyzed", summary.Analyzed),
		slog.Int("skipped", summary.Skipped),
		slog.Duration("elapsed", summary.FinishedAt.Sub(summary.StartedAt)),
	)

	if err := ctx.Err(); err != nil {
		return summary, err
	}
	return summary, nil
}

// analyzeWorkload runs every dimension pipeline for one workload. Panics are
// contained here so a bad workload cannot take down the batch.
func (e *Engine) analyzeWorkload(ctx context.Context, w models.Workload) (reports []models.WorkloadReport) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("workload pipeline panic",
				slog.String("workload", w.ID()),
				slog.String("panic", fmt.Sprint(r)),
			)
			reports = e.failAllDimensions(w, fmt.Sprintf("internal error: %v", r))
		}
	}()

	events, err := e.source.FetchHealthEvents(ctx, w, e.cfg.Window)
	if err != nil {
		return e.failAllDimensions(w, fmt.Sprintf("fetch health events: %v", err))
	}

	for _, dim := range e.cfg.Dimensions {
		reports = append(reports, e.analyzeDimension(ctx, w, dim, events))
	}
	return reports
}

func (e *Engine) analyzeDimension(ctx context.Context, w models.Workload, dim models.ResourceDimension, events models.HealthEvents) models.WorkloadReport {
	report := models.WorkloadReport{Workload: &w, Dimension: dim}

	series, err := e.source.FetchSeries(ctx, w, dim, e.cfg.Window)
	if err != nil {
		return e.failed(report, fmt.Sprintf("fetch series: %v", err))
	}

	cleaned, err := e.proc.Process(series, e.cfg.Window)
	if err != nil {
		return e.failed(report, err.Error())
	}
	report.Stats = cleaned.Stats
	report.Problematic = events.ProblematicWithin(e.cfg.ProblematicWindow, cleaned.WindowEnd)

	// Health and forecast are independent once the series is cleaned.
	var (
		alloc     models.AllocationContext
		signal    *models.HealthSignal
		healthErr error
		fc        *models.ForecastResult
		fcErr     error
	)
	var group sync.WaitGroup
	group.Add(2)
	go func() {
		defer group.Done()
		var resolveErr error
		alloc, resolveErr = e.alloc.AllocationFor(ctx, w, dim)
		if resolveErr != nil {
			healthErr = fmt.Errorf("resolve allocation: %w", resolveErr)
			return
		}
		signal, healthErr = e.analyzers[dim].Analyze(cleaned, events, alloc)
	}()
	go func() {
		defer group.Done()
		fitCtx, cancel := context.WithTimeout(ctx, e.cfg.FitTimeout)
		defer cancel()
		fc, fcErr = e.forecaster.Forecast(fitCtx, cleaned, e.cfg.Horizon)
	}()
	group.Wait()

	report.Current = alloc
	if healthErr != nil {
		return e.failed(report, healthErr.Error())
	}
	if fcErr != nil {
		return e.failed(report, fcErr.Error())
	}
	report.Health = signal
	report.Forecast = fc

	pol := e.policies[dim]
	if e.cfg.PolicyFor != nil {
		pol = policy.New(e.cfg.PolicyFor(w, dim))
	}
	rec, err := pol.Recommend(cleaned, signal, fc)
	if err != nil {
		if models.IsPolicyViolation(err) {
			slog.Error("policy invariant violated",
				slog.String("workload", w.ID()),
				slog.String("dimension", string(dim)),
				slog.String("stats", fmt.Sprintf("%+v", cleaned.Stats)),
				slog.String("health", fmt.Sprintf("%+v", *signal)),
				slog.String("forecast", fmt.Sprintf("%+v", *fc)),
				slog.String("error", err.Error()),
			)
		}
		return e.failed(report, err.Error())
	}
	report.Recommendation = rec

	slog.Debug("workload analyzed",
		slog.String("workload", w.ID()),
		slog.String("dimension", string(dim)),
		slog.Float64("request", rec.RecommendedRequest),
		slog.Float64("limit", rec.RecommendedLimit),
		slog.Float64("confidence", rec.Confidence),
	)
	return report
}

func (e *Engine) failed(report models.WorkloadReport, reason string) models.WorkloadReport {
	report.FailureReason = reason
	slog.Warn("no recommendation",
		slog.String("workload", report.Workload.ID()),
		slog.String("dimension", string(report.Dimension)),
		slog.String("reason", reason),
	)
	return report
}

func (e *Engine) failAllDimensions(w models.Workload, reason string) []models.WorkloadReport {
	reports := make([]models.WorkloadReport, 0, len(e.cfg.Dimensions))
	for _, dim := range e.cfg.Dimensions {
		reports = append(reports, e.failed(models.WorkloadReport{Workload: &w, Dimension: dim}, reason))
	}
	return reports
}
