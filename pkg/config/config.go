// Package config builds the tool configuration from defaults, an optional
// YAML file, environment variables and (in the CLI layer) flags, in that
// order of precedence. The engine itself never reads this package; it
// receives small immutable per-component structs derived from Config.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kubesage/k8s-resource-advisor/pkg/advisor"
	"github.com/kubesage/k8s-resource-advisor/pkg/datasource"
	"github.com/kubesage/k8s-resource-advisor/pkg/forecast"
	"github.com/kubesage/k8s-resource-advisor/pkg/health"
	"github.com/kubesage/k8s-resource-advisor/pkg/models"
	"github.com/kubesage/k8s-resource-advisor/pkg/policy"
	"github.com/kubesage/k8s-resource-advisor/pkg/processor"
	"github.com/kubesage/k8s-resource-advisor/pkg/quantity"
)

// DefaultConfigFile is looked up in the working directory when no explicit
// path is given.
const DefaultConfigFile = ".resource-advisor.yaml"

// AllocationSpec is a request/limit pair in Kubernetes quantity notation,
// used to supply allocation context for file-replay runs.
type AllocationSpec struct {
	Request string `yaml:"request"`
	Limit   string `yaml:"limit"`
}

// Config holds the full tool configuration.
type Config struct {
	// Source selection
	Source        string // prometheus, cluster, file
	Namespace     string
	PrometheusURL string
	QueryTimeout  time.Duration
	Kubeconfig    string
	MetricsFile   string
	HealthFile    string
	RunDate       string // YYYY-MM-DD, date of the replayed metric log

	// Live sampling (cluster source and the collect command)
	SampleInterval time.Duration
	SampleDuration time.Duration

	// Analysis
	Lookback          time.Duration
	Horizon           time.Duration
	FitTimeout        time.Duration
	ProblematicWindow time.Duration
	Concurrency       int

	// Cleaning
	MaxGapForFill  time.Duration
	MinValidPoints int
	OutlierZ       float64

	// Health
	AnomalyK             float64
	AnomalyMergeGap      time.Duration
	CPUThrottleThreshold string // quantity, e.g. "380m"; empty disables

	// Policy
	HeadroomRequest        float64
	HeadroomLimit          float64
	MinCPURequest          string // quantity, e.g. "25m"
	MinMemoryRequest       string // quantity, e.g. "50Mi"
	OOMSafetyMargin        float64
	ThrottleRatioThreshold float64
	ThrottleBlendFactor    float64
	ConfidenceLevel        float64

	// Allocation context for file runs: workload ID (or "default") to
	// dimension name to quantity pair.
	Allocations map[string]map[string]AllocationSpec

	// Storage
	StorageEnabled bool
	DatabaseURL    string

	// Output
	OutputFormat string // text, json, csv, html, commands
	Verbose      bool

	// Preset records the last tuning profile applied, if any. Run snapshots
	// store it next to the knobs it set.
	Preset string
}

// NewConfig returns the defaults overlaid with environment variables.
func NewConfig() *Config {
	cfg := &Config{
		Source:        "prometheus",
		Namespace:     "default",
		PrometheusURL: getEnv("PROMETHEUS_URL", "http://localhost:9090"),
		QueryTimeout:  30 * time.Second,

		SampleInterval: 30 * time.Second,
		SampleDuration: 10 * time.Minute,

		Lookback:          getEnvDuration("LOOKBACK_WINDOW", 7*24*time.Hour),
		Horizon:           getEnvDuration("FORECAST_HORIZON", time.Hour),
		FitTimeout:        5 * time.Second,
		ProblematicWindow: 2 * time.Hour,

		MaxGapForFill:  5 * time.Minute,
		MinValidPoints: 10,
		OutlierZ:       4.0,

		AnomalyK:        3.0,
		AnomalyMergeGap: 5 * time.Minute,

		HeadroomRequest:        1.2,
		HeadroomLimit:          1.5,
		MinCPURequest:          "25m",
		MinMemoryRequest:       "50Mi",
		OOMSafetyMargin:        0.2,
		ThrottleRatioThreshold: 0.25,
		ThrottleBlendFactor:    0.5,
		ConfidenceLevel:        0.80,

		StorageEnabled: getEnvBool("STORAGE_ENABLED", false),
		DatabaseURL:    getEnv("DATABASE_URL", ""),

		OutputFormat: getEnv("OUTPUT_FORMAT", "text"),
	}
	cfg.Namespace = getEnv("ADVISOR_NAMESPACE", cfg.Namespace)
	return cfg
}

// Load builds the configuration in precedence order: defaults, then the
// YAML file (explicit path, or DefaultConfigFile if present), then
// environment variables. Flag overrides happen in the CLI layer.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	*cfg = *NewConfig()

	explicit := path != ""
	if path == "" {
		path = DefaultConfigFile
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if explicit || !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	} else if err := cfg.applyFile(data); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}

	if preset := os.Getenv("ADVISOR_PRESET"); preset != "" {
		if err := cfg.ApplyPreset(preset); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

type fileConfig struct {
	Preset        string `yaml:"preset"`
	Source        string `yaml:"source"`
	Namespace     string `yaml:"namespace"`
	PrometheusURL string `yaml:"prometheus_url"`
	QueryTimeout  string `yaml:"query_timeout"`
	Kubeconfig    string `yaml:"kubeconfig"`
	MetricsFile   string `yaml:"metrics_file"`
	HealthFile    string `yaml:"health_file"`
	RunDate       string `yaml:"run_date"`

	SampleInterval string `yaml:"sample_interval"`
	SampleDuration string `yaml:"sample_duration"`

	Lookback          string `yaml:"lookback_window"`
	Horizon           string `yaml:"forecast_horizon"`
	FitTimeout        string `yaml:"fit_timeout"`
	ProblematicWindow string `yaml:"problematic_window"`
	Concurrency       *int   `yaml:"concurrency"`

	MaxGapForFill  string   `yaml:"max_gap_for_fill"`
	MinValidPoints *int     `yaml:"min_valid_points"`
	OutlierZ       *float64 `yaml:"outlier_z"`

	AnomalyK             *float64 `yaml:"anomaly_k"`
	AnomalyMergeGap      string   `yaml:"anomaly_merge_gap"`
	CPUThrottleThreshold string   `yaml:"cpu_throttle_threshold"`

	HeadroomRequest        *float64 `yaml:"headroom_request_multiplier"`
	HeadroomLimit          *float64 `yaml:"headroom_limit_multiplier"`
	MinCPURequest          string   `yaml:"min_cpu_request"`
	MinMemoryRequest       string   `yaml:"min_memory_request"`
	OOMSafetyMargin        *float64 `yaml:"oom_safety_margin"`
	ThrottleRatioThreshold *float64 `yaml:"throttle_ratio_threshold"`
	ThrottleBlendFactor    *float64 `yaml:"throttle_blend_factor"`
	ConfidenceLevel        *float64 `yaml:"forecast_confidence_level"`

	Allocations map[string]map[string]AllocationSpec `yaml:"allocations"`

	StorageEnabled *bool  `yaml:"storage_enabled"`
	DatabaseURL    string `yaml:"database_url"`

	OutputFormat string `yaml:"output"`
}

func (c *Config) applyFile(data []byte) error {
	var file fileConfig
	if err := yaml.Unmarshal(data, &file); err != nil {
		return err
	}

	if file.Preset != "" {
		if err := c.ApplyPreset(file.Preset); err != nil {
			return err
		}
	}

	setString(&c.Source, file.Source)
	setString(&c.Namespace, file.Namespace)
	setString(&c.PrometheusURL, file.PrometheusURL)
	setString(&c.Kubeconfig, file.Kubeconfig)
	setString(&c.MetricsFile, file.MetricsFile)
	setString(&c.HealthFile, file.HealthFile)
	setString(&c.RunDate, file.RunDate)
	setString(&c.CPUThrottleThreshold, file.CPUThrottleThreshold)
	setString(&c.MinCPURequest, file.MinCPURequest)
	setString(&c.MinMemoryRequest, file.MinMemoryRequest)
	setString(&c.DatabaseURL, file.DatabaseURL)
	setString(&c.OutputFormat, file.OutputFormat)

	if err := setDuration(&c.QueryTimeout, file.QueryTimeout, "query_timeout"); err != nil {
		return err
	}
	if err := setDuration(&c.SampleInterval, file.SampleInterval, "sample_interval"); err != nil {
		return err
	}
	if err := setDuration(&c.SampleDuration, file.SampleDuration, "sample_duration"); err != nil {
		return err
	}
	if err := setDuration(&c.Lookback, file.Lookback, "lookback_window"); err != nil {
		return err
	}
	if err := setDuration(&c.Horizon, file.Horizon, "forecast_horizon"); err != nil {
		return err
	}
	if err := setDuration(&c.FitTimeout, file.FitTimeout, "fit_timeout"); err != nil {
		return err
	}
	if err := setDuration(&c.ProblematicWindow, file.ProblematicWindow, "problematic_window"); err != nil {
		return err
	}
	if err := setDuration(&c.MaxGapForFill, file.MaxGapForFill, "max_gap_for_fill"); err != nil {
		return err
	}
	if err := setDuration(&c.AnomalyMergeGap, file.AnomalyMergeGap, "anomaly_merge_gap"); err != nil {
		return err
	}

	if file.Concurrency != nil {
		c.Concurrency = *file.Concurrency
	}
	if file.MinValidPoints != nil {
		c.MinValidPoints = *file.MinValidPoints
	}
	if file.OutlierZ != nil {
		c.OutlierZ = *file.OutlierZ
	}
	if file.AnomalyK != nil {
		c.AnomalyK = *file.AnomalyK
	}
	if file.HeadroomRequest != nil {
		c.HeadroomRequest = *file.HeadroomRequest
	}
	if file.HeadroomLimit != nil {
		c.HeadroomLimit = *file.HeadroomLimit
	}
	if file.OOMSafetyMargin != nil {
		c.OOMSafetyMargin = *file.OOMSafetyMargin
	}
	if file.ThrottleRatioThreshold != nil {
		c.ThrottleRatioThreshold = *file.ThrottleRatioThreshold
	}
	if file.ThrottleBlendFactor != nil {
		c.ThrottleBlendFactor = *file.ThrottleBlendFactor
	}
	if file.ConfidenceLevel != nil {
		c.ConfidenceLevel = *file.ConfidenceLevel
	}
	if file.StorageEnabled != nil {
		c.StorageEnabled = *file.StorageEnabled
	}
	if file.Allocations != nil {
		c.Allocations = file.Allocations
	}
	return nil
}

func (c *Config) applyEnv() {
	c.PrometheusURL = getEnv("PROMETHEUS_URL", c.PrometheusURL)
	c.Namespace = getEnv("ADVISOR_NAMESPACE", c.Namespace)
	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)
	c.StorageEnabled = getEnvBool("STORAGE_ENABLED", c.StorageEnabled)
	c.Lookback = getEnvDuration("LOOKBACK_WINDOW", c.Lookback)
	c.Horizon = getEnvDuration("FORECAST_HORIZON", c.Horizon)
	c.OutputFormat = getEnv("OUTPUT_FORMAT", c.OutputFormat)
}

// ApplyPreset overwrites the tuning knobs with one of the named profiles.
func (c *Config) ApplyPreset(name string) error {
	switch name {
	case "conservative":
		c.Lookback = 14 * 24 * time.Hour
		c.HeadroomRequest = 1.3
		c.HeadroomLimit = 1.7
		c.OOMSafetyMargin = 0.3
		c.MinValidPoints = 30
	case "balanced":
		c.Lookback = 7 * 24 * time.Hour
		c.HeadroomRequest = 1.2
		c.HeadroomLimit = 1.5
		c.OOMSafetyMargin = 0.2
		c.MinValidPoints = 10
	case "aggressive":
		c.Lookback = 3 * 24 * time.Hour
		c.HeadroomRequest = 1.1
		c.HeadroomLimit = 1.3
		c.OOMSafetyMargin = 0.1
		c.MinValidPoints = 10
	default:
		return fmt.Errorf("unknown preset %q: use conservative, balanced or aggressive", name)
	}
	c.Preset = name
	return nil
}

// Validate checks ranges before a run starts.
func (c *Config) Validate() error {
	switch c.Source {
	case "prometheus", "cluster", "file":
	default:
		return fmt.Errorf("unknown source %q: use prometheus, cluster or file", c.Source)
	}
	if c.Source == "file" && (c.MetricsFile == "" || c.HealthFile == "") {
		return fmt.Errorf("file source requires metrics_file and health_file")
	}
	if c.Source == "cluster" {
		if c.SampleInterval < time.Second {
			return fmt.Errorf("sample interval must be at least 1 second")
		}
		if c.SampleDuration < 2*c.SampleInterval {
			return fmt.Errorf("sample duration must cover at least two intervals")
		}
	}
	if c.RunDate != "" {
		if _, err := time.Parse("2006-01-02", c.RunDate); err != nil {
			return fmt.Errorf("run date must be YYYY-MM-DD: %w", err)
		}
	}
	if c.Lookback < time.Hour {
		return fmt.Errorf("lookback window must be at least 1 hour")
	}
	if c.Lookback > 90*24*time.Hour {
		return fmt.Errorf("lookback window cannot exceed 90 days")
	}
	if c.Horizon <= 0 {
		return fmt.Errorf("forecast horizon must be positive")
	}
	if c.HeadroomRequest < 1.0 || c.HeadroomLimit < 1.0 {
		return fmt.Errorf("headroom multipliers must be >= 1.0")
	}
	if c.HeadroomLimit < c.HeadroomRequest {
		return fmt.Errorf("limit headroom must be >= request headroom")
	}
	if c.ConfidenceLevel <= 0 || c.ConfidenceLevel >= 1 {
		return fmt.Errorf("forecast confidence level must be between 0 and 1")
	}
	if c.ThrottleBlendFactor <= 0 || c.ThrottleBlendFactor > 1 {
		return fmt.Errorf("throttle blend factor must be in (0, 1]")
	}
	if c.MinValidPoints < 1 {
		return fmt.Errorf("minimum valid points must be at least 1")
	}
	if c.StorageEnabled && c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL must be set when storage is enabled")
	}
	switch c.OutputFormat {
	case "text", "json", "csv", "html", "commands":
	default:
		return fmt.Errorf("unknown output format %q", c.OutputFormat)
	}
	if _, err := quantity.ParseCPU(c.MinCPURequest); err != nil {
		return fmt.Errorf("min_cpu_request: %w", err)
	}
	if _, err := quantity.ParseMemory(c.MinMemoryRequest); err != nil {
		return fmt.Errorf("min_memory_request: %w", err)
	}
	if c.CPUThrottleThreshold != "" {
		if _, err := quantity.ParseCPU(c.CPUThrottleThreshold); err != nil {
			return fmt.Errorf("cpu_throttle_threshold: %w", err)
		}
	}
	return nil
}

// EngineConfig derives the orchestrator configuration, including the
// per-dimension component configs.
func (c *Config) EngineConfig() (advisor.Config, error) {
	minCPU, err := quantity.ParseCPU(c.MinCPURequest)
	if err != nil {
		return advisor.Config{}, fmt.Errorf("min_cpu_request: %w", err)
	}
	minMem, err := quantity.ParseMemory(c.MinMemoryRequest)
	if err != nil {
		return advisor.Config{}, fmt.Errorf("min_memory_request: %w", err)
	}
	var throttle int64
	if c.CPUThrottleThreshold != "" {
		throttle, err = quantity.ParseCPU(c.CPUThrottleThreshold)
		if err != nil {
			return advisor.Config{}, fmt.Errorf("cpu_throttle_threshold: %w", err)
		}
	}

	basePolicy := policy.Config{
		HeadroomRequestMultiplier: c.HeadroomRequest,
		HeadroomLimitMultiplier:   c.HeadroomLimit,
		OOMSafetyMargin:           c.OOMSafetyMargin,
		ThrottleRatioThreshold:    c.ThrottleRatioThreshold,
		ThrottleBlendFactor:       c.ThrottleBlendFactor,
	}
	cpuPolicy := basePolicy
	cpuPolicy.MinAllocation = float64(minCPU)
	memPolicy := basePolicy
	memPolicy.MinAllocation = float64(minMem)

	baseHealth := health.Config{
		AnomalyK:        c.AnomalyK,
		AnomalyMergeGap: c.AnomalyMergeGap,
	}
	cpuHealth := baseHealth
	cpuHealth.ThrottleThreshold = float64(throttle)

	return advisor.Config{
		Namespace:         c.Namespace,
		Window:            c.Lookback,
		Horizon:           c.Horizon,
		FitTimeout:        c.FitTimeout,
		ProblematicWindow: c.ProblematicWindow,
		Workers:           c.Concurrency,
		Dimensions:        []models.ResourceDimension{models.DimensionCPU, models.DimensionMemory},
		Processor: processor.Config{
			MaxGapForFill:  c.MaxGapForFill,
			MinValidPoints: c.MinValidPoints,
			OutlierZ:       c.OutlierZ,
		},
		Forecast: forecast.Config{
			ConfidenceLevel: c.ConfidenceLevel,
		},
		Health: map[models.ResourceDimension]health.Config{
			models.DimensionCPU:    cpuHealth,
			models.DimensionMemory: baseHealth,
		},
		Policy: map[models.ResourceDimension]policy.Config{
			models.DimensionCPU:    cpuPolicy,
			models.DimensionMemory: memPolicy,
		},
	}, nil
}

// ParsedRunDate resolves the replay date. Empty means the zero time, which
// the file source interprets as today.
func (c *Config) ParsedRunDate() (time.Time, error) {
	if c.RunDate == "" {
		return time.Time{}, nil
	}
	date, err := time.Parse("2006-01-02", c.RunDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("run date must be YYYY-MM-DD: %w", err)
	}
	return date.UTC(), nil
}

// DataSourceConfig derives the ingestion source settings.
func (c *Config) DataSourceConfig() (datasource.Config, error) {
	runDate, err := c.ParsedRunDate()
	if err != nil {
		return datasource.Config{}, err
	}
	return datasource.Config{
		PrometheusURL:  c.PrometheusURL,
		Timeout:        c.QueryTimeout,
		MetricsFile:    c.MetricsFile,
		HealthFile:     c.HealthFile,
		RunDate:        runDate,
		SampleInterval: c.SampleInterval,
		SampleDuration: c.SampleDuration,
	}, nil
}

// StaticAllocations parses the configured allocation map into engine units.
// The "default" entry, when present, applies to workloads without their own.
func (c *Config) StaticAllocations() (map[string]map[models.ResourceDimension]models.AllocationContext, error) {
	if len(c.Allocations) == 0 {
		return nil, nil
	}
	out := make(map[string]map[models.ResourceDimension]models.AllocationContext, len(c.Allocations))
	for workloadID, dims := range c.Allocations {
		parsed := make(map[models.ResourceDimension]models.AllocationContext, len(dims))
		for dimName, spec := range dims {
			dim := models.ResourceDimension(dimName)
			if !dim.Valid() {
				return nil, fmt.Errorf("allocations[%s]: unknown dimension %q", workloadID, dimName)
			}
			var alloc models.AllocationContext
			var err error
			switch dim {
			case models.DimensionCPU:
				if spec.Request != "" {
					var v int64
					if v, err = quantity.ParseCPU(spec.Request); err == nil {
						alloc.Request = float64(v)
					}
				}
				if err == nil && spec.Limit != "" {
					var v int64
					if v, err = quantity.ParseCPU(spec.Limit); err == nil {
						alloc.Limit = float64(v)
					}
				}
			case models.DimensionMemory:
				if spec.Request != "" {
					var v int64
					if v, err = quantity.ParseMemory(spec.Request); err == nil {
						alloc.Request = float64(v)
					}
				}
				if err == nil && spec.Limit != "" {
					var v int64
					if v, err = quantity.ParseMemory(spec.Limit); err == nil {
						alloc.Limit = float64(v)
					}
				}
			}
			if err != nil {
				return nil, fmt.Errorf("allocations[%s][%s]: %w", workloadID, dimName, err)
			}
			parsed[dim] = alloc
		}
		out[workloadID] = parsed
	}
	return out, nil
}

// ParseDuration understands the standard duration syntax plus a day suffix,
// so lookback windows can be written as "7d".
func ParseDuration(s string) (time.Duration, error) {
	if strings.HasSuffix(s, "d") {
		days, err := strconv.ParseFloat(strings.TrimSuffix(s, "d"), 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		return time.Duration(days * 24 * float64(time.Hour)), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return d, nil
}

func setString(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

func setDuration(dst *time.Duration, value, field string) error {
	if value == "" {
		return nil
	}
	d, err := ParseDuration(value)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	*dst = d
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
