package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kubesage/k8s-resource-advisor/pkg/advisor"
	"github.com/kubesage/k8s-resource-advisor/pkg/config"
	"github.com/kubesage/k8s-resource-advisor/pkg/costing"
	"github.com/kubesage/k8s-resource-advisor/pkg/datasource"
	"github.com/kubesage/k8s-resource-advisor/pkg/kube"
	"github.com/kubesage/k8s-resource-advisor/pkg/logging"
	"github.com/kubesage/k8s-resource-advisor/pkg/models"
	"github.com/kubesage/k8s-resource-advisor/pkg/output"
	"github.com/kubesage/k8s-resource-advisor/pkg/policy"
	"github.com/kubesage/k8s-resource-advisor/pkg/quantity"
	"github.com/kubesage/k8s-resource-advisor/pkg/reporter"
	"github.com/kubesage/k8s-resource-advisor/pkg/storage"
)

// Exit codes, kept stable for scripting.
const (
	exitOK            = 0
	exitInternal      = 1
	exitInvalidArgs   = 2
	exitNothingToScan = 3
	exitCollaborator  = 4
)

var (
	// Global flags
	configFile string
	verbose    bool

	// Advise flags
	source        string
	namespace     string
	lookback      string
	horizon       string
	preset        string
	outputFormat  string
	saveResults   bool
	metricsFile   string
	healthFile    string
	runDate       string
	prometheusURL string
	kubeconfig    string
	concurrency   int
	provider      string
	region        string
	reportFile    string

	// History flags
	historyLimit     int
	historyNamespace string

	// Collect flags
	sampleInterval string
	sampleDuration string

	cfg *config.Config
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "advisor",
		Short: "Resource request and limit advisor for Kubernetes workloads",
		Long: `Analyzes per-workload CPU and memory usage over a lookback window, folds in
reliability signals such as OOM kills, CPU throttling and restarts, forecasts
near-term demand and proposes resource requests and limits with headroom and
a human-readable rationale for every number.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logging.Init(verbose)
			var err error
			cfg, err = config.Load(configFile)
			return err
		},
		Run: runAdvise,
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (default "+config.DefaultConfigFile+" if present)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	addAdviseFlags(rootCmd)

	adviseCmd := &cobra.Command{
		Use:   "advise",
		Short: "Analyze workloads and print recommendations (the default)",
		Args:  cobra.NoArgs,
		Run:   runAdvise,
	}
	addAdviseFlags(adviseCmd)

	historyCmd := &cobra.Command{
		Use:   "history [workload]",
		Short: "Show stored recommendations for a workload (namespace/name)",
		Args:  cobra.MaximumNArgs(1),
		Run:   runHistory,
	}
	historyCmd.Flags().IntVar(&historyLimit, "limit", 10, "Number of recommendations to show")
	historyCmd.Flags().StringVarP(&historyNamespace, "namespace", "n", "", "List recent recommendations across a namespace instead")

	auditCmd := &cobra.Command{
		Use:   "audit <recommendation-id>",
		Short: "Show the audit trail for one recommendation",
		Args:  cobra.ExactArgs(1),
		Run:   runAudit,
	}

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Check connectivity to Prometheus, the cluster and Postgres",
		Args:  cobra.NoArgs,
		Run:   runCheck,
	}

	collectCmd := &cobra.Command{
		Use:   "collect",
		Short: "Sample live pod usage into replayable metric and status logs",
		Long: `Samples pod usage and status on an interval and appends them to log files in
the format the file source replays, so a cluster without Prometheus can still
be analyzed offline: collect now, advise --source file later.`,
		Args: cobra.NoArgs,
		Run:  runCollect,
	}
	collectCmd.Flags().StringVarP(&namespace, "namespace", "n", "", "Namespace to record")
	collectCmd.Flags().StringVar(&kubeconfig, "kubeconfig", "", "Path to kubeconfig (default: $KUBECONFIG, then ~/.kube/config)")
	collectCmd.Flags().StringVar(&metricsFile, "metrics-file", "", "Metrics log to append to (default metrics.log)")
	collectCmd.Flags().StringVar(&healthFile, "health-file", "", "Pod status log to append to (default health.log)")
	collectCmd.Flags().StringVar(&sampleInterval, "interval", "", "Sampling interval, e.g. 30s")
	collectCmd.Flags().StringVar(&sampleDuration, "duration", "", "How long to record, e.g. 10m")

	rootCmd.AddCommand(adviseCmd, historyCmd, auditCmd, checkCmd, collectCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitInvalidArgs)
	}
}

func addAdviseFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&source, "source", "prometheus", "Metric source: prometheus, cluster or file")
	cmd.Flags().StringVarP(&namespace, "namespace", "n", "", "Namespace to analyze")
	cmd.Flags().StringVar(&lookback, "lookback", "", "Analysis window, e.g. 7d or 48h")
	cmd.Flags().StringVar(&horizon, "horizon", "", "Forecast horizon, e.g. 1h")
	cmd.Flags().StringVar(&preset, "preset", "", "Tuning preset: conservative, balanced or aggressive")
	cmd.Flags().StringVarP(&outputFormat, "output", "o", "", "Output format: text, json, csv, html or commands")
	cmd.Flags().BoolVar(&saveResults, "save", false, "Persist the run and its recommendations to Postgres")
	cmd.Flags().StringVar(&metricsFile, "metrics-file", "", "Recorded metrics log (file source)")
	cmd.Flags().StringVar(&healthFile, "health-file", "", "Recorded pod status log (file source)")
	cmd.Flags().StringVar(&runDate, "run-date", "", "Date the logs were recorded, YYYY-MM-DD (file source)")
	cmd.Flags().StringVar(&prometheusURL, "prometheus-url", "", "Prometheus base URL")
	cmd.Flags().StringVar(&kubeconfig, "kubeconfig", "", "Path to kubeconfig (default: $KUBECONFIG, then ~/.kube/config)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Concurrent workload pipelines (0 = min(8, GOMAXPROCS))")
	cmd.Flags().StringVar(&provider, "provider", "", "Cloud provider for savings estimates: aws, gcp or azure (auto-detect if empty)")
	cmd.Flags().StringVar(&region, "region", "", "Cloud region for savings estimates, e.g. eu-west-1")
	cmd.Flags().StringVar(&reportFile, "report-file", "", "Write csv/html output to this file instead of stdout")
}

// applyFlagOverrides layers explicitly set flags over the loaded config. It
// runs again after an auto-selected preset so flags always win.
func applyFlagOverrides(cmd *cobra.Command) error {
	flags := cmd.Flags()
	if flags.Changed("source") {
		cfg.Source = source
	}
	if flags.Changed("namespace") {
		cfg.Namespace = namespace
	}
	if flags.Changed("prometheus-url") {
		cfg.PrometheusURL = prometheusURL
	}
	if flags.Changed("kubeconfig") {
		cfg.Kubeconfig = kubeconfig
	}
	if flags.Changed("metrics-file") {
		cfg.MetricsFile = metricsFile
	}
	if flags.Changed("health-file") {
		cfg.HealthFile = healthFile
	}
	if flags.Changed("run-date") {
		cfg.RunDate = runDate
	}
	if flags.Changed("output") {
		cfg.OutputFormat = outputFormat
	}
	if flags.Changed("concurrency") {
		cfg.Concurrency = concurrency
	}
	if flags.Changed("lookback") {
		d, err := config.ParseDuration(lookback)
		if err != nil {
			return fmt.Errorf("--lookback: %w", err)
		}
		cfg.Lookback = d
	}
	if flags.Changed("horizon") {
		d, err := config.ParseDuration(horizon)
		if err != nil {
			return fmt.Errorf("--horizon: %w", err)
		}
		cfg.Horizon = d
	}
	return nil
}

func runAdvise(cmd *cobra.Command, args []string) {
	if preset != "" {
		if err := cfg.ApplyPreset(preset); err != nil {
			fatal(exitInvalidArgs, err)
		}
	}
	if err := applyFlagOverrides(cmd); err != nil {
		fatal(exitInvalidArgs, err)
	}
	if saveResults && cfg.DatabaseURL == "" {
		fatal(exitInvalidArgs, fmt.Errorf("--save requires a database: set DATABASE_URL or database_url in the config file"))
	}
	if err := cfg.Validate(); err != nil {
		fatal(exitInvalidArgs, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	src, client, err := buildSource()
	if err != nil {
		fatal(exitCollaborator, err)
	}

	// When no preset was chosen, classify the namespace and let the
	// environment pick one. Explicit flags still win over preset values.
	if cfg.Preset == "" && client != nil && cfg.Namespace != "" {
		env := client.ClassifyNamespace(ctx, cfg.Namespace)
		name := kube.PresetForEnvironment(env)
		if err := cfg.ApplyPreset(name); err == nil {
			infof("[INFO] Namespace %s classified as %s, using %s preset", cfg.Namespace, env, name)
		}
		if err := applyFlagOverrides(cmd); err != nil {
			fatal(exitInvalidArgs, err)
		}
	}

	engineCfg, err := cfg.EngineConfig()
	if err != nil {
		fatal(exitInvalidArgs, err)
	}
	basePolicies := engineCfg.Policy
	engineCfg.PolicyFor = func(w models.Workload, dim models.ResourceDimension) policy.Config {
		return kube.AdjustPolicyForKind(basePolicies[dim], w.Kind)
	}

	resolver, err := buildResolver(client)
	if err != nil {
		fatal(exitInvalidArgs, err)
	}

	infof("[INFO] Resource advisor starting (source %s, namespace %s)", cfg.Source, cfg.Namespace)
	if cfg.Preset != "" {
		infof("[INFO] Lookback %s, horizon %s, preset %s", cfg.Lookback, cfg.Horizon, cfg.Preset)
	} else {
		infof("[INFO] Lookback %s, horizon %s", cfg.Lookback, cfg.Horizon)
	}

	if collector, ok := src.(datasource.Collector); ok {
		if cfg.Source == "cluster" {
			infof("[INFO] Sampling cluster for %s at %s intervals", cfg.SampleDuration, cfg.SampleInterval)
		}
		if err := collector.Collect(ctx); err != nil {
			fatal(exitCollaborator, fmt.Errorf("collect from %s: %w", src.Name(), err))
		}
	} else if !src.IsAvailable(ctx) {
		fatal(exitCollaborator, fmt.Errorf("%s at %s is not reachable", src.Name(), cfg.PrometheusURL))
	}

	est := buildEstimator(ctx, client)

	workloads, err := src.ListWorkloads(ctx, cfg.Namespace)
	if err != nil {
		fatal(exitCollaborator, fmt.Errorf("list workloads: %w", err))
	}
	if len(workloads) == 0 {
		fmt.Fprintf(os.Stderr, "No workloads found in namespace %q\n", cfg.Namespace)
		os.Exit(exitNothingToScan)
	}
	infof("[INFO] Analyzing %d workload(s)", len(workloads))

	engine := advisor.New(src, resolver, engineCfg)
	summary, err := engine.Run(ctx, workloads)
	if err != nil {
		fatal(exitInternal, err)
	}

	var saveErr error
	if saveResults {
		if saveErr = persistRun(ctx, summary); saveErr != nil {
			fmt.Fprintf(os.Stderr, "[WARN] Persisting run failed: %v\n", saveErr)
		} else {
			recommended := 0
			for i := range summary.Reports {
				if summary.Reports[i].Recommended() {
					recommended++
				}
			}
			infof("[INFO] Run %s saved (%d recommendation(s))", summary.RunID, recommended)
		}
	}

	if err := render(summary, est); err != nil {
		fatal(exitInternal, err)
	}
	if saveErr != nil {
		os.Exit(exitCollaborator)
	}
	if summary.Analyzed == 0 {
		os.Exit(exitNothingToScan)
	}
}

// buildSource constructs the configured metric source. The kube client comes
// back too when one is available; it doubles as the allocation resolver and
// feeds namespace classification and cloud detection.
func buildSource() (datasource.DataSource, *kube.Client, error) {
	dsCfg, err := cfg.DataSourceConfig()
	if err != nil {
		return nil, nil, err
	}

	switch cfg.Source {
	case "file":
		return datasource.NewFileSource(dsCfg), nil, nil
	case "cluster":
		client, err := kube.New(cfg.Kubeconfig)
		if err != nil {
			return nil, nil, err
		}
		return datasource.NewClusterSource(client, cfg.Namespace, dsCfg), client, nil
	case "prometheus":
		src, err := datasource.NewPrometheusSource(dsCfg)
		if err != nil {
			return nil, nil, err
		}
		// Best effort: without a cluster, allocations come from the config
		// file and savings use generic rates.
		client, err := kube.New(cfg.Kubeconfig)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] Cluster unavailable (%v), allocations come from config\n", err)
			client = nil
		}
		return src, client, nil
	}
	return nil, nil, fmt.Errorf("unknown source %q", cfg.Source)
}

func buildResolver(client *kube.Client) (advisor.AllocationResolver, error) {
	if client != nil {
		return client, nil
	}
	table, err := cfg.StaticAllocations()
	if err != nil {
		return nil, err
	}
	return datasource.NewStaticAllocations(table), nil
}

// buildEstimator picks pricing rates: explicit flags first, then node-label
// detection, then the generic table.
func buildEstimator(ctx context.Context, client *kube.Client) *costing.Estimator {
	cloud, rgn := provider, region
	if cloud == "" && client != nil {
		detected, detectedRegion, err := costing.NewDetector(client.Clientset()).Detect(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] Cloud detection failed (%v), using generic rates\n", err)
		}
		cloud = detected
		if rgn == "" {
			rgn = detectedRegion
		}
	}
	return costing.NewEstimator(costing.ForCloud(cloud), rgn)
}

func render(summary *models.RunSummary, est *costing.Estimator) error {
	switch cfg.OutputFormat {
	case "csv", "html":
		report := reporter.Build(summary, est)
		w := io.Writer(os.Stdout)
		if reportFile != "" {
			f, err := os.Create(reportFile)
			if err != nil {
				return fmt.Errorf("create report file: %w", err)
			}
			defer f.Close()
			w = f
		}
		if err := reporter.Write(report, reporter.Format(cfg.OutputFormat), w); err != nil {
			return err
		}
		if reportFile != "" {
			fmt.Printf("[INFO] %s report written to %s\n", strings.ToUpper(cfg.OutputFormat), reportFile)
		}
		return nil
	default:
		handler, err := output.ForFormat(cfg.OutputFormat, os.Stdout, est)
		if err != nil {
			return err
		}
		return handler.Render(summary)
	}
}

func persistRun(ctx context.Context, summary *models.RunSummary) error {
	store, err := storage.NewPostgresStore(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer store.Close()
	return storage.SaveSummary(ctx, store, summary, configSnapshot())
}

// configSnapshot captures the knobs that shaped this run, stored next to it
// so old recommendations stay interpretable after defaults change.
func configSnapshot() map[string]any {
	snap := map[string]any{
		"source":            cfg.Source,
		"lookback":          cfg.Lookback.String(),
		"horizon":           cfg.Horizon.String(),
		"headroom_request":  cfg.HeadroomRequest,
		"headroom_limit":    cfg.HeadroomLimit,
		"oom_safety_margin": cfg.OOMSafetyMargin,
		"min_valid_points":  cfg.MinValidPoints,
		"confidence_level":  cfg.ConfidenceLevel,
	}
	if cfg.Preset != "" {
		snap["preset"] = cfg.Preset
	}
	return snap
}

func runHistory(cmd *cobra.Command, args []string) {
	store := openStore()
	defer store.Close()

	ctx := context.Background()
	var (
		records []*storage.RecommendationRecord
		err     error
		scope   string
	)
	switch {
	case len(args) == 1:
		scope = args[0]
		records, err = store.GetWorkloadHistory(ctx, args[0], historyLimit)
	case historyNamespace != "":
		scope = "namespace " + historyNamespace
		records, err = store.ListRecommendations(ctx, historyNamespace, historyLimit)
	default:
		fatal(exitInvalidArgs, fmt.Errorf("provide a workload (namespace/name) or --namespace"))
	}
	if err != nil {
		fatal(exitCollaborator, err)
	}

	if len(records) == 0 {
		fmt.Printf("No stored recommendations for %s\n", scope)
		return
	}

	fmt.Printf("Recent recommendations for %s:\n\n", scope)
	for i, rec := range records {
		fmt.Printf("%d. %s %s (ID: %s)\n", i+1, rec.Workload, rec.Dimension, rec.ID)
		fmt.Printf("   Request: %s  Limit: %s\n",
			formatQuantity(rec.RecommendedRequest, rec.Dimension),
			formatQuantity(rec.RecommendedLimit, rec.Dimension))
		if rec.CurrentRequest > 0 {
			fmt.Printf("   Replaces: request %s\n", formatQuantity(rec.CurrentRequest, rec.Dimension))
		}
		fmt.Printf("   Confidence: %.0f%%\n", rec.Confidence*100)
		if rec.ModelUsed != "" {
			fmt.Printf("   Model: %s\n", rec.ModelUsed)
		}
		fmt.Printf("   Created: %s\n", rec.CreatedAt.Format("2006-01-02 15:04:05"))
		fmt.Println()
	}
}

func runAudit(cmd *cobra.Command, args []string) {
	store := openStore()
	defer store.Close()

	entries, err := store.GetAuditLog(context.Background(), args[0])
	if err != nil {
		fatal(exitCollaborator, err)
	}

	if len(entries) == 0 {
		fmt.Printf("No audit log entries for recommendation %s\n", args[0])
		return
	}

	fmt.Printf("Audit log for recommendation %s:\n\n", args[0])
	for i, entry := range entries {
		fmt.Printf("%d. %s - %s\n", i+1, entry.Action, entry.Status)
		fmt.Printf("   Executed: %s\n", entry.ExecutedAt.Format("2006-01-02 15:04:05"))
		if entry.Actor != "" {
			fmt.Printf("   By: %s\n", entry.Actor)
		}
		if entry.Detail != "" {
			fmt.Printf("   Detail: %s\n", entry.Detail)
		}
		fmt.Println()
	}
}

func runCheck(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	failed := false

	dsCfg, err := cfg.DataSourceConfig()
	if err != nil {
		fatal(exitInvalidArgs, err)
	}
	if prom, err := datasource.NewPrometheusSource(dsCfg); err != nil {
		fmt.Printf("%-12s FAIL %v\n", "prometheus", err)
		failed = true
	} else if prom.IsAvailable(ctx) {
		fmt.Printf("%-12s OK   %s\n", "prometheus", cfg.PrometheusURL)
	} else {
		fmt.Printf("%-12s FAIL %s not reachable\n", "prometheus", cfg.PrometheusURL)
		failed = true
	}

	if client, err := kube.New(cfg.Kubeconfig); err != nil {
		fmt.Printf("%-12s FAIL %v\n", "cluster", err)
		failed = true
	} else if version, err := client.Ping(ctx); err != nil {
		fmt.Printf("%-12s FAIL %v\n", "cluster", err)
		failed = true
	} else {
		fmt.Printf("%-12s OK   %s\n", "cluster", version)
	}

	if cfg.DatabaseURL == "" {
		fmt.Printf("%-12s not configured\n", "postgres")
	} else if store, err := storage.NewPostgresStore(cfg.DatabaseURL); err != nil {
		fmt.Printf("%-12s FAIL %v\n", "postgres", err)
		failed = true
	} else {
		if err := store.Ping(ctx); err != nil {
			fmt.Printf("%-12s FAIL %v\n", "postgres", err)
			failed = true
		} else {
			fmt.Printf("%-12s OK\n", "postgres")
		}
		store.Close()
	}

	if failed {
		os.Exit(exitCollaborator)
	}
}

func runCollect(cmd *cobra.Command, args []string) {
	if err := applyCollectOverrides(cmd); err != nil {
		fatal(exitInvalidArgs, err)
	}
	if cfg.SampleInterval < time.Second {
		fatal(exitInvalidArgs, fmt.Errorf("sample interval must be at least 1 second"))
	}

	client, err := kube.New(cfg.Kubeconfig)
	if err != nil {
		fatal(exitCollaborator, err)
	}

	metricsPath := cfg.MetricsFile
	if metricsPath == "" {
		metricsPath = "metrics.log"
	}
	healthPath := cfg.HealthFile
	if healthPath == "" {
		healthPath = "health.log"
	}
	recorder := kube.NewRecorder(metricsPath, healthPath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("[INFO] Recording namespace %s every %s for %s\n", cfg.Namespace, cfg.SampleInterval, cfg.SampleDuration)
	fmt.Printf("[INFO] Writing %s and %s\n", metricsPath, healthPath)

	ticker := time.NewTicker(cfg.SampleInterval)
	defer ticker.Stop()
	deadline := time.NewTimer(cfg.SampleDuration)
	defer deadline.Stop()

	written, failures := 0, 0
	for {
		samples, err := client.SamplePods(ctx, cfg.Namespace)
		if err != nil {
			failures++
			fmt.Fprintf(os.Stderr, "[WARN] Sample failed: %v\n", err)
		} else if err := recorder.WriteSamples(samples); err != nil {
			fatal(exitInternal, err)
		} else {
			written++
		}

		select {
		case <-ctx.Done():
			fmt.Printf("[INFO] Interrupted after %d sample(s)\n", written)
			return
		case <-deadline.C:
			fmt.Printf("[INFO] Recorded %d sample(s), %d failed\n", written, failures)
			if written == 0 {
				os.Exit(exitCollaborator)
			}
			return
		case <-ticker.C:
		}
	}
}

func applyCollectOverrides(cmd *cobra.Command) error {
	flags := cmd.Flags()
	if flags.Changed("namespace") {
		cfg.Namespace = namespace
	}
	if flags.Changed("kubeconfig") {
		cfg.Kubeconfig = kubeconfig
	}
	if flags.Changed("metrics-file") {
		cfg.MetricsFile = metricsFile
	}
	if flags.Changed("health-file") {
		cfg.HealthFile = healthFile
	}
	if flags.Changed("interval") {
		d, err := config.ParseDuration(sampleInterval)
		if err != nil {
			return fmt.Errorf("--interval: %w", err)
		}
		cfg.SampleInterval = d
	}
	if flags.Changed("duration") {
		d, err := config.ParseDuration(sampleDuration)
		if err != nil {
			return fmt.Errorf("--duration: %w", err)
		}
		cfg.SampleDuration = d
	}
	return nil
}

func openStore() storage.Store {
	if cfg.DatabaseURL == "" {
		fatal(exitInvalidArgs, fmt.Errorf("no database configured: set DATABASE_URL or database_url in the config file"))
	}
	store, err := storage.NewPostgresStore(cfg.DatabaseURL)
	if err != nil {
		fatal(exitCollaborator, err)
	}
	return store
}

func formatQuantity(v float64, dim models.ResourceDimension) string {
	n := int64(math.Round(v))
	switch dim {
	case models.DimensionCPU:
		return quantity.FormatCPU(n)
	case models.DimensionMemory:
		return quantity.FormatMemory(n)
	}
	return fmt.Sprintf("%.0f", v)
}

// infof prints progress to stdout in text mode only, so machine formats stay
// parseable.
func infof(format string, args ...any) {
	if cfg.OutputFormat == "text" {
		fmt.Printf(format+"\n", args...)
	}
}

func fatal(code int, err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(code)
}
