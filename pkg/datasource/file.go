package datasource

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kubesage/k8s-resource-advisor/pkg/models"
	"github.com/kubesage/k8s-resource-advisor/pkg/quantity"
)

// Recorded line shapes:
//
//	[14:23:01] api-7f8d9c5b4-x2k8p 393m 256Mi
//	[14:23:01] api-7f8d9c5b4-x2k8p Running 3
var (
	timedLine   = regexp.MustCompile(`^\[(\d{2}:\d{2}:\d{2})\]\s*(.*)$`)
	podHashName = regexp.MustCompile(`^([a-zA-Z0-9-]+)-[a-f0-9]{8,10}-[a-z0-9]{5}$`)
	podOrdinal  = regexp.MustCompile(`^(.+)-\d+$`)
)

// WorkloadFromPod trims the replica-set hash suffix (or a StatefulSet
// ordinal) from a pod name. Unrecognized names are returned unchanged.
func WorkloadFromPod(pod string) string {
	if m := podHashName.FindStringSubmatch(pod); m != nil {
		return m[1]
	}
	if m := podOrdinal.FindStringSubmatch(pod); m != nil {
		return m[1]
	}
	return pod
}

// FileSource replays metric and pod-health logs recorded by the collect
// loop, producing the same series and event contract as the live sources.
// Pods are grouped into workloads by name; replica samples sharing a
// timestamp keep the busiest value.
type FileSource struct {
	metricsPath string
	healthPath  string
	runDate     time.Time

	once    sync.Once
	loadErr error
	acc     *accumulator
}

// NewFileSource reads cfg.MetricsFile and cfg.HealthFile lazily on first
// fetch. cfg.RunDate anchors the wall-clock-only timestamps; zero means
// today.
func NewFileSource(cfg Config) *FileSource {
	runDate := cfg.RunDate
	if runDate.IsZero() {
		runDate = time.Now().UTC().Truncate(24 * time.Hour)
	}
	return &FileSource{
		metricsPath: cfg.MetricsFile,
		healthPath:  cfg.HealthFile,
		runDate:     runDate,
	}
}

// Collect parses both logs eagerly so later fetches cannot fail on I/O.
func (f *FileSource) Collect(context.Context) error {
	return f.load()
}

func (f *FileSource) FetchSeries(_ context.Context, w models.Workload, dim models.ResourceDimension, window time.Duration) (models.MetricSeries, error) {
	if err := f.load(); err != nil {
		return models.MetricSeries{}, err
	}
	return f.acc.series(w, dim, window), nil
}

func (f *FileSource) FetchHealthEvents(_ context.Context, w models.Workload, _ time.Duration) (models.HealthEvents, error) {
	if err := f.load(); err != nil {
		return models.HealthEvents{}, err
	}
	return f.acc.healthEvents(w), nil
}

func (f *FileSource) ListWorkloads(_ context.Context, namespace string) ([]models.Workload, error) {
	if err := f.load(); err != nil {
		return nil, err
	}
	return f.acc.workloads(namespace, nil), nil
}

func (f *FileSource) IsAvailable(context.Context) bool {
	if _, err := os.Stat(f.metricsPath); err != nil {
		return false
	}
	_, err := os.Stat(f.healthPath)
	return err == nil
}

func (f *FileSource) Name() string {
	return "file"
}

func (f *FileSource) load() error {
	f.once.Do(func() {
		f.acc = newAccumulator()
		if err := f.parseMetricsFile(); err != nil {
			f.loadErr = err
			return
		}
		f.acc.finalize()
		f.loadErr = f.parseHealthFile()
	})
	return f.loadErr
}

func (f *FileSource) parseMetricsFile() error {
	file, err := os.Open(f.metricsPath)
	if err != nil {
		return fmt.Errorf("open metrics log: %w", err)
	}
	defer file.Close()

	clock := newLogClock(f.runDate)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		ts, rest, ok := clock.parseLine(scanner.Text())
		if !ok {
			continue
		}
		fields := strings.Fields(rest)
		if len(fields) < 3 {
			continue
		}
		pod := strings.Join(fields[:len(fields)-2], " ")
		cpu, err := quantity.ParseCPU(fields[len(fields)-2])
		if err != nil {
			slog.Debug("skipping metric line", slog.String("pod", pod), slog.Any("error", err))
			continue
		}
		mem, err := quantity.ParseMemory(fields[len(fields)-1])
		if err != nil {
			slog.Debug("skipping metric line", slog.String("pod", pod), slog.Any("error", err))
			continue
		}
		f.acc.addUsage(WorkloadFromPod(pod), ts, float64(cpu), float64(mem))
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read metrics log: %w", err)
	}
	return nil
}

func (f *FileSource) parseHealthFile() error {
	file, err := os.Open(f.healthPath)
	if err != nil {
		return fmt.Errorf("open health log: %w", err)
	}
	defer file.Close()

	clock := newLogClock(f.runDate)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		ts, rest, ok := clock.parseLine(scanner.Text())
		if !ok {
			continue
		}
		fields := strings.Fields(rest)
		if len(fields) < 3 {
			continue
		}
		pod := fields[0]
		status := fields[1]
		restarts, err := strconv.Atoi(fields[2])
		if err != nil {
			continue
		}
		f.acc.addStatus(WorkloadFromPod(pod), pod, status, restarts, ts)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read health log: %w", err)
	}
	return nil
}

// logClock resolves the time-of-day prefixes in a recorded log against the
// run date, rolling to the next day when the clock wraps past midnight.
type logClock struct {
	date     time.Time
	last     time.Duration
	dayShift time.Duration
}

func newLogClock(date time.Time) *logClock {
	return &logClock{date: date}
}

func (c *logClock) parseLine(line string) (time.Time, string, bool) {
	m := timedLine.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return time.Time{}, "", false
	}
	parsed, err := time.Parse("15:04:05", m[1])
	if err != nil {
		return time.Time{}, "", false
	}
	elapsed := time.Duration(parsed.Hour())*time.Hour +
		time.Duration(parsed.Minute())*time.Minute +
		time.Duration(parsed.Second())*time.Second
	if elapsed < c.last {
		c.dayShift += 24 * time.Hour
	}
	c.last = elapsed
	return c.date.Add(c.dayShift + elapsed), m[2], true
}
