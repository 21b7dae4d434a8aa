// Package forecast projects near-future usage from cleaned series. The
// primary model is a least-squares trend with an optional hour-of-day
// seasonal adjustment; whenever the series is too short for a reliable fit,
// or fitting is cut off, a deterministic trailing-percentile projection runs
// instead. The chosen path is tagged on the result so rationale and tests
// can assert on it.
package forecast

import (
	"context"
	"fmt"
	"time"

	"github.com/kubesage/k8s-resource-advisor/pkg/models"
)

// Forecaster projects a cleaned series horizon into the future.
type Forecaster interface {
	Forecast(ctx context.Context, cleaned *models.CleanedSeries, horizon time.Duration) (*models.ForecastResult, error)
}

// Config controls model selection and the uncertainty band.
type Config struct {
	// ConfidenceLevel of the two-sided uncertainty band. Default 0.80.
	ConfidenceLevel float64

	// MinModelPoints is the fewest valid buckets the trend model accepts;
	// below it the trailing-percentile fallback runs. Default 30.
	MinModelPoints int

	// MinSeasonalPoints is the fewest valid buckets the hour-of-day
	// adjustment needs (a full day at one-minute cadence by default).
	MinSeasonalPoints int

	// FallbackConfidence is the fixed model confidence reported by the
	// trailing-percentile path. Default 0.3.
	FallbackConfidence float64
}

// DefaultConfig returns the forecasting defaults.
func DefaultConfig() Config {
	return Config{
		ConfidenceLevel:    0.80,
		MinModelPoints:     30,
		MinSeasonalPoints:  24 * 60,
		FallbackConfidence: 0.3,
	}
}

func (c Config) normalized() Config {
	def := DefaultConfig()
	if c.ConfidenceLevel <= 0 || c.ConfidenceLevel >= 1 {
		c.ConfidenceLevel = def.ConfidenceLevel
	}
	if c.MinModelPoints <= 0 {
		c.MinModelPoints = def.MinModelPoints
	}
	if c.MinSeasonalPoints <= 0 {
		c.MinSeasonalPoints = def.MinSeasonalPoints
	}
	if c.FallbackConfidence <= 0 {
		c.FallbackConfidence = def.FallbackConfidence
	}
	return c
}

// TrendForecaster is the default Forecaster. Stateless and fully
// deterministic: no randomness, no wall-clock reads.
type TrendForecaster struct {
	cfg Config
}

// New creates a forecaster with the given configuration.
func New(cfg Config) *TrendForecaster {
	return &TrendForecaster{cfg: cfg.normalized()}
}

// Forecast projects usage to the end of the horizon. It fails only when the
// cleaned series has no valid buckets; every other degraded condition
// (short series, canceled fit) selects the fallback path instead of erroring.
func (f *TrendForecaster) Forecast(ctx context.Context, cleaned *models.CleanedSeries, horizon time.Duration) (*models.ForecastResult, error) {
	if cleaned.Empty() {
		return nil, &models.ForecastUnavailableError{
			WorkloadID: cleaned.WorkloadID,
			Dimension:  cleaned.Dimension,
			Reason:     "cleaned series has no valid buckets",
		}
	}
	if horizon <= 0 {
		return nil, &models.InvalidWindowError{Window: horizon}
	}

	if cleaned.ValidCount < f.cfg.MinModelPoints {
		return f.fallback(cleaned, horizon,
			fmt.Sprintf("%d valid points, trend model needs %d", cleaned.ValidCount, f.cfg.MinModelPoints)), nil
	}
	if ctx.Err() != nil {
		return f.fallback(cleaned, horizon, "model fitting canceled"), nil
	}

	return f.fitTrend(ctx, cleaned, horizon), nil
}

// fitTrend fits the trend (and seasonal component when the series is long
// enough) and builds the banded projection at the end of the horizon.
func (f *TrendForecaster) fitTrend(ctx context.Context, cleaned *models.CleanedSeries, horizon time.Duration) *models.ForecastResult {
	xs := make([]float64, 0, cleaned.ValidCount)
	ys := make([]float64, 0, cleaned.ValidCount)
	hours := make([]int, 0, cleaned.ValidCount)
	for _, b := range cleaned.Buckets {
		if b.State == models.BucketExcluded {
			continue
		}
		xs = append(xs, b.Time.Sub(cleaned.WindowStart).Minutes())
		ys = append(ys, b.Value)
		hours = append(hours, b.Time.Hour())
	}

	slope, intercept, _ := linearRegression(xs, ys)

	// Fitting past this point layers the seasonal component on; a cut-off
	// here still must yield a deterministic result, so fall back entirely
	// rather than return a half-fitted model.
	if ctx.Err() != nil {
		return f.fallback(cleaned, horizon, "model fitting canceled")
	}

	residuals := make([]float64, len(ys))
	for i := range ys {
		residuals[i] = ys[i] - (slope*xs[i] + intercept)
	}

	target := cleaned.WindowEnd.Add(horizon)
	targetX := target.Sub(cleaned.WindowStart).Minutes()
	point := slope*targetX + intercept

	model := models.ModelLinear
	reason := fmt.Sprintf("least-squares trend over %d valid points", len(ys))

	if cleaned.ValidCount >= f.cfg.MinSeasonalPoints {
		hourMeans := hourlyMeans(residuals, hours)
		if adj, ok := hourMeans[target.Hour()]; ok {
			point += adj
			for i := range residuals {
				if m, ok := hourMeans[hours[i]]; ok {
					residuals[i] -= m
				}
			}
			model = models.ModelLinearSeasonal
			reason = fmt.Sprintf("trend plus hour-of-day adjustment over %d valid points", len(ys))
		}
	}

	if point < 0 {
		point = 0
	}

	// Residual spread at the configured confidence level gives the band.
	// A perfect fit has zero spread and a zero-width band.
	z := normalQuantile(0.5 + f.cfg.ConfidenceLevel/2)
	band := z * stddev(residuals)

	lower := point - band
	if lower < 0 {
		lower = 0
	}

	return &models.ForecastResult{
		WorkloadID:      cleaned.WorkloadID,
		Dimension:       cleaned.Dimension,
		PointForecast:   point,
		LowerBound:      lower,
		UpperBound:      point + band,
		Horizon:         horizon,
		ModelConfidence: f.modelConfidence(xs, ys, residuals),
		Model:           model,
		ModelReason:     reason,
	}
}

// fallback is the deterministic trailing-percentile projection: the p90 of
// the window as the point, banded by p50 and the observed maximum, at a low
// fixed confidence.
func (f *TrendForecaster) fallback(cleaned *models.CleanedSeries, horizon time.Duration, reason string) *models.ForecastResult {
	return &models.ForecastResult{
		WorkloadID:      cleaned.WorkloadID,
		Dimension:       cleaned.Dimension,
		PointForecast:   cleaned.Stats.P90,
		LowerBound:      cleaned.Stats.P50,
		UpperBound:      cleaned.Stats.Max,
		Horizon:         horizon,
		ModelConfidence: f.cfg.FallbackConfidence,
		Model:           models.ModelTrailingPercentile,
		ModelReason:     reason,
	}
}

// modelConfidence blends fit quality with how predictable the usage pattern
// class is, capped at the steady-pattern ceiling.
func (f *TrendForecaster) modelConfidence(xs, ys, residuals []float64) float64 {
	_, _, r2 := linearRegressionQuality(xs, ys, residuals)
	pattern := ClassifyPattern(ys)

	confidence := 0.5*r2 + 0.5*pattern.Confidence
	if confidence > 0.95 {
		confidence = 0.95
	}
	if confidence < 0.05 {
		confidence = 0.05
	}
	return confidence
}

// linearRegressionQuality recomputes fit quality from the final residuals
// (after any seasonal adjustment), mirroring linearRegression's r2 rules.
func linearRegressionQuality(xs, ys, residuals []float64) (ssTotal, ssRes, r2 float64) {
	meanY := mean(ys)
	for i := range ys {
		ssTotal += (ys[i] - meanY) * (ys[i] - meanY)
		ssRes += residuals[i] * residuals[i]
	}
	switch {
	case ssTotal == 0 && ssRes == 0:
		r2 = 1
	case ssTotal == 0:
		r2 = 0
	default:
		r2 = 1 - ssRes/ssTotal
	}
	if r2 < 0 {
		r2 = 0
	} else if r2 > 1 {
		r2 = 1
	}
	return ssTotal, ssRes, r2
}

// hourlyMeans averages residuals per hour of day. Hours with no samples are
// absent from the map.
func hourlyMeans(residuals []float64, hours []int) map[int]float64 {
	sums := make(map[int]float64)
	counts := make(map[int]int)
	for i, h := range hours {
		sums[h] += residuals[i]
		counts[h]++
	}
	means := make(map[int]float64, len(sums))
	for h, sum := range sums {
		means[h] = sum / float64(counts[h])
	}
	return means
}
