// Package policy turns cleaned statistics, health signals and forecasts into
// the final request/limit decision. Every adjustment it applies is recorded,
// in order, in the recommendation's rationale.
package policy

import (
	"fmt"

	"github.com/kubesage/k8s-resource-advisor/pkg/models"
)

// Rationale rule names, in the order the policy applies them.
const (
	RuleCleaning        = "cleaning"
	RuleForecastPath    = "forecast-path"
	RuleBaseRequest     = "base-request"
	RuleRequestHeadroom = "request-headroom"
	RuleRequestFloor    = "request-floor"
	RuleBaseLimit       = "base-limit"
	RuleLimitHeadroom   = "limit-headroom"
	RuleOOMEscalation   = "oom-escalation"
	RuleThrottleBlend   = "throttle-blend"
	RuleLimitClamp      = "limit-clamp"
)

// Config holds the policy knobs for one resource dimension. Values are in
// the dimension's unit (millicores or bytes).
type Config struct {
	// HeadroomRequestMultiplier scales the request base. Default 1.2.
	HeadroomRequestMultiplier float64

	// HeadroomLimitMultiplier scales the limit base. Default 1.5.
	HeadroomLimitMultiplier float64

	// MinAllocation floors the request. Zero means no floor.
	MinAllocation float64

	// OOMSafetyMargin raises the limit by this fraction when any OOM was
	// seen in the window. Default 0.2.
	OOMSafetyMargin float64

	// ThrottleRatioThreshold above which the request is blended toward the
	// limit. Default 0.25.
	ThrottleRatioThreshold float64

	// ThrottleBlendFactor is how far toward the limit the request moves
	// when throttling is above the threshold. Default 0.5.
	ThrottleBlendFactor float64
}

// DefaultConfig returns the policy defaults.
func DefaultConfig() Config {
	return Config{
		HeadroomRequestMultiplier: 1.2,
		HeadroomLimitMultiplier:   1.5,
		OOMSafetyMargin:           0.2,
		ThrottleRatioThreshold:    0.25,
		ThrottleBlendFactor:       0.5,
	}
}

func (c Config) normalized() Config {
	def := DefaultConfig()
	if c.HeadroomRequestMultiplier <= 0 {
		c.HeadroomRequestMultiplier = def.HeadroomRequestMultiplier
	}
	if c.HeadroomLimitMultiplier <= 0 {
		c.HeadroomLimitMultiplier = def.HeadroomLimitMultiplier
	}
	if c.OOMSafetyMargin < 0 {
		c.OOMSafetyMargin = def.OOMSafetyMargin
	}
	if c.ThrottleRatioThreshold <= 0 {
		c.ThrottleRatioThreshold = def.ThrottleRatioThreshold
	}
	if c.ThrottleBlendFactor <= 0 || c.ThrottleBlendFactor > 1 {
		c.ThrottleBlendFactor = def.ThrottleBlendFactor
	}
	return c
}

// Policy decides request/limit pairs. Stateless; safe for concurrent use.
type Policy struct {
	cfg Config
}

// New creates a policy with the given configuration.
func New(cfg Config) *Policy {
	return &Policy{cfg: cfg.normalized()}
}

// Recommend builds the recommendation for one workload+dimension. Given
// identical inputs and configuration the output is bit-for-bit identical:
// the policy reads no clock and holds no state.
//
// The limit is kept at or above the request by clamping the limit upward,
// never by swapping the two.
func (p *Policy) Recommend(cleaned *models.CleanedSeries, health *models.HealthSignal, fc *models.ForecastResult) (*models.Recommendation, error) {
	rec := &models.Recommendation{
		WorkloadID: cleaned.WorkloadID,
		Dimension:  cleaned.Dimension,
	}

	for _, note := range cleaned.CleaningNotes {
		rec.Rationale = append(rec.Rationale, models.RationaleEntry{Rule: RuleCleaning, Detail: note})
	}
	rec.Rationale = append(rec.Rationale, models.RationaleEntry{
		Rule:   RuleForecastPath,
		Detail: fmt.Sprintf("%s: %s", fc.Model, fc.ModelReason),
	})

	// Request: historical median vs point forecast, whichever is higher,
	// with headroom on top.
	requestBase := cleaned.Stats.P50
	if fc.PointForecast > requestBase {
		requestBase = fc.PointForecast
	}
	rec.Rationale = append(rec.Rationale, models.RationaleEntry{
		Rule:   RuleBaseRequest,
		Detail: fmt.Sprintf("max(p50=%.1f, forecast=%.1f) = %.1f", cleaned.Stats.P50, fc.PointForecast, requestBase),
	})

	request := requestBase * p.cfg.HeadroomRequestMultiplier
	rec.Rationale = append(rec.Rationale, models.RationaleEntry{
		Rule:   RuleRequestHeadroom,
		Detail: fmt.Sprintf("x%.2f headroom = %.1f", p.cfg.HeadroomRequestMultiplier, request),
	})

	if p.cfg.MinAllocation > 0 && request < p.cfg.MinAllocation {
		request = p.cfg.MinAllocation
		rec.Rationale = append(rec.Rationale, models.RationaleEntry{
			Rule:   RuleRequestFloor,
			Detail: fmt.Sprintf("raised to minimum allocation %.1f", p.cfg.MinAllocation),
		})
	}

	// Limit: historical tail vs forecast upper bound, with wider headroom.
	limitBase := cleaned.Stats.P99
	if fc.UpperBound > limitBase {
		limitBase = fc.UpperBound
	}
	rec.Rationale = append(rec.Rationale, models.RationaleEntry{
		Rule:   RuleBaseLimit,
		Detail: fmt.Sprintf("max(p99=%.1f, forecast upper=%.1f) = %.1f", cleaned.Stats.P99, fc.UpperBound, limitBase),
	})

	limit := limitBase * p.cfg.HeadroomLimitMultiplier
	rec.Rationale = append(rec.Rationale, models.RationaleEntry{
		Rule:   RuleLimitHeadroom,
		Detail: fmt.Sprintf("x%.2f headroom = %.1f", p.cfg.HeadroomLimitMultiplier, limit),
	})

	if health.OOMCount > 0 {
		limit *= 1 + p.cfg.OOMSafetyMargin
		rec.Rationale = append(rec.Rationale, models.RationaleEntry{
			Rule: RuleOOMEscalation,
			Detail: fmt.Sprintf("%d OOM event(s) in window, limit raised by %.0f%% to %.1f",
				health.OOMCount, p.cfg.OOMSafetyMargin*100, limit),
		})
	}

	if health.ThrottleRatio > p.cfg.ThrottleRatioThreshold && limit > request {
		request += (limit - request) * p.cfg.ThrottleBlendFactor
		rec.Rationale = append(rec.Rationale, models.RationaleEntry{
			Rule: RuleThrottleBlend,
			Detail: fmt.Sprintf("throttle ratio %.2f above %.2f, request blended toward limit by %.2f to %.1f",
				health.ThrottleRatio, p.cfg.ThrottleRatioThreshold, p.cfg.ThrottleBlendFactor, request),
		})
	}

	if limit < request {
		limit = request
		rec.Rationale = append(rec.Rationale, models.RationaleEntry{
			Rule:   RuleLimitClamp,
			Detail: fmt.Sprintf("limit clamped up to request %.1f", request),
		})
	}

	if request <= 0 || limit < request {
		return nil, &models.PolicyViolationError{
			WorkloadID: cleaned.WorkloadID,
			Dimension:  cleaned.Dimension,
			Request:    request,
			Limit:      limit,
			Detail:     "request must be positive and limit must cover it after all adjustments",
		}
	}

	rec.RecommendedRequest = request
	rec.RecommendedLimit = limit
	rec.Confidence = confidence(fc.ModelConfidence, cleaned.Completeness)

	return rec, nil
}

// confidence blends model confidence with data completeness; either input
// being weak drags the result down.
func confidence(modelConfidence, completeness float64) float64 {
	c := 0.6*modelConfidence + 0.4*completeness
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
