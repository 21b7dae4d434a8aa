package forecast

// UsagePattern classifies how variable a series is.
type UsagePattern struct {
	Type       string
	Variation  float64 // coefficient of variation
	Confidence float64 // how predictable this class of workload is
}

// ClassifyPattern buckets a series by its coefficient of variation. Steadier
// usage is easier to project, so the class carries a confidence weight used
// by the forecast.
func ClassifyPattern(values []float64) UsagePattern {
	if len(values) < 10 {
		return UsagePattern{Type: "unknown"}
	}

	m := mean(values)
	if m == 0 {
		return UsagePattern{Type: "idle", Confidence: 0.5}
	}
	cv := stddev(values) / m

	switch {
	case cv < 0.15:
		return UsagePattern{Type: "steady", Variation: cv, Confidence: 0.95}
	case cv < 0.35:
		return UsagePattern{Type: "moderate", Variation: cv, Confidence: 0.85}
	case cv < 0.70:
		return UsagePattern{Type: "spiky", Variation: cv, Confidence: 0.80}
	default:
		return UsagePattern{Type: "highly-variable", Variation: cv, Confidence: 0.75}
	}
}
