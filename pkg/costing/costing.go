// Package costing prices allocation changes for reports. Unit rates are
// static per-cloud tables; the cloud itself is detected from node metadata.
// Estimates decorate report rows and never influence recommendation values.
package costing

import (
	"github.com/kubesage/k8s-resource-advisor/pkg/models"
)

const bytesPerGiB = 1024 * 1024 * 1024

// Rates is the monthly price of one allocation unit, in USD.
type Rates struct {
	CPUCoreMonthly float64
	MemGiBMonthly  float64
}

// Provider reports unit rates for one cloud. Unknown regions fall back to
// the cloud's base rates.
type Provider interface {
	Name() string
	UnitRates(region string) Rates
}

// Estimator converts allocation values into monthly dollar figures using a
// fixed provider and region.
type Estimator struct {
	provider Provider
	region   string
}

func NewEstimator(provider Provider, region string) *Estimator {
	if provider == nil {
		provider = Generic()
	}
	return &Estimator{provider: provider, region: region}
}

// Provider returns the cloud the estimator prices against.
func (e *Estimator) Provider() string {
	return e.provider.Name()
}

// Region returns the region the estimator prices against.
func (e *Estimator) Region() string {
	return e.region
}

// MonthlyCost prices a single requested allocation. CPU values are
// millicores, memory values are bytes.
func (e *Estimator) MonthlyCost(request float64, dim models.ResourceDimension) float64 {
	if request <= 0 {
		return 0
	}
	rates := e.provider.UnitRates(e.region)
	switch dim {
	case models.DimensionCPU:
		return request / 1000.0 * rates.CPUCoreMonthly
	case models.DimensionMemory:
		return request / bytesPerGiB * rates.MemGiBMonthly
	default:
		return 0
	}
}

// EstimateMonthlySavings prices the gap between the current and recommended
// request. Positive means the recommendation frees money, negative means it
// asks for more. A zero current request prices the recommendation as pure
// new spend; callers that treat "unset" specially should skip those rows.
func (e *Estimator) EstimateMonthlySavings(currentReq, recommendedReq float64, dim models.ResourceDimension) float64 {
	return e.MonthlyCost(currentReq, dim) - e.MonthlyCost(recommendedReq, dim)
}
