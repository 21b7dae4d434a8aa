package models

import (
	"errors"
	"fmt"
	"time"
)

// InsufficientDataError reports that too few valid points remained after
// resampling and gap exclusion to analyze a series.
type InsufficientDataError struct {
	WorkloadID     string
	Dimension      ResourceDimension
	ValidPoints    int
	RequiredPoints int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data for %s/%s: %d valid points, need %d",
		e.WorkloadID, e.Dimension, e.ValidPoints, e.RequiredPoints)
}

// InvalidWindowError reports a non-positive analysis window.
type InvalidWindowError struct {
	Window time.Duration
}

func (e *InvalidWindowError) Error() string {
	return fmt.Sprintf("invalid analysis window %v: must be positive", e.Window)
}

// MissingAllocationContextError reports that saturation could not be computed
// because the workload's current allocation is unknown.
type MissingAllocationContextError struct {
	WorkloadID string
	Dimension  ResourceDimension
}

func (e *MissingAllocationContextError) Error() string {
	return fmt.Sprintf("no current allocation known for %s/%s: saturation is relative to the configured ceiling",
		e.WorkloadID, e.Dimension)
}

// ForecastUnavailableError reports that a forecast could not be produced at
// all. Only an empty cleaned series triggers it; every other condition
// degrades to the fallback projection instead.
type ForecastUnavailableError struct {
	WorkloadID string
	Dimension  ResourceDimension
	Reason     string
}

func (e *ForecastUnavailableError) Error() string {
	return fmt.Sprintf("forecast unavailable for %s/%s: %s", e.WorkloadID, e.Dimension, e.Reason)
}

// PolicyViolationError reports that the policy could not satisfy its output
// invariants. Clamping should make this unreachable; treat an occurrence as
// a bug, not an operational condition.
type PolicyViolationError struct {
	WorkloadID string
	Dimension  ResourceDimension
	Request    float64
	Limit      float64
	Detail     string
}

func (e *PolicyViolationError) Error() string {
	return fmt.Sprintf("policy invariant violated for %s/%s (request=%.3f limit=%.3f): %s",
		e.WorkloadID, e.Dimension, e.Request, e.Limit, e.Detail)
}

// IsInsufficientData checks if an error is an InsufficientDataError.
func IsInsufficientData(err error) bool {
	var target *InsufficientDataError
	return errors.As(err, &target)
}

// IsInvalidWindow checks if an error is an InvalidWindowError.
func IsInvalidWindow(err error) bool {
	var target *InvalidWindowError
	return errors.As(err, &target)
}

// IsMissingAllocationContext checks if an error is a MissingAllocationContextError.
func IsMissingAllocationContext(err error) bool {
	var target *MissingAllocationContextError
	return errors.As(err, &target)
}

// IsForecastUnavailable checks if an error is a ForecastUnavailableError.
func IsForecastUnavailable(err error) bool {
	var target *ForecastUnavailableError
	return errors.As(err, &target)
}

// IsPolicyViolation checks if an error is a PolicyViolationError.
func IsPolicyViolation(err error) bool {
	var target *PolicyViolationError
	return errors.As(err, &target)
}
