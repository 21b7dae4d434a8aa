package models

import "time"

// RationaleEntry is one applied rule in a recommendation's justification.
// Entries are ordered by application.
type RationaleEntry struct {
	Rule   string `json:"rule"`
	Detail string `json:"detail"`
}

// Recommendation is the terminal artifact for one workload+dimension:
// a bounded request/limit pair with its justification. Immutable once
// emitted. Values use the dimension's unit (millicores or bytes).
type Recommendation struct {
	WorkloadID string
	Dimension  ResourceDimension

	RecommendedRequest float64
	RecommendedLimit   float64

	// Confidence blends forecast model confidence with data completeness.
	Confidence float64

	Rationale []RationaleEntry

	// ID and CreatedAt are assigned on persist, not by the policy.
	ID        string
	CreatedAt time.Time
}

// AuditEntry records an action taken on a stored recommendation
type AuditEntry struct {
	ID               string
	RecommendationID string
	Action           string // APPLIED, ROLLED_BACK, REVIEWED
	Status           string // SUCCESS, FAILED
	Detail           string
	Actor            string
	ExecutedAt       time.Time
}
