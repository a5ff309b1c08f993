package models

import (
	"strconv"
	"time"
)

// ExperimentID identifies a single content experiment.
type ExperimentID string

// ChosenVariation is the outcome of a variation decision for one visitor.
// Non-negative values index a concrete variation, with 0 always meaning the
// original page. The negative values are sentinels.
type ChosenVariation int

const (
	// OriginalVariation is the control variation shown when the weighted
	// draw exhausts every candidate.
	OriginalVariation ChosenVariation = 0

	// NoChosenVariation means no decision has been made yet. It never
	// appears inside a cookie; callers use it as the "unset" value.
	NoChosenVariation ChosenVariation = -1

	// NotParticipating means the visitor landed in a bucket that excludes
	// them from the experiment entirely.
	NotParticipating ChosenVariation = -2
)

// Participating reports whether the visitor takes part in the experiment.
// The original variation counts as participating; it is the control group.
func (v ChosenVariation) Participating() bool {
	return v != NotParticipating
}

// Decided reports whether a decision has been recorded at all.
func (v ChosenVariation) Decided() bool {
	return v != NoChosenVariation
}

// String renders the variation for logs and CLI output.
func (v ChosenVariation) String() string {
	switch v {
	case NoChosenVariation:
		return "none"
	case NotParticipating:
		return "not-participating"
	case OriginalVariation:
		return "original"
	default:
		return strconv.Itoa(int(v))
	}
}

// VariationRecord describes one candidate bucket of an experiment. A nil ID
// marks an exclusion bucket: visitors who draw into it do not participate.
type VariationRecord struct {
	ID       *int    `json:"id"`
	Weight   float64 `json:"weight"`
	Disabled bool    `json:"disabled,omitempty"`
}

// Excluded reports whether the record is an exclusion bucket.
func (r VariationRecord) Excluded() bool {
	return r.ID == nil
}

// AssignmentSource records how a variation decision was produced.
type AssignmentSource string

const (
	SourceDraw   AssignmentSource = "draw"   // weighted random draw
	SourceCookie AssignmentSource = "cookie" // prior assignment replayed from the visitor's cookie
	SourceForced AssignmentSource = "forced" // operator override via the force parameter
)

// Assignment is one recorded variation decision.
type Assignment struct {
	ID           string           `json:"id"`
	ExperimentID ExperimentID     `json:"experiment_id"`
	Variation    ChosenVariation  `json:"variation"`
	Source       AssignmentSource `json:"source"`
	RequestID    string           `json:"request_id,omitempty"`
	DomainHash   uint32           `json:"domain_hash,omitempty"`
	DecidedAt    time.Time        `json:"decided_at"`
}

// VariationCount is the number of assignments that landed on one variation.
type VariationCount struct {
	Variation ChosenVariation `json:"variation"`
	Count     int64           `json:"count"`
}

// DayCount is the number of assignments recorded on one calendar day (UTC).
type DayCount struct {
	Day   string `json:"day"`
	Count int64  `json:"count"`
}

// ExperimentStats summarizes recorded assignments for one experiment over
// a time window.
type ExperimentStats struct {
	ExperimentID ExperimentID     `json:"experiment_id"`
	Since        time.Time        `json:"since"`
	Until        time.Time        `json:"until"`
	Total        int64            `json:"total"`
	Variations   []VariationCount `json:"variations"`
	PerDay       []DayCount       `json:"per_day,omitempty"`
}
