package store

import (
	"time"

	"github.com/cwbudde/clprof/internal/prof"
)

// Report is an immutable snapshot of a computed profiling session.
type Report struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	Created time.Time `json:"created"`

	Queues        []string `json:"queues"`
	NumEvents     int      `json:"numEvents"`
	Skipped       int      `json:"skipped"`
	Total         uint64   `json:"total"`
	Effective     uint64   `json:"effective"`
	EarliestStart uint64   `json:"earliestStart"`

	// Aggregates are in name order, Overlaps in name-pair order.
	Aggregates []prof.Agg     `json:"aggregates"`
	Overlaps   []prof.Overlap `json:"overlaps"`

	// Summary is the text summary rendered with the default sorts.
	Summary string `json:"summary,omitempty"`
}

// ReportInfo is the listing view of a report.
type ReportInfo struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Created   time.Time `json:"created"`
	NumEvents int       `json:"numEvents"`
	Total     uint64    `json:"total"`
	Effective uint64    `json:"effective"`
	// Size is the on-disk size of the report directory in bytes.
	Size int64 `json:"size"`
}

// NewReport snapshots a computed session.
func NewReport(id, name string, s *prof.Session) *Report {
	return &Report{
		ID:            id,
		Name:          name,
		Created:       time.Now(),
		Queues:        s.Queues(),
		NumEvents:     s.NumEvents(),
		Skipped:       s.Skipped(),
		Total:         s.TotalDuration(),
		Effective:     s.EffectiveDuration(),
		EarliestStart: s.EarliestStart(),
		Aggregates:    s.Aggregates(prof.AggSort{Key: prof.AggByName}),
		Overlaps:      s.Overlaps(prof.OverlapSort{Key: prof.OverlapByName}),
		Summary:       s.Summary(prof.DefaultAggSort, prof.DefaultOverlapSort),
	}
}

// ToInfo converts a Report to its listing view.
func (r *Report) ToInfo() ReportInfo {
	return ReportInfo{
		ID:        r.ID,
		Name:      r.Name,
		Created:   r.Created,
		NumEvents: r.NumEvents,
		Total:     r.Total,
		Effective: r.Effective,
	}
}

// Validate checks that the report is internally consistent.
func (r *Report) Validate() error {
	if r.ID == "" {
		return &ValidationError{Field: "ID", Reason: "cannot be empty"}
	}
	if r.Created.IsZero() {
		return &ValidationError{Field: "Created", Reason: "cannot be zero"}
	}
	if r.Effective > r.Total {
		return &ValidationError{Field: "Effective", Reason: "cannot exceed total"}
	}
	var sum uint64
	for _, a := range r.Aggregates {
		sum += a.AbsoluteTime
	}
	if sum != r.Total {
		return &ValidationError{Field: "Aggregates", Reason: "do not sum to total"}
	}
	return nil
}

// ValidationError represents a report validation error.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Field + " " + e.Reason
}
