package store

import "github.com/cwbudde/clprof/internal/evtrace"

// Store persists computed profile reports.
// Implementations must be safe for concurrent use.
//
// Error handling conventions:
//   - Return ErrNotFound if a report doesn't exist (for Load/Delete)
//   - Wrap underlying errors with context using fmt.Errorf("context: %w", err)
type Store interface {
	// SaveReport atomically saves a report together with its flat event
	// export. An existing report with the same ID is overwritten.
	SaveReport(report *Report, export []byte) error

	// LoadReport retrieves the report with the given ID.
	LoadReport(id string) (*Report, error)

	// LoadExport returns the flat event export saved with a report.
	LoadExport(id string) ([]byte, error)

	// SaveTrace stores the event trace a report was computed from, so the
	// session can be rebuilt later.
	SaveTrace(id string, recs []evtrace.Record) error

	// LoadTrace returns the trace saved with SaveTrace.
	LoadTrace(id string) ([]evtrace.Record, error)

	// ListReports returns metadata for all stored reports, oldest first.
	ListReports() ([]ReportInfo, error)

	// DeleteReport removes a report and its export.
	DeleteReport(id string) error
}

// ErrNotFound is returned when a requested report does not exist.
// Use errors.Is(err, ErrNotFound) to check for this error.
var ErrNotFound = &NotFoundError{}

// NotFoundError represents a missing report.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return "report not found: " + e.ID
	}
	return "report not found"
}

func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)
	return ok
}
