package store

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/cwbudde/clprof/internal/evtrace"
)

// FSStore implements Store on the filesystem. Each report lives in
// <baseDir>/reports/<id>/ as report.json, events.tsv and, when saved,
// trace.jsonl.
//
// Writes go through a temp file and a rename, so no locks are needed.
type FSStore struct {
	baseDir string
}

// NewFSStore creates a filesystem store rooted at baseDir, creating the
// directory if needed.
func NewFSStore(baseDir string) (*FSStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &FSStore{baseDir: baseDir}, nil
}

func (fs *FSStore) reportDir(id string) string {
	return filepath.Join(fs.baseDir, "reports", id)
}

func (fs *FSStore) reportPath(id string) string {
	return filepath.Join(fs.reportDir(id), "report.json")
}

func (fs *FSStore) exportPath(id string) string {
	return filepath.Join(fs.reportDir(id), "events.tsv")
}

func (fs *FSStore) tracePath(id string) string {
	return filepath.Join(fs.reportDir(id), "trace.jsonl")
}

func writeAtomic(path string, data []byte) error {
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	// Rename is atomic on POSIX
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// SaveReport atomically saves a report and its export.
func (fs *FSStore) SaveReport(report *Report, export []byte) error {
	if report == nil {
		return fmt.Errorf("report cannot be nil")
	}
	if err := report.Validate(); err != nil {
		return fmt.Errorf("invalid report: %w", err)
	}

	// Ensure report directory exists
	dir := fs.reportDir(report.ID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	// Serialize to JSON
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize report: %w", err)
	}

	// The export goes first so a visible report.json always has one.
	if err := writeAtomic(fs.exportPath(report.ID), export); err != nil {
		return fmt.Errorf("failed to save export: %w", err)
	}
	if err := writeAtomic(fs.reportPath(report.ID), data); err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}

	slog.Debug("Report saved", "id", report.ID, "path", dir)
	return nil
}

// LoadReport retrieves the report with the given ID.
func (fs *FSStore) LoadReport(id string) (*Report, error) {
	if id == "" {
		return nil, fmt.Errorf("report id cannot be empty")
	}

	data, err := os.ReadFile(fs.reportPath(id))
	if os.IsNotExist(err) {
		return nil, &NotFoundError{ID: id}
	} else if err != nil {
		return nil, fmt.Errorf("failed to read report file: %w", err)
	}

	// Deserialize from JSON
	var report Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to deserialize report: %w", err)
	}
	return &report, nil
}

// LoadExport returns the export saved with a report.
func (fs *FSStore) LoadExport(id string) ([]byte, error) {
	if id == "" {
		return nil, fmt.Errorf("report id cannot be empty")
	}
	data, err := os.ReadFile(fs.exportPath(id))
	if os.IsNotExist(err) {
		return nil, &NotFoundError{ID: id}
	} else if err != nil {
		return nil, fmt.Errorf("failed to read export file: %w", err)
	}
	return data, nil
}

// SaveTrace atomically saves the trace of an existing report.
func (fs *FSStore) SaveTrace(id string, recs []evtrace.Record) error {
	if id == "" {
		return fmt.Errorf("report id cannot be empty")
	}
	// A trace is only kept next to a saved report
	if _, err := os.Stat(fs.reportDir(id)); os.IsNotExist(err) {
		return &NotFoundError{ID: id}
	}

	path := fs.tracePath(id)
	tempPath := path + ".tmp"
	if err := evtrace.WriteFile(tempPath, recs); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to write trace: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename trace file: %w", err)
	}
	return nil
}

// LoadTrace reads the trace saved with a report.
func (fs *FSStore) LoadTrace(id string) ([]evtrace.Record, error) {
	if id == "" {
		return nil, fmt.Errorf("report id cannot be empty")
	}
	path := fs.tracePath(id)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, &NotFoundError{ID: id}
	}
	recs, err := evtrace.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load trace: %w", err)
	}
	return recs, nil
}

// ListReports returns metadata for every readable report, oldest first.
func (fs *FSStore) ListReports() ([]ReportInfo, error) {
	reportsDir := filepath.Join(fs.baseDir, "reports")

	entries, err := os.ReadDir(reportsDir)
	if os.IsNotExist(err) {
		// No reports saved yet
		return []ReportInfo{}, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to read reports directory: %w", err)
	}

	infos := []ReportInfo{}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		// Skip directories without a report.json (interrupted saves)
		id := entry.Name()
		if _, err := os.Stat(fs.reportPath(id)); os.IsNotExist(err) {
			continue
		}

		report, err := fs.LoadReport(id)
		if err != nil {
			slog.Warn("Failed to load report for listing", "id", id, "error", err)
			continue
		}

		info := report.ToInfo()
		info.Size = dirSize(fs.reportDir(id))
		infos = append(infos, info)
	}

	// Sort by creation time (oldest first)
	sort.SliceStable(infos, func(i, j int) bool {
		return infos[i].Created.Before(infos[j].Created)
	})

	slog.Debug("Listed reports", "count", len(infos))
	return infos, nil
}

func dirSize(dir string) int64 {
	var size int64
	filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			size += info.Size()
		}
		return nil
	})
	return size
}

// DeleteReport removes a report directory.
func (fs *FSStore) DeleteReport(id string) error {
	if id == "" {
		return fmt.Errorf("report id cannot be empty")
	}

	// Check if report exists
	dir := fs.reportDir(id)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return &NotFoundError{ID: id}
	} else if err != nil {
		return fmt.Errorf("failed to stat report directory: %w", err)
	}

	// Remove the directory with everything saved in it
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove report directory: %w", err)
	}

	slog.Debug("Report deleted", "id", id, "path", dir)
	return nil
}
