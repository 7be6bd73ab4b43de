package server

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cwbudde/clprof/internal/evtrace"
	"github.com/cwbudde/clprof/internal/prof"
	"github.com/cwbudde/clprof/internal/store"
)

// ErrEmptyTrace is returned for uploads without any record.
var ErrEmptyTrace = fmt.Errorf("%w: no records", evtrace.ErrInvalidTrace)

// entry pairs a report with the computed session it came from. Sessions of
// reports loaded from the store are rebuilt from their trace on first use.
type entry struct {
	report *store.Report

	mu   sync.Mutex
	sess *prof.Session
}

// SessionManager owns the computed sessions served by the API.
type SessionManager struct {
	mu      sync.RWMutex
	entries map[string]*entry

	store       store.Store
	metrics     *Metrics
	broadcaster *EventBroadcaster
}

// NewSessionManager creates a manager. st may be nil to keep sessions in
// memory only.
func NewSessionManager(st store.Store, metrics *Metrics) *SessionManager {
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &SessionManager{
		entries:     make(map[string]*entry),
		store:       st,
		metrics:     metrics,
		broadcaster: NewEventBroadcaster(),
	}
}

// LoadStored registers every report found in the store.
func (sm *SessionManager) LoadStored() (int, error) {
	if sm.store == nil {
		return 0, nil
	}
	infos, err := sm.store.ListReports()
	if err != nil {
		return 0, fmt.Errorf("failed to list stored reports: %w", err)
	}

	// Sessions are rebuilt lazily from their traces
	sm.mu.Lock()
	defer sm.mu.Unlock()
	n := 0
	for _, info := range infos {
		report, err := sm.store.LoadReport(info.ID)
		if err != nil {
			slog.Warn("Skipping stored report", "id", info.ID, "error", err)
			continue
		}
		sm.entries[report.ID] = &entry{report: report}
		sm.metrics.ObserveReport(report)
		n++
	}
	return n, nil
}

func computeSession(recs []evtrace.Record) (*prof.Session, error) {
	queues := evtrace.Queues(recs)
	if len(queues) == 0 {
		return nil, ErrEmptyTrace
	}
	sess := prof.NewSession()
	evtrace.Register(sess, queues)
	if err := sess.Compute(); err != nil {
		sess.Close()
		return nil, err
	}
	return sess, nil
}

// Create computes a session from trace records, persists it when a store is
// configured and returns its report.
func (sm *SessionManager) Create(name string, recs []evtrace.Record) (*store.Report, error) {
	start := time.Now()
	sess, err := computeSession(recs)
	if err != nil {
		return nil, err
	}
	sm.metrics.ComputeLatency.Observe(time.Since(start).Seconds())

	// Persist before publishing so listed reports survive a restart
	report := store.NewReport(uuid.New().String(), name, sess)
	if sm.store != nil {
		if err := sm.persist(report, sess, recs); err != nil {
			sess.Close()
			return nil, err
		}
	}

	sm.mu.Lock()
	sm.entries[report.ID] = &entry{report: report, sess: sess}
	sm.mu.Unlock()

	// Update metrics and notify subscribers
	sm.metrics.SessionsCreated.Inc()
	sm.metrics.SkippedEvents.Add(float64(report.Skipped))
	sm.metrics.ObserveReport(report)
	sm.broadcaster.Broadcast(SessionEvent{Type: EventCreated, ID: report.ID, Name: name, Timestamp: time.Now()})

	slog.Info("Session created", "id", report.ID, "name", name, "events", report.NumEvents, "skipped", report.Skipped)
	return report, nil
}

func (sm *SessionManager) persist(report *store.Report, sess *prof.Session, recs []evtrace.Record) error {
	var export bytes.Buffer
	if err := sess.Export(&export, prof.DefaultExportOptions()); err != nil {
		return fmt.Errorf("failed to export session: %w", err)
	}
	if err := sm.store.SaveReport(report, export.Bytes()); err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	if err := sm.store.SaveTrace(report.ID, recs); err != nil {
		return fmt.Errorf("failed to save trace: %w", err)
	}
	return nil
}

// Get returns the report of a session.
func (sm *SessionManager) Get(id string) (*store.Report, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	e, ok := sm.entries[id]
	if !ok {
		return nil, false
	}
	return e.report, true
}

// List returns all reports, oldest first.
func (sm *SessionManager) List() []*store.Report {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	reports := make([]*store.Report, 0, len(sm.entries))
	for _, e := range sm.entries {
		reports = append(reports, e.report)
	}
	sort.SliceStable(reports, func(i, j int) bool {
		if reports[i].Created.Equal(reports[j].Created) {
			return reports[i].ID < reports[j].ID
		}
		return reports[i].Created.Before(reports[j].Created)
	})
	return reports
}

func (sm *SessionManager) withSession(id string, fn func(*prof.Session) error) error {
	sm.mu.RLock()
	e, ok := sm.entries[id]
	sm.mu.RUnlock()
	if !ok {
		return &store.NotFoundError{ID: id}
	}

	// Rebuild the session from its stored trace on first use
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sess == nil {
		if sm.store == nil {
			return fmt.Errorf("session %s has no trace to rebuild from", id)
		}
		recs, err := sm.store.LoadTrace(id)
		if err != nil {
			return fmt.Errorf("failed to load trace of session %s: %w", id, err)
		}
		sess, err := computeSession(recs)
		if err != nil {
			return fmt.Errorf("failed to rebuild session %s: %w", id, err)
		}
		e.sess = sess
		slog.Debug("Session rebuilt from stored trace", "id", id)
	}
	return fn(e.sess)
}

// Summary renders the text summary of a session.
func (sm *SessionManager) Summary(id string, aggSort prof.AggSort, ovlpSort prof.OverlapSort) (string, error) {
	var out string
	err := sm.withSession(id, func(s *prof.Session) error {
		out = s.Summary(aggSort, ovlpSort)
		return nil
	})
	return out, err
}

// Export writes the flat event export of a session to w.
func (sm *SessionManager) Export(id string, w io.Writer, opts prof.ExportOptions) error {
	return sm.withSession(id, func(s *prof.Session) error {
		return s.Export(w, opts)
	})
}

// Delete drops a session and its stored report.
func (sm *SessionManager) Delete(id string) error {
	sm.mu.Lock()
	e, ok := sm.entries[id]
	if ok {
		delete(sm.entries, id)
	}
	sm.mu.Unlock()
	if !ok {
		return &store.NotFoundError{ID: id}
	}

	// Release queues held by the computed session
	e.mu.Lock()
	if e.sess != nil {
		e.sess.Close()
		e.sess = nil
	}
	e.mu.Unlock()

	sm.metrics.Forget(id)
	sm.broadcaster.Broadcast(SessionEvent{Type: EventDeleted, ID: id, Name: e.report.Name, Timestamp: time.Now()})

	if sm.store != nil {
		if err := sm.store.DeleteReport(id); err != nil && !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("failed to delete stored report: %w", err)
		}
	}
	return nil
}

// Close releases every computed session.
func (sm *SessionManager) Close() {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	for _, e := range sm.entries {
		e.mu.Lock()
		if e.sess != nil {
			e.sess.Close()
			e.sess = nil
		}
		e.mu.Unlock()
	}
	sm.broadcaster.CloseAll()
}
