package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cwbudde/clprof/internal/evtrace"
	"github.com/cwbudde/clprof/internal/prof"
	"github.com/cwbudde/clprof/internal/store"
)

// maxTraceBytes bounds uploaded traces.
const maxTraceBytes = 64 << 20

// Server represents the HTTP server
type Server struct {
	sessions *SessionManager
	metrics  *Metrics
	export   prof.ExportOptions
	aggSort  prof.AggSort
	ovlpSort prof.OverlapSort
	addr     string
	server   *http.Server
}

// Option customises a Server.
type Option func(*Server)

// WithExportOptions sets the export defaults query parameters override.
func WithExportOptions(opts prof.ExportOptions) Option {
	return func(s *Server) { s.export = opts }
}

// WithSummarySorts sets the default summary table sorts.
func WithSummarySorts(agg prof.AggSort, ovlp prof.OverlapSort) Option {
	return func(s *Server) {
		s.aggSort = agg
		s.ovlpSort = ovlp
	}
}

// NewServer creates a new HTTP server. st may be nil to keep sessions in
// memory only.
func NewServer(addr string, st store.Store, opts ...Option) *Server {
	metrics := NewMetrics()
	s := &Server{
		sessions: NewSessionManager(st, metrics),
		metrics:  metrics,
		export:   prof.DefaultExportOptions(),
		aggSort:  prof.DefaultAggSort,
		ovlpSort: prof.DefaultOverlapSort,
		addr:     addr,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	// Event streams never end on their own; closing the broadcaster lets
	// Shutdown drain them.
	s.server.RegisterOnShutdown(s.sessions.broadcaster.CloseAll)
	return s
}

// Sessions returns the session manager.
func (s *Server) Sessions() *SessionManager { return s.sessions }

// Handler returns the routed and wrapped handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", s.metrics.Handler())
	mux.HandleFunc("/api/v1/events", s.handleEvents)
	mux.HandleFunc("/api/v1/sessions", s.handleSessions)
	mux.HandleFunc("/api/v1/sessions/", s.handleSessionsWithID)

	return s.loggingMiddleware(s.corsMiddleware(mux))
}

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start() error {
	l, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	return s.Serve(l)
}

// Serve loads stored sessions and serves on l until Shutdown.
func (s *Server) Serve(l net.Listener) error {
	n, err := s.sessions.LoadStored()
	if err != nil {
		l.Close()
		return err
	}
	if n > 0 {
		slog.Info("Loaded stored sessions", "count", n)
	}

	slog.Info("Starting HTTP server", "addr", l.Addr().String())
	return s.server.Serve(l)
}

// Shutdown disconnects event stream clients, then gracefully shuts down the
// server and releases every session.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down HTTP server")
	defer s.sessions.Close()
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": len(s.sessions.List()),
	})
}

// handleSessions handles /api/v1/sessions
func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateSession(w, r)
	case http.MethodGet:
		s.handleListSessions(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleSessionsWithID handles /api/v1/sessions/:id/*
func (s *Server) handleSessionsWithID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/sessions/")
	parts := strings.Split(path, "/")
	if len(parts) == 0 || parts[0] == "" {
		http.Error(w, "Session ID required", http.StatusBadRequest)
		return
	}
	id := parts[0]

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		s.handleGetSession(w, r, id)
	case len(parts) == 1 && r.Method == http.MethodDelete:
		s.handleDeleteSession(w, r, id)
	case len(parts) == 1:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	case parts[1] == "summary" && r.Method == http.MethodGet:
		s.handleGetSummary(w, r, id)
	case parts[1] == "export" && r.Method == http.MethodGet:
		s.handleGetExport(w, r, id)
	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}

// handleCreateSession handles POST /api/v1/sessions?name=...
// The body is a JSON-lines trace.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		name = "session"
	}

	recs, err := evtrace.NewReader(http.MaxBytesReader(w, r.Body, maxTraceBytes)).ReadAll()
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid trace: %v", err), http.StatusBadRequest)
		return
	}

	report, err := s.sessions.Create(name, recs)
	switch {
	case err == nil:
	case errors.Is(err, evtrace.ErrInvalidTrace):
		http.Error(w, fmt.Sprintf("Invalid trace: %v", err), http.StatusBadRequest)
		return
	case errors.Is(err, prof.ErrProfilingDisabled):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	default:
		slog.Error("Failed to create session", "name", name, "error", err)
		http.Error(w, fmt.Sprintf("Failed to compute session: %v", err), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, report)
}

// handleListSessions handles GET /api/v1/sessions
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	reports := s.sessions.List()
	infos := make([]store.ReportInfo, len(reports))
	for i, report := range reports {
		infos[i] = report.ToInfo()
	}
	writeJSON(w, http.StatusOK, infos)
}

// handleGetSession handles GET /api/v1/sessions/:id
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request, id string) {
	report, ok := s.sessions.Get(id)
	if !ok {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleDeleteSession handles DELETE /api/v1/sessions/:id
func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request, id string) {
	if err := s.sessions.Delete(id); err != nil {
		writeSessionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleGetSummary handles GET /api/v1/sessions/:id/summary
func (s *Server) handleGetSummary(w http.ResponseWriter, r *http.Request, id string) {
	q := r.URL.Query()
	aggSort, ovlpSort := s.aggSort, s.ovlpSort
	if v := q.Get("agg_sort"); v != "" {
		parsed, err := prof.ParseAggSort(v)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		aggSort = parsed
	}
	if v := q.Get("overlap_sort"); v != "" {
		parsed, err := prof.ParseOverlapSort(v)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		ovlpSort = parsed
	}

	summary, err := s.sessions.Summary(id, aggSort, ovlpSort)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, summary)
}

// handleGetExport handles GET /api/v1/sessions/:id/export
func (s *Server) handleGetExport(w http.ResponseWriter, r *http.Request, id string) {
	opts, err := s.exportOptions(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if _, ok := s.sessions.Get(id); !ok {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/tab-separated-values; charset=utf-8")
	if err := s.sessions.Export(id, w, opts); err != nil {
		slog.Error("Failed to export session", "id", id, "error", err)
	}
}

func (s *Server) exportOptions(r *http.Request) (prof.ExportOptions, error) {
	opts := s.export
	q := r.URL.Query()
	if v := q.Get("zero_start"); v != "" {
		zs, err := strconv.ParseBool(v)
		if err != nil {
			return opts, fmt.Errorf("invalid zero_start %q", v)
		}
		opts.ZeroStart = zs
	}
	if q.Has("separator") {
		if q.Get("separator") == "" {
			return opts, errors.New("separator cannot be empty")
		}
		opts.Separator = q.Get("separator")
	}
	if q.Has("queue_delim") {
		opts.QueueDelim = q.Get("queue_delim")
	}
	if q.Has("event_delim") {
		opts.EventNameDelim = q.Get("event_delim")
	}
	return opts, nil
}

func writeSessionError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}
	slog.Error("Session request failed", "error", err)
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// corsMiddleware adds CORS headers
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("HTTP request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
