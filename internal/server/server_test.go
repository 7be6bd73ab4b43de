package server

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/clprof/internal/store"
)

const testTrace = `{"kind":"queue","queue":"q1","profiling":true}
{"kind":"event","queue":"q1","name":"write","commandType":"WRITE_BUFFER","start":1000,"end":1100}
{"kind":"event","queue":"q2","name":"kernel","commandType":"NDRANGE_KERNEL","start":1050,"end":1150}
{"kind":"event","queue":"q2","name":"marker","commandType":"MARKER","unavailable":true}
`

func newTestServer(t *testing.T, st store.Store) (*Server, *httptest.Server) {
	t.Helper()
	s := NewServer(":0", st)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func createSession(t *testing.T, ts *httptest.Server, name, trace string) store.Report {
	t.Helper()
	resp, err := http.Post(ts.URL+"/api/v1/sessions?name="+name, "application/x-ndjson", strings.NewReader(trace))
	require.NoError(t, err)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		require.Failf(t, "unexpected status", "Expected 201, got %d: %s", resp.StatusCode, body)
	}

	var report store.Report
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
	return report
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err, "GET %s", url)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func del(t *testing.T, url string) int {
	t.Helper()
	req, err := http.NewRequest(http.MethodDelete, url, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err, "DELETE %s", url)
	resp.Body.Close()
	return resp.StatusCode
}

func TestServer_CreateSession(t *testing.T) {
	_, ts := newTestServer(t, nil)

	report := createSession(t, ts, "bench", testTrace)
	assert.NotEmpty(t, report.ID)
	assert.Equal(t, "bench", report.Name)
	assert.Equal(t, uint64(200), report.Total)
	assert.Equal(t, uint64(150), report.Effective)
	assert.Equal(t, 2, report.NumEvents)
	assert.Equal(t, 1, report.Skipped)
	require.Len(t, report.Overlaps, 1)
	assert.Equal(t, uint64(50), report.Overlaps[0].Duration)
}

func TestServer_CreateSessionErrors(t *testing.T) {
	_, ts := newTestServer(t, nil)

	tests := []struct {
		name  string
		trace string
		want  int
	}{
		{"malformed", "{not json\n", http.StatusBadRequest},
		{"missing queue", `{"name":"x","start":1,"end":2}` + "\n", http.StatusBadRequest},
		{"empty", "", http.StatusBadRequest},
		{"profiling disabled", `{"kind":"queue","queue":"q","profiling":false}` + "\n" +
			`{"queue":"q","name":"k","start":1,"end":2}` + "\n", http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(ts.URL+"/api/v1/sessions", "application/x-ndjson", strings.NewReader(tt.trace))
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestServer_ListGetDelete(t *testing.T) {
	_, ts := newTestServer(t, nil)

	first := createSession(t, ts, "first", testTrace)
	second := createSession(t, ts, "second", testTrace)

	code, body := get(t, ts.URL+"/api/v1/sessions")
	require.Equal(t, http.StatusOK, code)
	var infos []store.ReportInfo
	require.NoError(t, json.Unmarshal([]byte(body), &infos))
	require.Len(t, infos, 2)

	code, body = get(t, ts.URL+"/api/v1/sessions/"+first.ID)
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `"name":"first"`)

	assert.Equal(t, http.StatusNoContent, del(t, ts.URL+"/api/v1/sessions/"+first.ID))

	code, _ = get(t, ts.URL+"/api/v1/sessions/"+first.ID)
	assert.Equal(t, http.StatusNotFound, code, "deleted session")
	code, _ = get(t, ts.URL+"/api/v1/sessions/"+second.ID)
	assert.Equal(t, http.StatusOK, code, "other session should survive")

	assert.Equal(t, http.StatusNotFound, del(t, ts.URL+"/api/v1/sessions/"+first.ID), "second delete")
}

func TestServer_Summary(t *testing.T) {
	_, ts := newTestServer(t, nil)
	report := createSession(t, ts, "bench", testTrace)

	code, body := get(t, ts.URL+"/api/v1/sessions/"+report.ID+"/summary?agg_sort=name-asc")
	require.Equal(t, http.StatusOK, code, body)
	assert.Contains(t, body, "Aggregate times by event")
	assert.Contains(t, body, "Event overlaps            :")
	assert.Less(t, strings.Index(body, "| kernel"), strings.Index(body, "| write"), "aggregates sorted by name")

	code, _ = get(t, ts.URL+"/api/v1/sessions/"+report.ID+"/summary?agg_sort=size")
	assert.Equal(t, http.StatusBadRequest, code, "bad sort")
	code, _ = get(t, ts.URL+"/api/v1/sessions/nope/summary")
	assert.Equal(t, http.StatusNotFound, code, "unknown session")
}

func TestServer_Export(t *testing.T) {
	_, ts := newTestServer(t, nil)
	report := createSession(t, ts, "bench", testTrace)

	code, body := get(t, ts.URL+"/api/v1/sessions/"+report.ID+"/export")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "q1\t0\t100\twrite\nq2\t50\t150\tkernel\n", body)

	_, body = get(t, ts.URL+"/api/v1/sessions/"+report.ID+"/export?zero_start=false&separator=,")
	assert.True(t, strings.HasPrefix(body, "q1,1000,1100,write\n"), "raw export %q", body)

	code, _ = get(t, ts.URL+"/api/v1/sessions/"+report.ID+"/export?zero_start=maybe")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestServer_Metrics(t *testing.T) {
	_, ts := newTestServer(t, nil)
	report := createSession(t, ts, "bench", testTrace)

	_, body := get(t, ts.URL+"/metrics")
	for _, want := range []string{
		`clprof_session_total_seconds{session="` + report.ID + `"} 2e-07`,
		`clprof_session_effective_seconds{session="` + report.ID + `"} 1.5e-07`,
		`clprof_event_absolute_seconds{event="kernel",session="` + report.ID + `"} 1e-07`,
		`clprof_event_overlap_seconds{event1="write",event2="kernel",session="` + report.ID + `"} 5e-08`,
		"clprof_sessions_created_total 1",
		"clprof_skipped_events_total 1",
		"clprof_compute_duration_seconds_count 1",
		"go_goroutines",
	} {
		assert.Contains(t, body, want)
	}
}

func TestServer_Health(t *testing.T) {
	_, ts := newTestServer(t, nil)
	code, body := get(t, ts.URL+"/healthz")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `"status":"ok"`)
}

func TestServer_PersistsAndReloads(t *testing.T) {
	st, err := store.NewFSStore(t.TempDir())
	require.NoError(t, err)

	_, ts := newTestServer(t, st)
	report := createSession(t, ts, "persisted", testTrace)

	stored, err := st.LoadReport(report.ID)
	require.NoError(t, err, "report was not persisted")
	assert.Equal(t, uint64(150), stored.Effective)

	// A fresh server rebuilds the session from the stored trace
	fresh := NewServer(":0", st)
	n, err := fresh.Sessions().LoadStored()
	require.NoError(t, err)
	require.Equal(t, 1, n)
	ts2 := httptest.NewServer(fresh.Handler())
	defer ts2.Close()

	code, body := get(t, ts2.URL+"/api/v1/sessions/"+report.ID+"/export?zero_start=false")
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, strings.HasPrefix(body, "q1\t1000\t1100\twrite\n"), "export after reload %q", body)
}

func TestServer_EventStream(t *testing.T) {
	s, ts := newTestServer(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/v1/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	line, _ := reader.ReadString('\n')
	require.True(t, strings.HasPrefix(line, ": connected"), "connect comment %q", line)
	reader.ReadString('\n')

	// A failed create is not announced
	_, err = s.Sessions().Create("streamed", nil)
	require.Error(t, err)
	created := createSession(t, ts, "streamed", testTrace)

	line, err = reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: created\n", line)
	data, _ := reader.ReadString('\n')
	assert.Contains(t, data, created.ID)
}

func TestServer_ShutdownWithEventStream(t *testing.T) {
	s := NewServer("127.0.0.1:0", nil)
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	served := make(chan error, 1)
	go func() { served <- s.Serve(l) }()

	resp, err := http.Get("http://" + l.Addr().String() + "/api/v1/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	line, _ := bufio.NewReader(resp.Body).ReadString('\n')
	require.True(t, strings.HasPrefix(line, ": connected"), "connect comment %q", line)

	// An open stream must not hold the shutdown until its deadline
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	start := time.Now()
	require.NoError(t, s.Shutdown(ctx), "shutdown after %v", time.Since(start))

	select {
	case err := <-served:
		assert.ErrorIs(t, err, http.ErrServerClosed)
	case <-time.After(5 * time.Second):
		t.Error("Serve did not return after Shutdown")
	}
}
