package main

import (
	"bytes"
	"context"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/clprof/internal/cl"
	"github.com/cwbudde/clprof/internal/evtrace"
	"github.com/cwbudde/clprof/internal/server"
	"github.com/cwbudde/clprof/internal/store"
)

// writeTestTrace writes a two-queue trace where the write and the kernel
// overlap for 50ns.
func writeTestTrace(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bench.jsonl")
	recs := []evtrace.Record{
		evtrace.QueueRecord("q1", cl.QueueProfilingEnable),
		evtrace.EventRecord("q1", "write", cl.CommandWriteBuffer, cl.Timestamps{Queued: 900, Submit: 950, Start: 1000, End: 1100}),
		evtrace.QueueRecord("q2", cl.QueueProfilingEnable),
		evtrace.EventRecord("q2", "kernel", cl.CommandNDRangeKernel, cl.Timestamps{Queued: 900, Submit: 950, Start: 1050, End: 1150}),
	}
	require.NoError(t, evtrace.WriteFile(path, recs))
	return path
}

func TestReplay(t *testing.T) {
	sess, recs, err := replay([]string{writeTestTrace(t)})
	require.NoError(t, err)
	defer sess.Close()

	assert.Len(t, recs, 4)
	assert.Equal(t, uint64(200), sess.TotalDuration())
	assert.Equal(t, uint64(150), sess.EffectiveDuration())
}

func TestReplay_NoQueues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.jsonl")
	require.NoError(t, os.WriteFile(path, nil, 0644))

	_, _, err := replay([]string{path})
	assert.Error(t, err)
}

func TestSummaryCommand_Save(t *testing.T) {
	dir := t.TempDir()
	trace := writeTestTrace(t)
	defer func() {
		saveReport, summaryDataDir, reportName = false, "", ""
	}()
	saveReport = true
	summaryDataDir = dir

	require.NoError(t, runSummary(nil, []string{trace}))

	st, err := store.NewFSStore(dir)
	require.NoError(t, err)
	infos, err := st.ListReports()
	require.NoError(t, err)
	require.Len(t, infos, 1)
	// The name defaults to the trace file name
	assert.Equal(t, "bench", infos[0].Name)
	assert.Equal(t, uint64(150), infos[0].Effective)

	export, err := st.LoadExport(infos[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "q1\t0\t100\twrite\nq2\t50\t150\tkernel\n", string(export))
}

func TestSummaryCommand_BadSort(t *testing.T) {
	defer func() { aggSortFlag = "" }()
	aggSortFlag = "size-desc"

	assert.Error(t, runSummary(nil, []string{writeTestTrace(t)}))
}

func TestExportCommand_File(t *testing.T) {
	out := filepath.Join(t.TempDir(), "events.csv")
	defer func() { exportOutput, exportSeparator = "", "" }()
	exportOutput = out

	cmd := &cobra.Command{}
	cmd.Flags().AddFlagSet(exportCmd.Flags())
	require.NoError(t, cmd.Flags().Set("separator", ","))
	require.NoError(t, cmd.Flags().Set("zero-start", "false"))
	defer func() {
		exportZeroStart = true
		for _, name := range []string{"separator", "zero-start"} {
			cmd.Flags().Lookup(name).Changed = false
		}
	}()

	require.NoError(t, runExport(cmd, []string{writeTestTrace(t)}))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "q1,1000,1100,write\nq2,1050,1150,kernel\n", string(data))
}

func TestExportOptions_Escapes(t *testing.T) {
	cmd := &cobra.Command{}
	var sep string
	cmd.Flags().StringVar(&sep, "separator", "", "")
	require.NoError(t, cmd.Flags().Set("separator", `\t|`))
	defer func() { exportSeparator = "" }()
	exportSeparator = sep

	opts, err := exportOptions(cmd)
	require.NoError(t, err)
	assert.Equal(t, "\t|", opts.Separator)

	exportSeparator = ""
	_, err = exportOptions(cmd)
	assert.Error(t, err, "empty separator")
}

func TestStatusCommand(t *testing.T) {
	srv := server.NewServer(":0", nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	recs, err := evtrace.ReadFile(writeTestTrace(t))
	require.NoError(t, err)
	report, err := srv.Sessions().Create("bench", recs)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, listSessions(&buf, ts.URL+"/api/v1/sessions"))
	assert.Contains(t, buf.String(), report.ID)
	assert.Contains(t, buf.String(), "150ns")

	buf.Reset()
	require.NoError(t, printSessionSummary(&buf, ts.URL+"/api/v1/sessions/"+report.ID+"/summary", report.ID))
	assert.Contains(t, buf.String(), "Aggregate times by event")

	err = printSessionSummary(&buf, ts.URL+"/api/v1/sessions/missing/summary", "missing")
	assert.ErrorContains(t, err, "not found")
	assert.Error(t, listSessions(&buf, "http://127.0.0.1:1/api/v1/sessions"), "connection refused")
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "warn", "text")
	logger.Info("hidden")
	logger.Warn("shown", "key", "value")

	assert.NotContains(t, buf.String(), "hidden", "info is filtered at warn level")
	assert.Contains(t, buf.String(), "key=value")

	// Unknown levels fall back to info, anything but text is JSON
	buf.Reset()
	newLogger(&buf, "bogus", "json").Info("hello")
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("{")), "JSON output %q", buf.String())
	assert.True(t, newLogger(&buf, "debug", "json").Enabled(context.Background(), slog.LevelDebug))
}
