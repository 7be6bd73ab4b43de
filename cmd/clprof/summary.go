package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cwbudde/clprof/internal/config"
	"github.com/cwbudde/clprof/internal/evtrace"
	"github.com/cwbudde/clprof/internal/prof"
	"github.com/cwbudde/clprof/internal/store"
)

var (
	aggSortFlag     string
	overlapSortFlag string
	saveReport      bool
	reportName      string
	summaryDataDir  string
)

var summaryCmd = &cobra.Command{
	Use:   "summary TRACE.jsonl...",
	Short: "Print the timing summary of recorded traces",
	Long: `Replays one or more recorded event traces into a single profiling session
and prints the aggregate and overlap tables. Queues of several files are
prefixed with the file index. With --save the report is stored in the data
directory.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSummary,
}

func init() {
	summaryCmd.Flags().StringVar(&aggSortFlag, "agg-sort", "", "Aggregate table sort (name-asc, time-desc, ...)")
	summaryCmd.Flags().StringVar(&overlapSortFlag, "overlap-sort", "", "Overlap table sort (name-asc, duration-desc, ...)")
	summaryCmd.Flags().BoolVar(&saveReport, "save", false, "Store the report in the data directory")
	summaryCmd.Flags().StringVar(&reportName, "name", "", "Report name (default: first trace file name)")
	summaryCmd.Flags().StringVar(&summaryDataDir, "data-dir", "", "Report storage directory (default from config)")
	rootCmd.AddCommand(summaryCmd)
}

// currentConfig returns the loaded config, or the defaults when a command
// runs without the root pre-run.
func currentConfig() *config.Config {
	if cfg == nil {
		return config.Default()
	}
	return cfg
}

func dataDir(flag string) string {
	if flag != "" {
		return flag
	}
	return currentConfig().DataDir
}

// summarySorts resolves the table sorts from the flags over the config.
func summarySorts() (prof.AggSort, prof.OverlapSort, error) {
	c := currentConfig()
	aggSort, ovlpSort := c.AggSort(), c.OverlapSort()
	if aggSortFlag != "" {
		s, err := prof.ParseAggSort(aggSortFlag)
		if err != nil {
			return aggSort, ovlpSort, err
		}
		aggSort = s
	}
	if overlapSortFlag != "" {
		s, err := prof.ParseOverlapSort(overlapSortFlag)
		if err != nil {
			return aggSort, ovlpSort, err
		}
		ovlpSort = s
	}
	return aggSort, ovlpSort, nil
}

// replay computes a session from the records of the trace files. The caller
// closes the session.
func replay(paths []string) (*prof.Session, []evtrace.Record, error) {
	recs, err := evtrace.ReadFiles(paths...)
	if err != nil {
		return nil, nil, err
	}
	queues := evtrace.Queues(recs)
	if len(queues) == 0 {
		return nil, nil, errors.New("traces contain no queues")
	}

	sess := prof.NewSession()
	evtrace.Register(sess, queues)
	if err := sess.Compute(); err != nil {
		sess.Close()
		return nil, nil, fmt.Errorf("failed to compute session: %w", err)
	}
	return sess, recs, nil
}

func runSummary(cmd *cobra.Command, args []string) error {
	aggSort, ovlpSort, err := summarySorts()
	if err != nil {
		return err
	}

	sess, recs, err := replay(args)
	if err != nil {
		return err
	}
	defer sess.Close()

	fmt.Print(sess.Summary(aggSort, ovlpSort))

	if !saveReport {
		return nil
	}
	name := reportName
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
	}
	id, err := saveSession(dataDir(summaryDataDir), name, sess, recs)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "\n%s %s\n", dimStyle.Render("Saved report"), id)
	return nil
}

func saveSession(dir, name string, sess *prof.Session, recs []evtrace.Record) (string, error) {
	st, err := store.NewFSStore(dir)
	if err != nil {
		return "", fmt.Errorf("failed to create report store: %w", err)
	}

	report := store.NewReport(uuid.New().String(), name, sess)
	var export bytes.Buffer
	if err := sess.Export(&export, currentConfig().ExportOptions()); err != nil {
		return "", fmt.Errorf("failed to export session: %w", err)
	}
	if err := st.SaveReport(report, export.Bytes()); err != nil {
		return "", fmt.Errorf("failed to save report: %w", err)
	}
	if err := st.SaveTrace(report.ID, recs); err != nil {
		return "", fmt.Errorf("failed to save trace: %w", err)
	}
	return report.ID, nil
}
