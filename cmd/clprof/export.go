package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cwbudde/clprof/internal/prof"
)

var (
	exportOutput     string
	exportSeparator  string
	exportNewline    string
	exportQueueDelim string
	exportEventDelim string
	exportZeroStart  bool
)

var exportCmd = &cobra.Command{
	Use:   "export TRACE.jsonl...",
	Short: "Write the flat event timeline of recorded traces",
	Long: `Replays recorded traces and writes one line per event:
queue, start, end and event name, sorted by start time. The output is the
input format of Gantt-style plotting scripts. Escapes such as \t and \n are
understood in the separator and newline flags.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (default stdout)")
	exportCmd.Flags().StringVar(&exportSeparator, "separator", "", `Field separator (default "\t")`)
	exportCmd.Flags().StringVar(&exportNewline, "newline", "", `Line terminator (default "\n")`)
	exportCmd.Flags().StringVar(&exportQueueDelim, "queue-delim", "", "Delimiter around queue names")
	exportCmd.Flags().StringVar(&exportEventDelim, "event-delim", "", "Delimiter around event names")
	exportCmd.Flags().BoolVar(&exportZeroStart, "zero-start", true, "Offset times by the earliest start")
	rootCmd.AddCommand(exportCmd)
}

var escapes = strings.NewReplacer(`\t`, "\t", `\n`, "\n", `\r`, "\r", `\\`, `\`)

func changed(cmd *cobra.Command, name string) bool {
	return cmd != nil && cmd.Flags().Changed(name)
}

// exportOptions applies the explicitly set flags over the config.
func exportOptions(cmd *cobra.Command) (prof.ExportOptions, error) {
	opts := currentConfig().ExportOptions()
	if changed(cmd, "separator") {
		opts.Separator = escapes.Replace(exportSeparator)
	}
	if changed(cmd, "newline") {
		opts.Newline = escapes.Replace(exportNewline)
	}
	if changed(cmd, "queue-delim") {
		opts.QueueDelim = exportQueueDelim
	}
	if changed(cmd, "event-delim") {
		opts.EventNameDelim = exportEventDelim
	}
	if changed(cmd, "zero-start") {
		opts.ZeroStart = exportZeroStart
	}
	if opts.Separator == "" || opts.Newline == "" {
		return opts, errors.New("separator and newline cannot be empty")
	}
	return opts, nil
}

func runExport(cmd *cobra.Command, args []string) error {
	opts, err := exportOptions(cmd)
	if err != nil {
		return err
	}

	sess, _, err := replay(args)
	if err != nil {
		return err
	}
	defer sess.Close()

	if exportOutput == "" || exportOutput == "-" {
		return sess.Export(os.Stdout, opts)
	}
	if err := sess.ExportFile(exportOutput, opts); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Exported %d events to %s\n", sess.NumEvents(), exportOutput)
	return nil
}
