package prof

import (
	"bufio"
	"io"
	"os"
	"strconv"
)

// ExportOptions controls the flat export format.
type ExportOptions struct {
	// Separator goes between fields.
	Separator string `json:"separator" yaml:"separator"`
	// Newline terminates each line.
	Newline string `json:"newline" yaml:"newline"`
	// QueueDelim is written on both sides of the queue name.
	QueueDelim string `json:"queueDelim" yaml:"queue_delim"`
	// EventNameDelim is written on both sides of the event name.
	EventNameDelim string `json:"eventNameDelim" yaml:"event_name_delim"`
	// ZeroStart makes offsets relative to the earliest event start.
	ZeroStart bool `json:"zeroStart" yaml:"zero_start"`
}

// DefaultExportOptions returns tab separated lines without quoting and with
// offsets relative to the earliest start.
func DefaultExportOptions() ExportOptions {
	return ExportOptions{
		Separator: "\t",
		Newline:   "\n",
		ZeroStart: true,
	}
}

// Export writes one line per ingested event, ordered by start time:
//
//	<queue> SEP <start> SEP <end> SEP <name> NEWLINE
//
// Offsets are signed so events starting before the earliest valid interval
// (possible for events that consumed no device time) stay readable.
func (s *Session) Export(w io.Writer, opts ExportOptions) error {
	s.mustBeComputed("Export")

	var t0 uint64
	if opts.ZeroStart && len(s.instants) > 0 {
		t0 = s.tStart
	}

	bw := bufio.NewWriter(w)
	var buf []byte
	for _, info := range s.Infos(InfoSort{Key: InfoByTStart, Order: Asc}) {
		buf = buf[:0]
		buf = append(buf, opts.QueueDelim...)
		buf = append(buf, info.QueueName...)
		buf = append(buf, opts.QueueDelim...)
		buf = append(buf, opts.Separator...)
		buf = appendOffset(buf, info.TStart, t0, opts.ZeroStart)
		buf = append(buf, opts.Separator...)
		buf = appendOffset(buf, info.TEnd, t0, opts.ZeroStart)
		buf = append(buf, opts.Separator...)
		buf = append(buf, opts.EventNameDelim...)
		buf = append(buf, info.EventName...)
		buf = append(buf, opts.EventNameDelim...)
		buf = append(buf, opts.Newline...)
		if _, err := bw.Write(buf); err != nil {
			return newError(CodeStreamWrite, err, "error writing to stream")
		}
	}
	if err := bw.Flush(); err != nil {
		return newError(CodeStreamWrite, err, "error writing to stream")
	}
	return nil
}

func appendOffset(buf []byte, t, t0 uint64, zeroStart bool) []byte {
	if !zeroStart {
		return strconv.AppendUint(buf, t, 10)
	}
	return strconv.AppendInt(buf, int64(t-t0), 10)
}

// ExportFile exports to the named file, creating or truncating it. Output
// written before a failure is left in place.
func (s *Session) ExportFile(path string, opts ExportOptions) error {
	s.mustBeComputed("ExportFile")

	f, err := os.Create(path)
	if err != nil {
		return newError(CodeOpenFile, err, "unable to open file %q", path)
	}
	if err := s.Export(f, opts); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return newError(CodeStreamWrite, err, "failed to close %q", path)
	}
	return nil
}
