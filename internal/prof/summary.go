package prof

import (
	"fmt"
	"os"
	"strings"
)

const (
	summaryRule  = "   ------------------------------------------------------------------\n"
	aggTotalRule = "                                    ---------------------------------\n"
	ovlTotalRule = "                            -----------------------------------------\n"
)

// Summary renders the aggregate table with its total, the overlap table with
// the time saved by overlaps, the effective event time and, when the timer
// was started, the elapsed time split between device and host. The result is
// also kept as LastSummary.
func (s *Session) Summary(aggSort AggSort, ovlpSort OverlapSort) string {
	s.mustBeComputed("Summary")

	var b strings.Builder
	b.WriteString("\n")

	// Aggregate times
	b.WriteString(" Aggregate times by event  :\n")
	b.WriteString(summaryRule)
	b.WriteString("   | Event name                     | Rel. time (%) | Abs. time (s) |\n")
	b.WriteString(summaryRule)
	for _, a := range s.Aggregates(aggSort) {
		fmt.Fprintf(&b, "   | %-30.30s | %13.4f | %13.4e |\n",
			a.EventName, a.RelativeTime*100.0, float64(a.AbsoluteTime)*1e-9)
	}
	b.WriteString(summaryRule)
	fmt.Fprintf(&b, "                                    |         Total | %13.4e |\n", float64(s.total)*1e-9)
	b.WriteString(aggTotalRule)

	// Overlaps
	if len(s.overlaps) > 0 {
		b.WriteString(" Event overlaps            :\n")
		b.WriteString(summaryRule)
		b.WriteString("   | Event 1                | Event 2                | Overlap (s)  |\n")
		b.WriteString(summaryRule)
		for _, o := range s.Overlaps(ovlpSort) {
			fmt.Fprintf(&b, "   | %-22.22s | %-22.22s | %12.4e |\n",
				o.Event1Name, o.Event2Name, float64(o.Duration)*1e-9)
		}
		b.WriteString(summaryRule)
		fmt.Fprintf(&b, "                            |                  Total | %12.4e |\n",
			float64(s.total-s.effective)*1e-9)
		b.WriteString(ovlTotalRule)
	} else {
		b.WriteString(" Event overlaps            : None\n")
	}
	fmt.Fprintf(&b, " Tot. of all events (eff.) : %es\n", float64(s.effective)*1e-9)

	// Device/host split, only when the timer was used
	if !s.timerStart.IsZero() {
		elapsed := s.ElapsedSeconds()
		var device float64
		if elapsed > 0 {
			device = float64(s.effective) * 1e-9 * 100.0 / elapsed
		}
		fmt.Fprintf(&b, " Total elapsed time        : %es\n", elapsed)
		fmt.Fprintf(&b, " Time spent in device      : %.2f%%\n", device)
		fmt.Fprintf(&b, " Time spent in host        : %.2f%%\n", 100.0-device)
	}
	b.WriteString("\n")

	s.summary = b.String()
	return s.summary
}

// PrintSummary writes the summary to stdout, aggregates by descending time
// and overlaps by descending duration.
func (s *Session) PrintSummary() {
	fmt.Fprint(os.Stdout, s.Summary(DefaultAggSort, DefaultOverlapSort))
}
