// Package prof post-processes OpenCL event timestamps. A Session ingests the
// events retained by one or more named command queues and derives per-name
// busy time, pairwise overlaps between event names and the effective
// (overlap-corrected) device time.
//
// A Session is not safe for concurrent use.
package prof

import (
	"log/slog"
	"math"
	"time"
)

type namedQueue struct {
	name  string
	queue Queue
}

// Session is a one-shot profiling run over a set of registered queues.
type Session struct {
	queues []namedQueue

	names    map[string]uint32
	nameList []string

	instants []Instant
	infos    []Info
	aggs     []Agg
	overlaps []Overlap

	numEvents uint32
	skipped   int
	total     uint64
	effective uint64
	tStart    uint64

	timerStart time.Time
	timerStop  time.Time

	attempted bool
	computed  bool
	closed    bool
	summary   string

	now func() time.Time
}

// NewSession creates an empty session.
func NewSession() *Session {
	s := &Session{now: time.Now}
	s.reset()
	return s
}

func (s *Session) reset() {
	s.names = make(map[string]uint32)
	s.nameList = nil
	s.instants = nil
	s.infos = nil
	s.aggs = nil
	s.overlaps = nil
	s.numEvents = 0
	s.skipped = 0
	s.total = 0
	s.effective = 0
	s.tStart = math.MaxUint64
}

// RegisterQueue adds a queue to the session under the given name and takes a
// reference to it. Registering a name twice replaces the previous queue.
func (s *Session) RegisterQueue(name string, q Queue) {
	if q == nil {
		panic(usage("RegisterQueue", "nil queue"))
	}
	if s.attempted {
		panic(usage("RegisterQueue", "session already computed"))
	}
	if s.closed {
		panic(usage("RegisterQueue", "session closed"))
	}

	q.Retain()
	for i := range s.queues {
		if s.queues[i].name == name {
			slog.Warn("Replacing queue", "queue", name)
			s.queues[i].queue.Release()
			s.queues[i].queue = q
			return
		}
	}
	s.queues = append(s.queues, namedQueue{name: name, queue: q})
}

// Compute ingests every registered queue and derives aggregates and
// overlaps. It may be called once; a second call panics even when the first
// one failed. On failure the session holds no partial results.
func (s *Session) Compute() error {
	if s.attempted {
		panic(usage("Compute", "session already computed"))
	}
	if len(s.queues) == 0 {
		panic(usage("Compute", "no queues registered"))
	}
	s.attempted = true

	if err := s.ingest(); err != nil {
		s.reset()
		return err
	}
	s.aggregate()
	s.computeOverlaps()
	s.computed = true

	slog.Debug("Profile computed",
		"events", s.numEvents,
		"skipped", s.skipped,
		"names", len(s.nameList),
		"total_ns", s.total,
		"effective_ns", s.effective)
	return nil
}

// Computed reports whether Compute succeeded.
func (s *Session) Computed() bool { return s.computed }

// Close releases every registered queue and drops derived data. Calling it
// more than once is a no-op.
func (s *Session) Close() {
	if s.closed {
		return
	}
	for _, nq := range s.queues {
		nq.queue.Release()
	}
	s.queues = nil
	s.reset()
	s.computed = false
	s.summary = ""
	s.closed = true
}

// StartTimer starts the wall-clock timer around the measured work.
func (s *Session) StartTimer() {
	s.timerStart = s.now()
	s.timerStop = time.Time{}
}

// StopTimer stops the timer. It has no effect on a timer never started.
func (s *Session) StopTimer() {
	if s.timerStart.IsZero() {
		return
	}
	s.timerStop = s.now()
}

// Elapsed returns the timed duration. A running timer reports the time since
// it was started; an unstarted one reports 0.
func (s *Session) Elapsed() time.Duration {
	switch {
	case s.timerStart.IsZero():
		return 0
	case s.timerStop.IsZero():
		return s.now().Sub(s.timerStart)
	default:
		return s.timerStop.Sub(s.timerStart)
	}
}

// ElapsedSeconds is Elapsed in seconds.
func (s *Session) ElapsedSeconds() float64 {
	return s.Elapsed().Seconds()
}

func (s *Session) mustBeComputed(op string) {
	if !s.computed {
		panic(usage(op, "session not computed"))
	}
}

// Queues returns the registered queue names in registration order.
func (s *Session) Queues() []string {
	names := make([]string, len(s.queues))
	for i, nq := range s.queues {
		names[i] = nq.name
	}
	return names
}

// Aggregate returns the statistic for one event name.
func (s *Session) Aggregate(name string) (Agg, bool) {
	s.mustBeComputed("Aggregate")
	id, ok := s.names[name]
	if !ok {
		return Agg{}, false
	}
	return s.aggs[id], true
}

// Aggregates returns a sorted copy of the per-name statistics.
func (s *Session) Aggregates(by AggSort) []Agg {
	s.mustBeComputed("Aggregates")
	return sortedCopy(s.aggs, by.compare)
}

// Infos returns a sorted copy of the raw event records.
func (s *Session) Infos(by InfoSort) []Info {
	s.mustBeComputed("Infos")
	return sortedCopy(s.infos, by.compare)
}

// Instants returns a sorted copy of the interval endpoints.
func (s *Session) Instants(by InstSort) []Instant {
	s.mustBeComputed("Instants")
	return sortedCopy(s.instants, by.compare)
}

// Overlaps returns a sorted copy of the nonzero name-pair overlaps.
func (s *Session) Overlaps(by OverlapSort) []Overlap {
	s.mustBeComputed("Overlaps")
	return sortedCopy(s.overlaps, by.compare)
}

// TotalDuration is the summed busy time of all events, in nanoseconds.
func (s *Session) TotalDuration() uint64 {
	s.mustBeComputed("TotalDuration")
	return s.total
}

// EffectiveDuration is the total busy time minus pairwise overlaps.
func (s *Session) EffectiveDuration() uint64 {
	s.mustBeComputed("EffectiveDuration")
	return s.effective
}

// EarliestStart is the smallest start instant of any event that consumed
// device time, or math.MaxUint64 when there was none.
func (s *Session) EarliestStart() uint64 {
	s.mustBeComputed("EarliestStart")
	return s.tStart
}

// NumEvents is the number of ingested events, degenerate ones included.
func (s *Session) NumEvents() int {
	s.mustBeComputed("NumEvents")
	return int(s.numEvents)
}

// Skipped is the number of events dropped because their profiling info was
// unavailable.
func (s *Session) Skipped() int {
	s.mustBeComputed("Skipped")
	return s.skipped
}

// LastSummary returns the most recently rendered summary, or "" if none was
// rendered yet.
func (s *Session) LastSummary() string {
	return s.summary
}
