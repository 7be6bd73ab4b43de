package evtrace

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/cwbudde/clprof/internal/cl"
	"github.com/cwbudde/clprof/internal/prof"
)

// Event is a recorded event.
type Event struct {
	rec Record
}

// Name returns the recorded name, or the command type name when the
// event was never named.
func (e *Event) Name() string {
	if e.rec.Name != "" {
		return e.rec.Name
	}
	return e.rec.CommandType.String()
}

func (e *Event) CommandType() (cl.CommandType, error) {
	return e.rec.CommandType, nil
}

// Timestamps returns the recorded counters, or a profiling info not
// available status for events recorded as unavailable.
func (e *Event) Timestamps() (cl.Timestamps, error) {
	if e.rec.Unavailable {
		return cl.Timestamps{}, cl.NewStatusError("clGetEventProfilingInfo", cl.StatusProfilingInfoNotAvailable)
	}
	return e.rec.Timestamps(), nil
}

// Queue replays the recorded events of one command queue.
type Queue struct {
	name   string
	props  cl.QueueProperties
	events []*Event
	refs   atomic.Int32
}

// NewQueue creates an empty queue with the given properties.
func NewQueue(name string, props cl.QueueProperties) *Queue {
	q := &Queue{name: name, props: props}
	q.refs.Store(1)
	return q
}

// Name returns the queue name recorded in the trace.
func (q *Queue) Name() string { return q.name }

// Add appends a recorded event.
func (q *Queue) Add(rec Record) {
	q.events = append(q.events, &Event{rec: rec})
}

// Len is the number of retained events.
func (q *Queue) Len() int { return len(q.events) }

func (q *Queue) Properties() (cl.QueueProperties, error) {
	return q.props, nil
}

func (q *Queue) Events() []cl.ProfiledEvent {
	out := make([]cl.ProfiledEvent, len(q.events))
	for i, e := range q.events {
		out[i] = e
	}
	return out
}

// GC drops the retained events.
func (q *Queue) GC() { q.events = nil }

func (q *Queue) Retain() { q.refs.Add(1) }

// Release drops a reference; the events are dropped with the last one.
func (q *Queue) Release() {
	if q.refs.Add(-1) == 0 {
		q.GC()
	}
}

// Refs returns the current reference count.
func (q *Queue) Refs() int { return int(q.refs.Load()) }

// Queues groups records by queue, in the order queues first appear. A
// queue record seen after events of the same queue updates its properties.
func Queues(recs []Record) []*Queue {
	var queues []*Queue
	byName := make(map[string]*Queue)
	for _, rec := range recs {
		q, ok := byName[rec.Queue]
		if !ok {
			q = NewQueue(rec.Queue, cl.QueueProfilingEnable)
			byName[rec.Queue] = q
			queues = append(queues, q)
		}
		// Queue records carry properties only
		if rec.IsQueue() {
			q.props = rec.Properties()
			continue
		}
		q.Add(rec)
	}
	return queues
}

// Register registers every queue with s, which takes its own reference.
// The caller's references are dropped, leaving s as the only owner.
func Register(s *prof.Session, queues []*Queue) {
	for _, q := range queues {
		s.RegisterQueue(q.Name(), q)
		q.Release()
	}
}

// ReadFiles reads the trace files into one record list. Queues of the same
// name in different files are kept apart by prefixing the file index when
// more than one file is given.
func ReadFiles(paths ...string) ([]Record, error) {
	var all []Record
	for i, path := range paths {
		recs, err := ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read trace %s: %w", path, err)
		}
		// Keep same-named queues of different files apart
		if len(paths) > 1 {
			for j := range recs {
				recs[j].Queue = fmt.Sprintf("%d:%s", i, recs[j].Queue)
			}
		}
		slog.Debug("Loaded trace", "path", path, "records", len(recs))
		all = append(all, recs...)
	}
	return all, nil
}

// Load reads the trace files and registers their queues with s.
func Load(s *prof.Session, paths ...string) error {
	recs, err := ReadFiles(paths...)
	if err != nil {
		return err
	}
	Register(s, Queues(recs))
	return nil
}

// Capture records the properties and retained events of a live queue
// without releasing them. Events whose profiling info is unavailable are
// recorded as such; any other error aborts the capture.
func Capture(name string, q prof.Queue) ([]Record, error) {
	props, err := q.Properties()
	if err != nil {
		return nil, fmt.Errorf("failed to get properties of queue %q: %w", name, err)
	}
	recs := []Record{QueueRecord(name, props)}

	for _, ev := range q.Events() {
		ct, err := ev.CommandType()
		if err != nil {
			return nil, fmt.Errorf("failed to get command type: %w", err)
		}
		// Unavailable counters are kept so replay skips the same events
		ts, err := ev.Timestamps()
		if errors.Is(err, cl.ErrProfilingInfoNotAvailable) || errors.Is(err, prof.ErrInfoUnavailable) {
			recs = append(recs, Record{Kind: KindEvent, Queue: name, Name: ev.Name(), CommandType: ct, Unavailable: true})
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get profiling info of event %q: %w", ev.Name(), err)
		}
		recs = append(recs, EventRecord(name, ev.Name(), ct, ts))
	}
	return recs, nil
}
