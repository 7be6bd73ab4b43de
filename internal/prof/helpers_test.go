package prof

import (
	"time"

	"github.com/cwbudde/clprof/internal/cl"
)

type fakeEvent struct {
	name string
	ct   cl.CommandType
	ts   cl.Timestamps
	err  error
}

func (e *fakeEvent) Name() string { return e.name }

func (e *fakeEvent) CommandType() (cl.CommandType, error) { return e.ct, nil }

func (e *fakeEvent) Timestamps() (cl.Timestamps, error) {
	if e.err != nil {
		return cl.Timestamps{}, e.err
	}
	return e.ts, nil
}

func ev(name string, start, end uint64) *fakeEvent {
	return &fakeEvent{
		name: name,
		ct:   cl.CommandNDRangeKernel,
		ts:   cl.Timestamps{Queued: start, Submit: start, Start: start, End: end},
	}
}

type fakeQueue struct {
	props    cl.QueueProperties
	propsErr error
	events   []*fakeEvent
	refs     int
	gcCalls  int
}

func newFakeQueue(events ...*fakeEvent) *fakeQueue {
	return &fakeQueue{props: cl.QueueProfilingEnable, events: events}
}

func (q *fakeQueue) Properties() (cl.QueueProperties, error) { return q.props, q.propsErr }

func (q *fakeQueue) Events() []cl.ProfiledEvent {
	out := make([]cl.ProfiledEvent, len(q.events))
	for i, e := range q.events {
		out[i] = e
	}
	return out
}

func (q *fakeQueue) GC() {
	q.gcCalls++
	q.events = nil
}

func (q *fakeQueue) Retain() { q.refs++ }

func (q *fakeQueue) Release() { q.refs-- }

// computed builds and computes a session from alternating name/queue pairs.
func computed(t interface{ Fatalf(string, ...any) }, queues ...any) *Session {
	s := NewSession()
	for i := 0; i+1 < len(queues); i += 2 {
		s.RegisterQueue(queues[i].(string), queues[i+1].(*fakeQueue))
	}
	if err := s.Compute(); err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	return s
}

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

type failingWriter struct {
	err error
}

func (w failingWriter) Write([]byte) (int, error) { return 0, w.err }

// recoverUsage runs fn and returns the *UsageError it panicked with, or nil.
func recoverUsage(fn func()) (u *UsageError) {
	defer func() {
		if r := recover(); r != nil {
			u, _ = r.(*UsageError)
		}
	}()
	fn()
	return nil
}
