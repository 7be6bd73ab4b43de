// Package evtrace records OpenCL event timestamps as JSON lines and replays
// them as queues a profiling session can ingest.
package evtrace

import (
	"errors"
	"fmt"

	"github.com/cwbudde/clprof/internal/cl"
)

// Kind tells queue declarations from event records.
type Kind string

const (
	KindEvent Kind = "event"
	KindQueue Kind = "queue"
)

// ErrInvalidTrace is wrapped by every decoding and validation error.
var ErrInvalidTrace = errors.New("invalid trace")

// Record is one line of a trace file.
//
// Event records carry the four device timestamps of one command. Queue
// records are optional and declare the properties of a queue; a queue that
// is never declared is assumed to have profiling enabled.
type Record struct {
	Kind  Kind   `json:"kind,omitempty"`
	Queue string `json:"queue"`

	// Event fields.
	Name        string         `json:"name,omitempty"`
	CommandType cl.CommandType `json:"commandType,omitempty"`
	Queued      uint64         `json:"queued,omitempty"`
	Submit      uint64         `json:"submit,omitempty"`
	Start       uint64         `json:"start,omitempty"`
	End         uint64         `json:"end,omitempty"`
	// Unavailable marks an event whose profiling info could not be read.
	Unavailable bool `json:"unavailable,omitempty"`

	// Queue fields.
	Profiling  *bool `json:"profiling,omitempty"`
	OutOfOrder bool  `json:"outOfOrder,omitempty"`
}

// IsQueue reports whether r declares a queue.
func (r Record) IsQueue() bool { return r.Kind == KindQueue }

// Timestamps returns the event's counters.
func (r Record) Timestamps() cl.Timestamps {
	return cl.Timestamps{Queued: r.Queued, Submit: r.Submit, Start: r.Start, End: r.End}
}

// Properties returns the queue flags a queue record declares.
func (r Record) Properties() cl.QueueProperties {
	var props cl.QueueProperties
	if r.Profiling == nil || *r.Profiling {
		props |= cl.QueueProfilingEnable
	}
	if r.OutOfOrder {
		props |= cl.QueueOutOfOrderExecModeEnable
	}
	return props
}

// Validate checks that the record can be replayed.
func (r Record) Validate() error {
	switch r.Kind {
	case "", KindEvent, KindQueue:
	default:
		return fmt.Errorf("%w: unknown record kind %q", ErrInvalidTrace, r.Kind)
	}
	if r.Queue == "" {
		return fmt.Errorf("%w: missing queue name", ErrInvalidTrace)
	}
	if r.IsQueue() || r.Unavailable {
		return nil
	}
	if r.Submit < r.Queued || r.Start < r.Submit {
		return fmt.Errorf("%w: event %q on queue %q has decreasing timestamps", ErrInvalidTrace, r.Name, r.Queue)
	}
	return nil
}

// QueueRecord builds the declaration of a queue with the given properties.
func QueueRecord(name string, props cl.QueueProperties) Record {
	profiling := props.Has(cl.QueueProfilingEnable)
	return Record{
		Kind:       KindQueue,
		Queue:      name,
		Profiling:  &profiling,
		OutOfOrder: props.Has(cl.QueueOutOfOrderExecModeEnable),
	}
}

// EventRecord builds the record of one event.
func EventRecord(queue, name string, ct cl.CommandType, ts cl.Timestamps) Record {
	return Record{
		Kind:        KindEvent,
		Queue:       queue,
		Name:        name,
		CommandType: ct,
		Queued:      ts.Queued,
		Submit:      ts.Submit,
		Start:       ts.Start,
		End:         ts.End,
	}
}
