package prof

import "github.com/cwbudde/clprof/internal/cl"

// Event is anything whose four profiling counters can be read. The OpenCL
// layer and recorded traces both provide one.
type Event = cl.ProfiledEvent

// Queue is a command queue handle that retains the events of the commands
// enqueued into it.
type Queue interface {
	Properties() (cl.QueueProperties, error)
	Events() []cl.ProfiledEvent
	// GC releases the retained events so the queue can be reused.
	GC()
	Retain()
	Release()
}

// InstantType tells the start of an event interval from its end.
type InstantType int

const (
	InstantStart InstantType = iota
	InstantEnd
)

func (t InstantType) String() string {
	if t == InstantStart {
		return "START"
	}
	return "END"
}

func (t InstantType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Instant is one endpoint of an event interval.
type Instant struct {
	EventName string      `json:"eventName"`
	QueueName string      `json:"queueName"`
	ID        uint32      `json:"id"`
	Instant   uint64      `json:"instant"`
	Type      InstantType `json:"type"`
}

// Info is the raw profiling record of one ingested event.
type Info struct {
	EventName   string         `json:"eventName"`
	CommandType cl.CommandType `json:"commandType"`
	QueueName   string         `json:"queueName"`
	TQueued     uint64         `json:"tQueued"`
	TSubmit     uint64         `json:"tSubmit"`
	TStart      uint64         `json:"tStart"`
	TEnd        uint64         `json:"tEnd"`
}

// Agg is the busy time of all events sharing a name.
type Agg struct {
	EventName    string  `json:"eventName"`
	AbsoluteTime uint64  `json:"absoluteTime"`
	RelativeTime float64 `json:"relativeTime"`
}

// Overlap is the cumulative time during which events named Event1Name and
// Event2Name were running at the same time. Event1Name is the name seen
// first during ingestion; both names are equal for concurrent instances
// of the same event.
type Overlap struct {
	Event1Name string `json:"event1Name"`
	Event2Name string `json:"event2Name"`
	Duration   uint64 `json:"duration"`
}
