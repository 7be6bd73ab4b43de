package prof

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
)

// Order is the direction of a sort.
type Order int

const (
	Asc Order = iota
	Desc
)

func (o Order) String() string {
	if o == Desc {
		return "desc"
	}
	return "asc"
}

func compare[T cmp.Ordered](a, b T, o Order) int {
	if o == Desc {
		return cmp.Compare(b, a)
	}
	return cmp.Compare(a, b)
}

// AggKey selects the field aggregates are sorted by.
type AggKey int

const (
	AggByName AggKey = iota
	AggByTime
)

// AggSort orders aggregate statistics.
type AggSort struct {
	Key   AggKey
	Order Order
}

func (s AggSort) String() string {
	key := "name"
	if s.Key == AggByTime {
		key = "time"
	}
	return key + "-" + s.Order.String()
}

func (s AggSort) compare(a, b Agg) int {
	if s.Key == AggByTime {
		return compare(a.AbsoluteTime, b.AbsoluteTime, s.Order)
	}
	return compare(a.EventName, b.EventName, s.Order)
}

// InfoKey selects the field event infos are sorted by.
type InfoKey int

const (
	InfoByEventName InfoKey = iota
	InfoByQueueName
	InfoByTQueued
	InfoByTSubmit
	InfoByTStart
	InfoByTEnd
)

var infoKeyNames = []string{"event", "queue", "queued", "submit", "start", "end"}

// InfoSort orders event infos.
type InfoSort struct {
	Key   InfoKey
	Order Order
}

func (s InfoSort) String() string {
	return infoKeyNames[s.Key] + "-" + s.Order.String()
}

func (s InfoSort) compare(a, b Info) int {
	switch s.Key {
	case InfoByEventName:
		return compare(a.EventName, b.EventName, s.Order)
	case InfoByQueueName:
		return compare(a.QueueName, b.QueueName, s.Order)
	case InfoByTQueued:
		return compare(a.TQueued, b.TQueued, s.Order)
	case InfoByTSubmit:
		return compare(a.TSubmit, b.TSubmit, s.Order)
	case InfoByTEnd:
		return compare(a.TEnd, b.TEnd, s.Order)
	default:
		return compare(a.TStart, b.TStart, s.Order)
	}
}

// InstKey selects the field event instants are sorted by.
type InstKey int

const (
	InstByInstant InstKey = iota
	// InstByID sorts by event id, with the start of an event before its end.
	InstByID
)

// InstSort orders event instants.
type InstSort struct {
	Key   InstKey
	Order Order
}

func (s InstSort) String() string {
	key := "instant"
	if s.Key == InstByID {
		key = "id"
	}
	return key + "-" + s.Order.String()
}

func (s InstSort) compare(a, b Instant) int {
	if s.Key == InstByID {
		if c := compare(a.ID, b.ID, s.Order); c != 0 {
			return c
		}
		return compare(a.Type, b.Type, s.Order)
	}
	return compare(a.Instant, b.Instant, s.Order)
}

// OverlapKey selects the field overlaps are sorted by.
type OverlapKey int

const (
	OverlapByName OverlapKey = iota
	OverlapByDuration
)

// OverlapSort orders overlaps.
type OverlapSort struct {
	Key   OverlapKey
	Order Order
}

func (s OverlapSort) String() string {
	key := "name"
	if s.Key == OverlapByDuration {
		key = "duration"
	}
	return key + "-" + s.Order.String()
}

func (s OverlapSort) compare(a, b Overlap) int {
	if s.Key == OverlapByDuration {
		return compare(a.Duration, b.Duration, s.Order)
	}
	if c := compare(a.Event1Name, b.Event1Name, s.Order); c != 0 {
		return c
	}
	return compare(a.Event2Name, b.Event2Name, s.Order)
}

// Sorts used by the summary when the caller has no preference.
var (
	DefaultAggSort     = AggSort{Key: AggByTime, Order: Desc}
	DefaultOverlapSort = OverlapSort{Key: OverlapByDuration, Order: Desc}
)

func sortedCopy[T any](in []T, cmp func(a, b T) int) []T {
	out := slices.Clone(in)
	slices.SortStableFunc(out, cmp)
	return out
}

// splitSort parses "key-order" (order defaults to asc).
func splitSort(s string) (string, Order, error) {
	key, order, found := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "-")
	if !found {
		return key, Asc, nil
	}
	switch order {
	case "asc":
		return key, Asc, nil
	case "desc":
		return key, Desc, nil
	default:
		return "", Asc, fmt.Errorf("invalid sort order %q in %q", order, s)
	}
}

// ParseAggSort parses "name", "time-desc" and the like.
func ParseAggSort(s string) (AggSort, error) {
	key, order, err := splitSort(s)
	if err != nil {
		return AggSort{}, err
	}
	switch key {
	case "name":
		return AggSort{Key: AggByName, Order: order}, nil
	case "time":
		return AggSort{Key: AggByTime, Order: order}, nil
	default:
		return AggSort{}, fmt.Errorf("invalid aggregate sort key %q", key)
	}
}

// ParseInfoSort parses "start-asc", "queue" and the like.
func ParseInfoSort(s string) (InfoSort, error) {
	key, order, err := splitSort(s)
	if err != nil {
		return InfoSort{}, err
	}
	for i, name := range infoKeyNames {
		if name == key {
			return InfoSort{Key: InfoKey(i), Order: order}, nil
		}
	}
	return InfoSort{}, fmt.Errorf("invalid info sort key %q", key)
}

// ParseInstSort parses "instant-asc" or "id-desc".
func ParseInstSort(s string) (InstSort, error) {
	key, order, err := splitSort(s)
	if err != nil {
		return InstSort{}, err
	}
	switch key {
	case "instant":
		return InstSort{Key: InstByInstant, Order: order}, nil
	case "id":
		return InstSort{Key: InstByID, Order: order}, nil
	default:
		return InstSort{}, fmt.Errorf("invalid instant sort key %q", key)
	}
}

// ParseOverlapSort parses "duration-desc", "name" and the like.
func ParseOverlapSort(s string) (OverlapSort, error) {
	key, order, err := splitSort(s)
	if err != nil {
		return OverlapSort{}, err
	}
	switch key {
	case "name":
		return OverlapSort{Key: OverlapByName, Order: order}, nil
	case "duration":
		return OverlapSort{Key: OverlapByDuration, Order: order}, nil
	default:
		return OverlapSort{}, fmt.Errorf("invalid overlap sort key %q", key)
	}
}
