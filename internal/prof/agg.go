package prof

import "slices"

// aggregate sums interval durations per event name. Sorting by id with the
// start first lets the instants be consumed as (start, end) pairs.
func (s *Session) aggregate() {
	byID := InstSort{Key: InstByID, Order: Asc}
	inst := slices.Clone(s.instants)
	slices.SortStableFunc(inst, byID.compare)

	s.aggs = make([]Agg, len(s.nameList))
	for i, name := range s.nameList {
		s.aggs[i].EventName = name
	}

	s.total = 0
	for i := 0; i+1 < len(inst); i += 2 {
		start, end := inst[i], inst[i+1]
		d := end.Instant - start.Instant
		s.aggs[s.names[start.EventName]].AbsoluteTime += d
		s.total += d
	}

	if s.total == 0 {
		return
	}
	for i := range s.aggs {
		s.aggs[i].RelativeTime = float64(s.aggs[i].AbsoluteTime) / float64(s.total)
	}
}
