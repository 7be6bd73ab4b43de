package prof

import (
	"cmp"
	"slices"
)

type pairKey struct {
	lo, hi uint32
}

func makePair(a, b uint32) pairKey {
	if a > b {
		a, b = b, a
	}
	return pairKey{lo: a, hi: b}
}

// sweepOrder sorts instants by time. At equal instants ends come before
// starts so touching intervals never open a pair.
func sweepOrder(a, b Instant) int {
	if c := cmp.Compare(a.Instant, b.Instant); c != 0 {
		return c
	}
	if a.Type != b.Type {
		if a.Type == InstantEnd {
			return -1
		}
		return 1
	}
	return cmp.Compare(a.ID, b.ID)
}

type openEvent struct {
	id     uint32
	nameID uint32
}

// computeOverlaps sweeps the instants in time order keeping the set of
// running events. Every pair of running events accumulates the time both
// were open into a triangular name-by-name matrix.
func (s *Session) computeOverlaps() {
	inst := slices.Clone(s.instants)
	slices.SortStableFunc(inst, sweepOrder)

	n := uint32(len(s.nameList))
	matrix := make([]uint64, n*n)
	pending := make(map[pairKey]uint64)
	var open []openEvent
	var totalOverlap uint64

	for _, in := range inst {
		nameID := s.names[in.EventName]
		switch in.Type {
		case InstantStart:
			for _, o := range open {
				pending[makePair(in.ID, o.id)] = in.Instant
			}
			open = append(open, openEvent{id: in.ID, nameID: nameID})
		case InstantEnd:
			open = slices.DeleteFunc(open, func(o openEvent) bool { return o.id == in.ID })
			for _, o := range open {
				key := makePair(in.ID, o.id)
				d := in.Instant - pending[key]
				delete(pending, key)

				lo, hi := min(nameID, o.nameID), max(nameID, o.nameID)
				matrix[lo*n+hi] += d
				totalOverlap += d
			}
		}
	}

	s.overlaps = nil
	for i := uint32(0); i < n; i++ {
		for j := i; j < n; j++ {
			if d := matrix[i*n+j]; d > 0 {
				s.overlaps = append(s.overlaps, Overlap{
					Event1Name: s.nameList[i],
					Event2Name: s.nameList[j],
					Duration:   d,
				})
			}
		}
	}

	// Pairwise attribution counts a region shared by k events k(k-1)/2
	// times, which can exceed the summed busy time.
	if totalOverlap > s.total {
		s.effective = 0
	} else {
		s.effective = s.total - totalOverlap
	}
}
