package lane

import (
	"iter"
	"math/bits"
	"strconv"
	"strings"
)

// HighestPriorityLane returns the highest priority lane in lanes, which is
// its lowest set bit, or NoLane.
func HighestPriorityLane(lanes Lanes) Lane {
	return lanes & -lanes
}

// LowestPriorityLane returns the lowest priority lane in lanes, which is its
// highest set bit, or NoLane.
func LowestPriorityLane(lanes Lanes) Lane {
	if lanes == NoLanes {
		return NoLane
	}
	return 1 << (31 - bits.LeadingZeros32(uint32(lanes)))
}

// equalOrHigherPriorityLanes returns every lane with a priority greater than
// or equal to the lowest priority lane in lanes.
func equalOrHigherPriorityLanes(lanes Lanes) Lanes {
	return LowestPriorityLane(lanes)<<1 - 1
}

// HigherPriorityLane returns the higher priority of a and b, treating NoLane
// as the lowest.
func HigherPriorityLane(a, b Lane) Lane {
	if a != NoLane && a < b {
		return a
	}
	return b
}

// Index returns the bit index of a single lane, or -1 for NoLane. For sets,
// it is the index of the lowest priority lane.
func (lanes Lanes) Index() int {
	return 31 - bits.LeadingZeros32(uint32(lanes))
}

// Indexes iterates over the bit index of each lane in lanes, in descending
// priority.
func (lanes Lanes) Indexes() iter.Seq[int] {
	return func(yield func(int) bool) {
		for lanes != NoLanes {
			index := bits.TrailingZeros32(uint32(lanes))
			if !yield(index) {
				return
			}
			lanes &^= 1 << index
		}
	}
}

// All iterates over each lane in lanes, with its bit index, in descending
// priority.
func (lanes Lanes) All() iter.Seq2[int, Lane] {
	return func(yield func(int, Lane) bool) {
		for index := range lanes.Indexes() {
			if !yield(index, 1<<index) {
				return
			}
		}
	}
}

// Len returns the number of lanes in the set.
func (lanes Lanes) Len() int {
	return bits.OnesCount32(uint32(lanes))
}

// Includes reports whether lanes and other share at least one lane.
func (lanes Lanes) Includes(other Lanes) bool {
	return lanes&other != NoLanes
}

// IsSubsetOf reports whether every lane in lanes is also in set.
func (lanes Lanes) IsSubsetOf(set Lanes) bool {
	return set&lanes == lanes
}

// Merge returns the union of lanes and other.
func (lanes Lanes) Merge(other Lanes) Lanes {
	return lanes | other
}

// Remove returns lanes without the lanes in other.
func (lanes Lanes) Remove(other Lanes) Lanes {
	return lanes &^ other
}

// String formats the set as band names joined by "|", with the position
// within the band for bands of more than one lane, e.g. "Sync|Default[1]".
func (lanes Lanes) String() string {
	if lanes == NoLanes {
		return `NoLanes`
	}
	var b strings.Builder
	for index, lane := range lanes.All() {
		if b.Len() != 0 {
			b.WriteByte('|')
		}
		if index >= TotalLanes {
			b.WriteString(`Lane(`)
			b.WriteString(strconv.Itoa(index))
			b.WriteByte(')')
			continue
		}
		band := laneBands[index]
		b.WriteString(band.name)
		if band.lanes.Len() > 1 {
			b.WriteByte('[')
			b.WriteString(strconv.Itoa((band.lanes & (lane - 1)).Len()))
			b.WriteByte(']')
		}
	}
	return b.String()
}

// IncludesNonIdleWork reports whether lanes has any lane above the idle
// bands.
func IncludesNonIdleWork(lanes Lanes) bool {
	return lanes.Includes(NonIdleLanes)
}

// IncludesOnlyRetries reports whether every lane in lanes is a retry lane.
func IncludesOnlyRetries(lanes Lanes) bool {
	return lanes.IsSubsetOf(RetryLanes)
}

// IncludesOnlyTransitions reports whether every lane in lanes is a
// transition lane.
func IncludesOnlyTransitions(lanes Lanes) bool {
	return lanes.IsSubsetOf(TransitionLanes)
}

// HasDiscreteLanes reports whether lanes has any input discrete lane.
func HasDiscreteLanes(lanes Lanes) bool {
	return lanes.Includes(InputDiscreteLanes)
}
