package lane

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBands_partition(t *testing.T) {
	var union Lanes
	for i, b := range bands {
		assert.NotEqual(t, NoLanes, b.lanes, b.name)
		assert.False(t, union.Includes(b.lanes), b.name)
		if i > 0 {
			prev := bands[i-1]
			assert.Less(t, LowestPriorityLane(prev.lanes), HighestPriorityLane(b.lanes), b.name)
			assert.Equal(t, prev.priority-1, b.priority, b.name)
		}
		union |= b.lanes
	}
	assert.Equal(t, AllLanes, union)
	assert.Equal(t, TotalLanes, union.Len())

	var nonIdle Lanes
	for _, b := range bands {
		if b.priority > IdleHydrationLanePriority {
			nonIdle |= b.lanes
		}
	}
	assert.Equal(t, nonIdle, NonIdleLanes)
	assert.True(t, SomeRetryLane.IsSubsetOf(RetryLanes))
	assert.Equal(t, 9, TransitionLanes.Len())
}

func TestHighestPriorityLanes(t *testing.T) {
	for _, tc := range [...]struct {
		lanes    Lanes
		want     Lanes
		priority LanePriority
	}{
		{NoLanes, NoLanes, NoLanePriority},
		{SyncLane | DefaultLanes, SyncLane, SyncLanePriority},
		{InputDiscreteLanes | IdleLanes, InputDiscreteLanes, InputDiscreteLanePriority},
		{DefaultLanes&^HighestPriorityLane(DefaultLanes) | TransitionLanes, DefaultLanes &^ HighestPriorityLane(DefaultLanes), DefaultLanePriority},
		{TransitionHydrationLane | RetryLanes, TransitionHydrationLane, TransitionHydrationLanePriority},
		{RetryLanes | OffscreenLane, RetryLanes, RetryLanePriority},
		{SelectiveHydrationLane, SelectiveHydrationLane, SelectiveHydrationLanePriority},
		{IdleLanes | OffscreenLane, IdleLanes, IdleLanePriority},
		{OffscreenLane, OffscreenLane, OffscreenLanePriority},
		{OffscreenLane | 1<<31, OffscreenLane, OffscreenLanePriority},
	} {
		lanes, priority := highestPriorityLanes(tc.lanes)
		assert.Equal(t, tc.want, lanes, tc.lanes.String())
		assert.Equal(t, tc.priority, priority, tc.lanes.String())
		assert.Equal(t, tc.priority, tc.lanes.Priority())
	}
}

func TestBitUtilities(t *testing.T) {
	assert.Equal(t, Lane(0b100), HighestPriorityLane(0b1100))
	assert.Equal(t, Lane(0b1000), LowestPriorityLane(0b1100))
	assert.Equal(t, NoLane, HighestPriorityLane(NoLanes))
	assert.Equal(t, NoLane, LowestPriorityLane(NoLanes))
	assert.Equal(t, Lanes(0b1111), equalOrHigherPriorityLanes(0b1010))
	assert.Equal(t, OffscreenLane, LowestPriorityLane(AllLanes))

	assert.Equal(t, 0, SyncLane.Index())
	assert.Equal(t, 30, OffscreenLane.Index())
	assert.Equal(t, -1, NoLane.Index())

	assert.Equal(t, []int{3, 4, 30}, slices.Collect((InputDiscreteLanes | OffscreenLane).Indexes()))
	var lanes []Lane
	for index, lane := range DefaultLanes.All() {
		assert.Equal(t, Lane(1)<<index, lane)
		lanes = append(lanes, lane)
	}
	assert.Equal(t, []Lane{1 << 9, 1 << 10, 1 << 11}, lanes)
	for range AllLanes.All() {
		break
	}

	assert.Equal(t, SyncLane, HigherPriorityLane(SyncLane, OffscreenLane))
	assert.Equal(t, SyncLane, HigherPriorityLane(OffscreenLane, SyncLane))
	assert.Equal(t, OffscreenLane, HigherPriorityLane(NoLane, OffscreenLane))
	assert.Equal(t, SyncLanePriority, HigherLanePriority(SyncLanePriority, IdleLanePriority))
	assert.Equal(t, IdleLanePriority, HigherLanePriority(NoLanePriority, IdleLanePriority))

	assert.True(t, DefaultLanes.Includes(1<<10))
	assert.False(t, DefaultLanes.Includes(TransitionLanes))
	assert.True(t, Lanes(1<<10).IsSubsetOf(DefaultLanes))
	assert.False(t, (DefaultLanes | SyncLane).IsSubsetOf(DefaultLanes))
	assert.Equal(t, SyncLane|SyncBatchedLane, SyncLane.Merge(SyncBatchedLane))
	assert.Equal(t, SyncLane, (SyncLane | SyncBatchedLane).Remove(SyncBatchedLane))
}

func TestPredicates(t *testing.T) {
	assert.True(t, IncludesNonIdleWork(SyncLane|IdleLanes))
	assert.False(t, IncludesNonIdleWork(IdleHydrationLane|IdleLanes|OffscreenLane))
	assert.True(t, IncludesOnlyRetries(SomeRetryLane))
	assert.False(t, IncludesOnlyRetries(SomeRetryLane|SyncLane))
	assert.True(t, IncludesOnlyTransitions(TransitionLanes))
	assert.False(t, IncludesOnlyTransitions(TransitionHydrationLane))
	assert.True(t, HasDiscreteLanes(1<<4))
	assert.False(t, HasDiscreteLanes(InputDiscreteHydrationLane))
}

func TestLanes_String(t *testing.T) {
	for _, tc := range [...]struct {
		lanes Lanes
		want  string
	}{
		{NoLanes, `NoLanes`},
		{SyncLane, `Sync`},
		{SyncLane | 1<<10, `Sync|Default[1]`},
		{InputDiscreteLanes, `InputDiscrete[0]|InputDiscrete[1]`},
		{SomeRetryLane | OffscreenLane, `Retry[3]|Offscreen`},
		{1 << 31, `Lane(31)`},
	} {
		assert.Equal(t, tc.want, tc.lanes.String())
	}
}

func TestLanePriority_String(t *testing.T) {
	assert.Equal(t, `NoLanePriority`, NoLanePriority.String())
	assert.Equal(t, `Sync`, SyncLanePriority.String())
	assert.Equal(t, `InputContinuous`, InputContinuousLanePriority.String())
	assert.Equal(t, `Offscreen`, OffscreenLanePriority.String())
	assert.Equal(t, `LanePriority(16)`, LanePriority(16).String())
	for _, b := range bands {
		assert.Equal(t, b.name, b.priority.String())
	}
}
