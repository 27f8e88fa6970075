package lane

// Lanes is a set of lanes, one bit per lane. Only the low TotalLanes bits
// are used.
type Lanes uint32

// Lane is a Lanes value with at most one bit set.
type Lane = Lanes

// TotalLanes is the number of lanes.
const TotalLanes = 31

// NoTimestamp is the sentinel for an absent event or expiration time.
const NoTimestamp int64 = -1

// Bands, in descending priority. Bands with a single lane are named Lane.
const (
	NoLanes Lanes = 0
	NoLane  Lane  = 0

	SyncLane                     Lane  = 1 << 0
	SyncBatchedLane              Lane  = 1 << 1
	InputDiscreteHydrationLane   Lane  = 1 << 2
	InputDiscreteLanes           Lanes = 0b11 << 3
	InputContinuousHydrationLane Lane  = 1 << 5
	InputContinuousLanes         Lanes = 0b11 << 6
	DefaultHydrationLane         Lane  = 1 << 8
	DefaultLanes                 Lanes = 0b111 << 9
	TransitionHydrationLane      Lane  = 1 << 12
	TransitionLanes              Lanes = 0b111111111 << 13
	RetryLanes                   Lanes = 0b1111 << 22
	SelectiveHydrationLane       Lane  = 1 << 26
	IdleHydrationLane            Lane  = 1 << 27
	IdleLanes                    Lanes = 0b11 << 28
	OffscreenLane                Lane  = 1 << 30

	// SomeRetryLane is a retry lane for callers that need one without
	// allocating.
	SomeRetryLane Lane = 1 << 25

	// NonIdleLanes are all lanes above IdleHydrationLane.
	NonIdleLanes Lanes = IdleHydrationLane - 1

	// AllLanes is the union of every band.
	AllLanes Lanes = 1<<TotalLanes - 1
)

// The bands must be disjoint, which holds iff their sum equals their union,
// and must cover exactly AllLanes. Both are checked at compile time.
const (
	bandUnion = SyncLane | SyncBatchedLane | InputDiscreteHydrationLane | InputDiscreteLanes |
		InputContinuousHydrationLane | InputContinuousLanes | DefaultHydrationLane | DefaultLanes |
		TransitionHydrationLane | TransitionLanes | RetryLanes | SelectiveHydrationLane |
		IdleHydrationLane | IdleLanes | OffscreenLane
	bandSum = SyncLane + SyncBatchedLane + InputDiscreteHydrationLane + InputDiscreteLanes +
		InputContinuousHydrationLane + InputContinuousLanes + DefaultHydrationLane + DefaultLanes +
		TransitionHydrationLane + TransitionLanes + RetryLanes + SelectiveHydrationLane +
		IdleHydrationLane + IdleLanes + OffscreenLane
)

var (
	_ = [1]struct{}{}[bandSum-bandUnion]
	_ = [1]struct{}{}[bandUnion^AllLanes]
)

// band is a contiguous range of lanes sharing a priority.
type band struct {
	name     string
	lanes    Lanes
	priority LanePriority
}

// bands lists every band in descending priority, i.e. ascending bit order.
var bands = [...]band{
	{`Sync`, SyncLane, SyncLanePriority},
	{`SyncBatched`, SyncBatchedLane, SyncBatchedLanePriority},
	{`InputDiscreteHydration`, InputDiscreteHydrationLane, InputDiscreteHydrationLanePriority},
	{`InputDiscrete`, InputDiscreteLanes, InputDiscreteLanePriority},
	{`InputContinuousHydration`, InputContinuousHydrationLane, InputContinuousHydrationLanePriority},
	{`InputContinuous`, InputContinuousLanes, InputContinuousLanePriority},
	{`DefaultHydration`, DefaultHydrationLane, DefaultHydrationLanePriority},
	{`Default`, DefaultLanes, DefaultLanePriority},
	{`TransitionHydration`, TransitionHydrationLane, TransitionHydrationLanePriority},
	{`Transition`, TransitionLanes, TransitionLanePriority},
	{`Retry`, RetryLanes, RetryLanePriority},
	{`SelectiveHydration`, SelectiveHydrationLane, SelectiveHydrationLanePriority},
	{`IdleHydration`, IdleHydrationLane, IdleHydrationLanePriority},
	{`Idle`, IdleLanes, IdleLanePriority},
	{`Offscreen`, OffscreenLane, OffscreenLanePriority},
}

// laneBands maps each lane index to its band, for O(1) band lookups.
var laneBands = func() (m [TotalLanes]*band) {
	for i := range bands {
		for index := range bands[i].lanes.Indexes() {
			m[index] = &bands[i]
		}
	}
	return
}()

// highestPriorityLanes returns the lanes of the highest priority band
// present in lanes, and that band's priority.
func highestPriorityLanes(lanes Lanes) (Lanes, LanePriority) {
	lanes &= AllLanes
	if lanes == NoLanes {
		return NoLanes, NoLanePriority
	}
	b := laneBands[HighestPriorityLane(lanes).Index()]
	return lanes & b.lanes, b.priority
}

// Priority returns the priority of the highest priority band present in
// lanes, or NoLanePriority if lanes is empty.
func (lanes Lanes) Priority() LanePriority {
	_, priority := highestPriorityLanes(lanes)
	return priority
}
