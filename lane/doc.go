// Package lane implements a 31-bit priority lane allocator.
//
// Each pending update is tagged with a Lane, one bit of a Lanes mask. Lanes
// are grouped into bands of descending priority, lower bits being more
// urgent, so the highest priority lane of a set is its lowest set bit. A Root
// tracks, per lane, whether work is pending, suspended, pinged, expired or
// entangled, along with event and expiration timestamps, and NextLanes picks
// the batch of lanes to work on next.
//
// Lanes map to scheduler priorities through LanePriority, see
// LanePriorityToSchedulerPriority.
package lane
