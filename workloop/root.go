package workloop

import (
	"strconv"

	"github.com/google/uuid"
	"github.com/joeycumines/go-scheduler/lane"
	"github.com/joeycumines/go-scheduler/scheduler"
)

// RenderStatus is the outcome of a call to Renderer.Render.
type RenderStatus int

const (
	// RenderIncomplete indicates the renderer yielded, and will resume the
	// render when next called with the same lanes.
	RenderIncomplete RenderStatus = iota

	// RenderCompleted indicates the render finished, and may be committed.
	RenderCompleted

	// RenderSuspended indicates the render is blocked on data that is not
	// yet available. The lanes are parked until PingSuspendedRoot or a new
	// update. Synchronous renders cannot wait, and are committed instead.
	RenderSuspended
)

func (s RenderStatus) String() string {
	switch s {
	case RenderIncomplete:
		return `Incomplete`
	case RenderCompleted:
		return `Completed`
	case RenderSuspended:
		return `Suspended`
	default:
		return `RenderStatus(` + strconv.Itoa(int(s)) + `)`
	}
}

// Renderer performs the work for a Root.
type Renderer interface {
	// Render works on the given lanes, returning RenderIncomplete as soon
	// as shouldYield reports true. A call with lanes different from those
	// of an incomplete render discards that render and starts over.
	// Synchronous renders are passed a shouldYield that never reports true.
	Render(lanes lane.Lanes, shouldYield func() bool) (RenderStatus, error)

	// Commit applies a completed render, returning the subset of lanes that
	// still have work, e.g. deferred offscreen work. Any other pending
	// lanes, and lanes updated during the commit, remain pending
	// regardless.
	Commit(lanes lane.Lanes) lane.Lanes
}

// Root is an independently scheduled tree of work, created by
// WorkLoop.NewRoot.
type Root struct {
	id       uuid.UUID
	lanes    *lane.Root
	renderer Renderer

	// the scheduler task for the root's concurrent (or sync batched) work
	callbackNode     *scheduler.Task
	callbackPriority lane.LanePriority

	// lanes of the incomplete render, if any
	wipLanes lane.Lanes

	inSyncQueue     bool
	pendingDiscrete bool

	concurrentWorkFn scheduler.Callback
	syncWorkFn       scheduler.Callback
}

// ID returns the root's identifier, as used in logs.
func (r *Root) ID() uuid.UUID { return r.id }

// State returns a copy of the root's lane state.
func (r *Root) State() lane.RootState { return r.lanes.Snapshot() }

// CallbackNode returns the scheduler task that will next work on the root,
// or nil if there is none, or its work is in the synchronous queue.
func (r *Root) CallbackNode() *scheduler.Task { return r.callbackNode }

// CallbackPriority returns the lane priority the root is scheduled at, or
// NoLanePriority.
func (r *Root) CallbackPriority() lane.LanePriority { return r.callbackPriority }

// WorkInProgressLanes returns the lanes of an incomplete render, which will
// be resumed, unless interrupted by more urgent work.
func (r *Root) WorkInProgressLanes() lane.Lanes { return r.wipLanes }
