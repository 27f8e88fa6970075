package workloop

import (
	"github.com/google/uuid"
	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/go-scheduler/lane"
	"github.com/joeycumines/go-scheduler/scheduler"
	"github.com/joeycumines/logiface"
)

// nestedUpdateLimit bounds the number of consecutive commits of a root that
// leave synchronous work behind.
const nestedUpdateLimit = 50

type executionContext uint8

const (
	renderContext executionContext = 1 << iota
	commitContext
)

// UpdateContext describes where an update originates, for
// WorkLoop.RequestUpdateLane.
type UpdateContext struct {
	// Sync requests SyncLane.
	Sync bool

	// Transition requests a transition lane, as for updates made inside
	// WorkLoop.StartTransition.
	Transition bool

	// Priority is the lane priority of the update. NoLanePriority derives
	// it from an enclosing WorkLoop.DiscreteUpdates, or else from the
	// scheduler's current priority level. It must be a priority accepted by
	// lane.FindUpdateLane.
	Priority lane.LanePriority
}

// WorkLoop schedules and performs work on roots. The zero value is not
// usable, use New.
type WorkLoop struct {
	scheduler    *scheduler.Scheduler
	logger       *logiface.Logger[logiface.Event]
	errorHandler ErrorHandler
	starvation   *catrate.Limiter
	allocator    lane.Allocator

	executionContext   executionContext
	batchDepth         int
	transitionDepth    int
	updateLanePriority lane.LanePriority
	currentEventTime   int64

	renderingRoot      *Root
	committingRoot     *Root
	commitUpdatedLanes lane.Lanes

	syncQueue           []*Root
	syncQueueTask       *scheduler.Task
	isFlushingSyncQueue bool
	flushSyncQueueFn    scheduler.Callback

	discreteRoots []*Root

	nestedUpdateCount     int
	rootWithNestedUpdates *Root
}

// starvationCategory is the catrate category for starvation warnings.
type starvationCategory struct {
	root  uuid.UUID
	index int
}

// New creates a WorkLoop that schedules work with s.
func New(s *scheduler.Scheduler, opts ...Option) (*WorkLoop, error) {
	if s == nil {
		return nil, ErrNilScheduler
	}
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}
	limiter, err := newStarvationLimiter(cfg.starvationRate)
	if err != nil {
		return nil, err
	}
	w := &WorkLoop{
		scheduler:        s,
		logger:           cfg.logger,
		errorHandler:     cfg.errorHandler,
		starvation:       limiter,
		currentEventTime: lane.NoTimestamp,
	}
	if w.errorHandler == nil {
		w.errorHandler = w.logRenderError
	}
	w.flushSyncQueueFn = func(bool) scheduler.Callback {
		w.syncQueueTask = nil
		w.flushSyncCallbackQueue()
		return nil
	}
	return w, nil
}

// Scheduler returns the scheduler the WorkLoop was created with.
func (w *WorkLoop) Scheduler() *scheduler.Scheduler { return w.scheduler }

// NewRoot creates a Root with no pending work, rendered by renderer.
func (w *WorkLoop) NewRoot(renderer Renderer) (*Root, error) {
	if renderer == nil {
		return nil, ErrNilRenderer
	}
	root := &Root{
		id:       uuid.New(),
		lanes:    lane.NewRoot(),
		renderer: renderer,
	}
	root.concurrentWorkFn = func(didTimeout bool) scheduler.Callback {
		return w.performConcurrentWorkOnRoot(root, didTimeout)
	}
	root.syncWorkFn = func(bool) scheduler.Callback {
		// this task is no longer pending
		root.callbackNode = nil
		root.callbackPriority = lane.NoLanePriority
		w.performSyncWorkOnRoot(root)
		return nil
	}
	w.logger.Debug().
		Str(`root_id`, root.id.String()).
		Log(`workloop: root created`)
	return root, nil
}

// RequestEventTime returns the time to record against an update. Updates
// within the same batch share the time of the first.
func (w *WorkLoop) RequestEventTime() int64 {
	if w.executionContext != 0 {
		return w.scheduler.Now()
	}
	if w.currentEventTime != lane.NoTimestamp {
		return w.currentEventTime
	}
	now := w.scheduler.Now()
	if w.batchDepth != 0 {
		w.currentEventTime = now
	}
	return now
}

// RequestUpdateLane picks the lane for an update to root, avoiding the
// lanes of its incomplete render. Updates made while root is rendering join
// that render.
func (w *WorkLoop) RequestUpdateLane(root *Root, ctx UpdateContext) lane.Lane {
	switch {
	case ctx.Sync:
		return lane.SyncLane
	case w.executionContext&renderContext != 0 && w.renderingRoot == root && root.wipLanes != lane.NoLanes:
		return lane.HighestPriorityLane(root.wipLanes)
	case ctx.Transition || w.transitionDepth != 0:
		return w.allocator.FindTransitionLane(root.wipLanes, root.lanes.PendingLanes())
	}
	priority := ctx.Priority
	if priority == lane.NoLanePriority {
		priority = w.updateLanePriority
	}
	if priority == lane.NoLanePriority {
		priority = lane.SchedulerPriorityToLanePriority(w.scheduler.CurrentPriorityLevel())
	}
	return lane.FindUpdateLane(priority, root.wipLanes)
}

// RequestRetryLane picks a lane to retry suspended work on.
func (w *WorkLoop) RequestRetryLane(root *Root) lane.Lane {
	return w.allocator.FindRetryLane(root.wipLanes)
}

// ScheduleUpdate records an update to root on the given lane, and ensures
// the root is scheduled. Synchronous updates made outside of any batch, and
// outside of rendering or committing, are flushed before returning.
//
// ErrNestedUpdateLimit is returned, and the update dropped, if commits of a
// root keep scheduling synchronous work.
func (w *WorkLoop) ScheduleUpdate(root *Root, l lane.Lane, eventTime int64) error {
	if w.nestedUpdateCount > nestedUpdateLimit {
		w.nestedUpdateCount = 0
		w.rootWithNestedUpdates = nil
		w.logger.Err().
			Str(`root_id`, root.id.String()).
			Stringer(`lane`, l).
			Log(`workloop: maximum nested update depth exceeded`)
		return ErrNestedUpdateLimit
	}

	root.lanes.MarkUpdated(l, eventTime)
	if w.committingRoot == root {
		w.commitUpdatedLanes |= l
	}
	if lane.HasDiscreteLanes(l) && !root.pendingDiscrete {
		root.pendingDiscrete = true
		w.discreteRoots = append(w.discreteRoots, root)
	}

	w.logger.Debug().
		Str(`root_id`, root.id.String()).
		Stringer(`lane`, l).
		Int64(`event_time`, eventTime).
		Log(`workloop: update scheduled`)

	w.ensureRootIsScheduled(root, w.scheduler.Now())

	if l == lane.SyncLane && w.executionContext == 0 && w.batchDepth == 0 {
		w.flushSyncCallbackQueue()
	}
	return nil
}

// PingSuspendedRoot marks suspended lanes of root as ready to retry.
func (w *WorkLoop) PingSuspendedRoot(root *Root, lanes lane.Lanes) {
	root.lanes.MarkPinged(lanes)
	w.ensureRootIsScheduled(root, w.scheduler.Now())
}

// EntangleLanes constrains lanes of root to be rendered together.
func (w *WorkLoop) EntangleLanes(root *Root, lanes lane.Lanes) {
	root.lanes.MarkEntangled(lanes)
}

// MarkMutableRead records that work on lane of root read mutable external
// state.
func (w *WorkLoop) MarkMutableRead(root *Root, l lane.Lane) {
	root.lanes.MarkMutableRead(l)
}

// BatchedUpdates runs fn, deferring synchronous work it schedules until it
// returns. Updates within the batch share an event time.
func (w *WorkLoop) BatchedUpdates(fn func()) {
	w.batchDepth++
	defer w.exitBatch()
	fn()
}

// DiscreteUpdates runs fn as a batch at input discrete priority, e.g. for a
// click. Discrete updates from previous events are flushed first.
func (w *WorkLoop) DiscreteUpdates(fn func()) {
	if w.executionContext == 0 && w.batchDepth == 0 {
		w.FlushDiscreteUpdates()
	}
	prevUpdateLanePriority := w.updateLanePriority
	w.updateLanePriority = lane.InputDiscreteLanePriority
	w.batchDepth++
	defer func() {
		w.updateLanePriority = prevUpdateLanePriority
		w.exitBatch()
	}()
	w.scheduler.RunWithPriority(scheduler.UserBlockingPriority, fn)
}

// StartTransition runs fn as a batch in which updates are transitions.
func (w *WorkLoop) StartTransition(fn func()) {
	w.transitionDepth++
	w.batchDepth++
	defer func() {
		w.transitionDepth--
		w.exitBatch()
	}()
	fn()
}

func (w *WorkLoop) exitBatch() {
	w.batchDepth--
	if w.batchDepth == 0 {
		w.currentEventTime = lane.NoTimestamp
		if w.executionContext == 0 {
			w.flushSyncCallbackQueue()
		}
	}
}

// FlushDiscreteUpdates synchronously renders pending discrete updates of
// every root. It has no effect while rendering or committing.
func (w *WorkLoop) FlushDiscreteUpdates() {
	if w.executionContext != 0 {
		return
	}
	roots := w.discreteRoots
	w.discreteRoots = nil
	now := w.scheduler.Now()
	for _, root := range roots {
		root.pendingDiscrete = false
		root.lanes.MarkDiscreteUpdatesExpired()
		w.ensureRootIsScheduled(root, now)
	}
	w.flushSyncCallbackQueue()
}

// FlushSync synchronously renders all pending work of root, along with
// anything else in the synchronous queue. ErrWorkInProgress is returned if
// called while rendering or committing.
func (w *WorkLoop) FlushSync(root *Root) error {
	if w.executionContext != 0 {
		return ErrWorkInProgress
	}
	if pending := root.lanes.PendingLanes(); pending != lane.NoLanes {
		root.lanes.MarkExpired(pending)
		w.ensureRootIsScheduled(root, w.scheduler.Now())
	}
	w.flushSyncCallbackQueue()
	return nil
}

// ensureRootIsScheduled schedules a task for the root's next lanes, reusing
// the existing one if it has the same priority. Each root has at most one
// task, and expired lanes are queued for synchronous rendering instead.
func (w *WorkLoop) ensureRootIsScheduled(root *Root, currentTime int64) {
	existingCallbackNode := root.callbackNode

	expiredLanes := root.lanes.ExpiredLanes()
	root.lanes.MarkStarvedLanesAsExpired(currentTime)
	if starvedLanes := root.lanes.ExpiredLanes() &^ expiredLanes; starvedLanes != lane.NoLanes {
		w.reportStarved(root, starvedLanes, currentTime)
	}

	nextLanes, newCallbackPriority := root.lanes.NextLanes(root.wipLanes)
	if nextLanes == lane.NoLanes {
		if existingCallbackNode != nil {
			w.scheduler.CancelCallback(existingCallbackNode)
		}
		root.callbackNode = nil
		root.callbackPriority = lane.NoLanePriority
		return
	}

	if existingCallbackNode != nil {
		if root.callbackPriority == newCallbackPriority {
			return
		}
		w.scheduler.CancelCallback(existingCallbackNode)
	}

	var newCallbackNode *scheduler.Task
	switch newCallbackPriority {
	case lane.SyncLanePriority:
		w.scheduleSyncCallback(root)
	case lane.SyncBatchedLanePriority:
		newCallbackNode = w.scheduler.ScheduleCallback(scheduler.ImmediatePriority, root.syncWorkFn)
	default:
		newCallbackNode = w.scheduler.ScheduleCallback(
			lane.LanePriorityToSchedulerPriority(newCallbackPriority),
			root.concurrentWorkFn,
		)
	}

	root.callbackNode = newCallbackNode
	root.callbackPriority = newCallbackPriority

	w.logger.Debug().
		Str(`root_id`, root.id.String()).
		Stringer(`lanes`, nextLanes).
		Stringer(`priority`, newCallbackPriority).
		Log(`workloop: root scheduled`)
}

func (w *WorkLoop) reportStarved(root *Root, starvedLanes lane.Lanes, currentTime int64) {
	for index, l := range starvedLanes.All() {
		if _, ok := w.starvation.Allow(starvationCategory{root.id, index}); !ok {
			continue
		}
		w.logger.Warning().
			Str(`root_id`, root.id.String()).
			Stringer(`lane`, l).
			Int64(`event_time`, root.lanes.MostRecentEventTime(l)).
			Int64(`now`, currentTime).
			Log(`workloop: lane starved, rendering synchronously`)
	}
}

func (w *WorkLoop) scheduleSyncCallback(root *Root) {
	if !root.inSyncQueue {
		root.inSyncQueue = true
		w.syncQueue = append(w.syncQueue, root)
	}
	if w.syncQueueTask == nil && !w.isFlushingSyncQueue {
		w.syncQueueTask = w.scheduler.ScheduleCallback(scheduler.ImmediatePriority, w.flushSyncQueueFn)
	}
}

// flushSyncCallbackQueue renders every root in the synchronous queue,
// including roots queued while flushing. If a render panics, the rest of
// the queue is rescheduled.
func (w *WorkLoop) flushSyncCallbackQueue() {
	if w.isFlushingSyncQueue || len(w.syncQueue) == 0 {
		return
	}
	if w.syncQueueTask != nil {
		w.scheduler.CancelCallback(w.syncQueueTask)
		w.syncQueueTask = nil
	}

	w.isFlushingSyncQueue = true
	defer func() {
		w.isFlushingSyncQueue = false
		if len(w.syncQueue) != 0 && w.syncQueueTask == nil {
			w.syncQueueTask = w.scheduler.ScheduleCallback(scheduler.ImmediatePriority, w.flushSyncQueueFn)
		}
	}()

	for len(w.syncQueue) != 0 {
		root := w.syncQueue[0]
		w.syncQueue[0] = nil
		w.syncQueue = w.syncQueue[1:]
		root.inSyncQueue = false
		w.performSyncWorkOnRoot(root)
	}
	w.syncQueue = nil
}

// performConcurrentWorkOnRoot is the body of a root's scheduler task. It
// returns a continuation while the root's task is unchanged.
func (w *WorkLoop) performConcurrentWorkOnRoot(root *Root, didTimeout bool) scheduler.Callback {
	originalCallbackNode := root.callbackNode

	var ok bool
	defer func() {
		if !ok && root.callbackNode == originalCallbackNode {
			// panicked, the task is gone
			root.callbackNode = nil
			root.callbackPriority = lane.NoLanePriority
		}
	}()

	lanes, _ := root.lanes.NextLanes(root.wipLanes)
	if lanes == lane.NoLanes {
		ok = true
		return nil
	}

	if didTimeout {
		// the scheduler considers the task expired, finish it synchronously
		root.lanes.MarkExpired(lanes)
		w.ensureRootIsScheduled(root, w.scheduler.Now())
		ok = true
		return nil
	}

	status, err := w.renderRoot(root, lanes, true)
	if err != nil || status != RenderIncomplete {
		w.finishRender(root, lanes, status, err, true)
	}

	w.ensureRootIsScheduled(root, w.scheduler.Now())
	ok = true
	if root.callbackNode == originalCallbackNode {
		return root.concurrentWorkFn
	}
	return nil
}

// performSyncWorkOnRoot renders root without yielding.
func (w *WorkLoop) performSyncWorkOnRoot(root *Root) {
	var lanes lane.Lanes
	if root.wipLanes != lane.NoLanes && root.wipLanes.Includes(root.lanes.ExpiredLanes()) {
		// finish the expired render in progress
		lanes = root.wipLanes
	} else {
		lanes, _ = root.lanes.NextLanes(lane.NoLanes)
	}

	if lanes != lane.NoLanes {
		status, err := w.renderRoot(root, lanes, false)
		w.finishRender(root, lanes, status, err, false)
	}

	w.ensureRootIsScheduled(root, w.scheduler.Now())
}

func neverYield() bool { return false }

// renderRoot calls the renderer, repeatedly if the render is synchronous.
func (w *WorkLoop) renderRoot(root *Root, lanes lane.Lanes, concurrent bool) (RenderStatus, error) {
	if root.wipLanes != lanes {
		w.logger.Debug().
			Str(`root_id`, root.id.String()).
			Stringer(`lanes`, lanes).
			Stringer(`interrupted`, root.wipLanes).
			Bool(`concurrent`, concurrent).
			Log(`workloop: render started`)
		root.wipLanes = lanes
	}

	prevExecutionContext, prevRenderingRoot := w.executionContext, w.renderingRoot
	w.executionContext |= renderContext
	w.renderingRoot = root
	defer func() {
		w.executionContext, w.renderingRoot = prevExecutionContext, prevRenderingRoot
	}()

	if concurrent {
		return root.renderer.Render(lanes, w.scheduler.ShouldYield)
	}
	for {
		status, err := root.renderer.Render(lanes, neverYield)
		if err != nil || status != RenderIncomplete {
			return status, err
		}
	}
}

// finishRender handles a render that did not yield: it retries failures
// once, synchronously, then suspends or commits.
func (w *WorkLoop) finishRender(root *Root, lanes lane.Lanes, status RenderStatus, err error, concurrent bool) {
	if err != nil {
		if retryLanes := root.lanes.LanesToRetrySynchronouslyOnError(); retryLanes != lane.NoLanes {
			w.logger.Debug().
				Str(`root_id`, root.id.String()).
				Stringer(`lanes`, retryLanes).
				Err(err).
				Log(`workloop: render failed, retrying synchronously`)
			lanes = retryLanes
			status, err = w.renderRoot(root, lanes, false)
			concurrent = false
		}
		if err != nil {
			root.wipLanes = lane.NoLanes
			w.errorHandler(root, lanes, err)
			root.lanes.MarkFinished(root.lanes.PendingLanes() &^ lanes)
			return
		}
	}

	if status == RenderSuspended && concurrent {
		root.wipLanes = lane.NoLanes
		root.lanes.MarkSuspended(lanes)
		w.logger.Debug().
			Str(`root_id`, root.id.String()).
			Stringer(`lanes`, lanes).
			Log(`workloop: render suspended`)
		return
	}

	w.commitRoot(root, lanes)
}

func (w *WorkLoop) commitRoot(root *Root, lanes lane.Lanes) {
	root.wipLanes = lane.NoLanes

	prevExecutionContext := w.executionContext
	w.executionContext |= commitContext
	w.committingRoot = root
	w.commitUpdatedLanes = lane.NoLanes
	var leftoverLanes lane.Lanes
	func() {
		defer func() {
			w.executionContext = prevExecutionContext
			w.committingRoot = nil
		}()
		leftoverLanes = root.renderer.Commit(lanes)
	}()

	remainingLanes := root.lanes.PendingLanes()&^lanes | leftoverLanes&lanes | w.commitUpdatedLanes
	w.commitUpdatedLanes = lane.NoLanes
	root.lanes.MarkFinished(remainingLanes)

	if remainingLanes.Includes(lane.SyncLane) {
		if root == w.rootWithNestedUpdates {
			w.nestedUpdateCount++
		} else {
			w.nestedUpdateCount = 0
			w.rootWithNestedUpdates = root
		}
	} else {
		w.nestedUpdateCount = 0
	}

	w.logger.Debug().
		Str(`root_id`, root.id.String()).
		Stringer(`lanes`, lanes).
		Stringer(`remaining`, remainingLanes).
		Log(`workloop: root committed`)
}

func (w *WorkLoop) logRenderError(root *Root, lanes lane.Lanes, err error) {
	w.logger.Err().
		Str(`root_id`, root.id.String()).
		Stringer(`lanes`, lanes).
		Err(err).
		Log(`workloop: render failed`)
}
