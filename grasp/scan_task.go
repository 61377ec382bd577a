package grasp

import (
	"context"
	"log/slog"
	"time"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/grasp/timers"
)

// LevelTrace is the slog level for very verbose wait reasons.
const LevelTrace = slog.LevelDebug - 4

// State is the scan task lifecycle state.
type State uint8

const (
	StateIdle State = iota
	StateRequesting
	StateWaiting
	StatePaused
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRequesting:
		return "requesting"
	case StateWaiting:
		return "waiting"
	case StatePaused:
		return "paused"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// TaskEventKind identifies scan task events reported to a TaskObserver.
type TaskEventKind uint8

const (
	TaskScanIssued TaskEventKind = iota
	TaskScanStale
	TaskScanFailed
	TaskWait
	TaskCandidateDead
	TaskTerminated
)

// TaskEvent describes one notable scan task step.
type TaskEvent struct {
	Kind   TaskEventKind
	Actor  ecs.Entity
	Target ecs.Entity
	Delay  time.Duration
	Reason string
	Err    error
}

// TaskObserver receives scan task events.
type TaskObserver func(TaskEvent)

// ActorSource returns the owner's current actor context, or false if it has none.
type ActorSource func() (*ActorInfo, bool)

// ScanOptions tunes a scan task.
type ScanOptions struct {
	ErrorWaitDelay    time.Duration // Delay before retrying after a failed submission
	MinRescanInterval time.Duration // Minimum time between scan submissions (0 = immediate)
	Tag               string
	MaxResults        int
	Logger            *slog.Logger
	Observer          TaskObserver
	OnCompleted       func() // Called when the task ends itself without running
}

// ScanTask is the perpetual task that scans for graspables nearing interaction
// range and keeps the owner's grant in sync with the best live candidate.
// Runs only with authority.
type ScanTask struct {
	owner       ecs.Entity
	actor       ActorSource
	coordinator *Coordinator
	backend     Backend
	scheduler   Scheduler
	opts        ScanOptions
	logger      *slog.Logger

	state     State
	activated bool
	request   Handle
	lastIssue time.Duration
	issued    bool

	waitTimer         timers.Handle
	waitReason        string
	veryVerboseReason string

	pauseSub   *Subscription
	requestSub *Subscription
}

// GraspScan creates the scan task for owner. Call Activate to start it.
func GraspScan(owner ecs.Entity, actor ActorSource, coordinator *Coordinator, backend Backend, scheduler Scheduler, opts ScanOptions) *ScanTask {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = 1
	}
	return &ScanTask{
		owner:       owner,
		actor:       actor,
		coordinator: coordinator,
		backend:     backend,
		scheduler:   scheduler,
		opts:        opts,
		logger:      logger.With("actor", owner.ID()),
	}
}

// State returns the current lifecycle state.
func (t *ScanTask) State() State {
	return t.state
}

// Owner returns the actor the task scans for.
func (t *ScanTask) Owner() ecs.Entity {
	return t.owner
}

// Outstanding returns the in-flight scan handle, if any.
func (t *ScanTask) Outstanding() Handle {
	return t.request
}

// WaitReason returns the reason of the armed wait, if any.
func (t *ScanTask) WaitReason() (reason, veryVerbose string) {
	return t.waitReason, t.veryVerboseReason
}

// Activate starts the task. Without authority the task terminates immediately
// and reports completion.
func (t *ScanTask) Activate() {
	if t.activated {
		return
	}
	t.activated = true

	if info, ok := t.actor(); ok && info != nil && !info.NetMode.HasAuthority() {
		t.logger.Debug("grasp: scan task needs authority", "role", info.NetMode.String())
		t.state = StateTerminated
		t.emit(TaskEvent{Kind: TaskTerminated, Err: ErrNotAuthoritative})
		if t.opts.OnCompleted != nil {
			t.opts.OnCompleted()
		}
		return
	}

	t.pauseSub = t.coordinator.SubscribePause(t.owner, t.OnPauseGrasp)
	t.requestSub = t.coordinator.SubscribeRequestGrasp(t.owner, t.OnRequestGrasp)

	if t.coordinator.IsPaused(t.owner) {
		t.state = StatePaused
		return
	}
	t.RequestGrasp()
}

// RequestGrasp submits a scan. Any outstanding request or armed wait is dropped
// first so at most one scan is ever in flight.
func (t *ScanTask) RequestGrasp() {
	if t.state == StateTerminated || t.state == StatePaused {
		return
	}
	t.clearWait()
	t.cancelRequest()

	info, ok := t.actor()
	if !ok || info == nil {
		t.emit(TaskEvent{Kind: TaskScanFailed, Err: ErrNoActorInfo})
		t.WaitForGrasp(t.opts.ErrorWaitDelay, "no valid actor info", "actor source returned nothing")
		return
	}

	req := Request{Actor: *info, Tag: t.opts.Tag, MaxResults: t.opts.MaxResults}
	h, err := t.backend.Submit(req, t.OnGraspComplete)
	if err != nil {
		t.emit(TaskEvent{Kind: TaskScanFailed, Err: err})
		t.WaitForGrasp(t.opts.ErrorWaitDelay, "scan submission failed", err.Error())
		return
	}

	t.request = h
	t.state = StateRequesting
	t.lastIssue = t.scheduler.Now()
	t.issued = true
	t.emit(TaskEvent{Kind: TaskScanIssued})
}

// OnGraspComplete handles a scan result. Callbacks for any handle other than
// the outstanding one are dropped.
func (t *ScanTask) OnGraspComplete(h Handle, tag string, results []Result) {
	if t.state != StateRequesting || !h.Valid() || h != t.request {
		t.logger.Log(context.Background(), LevelTrace, "grasp: dropped scan callback", "handle", uint64(h), "tag", tag, "error", ErrStaleCallback)
		t.emit(TaskEvent{Kind: TaskScanStale, Err: ErrStaleCallback})
		return
	}
	t.request = 0
	t.state = StateIdle

	if cand, ok := t.pickCandidate(results); ok {
		t.grant(cand)
	} else if g, held := t.coordinator.Revoke(t.owner); held {
		t.logger.Debug("grasp: revoked, no live candidate", "target", g.Target.ID(), "ability", g.Ability)
	}

	t.reschedule()
}

func (t *ScanTask) grant(cand Candidate) {
	holder, held := t.coordinator.CurrentHolder(t.owner)
	switch {
	case held && holder.Target == cand.Target:
		return
	case held:
		t.coordinator.Revoke(t.owner)
	}
	if !t.coordinator.TryGrant(t.owner, cand) {
		t.logger.Debug("grasp: grant failed", "target", cand.Target.ID())
	}
}

// pickCandidate returns the best result whose graspable resolves and is alive.
func (t *ScanTask) pickCandidate(results []Result) (Candidate, bool) {
	var info *ActorInfo
	for _, r := range results {
		g, ok := t.backend.Resolve(r.Target)
		if !ok || g == nil || g.GraspData() == nil {
			continue
		}
		if g.IsGraspableDead() {
			t.emit(TaskEvent{Kind: TaskCandidateDead, Target: r.Target})
			continue
		}
		if info == nil {
			info, _ = t.actor()
		}
		return Candidate{
			Target:     r.Target,
			Graspable:  g,
			TargetData: g.GatherOptionalTargetData(info),
		}, true
	}
	return Candidate{}, false
}

func (t *ScanTask) reschedule() {
	if t.opts.MinRescanInterval > 0 && t.issued {
		elapsed := t.scheduler.Now() - t.lastIssue
		if elapsed < t.opts.MinRescanInterval {
			t.WaitForGrasp(t.opts.MinRescanInterval-elapsed, "", "")
			return
		}
	}
	t.RequestGrasp()
}

// WaitForGrasp waits before requesting again. A delay <= 0 requests on the next
// scheduler tick rather than re-entering RequestGrasp.
func (t *ScanTask) WaitForGrasp(delay time.Duration, reason, veryVerboseReason string) {
	if t.state == StateTerminated || t.state == StatePaused {
		return
	}
	t.clearWait()
	t.cancelRequest()

	t.waitReason = reason
	t.veryVerboseReason = veryVerboseReason
	t.state = StateWaiting

	if reason != "" {
		t.logger.Debug("grasp: waiting", "delay", delay, "reason", reason)
	}
	if veryVerboseReason != "" {
		t.logger.Log(context.Background(), LevelTrace, "grasp: waiting", "delay", delay, "detail", veryVerboseReason)
	}
	t.emit(TaskEvent{Kind: TaskWait, Delay: delay, Reason: reason})

	if delay <= 0 {
		t.waitTimer = t.scheduler.SetTimerForNextTick(t.onWaitExpired)
	} else {
		t.waitTimer = t.scheduler.SetTimer(delay, t.onWaitExpired)
	}
}

func (t *ScanTask) onWaitExpired() {
	t.waitTimer.Invalidate()
	if t.state != StateWaiting {
		return
	}
	t.RequestGrasp()
}

// OnPauseGrasp suspends or resumes scanning. The current grant is kept.
func (t *ScanTask) OnPauseGrasp(paused bool) {
	if t.state == StateTerminated {
		return
	}
	if paused {
		if t.state == StatePaused {
			return
		}
		t.clearWait()
		t.cancelRequest()
		t.state = StatePaused
		return
	}
	if t.state != StatePaused {
		return
	}
	t.state = StateIdle
	t.RequestGrasp()
}

// OnRequestGrasp restarts scanning after the coordinator cleared the owner's
// grants; the outstanding callback, if any, will never be useful.
func (t *ScanTask) OnRequestGrasp() {
	if t.state == StateTerminated || t.state == StatePaused {
		return
	}
	t.RequestGrasp()
}

// OnDestroy ends the task. The grant is left to the coordinator, which clears it
// when the owning ability or actor ends.
func (t *ScanTask) OnDestroy(ownerFinished bool) {
	if t.state == StateTerminated {
		return
	}
	t.clearWait()
	t.cancelRequest()
	t.pauseSub.Unsubscribe()
	t.requestSub.Unsubscribe()
	t.state = StateTerminated
	t.logger.Debug("grasp: scan task destroyed", "owner_finished", ownerFinished)
	t.emit(TaskEvent{Kind: TaskTerminated})
}

func (t *ScanTask) clearWait() {
	if t.waitTimer.Valid() {
		t.scheduler.Clear(t.waitTimer)
		t.waitTimer.Invalidate()
	}
	t.waitReason = ""
	t.veryVerboseReason = ""
}

func (t *ScanTask) cancelRequest() {
	if t.request.Valid() {
		t.backend.Cancel(t.request)
		t.request = 0
	}
}

func (t *ScanTask) emit(ev TaskEvent) {
	if t.opts.Observer == nil {
		return
	}
	ev.Actor = t.owner
	t.opts.Observer(ev)
}
