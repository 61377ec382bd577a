package grasp

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/grasp/ability"
	"github.com/pthm-cable/grasp/timers"
)

const tick = 50 * time.Millisecond

type testGraspable struct {
	GraspableDefaults
	data *Data
	dead bool
}

func (g *testGraspable) GraspData() *Data      { return g.data }
func (g *testGraspable) IsGraspableDead() bool { return g.dead }

type submission struct {
	handle Handle
	req    Request
	cb     Callback
}

type fakeBackend struct {
	next       Handle
	submitted  []submission
	cancelled  map[Handle]bool
	graspables map[ecs.Entity]Graspable
	failNext   error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		cancelled:  make(map[Handle]bool),
		graspables: make(map[ecs.Entity]Graspable),
	}
}

func (b *fakeBackend) Submit(req Request, cb Callback) (Handle, error) {
	if b.failNext != nil {
		err := b.failNext
		b.failNext = nil
		return 0, err
	}
	b.next++
	b.submitted = append(b.submitted, submission{handle: b.next, req: req, cb: cb})
	return b.next, nil
}

func (b *fakeBackend) Cancel(h Handle) {
	b.cancelled[h] = true
}

func (b *fakeBackend) Resolve(target ecs.Entity) (Graspable, bool) {
	g, ok := b.graspables[target]
	return g, ok
}

func (b *fakeBackend) last() submission {
	return b.submitted[len(b.submitted)-1]
}

// deliver completes the most recent submission with hits on targets.
func (b *fakeBackend) deliver(targets ...ecs.Entity) {
	s := b.last()
	b.deliverTo(s, targets...)
}

func (b *fakeBackend) deliverTo(s submission, targets ...ecs.Entity) {
	results := make([]Result, len(targets))
	for i, e := range targets {
		results[i] = Result{Target: e, Score: float64(i)}
	}
	s.cb(s.handle, s.req.Tag, results)
}

type fixture struct {
	world       *ecs.World
	actor       ecs.Entity
	info        *ActorInfo
	timers      *timers.Manager
	backend     *fakeBackend
	registry    *ability.Registry
	coordinator *Coordinator
	changes     []Change
	events      []TaskEvent
	task        *ScanTask
	completed   int
}

func newFixture(t *testing.T, opts ScanOptions) *fixture {
	t.Helper()
	f := &fixture{
		world:   ecs.NewWorld(),
		timers:  timers.NewManager(),
		backend: newFakeBackend(),
	}
	f.actor = f.world.NewEntity()
	f.info = &ActorInfo{Entity: f.actor, Forward: r3.Vec{X: 1}, NetMode: NetStandalone}
	f.registry = ability.NewRegistry(nil)
	f.coordinator = NewCoordinator(f.registry, nil)
	f.coordinator.SetObserver(func(c Change) { f.changes = append(f.changes, c) })

	opts.Observer = func(ev TaskEvent) { f.events = append(f.events, ev) }
	opts.OnCompleted = func() { f.completed++ }
	if opts.Tag == "" {
		opts.Tag = "grasp.scan"
	}
	f.task = GraspScan(f.actor, f.source, f.coordinator, f.backend, f.timers, opts)
	return f
}

func (f *fixture) source() (*ActorInfo, bool) {
	if f.info == nil {
		return nil, false
	}
	return f.info, true
}

func (f *fixture) graspable(name string) (ecs.Entity, *testGraspable) {
	e := f.world.NewEntity()
	g := &testGraspable{data: &Data{Name: name, Ability: name, ScanDistance: 500}}
	f.backend.graspables[e] = g
	return e, g
}

func (f *fixture) countEvents(kind TaskEventKind) int {
	n := 0
	for _, ev := range f.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

func TestActivateWithoutAuthorityTerminates(t *testing.T) {
	f := newFixture(t, ScanOptions{})
	f.info.NetMode = NetClient

	f.task.Activate()

	if f.task.State() != StateTerminated {
		t.Fatalf("state = %v, want terminated", f.task.State())
	}
	if f.completed != 1 {
		t.Errorf("OnCompleted called %d times, want 1", f.completed)
	}
	if len(f.backend.submitted) != 0 {
		t.Errorf("submitted %d scans without authority", len(f.backend.submitted))
	}
	if p, r := f.coordinator.Subscribers(f.actor); p != 0 || r != 0 {
		t.Errorf("subscribers = %d/%d, want none", p, r)
	}
}

func TestActivateIssuesFirstRequest(t *testing.T) {
	f := newFixture(t, ScanOptions{MaxResults: 3})
	f.task.Activate()

	if f.task.State() != StateRequesting {
		t.Fatalf("state = %v, want requesting", f.task.State())
	}
	if len(f.backend.submitted) != 1 {
		t.Fatalf("submitted = %d, want 1", len(f.backend.submitted))
	}
	req := f.backend.last().req
	if req.Tag != "grasp.scan" || req.MaxResults != 3 || req.Actor.Entity != f.actor {
		t.Errorf("request = %+v", req)
	}
	if p, r := f.coordinator.Subscribers(f.actor); p != 1 || r != 1 {
		t.Errorf("subscribers = %d/%d, want 1/1", p, r)
	}

	// Activate is one-shot
	f.task.Activate()
	if len(f.backend.submitted) != 1 {
		t.Errorf("second Activate submitted again")
	}
}

func TestGrantThenSameCandidateIsNoop(t *testing.T) {
	f := newFixture(t, ScanOptions{})
	a, _ := f.graspable("open_door")
	f.task.Activate()

	f.backend.deliver(a)
	holder, ok := f.coordinator.CurrentHolder(f.actor)
	if !ok || holder.Target != a {
		t.Fatalf("holder = %+v, %v; want %v", holder, ok, a)
	}
	if len(f.backend.submitted) != 2 {
		t.Fatalf("expected re-scan after grant, submitted = %d", len(f.backend.submitted))
	}

	f.backend.deliver(a)
	if len(f.changes) != 1 {
		t.Errorf("changes = %v, want a single grant", f.changes)
	}
	if f.registry.Count(f.actor) != 1 {
		t.Errorf("registry count = %d, want 1", f.registry.Count(f.actor))
	}
	if len(f.backend.submitted) != 3 {
		t.Errorf("scan loop stopped, submitted = %d", len(f.backend.submitted))
	}
}

func TestSwitchCandidateRevokesBeforeGranting(t *testing.T) {
	f := newFixture(t, ScanOptions{})
	a, _ := f.graspable("open_door")
	b, _ := f.graspable("pick_up")
	f.task.Activate()

	f.backend.deliver(a)
	f.backend.deliver(b)

	want := []Change{
		{Kind: ChangeGranted, Actor: f.actor, Target: a, Ability: "open_door"},
		{Kind: ChangeRevoked, Actor: f.actor, Target: a, Ability: "open_door"},
		{Kind: ChangeGranted, Actor: f.actor, Target: b, Ability: "pick_up"},
	}
	if diff := cmp.Diff(want, f.changes, cmp.Comparer(func(x, y ecs.Entity) bool { return x == y })); diff != "" {
		t.Errorf("changes mismatch (-want +got):\n%s", diff)
	}
	granted := f.registry.Granted(f.actor)
	if len(granted) != 1 || granted[0].Name != "pick_up" {
		t.Errorf("granted = %+v", granted)
	}
}

func TestNoCandidateRevokesAndRescans(t *testing.T) {
	f := newFixture(t, ScanOptions{})
	a, _ := f.graspable("open_door")
	f.task.Activate()

	f.backend.deliver(a)
	f.backend.deliver()

	if _, ok := f.coordinator.CurrentHolder(f.actor); ok {
		t.Error("grant left dangling after candidate went out of range")
	}
	if f.task.State() != StateRequesting || len(f.backend.submitted) != 3 {
		t.Errorf("state = %v, submitted = %d", f.task.State(), len(f.backend.submitted))
	}
}

func TestDeadCandidateNeverGranted(t *testing.T) {
	f := newFixture(t, ScanOptions{})
	a, ga := f.graspable("open_door")
	b, _ := f.graspable("pick_up")
	ga.dead = true
	f.task.Activate()

	f.backend.deliver(a)
	if _, ok := f.coordinator.CurrentHolder(f.actor); ok {
		t.Fatal("dead candidate was granted")
	}
	if f.countEvents(TaskCandidateDead) != 1 {
		t.Errorf("dead events = %d, want 1", f.countEvents(TaskCandidateDead))
	}

	// Next live result is used when the best one is dead
	f.backend.deliver(a, b)
	holder, ok := f.coordinator.CurrentHolder(f.actor)
	if !ok || holder.Target != b {
		t.Errorf("holder = %+v, want %v", holder, b)
	}
}

func TestHolderDyingIsRevoked(t *testing.T) {
	f := newFixture(t, ScanOptions{})
	a, ga := f.graspable("open_door")
	b, _ := f.graspable("pick_up")
	f.task.Activate()

	f.backend.deliver(a)
	ga.dead = true
	f.backend.deliver(a, b)

	if len(f.changes) != 3 || f.changes[1].Kind != ChangeRevoked || f.changes[1].Target != a {
		t.Fatalf("changes = %v, want revoke of dead holder before new grant", f.changes)
	}
	if f.changes[2].Target != b {
		t.Errorf("granted %v, want %v", f.changes[2].Target, b)
	}
}

func TestUnresolvableCandidateSkipped(t *testing.T) {
	f := newFixture(t, ScanOptions{})
	gone := f.world.NewEntity()
	f.task.Activate()

	f.backend.deliver(gone)
	if _, ok := f.coordinator.CurrentHolder(f.actor); ok {
		t.Error("granted a graspable that no longer resolves")
	}
}

func TestStaleCallbackIgnored(t *testing.T) {
	f := newFixture(t, ScanOptions{})
	a, _ := f.graspable("open_door")
	f.task.Activate()

	first := f.backend.last()
	f.task.RequestGrasp()
	if !f.backend.cancelled[first.handle] {
		t.Error("previous request not cancelled on re-request")
	}
	submitted := len(f.backend.submitted)

	f.backend.deliverTo(first, a)

	if _, ok := f.coordinator.CurrentHolder(f.actor); ok {
		t.Error("stale callback changed grant state")
	}
	if len(f.backend.submitted) != submitted {
		t.Error("stale callback scheduled a new request")
	}
	if f.task.State() != StateRequesting || f.task.Outstanding() != f.backend.last().handle {
		t.Errorf("state = %v, outstanding = %v", f.task.State(), f.task.Outstanding())
	}
	if f.countEvents(TaskScanStale) != 1 {
		t.Errorf("stale events = %d, want 1", f.countEvents(TaskScanStale))
	}

	// Duplicate delivery of an already handled callback is also stale
	current := f.backend.last()
	f.backend.deliverTo(current, a)
	f.backend.deliverTo(current, a)
	if f.countEvents(TaskScanStale) != 2 {
		t.Errorf("duplicate delivery not detected")
	}
}

func TestPauseKeepsGrantAndResumeScansOnce(t *testing.T) {
	f := newFixture(t, ScanOptions{})
	a, _ := f.graspable("open_door")
	f.task.Activate()
	f.backend.deliver(a)

	inflight := f.backend.last()
	f.coordinator.SetPaused(f.actor, true)
	if f.task.State() != StatePaused {
		t.Fatalf("state = %v, want paused", f.task.State())
	}
	if !f.backend.cancelled[inflight.handle] {
		t.Error("in-flight request not cancelled on pause")
	}

	submitted := len(f.backend.submitted)
	f.backend.deliverTo(inflight)
	f.task.RequestGrasp()
	f.task.OnRequestGrasp()
	for i := 0; i < 20; i++ {
		f.timers.Advance(tick)
	}
	if len(f.backend.submitted) != submitted {
		t.Errorf("requests issued while paused")
	}
	if holder, ok := f.coordinator.CurrentHolder(f.actor); !ok || holder.Target != a {
		t.Error("pause dropped the current grant")
	}

	f.coordinator.SetPaused(f.actor, false)
	if len(f.backend.submitted) != submitted+1 {
		t.Errorf("resume issued %d scans, want 1", len(f.backend.submitted)-submitted)
	}
	if f.task.State() != StateRequesting {
		t.Errorf("state = %v, want requesting", f.task.State())
	}
	if holder, ok := f.coordinator.CurrentHolder(f.actor); !ok || holder.Target != a {
		t.Error("resume dropped the current grant")
	}
}

func TestPauseCancelsPendingWait(t *testing.T) {
	f := newFixture(t, ScanOptions{ErrorWaitDelay: time.Second})
	f.info = nil
	f.task.Activate()
	if f.task.State() != StateWaiting {
		t.Fatalf("state = %v, want waiting", f.task.State())
	}

	f.coordinator.SetPaused(f.actor, true)
	if f.timers.Len() != 0 {
		t.Errorf("pending timers after pause = %d", f.timers.Len())
	}
}

func TestActivateWhilePausedWaitsForResume(t *testing.T) {
	f := newFixture(t, ScanOptions{})
	f.coordinator.SetPaused(f.actor, true)
	f.task.Activate()
	if f.task.State() != StatePaused || len(f.backend.submitted) != 0 {
		t.Fatalf("state = %v, submitted = %d", f.task.State(), len(f.backend.submitted))
	}
	f.coordinator.SetPaused(f.actor, false)
	if len(f.backend.submitted) != 1 {
		t.Errorf("submitted = %d, want 1", len(f.backend.submitted))
	}
}

func TestRequestGraspSignalForcesOneScan(t *testing.T) {
	f := newFixture(t, ScanOptions{ErrorWaitDelay: 10 * time.Second})
	f.info = nil
	f.task.Activate()
	if f.task.State() != StateWaiting {
		t.Fatalf("state = %v, want waiting", f.task.State())
	}

	f.info = &ActorInfo{Entity: f.actor, NetMode: NetStandalone}
	f.coordinator.RemoveAll(f.actor)
	if len(f.backend.submitted) != 1 {
		t.Fatalf("submitted = %d, want 1", len(f.backend.submitted))
	}

	// The long wait no longer fires
	for i := 0; i < 400; i++ {
		f.timers.Advance(tick)
	}
	if len(f.backend.submitted) != 1 {
		t.Errorf("submitted = %d after wait window, want 1", len(f.backend.submitted))
	}
}

func TestRequestGraspSignalReplacesInflight(t *testing.T) {
	f := newFixture(t, ScanOptions{})
	f.task.Activate()
	first := f.backend.last()

	f.coordinator.RemoveAll(f.actor)
	if len(f.backend.submitted) != 2 {
		t.Fatalf("submitted = %d, want 2", len(f.backend.submitted))
	}
	if !f.backend.cancelled[first.handle] {
		t.Error("abandoned request not cancelled")
	}
	if f.task.Outstanding() != f.backend.last().handle {
		t.Error("outstanding handle not updated")
	}
}

func TestSubmissionFailureBacksOff(t *testing.T) {
	f := newFixture(t, ScanOptions{ErrorWaitDelay: 500 * time.Millisecond})
	f.info = nil
	f.task.Activate()

	if f.task.State() != StateWaiting {
		t.Fatalf("state = %v, want waiting", f.task.State())
	}
	if reason, _ := f.task.WaitReason(); reason == "" {
		t.Error("wait has no reason")
	}
	if f.countEvents(TaskScanFailed) != 1 {
		t.Errorf("failed events = %d", f.countEvents(TaskScanFailed))
	}
	for _, ev := range f.events {
		if ev.Kind == TaskScanFailed && !errors.Is(ev.Err, ErrNoActorInfo) {
			t.Errorf("failure err = %v, want ErrNoActorInfo", ev.Err)
		}
	}

	f.info = &ActorInfo{Entity: f.actor, NetMode: NetStandalone}
	for i := 0; i < 9; i++ {
		f.timers.Advance(tick)
	}
	if len(f.backend.submitted) != 0 {
		t.Fatalf("retried before error delay elapsed")
	}
	f.timers.Advance(tick)
	if len(f.backend.submitted) != 1 {
		t.Fatalf("submitted = %d after delay, want 1", len(f.backend.submitted))
	}
	if reason, verbose := f.task.WaitReason(); reason != "" || verbose != "" {
		t.Error("wait state not cleared when scan issued")
	}
	for i := 0; i < 20; i++ {
		f.timers.Advance(tick)
	}
	if len(f.backend.submitted) != 1 {
		t.Errorf("submitted = %d, want exactly 1", len(f.backend.submitted))
	}
}

func TestBackendErrorBacksOff(t *testing.T) {
	f := newFixture(t, ScanOptions{ErrorWaitDelay: 100 * time.Millisecond})
	f.backend.failNext = errors.New("query preset missing")
	f.task.Activate()

	if f.task.State() != StateWaiting {
		t.Fatalf("state = %v, want waiting", f.task.State())
	}
	f.timers.Advance(tick)
	f.timers.Advance(tick)
	if len(f.backend.submitted) != 1 || f.task.State() != StateRequesting {
		t.Errorf("submitted = %d, state = %v", len(f.backend.submitted), f.task.State())
	}
}

func TestZeroDelayWaitDefersToNextTick(t *testing.T) {
	f := newFixture(t, ScanOptions{})
	f.info = nil
	f.task.Activate()

	// Zero error delay still never re-enters RequestGrasp inline
	if len(f.events) != 2 {
		t.Fatalf("events = %d, want failure and wait only", len(f.events))
	}
	for i := 0; i < 3; i++ {
		f.timers.Advance(tick)
	}
	if got := f.countEvents(TaskScanFailed); got != 4 {
		t.Errorf("failures = %d, want one per tick plus the first", got)
	}
}

func TestMinRescanIntervalWaits(t *testing.T) {
	f := newFixture(t, ScanOptions{MinRescanInterval: 200 * time.Millisecond})
	f.task.Activate()

	f.timers.Advance(tick)
	f.backend.deliver()
	if f.task.State() != StateWaiting {
		t.Fatalf("state = %v, want waiting", f.task.State())
	}
	f.timers.Advance(tick)
	f.timers.Advance(tick)
	if len(f.backend.submitted) != 1 {
		t.Fatalf("rescanned before interval")
	}
	f.timers.Advance(tick)
	if len(f.backend.submitted) != 2 {
		t.Errorf("submitted = %d, want 2", len(f.backend.submitted))
	}
}

func TestDestroyCancelsEverything(t *testing.T) {
	f := newFixture(t, ScanOptions{ErrorWaitDelay: time.Second})
	a, _ := f.graspable("open_door")
	f.task.Activate()
	f.backend.deliver(a)

	inflight := f.backend.last()
	f.task.OnDestroy(true)

	if f.task.State() != StateTerminated {
		t.Fatalf("state = %v", f.task.State())
	}
	if !f.backend.cancelled[inflight.handle] {
		t.Error("in-flight request not cancelled")
	}
	if p, r := f.coordinator.Subscribers(f.actor); p != 0 || r != 0 {
		t.Errorf("subscribers = %d/%d after destroy", p, r)
	}
	if _, ok := f.coordinator.CurrentHolder(f.actor); !ok {
		t.Error("destroy revoked the grant; that is the coordinator's job")
	}

	submitted := len(f.backend.submitted)
	f.backend.deliverTo(inflight)
	f.coordinator.RemoveAll(f.actor)
	f.coordinator.SetPaused(f.actor, true)
	f.coordinator.SetPaused(f.actor, false)
	f.task.WaitForGrasp(0, "late", "")
	for i := 0; i < 40; i++ {
		f.timers.Advance(tick)
	}
	if len(f.backend.submitted) != submitted || f.task.State() != StateTerminated {
		t.Errorf("task changed state after destroy")
	}
}

func TestDestroyClearsPendingTimer(t *testing.T) {
	f := newFixture(t, ScanOptions{ErrorWaitDelay: time.Second})
	f.info = nil
	f.task.Activate()
	f.task.OnDestroy(false)
	if f.timers.Len() != 0 {
		t.Errorf("pending timers = %d after destroy", f.timers.Len())
	}
}

func TestRandomOutcomesKeepSingleGrant(t *testing.T) {
	f := newFixture(t, ScanOptions{})
	views := make(map[ecs.Entity]*testGraspable)
	var targets []ecs.Entity
	for _, name := range []string{"a", "b", "c", "d"} {
		e, g := f.graspable(name)
		targets = append(targets, e)
		views[e] = g
	}
	grantedDead := 0
	f.coordinator.SetObserver(func(c Change) {
		if c.Kind == ChangeGranted && views[c.Target].dead {
			grantedDead++
		}
	})
	f.task.Activate()

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		switch rng.Intn(6) {
		case 0:
			f.backend.deliver()
		case 1:
			views[targets[rng.Intn(len(targets))]].dead = rng.Intn(2) == 0
		case 2:
			f.coordinator.RemoveAll(f.actor)
		default:
			hits := make([]ecs.Entity, rng.Intn(3)+1)
			for j := range hits {
				hits[j] = targets[rng.Intn(len(targets))]
			}
			f.backend.deliver(hits...)
		}

		if c := f.registry.Count(f.actor); c > 1 {
			t.Fatalf("step %d: %d abilities granted", i, c)
		}
		if f.task.State() != StateRequesting {
			t.Fatalf("step %d: state = %v, want requesting", i, f.task.State())
		}
	}
	if grantedDead != 0 {
		t.Errorf("%d grants went to dead graspables", grantedDead)
	}
}
