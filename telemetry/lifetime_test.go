package telemetry

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLifetimeTracker(t *testing.T) {
	lt := NewLifetimeTracker()
	lt.Register(1, 5)

	for _, ev := range []Event{
		{Type: EventScanIssued, Tick: 5, ActorID: 1},
		{Type: EventGrant, Tick: 6, ActorID: 1, TargetID: 10},
		{Type: EventScanIssued, Tick: 6, ActorID: 1},
		{Type: EventCandidateDead, Tick: 20, ActorID: 1, TargetID: 10},
		{Type: EventRevoke, Tick: 20, ActorID: 1, TargetID: 10},
		{Type: EventGrant, Tick: 20, ActorID: 1, TargetID: 11},
		{Type: EventRevoke, Tick: 25, ActorID: 1, TargetID: 11},
		{Type: EventGrant, Tick: 30, ActorID: 1, TargetID: 10},
		{Type: EventScanFailed, Tick: 31, ActorID: 1},
		{Type: EventRevoke, Tick: 32, ActorID: 9}, // unregistered
	} {
		lt.Record(ev)
	}

	want := &LifetimeStats{
		SpawnTick:      5,
		ScansIssued:    2,
		ScansFailed:    1,
		CandidatesDead: 1,
		Grants:         3,
		Revokes:        2,
		TicksHeld:      19,
		LongestHold:    14,
		DistinctHeld:   2,
	}
	if diff := cmp.Diff(want, lt.Get(1)); diff != "" {
		t.Errorf("stats mismatch (-want +got):\n%s", diff)
	}
	if lt.Get(9) != nil {
		t.Error("unregistered actor has stats")
	}

	if got := lt.Remove(1); got == nil || got.Grants != 3 {
		t.Errorf("Remove = %+v", got)
	}
	if lt.Count() != 0 {
		t.Errorf("Count = %d after Remove, want 0", lt.Count())
	}
}
