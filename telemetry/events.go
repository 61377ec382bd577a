// Package telemetry records grasp scan and grant activity: per-event CSV logs,
// windowed stats, and tick phase timing.
package telemetry

import (
	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/grasp/grasp"
)

// EventType identifies telemetry events.
type EventType uint8

const (
	EventScanIssued EventType = iota
	EventScanStale
	EventScanFailed
	EventWait
	EventCandidateDead
	EventTerminated
	EventGrant
	EventRevoke
)

func (t EventType) String() string {
	switch t {
	case EventScanIssued:
		return "scan_issued"
	case EventScanStale:
		return "scan_stale"
	case EventScanFailed:
		return "scan_failed"
	case EventWait:
		return "wait"
	case EventCandidateDead:
		return "candidate_dead"
	case EventTerminated:
		return "terminated"
	case EventGrant:
		return "grant"
	case EventRevoke:
		return "revoke"
	default:
		return "unknown"
	}
}

// MarshalCSV writes the type by name.
func (t EventType) MarshalCSV() (string, error) {
	return t.String(), nil
}

// Event represents a single telemetry event.
type Event struct {
	Type    EventType `csv:"type"`
	Tick    int32     `csv:"tick"`
	ActorID uint32    `csv:"actor"`

	// Optional fields depending on event type
	TargetID uint32  `csv:"target"`   // grant, revoke, candidate_dead
	Ability  string  `csv:"ability"`  // grant, revoke
	DelayMS  float64 `csv:"delay_ms"` // wait
	Reason   string  `csv:"reason"`   // wait, scan_failed, terminated
}

func entityID(e ecs.Entity) uint32 {
	if e == (ecs.Entity{}) {
		return 0
	}
	return e.ID()
}

// NewTaskEvent converts a scan task event.
func NewTaskEvent(tick int32, ev grasp.TaskEvent) Event {
	out := Event{
		Tick:     tick,
		ActorID:  entityID(ev.Actor),
		TargetID: entityID(ev.Target),
		Reason:   ev.Reason,
	}
	switch ev.Kind {
	case grasp.TaskScanIssued:
		out.Type = EventScanIssued
	case grasp.TaskScanStale:
		out.Type = EventScanStale
	case grasp.TaskScanFailed:
		out.Type = EventScanFailed
	case grasp.TaskWait:
		out.Type = EventWait
		out.DelayMS = float64(ev.Delay.Microseconds()) / 1000
	case grasp.TaskCandidateDead:
		out.Type = EventCandidateDead
	case grasp.TaskTerminated:
		out.Type = EventTerminated
	}
	if out.Reason == "" && ev.Err != nil {
		out.Reason = ev.Err.Error()
	}
	return out
}

// NewChangeEvent converts a coordinator grant change.
func NewChangeEvent(tick int32, c grasp.Change) Event {
	t := EventGrant
	if c.Kind == grasp.ChangeRevoked {
		t = EventRevoke
	}
	return Event{
		Type:     t,
		Tick:     tick,
		ActorID:  entityID(c.Actor),
		TargetID: entityID(c.Target),
		Ability:  c.Ability,
	}
}
