package grasp

import (
	"time"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/grasp/ability"
	"github.com/pthm-cable/grasp/timers"
)

// Handle identifies one in-flight scan request. The zero Handle is invalid.
type Handle uint64

// Valid reports whether the handle was issued by a backend.
func (h Handle) Valid() bool {
	return h != 0
}

// Request configures one scan.
type Request struct {
	Actor      ActorInfo
	Tag        string
	MaxResults int
}

// Result is one scan hit, ordered best first within a callback.
type Result struct {
	Target   ecs.Entity
	Score    float64
	Distance float64
}

// Callback receives the outcome of a scan.
type Callback func(h Handle, tag string, results []Result)

// Backend executes scans asynchronously.
//
// Callbacks are delivered on a later update, never from within Submit.
// Cancelled requests never call back.
type Backend interface {
	Submit(req Request, cb Callback) (Handle, error)
	Cancel(h Handle)

	// Resolve returns a fresh view of target, or false if its owner is gone,
	// pending kill, or torn off.
	Resolve(target ecs.Entity) (Graspable, bool)
}

// Scheduler arms one-shot delayed callbacks on the update loop.
type Scheduler interface {
	Now() time.Duration
	SetTimer(delay time.Duration, fn func()) timers.Handle
	SetTimerForNextTick(fn func()) timers.Handle
	Clear(h timers.Handle)
}

// Abilities is the ability system the Coordinator grants into.
type Abilities interface {
	Give(actor ecs.Entity, spec ability.Spec) (ability.Handle, error)
	Clear(actor ecs.Entity, h ability.Handle) bool
}
