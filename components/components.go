// Package components defines ECS components for the grasp simulation.
package components

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/grasp/grasp"
)

// Actor holds the lifecycle flags every simulated actor carries.
type Actor struct {
	Name        string
	NetMode     grasp.NetMode
	PendingKill bool // destruction requested, removed at end of tick
	TornOff     bool // no longer replicated; treated as gone for targeting
}

// Valid reports whether the actor may still be targeted or scan.
func (a *Actor) Valid() bool {
	return a != nil && !a.PendingKill && !a.TornOff
}

// Grasper marks an actor that scans for graspables.
// It walks its waypoints in a loop so scan outcomes change over time.
type Grasper struct {
	Waypoints []r3.Vec
	Speed     float64 // world units per second
	Next      int     // index of the waypoint being walked to
}
