package grasp

import (
	"fmt"
	"math"

	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/grasp/ability"
)

// TargetData is optional payload passed to the granted ability.
type TargetData = ability.TargetData

// NetMode is the network role an actor runs under.
type NetMode uint8

const (
	NetStandalone NetMode = iota
	NetDedicatedServer
	NetListenServer
	NetClient
)

func (m NetMode) String() string {
	switch m {
	case NetStandalone:
		return "standalone"
	case NetDedicatedServer:
		return "dedicated_server"
	case NetListenServer:
		return "listen_server"
	case NetClient:
		return "client"
	default:
		return "unknown"
	}
}

// ParseNetMode parses a net mode name. The empty string is standalone.
func ParseNetMode(s string) (NetMode, error) {
	switch s {
	case "", "standalone":
		return NetStandalone, nil
	case "dedicated_server":
		return NetDedicatedServer, nil
	case "listen_server":
		return NetListenServer, nil
	case "client":
		return NetClient, nil
	}
	return 0, fmt.Errorf("grasp: unknown net mode %q", s)
}

// HasAuthority reports whether game-state-mutating logic may run under this mode.
func (m NetMode) HasAuthority() bool {
	return m != NetClient
}

// ActorInfo is the owning actor context a scan is built from.
type ActorInfo struct {
	Entity   ecs.Entity
	Location r3.Vec
	Forward  r3.Vec // Unit facing direction
	NetMode  NetMode
}

// Graspable is implemented by anything an actor can target and interact with,
// independent of the concrete component type behind it.
type Graspable interface {
	// GraspData returns the grasp configuration. Required.
	GraspData() *Data

	// GatherOptionalTargetData returns extra payload for the granted ability.
	GatherOptionalTargetData(info *ActorInfo) []TargetData

	// IsGraspableDead reports transient unavailability, e.g. a barrel that is
	// exploding or a pawn that is dying. Owner destruction is checked before this
	// is queried, so implementations need not check it.
	IsGraspableDead() bool
}

// GraspableDefaults supplies the default optional behaviour.
// Embed it in a graspable to only implement GraspData.
type GraspableDefaults struct{}

func (GraspableDefaults) GatherOptionalTargetData(*ActorInfo) []TargetData { return nil }

func (GraspableDefaults) IsGraspableDead() bool { return false }

func cosDegrees(deg float64) float64 {
	return math.Cos(deg * math.Pi / 180)
}
