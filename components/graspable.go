package components

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/grasp/ability"
	"github.com/pthm-cable/grasp/collision"
	"github.com/pthm-cable/grasp/grasp"
	"github.com/pthm-cable/grasp/script"
)

// GraspableBox is placed on an interactable actor. It defines a point from which
// interaction can occur and is the shape the scan backend finds.
type GraspableBox struct {
	Data       *grasp.Data
	HalfExtent r3.Vec
	Body       collision.Body

	// Dead is set directly by gameplay, e.g. while a barrel explodes.
	Dead bool

	// DeadScript optionally decides deadness from Vars. The game evaluates it
	// once per tick into ScriptDead.
	DeadScript *script.Predicate
	Vars       map[string]float64
	ScriptDead bool

	TargetData []ability.TargetData
}

// NewGraspableBox creates a box with the graspable body defaults applied.
func NewGraspableBox(data *grasp.Data, halfExtent r3.Vec, settings collision.Settings) GraspableBox {
	body := collision.NewGraspableBody()
	collision.Apply(settings, &body)
	return GraspableBox{Data: data, HalfExtent: halfExtent, Body: body}
}

// GraspData returns the grasp configuration.
func (g *GraspableBox) GraspData() *grasp.Data {
	return g.Data
}

// GatherOptionalTargetData returns the payload configured on the box.
func (g *GraspableBox) GatherOptionalTargetData(*grasp.ActorInfo) []grasp.TargetData {
	if len(g.TargetData) == 0 {
		return nil
	}
	return append([]grasp.TargetData(nil), g.TargetData...)
}

// IsGraspableDead reports gameplay or scripted deadness.
func (g *GraspableBox) IsGraspableDead() bool {
	return g.Dead || g.ScriptDead
}

// GraspPoint returns the world point the grasp window is measured from.
func (g *GraspableBox) GraspPoint(pos Position) r3.Vec {
	p := pos.Vec()
	if g.Data != nil {
		p.Z += g.Data.HeightOffset
	}
	return p
}

// EvalDeadScript refreshes ScriptDead from the script, if any.
func (g *GraspableBox) EvalDeadScript() error {
	if g.DeadScript == nil {
		g.ScriptDead = false
		return nil
	}
	dead, err := g.DeadScript.Eval(g.Vars)
	if err != nil {
		return err
	}
	g.ScriptDead = dead
	return nil
}
