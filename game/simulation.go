package game

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/grasp/prefabs"
)

// arriveDistance is how close an actor must get to count a waypoint as reached.
const arriveDistance = 1.0

// runEvents fires level events scheduled for the current tick.
func (g *Game) runEvents() {
	for g.nextEvent < len(g.events) && g.events[g.nextEvent].Tick <= g.tick {
		ev := g.events[g.nextEvent]
		g.nextEvent++
		if err := g.applyEvent(ev); err != nil {
			g.logger.Warn("level event skipped", "tick", g.tick, "action", ev.Action, "target", ev.Target, "error", err)
			continue
		}
		g.logger.Debug("level event", "tick", g.tick, "action", ev.Action, "target", ev.Target)
	}
}

func (g *Game) applyEvent(ev prefabs.EventSpec) error {
	switch ev.Action {
	case prefabs.ActionPause:
		return g.SetPaused(ev.Target, true)
	case prefabs.ActionResume:
		return g.SetPaused(ev.Target, false)
	case prefabs.ActionRequestGrasp:
		return g.RequestGrasp(ev.Target)
	case prefabs.ActionDestroy:
		return g.DestroyActor(ev.Target)
	case prefabs.ActionKill:
		return g.SetGraspableDead(ev.Target, true)
	case prefabs.ActionRevive:
		return g.SetGraspableDead(ev.Target, false)
	}
	return nil
}

// updateMovement walks graspers along their waypoint loops.
func (g *Game) updateMovement() {
	dt := g.cfg.Physics.DT

	query := g.grasperFilter.Query()
	for query.Next() {
		pos, rot, grasper := query.Get()
		if len(grasper.Waypoints) == 0 || grasper.Speed <= 0 {
			continue
		}

		target := grasper.Waypoints[grasper.Next]
		delta := r3.Sub(target, pos.Vec())
		dist := r3.Norm(delta)
		step := grasper.Speed * dt

		if dist <= math.Max(step, arriveDistance) {
			pos.SetVec(target)
			grasper.Next = (grasper.Next + 1) % len(grasper.Waypoints)
			continue
		}

		pos.SetVec(r3.Add(pos.Vec(), r3.Scale(step/dist, delta)))
		if delta.X != 0 || delta.Y != 0 {
			rot.Heading = math.Atan2(delta.Y, delta.X)
		}
	}
}

// updateDeadScripts advances scripted vars and re-evaluates dead checks.
func (g *Game) updateDeadScripts() {
	dt := g.cfg.Physics.DT
	rates := g.varRates()

	query := g.boxFilter.Query()
	for query.Next() {
		e := query.Entity()
		_, box := query.Get()
		if box.DeadScript == nil {
			continue
		}
		for name, rate := range rates[g.names[e]] {
			if box.Vars == nil {
				box.Vars = make(map[string]float64)
			}
			box.Vars[name] += rate * dt
		}
		wasDead := box.ScriptDead
		if err := box.EvalDeadScript(); err != nil {
			g.logger.Warn("dead script failed", "name", g.names[e], "error", err)
			continue
		}
		if box.ScriptDead != wasDead {
			g.logger.Debug("graspable dead state changed", "name", g.names[e], "dead", box.ScriptDead, "tick", g.tick)
		}
	}
}

// varRates returns per-graspable var rates from the level.
func (g *Game) varRates() map[string]map[string]float64 {
	if g.rates == nil {
		g.rates = make(map[string]map[string]float64)
		for _, spec := range g.level.Graspables {
			if len(spec.VarRates) > 0 {
				g.rates[spec.Name] = spec.VarRates
			}
		}
	}
	return g.rates
}

// SetGraspableDead sets gameplay deadness on the named graspable.
func (g *Game) SetGraspableDead(name string, dead bool) error {
	e, ok := g.Entity(name)
	if !ok || !g.boxMap.HasAll(e) {
		return errUnknownGraspable(name)
	}
	g.boxMap.Get(e).Dead = dead
	return nil
}
