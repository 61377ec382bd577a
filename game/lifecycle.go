package game

import (
	"fmt"
	"math"

	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/grasp/components"
	"github.com/pthm-cable/grasp/grasp"
	"github.com/pthm-cable/grasp/prefabs"
)

// spawnLevel creates the level's graspables and actors and starts scanning.
func (g *Game) spawnLevel(lvl *prefabs.Level) error {
	g.level = lvl
	g.data = lvl.DataByName()
	g.events = lvl.SortedEvents()
	g.nextEvent = 0

	if len(g.cfg.Abilities.Catalog) > 0 {
		known := make(map[string]bool, len(g.cfg.Abilities.Catalog))
		for _, name := range g.cfg.Abilities.Catalog {
			known[name] = true
		}
		for _, name := range lvl.Abilities() {
			if !known[name] {
				g.logger.Warn("level grants an ability outside the catalog", "level", lvl.Name, "ability", name)
			}
		}
	}

	for _, spec := range lvl.Graspables {
		if err := g.spawnGraspable(spec); err != nil {
			return err
		}
	}

	// Spawn every actor before starting tasks so first scans see the whole level.
	var graspers []ecs.Entity
	for _, spec := range lvl.Actors {
		e, err := g.spawnActor(spec)
		if err != nil {
			return err
		}
		graspers = append(graspers, e)
	}
	for _, e := range graspers {
		g.startTask(e)
	}

	g.logger.Info("level spawned",
		"level", lvl.Name,
		"graspables", len(lvl.Graspables),
		"actors", len(lvl.Actors),
		"events", len(g.events),
	)
	return nil
}

// spawnGraspable creates a graspable box entity.
func (g *Game) spawnGraspable(spec prefabs.GraspableSpec) error {
	data, ok := g.data[spec.Data]
	if !ok {
		return fmt.Errorf("game: graspable %q references unknown data %q", spec.Name, spec.Data)
	}
	pred, err := g.level.CompileDeadScript(spec)
	if err != nil {
		return fmt.Errorf("game: graspable %q: %w", spec.Name, err)
	}

	box := components.NewGraspableBox(data, spec.HalfExtent.Vec(), g.collision)
	box.DeadScript = pred
	box.Vars = copyVars(spec.Vars)
	box.TargetData = spec.AbilityTargetData()

	pos := components.Position{X: spec.Position.X, Y: spec.Position.Y, Z: spec.Position.Z}
	e := g.posMap.NewEntity(&pos)
	g.boxMap.Add(e, &box)
	g.actorMap.Add(e, &components.Actor{Name: spec.Name})
	g.register(spec.Name, e)
	return nil
}

// spawnActor creates a grasper actor entity.
func (g *Game) spawnActor(spec prefabs.ActorSpec) (ecs.Entity, error) {
	mode, err := grasp.ParseNetMode(spec.NetMode)
	if err != nil {
		return ecs.Entity{}, fmt.Errorf("game: actor %q: %w", spec.Name, err)
	}

	waypoints := make([]r3.Vec, len(spec.Waypoints))
	for i, wp := range spec.Waypoints {
		waypoints[i] = wp.Vec()
	}
	// Jitter speed so runs with different seeds diverge.
	speed := spec.Speed * (0.9 + 0.2*g.rng.Float64())

	pos := components.Position{X: spec.Position.X, Y: spec.Position.Y, Z: spec.Position.Z}
	e := g.posMap.NewEntity(&pos)
	g.rotMap.Add(e, &components.Rotation{Heading: spec.Heading * math.Pi / 180})
	g.actorMap.Add(e, &components.Actor{Name: spec.Name, NetMode: mode})
	g.grasperMap.Add(e, &components.Grasper{Waypoints: waypoints, Speed: speed})
	g.register(spec.Name, e)
	g.lifetimes.Register(e.ID(), g.tick)
	return e, nil
}

// startTask creates and activates the scan task for actor e.
func (g *Game) startTask(e ecs.Entity) {
	name := g.names[e]
	task := grasp.GraspScan(e, g.actorSource(e), g.coordinator, g.targeting, g.timers, grasp.ScanOptions{
		ErrorWaitDelay:    g.cfg.Derived.ErrorWaitDelay,
		MinRescanInterval: g.cfg.Derived.MinRescanInterval,
		Tag:               g.cfg.Scan.Tag,
		MaxResults:        g.cfg.Targeting.MaxResults,
		Logger:            g.logger.With("name", name),
		Observer:          g.onTaskEvent,
		OnCompleted: func() {
			g.logger.Info("scan task ended without running", "name", name)
			delete(g.tasks, e)
		},
	})
	g.tasks[e] = task
	task.Activate()
}

// actorSource reads e's current actor context from the world.
func (g *Game) actorSource(e ecs.Entity) grasp.ActorSource {
	return func() (*grasp.ActorInfo, bool) {
		if !g.world.Alive(e) || !g.actorMap.HasAll(e) || !g.posMap.HasAll(e) {
			return nil, false
		}
		actor := g.actorMap.Get(e)
		if !actor.Valid() {
			return nil, false
		}
		info := &grasp.ActorInfo{
			Entity:   e,
			Location: g.posMap.Get(e).Vec(),
			NetMode:  actor.NetMode,
		}
		if g.rotMap.HasAll(e) {
			info.Forward = g.rotMap.Get(e).Forward()
		}
		return info, true
	}
}

// DestroyActor ends the named actor's scan task, clears its grants, and marks
// it for removal at the end of the tick.
func (g *Game) DestroyActor(name string) error {
	e, ok := g.Entity(name)
	if !ok {
		return errUnknownActor(name)
	}
	if task, ok := g.tasks[e]; ok {
		task.OnDestroy(true)
		delete(g.tasks, e)
	}
	g.coordinator.RemoveAll(e)
	g.actorMap.Get(e).PendingKill = true
	return nil
}

// cleanupDestroyed removes entities marked pending kill.
func (g *Game) cleanupDestroyed() {
	// First pass: collect (must complete before modifying)
	var toRemove []ecs.Entity
	query := g.actorFilter.Query()
	for query.Next() {
		if query.Get().PendingKill {
			toRemove = append(toRemove, query.Entity())
		}
	}

	for _, e := range toRemove {
		if task, ok := g.tasks[e]; ok {
			task.OnDestroy(true)
			delete(g.tasks, e)
		}
		g.coordinator.RemoveAll(e)
		g.coordinator.SetPaused(e, false)
		g.world.RemoveEntity(e)
		if stats := g.lifetimes.Remove(e.ID()); stats != nil {
			g.logger.Debug("actor removed", "name", g.names[e], "tick", g.tick, "lifetime", stats)
		} else {
			g.logger.Debug("entity removed", "name", g.names[e], "tick", g.tick)
		}
		delete(g.names, e)
	}
}

func (g *Game) register(name string, e ecs.Entity) {
	g.entities[name] = e
	g.names[e] = name
}

func copyVars(vars map[string]float64) map[string]float64 {
	if vars == nil {
		return nil
	}
	out := make(map[string]float64, len(vars))
	for k, v := range vars {
		out[k] = v
	}
	return out
}
