package game

import (
	"sort"

	"github.com/pthm-cable/grasp/telemetry"
)

// saveSnapshot creates and saves a snapshot to disk.
func (g *Game) saveSnapshot(bookmark *telemetry.Bookmark) {
	snapshot := g.createSnapshot(bookmark)

	path, err := telemetry.SaveSnapshot(snapshot, g.snapshotDir)
	if err != nil {
		g.logger.Error("failed to save snapshot", "error", err)
		return
	}

	g.logger.Info("snapshot saved", "path", path, "tick", g.tick)
}

// createSnapshot builds a snapshot from the current state.
func (g *Game) createSnapshot(bookmark *telemetry.Bookmark) *telemetry.Snapshot {
	snapshot := &telemetry.Snapshot{
		Version:  telemetry.SnapshotVersion,
		RunID:    g.runID,
		Level:    g.level.Name,
		RNGSeed:  g.seed,
		Tick:     g.tick,
		Bookmark: bookmark,
	}

	query := g.grasperFilter.Query()
	for query.Next() {
		e := query.Entity()
		pos, rot, _ := query.Get()
		name := g.names[e]

		state := telemetry.ActorState{
			ID:       e.ID(),
			Name:     name,
			X:        pos.X,
			Y:        pos.Y,
			Z:        pos.Z,
			Heading:  rot.Heading,
			Paused:   g.coordinator.IsPaused(e),
			State:    "none",
			Lifetime: g.lifetimes.Get(e.ID()),
		}
		if g.actorMap.HasAll(e) {
			state.NetMode = g.actorMap.Get(e).NetMode.String()
		}
		if task, ok := g.tasks[e]; ok {
			state.State = task.State().String()
			state.WaitReason, _ = task.WaitReason()
		}
		if holder, ok := g.Holder(name); ok {
			state.Holder = holder
		}
		for _, spec := range g.registry.Granted(e) {
			state.Abilities = append(state.Abilities, spec.Name)
		}
		snapshot.Actors = append(snapshot.Actors, state)
	}

	boxes := g.boxFilter.Query()
	for boxes.Next() {
		e := boxes.Entity()
		pos, box := boxes.Get()
		state := telemetry.GraspableState{
			ID:   e.ID(),
			Name: g.names[e],
			X:    pos.X,
			Y:    pos.Y,
			Z:    pos.Z,
			Dead: box.IsGraspableDead(),
			Vars: copyVars(box.Vars),
		}
		if box.Data != nil {
			state.Data = box.Data.Name
		}
		snapshot.Graspables = append(snapshot.Graspables, state)
	}

	sort.Slice(snapshot.Actors, func(i, j int) bool { return snapshot.Actors[i].Name < snapshot.Actors[j].Name })
	sort.Slice(snapshot.Graspables, func(i, j int) bool { return snapshot.Graspables[i].Name < snapshot.Graspables[j].Name })

	return snapshot
}
