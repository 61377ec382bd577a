package game

import (
	"fmt"

	"github.com/pthm-cable/grasp/prefabs"
	"github.com/pthm-cable/grasp/script"
)

// Reload applies changed graspable data and dead scripts from lvl to the
// running level. Placements, actors, and events are not reloaded.
// Nothing is applied if any script fails to compile.
func (g *Game) Reload(lvl *prefabs.Level) error {
	scripts := make(map[string]*script.Predicate, len(lvl.Graspables))
	for _, spec := range lvl.Graspables {
		pred, err := lvl.CompileDeadScript(spec)
		if err != nil {
			return fmt.Errorf("game: reload graspable %q: %w", spec.Name, err)
		}
		scripts[spec.Name] = pred
	}

	// Data is updated in place so every box sharing it sees the change.
	for _, d := range lvl.Data {
		if existing, ok := g.data[d.Name]; ok {
			*existing = d
			continue
		}
		added := d
		g.data[d.Name] = &added
	}

	updated := 0
	for _, spec := range lvl.Graspables {
		e, ok := g.Entity(spec.Name)
		if !ok || !g.boxMap.HasAll(e) {
			continue
		}
		box := g.boxMap.Get(e)
		box.Data = g.data[spec.Data]
		box.DeadScript = scripts[spec.Name]
		box.TargetData = spec.AbilityTargetData()
		for name, v := range spec.Vars {
			if _, ok := box.Vars[name]; !ok {
				if box.Vars == nil {
					box.Vars = make(map[string]float64)
				}
				box.Vars[name] = v
			}
		}
		updated++
	}

	g.level = lvl
	g.rates = nil
	g.logger.Info("level reloaded", "level", lvl.Name, "data", len(lvl.Data), "graspables", updated, "tick", g.tick)
	return nil
}
