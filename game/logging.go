package game

import (
	"sort"

	"github.com/pthm-cable/grasp/grasp"
	"github.com/pthm-cable/grasp/telemetry"
)

// logWorldState logs each scanning actor's task state and grant.
func (g *Game) logWorldState() {
	names := make([]string, 0, len(g.tasks))
	tasks := make(map[string]*grasp.ScanTask, len(g.tasks))
	for e, t := range g.tasks {
		names = append(names, g.names[e])
		tasks[g.names[e]] = t
	}
	sort.Strings(names)

	for _, name := range names {
		t := tasks[name]
		holder, _ := g.Holder(name)
		reason, _ := t.WaitReason()
		g.logger.Info("grasper",
			"tick", g.tick,
			"name", name,
			"state", t.State().String(),
			"holder", holder,
			"abilities", len(g.Granted(name)),
			"wait_reason", reason,
		)
	}
}

// logLifetimes logs each live actor's lifetime grasp stats.
func (g *Game) logLifetimes() {
	type entry struct {
		name  string
		stats *telemetry.LifetimeStats
	}
	var entries []entry
	for e, name := range g.names {
		if stats := g.lifetimes.Get(e.ID()); stats != nil {
			entries = append(entries, entry{name, stats})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].name < entries[j].name })

	for _, en := range entries {
		g.logger.Info("actor lifetime",
			"name", en.name,
			"scans", en.stats.ScansIssued,
			"grants", en.stats.Grants,
			"revokes", en.stats.Revokes,
			"ticks_held", en.stats.TicksHeld,
			"longest_hold", en.stats.LongestHold,
			"distinct_held", en.stats.DistinctHeld,
		)
	}
}
