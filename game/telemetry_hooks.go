package game

import (
	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/grasp/grasp"
	"github.com/pthm-cable/grasp/telemetry"
)

// onTaskEvent records a scan task event.
func (g *Game) onTaskEvent(ev grasp.TaskEvent) {
	g.record(telemetry.NewTaskEvent(g.tick, ev))
}

// onGrantChange records a coordinator grant change.
func (g *Game) onGrantChange(c grasp.Change) {
	g.logger.Debug("grant changed",
		"kind", c.Kind.String(),
		"actor", g.names[c.Actor],
		"target", g.names[c.Target],
		"ability", c.Ability,
		"tick", g.tick,
	)
	g.record(telemetry.NewChangeEvent(g.tick, c))
}

func (g *Game) record(ev telemetry.Event) {
	g.collector.Record(ev)
	g.lifetimes.Record(ev)
	if g.outputManager != nil {
		g.pending = append(g.pending, ev)
	}
}

// flushEvents writes buffered events to events.csv.
func (g *Game) flushEvents() {
	if err := g.outputManager.WriteEvents(g.pending); err != nil {
		g.logger.Error("failed to write events", "error", err)
	}
	g.pending = g.pending[:0]
}

// flushTelemetry writes events every tick and window stats when a window ends.
func (g *Game) flushTelemetry() {
	g.flushEvents()

	if !g.collector.ShouldFlush(g.tick) {
		return
	}

	graspers := countIf(g.tasks, func(_ ecs.Entity, t *grasp.ScanTask) bool {
		return t.State() != grasp.StateTerminated
	})
	grants := countIf(g.tasks, func(e ecs.Entity, _ *grasp.ScanTask) bool {
		_, ok := g.coordinator.CurrentHolder(e)
		return ok
	})
	paused := countIf(g.tasks, func(e ecs.Entity, _ *grasp.ScanTask) bool {
		return g.coordinator.IsPaused(e)
	})

	stats := g.collector.Flush(g.tick, graspers, grants, paused)
	perfStats := g.perfCollector.Stats()

	if g.statsCallback != nil {
		g.statsCallback(stats)
	}

	if g.logStats {
		stats.LogStats(g.logger)
		perfStats.LogStats(g.logger)
		g.logWorldState()
	}

	if g.outputManager != nil {
		if err := g.outputManager.WriteTelemetry(stats); err != nil {
			g.logger.Error("failed to write telemetry", "error", err)
		}
		if err := g.outputManager.WritePerf(perfStats, stats.WindowEndTick); err != nil {
			g.logger.Error("failed to write perf", "error", err)
		}
	}

	for _, bm := range g.bookmarkDetector.Check(stats) {
		if g.logStats {
			bm.LogBookmark(g.logger)
		}
		if err := g.outputManager.WriteBookmark(bm); err != nil {
			g.logger.Error("failed to write bookmark", "error", err)
		}
		if g.snapshotDir != "" {
			g.saveSnapshot(&bm)
		}
	}
}
