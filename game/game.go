// Package game is the headless driver: it owns the ECS world and runs scan
// tasks, the scan backend, timers, and telemetry once per tick.
package game

import (
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/grasp/ability"
	"github.com/pthm-cable/grasp/collision"
	"github.com/pthm-cable/grasp/components"
	"github.com/pthm-cable/grasp/config"
	"github.com/pthm-cable/grasp/grasp"
	"github.com/pthm-cable/grasp/prefabs"
	"github.com/pthm-cable/grasp/targeting"
	"github.com/pthm-cable/grasp/telemetry"
	"github.com/pthm-cable/grasp/timers"
)

// Options configures a game.
type Options struct {
	Config    *config.Config // nil uses config.Cfg()
	Level     *prefabs.Level // nil loads the embedded default level
	Seed      int64
	LogStats  bool
	OutputDir string

	// SnapshotDir, if set, receives a grasp state snapshot per bookmark.
	SnapshotDir string
	Run         telemetry.RunInfo
	Logger      *slog.Logger

	// StatsCallback, if set, receives every flushed stats window.
	StatsCallback func(telemetry.WindowStats)
}

// Game holds the complete simulation state.
type Game struct {
	cfg    *config.Config
	world  *ecs.World
	rng    *rand.Rand
	seed   int64
	runID  string
	logger *slog.Logger

	// Component mappers
	posMap     *ecs.Map1[components.Position]
	rotMap     *ecs.Map1[components.Rotation]
	actorMap   *ecs.Map1[components.Actor]
	grasperMap *ecs.Map1[components.Grasper]
	boxMap     *ecs.Map1[components.GraspableBox]

	grasperFilter *ecs.Filter3[components.Position, components.Rotation, components.Grasper]
	boxFilter     *ecs.Filter2[components.Position, components.GraspableBox]
	actorFilter   *ecs.Filter1[components.Actor]

	// Grasp subsystems
	timers      *timers.Manager
	targeting   *targeting.Subsystem
	registry    *ability.Registry
	coordinator *grasp.Coordinator
	collision   collision.Settings
	tasks       map[ecs.Entity]*grasp.ScanTask

	// Level state
	level     *prefabs.Level
	data      map[string]*grasp.Data
	entities  map[string]ecs.Entity
	names     map[ecs.Entity]string
	events    []prefabs.EventSpec
	nextEvent int
	rates     map[string]map[string]float64 // var rates by graspable name

	// Telemetry
	collector        *telemetry.Collector
	bookmarkDetector *telemetry.BookmarkDetector
	lifetimes        *telemetry.LifetimeTracker
	snapshotDir      string
	perfCollector    *telemetry.PerfCollector
	outputManager    *telemetry.OutputManager
	pending          []telemetry.Event
	logStats         bool
	statsCallback    func(telemetry.WindowStats)

	tick int32
}

// NewGameWithOptions creates a game and spawns the level.
func NewGameWithOptions(opts Options) (*Game, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Cfg()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	lvl := opts.Level
	if lvl == nil {
		var err error
		if lvl, err = prefabs.LoadLevel(""); err != nil {
			return nil, err
		}
	}

	settings, err := collision.SettingsFromConfig(cfg.Collision)
	if err != nil {
		return nil, fmt.Errorf("game: %w", err)
	}

	world := ecs.NewWorld()
	tm := timers.NewManager()
	registry := ability.NewRegistry(cfg.Abilities.Catalog)

	g := &Game{
		cfg:    cfg,
		world:  world,
		rng:    rand.New(rand.NewSource(opts.Seed)),
		seed:   opts.Seed,
		runID:  opts.Run.ID,
		logger: logger,

		posMap:     ecs.NewMap1[components.Position](world),
		rotMap:     ecs.NewMap1[components.Rotation](world),
		actorMap:   ecs.NewMap1[components.Actor](world),
		grasperMap: ecs.NewMap1[components.Grasper](world),
		boxMap:     ecs.NewMap1[components.GraspableBox](world),

		grasperFilter: ecs.NewFilter3[components.Position, components.Rotation, components.Grasper](world),
		boxFilter:     ecs.NewFilter2[components.Position, components.GraspableBox](world),
		actorFilter:   ecs.NewFilter1[components.Actor](world),

		timers:      tm,
		targeting:   targeting.NewSubsystem(world, cfg, logger),
		registry:    registry,
		coordinator: grasp.NewCoordinator(registry, logger),
		collision:   settings,
		tasks:       make(map[ecs.Entity]*grasp.ScanTask),

		entities: make(map[string]ecs.Entity),
		names:    make(map[ecs.Entity]string),

		collector:        telemetry.NewCollector(cfg.Telemetry.StatsWindow, cfg.Physics.DT),
		bookmarkDetector: telemetry.NewBookmarkDetector(cfg.Telemetry.BookmarkHistorySize, cfg.Bookmarks),
		lifetimes:        telemetry.NewLifetimeTracker(),
		snapshotDir:      opts.SnapshotDir,
		perfCollector:    telemetry.NewPerfCollector(cfg.Telemetry.PerfWindow),
		logStats:         opts.LogStats,
		statsCallback:    opts.StatsCallback,
	}
	g.coordinator.SetObserver(g.onGrantChange)

	om, err := telemetry.NewOutputManager(opts.OutputDir)
	if err != nil {
		return nil, err
	}
	g.outputManager = om
	if err := om.WriteConfig(cfg); err != nil {
		logger.Error("failed to write config", "error", err)
	}
	if opts.Run.ID != "" {
		if err := om.WriteRun(opts.Run); err != nil {
			logger.Error("failed to write run info", "error", err)
		}
	}

	if err := g.spawnLevel(lvl); err != nil {
		_ = om.Close()
		return nil, err
	}
	return g, nil
}

// UpdateHeadless runs one simulation tick.
func (g *Game) UpdateHeadless() {
	g.perfCollector.StartTick()

	g.perfCollector.StartPhase(telemetry.PhaseEvents)
	g.runEvents()

	g.perfCollector.StartPhase(telemetry.PhaseMovement)
	g.updateMovement()

	g.perfCollector.StartPhase(telemetry.PhaseScripts)
	g.updateDeadScripts()

	g.perfCollector.StartPhase(telemetry.PhaseTargeting)
	g.targeting.Update()

	g.perfCollector.StartPhase(telemetry.PhaseTimers)
	g.timers.Advance(g.cfg.Derived.TickDuration)

	g.perfCollector.StartPhase(telemetry.PhaseCleanup)
	g.cleanupDestroyed()

	g.tick++

	g.perfCollector.StartPhase(telemetry.PhaseTelemetry)
	g.flushTelemetry()

	g.perfCollector.EndTick()
}

// Tick returns the number of completed ticks.
func (g *Game) Tick() int32 {
	return g.tick
}

// Entity returns the entity spawned for a level name.
func (g *Game) Entity(name string) (ecs.Entity, bool) {
	e, ok := g.entities[name]
	return e, ok && g.world.Alive(e)
}

// Task returns the scan task of the named actor.
func (g *Game) Task(name string) *grasp.ScanTask {
	e, ok := g.entities[name]
	if !ok {
		return nil
	}
	return g.tasks[e]
}

// Holder returns the name of the graspable the named actor currently holds.
func (g *Game) Holder(name string) (string, bool) {
	e, ok := g.entities[name]
	if !ok {
		return "", false
	}
	grant, ok := g.coordinator.CurrentHolder(e)
	if !ok {
		return "", false
	}
	return g.names[grant.Target], true
}

// Granted returns the abilities the named actor currently owns.
func (g *Game) Granted(name string) []ability.Spec {
	e, ok := g.entities[name]
	if !ok {
		return nil
	}
	return g.registry.Granted(e)
}

// SetPaused pauses or resumes scanning for the named actor.
func (g *Game) SetPaused(name string, paused bool) error {
	e, ok := g.Entity(name)
	if !ok {
		return errUnknownActor(name)
	}
	g.coordinator.SetPaused(e, paused)
	return nil
}

// RequestGrasp clears the named actor's grant and forces its scan task to scan again.
func (g *Game) RequestGrasp(name string) error {
	e, ok := g.Entity(name)
	if !ok {
		return errUnknownActor(name)
	}
	g.coordinator.RemoveAll(e)
	return nil
}

// Unload ends every task and closes output files.
func (g *Game) Unload() {
	for e, task := range g.tasks {
		task.OnDestroy(false)
		g.coordinator.RemoveAll(e)
	}
	g.flushEvents()
	if g.logStats {
		g.logLifetimes()
	}
	if err := g.outputManager.Close(); err != nil {
		g.logger.Error("failed to close output", "error", err)
	}
}
