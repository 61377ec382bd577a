package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pthm-cable/grasp/config"
	"github.com/pthm-cable/grasp/game"
	"github.com/pthm-cable/grasp/grasp"
	"github.com/pthm-cable/grasp/prefabs"
	"github.com/pthm-cable/grasp/telemetry"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	levelPath := flag.String("level", "", "Path to level YAML (empty = embedded default)")
	logStats := flag.Bool("log-stats", false, "Output window stats via slog")
	logLevel := flag.String("log-level", "info", "Log level: trace, debug, info, warn, error")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs and config snapshot")
	snapshotDir := flag.String("snapshot-dir", "", "Directory for bookmark snapshot files")
	seed := flag.Int64("seed", 0, "RNG seed (0 = time-based)")
	maxTicks := flag.Int("max-ticks", 0, "Stop after N ticks (0 = unlimited)")
	watch := flag.Bool("watch", false, "Reload graspable data when the level or its scripts change")

	flag.Parse()

	level, err := parseLevel(*logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	// Set up slog (JSON to stdout for structured logging)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// Initialize config before anything else
	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()

	lvl, err := prefabs.LoadLevel(*levelPath)
	if err != nil {
		slog.Error("failed to load level", "error", err)
		os.Exit(1)
	}

	rngSeed := *seed
	if rngSeed == 0 {
		rngSeed = time.Now().UnixNano()
	}

	run := telemetry.NewRunInfo(lvl.Name, rngSeed, int32(*maxTicks))

	g, err := game.NewGameWithOptions(game.Options{
		Config:      cfg,
		Level:       lvl,
		Seed:        rngSeed,
		LogStats:    *logStats,
		OutputDir:   *outputDir,
		SnapshotDir: *snapshotDir,
		Run:         run,
		Logger:      logger.With("run", run.ID),
	})
	if err != nil {
		slog.Error("failed to start game", "error", err)
		os.Exit(1)
	}
	defer g.Unload()

	var watcher *prefabs.Watcher
	if *watch {
		if *levelPath == "" {
			slog.Warn("watch ignored for the embedded level")
		} else if watcher, err = prefabs.NewWatcher(watchDirs(lvl, *levelPath)...); err != nil {
			slog.Error("failed to watch level", "error", err)
		} else {
			defer watcher.Close()
		}
	}

	slog.Info("starting headless simulation",
		"run", run.ID,
		"level", lvl.Name,
		"seed", rngSeed,
		"max_ticks", *maxTicks,
		"watch", watcher != nil,
	)

	for {
		if watcher != nil {
			drainWatcher(watcher, *levelPath, g)
		}

		g.UpdateHeadless()

		if *maxTicks > 0 && int(g.Tick()) >= *maxTicks {
			slog.Info("max ticks reached", "tick", g.Tick())
			return
		}
	}
}

// drainWatcher applies pending file changes without blocking the tick loop.
func drainWatcher(w *prefabs.Watcher, levelPath string, g *game.Game) {
	changed := false
	for {
		select {
		case name := <-w.Events:
			if prefabs.IsLevelFile(name) || prefabs.IsScriptFile(name) {
				changed = true
			}
			continue
		case err := <-w.Errors:
			slog.Warn("level watcher error", "error", err)
			continue
		default:
		}
		break
	}
	if !changed {
		return
	}

	lvl, err := prefabs.LoadLevel(levelPath)
	if err != nil {
		slog.Warn("level reload failed", "error", err)
		return
	}
	if err := g.Reload(lvl); err != nil {
		slog.Warn("level reload rejected", "error", err)
	}
}

// watchDirs returns the level's directory plus every directory holding one of
// its dead script files.
func watchDirs(lvl *prefabs.Level, levelPath string) []string {
	root := filepath.Dir(levelPath)
	dirs := []string{root}
	seen := map[string]bool{root: true}
	for _, g := range lvl.Graspables {
		if g.DeadScriptFile == "" {
			continue
		}
		dir := filepath.Join(root, filepath.Dir(filepath.FromSlash(g.DeadScriptFile)))
		if !seen[dir] {
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}
	return dirs
}

func parseLevel(s string) (slog.Level, error) {
	if strings.EqualFold(s, "trace") {
		return grasp.LevelTrace, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid -log-level %q: %w", s, err)
	}
	return level, nil
}
