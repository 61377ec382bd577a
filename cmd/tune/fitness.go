package main

import (
	"log/slog"
	"math"
	"sync"

	"github.com/pthm-cable/grasp/config"
	"github.com/pthm-cable/grasp/game"
	"github.com/pthm-cable/grasp/prefabs"
	"github.com/pthm-cable/grasp/telemetry"
)

// FitnessEvaluator runs headless simulations and computes fitness.
type FitnessEvaluator struct {
	params      *ParamVector
	maxTicks    int32
	seeds       []int64
	baseConfig  *config.Config
	levelPath   string
	statsWindow float64

	mu          sync.Mutex
	bestFitness float64
	lastQuality runQuality // from most recent Evaluate call
}

// NewFitnessEvaluator creates a new evaluator.
func NewFitnessEvaluator(params *ParamVector, maxTicks int32, seeds []int64, baseCfg *config.Config, levelPath string) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:      params,
		maxTicks:    maxTicks,
		seeds:       seeds,
		baseConfig:  baseCfg,
		levelPath:   levelPath,
		statsWindow: 5.0,
		bestFitness: math.Inf(1),
	}
}

// LastQuality returns the averaged run quality from the most recent evaluation.
func (fe *FitnessEvaluator) LastQuality() runQuality {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastQuality
}

// Fitness weights. Coverage is rewarded; scan load and grant churn are charged
// per grasper-second.
const (
	scanCostWeight  = 0.01
	churnCostWeight = 0.05

	qualityWarmupWindows = 1 // skip first N windows while actors settle
)

// runQuality summarises one run's stats windows.
type runQuality struct {
	Coverage float64 // mean fraction of graspers holding a grant
	ScanRate float64 // scans issued per grasper-second
	Churn    float64 // grants plus revokes per grasper-second
}

func (q runQuality) fitness() float64 {
	return -q.Coverage + scanCostWeight*q.ScanRate + churnCostWeight*q.Churn
}

// Evaluate computes fitness for a parameter vector (lower = better).
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	results := make([]runQuality, len(fe.seeds))
	var wg sync.WaitGroup

	for i, seed := range fe.seeds {
		wg.Add(1)
		go func(idx int, s int64) {
			defer wg.Done()
			results[idx] = fe.runSimulation(x, s)
		}(i, seed)
	}
	wg.Wait()

	var avg runQuality
	var totalFitness float64
	for _, r := range results {
		totalFitness += r.fitness()
		avg.Coverage += r.Coverage
		avg.ScanRate += r.ScanRate
		avg.Churn += r.Churn
	}
	n := float64(len(fe.seeds))
	avg.Coverage /= n
	avg.ScanRate /= n
	avg.Churn /= n
	avgFitness := totalFitness / n

	fe.mu.Lock()
	if avgFitness < fe.bestFitness {
		fe.bestFitness = avgFitness
	}
	fe.lastQuality = avg
	fe.mu.Unlock()

	return avgFitness
}

// runSimulation executes a single headless run. Runs that fail to start
// score as the worst possible quality.
func (fe *FitnessEvaluator) runSimulation(x []float64, seed int64) runQuality {
	worst := runQuality{ScanRate: math.MaxFloat32}

	cfg := fe.copyConfig()
	if err := fe.params.ApplyToConfig(cfg, x); err != nil {
		return worst
	}
	cfg.Telemetry.StatsWindow = fe.statsWindow

	// Each run parses its own level so concurrent runs share no data assets.
	lvl, err := prefabs.LoadLevel(fe.levelPath)
	if err != nil {
		return worst
	}

	var windows []telemetry.WindowStats
	g, err := game.NewGameWithOptions(game.Options{
		Config: cfg,
		Level:  lvl,
		Seed:   seed,
		Logger: slog.New(slog.DiscardHandler),
		StatsCallback: func(stats telemetry.WindowStats) {
			windows = append(windows, stats)
		},
	})
	if err != nil {
		return worst
	}
	defer g.Unload()

	for g.Tick() < fe.maxTicks {
		g.UpdateHeadless()
	}
	return computeQuality(windows, fe.statsWindow)
}

// copyConfig returns a copy of the base config.
func (fe *FitnessEvaluator) copyConfig() *config.Config {
	cfg := *fe.baseConfig
	cfg.Abilities.Catalog = append([]string(nil), fe.baseConfig.Abilities.Catalog...)
	return &cfg
}

// computeQuality averages per-window coverage, scan load, and churn.
func computeQuality(windows []telemetry.WindowStats, windowSec float64) runQuality {
	if len(windows) <= qualityWarmupWindows {
		return runQuality{}
	}

	var q runQuality
	count := 0
	for _, w := range windows[qualityWarmupWindows:] {
		if w.Graspers == 0 {
			continue
		}
		graspSec := float64(w.Graspers) * windowSec
		q.Coverage += float64(w.ActiveGrants) / float64(w.Graspers)
		q.ScanRate += float64(w.ScansIssued) / graspSec
		q.Churn += float64(w.Grants+w.Revokes) / graspSec
		count++
	}
	if count == 0 {
		return runQuality{}
	}
	n := float64(count)
	q.Coverage /= n
	q.ScanRate /= n
	q.Churn /= n
	return q
}
