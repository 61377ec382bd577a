// Command tune searches scan parameters with CMA-ES, scoring each candidate by
// headless runs of a level.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gonum.org/v1/gonum/optimize"

	"github.com/pthm-cable/grasp/config"
)

func main() {
	configPath := flag.String("config", "", "Base config YAML file (empty = use defaults)")
	levelPath := flag.String("level", "", "Level YAML file (empty = embedded default)")
	maxTicks := flag.Int("max-ticks", 2400, "Simulation ticks per run")
	seeds := flag.Int("seeds", 3, "Number of seeds per evaluation")
	maxEvals := flag.Int("max-evals", 100, "Maximum number of evaluations")
	population := flag.Int("population", 0, "CMA-ES population size (0 = auto)")
	outputDir := flag.String("output", "", "Output directory for results")
	flag.Parse()

	if *outputDir == "" {
		log.Fatal("--output is required")
	}
	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		log.Fatalf("failed to create output directory: %v", err)
	}
	if err := config.Init(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	params := NewParamVector()
	evalSeeds := make([]int64, *seeds)
	for i := range evalSeeds {
		evalSeeds[i] = int64(i*1000 + 42)
	}
	evaluator := NewFitnessEvaluator(params, int32(*maxTicks), evalSeeds, config.Cfg(), *levelPath)

	elog, err := newEvalLog(filepath.Join(*outputDir, "tune_log.csv"), params, *maxEvals)
	if err != nil {
		log.Fatalf("failed to create log file: %v", err)
	}
	defer elog.Close()

	popSize := *population
	if popSize == 0 {
		popSize = 4 + 3*params.Dim()/2
	}

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			// Log clamped values; these are the values actually used.
			used := params.Clamp(params.Denormalize(x))
			fitness := evaluator.Evaluate(used)
			elog.Record(fitness, evaluator.LastQuality(), used)
			return fitness
		},
	}
	settings := &optimize.Settings{
		FuncEvaluations: *maxEvals,
		Concurrent:      0, // seeds already run in parallel
	}
	method := &optimize.CmaEsChol{InitStepSize: 0.3, Population: popSize}

	fmt.Printf("Tuning %d parameters with CMA-ES, population=%d, max_evals=%d\n", params.Dim(), popSize, *maxEvals)
	fmt.Printf("Seeds per evaluation: %d, ticks per run: %d\n", *seeds, *maxTicks)

	initX := params.Normalize(params.ExtractFromConfig(config.Cfg()))
	result, err := optimize.Minimize(problem, initX, settings, method)
	if err != nil {
		log.Printf("tuning ended: %v", err)
	}

	best := elog.best
	if best == nil && result != nil {
		best = params.Clamp(params.Denormalize(result.X))
	}
	if best == nil {
		log.Fatal("no evaluations completed")
	}

	fmt.Printf("\nTuning complete after %d evaluations in %s, best fitness %.4f\n",
		elog.count, formatDuration(time.Since(elog.start)), elog.bestFitness)
	for i, spec := range params.Specs {
		fmt.Printf("  %s (%s): %.6f\n", spec.Name, spec.Path, best[i])
	}

	if err := writeBestConfig(*configPath, filepath.Join(*outputDir, "best_config.yaml"), params, best); err != nil {
		log.Printf("failed to write best config: %v", err)
	}
}

// writeBestConfig applies values to a fresh copy of the base config and saves it.
func writeBestConfig(basePath, outPath string, params *ParamVector, values []float64) error {
	cfg, err := config.Load(basePath)
	if err != nil {
		return err
	}
	if err := params.ApplyToConfig(cfg, values); err != nil {
		return err
	}
	if err := cfg.WriteYAML(outPath); err != nil {
		return err
	}
	fmt.Printf("\nBest config saved to: %s\n", outPath)
	return nil
}

// evalLog writes one tune_log.csv row per evaluation and tracks the best.
type evalLog struct {
	f        *os.File
	w        *csv.Writer
	maxEvals int
	start    time.Time

	count       int
	bestFitness float64
	best        []float64
}

func newEvalLog(path string, params *ParamVector, maxEvals int) (*evalLog, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w := csv.NewWriter(f)
	header := []string{"eval", "fitness", "coverage", "scan_rate", "churn"}
	for _, spec := range params.Specs {
		header = append(header, spec.Name)
	}
	if err := w.Write(header); err != nil {
		f.Close()
		return nil, err
	}
	return &evalLog{f: f, w: w, maxEvals: maxEvals, start: time.Now(), bestFitness: 1e9}, nil
}

// Record logs an evaluation and prints progress.
func (l *evalLog) Record(fitness float64, q runQuality, values []float64) {
	l.count++
	if fitness < l.bestFitness {
		l.bestFitness = fitness
		l.best = append([]float64(nil), values...)
	}

	row := []string{
		strconv.Itoa(l.count),
		strconv.FormatFloat(fitness, 'f', 6, 64),
		strconv.FormatFloat(q.Coverage, 'f', 4, 64),
		strconv.FormatFloat(q.ScanRate, 'f', 4, 64),
		strconv.FormatFloat(q.Churn, 'f', 4, 64),
	}
	for _, v := range values {
		row = append(row, strconv.FormatFloat(v, 'f', 6, 64))
	}
	if err := l.w.Write(row); err != nil {
		log.Printf("failed to write log row: %v", err)
	}
	l.w.Flush()

	elapsed := time.Since(l.start)
	remaining := time.Duration(l.maxEvals-l.count) * (elapsed / time.Duration(l.count))
	fmt.Printf("Eval %d/%d: coverage=%.2f scans/s=%.1f churn/s=%.3f (best=%.4f) | elapsed: %s, ETA: %s\n",
		l.count, l.maxEvals, q.Coverage, q.ScanRate, q.Churn, l.bestFitness,
		formatDuration(elapsed), formatDuration(remaining))
}

// Close flushes and closes the log file.
func (l *evalLog) Close() error {
	l.w.Flush()
	if err := l.w.Error(); err != nil {
		l.f.Close()
		return err
	}
	return l.f.Close()
}

// formatDuration formats d as 1h02m03s, or 2m03s below an hour.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	s := (d % time.Minute) / time.Second
	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	return fmt.Sprintf("%dm%02ds", m, s)
}
