package telemetry

import (
	"log/slog"
	"time"
)

// Phase is one timed section of a simulation tick.
type Phase uint8

// Phases in tick order.
const (
	PhaseEvents Phase = iota
	PhaseMovement
	PhaseScripts
	PhaseTargeting
	PhaseTimers
	PhaseCleanup
	PhaseTelemetry
	numPhases
)

var phaseNames = [numPhases]string{
	"events", "movement", "scripts", "targeting", "timers", "cleanup", "telemetry",
}

func (p Phase) String() string {
	if p >= numPhases {
		return "unknown"
	}
	return phaseNames[p]
}

// PhaseTimes holds one duration per phase.
type PhaseTimes [numPhases]time.Duration

// Clock supplies the wall time phases are measured with.
type Clock interface {
	Now() time.Time
}

// RealClock reads time.Now.
type RealClock struct{}

// Now returns the current time.
func (RealClock) Now() time.Time {
	return time.Now()
}

// PerfCollector times tick phases over a ring of the most recent ticks.
type PerfCollector struct {
	clock Clock
	ring  []perfSample
	next  int
	count int

	current    perfSample
	tickStart  time.Time
	phaseStart time.Time
	phase      Phase
	inPhase    bool
}

type perfSample struct {
	total  time.Duration
	phases PhaseTimes
}

// NewPerfCollector creates a collector averaging over window ticks.
func NewPerfCollector(window int) *PerfCollector {
	return NewPerfCollectorWithClock(window, RealClock{})
}

// NewPerfCollectorWithClock creates a collector that reads time from clock.
func NewPerfCollectorWithClock(window int, clock Clock) *PerfCollector {
	if window < 1 {
		window = 60
	}
	if clock == nil {
		clock = RealClock{}
	}
	return &PerfCollector{clock: clock, ring: make([]perfSample, window)}
}

// StartTick begins timing a new simulation tick.
func (p *PerfCollector) StartTick() {
	p.tickStart = p.clock.Now()
	p.current = perfSample{}
	p.inPhase = false
}

// StartPhase ends the running phase, if any, and starts timing phase.
func (p *PerfCollector) StartPhase(phase Phase) {
	now := p.clock.Now()
	p.endPhase(now)
	p.phase = phase
	p.phaseStart = now
	p.inPhase = true
}

func (p *PerfCollector) endPhase(now time.Time) {
	if p.inPhase && p.phase < numPhases {
		p.current.phases[p.phase] += now.Sub(p.phaseStart)
	}
	p.inPhase = false
}

// EndTick finishes the current tick and records it.
func (p *PerfCollector) EndTick() {
	now := p.clock.Now()
	p.endPhase(now)
	p.current.total = now.Sub(p.tickStart)

	p.ring[p.next] = p.current
	p.next = (p.next + 1) % len(p.ring)
	if p.count < len(p.ring) {
		p.count++
	}
}

// PerfStats aggregates the collector's window.
type PerfStats struct {
	AvgTickDuration time.Duration
	MinTickDuration time.Duration
	MaxTickDuration time.Duration
	TicksPerSecond  float64

	PhaseAvg PhaseTimes
	PhasePct [numPhases]float64 // share of the average tick
}

// Stats aggregates the ticks currently in the window.
func (p *PerfCollector) Stats() PerfStats {
	var s PerfStats
	if p.count == 0 {
		return s
	}

	var total time.Duration
	var sums PhaseTimes
	for i, sample := range p.ring[:p.count] {
		total += sample.total
		if i == 0 || sample.total < s.MinTickDuration {
			s.MinTickDuration = sample.total
		}
		if sample.total > s.MaxTickDuration {
			s.MaxTickDuration = sample.total
		}
		for ph, d := range sample.phases {
			sums[ph] += d
		}
	}

	n := time.Duration(p.count)
	s.AvgTickDuration = total / n
	for ph := range sums {
		s.PhaseAvg[ph] = sums[ph] / n
		if s.AvgTickDuration > 0 {
			s.PhasePct[ph] = 100 * float64(s.PhaseAvg[ph]) / float64(s.AvgTickDuration)
		}
	}
	if s.AvgTickDuration > 0 {
		s.TicksPerSecond = float64(time.Second) / float64(s.AvgTickDuration)
	}
	return s
}

// LogStats logs the window using logger. Phases under 0.1% are omitted.
func (s PerfStats) LogStats(logger *slog.Logger) {
	attrs := []any{
		"avg_tick_us", s.AvgTickDuration.Microseconds(),
		"min_tick_us", s.MinTickDuration.Microseconds(),
		"max_tick_us", s.MaxTickDuration.Microseconds(),
		"ticks_per_sec", int(s.TicksPerSecond),
	}
	for ph, pct := range s.PhasePct {
		if pct > 0.1 {
			attrs = append(attrs, Phase(ph).String()+"_pct", float64(int(pct*10))/10)
		}
	}
	logger.Info("perf", attrs...)
}

// PerfStatsCSV is one perf.csv row.
type PerfStatsCSV struct {
	WindowEnd    int32   `csv:"window_end"`
	AvgTickUS    int64   `csv:"avg_tick_us"`
	MinTickUS    int64   `csv:"min_tick_us"`
	MaxTickUS    int64   `csv:"max_tick_us"`
	TicksPerSec  float64 `csv:"ticks_per_sec"`
	EventsPct    float64 `csv:"events_pct"`
	MovementPct  float64 `csv:"movement_pct"`
	ScriptsPct   float64 `csv:"scripts_pct"`
	TargetingPct float64 `csv:"targeting_pct"`
	TimersPct    float64 `csv:"timers_pct"`
	CleanupPct   float64 `csv:"cleanup_pct"`
	TelemetryPct float64 `csv:"telemetry_pct"`
}

// ToCSV flattens s into a row for the window ending at windowEnd.
func (s PerfStats) ToCSV(windowEnd int32) PerfStatsCSV {
	return PerfStatsCSV{
		WindowEnd:    windowEnd,
		AvgTickUS:    s.AvgTickDuration.Microseconds(),
		MinTickUS:    s.MinTickDuration.Microseconds(),
		MaxTickUS:    s.MaxTickDuration.Microseconds(),
		TicksPerSec:  s.TicksPerSecond,
		EventsPct:    s.PhasePct[PhaseEvents],
		MovementPct:  s.PhasePct[PhaseMovement],
		ScriptsPct:   s.PhasePct[PhaseScripts],
		TargetingPct: s.PhasePct[PhaseTargeting],
		TimersPct:    s.PhasePct[PhaseTimers],
		CleanupPct:   s.PhasePct[PhaseCleanup],
		TelemetryPct: s.PhasePct[PhaseTelemetry],
	}
}
