package telemetry

import (
	"testing"
	"time"
)

// mockClock only moves when advanced.
type mockClock struct {
	now time.Time
}

func (c *mockClock) Now() time.Time { return c.now }

func (c *mockClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// runTicks times n ticks, spending the given duration in each listed phase.
func runTicks(pc *PerfCollector, clock *mockClock, n int, phases map[Phase]time.Duration) {
	for i := 0; i < n; i++ {
		pc.StartTick()
		for ph := PhaseEvents; ph < numPhases; ph++ {
			d, ok := phases[ph]
			if !ok {
				continue
			}
			pc.StartPhase(ph)
			clock.Advance(d)
		}
		pc.EndTick()
	}
}

func TestPerfCollectorTracksPhases(t *testing.T) {
	clock := &mockClock{now: time.Unix(0, 0)}
	pc := NewPerfCollectorWithClock(10, clock)
	runTicks(pc, clock, 5, map[Phase]time.Duration{
		PhaseTargeting: 100 * time.Microsecond,
		PhaseTimers:    300 * time.Microsecond,
	})

	stats := pc.Stats()
	if stats.AvgTickDuration != 400*time.Microsecond {
		t.Errorf("AvgTickDuration = %v, want 400µs", stats.AvgTickDuration)
	}
	if stats.MinTickDuration != stats.MaxTickDuration || stats.MinTickDuration != stats.AvgTickDuration {
		t.Errorf("min/avg/max = %v %v %v, want equal", stats.MinTickDuration, stats.AvgTickDuration, stats.MaxTickDuration)
	}
	if stats.TicksPerSecond != 2500 {
		t.Errorf("TicksPerSecond = %v, want 2500", stats.TicksPerSecond)
	}
	if stats.PhaseAvg[PhaseTargeting] != 100*time.Microsecond || stats.PhaseAvg[PhaseTimers] != 300*time.Microsecond {
		t.Errorf("phase averages = %v", stats.PhaseAvg)
	}
	if stats.PhaseAvg[PhaseMovement] != 0 {
		t.Errorf("untimed movement phase = %v", stats.PhaseAvg[PhaseMovement])
	}
	if stats.PhasePct[PhaseTargeting] != 25 || stats.PhasePct[PhaseTimers] != 75 {
		t.Errorf("phase pct = %v", stats.PhasePct)
	}
}

func TestPerfCollectorMinMax(t *testing.T) {
	clock := &mockClock{now: time.Unix(0, 0)}
	pc := NewPerfCollectorWithClock(10, clock)
	for _, d := range []time.Duration{2, 6, 4} {
		runTicks(pc, clock, 1, map[Phase]time.Duration{PhaseScripts: d * time.Millisecond})
	}

	stats := pc.Stats()
	if stats.MinTickDuration != 2*time.Millisecond || stats.MaxTickDuration != 6*time.Millisecond {
		t.Errorf("min/max = %v/%v, want 2ms/6ms", stats.MinTickDuration, stats.MaxTickDuration)
	}
	if stats.AvgTickDuration != 4*time.Millisecond {
		t.Errorf("avg = %v, want 4ms", stats.AvgTickDuration)
	}
}

func TestPerfCollectorWindowWraps(t *testing.T) {
	clock := &mockClock{now: time.Unix(0, 0)}
	pc := NewPerfCollectorWithClock(3, clock)
	runTicks(pc, clock, 7, map[Phase]time.Duration{PhaseEvents: time.Millisecond})
	runTicks(pc, clock, 3, map[Phase]time.Duration{PhaseEvents: 5 * time.Millisecond})

	if pc.count != 3 {
		t.Errorf("count = %d, want 3", pc.count)
	}
	if got := pc.Stats().AvgTickDuration; got != 5*time.Millisecond {
		t.Errorf("avg after wrap = %v, want only the last 3 ticks (5ms)", got)
	}
}

func TestPerfCollectorEmpty(t *testing.T) {
	if stats := NewPerfCollector(0).Stats(); stats != (PerfStats{}) {
		t.Errorf("empty stats = %+v", stats)
	}
}

func TestPhaseString(t *testing.T) {
	if got := PhaseTargeting.String(); got != "targeting" {
		t.Errorf("PhaseTargeting = %q", got)
	}
	if got := numPhases.String(); got != "unknown" {
		t.Errorf("numPhases = %q", got)
	}
}

func TestPerfStatsToCSV(t *testing.T) {
	stats := PerfStats{AvgTickDuration: 1500 * time.Microsecond, TicksPerSecond: 666}
	stats.PhasePct[PhaseTargeting] = 60
	stats.PhasePct[PhaseTimers] = 40

	row := stats.ToCSV(200)
	if row.WindowEnd != 200 || row.AvgTickUS != 1500 {
		t.Errorf("row = %+v", row)
	}
	if row.TargetingPct != 60 || row.TimersPct != 40 || row.MovementPct != 0 {
		t.Errorf("phase pct = %+v", row)
	}
}
