package telemetry

// Collector accumulates events within time windows and produces WindowStats.
type Collector struct {
	windowDurationTicks int32
	dt                  float64

	// Current window tracking
	windowStartTick int32

	// Event counters for current window
	scansIssued    int
	scansStale     int
	scansFailed    int
	waits          int
	candidatesDead int
	terminated     int
	grants         int
	revokes        int

	waitDelaysMS []float64
	holdTicks    []float64

	// Tick each actor's current grant started, by actor ID. Spans windows.
	grantStart map[uint32]int32
}

// NewCollector creates a new stats collector.
// windowDurationSec: how long each stats window lasts in simulation seconds
// dt: seconds per tick (used for tick-to-time conversion)
func NewCollector(windowDurationSec, dt float64) *Collector {
	ticksPerWindow := int32(windowDurationSec / dt)
	if ticksPerWindow < 1 {
		ticksPerWindow = 1
	}

	return &Collector{
		windowDurationTicks: ticksPerWindow,
		dt:                  dt,
		grantStart:          make(map[uint32]int32),
	}
}

// Record counts ev in the current window.
func (c *Collector) Record(ev Event) {
	switch ev.Type {
	case EventScanIssued:
		c.scansIssued++
	case EventScanStale:
		c.scansStale++
	case EventScanFailed:
		c.scansFailed++
	case EventWait:
		c.waits++
		c.waitDelaysMS = append(c.waitDelaysMS, ev.DelayMS)
	case EventCandidateDead:
		c.candidatesDead++
	case EventTerminated:
		c.terminated++
	case EventGrant:
		c.grants++
		c.grantStart[ev.ActorID] = ev.Tick
	case EventRevoke:
		c.revokes++
		if start, ok := c.grantStart[ev.ActorID]; ok {
			c.holdTicks = append(c.holdTicks, float64(ev.Tick-start))
			delete(c.grantStart, ev.ActorID)
		}
	}
}

// ShouldFlush returns true if enough ticks have passed to flush the window.
func (c *Collector) ShouldFlush(currentTick int32) bool {
	return currentTick-c.windowStartTick >= c.windowDurationTicks
}

// Flush produces a WindowStats and resets counters for the next window.
// The caller provides the grasper, active grant, and paused actor counts at
// window end.
func (c *Collector) Flush(currentTick int32, graspers, activeGrants, paused int) WindowStats {
	var grantRate float64
	if c.scansIssued > 0 {
		grantRate = float64(c.grants) / float64(c.scansIssued)
	}

	waitMean, _, _, waitP90 := Summarize(c.waitDelaysMS)
	holdMean, holdP10, holdP50, holdP90 := Summarize(c.holdTicks)

	stats := WindowStats{
		WindowStartTick: c.windowStartTick,
		WindowEndTick:   currentTick,
		SimTimeSec:      float64(currentTick) * c.dt,

		Graspers:     graspers,
		ActiveGrants: activeGrants,
		Paused:       paused,

		ScansIssued:    c.scansIssued,
		ScansStale:     c.scansStale,
		ScansFailed:    c.scansFailed,
		Waits:          c.waits,
		CandidatesDead: c.candidatesDead,
		Terminated:     c.terminated,
		Grants:         c.grants,
		Revokes:        c.revokes,
		GrantRate:      grantRate,

		WaitMeanMS: waitMean,
		WaitP90MS:  waitP90,

		HoldMeanTicks: holdMean,
		HoldP10Ticks:  holdP10,
		HoldP50Ticks:  holdP50,
		HoldP90Ticks:  holdP90,
	}

	// Reset for next window
	c.windowStartTick = currentTick
	c.scansIssued = 0
	c.scansStale = 0
	c.scansFailed = 0
	c.waits = 0
	c.candidatesDead = 0
	c.terminated = 0
	c.grants = 0
	c.revokes = 0
	c.waitDelaysMS = c.waitDelaysMS[:0]
	c.holdTicks = c.holdTicks[:0]

	return stats
}

// WindowDurationTicks returns the number of ticks per window.
func (c *Collector) WindowDurationTicks() int32 {
	return c.windowDurationTicks
}
