package telemetry

// LifetimeStats tracks one actor's scan and grant activity since it spawned.
type LifetimeStats struct {
	SpawnTick int32 `json:"spawn_tick"`

	// Scanning
	ScansIssued    int `json:"scans_issued"`
	ScansFailed    int `json:"scans_failed"`
	CandidatesDead int `json:"candidates_dead"`

	// Grants
	Grants       int   `json:"grants"`
	Revokes      int   `json:"revokes"`
	TicksHeld    int32 `json:"ticks_held"`    // total over completed holds
	LongestHold  int32 `json:"longest_hold"`  // ticks
	DistinctHeld int   `json:"distinct_held"` // distinct graspables ever granted
}

// LifetimeTracker manages per-actor lifetime statistics keyed by entity ID.
type LifetimeTracker struct {
	stats     map[uint32]*LifetimeStats
	holdStart map[uint32]int32               // grant tick of each open hold
	held      map[uint32]map[uint32]struct{} // graspables each actor has held
}

// NewLifetimeTracker creates a new lifetime tracker.
func NewLifetimeTracker() *LifetimeTracker {
	return &LifetimeTracker{
		stats:     make(map[uint32]*LifetimeStats),
		holdStart: make(map[uint32]int32),
		held:      make(map[uint32]map[uint32]struct{}),
	}
}

// Register creates lifetime stats for a newly spawned actor.
func (lt *LifetimeTracker) Register(actorID uint32, spawnTick int32) {
	lt.stats[actorID] = &LifetimeStats{SpawnTick: spawnTick}
	lt.held[actorID] = make(map[uint32]struct{})
}

// Get returns the lifetime stats for an actor, or nil if not found.
func (lt *LifetimeTracker) Get(actorID uint32) *LifetimeStats {
	return lt.stats[actorID]
}

// Remove removes an actor's stats and returns them (for logging).
func (lt *LifetimeTracker) Remove(actorID uint32) *LifetimeStats {
	stats := lt.stats[actorID]
	delete(lt.stats, actorID)
	delete(lt.holdStart, actorID)
	delete(lt.held, actorID)
	return stats
}

// Record folds an event into the acting actor's stats. Events for
// unregistered actors are ignored.
func (lt *LifetimeTracker) Record(ev Event) {
	s := lt.stats[ev.ActorID]
	if s == nil {
		return
	}
	switch ev.Type {
	case EventScanIssued:
		s.ScansIssued++
	case EventScanFailed:
		s.ScansFailed++
	case EventCandidateDead:
		s.CandidatesDead++
	case EventGrant:
		s.Grants++
		lt.holdStart[ev.ActorID] = ev.Tick
		if _, ok := lt.held[ev.ActorID][ev.TargetID]; !ok {
			lt.held[ev.ActorID][ev.TargetID] = struct{}{}
			s.DistinctHeld++
		}
	case EventRevoke:
		s.Revokes++
		start, ok := lt.holdStart[ev.ActorID]
		if !ok {
			return
		}
		delete(lt.holdStart, ev.ActorID)
		held := ev.Tick - start
		s.TicksHeld += held
		if held > s.LongestHold {
			s.LongestHold = held
		}
	}
}

// All returns all tracked stats.
func (lt *LifetimeTracker) All() map[uint32]*LifetimeStats {
	return lt.stats
}

// Count returns the number of tracked actors.
func (lt *LifetimeTracker) Count() int {
	return len(lt.stats)
}
