// Package targeting is the scan backend: it queues scan requests, runs them
// against the world once per update, and delivers the ranked results.
package targeting

import (
	"errors"
	"log/slog"
	"sort"

	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/grasp/components"
	"github.com/pthm-cable/grasp/config"
	"github.com/pthm-cable/grasp/grasp"
)

// ErrActorGone is returned by Submit when the requesting actor no longer exists.
var ErrActorGone = errors.New("targeting: requesting actor is gone")

// Weights tunes result scoring. Lower scores rank first.
type Weights struct {
	Distance float64
	Angle    float64
}

type pendingRequest struct {
	handle grasp.Handle
	req    grasp.Request
	cb     grasp.Callback
}

// Subsystem executes grasp scans against an ark world.
type Subsystem struct {
	world    *ecs.World
	posMap   *ecs.Map1[components.Position]
	boxMap   *ecs.Map1[components.GraspableBox]
	actorMap *ecs.Map1[components.Actor]
	filter   *ecs.Filter2[components.Position, components.GraspableBox]

	grid      *SpatialGrid
	maxRadius float64
	weights   Weights

	pending []pendingRequest
	active  map[grasp.Handle]struct{}
	next    grasp.Handle

	neighbors []Neighbor
	logger    *slog.Logger
}

// NewSubsystem creates a backend over world sized from cfg.
func NewSubsystem(world *ecs.World, cfg *config.Config, logger *slog.Logger) *Subsystem {
	if logger == nil {
		logger = slog.Default()
	}
	return &Subsystem{
		world:    world,
		posMap:   ecs.NewMap1[components.Position](world),
		boxMap:   ecs.NewMap1[components.GraspableBox](world),
		actorMap: ecs.NewMap1[components.Actor](world),
		filter:   ecs.NewFilter2[components.Position, components.GraspableBox](world),
		grid:     NewSpatialGrid(cfg.World.Width, cfg.World.Height, cfg.World.GridCellSize),
		weights:  Weights{Distance: cfg.Targeting.DistanceWeight, Angle: cfg.Targeting.AngleWeight},
		active:   make(map[grasp.Handle]struct{}),
		logger:   logger,
	}
}

// Submit queues a scan. The callback runs during a later Update.
func (s *Subsystem) Submit(req grasp.Request, cb grasp.Callback) (grasp.Handle, error) {
	if !s.world.Alive(req.Actor.Entity) {
		return 0, ErrActorGone
	}
	s.next++
	h := s.next
	s.pending = append(s.pending, pendingRequest{handle: h, req: req, cb: cb})
	s.active[h] = struct{}{}
	return h, nil
}

// Cancel drops a queued scan; its callback never runs.
func (s *Subsystem) Cancel(h grasp.Handle) {
	if _, ok := s.active[h]; !ok {
		return
	}
	delete(s.active, h)
	for i, p := range s.pending {
		if p.handle == h {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			break
		}
	}
}

// Pending returns the number of queued scans.
func (s *Subsystem) Pending() int {
	return len(s.active)
}

// Resolve returns a fresh view of target's graspable.
func (s *Subsystem) Resolve(target ecs.Entity) (grasp.Graspable, bool) {
	if !s.world.Alive(target) || !s.boxMap.HasAll(target) {
		return nil, false
	}
	if s.actorMap.HasAll(target) && !s.actorMap.Get(target).Valid() {
		return nil, false
	}
	return s.boxMap.Get(target), true
}

// Update runs every queued scan and delivers results. Scans submitted from a
// callback run on the next Update.
func (s *Subsystem) Update() {
	if len(s.pending) == 0 {
		return
	}
	s.rebuildGrid()

	batch := s.pending
	s.pending = nil
	for _, p := range batch {
		// Cancelled by an earlier callback in this batch
		if _, ok := s.active[p.handle]; !ok {
			continue
		}
		delete(s.active, p.handle)
		results := s.execute(p.req)
		p.cb(p.handle, p.req.Tag, results)
	}
}

func (s *Subsystem) rebuildGrid() {
	s.grid.Clear()
	s.maxRadius = 0

	query := s.filter.Query()
	for query.Next() {
		e := query.Entity()
		pos, box := query.Get()
		if box.Data == nil {
			continue
		}
		s.grid.Insert(e, pos.X, pos.Y)
		if box.Data.ScanDistance > s.maxRadius {
			s.maxRadius = box.Data.ScanDistance
		}
	}
}

func (s *Subsystem) execute(req grasp.Request) []grasp.Result {
	if s.maxRadius <= 0 {
		return nil
	}
	origin := req.Actor.Location
	s.neighbors = s.grid.QueryRadiusInto(s.neighbors[:0], origin.X, origin.Y, s.maxRadius, req.Actor.Entity)

	var results []grasp.Result
	for _, n := range s.neighbors {
		if !s.boxMap.HasAll(n.E) {
			continue
		}
		if s.actorMap.HasAll(n.E) && !s.actorMap.Get(n.E).Valid() {
			continue
		}
		box := s.boxMap.Get(n.E)
		point := box.GraspPoint(*s.posMap.Get(n.E))
		score, dist, ok := Evaluate(req.Actor, box.Data, point, s.weights)
		if !ok {
			continue
		}
		results = append(results, grasp.Result{Target: n.E, Score: score, Distance: dist})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score < results[j].Score
		}
		return results[i].Target.ID() < results[j].Target.ID()
	})
	if req.MaxResults > 0 && len(results) > req.MaxResults {
		results = results[:req.MaxResults]
	}
	return results
}

// Evaluate checks point against data's scan window as seen from actor and
// returns its score and distance.
func Evaluate(actor grasp.ActorInfo, data *grasp.Data, point r3.Vec, w Weights) (score, dist float64, ok bool) {
	if data == nil || data.ScanDistance <= 0 {
		return 0, 0, false
	}
	delta := r3.Sub(point, actor.Location)
	dist = r3.Norm(delta)
	if dist > data.ScanDistance {
		return 0, 0, false
	}

	height := delta.Z
	if data.MaxHeightAbove > 0 && height > data.MaxHeightAbove {
		return 0, 0, false
	}
	if data.MaxHeightBelow > 0 && -height > data.MaxHeightBelow {
		return 0, 0, false
	}

	// Facing is judged in the horizontal plane; directly overhead always passes
	cos := 1.0
	planar := r3.Vec{X: delta.X, Y: delta.Y}
	forward := r3.Vec{X: actor.Forward.X, Y: actor.Forward.Y}
	if r3.Norm(planar) > 0 && r3.Norm(forward) > 0 {
		cos = r3.Cos(forward, planar)
	}
	if cos < data.HalfAngleCos() {
		return 0, 0, false
	}

	score = w.Distance*(dist/data.ScanDistance) + w.Angle*(1-cos)/2
	return score, dist, true
}
