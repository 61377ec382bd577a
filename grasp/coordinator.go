// Package grasp implements interaction targeting: graspables expose grasp data,
// a perpetual scan task finds the best nearby candidate for an actor, and the
// coordinator grants that candidate's ability to the actor while it stays valid.
package grasp

import (
	"log/slog"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/grasp/ability"
)

// Candidate is a live graspable selected by a scan.
type Candidate struct {
	Target     ecs.Entity
	Graspable  Graspable
	TargetData []TargetData
}

// Grant is the per-actor record of the graspable currently granting abilities.
// The graspable is held by entity only; callers resolve it again when needed.
type Grant struct {
	Target  ecs.Entity
	Ability string
	Handle  ability.Handle
}

// ChangeKind identifies grant table changes.
type ChangeKind uint8

const (
	ChangeGranted ChangeKind = iota
	ChangeRevoked
)

func (k ChangeKind) String() string {
	if k == ChangeGranted {
		return "granted"
	}
	return "revoked"
}

// Change is reported to the Observer for every grant table mutation.
type Change struct {
	Kind    ChangeKind
	Actor   ecs.Entity
	Target  ecs.Entity
	Ability string
}

// Observer receives grant table changes.
type Observer func(Change)

type subscriber[F any] struct {
	id uint64
	fn F
}

// Subscription is returned by the Subscribe methods.
type Subscription struct {
	cancel func()
}

// Unsubscribe detaches the listener. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	if s == nil || s.cancel == nil {
		return
	}
	s.cancel()
	s.cancel = nil
}

// Coordinator owns the grant table: at most one granted graspable per actor.
// It also relays the pause and request-grasp signals scan tasks listen to.
type Coordinator struct {
	abilities Abilities
	grants    map[ecs.Entity]Grant
	paused    map[ecs.Entity]bool

	pauseSubs   map[ecs.Entity][]subscriber[func(bool)]
	requestSubs map[ecs.Entity][]subscriber[func()]
	nextSub     uint64

	observer Observer
	logger   *slog.Logger
}

// NewCoordinator creates a coordinator granting into abilities.
func NewCoordinator(abilities Abilities, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		abilities:   abilities,
		grants:      make(map[ecs.Entity]Grant),
		paused:      make(map[ecs.Entity]bool),
		pauseSubs:   make(map[ecs.Entity][]subscriber[func(bool)]),
		requestSubs: make(map[ecs.Entity][]subscriber[func()]),
		logger:      logger,
	}
}

// SetObserver installs the grant change observer.
func (c *Coordinator) SetObserver(o Observer) {
	c.observer = o
}

// CurrentHolder returns the actor's grant, if any.
func (c *Coordinator) CurrentHolder(actor ecs.Entity) (Grant, bool) {
	g, ok := c.grants[actor]
	return g, ok
}

// TryGrant grants the candidate's ability to actor.
// Returns true if the candidate holds the grant afterwards. A different holder
// is never replaced; callers revoke first.
func (c *Coordinator) TryGrant(actor ecs.Entity, cand Candidate) bool {
	if g, ok := c.grants[actor]; ok {
		return g.Target == cand.Target
	}
	if cand.Graspable == nil {
		return false
	}
	data := cand.Graspable.GraspData()
	if data == nil {
		return false
	}

	h, err := c.abilities.Give(actor, ability.Spec{
		Name:       data.Ability,
		Source:     cand.Target,
		TargetData: cand.TargetData,
	})
	if err != nil {
		c.logger.Warn("grasp: grant refused", "actor", actor.ID(), "target", cand.Target.ID(), "ability", data.Ability, "error", err)
		return false
	}

	c.grants[actor] = Grant{
		Target:  cand.Target,
		Ability: data.Ability,
		Handle:  h,
	}
	c.notify(Change{Kind: ChangeGranted, Actor: actor, Target: cand.Target, Ability: data.Ability})
	return true
}

// Revoke removes the actor's grant and returns it. Revoking when nothing is
// held is a no-op that returns false.
func (c *Coordinator) Revoke(actor ecs.Entity) (Grant, bool) {
	g, ok := c.grants[actor]
	if !ok {
		return Grant{}, false
	}
	delete(c.grants, actor)
	c.abilities.Clear(actor, g.Handle)
	c.notify(Change{Kind: ChangeRevoked, Actor: actor, Target: g.Target, Ability: g.Ability})
	return g, true
}

// RemoveAll clears everything granted to actor, e.g. when its owning ability
// ended or it was destroyed, then asks its scan tasks to scan again since their
// pending callbacks will never arrive.
func (c *Coordinator) RemoveAll(actor ecs.Entity) {
	c.Revoke(actor)
	for _, s := range append([]subscriber[func()](nil), c.requestSubs[actor]...) {
		s.fn()
	}
}

// SetPaused pauses or resumes scanning for actor. Grants are unaffected.
func (c *Coordinator) SetPaused(actor ecs.Entity, paused bool) {
	if c.paused[actor] == paused {
		return
	}
	if paused {
		c.paused[actor] = true
	} else {
		delete(c.paused, actor)
	}
	for _, s := range append([]subscriber[func(bool)](nil), c.pauseSubs[actor]...) {
		s.fn(paused)
	}
}

// IsPaused reports whether scanning is paused for actor.
func (c *Coordinator) IsPaused(actor ecs.Entity) bool {
	return c.paused[actor]
}

// SubscribePause registers fn for actor's pause signal.
func (c *Coordinator) SubscribePause(actor ecs.Entity, fn func(paused bool)) *Subscription {
	c.nextSub++
	id := c.nextSub
	c.pauseSubs[actor] = append(c.pauseSubs[actor], subscriber[func(bool)]{id: id, fn: fn})
	return &Subscription{cancel: func() {
		c.pauseSubs[actor] = removeSub(c.pauseSubs[actor], id)
		if len(c.pauseSubs[actor]) == 0 {
			delete(c.pauseSubs, actor)
		}
	}}
}

// SubscribeRequestGrasp registers fn for actor's request-grasp signal.
func (c *Coordinator) SubscribeRequestGrasp(actor ecs.Entity, fn func()) *Subscription {
	c.nextSub++
	id := c.nextSub
	c.requestSubs[actor] = append(c.requestSubs[actor], subscriber[func()]{id: id, fn: fn})
	return &Subscription{cancel: func() {
		c.requestSubs[actor] = removeSub(c.requestSubs[actor], id)
		if len(c.requestSubs[actor]) == 0 {
			delete(c.requestSubs, actor)
		}
	}}
}

// Subscribers returns the number of pause and request-grasp listeners for actor.
func (c *Coordinator) Subscribers(actor ecs.Entity) (pause, request int) {
	return len(c.pauseSubs[actor]), len(c.requestSubs[actor])
}

func (c *Coordinator) notify(ch Change) {
	if c.observer != nil {
		c.observer(ch)
	}
}

func removeSub[F any](subs []subscriber[F], id uint64) []subscriber[F] {
	for i, s := range subs {
		if s.id == id {
			return append(subs[:i:i], subs[i+1:]...)
		}
	}
	return subs
}
