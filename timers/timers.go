// Package timers provides the tick-driven one-shot timer facility the simulation
// loop uses for delayed callbacks.
package timers

import (
	"sort"
	"time"
)

// Handle identifies an armed timer. The zero Handle is never valid.
type Handle struct {
	id uint64
}

// Valid reports whether the handle was ever issued.
func (h Handle) Valid() bool {
	return h.id != 0
}

// Invalidate resets the handle to the zero value.
func (h *Handle) Invalidate() {
	h.id = 0
}

type timer struct {
	id    uint64
	due   time.Duration // game time at which the timer fires
	armed uint64        // tick during which the timer was armed
	fn    func()
}

// Manager fires callbacks once their delay has elapsed in game time.
// It is not safe for concurrent use; all calls happen on the update loop.
type Manager struct {
	now    time.Duration
	tick   uint64
	nextID uint64
	active map[uint64]*timer
}

// NewManager creates an empty timer manager at game time zero.
func NewManager() *Manager {
	return &Manager{active: make(map[uint64]*timer)}
}

// Now returns the current game time.
func (m *Manager) Now() time.Duration {
	return m.now
}

// Tick returns the number of completed Advance calls.
func (m *Manager) Tick() uint64 {
	return m.tick
}

// SetTimer arms fn to run once delay has elapsed.
// A delay <= 0 behaves like SetTimerForNextTick.
func (m *Manager) SetTimer(delay time.Duration, fn func()) Handle {
	if delay < 0 {
		delay = 0
	}
	m.nextID++
	t := &timer{id: m.nextID, due: m.now + delay, armed: m.tick, fn: fn}
	m.active[t.id] = t
	return Handle{id: t.id}
}

// SetTimerForNextTick arms fn to run on the next Advance.
func (m *Manager) SetTimerForNextTick(fn func()) Handle {
	return m.SetTimer(0, fn)
}

// Clear cancels the timer. Clearing an invalid or expired handle is a no-op.
func (m *Manager) Clear(h Handle) {
	if !h.Valid() {
		return
	}
	delete(m.active, h.id)
}

// IsActive reports whether the timer is still pending.
func (m *Manager) IsActive(h Handle) bool {
	if !h.Valid() {
		return false
	}
	_, ok := m.active[h.id]
	return ok
}

// Remaining returns the time left before the timer fires, or 0 if it is not active.
func (m *Manager) Remaining(h Handle) time.Duration {
	if !h.Valid() {
		return 0
	}
	t, ok := m.active[h.id]
	if !ok {
		return 0
	}
	if r := t.due - m.now; r > 0 {
		return r
	}
	return 0
}

// Len returns the number of pending timers.
func (m *Manager) Len() int {
	return len(m.active)
}

// Advance moves game time forward by dt and fires every due timer in due order.
// Timers armed while firing run on a later Advance at the earliest.
func (m *Manager) Advance(dt time.Duration) {
	m.tick++
	m.now += dt

	var due []*timer
	for _, t := range m.active {
		if t.due <= m.now && t.armed < m.tick {
			due = append(due, t)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].due != due[j].due {
			return due[i].due < due[j].due
		}
		return due[i].id < due[j].id
	})

	for _, t := range due {
		// An earlier callback may have cleared this one
		if _, ok := m.active[t.id]; !ok {
			continue
		}
		delete(m.active, t.id)
		t.fn()
	}
}
