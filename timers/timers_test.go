package timers

import (
	"testing"
	"time"
)

const step = 50 * time.Millisecond

func TestTimerFiresAfterDelay(t *testing.T) {
	m := NewManager()
	fired := 0
	h := m.SetTimer(120*time.Millisecond, func() { fired++ })

	m.Advance(step)
	m.Advance(step)
	if fired != 0 {
		t.Fatalf("fired early at %v", m.Now())
	}
	if got := m.Remaining(h); got != 20*time.Millisecond {
		t.Errorf("Remaining = %v, want 20ms", got)
	}

	m.Advance(step)
	if fired != 1 {
		t.Fatalf("fired = %d, want 1", fired)
	}
	if m.IsActive(h) {
		t.Error("timer still active after firing")
	}

	m.Advance(step)
	if fired != 1 {
		t.Errorf("one-shot timer fired again")
	}
}

func TestClearCancels(t *testing.T) {
	m := NewManager()
	fired := false
	h := m.SetTimer(step, func() { fired = true })
	m.Clear(h)
	m.Advance(step)
	if fired {
		t.Error("cleared timer fired")
	}

	// Clearing invalid and expired handles is a no-op
	m.Clear(Handle{})
	m.Clear(h)
}

func TestNextTickDefersOnePass(t *testing.T) {
	m := NewManager()
	count := 0
	var rearm func()
	rearm = func() {
		count++
		m.SetTimerForNextTick(rearm)
	}
	m.SetTimerForNextTick(rearm)

	for i := 0; i < 5; i++ {
		m.Advance(step)
	}
	if count != 5 {
		t.Errorf("count = %d, want 5 (one per Advance)", count)
	}
}

func TestFiresInDueOrder(t *testing.T) {
	m := NewManager()
	var order []int
	m.SetTimer(30*time.Millisecond, func() { order = append(order, 3) })
	m.SetTimer(10*time.Millisecond, func() { order = append(order, 1) })
	m.SetTimer(20*time.Millisecond, func() { order = append(order, 2) })

	m.Advance(step)
	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Errorf("order = %v, want [1 2 3]", order)
	}
}

func TestCallbackClearsLaterTimer(t *testing.T) {
	m := NewManager()
	var second Handle
	secondFired := false
	m.SetTimer(10*time.Millisecond, func() { m.Clear(second) })
	second = m.SetTimer(20*time.Millisecond, func() { secondFired = true })

	m.Advance(step)
	if secondFired {
		t.Error("timer cleared by an earlier callback still fired")
	}
}
