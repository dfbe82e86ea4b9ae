package scheduler

import (
	"sort"
	"sync"
	"time"
)

// Clock is the time source of the scheduler.
type Clock interface {
	Now() time.Time
	NewTimer(d time.Duration) Timer
}

// Timer is a one-shot timer that can be re-armed.
type Timer interface {
	C() <-chan time.Time
	Stop() bool
	Reset(d time.Duration) bool
}

// RealClock uses the time package.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

func (RealClock) NewTimer(d time.Duration) Timer {
	return &realTimer{t: time.NewTimer(d)}
}

type realTimer struct {
	t *time.Timer
}

func (r *realTimer) C() <-chan time.Time        { return r.t.C }
func (r *realTimer) Stop() bool                 { return r.t.Stop() }
func (r *realTimer) Reset(d time.Duration) bool { return r.t.Reset(d) }

// FakeClock is a manually advanced clock for tests. Timers fire when
// Advance moves the clock past their deadline.
type FakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
	armed  chan struct{}
}

func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start, armed: make(chan struct{}, 1)}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) NewTimer(d time.Duration) Timer {
	c.mu.Lock()
	t := &fakeTimer{clock: c, ch: make(chan time.Time, 1)}
	c.timers = append(c.timers, t)
	t.armLocked(d)
	c.mu.Unlock()
	return t
}

// Advance moves the clock forward by d, firing due timers in deadline order.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()
	c.AdvanceTo(target)
}

// AdvanceTo moves the clock to t, firing due timers in deadline order.
func (c *FakeClock) AdvanceTo(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for {
		due := c.dueLocked(t)
		if due == nil {
			break
		}
		c.now = due.deadline
		due.active = false
		select {
		case due.ch <- c.now:
		default:
		}
	}
	if t.After(c.now) {
		c.now = t
	}
}

// NextDeadline returns the earliest pending timer deadline.
func (c *FakeClock) NextDeadline() (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var next time.Time
	found := false
	for _, t := range c.timers {
		if t.active && (!found || t.deadline.Before(next)) {
			next = t.deadline
			found = true
		}
	}
	return next, found
}

// WaitArmed blocks until a timer has been armed since the last call, or
// the timeout elapses. It reports whether a timer was armed.
func (c *FakeClock) WaitArmed(timeout time.Duration) bool {
	select {
	case <-c.armed:
		return true
	case <-time.After(timeout):
		return false
	}
}

func (c *FakeClock) dueLocked(t time.Time) *fakeTimer {
	var due []*fakeTimer
	for _, ft := range c.timers {
		if ft.active && !ft.deadline.After(t) {
			due = append(due, ft)
		}
	}
	if len(due) == 0 {
		return nil
	}
	sort.Slice(due, func(i, j int) bool { return due[i].deadline.Before(due[j].deadline) })
	return due[0]
}

type fakeTimer struct {
	clock    *FakeClock
	ch       chan time.Time
	deadline time.Time
	active   bool
}

func (t *fakeTimer) C() <-chan time.Time { return t.ch }

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	was := t.active
	t.active = false
	return was
}

func (t *fakeTimer) Reset(d time.Duration) bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	was := t.active
	t.armLocked(d)
	return was
}

func (t *fakeTimer) armLocked(d time.Duration) {
	t.deadline = t.clock.now.Add(d)
	t.active = true
	select {
	case t.clock.armed <- struct{}{}:
	default:
	}
}
