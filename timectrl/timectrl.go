package timectrl

import (
	"fmt"
	"sync"
)

// SimClock is a read-only view of simulation time, in days since scenario
// start. Components that only need to ask "what time is it" depend on this
// rather than the concrete clock.
type SimClock interface {
	Now() float64
}

// Clock tracks simulation time and notifies registered listeners when it
// advances. Time is a float64 day count and only moves forward; the event
// queue advances it to each timed event it pops.
type Clock struct {
	mu      sync.RWMutex
	start   float64
	current float64

	listeners []func(float64)
}

// NewClock constructs a clock positioned at start days.
func NewClock(start float64) *Clock {
	return &Clock{start: start, current: start}
}

// Now returns the current simulation time in days. Implements SimClock.
func (c *Clock) Now() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// AdvanceTo moves simulation time forward to t. Moving backward is an
// error; advancing to the current time is a no-op and does not notify.
func (c *Clock) AdvanceTo(t float64) error {
	c.mu.Lock()
	if t < c.current {
		now := c.current
		c.mu.Unlock()
		return fmt.Errorf("cannot move simulation time backward: %v -> %v", now, t)
	}
	if t == c.current {
		c.mu.Unlock()
		return nil
	}
	c.current = t
	listeners := append([]func(float64){}, c.listeners...)
	c.mu.Unlock()

	// notify outside the lock so listeners may read the clock
	for _, fn := range listeners {
		fn(t)
	}
	return nil
}

// Advance moves simulation time forward by delta days.
func (c *Clock) Advance(delta float64) error {
	c.mu.RLock()
	t := c.current + delta
	c.mu.RUnlock()
	return c.AdvanceTo(t)
}

// Reset returns the clock to its start time and notifies listeners.
func (c *Clock) Reset() {
	c.mu.Lock()
	c.current = c.start
	t := c.current
	listeners := append([]func(float64){}, c.listeners...)
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(t)
	}
}

// AddListener registers a callback invoked whenever simulation time changes.
func (c *Clock) AddListener(fn func(float64)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}
