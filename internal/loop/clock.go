package loop

import (
	"sync"
	"time"
)

// Clock supplies wall-clock readings to the scheduler.
type Clock interface {
	Now() time.Time
}

// MonotonicClock reads the system clock. time.Now carries a monotonic
// reading, so differences are immune to wall-clock adjustments.
type MonotonicClock struct{}

// Now returns the current time.
func (MonotonicClock) Now() time.Time { return time.Now() }

// ManualClock is a Clock that only moves when told to. Used by tests and
// by tools that replay a recorded session at a fixed pace.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewManualClock creates a clock frozen at start.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

// Now returns the current manual time.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
