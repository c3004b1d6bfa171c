package testfixtures

import (
	"sync"
	"time"
)

// Clock is a manually driven time source. Tests inject it wherever a service
// takes a now func so every timestamp in a scenario is predictable.
type Clock struct {
	mu      sync.RWMutex
	current time.Time
}

// NewClock builds a clock starting at the given instant. A zero start falls
// back to ReferenceTime so fixtures and clocks agree by default.
func NewClock(start time.Time) *Clock {
	if start.IsZero() {
		start = ReferenceTime()
	}
	return &Clock{current: start}
}

// Now reports the instant the clock currently points at.
func (c *Clock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// NowFunc adapts the clock to the now func shape the services expect. A nil
// clock degrades to the real time.Now.
func (c *Clock) NowFunc() func() time.Time {
	if c == nil {
		return time.Now
	}
	return c.Now
}

// Set jumps the clock to an absolute instant.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = t
}

// Advance moves the clock forward by d and reports the new instant.
func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
	return c.current
}

// Current is a readability alias for Now used by assertions.
func (c *Clock) Current() time.Time {
	return c.Now()
}
