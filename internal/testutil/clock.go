package testutil

import (
	"sync"
	"time"
)

// StepClock is a deterministic clock for tests.
//
// Each call to Now() advances the clock by Step and returns the new time, so
// appended records get predictable, strictly increasing timestamps.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type StepClock struct {
	mu   sync.Mutex
	now  time.Time
	Step time.Duration
}

// NewStepClock creates a clock starting at the given Unix millisecond that
// advances one millisecond per call.
func NewStepClock(startMillis int64) *StepClock {
	return &StepClock{now: time.UnixMilli(startMillis), Step: time.Millisecond}
}

// Now advances the clock and returns the new time.
func (c *StepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(c.Step)
	return c.now
}

// Set moves the clock to the given Unix millisecond; the next Now() returns
// that value plus Step. Moving backwards is allowed to simulate skew.
func (c *StepClock) Set(millis int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = time.UnixMilli(millis)
}

// Current returns the time without advancing.
func (c *StepClock) Current() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}
