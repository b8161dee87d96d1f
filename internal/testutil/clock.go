package testutil

import (
	"sync"
	"time"
)

// DeterministicClock is a thread-safe stepping wall clock for tests.
//
// Every call to Now returns the previous instant plus Step, starting at
// Start+Step. Durations measured with it are exact multiples of Step, so
// traces and log rows compare byte-for-byte across runs.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type DeterministicClock struct {
	mu    sync.Mutex
	start time.Time
	step  time.Duration
	ticks int64
}

// DefaultClockStart is the first instant of a NewDeterministicClock.
var DefaultClockStart = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// NewDeterministicClock creates a clock starting at DefaultClockStart and
// advancing one millisecond per call.
func NewDeterministicClock() *DeterministicClock {
	return &DeterministicClock{start: DefaultClockStart, step: time.Millisecond}
}

// NewSteppingClock creates a clock starting at start and advancing step per call.
func NewSteppingClock(start time.Time, step time.Duration) *DeterministicClock {
	return &DeterministicClock{start: start, step: step}
}

// Now advances the clock by one step and returns the new instant.
func (c *DeterministicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ticks++
	return c.start.Add(time.Duration(c.ticks) * c.step)
}

// Ticks returns how many times Now has been called.
func (c *DeterministicClock) Ticks() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ticks
}

// Reset rewinds the clock to its start.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ticks = 0
}
