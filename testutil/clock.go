// Package testutil holds deterministic doubles shared by package tests:
// a manually advanced clock, a broadcaster that records what it is sent and
// a polling helper for assertions on goroutine-driven code.
package testutil

import (
	"sync"
	"time"
)

// ManualClock is a primitives.Clock that only moves when told to.
type ManualClock struct {
	mu  sync.Mutex
	now float64
}

// NewManualClock starts the clock at now (ms).
func NewManualClock(now float64) *ManualClock {
	return &ManualClock{now: now}
}

// Now returns the current reading.
func (c *ManualClock) Now() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to t.
func (c *ManualClock) Set(t float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) float64 {
	return c.AdvanceMillis(float64(d) / float64(time.Millisecond))
}

// AdvanceMillis moves the clock forward by ms and returns the new reading.
func (c *ManualClock) AdvanceMillis(ms float64) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += ms
	return c.now
}
