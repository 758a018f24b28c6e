package primitives

import (
	"sync"
	"time"
)

// Clock reads the current wall time in milliseconds.
type Clock interface {
	Now() float64
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() float64

// Now calls f.
func (f ClockFunc) Now() float64 { return f() }

// SystemClock reads time.Now.
type SystemClock struct{}

// Now returns milliseconds since the Unix epoch.
func (SystemClock) Now() float64 { return Millis(time.Now()) }

// Millis converts t to float64 milliseconds since the Unix epoch.
func Millis(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Millisecond)
}

// Duration converts a millisecond span to a time.Duration.
func Duration(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}

// Until returns how long until deadline on c, never negative.
func Until(c Clock, deadline float64) time.Duration {
	d := deadline - c.Now()
	if d <= 0 {
		return 0
	}
	return Duration(d)
}

// AdjustableClock is a local clock shifted to agree with a reference clock.
// Tiles use it to follow the coordinator's time messages.
type AdjustableClock struct {
	mu     sync.RWMutex
	base   Clock
	offset float64
}

// NewAdjustableClock wraps base; a nil base means SystemClock.
func NewAdjustableClock(base Clock) *AdjustableClock {
	if base == nil {
		base = SystemClock{}
	}
	return &AdjustableClock{base: base}
}

// Now returns the adjusted time.
func (c *AdjustableClock) Now() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.base.Now() + c.offset
}

// AdjustTo shifts the clock so that Now reads reference at this instant.
func (c *AdjustableClock) AdjustTo(reference float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offset = reference - c.base.Now()
}

// Offset returns the current shift in ms.
func (c *AdjustableClock) Offset() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.offset
}
