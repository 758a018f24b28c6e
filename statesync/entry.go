package statesync

import (
	"sync"

	"github.com/comalice/tilewall/internal/primitives"
	"github.com/comalice/tilewall/interpolate"
)

// DefaultEntryCapacity bounds the samples an entry keeps.
const DefaultEntryCapacity = 25

// Entry is the tile-side store of one channel: samples in time order plus
// the strategy used to read between them.
type Entry struct {
	mu          sync.RWMutex
	name        string
	samples     []primitives.Sample
	capacity    int
	interp      interpolate.Interpolator
	renderDelay float64
}

// NewEntry creates an entry holding at most capacity samples. A nil
// interpolator means interpolate.HoldLast.
func NewEntry(name string, interp interpolate.Interpolator, capacity int) *Entry {
	if interp == nil {
		interp = interpolate.HoldLast
	}
	if capacity < 2 {
		capacity = 2
	}
	return &Entry{name: name, interp: interp, capacity: capacity}
}

// Name returns the channel name.
func (e *Entry) Name() string { return e.name }

// Push appends s, dropping the oldest sample beyond capacity.
// A sample at the latest time replaces it; an older one is dropped, so
// repeated full snapshots never flood the history with duplicates.
// Reports whether s was kept.
func (e *Entry) Push(s primitives.Sample) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if n := len(e.samples); n > 0 {
		last := e.samples[n-1].Time
		if s.Time == last {
			e.samples[n-1] = s
			return true
		}
		if s.Time < last {
			return false
		}
	}
	e.samples = append(e.samples, s)
	if over := len(e.samples) - e.capacity; over > 0 {
		e.samples = append(e.samples[:0], e.samples[over:]...)
	}
	return true
}

// Samples returns a copy of the held samples, oldest first.
func (e *Entry) Samples() []primitives.Sample {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]primitives.Sample, len(e.samples))
	copy(out, e.samples)
	return out
}

// Len returns the number of held samples.
func (e *Entry) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.samples)
}

// Latest returns the newest sample.
func (e *Entry) Latest() (primitives.Sample, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if len(e.samples) == 0 {
		return primitives.Sample{}, false
	}
	return e.samples[len(e.samples)-1], true
}

// Value returns the channel value at time t. Before the earliest sample it
// returns the earliest payload, after the latest the latest payload, and in
// between the interpolation of the bracketing pair. ok is false until the
// entry has data.
func (e *Entry) Value(t float64) (any, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	n := len(e.samples)
	if n == 0 {
		return nil, false
	}
	first, last := e.samples[0], e.samples[n-1]
	if t <= first.Time {
		return first.Payload, true
	}
	if t >= last.Time {
		return last.Payload, true
	}
	for i := 0; i < n-1; i++ {
		a, b := e.samples[i], e.samples[i+1]
		if a.Time <= t && t < b.Time {
			return e.interp.Interpolate(t, a.Time, a.Payload, b.Time, b.Payload), true
		}
	}
	return last.Payload, true
}

// ValueAt reads the entry at now minus the render delay, which keeps the
// read point behind the newest data from the coordinator.
func (e *Entry) ValueAt(now float64) (any, bool) {
	return e.Value(now - e.renderDelay)
}
