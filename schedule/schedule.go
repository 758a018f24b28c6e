// Package schedule turns a static, cyclic list of timed states into a stream
// of keyframes written to the authority, one tick ahead of need.
package schedule

import (
	"errors"
	"fmt"

	"github.com/comalice/tilewall/internal/primitives"
	"github.com/comalice/tilewall/interpolate"
	"github.com/comalice/tilewall/statesync"
)

// Store receives keyframes. *statesync.Handle satisfies it.
type Store interface {
	Store(channel string, t float64, payload any)
}

// Item is one step of a schedule: State is reached Duration ms after the
// previous item's state.
type Item struct {
	Duration float64
	State    any
}

// Validate rejects negative durations. An empty schedule is valid and
// simply never emits.
func Validate(items []Item) error {
	for i, it := range items {
		if it.Duration < 0 {
			return fmt.Errorf("schedule item %d: negative duration %v", i, it.Duration)
		}
	}
	return nil
}

// FromConfig converts loaded schedule items.
func FromConfig(items []primitives.ScheduleItemConfig) []Item {
	out := make([]Item, len(items))
	for i, it := range items {
		out[i] = Item{Duration: it.Duration, State: it.State}
	}
	return out
}

// ErrEmpty is returned by NewChecked for a schedule without items.
var ErrEmpty = errors.New("empty schedule")

// Emitter loops a schedule into a Store. Not safe for concurrent use; it is
// driven from the coordinator tick loop.
type Emitter struct {
	store    Store
	channel  string
	items    []Item
	started  bool
	nextTime float64
	next     int
	cycles   int
	interp   interpolate.Interpolator
	history  *statesync.Entry
}

// Option configures an Emitter.
type Option func(*Emitter)

// WithInterpolator sets the strategy Advance uses to compute its return
// value. Defaults to interpolate.HoldLast.
func WithInterpolator(i interpolate.Interpolator) Option {
	return func(e *Emitter) { e.interp = i }
}

// New creates an emitter writing channel into store. items is not copied
// and must not be modified afterwards.
func New(store Store, channel string, items []Item, opts ...Option) *Emitter {
	e := &Emitter{store: store, channel: channel, items: items}
	for _, opt := range opts {
		opt(e)
	}
	e.history = statesync.NewEntry(channel, e.interp, statesync.DefaultEntryCapacity)
	return e
}

// NewChecked is New for schedules loaded from outside the program.
func NewChecked(store Store, channel string, items []Item, opts ...Option) (*Emitter, error) {
	if len(items) == 0 {
		return nil, ErrEmpty
	}
	if err := Validate(items); err != nil {
		return nil, err
	}
	return New(store, channel, items, opts...), nil
}

// Channel returns the channel the emitter writes.
func (e *Emitter) Channel() string { return e.channel }

// Advance emits every item whose state is reached before the next tick,
// that is at or before now+delta. Each item is stamped with the time its
// state is reached. The cursor wraps at the end of the schedule, and one
// call emits at most one pass so that zero-length schedules terminate.
// Returns the value the emitted history reports at now+delta.
func (e *Emitter) Advance(now, delta float64) (any, bool) {
	if len(e.items) == 0 {
		return nil, false
	}
	if !e.started {
		e.started = true
		e.nextTime = now
	}
	horizon := now + delta
	for e.next < len(e.items) && e.nextTime <= horizon {
		it := e.items[e.next]
		e.next++
		e.nextTime += it.Duration
		e.store.Store(e.channel, e.nextTime, it.State)
		e.history.Push(primitives.Sample{Time: e.nextTime, Payload: it.State})
	}
	if e.next >= len(e.items) {
		e.next = 0
		e.cycles++
	}
	return e.history.Value(horizon)
}

// Reset re-anchors the schedule on the next Advance and forgets what
// was emitted before.
func (e *Emitter) Reset() {
	e.started = false
	e.next = 0
	e.cycles = 0
	e.history = statesync.NewEntry(e.channel, e.interp, statesync.DefaultEntryCapacity)
}

// Cycles counts completed passes over the schedule.
func (e *Emitter) Cycles() int { return e.cycles }

// NextTime returns the time the next item's state will be reached.
func (e *Emitter) NextTime() float64 { return e.nextTime }
