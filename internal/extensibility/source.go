// Package extensibility feeds a tile's single-threaded loop. Sources
// queue messages and frames; handlers wrap the code that consumes them.
package extensibility

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/comalice/tilewall/internal/primitives"
)

// ChannelSource queues messages for a consumer loop. Push never blocks; a
// full queue drops the message.
type ChannelSource struct {
	ch      chan primitives.Message
	dropped atomic.Uint64
	once    sync.Once
	mu      sync.RWMutex
	closed  bool
}

// NewChannelSource creates a source with room for size messages.
func NewChannelSource(size int) *ChannelSource {
	if size <= 0 {
		size = 1
	}
	return &ChannelSource{ch: make(chan primitives.Message, size)}
}

// Messages returns the receive side.
func (s *ChannelSource) Messages() <-chan primitives.Message {
	return s.ch
}

// Push queues msg and reports whether it was accepted.
func (s *ChannelSource) Push(msg primitives.Message) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false
	}
	select {
	case s.ch <- msg:
		return true
	default:
		s.dropped.Add(1)
		return false
	}
}

// Dropped counts messages refused because the queue was full.
func (s *ChannelSource) Dropped() uint64 {
	return s.dropped.Load()
}

// Close closes the channel. Later pushes are refused.
func (s *ChannelSource) Close() {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.ch)
		s.mu.Unlock()
	})
}

// FrameSource ticks at a fixed rate, delivering the clock reading (ms) of
// each frame. Slow consumers miss frames rather than queueing them.
type FrameSource struct {
	ch     chan float64
	clock  primitives.Clock
	ticker *time.Ticker
	stop   chan struct{}
	once   sync.Once
}

// NewFrameSource starts a frame timer firing every d.
func NewFrameSource(clock primitives.Clock, d time.Duration) *FrameSource {
	if clock == nil {
		clock = primitives.SystemClock{}
	}
	f := &FrameSource{
		ch:     make(chan float64, 1),
		clock:  clock,
		ticker: time.NewTicker(d),
		stop:   make(chan struct{}),
	}
	go f.run()
	return f
}

func (f *FrameSource) run() {
	for {
		select {
		case <-f.ticker.C:
			select {
			case f.ch <- f.clock.Now():
			default:
			}
		case <-f.stop:
			f.ticker.Stop()
			close(f.ch)
			return
		}
	}
}

// Frames returns the frame channel. It is closed by Stop.
func (f *FrameSource) Frames() <-chan float64 {
	return f.ch
}

// Stop halts the timer. Idempotent.
func (f *FrameSource) Stop() {
	f.once.Do(func() { close(f.stop) })
}
