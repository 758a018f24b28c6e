package tile

import (
	"sync"

	"go.uber.org/zap"
)

// Frame is everything a renderer needs to draw one module at one instant.
type Frame struct {
	Module   string
	Instance string
	Time     float64
	Values   map[string]any
}

// Renderer draws frames. It is called from the tile loop goroutine.
type Renderer interface {
	Draw(f Frame)
}

// NopRenderer drops every frame.
type NopRenderer struct{}

func (NopRenderer) Draw(Frame) {}

// Recorder keeps the most recent frame, for headless tiles and tests.
type Recorder struct {
	mu     sync.Mutex
	last   Frame
	frames uint64
}

func (r *Recorder) Draw(f Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last = f
	r.frames++
}

// Last returns the latest frame and how many have been drawn.
func (r *Recorder) Last() (Frame, uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last, r.frames
}

// LogRenderer logs every frame at debug level.
type LogRenderer struct {
	Log *zap.Logger
}

func (r LogRenderer) Draw(f Frame) {
	r.Log.Debug("frame",
		zap.String("module", f.Module),
		zap.Float64("time", f.Time),
		zap.Any("values", f.Values))
}

// Renderers draws every frame on each renderer in turn.
type Renderers []Renderer

func (rs Renderers) Draw(f Frame) {
	for _, r := range rs {
		r.Draw(f)
	}
}
