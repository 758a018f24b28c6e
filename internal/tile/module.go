package tile

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/comalice/tilewall/internal/primitives"
	"github.com/comalice/tilewall/interpolate"
	"github.com/comalice/tilewall/player"
	"github.com/comalice/tilewall/statesync"
)

// Module is a tile's half of a module instance. It reads the instance's
// channels from the mirror and hands their values to a Renderer each frame.
type Module struct {
	load     primitives.LoadModule
	mirror   *statesync.Mirror
	renderer Renderer

	mu      sync.Mutex
	view    *statesync.View
	entries map[string]*statesync.Entry
	visible bool
}

var _ player.Module = (*Module)(nil)

// NewModule prepares a module for load. Nothing touches the mirror until
// Instantiate.
func NewModule(load primitives.LoadModule, mirror *statesync.Mirror, r Renderer) *Module {
	if r == nil {
		r = NopRenderer{}
	}
	return &Module{load: load, mirror: mirror, renderer: r}
}

func (m *Module) Name() string      { return m.load.Module }
func (m *Module) Deadline() float64 { return m.load.Deadline }

// ID returns the instance id.
func (m *Module) ID() string { return m.load.ID }

// Instantiate opens the instance in the mirror and defines every channel
// the coordinator announced. Keyframes buffered before now are replayed.
func (m *Module) Instantiate(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	channels := m.load.Channels()
	names := make([]string, 0, len(channels))
	for name := range channels {
		names = append(names, name)
	}
	sort.Strings(names)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.view = m.mirror.Open(m.load.ID)
	m.entries = make(map[string]*statesync.Entry, len(names))
	for _, name := range names {
		interp, err := interpolate.Lookup(channels[name])
		if err != nil {
			return fmt.Errorf("channel %q: %w", name, err)
		}
		e, err := m.view.Define(name, interp)
		if err != nil {
			return err
		}
		m.entries[name] = e
	}
	return nil
}

func (m *Module) WillBeShownSoon(ctx context.Context) error {
	return ctx.Err()
}

func (m *Module) BeginTransitionOut(float64) {}

func (m *Module) BeginTransitionIn(float64) error {
	m.mu.Lock()
	m.visible = true
	m.mu.Unlock()
	return nil
}

func (m *Module) PerformTransition(context.Context, player.Module, float64) error {
	return nil
}

func (m *Module) FinishTransitionOut() {
	m.mu.Lock()
	m.visible = false
	m.mu.Unlock()
}

func (m *Module) FinishTransitionIn() error { return nil }

// Dispose closes the instance in the mirror; it is reaped later.
func (m *Module) Dispose() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.view != nil {
		m.view.Close()
		m.view = nil
	}
	m.visible = false
}

// Frame renders the module at now. Channels without data yet are left out
// of the frame.
func (m *Module) Frame(now float64) {
	m.mu.Lock()
	if !m.visible {
		m.mu.Unlock()
		return
	}
	values := make(map[string]any, len(m.entries))
	for name, e := range m.entries {
		if v, ok := e.ValueAt(now); ok {
			values[name] = v
		}
	}
	m.mu.Unlock()
	m.renderer.Draw(Frame{Module: m.load.Module, Instance: m.load.ID, Time: now, Values: values})
}
