// Package player moves a surface from one module to the next: instantiate,
// prepare, wait for the deadline, transition, dispose the old one.
//
// It is built on the lifecycle machine. Play issues an external transition
// to a preparing state, so a newer request always supersedes an older one
// that is still loading; preparation work checks its context at each
// interruption point and the abandoned module is disposed. Once a module's
// deadline arrives the preparing state resolves to a showing state, the
// point of no return: the visual transition runs to completion even if
// another Play arrives meanwhile.
package player

import (
	"context"
	"sync"
	"time"

	"github.com/comalice/tilewall"
	"github.com/comalice/tilewall/internal/primitives"
	"go.uber.org/zap"
)

// Event is reported to Config.Monitor at each lifecycle step.
type Event struct {
	State    string
	Module   string
	Time     float64
	Deadline float64
}

// Config configures a Player. Zero values select the defaults.
type Config struct {
	Name               string
	Clock              primitives.Clock
	Logger             *zap.Logger
	InstantiateTimeout time.Duration // default 5s
	PrepareTimeout     time.Duration // default 5s; expiry is tolerated
	TransitionDuration time.Duration // default 5s
	ManualDrive        bool
	Monitor            func(Event)
}

// Player shows one module at a time.
type Player struct {
	cfg     Config
	log     *zap.Logger
	machine *tilewall.Machine

	mu       sync.Mutex
	showing  Module
	inflight chan struct{}
}

// New creates a player showing the empty module. opts are passed to the
// underlying machine.
func New(cfg Config, opts ...tilewall.Option) *Player {
	if cfg.Name == "" {
		cfg.Name = "player"
	}
	if cfg.Clock == nil {
		cfg.Clock = primitives.SystemClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.InstantiateTimeout == 0 {
		cfg.InstantiateTimeout = 5 * time.Second
	}
	if cfg.PrepareTimeout == 0 {
		cfg.PrepareTimeout = 5 * time.Second
	}
	if cfg.TransitionDuration == 0 {
		cfg.TransitionDuration = 5 * time.Second
	}
	p := &Player{
		cfg:     cfg,
		log:     cfg.Logger.Named(cfg.Name),
		showing: Empty(0),
	}
	base := []tilewall.Option{
		tilewall.WithName(cfg.Name),
		tilewall.WithLogger(cfg.Logger),
		tilewall.WithTransitionHook(p.onTransition),
	}
	if cfg.ManualDrive {
		base = append(base, tilewall.WithManualDrive())
	}
	p.machine = tilewall.NewMachine(&displayState{p: p, module: p.showing}, append(base, opts...)...)
	return p
}

// Start starts the underlying machine.
func (p *Player) Start(ctx context.Context) error {
	return p.machine.Start(ctx)
}

// Stop stops the machine. The showing module is left as is.
func (p *Player) Stop() {
	p.machine.Stop()
}

// Machine exposes the lifecycle machine, for stepping and status.
func (p *Player) Machine() *tilewall.Machine { return p.machine }

// Showing returns the module currently on screen.
func (p *Player) Showing() Module {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.showing
}

// Play requests m. Requesting the empty module while it is already showing
// does nothing.
func (p *Player) Play(m Module) error {
	if m == nil {
		return tilewall.ErrNilState
	}
	if IsEmpty(m) && IsEmpty(p.Showing()) {
		return nil
	}
	p.report("play", m, m.Deadline())
	return p.machine.TransitionTo(&preparingState{p: p, module: m})
}

func (p *Player) setShowing(m Module) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.showing = m
}

func (p *Player) report(state string, m Module, deadline float64) {
	if p.cfg.Monitor == nil {
		return
	}
	p.cfg.Monitor(Event{State: state, Module: m.Name(), Time: p.cfg.Clock.Now(), Deadline: deadline})
}

// onTransition disposes a module whose preparation was abandoned.
func (p *Player) onTransition(from, to tilewall.State) {
	prep, ok := from.(*preparingState)
	if !ok {
		return
	}
	if show, ok := to.(*showingState); ok && show.from == prep {
		return
	}
	go func() {
		<-prep.done
		prep.dispose()
	}()
}

// safe runs fn, logging instead of propagating a panic.
func (p *Player) safe(what string, m Module, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("module panicked", zap.String("call", what), zap.String("module", m.Name()), zap.Any("panic", r))
		}
	}()
	fn()
}

// safeErr is safe for calls that also return an error.
func (p *Player) safeErr(what string, m Module, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("module panicked", zap.String("call", what), zap.String("module", m.Name()), zap.Any("panic", r))
			err = tilewall.ErrStatePanic
		}
	}()
	return fn()
}
