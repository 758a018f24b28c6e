package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/comalice/tilewall"
	"github.com/comalice/tilewall/internal/primitives"
	"github.com/comalice/tilewall/player"
	"github.com/comalice/tilewall/realtime"
	"github.com/comalice/tilewall/statesync"
	"go.uber.org/zap"
)

// wiring is what a RunningModule needs from the coordinator.
type wiring struct {
	authority *statesync.Authority
	runtime   *realtime.Runtime
	out       statesync.Broadcaster
	clock     primitives.Clock
	log       *zap.Logger
}

// Driver walks the playlist. Each module is a timed state of its own
// lifecycle machine: entering it asks the player for the module and the
// timer resolves to the next one.
type Driver struct {
	playlist primitives.PlaylistConfig
	lead     time.Duration
	player   *player.Player
	w        *wiring
	machine  *tilewall.Machine

	mu      sync.Mutex
	current *RunningModule
	index   int
}

// DriverConfig configures a Driver.
type DriverConfig struct {
	Playlist primitives.PlaylistConfig
	// Lead is how far ahead of its deadline a module is announced.
	Lead time.Duration
	// ManualDrive leaves stepping the machine to the tick loop.
	ManualDrive bool
}

func newDriver(cfg DriverConfig, p *player.Player, w *wiring, opts ...tilewall.Option) *Driver {
	if cfg.Lead == 0 {
		cfg.Lead = 5 * time.Second
	}
	if cfg.Playlist.ModuleDuration == 0 {
		cfg.Playlist.ModuleDuration = 30 * time.Second
	}
	d := &Driver{playlist: cfg.Playlist, lead: cfg.Lead, player: p, w: w, index: -1}
	base := []tilewall.Option{
		tilewall.WithName("playlist"),
		tilewall.WithLogger(w.log),
	}
	if cfg.ManualDrive {
		base = append(base, tilewall.WithManualDrive())
	}
	d.machine = tilewall.NewMachine(tilewall.NewState("idle"), append(base, opts...)...)
	return d
}

// playState shows one playlist entry for the module duration.
type playState struct {
	d     *Driver
	index int
	timer tilewall.State
}

func (s *playState) Name() string {
	return "play:" + s.d.playlist.Modules[s.index].Name
}

func (s *playState) Enter(ctx context.Context, resolve tilewall.Resolver, ext *tilewall.Context) error {
	if err := s.d.play(s.index); err != nil {
		return err
	}
	ext.Set("module", s.d.playlist.Modules[s.index].Name)
	tilewall.Incr(ext, "plays")
	return s.timer.Enter(ctx, resolve, ext)
}

func (s *playState) Exit(ctx context.Context) error {
	return s.timer.Exit(ctx)
}

func (d *Driver) stateFor(index int) tilewall.State {
	index %= len(d.playlist.Modules)
	s := &playState{d: d, index: index}
	s.timer = tilewall.After(s.Name(), d.playlist.ModuleDuration, func() tilewall.State {
		return d.stateFor(index + 1)
	})
	return s
}

func (d *Driver) play(index int) error {
	cfg := d.playlist.Modules[index]
	deadline := d.w.clock.Now() + float64(d.lead)/float64(time.Millisecond)
	m := newRunningModule(cfg, deadline, d.w)

	d.mu.Lock()
	d.current = m
	d.index = index
	d.mu.Unlock()

	d.w.log.Info("next module",
		zap.String("module", cfg.Name),
		zap.Int("index", index),
		zap.Int("of", len(d.playlist.Modules)),
		zap.Duration("duration", d.playlist.ModuleDuration))
	if err := d.player.Play(m); err != nil {
		return fmt.Errorf("play %s: %w", cfg.Name, err)
	}
	return nil
}

// Start begins the playlist at its first module.
func (d *Driver) Start(ctx context.Context) error {
	if err := d.machine.Start(ctx); err != nil {
		return err
	}
	return d.machine.TransitionTo(d.stateFor(0))
}

// Stop halts the playlist timer.
func (d *Driver) Stop() { d.machine.Stop() }

// Next skips ahead to the following module now.
func (d *Driver) Next() error {
	d.mu.Lock()
	next := d.index + 1
	d.mu.Unlock()
	return d.machine.TransitionTo(d.stateFor(next))
}

// PlayModule jumps to the named module.
func (d *Driver) PlayModule(name string) error {
	for i, m := range d.playlist.Modules {
		if m.Name == name {
			return d.machine.TransitionTo(d.stateFor(i))
		}
	}
	return fmt.Errorf("module %q not in playlist", name)
}

// Current returns the module most recently handed to the player, or nil.
func (d *Driver) Current() *RunningModule {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current
}

// Machine exposes the playlist machine.
func (d *Driver) Machine() *tilewall.Machine { return d.machine }

// Names lists the playlist's module names in order.
func (d *Driver) Names() []string {
	names := make([]string, len(d.playlist.Modules))
	for i, m := range d.playlist.Modules {
		names[i] = m.Name
	}
	return names
}
