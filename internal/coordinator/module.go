package coordinator

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/comalice/tilewall/internal/primitives"
	"github.com/comalice/tilewall/interpolate"
	"github.com/comalice/tilewall/player"
	"github.com/comalice/tilewall/realtime"
	"github.com/comalice/tilewall/schedule"
	"github.com/comalice/tilewall/statesync"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RunningModule is the coordinator's half of a module instance: it tells
// tiles to load the module, opens the instance in the authority and ticks
// one schedule emitter per channel until disposed.
type RunningModule struct {
	cfg      primitives.ModuleConfig
	id       string
	deadline float64

	authority *statesync.Authority
	runtime   *realtime.Runtime
	out       statesync.Broadcaster
	log       *zap.Logger

	mu       sync.Mutex
	handle   *statesync.Handle
	emitters map[string]*schedule.Emitter
	ticking  bool
	disposed bool
}

var _ player.Module = (*RunningModule)(nil)

func newRunningModule(cfg primitives.ModuleConfig, deadline float64, w *wiring) *RunningModule {
	return &RunningModule{
		cfg:       cfg,
		id:        fmt.Sprintf("%s-%s", cfg.Name, uuid.NewString()),
		deadline:  deadline,
		authority: w.authority,
		runtime:   w.runtime,
		out:       w.out,
		log:       w.log.With(zap.String("module", cfg.Name)),
	}
}

// ID returns the instance id shared with the tiles.
func (m *RunningModule) ID() string { return m.id }

func (m *RunningModule) Name() string      { return m.cfg.Name }
func (m *RunningModule) Deadline() float64 { return m.deadline }

// LoadMessage is the loadModule message announcing this instance. The
// module config travels with it, plus the interpolator of every channel
// under primitives.ChannelsKey.
func (m *RunningModule) LoadMessage() primitives.Message {
	config := make(map[string]any, len(m.cfg.Config)+1)
	for k, v := range m.cfg.Config {
		config[k] = v
	}
	channels := make(map[string]any, len(m.cfg.Channels))
	for name, ch := range m.cfg.Channels {
		channels[name] = ch.Interpolator
	}
	config[primitives.ChannelsKey] = channels
	return primitives.NewLoadMessage(m.id, m.cfg.Name, m.deadline, config)
}

// Instantiate announces the module to every tile and builds its emitters.
func (m *RunningModule) Instantiate(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.out.Broadcast(m.LoadMessage()); err != nil {
		m.log.Warn("failed to announce module", zap.Error(err))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.handle = m.authority.Open(m.id)
	m.emitters = make(map[string]*schedule.Emitter, len(m.cfg.Channels))
	for name, ch := range m.cfg.Channels {
		interp, err := interpolate.Lookup(ch.Interpolator)
		if err != nil {
			return fmt.Errorf("channel %q: %w", name, err)
		}
		e, err := schedule.NewChecked(m.handle, name, schedule.FromConfig(ch.Schedule), schedule.WithInterpolator(interp))
		if err != nil {
			return fmt.Errorf("channel %q: %w", name, err)
		}
		m.emitters[name] = e
	}
	return nil
}

// WillBeShownSoon starts ticking the emitters so keyframes reach the tiles
// ahead of the deadline.
func (m *RunningModule) WillBeShownSoon(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disposed || m.ticking {
		return nil
	}
	for _, name := range m.channelsLocked() {
		m.runtime.AddEmitter(m.emitterKey(name), m.emitters[name])
	}
	m.ticking = true
	return nil
}

func (m *RunningModule) BeginTransitionOut(float64)      {}
func (m *RunningModule) BeginTransitionIn(float64) error { return nil }
func (m *RunningModule) FinishTransitionOut()            {}
func (m *RunningModule) FinishTransitionIn() error       { return nil }
func (m *RunningModule) PerformTransition(context.Context, player.Module, float64) error {
	return nil
}

// Dispose stops the emitters and closes the instance, which tells tiles to
// drop it.
func (m *RunningModule) Dispose() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disposed {
		return
	}
	m.disposed = true
	for _, name := range m.channelsLocked() {
		m.runtime.RemoveEmitter(m.emitterKey(name))
	}
	if m.handle != nil {
		m.handle.Close()
	}
	m.log.Debug("module disposed", zap.String("instance", m.id))
}

func (m *RunningModule) emitterKey(channel string) string {
	return m.id + "/" + channel
}

func (m *RunningModule) channelsLocked() []string {
	names := make([]string, 0, len(m.emitters))
	for n := range m.emitters {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
