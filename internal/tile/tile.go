// Package tile is the display side of the wall. A Tile mirrors the
// coordinator's state, follows its clock and plays the modules it is told
// to load. Every message and frame is handled on one goroutine.
package tile

import (
	"context"
	"time"

	"github.com/comalice/tilewall"
	"github.com/comalice/tilewall/internal/extensibility"
	"github.com/comalice/tilewall/internal/metrics"
	"github.com/comalice/tilewall/internal/primitives"
	"github.com/comalice/tilewall/player"
	"github.com/comalice/tilewall/statesync"
	"go.uber.org/zap"
)

// Config configures a Tile. Zero values select the defaults.
type Config struct {
	ID                 string
	Clock              primitives.Clock // base clock, adjusted by time messages
	Logger             *zap.Logger
	Metrics            *metrics.Wall
	Renderer           Renderer
	FrameRate          time.Duration // default 16ms
	QueueSize          int           // default 256
	TransitionDuration time.Duration
	Filters            []extensibility.Filter
	MirrorOptions      []statesync.MirrorOption
}

// Tile consumes coordinator messages and renders the showing module.
type Tile struct {
	cfg     Config
	log     *zap.Logger
	clock   *primitives.AdjustableClock
	mirror  *statesync.Mirror
	player  *player.Player
	source  *extensibility.ChannelSource
	handler extensibility.Handler

	lastLoad string
}

// New builds a tile. Nothing runs until Run.
func New(cfg Config) *Tile {
	if cfg.Clock == nil {
		cfg.Clock = primitives.SystemClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Renderer == nil {
		cfg.Renderer = NopRenderer{}
	}
	if cfg.FrameRate == 0 {
		cfg.FrameRate = 16 * time.Millisecond
	}
	if cfg.QueueSize == 0 {
		cfg.QueueSize = 256
	}
	log := cfg.Logger.Named("tile")
	if cfg.ID != "" {
		log = log.With(zap.String("tile", cfg.ID))
	}

	t := &Tile{
		cfg:    cfg,
		log:    log,
		clock:  primitives.NewAdjustableClock(cfg.Clock),
		source: extensibility.NewChannelSource(cfg.QueueSize),
	}

	mopts := []statesync.MirrorOption{
		statesync.WithClock(t.clock),
		statesync.WithLogger(log),
	}
	var popts []tilewall.Option
	if cfg.Metrics != nil {
		m := cfg.Metrics
		mopts = append(mopts, statesync.WithReapHook(func(string) { m.Reaped.Increment() }))
		popts = append(popts,
			tilewall.WithErrorListener(func(error) { m.StateErrors.Increment("tile") }),
			tilewall.WithTransitionHook(func(tilewall.State, tilewall.State) { m.Transitions.Increment("tile") }),
		)
	}
	t.mirror = statesync.NewMirror(append(mopts, cfg.MirrorOptions...)...)
	t.player = player.New(player.Config{
		Name:               "tile",
		Clock:              t.clock,
		Logger:             log,
		TransitionDuration: cfg.TransitionDuration,
	}, popts...)

	t.handler = extensibility.Recovering(
		extensibility.Logging(
			extensibility.Filtered(extensibility.HandlerFunc(t.dispatch), cfg.Filters...),
			log),
		log)
	return t
}

// Deliver queues msg for the loop. It is safe from any goroutine and never
// blocks; it reports false when the queue is full or the tile stopped.
func (t *Tile) Deliver(msg primitives.Message) bool {
	ok := t.source.Push(msg)
	if !ok {
		t.log.Warn("dropping message", zap.String("type", string(msg.Type)))
	}
	return ok
}

// Run processes messages and frames until ctx ends.
func (t *Tile) Run(ctx context.Context) error {
	if err := t.player.Start(ctx); err != nil {
		return err
	}
	defer t.player.Stop()

	frames := extensibility.NewFrameSource(t.clock, t.cfg.FrameRate)
	defer frames.Stop()

	t.log.Info("tile running")
	for {
		select {
		case <-ctx.Done():
			t.source.Close()
			t.log.Info("tile stopped")
			return ctx.Err()
		case msg, ok := <-t.source.Messages():
			if !ok {
				return nil
			}
			t.handler.Handle(msg)
		case now := <-frames.Frames():
			t.Frame(now)
		}
	}
}

// Frame draws the showing module at now.
func (t *Tile) Frame(now float64) {
	if m, ok := t.player.Showing().(*Module); ok {
		m.Frame(now)
	}
	if t.cfg.Metrics != nil {
		t.cfg.Metrics.Instances.Set(float64(t.mirror.Len()), "tile")
	}
}

func (t *Tile) dispatch(msg primitives.Message) {
	if err := msg.Validate(); err != nil {
		t.log.Warn("invalid message", zap.Error(err))
		return
	}
	if t.mirror.Handle(msg) {
		return
	}
	switch msg.Type {
	case primitives.MessageTime:
		t.clock.AdjustTo(msg.Time)
	case primitives.MessageLoadModule:
		t.load(*msg.Load)
	}
}

// load plays the announced module. A repeated announcement of the instance
// already requested, as sent on reconnect, is ignored.
func (t *Tile) load(l primitives.LoadModule) {
	if l.ID == t.lastLoad {
		return
	}
	t.lastLoad = l.ID
	if err := t.player.Play(NewModule(l, t.mirror, t.cfg.Renderer)); err != nil {
		t.log.Error("failed to play module", zap.String("module", l.Module), zap.Error(err))
	}
}

// Clock is the tile clock, aligned to the coordinator.
func (t *Tile) Clock() *primitives.AdjustableClock { return t.clock }

// Mirror exposes the tile's state mirror.
func (t *Tile) Mirror() *statesync.Mirror { return t.mirror }

// Player exposes the tile's module player.
func (t *Tile) Player() *player.Player { return t.player }
