// Package coordinator assembles the wall's server: the tick loop feeding
// the authority, the playlist driving the module player, and the HTTP
// surface tiles and operators talk to.
package coordinator

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/comalice/tilewall"
	"github.com/comalice/tilewall/internal/metrics"
	"github.com/comalice/tilewall/internal/primitives"
	"github.com/comalice/tilewall/internal/production"
	"github.com/comalice/tilewall/player"
	"github.com/comalice/tilewall/realtime"
	"github.com/comalice/tilewall/statesync"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Config configures a Coordinator. Zero values select the defaults.
type Config struct {
	Addr     string
	Playlist primitives.PlaylistConfig
	Codec    production.Codec

	TickRate           time.Duration // default 100ms
	Lead               time.Duration // default 5s
	TransitionDuration time.Duration // default 5s
	TimeInterval       time.Duration // default 10s
	QueueSize          int

	Clock    primitives.Clock
	Logger   *zap.Logger
	Registry *prometheus.Registry
}

// Coordinator owns every server-side component.
type Coordinator struct {
	cfg     Config
	log     *zap.Logger
	metrics *metrics.Wall

	authority *statesync.Authority
	hub       *production.Hub
	runtime   *realtime.Runtime
	player    *player.Player
	driver    *Driver
	router    *gin.Engine
	server    *http.Server
}

// New wires a coordinator. Nothing runs until Run or Start.
func New(cfg Config) (*Coordinator, error) {
	if err := cfg.Playlist.Validate(); err != nil {
		return nil, err
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.Codec == nil {
		cfg.Codec = production.JSONCodec{}
	}
	if cfg.TimeInterval == 0 {
		cfg.TimeInterval = 10 * time.Second
	}
	if cfg.Clock == nil {
		cfg.Clock = primitives.SystemClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.NewRegistry()
	}

	c := &Coordinator{cfg: cfg, log: cfg.Logger.Named("coordinator")}
	c.metrics = metrics.New(cfg.Registry)
	c.authority = statesync.NewAuthority(statesync.WithAuthorityLogger(cfg.Logger.Named("authority")))
	c.hub = production.NewHub(cfg.Codec,
		production.WithHubLogger(cfg.Logger.Named("hub")),
		production.WithHubMetrics(c.metrics),
		production.WithQueueSize(cfg.QueueSize),
		production.WithOnConnect(c.greeting))
	c.runtime = realtime.NewRuntime(realtime.Config{TickRate: cfg.TickRate},
		realtime.WithClock(cfg.Clock),
		realtime.WithLogger(cfg.Logger.Named("tick")),
		realtime.WithMetrics(c.metrics),
		realtime.WithAuthority(c.authority),
		realtime.WithBroadcaster(c.hub))

	c.player = player.New(player.Config{
		Name:               "player",
		Clock:              cfg.Clock,
		Logger:             cfg.Logger,
		TransitionDuration: cfg.TransitionDuration,
		ManualDrive:        true,
	}, c.machineOptions("player")...)

	w := &wiring{
		authority: c.authority,
		runtime:   c.runtime,
		out:       c.hub,
		clock:     cfg.Clock,
		log:       cfg.Logger.Named("playlist"),
	}
	c.driver = newDriver(DriverConfig{Playlist: cfg.Playlist, Lead: cfg.Lead, ManualDrive: true},
		c.player, w, c.machineOptions("playlist")...)

	c.runtime.AddMachine("playlist", c.driver.Machine())
	c.runtime.AddMachine("player", c.player.Machine())
	c.runtime.AddEmitter("instances", realtime.AdvanceFunc(func(float64, float64) {
		c.metrics.Instances.Set(float64(c.authority.Len()), "coordinator")
	}))

	c.router = c.routes()
	c.server = &http.Server{Addr: cfg.Addr, Handler: c.router, ReadHeaderTimeout: 10 * time.Second}
	return c, nil
}

func (c *Coordinator) machineOptions(name string) []tilewall.Option {
	return []tilewall.Option{
		tilewall.WithErrorListener(func(error) { c.metrics.StateErrors.Increment(name) }),
		tilewall.WithTransitionHook(func(tilewall.State, tilewall.State) { c.metrics.Transitions.Increment(name) }),
	}
}

// greeting brings a newly connected tile up to date: the coordinator clock
// and the module it should be showing.
func (c *Coordinator) greeting() []primitives.Message {
	msgs := []primitives.Message{primitives.NewTimeMessage(c.cfg.Clock.Now())}
	if m := c.driver.Current(); m != nil {
		msgs = append(msgs, m.LoadMessage())
	}
	return msgs
}

// Start launches the tick loop and the playlist without serving HTTP.
func (c *Coordinator) Start(ctx context.Context) error {
	if err := c.player.Start(ctx); err != nil {
		return err
	}
	if err := c.driver.Start(ctx); err != nil {
		return err
	}
	if err := c.runtime.Start(ctx); err != nil {
		return err
	}
	go c.announceTime(ctx)
	c.log.Info("coordinator started",
		zap.Int("modules", len(c.cfg.Playlist.Modules)),
		zap.String("codec", c.cfg.Codec.Name()))
	return nil
}

// Run starts everything and serves HTTP until ctx is done.
func (c *Coordinator) Run(ctx context.Context) error {
	if err := c.Start(ctx); err != nil {
		return err
	}
	defer c.Stop()

	errCh := make(chan error, 1)
	go func() {
		c.log.Info("listening", zap.String("addr", c.cfg.Addr))
		errCh <- c.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = c.hub.Close()
	if err := c.server.Shutdown(shutdown); err != nil {
		return err
	}
	return nil
}

// Stop halts the tick loop, machines and hub.
func (c *Coordinator) Stop() {
	_ = c.runtime.Stop()
	c.driver.Stop()
	c.player.Stop()
	_ = c.hub.Close()
}

func (c *Coordinator) announceTime(ctx context.Context) {
	t := time.NewTicker(c.cfg.TimeInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := c.hub.Broadcast(primitives.NewTimeMessage(c.cfg.Clock.Now())); err != nil {
				c.log.Debug("time broadcast failed", zap.Error(err))
			}
		}
	}
}

// Next skips to the following module at the start of the next tick.
func (c *Coordinator) Next() error {
	return c.runtime.SubmitWithPriority(func(context.Context, float64) {
		if err := c.driver.Next(); err != nil {
			c.log.Warn("skip failed", zap.Error(err))
		}
	}, 1)
}

// Status reports the current state of the wall.
func (c *Coordinator) Status() production.Status {
	m := c.driver.Machine()
	return production.Status{
		Time:      c.cfg.Clock.Now(),
		Tick:      c.runtime.TickNumber(),
		Machine:   m.Name(),
		State:     tilewall.StateName(m.Current()),
		Epoch:     m.Epoch(),
		Module:    c.player.Showing().Name(),
		Playlist:  c.driver.Names(),
		Tiles:     c.hub.Tiles(),
		Instances: c.authority.Snapshot(),
		Context:   m.Context().Snapshot(),
	}
}

// Handler returns the HTTP surface, for embedding or tests.
func (c *Coordinator) Handler() http.Handler { return c.router }

// Hub exposes the tile hub.
func (c *Coordinator) Hub() *production.Hub { return c.hub }

// Player exposes the module player.
func (c *Coordinator) Player() *player.Player { return c.player }

// Runtime exposes the tick loop.
func (c *Coordinator) Runtime() *realtime.Runtime { return c.runtime }
