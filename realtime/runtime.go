package realtime

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/comalice/tilewall/internal/metrics"
	"github.com/comalice/tilewall/internal/primitives"
	"github.com/comalice/tilewall/statesync"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var (
	// ErrQueueFull is returned when a tick's command batch is at capacity.
	ErrQueueFull = errors.New("command queue full")
	// ErrRunning is returned by a second Start.
	ErrRunning = errors.New("runtime already running")
)

// Advancer is anything that moves forward with the tick clock.
// *schedule.Emitter satisfies it.
type Advancer interface {
	Advance(now, delta float64) (any, bool)
}

// AdvanceFunc adapts a function to Advancer.
type AdvanceFunc func(now, delta float64)

// Advance calls f.
func (f AdvanceFunc) Advance(now, delta float64) (any, bool) {
	f(now, delta)
	return nil, false
}

// Stepper applies pending lifecycle transitions. *tilewall.Machine
// satisfies it.
type Stepper interface {
	Step(ctx context.Context) bool
}

// Config configures the tick loop.
type Config struct {
	TickRate           time.Duration // Fixed tick rate (default 100ms, 10 FPS)
	MaxCommandsPerTick int           // Command queue capacity (default 1000)
}

type keyed[T any] struct {
	key string
	val T
}

// Runtime is the coordinator tick loop.
type Runtime struct {
	tickRate time.Duration
	clock    primitives.Clock
	log      *zap.Logger
	metrics  *metrics.Wall
	overrun  *rate.Limiter

	authority   *statesync.Authority
	broadcaster statesync.Broadcaster

	regMu    sync.Mutex
	emitters []keyed[Advancer]
	machines []keyed[Stepper]

	// Command batching
	batchMu     sync.Mutex
	batch       []CommandWithMeta
	maxCommands int
	sequenceNum uint64
	tickNum     uint64
	lastTime    float64

	// Control
	runMu      sync.Mutex
	ticker     *time.Ticker
	tickCtx    context.Context
	tickCancel context.CancelFunc
	stopped    chan struct{}
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithClock sets the clock read at every tick.
func WithClock(c primitives.Clock) Option {
	return func(rt *Runtime) {
		if c != nil {
			rt.clock = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(rt *Runtime) {
		if l != nil {
			rt.log = l
		}
	}
}

// WithMetrics records tick durations and overruns.
func WithMetrics(m *metrics.Wall) Option {
	return func(rt *Runtime) {
		rt.metrics = m
	}
}

// WithAuthority flushes a in the broadcast phase.
func WithAuthority(a *statesync.Authority) Option {
	return func(rt *Runtime) {
		rt.authority = a
	}
}

// WithBroadcaster delivers the authority flush.
func WithBroadcaster(b statesync.Broadcaster) Option {
	return func(rt *Runtime) {
		rt.broadcaster = b
	}
}

// WithOverrunLimit bounds overrun warnings to one per interval.
func WithOverrunLimit(every time.Duration) Option {
	return func(rt *Runtime) {
		rt.overrun = rate.NewLimiter(rate.Every(every), 1)
	}
}

// NewRuntime creates a stopped tick loop.
func NewRuntime(cfg Config, opts ...Option) *Runtime {
	if cfg.MaxCommandsPerTick == 0 {
		cfg.MaxCommandsPerTick = 1000
	}
	if cfg.TickRate == 0 {
		cfg.TickRate = 100 * time.Millisecond
	}
	rt := &Runtime{
		tickRate:    cfg.TickRate,
		clock:       primitives.SystemClock{},
		log:         zap.NewNop(),
		overrun:     rate.NewLimiter(rate.Every(5*time.Second), 1),
		batch:       make([]CommandWithMeta, 0, cfg.MaxCommandsPerTick),
		maxCommands: cfg.MaxCommandsPerTick,
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

// Start begins ticking until ctx is cancelled or Stop is called.
func (rt *Runtime) Start(ctx context.Context) error {
	rt.runMu.Lock()
	defer rt.runMu.Unlock()
	if rt.ticker != nil {
		return ErrRunning
	}
	rt.tickCtx, rt.tickCancel = context.WithCancel(ctx)
	rt.ticker = time.NewTicker(rt.tickRate)
	rt.stopped = make(chan struct{})

	go rt.tickLoop(rt.tickCtx, rt.ticker, rt.stopped)
	return nil
}

// Stop halts the loop and waits for the current tick to finish.
func (rt *Runtime) Stop() error {
	rt.runMu.Lock()
	defer rt.runMu.Unlock()
	if rt.ticker == nil {
		return nil
	}
	rt.tickCancel()
	rt.ticker.Stop()
	<-rt.stopped
	rt.ticker = nil
	return nil
}

// Done is closed when the running loop exits. Nil when not started.
func (rt *Runtime) Done() <-chan struct{} {
	rt.runMu.Lock()
	defer rt.runMu.Unlock()
	return rt.stopped
}

func (rt *Runtime) tickLoop(ctx context.Context, ticker *time.Ticker, stopped chan struct{}) {
	defer close(stopped)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rt.TickOnce(ctx, rt.clock.Now())
		}
	}
}

// Submit queues cmd for the next tick.
func (rt *Runtime) Submit(cmd Command) error {
	return rt.SubmitWithPriority(cmd, 0)
}

// SubmitWithPriority queues cmd ahead of lower priorities.
func (rt *Runtime) SubmitWithPriority(cmd Command, priority int) error {
	rt.batchMu.Lock()
	defer rt.batchMu.Unlock()

	if len(rt.batch) >= rt.maxCommands {
		return ErrQueueFull
	}
	rt.batch = append(rt.batch, CommandWithMeta{
		Command:     cmd,
		SequenceNum: rt.sequenceNum,
		Priority:    priority,
	})
	rt.sequenceNum++
	return nil
}

// AddEmitter registers a under key, replacing any previous one.
func (rt *Runtime) AddEmitter(key string, a Advancer) {
	rt.regMu.Lock()
	defer rt.regMu.Unlock()
	rt.emitters = put(rt.emitters, key, a)
}

// RemoveEmitter unregisters key.
func (rt *Runtime) RemoveEmitter(key string) {
	rt.regMu.Lock()
	defer rt.regMu.Unlock()
	rt.emitters = remove(rt.emitters, key)
}

// AddMachine registers s under key, replacing any previous one.
func (rt *Runtime) AddMachine(key string, s Stepper) {
	rt.regMu.Lock()
	defer rt.regMu.Unlock()
	rt.machines = put(rt.machines, key, s)
}

// RemoveMachine unregisters key.
func (rt *Runtime) RemoveMachine(key string) {
	rt.regMu.Lock()
	defer rt.regMu.Unlock()
	rt.machines = remove(rt.machines, key)
}

// Emitters returns the registered emitter keys in tick order.
func (rt *Runtime) Emitters() []string {
	rt.regMu.Lock()
	defer rt.regMu.Unlock()
	keys := make([]string, len(rt.emitters))
	for i, e := range rt.emitters {
		keys[i] = e.key
	}
	return keys
}

// TickNumber returns the number of completed ticks.
func (rt *Runtime) TickNumber() uint64 {
	rt.batchMu.Lock()
	defer rt.batchMu.Unlock()
	return rt.tickNum
}

// TickRate returns the configured tick period.
func (rt *Runtime) TickRate() time.Duration { return rt.tickRate }

func put[T any](list []keyed[T], key string, v T) []keyed[T] {
	for i := range list {
		if list[i].key == key {
			list[i].val = v
			return list
		}
	}
	return append(list, keyed[T]{key: key, val: v})
}

func remove[T any](list []keyed[T], key string) []keyed[T] {
	for i := range list {
		if list[i].key == key {
			return append(list[:i:i], list[i+1:]...)
		}
	}
	return list
}
