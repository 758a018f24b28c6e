package realtime

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// TickOnce runs one complete tick at time now (ms). The loop calls it on
// every ticker fire; tests call it directly.
func (rt *Runtime) TickOnce(ctx context.Context, now float64) {
	start := time.Now()

	rt.batchMu.Lock()
	delta := now - rt.lastTime
	if rt.tickNum == 0 || delta < 0 {
		delta = float64(rt.tickRate) / float64(time.Millisecond)
	}
	rt.batchMu.Unlock()

	// Phase 1: commands, deterministic order
	cmds := rt.collectCommands()
	sortCommands(cmds)
	for _, c := range cmds {
		rt.guard("command", "", func() { c.Command(ctx, now) })
	}

	// Phase 2: emitters write keyframes for the next tick
	emitters, machines := rt.registered()
	for _, e := range emitters {
		rt.guard("emitter", e.key, func() { e.val.Advance(now, delta) })
	}

	// Phase 3: lifecycle machines
	for _, m := range machines {
		rt.guard("machine", m.key, func() { m.val.Step(ctx) })
	}

	// Phase 4: broadcast
	if rt.authority != nil && rt.broadcaster != nil {
		if err := rt.authority.Send(rt.broadcaster); err != nil {
			rt.log.Debug("broadcast failed", zap.Error(err))
		}
	}

	rt.batchMu.Lock()
	rt.tickNum++
	rt.lastTime = now
	tick := rt.tickNum
	rt.batchMu.Unlock()

	rt.observe(tick, time.Since(start))
}

func (rt *Runtime) collectCommands() []CommandWithMeta {
	rt.batchMu.Lock()
	defer rt.batchMu.Unlock()

	cmds := rt.batch
	rt.batch = make([]CommandWithMeta, 0, rt.maxCommands)
	return cmds
}

func (rt *Runtime) registered() ([]keyed[Advancer], []keyed[Stepper]) {
	rt.regMu.Lock()
	defer rt.regMu.Unlock()
	emitters := make([]keyed[Advancer], len(rt.emitters))
	copy(emitters, rt.emitters)
	machines := make([]keyed[Stepper], len(rt.machines))
	copy(machines, rt.machines)
	return emitters, machines
}

// guard runs fn, recovering a panic so one faulty instance cannot stop the
// loop.
func (rt *Runtime) guard(kind, key string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			rt.log.Error("recovered panic in tick",
				zap.String("kind", kind),
				zap.String("key", key),
				zap.Any("panic", r))
		}
	}()
	fn()
}

func (rt *Runtime) observe(tick uint64, took time.Duration) {
	if rt.metrics != nil {
		rt.metrics.TickDuration.Observe(took.Seconds())
	}
	if took <= rt.tickRate {
		return
	}
	if rt.metrics != nil {
		rt.metrics.TickOverruns.Increment()
	}
	if rt.overrun.Allow() {
		rt.log.Warn("tick overran its budget",
			zap.Uint64("tick", tick),
			zap.Duration("took", took),
			zap.Duration("budget", rt.tickRate))
	}
}
