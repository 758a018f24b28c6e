// Package realtime provides the coordinator's fixed-rate tick loop.
//
// Every tick runs the same phases in the same order:
//  1. Commands submitted since the last tick, by priority then submission order
//  2. Emitters (schedule emitters, content tickers) advance, writing keyframes
//  3. Lifecycle machines apply at most one pending transition each
//  4. The authority is flushed and broadcast to every tile
//
// # Example Usage
//
//	rt := realtime.NewRuntime(realtime.Config{TickRate: 100 * time.Millisecond},
//		realtime.WithAuthority(auth),
//		realtime.WithBroadcaster(hub),
//		realtime.WithLogger(log))
//	rt.AddEmitter("clock/hands", emitter)
//	rt.AddMachine("playlist", machine)
//	rt.Start(ctx)
//	rt.Submit(func(ctx context.Context, now float64) { ... })
//
// # Isolation
//
// A panic in one emitter, machine or command is recovered and logged; the
// remaining work of the tick still runs and the loop keeps ticking. A tick
// that outlasts TickRate is logged (rate limited) and counted.
//
// # Command Ordering Guarantees
//
// Commands are ordered deterministically using:
//  1. Priority (higher priority processed first)
//  2. Sequence number (FIFO for same priority)
//  3. Stable sorting (preserves relative order)
//
// Emitters and machines run in the order they were added, so given the same
// submissions and the same clock readings two runs produce the same writes.
//
// # Testing
//
// TickOnce runs one tick synchronously at a caller-chosen time and is what
// the package tests and benchmarks drive instead of the ticker.
package realtime
