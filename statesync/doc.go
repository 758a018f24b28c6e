// Package statesync keeps a coordinator's authoritative animation state and
// the tile-side mirrors of it in agreement.
//
// The coordinator owns an Authority. Content code opens a Handle per module
// instance and writes keyframes with Store; every tick the authority is
// flushed to all tiles as a full snapshot (no deltas, no acks). Re-applying
// a snapshot is harmless because sample times disambiguate.
//
// Each tile owns a Mirror. Apply folds an inbound snapshot into per-channel
// Entries, buffering data for channels the local module has not defined yet
// (prior data) and replaying it on Define. Stale instances are reaped only
// when a new instance is opened, a quiescent point where nothing is mid-render.
//
// Basic usage:
//
//	// coordinator
//	auth := statesync.NewAuthority()
//	h := auth.Open(id)
//	h.Store("hands", now, angle)
//	_ = auth.Send(hub)
//
//	// tile
//	mirror := statesync.NewMirror(statesync.WithClock(clock))
//	view := mirror.Open(id)
//	hands, err := view.Define("hands", interpolate.Lerp)
//	...
//	angle, ok := hands.ValueAt(clock.Now())
//
// Every method is safe for concurrent use, though both sides are designed
// around a single logical thread and no correctness property depends on
// goroutines.
package statesync
