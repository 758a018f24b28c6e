// Package primitives provides the value types shared by every tier of the
// wall: timestamped samples, instance snapshots, wire messages, the bounded
// ring used for prior data, the wall clock abstraction and the playlist
// configuration.
//
// This package uses ONLY the Go standard library so that the sync and
// lifecycle cores can depend on it without pulling transport or config deps.
//
// Core invariants:
//   - Times are float64 milliseconds since the Unix epoch (wall-clock ms)
//   - math.Inf(1) stands for "not closed yet"
//   - Snapshots handed out are copies; callers may mutate them freely
package primitives
