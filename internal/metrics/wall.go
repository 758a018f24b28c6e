package metrics

import "github.com/prometheus/client_golang/prometheus"

// Wall groups every metric the coordinator and tiles export.
type Wall struct {
	TickDuration  *Histogram
	TickOverruns  *Counter
	SnapshotBytes *Histogram
	Tiles         *Gauge
	Instances     *Gauge
	Dropped       *Counter
	Reaped        *Counter
	Transitions   *Counter
	StateErrors   *Counter
}

// New registers the wall metrics with reg. Pass prometheus.DefaultRegisterer
// in binaries and a fresh prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Wall {
	return &Wall{
		TickDuration: NewHistogram(reg, "tick_duration_seconds", "Coordinator tick processing time",
			[]float64{.001, .005, .01, .025, .05, .1, .25}, []string{}),
		TickOverruns:  NewCounter(reg, "tick_overruns_total", "Ticks that took longer than the tick rate", []string{}),
		SnapshotBytes: NewHistogram(reg, "snapshot_bytes", "Encoded size of broadcast messages", prometheus.ExponentialBuckets(64, 4, 8), []string{"type"}),
		Tiles:         NewGauge(reg, "tiles_connected", "Tiles connected to the coordinator", []string{}),
		Instances:     NewGauge(reg, "instances", "Open module instances", []string{"side"}),
		Dropped:       NewCounter(reg, "messages_dropped_total", "Messages dropped on a full tile queue", []string{}),
		Reaped:        NewCounter(reg, "instances_reaped_total", "Stale mirror instances reaped", []string{}),
		Transitions:   NewCounter(reg, "transitions_total", "Lifecycle transitions applied", []string{"machine"}),
		StateErrors:   NewCounter(reg, "state_errors_total", "Lifecycle Enter/Exit failures", []string{"machine"}),
	}
}
