// Package benchmarks provides shared helpers for benchmark tests.
package benchmarks

import (
	"fmt"
	"time"

	"github.com/comalice/tilewall/internal/primitives"
	"github.com/comalice/tilewall/statesync"
	"gopkg.in/yaml.v3"
)

// GenSnapshot creates a snapshot of instances x channels numeric samples
// stamped at t.
func GenSnapshot(instances, channels int, t float64) primitives.Snapshot {
	if instances < 1 {
		instances = 1
	}
	if channels < 1 {
		channels = 1
	}
	snap := make(primitives.Snapshot, instances)
	for i := 0; i < instances; i++ {
		chans := make(map[string]primitives.Sample, channels)
		for c := 0; c < channels; c++ {
			chans[fmt.Sprintf("c%d", c)] = primitives.Sample{Time: t, Payload: float64(i*channels + c)}
		}
		snap[fmt.Sprintf("m%d", i)] = chans
	}
	return snap
}

// GenAuthority opens instances x channels records in a fresh authority.
func GenAuthority(instances, channels int) (*statesync.Authority, []*statesync.Handle) {
	a := statesync.NewAuthority()
	handles := make([]*statesync.Handle, instances)
	for i := range handles {
		h := a.Open(fmt.Sprintf("m%d", i))
		for c := 0; c < channels; c++ {
			h.Store(fmt.Sprintf("c%d", c), 0, float64(c))
		}
		handles[i] = h
	}
	return a, handles
}

// GenPlaylist creates a playlist of n modules, each with one looping
// numeric channel of steps items.
func GenPlaylist(n, steps int) primitives.PlaylistConfig {
	if n < 1 {
		n = 1
	}
	if steps < 1 {
		steps = 1
	}
	cfg := primitives.PlaylistConfig{
		ModuleDuration: 30 * time.Second,
		Modules:        make([]primitives.ModuleConfig, n),
	}
	for i := range cfg.Modules {
		items := make([]primitives.ScheduleItemConfig, steps)
		for s := range items {
			items[s] = primitives.ScheduleItemConfig{Duration: 100, State: float64(s)}
		}
		cfg.Modules[i] = primitives.ModuleConfig{
			Name: fmt.Sprintf("module%d", i),
			Channels: map[string]primitives.ChannelConfig{
				"value": {Interpolator: "lerp", Schedule: items},
			},
		}
	}
	return cfg
}

// GenPlaylistYAML generates YAML bytes for GenPlaylist(n, steps).
func GenPlaylistYAML(n, steps int) []byte {
	data, err := yaml.Marshal(GenPlaylist(n, steps))
	if err != nil {
		panic(err)
	}
	return data
}
