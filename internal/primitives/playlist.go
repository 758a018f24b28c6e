// PlaylistConfig is the coordinator's rotation: which modules run, for how
// long, and the schedule each of their channels emits.
// Validation ensures modules exist with unique names, every channel has a
// schedule, durations are non-negative and each schedule advances time.

package primitives

import (
	"errors"
	"fmt"
	"time"
)

// PlaylistConfig defines the module rotation.
type PlaylistConfig struct {
	// ModuleDuration is how long each module is shown before the next one.
	ModuleDuration time.Duration  `json:"moduleDuration" yaml:"moduleDuration"`
	Modules        []ModuleConfig `json:"modules" yaml:"modules"`
}

// ModuleConfig defines one module of the rotation.
type ModuleConfig struct {
	Name     string                   `json:"name" yaml:"name"`
	Channels map[string]ChannelConfig `json:"channels" yaml:"channels"`
	Config   map[string]any           `json:"config,omitempty" yaml:"config,omitempty"`
}

// ChannelConfig defines the schedule of one channel and how tiles blend it.
type ChannelConfig struct {
	Interpolator string               `json:"interpolator,omitempty" yaml:"interpolator,omitempty"`
	Schedule     []ScheduleItemConfig `json:"schedule" yaml:"schedule"`
}

// ScheduleItemConfig is one step of a schedule. Duration is in milliseconds.
type ScheduleItemConfig struct {
	Duration float64 `json:"dur" yaml:"dur"`
	State    any     `json:"state" yaml:"state"`
}

// Validate validates the playlist:
// - At least one module, each with a unique non-empty name
// - Every channel has a non-empty schedule
// - Item durations are non-negative and sum to more than zero
func (p *PlaylistConfig) Validate() error {
	if p.ModuleDuration < 0 {
		return errors.New("moduleDuration cannot be negative")
	}
	if len(p.Modules) == 0 {
		return errors.New("playlist requires at least one module")
	}
	seen := make(map[string]bool, len(p.Modules))
	for i := range p.Modules {
		m := &p.Modules[i]
		if m.Name == "" {
			return fmt.Errorf("module %d: name is required", i)
		}
		if seen[m.Name] {
			return fmt.Errorf("duplicate module name %q", m.Name)
		}
		seen[m.Name] = true
		if err := m.Validate(); err != nil {
			return fmt.Errorf("module %q validation failed: %w", m.Name, err)
		}
	}
	return nil
}

// Validate checks every channel schedule of the module.
func (m *ModuleConfig) Validate() error {
	for name, ch := range m.Channels {
		if name == "" {
			return errors.New("channel name cannot be empty")
		}
		if err := ch.Validate(); err != nil {
			return fmt.Errorf("channel %q: %w", name, err)
		}
	}
	return nil
}

// Validate checks that the schedule advances time.
func (c *ChannelConfig) Validate() error {
	if len(c.Schedule) == 0 {
		return errors.New("schedule cannot be empty")
	}
	var total float64
	for i, item := range c.Schedule {
		if item.Duration < 0 {
			return fmt.Errorf("item %d: negative duration %v", i, item.Duration)
		}
		total += item.Duration
	}
	if total <= 0 {
		return errors.New("schedule durations must sum to more than zero")
	}
	return nil
}

// Find returns the module named name.
func (p *PlaylistConfig) Find(name string) (*ModuleConfig, error) {
	for i := range p.Modules {
		if p.Modules[i].Name == name {
			return &p.Modules[i], nil
		}
	}
	return nil, fmt.Errorf("module %q not in playlist", name)
}
