package production

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/comalice/tilewall/internal/primitives"
	"github.com/comalice/tilewall/interpolate"
	"gopkg.in/yaml.v3"
)

// LoadPlaylist reads a playlist file. Files ending in .json are parsed as
// JSON, with moduleDuration in nanoseconds; anything else as YAML, where
// moduleDuration accepts "30s" style durations.
func LoadPlaylist(path string) (primitives.PlaylistConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return primitives.PlaylistConfig{}, fmt.Errorf("playlist %q: %w", path, os.ErrNotExist)
		}
		return primitives.PlaylistConfig{}, fmt.Errorf("read %s: %w", path, err)
	}
	format := "yaml"
	if strings.EqualFold(filepath.Ext(path), ".json") {
		format = "json"
	}
	return ParsePlaylist(data, format)
}

// ParsePlaylist decodes and validates a playlist in the given format.
func ParsePlaylist(data []byte, format string) (primitives.PlaylistConfig, error) {
	var cfg primitives.PlaylistConfig
	switch format {
	case "json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return primitives.PlaylistConfig{}, fmt.Errorf("json unmarshal: %w", err)
		}
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return primitives.PlaylistConfig{}, fmt.Errorf("yaml unmarshal: %w", err)
		}
	default:
		return primitives.PlaylistConfig{}, fmt.Errorf("unknown playlist format %q", format)
	}
	if err := cfg.Validate(); err != nil {
		return primitives.PlaylistConfig{}, fmt.Errorf("config validation after load: %w", err)
	}
	for _, m := range cfg.Modules {
		for name, ch := range m.Channels {
			if _, err := interpolate.Lookup(ch.Interpolator); err != nil {
				return primitives.PlaylistConfig{}, fmt.Errorf("module %q channel %q: %w", m.Name, name, err)
			}
		}
	}
	return cfg, nil
}

// SavePlaylist writes cfg as YAML, creating the directory if needed.
func SavePlaylist(path string, cfg primitives.PlaylistConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(path), err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("yaml marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
