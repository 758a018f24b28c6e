package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCommand(args ...string) *cobra.Command {
	cmd := &cobra.Command{Use: "test"}
	AddCommonFlags(cmd.Flags())
	cmd.Flags().String("tick-rate", "100ms", "")
	_ = cmd.Flags().Parse(args)
	return cmd
}

func TestLoadDefaults(t *testing.T) {
	v, err := Load(newCommand())
	require.NoError(t, err)
	assert.Equal(t, "info", v.GetString("log"))
	assert.Equal(t, "json", v.GetString("codec"))
}

func TestLoadLayers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wall.yaml")
	require.NoError(t, os.WriteFile(path, []byte("codec: msgpack\nlog: debug\ntick-rate: 50ms\n"), 0o644))
	t.Setenv("TILEWALL_TICK_RATE", "20ms")

	v, err := Load(newCommand("--config", path, "--log", "warn"))
	require.NoError(t, err)
	assert.Equal(t, "warn", v.GetString("log"), "flag beats file")
	assert.Equal(t, "msgpack", v.GetString("codec"), "file beats default")
	assert.Equal(t, "20ms", v.GetString("tick-rate"), "env beats file")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(newCommand("--config", filepath.Join(t.TempDir(), "nope.yaml")))
	assert.Error(t, err)
}
