package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesJSONWithTimestamp(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.log")
	l, err := New("info", []string{out}, []string{out})
	require.NoError(t, err)

	l.Debug("hidden")
	l.Info("shown")
	require.NoError(t, l.Sync())

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, `"msg":"shown"`)
	assert.Contains(t, text, `"timestamp":`)
	assert.False(t, strings.Contains(text, "hidden"), "debug should be filtered at info")
}

func TestNewRejectsBadLevel(t *testing.T) {
	_, err := New("loud", nil, nil)
	assert.Error(t, err)
	assert.Panics(t, func() { Must("loud") })
}
