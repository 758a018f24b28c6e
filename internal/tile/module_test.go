package tile

import (
	"context"
	"testing"

	"github.com/comalice/tilewall/internal/primitives"
	"github.com/comalice/tilewall/statesync"
	"github.com/comalice/tilewall/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModuleRejectsUnknownInterpolator(t *testing.T) {
	mirror := statesync.NewMirror(statesync.WithClock(testutil.NewManualClock(0)))
	m := NewModule(*loadMsg("x-1", "x", 0, map[string]any{"c": "cubic"}).Load, mirror, nil)
	err := m.Instantiate(context.Background())
	assert.ErrorContains(t, err, "unknown interpolator")
}

func TestModuleDrawsOnlyWhileVisible(t *testing.T) {
	clock := testutil.NewManualClock(1_000)
	mirror := statesync.NewMirror(statesync.WithClock(clock))
	rec := &Recorder{}
	m := NewModule(*loadMsg("x-1", "x", 0, map[string]any{"a": "lerp", "b": "hold"}).Load, mirror, rec)
	require.NoError(t, m.Instantiate(context.Background()))

	mirror.Apply(primitives.Snapshot{"x-1": {"a": {Time: 1_000, Payload: 0.0}}})
	mirror.Apply(primitives.Snapshot{"x-1": {"a": {Time: 2_000, Payload: 10.0}}})

	m.Frame(1_700)
	_, n := rec.Last()
	assert.Zero(t, n)

	require.NoError(t, m.BeginTransitionIn(0))
	m.Frame(1_700)
	f, n := rec.Last()
	assert.Equal(t, uint64(1), n)
	assert.InDelta(t, 5.0, f.Values["a"], 1e-9)
	assert.NotContains(t, f.Values, "b", "channel without data is left out")

	m.FinishTransitionOut()
	m.Frame(1_800)
	_, n = rec.Last()
	assert.Equal(t, uint64(1), n)
}

func TestModuleDisposeClosesView(t *testing.T) {
	clock := testutil.NewManualClock(0)
	mirror := statesync.NewMirror(statesync.WithClock(clock))
	m := NewModule(*loadMsg("x-1", "x", 0, nil).Load, mirror, nil)
	require.NoError(t, m.Instantiate(context.Background()))
	m.Dispose()
	m.Dispose()

	clock.AdvanceMillis(5_001)
	mirror.Open("y")
	assert.False(t, mirror.Has("x-1"))
}
