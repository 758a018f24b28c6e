package tile

import (
	"context"
	"testing"
	"time"

	"github.com/comalice/tilewall/internal/extensibility"
	"github.com/comalice/tilewall/internal/metrics"
	"github.com/comalice/tilewall/internal/primitives"
	"github.com/comalice/tilewall/testutil"
	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadMsg(id, module string, deadline float64, channels map[string]any) primitives.Message {
	return primitives.NewLoadMessage(id, module, deadline, map[string]any{primitives.ChannelsKey: channels})
}

func runTile(t *testing.T, cfg Config) *Tile {
	t.Helper()
	if cfg.FrameRate == 0 {
		cfg.FrameRate = 2 * time.Millisecond
	}
	if cfg.TransitionDuration == 0 {
		cfg.TransitionDuration = time.Millisecond
	}
	tl := New(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tl.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return tl
}

func TestTileRendersLoadedModule(t *testing.T) {
	clock := testutil.NewManualClock(10_000)
	rec := &Recorder{}
	tl := runTile(t, Config{Clock: clock, Renderer: rec})

	// state arrives before the load and is replayed on define
	require.True(t, tl.Deliver(primitives.NewStateMessage(primitives.Snapshot{
		"clock-1": {"hand": {Time: 9_000, Payload: 45.0}},
	})))
	require.True(t, tl.Deliver(loadMsg("clock-1", "clock", clock.Now(), map[string]any{"hand": "lerp"})))

	testutil.WaitFor(t, 2*time.Second, func() bool { return tl.Player().Showing().Name() == "clock" }, "clock on screen")
	testutil.WaitFor(t, 2*time.Second, func() bool {
		f, n := rec.Last()
		return n > 0 && f.Values["hand"] == 45.0
	}, "hand rendered")

	f, _ := rec.Last()
	assert.Equal(t, "clock-1", f.Instance)
	assert.Equal(t, "clock", f.Module)
}

func TestTileFollowsCoordinatorClock(t *testing.T) {
	clock := testutil.NewManualClock(1_000)
	tl := runTile(t, Config{Clock: clock})

	require.True(t, tl.Deliver(primitives.NewTimeMessage(5_000)))
	testutil.WaitFor(t, time.Second, func() bool { return tl.Clock().Now() == 5_000 }, "clock adjusted")
	assert.Equal(t, 4_000.0, tl.Clock().Offset())
}

func TestTileFiltersMessages(t *testing.T) {
	clock := testutil.NewManualClock(1_000)
	filters, err := extensibility.ParseFilters([]string{"type != time"})
	require.NoError(t, err)
	tl := runTile(t, Config{Clock: clock, Filters: filters})

	tl.Deliver(primitives.NewTimeMessage(5_000))
	tl.Deliver(primitives.NewStateMessage(primitives.Snapshot{"a": {"x": {Time: 1_000, Payload: 1}}}))

	testutil.WaitFor(t, time.Second, func() bool { return tl.Mirror().Has("a") }, "state applied")
	assert.Equal(t, 0.0, tl.Clock().Offset())
}

func TestTileIgnoresRepeatedLoad(t *testing.T) {
	clock := testutil.NewManualClock(1_000)
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	tl := runTile(t, Config{Clock: clock, Metrics: m})

	msg := loadMsg("banner-1", "banner", clock.Now(), nil)
	tl.Deliver(msg)
	testutil.WaitFor(t, 2*time.Second, func() bool { return tl.Player().Showing().Name() == "banner" }, "banner on screen")
	first := tl.Player().Showing()

	tl.Deliver(msg)
	tl.Deliver(primitives.NewTimeMessage(2_000))
	testutil.WaitFor(t, time.Second, func() bool { return tl.Clock().Offset() == 1_000 }, "later message handled")
	assert.Same(t, first, tl.Player().Showing())
}

func TestTileReapsDisposedInstances(t *testing.T) {
	clock := testutil.NewManualClock(1_000)
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	tl := runTile(t, Config{Clock: clock, Metrics: m})

	tl.Deliver(loadMsg("a-1", "a", clock.Now(), map[string]any{"x": "hold"}))
	testutil.WaitFor(t, 2*time.Second, func() bool { return tl.Player().Showing().Name() == "a" }, "a on screen")

	tl.Deliver(loadMsg("b-1", "b", clock.Now(), nil))
	testutil.WaitFor(t, 2*time.Second, func() bool { return tl.Player().Showing().Name() == "b" }, "b on screen")
	assert.True(t, tl.Mirror().Has("a-1"), "closed instance lingers until reaped")

	clock.AdvanceMillis(6_000)
	tl.Deliver(loadMsg("c-1", "c", clock.Now(), nil))
	testutil.WaitFor(t, 2*time.Second, func() bool { return !tl.Mirror().Has("a-1") }, "a reaped")
	testutil.WaitFor(t, time.Second, func() bool {
		return promtestutil.CollectAndCount(m.Reaped.Get()) == 1 && promtestutil.ToFloat64(m.Reaped.Get()) >= 1
	}, "reap counted")
}
