package realtime

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/comalice/tilewall"
	"github.com/comalice/tilewall/internal/metrics"
	"github.com/comalice/tilewall/internal/primitives"
	"github.com/comalice/tilewall/schedule"
	"github.com/comalice/tilewall/statesync"
	"github.com/comalice/tilewall/testutil"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
)

// TestTickLoopTiming tests that the tick loop runs at the configured rate
func TestTickLoopTiming(t *testing.T) {
	rt := NewRuntime(Config{TickRate: 10 * time.Millisecond})

	if err := rt.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start runtime: %v", err)
	}
	defer rt.Stop()
	if err := rt.Start(context.Background()); err != ErrRunning {
		t.Errorf("second Start = %v want ErrRunning", err)
	}

	startTick := rt.TickNumber()
	time.Sleep(105 * time.Millisecond)
	ticks := rt.TickNumber() - startTick

	// ~10 ticks in ~100ms, generous tolerance for loaded CI machines
	if ticks < 5 || ticks > 12 {
		t.Errorf("expected ~10 ticks, got %d", ticks)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	rt := NewRuntime(Config{TickRate: time.Millisecond})
	if err := rt.Stop(); err != nil {
		t.Fatalf("Stop before Start: %v", err)
	}
	if err := rt.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	done := rt.Done()
	if err := rt.Stop(); err != nil {
		t.Fatal(err)
	}
	select {
	case <-done:
	default:
		t.Error("loop still running after Stop")
	}
}

// TestCommandOrdering tests priority then FIFO ordering within a tick
func TestCommandOrdering(t *testing.T) {
	rt := NewRuntime(Config{})
	var got []int
	record := func(n int) Command {
		return func(context.Context, float64) { got = append(got, n) }
	}
	_ = rt.Submit(record(1))
	_ = rt.SubmitWithPriority(record(2), 5)
	_ = rt.Submit(record(3))
	_ = rt.SubmitWithPriority(record(4), 5)

	rt.TickOnce(context.Background(), 100)

	want := []int{2, 4, 1, 3}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("order[%d] = %d want %d", i, got[i], want[i])
		}
	}
}

func TestCommandQueueFull(t *testing.T) {
	rt := NewRuntime(Config{MaxCommandsPerTick: 2})
	noop := func(context.Context, float64) {}
	_ = rt.Submit(noop)
	_ = rt.Submit(noop)
	if err := rt.Submit(noop); err != ErrQueueFull {
		t.Errorf("third Submit = %v want ErrQueueFull", err)
	}
	rt.TickOnce(context.Background(), 0)
	if err := rt.Submit(noop); err != nil {
		t.Errorf("Submit after tick drained the queue: %v", err)
	}
}

// TestTickPhases tests emitters -> machines -> broadcast in one tick
func TestTickPhases(t *testing.T) {
	auth := statesync.NewAuthority()
	out := &testutil.CaptureBroadcaster{}
	rt := NewRuntime(Config{TickRate: 100 * time.Millisecond},
		WithAuthority(auth), WithBroadcaster(out))

	h := auth.Open("inst")
	rt.AddEmitter("inst/x", schedule.New(h, "x", []schedule.Item{
		{Duration: 100, State: "A"}, {Duration: 200, State: "B"},
	}))

	var stepped bool
	a := tilewall.NewState("a")
	b := tilewall.NewState("b").OnEnter(func(context.Context, tilewall.Resolver, *tilewall.Context) error {
		// Emitters already ran this tick.
		_, stepped = auth.Get("inst", "x")
		return nil
	})
	m := tilewall.NewMachine(a, tilewall.WithManualDrive())
	if err := m.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer m.Stop()
	rt.AddMachine("m", m)
	_ = m.TransitionTo(b)

	rt.TickOnce(context.Background(), 0)

	if tilewall.StateName(m.Current()) != "b" || !stepped {
		t.Errorf("machine not stepped after emitters: current=%s stepped=%v", tilewall.StateName(m.Current()), stepped)
	}
	states := out.OfType(primitives.MessageState)
	if len(states) != 1 {
		t.Fatalf("got %d state broadcasts want 1", len(states))
	}
	if s := states[0].Snapshot["inst"]["x"]; s.Time != 300 || s.Payload != "B" {
		t.Errorf("broadcast sample = %+v want B@300", s)
	}
}

type panicky struct{}

func (panicky) Advance(float64, float64) (any, bool) { panic("bad content") }

// TestPanicIsolation tests that one faulty emitter does not stop the others
func TestPanicIsolation(t *testing.T) {
	rt := NewRuntime(Config{})
	var mu sync.Mutex
	calls := 0
	rt.AddEmitter("bad", panicky{})
	rt.AddEmitter("good", AdvanceFunc(func(float64, float64) {
		mu.Lock()
		calls++
		mu.Unlock()
	}))

	rt.TickOnce(context.Background(), 0)
	rt.TickOnce(context.Background(), 100)

	if calls != 2 {
		t.Errorf("good emitter ran %d times want 2", calls)
	}
	if rt.TickNumber() != 2 {
		t.Errorf("TickNumber = %d want 2", rt.TickNumber())
	}
}

func TestEmitterRegistry(t *testing.T) {
	rt := NewRuntime(Config{})
	noop := AdvanceFunc(func(float64, float64) {})
	rt.AddEmitter("a", noop)
	rt.AddEmitter("b", noop)
	rt.AddEmitter("a", noop)
	rt.RemoveEmitter("missing")

	keys := rt.Emitters()
	if len(keys) != 2 || keys[0] != "a" || keys[1] != "b" {
		t.Errorf("Emitters() = %v want [a b]", keys)
	}
	rt.RemoveEmitter("a")
	if keys := rt.Emitters(); len(keys) != 1 || keys[0] != "b" {
		t.Errorf("Emitters() after remove = %v", keys)
	}
}

func TestDeltaFollowsClock(t *testing.T) {
	rt := NewRuntime(Config{TickRate: 100 * time.Millisecond})
	var deltas []float64
	rt.AddEmitter("d", AdvanceFunc(func(_, delta float64) { deltas = append(deltas, delta) }))

	rt.TickOnce(context.Background(), 1000)
	rt.TickOnce(context.Background(), 1130)

	if deltas[0] != 100 || deltas[1] != 130 {
		t.Errorf("deltas = %v want [100 130]", deltas)
	}
}

func TestOverrunIsCounted(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	rt := NewRuntime(Config{TickRate: time.Millisecond}, WithMetrics(m))
	rt.AddEmitter("slow", AdvanceFunc(func(float64, float64) { time.Sleep(5 * time.Millisecond) }))

	rt.TickOnce(context.Background(), 0)

	if got := promtest.ToFloat64(m.TickOverruns.Get()); got != 1 {
		t.Errorf("overruns = %v want 1", got)
	}
}
