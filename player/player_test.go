package player

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/comalice/tilewall"
	"github.com/comalice/tilewall/internal/primitives"
	"github.com/comalice/tilewall/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeModule records the calls the player makes.
type fakeModule struct {
	name     string
	deadline float64

	instantiate func(ctx context.Context) error
	prepare     func(ctx context.Context) error
	beginIn     error

	mu    sync.Mutex
	calls []string
}

func (f *fakeModule) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeModule) called(call string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c == call {
			return true
		}
	}
	return false
}

func (f *fakeModule) count(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (f *fakeModule) Name() string      { return f.name }
func (f *fakeModule) Deadline() float64 { return f.deadline }

func (f *fakeModule) Instantiate(ctx context.Context) error {
	f.record("instantiate")
	if f.instantiate != nil {
		return f.instantiate(ctx)
	}
	return nil
}

func (f *fakeModule) WillBeShownSoon(ctx context.Context) error {
	f.record("willBeShownSoon")
	if f.prepare != nil {
		return f.prepare(ctx)
	}
	return nil
}

func (f *fakeModule) BeginTransitionOut(float64) { f.record("beginOut") }

func (f *fakeModule) BeginTransitionIn(float64) error {
	f.record("beginIn")
	return f.beginIn
}

func (f *fakeModule) PerformTransition(context.Context, Module, float64) error {
	f.record("perform")
	return nil
}

func (f *fakeModule) FinishTransitionOut() { f.record("finishOut") }

func (f *fakeModule) FinishTransitionIn() error {
	f.record("finishIn")
	return nil
}

func (f *fakeModule) Dispose() { f.record("dispose") }

func newPlayer(t *testing.T, cfg Config) *Player {
	t.Helper()
	if cfg.Clock == nil {
		cfg.Clock = testutil.NewManualClock(1000)
	}
	p := New(cfg)
	require.NoError(t, p.Start(context.Background()))
	t.Cleanup(p.Stop)
	return p
}

func showing(p *Player, name string) func() bool {
	return func() bool { return p.Showing().Name() == name }
}

func TestPlayShowsModule(t *testing.T) {
	var mu sync.Mutex
	var events []string
	p := newPlayer(t, Config{Monitor: func(e Event) {
		mu.Lock()
		events = append(events, e.State)
		mu.Unlock()
	}})

	a := &fakeModule{name: "a", deadline: 1000}
	require.NoError(t, p.Play(a))
	testutil.WaitFor(t, time.Second, showing(p, "a"), "a on screen")

	testutil.WaitFor(t, time.Second, func() bool { return a.called("finishIn") }, "a finished")
	a.mu.Lock()
	assert.Equal(t, []string{"instantiate", "willBeShownSoon", "beginIn", "perform", "finishIn"}, a.calls)
	a.mu.Unlock()

	b := &fakeModule{name: "b", deadline: 1000}
	require.NoError(t, p.Play(b))
	testutil.WaitFor(t, time.Second, showing(p, "b"), "b on screen")
	testutil.WaitFor(t, time.Second, func() bool { return a.called("dispose") }, "a disposed")
	assert.True(t, a.called("beginOut"))
	assert.True(t, a.called("finishOut"))
	assert.False(t, b.called("dispose"))

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, events, "play")
	assert.Contains(t, events, "preparing")
	assert.Contains(t, events, "transition")
	assert.Contains(t, events, "display")
}

func TestNewerPlayAbandonsPreparation(t *testing.T) {
	p := newPlayer(t, Config{})

	release := make(chan struct{})
	slow := &fakeModule{name: "slow", deadline: 1000, instantiate: func(ctx context.Context) error {
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}}
	require.NoError(t, p.Play(slow))
	testutil.WaitFor(t, time.Second, func() bool { return slow.called("instantiate") }, "slow instantiating")

	fast := &fakeModule{name: "fast", deadline: 1000}
	require.NoError(t, p.Play(fast))

	testutil.WaitFor(t, time.Second, showing(p, "fast"), "fast on screen")
	testutil.WaitFor(t, time.Second, func() bool { return slow.called("dispose") }, "slow disposed")
	close(release)

	assert.Equal(t, 1, slow.count("dispose"))
	assert.False(t, slow.called("beginIn"), "abandoned module must never be shown")
}

func TestDeadlineResolveRacingNewerPlay(t *testing.T) {
	for i := 0; i < 20; i++ {
		p := newPlayer(t, Config{})

		release := make(chan struct{})
		a := &fakeModule{name: "a", deadline: 1000, prepare: func(context.Context) error {
			<-release
			return nil
		}}
		require.NoError(t, p.Play(a))
		testutil.WaitFor(t, time.Second, func() bool { return a.called("willBeShownSoon") }, "a preparing")

		b := &fakeModule{name: "b", deadline: 1000}
		close(release)
		require.NoError(t, p.Play(b))

		testutil.WaitFor(t, time.Second, func() bool { return b.called("finishIn") }, "b finished")
		testutil.WaitFor(t, time.Second, func() bool { return a.called("dispose") }, "a disposed")
		assert.Equal(t, "b", p.Showing().Name())
		assert.False(t, b.called("dispose"))

		a.mu.Lock()
		calls := append([]string(nil), a.calls...)
		a.mu.Unlock()
		disposed := false
		for _, c := range calls {
			if c == "dispose" {
				disposed = true
			}
			if disposed {
				assert.NotEqual(t, "beginIn", c, "a shown after dispose: %v", calls)
			}
		}
		assert.Equal(t, 1, a.count("dispose"))
	}
}

func TestInstantiateFailureKeepsCurrent(t *testing.T) {
	p := newPlayer(t, Config{})

	a := &fakeModule{name: "a", deadline: 1000}
	require.NoError(t, p.Play(a))
	testutil.WaitFor(t, time.Second, showing(p, "a"), "a on screen")

	broken := &fakeModule{name: "broken", deadline: 1000, instantiate: func(context.Context) error {
		return errors.New("no assets")
	}}
	require.NoError(t, p.Play(broken))
	testutil.WaitFor(t, time.Second, func() bool { return broken.called("dispose") }, "broken disposed")
	testutil.WaitFor(t, time.Second, func() bool {
		d, ok := p.Machine().Current().(*displayState)
		return ok && d.module.Name() == "a"
	}, "back to displaying a")

	assert.Equal(t, "a", p.Showing().Name())
	assert.False(t, a.called("dispose"))
}

func TestPrepareTimeoutIsTolerated(t *testing.T) {
	p := newPlayer(t, Config{PrepareTimeout: 10 * time.Millisecond})

	sluggish := &fakeModule{name: "sluggish", deadline: 1000, prepare: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}}
	require.NoError(t, p.Play(sluggish))
	testutil.WaitFor(t, time.Second, showing(p, "sluggish"), "sluggish on screen")
	assert.False(t, sluggish.called("dispose"))
}

func TestBeginTransitionFailureFadesToEmpty(t *testing.T) {
	p := newPlayer(t, Config{})

	a := &fakeModule{name: "a", deadline: 1000}
	require.NoError(t, p.Play(a))
	testutil.WaitFor(t, time.Second, showing(p, "a"), "a on screen")

	bad := &fakeModule{name: "bad", deadline: 1000, beginIn: errors.New("gpu lost")}
	require.NoError(t, p.Play(bad))
	testutil.WaitFor(t, time.Second, func() bool { return IsEmpty(p.Showing()) }, "empty on screen")
	testutil.WaitFor(t, time.Second, func() bool { return a.called("dispose") }, "a disposed")
	assert.True(t, bad.called("dispose"))
}

func TestPlayEmptyWhileEmpty(t *testing.T) {
	p := newPlayer(t, Config{ManualDrive: true})

	require.NoError(t, p.Play(Empty(0)))
	assert.False(t, p.Machine().Pending())
	assert.Equal(t, uint64(0), p.Machine().Epoch())
	assert.ErrorIs(t, p.Play(nil), tilewall.ErrNilState)
}

func TestWaitsForDeadline(t *testing.T) {
	clock := testutil.NewManualClock(1000)
	p := newPlayer(t, Config{Clock: clock})

	late := &fakeModule{name: "late", deadline: clock.Now() + 50}
	start := time.Now()
	require.NoError(t, p.Play(late))
	testutil.WaitFor(t, time.Second, showing(p, "late"), "late on screen")
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	assert.Equal(t, time.Duration(0), primitives.Until(clock, 1000))
}
