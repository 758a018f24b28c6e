package player

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/comalice/tilewall"
	"github.com/comalice/tilewall/internal/primitives"
	"go.uber.org/zap"
)

// displayState is a module on screen with nothing in progress.
type displayState struct {
	p      *Player
	module Module
}

func (s *displayState) Name() string { return "display:" + s.module.Name() }

func (s *displayState) Enter(context.Context, tilewall.Resolver, *tilewall.Context) error {
	return nil
}

func (s *displayState) Exit(context.Context) error { return nil }

// preparingState loads a module and waits for its deadline. Exit cancels
// the work; the player's transition hook disposes the module afterwards
// unless it was promoted to showingState.
type preparingState struct {
	p      *Player
	module Module

	cancel      context.CancelFunc
	done        chan struct{}
	disposeOnce sync.Once
}

func (s *preparingState) Name() string { return "preparing:" + s.module.Name() }

func (s *preparingState) Enter(ctx context.Context, resolve tilewall.Resolver, _ *tilewall.Context) error {
	wctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(wctx, resolve)
	return nil
}

func (s *preparingState) Exit(context.Context) error {
	s.cancel()
	return nil
}

func (s *preparingState) dispose() {
	s.disposeOnce.Do(func() {
		s.p.safe("dispose", s.module, s.module.Dispose)
	})
}

func (s *preparingState) run(ctx context.Context, resolve tilewall.Resolver) {
	defer close(s.done)
	p, m := s.p, s.module
	log := p.log.With(zap.String("module", m.Name()), zap.Float64("deadline", m.Deadline()))

	giveUp := func(err error) {
		log.Error("module failed to load", zap.Error(err),
			zap.Float64("since_deadline_ms", p.cfg.Clock.Now()-m.Deadline()))
		s.dispose()
		resolve(&displayState{p: p, module: p.Showing()})
	}

	log.Debug("instantiating module")
	ictx, cancel := context.WithTimeout(ctx, p.cfg.InstantiateTimeout)
	err := p.safeErr("instantiate", m, func() error { return m.Instantiate(ictx) })
	cancel()
	if ctx.Err() != nil {
		log.Info("superseded after instantiation")
		return
	}
	if err != nil {
		giveUp(err)
		return
	}

	p.report("preparing", m, m.Deadline())
	pctx, cancel := context.WithTimeout(ctx, p.cfg.PrepareTimeout)
	err = p.safeErr("willBeShownSoon", m, func() error { return m.WillBeShownSoon(pctx) })
	cancel()
	if ctx.Err() != nil {
		log.Info("superseded after preparation")
		return
	}
	if err != nil {
		if !errors.Is(err, context.DeadlineExceeded) {
			giveUp(err)
			return
		}
		log.Warn("module preparation timed out, showing anyway")
	}

	wait := primitives.Until(p.cfg.Clock, m.Deadline())
	log.Debug("waiting for deadline", zap.Duration("wait", wait))
	timer := time.NewTimer(wait)
	select {
	case <-ctx.Done():
		timer.Stop()
		log.Info("superseded while waiting for deadline")
		return
	case <-timer.C:
	}
	resolve(&showingState{p: p, module: m, from: s})
}

// showingState runs the visible transition from the module on screen to
// its own. The transition cannot be interrupted; a later Play waits for it
// before starting its own transition.
type showingState struct {
	p      *Player
	module Module
	from   *preparingState
}

func (s *showingState) Name() string { return "showing:" + s.module.Name() }

func (s *showingState) Enter(ctx context.Context, _ tilewall.Resolver, _ *tilewall.Context) error {
	p := s.p
	p.mu.Lock()
	prev := p.inflight
	own := make(chan struct{})
	p.inflight = own
	p.mu.Unlock()

	go func() {
		defer close(own)
		if prev != nil {
			<-prev
		}
		s.transition(context.WithoutCancel(ctx))
	}()
	return nil
}

func (s *showingState) Exit(context.Context) error { return nil }

func (s *showingState) transition(ctx context.Context) {
	p := s.p
	m := s.module
	old := p.Showing()
	finish := m.Deadline() + float64(p.cfg.TransitionDuration)/float64(time.Millisecond)
	log := p.log.With(zap.String("from", old.Name()), zap.String("to", m.Name()))

	p.report("transition", m, finish)
	log.Info("beginning transition")
	p.safe("beginTransitionOut", old, func() { old.BeginTransitionOut(finish) })
	if err := p.safeErr("beginTransitionIn", m, func() error { return m.BeginTransitionIn(finish) }); err != nil {
		log.Error("module failed to begin transition, fading to empty", zap.Error(err))
		p.safe("dispose", m, m.Dispose)
		m = Empty(m.Deadline())
		_ = m.Instantiate(ctx)
	}

	if err := p.safeErr("performTransition", m, func() error { return m.PerformTransition(ctx, old, finish) }); err != nil {
		log.Warn("transition reported an error", zap.Error(err))
	}

	p.safe("finishTransitionOut", old, old.FinishTransitionOut)
	if err := p.safeErr("finishTransitionIn", m, m.FinishTransitionIn); err != nil {
		log.Error("module failed to finish transition", zap.Error(err))
	}
	p.safe("dispose", old, old.Dispose)
	p.setShowing(m)
	p.report("display", m, 0)
	log.Info("transition finished")
}
