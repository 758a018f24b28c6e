package tilewall

import (
	"context"
	"sync"
	"time"
)

// EnterFunc is the body of a FuncState's Enter.
type EnterFunc func(ctx context.Context, resolve Resolver, ext *Context) error

// ExitFunc is the body of a FuncState's Exit.
type ExitFunc func(ctx context.Context) error

// FuncState is a State assembled from functions, for content that wants a
// few ad hoc states without declaring a type for each.
//
//	idle := tilewall.NewState("idle")
//	fading := tilewall.NewState("fading").
//		OnEnter(func(ctx context.Context, resolve tilewall.Resolver, _ *tilewall.Context) error {
//			go func() { fade(ctx); resolve(idle) }()
//			return nil
//		})
type FuncState struct {
	name  string
	enter EnterFunc
	exit  ExitFunc
}

// NewState creates a state that does nothing until configured.
func NewState(name string) *FuncState {
	return &FuncState{name: name}
}

// OnEnter sets the Enter body.
func (s *FuncState) OnEnter(fn EnterFunc) *FuncState {
	s.enter = fn
	return s
}

// OnExit sets the Exit body.
func (s *FuncState) OnExit(fn ExitFunc) *FuncState {
	s.exit = fn
	return s
}

// Name returns the state name.
func (s *FuncState) Name() string { return s.name }

// Enter runs the configured body.
func (s *FuncState) Enter(ctx context.Context, resolve Resolver, ext *Context) error {
	if s.enter == nil {
		return nil
	}
	return s.enter(ctx, resolve, ext)
}

// Exit runs the configured body.
func (s *FuncState) Exit(ctx context.Context) error {
	if s.exit == nil {
		return nil
	}
	return s.exit(ctx)
}

// After returns a state that resolves to next() once d has elapsed in it.
// next is called at resolve time so that cyclic sequences can be built.
func After(name string, d time.Duration, next func() State) State {
	return &timedState{name: name, d: d, next: next}
}

type timedState struct {
	name string
	d    time.Duration
	next func() State

	mu    sync.Mutex
	timer *time.Timer
}

func (s *timedState) Name() string { return s.name }

func (s *timedState) Enter(_ context.Context, resolve Resolver, _ *Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timer = time.AfterFunc(s.d, func() { resolve(s.next()) })
	return nil
}

func (s *timedState) Exit(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	return nil
}
