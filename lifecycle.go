// Package tilewall provides the lifecycle state machine that sequences wall
// modules through load, show, fade-out and dispose.
//
// A Machine holds exactly one current State. Transitions come from two
// sources:
//   - external: the owner calls TransitionTo (forced rotation, operator skip)
//   - internal: the current state calls the Resolver it was handed in Enter
//
// External requests always win. Every transition advances the machine's
// epoch, and a Resolver minted under an older epoch is silently ignored, so
// a state that finishes its asynchronous work after being superseded cannot
// yank the machine back.
//
// Requests are applied on a later turn, never inside the call that made
// them: by a driver goroutine after Start, or by Step when the machine is
// built WithManualDrive and stepped from a tick loop.
package tilewall

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

var (
	// ErrNilState is returned when a nil State is requested.
	ErrNilState = errors.New("nil state")
	// ErrStopped is returned once the machine has been stopped.
	ErrStopped = errors.New("machine stopped")
	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("machine already started")
	// ErrStatePanic wraps a panic raised by Enter or Exit.
	ErrStatePanic = errors.New("state panicked")
)

// State is one step of a lifecycle. Enter must not block for long: work
// that takes time runs in a goroutine which later calls resolve. Exit is
// called before the next state's Enter and must stop that work.
type State interface {
	Enter(ctx context.Context, resolve Resolver, ext *Context) error
	Exit(ctx context.Context) error
}

// Resolver requests a transition from inside a state. Calls made after the
// state was superseded do nothing.
type Resolver func(next State)

// Named states report a name for logs and status export.
type Named interface {
	Name() string
}

// StateName returns the name of s, or its type when it has none.
func StateName(s State) string {
	if s == nil {
		return "<nil>"
	}
	if n, ok := s.(Named); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", s)
}

type request struct {
	next     State
	external bool
	fallback bool
}

// Machine runs one lifecycle.
type Machine struct {
	name         string
	log          *zap.Logger
	ext          *Context
	onError      func(error)
	onTransition []func(from, to State)
	manual       bool

	mu          sync.Mutex
	initial     State
	current     State
	epoch       uint64
	pending     *request
	waiters     []chan State
	started     bool
	stopped     bool

	// stepMu serializes applying transitions between the driver and Step.
	stepMu sync.Mutex
	wake   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
}

// NewMachine creates a machine whose initial state is entered by Start.
func NewMachine(initial State, opts ...Option) *Machine {
	m := &Machine{
		name:    "machine",
		log:     zap.NewNop(),
		ext:     NewContext(),
		initial: initial,
		current: initial,
		wake:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = m.log.With(zap.String("machine", m.name))
	return m
}

// Start enters the initial state and, unless the machine is manually
// driven, launches the driver goroutine. ctx bounds the driver and is the
// context handed to states it enters.
func (m *Machine) Start(ctx context.Context) error {
	if m.initial == nil {
		return ErrNilState
	}
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return ErrStopped
	}
	if m.started {
		m.mu.Unlock()
		return ErrAlreadyStarted
	}
	m.started = true
	m.ctx, m.cancel = context.WithCancel(ctx)
	resolve := m.resolverFor(m.epoch)
	m.mu.Unlock()

	m.stepMu.Lock()
	if err := m.enter(m.ctx, m.initial, resolve); err != nil {
		m.report(fmt.Errorf("enter %s: %w", StateName(m.initial), err))
	}
	m.stepMu.Unlock()

	if !m.manual {
		go m.drive()
	}
	return nil
}

// Stop halts the driver, cancels the context handed to states and releases
// every NextTransition waiter. The current state is not exited. Idempotent.
func (m *Machine) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	m.pending = nil
	waiters := m.waiters
	m.waiters = nil
	cancel := m.cancel
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	for _, w := range waiters {
		close(w)
	}
}

// TransitionTo requests an external transition to next. The request replaces
// any pending one and is applied on a later turn.
func (m *Machine) TransitionTo(next State) error {
	if next == nil {
		return ErrNilState
	}
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return ErrStopped
	}
	m.pending = &request{next: next, external: true}
	m.mu.Unlock()
	m.signal()
	return nil
}

// NextTransition returns a channel that receives the next state to become
// current and is then closed. It is closed without a value if the machine
// stops first.
func (m *Machine) NextTransition() <-chan State {
	ch := make(chan State, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		close(ch)
		return ch
	}
	m.waiters = append(m.waiters, ch)
	return ch
}

// WaitTransition blocks until the next transition settles.
func (m *Machine) WaitTransition(ctx context.Context) (State, error) {
	select {
	case s, ok := <-m.NextTransition():
		if !ok {
			return nil, ErrStopped
		}
		return s, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Step applies at most one pending transition and reports whether it did.
// Manually driven machines are advanced only by Step.
func (m *Machine) Step(ctx context.Context) bool {
	m.stepMu.Lock()
	defer m.stepMu.Unlock()

	m.mu.Lock()
	if !m.started || m.stopped || m.pending == nil {
		m.mu.Unlock()
		return false
	}
	req := m.pending
	m.pending = nil
	old := m.current
	// the outgoing resolver is retired before Exit runs
	m.epoch++
	epoch := m.epoch
	m.mu.Unlock()

	m.apply(ctx, old, req, epoch)
	return true
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Epoch returns the number of transitions taken so far, including one
// whose Exit or Enter is still running.
func (m *Machine) Epoch() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.epoch
}

// Pending reports whether a transition is waiting to be applied.
func (m *Machine) Pending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending != nil
}

// Name returns the machine name given WithName.
func (m *Machine) Name() string { return m.name }

// Context returns the extended state shared by all states.
func (m *Machine) Context() *Context { return m.ext }

func (m *Machine) drive() {
	for {
		select {
		case <-m.ctx.Done():
			return
		case <-m.wake:
			if m.Step(m.ctx) && m.Pending() {
				m.signal()
			}
		}
	}
}

func (m *Machine) signal() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *Machine) resolverFor(epoch uint64) Resolver {
	return func(next State) {
		if next == nil {
			m.log.Warn("resolver called with nil state", zap.Uint64("epoch", epoch))
			return
		}
		m.mu.Lock()
		if m.stopped || epoch != m.epoch {
			current := m.epoch
			m.mu.Unlock()
			m.log.Debug("ignoring superseded resolver",
				zap.String("to", StateName(next)),
				zap.Uint64("epoch", epoch),
				zap.Uint64("current_epoch", current))
			return
		}
		if m.pending != nil && m.pending.external {
			m.mu.Unlock()
			m.log.Debug("external transition pending, ignoring resolver", zap.String("to", StateName(next)))
			return
		}
		m.pending = &request{next: next}
		m.mu.Unlock()
		m.signal()
	}
}

func (m *Machine) apply(ctx context.Context, old State, req *request, epoch uint64) {
	if old != nil {
		if err := m.exit(ctx, old); err != nil {
			m.report(fmt.Errorf("exit %s: %w", StateName(old), err))
		}
	}

	m.mu.Lock()
	m.current = req.next
	m.mu.Unlock()

	m.log.Debug("transition",
		zap.String("from", StateName(old)),
		zap.String("to", StateName(req.next)),
		zap.Bool("external", req.external),
		zap.Uint64("epoch", epoch))

	err := m.enter(ctx, req.next, m.resolverFor(epoch))

	m.mu.Lock()
	waiters := m.waiters
	m.waiters = nil
	m.mu.Unlock()
	for _, w := range waiters {
		w <- req.next
		close(w)
	}
	for _, hook := range m.onTransition {
		hook(old, req.next)
	}

	if err == nil {
		return
	}
	m.report(fmt.Errorf("enter %s: %w", StateName(req.next), err))
	if req.fallback {
		return
	}
	m.mu.Lock()
	if m.stopped || m.epoch != epoch || (m.pending != nil && m.pending.external) {
		m.mu.Unlock()
		return
	}
	m.pending = &request{next: m.initial, external: true, fallback: true}
	m.mu.Unlock()
	m.signal()
}

func (m *Machine) enter(ctx context.Context, s State, resolve Resolver) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrStatePanic, r)
		}
	}()
	return s.Enter(ctx, resolve, m.ext)
}

func (m *Machine) exit(ctx context.Context, s State) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrStatePanic, r)
		}
	}()
	return s.Exit(ctx)
}

func (m *Machine) report(err error) {
	m.log.Warn("state error", zap.Error(err))
	if m.onError != nil {
		m.onError(err)
	}
}
