package tilewall

import "go.uber.org/zap"

// Option configures a Machine.
type Option func(*Machine)

// WithName labels the machine in logs.
func WithName(name string) Option {
	return func(m *Machine) {
		m.name = name
	}
}

// WithLogger sets the logger. Superseded resolvers are logged at debug level.
func WithLogger(l *zap.Logger) Option {
	return func(m *Machine) {
		if l != nil {
			m.log = l
		}
	}
}

// WithErrorListener receives Enter and Exit failures, panics included.
// After a failed Enter the machine falls back to its initial state.
func WithErrorListener(fn func(error)) Option {
	return func(m *Machine) {
		m.onError = fn
	}
}

// WithTransitionHook is called after every applied transition, once the
// new state's Enter has returned. It runs on the applying goroutine and
// must not call Step. Hooks accumulate and run in the order given.
func WithTransitionHook(fn func(from, to State)) Option {
	return func(m *Machine) {
		if fn != nil {
			m.onTransition = append(m.onTransition, fn)
		}
	}
}

// WithContext shares ext with every state instead of a fresh Context.
func WithContext(ext *Context) Option {
	return func(m *Machine) {
		if ext != nil {
			m.ext = ext
		}
	}
}

// WithManualDrive disables the driver goroutine; transitions apply only in
// Step.
func WithManualDrive() Option {
	return func(m *Machine) {
		m.manual = true
	}
}
