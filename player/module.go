package player

import "context"

// Module is content the player can show. Instantiate and WillBeShownSoon
// must honour ctx; the player abandons modules that outlive their timeout.
type Module interface {
	Name() string
	// Deadline is the wall time (ms) the visible transition should begin.
	Deadline() float64
	Instantiate(ctx context.Context) error
	WillBeShownSoon(ctx context.Context) error
	BeginTransitionOut(deadline float64)
	BeginTransitionIn(deadline float64) error
	PerformTransition(ctx context.Context, old Module, deadline float64) error
	FinishTransitionOut()
	FinishTransitionIn() error
	Dispose()
}

// EmptyName is the name of the module shown when nothing else is.
const EmptyName = "_empty"

// Empty returns a module that shows nothing and accepts every call.
func Empty(deadline float64) Module {
	return &emptyModule{deadline: deadline}
}

// IsEmpty reports whether m is an empty module.
func IsEmpty(m Module) bool {
	return m == nil || m.Name() == EmptyName
}

type emptyModule struct {
	deadline float64
}

func (e *emptyModule) Name() string                          { return EmptyName }
func (e *emptyModule) Deadline() float64                     { return e.deadline }
func (e *emptyModule) Instantiate(context.Context) error     { return nil }
func (e *emptyModule) WillBeShownSoon(context.Context) error { return nil }
func (e *emptyModule) BeginTransitionOut(float64)            {}
func (e *emptyModule) BeginTransitionIn(float64) error       { return nil }
func (e *emptyModule) FinishTransitionOut()                  {}
func (e *emptyModule) FinishTransitionIn() error             { return nil }
func (e *emptyModule) Dispose()                              {}
func (e *emptyModule) PerformTransition(context.Context, Module, float64) error {
	return nil
}
