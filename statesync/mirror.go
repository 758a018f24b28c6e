package statesync

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/comalice/tilewall/internal/primitives"
	"github.com/comalice/tilewall/interpolate"
	"go.uber.org/zap"
)

// ErrAlreadyDefined is returned by Define for a channel already defined on
// a live instance.
var ErrAlreadyDefined = errors.New("channel already defined")

// ReapPolicy holds the staleness thresholds in ms. An instance is stale
// once any of them is exceeded.
type ReapPolicy struct {
	ClientClosed float64
	ServerClosed float64
	Idle         float64
}

// DefaultReapPolicy reaps 5 s after either side closed and after 10 min
// without data.
var DefaultReapPolicy = ReapPolicy{ClientClosed: 5000, ServerClosed: 5000, Idle: 600000}

const (
	// DefaultPriorCapacity bounds each prior-data buffer.
	DefaultPriorCapacity = 25
	// DefaultRenderDelay is two coordinator ticks at 10 FPS.
	DefaultRenderDelay = 200.0
)

type instance struct {
	entries      map[string]*Entry
	prior        map[string]*primitives.Ring[primitives.Sample]
	clientClosed float64
	serverClosed float64
	lastUpdated  float64
}

func (in *instance) stale(now float64, p ReapPolicy) bool {
	return in.clientClosed < now-p.ClientClosed ||
		in.serverClosed < now-p.ServerClosed ||
		in.lastUpdated < now-p.Idle
}

// Mirror is a tile's replica of the authority.
type Mirror struct {
	mu          sync.Mutex
	instances   map[string]*instance
	clock       primitives.Clock
	policy      ReapPolicy
	priorCap    int
	entryCap    int
	renderDelay float64
	log         *zap.Logger
	onReap      func(id string)
}

// NewMirror creates an empty mirror.
func NewMirror(opts ...MirrorOption) *Mirror {
	m := &Mirror{
		instances:   make(map[string]*instance),
		clock:       primitives.SystemClock{},
		policy:      DefaultReapPolicy,
		priorCap:    DefaultPriorCapacity,
		entryCap:    DefaultEntryCapacity,
		renderDelay: DefaultRenderDelay,
		log:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Mirror) newInstance(now float64) *instance {
	return &instance{
		entries:      make(map[string]*Entry),
		prior:        make(map[string]*primitives.Ring[primitives.Sample]),
		clientClosed: primitives.Never,
		serverClosed: primitives.Never,
		lastUpdated:  now,
	}
}

// Open reaps every stale instance, then returns a view of id, creating it
// when absent. Reopening an instance the tile had closed starts a fresh
// session: its entries are dropped, buffered prior data is kept.
func (m *Mirror) Open(id string) *View {
	m.mu.Lock()
	now := m.clock.Now()
	var reaped []string
	for other, in := range m.instances {
		if in.stale(now, m.policy) {
			delete(m.instances, other)
			reaped = append(reaped, other)
		}
	}
	in, ok := m.instances[id]
	switch {
	case !ok:
		m.instances[id] = m.newInstance(now)
	case !math.IsInf(in.clientClosed, 1):
		in.entries = make(map[string]*Entry)
		in.clientClosed = primitives.Never
	}
	m.mu.Unlock()

	for _, r := range reaped {
		m.log.Debug("reaped instance", zap.String("instance", r))
		if m.onReap != nil {
			m.onReap(r)
		}
	}
	return &View{m: m, id: id}
}

// Apply folds an inbound snapshot into the mirror. Instances absent locally
// are created; stale ones are skipped whole and stay stale until reaped.
func (m *Mirror) Apply(snap primitives.Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock.Now()
	for id, chans := range snap {
		in, ok := m.instances[id]
		if ok && in.stale(now, m.policy) {
			m.log.Debug("skipping stale instance", zap.String("instance", id))
			continue
		}
		if !ok {
			in = m.newInstance(now)
			m.instances[id] = in
		}
		newest := math.Inf(-1)
		for name, s := range chans {
			newest = math.Max(newest, s.Time)
			if e, defined := in.entries[name]; defined {
				e.Push(s)
				continue
			}
			m.bufferLocked(in, name, s)
		}
		in.lastUpdated = math.Max(newest, now)
	}
}

func (m *Mirror) bufferLocked(in *instance, name string, s primitives.Sample) {
	r, ok := in.prior[name]
	if !ok {
		r = primitives.NewRing[primitives.Sample](m.priorCap)
		in.prior[name] = r
	}
	if last := r.Last(); last != nil && last.Time == s.Time {
		*last = s
		return
	}
	r.Push(s)
}

// MarkServerClosed records that the coordinator closed id.
func (m *Mirror) MarkServerClosed(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if in, ok := m.instances[id]; ok {
		in.serverClosed = m.clock.Now()
	}
}

// Handle dispatches the sync messages and reports whether msg was one.
func (m *Mirror) Handle(msg primitives.Message) bool {
	switch msg.Type {
	case primitives.MessageState:
		m.Apply(msg.Snapshot)
	case primitives.MessageStateClosed:
		m.MarkServerClosed(msg.ID)
	default:
		return false
	}
	return true
}

// Has reports whether id is tracked.
func (m *Mirror) Has(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.instances[id]
	return ok
}

// Len returns the number of tracked instances.
func (m *Mirror) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.instances)
}

// Buffered returns the prior data held for an undefined channel.
func (m *Mirror) Buffered(id, channel string) []primitives.Sample {
	m.mu.Lock()
	defer m.mu.Unlock()
	in, ok := m.instances[id]
	if !ok {
		return nil
	}
	if r, ok := in.prior[channel]; ok {
		return r.Items()
	}
	return nil
}

// Touch overrides the last-updated time of id, for tests and tools that
// replay recorded traffic.
func (m *Mirror) Touch(id string, t float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if in, ok := m.instances[id]; ok {
		in.lastUpdated = t
	}
}

// instanceLocked returns the record of id, recreating it when it was
// reaped behind a live view.
func (m *Mirror) instanceLocked(id string) *instance {
	in, ok := m.instances[id]
	if !ok {
		in = m.newInstance(m.clock.Now())
		m.instances[id] = in
	}
	return in
}

// View is a module's access to its instance in the mirror.
type View struct {
	m  *Mirror
	id string
}

// ID returns the instance id.
func (v *View) ID() string { return v.id }

// Define creates the entry for channel bound to interp and replays any
// prior data into it. Defining a channel twice fails with ErrAlreadyDefined.
func (v *View) Define(channel string, interp interpolate.Interpolator) (*Entry, error) {
	m := v.m
	m.mu.Lock()
	defer m.mu.Unlock()
	in := m.instanceLocked(v.id)
	if _, ok := in.entries[channel]; ok {
		return nil, fmt.Errorf("instance %s channel %q: %w", v.id, channel, ErrAlreadyDefined)
	}
	e := NewEntry(channel, interp, m.entryCap)
	e.renderDelay = m.renderDelay
	if r, ok := in.prior[channel]; ok {
		for _, s := range r.Items() {
			e.Push(s)
		}
		delete(in.prior, channel)
	}
	in.entries[channel] = e
	return e, nil
}

// MustDefine is Define for callers that treat a double definition as a bug.
func (v *View) MustDefine(channel string, interp interpolate.Interpolator) *Entry {
	e, err := v.Define(channel, interp)
	if err != nil {
		panic(err)
	}
	return e
}

// Get returns the entry of channel if it was defined.
func (v *View) Get(channel string) (*Entry, bool) {
	m := v.m
	m.mu.Lock()
	defer m.mu.Unlock()
	in, ok := m.instances[v.id]
	if !ok {
		return nil, false
	}
	e, ok := in.entries[channel]
	return e, ok
}

// Close stamps the tile-side close time. The instance is removed by a later
// Open once the close is old enough.
func (v *View) Close() {
	m := v.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if in, ok := m.instances[v.id]; ok {
		in.clientClosed = m.clock.Now()
	}
}
