package statesync

import (
	"errors"
	"fmt"
	"sync"

	"github.com/comalice/tilewall/internal/primitives"
	"go.uber.org/zap"
)

// Broadcaster delivers a message to every connected tile.
type Broadcaster interface {
	Broadcast(msg primitives.Message) error
}

// BroadcasterFunc adapts a function to Broadcaster.
type BroadcasterFunc func(msg primitives.Message) error

// Broadcast calls f.
func (f BroadcasterFunc) Broadcast(msg primitives.Message) error { return f(msg) }

type record struct {
	gen      uint64
	channels map[string]primitives.Sample
}

// Authority is the coordinator's store: one overwrite-only sample per
// (instance, channel). It never holds history.
type Authority struct {
	mu      sync.Mutex
	records map[string]*record
	closed  []string
	gen     uint64
	log     *zap.Logger
}

// NewAuthority creates an empty authority.
func NewAuthority(opts ...AuthorityOption) *Authority {
	a := &Authority{
		records: make(map[string]*record),
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Open allocates a fresh, empty record set for id and returns a handle to
// it. Any record set already under id is discarded; handles to it go inert.
func (a *Authority) Open(id string) *Handle {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.records[id]; ok {
		a.log.Debug("reopening instance, discarding records", zap.String("instance", id))
	}
	a.gen++
	a.records[id] = &record{gen: a.gen, channels: make(map[string]primitives.Sample)}
	return &Handle{a: a, id: id, gen: a.gen}
}

// Get returns the current sample of (id, channel).
func (a *Authority) Get(id, channel string) (primitives.Sample, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	r, ok := a.records[id]
	if !ok {
		return primitives.Sample{}, false
	}
	s, ok := r.channels[channel]
	return s, ok
}

// Close drops the record set of id and queues a state-closed notification.
// Closing an unknown id is a no-op.
func (a *Authority) Close(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closeLocked(id)
}

func (a *Authority) closeLocked(id string) {
	if _, ok := a.records[id]; !ok {
		return
	}
	delete(a.records, id)
	a.closed = append(a.closed, id)
	a.log.Debug("instance closed", zap.String("instance", id))
}

// Snapshot returns a copy of every record.
func (a *Authority) Snapshot() primitives.Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked()
}

func (a *Authority) snapshotLocked() primitives.Snapshot {
	snap := make(primitives.Snapshot, len(a.records))
	for id, r := range a.records {
		chans := make(map[string]primitives.Sample, len(r.channels))
		for name, s := range r.channels {
			chans[name] = s
		}
		snap[id] = chans
	}
	return snap
}

// Len returns the number of open instances.
func (a *Authority) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.records)
}

// Flush drains pending close notifications and appends a state message with
// the current snapshot when any instance is open.
func (a *Authority) Flush() []primitives.Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	msgs := make([]primitives.Message, 0, len(a.closed)+1)
	for _, id := range a.closed {
		msgs = append(msgs, primitives.NewClosedMessage(id))
	}
	a.closed = a.closed[:0]
	if len(a.records) > 0 {
		msgs = append(msgs, primitives.NewStateMessage(a.snapshotLocked()))
	}
	return msgs
}

// Send flushes and broadcasts every message through b. Delivery failures are
// joined; the flush itself is never undone.
func (a *Authority) Send(b Broadcaster) error {
	var errs []error
	for _, msg := range a.Flush() {
		if err := b.Broadcast(msg); err != nil {
			errs = append(errs, fmt.Errorf("broadcast %s: %w", msg.Type, err))
		}
	}
	return errors.Join(errs...)
}

// Handle writes into one instance's record set.
type Handle struct {
	a   *Authority
	id  string
	gen uint64
}

// ID returns the instance id.
func (h *Handle) ID() string { return h.id }

// Store overwrites the sample of channel. After Close, or after id was
// reopened elsewhere, Store does nothing.
func (h *Handle) Store(channel string, t float64, payload any) {
	h.a.mu.Lock()
	defer h.a.mu.Unlock()
	r, ok := h.a.records[h.id]
	if !ok || r.gen != h.gen {
		return
	}
	r.channels[channel] = primitives.Sample{Time: t, Payload: payload}
}

// Get reads the current sample of channel.
func (h *Handle) Get(channel string) (primitives.Sample, bool) {
	h.a.mu.Lock()
	defer h.a.mu.Unlock()
	r, ok := h.a.records[h.id]
	if !ok || r.gen != h.gen {
		return primitives.Sample{}, false
	}
	s, ok := r.channels[channel]
	return s, ok
}

// Close closes the instance if this handle still owns it.
func (h *Handle) Close() {
	h.a.mu.Lock()
	defer h.a.mu.Unlock()
	if r, ok := h.a.records[h.id]; ok && r.gen == h.gen {
		h.a.closeLocked(h.id)
	}
}
