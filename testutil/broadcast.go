package testutil

import (
	"sync"

	"github.com/comalice/tilewall/internal/primitives"
)

// CaptureBroadcaster records every broadcast message. Err, when set, is
// returned from Broadcast after recording.
type CaptureBroadcaster struct {
	mu   sync.Mutex
	msgs []primitives.Message
	Err  error
}

// Broadcast records msg.
func (c *CaptureBroadcaster) Broadcast(msg primitives.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msg)
	return c.Err
}

// Messages returns a copy of everything recorded.
func (c *CaptureBroadcaster) Messages() []primitives.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]primitives.Message, len(c.msgs))
	copy(out, c.msgs)
	return out
}

// OfType returns the recorded messages of type typ.
func (c *CaptureBroadcaster) OfType(typ primitives.MessageType) []primitives.Message {
	var out []primitives.Message
	for _, m := range c.Messages() {
		if m.Type == typ {
			out = append(out, m)
		}
	}
	return out
}

// Reset forgets everything recorded.
func (c *CaptureBroadcaster) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = nil
}
