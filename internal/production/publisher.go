package production

import (
	"errors"

	"github.com/comalice/tilewall/internal/primitives"
	"github.com/comalice/tilewall/statesync"
)

// ChannelPublisher forwards broadcasts to a Go channel, for tiles living in
// the coordinator's process. Publishing never blocks: a full channel drops
// the message.
type ChannelPublisher struct {
	ch      chan<- primitives.Message
	dropped func()
}

// NewChannelPublisher creates a ChannelPublisher writing to ch. onDrop, if
// non-nil, is called for every dropped message.
func NewChannelPublisher(ch chan<- primitives.Message, onDrop func()) *ChannelPublisher {
	return &ChannelPublisher{ch: ch, dropped: onDrop}
}

// Broadcast implements statesync.Broadcaster.
func (p *ChannelPublisher) Broadcast(msg primitives.Message) error {
	select {
	case p.ch <- msg:
	default:
		if p.dropped != nil {
			p.dropped()
		}
	}
	return nil
}

// Close closes the channel. Broadcasting afterwards panics.
func (p *ChannelPublisher) Close() error {
	close(p.ch)
	return nil
}

// Fanout broadcasts to several broadcasters, joining their errors.
type Fanout []statesync.Broadcaster

// Broadcast implements statesync.Broadcaster.
func (f Fanout) Broadcast(msg primitives.Message) error {
	var errs []error
	for _, b := range f {
		if err := b.Broadcast(msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
