// Message provides the wire envelope exchanged between the coordinator and
// its tiles.
//
// Messages are value types. Use the New*Message constructors; consumers MUST
// NOT modify the Snapshot of a received message since it may be shared
// between subscribers of one broadcast.
package primitives

import "fmt"

// MessageType tags a Message.
type MessageType string

const (
	// MessageState carries a full authority snapshot.
	MessageState MessageType = "state"
	// MessageStateClosed announces that the coordinator closed an instance.
	MessageStateClosed MessageType = "state-closed"
	// MessageTime carries the coordinator wall-clock for tile clock alignment.
	MessageTime MessageType = "time"
	// MessageLoadModule asks tiles to load a module by a deadline.
	MessageLoadModule MessageType = "loadModule"
)

// Message is the envelope for every coordinator -> tile payload.
type Message struct {
	Type     MessageType `json:"type" msgpack:"type"`
	ID       string      `json:"id,omitempty" msgpack:"id,omitempty"`
	Time     float64     `json:"time,omitempty" msgpack:"time,omitempty"`
	Snapshot Snapshot    `json:"snapshot,omitempty" msgpack:"snapshot,omitempty"`
	Load     *LoadModule `json:"load,omitempty" msgpack:"load,omitempty"`
}

// ChannelsKey is the LoadModule.Config key mapping each channel name to its
// interpolator name.
const ChannelsKey = "_channels"

// LoadModule describes a module the tiles should show at Deadline.
type LoadModule struct {
	ID       string         `json:"id" msgpack:"id"`
	Module   string         `json:"module" msgpack:"module"`
	Deadline float64        `json:"deadline" msgpack:"deadline"`
	Config   map[string]any `json:"config,omitempty" msgpack:"config,omitempty"`
}

// NewStateMessage wraps a snapshot.
func NewStateMessage(s Snapshot) Message {
	return Message{Type: MessageState, Snapshot: s}
}

// NewClosedMessage announces that id was closed on the coordinator.
func NewClosedMessage(id string) Message {
	return Message{Type: MessageStateClosed, ID: id}
}

// NewTimeMessage carries the coordinator clock reading t.
func NewTimeMessage(t float64) Message {
	return Message{Type: MessageTime, Time: t}
}

// NewLoadMessage asks tiles to show module as instance id by deadline.
func NewLoadMessage(id, module string, deadline float64, config map[string]any) Message {
	return Message{
		Type: MessageLoadModule,
		ID:   id,
		Load: &LoadModule{ID: id, Module: module, Deadline: deadline, Config: config},
	}
}

// Channels returns the channel -> interpolator map carried in Config.
// Decoders may deliver the map with either string or interface keys.
func (l *LoadModule) Channels() map[string]string {
	out := make(map[string]string)
	switch raw := l.Config[ChannelsKey].(type) {
	case map[string]any:
		for k, v := range raw {
			s, _ := v.(string)
			out[k] = s
		}
	case map[string]string:
		for k, v := range raw {
			out[k] = v
		}
	case map[any]any:
		for k, v := range raw {
			ks, ok := k.(string)
			if !ok {
				continue
			}
			s, _ := v.(string)
			out[ks] = s
		}
	}
	return out
}

// Validate reports whether the fields required by Type are present.
func (m Message) Validate() error {
	switch m.Type {
	case MessageState:
		return nil
	case MessageStateClosed:
		if m.ID == "" {
			return fmt.Errorf("%s message without id", m.Type)
		}
	case MessageTime:
		if m.Time <= 0 {
			return fmt.Errorf("%s message without time", m.Type)
		}
	case MessageLoadModule:
		if m.Load == nil || m.Load.Module == "" || m.Load.ID == "" {
			return fmt.Errorf("%s message without module", m.Type)
		}
	default:
		return fmt.Errorf("unknown message type %q", m.Type)
	}
	return nil
}
