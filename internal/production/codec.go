// Package production provides the wall's outer plumbing: wire codecs, the
// coordinator's websocket hub, the tile's reconnecting client, status export
// and playlist loading.
package production

import (
	"fmt"
	"sort"

	"github.com/comalice/tilewall/internal/primitives"
	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/vmihailenco/msgpack/v5"
)

// Codec turns messages into websocket frames and back.
type Codec interface {
	Name() string
	// FrameType is the websocket message type frames are sent as.
	FrameType() int
	Encode(msg primitives.Message) ([]byte, error)
	Decode(data []byte) (primitives.Message, error)
}

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// JSONCodec sends text frames.
type JSONCodec struct{}

func (JSONCodec) Name() string   { return "json" }
func (JSONCodec) FrameType() int { return websocket.TextMessage }

func (JSONCodec) Encode(msg primitives.Message) ([]byte, error) {
	return json.Marshal(msg)
}

func (JSONCodec) Decode(data []byte) (primitives.Message, error) {
	var msg primitives.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return primitives.Message{}, fmt.Errorf("json decode: %w", err)
	}
	return msg, nil
}

// MsgpackCodec sends binary frames. Payload numbers decode as the
// narrowest msgpack type, so interpolators must accept any numeric kind.
type MsgpackCodec struct{}

func (MsgpackCodec) Name() string   { return "msgpack" }
func (MsgpackCodec) FrameType() int { return websocket.BinaryMessage }

func (MsgpackCodec) Encode(msg primitives.Message) ([]byte, error) {
	return msgpack.Marshal(msg)
}

func (MsgpackCodec) Decode(data []byte) (primitives.Message, error) {
	var msg primitives.Message
	if err := msgpack.Unmarshal(data, &msg); err != nil {
		return primitives.Message{}, fmt.Errorf("msgpack decode: %w", err)
	}
	return msg, nil
}

var codecs = map[string]Codec{
	JSONCodec{}.Name():    JSONCodec{},
	MsgpackCodec{}.Name(): MsgpackCodec{},
}

// CodecByName returns the codec registered under name. The empty name
// selects JSON.
func CodecByName(name string) (Codec, error) {
	if name == "" {
		return JSONCodec{}, nil
	}
	c, ok := codecs[name]
	if !ok {
		return nil, fmt.Errorf("unknown codec %q (have %v)", name, CodecNames())
	}
	return c, nil
}

// CodecNames lists the registered codecs, sorted.
func CodecNames() []string {
	names := make([]string, 0, len(codecs))
	for n := range codecs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
