package primitives

import (
	"math"
	"testing"
)

func TestNewStateMessage(t *testing.T) {
	snap := Snapshot{"a": {"x": {Time: 10, Payload: 1}}}
	m := NewStateMessage(snap)
	if m.Type != MessageState {
		t.Errorf("got Type=%q want %q", m.Type, MessageState)
	}
	if m.Snapshot.Len() != 1 {
		t.Errorf("got %d samples want 1", m.Snapshot.Len())
	}
	if err := m.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestMessageValidate(t *testing.T) {
	tests := []struct {
		name    string
		msg     Message
		wantErr bool
	}{
		{"closed", NewClosedMessage("a"), false},
		{"closed without id", Message{Type: MessageStateClosed}, true},
		{"time", NewTimeMessage(1000), false},
		{"time without value", Message{Type: MessageTime}, true},
		{"load", NewLoadMessage("i1", "clock", 5000, nil), false},
		{"load without module", Message{Type: MessageLoadModule, Load: &LoadModule{ID: "i1"}}, true},
		{"unknown", Message{Type: "bogus"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSnapshotCloneIsIndependent(t *testing.T) {
	snap := Snapshot{"a": {"x": {Time: 10, Payload: 1}}}
	cp := snap.Clone()
	cp["a"]["x"] = Sample{Time: 20, Payload: 2}
	cp["b"] = map[string]Sample{}
	if snap["a"]["x"].Time != 10 {
		t.Error("clone shares channel map with original")
	}
	if _, ok := snap["b"]; ok {
		t.Error("clone shares instance map with original")
	}
}

func TestSnapshotNewest(t *testing.T) {
	snap := Snapshot{"a": {"x": {Time: 10}, "y": {Time: 30}, "z": {Time: 20}}}
	if got := snap.Newest("a"); got != 30 {
		t.Errorf("Newest(a) = %v want 30", got)
	}
	if got := snap.Newest("missing"); !math.IsInf(got, -1) {
		t.Errorf("Newest(missing) = %v want -Inf", got)
	}
}
