package statesync

import (
	"testing"

	"github.com/comalice/tilewall/internal/primitives"
	"github.com/comalice/tilewall/interpolate"
)

func TestEntryValueNoData(t *testing.T) {
	e := NewEntry("x", nil, 25)
	if v, ok := e.Value(100); ok || v != nil {
		t.Errorf("Value on empty entry = %v, %v; want nil, false", v, ok)
	}
}

func TestEntryValueBounds(t *testing.T) {
	e := NewEntry("x", interpolate.Lerp, 25)
	e.Push(primitives.Sample{Time: 100, Payload: 0.0})
	e.Push(primitives.Sample{Time: 200, Payload: 10.0})

	tests := []struct {
		name string
		at   float64
		want float64
	}{
		{"before earliest", 50, 0},
		{"at earliest", 100, 0},
		{"between", 150, 5},
		{"at latest", 200, 10},
		{"after latest", 500, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, ok := e.Value(tt.at)
			if !ok {
				t.Fatal("Value reported no data")
			}
			if got := v.(float64); got != tt.want {
				t.Errorf("Value(%v) = %v want %v", tt.at, got, tt.want)
			}
		})
	}
}

func TestEntryCapacity(t *testing.T) {
	e := NewEntry("x", nil, 3)
	for i := 1; i <= 5; i++ {
		e.Push(primitives.Sample{Time: float64(i), Payload: i})
	}
	got := e.Samples()
	if len(got) != 3 || got[0].Time != 3 {
		t.Errorf("Samples() = %v, want the three newest", got)
	}
}

func TestEntryPushOrdering(t *testing.T) {
	e := NewEntry("x", nil, 25)
	e.Push(primitives.Sample{Time: 10, Payload: "a"})
	if !e.Push(primitives.Sample{Time: 10, Payload: "b"}) {
		t.Error("same-time push should replace the latest sample")
	}
	if e.Push(primitives.Sample{Time: 5, Payload: "old"}) {
		t.Error("out-of-order push should be dropped")
	}
	latest, _ := e.Latest()
	if e.Len() != 1 || latest.Payload != "b" {
		t.Errorf("got len=%d latest=%v", e.Len(), latest)
	}
}

func TestEntryValueAtAppliesRenderDelay(t *testing.T) {
	m := NewMirror(WithRenderDelay(200))
	e := m.Open("a").MustDefine("x", interpolate.HoldLast)
	e.Push(primitives.Sample{Time: 1000, Payload: "A"})
	e.Push(primitives.Sample{Time: 1100, Payload: "B"})

	if v, _ := e.ValueAt(1250); v != "A" {
		t.Errorf("ValueAt(1250) = %v want A (reads at 1050)", v)
	}
	if v, _ := e.ValueAt(1300); v != "B" {
		t.Errorf("ValueAt(1300) = %v want B", v)
	}
}
