// Package interpolate holds the strategies a mirror entry uses to blend two
// bracketing samples into the value at an arbitrary time.
//
// Strategies are pure: they must not retain av or bv, and must tolerate nil
// payloads. Compose per-field strategies with Object and Slice.
package interpolate

import (
	"fmt"
	"math"
	"sort"
)

// Interpolator blends (at, av) and (bt, bv) at time t, where at <= t < bt.
type Interpolator interface {
	Interpolate(t, at float64, av any, bt float64, bv any) any
}

// Func adapts a function to Interpolator.
type Func func(t, at float64, av any, bt float64, bv any) any

// Interpolate calls f.
func (f Func) Interpolate(t, at float64, av any, bt float64, bv any) any {
	return f(t, at, av, bt, bv)
}

var (
	// HoldLast returns the value still current at t.
	HoldLast Interpolator = Func(holdLast)
	// Nearest jumps to the next value halfway through the interval.
	Nearest Interpolator = Func(nearest)
	// Lerp blends numeric payloads linearly and holds anything else.
	Lerp Interpolator = Func(lerp)
)

var registry = map[string]Interpolator{
	"":        HoldLast,
	"hold":    HoldLast,
	"current": HoldLast,
	"nearest": Nearest,
	"lerp":    Lerp,
}

// Lookup returns the stock strategy registered under name. The empty name
// selects HoldLast.
func Lookup(name string) (Interpolator, error) {
	if i, ok := registry[name]; ok {
		return i, nil
	}
	return nil, fmt.Errorf("unknown interpolator %q (known: %v)", name, Names())
}

// Names lists the registered strategy names.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		if name != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func holdLast(t, at float64, av any, bt float64, bv any) any {
	if t >= bt {
		return bv
	}
	return av
}

func nearest(t, at float64, av any, bt float64, bv any) any {
	if math.Abs(t-at) < math.Abs(t-bt) {
		return av
	}
	return bv
}

func lerp(t, at float64, av any, bt float64, bv any) any {
	a, aok := toFloat(av)
	b, bok := toFloat(bv)
	if !aok || !bok || bt == at {
		return holdLast(t, at, av, bt, bv)
	}
	return a + (b-a)/(bt-at)*(t-at)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}
