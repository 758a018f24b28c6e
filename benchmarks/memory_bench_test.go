// Package benchmarks provides memory footprint benchmarks.
package benchmarks

import (
	"fmt"
	"runtime"
	"testing"

	"github.com/comalice/tilewall/interpolate"
	"github.com/comalice/tilewall/statesync"
	"github.com/comalice/tilewall/testutil"
)

func BenchmarkMemoryMirrorInstance(b *testing.B) {
	const instances = 1000
	clock := testutil.NewManualClock(0)
	var before runtime.MemStats
	runtime.ReadMemStats(&before)

	m := statesync.NewMirror(statesync.WithClock(clock))
	for i := 0; i < instances; i++ {
		v := m.Open(fmt.Sprintf("m%d", i))
		for c := 0; c < 4; c++ {
			v.MustDefine(fmt.Sprintf("c%d", c), interpolate.Lerp)
		}
	}
	m.Apply(GenSnapshot(instances, 4, 0))

	runtime.GC()
	var after runtime.MemStats
	runtime.ReadMemStats(&after)
	bytesPer := (after.TotalAlloc - before.TotalAlloc) / instances
	b.ReportMetric(float64(bytesPer)/1024, "KB/instance")
	runtime.KeepAlive(m)
}

func BenchmarkMemoryPriorRings(b *testing.B) {
	clock := testutil.NewManualClock(0)
	m := statesync.NewMirror(statesync.WithClock(clock))
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		// undefined channels fill the rings, capped at their capacity
		m.Apply(GenSnapshot(1, 8, float64(i)))
	}
	b.StopTimer()
	if got := len(m.Buffered("m0", "c0")); got > 25 {
		b.Fatalf("prior ring grew to %d", got)
	}
}
