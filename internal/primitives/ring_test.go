package primitives

import (
	"testing"
	"time"
)

func TestRingEvictsOldest(t *testing.T) {
	r := NewRing[int](3)
	for i := 1; i <= 3; i++ {
		if r.Push(i) {
			t.Fatalf("push %d evicted before ring was full", i)
		}
	}
	if !r.Push(4) {
		t.Fatal("push 4 should evict")
	}
	got := r.Items()
	want := []int{2, 3, 4}
	if len(got) != len(want) {
		t.Fatalf("Items() = %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Items()[%d] = %d want %d", i, got[i], want[i])
		}
	}
	if last := r.Last(); last == nil || *last != 4 {
		t.Errorf("Last() = %v want 4", last)
	}
}

func TestRingReset(t *testing.T) {
	r := NewRing[string](2)
	r.Push("a")
	r.Reset()
	if r.Len() != 0 || r.Last() != nil {
		t.Errorf("ring not empty after Reset: len=%d", r.Len())
	}
	if r.Cap() != 2 {
		t.Errorf("Cap() = %d want 2", r.Cap())
	}
}

func TestRingMinimumCapacity(t *testing.T) {
	r := NewRing[int](0)
	r.Push(1)
	r.Push(2)
	if got := r.Items(); len(got) != 1 || got[0] != 2 {
		t.Errorf("Items() = %v want [2]", got)
	}
}

func TestAdjustableClock(t *testing.T) {
	base := ClockFunc(func() float64 { return 1000 })
	c := NewAdjustableClock(base)
	if c.Now() != 1000 {
		t.Fatalf("Now() = %v want 1000", c.Now())
	}
	c.AdjustTo(1500)
	if c.Now() != 1500 {
		t.Errorf("Now() after AdjustTo = %v want 1500", c.Now())
	}
	if c.Offset() != 500 {
		t.Errorf("Offset() = %v want 500", c.Offset())
	}
}

func TestUntil(t *testing.T) {
	c := ClockFunc(func() float64 { return 1000 })
	if got := Until(c, 900); got != 0 {
		t.Errorf("Until(past) = %v want 0", got)
	}
	if got := Until(c, 1250); got != 250*time.Millisecond {
		t.Errorf("Until(1250) = %v want 250ms", got)
	}
}
