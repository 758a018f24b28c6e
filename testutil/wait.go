package testutil

import (
	"testing"
	"time"
)

// WaitFor polls cond every millisecond until it holds or timeout elapses,
// failing t in the latter case.
func WaitFor(t testing.TB, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out after %v waiting for %s", timeout, msg)
		}
		time.Sleep(time.Millisecond)
	}
}
