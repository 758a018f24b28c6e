package statesync

import (
	"errors"
	"testing"

	"github.com/comalice/tilewall/internal/primitives"
	"github.com/comalice/tilewall/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthorityStoreOverwrites(t *testing.T) {
	a := NewAuthority()
	h := a.Open("a")
	h.Store("x", 10, 1)
	h.Store("x", 20, 2)

	s, ok := a.Get("a", "x")
	require.True(t, ok)
	assert.Equal(t, primitives.Sample{Time: 20, Payload: 2}, s)

	snap := a.Snapshot()
	assert.Len(t, snap["a"], 1)
}

func TestAuthorityOpenClobbers(t *testing.T) {
	a := NewAuthority()
	old := a.Open("a")
	old.Store("x", 10, 1)

	fresh := a.Open("a")
	_, ok := a.Get("a", "x")
	assert.False(t, ok, "reopen should discard previous records")

	old.Store("y", 11, 1)
	_, ok = fresh.Get("y")
	assert.False(t, ok, "handle from before the reopen must be inert")
}

func TestAuthorityCloseQueuesNotification(t *testing.T) {
	a := NewAuthority()
	h := a.Open("a")
	h.Store("x", 10, 1)
	h.Close()

	h.Store("x", 20, 2)
	_, ok := a.Get("a", "x")
	assert.False(t, ok, "store after close must be a no-op")

	msgs := a.Flush()
	require.Len(t, msgs, 1)
	assert.Equal(t, primitives.MessageStateClosed, msgs[0].Type)
	assert.Equal(t, "a", msgs[0].ID)

	assert.Empty(t, a.Flush(), "notifications are drained once")
}

func TestAuthorityCloseUnknownIsNoop(t *testing.T) {
	a := NewAuthority()
	a.Close("missing")
	assert.Empty(t, a.Flush())
}

func TestAuthorityFlushOrdersClosesFirst(t *testing.T) {
	a := NewAuthority()
	a.Open("a").Store("x", 1, "v")
	a.Open("b").Close()

	msgs := a.Flush()
	require.Len(t, msgs, 2)
	assert.Equal(t, primitives.MessageStateClosed, msgs[0].Type)
	assert.Equal(t, primitives.MessageState, msgs[1].Type)
	assert.Equal(t, "v", msgs[1].Snapshot["a"]["x"].Payload)
}

func TestAuthoritySnapshotIsCopy(t *testing.T) {
	a := NewAuthority()
	a.Open("a").Store("x", 1, "v")
	snap := a.Snapshot()
	snap["a"]["x"] = primitives.Sample{Time: 99}
	s, _ := a.Get("a", "x")
	assert.Equal(t, 1.0, s.Time)
}

func TestAuthoritySend(t *testing.T) {
	a := NewAuthority()
	a.Open("a").Store("x", 1, "v")
	b := &testutil.CaptureBroadcaster{}
	require.NoError(t, a.Send(b))
	assert.Len(t, b.OfType(primitives.MessageState), 1)

	b.Err = errors.New("offline")
	err := a.Send(b)
	require.Error(t, err)
	assert.ErrorIs(t, err, b.Err)
}
