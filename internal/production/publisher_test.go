package production

import (
	"errors"
	"testing"

	"github.com/comalice/tilewall/internal/primitives"
	"github.com/comalice/tilewall/statesync"
	"github.com/comalice/tilewall/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelPublisherDelivers(t *testing.T) {
	ch := make(chan primitives.Message, 4)
	p := NewChannelPublisher(ch, nil)

	auth := statesync.NewAuthority()
	h := auth.Open("inst")
	h.Store("x", 10, 1.0)
	h.Close()
	require.NoError(t, auth.Send(p))

	got := <-ch
	assert.Equal(t, primitives.MessageStateClosed, got.Type)
	assert.Equal(t, "inst", got.ID)
	assert.Len(t, ch, 0, "no instances left, no state message")
}

func TestChannelPublisherDropsWhenFull(t *testing.T) {
	ch := make(chan primitives.Message, 1)
	drops := 0
	p := NewChannelPublisher(ch, func() { drops++ })

	require.NoError(t, p.Broadcast(primitives.NewTimeMessage(1)))
	require.NoError(t, p.Broadcast(primitives.NewTimeMessage(2)))

	assert.Equal(t, 1, drops)
	assert.Equal(t, 1.0, (<-ch).Time)
	require.NoError(t, p.Close())
	_, open := <-ch
	assert.False(t, open)
}

func TestFanoutJoinsErrors(t *testing.T) {
	a := &testutil.CaptureBroadcaster{}
	b := &testutil.CaptureBroadcaster{Err: errors.New("down")}
	c := &testutil.CaptureBroadcaster{}

	err := Fanout{a, b, c}.Broadcast(primitives.NewTimeMessage(5))
	assert.ErrorContains(t, err, "down")
	assert.Len(t, a.Messages(), 1)
	assert.Len(t, c.Messages(), 1, "a failing broadcaster does not stop the rest")
}
