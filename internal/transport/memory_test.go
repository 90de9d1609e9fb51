package transport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iamovi/KeysAndFingers/pkg/types"
)

func recvEnvelope(t *testing.T, ch <-chan types.Envelope, within time.Duration) types.Envelope {
	t.Helper()
	select {
	case env, ok := <-ch:
		if !ok {
			t.Fatalf("receive channel closed unexpectedly")
		}
		return env
	case <-time.After(within):
		t.Fatalf("timed out waiting for envelope")
		return types.Envelope{} // unreachable
	}
}

func recvNothing(t *testing.T, ch <-chan types.Envelope, within time.Duration) {
	t.Helper()
	select {
	case env, ok := <-ch:
		if ok {
			t.Fatalf("expected no envelope, got %+v", env)
		}
	case <-time.After(within):
	}
}

func TestMemoryHub_FanOutExcludesSender(t *testing.T) {
	hub := NewMemoryHub()
	a := hub.Join("ROOM42")
	b := hub.Join("ROOM42")
	other := hub.Join("OTHER1")

	env, err := types.NewEnvelope(types.MsgReady, "a", nil)
	require.NoError(t, err)
	require.NoError(t, a.Publish(context.Background(), env))

	got := recvEnvelope(t, b.Receive(), 100*time.Millisecond)
	assert.Equal(t, types.MsgReady, got.Type)

	recvNothing(t, a.Receive(), 50*time.Millisecond)
	recvNothing(t, other.Receive(), 50*time.Millisecond)
}

func TestMemoryHub_CloseStopsDelivery(t *testing.T) {
	hub := NewMemoryHub()
	a := hub.Join("ROOM42")
	b := hub.Join("ROOM42")

	require.NoError(t, b.Close())

	env, err := types.NewEnvelope(types.MsgPing, "a", nil)
	require.NoError(t, err)
	require.NoError(t, a.Publish(context.Background(), env))

	_, ok := <-b.Receive()
	assert.False(t, ok, "closed bus must have a closed receive channel")

	// Double close is harmless.
	assert.NoError(t, b.Close())
}
