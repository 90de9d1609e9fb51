package relay

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return NewHub(ctx, zap.NewNop())
}

func ensureRoom(t *testing.T, h *Hub, code string) *Room {
	t.Helper()
	reply := make(chan *Room, 1)
	h.Inbox() <- EnsureRoom{Code: code, Reply: reply}
	select {
	case rm := <-reply:
		require.NotNil(t, rm)
		return rm
	case <-time.After(time.Second):
		t.Fatal("hub never replied to EnsureRoom")
		return nil
	}
}

func getRoom(t *testing.T, h *Hub, code string) *Room {
	t.Helper()
	reply := make(chan *Room, 1)
	h.Inbox() <- GetRoom{Code: code, Reply: reply}
	select {
	case rm := <-reply:
		return rm
	case <-time.After(time.Second):
		t.Fatal("hub never replied to GetRoom")
		return nil
	}
}

func roomView(t *testing.T, rm *Room) RoomView {
	t.Helper()
	reply := make(chan RoomView, 1)
	rm.Inbox() <- GetView{Reply: reply}
	select {
	case v := <-reply:
		return v
	case <-time.After(time.Second):
		t.Fatal("room never replied to GetView")
		return RoomView{}
	}
}

func join(t *testing.T, rm *Room, session string, outbox chan []byte) error {
	t.Helper()
	reply := make(chan error, 1)
	rm.Inbox() <- Join{SessionID: session, Outbox: outbox, Reply: reply}
	select {
	case err := <-reply:
		return err
	case <-time.After(time.Second):
		t.Fatal("room never replied to Join")
		return nil
	}
}

func TestHub_EnsureRoomIsIdempotent(t *testing.T) {
	h := newTestHub(t)

	first := ensureRoom(t, h, "AAAAAA")
	second := ensureRoom(t, h, "AAAAAA")
	other := ensureRoom(t, h, "BBBBBB")

	assert.Same(t, first, second, "same code must resolve to the same room")
	assert.NotSame(t, first, other)
}

func TestHub_GetRoomUnknownCodeIsNil(t *testing.T) {
	h := newTestHub(t)
	assert.Nil(t, getRoom(t, h, "NOSUCH"))
}

func TestRoom_CapsMembershipAtTwo(t *testing.T) {
	h := newTestHub(t)
	rm := ensureRoom(t, h, "CCCCCC")

	require.NoError(t, join(t, rm, "s1", make(chan []byte, 8)))
	require.NoError(t, join(t, rm, "s2", make(chan []byte, 8)))
	assert.ErrorIs(t, join(t, rm, "s3", make(chan []byte, 8)), ErrRoomFull)
	assert.Equal(t, 2, roomView(t, rm).NumClients)
}

func TestRoom_RejectsDuplicateSession(t *testing.T) {
	h := newTestHub(t)
	rm := ensureRoom(t, h, "DDDDDD")

	require.NoError(t, join(t, rm, "s1", make(chan []byte, 8)))
	assert.ErrorIs(t, join(t, rm, "s1", make(chan []byte, 8)), ErrDuplicateSession)
}

func TestRoom_FrameFanoutExcludesSender(t *testing.T) {
	h := newTestHub(t)
	rm := ensureRoom(t, h, "EEEEEE")

	out1 := make(chan []byte, 8)
	out2 := make(chan []byte, 8)
	require.NoError(t, join(t, rm, "s1", out1))
	require.NoError(t, join(t, rm, "s2", out2))

	rm.Inbox() <- Frame{SenderID: "s1", Data: []byte(`{"type":"ready","senderId":"s1"}`)}

	select {
	case data := <-out2:
		assert.Contains(t, string(data), "ready")
	case <-time.After(time.Second):
		t.Fatal("peer never received the frame")
	}
	select {
	case data := <-out1:
		t.Fatalf("sender got its own frame back: %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRoom_SlowMemberIsDroppedNotTheRoom(t *testing.T) {
	h := newTestHub(t)
	rm := ensureRoom(t, h, "FFFFFF")

	slow := make(chan []byte) // unbuffered and never read
	fast := make(chan []byte, 8)
	require.NoError(t, join(t, rm, "slow", slow))
	require.NoError(t, join(t, rm, "fast", fast))

	rm.Inbox() <- Frame{SenderID: "fast", Data: []byte(`x`)}

	require.Eventually(t, func() bool {
		return roomView(t, rm).NumClients == 1
	}, time.Second, 10*time.Millisecond, "stalled member never got evicted")

	_, open := <-slow
	assert.False(t, open, "evicted member's outbox must be closed")
}

func TestRoom_SignalsShutdownAfterLastLeave(t *testing.T) {
	h := newTestHub(t)
	rm := ensureRoom(t, h, "HHHHHH")

	require.NoError(t, join(t, rm, "a", make(chan []byte, 8)))
	rm.Inbox() <- Leave{SessionID: "a"}

	select {
	case <-rm.Done():
	case <-time.After(time.Second):
		t.Fatal("room never signalled shutdown after its last member left")
	}
}

func TestRoom_JoinIntoDyingRoomIsNeverStranded(t *testing.T) {
	h := newTestHub(t)
	rm := ensureRoom(t, h, "JJJJJJ")

	require.NoError(t, join(t, rm, "a", make(chan []byte, 8)))

	// A second joiner races the last member's leave. It must either get an
	// answer or see Done close; blocking forever strands the caller with
	// its connection held open.
	rm.Inbox() <- Leave{SessionID: "a"}
	reply := make(chan error, 1)
	select {
	case rm.Inbox() <- Join{SessionID: "b", Outbox: make(chan []byte, 8), Reply: reply}:
	case <-rm.Done():
		return // shutdown observed before the post; callers retry off Done
	}

	select {
	case err := <-reply:
		assert.ErrorIs(t, err, ErrRoomShutdown)
	case <-rm.Done():
	case <-time.After(time.Second):
		t.Fatal("join into a dying room was never answered")
	}
}

func TestRoom_LastLeaveRemovesRoomFromHub(t *testing.T) {
	h := newTestHub(t)
	rm := ensureRoom(t, h, "GGGGGG")

	out := make(chan []byte, 8)
	require.NoError(t, join(t, rm, "s1", out))
	rm.Inbox() <- Leave{SessionID: "s1"}

	require.Eventually(t, func() bool {
		return getRoom(t, h, "GGGGGG") == nil
	}, time.Second, 10*time.Millisecond, "empty room was never reaped")

	_, open := <-out
	assert.False(t, open)
}
