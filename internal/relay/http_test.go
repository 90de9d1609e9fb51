package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iamovi/KeysAndFingers/internal/roomcode"
	"github.com/iamovi/KeysAndFingers/internal/transport"
	"github.com/iamovi/KeysAndFingers/pkg/types"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(Routes(newTestHub(t), zap.NewNop()))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMintRoomCode(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/rooms", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var body struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Len(t, body.Code, roomcode.Length)
	assert.NoError(t, roomcode.Validate(body.Code))
}

func TestWSHandler_RejectsBadCode(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/ws?code=ab")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWSRoundTrip_RelayFansOutToPeerOnly(t *testing.T) {
	srv := newTestServer(t)
	dialer := transport.WSDialer{URL: wsURL(srv)}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	alice, err := dialer.Dial(ctx, "HJKMNP", "alice")
	require.NoError(t, err)
	defer alice.Close()

	bob, err := dialer.Dial(ctx, "HJKMNP", "bob")
	require.NoError(t, err)
	defer bob.Close()

	env, err := types.NewEnvelope(types.MsgPing, "alice", "Alice")
	require.NoError(t, err)
	require.NoError(t, alice.Publish(ctx, env))

	select {
	case got := <-bob.Receive():
		assert.Equal(t, types.MsgPing, got.Type)
		assert.Equal(t, "alice", got.SenderID)
	case <-time.After(2 * time.Second):
		t.Fatal("bob never received alice's frame")
	}

	select {
	case got := <-alice.Receive():
		t.Fatalf("alice got her own frame back: %+v", got)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestWSRoundTrip_CodeReusableWhileOldRoomIsReaped(t *testing.T) {
	srv := newTestServer(t)
	dialer := transport.WSDialer{URL: wsURL(srv)}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	first, err := dialer.Dial(ctx, "WXYZ23", "first")
	require.NoError(t, err)
	require.NoError(t, first.Close())

	// The old room is still being torn down and reaped; new joins under the
	// same code must connect rather than hang on an unanswered join.
	alice, err := dialer.Dial(ctx, "WXYZ23", "alice")
	require.NoError(t, err)
	defer alice.Close()

	bob, err := dialer.Dial(ctx, "WXYZ23", "bob")
	require.NoError(t, err)
	defer bob.Close()

	env, err := types.NewEnvelope(types.MsgPing, "alice", "hello")
	require.NoError(t, err)
	require.NoError(t, alice.Publish(ctx, env))

	select {
	case got := <-bob.Receive():
		assert.Equal(t, types.MsgPing, got.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("bob never received alice's frame after the room was reborn")
	}
}

func TestWSRoundTrip_MalformedFramesAreNotRelayed(t *testing.T) {
	srv := newTestServer(t)
	dialer := transport.WSDialer{URL: wsURL(srv)}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	alice, err := dialer.Dial(ctx, "QRSTUV", "alice")
	require.NoError(t, err)
	defer alice.Close()

	bob, err := dialer.Dial(ctx, "QRSTUV", "bob")
	require.NoError(t, err)
	defer bob.Close()

	// Unknown type: the relay validates envelopes before fan-out.
	require.NoError(t, alice.Publish(ctx, types.Envelope{Type: "bogus", SenderID: "alice"}))

	env, err := types.NewEnvelope(types.MsgReady, "alice", nil)
	require.NoError(t, err)
	require.NoError(t, alice.Publish(ctx, env))

	select {
	case got := <-bob.Receive():
		assert.Equal(t, types.MsgReady, got.Type, "bogus frame should have been dropped at the relay")
	case <-time.After(2 * time.Second):
		t.Fatal("valid frame never arrived")
	}
}
