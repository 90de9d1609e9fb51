// Package transport abstracts the room-scoped broadcast channel the two
// peers converge over. Delivery is best effort: sends never block on the
// peer, nothing is acknowledged, and a closed channel simply stops
// delivering. The match state machine owns all interpretation of frames.
package transport

import (
	"context"
	"errors"

	"github.com/iamovi/KeysAndFingers/pkg/types"
)

var ErrClosed = errors.New("transport closed")

// Bus is one participant's handle on a room's broadcast channel.
type Bus interface {
	// Publish broadcasts to every other room member. Fire and forget.
	Publish(ctx context.Context, env types.Envelope) error
	// Receive yields inbound frames. The channel closes when the bus does.
	Receive() <-chan types.Envelope
	Close() error
}

// Dialer opens a Bus scoped to a room code.
type Dialer interface {
	Dial(ctx context.Context, code, senderID string) (Bus, error)
}

const recvBuffer = 64
