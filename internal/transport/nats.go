package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/iamovi/KeysAndFingers/pkg/types"
)

// NATSDialer runs rooms over a NATS subject instead of the websocket relay.
// NATS echoes a client's own publishes back to its subscription; the match
// loop's senderId filter handles that.
type NATSDialer struct {
	URL    string
	Logger *zap.Logger
}

func (d NATSDialer) Dial(_ context.Context, code, _ string) (Bus, error) {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	nc, err := nats.Connect(d.URL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	b := &natsBus{
		nc:      nc,
		subject: fmt.Sprintf("vs.room.%s", code),
		recv:    make(chan types.Envelope, recvBuffer),
		logger:  logger,
	}

	b.sub, err = nc.Subscribe(b.subject, func(msg *nats.Msg) {
		var env types.Envelope
		if err := json.Unmarshal(msg.Data, &env); err != nil {
			logger.Debug("bad room frame", zap.Error(err))
			return
		}
		if env.Validate() != nil {
			return
		}
		b.deliver(env)
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("subscribe %s: %w", b.subject, err)
	}
	return b, nil
}

type natsBus struct {
	nc      *nats.Conn
	sub     *nats.Subscription
	subject string
	recv    chan types.Envelope
	logger  *zap.Logger
	once    sync.Once

	mu     sync.Mutex
	closed bool
}

// deliver serializes sends against Close so the subscription handler never
// writes to a closed channel.
func (b *natsBus) deliver(env types.Envelope) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	select {
	case b.recv <- env:
	default:
	}
}

func (b *natsBus) Publish(_ context.Context, env types.Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return b.nc.Publish(b.subject, payload)
}

func (b *natsBus) Receive() <-chan types.Envelope { return b.recv }

func (b *natsBus) Close() error {
	b.once.Do(func() {
		_ = b.sub.Unsubscribe()
		b.nc.Close()
		b.mu.Lock()
		b.closed = true
		close(b.recv)
		b.mu.Unlock()
	})
	return nil
}
