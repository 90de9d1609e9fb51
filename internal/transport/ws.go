package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/iamovi/KeysAndFingers/pkg/types"
)

const writeTimeout = 3 * time.Second

// WSDialer opens buses against the relay server's /ws endpoint.
type WSDialer struct {
	// URL is the relay base, e.g. "ws://localhost:8080".
	URL    string
	Logger *zap.Logger
}

func (d WSDialer) Dial(ctx context.Context, code, senderID string) (Bus, error) {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	u := fmt.Sprintf("%s/ws?code=%s&session=%s",
		d.URL, url.QueryEscape(code), url.QueryEscape(senderID))
	conn, _, err := websocket.Dial(ctx, u, nil)
	if err != nil {
		return nil, fmt.Errorf("dial relay: %w", err)
	}

	bctx, cancel := context.WithCancel(context.Background())
	b := &wsBus{
		conn:   conn,
		recv:   make(chan types.Envelope, recvBuffer),
		ctx:    bctx,
		cancel: cancel,
		logger: logger,
	}
	go b.readLoop()
	return b, nil
}

type wsBus struct {
	conn   *websocket.Conn
	recv   chan types.Envelope
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger
	once   sync.Once
}

func (b *wsBus) readLoop() {
	defer close(b.recv)
	for {
		_, data, err := b.conn.Read(b.ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			default:
				if b.ctx.Err() == nil {
					b.logger.Debug("relay read failed", zap.Error(err))
				}
			}
			return
		}

		var env types.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}
		if env.Validate() != nil {
			continue
		}
		select {
		case b.recv <- env:
		default:
			// Consumer stalled; best-effort channel, drop the frame.
		}
	}
}

func (b *wsBus) Publish(ctx context.Context, env types.Envelope) error {
	if b.ctx.Err() != nil {
		return ErrClosed
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return b.conn.Write(wctx, websocket.MessageText, payload)
}

func (b *wsBus) Receive() <-chan types.Envelope { return b.recv }

func (b *wsBus) Close() error {
	b.once.Do(func() {
		b.cancel()
		_ = b.conn.Close(websocket.StatusNormalClosure, "bye")
	})
	return nil
}
