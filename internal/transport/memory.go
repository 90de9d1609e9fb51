package transport

import (
	"context"
	"sync"

	"github.com/iamovi/KeysAndFingers/pkg/types"
)

// MemoryHub is an in-process relay: every bus joined under the same code
// receives the others' publishes. It exists so the state machine can be
// exercised end to end without a network.
type MemoryHub struct {
	mu    sync.Mutex
	rooms map[string]map[*memoryBus]struct{}
}

func NewMemoryHub() *MemoryHub {
	return &MemoryHub{rooms: make(map[string]map[*memoryBus]struct{})}
}

// Join adds a member to the room and returns its bus.
func (h *MemoryHub) Join(code string) Bus {
	h.mu.Lock()
	defer h.mu.Unlock()

	b := &memoryBus{hub: h, code: code, recv: make(chan types.Envelope, recvBuffer)}
	if h.rooms[code] == nil {
		h.rooms[code] = make(map[*memoryBus]struct{})
	}
	h.rooms[code][b] = struct{}{}
	return b
}

// Dial implements Dialer.
func (h *MemoryHub) Dial(_ context.Context, code, _ string) (Bus, error) {
	return h.Join(code), nil
}

func (h *MemoryHub) broadcast(from *memoryBus, env types.Envelope) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for member := range h.rooms[from.code] {
		if member == from {
			continue
		}
		select {
		case member.recv <- env:
		default:
			// Slow consumer: drop the frame, not the member.
		}
	}
}

func (h *MemoryHub) leave(b *memoryBus) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if members, ok := h.rooms[b.code]; ok {
		delete(members, b)
		if len(members) == 0 {
			delete(h.rooms, b.code)
		}
	}
}

type memoryBus struct {
	hub  *MemoryHub
	code string
	recv chan types.Envelope
	once sync.Once
}

func (b *memoryBus) Publish(_ context.Context, env types.Envelope) error {
	b.hub.broadcast(b, env)
	return nil
}

func (b *memoryBus) Receive() <-chan types.Envelope { return b.recv }

func (b *memoryBus) Close() error {
	b.once.Do(func() {
		b.hub.leave(b)
		close(b.recv)
	})
	return nil
}
