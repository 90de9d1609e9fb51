// Package relay implements the server side of the VS transport: a dumb
// room-scoped broadcast relay. It never inspects race semantics; both
// clients stay authoritative over their own state machines.
package relay

import (
	"context"

	"go.uber.org/zap"
)

type HubMsg interface{ isHubMsg() }

// EnsureRoom returns the room for a code, creating it on first use. The
// host mints codes client-side, so the relay treats any first join as
// room creation.
type EnsureRoom struct {
	Code  string
	Reply chan *Room
}

type GetRoom struct {
	Code  string
	Reply chan *Room
}

type RemoveRoom struct {
	Code string
}

type ShutdownHub struct{}

func (EnsureRoom) isHubMsg()  {}
func (GetRoom) isHubMsg()     {}
func (RemoveRoom) isHubMsg()  {}
func (ShutdownHub) isHubMsg() {}

type Hub struct {
	inbox  chan HubMsg
	rooms  map[string]*Room
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger
}

func NewHub(parent context.Context, logger *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:  make(chan HubMsg, 64),
		rooms:  make(map[string]*Room),
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case EnsureRoom:
				if rm := h.rooms[msg.Code]; rm != nil {
					msg.Reply <- rm
					break
				}
				rm := NewRoom(h.ctx, msg.Code, h, h.logger)
				h.rooms[msg.Code] = rm
				h.logger.Info("room created", zap.String("code", msg.Code))
				msg.Reply <- rm

			case GetRoom:
				msg.Reply <- h.rooms[msg.Code] // may be nil

			case RemoveRoom:
				if _, ok := h.rooms[msg.Code]; ok {
					delete(h.rooms, msg.Code)
					h.logger.Info("room removed", zap.String("code", msg.Code))
				}

			case ShutdownHub:
				for _, rm := range h.rooms {
					rm.Inbox() <- Shutdown{}
				}
				clear(h.rooms)
				h.cancel()
			}
		}
	}
}
