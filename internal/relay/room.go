package relay

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// MaxMembers caps a room at the two race participants.
const MaxMembers = 2

var ErrRoomFull = errors.New("room is full")
var ErrDuplicateSession = errors.New("session already joined")
var ErrRoomShutdown = errors.New("room is shut down")

type RoomMsg interface{ isRoomMsg() }

type Join struct {
	SessionID string
	Outbox    chan []byte
	Reply     chan error
}

type Leave struct{ SessionID string }

// Frame is a raw client frame to fan out to the other member.
type Frame struct {
	SenderID string
	Data     []byte
}

type Shutdown struct{}

type GetView struct{ Reply chan RoomView }

func (Join) isRoomMsg()     {}
func (Leave) isRoomMsg()    {}
func (Frame) isRoomMsg()    {}
func (Shutdown) isRoomMsg() {}
func (GetView) isRoomMsg()  {}

// RoomView reflects internal state without data races. Test-only.
type RoomView struct {
	Code       string
	NumClients int
}

type Room struct {
	inbox   chan RoomMsg
	code    string
	members map[string]chan []byte
	hub     *Hub
	ctx     context.Context
	cancel  context.CancelFunc
	logger  *zap.Logger
}

func NewRoom(parent context.Context, code string, hub *Hub, logger *zap.Logger) *Room {
	ctx, cancel := context.WithCancel(parent)
	r := &Room{
		inbox:   make(chan RoomMsg, 64),
		code:    code,
		members: make(map[string]chan []byte),
		hub:     hub,
		ctx:     ctx,
		cancel:  cancel,
		logger:  logger,
	}
	go r.loop()
	return r
}

func (r *Room) Inbox() chan<- RoomMsg { return r.inbox }

// Done closes once the room has shut down. The hub reaps dead rooms
// asynchronously, so a caller that resolved a room can still be holding one
// whose loop has exited; selecting on Done alongside a reply channel keeps
// such a caller from waiting forever.
func (r *Room) Done() <-chan struct{} { return r.ctx.Done() }

func (r *Room) loop() {
	for {
		select {
		case <-r.ctx.Done():
			r.shutdown()
			return

		case m := <-r.inbox:
			switch msg := m.(type) {
			case Join:
				if len(r.members) >= MaxMembers {
					msg.Reply <- ErrRoomFull
					break
				}
				if _, ok := r.members[msg.SessionID]; ok {
					msg.Reply <- ErrDuplicateSession
					break
				}
				r.members[msg.SessionID] = msg.Outbox
				r.logger.Debug("member joined",
					zap.String("code", r.code), zap.String("session", msg.SessionID))
				msg.Reply <- nil

			case Leave:
				if out, ok := r.members[msg.SessionID]; ok {
					delete(r.members, msg.SessionID)
					close(out)
				}
				if len(r.members) == 0 {
					// Room dies with its last member. Sent from a
					// goroutine so hub and room inboxes never wait on
					// each other.
					go func() { r.hub.Inbox() <- RemoveRoom{Code: r.code} }()
					r.shutdown()
					return
				}

			case Frame:
				for id, out := range r.members {
					if id == msg.SenderID {
						continue
					}
					select {
					case out <- msg.Data:
					default:
						// Slow member: drop them, not the room.
						delete(r.members, id)
						close(out)
					}
				}

			case GetView:
				msg.Reply <- RoomView{Code: r.code, NumClients: len(r.members)}

			case Shutdown:
				r.shutdown()
				return
			}
		}
	}
}

func (r *Room) shutdown() {
	for id, out := range r.members {
		close(out)
		delete(r.members, id)
	}
	r.cancel()

	// Fail anything that raced into the inbox before the cancel became
	// observable, so no joiner is left waiting on a reply.
	for {
		select {
		case m := <-r.inbox:
			switch msg := m.(type) {
			case Join:
				msg.Reply <- ErrRoomShutdown
			case GetView:
				msg.Reply <- RoomView{Code: r.code}
			}
		default:
			return
		}
	}
}
