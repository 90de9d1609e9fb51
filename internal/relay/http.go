package relay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iamovi/KeysAndFingers/internal/roomcode"
	"github.com/iamovi/KeysAndFingers/pkg/types"
)

const writeTimeout = 3 * time.Second

// Routes builds the relay's HTTP surface with the hub injected.
func Routes(h *Hub, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Post("/rooms", MintRoomCode(h, logger))
	r.Get("/healthz", Healthz)
	r.Get("/ws", WSHandler(h, logger))
	return r
}

// MintRoomCode generates a fresh, unused room code. Hosts normally mint
// codes client-side; this exists for the lobby "challenge a user" flow,
// which needs a code before either client has connected.
func MintRoomCode(h *Hub, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var code string
		for {
			c, err := roomcode.Generate()
			if err != nil {
				http.Error(w, "failed to generate code", http.StatusInternalServerError)
				return
			}
			reply := make(chan *Room, 1)
			h.Inbox() <- GetRoom{Code: c, Reply: reply}
			if <-reply == nil {
				code = c
				break
			}
			logger.Warn("room code collision, regenerating")
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(struct {
			Code string `json:"code"`
		}{Code: code})
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// WSHandler attaches one client to a room and relays its frames to the
// other member. Frames that do not parse as a valid envelope are dropped
// here so a hostile client cannot feed garbage to its peer.
func WSHandler(h *Hub, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := roomcode.Normalize(r.URL.Query().Get("code"))
		if err := roomcode.Validate(code); err != nil {
			http.Error(w, "invalid code", http.StatusBadRequest)
			return
		}
		sessionID := r.URL.Query().Get("session")
		if sessionID == "" {
			sessionID = uuid.NewString()
		}

		reply := make(chan *Room, 1)
		h.Inbox() <- EnsureRoom{Code: code, Reply: reply}
		rm := <-reply
		if rm == nil {
			http.Error(w, "room unavailable", http.StatusServiceUnavailable)
			return
		}

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		// The room can shut down between resolution and join (its last
		// member left during our websocket accept), and the hub only reaps
		// it asynchronously. Retry through EnsureRoom until a live room
		// answers; Done unblocks any join a dying room never answers.
		out := make(chan []byte, 8)
		joined := false
		for !joined {
			joinErr := make(chan error, 1)
			select {
			case rm.Inbox() <- Join{SessionID: sessionID, Outbox: out, Reply: joinErr}:
				select {
				case err := <-joinErr:
					switch {
					case err == nil:
						joined = true
					case errors.Is(err, ErrRoomShutdown):
					default:
						_ = conn.Close(websocket.StatusPolicyViolation, err.Error())
						return
					}
				case <-rm.Done():
					// The reply may have been buffered just before the
					// shutdown; honor a successful join rather than
					// abandoning a membership.
					select {
					case err := <-joinErr:
						joined = err == nil
					default:
					}
				}
			case <-rm.Done():
			}
			if !joined {
				reply := make(chan *Room, 1)
				h.Inbox() <- EnsureRoom{Code: code, Reply: reply}
				if rm = <-reply; rm == nil {
					_ = conn.Close(websocket.StatusTryAgainLater, "room unavailable")
					return
				}
			}
		}
		defer func() { rm.Inbox() <- Leave{SessionID: sessionID} }()

		// Writer goroutine
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for data := range out {
				ctx, cancel := context.WithTimeout(writeCtx, writeTimeout)
				_ = conn.Write(ctx, websocket.MessageText, data)
				cancel()
			}
		}()

		// Reader loop
		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					return
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

			rm.Inbox() <- Frame{SenderID: env.SenderID, Data: data}
		}
	}
}
