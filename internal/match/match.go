// Package match implements the two-player race state machine. Each client
// runs its own instance; there is no server-side game logic. The two
// instances converge by exchanging messages over a best-effort broadcast
// channel, so every transition here must be reachable from the same message
// sequence on both sides.
//
// All state lives on a single goroutine with a typed inbox; public methods
// post messages and, where needed, wait on a reply channel. Timers
// (heartbeat, countdown, join timeout, ready debounce) are owned by the
// same loop and are cancelled synchronously on leave so no queued callback
// can re-enter state after teardown.
package match

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iamovi/KeysAndFingers/internal/profile"
	"github.com/iamovi/KeysAndFingers/internal/reward"
	"github.com/iamovi/KeysAndFingers/internal/roomcode"
	"github.com/iamovi/KeysAndFingers/internal/texts"
	"github.com/iamovi/KeysAndFingers/internal/transport"
	"github.com/iamovi/KeysAndFingers/internal/verdict"
	"github.com/iamovi/KeysAndFingers/pkg/types"
)

// Phase is the race lifecycle state.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseLobby     Phase = "lobby"
	PhaseCountdown Phase = "countdown"
	PhaseRacing    Phase = "racing"
	PhaseFinished  Phase = "finished"
)

const (
	DefaultHeartbeatInterval = 3 * time.Second
	// DefaultHeartbeatTimeout is over 3x the ping interval so one or two
	// lost pings are not fatal.
	DefaultHeartbeatTimeout = 10 * time.Second
	DefaultJoinTimeout      = 15 * time.Second
	// DefaultReadyDebounce coalesces near-simultaneous readiness so both
	// sides enter countdown from the same causal event.
	DefaultReadyDebounce = 500 * time.Millisecond
	DefaultCountdownTick = time.Second
	countdownTicks       = 3
)

var ErrAlreadyInRoom = errors.New("already in a room")
var ErrNotHost = errors.New("only the host can change difficulty")

// Options configures a Match. Dialer and Texts are required.
type Options struct {
	Dialer transport.Dialer
	Texts  *texts.Provider
	Logger *zap.Logger

	// Profile persists the display name across sessions. Optional.
	Profile *profile.Store
	// Reward, when set, is fetched by the winning side once both players
	// have finished. Optional.
	Reward reward.Fetcher
	// Updates receives a View after every state change, dropped when full.
	Updates chan<- View

	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration
	JoinTimeout       time.Duration
	ReadyDebounce     time.Duration
	CountdownTick     time.Duration

	Now func() time.Time
}

// View is a consistent snapshot of the machine for the caller to render.
type View struct {
	Phase             Phase
	RoomCode          string
	IsHost            bool
	OpponentConnected bool
	Ready             bool
	OpponentReady     bool
	Self              types.PlayerProgress
	Opponent          types.PlayerProgress
	Countdown         int
	ChallengeText     string
	Difficulty        texts.Difficulty
	PlayerName        string
	OpponentName      string
	RewardURL         string
	Err               string
	// Outcome ranks Self against Opponent; it is a final verdict only when
	// Decided is true, and a live ranking otherwise.
	Outcome verdict.Outcome
	Decided bool
}

// Match is one client's half of a race. Construct with New, drive with the
// public methods, observe with View or Options.Updates.
type Match struct {
	opts      Options
	logger    *zap.Logger
	sessionID string
	inbox     chan matchMsg
	ctx       context.Context
	cancel    context.CancelFunc

	// Everything below is owned by the loop goroutine.
	phase             Phase
	roomCode          string
	isHost            bool
	difficulty        texts.Difficulty
	challengeText     string
	raceText          string
	self              types.PlayerProgress
	opponent          types.PlayerProgress
	ready             bool
	opponentReady     bool
	opponentConnected bool
	opponentID        string
	opponentName      string
	playerName        string
	countdown         int
	errMsg            string
	rewardURL         string
	rewardInFlight    bool
	lastSeen          time.Time

	bus             transport.Bus
	busRecv         <-chan types.Envelope
	heartbeat       *time.Ticker
	countdownTicker *time.Ticker
	joinTimer       *time.Timer
	readyTimer      *time.Timer
}

// New starts a match state machine bound to parent's lifetime.
func New(parent context.Context, opts Options) *Match {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if opts.HeartbeatTimeout <= 0 {
		opts.HeartbeatTimeout = DefaultHeartbeatTimeout
	}
	if opts.JoinTimeout <= 0 {
		opts.JoinTimeout = DefaultJoinTimeout
	}
	if opts.ReadyDebounce <= 0 {
		opts.ReadyDebounce = DefaultReadyDebounce
	}
	if opts.CountdownTick <= 0 {
		opts.CountdownTick = DefaultCountdownTick
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	ctx, cancel := context.WithCancel(parent)
	m := &Match{
		opts:       opts,
		logger:     opts.Logger,
		sessionID:  uuid.NewString(),
		inbox:      make(chan matchMsg, 64),
		ctx:        ctx,
		cancel:     cancel,
		phase:      PhaseIdle,
		difficulty: texts.Medium,
		self:       types.DefaultProgress(),
		opponent:   types.DefaultProgress(),
		countdown:  countdownTicks,
	}

	if opts.Profile != nil {
		if p, err := opts.Profile.Load(); err == nil {
			m.playerName = p.Name
		} else {
			m.logger.Warn("failed to load profile", zap.Error(err))
		}
	}

	go m.loop()
	return m
}

// SessionID is this client's transient, unauthenticated identity, used only
// to drop its own echoed broadcasts.
func (m *Match) SessionID() string { return m.sessionID }

// CreateRoom mints a code, opens the room channel, and enters the lobby as
// host. Returns the shareable code.
func (m *Match) CreateRoom() (string, error) {
	reply := make(chan createReply, 1)
	if !m.post(createRoomMsg{reply: reply}) {
		return "", context.Canceled
	}
	select {
	case r := <-reply:
		return r.code, r.err
	case <-m.ctx.Done():
		return "", m.ctx.Err()
	}
}

// JoinRoom normalizes and validates the code, then opens the room channel
// as guest. A malformed code is rejected before any transport activity.
func (m *Match) JoinRoom(code string) error {
	code = roomcode.Normalize(code)
	if err := roomcode.Validate(code); err != nil {
		return err
	}
	reply := make(chan error, 1)
	if !m.post(joinRoomMsg{code: code, reply: reply}) {
		return context.Canceled
	}
	select {
	case err := <-reply:
		return err
	case <-m.ctx.Done():
		return m.ctx.Err()
	}
}

// SetReady marks the local player ready. One-way ratchet until the race
// resets.
func (m *Match) SetReady() { m.post(setReadyMsg{}) }

// SetDifficulty re-derives the challenge text for the level. Host only.
func (m *Match) SetDifficulty(level texts.Difficulty) error {
	reply := make(chan error, 1)
	if !m.post(setDifficultyMsg{level: level, reply: reply}) {
		return context.Canceled
	}
	select {
	case err := <-reply:
		return err
	case <-m.ctx.Done():
		return m.ctx.Err()
	}
}

// UpdateProgress feeds a snapshot from the local typing tracker. During the
// race each snapshot is broadcast; the one that reports Finished is stamped
// with the finish time, sent as a distinct finish message, and ends the
// local race.
func (m *Match) UpdateProgress(p types.PlayerProgress) { m.post(progressMsg{snap: p}) }

// RequestRematch asks the opponent for another round. The receiving side
// auto-acknowledges; both then reset to the lobby.
func (m *Match) RequestRematch() { m.post(rematchMsg{}) }

// LeaveRoom broadcasts a best-effort left notice, tears down every timer
// and the room channel, and returns to idle. Blocks until teardown is done.
func (m *Match) LeaveRoom() {
	reply := make(chan struct{}, 1)
	if !m.post(leaveMsg{reply: reply}) {
		return
	}
	select {
	case <-reply:
	case <-m.ctx.Done():
	}
}

// SetPlayerName sets and persists the display name the heartbeat carries.
func (m *Match) SetPlayerName(name string) { m.post(setNameMsg{name: name}) }

// ResetPlayerName clears the persisted display name.
func (m *Match) ResetPlayerName() { m.post(resetNameMsg{}) }

// View returns a consistent snapshot of the machine.
func (m *Match) View() View {
	reply := make(chan View, 1)
	if !m.post(viewMsg{reply: reply}) {
		return View{Phase: PhaseIdle}
	}
	select {
	case v := <-reply:
		return v
	case <-m.ctx.Done():
		return View{Phase: PhaseIdle}
	}
}

// Close stops the loop. The room, if any, gets a best-effort left notice.
func (m *Match) Close() { m.cancel() }

func (m *Match) post(msg matchMsg) bool {
	select {
	case m.inbox <- msg:
		return true
	case <-m.ctx.Done():
		return false
	}
}
