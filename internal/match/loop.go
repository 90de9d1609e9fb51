package match

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iamovi/KeysAndFingers/internal/roomcode"
	"github.com/iamovi/KeysAndFingers/internal/texts"
	"github.com/iamovi/KeysAndFingers/internal/verdict"
	"github.com/iamovi/KeysAndFingers/pkg/types"
)

type matchMsg interface{ isMatchMsg() }

type createReply struct {
	code string
	err  error
}

type createRoomMsg struct{ reply chan createReply }
type joinRoomMsg struct {
	code  string
	reply chan error
}
type setReadyMsg struct{}
type setDifficultyMsg struct {
	level texts.Difficulty
	reply chan error
}
type progressMsg struct{ snap types.PlayerProgress }
type rematchMsg struct{}
type leaveMsg struct{ reply chan struct{} }
type viewMsg struct{ reply chan View }
type setNameMsg struct{ name string }
type resetNameMsg struct{}
type rewardFetchedMsg struct {
	url string
	err error
}

func (createRoomMsg) isMatchMsg()    {}
func (joinRoomMsg) isMatchMsg()      {}
func (setReadyMsg) isMatchMsg()      {}
func (setDifficultyMsg) isMatchMsg() {}
func (progressMsg) isMatchMsg()      {}
func (rematchMsg) isMatchMsg()       {}
func (leaveMsg) isMatchMsg()         {}
func (viewMsg) isMatchMsg()          {}
func (setNameMsg) isMatchMsg()       {}
func (resetNameMsg) isMatchMsg()     {}
func (rewardFetchedMsg) isMatchMsg() {}

func tickerC(t *time.Ticker) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C
}

func timerC(t *time.Timer) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C
}

func (m *Match) loop() {
	for {
		select {
		case <-m.ctx.Done():
			m.teardown(true)
			return

		case msg := <-m.inbox:
			m.handleControl(msg)

		case env, ok := <-m.busRecv:
			if !ok {
				m.busRecv = nil
				continue
			}
			m.handleEnvelope(env)

		case <-tickerC(m.heartbeat):
			m.heartbeatTick()

		case <-tickerC(m.countdownTicker):
			m.countdownTick()

		case <-timerC(m.joinTimer):
			m.joinTimer = nil
			m.joinTimedOut()

		case <-timerC(m.readyTimer):
			m.readyTimer = nil
			m.readyDebounceFired()
		}
		m.pushUpdate()
	}
}

func (m *Match) handleControl(msg matchMsg) {
	switch c := msg.(type) {
	case createRoomMsg:
		c.reply <- m.createRoom()

	case joinRoomMsg:
		c.reply <- m.joinRoom(c.code)

	case setReadyMsg:
		m.setReady()

	case setDifficultyMsg:
		c.reply <- m.setDifficulty(c.level)

	case progressMsg:
		m.handleProgress(c.snap)

	case rematchMsg:
		if !m.opponentConnected {
			m.errMsg = "Opponent is not connected."
			return
		}
		m.publish(types.MsgRestartRequest, nil)

	case leaveMsg:
		m.teardown(true)
		c.reply <- struct{}{}

	case viewMsg:
		c.reply <- m.view()

	case setNameMsg:
		m.setPlayerName(c.name)

	case resetNameMsg:
		m.playerName = ""
		if m.opts.Profile != nil {
			if err := m.opts.Profile.Reset(); err != nil {
				m.logger.Warn("failed to reset profile", zap.Error(err))
			}
		}

	case rewardFetchedMsg:
		m.rewardInFlight = false
		if m.phase == PhaseIdle {
			// The fetch outlived the room it belonged to; a later room must
			// not inherit its URL.
			return
		}
		if c.err != nil {
			// Non-fatal: the reward UI just keeps loading.
			m.logger.Warn("reward fetch failed", zap.Error(c.err))
			return
		}
		if m.rewardURL == "" {
			m.rewardURL = c.url
			m.publish(types.MsgReward, c.url)
		}
	}
}

// ---- Room open / close ----

func (m *Match) createRoom() createReply {
	if m.phase != PhaseIdle {
		return createReply{err: ErrAlreadyInRoom}
	}
	code, err := m.generateCode()
	if err != nil {
		return createReply{err: err}
	}
	if err := m.openRoom(code, true); err != nil {
		return createReply{err: err}
	}
	return createReply{code: code}
}

func (m *Match) joinRoom(code string) error {
	if m.phase != PhaseIdle {
		return ErrAlreadyInRoom
	}
	return m.openRoom(code, false)
}

func (m *Match) openRoom(code string, host bool) error {
	bus, err := m.opts.Dialer.Dial(m.ctx, code, m.sessionID)
	if err != nil {
		m.errMsg = "Failed to open room channel."
		return fmt.Errorf("open room %s: %w", code, err)
	}

	m.bus = bus
	m.busRecv = bus.Receive()
	m.roomCode = code
	m.isHost = host
	m.phase = PhaseLobby
	m.errMsg = ""
	m.lastSeen = m.now()
	m.heartbeat = time.NewTicker(m.opts.HeartbeatInterval)

	if !host {
		// Announce ourselves so the host learns someone arrived, and arm
		// the join timeout in case nobody is home.
		m.publish(types.MsgPing, m.playerName)
		m.joinTimer = time.NewTimer(m.opts.JoinTimeout)
	}

	m.logger.Info("room opened",
		zap.String("code", code), zap.Bool("host", host))
	return nil
}

// teardown stops the countdown, heartbeat and join timers, then closes the
// channel, in that order, so no queued callback re-enters state afterwards.
func (m *Match) teardown(notify bool) {
	if notify && m.bus != nil {
		m.publish(types.MsgLeft, nil)
	}
	m.stopCountdown()
	if m.heartbeat != nil {
		m.heartbeat.Stop()
		m.heartbeat = nil
	}
	if m.joinTimer != nil {
		m.joinTimer.Stop()
		m.joinTimer = nil
	}
	m.stopReadyTimer()
	if m.bus != nil {
		_ = m.bus.Close()
		m.bus = nil
		m.busRecv = nil
	}

	m.phase = PhaseIdle
	m.roomCode = ""
	m.isHost = false
	m.opponentConnected = false
	m.opponentID = ""
	m.opponentName = ""
	m.self = types.DefaultProgress()
	m.opponent = types.DefaultProgress()
	m.ready = false
	m.opponentReady = false
	m.challengeText = ""
	m.raceText = ""
	m.countdown = countdownTicks
	m.errMsg = ""
	m.rewardURL = ""
	m.rewardInFlight = false
}

// ---- Inbound messages ----

func (m *Match) handleEnvelope(env types.Envelope) {
	if env.Validate() != nil || env.SenderID == m.sessionID {
		return
	}
	if m.phase == PhaseIdle {
		return // stray frame after teardown
	}
	// Exactly two participants per room: frames from anyone but the first
	// peer we saw are dropped.
	if m.opponentID != "" && env.SenderID != m.opponentID {
		return
	}

	if m.opponentID == "" {
		m.opponentID = env.SenderID
	}
	m.lastSeen = m.now()
	wasConnected := m.opponentConnected
	m.opponentConnected = true
	if m.joinTimer != nil {
		m.joinTimer.Stop()
		m.joinTimer = nil
	}
	if !wasConnected {
		m.onOpponentConnected()
	}

	switch env.Type {
	case types.MsgPing:
		m.noteOpponentName(env)
		m.publish(types.MsgPong, m.playerName)

	case types.MsgPong:
		m.noteOpponentName(env)

	case types.MsgText:
		p, err := types.ParseText(env.Payload)
		if err != nil {
			return
		}
		m.challengeText = p.Text
		m.difficulty = texts.ParseDifficulty(p.Difficulty)
		m.checkReadyStart()

	case types.MsgProgress, types.MsgFinish:
		p, err := types.ParseProgress(env.Payload)
		if err != nil {
			return
		}
		// Full replacement, never a merge: re-applying the same frame is a
		// no-op.
		m.opponent = p
		if p.Finished {
			m.maybeDispatchReward()
		}

	case types.MsgReady:
		m.opponentReady = true
		m.checkReadyStart()

	case types.MsgRestartRequest:
		m.publish(types.MsgRestartAck, nil)
		m.resetForRematch()

	case types.MsgRestartAck:
		m.resetForRematch()

	case types.MsgReward:
		if url, ok := types.ParseString(env.Payload); ok && url != "" {
			m.rewardURL = url
		}

	case types.MsgLeft:
		m.handleOpponentLeft()
	}
}

func (m *Match) noteOpponentName(env types.Envelope) {
	if name, ok := types.ParseString(env.Payload); ok && name != "" {
		m.opponentName = name
	}
}

// onOpponentConnected runs on the first inbound frame after a join or a
// recovery. The host owns text selection: pick once per lobby entry, and
// (re)broadcast so a newly arrived or recovered guest has the passage.
func (m *Match) onOpponentConnected() {
	m.errMsg = ""
	if m.isHost && m.phase == PhaseLobby {
		if m.challengeText == "" {
			m.selectText()
		}
		m.broadcastText()
	}
	m.checkReadyStart()
}

func (m *Match) handleOpponentLeft() {
	m.opponentConnected = false
	m.opponentReady = false
	m.ready = false
	m.opponentID = ""
	m.opponentName = ""
	m.stopReadyTimer()
	m.errMsg = "Opponent has left the room."
	if m.phase == PhaseCountdown || m.phase == PhaseRacing {
		m.stopCountdown()
		m.raceText = ""
		m.phase = PhaseLobby
	}
}

// ---- Text selection ----

func (m *Match) selectText() {
	text, err := m.opts.Texts.Random(m.difficulty)
	if err != nil {
		m.logger.Warn("text selection failed", zap.Error(err))
		return
	}
	m.challengeText = text
}

func (m *Match) broadcastText() {
	if m.challengeText == "" {
		return
	}
	m.publish(types.MsgText, types.TextPayload{
		Text:       m.challengeText,
		Difficulty: string(m.difficulty),
	})
}

func (m *Match) setDifficulty(level texts.Difficulty) error {
	if !m.isHost {
		return ErrNotHost
	}
	m.difficulty = level
	// Re-derive the passage so the selection takes effect immediately; the
	// guest tracks it via the text broadcast.
	if m.phase == PhaseLobby && m.challengeText != "" {
		m.selectText()
		m.broadcastText()
	}
	return nil
}

// ---- Ready handshake and countdown ----

func (m *Match) setReady() {
	if m.phase != PhaseLobby || !m.opponentConnected || m.ready {
		return // ratchet: no un-ready
	}
	m.ready = true
	m.publish(types.MsgReady, nil)
	m.checkReadyStart()
}

func (m *Match) checkReadyStart() {
	if m.phase != PhaseLobby || !m.ready || !m.opponentReady {
		return
	}
	if m.challengeText == "" || !m.opponentConnected {
		return
	}
	if m.readyTimer == nil {
		m.readyTimer = time.NewTimer(m.opts.ReadyDebounce)
	}
}

func (m *Match) readyDebounceFired() {
	// Conditions may have decayed during the debounce window.
	if m.phase == PhaseLobby && m.ready && m.opponentReady &&
		m.challengeText != "" && m.opponentConnected {
		m.startCountdown()
	}
}

func (m *Match) startCountdown() {
	m.phase = PhaseCountdown
	m.countdown = countdownTicks
	// Lock the passage: a late re-selection frame must not corrupt an
	// in-progress comparison.
	m.raceText = m.challengeText
	m.self = types.DefaultProgress()
	m.countdownTicker = time.NewTicker(m.opts.CountdownTick)
}

func (m *Match) countdownTick() {
	m.countdown--
	if m.countdown <= 0 {
		m.stopCountdown()
		m.phase = PhaseRacing
	}
}

func (m *Match) stopCountdown() {
	if m.countdownTicker != nil {
		m.countdownTicker.Stop()
		m.countdownTicker = nil
	}
}

func (m *Match) stopReadyTimer() {
	if m.readyTimer != nil {
		m.readyTimer.Stop()
		m.readyTimer = nil
	}
}

// ---- Racing ----

func (m *Match) handleProgress(snap types.PlayerProgress) {
	if m.phase != PhaseRacing {
		return
	}
	if snap.Finished {
		ft := m.now().UnixMilli()
		snap.FinishTime = &ft
		snap.Progress = 100
		m.self = snap
		m.publish(types.MsgFinish, snap)
		m.phase = PhaseFinished
		m.maybeDispatchReward()
		return
	}
	m.self = snap
	m.publish(types.MsgProgress, snap)
}

// ---- Rematch ----

func (m *Match) resetForRematch() {
	m.stopCountdown()
	m.stopReadyTimer()
	m.self = types.DefaultProgress()
	m.opponent = types.DefaultProgress()
	m.ready = false
	m.opponentReady = false
	m.challengeText = ""
	m.raceText = ""
	m.rewardURL = ""
	m.countdown = countdownTicks
	m.errMsg = ""
	m.phase = PhaseLobby
	if m.isHost && m.opponentConnected {
		m.selectText()
		m.broadcastText()
	}
}

// ---- Reward ----

// maybeDispatchReward fetches the reward exactly once, on the winning side
// only, once both players report finished.
func (m *Match) maybeDispatchReward() {
	if m.opts.Reward == nil || m.rewardURL != "" || m.rewardInFlight {
		return
	}
	if !m.self.Finished || !m.opponent.Finished {
		return
	}
	if verdict.Compare(m.self, m.opponent) != verdict.Win {
		return
	}

	m.rewardInFlight = true
	fetcher := m.opts.Reward
	go func() {
		url, err := fetcher.Fetch(m.ctx)
		select {
		case m.inbox <- rewardFetchedMsg{url: url, err: err}:
		case <-m.ctx.Done():
		}
	}()
}

// ---- Liveness ----

func (m *Match) heartbeatTick() {
	m.publish(types.MsgPing, m.playerName)

	if !m.opponentConnected {
		return
	}
	if m.now().Sub(m.lastSeen) <= m.opts.HeartbeatTimeout {
		return
	}

	m.opponentConnected = false
	m.opponentReady = false
	m.stopReadyTimer()
	if m.phase != PhaseIdle && m.phase != PhaseFinished {
		m.errMsg = "Opponent connection lost."
		if m.phase == PhaseCountdown || m.phase == PhaseRacing {
			m.stopCountdown()
			m.raceText = ""
			m.phase = PhaseLobby
		}
	}
}

func (m *Match) joinTimedOut() {
	// Advisory only: the channel stays open, so a late host still connects.
	if m.phase == PhaseLobby && m.opponentID == "" {
		m.errMsg = "Room not found or host is inactive."
	}
}

// ---- Plumbing ----

func (m *Match) publish(t types.MessageType, payload any) {
	if m.bus == nil {
		return
	}
	env, err := types.NewEnvelope(t, m.sessionID, payload)
	if err != nil {
		m.logger.Warn("encode message failed",
			zap.String("type", string(t)), zap.Error(err))
		return
	}
	if err := m.bus.Publish(m.ctx, env); err != nil {
		// Fire and forget: delivery is never assumed.
		m.logger.Debug("publish failed",
			zap.String("type", string(t)), zap.Error(err))
	}
}

func (m *Match) setPlayerName(name string) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return
	}
	m.playerName = trimmed
	if m.opts.Profile != nil {
		if err := m.opts.Profile.SetName(trimmed); err != nil {
			m.logger.Warn("failed to persist name", zap.Error(err))
		}
	}
}

func (m *Match) now() time.Time { return m.opts.Now() }

func (m *Match) view() View {
	text := m.challengeText
	if m.raceText != "" {
		text = m.raceText
	}
	return View{
		Phase:             m.phase,
		RoomCode:          m.roomCode,
		IsHost:            m.isHost,
		OpponentConnected: m.opponentConnected,
		Ready:             m.ready,
		OpponentReady:     m.opponentReady,
		Self:              m.self,
		Opponent:          m.opponent,
		Countdown:         m.countdown,
		ChallengeText:     text,
		Difficulty:        m.difficulty,
		PlayerName:        m.playerName,
		OpponentName:      m.opponentName,
		RewardURL:         m.rewardURL,
		Err:               m.errMsg,
		Outcome:           verdict.Compare(m.self, m.opponent),
		Decided:           m.self.Finished && m.opponent.Finished,
	}
}

func (m *Match) pushUpdate() {
	if m.opts.Updates == nil {
		return
	}
	select {
	case m.opts.Updates <- m.view():
	default:
		// Slow consumer: drop the update, the next one supersedes it.
	}
}

func (m *Match) generateCode() (string, error) {
	code, err := roomcode.Generate()
	if err != nil {
		return "", fmt.Errorf("generate room code: %w", err)
	}
	return code, nil
}
