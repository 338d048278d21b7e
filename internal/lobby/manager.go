// internal/lobby/manager.go
package lobby

import (
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/quizwire/quizwire/internal/models"
)

// Manager owns every live lobby (code -> Lobby) and the connection registry
// (connection id -> lobby code). It is the single session-manager object:
// handlers receive it explicitly, there is no ambient global state.
//
// Lock order is manager then lobby. Map mutations happen under the manager
// mutex, session mutations under the per-lobby mutex; no two mutations of
// the same lobby ever interleave, while operations on different lobbies run
// independently. Timer ticks take only the lobby lock.
type Manager struct {
	mu       sync.Mutex
	lobbies  map[string]*Lobby
	registry map[uuid.UUID]string

	clock  clockwork.Clock
	logger *logrus.Logger

	// Timing is the countdown table. Defaults to DefaultTiming.
	Timing Timing
}

// NewManager builds a Manager on the wall clock.
func NewManager(logger *logrus.Logger) *Manager {
	return NewManagerWithClock(logger, clockwork.NewRealClock())
}

// NewManagerWithClock builds a Manager with an injected clock, which lets
// tests drive countdowns deterministically with a fake clock.
func NewManagerWithClock(logger *logrus.Logger, clock clockwork.Clock) *Manager {
	return &Manager{
		lobbies:  make(map[string]*Lobby),
		registry: make(map[uuid.UUID]string),
		clock:    clock,
		logger:   logger,
		Timing:   DefaultTiming(),
	}
}

// lobbyByCode resolves a lobby from the store.
func (m *Manager) lobbyByCode(code string) (*Lobby, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.lobbies[code]
	return l, ok
}

// lobbyForConn resolves the lobby a connection currently belongs to.
func (m *Manager) lobbyForConn(id uuid.UUID) (*Lobby, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	code, ok := m.registry[id]
	if !ok {
		return nil, false
	}
	l, ok := m.lobbies[code]
	return l, ok
}

// SettingsFor returns the settings of the connection's current lobby. Used
// by the gateway to fetch a question batch matching the lobby's parameters.
func (m *Manager) SettingsFor(connID uuid.UUID) (models.Settings, error) {
	l, ok := m.lobbyForConn(connID)
	if !ok {
		return models.Settings{}, ErrLobbyNotFound
	}
	l.Mu.Lock()
	defer l.Mu.Unlock()
	return l.Settings, nil
}

// CreateLobby allocates a fresh lobby with a unique code, registering the
// creator as player 0 and host, and acks the creator with lobbyCreated.
// A connection belongs to at most one lobby, so any current membership is
// dissolved first.
func (m *Manager) CreateLobby(conn *Connection, settings models.Settings, hostName string) *Lobby {
	m.leave(conn.ID, false)

	conn.Name = hostName
	l := &Lobby{
		HostID:      conn.ID,
		State:       StateWaiting,
		Settings:    settings,
		Players:     []*models.Player{{ID: conn.ID, Name: hostName}},
		Connections: map[uuid.UUID]*Connection{conn.ID: conn},
		Pending:     make(map[uuid.UUID]*models.AnswerRecord),
	}

	m.mu.Lock()
	code := newCode()
	for {
		if _, taken := m.lobbies[code]; !taken {
			break
		}
		code = newCode()
	}
	l.Code = code
	m.lobbies[code] = l
	m.registry[conn.ID] = code
	m.mu.Unlock()

	m.logger.WithFields(logrus.Fields{
		"lobby": code,
		"host":  conn.ID,
	}).Info("lobby created")

	l.Mu.Lock()
	ack := map[string]interface{}{
		"type":     "lobbyCreated",
		"lobbyId":  l.Code,
		"isHost":   true,
		"players":  l.rosterUnsafe(),
		"settings": l.Settings,
	}
	l.Mu.Unlock()
	conn.Write(ack)
	return l
}

// JoinLobby appends a new player to a waiting lobby. The room hears
// playerJoined before the joiner's own lobbyJoined ack is queued.
//
// The registry entry is installed before the lobby lock is taken, same as
// CreateLobby. Registering after releasing the lobby lock would let a kick
// of the just-joined player land in the gap and leave a ghost registry
// entry behind; a failed join rolls the entry back instead.
func (m *Manager) JoinLobby(conn *Connection, code, name string) error {
	m.leave(conn.ID, false)

	code = strings.ToUpper(strings.TrimSpace(code))

	m.mu.Lock()
	l, ok := m.lobbies[code]
	if !ok {
		m.mu.Unlock()
		return ErrLobbyNotFound
	}
	m.registry[conn.ID] = code
	m.mu.Unlock()

	l.Mu.Lock()
	if l.closed || l.State != StateWaiting {
		started := !l.closed
		l.Mu.Unlock()

		m.mu.Lock()
		delete(m.registry, conn.ID)
		m.mu.Unlock()

		if started {
			return ErrGameInProgress
		}
		return ErrLobbyNotFound
	}

	conn.Name = name
	l.Players = append(l.Players, &models.Player{ID: conn.ID, Name: name})
	l.Connections[conn.ID] = conn

	roster := l.rosterUnsafe()
	l.broadcastExceptUnsafe(conn.ID, map[string]interface{}{
		"type":    "playerJoined",
		"players": roster,
	})
	conn.Write(map[string]interface{}{
		"type":     "lobbyJoined",
		"lobbyId":  l.Code,
		"isHost":   false,
		"players":  roster,
		"settings": l.Settings,
	})
	l.Mu.Unlock()

	m.logger.WithFields(logrus.Fields{
		"lobby":  code,
		"player": conn.ID,
		"name":   name,
	}).Info("player joined")
	return nil
}

// StartGame snapshots the question sequence, resets every score, and kicks
// off the question cycle. Host-only; the lobby must still be waiting and
// the batch non-empty.
func (m *Manager) StartGame(connID uuid.UUID, questions []models.Question) error {
	l, ok := m.lobbyForConn(connID)
	if !ok {
		return ErrLobbyNotFound
	}

	l.Mu.Lock()
	defer l.Mu.Unlock()

	if connID != l.HostID {
		return ErrNotAuthorized
	}
	if l.State != StateWaiting {
		return ErrGameInProgress
	}
	if len(questions) == 0 {
		return ErrNoQuestions
	}

	l.Questions = questions
	l.CurrentIndex = 0
	l.Pending = make(map[uuid.UUID]*models.AnswerRecord)
	for _, p := range l.Players {
		p.Score = 0
	}
	l.State = StatePlaying

	q := l.Questions[0]
	l.broadcastUnsafe(map[string]interface{}{
		"type":           "gameStarted",
		"questionIndex":  0,
		"totalQuestions": len(l.Questions),
		"players":        l.rosterUnsafe(),
		"question":       q,
	})
	m.startCountdownLocked(l, questionTimer, m.Timing.questionSeconds(q.Difficulty))

	m.logger.WithFields(logrus.Fields{
		"lobby":     l.Code,
		"questions": len(questions),
	}).Info("game started")
	return nil
}

// SubmitAnswer records a player's answer for the current question. It is a
// silent no-op outside of play or on duplicate submission: those are benign
// races, not faults. Correctness is recomputed from the stored question;
// the client-reported flag is never trusted for scoring.
func (m *Manager) SubmitAnswer(connID uuid.UUID, answerIndex int, claimedCorrect bool) {
	l, ok := m.lobbyForConn(connID)
	if !ok {
		return
	}

	l.Mu.Lock()
	defer l.Mu.Unlock()

	if l.State != StatePlaying {
		return
	}
	if _, dup := l.Pending[connID]; dup {
		return // first submission wins
	}
	q := l.currentQuestionUnsafe()
	if q == nil {
		return
	}

	correct := answerIndex >= 0 && answerIndex == q.CorrectIndex
	if claimedCorrect != correct {
		m.logger.WithFields(logrus.Fields{
			"lobby":  l.Code,
			"player": connID,
		}).Warn("client-reported correctness disagrees with server scoring")
	}

	l.Pending[connID] = &models.AnswerRecord{
		AnswerIndex: answerIndex,
		IsCorrect:   correct,
		ReceivedAt:  m.clock.Now(),
	}
	if correct {
		if p, _ := l.playerUnsafe(connID); p != nil {
			p.Score++
		}
	}

	l.broadcastUnsafe(map[string]interface{}{
		"type":        "playerAnswered",
		"playerId":    connID.String(),
		"answerIndex": answerIndex,
		"isCorrect":   correct,
		"players":     l.rosterUnsafe(),
	})

	if l.allAnsweredUnsafe() {
		m.resolveQuestionLocked(l)
	}
}

// Advance moves to the next question on behalf of the host. A non-host
// request is silently ignored. Auto-advance expiry takes the internal path
// in advanceLocked instead, with no authorization check.
func (m *Manager) Advance(connID uuid.UUID) {
	l, ok := m.lobbyForConn(connID)
	if !ok {
		return
	}

	l.Mu.Lock()
	defer l.Mu.Unlock()

	if l.State != StatePlaying || connID != l.HostID {
		return
	}
	m.advanceLocked(l)
}

// Kick removes a target player at the host's request. The target hears a
// kicked notice, the remainder of the room a roster update.
func (m *Manager) Kick(connID, targetID uuid.UUID) error {
	l, ok := m.lobbyForConn(connID)
	if !ok {
		return ErrLobbyNotFound
	}

	l.Mu.Lock()
	if connID != l.HostID {
		l.Mu.Unlock()
		return ErrNotAuthorized
	}
	if targetID == connID {
		l.Mu.Unlock()
		return ErrInvalidTarget
	}
	if target, _ := l.playerUnsafe(targetID); target == nil {
		l.Mu.Unlock()
		return ErrInvalidTarget
	}

	if conn, ok := l.Connections[targetID]; ok {
		conn.Write(map[string]interface{}{
			"type":    "kicked",
			"message": "You have been kicked from the lobby",
		})
	}
	l.removePlayerUnsafe(targetID, true)
	l.broadcastUnsafe(map[string]interface{}{
		"type":    "playerLeft",
		"players": l.rosterUnsafe(),
	})
	m.resolveAfterDepartureLocked(l)
	l.Mu.Unlock()

	m.mu.Lock()
	delete(m.registry, targetID)
	m.mu.Unlock()

	m.logger.WithFields(logrus.Fields{
		"lobby":  l.Code,
		"player": targetID,
	}).Info("player kicked")
	return nil
}

// Disconnect dissolves a connection's lobby membership. It is idempotent
// and never an error: disconnection mid-game is a first-class lifecycle
// transition. Host departure promotes the first remaining player; the last
// departure destroys the lobby, timers and all. Timers otherwise keep
// running; a host leaving mid-question does not pause the question.
func (m *Manager) Disconnect(connID uuid.UUID) {
	m.leave(connID, true)
}

// leave is the shared departure path. closeConn is false when the player is
// only switching lobbies: creating or joining dissolves the old membership
// but the connection itself stays up.
func (m *Manager) leave(connID uuid.UUID, closeConn bool) {
	m.mu.Lock()
	code, ok := m.registry[connID]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(m.registry, connID)
	l := m.lobbies[code]
	m.mu.Unlock()
	if l == nil {
		return
	}

	l.Mu.Lock()
	wasHost := connID == l.HostID
	l.removePlayerUnsafe(connID, closeConn)

	if len(l.Players) == 0 {
		m.cancelCountdownLocked(l)
		l.closed = true
		l.Mu.Unlock()

		m.mu.Lock()
		delete(m.lobbies, code)
		m.mu.Unlock()

		m.logger.WithField("lobby", code).Info("last player left, lobby deleted")
		return
	}

	l.broadcastUnsafe(map[string]interface{}{
		"type":    "playerLeft",
		"players": l.rosterUnsafe(),
	})
	if wasHost {
		l.HostID = l.Players[0].ID
		l.broadcastUnsafe(map[string]interface{}{
			"type":      "hostChanged",
			"newHostId": l.HostID.String(),
		})
		m.logger.WithFields(logrus.Fields{
			"lobby": l.Code,
			"host":  l.HostID,
		}).Info("host reassigned")
	}
	m.resolveAfterDepartureLocked(l)
	l.Mu.Unlock()
}

// resolveQuestionLocked marks the current question fully resolved: the
// question timer stops and the auto-advance window opens, giving everyone
// a uniform interval to see correctness feedback before the view changes.
func (m *Manager) resolveQuestionLocked(l *Lobby) {
	l.broadcastUnsafe(map[string]interface{}{"type": "allPlayersAnswered"})
	m.startCountdownLocked(l, autoAdvanceTimer, m.Timing.AutoAdvanceSec)
}

// resolveAfterDepartureLocked resolves the current question if a departure
// just made the remaining players unanimous, so a round never stalls
// waiting on an answer from a player who is gone.
func (m *Manager) resolveAfterDepartureLocked(l *Lobby) {
	if l.State != StatePlaying || !l.allAnsweredUnsafe() {
		return
	}
	if l.timer == nil || l.timer.kind != questionTimer {
		return
	}
	m.resolveQuestionLocked(l)
}

// questionTimedOutLocked is the question timer's completion action: every
// player still missing an answer is recorded as timed out, the room is
// told, and the auto-advance window opens.
func (m *Manager) questionTimedOutLocked(l *Lobby) {
	for _, p := range l.Players {
		if _, answered := l.Pending[p.ID]; answered {
			continue
		}
		l.Pending[p.ID] = &models.AnswerRecord{
			AnswerIndex: models.TimedOutAnswerIndex,
			ReceivedAt:  m.clock.Now(),
			TimedOut:    true,
		}
	}
	l.broadcastUnsafe(map[string]interface{}{
		"type":    "questionTimeout",
		"players": l.rosterUnsafe(),
	})
	m.startCountdownLocked(l, autoAdvanceTimer, m.Timing.AutoAdvanceSec)
}

// advanceLocked moves the cursor forward: next question with a fresh
// question timer, or the finished state with final results once the
// sequence is exhausted. Whatever countdown is live gets canceled first, so
// a manual advance kills the auto-advance window too.
func (m *Manager) advanceLocked(l *Lobby) {
	m.cancelCountdownLocked(l)
	l.Pending = make(map[uuid.UUID]*models.AnswerRecord)
	l.CurrentIndex++

	if q := l.currentQuestionUnsafe(); q != nil {
		l.broadcastUnsafe(map[string]interface{}{
			"type":          "nextQuestion",
			"questionIndex": l.CurrentIndex,
			"players":       l.rosterUnsafe(),
			"question":      *q,
		})
		m.startCountdownLocked(l, questionTimer, m.Timing.questionSeconds(q.Difficulty))
		return
	}

	l.State = StateFinished
	teamScore := 0
	for _, p := range l.Players {
		teamScore += p.Score
	}
	l.broadcastUnsafe(map[string]interface{}{
		"type":      "gameFinished",
		"players":   l.rosterUnsafe(),
		"teamScore": teamScore,
	})
	m.logger.WithFields(logrus.Fields{
		"lobby":     l.Code,
		"teamScore": teamScore,
	}).Info("game finished")
}
