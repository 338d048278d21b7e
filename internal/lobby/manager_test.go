// internal/lobby/manager_test.go
package lobby

import (
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quizwire/quizwire/internal/models"
)

func newTestManager() (*Manager, *clockwork.FakeClock) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	clock := clockwork.NewFakeClock()
	return NewManagerWithClock(logger, clock), clock
}

func newTestConn() *Connection {
	return &Connection{ID: uuid.New(), OutChan: make(chan map[string]interface{}, 256)}
}

// waitEvent receives from the connection's outbound queue until an event of
// the wanted type arrives, discarding unrelated events along the way.
func waitEvent(t *testing.T, conn *Connection, wantType string) map[string]interface{} {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case msg, ok := <-conn.OutChan:
			require.True(t, ok, "outbound queue closed while waiting for %q", wantType)
			if msg["type"] == wantType {
				return msg
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q", wantType)
		}
	}
}

// tickSecond waits for the lobby's countdown goroutine to arm its next
// one-second timer, then fires it. Exactly one countdown runs per lobby,
// so a single clock waiter is always the countdown.
func tickSecond(t *testing.T, clock *clockwork.FakeClock) {
	t.Helper()
	clock.BlockUntil(1)
	clock.Advance(time.Second)
}

func easyQuestions(n int) []models.Question {
	qs := make([]models.Question, n)
	for i := range qs {
		qs[i] = models.Question{
			Text:         fmt.Sprintf("Question %d", i+1),
			Answers:      []string{"A", "B", "C", "D"},
			CorrectIndex: 2,
			Category:     "General Knowledge",
			Difficulty:   "easy",
		}
	}
	return qs
}

func startTwoPlayerGame(t *testing.T, m *Manager, questions []models.Question) (host, guest *Connection, l *Lobby) {
	t.Helper()
	host = newTestConn()
	guest = newTestConn()

	l = m.CreateLobby(host, models.Settings{Amount: len(questions), Difficulty: "easy"}, "Alice")
	waitEvent(t, host, "lobbyCreated")

	require.NoError(t, m.JoinLobby(guest, l.Code, "Bob"))
	waitEvent(t, guest, "lobbyJoined")
	waitEvent(t, host, "playerJoined")

	require.NoError(t, m.StartGame(host.ID, questions))
	waitEvent(t, host, "gameStarted")
	waitEvent(t, guest, "gameStarted")
	return host, guest, l
}

func TestCreateLobby(t *testing.T) {
	m, _ := newTestManager()
	conn := newTestConn()

	l := m.CreateLobby(conn, models.Settings{Amount: 5, Difficulty: "medium"}, "Alice")

	ack := waitEvent(t, conn, "lobbyCreated")
	assert.Equal(t, l.Code, ack["lobbyId"])
	assert.Len(t, l.Code, codeLength)
	assert.Equal(t, true, ack["isHost"])

	players, ok := ack["players"].([]models.Player)
	require.True(t, ok)
	require.Len(t, players, 1)
	assert.Equal(t, "Alice", players[0].Name)
	assert.Equal(t, conn.ID, l.HostID)
}

func TestJoinUnknownLobby(t *testing.T) {
	m, _ := newTestManager()
	err := m.JoinLobby(newTestConn(), "ZZZZZZ", "Bob")
	assert.ErrorIs(t, err, ErrLobbyNotFound)
}

func TestJoinNormalizesCode(t *testing.T) {
	m, _ := newTestManager()
	host := newTestConn()
	l := m.CreateLobby(host, models.Settings{Amount: 3}, "Alice")

	guest := newTestConn()
	require.NoError(t, m.JoinLobby(guest, "  "+lowercase(l.Code)+" ", "Bob"))
	waitEvent(t, guest, "lobbyJoined")
}

// lowercase mangles a lobby code so the join path has to normalize it back.
func lowercase(code string) string {
	b := []byte(code)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

func TestJoinAfterStartRejected(t *testing.T) {
	m, _ := newTestManager()
	host, _, l := startTwoPlayerGame(t, m, easyQuestions(1))

	before := len(l.Players)
	err := m.JoinLobby(newTestConn(), l.Code, "Carol")
	assert.ErrorIs(t, err, ErrGameInProgress)

	l.Mu.Lock()
	assert.Len(t, l.Players, before)
	l.Mu.Unlock()
	_ = host
}

func TestStartGameAuthorization(t *testing.T) {
	m, _ := newTestManager()
	host := newTestConn()
	guest := newTestConn()
	l := m.CreateLobby(host, models.Settings{Amount: 2}, "Alice")
	require.NoError(t, m.JoinLobby(guest, l.Code, "Bob"))

	assert.ErrorIs(t, m.StartGame(guest.ID, easyQuestions(2)), ErrNotAuthorized)
	assert.ErrorIs(t, m.StartGame(host.ID, nil), ErrNoQuestions)

	require.NoError(t, m.StartGame(host.ID, easyQuestions(2)))
	assert.ErrorIs(t, m.StartGame(host.ID, easyQuestions(2)), ErrGameInProgress)
}

func TestSubmitAnswerFirstSubmissionWins(t *testing.T) {
	m, _ := newTestManager()
	host, _, l := startTwoPlayerGame(t, m, easyQuestions(1))

	m.SubmitAnswer(host.ID, 2, true)
	waitEvent(t, host, "playerAnswered")

	// A changed mind after submitting is ignored entirely.
	m.SubmitAnswer(host.ID, 0, false)

	l.Mu.Lock()
	p, _ := l.playerUnsafe(host.ID)
	require.NotNil(t, p)
	assert.Equal(t, 1, p.Score)
	assert.Equal(t, 2, l.Pending[host.ID].AnswerIndex)
	l.Mu.Unlock()
}

func TestSubmitAnswerServerScoresIt(t *testing.T) {
	m, _ := newTestManager()
	host, _, l := startTwoPlayerGame(t, m, easyQuestions(1))

	// The client claims a wrong answer is correct; scoring ignores the claim.
	m.SubmitAnswer(host.ID, 0, true)

	evt := waitEvent(t, host, "playerAnswered")
	assert.Equal(t, false, evt["isCorrect"])

	l.Mu.Lock()
	p, _ := l.playerUnsafe(host.ID)
	assert.Equal(t, 0, p.Score)
	l.Mu.Unlock()
}

func TestAllAnsweredOpensAutoAdvance(t *testing.T) {
	m, clock := newTestManager()
	host, guest, l := startTwoPlayerGame(t, m, easyQuestions(2))

	m.SubmitAnswer(host.ID, 2, true)
	m.SubmitAnswer(guest.ID, 1, false)
	waitEvent(t, host, "allPlayersAnswered")
	waitEvent(t, guest, "allPlayersAnswered")

	l.Mu.Lock()
	require.NotNil(t, l.timer)
	assert.Equal(t, autoAdvanceTimer, l.timer.kind)
	l.Mu.Unlock()

	for i := 0; i < m.Timing.AutoAdvanceSec; i++ {
		tickSecond(t, clock)
	}
	next := waitEvent(t, host, "nextQuestion")
	assert.Equal(t, 1, next["questionIndex"])
}

func TestQuestionTimeout(t *testing.T) {
	m, clock := newTestManager()
	host, guest, l := startTwoPlayerGame(t, m, easyQuestions(2))

	m.SubmitAnswer(host.ID, 2, true)
	waitEvent(t, host, "playerAnswered")

	for i := 0; i < m.Timing.EasySec; i++ {
		tickSecond(t, clock)
	}
	waitEvent(t, host, "questionTimeout")
	waitEvent(t, guest, "questionTimeout")

	l.Mu.Lock()
	rec := l.Pending[guest.ID]
	require.NotNil(t, rec)
	assert.True(t, rec.TimedOut)
	assert.Equal(t, models.TimedOutAnswerIndex, rec.AnswerIndex)
	// The player who did answer keeps their real record.
	assert.False(t, l.Pending[host.ID].TimedOut)
	assert.Equal(t, autoAdvanceTimer, l.timer.kind)
	l.Mu.Unlock()
}

func TestHostAdvanceCancelsAutoAdvance(t *testing.T) {
	m, _ := newTestManager()
	host, guest, l := startTwoPlayerGame(t, m, easyQuestions(2))

	m.SubmitAnswer(host.ID, 2, true)
	m.SubmitAnswer(guest.ID, 2, true)
	waitEvent(t, host, "allPlayersAnswered")

	m.Advance(host.ID)
	next := waitEvent(t, host, "nextQuestion")
	assert.Equal(t, 1, next["questionIndex"])

	l.Mu.Lock()
	require.NotNil(t, l.timer)
	assert.Equal(t, questionTimer, l.timer.kind)
	assert.Empty(t, l.Pending)
	l.Mu.Unlock()
}

func TestNonHostAdvanceIgnored(t *testing.T) {
	m, _ := newTestManager()
	_, guest, l := startTwoPlayerGame(t, m, easyQuestions(2))

	m.Advance(guest.ID)

	l.Mu.Lock()
	assert.Equal(t, 0, l.CurrentIndex)
	assert.Equal(t, StatePlaying, l.State)
	l.Mu.Unlock()
}

func TestKick(t *testing.T) {
	m, _ := newTestManager()
	host := newTestConn()
	guest := newTestConn()
	l := m.CreateLobby(host, models.Settings{Amount: 3}, "Alice")
	require.NoError(t, m.JoinLobby(guest, l.Code, "Bob"))

	assert.ErrorIs(t, m.Kick(guest.ID, host.ID), ErrNotAuthorized)
	assert.ErrorIs(t, m.Kick(host.ID, host.ID), ErrInvalidTarget)
	assert.ErrorIs(t, m.Kick(host.ID, uuid.New()), ErrInvalidTarget)

	require.NoError(t, m.Kick(host.ID, guest.ID))
	kicked := waitEvent(t, guest, "kicked")
	assert.Equal(t, "You have been kicked from the lobby", kicked["message"])

	left := waitEvent(t, host, "playerLeft")
	players, ok := left["players"].([]models.Player)
	require.True(t, ok)
	assert.Len(t, players, 1)

	// The kicked connection is free to join elsewhere.
	_, tracked := m.lobbyForConn(guest.ID)
	assert.False(t, tracked)
}

func TestWriteAfterKickDoesNotPanic(t *testing.T) {
	m, _ := newTestManager()
	host := newTestConn()
	guest := newTestConn()
	l := m.CreateLobby(host, models.Settings{Amount: 3}, "Alice")
	require.NoError(t, m.JoinLobby(guest, l.Code, "Bob"))

	require.NoError(t, m.Kick(host.ID, guest.ID))
	waitEvent(t, guest, "kicked")
	for range guest.OutChan {
	}

	// The kicked player's read pump may still dispatch an in-flight message
	// that ends in an error reply.
	require.NotPanics(t, func() { guest.WriteError("lobby not found") })
	require.NotPanics(t, guest.Close)
}

func TestFailedJoinLeavesNoRegistryEntry(t *testing.T) {
	m, _ := newTestManager()
	_, _, l := startTwoPlayerGame(t, m, easyQuestions(1))

	late := newTestConn()
	require.ErrorIs(t, m.JoinLobby(late, l.Code, "Carol"), ErrGameInProgress)

	_, tracked := m.lobbyForConn(late.ID)
	assert.False(t, tracked)

	// A rejected joiner's submissions must not touch the question state.
	m.SubmitAnswer(late.ID, 0, false)
	l.Mu.Lock()
	assert.Empty(t, l.Pending)
	l.Mu.Unlock()
}

func TestKickedPlayerSubmissionIgnored(t *testing.T) {
	m, _ := newTestManager()
	host, guest, l := startTwoPlayerGame(t, m, easyQuestions(1))

	require.NoError(t, m.Kick(host.ID, guest.ID))

	// A straggling answer from the kicked player must not create a pending
	// entry, or the question could resolve against the wrong player count.
	m.SubmitAnswer(guest.ID, 2, true)

	l.Mu.Lock()
	_, ok := l.Pending[guest.ID]
	assert.False(t, ok)
	require.NotNil(t, l.timer)
	assert.Equal(t, questionTimer, l.timer.kind)
	l.Mu.Unlock()
}

func TestHostDisconnectReassignsHost(t *testing.T) {
	m, _ := newTestManager()
	host := newTestConn()
	guest := newTestConn()
	carol := newTestConn()
	l := m.CreateLobby(host, models.Settings{Amount: 3}, "Alice")
	require.NoError(t, m.JoinLobby(guest, l.Code, "Bob"))
	require.NoError(t, m.JoinLobby(carol, l.Code, "Carol"))

	m.Disconnect(host.ID)

	waitEvent(t, guest, "playerLeft")
	changed := waitEvent(t, guest, "hostChanged")
	assert.Equal(t, guest.ID.String(), changed["newHostId"])
	waitEvent(t, carol, "hostChanged")

	l.Mu.Lock()
	assert.Equal(t, guest.ID, l.HostID)
	l.Mu.Unlock()

	// The promoted host can exercise host powers.
	require.NoError(t, m.StartGame(guest.ID, easyQuestions(1)))
}

func TestLastDepartureDeletesLobby(t *testing.T) {
	m, _ := newTestManager()
	host := newTestConn()
	guest := newTestConn()
	l := m.CreateLobby(host, models.Settings{Amount: 3}, "Alice")
	require.NoError(t, m.JoinLobby(guest, l.Code, "Bob"))

	m.Disconnect(host.ID)
	m.Disconnect(guest.ID)

	_, ok := m.lobbyByCode(l.Code)
	assert.False(t, ok)
	assert.ErrorIs(t, m.JoinLobby(newTestConn(), l.Code, "Carol"), ErrLobbyNotFound)
}

func TestDisconnectIdempotent(t *testing.T) {
	m, _ := newTestManager()
	conn := newTestConn()
	m.CreateLobby(conn, models.Settings{Amount: 1}, "Alice")

	m.Disconnect(conn.ID)
	m.Disconnect(conn.ID)
	m.Disconnect(uuid.New())
}

func TestDepartureResolvesQuestion(t *testing.T) {
	m, _ := newTestManager()
	host, guest, l := startTwoPlayerGame(t, m, easyQuestions(2))

	m.SubmitAnswer(guest.ID, 2, true)
	waitEvent(t, guest, "playerAnswered")

	// The only unanswered player leaves; the question resolves immediately.
	m.Disconnect(host.ID)
	waitEvent(t, guest, "allPlayersAnswered")

	l.Mu.Lock()
	require.NotNil(t, l.timer)
	assert.Equal(t, autoAdvanceTimer, l.timer.kind)
	l.Mu.Unlock()
}

func TestTimerBroadcastsCountdown(t *testing.T) {
	m, clock := newTestManager()
	host, _, _ := startTwoPlayerGame(t, m, easyQuestions(1))

	tickSecond(t, clock)
	evt := waitEvent(t, host, "timerUpdate")
	assert.Equal(t, m.Timing.EasySec-1, evt["timeLeft"])

	tickSecond(t, clock)
	evt = waitEvent(t, host, "timerUpdate")
	assert.Equal(t, m.Timing.EasySec-2, evt["timeLeft"])
}

// Full two-question run: one answered by everyone, one timed out, then the
// finished state with the team total.
func TestFullGameFlow(t *testing.T) {
	m, clock := newTestManager()
	host, guest, l := startTwoPlayerGame(t, m, easyQuestions(2))

	m.SubmitAnswer(host.ID, 2, true)  // correct
	m.SubmitAnswer(guest.ID, 1, false)
	waitEvent(t, host, "allPlayersAnswered")

	for i := 0; i < m.Timing.AutoAdvanceSec; i++ {
		tickSecond(t, clock)
	}
	next := waitEvent(t, guest, "nextQuestion")
	assert.Equal(t, 1, next["questionIndex"])

	// Nobody answers question two.
	for i := 0; i < m.Timing.EasySec; i++ {
		tickSecond(t, clock)
	}
	waitEvent(t, host, "questionTimeout")

	for i := 0; i < m.Timing.AutoAdvanceSec; i++ {
		tickSecond(t, clock)
	}
	finished := waitEvent(t, host, "gameFinished")
	assert.Equal(t, 1, finished["teamScore"])
	waitEvent(t, guest, "gameFinished")

	l.Mu.Lock()
	assert.Equal(t, StateFinished, l.State)
	assert.Nil(t, l.timer)
	l.Mu.Unlock()
}

func TestDifficultyDurations(t *testing.T) {
	timing := DefaultTiming()
	assert.Equal(t, 15, timing.questionSeconds("easy"))
	assert.Equal(t, 10, timing.questionSeconds("medium"))
	assert.Equal(t, 5, timing.questionSeconds("hard"))
	assert.Equal(t, 15, timing.questionSeconds(""))
	assert.Equal(t, 15, timing.questionSeconds("any"))
}
