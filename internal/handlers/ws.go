// internal/handlers/ws.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/quizwire/quizwire/internal/lobby"
	"github.com/quizwire/quizwire/internal/models"
	"github.com/quizwire/quizwire/internal/trivia"
)

const subprotocol = "trivia"

// clientMessage is the union of all inbound event payloads; Type selects
// which fields are meaningful.
type clientMessage struct {
	Type string `json:"type"`

	// createLobby
	Settings *models.Settings `json:"settings"`
	HostName string           `json:"hostName"`

	// joinLobby
	LobbyID    string `json:"lobbyId"`
	PlayerName string `json:"playerName"`

	// startGame; empty means the server fetches a batch itself
	Questions []models.Question `json:"questions"`

	// submitAnswer
	AnswerIndex *int `json:"answerIndex"`
	IsCorrect   bool `json:"isCorrect"`

	// kickPlayer
	PlayerID string `json:"playerId"`
}

// LobbyWSHandler is the single WebSocket entry point. Each accepted socket
// becomes one anonymous connection identity; everything else happens via
// typed events dispatched to the manager.
func LobbyWSHandler(logger *logrus.Logger, m *lobby.Manager, supplier trivia.Supplier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{subprotocol},
			OriginPatterns: []string{"*"}, // Adjust in production
		})
		if err != nil {
			logger.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		if c.Subprotocol() != subprotocol {
			c.Close(websocket.StatusPolicyViolation, "client must speak the trivia subprotocol")
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		conn := &lobby.Connection{
			ID:      uuid.New(),
			OutChan: make(chan map[string]interface{}, 16),
		}

		logger.Infof("connection %v established from %s", conn.ID, r.RemoteAddr)

		go writePump(ctx, c, conn, logger)
		readPump(ctx, c, conn, m, supplier, logger)

		// Read pump exited, the socket is gone. Dissolve any membership.
		m.Disconnect(conn.ID)
		logger.Infof("connection %v closed", conn.ID)
	}
}

// readPump consumes inbound events until the socket closes or the context
// is canceled. It blocks the handler goroutine for the connection's
// lifetime.
func readPump(ctx context.Context, c *websocket.Conn, conn *lobby.Connection, m *lobby.Manager, supplier trivia.Supplier, logger *logrus.Logger) {
	for {
		typ, data, err := c.Read(ctx)
		if err != nil {
			closeStatus := websocket.CloseStatus(err)
			if closeStatus != websocket.StatusNormalClosure &&
				closeStatus != websocket.StatusGoingAway && ctx.Err() == nil {
				logger.Warnf("read error for connection %v: %v", conn.ID, err)
			}
			return
		}
		if typ != websocket.MessageText {
			continue
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Warnf("invalid json from connection %v: %v", conn.ID, err)
			conn.WriteError("Invalid JSON format")
			continue
		}
		dispatch(ctx, msg, conn, m, supplier, logger)
	}
}

func dispatch(ctx context.Context, msg clientMessage, conn *lobby.Connection, m *lobby.Manager, supplier trivia.Supplier, logger *logrus.Logger) {
	switch msg.Type {
	case "createLobby":
		settings := models.Settings{Amount: 10}
		if msg.Settings != nil {
			settings = *msg.Settings
		}
		if settings.Amount <= 0 {
			settings.Amount = 10
		}
		name := msg.HostName
		if name == "" {
			name = "Host"
		}
		m.CreateLobby(conn, settings, name)

	case "joinLobby":
		name := msg.PlayerName
		if name == "" {
			name = "Player"
		}
		if err := m.JoinLobby(conn, msg.LobbyID, name); err != nil {
			conn.WriteError(err.Error())
		}

	case "startGame":
		questions := msg.Questions
		if len(questions) == 0 {
			settings, err := m.SettingsFor(conn.ID)
			if err != nil {
				conn.WriteError(err.Error())
				return
			}
			questions, err = supplier.Questions(ctx, trivia.Request{
				Amount:     settings.Amount,
				Difficulty: settings.Difficulty,
				Categories: settings.Categories,
			})
			if err != nil {
				logger.Warnf("question fetch failed for connection %v: %v", conn.ID, err)
				conn.WriteError("Failed to load questions. Please try again.")
				return
			}
		}
		if err := m.StartGame(conn.ID, questions); err != nil {
			conn.WriteError(err.Error())
		}

	case "submitAnswer":
		if msg.AnswerIndex == nil {
			conn.WriteError("Missing answerIndex")
			return
		}
		m.SubmitAnswer(conn.ID, *msg.AnswerIndex, msg.IsCorrect)

	case "nextQuestion":
		m.Advance(conn.ID)

	case "kickPlayer":
		target, err := uuid.Parse(msg.PlayerID)
		if err != nil {
			conn.WriteError("Invalid playerId")
			return
		}
		if err := m.Kick(conn.ID, target); err != nil {
			conn.WriteError(err.Error())
		}

	default:
		logger.Warnf("unknown message type %q from connection %v", msg.Type, conn.ID)
		conn.WriteError("Unknown message type")
	}
}

// writePump drains the connection's outbound queue onto the socket and
// keeps the connection alive with periodic pings. Exits when the queue
// closes, the context ends, or a write fails; the deferred socket close
// then breaks readPump, which drives the disconnect. A queue closed by the
// manager (a kick) is only observed after its buffered events are written,
// so the target hears its kicked notice before the socket drops.
func writePump(ctx context.Context, c *websocket.Conn, conn *lobby.Connection, logger *logrus.Logger) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	defer c.Close(websocket.StatusGoingAway, "write pump stopping")

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-conn.OutChan:
			if !ok {
				return
			}
			data, err := json.Marshal(msg)
			if err != nil {
				logger.Warnf("failed to marshal outgoing msg for connection %v: %v", conn.ID, err)
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = c.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				logger.Warnf("failed to write to connection %v: %v", conn.ID, err)
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				logger.Warnf("ping failed for connection %v, assuming disconnect: %v", conn.ID, err)
				return
			}
		}
	}
}
