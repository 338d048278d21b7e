// internal/lobby/lobby.go
package lobby

import (
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/quizwire/quizwire/internal/models"
)

// State is the lobby lifecycle state.
type State string

const (
	StateWaiting  State = "waiting"  // accepting joins, no questions loaded
	StatePlaying  State = "playing"  // question cycle active
	StateFinished State = "finished" // terminal; results available
)

// Lobby is one ephemeral multiplayer session. All mutable fields are
// protected by Mu; methods suffixed Unsafe assume the caller holds it.
type Lobby struct {
	Code     string
	HostID   uuid.UUID // authoritative host; never inferred from player order
	State    State
	Settings models.Settings

	// Players in join order. Index 0 is presented as host by clients, but
	// HostID is what authorization checks use.
	Players     []*models.Player
	Connections map[uuid.UUID]*Connection

	// Questions are snapshotted at game start and immutable afterward.
	Questions    []models.Question
	CurrentIndex int

	// Pending holds at most one answer per connection for the current
	// question; cleared on every advance.
	Pending map[uuid.UUID]*models.AnswerRecord

	timer  *countdown // at most one active countdown of either kind
	closed bool       // set during teardown so stale lookups fail as not-found

	Mu sync.Mutex
}

// Connection is a single player's live presence in the lobby's room.
// Outbound events are queued on OutChan and drained by the connection's
// write pump.
type Connection struct {
	ID      uuid.UUID
	Name    string
	OutChan chan map[string]interface{}

	mu     sync.Mutex
	closed bool
}

// Write pushes a message onto the connection's outbound queue without
// blocking. Messages to a closed or backed-up connection are dropped; the
// read side will notice the dead socket and disconnect properly. The closed
// check matters because a removed player's read pump may still be
// dispatching an in-flight message.
func (c *Connection) Write(msg map[string]interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.OutChan <- msg:
	default:
		msgType, _ := msg["type"].(string)
		log.Printf("lobby: OutChan for connection %s full, dropped %q", c.ID, msgType)
	}
}

// Close shuts down the outbound queue. Idempotent. The write pump drains
// whatever is already buffered before it sees the closed channel, so events
// queued first (a kicked notice, say) still reach the socket.
func (c *Connection) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.OutChan)
}

// WriteError sends a displayable error event to this connection only.
func (c *Connection) WriteError(msg string) {
	c.Write(map[string]interface{}{
		"type":    "error",
		"message": msg,
	})
}

// broadcastUnsafe fans a message out to every connection in the room.
func (l *Lobby) broadcastUnsafe(msg map[string]interface{}) {
	for _, conn := range l.Connections {
		conn.Write(msg)
	}
}

// broadcastExceptUnsafe fans out to everyone but one connection, used when
// an event is targeted (the joiner's own ack differs from what the room
// sees, the kicked player gets a kicked notice instead of playerLeft).
func (l *Lobby) broadcastExceptUnsafe(exclude uuid.UUID, msg map[string]interface{}) {
	for id, conn := range l.Connections {
		if id == exclude {
			continue
		}
		conn.Write(msg)
	}
}

// rosterUnsafe returns a value snapshot of the player list in join order.
// Snapshotting matters: the write pump marshals payloads after the lobby
// lock is released, so it must not share Player pointers with live state.
func (l *Lobby) rosterUnsafe() []models.Player {
	roster := make([]models.Player, 0, len(l.Players))
	for _, p := range l.Players {
		roster = append(roster, *p)
	}
	return roster
}

// playerUnsafe finds a player by connection id.
func (l *Lobby) playerUnsafe(id uuid.UUID) (*models.Player, int) {
	for i, p := range l.Players {
		if p.ID == id {
			return p, i
		}
	}
	return nil, -1
}

// removePlayerUnsafe detaches a player from the lobby: drops it from the
// ordered list, the room, and the current question's pending answers.
// closeConn additionally shuts down the outbound queue, which ends the
// write pump once it has flushed; a player leaving one lobby to create or
// join another keeps its live connection.
func (l *Lobby) removePlayerUnsafe(id uuid.UUID, closeConn bool) {
	if _, i := l.playerUnsafe(id); i >= 0 {
		l.Players = append(l.Players[:i], l.Players[i+1:]...)
	}
	if conn, ok := l.Connections[id]; ok {
		delete(l.Connections, id)
		if closeConn {
			conn.Close()
		}
	}
	delete(l.Pending, id)
}

// currentQuestionUnsafe returns the question under the cursor, or nil when
// the cursor is out of range.
func (l *Lobby) currentQuestionUnsafe() *models.Question {
	if l.CurrentIndex < 0 || l.CurrentIndex >= len(l.Questions) {
		return nil
	}
	return &l.Questions[l.CurrentIndex]
}

// allAnsweredUnsafe reports whether every player has an answer recorded for
// the current question. Pending never exceeds the player count, so equality
// means the question is fully resolved.
func (l *Lobby) allAnsweredUnsafe() bool {
	return len(l.Players) > 0 && len(l.Pending) >= len(l.Players)
}
