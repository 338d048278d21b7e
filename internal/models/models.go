// internal/models/models.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// Settings are the game parameters chosen when a lobby is created. They are
// immutable once the game starts.
type Settings struct {
	Amount     int    `json:"amount"`
	Difficulty string `json:"difficulty"`
	Categories []int  `json:"categories"`
}

// Player is one connection's presence in a lobby. ID is the connection id;
// players are anonymous per-connection, so there is no account identity.
type Player struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Score int       `json:"score"`
}

// Question is the shape produced by the question supplier. Answers arrive
// already shuffled; CorrectIndex points at the true answer's shuffled
// position. Text fields are fully decoded, human-readable strings.
type Question struct {
	Text         string   `json:"question"`
	Answers      []string `json:"answers"`
	CorrectIndex int      `json:"correctIndex"`
	Category     string   `json:"category"`
	Difficulty   string   `json:"difficulty"`
	Type         string   `json:"type,omitempty"`
}

// TimedOutAnswerIndex is the sentinel AnswerIndex recorded for a player who
// never answered before the question timer expired.
const TimedOutAnswerIndex = -1

// AnswerRecord captures a single player's submission for the current
// question. At most one record per connection per question is ever stored.
type AnswerRecord struct {
	AnswerIndex int       `json:"answerIndex"`
	IsCorrect   bool      `json:"isCorrect"`
	ReceivedAt  time.Time `json:"receivedAt"`
	TimedOut    bool      `json:"timedOut"`
}
