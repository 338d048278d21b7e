// internal/lobby/errors.go
package lobby

import "errors"

// Taxonomy of operation failures. Each is surfaced to the requesting
// connection only, as a displayable error event; none of them affects other
// participants or tears down the lobby.
var (
	ErrLobbyNotFound  = errors.New("lobby not found")
	ErrGameInProgress = errors.New("game already in progress")
	ErrNotAuthorized  = errors.New("only the host can do that")
	ErrInvalidTarget  = errors.New("invalid target player")
	ErrNoQuestions    = errors.New("cannot start a game without questions")
)
