// internal/trivia/supplier.go
package trivia

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/quizwire/quizwire/internal/models"
)

// Request describes a question batch: how many, optionally filtered by
// difficulty and a category selection.
type Request struct {
	Amount     int
	Difficulty string
	Categories []int
}

// Supplier produces ready-to-play question batches: answers shuffled,
// correctIndex pointing at the true answer, all text decoded to
// human-readable strings.
type Supplier interface {
	Questions(ctx context.Context, req Request) ([]models.Question, error)
}

// Service is the Supplier the gateway uses: an upstream client with the
// local fallback set behind it. An unreachable or rate-limited source is
// recoverable, never fatal, so Service never returns an error.
type Service struct {
	Client *Client
	Logger *logrus.Logger
}

func NewService(client *Client, logger *logrus.Logger) *Service {
	return &Service{Client: client, Logger: logger}
}

func (s *Service) Questions(ctx context.Context, req Request) ([]models.Question, error) {
	qs, err := s.Client.Questions(ctx, req)
	if err != nil {
		s.Logger.WithError(err).Warn("question source unavailable, using fallback set")
		return Fallback(req.Amount), nil
	}
	return qs, nil
}
