// cmd/server/main.go
package main

import (
	"log"
	"net/http"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/quizwire/quizwire/internal/config"
	"github.com/quizwire/quizwire/internal/handlers"
	"github.com/quizwire/quizwire/internal/lobby"
	"github.com/quizwire/quizwire/internal/middleware"
	"github.com/quizwire/quizwire/internal/trivia"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logrus.New()
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	manager := lobby.NewManager(logger)
	client := trivia.NewClient(cfg.TriviaAPIURL, cfg.RequestTimeout, logger)
	supplier := trivia.NewService(client, logger)

	mux := http.NewServeMux()
	mux.Handle("/health", middleware.LogMiddleware(logger)(handlers.HealthHandler()))
	mux.Handle("/categories", middleware.LogMiddleware(logger)(handlers.CategoriesHandler()))
	mux.Handle("/ws", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.LobbyWSHandler(logger, manager, supplier),
	)))

	logger.Infof("Trivia server running on %s", cfg.Addr())
	if err := http.ListenAndServe(cfg.Addr(), mux); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
