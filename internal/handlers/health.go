// internal/handlers/health.go
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/quizwire/quizwire/internal/trivia"
)

// HealthHandler reports liveness for load balancers and uptime checks.
func HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"status":    "OK",
			"message":   "Trivia Quiz Game server is running",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// CategoriesHandler serves the supported question category list so clients
// can render the selection UI without hardcoding it.
func CategoriesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(trivia.Categories())
	}
}
