package mcp

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/bull/campaign-scribe/internal/vectorindex"
)

// HealthResponse represents the JSON response from the health check endpoint.
type HealthResponse struct {
	Status       string `json:"status"`
	IndexEntries int    `json:"index_entries"`
	WorldState   string `json:"world_state"`
	Timestamp    string `json:"timestamp"`
}

// WorldChecker reports whether the world state loaded cleanly.
// Implemented by the server wiring; a store that fell back to an empty
// state after corruption reports degraded.
type WorldChecker func() error

// NewHealthHandler creates an HTTP handler for the /health endpoint.
// It reports index size and world-state condition. An empty index is not
// unhealthy; a corrupt world state degrades the status to 503.
func NewHealthHandler(index *vectorindex.Index, worldCheck WorldChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := HealthResponse{
			IndexEntries: index.Len(),
			Timestamp:    time.Now().UTC().Format(time.RFC3339),
		}

		w.Header().Set("Content-Type", "application/json")

		if worldCheck != nil {
			if err := worldCheck(); err != nil {
				response.Status = "degraded"
				response.WorldState = err.Error()
				w.WriteHeader(http.StatusServiceUnavailable)
				json.NewEncoder(w).Encode(response)
				return
			}
		}

		response.Status = "healthy"
		response.WorldState = "ok"
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(response)
	}
}
