package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// HealthResponse is the body of the health endpoint. A failed last run
// degrades the status but the process is still considered alive.
type HealthResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
	Reason string `json:"reason,omitempty"`
}

// HealthHandler reports liveness plus the outcome of the last removal run
type HealthHandler struct {
	runs    RunTracker
	started time.Time
	logger  *logrus.Logger
}

// NewHealthHandler creates a new health handler. runs may be nil.
func NewHealthHandler(runs RunTracker, logger *logrus.Logger) *HealthHandler {
	return &HealthHandler{runs: runs, started: time.Now(), logger: logger}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := HealthResponse{
		Status: "healthy",
		Uptime: time.Since(h.started).Round(time.Second).String(),
	}
	if h.runs != nil {
		if last, ok := h.runs.LastRun(); ok && (last.Error != "" || last.Failed > 0) {
			response.Status = "degraded"
			response.Reason = "last removal run " + last.ID + " had failures"
		}
	}

	writeJSON(w, http.StatusOK, response, h.logger)
}

func writeJSON(w http.ResponseWriter, status int, v any, logger *logrus.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.WithError(err).Warn("Failed to write response")
	}
}
