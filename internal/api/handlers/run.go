package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/amaumene/prunarr/internal/models"
	"github.com/amaumene/prunarr/internal/scheduler"
	"github.com/sirupsen/logrus"
)

// Runner starts a removal run on demand
type Runner interface {
	RunOnce(ctx context.Context, kind string) (models.RunSummary, error)
}

// RunHandler triggers a removal run outside the schedule
type RunHandler struct {
	runner Runner
	logger *logrus.Logger
}

// NewRunHandler creates a new run handler
func NewRunHandler(runner Runner, logger *logrus.Logger) *RunHandler {
	return &RunHandler{runner: runner, logger: logger}
}

// ServeHTTP runs removal synchronously and returns its summary
func (h *RunHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	summary, err := h.runner.RunOnce(r.Context(), "manual")
	switch {
	case errors.Is(err, scheduler.ErrRunInProgress):
		http.Error(w, err.Error(), http.StatusConflict)
		return
	case err != nil && summary.ID == "":
		h.logger.WithError(err).Error("Manual run failed")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	case err != nil:
		// partial run, the summary carries the error
		h.logger.WithError(err).Warn("Manual run finished with errors")
	}

	writeJSON(w, http.StatusOK, newRunResponse(summary), h.logger)
}
