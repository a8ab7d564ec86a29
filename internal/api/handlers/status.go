package handlers

import (
	"net/http"
	"time"

	"github.com/amaumene/prunarr/internal/cache"
	"github.com/amaumene/prunarr/internal/models"
	"github.com/sirupsen/logrus"
)

// RunTracker exposes the removal run history of the scheduler
type RunTracker interface {
	LastRun() (models.RunSummary, bool)
	NextRun() time.Time
}

// StatusHandler handles status requests
type StatusHandler struct {
	runs   RunTracker
	cache  cache.Layer
	logger *logrus.Logger
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(runs RunTracker, layer cache.Layer, logger *logrus.Logger) *StatusHandler {
	return &StatusHandler{
		runs:   runs,
		cache:  layer,
		logger: logger,
	}
}

// RunResponse is a removal run as reported by the status endpoint
type RunResponse struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	DryRun     bool      `json:"dry_run"`
	Candidates int       `json:"candidates"`
	Deleted    int       `json:"deleted"`
	Failed     int       `json:"failed"`
	FreedBytes int64     `json:"freed_bytes"`
	Skipped    int       `json:"skipped_series"`
	Error      string    `json:"error,omitempty"`
}

// CacheResponse summarizes the cache
type CacheResponse struct {
	Backend string `json:"backend"`
	Entries int    `json:"entries"`
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
}

// StatusResponse represents the status response
type StatusResponse struct {
	LastRun *RunResponse   `json:"last_run"`
	NextRun *time.Time     `json:"next_run,omitempty"`
	Cache   *CacheResponse `json:"cache,omitempty"`
}

func newRunResponse(s models.RunSummary) *RunResponse {
	return &RunResponse{
		ID:         s.ID,
		Kind:       s.Kind,
		StartedAt:  s.StartedAt,
		FinishedAt: s.FinishedAt,
		DryRun:     s.DryRun,
		Candidates: s.Candidates,
		Deleted:    s.Deleted,
		Failed:     s.Failed,
		FreedBytes: s.FreedBytes,
		Skipped:    s.SkippedKeys,
		Error:      s.Error,
	}
}

// ServeHTTP handles the status endpoint
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var response StatusResponse
	if last, ok := h.runs.LastRun(); ok {
		response.LastRun = newRunResponse(last)
	}
	if next := h.runs.NextRun(); !next.IsZero() {
		response.NextRun = &next
	}
	if h.cache != nil {
		stats := h.cache.Stats()
		entries, hits, misses := stats.Totals()
		response.Cache = &CacheResponse{Backend: stats.Backend, Entries: entries, Hits: hits, Misses: misses}
	}

	writeJSON(w, http.StatusOK, response, h.logger)
}
