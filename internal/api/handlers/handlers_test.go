package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/amaumene/prunarr/internal/cache"
	"github.com/amaumene/prunarr/internal/models"
	"github.com/amaumene/prunarr/internal/scheduler"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type fakeRuns struct {
	last    *models.RunSummary
	next    time.Time
	summary models.RunSummary
	err     error
}

func (f *fakeRuns) LastRun() (models.RunSummary, bool) {
	if f.last == nil {
		return models.RunSummary{}, false
	}
	return *f.last, true
}

func (f *fakeRuns) NextRun() time.Time { return f.next }

func (f *fakeRuns) RunOnce(ctx context.Context, kind string) (models.RunSummary, error) {
	f.summary.Kind = kind
	return f.summary, f.err
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHealthHandler(&fakeRuns{}, quietLogger()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var body HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Status)
	assert.Empty(t, body.Reason)

	rec = httptest.NewRecorder()
	NewHealthHandler(nil, quietLogger()).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/health", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHealthDegradedAfterFailedRun(t *testing.T) {
	runs := &fakeRuns{last: &models.RunSummary{ID: "run-1", Failed: 2}}
	rec := httptest.NewRecorder()
	NewHealthHandler(runs, quietLogger()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var body HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body.Status)
	assert.Contains(t, body.Reason, "run-1")
}

func TestStatusBeforeFirstRun(t *testing.T) {
	rec := httptest.NewRecorder()
	NewStatusHandler(&fakeRuns{}, nil, quietLogger()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"last_run": null}`, rec.Body.String())
}

func TestStatusReportsLastRun(t *testing.T) {
	finished := time.Date(2026, 3, 1, 3, 0, 5, 0, time.UTC)
	runs := &fakeRuns{
		last: &models.RunSummary{ID: "run-1", Kind: "scheduled", FinishedAt: finished, Deleted: 2, FreedBytes: 1 << 30},
		next: finished.Add(24 * time.Hour),
	}
	layer := cache.NewMemoryLayer(nil, quietLogger())

	rec := httptest.NewRecorder()
	NewStatusHandler(runs, layer, quietLogger()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	var body StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotNil(t, body.LastRun)
	assert.Equal(t, "run-1", body.LastRun.ID)
	assert.Equal(t, 2, body.LastRun.Deleted)
	require.NotNil(t, body.NextRun)
	assert.True(t, body.NextRun.Equal(runs.next))
	require.NotNil(t, body.Cache)
	assert.Equal(t, "memory", body.Cache.Backend)
}

func TestRunHandler(t *testing.T) {
	runs := &fakeRuns{summary: models.RunSummary{ID: "run-2", Candidates: 3, Deleted: 3}}

	rec := httptest.NewRecorder()
	NewRunHandler(runs, quietLogger()).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/run", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var body RunResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "manual", body.Kind)
	assert.Equal(t, 3, body.Deleted)

	rec = httptest.NewRecorder()
	NewRunHandler(runs, quietLogger()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/run", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRunHandlerErrors(t *testing.T) {
	busy := &fakeRuns{err: scheduler.ErrRunInProgress}
	rec := httptest.NewRecorder()
	NewRunHandler(busy, quietLogger()).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/run", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)

	partial := &fakeRuns{summary: models.RunSummary{ID: "run-3", Error: "movies: down"}, err: errors.New("movies: down")}
	rec = httptest.NewRecorder()
	NewRunHandler(partial, quietLogger()).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/run", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "movies: down")
}
