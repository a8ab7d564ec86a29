package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/amaumene/prunarr/internal/cache"
	"github.com/amaumene/prunarr/internal/controllers"
	"github.com/amaumene/prunarr/internal/models"
	"github.com/amaumene/prunarr/internal/scheduler"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noCandidates struct{}

func (noCandidates) GetRemovalCandidates(ctx context.Context, minDays int, q controllers.MovieQuery) ([]models.RemovalCandidate, error) {
	return nil, nil
}

type noSeries struct{}

func (noSeries) GetRemovalCandidates(ctx context.Context, q controllers.RemovalQuery) (controllers.RemovalReport, error) {
	return controllers.RemovalReport{}, nil
}

type noop struct{}

func (noop) Execute(ctx context.Context, candidates []models.RemovalCandidate, opts controllers.ExecuteOptions) []models.DeletionResult {
	return nil
}

func testServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	sched := scheduler.NewScheduler(noCandidates{}, noSeries{}, noop{}, scheduler.RunOptions{Schedule: "0 3 * * *"}, logger)
	s := NewServer("0", sched, cache.NewNopLayer(), logger)

	srv := httptest.NewServer(s.Routes())
	t.Cleanup(srv.Close)
	return srv
}

func TestRoutes(t *testing.T) {
	srv := testServer(t)

	for _, path := range []string{"/health", "/status", "/metrics"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}

func TestManualRunThenStatus(t *testing.T) {
	srv := testServer(t)

	resp, err := http.Post(srv.URL+"/api/run", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"kind":"manual"`)
}

func TestMetricsExposeRuns(t *testing.T) {
	srv := testServer(t)

	resp, err := http.Post(srv.URL+"/api/run", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "prunarr_runs_total")
}
