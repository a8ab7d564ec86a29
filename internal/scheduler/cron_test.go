package scheduler

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/amaumene/prunarr/internal/controllers"
	"github.com/amaumene/prunarr/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMovies struct {
	candidates []models.RemovalCandidate
	err        error
	minDays    int
}

func (f *fakeMovies) GetRemovalCandidates(ctx context.Context, minDays int, q controllers.MovieQuery) ([]models.RemovalCandidate, error) {
	f.minDays = minDays
	return f.candidates, f.err
}

type fakeSeries struct {
	report controllers.RemovalReport
	query  controllers.RemovalQuery
}

func (f *fakeSeries) GetRemovalCandidates(ctx context.Context, q controllers.RemovalQuery) (controllers.RemovalReport, error) {
	f.query = q
	return f.report, nil
}

type fakeExecutor struct {
	got  []models.RemovalCandidate
	opts controllers.ExecuteOptions
}

func (f *fakeExecutor) Execute(ctx context.Context, candidates []models.RemovalCandidate, opts controllers.ExecuteOptions) []models.DeletionResult {
	f.got = candidates
	f.opts = opts
	results := make([]models.DeletionResult, 0, len(candidates))
	for _, c := range candidates {
		results = append(results, models.DeletionResult{Candidate: c, Outcome: models.OutcomeDeleted, FreedBytes: c.Size})
	}
	return results
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testOptions() RunOptions {
	return RunOptions{
		Schedule:    "0 3 * * *",
		MinDays:     60,
		Granularity: models.GranularitySeason,
		Execute:     controllers.ExecuteOptions{DeleteFiles: true},
	}
}

func TestRunOnce(t *testing.T) {
	movies := &fakeMovies{candidates: []models.RemovalCandidate{{Granularity: models.GranularityMovie, MovieID: 1, Size: 10}}}
	series := &fakeSeries{report: controllers.RemovalReport{
		Candidates:    []models.RemovalCandidate{{Granularity: models.GranularitySeason, SeriesID: 2, Size: 20}},
		SkippedSeries: []controllers.SkippedSeries{{SeriesID: 3}},
	}}
	exec := &fakeExecutor{}
	s := NewScheduler(movies, series, exec, testOptions(), quietLogger())

	_, ok := s.LastRun()
	assert.False(t, ok)

	summary, err := s.RunOnce(context.Background(), "manual")
	require.NoError(t, err)

	assert.NotEmpty(t, summary.ID)
	assert.Equal(t, "manual", summary.Kind)
	assert.Equal(t, 2, summary.Candidates)
	assert.Equal(t, 2, summary.Deleted)
	assert.Equal(t, int64(30), summary.FreedBytes)
	assert.Equal(t, 1, summary.SkippedKeys)

	assert.Equal(t, 60, movies.minDays)
	assert.Equal(t, models.GranularitySeason, series.query.Granularity)
	assert.True(t, exec.opts.DeleteFiles)

	last, ok := s.LastRun()
	require.True(t, ok)
	assert.Equal(t, summary.ID, last.ID)
}

func TestRunOnceContinuesAfterLibraryFailure(t *testing.T) {
	movies := &fakeMovies{err: errors.New("radarr down")}
	series := &fakeSeries{report: controllers.RemovalReport{
		Candidates: []models.RemovalCandidate{{Granularity: models.GranularitySeries, SeriesID: 2}},
	}}
	exec := &fakeExecutor{}
	s := NewScheduler(movies, series, exec, testOptions(), quietLogger())

	summary, err := s.RunOnce(context.Background(), "scheduled")
	require.Error(t, err)
	assert.Contains(t, summary.Error, "radarr down")
	assert.Len(t, exec.got, 1, "series candidates are still executed")
}

func TestRunsDoNotOverlap(t *testing.T) {
	s := NewScheduler(&fakeMovies{}, &fakeSeries{}, &fakeExecutor{}, testOptions(), quietLogger())

	s.runMu.Lock()
	_, err := s.RunOnce(context.Background(), "manual")
	s.runMu.Unlock()
	assert.ErrorIs(t, err, ErrRunInProgress)
}

func TestStartRejectsBadSchedule(t *testing.T) {
	opts := testOptions()
	opts.Schedule = "every day"
	s := NewScheduler(&fakeMovies{}, &fakeSeries{}, &fakeExecutor{}, opts, quietLogger())
	assert.Error(t, s.Start())
}

func TestStartSchedulesNextRun(t *testing.T) {
	s := NewScheduler(&fakeMovies{}, &fakeSeries{}, &fakeExecutor{}, testOptions(), quietLogger())
	assert.True(t, s.NextRun().IsZero())

	require.NoError(t, s.Start())
	defer s.Stop()
	assert.False(t, s.NextRun().IsZero())
}
