package controllers

import (
	"context"
	"testing"

	"github.com/amaumene/prunarr/internal/models"
	"github.com/amaumene/prunarr/internal/services/sonarr"
	"github.com/amaumene/prunarr/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cleanupCandidates() []models.RemovalCandidate {
	return []models.RemovalCandidate{
		{Granularity: models.GranularityMovie, MovieID: 1, Title: "Dune", Size: 100},
		{Granularity: models.GranularityMovie, MovieID: 2, Title: "Heat", Size: 200},
		{Granularity: models.GranularitySeries, SeriesID: 8, Title: "Breaking Bad", Size: 300},
		{Granularity: models.GranularitySeason, SeriesID: 7, Title: "The Expanse", Season: intPtr(1), Size: 2700},
		{Granularity: models.GranularityEpisode, SeriesID: 7, Title: "The Expanse", FileID: 501, EpisodeIDs: []int{73}, Size: 700},
	}
}

func TestExecuteDeletesEveryCandidate(t *testing.T) {
	movies := &fakeMovies{failDelete: map[int]bool{1: true}}
	series := &fakeSeries{seasons: map[int]sonarr.SeasonDeletion{1: {Deleted: []int{501}, FreedBytes: 700, Skipped: []int{500}}}}
	c := NewCleanupController(movies, series, nil, quietLogger())

	candidates := cleanupCandidates()
	results := c.Execute(context.Background(), candidates, ExecuteOptions{DeleteFiles: true})
	require.Len(t, results, len(candidates))

	assert.Equal(t, models.OutcomeFailed, results[0].Outcome)
	assert.Contains(t, results[0].Error, errUpstream.Error())
	for _, r := range results[1:] {
		assert.Equal(t, models.OutcomeDeleted, r.Outcome, r.Candidate.Title)
	}

	assert.Equal(t, []int{2}, movies.deleted, "a failure does not stop later deletions")
	assert.Equal(t, []int{8}, series.deleted)
	assert.Equal(t, []int{501}, series.deletedFile)
	assert.Equal(t, []int{73}, series.unmonitored)
	assert.Equal(t, int64(700), results[3].FreedBytes, "only the files of the season itself")
	assert.Equal(t, candidates, cleanupCandidates(), "candidates are left untouched")

	summary := Summarize(results)
	assert.Equal(t, ExecutionSummary{Deleted: 4, Failed: 1, FreedBytes: 200 + 300 + 700 + 700}, summary)
}

func TestExecuteDryRun(t *testing.T) {
	movies := &fakeMovies{}
	series := &fakeSeries{}
	c := NewCleanupController(movies, series, nil, quietLogger())

	results := c.Execute(context.Background(), cleanupCandidates(), ExecuteOptions{DryRun: true})
	for _, r := range results {
		assert.Equal(t, models.OutcomeDryRun, r.Outcome)
	}
	assert.Zero(t, movies.get("delete"))
	assert.Zero(t, series.get("delete"))
	assert.Zero(t, series.get("delete_season"))
	assert.Zero(t, series.get("delete_file"))
}

func TestExecuteSkipsProtectedTitles(t *testing.T) {
	movies := &fakeMovies{}
	series := &fakeSeries{}
	protected := utils.NewProtectedList("expanse")
	c := NewCleanupController(movies, series, protected, quietLogger())

	results := c.Execute(context.Background(), cleanupCandidates(), ExecuteOptions{})
	assert.Equal(t, models.OutcomeProtected, results[3].Outcome)
	assert.Equal(t, models.OutcomeProtected, results[4].Outcome)
	assert.Zero(t, series.get("delete_season"))

	summary := Summarize(results)
	assert.Equal(t, 2, summary.Protected)
	assert.Equal(t, 3, summary.Deleted)
}

func TestExecuteSeasonFailure(t *testing.T) {
	series := &fakeSeries{
		seasons:   map[int]sonarr.SeasonDeletion{1: {Deleted: []int{501}, FreedBytes: 700}},
		seasonErr: errUpstream,
	}
	c := NewCleanupController(&fakeMovies{}, series, nil, quietLogger())

	results := c.Execute(context.Background(), cleanupCandidates()[3:4], ExecuteOptions{})
	require.Len(t, results, 1)
	assert.Equal(t, models.OutcomeFailed, results[0].Outcome)
	assert.Equal(t, int64(700), results[0].FreedBytes, "files removed before the failure are reported")

	summary := Summarize(results)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, int64(700), summary.FreedBytes)
}

func TestExecuteCancelledContext(t *testing.T) {
	movies := &fakeMovies{}
	c := NewCleanupController(movies, &fakeSeries{}, nil, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := c.Execute(ctx, cleanupCandidates()[:2], ExecuteOptions{})
	for _, r := range results {
		assert.Equal(t, models.OutcomeFailed, r.Outcome)
	}
	assert.Empty(t, movies.deleted)
}
