package controllers

import (
	"context"
	"testing"

	"github.com/amaumene/prunarr/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seasonOne(episodes, files int, size int64) []models.Season {
	return []models.Season{{
		Number:    1,
		Monitored: true,
		Stats:     models.SeasonStatistics{EpisodeCount: episodes, EpisodeFileCount: files, SizeOnDisk: size},
	}}
}

func seriesFixture() (*fakeSeries, *fakeHistory) {
	series := &fakeSeries{
		series: []models.Series{
			{
				ID: 7, Title: "The Expanse", Year: 2015, TVDbID: "280619", TagIDs: []int{2},
				Seasons: seasonOne(3, 3, 2700),
				Stats:   models.SeriesStatistics{EpisodeCount: 3, EpisodeFileCount: 3, SizeOnDisk: 2700},
			},
			{
				ID: 8, Title: "Breaking Bad", Year: 2008, TVDbID: "81189", TagIDs: []int{2},
				Seasons: seasonOne(2, 2, 1000),
				Stats:   models.SeriesStatistics{EpisodeCount: 2, EpisodeFileCount: 2, SizeOnDisk: 1000},
			},
			{ID: 9, Title: "The Expanse Chronicles", Year: 2030, TVDbID: "999"},
		},
		tags: map[int]string{2: "42 - alice"},
		episodes: map[int][]models.Episode{
			7: {
				{ID: 71, SeriesID: 7, Season: 1, Number: 1, HasFile: true, FileID: 500},
				{ID: 72, SeriesID: 7, Season: 1, Number: 2, HasFile: true, FileID: 500},
				{ID: 73, SeriesID: 7, Season: 1, Number: 3, HasFile: true, FileID: 501},
			},
		},
		files: map[int][]models.EpisodeFile{
			7: {
				{ID: 500, SeriesID: 7, SeasonNumber: 1, Size: 2000, EpisodeIDs: []int{71, 72}},
				{ID: 501, SeriesID: 7, SeasonNumber: 1, Size: 700, EpisodeIDs: []int{73}},
			},
		},
		failSeries: map[int]bool{8: true},
	}
	history := &fakeHistory{
		events: map[models.MediaType][]models.RawWatchEvent{
			models.MediaTypeEpisode: {
				episodeEvent("g7", "alice", 1, 1, daysAgo(100)),
				episodeEvent("g7", "alice", 1, 3, daysAgo(90)),
				episodeEvent("g7", "bob", 1, 2, daysAgo(3)),
				episodeEvent("g8", "alice", 1, 1, daysAgo(80)),
				episodeEvent("g8", "alice", 1, 2, daysAgo(80)),
			},
		},
		guids: map[string][]string{
			"g7": {"tvdb://280619"},
			"g8": {"imdb://tt0903747", "tvdb://81189"},
		},
	}
	return series, history
}

func newSeriesController(series *fakeSeries, history *fakeHistory) *SeriesController {
	sources := Sources{Series: series, History: history}
	return NewSeriesController(sources, testResolver(), testEngine(), quietLogger())
}

func TestGetSeriesWithWatchStatus(t *testing.T) {
	series, history := seriesFixture()
	c := newSeriesController(series, history)

	annotated, err := c.GetSeriesWithWatchStatus(context.Background(), SeriesQuery{})
	require.NoError(t, err)
	require.Len(t, annotated, 2)

	expanse := annotated[0]
	assert.Equal(t, "alice", expanse.Requester)
	assert.Equal(t, models.WatchStatusPartiallyWatched, expanse.Status)
	assert.Equal(t, 2, expanse.WatchedEpisodes)
	assert.Equal(t, 3, expanse.TotalEpisodes)
	require.NotNil(t, expanse.DaysSinceWatched)
	assert.Equal(t, 3, *expanse.DaysSinceWatched, "staleness counts every watcher")

	assert.Equal(t, models.WatchStatusFullyWatched, annotated[1].Status)
}

func TestGetSeriesFilters(t *testing.T) {
	series, history := seriesFixture()
	c := newSeriesController(series, history)

	matched, err := c.GetSeriesWithWatchStatus(context.Background(), SeriesQuery{IncludeUntagged: true, SeriesFilter: "EXPANSE"})
	require.NoError(t, err)
	require.Len(t, matched, 2)
	assert.Equal(t, 9, matched[1].ID)
	assert.Equal(t, models.WatchStatusNoEpisodes, matched[1].Status)

	withSeason, err := c.GetSeriesWithWatchStatus(context.Background(), SeriesQuery{IncludeUntagged: true, Season: intPtr(1)})
	require.NoError(t, err)
	assert.Len(t, withSeason, 2, "series without season 1 are left out")

	none, err := c.GetSeriesWithWatchStatus(context.Background(), SeriesQuery{Username: "bob"})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSeriesRemovalCandidatesByGranularity(t *testing.T) {
	series, history := seriesFixture()
	c := newSeriesController(series, history)
	ctx := context.Background()

	report, err := c.GetRemovalCandidates(ctx, RemovalQuery{Granularity: models.GranularitySeries, MinDays: 60})
	require.NoError(t, err)
	require.Len(t, report.Candidates, 1)
	assert.Equal(t, 8, report.Candidates[0].SeriesID)
	assert.Equal(t, 80, report.Candidates[0].DaysSinceWatched)

	report, err = c.GetRemovalCandidates(ctx, RemovalQuery{Granularity: models.GranularitySeason, MinDays: 60})
	require.NoError(t, err)
	require.Len(t, report.Candidates, 1)
	require.NotNil(t, report.Candidates[0].Season)
	assert.Equal(t, 1, *report.Candidates[0].Season)
	assert.Equal(t, int64(1000), report.Candidates[0].Size)

	report, err = c.GetRemovalCandidates(ctx, RemovalQuery{Granularity: models.GranularitySeries, MinDays: 81})
	require.NoError(t, err)
	assert.Empty(t, report.Candidates)
}

func TestEpisodeRemovalKeepsBundledFilesAndSkipsFailures(t *testing.T) {
	series, history := seriesFixture()
	c := newSeriesController(series, history)

	report, err := c.GetRemovalCandidates(context.Background(), RemovalQuery{Granularity: models.GranularityEpisode, MinDays: 60})
	require.NoError(t, err)

	require.Len(t, report.Candidates, 1, "file 500 also holds an episode alice has not watched")
	candidate := report.Candidates[0]
	assert.Equal(t, 501, candidate.FileID)
	assert.Equal(t, []int{73}, candidate.EpisodeIDs)
	assert.Equal(t, int64(700), candidate.Size)
	assert.Equal(t, 90, candidate.DaysSinceWatched)

	require.Len(t, report.SkippedSeries, 1)
	assert.Equal(t, 8, report.SkippedSeries[0].SeriesID)
	assert.Contains(t, report.SkippedSeries[0].Error, errUpstream.Error())
}

func TestRemovalRejectsUnknownGranularity(t *testing.T) {
	series, history := seriesFixture()
	c := newSeriesController(series, history)

	_, err := c.GetRemovalCandidates(context.Background(), RemovalQuery{Granularity: models.GranularityMovie})
	assert.Error(t, err)
}

func TestFindSeries(t *testing.T) {
	series, history := seriesFixture()
	c := newSeriesController(series, history)
	ctx := context.Background()

	found, err := c.FindSeries(ctx, "8")
	require.NoError(t, err)
	assert.Equal(t, "Breaking Bad", found.Title)

	found, err = c.FindSeries(ctx, "the expanse")
	require.NoError(t, err)
	assert.Equal(t, 7, found.ID, "exact title wins over partial matches")

	found, err = c.FindSeries(ctx, "The Expanse (2030)")
	require.NoError(t, err)
	assert.Equal(t, 9, found.ID)

	_, err = c.FindSeries(ctx, "expanse")
	assert.ErrorIs(t, err, ErrAmbiguousSeries)

	_, err = c.FindSeries(ctx, "Braking Bad")
	require.ErrorIs(t, err, ErrSeriesNotFound)
	var lookupErr *SeriesLookupError
	require.ErrorAs(t, err, &lookupErr)
	assert.Equal(t, []string{"Breaking Bad"}, lookupErr.Suggestions)
}

func TestGetSeriesDetails(t *testing.T) {
	series, history := seriesFixture()
	c := newSeriesController(series, history)

	detail, err := c.GetSeriesDetails(context.Background(), 7, DetailQuery{})
	require.NoError(t, err)
	require.Len(t, detail.Seasons, 1)

	season := detail.Seasons[0]
	assert.Equal(t, 2, season.WatchedByUser)
	assert.Equal(t, 1, season.WatchedByOthers)
	assert.Equal(t, 0, season.Unwatched)
	assert.Equal(t, models.EpisodeWatchedByOthers, season.Episodes[1].Status)

	_, err = c.GetSeriesDetails(context.Background(), 42, DetailQuery{})
	assert.ErrorIs(t, err, ErrSeriesNotFound)
}

func TestGetSeriesDetailsFallsBackToSeasonCounters(t *testing.T) {
	series, history := seriesFixture()
	c := newSeriesController(series, history)

	detail, err := c.GetSeriesDetails(context.Background(), 8, DetailQuery{WatchedOnly: true})
	require.NoError(t, err)
	require.Len(t, detail.Seasons, 1)
	assert.Len(t, detail.Seasons[0].Episodes, 2, "placeholders built from the season counters")
}
