package controllers

import (
	"context"
	"testing"

	"github.com/amaumene/prunarr/internal/cache"
	"github.com/amaumene/prunarr/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWarmPopulatesCache(t *testing.T) {
	movies, movieHistory := movieFixture()
	series, episodeHistory := seriesFixture()

	history := &fakeHistory{
		events: map[models.MediaType][]models.RawWatchEvent{
			models.MediaTypeMovie:   movieHistory.events[models.MediaTypeMovie],
			models.MediaTypeEpisode: episodeHistory.events[models.MediaTypeEpisode],
		},
		guids:    map[string][]string{},
		failKeys: map[string]bool{"g8": true},
	}
	for k, v := range movieHistory.guids {
		history.guids[k] = v
	}
	for k, v := range episodeHistory.guids {
		history.guids[k] = v
	}

	layer := cache.NewMemoryLayer(nil, quietLogger())
	sources := Sources{Movies: movies, Series: series, History: history, Cache: layer}

	report := NewPrefetchController(sources, quietLogger()).Warm(context.Background(), PrefetchOptions{Full: true})
	require.Len(t, report.Phases, 4)

	byName := make(map[string]PhaseReport)
	for _, p := range report.Phases {
		byName[p.Name] = p
	}
	assert.Equal(t, 4, byName["datasets"].Tasks)
	assert.Equal(t, 4, byName["tags"].Tasks, "radarr 1, 2, 3 and sonarr 2")
	assert.Equal(t, 5, byName["metadata"].Tasks)
	assert.Equal(t, 1, byName["metadata"].Failed)
	assert.Equal(t, 3, byName["episodes"].Tasks)
	assert.Equal(t, 1, byName["episodes"].Failed, "series 8 cannot list its episodes")
	assert.Equal(t, 2, report.Failed())

	// the warmed cache serves the movie view without reaching the libraries
	c := NewMovieController(sources, testResolver(), testEngine(), quietLogger())
	_, err := c.GetMoviesWithWatchStatus(context.Background(), MovieQuery{})
	require.NoError(t, err)
	assert.Equal(t, 1, movies.get("list"))
	assert.Equal(t, 3, movies.get("tag"))
	assert.Equal(t, 2, history.get("history"))

	stats := layer.Stats()
	entries, _, _ := stats.Totals()
	assert.Positive(t, entries)
}

func TestWarmWithoutFullSkipsEpisodes(t *testing.T) {
	movies, history := movieFixture()
	series, _ := seriesFixture()
	sources := Sources{Movies: movies, Series: series, History: history}

	report := NewPrefetchController(sources, quietLogger()).Warm(context.Background(), PrefetchOptions{})
	assert.Len(t, report.Phases, 3)
	assert.Zero(t, series.get("episodes"))
}
