package controllers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/amaumene/prunarr/internal/models"
	"github.com/amaumene/prunarr/internal/services/sonarr"
	"github.com/amaumene/prunarr/internal/watch"
	"github.com/sirupsen/logrus"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

var errUpstream = errors.New("upstream unavailable")

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testEngine() *watch.Engine {
	return watch.NewEngine(quietLogger(), watch.WithClock(func() time.Time { return testNow }))
}

func testResolver() *watch.TagResolver {
	r, err := watch.NewTagResolver(watch.DefaultTagPattern, quietLogger())
	if err != nil {
		panic(err)
	}
	return r
}

func daysAgo(n int) time.Time {
	return testNow.Add(-time.Duration(n) * 24 * time.Hour)
}

func intPtr(n int) *int { return &n }

// calls counts collaborator calls by name
type calls struct {
	mu     sync.Mutex
	counts map[string]int
}

func (c *calls) add(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts == nil {
		c.counts = make(map[string]int)
	}
	c.counts[name]++
}

func (c *calls) get(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[name]
}

type fakeMovies struct {
	calls
	movies     []models.Movie
	tags       map[int]string
	listErr    error
	failDelete map[int]bool
	deleted    []int
}

func (f *fakeMovies) ListMovies(ctx context.Context) ([]models.Movie, error) {
	f.add("list")
	return f.movies, f.listErr
}

func (f *fakeMovies) GetTag(ctx context.Context, id int) (models.Tag, error) {
	f.add("tag")
	label, ok := f.tags[id]
	if !ok {
		return models.Tag{}, fmt.Errorf("tag %d: %w", id, sonarr.ErrNotFound)
	}
	return models.Tag{ID: id, Label: label}, nil
}

func (f *fakeMovies) DeleteMovie(ctx context.Context, id int, deleteFiles, addExclusion bool) error {
	f.add("delete")
	if f.failDelete[id] {
		return errUpstream
	}
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeSeries struct {
	calls
	series      []models.Series
	tags        map[int]string
	episodes    map[int][]models.Episode
	files       map[int][]models.EpisodeFile
	failSeries  map[int]bool
	deleted     []int
	deletedFile []int
	unmonitored []int
	seasons     map[int]sonarr.SeasonDeletion
	seasonErr   error
}

func (f *fakeSeries) ListSeries(ctx context.Context) ([]models.Series, error) {
	f.add("list")
	return f.series, nil
}

func (f *fakeSeries) GetTag(ctx context.Context, id int) (models.Tag, error) {
	f.add("tag")
	label, ok := f.tags[id]
	if !ok {
		return models.Tag{}, sonarr.ErrNotFound
	}
	return models.Tag{ID: id, Label: label}, nil
}

func (f *fakeSeries) ListEpisodes(ctx context.Context, seriesID int) ([]models.Episode, error) {
	f.add("episodes")
	if f.failSeries[seriesID] {
		return nil, errUpstream
	}
	return f.episodes[seriesID], nil
}

func (f *fakeSeries) ListEpisodeFiles(ctx context.Context, seriesID int) ([]models.EpisodeFile, error) {
	f.add("files")
	if f.failSeries[seriesID] {
		return nil, errUpstream
	}
	return f.files[seriesID], nil
}

func (f *fakeSeries) DeleteSeries(ctx context.Context, id int, deleteFiles, addExclusion bool) error {
	f.add("delete")
	if f.failSeries[id] {
		return errUpstream
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeSeries) DeleteEpisodeFile(ctx context.Context, fileID int) error {
	f.add("delete_file")
	f.deletedFile = append(f.deletedFile, fileID)
	return nil
}

func (f *fakeSeries) UnmonitorEpisodes(ctx context.Context, episodeIDs []int) error {
	f.add("unmonitor")
	f.unmonitored = append(f.unmonitored, episodeIDs...)
	return nil
}

func (f *fakeSeries) DeleteSeasonFiles(ctx context.Context, seriesID, season int, unmonitor bool) (sonarr.SeasonDeletion, error) {
	f.add("delete_season")
	return f.seasons[season], f.seasonErr
}

type fakeHistory struct {
	calls
	events   map[models.MediaType][]models.RawWatchEvent
	guids    map[string][]string
	failKeys map[string]bool
}

func (f *fakeHistory) GetCompletedHistory(ctx context.Context, mediaType models.MediaType) ([]models.RawWatchEvent, error) {
	f.add("history")
	return f.events[mediaType], nil
}

func (f *fakeHistory) GetGuids(ctx context.Context, ratingKey string) ([]string, error) {
	f.add("guids")
	if f.failKeys[ratingKey] {
		return nil, errUpstream
	}
	return f.guids[ratingKey], nil
}

func movieEvent(ratingKey, user string, at time.Time) models.RawWatchEvent {
	return models.RawWatchEvent{
		RatingKey:     ratingKey,
		User:          user,
		WatchedAt:     at,
		WatchedStatus: 1,
		MediaType:     models.MediaTypeMovie,
	}
}

func episodeEvent(seriesKey, user string, season, episode int, at time.Time) models.RawWatchEvent {
	return models.RawWatchEvent{
		GrandparentRatingKey: seriesKey,
		User:                 user,
		WatchedAt:            at,
		WatchedStatus:        1,
		MediaType:            models.MediaTypeEpisode,
		SeasonNumber:         intPtr(season),
		EpisodeNumber:        intPtr(episode),
	}
}
