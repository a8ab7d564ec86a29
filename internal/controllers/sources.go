package controllers

import (
	"context"
	"fmt"

	"github.com/amaumene/prunarr/internal/cache"
	"github.com/amaumene/prunarr/internal/models"
	"github.com/amaumene/prunarr/internal/services/sonarr"
)

// MovieLibrary is the movie manager the controllers read from and delete through
type MovieLibrary interface {
	ListMovies(ctx context.Context) ([]models.Movie, error)
	GetTag(ctx context.Context, id int) (models.Tag, error)
	DeleteMovie(ctx context.Context, id int, deleteFiles, addExclusion bool) error
}

// SeriesLibrary is the series manager the controllers read from and delete through
type SeriesLibrary interface {
	ListSeries(ctx context.Context) ([]models.Series, error)
	GetTag(ctx context.Context, id int) (models.Tag, error)
	ListEpisodes(ctx context.Context, seriesID int) ([]models.Episode, error)
	ListEpisodeFiles(ctx context.Context, seriesID int) ([]models.EpisodeFile, error)
	DeleteSeries(ctx context.Context, id int, deleteFiles, addExclusion bool) error
	DeleteEpisodeFile(ctx context.Context, fileID int) error
	UnmonitorEpisodes(ctx context.Context, episodeIDs []int) error
	DeleteSeasonFiles(ctx context.Context, seriesID, season int, unmonitor bool) (sonarr.SeasonDeletion, error)
}

// HistorySource is the watch-history service
type HistorySource interface {
	GetCompletedHistory(ctx context.Context, mediaType models.MediaType) ([]models.RawWatchEvent, error)
	GetGuids(ctx context.Context, ratingKey string) ([]string, error)
}

// Sources bundles the collaborators every read path goes through. Cache may
// be nil, in which case every call reaches the collaborator.
type Sources struct {
	Movies  MovieLibrary
	Series  SeriesLibrary
	History HistorySource
	Cache   cache.Layer
}

func (s Sources) layer() cache.Layer {
	if s.Cache == nil {
		return cache.NewNopLayer()
	}
	return s.Cache
}

// cached runs fetch through the cache layer and decodes the result into a T
func cached[T any](ctx context.Context, layer cache.Layer, category cache.Category, key string, fetch func(context.Context) (T, error)) (T, error) {
	var out T
	err := layer.GetOrCompute(ctx, category, key, func(ctx context.Context) (any, error) {
		return fetch(ctx)
	}, &out)
	return out, err
}

func (s Sources) listMovies(ctx context.Context) ([]models.Movie, error) {
	movies, err := cached(ctx, s.layer(), cache.CategoryMovies, "all", s.Movies.ListMovies)
	if err != nil {
		return nil, fmt.Errorf("failed to list movies: %w", err)
	}
	return movies, nil
}

func (s Sources) listSeries(ctx context.Context) ([]models.Series, error) {
	series, err := cached(ctx, s.layer(), cache.CategorySeries, "all", s.Series.ListSeries)
	if err != nil {
		return nil, fmt.Errorf("failed to list series: %w", err)
	}
	return series, nil
}

// movieTag and seriesTag are watch.TagLookup implementations
func (s Sources) movieTag(ctx context.Context, id int) (string, error) {
	tag, err := cached(ctx, s.layer(), cache.CategoryTags, cache.Key("radarr", id), func(ctx context.Context) (models.Tag, error) {
		return s.Movies.GetTag(ctx, id)
	})
	return tag.Label, err
}

func (s Sources) seriesTag(ctx context.Context, id int) (string, error) {
	tag, err := cached(ctx, s.layer(), cache.CategoryTags, cache.Key("sonarr", id), func(ctx context.Context) (models.Tag, error) {
		return s.Series.GetTag(ctx, id)
	})
	return tag.Label, err
}

func (s Sources) history(ctx context.Context, mediaType models.MediaType) ([]models.RawWatchEvent, error) {
	events, err := cached(ctx, s.layer(), cache.CategoryHistory, string(mediaType), func(ctx context.Context) ([]models.RawWatchEvent, error) {
		return s.History.GetCompletedHistory(ctx, mediaType)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get %s history: %w", mediaType, err)
	}
	return events, nil
}

// guids is the watch.MetadataLookup used by the identity indexes
func (s Sources) guids(ctx context.Context, ratingKey string) ([]string, error) {
	return cached(ctx, s.layer(), cache.CategoryMetadata, ratingKey, func(ctx context.Context) ([]string, error) {
		return s.History.GetGuids(ctx, ratingKey)
	})
}

func (s Sources) episodes(ctx context.Context, seriesID int) ([]models.Episode, error) {
	return cached(ctx, s.layer(), cache.CategoryEpisodes, cache.Key(seriesID), func(ctx context.Context) ([]models.Episode, error) {
		return s.Series.ListEpisodes(ctx, seriesID)
	})
}

func (s Sources) episodeFiles(ctx context.Context, seriesID int) ([]models.EpisodeFile, error) {
	return cached(ctx, s.layer(), cache.CategoryFiles, cache.Key(seriesID), func(ctx context.Context) ([]models.EpisodeFile, error) {
		return s.Series.ListEpisodeFiles(ctx, seriesID)
	})
}
