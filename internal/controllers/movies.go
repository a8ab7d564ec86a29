package controllers

import (
	"context"

	"github.com/amaumene/prunarr/internal/models"
	"github.com/amaumene/prunarr/internal/watch"
	"github.com/sirupsen/logrus"
)

// MovieQuery filters the movie views
type MovieQuery struct {
	IncludeUntagged bool
	Username        string // requester filter, empty for everyone
}

// MovieController correlates the movie library with watch history
type MovieController struct {
	sources Sources
	tags    *watch.TagResolver
	engine  *watch.Engine
	logger  *logrus.Logger
}

// NewMovieController creates a new movie controller
func NewMovieController(sources Sources, tags *watch.TagResolver, engine *watch.Engine, logger *logrus.Logger) *MovieController {
	return &MovieController{
		sources: sources,
		tags:    tags,
		engine:  engine,
		logger:  logger,
	}
}

// GetMoviesWithWatchStatus returns the library movies annotated with their
// requester and watch status
func (c *MovieController) GetMoviesWithWatchStatus(ctx context.Context, q MovieQuery) ([]models.AnnotatedMovie, error) {
	movies, err := c.sources.listMovies(ctx)
	if err != nil {
		return nil, err
	}

	selected := make([]models.Movie, 0, len(movies))
	for _, movie := range movies {
		movie.Requester, _ = c.tags.Resolve(ctx, movie.TagIDs, c.sources.movieTag)
		movie.TagLabels = c.tags.NonUserLabels(ctx, movie.TagIDs, c.sources.movieTag)

		if !movie.Tagged() && !q.IncludeUntagged {
			continue
		}
		if q.Username != "" && movie.Requester != q.Username {
			continue
		}
		selected = append(selected, movie)
	}

	index, err := c.buildIndex(ctx)
	if err != nil {
		return nil, err
	}

	c.logger.WithFields(logrus.Fields{
		"movies":   len(movies),
		"selected": len(selected),
		"watched":  len(index),
	}).Debug("Annotating movies")

	return c.engine.AnnotateMovies(selected, index), nil
}

func (c *MovieController) buildIndex(ctx context.Context) (watch.MovieIndex, error) {
	raw, err := c.sources.history(ctx, models.MediaTypeMovie)
	if err != nil {
		return nil, err
	}

	// lookups are memoized for this build only; reuse across builds goes
	// through the metadata cache category
	identity := watch.NewIdentityIndex(c.sources.guids, c.logger)
	ids, report := identity.BuildMovieIDs(ctx, raw)
	if report.Skipped() > 0 {
		c.logger.WithFields(logrus.Fields{
			"unmatched": len(report.Unmatched),
			"errors":    len(report.Errors),
		}).Warn("Some watched movies could not be matched to the library")
	}

	events, normalized := watch.Normalize(raw, models.MediaTypeMovie, ids)
	index, stats := watch.BuildMovieIndex(events)

	c.logger.WithFields(logrus.Fields{
		"records": len(raw),
		"dropped": normalized.Dropped + stats.Dropped,
		"movies":  len(index),
	}).Debug("Built movie watch index")

	return index, nil
}

// GetRemovalCandidates returns the movies their requester watched at least
// minDays ago. Untagged movies are never returned.
func (c *MovieController) GetRemovalCandidates(ctx context.Context, minDays int, q MovieQuery) ([]models.RemovalCandidate, error) {
	q.IncludeUntagged = false
	movies, err := c.GetMoviesWithWatchStatus(ctx, q)
	if err != nil {
		return nil, err
	}

	candidates := c.engine.MovieCandidates(movies, minDays)
	c.logger.WithFields(logrus.Fields{
		"candidates": len(candidates),
		"min_days":   minDays,
	}).Info("Evaluated movies for removal")

	return candidates, nil
}
