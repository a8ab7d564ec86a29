package controllers

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/amaumene/prunarr/internal/models"
	"github.com/amaumene/prunarr/internal/utils"
	"github.com/amaumene/prunarr/internal/watch"
	"github.com/sirupsen/logrus"
)

var (
	// ErrSeriesNotFound is returned when an identifier matches no series
	ErrSeriesNotFound = errors.New("series not found")
	// ErrAmbiguousSeries is returned when a title matches several series
	ErrAmbiguousSeries = errors.New("series identifier is ambiguous")
)

// maxSuggestions bounds the "did you mean" list of a failed lookup
const maxSuggestions = 5

// SeriesLookupError carries the closest titles for an identifier that did
// not resolve to exactly one series
type SeriesLookupError struct {
	Identifier  string
	Matches     []string
	Suggestions []string
	err         error
}

func (e *SeriesLookupError) Error() string {
	switch {
	case len(e.Matches) > 0:
		return fmt.Sprintf("%q matches %d series: %s", e.Identifier, len(e.Matches), strings.Join(e.Matches, ", "))
	case len(e.Suggestions) > 0:
		return fmt.Sprintf("no series matches %q, did you mean: %s", e.Identifier, strings.Join(e.Suggestions, ", "))
	default:
		return fmt.Sprintf("no series matches %q", e.Identifier)
	}
}

func (e *SeriesLookupError) Unwrap() error { return e.err }

// SeriesQuery filters the series views
type SeriesQuery struct {
	IncludeUntagged bool
	Username        string
	SeriesFilter    string // case-insensitive title substring
	Season          *int
}

// DetailQuery filters the episode-level view of a series
type DetailQuery struct {
	Season        *int
	WatchedOnly   bool
	UnwatchedOnly bool
}

// RemovalQuery selects series removal candidates
type RemovalQuery struct {
	Granularity  models.Granularity
	MinDays      int
	Username     string
	SeriesFilter string
	Season       *int
}

// SkippedSeries is a series left out of episode evaluation
type SkippedSeries struct {
	SeriesID int
	Title    string
	Error    string
}

// RemovalReport is the outcome of a series removal evaluation
type RemovalReport struct {
	Candidates    []models.RemovalCandidate
	SkippedSeries []SkippedSeries
}

// SeriesController correlates the series library with episode watch history
type SeriesController struct {
	sources Sources
	tags    *watch.TagResolver
	engine  *watch.Engine
	logger  *logrus.Logger
}

// NewSeriesController creates a new series controller
func NewSeriesController(sources Sources, tags *watch.TagResolver, engine *watch.Engine, logger *logrus.Logger) *SeriesController {
	return &SeriesController{
		sources: sources,
		tags:    tags,
		engine:  engine,
		logger:  logger,
	}
}

// GetSeriesWithWatchStatus returns the library series annotated with their
// requester and per-season watch status
func (c *SeriesController) GetSeriesWithWatchStatus(ctx context.Context, q SeriesQuery) ([]models.AnnotatedSeries, error) {
	annotated, _, err := c.load(ctx, q)
	return annotated, err
}

func (c *SeriesController) load(ctx context.Context, q SeriesQuery) ([]models.AnnotatedSeries, watch.EpisodeIndex, error) {
	all, err := c.sources.listSeries(ctx)
	if err != nil {
		return nil, nil, err
	}

	selected := make([]models.Series, 0, len(all))
	for _, series := range all {
		if q.SeriesFilter != "" && !utils.ContainsFold(series.Title, q.SeriesFilter) {
			continue
		}
		if q.Season != nil {
			if _, ok := series.Season(*q.Season); !ok {
				continue
			}
		}

		series.Requester, _ = c.tags.Resolve(ctx, series.TagIDs, c.sources.seriesTag)
		series.TagLabels = c.tags.NonUserLabels(ctx, series.TagIDs, c.sources.seriesTag)
		if !series.Tagged() && !q.IncludeUntagged {
			continue
		}
		if q.Username != "" && series.Requester != q.Username {
			continue
		}
		selected = append(selected, series)
	}

	index, err := c.buildIndex(ctx)
	if err != nil {
		return nil, nil, err
	}

	annotated := make([]models.AnnotatedSeries, 0, len(selected))
	for _, series := range selected {
		annotated = append(annotated, c.engine.AnnotateSeries(series, index[series.TVDbID], q.Season))
	}

	c.logger.WithFields(logrus.Fields{
		"series":   len(all),
		"selected": len(annotated),
		"watched":  len(index),
	}).Debug("Annotated series")

	return annotated, index, nil
}

func (c *SeriesController) buildIndex(ctx context.Context) (watch.EpisodeIndex, error) {
	raw, err := c.sources.history(ctx, models.MediaTypeEpisode)
	if err != nil {
		return nil, err
	}

	identity := watch.NewIdentityIndex(c.sources.guids, c.logger)
	ids, report := identity.BuildSeriesIDs(ctx, raw)
	if report.Skipped() > 0 {
		c.logger.WithFields(logrus.Fields{
			"unmatched": len(report.Unmatched),
			"errors":    len(report.Errors),
		}).Warn("Some watched series could not be matched to the library")
	}

	events, normalized := watch.Normalize(raw, models.MediaTypeEpisode, ids)
	index, stats := watch.BuildEpisodeIndex(events)

	c.logger.WithFields(logrus.Fields{
		"records": len(raw),
		"dropped": normalized.Dropped + stats.Dropped,
		"series":  len(index),
	}).Debug("Built episode watch index")

	return index, nil
}

// FindSeries resolves a numeric id or a title, optionally suffixed with the
// year in parentheses. An exact title wins over partial matches.
func (c *SeriesController) FindSeries(ctx context.Context, identifier string) (models.Series, error) {
	all, err := c.sources.listSeries(ctx)
	if err != nil {
		return models.Series{}, err
	}
	identifier = strings.TrimSpace(identifier)

	if id, convErr := strconv.Atoi(identifier); convErr == nil {
		for _, s := range all {
			if s.ID == id {
				return s, nil
			}
		}
	}

	title, year := utils.SplitTitleYear(identifier)
	var exact, partial []models.Series
	for _, s := range all {
		if year != 0 && s.Year != year {
			continue
		}
		switch {
		case strings.EqualFold(s.Title, title):
			exact = append(exact, s)
		case utils.ContainsFold(s.Title, title):
			partial = append(partial, s)
		}
	}

	switch {
	case len(exact) == 1:
		return exact[0], nil
	case len(exact) > 1:
		return models.Series{}, &SeriesLookupError{Identifier: identifier, Matches: displayTitles(exact), err: ErrAmbiguousSeries}
	case len(partial) == 1:
		return partial[0], nil
	case len(partial) > 1:
		return models.Series{}, &SeriesLookupError{Identifier: identifier, Matches: displayTitles(partial), err: ErrAmbiguousSeries}
	}

	return models.Series{}, &SeriesLookupError{
		Identifier:  identifier,
		Suggestions: suggestTitles(all, title),
		err:         ErrSeriesNotFound,
	}
}

func displayTitles(series []models.Series) []string {
	titles := make([]string, 0, len(series))
	for _, s := range series {
		titles = append(titles, fmt.Sprintf("%s (%d) [%d]", s.Title, s.Year, s.ID))
	}
	return titles
}

// suggestTitles ranks titles by edit distance to the query. Distances above
// half the query length are not worth suggesting.
func suggestTitles(series []models.Series, query string) []string {
	type scored struct {
		title    string
		distance int
	}
	query = strings.ToLower(query)
	limit := len(query)/2 + 1

	var ranked []scored
	for _, s := range series {
		d := levenshtein.ComputeDistance(query, strings.ToLower(s.Title))
		if d <= limit {
			ranked = append(ranked, scored{title: s.Title, distance: d})
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].distance != ranked[j].distance {
			return ranked[i].distance < ranked[j].distance
		}
		return ranked[i].title < ranked[j].title
	})

	var titles []string
	for _, r := range ranked {
		if len(titles) == maxSuggestions {
			break
		}
		titles = append(titles, r.title)
	}
	return titles
}

// GetSeriesDetails returns the episode-level view of one series. When the
// episode list cannot be fetched the view falls back to season counters.
func (c *SeriesController) GetSeriesDetails(ctx context.Context, seriesID int, q DetailQuery) (models.SeriesDetail, error) {
	annotated, index, err := c.load(ctx, SeriesQuery{IncludeUntagged: true, Season: q.Season})
	if err != nil {
		return models.SeriesDetail{}, err
	}

	var series *models.AnnotatedSeries
	for i := range annotated {
		if annotated[i].ID == seriesID {
			series = &annotated[i]
			break
		}
	}
	if series == nil {
		return models.SeriesDetail{}, fmt.Errorf("series %d: %w", seriesID, ErrSeriesNotFound)
	}

	episodes, err := c.sources.episodes(ctx, seriesID)
	if err != nil {
		c.logger.WithError(err).WithField("series_id", seriesID).Warn("Failed to list episodes, using season counters")
		episodes = nil
	}

	filter := watch.DetailFilter{Season: q.Season, WatchedOnly: q.WatchedOnly, UnwatchedOnly: q.UnwatchedOnly}
	return c.engine.SeriesDetail(*series, episodes, index[series.TVDbID], filter), nil
}

// GetRemovalCandidates evaluates tagged series at the requested granularity.
// At episode granularity a series whose episodes or files cannot be fetched
// is recorded in the report and the others are still evaluated.
func (c *SeriesController) GetRemovalCandidates(ctx context.Context, q RemovalQuery) (RemovalReport, error) {
	query := SeriesQuery{Username: q.Username, SeriesFilter: q.SeriesFilter}
	if q.Granularity != models.GranularitySeries {
		query.Season = q.Season
	}

	annotated, index, err := c.load(ctx, query)
	if err != nil {
		return RemovalReport{}, err
	}

	var report RemovalReport
	switch q.Granularity {
	case models.GranularitySeries:
		report.Candidates = c.engine.SeriesCandidates(annotated, q.MinDays)
	case models.GranularitySeason:
		report.Candidates = c.engine.SeasonCandidates(annotated, q.MinDays)
	case models.GranularityEpisode:
		for _, series := range annotated {
			candidates, err := c.episodeCandidates(ctx, series, index[series.TVDbID], q)
			if err != nil {
				c.logger.WithError(err).WithFields(logrus.Fields{
					"series_id": series.ID,
					"title":     series.Title,
				}).Warn("Skipping series for episode removal")
				report.SkippedSeries = append(report.SkippedSeries, SkippedSeries{
					SeriesID: series.ID,
					Title:    series.Title,
					Error:    err.Error(),
				})
				continue
			}
			report.Candidates = append(report.Candidates, candidates...)
		}
	default:
		return RemovalReport{}, fmt.Errorf("unsupported removal granularity %q", q.Granularity)
	}

	c.logger.WithFields(logrus.Fields{
		"granularity": q.Granularity,
		"candidates":  len(report.Candidates),
		"skipped":     len(report.SkippedSeries),
		"min_days":    q.MinDays,
	}).Info("Evaluated series for removal")

	return report, nil
}

func (c *SeriesController) episodeCandidates(ctx context.Context, series models.AnnotatedSeries, sw watch.SeriesWatch, q RemovalQuery) ([]models.RemovalCandidate, error) {
	// nothing watched means nothing to fetch
	if len(sw) == 0 {
		return nil, nil
	}
	episodes, err := c.sources.episodes(ctx, series.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list episodes: %w", err)
	}
	files, err := c.sources.episodeFiles(ctx, series.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list episode files: %w", err)
	}
	return c.engine.EpisodeCandidates(series, episodes, files, sw, q.MinDays, q.Season), nil
}
