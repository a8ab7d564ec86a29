package watch

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/amaumene/prunarr/internal/models"
	"github.com/sirupsen/logrus"
)

// Engine computes watch status and removal eligibility against a clock
type Engine struct {
	now    func() time.Time
	logger *logrus.Logger
}

// Option configures an Engine
type Option func(*Engine)

// WithClock pins the engine's notion of "now"
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an engine using the wall clock unless overridden
func NewEngine(logger *logrus.Logger, opts ...Option) *Engine {
	e := &Engine{now: time.Now, logger: logger}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// MovieStatus derives the status of a movie from its requester and watchers
func MovieStatus(requester string, watchers Watchers) models.WatchStatus {
	switch {
	case len(watchers) == 0:
		return models.WatchStatusUnwatched
	case requester == "":
		return models.WatchStatusWatchedByOther
	}
	if _, ok := watchers[requester]; ok {
		return models.WatchStatusWatchedByRequester
	}
	return models.WatchStatusWatchedByOther
}

// SeriesStatus derives the status of a series or season from episode counts
func SeriesStatus(watched, total int) models.WatchStatus {
	switch {
	case total == 0:
		return models.WatchStatusNoEpisodes
	case watched == 0:
		return models.WatchStatusUnwatched
	case watched == total:
		return models.WatchStatusFullyWatched
	default:
		return models.WatchStatusPartiallyWatched
	}
}

// CompletionPercentage is watched/total*100, or 0 without episodes
func CompletionPercentage(watched, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(watched) * 100 / float64(total)
}

// TotalEpisodes picks the best available episode count: aired episodes from
// the library, then distinct episodes seen in history, then downloaded files.
// The result is a heuristic and can change between runs as better sources
// become available.
func TotalEpisodes(aired, observed, downloaded int) int {
	switch {
	case aired > 0:
		return aired
	case observed > 0:
		return observed
	default:
		return downloaded
	}
}

// CountWatchedEpisodes counts the episodes the requester has watched in the
// included seasons
func CountWatchedEpisodes(sw SeriesWatch, requester string, seasonFilter *int) int {
	if requester == "" {
		return 0
	}
	count := 0
	for key, watchers := range sw {
		if !includeSeason(key.Season, seasonFilter) {
			continue
		}
		if _, ok := watchers[requester]; ok {
			count++
		}
	}
	return count
}

// DaysSince returns the whole days elapsed between t and now, rounded down
func DaysSince(now, t time.Time) int {
	return int(math.Floor(now.Sub(t).Hours() / 24))
}

func (e *Engine) since(t time.Time) (*time.Time, *int) {
	days := DaysSince(e.now(), t)
	return &t, &days
}

func sortedWatchers(w Watchers) []string {
	names := make([]string, 0, len(w))
	for name := range w {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AnnotateMovie attaches the watch status to a copy of the movie
func (e *Engine) AnnotateMovie(movie models.Movie, index MovieIndex) models.AnnotatedMovie {
	annotated := models.AnnotatedMovie{Movie: movie, Status: models.WatchStatusUnwatched}

	entry, ok := index[movie.IMDbID]
	if !ok || movie.IMDbID == "" {
		return annotated
	}

	annotated.Status = MovieStatus(movie.Requester, entry.Watchers)
	annotated.Watchers = sortedWatchers(entry.Watchers)
	if !entry.MostRecent.IsZero() {
		annotated.LastWatched, annotated.DaysSinceWatched = e.since(entry.MostRecent)
	}
	if at, ok := entry.Watchers[movie.Requester]; ok && movie.Requester != "" {
		annotated.RequesterWatched, annotated.RequesterDaysWatched = e.since(at)
	}
	return annotated
}

// AnnotateMovies annotates a list of movies, preserving order
func (e *Engine) AnnotateMovies(movies []models.Movie, index MovieIndex) []models.AnnotatedMovie {
	out := make([]models.AnnotatedMovie, 0, len(movies))
	for _, m := range movies {
		out = append(out, e.AnnotateMovie(m, index))
	}
	return out
}

// AnnotateSeries computes series and per-season status for the requester.
// Without a season filter specials are left out of the counts.
func (e *Engine) AnnotateSeries(series models.Series, sw SeriesWatch, seasonFilter *int) models.AnnotatedSeries {
	annotated := models.AnnotatedSeries{Series: series, SizeOnDisk: series.SizeOnDisk()}

	aired, downloaded := series.Stats.EpisodeCount, series.Stats.EpisodeFileCount
	if seasonFilter != nil {
		season, _ := series.Season(*seasonFilter)
		aired, downloaded = season.Stats.EpisodeCount, season.Stats.EpisodeFileCount
		annotated.SizeOnDisk = season.Stats.SizeOnDisk
	}

	annotated.WatchedEpisodes = CountWatchedEpisodes(sw, series.Requester, seasonFilter)
	annotated.TotalEpisodes = TotalEpisodes(aired, sw.Observed(seasonFilter), downloaded)
	annotated.Status = SeriesStatus(annotated.WatchedEpisodes, annotated.TotalEpisodes)
	annotated.Completion = CompletionPercentage(annotated.WatchedEpisodes, annotated.TotalEpisodes)
	if at, ok := sw.MostRecent(seasonFilter); ok {
		annotated.LastWatched, annotated.DaysSinceWatched = e.since(at)
	}

	for _, number := range seasonNumbers(series, sw, seasonFilter) {
		annotated.Seasons = append(annotated.Seasons, e.annotateSeason(series, number, sw))
	}
	return annotated
}

func (e *Engine) annotateSeason(series models.Series, number int, sw SeriesWatch) models.AnnotatedSeason {
	season, _ := series.Season(number)
	filter := number

	watched := CountWatchedEpisodes(sw, series.Requester, &filter)
	total := TotalEpisodes(season.Stats.EpisodeCount, sw.Observed(&filter), season.Stats.EpisodeFileCount)
	annotated := models.AnnotatedSeason{
		Number:          number,
		WatchedEpisodes: watched,
		TotalEpisodes:   total,
		Status:          SeriesStatus(watched, total),
		Completion:      CompletionPercentage(watched, total),
		SizeOnDisk:      season.Stats.SizeOnDisk,
		FileCount:       season.Stats.EpisodeFileCount,
	}
	if at, ok := sw.MostRecent(&filter); ok {
		annotated.LastWatched, annotated.DaysSinceWatched = e.since(at)
	}
	return annotated
}

// seasonNumbers lists the seasons known to the library or seen in history
func seasonNumbers(series models.Series, sw SeriesWatch, seasonFilter *int) []int {
	seen := make(map[int]struct{})
	for _, s := range series.Seasons {
		if includeSeason(s.Number, seasonFilter) {
			seen[s.Number] = struct{}{}
		}
	}
	for key := range sw {
		if includeSeason(key.Season, seasonFilter) {
			seen[key.Season] = struct{}{}
		}
	}
	numbers := make([]int, 0, len(seen))
	for n := range seen {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)
	return numbers
}

// DetailFilter narrows the episode-level series view
type DetailFilter struct {
	Season        *int
	WatchedOnly   bool
	UnwatchedOnly bool
}

// EpisodeStatus derives an episode's status relative to the requester
func EpisodeStatus(requester string, watchers Watchers) models.EpisodeStatus {
	if _, ok := watchers[requester]; ok && requester != "" {
		return models.EpisodeWatchedByUser
	}
	for user := range watchers {
		if user != requester {
			return models.EpisodeWatchedByOthers
		}
	}
	return models.EpisodeUnwatched
}

// SeriesDetail builds the episode-level view of a series. When the episode
// list is unavailable, placeholder episodes are derived from the season
// counters so the view still shows watch progress.
func (e *Engine) SeriesDetail(series models.AnnotatedSeries, episodes []models.Episode, sw SeriesWatch, filter DetailFilter) models.SeriesDetail {
	if len(episodes) == 0 {
		episodes = placeholderEpisodes(series.Series)
	}

	requester := series.Requester
	bySeason := make(map[int]*models.SeasonDetail)

	for _, ep := range episodes {
		if !includeSeason(ep.Season, filter.Season) {
			continue
		}

		watchers := sw[ep.Key()]
		status := EpisodeStatus(requester, watchers)
		byUser := status == models.EpisodeWatchedByUser
		if filter.WatchedOnly && !byUser {
			continue
		}
		if filter.UnwatchedOnly && byUser {
			continue
		}

		annotated := models.AnnotatedEpisode{
			Episode:            ep,
			Status:             status,
			Watchers:           sortedWatchers(watchers),
			WatcherTimes:       copyWatchers(watchers),
			WatchedByRequester: byUser,
		}
		if at, ok := watchers.MostRecent(); ok {
			annotated.LastWatched, annotated.DaysSinceWatched = e.since(at)
		}
		if byUser {
			at := watchers[requester]
			annotated.RequesterWatched = &at
		}

		detail, ok := bySeason[ep.Season]
		if !ok {
			detail = &models.SeasonDetail{Number: ep.Season}
			bySeason[ep.Season] = detail
		}
		detail.Episodes = append(detail.Episodes, annotated)
		switch status {
		case models.EpisodeWatchedByUser:
			detail.WatchedByUser++
		case models.EpisodeWatchedByOthers:
			detail.WatchedByOthers++
		default:
			detail.Unwatched++
		}
	}

	result := models.SeriesDetail{Series: series}
	for _, detail := range bySeason {
		sort.Slice(detail.Episodes, func(i, j int) bool {
			return detail.Episodes[i].Number < detail.Episodes[j].Number
		})
		result.Seasons = append(result.Seasons, *detail)
	}
	sort.Slice(result.Seasons, func(i, j int) bool {
		return result.Seasons[i].Number < result.Seasons[j].Number
	})
	return result
}

func copyWatchers(w Watchers) map[string]time.Time {
	if len(w) == 0 {
		return nil
	}
	out := make(map[string]time.Time, len(w))
	for k, v := range w {
		out[k] = v
	}
	return out
}

func placeholderEpisodes(series models.Series) []models.Episode {
	var episodes []models.Episode
	for _, season := range series.Seasons {
		total := season.Stats.TotalEpisodeCount
		if total == 0 {
			total = season.Stats.EpisodeCount
		}
		for n := 1; n <= total; n++ {
			episodes = append(episodes, models.Episode{
				SeriesID:  series.ID,
				Season:    season.Number,
				Number:    n,
				Title:     fmt.Sprintf("Episode %d", n),
				HasFile:   n <= season.Stats.EpisodeFileCount,
				Monitored: season.Monitored,
			})
		}
	}
	return episodes
}
