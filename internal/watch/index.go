package watch

import (
	"time"

	"github.com/amaumene/prunarr/internal/models"
)

// Watchers maps a watcher to the most recent time they fully watched an item
type Watchers map[string]time.Time

// record keeps only the maximum timestamp per watcher
func (w Watchers) record(user string, at time.Time) {
	if prev, ok := w[user]; !ok || at.After(prev) {
		w[user] = at
	}
}

// MostRecent returns the latest watch across all watchers
func (w Watchers) MostRecent() (time.Time, bool) {
	var latest time.Time
	for _, at := range w {
		if at.After(latest) {
			latest = at
		}
	}
	return latest, !latest.IsZero()
}

// MovieWatch is the movie index entry for one IMDb id
type MovieWatch struct {
	Watchers   Watchers
	MostRecent time.Time
}

// MovieIndex maps IMDb id to its watch entry
type MovieIndex map[string]*MovieWatch

// SeriesWatch maps an episode key to the watchers of that episode
type SeriesWatch map[models.EpisodeKey]Watchers

// EpisodeIndex maps TVDB id to the episode watches of that series
type EpisodeIndex map[string]SeriesWatch

// IndexStats counts the events admitted into or dropped from an index
type IndexStats struct {
	Admitted int
	Dropped  int
}

// Normalize turns raw history records into resolved watch events. Only fully
// watched records of the requested media type are kept; movie records are
// resolved through their rating key and episode records through their
// grandparent rating key. Records that cannot be resolved are counted as dropped.
func Normalize(raw []models.RawWatchEvent, mediaType models.MediaType, ids map[string]string) ([]models.WatchEvent, IndexStats) {
	var stats IndexStats
	events := make([]models.WatchEvent, 0, len(raw))

	for _, r := range raw {
		if r.MediaType != mediaType || !r.FullyWatched() {
			continue
		}

		key := r.RatingKey
		if mediaType == models.MediaTypeEpisode {
			key = r.GrandparentRatingKey
		}
		externalID, ok := ids[key]
		if !ok {
			stats.Dropped++
			continue
		}

		event := models.WatchEvent{
			ExternalID: externalID,
			Watcher:    r.User,
			WatchedAt:  r.WatchedAt,
		}
		if mediaType == models.MediaTypeEpisode {
			if r.SeasonNumber == nil || r.EpisodeNumber == nil {
				stats.Dropped++
				continue
			}
			event.Episode = &models.EpisodeKey{Season: *r.SeasonNumber, Episode: *r.EpisodeNumber}
		}
		events = append(events, event)
		stats.Admitted++
	}

	return events, stats
}

// BuildMovieIndex groups movie watch events by IMDb id, keeping per watcher
// the latest watch and tracking the latest watch overall
func BuildMovieIndex(events []models.WatchEvent) (MovieIndex, IndexStats) {
	var stats IndexStats
	index := make(MovieIndex)

	for _, e := range events {
		if e.ExternalID == "" || e.Watcher == "" || e.WatchedAt.IsZero() {
			stats.Dropped++
			continue
		}

		entry, ok := index[e.ExternalID]
		if !ok {
			entry = &MovieWatch{Watchers: make(Watchers)}
			index[e.ExternalID] = entry
		}
		entry.Watchers.record(e.Watcher, e.WatchedAt)
		if e.WatchedAt.After(entry.MostRecent) {
			entry.MostRecent = e.WatchedAt
		}
		stats.Admitted++
	}

	return index, stats
}

// BuildEpisodeIndex groups episode watch events by TVDB id and episode key
func BuildEpisodeIndex(events []models.WatchEvent) (EpisodeIndex, IndexStats) {
	var stats IndexStats
	index := make(EpisodeIndex)

	for _, e := range events {
		if e.ExternalID == "" || e.Watcher == "" || e.WatchedAt.IsZero() ||
			e.Episode == nil || e.Episode.Season < 0 || e.Episode.Episode < 0 {
			stats.Dropped++
			continue
		}

		series, ok := index[e.ExternalID]
		if !ok {
			series = make(SeriesWatch)
			index[e.ExternalID] = series
		}
		watchers, ok := series[*e.Episode]
		if !ok {
			watchers = make(Watchers)
			series[*e.Episode] = watchers
		}
		watchers.record(e.Watcher, e.WatchedAt)
		stats.Admitted++
	}

	return index, stats
}

// includeSeason reports whether a season counts towards completion. Specials
// (season 0) only count when the filter targets them explicitly.
func includeSeason(season int, filter *int) bool {
	if filter != nil {
		return season == *filter
	}
	return season != 0
}

// Observed counts the distinct episodes seen in history for the included seasons
func (sw SeriesWatch) Observed(seasonFilter *int) int {
	count := 0
	for key := range sw {
		if includeSeason(key.Season, seasonFilter) {
			count++
		}
	}
	return count
}

// MostRecent returns the latest watch by anyone. With a season filter only
// that season is considered; without one every season, specials included.
func (sw SeriesWatch) MostRecent(seasonFilter *int) (time.Time, bool) {
	var latest time.Time
	for key, watchers := range sw {
		if seasonFilter != nil && key.Season != *seasonFilter {
			continue
		}
		if at, ok := watchers.MostRecent(); ok && at.After(latest) {
			latest = at
		}
	}
	return latest, !latest.IsZero()
}

// WatchedBy returns when a user last watched an episode
func (sw SeriesWatch) WatchedBy(key models.EpisodeKey, user string) (time.Time, bool) {
	if user == "" {
		return time.Time{}, false
	}
	at, ok := sw[key][user]
	return at, ok
}
