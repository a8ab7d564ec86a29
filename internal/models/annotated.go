package models

import "time"

// AnnotatedMovie is a movie plus its derived watch status. The embedded
// Movie is a copy and is never modified by the engine.
type AnnotatedMovie struct {
	Movie

	Status   WatchStatus
	Watchers []string // sorted

	// Most recent watch by anyone
	LastWatched      *time.Time
	DaysSinceWatched *int

	// Most recent watch by the requester, used for eligibility
	RequesterWatched     *time.Time
	RequesterDaysWatched *int
}

// AnnotatedSeason is the per-season breakdown of an annotated series
type AnnotatedSeason struct {
	Number           int
	Status           WatchStatus
	WatchedEpisodes  int
	TotalEpisodes    int
	Completion       float64
	LastWatched      *time.Time
	DaysSinceWatched *int
	SizeOnDisk       int64
	FileCount        int // episode files currently on disk
}

// AnnotatedSeries is a series plus its derived watch status
type AnnotatedSeries struct {
	Series

	Status           WatchStatus
	WatchedEpisodes  int
	TotalEpisodes    int
	Completion       float64
	LastWatched      *time.Time
	DaysSinceWatched *int
	Seasons          []AnnotatedSeason
	SizeOnDisk       int64
}

// AnnotatedEpisode is a single episode with its watch details
type AnnotatedEpisode struct {
	Episode

	Status             EpisodeStatus
	Watchers           []string
	WatcherTimes       map[string]time.Time
	RequesterWatched   *time.Time
	LastWatched        *time.Time
	DaysSinceWatched   *int
	WatchedByRequester bool
}

// SeasonDetail groups the episodes of a season for the detail view
type SeasonDetail struct {
	Number          int
	Episodes        []AnnotatedEpisode
	WatchedByUser   int
	WatchedByOthers int
	Unwatched       int
}

// SeriesDetail is the episode-level view of a single series
type SeriesDetail struct {
	Series  AnnotatedSeries
	Seasons []SeasonDetail
}

// TotalEpisodes counts the episodes across all listed seasons
func (d SeriesDetail) TotalEpisodes() int {
	total := 0
	for _, s := range d.Seasons {
		total += len(s.Episodes)
	}
	return total
}
