package models

import "fmt"

// MediaType represents the type of media (movie or episode)
type MediaType string

const (
	MediaTypeMovie   MediaType = "movie"
	MediaTypeEpisode MediaType = "episode"
)

// WatchStatus is the computed watch state of a movie, series or season.
// Movies use Unwatched, WatchedByRequester and WatchedByOther; series and
// seasons use Unwatched, FullyWatched, PartiallyWatched and NoEpisodes.
type WatchStatus string

const (
	WatchStatusUnwatched          WatchStatus = "unwatched"
	WatchStatusWatchedByRequester WatchStatus = "watched"
	WatchStatusWatchedByOther     WatchStatus = "watched_by_other"
	WatchStatusFullyWatched       WatchStatus = "fully_watched"
	WatchStatusPartiallyWatched   WatchStatus = "partially_watched"
	WatchStatusNoEpisodes         WatchStatus = "no_episodes"
)

// Label returns the human readable form used in tables
func (s WatchStatus) Label() string {
	switch s {
	case WatchStatusUnwatched:
		return "Unwatched"
	case WatchStatusWatchedByRequester:
		return "Watched"
	case WatchStatusWatchedByOther:
		return "Watched (other)"
	case WatchStatusFullyWatched:
		return "Fully watched"
	case WatchStatusPartiallyWatched:
		return "Partially watched"
	case WatchStatusNoEpisodes:
		return "No episodes"
	default:
		return string(s)
	}
}

// EpisodeStatus is the watch state of a single episode relative to the requester
type EpisodeStatus string

const (
	EpisodeWatchedByUser   EpisodeStatus = "watched_by_user"
	EpisodeWatchedByOthers EpisodeStatus = "watched_by_others"
	EpisodeUnwatched       EpisodeStatus = "unwatched"
)

// Granularity is the unit a removal candidate deletes
type Granularity string

const (
	GranularityMovie   Granularity = "movie"
	GranularitySeries  Granularity = "series"
	GranularitySeason  Granularity = "season"
	GranularityEpisode Granularity = "episode"
)

// ParseGranularity validates a series removal mode
func ParseGranularity(s string) (Granularity, error) {
	switch g := Granularity(s); g {
	case GranularitySeries, GranularitySeason, GranularityEpisode:
		return g, nil
	}
	return "", fmt.Errorf("invalid removal mode %q: must be series, season or episode", s)
}

// DeletionOutcome is the result of executing a single removal candidate
type DeletionOutcome string

const (
	OutcomeDeleted DeletionOutcome = "deleted"
	OutcomeFailed  DeletionOutcome = "failed"
	OutcomeDryRun  DeletionOutcome = "dry_run"

	// OutcomeProtected marks a candidate kept because of the protected list
	OutcomeProtected DeletionOutcome = "protected"
)
