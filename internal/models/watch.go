package models

import (
	"fmt"
	"time"
)

// EpisodeKey is the (season, episode) identity of an episode within a series.
// It is used directly as a map key; String is only for presentation.
type EpisodeKey struct {
	Season  int
	Episode int
}

// String formats the key as sNeM
func (k EpisodeKey) String() string {
	return fmt.Sprintf("s%de%d", k.Season, k.Episode)
}

// Display formats the key as S01E02
func (k EpisodeKey) Display() string {
	return fmt.Sprintf("S%02dE%02d", k.Season, k.Episode)
}

// Less orders keys by season then episode
func (k EpisodeKey) Less(other EpisodeKey) bool {
	if k.Season != other.Season {
		return k.Season < other.Season
	}
	return k.Episode < other.Episode
}

// RawWatchEvent is a history record as delivered by the watch-history
// service, before any external id resolution
type RawWatchEvent struct {
	HistoryID            int64
	RatingKey            string
	ParentRatingKey      string
	GrandparentRatingKey string
	Title                string
	SeriesTitle          string
	User                 string
	UserID               int
	WatchedAt            time.Time
	Stopped              time.Time
	WatchedStatus        float64 // 1 means fully watched
	MediaType            MediaType
	SeasonNumber         *int
	EpisodeNumber        *int
	Year                 int
	Duration             int
	PercentComplete      int
	Platform             string
	Player               string
}

// FullyWatched reports whether the record counts as a completed watch
func (r RawWatchEvent) FullyWatched() bool {
	return r.WatchedStatus == 1
}

// WatchEvent is a fully-watched history record resolved to an external id.
// Episode is nil for movies.
type WatchEvent struct {
	ExternalID string
	Watcher    string
	WatchedAt  time.Time
	Episode    *EpisodeKey
}
