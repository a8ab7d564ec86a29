package models

import "time"

// Movie is a movie from the library with its requester resolved
type Movie struct {
	ID        int
	Title     string
	Year      int
	IMDbID    string
	TagIDs    []int
	TagLabels []string // non-user tag labels, for display
	Requester string   // empty when untagged
	HasFile   bool
	FileSize  int64
	Added     time.Time
	Monitored bool
}

// Tagged reports whether the movie has a resolved requester
func (m Movie) Tagged() bool { return m.Requester != "" }

// SeriesStatistics mirrors the library's per-series counters
type SeriesStatistics struct {
	EpisodeCount      int // aired episodes
	EpisodeFileCount  int // episodes with a file on disk
	TotalEpisodeCount int // including unaired
	SizeOnDisk        int64
}

// SeasonStatistics mirrors the library's per-season counters
type SeasonStatistics struct {
	EpisodeCount      int
	EpisodeFileCount  int
	TotalEpisodeCount int
	SizeOnDisk        int64
}

// Season is a season summary attached to a series
type Season struct {
	Number    int
	Monitored bool
	Stats     SeasonStatistics
}

// Series is a TV series from the library with its requester resolved
type Series struct {
	ID        int
	Title     string
	Year      int
	TVDbID    string
	IMDbID    string
	TagIDs    []int
	TagLabels []string
	Requester string
	Status    string // continuing, ended, ...
	Monitored bool
	Added     time.Time
	Seasons   []Season
	Stats     SeriesStatistics
}

// Tagged reports whether the series has a resolved requester
func (s Series) Tagged() bool { return s.Requester != "" }

// HasFile reports whether at least one episode is downloaded
func (s Series) HasFile() bool { return s.Stats.EpisodeFileCount > 0 }

// SizeOnDisk sums the season sizes, falling back to the series counter
func (s Series) SizeOnDisk() int64 {
	var total int64
	for _, season := range s.Seasons {
		total += season.Stats.SizeOnDisk
	}
	if total == 0 {
		return s.Stats.SizeOnDisk
	}
	return total
}

// Season returns the season summary for a season number
func (s Series) Season(number int) (Season, bool) {
	for _, season := range s.Seasons {
		if season.Number == number {
			return season, true
		}
	}
	return Season{}, false
}

// Episode is a single episode of a series
type Episode struct {
	ID        int
	SeriesID  int
	Season    int
	Number    int
	Title     string
	HasFile   bool
	FileID    int // 0 when the episode has no file
	AirDate   string
	Runtime   int
	Monitored bool
}

// Key returns the composite (season, episode) identity
func (e Episode) Key() EpisodeKey {
	return EpisodeKey{Season: e.Season, Episode: e.Number}
}

// EpisodeFile is a physical file on disk. A single file may bundle several
// episodes (double or triple episode releases).
type EpisodeFile struct {
	ID           int
	SeriesID     int
	SeasonNumber int
	Size         int64
	Path         string
	EpisodeIDs   []int
}

// Tag is a library tag; requester tags carry the username in their label
type Tag struct {
	ID    int
	Label string
}
