package models

import "time"

// RemovalCandidate is a unit of deletion that passed every eligibility rule
type RemovalCandidate struct {
	Granularity Granularity

	// MovieID is set for movies, SeriesID for everything else
	MovieID  int
	SeriesID int

	Title     string
	Year      int
	Requester string

	// Season is set for season candidates
	Season *int

	// Episode candidates carry the physical file and every episode bundled in it
	FileID     int
	Episodes   []EpisodeKey
	EpisodeIDs []int

	Size             int64
	DaysSinceWatched int
	LastWatched      time.Time
}

// DeletionResult reports what happened to a candidate during execution
type DeletionResult struct {
	Candidate RemovalCandidate
	Outcome   DeletionOutcome
	Error     string

	// FreedBytes is what was actually removed, which for seasons can be less
	// than the candidate size when a file spans into another season
	FreedBytes int64
}

// RunSummary describes one removal run, used by the status endpoint
type RunSummary struct {
	ID          string
	Kind        string
	StartedAt   time.Time
	FinishedAt  time.Time
	DryRun      bool
	Candidates  int
	Deleted     int
	Failed      int
	FreedBytes  int64
	SkippedKeys int
	Error       string
}
