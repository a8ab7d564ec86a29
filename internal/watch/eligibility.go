package watch

import (
	"sort"
	"time"

	"github.com/amaumene/prunarr/internal/models"
	"github.com/sirupsen/logrus"
)

// MovieCandidates returns the movies the requester watched at least minDays
// ago. Untagged movies and movies without a file are never candidates.
func (e *Engine) MovieCandidates(movies []models.AnnotatedMovie, minDays int) []models.RemovalCandidate {
	var candidates []models.RemovalCandidate
	for _, m := range movies {
		if !m.Tagged() || !m.HasFile {
			continue
		}
		if m.Status != models.WatchStatusWatchedByRequester {
			continue
		}
		if m.RequesterDaysWatched == nil || *m.RequesterDaysWatched < minDays {
			continue
		}
		candidates = append(candidates, models.RemovalCandidate{
			Granularity:      models.GranularityMovie,
			MovieID:          m.ID,
			Title:            m.Title,
			Year:             m.Year,
			Requester:        m.Requester,
			Size:             m.FileSize,
			DaysSinceWatched: *m.RequesterDaysWatched,
			LastWatched:      *m.RequesterWatched,
		})
	}
	return candidates
}

// SeriesCandidates returns the tagged series fully watched by their requester
// whose latest watch is at least minDays old
func (e *Engine) SeriesCandidates(series []models.AnnotatedSeries, minDays int) []models.RemovalCandidate {
	var candidates []models.RemovalCandidate
	for _, s := range series {
		if !s.Tagged() || s.Status != models.WatchStatusFullyWatched {
			continue
		}
		if s.DaysSinceWatched == nil || *s.DaysSinceWatched < minDays {
			continue
		}
		candidates = append(candidates, models.RemovalCandidate{
			Granularity:      models.GranularitySeries,
			SeriesID:         s.ID,
			Title:            s.Title,
			Year:             s.Year,
			Requester:        s.Requester,
			Size:             s.SizeOnDisk,
			DaysSinceWatched: *s.DaysSinceWatched,
			LastWatched:      *s.LastWatched,
		})
	}
	return candidates
}

// SeasonCandidates returns every season completed by the requester whose own
// latest watch is at least minDays old. Seasons with no files left on disk are
// skipped so an already emptied season is not offered again.
func (e *Engine) SeasonCandidates(series []models.AnnotatedSeries, minDays int) []models.RemovalCandidate {
	var candidates []models.RemovalCandidate
	for _, s := range series {
		if !s.Tagged() {
			continue
		}
		for _, season := range s.Seasons {
			if season.Status != models.WatchStatusFullyWatched || season.FileCount == 0 {
				continue
			}
			if season.DaysSinceWatched == nil || *season.DaysSinceWatched < minDays {
				continue
			}
			number := season.Number
			candidates = append(candidates, models.RemovalCandidate{
				Granularity:      models.GranularitySeason,
				SeriesID:         s.ID,
				Title:            s.Title,
				Year:             s.Year,
				Requester:        s.Requester,
				Season:           &number,
				Size:             season.SizeOnDisk,
				DaysSinceWatched: *season.DaysSinceWatched,
				LastWatched:      *season.LastWatched,
			})
		}
	}
	return candidates
}

// EpisodeCandidates returns one candidate per episode file whose episodes were
// all watched by the requester at least minDays ago. A file bundling several
// episodes is only a candidate when every bundled episode qualifies; if one
// does not, the whole file is kept. With a season filter only files holding
// an episode of that season are considered, but siblings are always checked.
func (e *Engine) EpisodeCandidates(series models.AnnotatedSeries, episodes []models.Episode, files []models.EpisodeFile, sw SeriesWatch, minDays int, seasonFilter *int) []models.RemovalCandidate {
	if !series.Tagged() {
		return nil
	}
	requester := series.Requester
	now := e.now()

	byFile, incomplete := groupByFile(episodes, files)
	sizes := make(map[int]int64, len(files))
	for _, f := range files {
		sizes[f.ID] = f.Size
	}

	qualifies := func(ep models.Episode) (time.Time, bool) {
		if !ep.HasFile || ep.FileID == 0 {
			return time.Time{}, false
		}
		at, ok := sw.WatchedBy(ep.Key(), requester)
		if !ok || DaysSince(now, at) < minDays {
			return time.Time{}, false
		}
		return at, true
	}

	ordered := make([]models.Episode, len(episodes))
	copy(ordered, episodes)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Key().Less(ordered[j].Key()) })

	var candidates []models.RemovalCandidate
	evaluated := make(map[int]bool)

	for _, ep := range ordered {
		if seasonFilter != nil && ep.Season != *seasonFilter {
			continue
		}
		if _, ok := qualifies(ep); !ok || evaluated[ep.FileID] {
			continue
		}
		evaluated[ep.FileID] = true

		if incomplete[ep.FileID] {
			e.logger.WithFields(logrus.Fields{
				"series":  series.Title,
				"file_id": ep.FileID,
			}).Debug("Skipping file that references unknown episodes")
			continue
		}

		siblings := byFile[ep.FileID]
		if len(siblings) == 0 {
			siblings = []models.Episode{ep}
		}

		var latest time.Time
		allWatched := true
		for _, sib := range siblings {
			at, ok := qualifies(sib)
			if !ok {
				allWatched = false
				break
			}
			if at.After(latest) {
				latest = at
			}
		}
		if !allWatched {
			e.logger.WithFields(logrus.Fields{
				"series":  series.Title,
				"episode": ep.Key().Display(),
				"file_id": ep.FileID,
			}).Debug("Skipping file, not every bundled episode is watched")
			continue
		}

		candidate := models.RemovalCandidate{
			Granularity:      models.GranularityEpisode,
			SeriesID:         series.ID,
			Title:            series.Title,
			Year:             series.Year,
			Requester:        requester,
			FileID:           ep.FileID,
			Size:             sizes[ep.FileID],
			DaysSinceWatched: DaysSince(now, latest),
			LastWatched:      latest,
		}
		for _, sib := range siblings {
			candidate.Episodes = append(candidate.Episodes, sib.Key())
			if sib.ID != 0 {
				candidate.EpisodeIDs = append(candidate.EpisodeIDs, sib.ID)
			}
		}
		season := ep.Season
		candidate.Season = &season
		candidates = append(candidates, candidate)
	}
	return candidates
}

// groupByFile maps each file id to the episodes stored in it, using both the
// file's episode references and the episodes' own file ids. Files referencing
// an episode missing from the list are reported as incomplete.
func groupByFile(episodes []models.Episode, files []models.EpisodeFile) (map[int][]models.Episode, map[int]bool) {
	byID := make(map[int]models.Episode, len(episodes))
	for _, ep := range episodes {
		if ep.ID != 0 {
			byID[ep.ID] = ep
		}
	}

	grouped := make(map[int][]models.Episode)
	seen := make(map[int]map[models.EpisodeKey]bool)
	add := func(fileID int, ep models.Episode) {
		if seen[fileID] == nil {
			seen[fileID] = make(map[models.EpisodeKey]bool)
		}
		if seen[fileID][ep.Key()] {
			return
		}
		seen[fileID][ep.Key()] = true
		grouped[fileID] = append(grouped[fileID], ep)
	}

	incomplete := make(map[int]bool)
	for _, f := range files {
		for _, id := range f.EpisodeIDs {
			ep, ok := byID[id]
			if !ok {
				incomplete[f.ID] = true
				continue
			}
			add(f.ID, ep)
		}
	}
	for _, ep := range episodes {
		if ep.FileID != 0 {
			add(ep.FileID, ep)
		}
	}

	for id := range grouped {
		eps := grouped[id]
		sort.Slice(eps, func(i, j int) bool { return eps[i].Key().Less(eps[j].Key()) })
	}
	return grouped, incomplete
}
