package controllers

import (
	"context"
	"fmt"

	"github.com/amaumene/prunarr/internal/models"
	"github.com/amaumene/prunarr/internal/utils"
	"github.com/sirupsen/logrus"
)

// ExecuteOptions controls the deletion phase
type ExecuteOptions struct {
	DryRun             bool
	DeleteFiles        bool
	AddImportExclusion bool
}

// ExecutionSummary aggregates the results of one deletion phase
type ExecutionSummary struct {
	Deleted    int
	Failed     int
	DryRun     int
	Protected  int
	FreedBytes int64
}

// Summarize totals a list of deletion results
func Summarize(results []models.DeletionResult) ExecutionSummary {
	var s ExecutionSummary
	for _, r := range results {
		switch r.Outcome {
		case models.OutcomeDeleted:
			s.Deleted++
			s.FreedBytes += r.FreedBytes
		case models.OutcomeFailed:
			s.Failed++
			s.FreedBytes += r.FreedBytes
		case models.OutcomeDryRun:
			s.DryRun++
		case models.OutcomeProtected:
			s.Protected++
		}
	}
	return s
}

// CleanupController deletes removal candidates from the libraries
type CleanupController struct {
	movies    MovieLibrary
	series    SeriesLibrary
	protected *utils.ProtectedList
	logger    *logrus.Logger
}

// NewCleanupController creates a new cleanup controller. protected may be nil.
func NewCleanupController(movies MovieLibrary, series SeriesLibrary, protected *utils.ProtectedList, logger *logrus.Logger) *CleanupController {
	return &CleanupController{
		movies:    movies,
		series:    series,
		protected: protected,
		logger:    logger,
	}
}

// Execute deletes every candidate in order and reports one result per
// candidate. A failed deletion is recorded and the remaining candidates are
// still processed.
func (c *CleanupController) Execute(ctx context.Context, candidates []models.RemovalCandidate, opts ExecuteOptions) []models.DeletionResult {
	c.logger.WithFields(logrus.Fields{
		"candidates": len(candidates),
		"dry_run":    opts.DryRun,
	}).Info("Starting removal")

	results := make([]models.DeletionResult, 0, len(candidates))
	for _, candidate := range candidates {
		result := models.DeletionResult{Candidate: candidate}
		fields := logrus.Fields{
			"granularity": candidate.Granularity,
			"title":       candidate.Title,
			"requester":   candidate.Requester,
		}

		if ok, term := c.protected.IsProtected(candidate.Title); ok {
			c.logger.WithFields(fields).WithField("term", term).Info("Skipping protected title")
			result.Outcome = models.OutcomeProtected
			results = append(results, result)
			continue
		}

		if opts.DryRun {
			c.logger.WithFields(fields).Info("Would remove")
			result.Outcome = models.OutcomeDryRun
			results = append(results, result)
			continue
		}

		freed, err := c.remove(ctx, candidate, opts)
		if err != nil {
			c.logger.WithError(err).WithFields(fields).WithField("freed", utils.FormatSize(freed)).Error("Failed to remove")
			result.Outcome = models.OutcomeFailed
			result.Error = err.Error()
			// a season deletion can fail after some files are already gone
			result.FreedBytes = freed
		} else {
			c.logger.WithFields(fields).WithField("freed", utils.FormatSize(freed)).Info("Removed")
			result.Outcome = models.OutcomeDeleted
			result.FreedBytes = freed
		}
		results = append(results, result)
	}

	summary := Summarize(results)
	c.logger.WithFields(logrus.Fields{
		"deleted":   summary.Deleted,
		"failed":    summary.Failed,
		"protected": summary.Protected,
		"freed":     utils.FormatSize(summary.FreedBytes),
	}).Info("Removal completed")

	return results
}

// remove deletes a single candidate and returns the bytes it freed
func (c *CleanupController) remove(ctx context.Context, candidate models.RemovalCandidate, opts ExecuteOptions) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	switch candidate.Granularity {
	case models.GranularityMovie:
		if err := c.movies.DeleteMovie(ctx, candidate.MovieID, opts.DeleteFiles, opts.AddImportExclusion); err != nil {
			return 0, err
		}
		return candidate.Size, nil

	case models.GranularitySeries:
		if err := c.series.DeleteSeries(ctx, candidate.SeriesID, opts.DeleteFiles, opts.AddImportExclusion); err != nil {
			return 0, err
		}
		return candidate.Size, nil

	case models.GranularitySeason:
		if candidate.Season == nil {
			return 0, fmt.Errorf("season candidate %q has no season number", candidate.Title)
		}
		deletion, err := c.series.DeleteSeasonFiles(ctx, candidate.SeriesID, *candidate.Season, true)
		if len(deletion.Skipped) > 0 {
			c.logger.WithFields(logrus.Fields{
				"title":  candidate.Title,
				"season": *candidate.Season,
				"files":  deletion.Skipped,
			}).Info("Kept files shared with another season")
		}
		return deletion.FreedBytes, err

	case models.GranularityEpisode:
		if err := c.series.DeleteEpisodeFile(ctx, candidate.FileID); err != nil {
			return 0, err
		}
		// the file is gone either way, so a failed unmonitor is only reported
		if err := c.series.UnmonitorEpisodes(ctx, candidate.EpisodeIDs); err != nil {
			c.logger.WithError(err).WithField("file_id", candidate.FileID).Warn("Failed to unmonitor episodes")
		}
		return candidate.Size, nil
	}

	return 0, fmt.Errorf("unsupported granularity %q", candidate.Granularity)
}
