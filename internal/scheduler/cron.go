package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/amaumene/prunarr/internal/controllers"
	"github.com/amaumene/prunarr/internal/models"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// ErrRunInProgress is returned when a run is requested while another is active
var ErrRunInProgress = errors.New("a removal run is already in progress")

// MovieEvaluator finds movie removal candidates
type MovieEvaluator interface {
	GetRemovalCandidates(ctx context.Context, minDays int, q controllers.MovieQuery) ([]models.RemovalCandidate, error)
}

// SeriesEvaluator finds series removal candidates
type SeriesEvaluator interface {
	GetRemovalCandidates(ctx context.Context, q controllers.RemovalQuery) (controllers.RemovalReport, error)
}

// Executor deletes removal candidates
type Executor interface {
	Execute(ctx context.Context, candidates []models.RemovalCandidate, opts controllers.ExecuteOptions) []models.DeletionResult
}

// RunOptions are the settings applied to every scheduled run
type RunOptions struct {
	Schedule    string
	MinDays     int
	Granularity models.Granularity
	Execute     controllers.ExecuteOptions
}

// Scheduler runs removal on a cron schedule and remembers the last run
type Scheduler struct {
	cron    *cron.Cron
	movies  MovieEvaluator
	series  SeriesEvaluator
	cleanup Executor
	opts    RunOptions
	logger  *logrus.Logger
	now     func() time.Time

	runMu sync.Mutex

	mu   sync.RWMutex
	last *models.RunSummary
}

// NewScheduler creates a new scheduler
func NewScheduler(movies MovieEvaluator, series SeriesEvaluator, cleanup Executor, opts RunOptions, logger *logrus.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(logger)))),
		movies:  movies,
		series:  series,
		cleanup: cleanup,
		opts:    opts,
		logger:  logger,
		now:     time.Now,
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.logger.WithField("schedule", s.opts.Schedule).Info("Starting scheduler")

	_, err := s.cron.AddFunc(s.opts.Schedule, func() {
		s.runScheduled()
	})
	if err != nil {
		return fmt.Errorf("failed to add removal job: %w", err)
	}

	s.cron.Start()
	s.logger.Info("Scheduler started")
	return nil
}

// Stop stops the scheduler and waits for a running job to finish
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping scheduler")
	<-s.cron.Stop().Done()
}

// LastRun returns the summary of the most recent run
func (s *Scheduler) LastRun() (models.RunSummary, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return models.RunSummary{}, false
	}
	return *s.last, true
}

// NextRun returns when the job fires next, zero before Start
func (s *Scheduler) NextRun() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

func (s *Scheduler) runScheduled() {
	s.logger.Info("Running scheduled removal")
	summary, err := s.RunOnce(context.Background(), "scheduled")
	if err != nil {
		s.logger.WithError(err).Error("Removal job failed")
		return
	}
	s.logger.WithFields(logrus.Fields{
		"run_id":  summary.ID,
		"deleted": summary.Deleted,
		"failed":  summary.Failed,
	}).Info("Removal job completed")
}

// RunOnce evaluates movies and series and executes the resulting removals.
// Runs never overlap.
func (s *Scheduler) RunOnce(ctx context.Context, kind string) (models.RunSummary, error) {
	if !s.runMu.TryLock() {
		return models.RunSummary{}, ErrRunInProgress
	}
	defer s.runMu.Unlock()

	summary := models.RunSummary{
		ID:        uuid.NewString(),
		Kind:      kind,
		StartedAt: s.now(),
		DryRun:    s.opts.Execute.DryRun,
	}
	logger := s.logger.WithField("run_id", summary.ID)

	candidates, skipped, err := s.evaluate(ctx)
	summary.SkippedKeys = skipped
	if err != nil {
		summary.Error = err.Error()
	}
	summary.Candidates = len(candidates)

	results := s.cleanup.Execute(ctx, candidates, s.opts.Execute)
	totals := controllers.Summarize(results)
	summary.Deleted = totals.Deleted
	summary.Failed = totals.Failed
	summary.FreedBytes = totals.FreedBytes
	summary.FinishedAt = s.now()

	recordRun(summary, results)
	logger.WithFields(logrus.Fields{
		"candidates": summary.Candidates,
		"deleted":    summary.Deleted,
		"failed":     summary.Failed,
		"dry_run":    summary.DryRun,
	}).Info("Removal run finished")

	s.mu.Lock()
	s.last = &summary
	s.mu.Unlock()

	return summary, err
}

// evaluate gathers candidates of both libraries. A failing library is
// reported but the other one is still processed.
func (s *Scheduler) evaluate(ctx context.Context) ([]models.RemovalCandidate, int, error) {
	var errs []error

	candidates, err := s.movies.GetRemovalCandidates(ctx, s.opts.MinDays, controllers.MovieQuery{})
	if err != nil {
		errs = append(errs, fmt.Errorf("movies: %w", err))
	}

	report, err := s.series.GetRemovalCandidates(ctx, controllers.RemovalQuery{
		Granularity: s.opts.Granularity,
		MinDays:     s.opts.MinDays,
	})
	if err != nil {
		errs = append(errs, fmt.Errorf("series: %w", err))
	}
	candidates = append(candidates, report.Candidates...)

	return candidates, len(report.SkippedSeries), errors.Join(errs...)
}
