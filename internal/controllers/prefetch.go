package controllers

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/amaumene/prunarr/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/pool"
)

// Pool sizes of the warm-up phases
const (
	datasetWorkers  = 3
	lookupWorkers   = 10
	episodesWorkers = 5
)

// PrefetchOptions controls the cache warm-up
type PrefetchOptions struct {
	// Full also fetches episodes and episode files of every series
	Full bool
}

// PhaseReport counts the tasks of one warm-up phase
type PhaseReport struct {
	Name     string
	Tasks    int
	Failed   int
	Duration time.Duration
}

// PrefetchReport is the outcome of a warm-up
type PrefetchReport struct {
	Phases []PhaseReport
}

// Failed is the number of failed tasks across all phases
func (r PrefetchReport) Failed() int {
	total := 0
	for _, p := range r.Phases {
		total += p.Failed
	}
	return total
}

// PrefetchController populates the cache ahead of the list and remove commands
type PrefetchController struct {
	sources Sources
	logger  *logrus.Logger
}

// NewPrefetchController creates a new prefetch controller
func NewPrefetchController(sources Sources, logger *logrus.Logger) *PrefetchController {
	return &PrefetchController{sources: sources, logger: logger}
}

// phase runs tasks on a bounded pool. A failing task is logged and counted;
// it never cancels its siblings.
func (c *PrefetchController) phase(ctx context.Context, name string, workers int, tasks map[string]func(context.Context) error) PhaseReport {
	start := time.Now()
	report := PhaseReport{Name: name, Tasks: len(tasks)}

	var mu sync.Mutex
	p := pool.New().WithMaxGoroutines(workers)
	for key, task := range tasks {
		key, task := key, task
		p.Go(func() {
			if err := task(ctx); err != nil {
				c.logger.WithError(err).WithFields(logrus.Fields{
					"phase": name,
					"key":   key,
				}).Warn("Prefetch task failed")
				mu.Lock()
				report.Failed++
				mu.Unlock()
			}
		})
	}
	p.Wait()

	report.Duration = time.Since(start)
	c.logger.WithFields(logrus.Fields{
		"phase":    name,
		"tasks":    report.Tasks,
		"failed":   report.Failed,
		"duration": report.Duration.Round(time.Millisecond),
	}).Info("Prefetch phase completed")
	return report
}

// Warm fetches movies, series and history, then the tags and metadata they
// reference and, for a full warm-up, the episodes and files of every series
func (c *PrefetchController) Warm(ctx context.Context, opts PrefetchOptions) PrefetchReport {
	c.logger.WithField("full", opts.Full).Info("Starting cache warm-up")
	var report PrefetchReport

	// every task writes its own variable, so no locking is needed
	var (
		movies         []models.Movie
		series         []models.Series
		movieHistory   []models.RawWatchEvent
		episodeHistory []models.RawWatchEvent
	)
	report.Phases = append(report.Phases, c.phase(ctx, "datasets", datasetWorkers, map[string]func(context.Context) error{
		"movies": func(ctx context.Context) (err error) {
			movies, err = c.sources.listMovies(ctx)
			return err
		},
		"series": func(ctx context.Context) (err error) {
			series, err = c.sources.listSeries(ctx)
			return err
		},
		"movie history": func(ctx context.Context) (err error) {
			movieHistory, err = c.sources.history(ctx, models.MediaTypeMovie)
			return err
		},
		"episode history": func(ctx context.Context) (err error) {
			episodeHistory, err = c.sources.history(ctx, models.MediaTypeEpisode)
			return err
		},
	}))

	tagTasks := make(map[string]func(context.Context) error)
	for _, id := range distinctTagIDs(movies) {
		id := id
		tagTasks["radarr:"+strconv.Itoa(id)] = func(ctx context.Context) error {
			_, err := c.sources.movieTag(ctx, id)
			return err
		}
	}
	for _, id := range distinctSeriesTagIDs(series) {
		id := id
		tagTasks["sonarr:"+strconv.Itoa(id)] = func(ctx context.Context) error {
			_, err := c.sources.seriesTag(ctx, id)
			return err
		}
	}
	report.Phases = append(report.Phases, c.phase(ctx, "tags", lookupWorkers, tagTasks))

	metadataTasks := make(map[string]func(context.Context) error)
	addKey := func(key string) {
		if key == "" {
			return
		}
		metadataTasks[key] = func(ctx context.Context) error {
			_, err := c.sources.guids(ctx, key)
			return err
		}
	}
	for _, e := range movieHistory {
		addKey(e.RatingKey)
	}
	for _, e := range episodeHistory {
		addKey(e.GrandparentRatingKey)
	}
	report.Phases = append(report.Phases, c.phase(ctx, "metadata", lookupWorkers, metadataTasks))

	if opts.Full {
		episodeTasks := make(map[string]func(context.Context) error)
		for _, s := range series {
			id := s.ID
			episodeTasks[s.Title+" ["+strconv.Itoa(id)+"]"] = func(ctx context.Context) error {
				if _, err := c.sources.episodes(ctx, id); err != nil {
					return err
				}
				_, err := c.sources.episodeFiles(ctx, id)
				return err
			}
		}
		report.Phases = append(report.Phases, c.phase(ctx, "episodes", episodesWorkers, episodeTasks))
	}

	c.logger.WithField("failed", report.Failed()).Info("Cache warm-up completed")
	return report
}

func distinctTagIDs(movies []models.Movie) []int {
	var ids [][]int
	for _, m := range movies {
		ids = append(ids, m.TagIDs)
	}
	return distinctInts(ids)
}

func distinctSeriesTagIDs(series []models.Series) []int {
	var ids [][]int
	for _, s := range series {
		ids = append(ids, s.TagIDs)
	}
	return distinctInts(ids)
}

func distinctInts(groups [][]int) []int {
	seen := make(map[int]struct{})
	for _, g := range groups {
		for _, v := range g {
			seen[v] = struct{}{}
		}
	}
	out := make([]int, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}
