package main

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/amaumene/prunarr/internal/controllers"
	"github.com/amaumene/prunarr/internal/models"
	"github.com/amaumene/prunarr/internal/utils"
	"github.com/spf13/cobra"
)

func newSeriesCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "series",
		Short: "Inspect and remove series",
	}
	cmd.AddCommand(newSeriesListCommand(ctx))
	cmd.AddCommand(newSeriesGetCommand(ctx))
	cmd.AddCommand(newSeriesRemoveCommand(ctx))
	return cmd
}

func filterSeriesByStatus(series []models.AnnotatedSeries, statuses []models.WatchStatus) []models.AnnotatedSeries {
	if len(statuses) == 0 {
		return series
	}
	out := make([]models.AnnotatedSeries, 0, len(series))
	for _, s := range series {
		for _, st := range statuses {
			if s.Status == st {
				out = append(out, s)
				break
			}
		}
	}
	return out
}

type seasonView struct {
	Number           int        `json:"season_number"`
	Status           string     `json:"watch_status"`
	WatchedEpisodes  int        `json:"watched_episodes"`
	TotalEpisodes    int        `json:"total_episodes"`
	Completion       float64    `json:"completion_percentage"`
	LastWatched      *time.Time `json:"last_watched,omitempty"`
	DaysSinceWatched *int       `json:"days_since_watched,omitempty"`
	SizeOnDisk       int64      `json:"size_on_disk"`
}

type seriesView struct {
	ID               int          `json:"id"`
	Title            string       `json:"title"`
	Year             int          `json:"year"`
	TVDbID           string       `json:"tvdb_id"`
	Requester        string       `json:"requester,omitempty"`
	Tags             []string     `json:"tags,omitempty"`
	Status           string       `json:"watch_status"`
	WatchedEpisodes  int          `json:"watched_episodes"`
	TotalEpisodes    int          `json:"total_episodes"`
	Completion       float64      `json:"completion_percentage"`
	LastWatched      *time.Time   `json:"last_watched,omitempty"`
	DaysSinceWatched *int         `json:"days_since_watched,omitempty"`
	SizeOnDisk       int64        `json:"size_on_disk"`
	Seasons          []seasonView `json:"seasons"`
}

func newSeriesView(s models.AnnotatedSeries) seriesView {
	view := seriesView{
		ID:               s.ID,
		Title:            s.Title,
		Year:             s.Year,
		TVDbID:           s.TVDbID,
		Requester:        s.Requester,
		Tags:             s.TagLabels,
		Status:           string(s.Status),
		WatchedEpisodes:  s.WatchedEpisodes,
		TotalEpisodes:    s.TotalEpisodes,
		Completion:       s.Completion,
		LastWatched:      s.LastWatched,
		DaysSinceWatched: s.DaysSinceWatched,
		SizeOnDisk:       s.SizeOnDisk,
		Seasons:          make([]seasonView, 0, len(s.Seasons)),
	}
	for _, season := range s.Seasons {
		view.Seasons = append(view.Seasons, seasonView{
			Number:           season.Number,
			Status:           string(season.Status),
			WatchedEpisodes:  season.WatchedEpisodes,
			TotalEpisodes:    season.TotalEpisodes,
			Completion:       season.Completion,
			LastWatched:      season.LastWatched,
			DaysSinceWatched: season.DaysSinceWatched,
			SizeOnDisk:       season.SizeOnDisk,
		})
	}
	return view
}

func renderSeries(series []models.AnnotatedSeries) string {
	rows := make([][]string, 0, len(series))
	for _, s := range series {
		rows = append(rows, []string{
			s.Title,
			formatYear(s.Year),
			dash(s.Requester),
			s.Status.Label(),
			fmt.Sprintf("%d/%d", s.WatchedEpisodes, s.TotalEpisodes),
			formatPercent(s.Completion),
			utils.FormatAgo(s.LastWatched),
			utils.FormatSize(s.SizeOnDisk),
		})
	}
	headers := []string{"Title", "Year", "Requester", "Status", "Episodes", "Complete", "Last watched", "Size"}
	aligns := []columnAlignment{alignLeft, alignRight, alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignRight}
	return renderTable(headers, rows, aligns)
}

func newSeriesListCommand(ctx *commandContext) *cobra.Command {
	var (
		username         string
		seriesFilter     string
		season           int
		watched          bool
		partiallyWatched bool
		unwatched        bool
		includeUntagged  bool
		limit            int
		output           string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List series with their watch progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateOutput(output); err != nil {
				return err
			}
			var statuses []models.WatchStatus
			if watched {
				statuses = append(statuses, models.WatchStatusFullyWatched)
			}
			if partiallyWatched {
				statuses = append(statuses, models.WatchStatusPartiallyWatched)
			}
			if unwatched {
				statuses = append(statuses, models.WatchStatusUnwatched)
			}

			a, err := ctx.ensureApp()
			if err != nil {
				return err
			}
			series, err := a.series.GetSeriesWithWatchStatus(cmd.Context(), controllers.SeriesQuery{
				IncludeUntagged: includeUntagged,
				Username:        username,
				SeriesFilter:    seriesFilter,
				Season:          intFlag(cmd, "season", season),
			})
			if err != nil {
				return err
			}

			series = filterSeriesByStatus(series, statuses)
			sort.SliceStable(series, func(i, j int) bool {
				return strings.ToLower(series[i].Title) < strings.ToLower(series[j].Title)
			})
			if limit > 0 && len(series) > limit {
				series = series[:limit]
			}

			if output == outputJSON {
				views := make([]seriesView, 0, len(series))
				for _, s := range series {
					views = append(views, newSeriesView(s))
				}
				return writeJSON(cmd, views)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderSeries(series))
			fmt.Fprintf(cmd.OutOrStdout(), "%d series\n", len(series))
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "Only series requested by this user")
	cmd.Flags().StringVarP(&seriesFilter, "series", "s", "", "Only series whose title contains this text")
	cmd.Flags().IntVar(&season, "season", 0, "Only count this season")
	cmd.Flags().BoolVar(&watched, "watched", false, "Only fully watched series")
	cmd.Flags().BoolVar(&partiallyWatched, "partially-watched", false, "Only partially watched series")
	cmd.Flags().BoolVar(&unwatched, "unwatched", false, "Only unwatched series")
	cmd.Flags().BoolVar(&includeUntagged, "include-untagged", false, "Include series without a requester tag")
	cmd.Flags().IntVar(&limit, "limit", 0, "Show at most this many series")
	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "Output format (table or json)")

	return cmd
}

type episodeView struct {
	Key         string     `json:"episode"`
	Title       string     `json:"title"`
	AirDate     string     `json:"air_date,omitempty"`
	HasFile     bool       `json:"has_file"`
	Status      string     `json:"watch_status"`
	Watchers    []string   `json:"watched_by"`
	LastWatched *time.Time `json:"last_watched,omitempty"`
}

type seasonDetailView struct {
	Number          int           `json:"season_number"`
	WatchedByUser   int           `json:"watched_by_user"`
	WatchedByOthers int           `json:"watched_by_others"`
	Unwatched       int           `json:"unwatched"`
	Episodes        []episodeView `json:"episodes"`
}

type seriesDetailView struct {
	Series  seriesView         `json:"series"`
	Seasons []seasonDetailView `json:"seasons"`
}

func newSeriesDetailView(d models.SeriesDetail) seriesDetailView {
	view := seriesDetailView{
		Series:  newSeriesView(d.Series),
		Seasons: make([]seasonDetailView, 0, len(d.Seasons)),
	}
	for _, s := range d.Seasons {
		season := seasonDetailView{
			Number:          s.Number,
			WatchedByUser:   s.WatchedByUser,
			WatchedByOthers: s.WatchedByOthers,
			Unwatched:       s.Unwatched,
			Episodes:        make([]episodeView, 0, len(s.Episodes)),
		}
		for _, e := range s.Episodes {
			watchers := e.Watchers
			if watchers == nil {
				watchers = []string{}
			}
			season.Episodes = append(season.Episodes, episodeView{
				Key:         e.Key().Display(),
				Title:       e.Title,
				AirDate:     e.AirDate,
				HasFile:     e.HasFile,
				Status:      string(e.Status),
				Watchers:    watchers,
				LastWatched: e.LastWatched,
			})
		}
		view.Seasons = append(view.Seasons, season)
	}
	return view
}

func episodeStatusLabel(s models.EpisodeStatus) string {
	switch s {
	case models.EpisodeWatchedByUser:
		return "Watched"
	case models.EpisodeWatchedByOthers:
		return "Watched (other)"
	default:
		return "Unwatched"
	}
}

// episodeWatchers lists who watched an episode. Without allWatchers only the
// most recent watcher is shown.
func episodeWatchers(e models.AnnotatedEpisode, allWatchers bool) string {
	if len(e.Watchers) == 0 {
		return "-"
	}
	if allWatchers {
		return strings.Join(e.Watchers, ", ")
	}
	latest := ""
	var latestAt time.Time
	for _, w := range e.Watchers {
		if at := e.WatcherTimes[w]; latest == "" || at.After(latestAt) {
			latest, latestAt = w, at
		}
	}
	if extra := len(e.Watchers) - 1; extra > 0 {
		return latest + " +" + strconv.Itoa(extra)
	}
	return latest
}

func renderSeriesDetail(d models.SeriesDetail, allWatchers bool) string {
	var b strings.Builder
	s := d.Series
	fmt.Fprintf(&b, "%s (%s)\n", s.Title, formatYear(s.Year))
	fmt.Fprintf(&b, "Requester: %s  Status: %s  Episodes: %d/%d (%s)  Size: %s\n",
		dash(s.Requester), s.Status.Label(), s.WatchedEpisodes, s.TotalEpisodes,
		formatPercent(s.Completion), utils.FormatSize(s.SizeOnDisk))

	headers := []string{"Episode", "Title", "Status", "Watched by", "Last watched"}
	for _, season := range d.Seasons {
		fmt.Fprintf(&b, "\nSeason %d: %d watched, %d by others, %d unwatched\n",
			season.Number, season.WatchedByUser, season.WatchedByOthers, season.Unwatched)
		rows := make([][]string, 0, len(season.Episodes))
		for _, e := range season.Episodes {
			rows = append(rows, []string{
				e.Key().Display(),
				dash(e.Title),
				episodeStatusLabel(e.Status),
				episodeWatchers(e, allWatchers),
				utils.FormatAgo(e.LastWatched),
			})
		}
		b.WriteString(renderTable(headers, rows, nil))
		b.WriteString("\n")
	}
	return b.String()
}

func newSeriesGetCommand(ctx *commandContext) *cobra.Command {
	var (
		season        int
		watchedOnly   bool
		unwatchedOnly bool
		allWatchers   bool
		output        string
	)

	cmd := &cobra.Command{
		Use:   "get <id|title>",
		Short: "Show the episode watch status of a series",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateOutput(output); err != nil {
				return err
			}
			a, err := ctx.ensureApp()
			if err != nil {
				return err
			}

			series, err := a.series.FindSeries(cmd.Context(), args[0])
			if err != nil {
				var lookup *controllers.SeriesLookupError
				if errors.As(err, &lookup) {
					return lookup
				}
				return fmt.Errorf("failed to find series: %w", err)
			}

			detail, err := a.series.GetSeriesDetails(cmd.Context(), series.ID, controllers.DetailQuery{
				Season:        intFlag(cmd, "season", season),
				WatchedOnly:   watchedOnly,
				UnwatchedOnly: unwatchedOnly,
			})
			if err != nil {
				return err
			}

			if output == outputJSON {
				return writeJSON(cmd, newSeriesDetailView(detail))
			}
			fmt.Fprint(cmd.OutOrStdout(), renderSeriesDetail(detail, allWatchers))
			return nil
		},
	}

	cmd.Flags().IntVar(&season, "season", 0, "Only show this season")
	cmd.Flags().BoolVar(&watchedOnly, "watched-only", false, "Only episodes the requester watched")
	cmd.Flags().BoolVar(&unwatchedOnly, "unwatched-only", false, "Only episodes the requester has not watched")
	cmd.Flags().BoolVar(&allWatchers, "all-watchers", false, "List every watcher of each episode")
	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "Output format (table or json)")
	cmd.MarkFlagsMutuallyExclusive("watched-only", "unwatched-only")

	return cmd
}

func newSeriesRemoveCommand(ctx *commandContext) *cobra.Command {
	var (
		flags        removalFlags
		mode         string
		username     string
		seriesFilter string
		season       int
	)

	cmd := &cobra.Command{
		Use:   "remove",
		Short: "Remove series, seasons or episodes their requester watched",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp()
			if err != nil {
				return err
			}
			if mode == "" {
				mode = a.cfg.RemovalMode
			}
			granularity, err := models.ParseGranularity(strings.ToLower(mode))
			if err != nil {
				return err
			}

			report, err := a.series.GetRemovalCandidates(cmd.Context(), controllers.RemovalQuery{
				Granularity:  granularity,
				MinDays:      flags.minDays(a),
				Username:     username,
				SeriesFilter: seriesFilter,
				Season:       intFlag(cmd, "season", season),
			})
			if err != nil {
				return err
			}
			for _, skipped := range report.SkippedSeries {
				fmt.Fprintf(cmd.ErrOrStderr(), "Skipped %s: %s\n", skipped.Title, skipped.Error)
			}
			return runRemoval(cmd.Context(), cmd, a, limitCandidates(report.Candidates, flags.limit), flags)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&mode, "removal-mode", "", "Removal granularity: series, season or episode (default from configuration)")
	cmd.Flags().StringVarP(&username, "username", "u", "", "Only series requested by this user")
	cmd.Flags().StringVarP(&seriesFilter, "series", "s", "", "Only series whose title contains this text")
	cmd.Flags().IntVar(&season, "season", 0, "Only this season (season and episode modes)")

	return cmd
}
