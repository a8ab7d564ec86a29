package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/amaumene/prunarr/internal/controllers"
	"github.com/amaumene/prunarr/internal/models"
	"github.com/amaumene/prunarr/internal/utils"
	"github.com/spf13/cobra"
)

func newMoviesCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "movies",
		Short: "Inspect and remove movies",
	}
	cmd.AddCommand(newMoviesListCommand(ctx))
	cmd.AddCommand(newMoviesRemoveCommand(ctx))
	return cmd
}

type movieFilter struct {
	statuses    []models.WatchStatus
	minDays     int // negative disables
	minFileSize int64
}

func (f movieFilter) match(m models.AnnotatedMovie) bool {
	if len(f.statuses) > 0 {
		found := false
		for _, s := range f.statuses {
			if m.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.minDays >= 0 && (m.DaysSinceWatched == nil || *m.DaysSinceWatched < f.minDays) {
		return false
	}
	return m.FileSize >= f.minFileSize
}

func filterMovies(movies []models.AnnotatedMovie, f movieFilter) []models.AnnotatedMovie {
	out := make([]models.AnnotatedMovie, 0, len(movies))
	for _, m := range movies {
		if f.match(m) {
			out = append(out, m)
		}
	}
	return out
}

func timeOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

// sortMovies orders movies in place; ties keep title order
func sortMovies(movies []models.AnnotatedMovie, by string, desc bool) error {
	var less func(a, b models.AnnotatedMovie) bool
	switch by {
	case "title":
		less = func(a, b models.AnnotatedMovie) bool { return false }
	case "date":
		less = func(a, b models.AnnotatedMovie) bool { return a.Added.Before(b.Added) }
	case "size":
		less = func(a, b models.AnnotatedMovie) bool { return a.FileSize < b.FileSize }
	case "watched":
		less = func(a, b models.AnnotatedMovie) bool {
			return timeOrZero(a.LastWatched).Before(timeOrZero(b.LastWatched))
		}
	default:
		return fmt.Errorf("invalid sort field %q: must be title, date, size or watched", by)
	}

	sort.SliceStable(movies, func(i, j int) bool {
		return strings.ToLower(movies[i].Title) < strings.ToLower(movies[j].Title)
	})
	if by == "title" {
		if desc {
			reverseMovies(movies)
		}
		return nil
	}
	sort.SliceStable(movies, func(i, j int) bool {
		if desc {
			return less(movies[j], movies[i])
		}
		return less(movies[i], movies[j])
	})
	return nil
}

func reverseMovies(movies []models.AnnotatedMovie) {
	for i, j := 0, len(movies)-1; i < j; i, j = i+1, j-1 {
		movies[i], movies[j] = movies[j], movies[i]
	}
}

type movieView struct {
	ID               int        `json:"id"`
	Title            string     `json:"title"`
	Year             int        `json:"year"`
	Requester        string     `json:"requester,omitempty"`
	Tags             []string   `json:"tags,omitempty"`
	Status           string     `json:"watch_status"`
	Watchers         []string   `json:"watched_by"`
	LastWatched      *time.Time `json:"last_watched,omitempty"`
	DaysSinceWatched *int       `json:"days_since_watched,omitempty"`
	FileSize         int64      `json:"file_size"`
	HasFile          bool       `json:"has_file"`
	Added            time.Time  `json:"added"`
}

func newMovieView(m models.AnnotatedMovie) movieView {
	watchers := m.Watchers
	if watchers == nil {
		watchers = []string{}
	}
	return movieView{
		ID:               m.ID,
		Title:            m.Title,
		Year:             m.Year,
		Requester:        m.Requester,
		Tags:             m.TagLabels,
		Status:           string(m.Status),
		Watchers:         watchers,
		LastWatched:      m.LastWatched,
		DaysSinceWatched: m.DaysSinceWatched,
		FileSize:         m.FileSize,
		HasFile:          m.HasFile,
		Added:            m.Added,
	}
}

func renderMovies(movies []models.AnnotatedMovie) string {
	rows := make([][]string, 0, len(movies))
	for _, m := range movies {
		rows = append(rows, []string{
			m.Title,
			formatYear(m.Year),
			dash(m.Requester),
			m.Status.Label(),
			dash(strings.Join(m.Watchers, ", ")),
			utils.FormatAgo(m.LastWatched),
			utils.FormatSize(m.FileSize),
		})
	}
	headers := []string{"Title", "Year", "Requester", "Status", "Watched by", "Last watched", "Size"}
	aligns := []columnAlignment{alignLeft, alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignRight}
	return renderTable(headers, rows, aligns)
}

func newMoviesListCommand(ctx *commandContext) *cobra.Command {
	var (
		username        string
		watched         bool
		unwatched       bool
		watchedByOther  bool
		includeUntagged bool
		days            int
		limit           int
		sortBy          string
		desc            bool
		minFileSize     string
		output          string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List movies with their watch status",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateOutput(output); err != nil {
				return err
			}
			filter := movieFilter{minDays: days}
			if watched {
				filter.statuses = append(filter.statuses, models.WatchStatusWatchedByRequester)
			}
			if watchedByOther {
				filter.statuses = append(filter.statuses, models.WatchStatusWatchedByOther)
			}
			if unwatched {
				filter.statuses = append(filter.statuses, models.WatchStatusUnwatched)
			}
			if minFileSize != "" {
				size, err := utils.ParseSize(minFileSize)
				if err != nil {
					return err
				}
				filter.minFileSize = size
			}

			a, err := ctx.ensureApp()
			if err != nil {
				return err
			}
			movies, err := a.movies.GetMoviesWithWatchStatus(cmd.Context(), controllers.MovieQuery{
				IncludeUntagged: includeUntagged,
				Username:        username,
			})
			if err != nil {
				return err
			}

			movies = filterMovies(movies, filter)
			if err := sortMovies(movies, sortBy, desc); err != nil {
				return err
			}
			if limit > 0 && len(movies) > limit {
				movies = movies[:limit]
			}

			if output == outputJSON {
				views := make([]movieView, 0, len(movies))
				for _, m := range movies {
					views = append(views, newMovieView(m))
				}
				return writeJSON(cmd, views)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderMovies(movies))
			fmt.Fprintf(cmd.OutOrStdout(), "%d movies\n", len(movies))
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "Only movies requested by this user")
	cmd.Flags().BoolVar(&watched, "watched", false, "Only movies watched by their requester")
	cmd.Flags().BoolVar(&unwatched, "unwatched", false, "Only unwatched movies")
	cmd.Flags().BoolVar(&watchedByOther, "watched-by-other", false, "Only movies watched by someone other than the requester")
	cmd.Flags().BoolVar(&includeUntagged, "include-untagged", false, "Include movies without a requester tag")
	cmd.Flags().IntVar(&days, "days-watched", -1, "Only movies last watched at least this many days ago")
	cmd.Flags().IntVar(&limit, "limit", 0, "Show at most this many movies")
	cmd.Flags().StringVar(&sortBy, "sort-by", "title", "Sort by title, date, size or watched")
	cmd.Flags().BoolVar(&desc, "desc", false, "Sort in descending order")
	cmd.Flags().StringVar(&minFileSize, "min-filesize", "", "Only movies at least this large, e.g. 2GB")
	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "Output format (table or json)")

	return cmd
}

func newMoviesRemoveCommand(ctx *commandContext) *cobra.Command {
	var (
		flags    removalFlags
		username string
	)

	cmd := &cobra.Command{
		Use:   "remove",
		Short: "Remove movies their requester watched long enough ago",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp()
			if err != nil {
				return err
			}
			candidates, err := a.movies.GetRemovalCandidates(cmd.Context(), flags.minDays(a), controllers.MovieQuery{Username: username})
			if err != nil {
				return err
			}
			return runRemoval(cmd.Context(), cmd, a, limitCandidates(candidates, flags.limit), flags)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&username, "username", "u", "", "Only movies requested by this user")

	return cmd
}
