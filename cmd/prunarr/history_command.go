package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/amaumene/prunarr/internal/models"
	"github.com/amaumene/prunarr/internal/services/tautulli"
	"github.com/spf13/cobra"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect the watch history",
	}
	cmd.AddCommand(newHistoryListCommand(ctx))
	return cmd
}

func parseMediaType(s string) (models.MediaType, error) {
	switch mt := models.MediaType(strings.ToLower(s)); mt {
	case "":
		return "", nil
	case models.MediaTypeMovie, models.MediaTypeEpisode:
		return mt, nil
	}
	return "", fmt.Errorf("invalid media type %q: must be movie or episode", s)
}

func historyTitle(e models.RawWatchEvent) string {
	if e.MediaType != models.MediaTypeEpisode || e.SeriesTitle == "" {
		return e.Title
	}
	if e.SeasonNumber != nil && e.EpisodeNumber != nil {
		key := models.EpisodeKey{Season: *e.SeasonNumber, Episode: *e.EpisodeNumber}
		return fmt.Sprintf("%s %s - %s", e.SeriesTitle, key.Display(), e.Title)
	}
	return e.SeriesTitle + " - " + e.Title
}

type historyView struct {
	ID              int64     `json:"history_id"`
	Title           string    `json:"title"`
	MediaType       string    `json:"media_type"`
	User            string    `json:"user"`
	WatchedAt       time.Time `json:"watched_at"`
	FullyWatched    bool      `json:"fully_watched"`
	PercentComplete int       `json:"percent_complete"`
	Platform        string    `json:"platform,omitempty"`
	RatingKey       string    `json:"rating_key"`
}

func newHistoryListCommand(ctx *commandContext) *cobra.Command {
	var (
		username  string
		mediaType string
		watched   bool
		limit     int
		output    string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent watch history records",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateOutput(output); err != nil {
				return err
			}
			mt, err := parseMediaType(mediaType)
			if err != nil {
				return err
			}
			a, err := ctx.ensureApp()
			if err != nil {
				return err
			}

			events, err := a.tautulli.GetHistory(cmd.Context(), tautulli.HistoryQuery{
				Limit:       limit,
				MediaType:   mt,
				User:        username,
				WatchedOnly: watched,
			})
			if err != nil {
				return err
			}

			if output == outputJSON {
				views := make([]historyView, 0, len(events))
				for _, e := range events {
					views = append(views, historyView{
						ID:              e.HistoryID,
						Title:           historyTitle(e),
						MediaType:       string(e.MediaType),
						User:            e.User,
						WatchedAt:       e.WatchedAt,
						FullyWatched:    e.FullyWatched(),
						PercentComplete: e.PercentComplete,
						Platform:        e.Platform,
						RatingKey:       e.RatingKey,
					})
				}
				return writeJSON(cmd, views)
			}

			rows := make([][]string, 0, len(events))
			for _, e := range events {
				rows = append(rows, []string{
					e.WatchedAt.Local().Format("2006-01-02 15:04"),
					e.User,
					historyTitle(e),
					string(e.MediaType),
					fmt.Sprintf("%d%%", e.PercentComplete),
					yesNo(e.FullyWatched()),
				})
			}
			headers := []string{"Watched", "User", "Title", "Type", "Progress", "Complete"}
			aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, rows, aligns))
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "Only records of this user")
	cmd.Flags().StringVar(&mediaType, "media-type", "", "Only movie or episode records")
	cmd.Flags().BoolVar(&watched, "watched", false, "Only fully watched records")
	cmd.Flags().IntVar(&limit, "limit", 50, "Show at most this many records")
	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "Output format (table or json)")

	return cmd
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
