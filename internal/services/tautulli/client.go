package tautulli

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/amaumene/prunarr/internal/config"
	"github.com/amaumene/prunarr/internal/models"
	"github.com/amaumene/prunarr/internal/services/apiclient"
	"github.com/sirupsen/logrus"
)

// DefaultPageSize is the number of history records requested per page
const DefaultPageSize = 100

// Client handles communication with the Tautulli v2 API
type Client struct {
	api    *apiclient.Client
	logger *logrus.Logger
}

// NewClient creates a new Tautulli API client
func NewClient(cfg *config.Config, logger *logrus.Logger, opts ...apiclient.Option) *Client {
	opts = append([]apiclient.Option{apiclient.WithTimeout(15 * time.Second)}, opts...)
	return &Client{
		api:    apiclient.New("tautulli", cfg.TautulliURL, apiclient.QueryKey("apikey", cfg.TautulliAPIKey), logger, opts...),
		logger: logger,
	}
}

// envelope is the {"response": {"result": ..., "data": ...}} wrapper of every command
type envelope[T any] struct {
	Response struct {
		Result  string `json:"result"`
		Message string `json:"message"`
		Data    T      `json:"data"`
	} `json:"response"`
}

// command runs a Tautulli API command and decodes its data
func command[T any](ctx context.Context, c *Client, cmd string, params url.Values) (T, error) {
	query := url.Values{"cmd": {cmd}}
	for k, v := range params {
		query[k] = v
	}

	var env envelope[T]
	if err := c.api.Do(ctx, http.MethodGet, "/api/v2", query, nil, &env); err != nil {
		return env.Response.Data, err
	}
	if env.Response.Result != "" && env.Response.Result != "success" {
		return env.Response.Data, fmt.Errorf("tautulli %s failed: %s", cmd, env.Response.Message)
	}
	return env.Response.Data, nil
}

type historyRecord struct {
	ID                   flexInt    `json:"id"`
	Date                 flexInt    `json:"date"`
	Stopped              flexInt    `json:"stopped"`
	RatingKey            flexString `json:"rating_key"`
	ParentRatingKey      flexString `json:"parent_rating_key"`
	GrandparentRatingKey flexString `json:"grandparent_rating_key"`
	Title                string     `json:"title"`
	GrandparentTitle     string     `json:"grandparent_title"`
	FriendlyName         string     `json:"friendly_name"`
	UserID               flexInt    `json:"user_id"`
	WatchedStatus        flexFloat  `json:"watched_status"`
	MediaType            string     `json:"media_type"`
	ParentMediaIndex     flexInt    `json:"parent_media_index"`
	MediaIndex           flexInt    `json:"media_index"`
	Year                 flexInt    `json:"year"`
	Duration             flexInt    `json:"duration"`
	PercentComplete      flexInt    `json:"percent_complete"`
	Platform             string     `json:"platform"`
	Player               string     `json:"player"`
}

func (r historyRecord) toModel() models.RawWatchEvent {
	event := models.RawWatchEvent{
		HistoryID:            int64(r.ID.Value),
		RatingKey:            string(r.RatingKey),
		ParentRatingKey:      string(r.ParentRatingKey),
		GrandparentRatingKey: string(r.GrandparentRatingKey),
		Title:                r.Title,
		SeriesTitle:          r.GrandparentTitle,
		User:                 r.FriendlyName,
		UserID:               r.UserID.Value,
		WatchedStatus:        float64(r.WatchedStatus),
		MediaType:            models.MediaType(r.MediaType),
		Year:                 r.Year.Value,
		Duration:             r.Duration.Value,
		PercentComplete:      r.PercentComplete.Value,
		Platform:             r.Platform,
		Player:               r.Player,
	}
	if r.Date.Valid {
		event.WatchedAt = time.Unix(int64(r.Date.Value), 0).UTC()
	}
	if r.Stopped.Valid {
		event.Stopped = time.Unix(int64(r.Stopped.Value), 0).UTC()
	}
	if r.ParentMediaIndex.Valid {
		season := r.ParentMediaIndex.Value
		event.SeasonNumber = &season
	}
	if r.MediaIndex.Valid {
		episode := r.MediaIndex.Value
		event.EpisodeNumber = &episode
	}
	return event
}

// HistoryQuery filters a history fetch. Zero values disable a filter.
type HistoryQuery struct {
	PageSize    int
	Limit       int
	OrderColumn string
	OrderDir    string
	MediaType   models.MediaType
	User        string // friendly name
	UserID      int
	WatchedOnly bool
}

// GetHistory pages through the watch history, newest first by default.
// Paging stops at an empty or short page, or once Limit records are collected.
func (c *Client) GetHistory(ctx context.Context, q HistoryQuery) ([]models.RawWatchEvent, error) {
	pageSize := q.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	orderColumn, orderDir := q.OrderColumn, q.OrderDir
	if orderColumn == "" {
		orderColumn = "date"
	}
	if orderDir == "" {
		orderDir = "desc"
	}

	var events []models.RawWatchEvent
	collected := 0
	start := 0
	for {
		length := pageSize
		if q.Limit > 0 && q.Limit-collected < length {
			length = q.Limit - collected
		}

		params := url.Values{
			"length":       {strconv.Itoa(length)},
			"start":        {strconv.Itoa(start)},
			"order_column": {orderColumn},
			"order_dir":    {orderDir},
		}
		page, err := command[struct {
			Data []historyRecord `json:"data"`
		}](ctx, c, "get_history", params)
		if err != nil {
			return nil, fmt.Errorf("failed to get history page at %d: %w", start, err)
		}
		if len(page.Data) == 0 {
			break
		}

		collected += len(page.Data)
		for _, r := range page.Data {
			event := r.toModel()
			if q.matches(event) {
				events = append(events, event)
			}
		}

		if q.Limit > 0 && collected >= q.Limit {
			break
		}
		if len(page.Data) < length {
			break
		}
		start += length
	}

	c.logger.WithFields(logrus.Fields{
		"records": collected,
		"kept":    len(events),
	}).Debug("Fetched Tautulli history")

	return events, nil
}

func (q HistoryQuery) matches(e models.RawWatchEvent) bool {
	switch {
	case q.WatchedOnly && !e.FullyWatched():
		return false
	case q.MediaType != "" && e.MediaType != q.MediaType:
		return false
	case q.User != "" && e.User != q.User:
		return false
	case q.UserID != 0 && e.UserID != q.UserID:
		return false
	}
	return true
}

// GetCompletedHistory returns the fully watched records of one media type
func (c *Client) GetCompletedHistory(ctx context.Context, mediaType models.MediaType) ([]models.RawWatchEvent, error) {
	return c.GetHistory(ctx, HistoryQuery{MediaType: mediaType, WatchedOnly: true})
}

// Metadata is the subset of get_metadata used for identity resolution
type Metadata struct {
	Title     string   `json:"title"`
	MediaType string   `json:"media_type"`
	Summary   string   `json:"summary"`
	Guids     []string `json:"guids"`
}

// GetMetadata retrieves metadata, including external id guids, for a rating key
func (c *Client) GetMetadata(ctx context.Context, ratingKey string) (Metadata, error) {
	meta, err := command[Metadata](ctx, c, "get_metadata", url.Values{"rating_key": {ratingKey}})
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to get metadata for %s: %w", ratingKey, err)
	}
	return meta, nil
}

// GetGuids returns only the external id guids of a rating key
func (c *Client) GetGuids(ctx context.Context, ratingKey string) ([]string, error) {
	meta, err := c.GetMetadata(ctx, ratingKey)
	if err != nil {
		return nil, err
	}
	return meta.Guids, nil
}
