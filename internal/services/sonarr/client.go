package sonarr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/amaumene/prunarr/internal/config"
	"github.com/amaumene/prunarr/internal/models"
	"github.com/amaumene/prunarr/internal/services/apiclient"
	"github.com/sirupsen/logrus"
)

// ErrNotFound is returned when Sonarr has no such resource
var ErrNotFound = apiclient.ErrNotFound

// Client handles communication with the Sonarr v3 API
type Client struct {
	api    *apiclient.Client
	logger *logrus.Logger
}

// NewClient creates a new Sonarr API client
func NewClient(cfg *config.Config, logger *logrus.Logger, opts ...apiclient.Option) *Client {
	return &Client{
		api:    apiclient.New("sonarr", cfg.SonarrURL, apiclient.HeaderKey("X-Api-Key", cfg.SonarrAPIKey), logger, opts...),
		logger: logger,
	}
}

type statistics struct {
	EpisodeCount      int   `json:"episodeCount"`
	EpisodeFileCount  int   `json:"episodeFileCount"`
	TotalEpisodeCount int   `json:"totalEpisodeCount"`
	SizeOnDisk        int64 `json:"sizeOnDisk"`
}

type seriesResource struct {
	ID        int       `json:"id"`
	Title     string    `json:"title"`
	Year      int       `json:"year"`
	TVDbID    int       `json:"tvdbId"`
	IMDbID    string    `json:"imdbId"`
	Tags      []int     `json:"tags"`
	Status    string    `json:"status"`
	Monitored bool      `json:"monitored"`
	Added     time.Time `json:"added"`
	Seasons   []struct {
		SeasonNumber int         `json:"seasonNumber"`
		Monitored    bool        `json:"monitored"`
		Statistics   *statistics `json:"statistics"`
	} `json:"seasons"`
	Statistics *statistics `json:"statistics"`
}

func (r seriesResource) toModel() models.Series {
	s := models.Series{
		ID:        r.ID,
		Title:     r.Title,
		Year:      r.Year,
		IMDbID:    r.IMDbID,
		TagIDs:    r.Tags,
		Status:    r.Status,
		Monitored: r.Monitored,
		Added:     r.Added,
	}
	if r.TVDbID > 0 {
		s.TVDbID = strconv.Itoa(r.TVDbID)
	}
	if st := r.Statistics; st != nil {
		s.Stats = models.SeriesStatistics{
			EpisodeCount:      st.EpisodeCount,
			EpisodeFileCount:  st.EpisodeFileCount,
			TotalEpisodeCount: st.TotalEpisodeCount,
			SizeOnDisk:        st.SizeOnDisk,
		}
	}
	for _, season := range r.Seasons {
		ms := models.Season{Number: season.SeasonNumber, Monitored: season.Monitored}
		if st := season.Statistics; st != nil {
			ms.Stats = models.SeasonStatistics{
				EpisodeCount:      st.EpisodeCount,
				EpisodeFileCount:  st.EpisodeFileCount,
				TotalEpisodeCount: st.TotalEpisodeCount,
				SizeOnDisk:        st.SizeOnDisk,
			}
		}
		s.Seasons = append(s.Seasons, ms)
	}
	sort.Slice(s.Seasons, func(i, j int) bool { return s.Seasons[i].Number < s.Seasons[j].Number })
	return s
}

// ListSeries retrieves every series in the library
func (c *Client) ListSeries(ctx context.Context) ([]models.Series, error) {
	var resources []seriesResource
	if err := c.api.Do(ctx, http.MethodGet, "/api/v3/series", nil, nil, &resources); err != nil {
		return nil, fmt.Errorf("failed to list series: %w", err)
	}

	series := make([]models.Series, 0, len(resources))
	for _, r := range resources {
		series = append(series, r.toModel())
	}
	return series, nil
}

// GetTag retrieves a single tag
func (c *Client) GetTag(ctx context.Context, id int) (models.Tag, error) {
	var tag models.Tag
	path := fmt.Sprintf("/api/v3/tag/%d", id)
	if err := c.api.Do(ctx, http.MethodGet, path, nil, nil, &tag); err != nil {
		return models.Tag{}, fmt.Errorf("failed to get tag %d: %w", id, err)
	}
	return tag, nil
}

type episodeResource struct {
	ID            int    `json:"id"`
	SeriesID      int    `json:"seriesId"`
	SeasonNumber  int    `json:"seasonNumber"`
	EpisodeNumber int    `json:"episodeNumber"`
	Title         string `json:"title"`
	HasFile       bool   `json:"hasFile"`
	EpisodeFileID int    `json:"episodeFileId"`
	AirDate       string `json:"airDate"`
	Runtime       int    `json:"runtime"`
	Monitored     bool   `json:"monitored"`
}

// ListEpisodes retrieves the episodes of a series ordered by season and number
func (c *Client) ListEpisodes(ctx context.Context, seriesID int) ([]models.Episode, error) {
	query := url.Values{
		"seriesId":      {strconv.Itoa(seriesID)},
		"includeImages": {"false"},
	}
	var resources []episodeResource
	if err := c.api.Do(ctx, http.MethodGet, "/api/v3/episode", query, nil, &resources); err != nil {
		return nil, fmt.Errorf("failed to list episodes for series %d: %w", seriesID, err)
	}

	episodes := make([]models.Episode, 0, len(resources))
	for _, r := range resources {
		ep := models.Episode{
			ID:        r.ID,
			SeriesID:  r.SeriesID,
			Season:    r.SeasonNumber,
			Number:    r.EpisodeNumber,
			Title:     r.Title,
			HasFile:   r.HasFile,
			AirDate:   r.AirDate,
			Runtime:   r.Runtime,
			Monitored: r.Monitored,
		}
		if r.HasFile {
			ep.FileID = r.EpisodeFileID
		}
		episodes = append(episodes, ep)
	}
	sort.Slice(episodes, func(i, j int) bool { return episodes[i].Key().Less(episodes[j].Key()) })
	return episodes, nil
}

type episodeFileResource struct {
	ID           int    `json:"id"`
	SeriesID     int    `json:"seriesId"`
	SeasonNumber int    `json:"seasonNumber"`
	Size         int64  `json:"size"`
	Path         string `json:"path"`
	RelativePath string `json:"relativePath"`
	Episodes     []struct {
		ID int `json:"id"`
	} `json:"episodes"`
}

// ListEpisodeFiles retrieves the files of a series. Bundled episode ids are
// only filled when Sonarr includes them; callers also join on the episodes'
// file ids.
func (c *Client) ListEpisodeFiles(ctx context.Context, seriesID int) ([]models.EpisodeFile, error) {
	query := url.Values{"seriesId": {strconv.Itoa(seriesID)}}
	var resources []episodeFileResource
	if err := c.api.Do(ctx, http.MethodGet, "/api/v3/episodefile", query, nil, &resources); err != nil {
		return nil, fmt.Errorf("failed to list episode files for series %d: %w", seriesID, err)
	}

	files := make([]models.EpisodeFile, 0, len(resources))
	for _, r := range resources {
		f := models.EpisodeFile{
			ID:           r.ID,
			SeriesID:     r.SeriesID,
			SeasonNumber: r.SeasonNumber,
			Size:         r.Size,
			Path:         r.Path,
		}
		if f.Path == "" {
			f.Path = r.RelativePath
		}
		for _, ep := range r.Episodes {
			f.EpisodeIDs = append(f.EpisodeIDs, ep.ID)
		}
		files = append(files, f)
	}
	return files, nil
}

// DeleteSeries removes a series, optionally deleting its files
func (c *Client) DeleteSeries(ctx context.Context, id int, deleteFiles, addExclusion bool) error {
	path := fmt.Sprintf("/api/v3/series/%d", id)
	query := url.Values{
		"deleteFiles":            {strconv.FormatBool(deleteFiles)},
		"addImportListExclusion": {strconv.FormatBool(addExclusion)},
	}
	if err := c.api.Do(ctx, http.MethodDelete, path, query, nil, nil); err != nil {
		return fmt.Errorf("failed to delete series %d: %w", id, err)
	}

	c.logger.WithFields(logrus.Fields{
		"series_id":    id,
		"delete_files": deleteFiles,
	}).Info("Deleted series from Sonarr")
	return nil
}

// DeleteEpisodeFile removes one file from disk. Every episode bundled in the
// file loses its file.
func (c *Client) DeleteEpisodeFile(ctx context.Context, fileID int) error {
	path := fmt.Sprintf("/api/v3/episodefile/%d", fileID)
	if err := c.api.Do(ctx, http.MethodDelete, path, nil, nil, nil); err != nil {
		return fmt.Errorf("failed to delete episode file %d: %w", fileID, err)
	}
	c.logger.WithField("file_id", fileID).Info("Deleted episode file from Sonarr")
	return nil
}

// UnmonitorEpisodes stops Sonarr from downloading the episodes again
func (c *Client) UnmonitorEpisodes(ctx context.Context, episodeIDs []int) error {
	if len(episodeIDs) == 0 {
		return nil
	}
	body := map[string]interface{}{
		"episodeIds": episodeIDs,
		"monitored":  false,
	}
	if err := c.api.Do(ctx, http.MethodPut, "/api/v3/episode/monitor", nil, body, nil); err != nil {
		return fmt.Errorf("failed to unmonitor episodes: %w", err)
	}
	return nil
}

// UnmonitorSeason unmonitors every episode of a season
func (c *Client) UnmonitorSeason(ctx context.Context, seriesID, season int) error {
	episodes, err := c.ListEpisodes(ctx, seriesID)
	if err != nil {
		return err
	}

	var ids []int
	for _, ep := range episodes {
		if ep.Season == season {
			ids = append(ids, ep.ID)
		}
	}
	if len(ids) == 0 {
		c.logger.WithFields(logrus.Fields{
			"series_id": seriesID,
			"season":    season,
		}).Warn("No episodes found for season")
		return nil
	}
	return c.UnmonitorEpisodes(ctx, ids)
}

// SeasonDeletion reports the outcome of DeleteSeasonFiles
type SeasonDeletion struct {
	Deleted    []int
	FreedBytes int64
	Skipped    []int // files that also hold episodes of another season
}

// DeleteSeasonFiles deletes the files of a season. A file bundling episodes
// of several seasons is kept. The season is unmonitored only when every
// deletion succeeded.
func (c *Client) DeleteSeasonFiles(ctx context.Context, seriesID, season int, unmonitor bool) (SeasonDeletion, error) {
	var result SeasonDeletion

	episodes, err := c.ListEpisodes(ctx, seriesID)
	if err != nil {
		return result, err
	}
	files, err := c.ListEpisodeFiles(ctx, seriesID)
	if err != nil {
		return result, err
	}

	seasonsByFile := make(map[int]map[int]bool)
	mark := func(fileID, seasonNumber int) {
		if seasonsByFile[fileID] == nil {
			seasonsByFile[fileID] = make(map[int]bool)
		}
		seasonsByFile[fileID][seasonNumber] = true
	}
	byID := make(map[int]models.Episode, len(episodes))
	for _, ep := range episodes {
		byID[ep.ID] = ep
		if ep.FileID != 0 {
			mark(ep.FileID, ep.Season)
		}
	}
	for _, f := range files {
		for _, id := range f.EpisodeIDs {
			if ep, ok := byID[id]; ok {
				mark(f.ID, ep.Season)
			}
		}
	}

	var errs []error
	for _, f := range files {
		seasons := seasonsByFile[f.ID]
		if !seasons[season] {
			continue
		}
		if len(seasons) > 1 {
			result.Skipped = append(result.Skipped, f.ID)
			continue
		}
		if err := c.DeleteEpisodeFile(ctx, f.ID); err != nil {
			errs = append(errs, err)
			continue
		}
		result.Deleted = append(result.Deleted, f.ID)
		result.FreedBytes += f.Size
	}

	if err := errors.Join(errs...); err != nil {
		return result, err
	}
	if unmonitor {
		if err := c.UnmonitorSeason(ctx, seriesID, season); err != nil {
			return result, err
		}
	}
	return result, nil
}
