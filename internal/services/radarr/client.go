package radarr

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

// Client handles communication with the Radarr v3 API
type Client struct {
	api    *apiclient.Client
	logger *logrus.Logger
}

// NewClient creates a new Radarr API client
func NewClient(cfg *config.Config, logger *logrus.Logger, opts ...apiclient.Option) *Client {
	return &Client{
		api:    apiclient.New("radarr", cfg.RadarrURL, apiclient.HeaderKey("X-Api-Key", cfg.RadarrAPIKey), logger, opts...),
		logger: logger,
	}
}

type movieResource struct {
	ID         int       `json:"id"`
	Title      string    `json:"title"`
	Year       int       `json:"year"`
	IMDbID     string    `json:"imdbId"`
	Tags       []int     `json:"tags"`
	HasFile    bool      `json:"hasFile"`
	SizeOnDisk int64     `json:"sizeOnDisk"`
	Added      time.Time `json:"added"`
	Monitored  bool      `json:"monitored"`
	MovieFile  *struct {
		Size int64 `json:"size"`
	} `json:"movieFile,omitempty"`
}

func (m movieResource) toModel() models.Movie {
	size := m.SizeOnDisk
	if size == 0 && m.MovieFile != nil {
		size = m.MovieFile.Size
	}
	return models.Movie{
		ID:        m.ID,
		Title:     m.Title,
		Year:      m.Year,
		IMDbID:    m.IMDbID,
		TagIDs:    m.Tags,
		HasFile:   m.HasFile,
		FileSize:  size,
		Added:     m.Added,
		Monitored: m.Monitored,
	}
}

// ListMovies retrieves every movie in the library. Requesters are resolved
// later from the tag ids.
func (c *Client) ListMovies(ctx context.Context) ([]models.Movie, error) {
	var resources []movieResource
	if err := c.api.Do(ctx, http.MethodGet, "/api/v3/movie", nil, nil, &resources); err != nil {
		return nil, fmt.Errorf("failed to list movies: %w", err)
	}

	movies := make([]models.Movie, 0, len(resources))
	for _, r := range resources {
		movies = append(movies, r.toModel())
	}
	return movies, nil
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

// DeleteMovie removes a movie, optionally deleting its files and adding an
// import exclusion so it is not re-added by lists
func (c *Client) DeleteMovie(ctx context.Context, id int, deleteFiles, addExclusion bool) error {
	path := fmt.Sprintf("/api/v3/movie/%d", id)
	query := url.Values{
		"deleteFiles":        {strconv.FormatBool(deleteFiles)},
		"addImportExclusion": {strconv.FormatBool(addExclusion)},
	}
	if err := c.api.Do(ctx, http.MethodDelete, path, query, nil, nil); err != nil {
		return fmt.Errorf("failed to delete movie %d: %w", id, err)
	}

	c.logger.WithFields(logrus.Fields{
		"movie_id":     id,
		"delete_files": deleteFiles,
	}).Info("Deleted movie from Radarr")
	return nil
}
