package radarr

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/amaumene/prunarr/internal/config"
	"github.com/amaumene/prunarr/internal/services/apiclient"
	"github.com/sirupsen/logrus"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	cfg := &config.Config{RadarrURL: srv.URL, RadarrAPIKey: "radarr-key"}
	return NewClient(cfg, logger, apiclient.WithRetries(0, 0))
}

func TestListMovies(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Api-Key") != "radarr-key" {
			t.Errorf("missing api key header")
		}
		if r.URL.Path != "/api/v3/movie" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`[
			{"id": 1, "title": "Dune", "year": 2021, "imdbId": "tt1160419", "tags": [3, 5],
			 "hasFile": true, "sizeOnDisk": 0, "movieFile": {"size": 1073741824}, "monitored": true},
			{"id": 2, "title": "Solaris", "year": 1972, "imdbId": "tt0069293", "tags": [],
			 "hasFile": false, "sizeOnDisk": 0}
		]`))
	})

	movies, err := c.ListMovies(context.Background())
	if err != nil {
		t.Fatalf("ListMovies() error = %v", err)
	}
	if len(movies) != 2 {
		t.Fatalf("expected 2 movies, got %d", len(movies))
	}
	dune := movies[0]
	if dune.IMDbID != "tt1160419" || !dune.HasFile || dune.FileSize != 1073741824 {
		t.Errorf("unexpected movie %+v", dune)
	}
	if len(dune.TagIDs) != 2 || dune.TagIDs[0] != 3 {
		t.Errorf("unexpected tags %v", dune.TagIDs)
	}
	if dune.Requester != "" {
		t.Errorf("requester is resolved by the caller, got %q", dune.Requester)
	}
}

func TestGetTag(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v3/tag/3":
			w.Write([]byte(`{"id": 3, "label": "42 - alice"}`))
		default:
			http.NotFound(w, r)
		}
	})

	tag, err := c.GetTag(context.Background(), 3)
	if err != nil {
		t.Fatalf("GetTag() error = %v", err)
	}
	if tag.Label != "42 - alice" {
		t.Errorf("Label = %q", tag.Label)
	}

	_, err = c.GetTag(context.Background(), 9)
	if !errors.Is(err, apiclient.ErrNotFound) {
		t.Errorf("GetTag(9) error = %v, want ErrNotFound", err)
	}
}

func TestDeleteMovie(t *testing.T) {
	var gotQuery string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/api/v3/movie/7" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		gotQuery = r.URL.RawQuery
		w.WriteHeader(http.StatusOK)
	})

	if err := c.DeleteMovie(context.Background(), 7, true, false); err != nil {
		t.Fatalf("DeleteMovie() error = %v", err)
	}
	if gotQuery != "addImportExclusion=false&deleteFiles=true" {
		t.Errorf("query = %q", gotQuery)
	}
}
