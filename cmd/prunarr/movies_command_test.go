package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend answers the Radarr and Tautulli calls of the movie commands
func fakeBackend(t *testing.T) *httptest.Server {
	t.Helper()
	watched := time.Now().AddDate(0, 0, -75).Unix()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/movie", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[
			{"id": 1, "title": "Dune", "year": 2021, "imdbId": "tt1160419", "tags": [2], "hasFile": true, "sizeOnDisk": 1073741824},
			{"id": 2, "title": "Solaris", "year": 1972, "imdbId": "tt0069293", "tags": [], "hasFile": true, "sizeOnDisk": 1024}
		]`)
	})
	mux.HandleFunc("/api/v3/tag/2", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id": 2, "label": "42 - alice"}`)
	})
	mux.HandleFunc("/api/v2", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("cmd") {
		case "get_history":
			fmt.Fprintf(w, `{"response": {"result": "success", "data": {"data": [
				{"id": 1, "date": %d, "rating_key": "10", "title": "Dune", "friendly_name": "alice",
				 "watched_status": 1, "media_type": "movie"}
			]}}}`, watched)
		case "get_metadata":
			fmt.Fprint(w, `{"response": {"result": "success", "data": {"title": "Dune", "guids": ["imdb://tt1160419"]}}}`)
		default:
			http.Error(w, "unknown command", http.StatusBadRequest)
		}
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func setBackendEnv(t *testing.T, url string) {
	t.Helper()
	for _, service := range []string{"RADARR", "SONARR", "TAUTULLI"} {
		t.Setenv(service+"_URL", url)
		t.Setenv(service+"_API_KEY", "key")
	}
	t.Setenv("CONFIG_DIR", t.TempDir())
	t.Setenv("LOG_LEVEL", "error")
}

func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestMoviesListJSON(t *testing.T) {
	server := fakeBackend(t)
	setBackendEnv(t, server.URL)

	out, err := runCLI(t, "", "--no-cache", "movies", "list", "--include-untagged", "--output", "json")
	require.NoError(t, err)

	var views []movieView
	require.NoError(t, json.Unmarshal([]byte(out), &views))
	require.Len(t, views, 2)

	assert.Equal(t, "Dune", views[0].Title)
	assert.Equal(t, "alice", views[0].Requester)
	assert.Equal(t, "watched", views[0].Status)
	assert.Equal(t, []string{"alice"}, views[0].Watchers)
	require.NotNil(t, views[0].DaysSinceWatched)
	assert.Equal(t, 75, *views[0].DaysSinceWatched)

	assert.Equal(t, "Solaris", views[1].Title)
	assert.Equal(t, "unwatched", views[1].Status)
	assert.Empty(t, views[1].Requester)
}

func TestMoviesRemoveDryRun(t *testing.T) {
	server := fakeBackend(t)
	setBackendEnv(t, server.URL)

	out, err := runCLI(t, "", "--no-cache", "movies", "remove", "--dry-run", "--days-watched", "60")
	require.NoError(t, err)
	assert.Contains(t, out, "Dune")
	assert.NotContains(t, out, "Solaris")
	assert.Contains(t, out, "Dry run: 1 items would be removed")
}

func TestMoviesRemoveAborted(t *testing.T) {
	server := fakeBackend(t)
	setBackendEnv(t, server.URL)

	out, err := runCLI(t, "n\n", "--no-cache", "movies", "remove")
	require.NoError(t, err)
	assert.Contains(t, out, "Aborted")
}

func TestMoviesListRejectsBadSort(t *testing.T) {
	server := fakeBackend(t)
	setBackendEnv(t, server.URL)

	_, err := runCLI(t, "", "--no-cache", "movies", "list", "--sort-by", "rating")
	assert.Error(t, err)
}
