package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestDoDecodesAndAuthorizes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))
		assert.Equal(t, "/api/v3/movie", r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("page"))
		json.NewEncoder(w).Encode([]map[string]any{{"id": 1, "title": "Dune"}})
	}))
	defer srv.Close()

	c := New("radarr", srv.URL+"/", HeaderKey("X-Api-Key", "secret"), quietLogger())
	var out []struct {
		ID    int    `json:"id"`
		Title string `json:"title"`
	}
	require.NoError(t, c.Do(context.Background(), http.MethodGet, "/api/v3/movie", url.Values{"page": {"1"}}, nil, &out))
	require.Len(t, out, 1)
	assert.Equal(t, "Dune", out[0].Title)
}

func TestDoQueryKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "k", r.URL.Query().Get("apikey"))
		assert.Equal(t, "get_history", r.URL.Query().Get("cmd"))
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := New("tautulli", srv.URL, QueryKey("apikey", "k"), quietLogger())
	require.NoError(t, c.Do(context.Background(), http.MethodGet, "/api/v2", url.Values{"cmd": {"get_history"}}, nil, nil))
}

func TestDoRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := New("sonarr", srv.URL, nil, quietLogger(), WithRetries(3, time.Millisecond))
	var out struct{ OK bool }
	require.NoError(t, c.Do(context.Background(), http.MethodGet, "/", nil, nil, &out))
	assert.True(t, out.OK)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestDoDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "missing", http.StatusNotFound)
	}))
	defer srv.Close()

	c := New("sonarr", srv.URL, nil, quietLogger(), WithRetries(3, time.Millisecond))
	err := c.Do(context.Background(), http.MethodGet, "/api/v3/tag/9", nil, nil, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestDoDoesNotRetryWrites(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New("radarr", srv.URL, nil, quietLogger(), WithRetries(3, time.Millisecond))
	err := c.Do(context.Background(), http.MethodDelete, "/api/v3/movie/1", nil, nil, nil)
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestDoSendsJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, false, body["monitored"])
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := New("sonarr", srv.URL, nil, quietLogger())
	require.NoError(t, c.Do(context.Background(), http.MethodPut, "/api/v3/episode/monitor", nil, map[string]any{"monitored": false}, nil))
}
