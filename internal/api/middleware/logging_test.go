package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestRouteLabel(t *testing.T) {
	assert.Equal(t, "/status", routeLabel("/status"))
	assert.Equal(t, "other", routeLabel("/wp-admin.php"))
}

func TestLoggingKeepsStatus(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	handler := Logging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}), logger)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/run", nil))

	assert.Equal(t, http.StatusConflict, rec.Code)
}
