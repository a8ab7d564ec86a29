package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/amaumene/prunarr/internal/api/handlers"
	"github.com/amaumene/prunarr/internal/api/middleware"
	"github.com/amaumene/prunarr/internal/cache"
	"github.com/amaumene/prunarr/internal/scheduler"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Server represents the HTTP server
type Server struct {
	server *http.Server
	sched  *scheduler.Scheduler
	cache  cache.Layer
	logger *logrus.Logger
}

// NewServer creates a new HTTP server
func NewServer(port string, sched *scheduler.Scheduler, layer cache.Layer, logger *logrus.Logger) *Server {
	s := &Server{
		sched:  sched,
		cache:  layer,
		logger: logger,
	}

	s.server = &http.Server{
		Addr:         ":" + port,
		Handler:      middleware.Logging(s.Routes(), logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute, // manual runs answer once deletion is over
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Routes builds the request multiplexer
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/health", handlers.NewHealthHandler(s.sched, s.logger))
	mux.Handle("/status", handlers.NewStatusHandler(s.sched, s.cache, s.logger))
	mux.Handle("/api/run", handlers.NewRunHandler(s.sched, s.logger))
	mux.Handle("/metrics", promhttp.Handler())

	return mux
}

// Start starts the HTTP server
func (s *Server) Start(ctx context.Context) error {
	s.logger.WithField("port", s.server.Addr).Info("Starting HTTP server")

	errChan := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}
