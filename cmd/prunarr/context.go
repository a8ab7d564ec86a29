package main

import (
	"fmt"
	"strings"
	"sync"

	"github.com/amaumene/prunarr/internal/cache"
	"github.com/amaumene/prunarr/internal/config"
	"github.com/amaumene/prunarr/internal/controllers"
	"github.com/amaumene/prunarr/internal/services/radarr"
	"github.com/amaumene/prunarr/internal/services/sonarr"
	"github.com/amaumene/prunarr/internal/services/tautulli"
	"github.com/amaumene/prunarr/internal/utils"
	"github.com/amaumene/prunarr/internal/watch"
	"github.com/sirupsen/logrus"
)

type globalFlags struct {
	config    string
	debug     bool
	logFormat string
	noCache   bool
}

// app holds everything a command needs once configuration is loaded
type app struct {
	cfg       *config.Config
	logger    *logrus.Logger
	cache     cache.Layer
	cacheErr  error // set when the configured store could not be opened
	tautulli  *tautulli.Client
	protected *utils.ProtectedList

	movies   *controllers.MovieController
	series   *controllers.SeriesController
	cleanup  *controllers.CleanupController
	prefetch *controllers.PrefetchController
}

type commandContext struct {
	flags *globalFlags

	appOnce sync.Once
	app     *app
	appErr  error
}

func newCommandContext(flags *globalFlags) *commandContext {
	return &commandContext{flags: flags}
}

func (c *commandContext) ensureApp() (*app, error) {
	c.appOnce.Do(func() {
		cfg, err := config.Load(strings.TrimSpace(c.flags.config))
		if err != nil {
			c.appErr = fmt.Errorf("failed to load configuration: %w", err)
			return
		}
		c.app, c.appErr = buildApp(cfg, *c.flags)
	})
	return c.app, c.appErr
}

// store returns the cache for commands that manage it directly
func (a *app) store() (cache.Layer, error) {
	if a.cacheErr != nil {
		return nil, fmt.Errorf("cache unavailable: %w", a.cacheErr)
	}
	return a.cache, nil
}

// close releases the cache store if a command opened one
func (c *commandContext) close() error {
	if c.app == nil {
		return nil
	}
	return c.app.cache.Close()
}

func buildApp(cfg *config.Config, flags globalFlags) (*app, error) {
	level := cfg.LogLevel
	if flags.debug {
		level = "debug"
	}
	format := cfg.LogFormat
	if flags.logFormat != "" {
		format = flags.logFormat
	}
	logger := utils.NewLogger(level, format)
	logger.WithField("config_dir", cfg.ConfigDir).Debug("Configuration loaded")

	opts := cfg.CacheOptions()
	if flags.noCache {
		opts.Enabled = false
	}
	layer, cacheErr := cache.New(opts, logger)
	if cacheErr != nil {
		// usually a serve process holding the bolt store
		logger.WithError(cacheErr).WithField("dir", opts.Dir).Warn("Failed to open cache, continuing without it")
		layer = cache.NewNopLayer()
	}

	protected, err := utils.LoadProtectedList(cfg.ProtectedFile)
	if err != nil {
		logger.WithError(err).Warn("Failed to load protected list, continuing without it")
		protected = utils.NewProtectedList()
	}

	tags, err := watch.NewTagResolver(cfg.UserTagRegex, logger)
	if err != nil {
		layer.Close()
		return nil, err
	}

	radarrClient := radarr.NewClient(cfg, logger)
	sonarrClient := sonarr.NewClient(cfg, logger)
	tautulliClient := tautulli.NewClient(cfg, logger)

	sources := controllers.Sources{
		Movies:  radarrClient,
		Series:  sonarrClient,
		History: tautulliClient,
		Cache:   layer,
	}
	engine := watch.NewEngine(logger)

	return &app{
		cfg:       cfg,
		logger:    logger,
		cache:     layer,
		cacheErr:  cacheErr,
		tautulli:  tautulliClient,
		protected: protected,
		movies:    controllers.NewMovieController(sources, tags, engine, logger),
		series:    controllers.NewSeriesController(sources, tags, engine, logger),
		cleanup:   controllers.NewCleanupController(radarrClient, sonarrClient, protected, logger),
		prefetch:  controllers.NewPrefetchController(sources, logger),
	}, nil
}
