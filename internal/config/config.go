package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/amaumene/prunarr/internal/cache"
	"github.com/amaumene/prunarr/internal/models"
	"github.com/amaumene/prunarr/internal/watch"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// ErrMissingSetting is returned when a required setting is empty
var ErrMissingSetting = errors.New("missing required setting")

// ErrInvalidSetting is returned when a setting has an unusable value
var ErrInvalidSetting = errors.New("invalid setting")

// Config holds all application configuration
type Config struct {
	// Radarr
	RadarrURL    string
	RadarrAPIKey string

	// Sonarr
	SonarrURL    string
	SonarrAPIKey string

	// Tautulli
	TautulliURL    string
	TautulliAPIKey string

	// Requester tags, e.g. "42 - alice"
	UserTagRegex string

	// Removal
	DaysWatched        int    // Minimum days since the requester watched (default: 60)
	RemovalMode        string // series, season or episode (default: series)
	DryRun             bool   // serve only, manual commands use --dry-run
	DeleteFiles        bool
	AddImportExclusion bool

	// Cache
	CacheEnabled bool
	CacheBackend string // bolt or memory
	CacheDir     string
	CacheTTLs    map[cache.Category]time.Duration

	// Server
	ServerPort string
	Schedule   string // cron spec for scheduled removal runs

	// Paths
	ConfigDir     string
	ProtectedFile string // $CONFIG_DIR/protected.txt

	// Logging
	LogLevel  string
	LogFormat string
}

// Load reads configuration from the optional YAML file at path, a .env file
// in the working directory and environment variables, in increasing order of
// precedence.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	// Load .env file if it exists (ignore if not found)
	_ = v.ReadInConfig()

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	v.AutomaticEnv()
	setDefaults(v)

	configDir, err := resolveConfigDir(v.GetString("config_dir"))
	if err != nil {
		return nil, err
	}

	cacheDir := v.GetString("cache_dir")
	if cacheDir == "" {
		cacheDir = filepath.Join(configDir, "cache")
	}

	config := &Config{
		RadarrURL:    strings.TrimSpace(v.GetString("radarr_url")),
		RadarrAPIKey: strings.TrimSpace(v.GetString("radarr_api_key")),

		SonarrURL:    strings.TrimSpace(v.GetString("sonarr_url")),
		SonarrAPIKey: strings.TrimSpace(v.GetString("sonarr_api_key")),

		TautulliURL:    strings.TrimSpace(v.GetString("tautulli_url")),
		TautulliAPIKey: strings.TrimSpace(v.GetString("tautulli_api_key")),

		UserTagRegex: strings.TrimSpace(v.GetString("user_tag_regex")),

		DaysWatched:        v.GetInt("days_watched"),
		RemovalMode:        strings.ToLower(v.GetString("removal_mode")),
		DryRun:             v.GetBool("dry_run"),
		DeleteFiles:        v.GetBool("delete_files"),
		AddImportExclusion: v.GetBool("add_import_exclusion"),

		CacheEnabled: v.GetBool("cache_enabled"),
		CacheBackend: strings.ToLower(v.GetString("cache_backend")),
		CacheDir:     cacheDir,
		CacheTTLs:    make(map[cache.Category]time.Duration),

		ServerPort: v.GetString("server_port"),
		Schedule:   v.GetString("schedule"),

		ConfigDir:     configDir,
		ProtectedFile: filepath.Join(configDir, "protected.txt"),

		LogLevel:  v.GetString("log_level"),
		LogFormat: v.GetString("log_format"),
	}
	for _, c := range cache.Categories {
		config.CacheTTLs[c] = v.GetDuration("cache_ttl_" + string(c))
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("user_tag_regex", watch.DefaultTagPattern)
	v.SetDefault("days_watched", 60)
	v.SetDefault("removal_mode", string(models.GranularitySeries))
	v.SetDefault("dry_run", true)
	v.SetDefault("delete_files", true)
	v.SetDefault("add_import_exclusion", false)
	v.SetDefault("cache_enabled", true)
	v.SetDefault("cache_backend", cache.BackendBolt)
	v.SetDefault("server_port", "8080")
	v.SetDefault("schedule", "0 3 * * *")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	for c, ttl := range cache.DefaultTTLs {
		v.SetDefault("cache_ttl_"+string(c), ttl)
	}
}

func resolveConfigDir(dir string) (string, error) {
	if dir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		return filepath.Join(homeDir, ".config", "prunarr"), nil
	}
	// Convert relative path to absolute path
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path for CONFIG_DIR: %w", err)
	}
	return absPath, nil
}

// Validate checks required settings and normalizes URLs
func (c *Config) Validate() error {
	required := []struct {
		name  string
		value *string
		url   bool
	}{
		{"RADARR_URL", &c.RadarrURL, true},
		{"RADARR_API_KEY", &c.RadarrAPIKey, false},
		{"SONARR_URL", &c.SonarrURL, true},
		{"SONARR_API_KEY", &c.SonarrAPIKey, false},
		{"TAUTULLI_URL", &c.TautulliURL, true},
		{"TAUTULLI_API_KEY", &c.TautulliAPIKey, false},
	}
	for _, r := range required {
		if *r.value == "" {
			return fmt.Errorf("%w: %s", ErrMissingSetting, r.name)
		}
		if !r.url {
			continue
		}
		normalized, err := normalizeURL(*r.value)
		if err != nil {
			return fmt.Errorf("%w: %s %v", ErrInvalidSetting, r.name, err)
		}
		*r.value = normalized
	}

	if _, err := watch.CompileTagPattern(c.UserTagRegex); err != nil {
		return fmt.Errorf("%w: USER_TAG_REGEX: %w", ErrInvalidSetting, err)
	}
	if c.DaysWatched < 0 {
		return fmt.Errorf("%w: DAYS_WATCHED must not be negative", ErrInvalidSetting)
	}
	if _, err := models.ParseGranularity(c.RemovalMode); err != nil {
		return fmt.Errorf("%w: REMOVAL_MODE: %v", ErrInvalidSetting, err)
	}
	if _, err := cron.ParseStandard(c.Schedule); err != nil {
		return fmt.Errorf("%w: SCHEDULE: %v", ErrInvalidSetting, err)
	}
	switch c.CacheBackend {
	case "", cache.BackendBolt, cache.BackendMemory:
	default:
		return fmt.Errorf("%w: CACHE_BACKEND must be %s or %s", ErrInvalidSetting, cache.BackendBolt, cache.BackendMemory)
	}
	return nil
}

// normalizeURL requires an http(s) scheme and strips trailing slashes
func normalizeURL(raw string) (string, error) {
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		return "", fmt.Errorf("must start with http:// or https://")
	}
	return strings.TrimRight(raw, "/"), nil
}

// CacheOptions converts the cache settings for cache.New
func (c *Config) CacheOptions() cache.Options {
	return cache.Options{
		Enabled: c.CacheEnabled,
		Backend: c.CacheBackend,
		Dir:     c.CacheDir,
		TTLs:    c.CacheTTLs,
	}
}
