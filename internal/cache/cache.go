// Package cache memoizes collaborator responses by category. Callers go
// through GetOrCompute and never assume an entry is present: a miss simply
// runs the compute function.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Category groups cached values that share a TTL
type Category string

const (
	CategoryMovies   Category = "movies"
	CategorySeries   Category = "series"
	CategoryHistory  Category = "history"
	CategoryTags     Category = "tags"
	CategoryMetadata Category = "metadata"
	CategoryEpisodes Category = "episodes"
	CategoryFiles    Category = "files"
)

// Categories lists every category in display order
var Categories = []Category{
	CategoryMovies, CategorySeries, CategoryHistory, CategoryTags,
	CategoryMetadata, CategoryEpisodes, CategoryFiles,
}

// DefaultTTLs are used for categories missing from the configuration
var DefaultTTLs = map[Category]time.Duration{
	CategoryMovies:   time.Hour,
	CategorySeries:   time.Hour,
	CategoryHistory:  5 * time.Minute,
	CategoryTags:     24 * time.Hour,
	CategoryMetadata: 24 * time.Hour,
	CategoryEpisodes: time.Hour,
	CategoryFiles:    time.Hour,
}

// ErrUnknownCategory is returned for a category outside Categories
var ErrUnknownCategory = errors.New("unknown cache category")

// ComputeFunc produces a value on a cache miss
type ComputeFunc func(ctx context.Context) (any, error)

// Layer is a get-or-compute cache shared by all collaborator lookups
type Layer interface {
	// GetOrCompute decodes the cached value for key into out, or runs compute,
	// stores its result and decodes that into out. Compute errors are returned
	// as is and never cached.
	GetOrCompute(ctx context.Context, category Category, key string, compute ComputeFunc, out any) error
	Stats() Stats
	// Clear removes every entry of a category, or everything when category is empty
	Clear(category Category) error
	Close() error
}

// CategoryStats holds per-category counters
type CategoryStats struct {
	Category Category
	Entries  int
	Hits     uint64
	Misses   uint64
	TTL      time.Duration
}

// Stats describes the cache contents and hit rate
type Stats struct {
	Backend    string
	Path       string
	Categories []CategoryStats
}

// Totals sums entries, hits and misses across categories
func (s Stats) Totals() (entries int, hits, misses uint64) {
	for _, c := range s.Categories {
		entries += c.Entries
		hits += c.Hits
		misses += c.Misses
	}
	return entries, hits, misses
}

// ParseCategory validates a category name from user input
func ParseCategory(s string) (Category, error) {
	for _, c := range Categories {
		if string(c) == strings.ToLower(s) {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
}

// Key joins key parts with ':' so callers build keys consistently
func Key(parts ...any) string {
	strs := make([]string, len(parts))
	for i, p := range parts {
		strs[i] = fmt.Sprint(p)
	}
	return strings.Join(strs, ":")
}

// ttlFor returns the configured TTL of a category
func ttlFor(ttls map[Category]time.Duration, c Category) time.Duration {
	if ttl, ok := ttls[c]; ok && ttl > 0 {
		return ttl
	}
	return DefaultTTLs[c]
}

func mergeTTLs(ttls map[Category]time.Duration) map[Category]time.Duration {
	merged := make(map[Category]time.Duration, len(Categories))
	for _, c := range Categories {
		merged[c] = ttlFor(ttls, c)
	}
	return merged
}

func validCategory(c Category) error {
	if _, ok := DefaultTTLs[c]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownCategory, c)
	}
	return nil
}

// encode marshals a computed value so every reader gets its own copy
func encode(v any) ([]byte, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode cache value: %w", err)
	}
	return payload, nil
}

func decode(payload []byte, out any) error {
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("failed to decode cache value: %w", err)
	}
	return nil
}

// Backend names of the supported stores
const (
	BackendBolt   = "bolt"
	BackendMemory = "memory"
)

// Options selects and configures the cache backend
type Options struct {
	Enabled bool
	Backend string // BackendBolt or BackendMemory; empty means bolt
	Dir     string // bolt store location; empty keeps entries in memory
	TTLs    map[Category]time.Duration
}

// New builds the layer described by opts
func New(opts Options, logger *logrus.Logger) (Layer, error) {
	switch {
	case !opts.Enabled:
		return NewNopLayer(), nil
	case opts.Backend == BackendMemory || opts.Dir == "":
		return NewMemoryLayer(opts.TTLs, logger), nil
	case opts.Backend != "" && opts.Backend != BackendBolt:
		return nil, fmt.Errorf("unknown cache backend %q", opts.Backend)
	}

	layer, err := NewBoltLayer(opts.Dir, opts.TTLs, logger)
	if err != nil {
		return nil, err
	}
	return layer, nil
}
