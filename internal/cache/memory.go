package cache

import (
	"context"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

// MemoryLayer keeps entries in process memory for the lifetime of one command
type MemoryLayer struct {
	store    *gocache.Cache
	ttls     map[Category]time.Duration
	counters *counters
	logger   *logrus.Logger
}

// NewMemoryLayer creates an in-memory cache with per-category TTLs
func NewMemoryLayer(ttls map[Category]time.Duration, logger *logrus.Logger) *MemoryLayer {
	return &MemoryLayer{
		store:    gocache.New(time.Hour, 10*time.Minute),
		ttls:     mergeTTLs(ttls),
		counters: newCounters(),
		logger:   logger,
	}
}

// GetOrCompute implements Layer
func (m *MemoryLayer) GetOrCompute(ctx context.Context, category Category, key string, compute ComputeFunc, out any) error {
	if err := validCategory(category); err != nil {
		return err
	}
	fullKey := Key(category, key)

	if cached, ok := m.store.Get(fullKey); ok {
		if payload, ok := cached.([]byte); ok {
			m.counters.hit(category)
			return decode(payload, out)
		}
	}
	m.counters.miss(category)

	value, err := compute(ctx)
	if err != nil {
		return err
	}
	payload, err := encode(value)
	if err != nil {
		return err
	}
	m.store.Set(fullKey, payload, m.ttls[category])

	m.logger.WithFields(logrus.Fields{
		"category": category,
		"key":      key,
	}).Debug("Cached value")

	return decode(payload, out)
}

// Stats implements Layer
func (m *MemoryLayer) Stats() Stats {
	entries := make(map[Category]int)
	for k := range m.store.Items() {
		if i := strings.IndexByte(k, ':'); i > 0 {
			entries[Category(k[:i])]++
		}
	}

	stats := Stats{Backend: BackendMemory}
	for _, c := range Categories {
		hits, misses := m.counters.get(c)
		stats.Categories = append(stats.Categories, CategoryStats{
			Category: c,
			Entries:  entries[c],
			Hits:     hits,
			Misses:   misses,
			TTL:      m.ttls[c],
		})
	}
	return stats
}

// Clear implements Layer
func (m *MemoryLayer) Clear(category Category) error {
	if category == "" {
		m.store.Flush()
		return nil
	}
	if err := validCategory(category); err != nil {
		return err
	}
	prefix := string(category) + ":"
	for k := range m.store.Items() {
		if strings.HasPrefix(k, prefix) {
			m.store.Delete(k)
		}
	}
	return nil
}

// Close implements Layer
func (m *MemoryLayer) Close() error {
	return nil
}
