package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/timshannon/bolthold"
	"go.etcd.io/bbolt"
)

// Entry is one cached value persisted in the bolt store
type Entry struct {
	Key      string `boltholdKey:"Key"`
	Category string `boltholdIndex:"Category"`
	Payload  []byte
	StoredAt time.Time
}

// BoltLayer persists entries on disk so they survive across commands
type BoltLayer struct {
	store    *bolthold.Store
	path     string
	ttls     map[Category]time.Duration
	counters *counters
	logger   *logrus.Logger
	now      func() time.Time
}

// NewBoltLayer opens (or creates) the cache database under dir
func NewBoltLayer(dir string, ttls map[Category]time.Duration, logger *logrus.Logger) (*BoltLayer, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	path := filepath.Join(dir, "cache.db")

	store, err := bolthold.Open(path, 0600, &bolthold.Options{
		Options: &bbolt.Options{
			Timeout: 1 * time.Second,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	return &BoltLayer{
		store:    store,
		path:     path,
		ttls:     mergeTTLs(ttls),
		counters: newCounters(),
		logger:   logger,
		now:      time.Now,
	}, nil
}

// GetOrCompute implements Layer. Expired entries are treated as misses and
// overwritten by the recomputed value.
func (b *BoltLayer) GetOrCompute(ctx context.Context, category Category, key string, compute ComputeFunc, out any) error {
	if err := validCategory(category); err != nil {
		return err
	}
	fullKey := Key(category, key)

	var entry Entry
	err := b.store.Get(fullKey, &entry)
	switch {
	case err == nil && b.now().Sub(entry.StoredAt) < b.ttls[category]:
		b.counters.hit(category)
		return decode(entry.Payload, out)
	case err != nil && !errors.Is(err, bolthold.ErrNotFound):
		b.logger.WithError(err).WithField("key", fullKey).Warn("Failed to read cache entry")
	}
	b.counters.miss(category)

	value, err := compute(ctx)
	if err != nil {
		return err
	}
	payload, err := encode(value)
	if err != nil {
		return err
	}

	entry = Entry{
		Key:      fullKey,
		Category: string(category),
		Payload:  payload,
		StoredAt: b.now(),
	}
	if err := b.store.Upsert(fullKey, &entry); err != nil {
		// the computed value is still usable without persistence
		b.logger.WithError(err).WithField("key", fullKey).Warn("Failed to store cache entry")
	}

	return decode(payload, out)
}

// Stats implements Layer
func (b *BoltLayer) Stats() Stats {
	stats := Stats{Backend: BackendBolt, Path: b.path}
	for _, c := range Categories {
		var entries []Entry
		if err := b.store.Find(&entries, bolthold.Where("Category").Eq(string(c)).Index("Category")); err != nil {
			b.logger.WithError(err).WithField("category", c).Warn("Failed to count cache entries")
		}
		hits, misses := b.counters.get(c)
		stats.Categories = append(stats.Categories, CategoryStats{
			Category: c,
			Entries:  len(entries),
			Hits:     hits,
			Misses:   misses,
			TTL:      b.ttls[c],
		})
	}
	return stats
}

// Clear implements Layer
func (b *BoltLayer) Clear(category Category) error {
	if category == "" {
		if err := b.store.DeleteMatching(&Entry{}, &bolthold.Query{}); err != nil {
			return fmt.Errorf("failed to clear cache: %w", err)
		}
		return nil
	}
	if err := validCategory(category); err != nil {
		return err
	}
	if err := b.store.DeleteMatching(&Entry{}, bolthold.Where("Category").Eq(string(category)).Index("Category")); err != nil {
		return fmt.Errorf("failed to clear %s cache: %w", category, err)
	}
	return nil
}

// Prune removes expired entries and returns how many were deleted
func (b *BoltLayer) Prune() (int, error) {
	now := b.now()
	removed := 0
	for _, c := range Categories {
		cutoff := now.Add(-b.ttls[c])
		query := bolthold.Where("Category").Eq(string(c)).Index("Category").And("StoredAt").Lt(cutoff)

		var expired []Entry
		if err := b.store.Find(&expired, query); err != nil {
			return removed, fmt.Errorf("failed to find expired %s entries: %w", c, err)
		}
		if len(expired) == 0 {
			continue
		}
		if err := b.store.DeleteMatching(&Entry{}, query); err != nil {
			return removed, fmt.Errorf("failed to prune %s entries: %w", c, err)
		}
		removed += len(expired)
	}

	b.logger.WithField("removed", removed).Debug("Pruned expired cache entries")
	return removed, nil
}

// Close implements Layer
func (b *BoltLayer) Close() error {
	return b.store.Close()
}
