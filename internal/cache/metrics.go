package cache

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	hitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "prunarr",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Cache lookups served from the cache.",
	}, []string{"category"})

	missesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "prunarr",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Cache lookups that ran the compute function.",
	}, []string{"category"})
)

// counters tracks hits and misses for one layer and mirrors them to prometheus
type counters struct {
	mu     sync.Mutex
	hits   map[Category]uint64
	misses map[Category]uint64
}

func newCounters() *counters {
	return &counters{
		hits:   make(map[Category]uint64),
		misses: make(map[Category]uint64),
	}
}

func (c *counters) hit(category Category) {
	c.mu.Lock()
	c.hits[category]++
	c.mu.Unlock()
	hitsTotal.WithLabelValues(string(category)).Inc()
}

func (c *counters) miss(category Category) {
	c.mu.Lock()
	c.misses[category]++
	c.mu.Unlock()
	missesTotal.WithLabelValues(string(category)).Inc()
}

func (c *counters) get(category Category) (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits[category], c.misses[category]
}
