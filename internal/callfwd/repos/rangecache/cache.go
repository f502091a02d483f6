// Package rangecache memoizes range query results. Entries are keyed by the
// snapshot generation they were computed from, so a commit never serves stale
// results; superseded entries simply age out.
package rangecache

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/haukened/callfwd/internal/callfwd/domain"
)

// Key identifies one range query against one snapshot generation.
type Key struct {
	Domain     domain.DomainID
	Generation uint64
	Low, High  uint64
}

// Stats reports lightweight cache metrics.
// All fields are best-effort snapshots and may be updated concurrently.
type Stats struct {
	Capacity  int    // configured capacity (0 for disabled cache)
	Size      int    // current number of entries
	Hits      uint64 // total cache hits since construction
	Misses    uint64 // total cache misses since construction
	Evictions uint64 // total evictions since construction
}

// Cache stores range results. Callers must not modify returned slices.
type Cache[V any] interface {
	Get(k Key) ([]V, bool)
	Put(k Key, rows []V)
	Len() int
	Purge()
	Stats() Stats
}

type lruCache[V any] struct {
	lru       *lru.Cache[Key, []V]
	capacity  int
	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

// disabledCache always misses.
type disabledCache[V any] struct{}

// New creates a cache with the given capacity. If size <= 0 a disabled cache is
// returned that always misses and tracks no metrics.
func New[V any](size int) (Cache[V], error) {
	if size <= 0 {
		return disabledCache[V]{}, nil
	}
	c := &lruCache[V]{capacity: size}
	inner, err := lru.NewWithEvict(size, func(Key, []V) {
		c.evictions.Add(1)
	})
	if err != nil {
		return nil, err
	}
	c.lru = inner
	return c, nil
}

func (c *lruCache[V]) Get(k Key) ([]V, bool) {
	if rows, ok := c.lru.Get(k); ok {
		c.hits.Add(1)
		return rows, true
	}
	c.misses.Add(1)
	return nil, false
}

func (c *lruCache[V]) Put(k Key, rows []V) { c.lru.Add(k, rows) }

func (c *lruCache[V]) Len() int { return c.lru.Len() }

// Purge clears all entries. Evictions are counted via the eviction callback.
func (c *lruCache[V]) Purge() { c.lru.Purge() }

func (c *lruCache[V]) Stats() Stats {
	return Stats{
		Capacity:  c.capacity,
		Size:      c.lru.Len(),
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}

func (disabledCache[V]) Get(Key) ([]V, bool) { return nil, false }
func (disabledCache[V]) Put(Key, []V)        {}
func (disabledCache[V]) Len() int            { return 0 }
func (disabledCache[V]) Purge()              {}
func (disabledCache[V]) Stats() Stats        { return Stats{} }
