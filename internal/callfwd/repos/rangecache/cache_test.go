package rangecache

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/callfwd/internal/callfwd/domain"
)

func key(gen, low uint64) Key {
	return Key{Domain: domain.DomainUS, Generation: gen, Low: low, High: low + 1000}
}

func TestCache_HitMissAndPut(t *testing.T) {
	c, err := New[uint64](2)
	require.NoError(t, err)

	_, ok := c.Get(key(1, 0))
	assert.False(t, ok)

	c.Put(key(1, 0), []uint64{1, 2})
	rows, ok := c.Get(key(1, 0))
	assert.True(t, ok)
	assert.Equal(t, []uint64{1, 2}, rows)

	_, ok = c.Get(key(2, 0))
	assert.False(t, ok, "a new generation must miss")

	st := c.Stats()
	assert.Equal(t, Stats{Capacity: 2, Size: 1, Hits: 1, Misses: 2}, st)
}

func TestCache_EvictionAndPurge(t *testing.T) {
	c, err := New[uint64](2)
	require.NoError(t, err)
	c.Put(key(1, 0), nil)
	c.Put(key(1, 1), nil)
	c.Put(key(1, 2), nil)
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, uint64(1), c.Stats().Evictions)

	c.Purge()
	assert.Zero(t, c.Len())
	assert.Equal(t, uint64(3), c.Stats().Evictions)
}

func TestCache_Disabled(t *testing.T) {
	c, err := New[uint64](0)
	require.NoError(t, err)
	c.Put(key(1, 0), []uint64{1})
	_, ok := c.Get(key(1, 0))
	assert.False(t, ok)
	assert.Zero(t, c.Len())
	c.Purge()
	assert.Equal(t, Stats{}, c.Stats())
}

func TestCache_ConcurrentAccess(t *testing.T) {
	c, err := New[uint64](64)
	require.NoError(t, err)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				k := key(uint64(g), uint64(i%100))
				if _, ok := c.Get(k); !ok {
					c.Put(k, []uint64{uint64(i)})
				}
			}
		}(g)
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Len(), 64)
}
