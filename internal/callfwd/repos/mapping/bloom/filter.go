package bloom

import (
	"encoding/binary"
	"sync"

	bitsbloom "github.com/bits-and-blooms/bloom/v3"
)

// filter wraps a bits-and-blooms BloomFilter keyed by 64-bit phone numbers.
// MightContain is safe for concurrent use; Add is serialized and only happens
// while a builder owns the filter.
type filter struct {
	mu sync.Mutex
	bf *bitsbloom.BloomFilter
}

func (f *filter) Add(key uint64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], key)
	f.mu.Lock()
	f.bf.Add(buf[:])
	f.mu.Unlock()
}

func (f *filter) MightContain(key uint64) bool {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], key)
	return f.bf.Test(buf[:])
}

// Cap returns the filter's bit count.
func (f *filter) Cap() uint { return f.bf.Cap() }

// K returns the number of hash functions.
func (f *filter) K() uint { return f.bf.K() }
