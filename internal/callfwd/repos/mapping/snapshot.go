package mapping

import (
	"math"
	"sort"
	"sync/atomic"

	"github.com/haukened/callfwd/internal/callfwd/domain"
)

// dead marks a snapshot whose storage has been released. Any late observer
// increment leaves the counter far below zero, so it can never read as idle.
const dead = math.MinInt64 / 2

// batchSortThreshold is the batch size from which LookupBatch visits keys in
// ascending order instead of issuing independent searches.
const batchSortThreshold = 32

// Snapshot is an immutable, sorted, point-in-time view of one domain's records.
// Keys are strictly increasing. Once published a Snapshot never changes until it
// is reclaimed, which only happens after it was retired and every Handle observing
// it was released.
type Snapshot[V any] struct {
	domain     domain.DomainID
	keys       []uint64
	values     []V
	meta       domain.Metadata
	filter     KeyFilter
	byValue    []uint32       // record indices ordered by valueKey, then key
	valueKey   func(V) uint64 // nil when the snapshot has no secondary index
	reach      []uint64       // running maximum of the builder's reach function; nil when absent
	generation uint64         // assigned once by Slot.Publish before the pointer is stored

	observers atomic.Int64
	retired   atomic.Bool
	reclaimed atomic.Bool
}

func newSnapshot[V any](id domain.DomainID, keys []uint64, values []V, meta domain.Metadata, filter KeyFilter) *Snapshot[V] {
	return &Snapshot[V]{domain: id, keys: keys, values: values, meta: meta, filter: filter}
}

// Domain returns the domain the snapshot was built for.
func (s *Snapshot[V]) Domain() domain.DomainID { return s.domain }

// Generation returns the publish generation, or 0 if never published.
func (s *Snapshot[V]) Generation() uint64 { return s.generation }

// Size returns the number of records.
func (s *Snapshot[V]) Size() int { return len(s.keys) }

// Metadata returns a copy of the attached metadata bag.
func (s *Snapshot[V]) Metadata() domain.Metadata { return s.meta.Clone() }

// lowerBound returns the index of the first element of keys that is >= key.
func lowerBound(keys []uint64, key uint64) int {
	lo, hi := 0, len(keys)
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if keys[mid] < key {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// Lookup returns the payload stored for key. It does not allocate.
func (s *Snapshot[V]) Lookup(key uint64) (V, bool) {
	if i, ok := s.position(key); ok {
		return s.values[i], true
	}
	var zero V
	return zero, false
}

// position returns the index of key in the sorted key array.
func (s *Snapshot[V]) position(key uint64) (int, bool) {
	if s.filter != nil && !s.filter.MightContain(key) {
		return 0, false
	}
	i := lowerBound(s.keys, key)
	return i, i < len(s.keys) && s.keys[i] == key
}

// LookupBatch resolves every keys[i] into out[i] and found[i]. The result is
// identical to calling Lookup per key. out and found must be at least len(keys)
// long. Large batches are resolved in ascending key order so the searches walk
// the key array forward.
func (s *Snapshot[V]) LookupBatch(keys []uint64, out []V, found []bool) {
	_ = out[:len(keys)]
	_ = found[:len(keys)]
	if len(keys) < batchSortThreshold {
		for i, k := range keys {
			out[i], found[i] = s.Lookup(k)
		}
		return
	}

	order := make([]int, len(keys))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return keys[order[a]] < keys[order[b]] })

	var zero V
	lo := 0
	for _, idx := range order {
		k := keys[idx]
		if s.filter != nil && !s.filter.MightContain(k) {
			out[idx], found[idx] = zero, false
			continue
		}
		lo += lowerBound(s.keys[lo:], k)
		if lo < len(s.keys) && s.keys[lo] == k {
			out[idx], found[idx] = s.values[lo], true
		} else {
			out[idx], found[idx] = zero, false
		}
	}
}

// Floor returns the greatest record whose key is <= key.
func (s *Snapshot[V]) Floor(key uint64) (uint64, V, bool) {
	var zero V
	if key == math.MaxUint64 {
		if n := len(s.keys); n > 0 {
			return s.keys[n-1], s.values[n-1], true
		}
		return 0, zero, false
	}
	i := lowerBound(s.keys, key+1)
	if i == 0 {
		return 0, zero, false
	}
	return s.keys[i-1], s.values[i-1], true
}

// Reach returns the largest reach value among the records whose key is <= key.
// It reports false when no such record exists or the snapshot was built without
// a reach index.
func (s *Snapshot[V]) Reach(key uint64) (uint64, bool) {
	if s.reach == nil {
		return 0, false
	}
	i := len(s.keys)
	if key != math.MaxUint64 {
		i = lowerBound(s.keys, key+1)
	}
	if i == 0 {
		return 0, false
	}
	return s.reach[i-1], true
}

// Range returns a cursor over records with low <= key < high in ascending order.
// The cursor does not pin the snapshot; callers reading through a Slot should use
// Handle.Range so the cursor keeps the snapshot alive until it is closed.
func (s *Snapshot[V]) Range(low, high uint64) *Cursor[V] {
	if high <= low {
		return &Cursor[V]{snap: s}
	}
	start := lowerBound(s.keys, low)
	end := start + lowerBound(s.keys[start:], high)
	return &Cursor[V]{snap: s, pos: start - 1, end: end}
}

// HasValueIndex reports whether InverseRange is supported.
func (s *Snapshot[V]) HasValueIndex() bool { return s.valueKey != nil }

// InverseRange returns a cursor over records whose payload maps into
// [low, high) under the builder's value index, ordered by that value and then
// by key. Without a value index the cursor is empty.
func (s *Snapshot[V]) InverseRange(low, high uint64) *Cursor[V] {
	if s.valueKey == nil || high <= low {
		return &Cursor[V]{snap: s}
	}
	search := func(target uint64) int {
		lo, hi := 0, len(s.byValue)
		for lo < hi {
			mid := int(uint(lo+hi) >> 1)
			if s.valueKey(s.values[s.byValue[mid]]) < target {
				lo = mid + 1
			} else {
				hi = mid
			}
		}
		return lo
	}
	start := search(low)
	end := search(high)
	return &Cursor[V]{snap: s, pos: start - 1, end: end, perm: s.byValue}
}

// IsReclaimed reports whether the snapshot's storage has been released.
func (s *Snapshot[V]) IsReclaimed() bool { return s.reclaimed.Load() }

// IsRetired reports whether the snapshot has been replaced in its slot.
func (s *Snapshot[V]) IsRetired() bool { return s.retired.Load() }

// Observers returns the number of live handles pinning the snapshot.
func (s *Snapshot[V]) Observers() int64 {
	if n := s.observers.Load(); n > 0 {
		return n
	}
	return 0
}

// tryReclaim releases the storage if nobody observes the snapshot. It succeeds
// at most once.
func (s *Snapshot[V]) tryReclaim() bool {
	if !s.observers.CompareAndSwap(0, dead) {
		return false
	}
	s.keys = nil
	s.values = nil
	s.filter = nil
	s.byValue = nil
	s.reach = nil
	s.reclaimed.Store(true)
	return true
}

func (s *Snapshot[V]) retiredGeneration() (domain.DomainID, uint64) {
	return s.domain, s.generation
}
