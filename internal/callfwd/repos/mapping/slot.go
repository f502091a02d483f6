package mapping

import (
	"errors"
	"sync/atomic"

	"github.com/haukened/callfwd/internal/callfwd/domain"
)

// ErrAlreadyPublished is returned when a snapshot is published twice.
var ErrAlreadyPublished = errors.New("snapshot already published")

// Slot is the atomically swappable "current snapshot" pointer of one domain.
// It starts empty; after the first Publish it always holds a snapshot.
// Publish is the only writer and never blocks readers; Acquire never blocks on Publish.
type Slot[V any] struct {
	id         domain.DomainID
	current    atomic.Pointer[Snapshot[V]]
	generation atomic.Uint64
	reclaimer  *Reclaimer
}

// NewSlot returns an empty slot for id whose retired snapshots go to r.
func NewSlot[V any](id domain.DomainID, r *Reclaimer) *Slot[V] {
	if r == nil {
		r = NewReclaimer(nil)
	}
	return &Slot[V]{id: id, reclaimer: r}
}

// Domain returns the slot's domain.
func (sl *Slot[V]) Domain() domain.DomainID { return sl.id }

// Available reports whether a snapshot has been published.
func (sl *Slot[V]) Available() bool { return sl.current.Load() != nil }

// Generation returns the generation of the current snapshot (0 when empty).
func (sl *Slot[V]) Generation() uint64 {
	if s := sl.current.Load(); s != nil {
		return s.generation
	}
	return 0
}

// Size returns the record count of the current snapshot (0 when empty).
func (sl *Slot[V]) Size() int {
	h, err := sl.Acquire()
	if err != nil {
		return 0
	}
	defer h.Release()
	return h.snap.Size()
}

// Acquire pins the current snapshot and returns a handle to it. The handle sees
// the same snapshot for its whole lifetime regardless of later publishes.
// It returns a *domain.DomainUnavailableError when nothing was published yet.
func (sl *Slot[V]) Acquire() (*Handle[V], error) {
	for {
		s := sl.current.Load()
		if s == nil {
			return nil, &domain.DomainUnavailableError{Domain: sl.id}
		}
		// Announce the observation, then confirm the snapshot is still current.
		// If a publish slipped in between, the snapshot may already be queued or
		// freed; back off without touching its storage and try again.
		s.observers.Add(1)
		if sl.current.Load() == s {
			return &Handle[V]{snap: s, slot: sl}, nil
		}
		sl.unobserve(s)
	}
}

// Publish makes s the current snapshot, retires the previous one and runs a
// cleanup pass. It returns the generation assigned to s.
func (sl *Slot[V]) Publish(s *Snapshot[V]) (uint64, error) {
	if s == nil {
		return 0, errors.New("publish nil snapshot")
	}
	if s.generation != 0 {
		return 0, ErrAlreadyPublished
	}
	s.domain = sl.id
	s.generation = sl.generation.Add(1)
	old := sl.current.Swap(s)
	if old != nil {
		old.retired.Store(true)
		sl.reclaimer.retire(old)
	}
	sl.reclaimer.Cleanup()
	return s.generation, nil
}

func (sl *Slot[V]) unobserve(s *Snapshot[V]) {
	if s.observers.Add(-1) == 0 && s.retired.Load() {
		sl.reclaimer.Cleanup()
	}
}

// Handle pins one snapshot against reclamation until Release.
type Handle[V any] struct {
	snap     *Snapshot[V]
	slot     *Slot[V]
	released atomic.Bool
}

// Snapshot returns the pinned snapshot. It must not be used after Release.
func (h *Handle[V]) Snapshot() *Snapshot[V] { return h.snap }

// Generation returns the pinned snapshot's generation.
func (h *Handle[V]) Generation() uint64 { return h.snap.generation }

// Lookup is shorthand for h.Snapshot().Lookup.
func (h *Handle[V]) Lookup(key uint64) (V, bool) { return h.snap.Lookup(key) }

// Range returns a cursor that owns the handle: closing the cursor releases it.
func (h *Handle[V]) Range(low, high uint64) *Cursor[V] {
	c := h.snap.Range(low, high)
	c.handle = h
	return c
}

// InverseRange is Range over the snapshot's value index.
func (h *Handle[V]) InverseRange(low, high uint64) *Cursor[V] {
	c := h.snap.InverseRange(low, high)
	c.handle = h
	return c
}

// Release ends the observation. Releasing the last observer of a retired
// snapshot triggers a cleanup pass. Release is idempotent.
func (h *Handle[V]) Release() {
	if !h.released.CompareAndSwap(false, true) {
		return
	}
	h.slot.unobserve(h.snap)
}
