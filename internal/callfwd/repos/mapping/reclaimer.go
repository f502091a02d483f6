package mapping

import (
	"sync"

	"github.com/haukened/callfwd/internal/callfwd/domain"
)

// retiree is what the reclaimer tracks for a retired snapshot of any payload type.
type retiree interface {
	tryReclaim() bool
	retiredGeneration() (domain.DomainID, uint64)
}

// ReclaimHook observes reclamation of a retired generation.
type ReclaimHook func(id domain.DomainID, generation uint64)

// Reclaimer holds retired snapshots until no handle observes them. One
// Reclaimer is shared by every slot of a registry, so a cleanup pass triggered by
// a commit in one domain also frees idle generations of the others.
type Reclaimer struct {
	mu      sync.Mutex
	retired []retiree
	onFree  ReclaimHook
}

// NewReclaimer returns an empty Reclaimer. hook may be nil.
func NewReclaimer(hook ReclaimHook) *Reclaimer {
	return &Reclaimer{onFree: hook}
}

// retire queues r for reclamation. The caller has already unpublished it.
func (r *Reclaimer) retire(s retiree) {
	r.mu.Lock()
	r.retired = append(r.retired, s)
	r.mu.Unlock()
}

// Cleanup frees every retired snapshot that has no observers and returns how
// many it freed. Snapshots still observed stay queued for a later pass.
func (r *Reclaimer) Cleanup() int {
	r.mu.Lock()
	kept := r.retired[:0]
	var freed []retiree
	for _, s := range r.retired {
		if s.tryReclaim() {
			freed = append(freed, s)
			continue
		}
		kept = append(kept, s)
	}
	for i := len(kept); i < len(r.retired); i++ {
		r.retired[i] = nil
	}
	r.retired = kept
	r.mu.Unlock()

	if r.onFree != nil {
		for _, s := range freed {
			r.onFree(s.retiredGeneration())
		}
	}
	return len(freed)
}

// Pending returns the number of retired snapshots still awaiting reclamation.
func (r *Reclaimer) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.retired)
}
