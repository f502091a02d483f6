// Package registry owns the process-wide table of lookup domains. Every domain
// has its own independently versioned slot; all slots share one reclaimer.
package registry

import (
	"fmt"

	"github.com/haukened/callfwd/internal/callfwd/domain"
	"github.com/haukened/callfwd/internal/callfwd/repos/feeds"
	"github.com/haukened/callfwd/internal/callfwd/repos/mapping"
)

// Options configures a Registry.
type Options struct {
	// Filter attaches a bloom prefilter to every snapshot when set and
	// FalsePositiveRate is positive.
	Filter            mapping.FilterFactory
	FalsePositiveRate float64
	// OnReclaim observes every freed generation.
	OnReclaim mapping.ReclaimHook
}

// Registry is the fixed set of domain slots. The zero value is not usable;
// construct one with New.
type Registry struct {
	reclaimer *mapping.Reclaimer

	us, ca        *mapping.Slot[uint64]
	dnc, tollfree *mapping.Slot[domain.Listed]
	dno           [4]*mapping.Slot[domain.DnoType]
	lerg          *mapping.Slot[domain.LergRecord]
	geo           *mapping.Slot[domain.GeoRecord]
	youmail       *mapping.Slot[domain.SpamRecord]
	ftc, f404     *mapping.Slot[domain.Sighting]
	f606          *mapping.Slot[domain.Sighting]
	acl           *mapping.Slot[domain.ACLRange]

	tables map[domain.DomainID]Table
}

// New builds a registry with every domain empty.
func New(opts Options) *Registry {
	r := &Registry{
		reclaimer: mapping.NewReclaimer(opts.OnReclaim),
		tables:    make(map[domain.DomainID]Table, len(domain.AllDomains())),
	}
	bo := mapping.BuilderOptions{Filter: opts.Filter, FalsePositiveRate: opts.FalsePositiveRate}

	r.us = register(r, domain.DomainUS, feeds.Routing{}, bo)
	r.ca = register(r, domain.DomainCA, feeds.Routing{}, bo)
	// Routing snapshots also index by routing number for reverse queries.
	for _, id := range []domain.DomainID{domain.DomainUS, domain.DomainCA} {
		r.tables[id].(*table[uint64]).valueKey = func(rn uint64) uint64 { return rn }
	}
	r.dnc = register(r, domain.DomainDNC, feeds.Listed{}, bo)
	r.tollfree = register(r, domain.DomainTollFree, feeds.Listed{}, bo)
	for i, id := range domain.DnoDomains() {
		typ := dnoTypeOf(id)
		r.dno[i] = register(r, id, feeds.DNO{Type: typ}, bo)
	}
	r.lerg = register(r, domain.DomainLERG, feeds.Lerg{}, bo)
	r.geo = register(r, domain.DomainGeo, feeds.Geo{}, bo)
	r.youmail = register(r, domain.DomainYouMail, feeds.Spam{}, bo)
	r.ftc = register(r, domain.DomainFTC, feeds.Sightings{}, bo)
	r.f404 = register(r, domain.Domain404, feeds.Sightings{}, bo)
	r.f606 = register(r, domain.Domain606, feeds.Sightings{}, bo)
	// ACL lookups are floor searches, which a membership filter cannot answer.
	r.acl = register(r, domain.DomainACL, feeds.ACL{}, mapping.BuilderOptions{})
	// Networks may nest, so containment looks at the widest end seen so far.
	r.tables[domain.DomainACL].(*table[domain.ACLRange]).reachOf = func(a domain.ACLRange) uint64 { return a.Last }
	return r
}

func register[V comparable](r *Registry, id domain.DomainID, codec mapping.RowCodec[V], bo mapping.BuilderOptions) *mapping.Slot[V] {
	slot := mapping.NewSlot[V](id, r.reclaimer)
	r.tables[id] = newTable(slot, codec, bo)
	return slot
}

func dnoTypeOf(id domain.DomainID) domain.DnoType {
	switch id {
	case domain.DomainDNONPA:
		return domain.DnoNPA
	case domain.DomainDNONPANXX:
		return domain.DnoNPANXX
	case domain.DomainDNONPANXXX:
		return domain.DnoNPANXXX
	default:
		return domain.DnoNumber
	}
}

// Table returns the control-plane view of id.
func (r *Registry) Table(id domain.DomainID) (Table, error) {
	t, ok := r.tables[id]
	if !ok {
		return nil, fmt.Errorf("unknown domain %q", id)
	}
	return t, nil
}

// Tables returns every domain's table in AllDomains order.
func (r *Registry) Tables() []Table {
	out := make([]Table, 0, len(r.tables))
	for _, id := range domain.AllDomains() {
		if t, ok := r.tables[id]; ok {
			out = append(out, t)
		}
	}
	return out
}

// Reclaimer returns the reclaimer shared by every slot.
func (r *Registry) Reclaimer() *mapping.Reclaimer { return r.reclaimer }

// RetiredPending returns how many retired generations are still observed.
func (r *Registry) RetiredPending() int { return r.reclaimer.Pending() }

func (r *Registry) US() *mapping.Slot[uint64]                 { return r.us }
func (r *Registry) CA() *mapping.Slot[uint64]                 { return r.ca }
func (r *Registry) DNC() *mapping.Slot[domain.Listed]         { return r.dnc }
func (r *Registry) TollFree() *mapping.Slot[domain.Listed]    { return r.tollfree }
func (r *Registry) LERG() *mapping.Slot[domain.LergRecord]    { return r.lerg }
func (r *Registry) Geo() *mapping.Slot[domain.GeoRecord]      { return r.geo }
func (r *Registry) YouMail() *mapping.Slot[domain.SpamRecord] { return r.youmail }
func (r *Registry) ACL() *mapping.Slot[domain.ACLRange]       { return r.acl }

// DNO returns the DNO slots in lookup order: full number first, then the
// narrowest prefix list to the widest.
func (r *Registry) DNO() []*mapping.Slot[domain.DnoType] { return r.dno[:] }

// Sightings returns the complaint-feed slot for id (FTC, 404 or 606).
func (r *Registry) Sightings(id domain.DomainID) (*mapping.Slot[domain.Sighting], error) {
	switch id {
	case domain.DomainFTC:
		return r.ftc, nil
	case domain.Domain404:
		return r.f404, nil
	case domain.Domain606:
		return r.f606, nil
	}
	return nil, fmt.Errorf("domain %q has no sightings", id)
}
