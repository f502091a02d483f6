package lookup

import (
	"github.com/haukened/callfwd/internal/callfwd/common/phonenumber"
	"github.com/haukened/callfwd/internal/callfwd/domain"
	"github.com/haukened/callfwd/internal/callfwd/repos/mapping"
)

// Target builds the combined report for every number in pns. Routing must be
// loaded for both countries; the other lists contribute when available.
func (s *Service) Target(pns []uint64) ([]Target, error) {
	us, ca, err := s.routing()
	if err != nil {
		return nil, err
	}
	defer us.Release()
	defer ca.Release()

	rns := s.resolveRNs(us, ca, pns)
	out := make([]Target, len(pns))
	for i, pn := range pns {
		out[i] = Target{PN: pn, RN: rns[i]}
	}

	s.presenceBatch(s.reg.DNC(), pns, func(i int, p Presence) { out[i].DNC = p })
	s.presenceBatch(s.reg.TollFree(), pns, func(i int, p Presence) { out[i].TollFree = p })

	for i, pn := range pns {
		out[i].DNO, out[i].DNOKnown = s.dno(pn)
	}

	if h, err := s.reg.LERG().Acquire(); err == nil {
		for i := range out {
			key := out[i].RN
			if key == phonenumber.None {
				key = out[i].PN
			}
			out[i].Lerg, out[i].LergFound = lergLookup(h, key)
			s.count(domain.DomainLERG, out[i].LergFound)
		}
		h.Release()
	}
	return out, nil
}

func (s *Service) presenceBatch(slot *mapping.Slot[domain.Listed], pns []uint64, set func(int, Presence)) {
	h, err := slot.Acquire()
	if err != nil {
		return
	}
	defer h.Release()
	vals := make([]domain.Listed, len(pns))
	found := make([]bool, len(pns))
	h.Snapshot().LookupBatch(pns, vals, found)
	hits := 0
	for i, ok := range found {
		set(i, presence(ok))
		if ok {
			hits++
		}
	}
	s.metrics.AddLookups(slot.Domain().String(), "hit", hits)
	s.metrics.AddLookups(slot.Domain().String(), "miss", len(pns)-hits)
}
