// Package lookup is the typed read API over the registry: point, batch and
// range queries plus the combined target and reverse reports.
package lookup

import (
	"net/netip"

	"github.com/haukened/callfwd/internal/callfwd/common/log"
	"github.com/haukened/callfwd/internal/callfwd/common/phonenumber"
	"github.com/haukened/callfwd/internal/callfwd/domain"
	"github.com/haukened/callfwd/internal/callfwd/infra/metrics"
	"github.com/haukened/callfwd/internal/callfwd/repos/feeds"
	"github.com/haukened/callfwd/internal/callfwd/repos/mapping"
	"github.com/haukened/callfwd/internal/callfwd/repos/rangecache"
	"github.com/haukened/callfwd/internal/callfwd/repos/registry"
)

// Pair is one routing record.
type Pair struct {
	PN uint64
	RN uint64
}

// Presence is the tri-state answer of a presence list that may not be loaded.
type Presence uint8

const (
	PresenceUnknown Presence = iota // list not loaded
	PresenceAbsent
	PresenceListed
)

func presence(found bool) Presence {
	if found {
		return PresenceListed
	}
	return PresenceAbsent
}

// Target is the combined report for one number.
type Target struct {
	PN uint64
	// RN is the US routing number, else the CA one, else phonenumber.None.
	RN       uint64
	DNC      Presence
	TollFree Presence
	// DNO is DnoNone when not listed; DNOKnown is false when no DNO list is loaded.
	DNO      domain.DnoType
	DNOKnown bool
	// Lerg is looked up by RN when known, otherwise by PN.
	Lerg      domain.LergRecord
	LergFound bool
}

// Options configures a Service.
type Options struct {
	Registry     *registry.Registry
	ReverseCache rangecache.Cache[Pair]
	KeyCache     rangecache.Cache[uint64]
	Metrics      *metrics.Metrics
	Logger       log.Logger
}

// Service implements Reader over a registry.
type Service struct {
	reg     *registry.Registry
	reverse rangecache.Cache[Pair]
	keys    rangecache.Cache[uint64]
	metrics *metrics.Metrics
	logger  log.Logger
}

// New returns a Service. Nil caches disable memoization; a nil logger discards.
func New(opts Options) *Service {
	s := &Service{
		reg:     opts.Registry,
		reverse: opts.ReverseCache,
		keys:    opts.KeyCache,
		metrics: opts.Metrics,
		logger:  opts.Logger,
	}
	if s.reverse == nil {
		s.reverse, _ = rangecache.New[Pair](0)
	}
	if s.keys == nil {
		s.keys, _ = rangecache.New[uint64](0)
	}
	if s.logger == nil {
		s.logger = log.NewNoopLogger()
	}
	return s
}

// Available reports whether id has a published snapshot.
func (s *Service) Available(id domain.DomainID) bool {
	t, err := s.reg.Table(id)
	return err == nil && t.Available()
}

func (s *Service) count(id domain.DomainID, found bool) {
	if found {
		s.metrics.AddLookups(id.String(), "hit", 1)
	} else {
		s.metrics.AddLookups(id.String(), "miss", 1)
	}
}

// get is a point lookup through a freshly pinned snapshot of slot.
func get[V any](s *Service, slot *mapping.Slot[V], key uint64) (V, bool, error) {
	h, err := slot.Acquire()
	if err != nil {
		s.metrics.AddLookups(slot.Domain().String(), "unavailable", 1)
		var zero V
		return zero, false, err
	}
	defer h.Release()
	v, ok := h.Lookup(key)
	s.count(slot.Domain(), ok)
	return v, ok, nil
}

// routing pins both routing snapshots. Routing answers need both countries.
func (s *Service) routing() (us, ca *mapping.Handle[uint64], err error) {
	us, err = s.reg.US().Acquire()
	if err != nil {
		return nil, nil, err
	}
	ca, err = s.reg.CA().Acquire()
	if err != nil {
		us.Release()
		return nil, nil, err
	}
	return us, ca, nil
}

// RN returns the routing number of pn, trying US then CA, or phonenumber.None.
func (s *Service) RN(pn uint64) (uint64, error) {
	rns, err := s.RNs([]uint64{pn})
	if err != nil {
		return phonenumber.None, err
	}
	return rns[0], nil
}

// RNs is the batch form of RN; the result is aligned with pns.
func (s *Service) RNs(pns []uint64) ([]uint64, error) {
	us, ca, err := s.routing()
	if err != nil {
		return nil, err
	}
	defer us.Release()
	defer ca.Release()
	return s.resolveRNs(us, ca, pns), nil
}

func (s *Service) resolveRNs(us, ca *mapping.Handle[uint64], pns []uint64) []uint64 {
	n := len(pns)
	rns := make([]uint64, n)
	found := make([]bool, n)
	us.Snapshot().LookupBatch(pns, rns, found)

	var hits int
	var missIdx []int
	for i, ok := range found {
		if ok {
			hits++
		} else {
			missIdx = append(missIdx, i)
		}
	}
	s.metrics.AddLookups(domain.DomainUS.String(), "hit", hits)
	s.metrics.AddLookups(domain.DomainUS.String(), "miss", len(missIdx))

	if len(missIdx) > 0 {
		keys := make([]uint64, len(missIdx))
		for j, i := range missIdx {
			keys[j] = pns[i]
		}
		caRNs := make([]uint64, len(keys))
		caFound := make([]bool, len(keys))
		ca.Snapshot().LookupBatch(keys, caRNs, caFound)
		var caHits int
		for j, i := range missIdx {
			if caFound[j] {
				rns[i] = caRNs[j]
				caHits++
			} else {
				rns[i] = phonenumber.None
			}
		}
		s.metrics.AddLookups(domain.DomainCA.String(), "hit", caHits)
		s.metrics.AddLookups(domain.DomainCA.String(), "miss", len(keys)-caHits)
	}
	return rns
}

// DNC reports whether pn is on the do-not-call list.
func (s *Service) DNC(pn uint64) (bool, error) {
	_, ok, err := get(s, s.reg.DNC(), pn)
	return ok, err
}

// TollFree reports whether pn is a toll-free number.
func (s *Service) TollFree(pn uint64) (bool, error) {
	_, ok, err := get(s, s.reg.TollFree(), pn)
	return ok, err
}

// DNO returns which do-not-originate list names pn: the full number first, then
// its NPA-NXX-X, NPA-NXX and NPA. Lists that are not loaded are skipped; if none
// is loaded the DNO domain is reported unavailable.
func (s *Service) DNO(pn uint64) (domain.DnoType, error) {
	typ, known := s.dno(pn)
	if !known {
		return domain.DnoNone, &domain.DomainUnavailableError{Domain: domain.DomainDNO}
	}
	return typ, nil
}

func (s *Service) dno(pn uint64) (domain.DnoType, bool) {
	known := false
	for _, slot := range s.reg.DNO() {
		h, err := slot.Acquire()
		if err != nil {
			continue
		}
		known = true
		typ, ok := h.Lookup(dnoKey(slot.Domain(), pn))
		h.Release()
		s.count(slot.Domain(), ok)
		if ok {
			return typ, true
		}
	}
	return domain.DnoNone, known
}

func dnoKey(id domain.DomainID, pn uint64) uint64 {
	switch id {
	case domain.DomainDNONPA:
		return phonenumber.NPA(pn)
	case domain.DomainDNONPANXX:
		return phonenumber.NPANXX(pn)
	case domain.DomainDNONPANXXX:
		return phonenumber.NPANXXX(pn)
	default:
		return pn
	}
}

// Lerg returns the carrier record for the thousands block of key, falling back
// to its exchange.
func (s *Service) Lerg(key uint64) (domain.LergRecord, bool, error) {
	h, err := s.reg.LERG().Acquire()
	if err != nil {
		return domain.LergRecord{}, false, err
	}
	defer h.Release()
	rec, ok := lergLookup(h, key)
	s.count(domain.DomainLERG, ok)
	return rec, ok, nil
}

func lergLookup(h *mapping.Handle[domain.LergRecord], key uint64) (domain.LergRecord, bool) {
	if rec, ok := h.Lookup(phonenumber.NPANXXX(key)); ok {
		return rec, true
	}
	return h.Lookup(phonenumber.NPANXX(key))
}

// Geo returns the location of pn's exchange.
func (s *Service) Geo(pn uint64) (domain.GeoRecord, bool, error) {
	return get(s, s.reg.Geo(), phonenumber.NPANXX(pn))
}

// Spam returns pn's YouMail record.
func (s *Service) Spam(pn uint64) (domain.SpamRecord, bool, error) {
	return get(s, s.reg.YouMail(), pn)
}

// Sighting returns pn's entry in a complaint feed (FTC, 404 or 606).
func (s *Service) Sighting(id domain.DomainID, pn uint64) (domain.Sighting, bool, error) {
	slot, err := s.reg.Sightings(id)
	if err != nil {
		return domain.Sighting{}, false, err
	}
	return get(s, slot, pn)
}

// Allowed reports whether ip falls in an ACL range. Only IPv4 is supported; an
// unloaded ACL allows nothing.
func (s *Service) Allowed(ip netip.Addr) bool {
	ip = ip.Unmap()
	if !ip.Is4() {
		return false
	}
	h, err := s.reg.ACL().Acquire()
	if err != nil {
		s.logger.Debug(map[string]any{"ip": ip.String()}, "acl_unavailable")
		return false
	}
	defer h.Release()
	key := uint64(feeds.IPv4Key(ip))
	last, ok := h.Snapshot().Reach(key)
	allowed := ok && key <= last
	s.count(domain.DomainACL, allowed)
	return allowed
}
