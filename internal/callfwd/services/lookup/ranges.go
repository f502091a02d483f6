package lookup

import (
	"fmt"

	"github.com/haukened/callfwd/internal/callfwd/domain"
	"github.com/haukened/callfwd/internal/callfwd/repos/mapping"
)

// Entry is one record of a range query.
type Entry[V any] struct {
	Key   uint64
	Value V
}

// RangeOf returns the records of slot's current snapshot with low <= key < high,
// ascending by key. Every entry comes from the same generation.
func RangeOf[V any](slot *mapping.Slot[V], low, high uint64) ([]Entry[V], error) {
	h, err := slot.Acquire()
	if err != nil {
		return nil, err
	}
	c := h.Range(low, high)
	defer c.Close()
	out := make([]Entry[V], 0, c.Remaining())
	for c.Next() {
		out = append(out, Entry[V]{Key: c.Key(), Value: c.Value()})
	}
	return out, nil
}

// RoutingRange returns the US or CA routing records in [low, high).
func (s *Service) RoutingRange(id domain.DomainID, low, high uint64) ([]Entry[uint64], error) {
	switch id {
	case domain.DomainUS:
		return RangeOf(s.reg.US(), low, high)
	case domain.DomainCA:
		return RangeOf(s.reg.CA(), low, high)
	}
	return nil, fmt.Errorf("domain %q has no routing records", id)
}

// LergRange returns the LERG records in [low, high). Keys mix exchanges and
// thousands blocks, so callers usually pass bounds of one width.
func (s *Service) LergRange(low, high uint64) ([]Entry[domain.LergRecord], error) {
	return RangeOf(s.reg.LERG(), low, high)
}

func (s *Service) GeoRange(low, high uint64) ([]Entry[domain.GeoRecord], error) {
	return RangeOf(s.reg.Geo(), low, high)
}

func (s *Service) SpamRange(low, high uint64) ([]Entry[domain.SpamRecord], error) {
	return RangeOf(s.reg.YouMail(), low, high)
}

// SightingRange returns the records of one complaint feed (FTC, 404 or 606).
func (s *Service) SightingRange(id domain.DomainID, low, high uint64) ([]Entry[domain.Sighting], error) {
	slot, err := s.reg.Sightings(id)
	if err != nil {
		return nil, err
	}
	return RangeOf(slot, low, high)
}

// NetworkRange returns the ACL networks whose first address is in [low, high).
func (s *Service) NetworkRange(low, high uint64) ([]Entry[domain.ACLRange], error) {
	return RangeOf(s.reg.ACL(), low, high)
}

// Contains reports, per key, whether id holds it. Any domain is accepted.
func (s *Service) Contains(id domain.DomainID, keys []uint64) ([]bool, error) {
	t, err := s.reg.Table(id)
	if err != nil {
		return nil, err
	}
	found, _, err := t.Contains(keys)
	if err != nil {
		s.metrics.AddLookups(id.String(), "unavailable", len(keys))
		return nil, err
	}
	hits := 0
	for _, ok := range found {
		if ok {
			hits++
		}
	}
	s.metrics.AddLookups(id.String(), "hit", hits)
	s.metrics.AddLookups(id.String(), "miss", len(keys)-hits)
	return found, nil
}

// Size returns the record count of id's current snapshot.
func (s *Service) Size(id domain.DomainID) (int, error) {
	t, err := s.reg.Table(id)
	if err != nil {
		return 0, err
	}
	if !t.Available() {
		return 0, &domain.DomainUnavailableError{Domain: id}
	}
	return t.Size(), nil
}

// Metadata returns a copy of the metadata attached to id's current snapshot.
func (s *Service) Metadata(id domain.DomainID) (domain.Metadata, error) {
	t, err := s.reg.Table(id)
	if err != nil {
		return nil, err
	}
	return t.Metadata()
}
