package lookup

import (
	"net/netip"

	"github.com/haukened/callfwd/internal/callfwd/domain"
)

// Reader is the query surface consumed by request handlers. Every method
// reads through a snapshot pinned for the duration of the call, so the answer
// is consistent with exactly one generation per domain.
type Reader interface {
	Available(id domain.DomainID) bool
	Size(id domain.DomainID) (int, error)
	Metadata(id domain.DomainID) (domain.Metadata, error)
	Contains(id domain.DomainID, keys []uint64) ([]bool, error)
	RN(pn uint64) (uint64, error)
	RNs(pns []uint64) ([]uint64, error)
	Target(pns []uint64) ([]Target, error)
	Reverse(prefixes []string) ([]Pair, error)
	Range(id domain.DomainID, low, high uint64) ([]uint64, error)
	RoutingRange(id domain.DomainID, low, high uint64) ([]Entry[uint64], error)
	LergRange(low, high uint64) ([]Entry[domain.LergRecord], error)
	GeoRange(low, high uint64) ([]Entry[domain.GeoRecord], error)
	SpamRange(low, high uint64) ([]Entry[domain.SpamRecord], error)
	SightingRange(id domain.DomainID, low, high uint64) ([]Entry[domain.Sighting], error)
	NetworkRange(low, high uint64) ([]Entry[domain.ACLRange], error)
	DNC(pn uint64) (bool, error)
	TollFree(pn uint64) (bool, error)
	DNO(pn uint64) (domain.DnoType, error)
	Lerg(key uint64) (domain.LergRecord, bool, error)
	Geo(pn uint64) (domain.GeoRecord, bool, error)
	Spam(pn uint64) (domain.SpamRecord, bool, error)
	Sighting(id domain.DomainID, pn uint64) (domain.Sighting, bool, error)
	Allowed(ip netip.Addr) bool
}

var _ Reader = (*Service)(nil)
