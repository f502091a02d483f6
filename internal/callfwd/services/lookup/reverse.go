package lookup

import (
	"github.com/haukened/callfwd/internal/callfwd/common/phonenumber"
	"github.com/haukened/callfwd/internal/callfwd/domain"
	"github.com/haukened/callfwd/internal/callfwd/repos/mapping"
	"github.com/haukened/callfwd/internal/callfwd/repos/rangecache"
)

// Reverse lists the routing records whose RN starts with any of prefixes: for
// each prefix the US records, then the CA ones, each ordered by RN and then PN.
// Prefixes that are empty, longer than 10 digits or not numeric are skipped.
func (s *Service) Reverse(prefixes []string) ([]Pair, error) {
	us, ca, err := s.routing()
	if err != nil {
		return nil, err
	}
	defer us.Release()
	defer ca.Release()

	var out []Pair
	for _, p := range prefixes {
		low, high, ok := phonenumber.PrefixRange(p)
		if !ok {
			s.logger.Debug(map[string]any{"prefix": p}, "reverse_skip_prefix")
			continue
		}
		out = append(out, s.inverse(us, low, high)...)
		out = append(out, s.inverse(ca, low, high)...)
	}
	return out, nil
}

func (s *Service) inverse(h *mapping.Handle[uint64], low, high uint64) []Pair {
	key := rangecache.Key{Domain: h.Snapshot().Domain(), Generation: h.Generation(), Low: low, High: high}
	if rows, ok := s.reverse.Get(key); ok {
		return rows
	}
	c := h.Snapshot().InverseRange(low, high)
	rows := make([]Pair, 0, c.Remaining())
	for c.Next() {
		rows = append(rows, Pair{PN: c.Key(), RN: c.Value()})
	}
	s.reverse.Put(key, rows)
	return rows
}

// Range returns the keys of id in [low, high), ascending. The slice may be
// shared with later callers and must not be modified.
func (s *Service) Range(id domain.DomainID, low, high uint64) ([]uint64, error) {
	t, err := s.reg.Table(id)
	if err != nil {
		return nil, err
	}
	gen := t.Generation()
	key := rangecache.Key{Domain: id, Generation: gen, Low: low, High: high}
	if gen != 0 {
		if keys, ok := s.keys.Get(key); ok {
			return keys, nil
		}
	}
	keys, gen, err := t.Keys(low, high)
	if err != nil {
		return nil, err
	}
	key.Generation = gen
	s.keys.Put(key, keys)
	return keys, nil
}
