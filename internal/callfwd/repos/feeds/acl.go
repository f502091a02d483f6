package feeds

import (
	"encoding/binary"
	"errors"
	"math/bits"
	"net/netip"
	"strings"

	"github.com/haukened/callfwd/internal/callfwd/domain"
)

// ACL parses one IPv4 network per row, either CIDR notation or a bare address.
// The key is the first address of the network.
type ACL struct{}

func (ACL) Delimiter() string { return Delimiter }

func (ACL) ParseRow(fields []string) (uint64, domain.ACLRange, error) {
	if err := wantAtLeast(fields, 1); err != nil {
		return 0, domain.ACLRange{}, err
	}
	s := cleanText(fields[0])
	if !strings.Contains(s, "/") {
		s += "/32"
	}
	p, err := netip.ParsePrefix(s)
	if err != nil || !p.Addr().Is4() {
		return 0, domain.ACLRange{}, errors.New("invalid IPv4 network")
	}
	p = p.Masked()
	first := uint64(IPv4Key(p.Addr()))
	last := first | (uint64(1)<<(32-p.Bits()) - 1)
	return first, domain.ACLRange{Last: last}, nil
}

func (ACL) FormatRow(first uint64, r domain.ACLRange) []string {
	span := r.Last - first + 1
	ones := 32 - (bits.Len64(span) - 1)
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(first))
	return []string{netip.PrefixFrom(netip.AddrFrom4(b), ones).String()}
}

// IPv4Key converts an IPv4 (or IPv4-mapped) address into its ACL key.
func IPv4Key(a netip.Addr) uint32 {
	b := a.Unmap().As4()
	return binary.BigEndian.Uint32(b[:])
}
