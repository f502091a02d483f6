package feeds

import (
	"github.com/haukened/callfwd/internal/callfwd/domain"
)

// Listed parses presence-only feeds (DNC, toll-free) whose first column is the
// number. Trailing columns are ignored.
type Listed struct{}

func (Listed) Delimiter() string { return Delimiter }

func (Listed) ParseRow(fields []string) (uint64, domain.Listed, error) {
	if err := wantAtLeast(fields, 1); err != nil {
		return 0, domain.Listed{}, err
	}
	pn, err := parseKey("pn", fields[0])
	return pn, domain.Listed{}, err
}

func (Listed) FormatRow(pn uint64, _ domain.Listed) []string {
	return []string{formatKey(pn)}
}

// DNO parses one do-not-originate list. Keys are as wide as the list kind
// allows: a full number, an NPA, an NPA-NXX or an NPA-NXX-X.
type DNO struct {
	Type domain.DnoType
}

func (DNO) Delimiter() string { return Delimiter }

func (c DNO) ParseRow(fields []string) (uint64, domain.DnoType, error) {
	if err := wantAtLeast(fields, 1); err != nil {
		return 0, domain.DnoNone, err
	}
	digits := c.Type.KeyDigits()
	if c.Type == domain.DnoNumber {
		digits = 11
	}
	k, err := parsePrefix(c.Type.String(), fields[0], digits)
	if err != nil {
		return 0, domain.DnoNone, err
	}
	return k, c.Type, nil
}

func (DNO) FormatRow(k uint64, _ domain.DnoType) []string {
	return []string{formatKey(k)}
}
