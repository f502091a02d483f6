package domain

import (
	"fmt"
	"strings"
)

// DomainID names one independently versioned dataset.
type DomainID uint8

const (
	DomainUS DomainID = iota
	DomainCA
	DomainDNC
	DomainDNO
	DomainDNONPA
	DomainDNONPANXX
	DomainDNONPANXXX
	DomainTollFree
	DomainLERG
	DomainYouMail
	DomainGeo
	DomainFTC
	Domain404
	Domain606
	DomainACL

	domainCount
)

var domainNames = [domainCount]string{
	DomainUS:         "us",
	DomainCA:         "ca",
	DomainDNC:        "dnc",
	DomainDNO:        "dno",
	DomainDNONPA:     "dno_npa",
	DomainDNONPANXX:  "dno_npa_nxx",
	DomainDNONPANXXX: "dno_npa_nxx_x",
	DomainTollFree:   "tollfree",
	DomainLERG:       "lerg",
	DomainYouMail:    "youmail",
	DomainGeo:        "geo",
	DomainFTC:        "ftc",
	Domain404:        "404",
	Domain606:        "606",
	DomainACL:        "acl",
}

// String returns the stable lower-case name used in logs, metrics and control messages.
func (d DomainID) String() string {
	if d < domainCount {
		return domainNames[d]
	}
	return fmt.Sprintf("DomainID(%d)", d)
}

// IsValid reports whether d names a known domain.
func (d DomainID) IsValid() bool { return d < domainCount }

// ParseDomainID converts a name (case-insensitive) into a DomainID.
func ParseDomainID(s string) (DomainID, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range domainNames {
		if name == s {
			return DomainID(i), nil
		}
	}
	return 0, fmt.Errorf("unknown domain: %q", s)
}

// AllDomains lists every domain in declaration order.
func AllDomains() []DomainID {
	out := make([]DomainID, 0, domainCount)
	for d := DomainID(0); d < domainCount; d++ {
		out = append(out, d)
	}
	return out
}

// DnoDomains lists the do-not-originate sub-domains, most specific first.
func DnoDomains() []DomainID {
	return []DomainID{DomainDNO, DomainDNONPANXXX, DomainDNONPANXX, DomainDNONPA}
}
