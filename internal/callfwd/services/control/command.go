package control

import (
	"io"
	"sort"
	"strings"

	"github.com/haukened/callfwd/internal/callfwd/domain"
)

// Command is one decoded control message.
type Command struct {
	RequestID string
	Name      string

	// Input is the caller's passed stdin, Output its stdout. Either may be nil,
	// in which case the "path" metadata key names a local file instead.
	Input  io.Reader
	Output io.Writer
	// Log, when set, receives the human-readable progress of this command only.
	Log io.Writer

	// Meta holds every remaining message field (row_estimate, file_name,
	// country, domain, path, ...). It becomes the metadata of a reloaded snapshot.
	Meta domain.Metadata
}

type opKind uint8

const (
	opReload opKind = iota
	opVerify
	opDump
	opMeta
)

type route struct {
	kind   opKind
	domain domain.DomainID
	// byCountry selects the CA routing table when the "country" field is "CA".
	byCountry bool
}

var routes = map[string]route{
	"reload":               {kind: opReload, domain: domain.DomainUS, byCountry: true},
	"dnc_reload":           {kind: opReload, domain: domain.DomainDNC},
	"tollfree_reload":      {kind: opReload, domain: domain.DomainTollFree},
	"dno_reload":           {kind: opReload, domain: domain.DomainDNO},
	"dno_npa_reload":       {kind: opReload, domain: domain.DomainDNONPA},
	"dno_npa_nxx_reload":   {kind: opReload, domain: domain.DomainDNONPANXX},
	"dno_npa_nxx_x_reload": {kind: opReload, domain: domain.DomainDNONPANXXX},
	"lerg_reload":          {kind: opReload, domain: domain.DomainLERG},
	"youmail_reload":       {kind: opReload, domain: domain.DomainYouMail},
	"geo_reload":           {kind: opReload, domain: domain.DomainGeo},
	"ftc_reload":           {kind: opReload, domain: domain.DomainFTC},
	"404_reload":           {kind: opReload, domain: domain.Domain404},
	"606_reload":           {kind: opReload, domain: domain.Domain606},
	"acl":                  {kind: opReload, domain: domain.DomainACL},
	"verify":               {kind: opVerify, domain: domain.DomainUS, byCountry: true},
	"dump":                 {kind: opDump, domain: domain.DomainUS, byCountry: true},
	"meta":                 {kind: opMeta},
}

// Commands lists every recognized command name in sorted order.
func Commands() []string {
	out := make([]string, 0, len(routes))
	for name := range routes {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// target resolves the domain a command operates on. Verify and dump accept an
// explicit "domain" field; routing commands fall back to "country".
func (r route) target(meta domain.Metadata) (domain.DomainID, error) {
	if r.kind == opVerify || r.kind == opDump {
		if name := meta.String("domain", ""); name != "" {
			id, err := domain.ParseDomainID(name)
			if err != nil {
				return 0, &domain.ProtocolError{Reason: "bad domain field", Err: err}
			}
			return id, nil
		}
	}
	if r.byCountry && strings.EqualFold(meta.String("country", "US"), "CA") {
		return domain.DomainCA, nil
	}
	return r.domain, nil
}
