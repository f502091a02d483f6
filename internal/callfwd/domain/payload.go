package domain

// Listed is the payload of presence-only domains (DNC, toll-free): a key either
// appears in the dataset or it does not.
type Listed struct{}

// DnoType tells which do-not-originate list matched a number.
type DnoType uint8

const (
	DnoNone DnoType = iota
	DnoNumber
	DnoNPA
	DnoNPANXX
	DnoNPANXXX
)

// String returns the control-channel name of the DNO list kind.
func (t DnoType) String() string {
	switch t {
	case DnoNumber:
		return "dno"
	case DnoNPA:
		return "dno_npa"
	case DnoNPANXX:
		return "dno_npa_nxx"
	case DnoNPANXXX:
		return "dno_npa_nxx_x"
	default:
		return "none"
	}
}

// KeyDigits is the width of the keys stored for this DNO kind (0 for DnoNone).
func (t DnoType) KeyDigits() int {
	switch t {
	case DnoNPA:
		return 3
	case DnoNPANXX:
		return 6
	case DnoNPANXXX:
		return 7
	case DnoNumber:
		return 10
	default:
		return 0
	}
}

// LergRecord is the carrier assignment of an NPA-NXX (or NPA-NXX-X block).
type LergRecord struct {
	Company    string
	OCN        string
	OCNType    string
	LATA       string
	RateCenter string
	Country    string
}

// GeoRecord locates an NPA-NXX.
type GeoRecord struct {
	Zipcode   string
	County    string
	City      string
	Latitude  string
	Longitude string
	Timezone  string
}

// SpamRecord is one number's entry in the YouMail spam feed.
type SpamRecord struct {
	SpamScore        string
	FraudProbability string
	Unlawful         string
	TCPAFraud        string
}

// Sighting records when a number was first and last reported by a complaint feed
// (FTC, 404, 606). Dates are kept as published.
type Sighting struct {
	LastSeen  string
	FirstSeen string
}

// ACLRange is an inclusive IPv4 range; the range start is the snapshot key.
type ACLRange struct {
	Last uint64
}
