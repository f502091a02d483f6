package feeds

import (
	"github.com/haukened/callfwd/internal/callfwd/domain"
)

// Lerg parses `npanxx[x],company,ocn,ocn_type,lata,rate_center,country` rows.
// Six-digit keys cover a whole exchange; seven-digit keys cover one thousands
// block and take precedence at lookup time.
type Lerg struct{}

func (Lerg) Delimiter() string { return Delimiter }

func (Lerg) ParseRow(fields []string) (uint64, domain.LergRecord, error) {
	if err := wantFields(fields, 7); err != nil {
		return 0, domain.LergRecord{}, err
	}
	k, err := parsePrefix("npanxx", fields[0], 7)
	if err != nil {
		return 0, domain.LergRecord{}, err
	}
	return k, domain.LergRecord{
		Company:    cleanText(fields[1]),
		OCN:        cleanText(fields[2]),
		OCNType:    cleanText(fields[3]),
		LATA:       cleanText(fields[4]),
		RateCenter: cleanText(fields[5]),
		Country:    cleanText(fields[6]),
	}, nil
}

func (Lerg) FormatRow(k uint64, r domain.LergRecord) []string {
	return []string{formatKey(k), r.Company, r.OCN, r.OCNType, r.LATA, r.RateCenter, r.Country}
}

// Geo parses `npanxx,zipcode,county,city,latitude,longitude,timezone` rows.
type Geo struct{}

func (Geo) Delimiter() string { return Delimiter }

func (Geo) ParseRow(fields []string) (uint64, domain.GeoRecord, error) {
	if err := wantFields(fields, 7); err != nil {
		return 0, domain.GeoRecord{}, err
	}
	k, err := parsePrefix("npanxx", fields[0], 6)
	if err != nil {
		return 0, domain.GeoRecord{}, err
	}
	return k, domain.GeoRecord{
		Zipcode:   cleanText(fields[1]),
		County:    cleanText(fields[2]),
		City:      cleanText(fields[3]),
		Latitude:  cleanText(fields[4]),
		Longitude: cleanText(fields[5]),
		Timezone:  cleanText(fields[6]),
	}, nil
}

func (Geo) FormatRow(k uint64, r domain.GeoRecord) []string {
	return []string{formatKey(k), r.Zipcode, r.County, r.City, r.Latitude, r.Longitude, r.Timezone}
}

// Spam parses YouMail `pn,spam_score,fraud_probability,unlawful,tcpa_fraud` rows.
type Spam struct{}

func (Spam) Delimiter() string { return Delimiter }

func (Spam) ParseRow(fields []string) (uint64, domain.SpamRecord, error) {
	if err := wantFields(fields, 5); err != nil {
		return 0, domain.SpamRecord{}, err
	}
	pn, err := parseKey("pn", fields[0])
	if err != nil {
		return 0, domain.SpamRecord{}, err
	}
	return pn, domain.SpamRecord{
		SpamScore:        cleanText(fields[1]),
		FraudProbability: cleanText(fields[2]),
		Unlawful:         cleanText(fields[3]),
		TCPAFraud:        cleanText(fields[4]),
	}, nil
}

func (Spam) FormatRow(pn uint64, r domain.SpamRecord) []string {
	return []string{formatKey(pn), r.SpamScore, r.FraudProbability, r.Unlawful, r.TCPAFraud}
}

// Sightings parses the FTC, 404 and 606 complaint feeds: `pn,last_seen,first_seen`.
type Sightings struct{}

func (Sightings) Delimiter() string { return Delimiter }

func (Sightings) ParseRow(fields []string) (uint64, domain.Sighting, error) {
	if err := wantFields(fields, 3); err != nil {
		return 0, domain.Sighting{}, err
	}
	pn, err := parseKey("pn", fields[0])
	if err != nil {
		return 0, domain.Sighting{}, err
	}
	return pn, domain.Sighting{LastSeen: cleanText(fields[1]), FirstSeen: cleanText(fields[2])}, nil
}

func (Sightings) FormatRow(pn uint64, s domain.Sighting) []string {
	return []string{formatKey(pn), s.LastSeen, s.FirstSeen}
}
