package feeds

// Routing parses `pn,rn` rows of the US and CA number portability feeds.
type Routing struct{}

func (Routing) Delimiter() string { return Delimiter }

func (Routing) ParseRow(fields []string) (uint64, uint64, error) {
	if err := wantFields(fields, 2); err != nil {
		return 0, 0, err
	}
	pn, err := parseKey("pn", fields[0])
	if err != nil {
		return 0, 0, err
	}
	rn, err := parseKey("rn", fields[1])
	if err != nil {
		return 0, 0, err
	}
	return pn, rn, nil
}

func (Routing) FormatRow(pn, rn uint64) []string {
	return []string{formatKey(pn), formatKey(rn)}
}
