package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainID_StringRoundTrip(t *testing.T) {
	for _, d := range AllDomains() {
		got, err := ParseDomainID(d.String())
		require.NoError(t, err, "parse %s", d)
		assert.Equal(t, d, got)
	}
}

func TestParseDomainID(t *testing.T) {
	tests := []struct {
		in      string
		want    DomainID
		wantErr bool
	}{
		{"us", DomainUS, false},
		{" CA ", DomainCA, false},
		{"dno_npa_nxx_x", DomainDNONPANXXX, false},
		{"404", Domain404, false},
		{"nope", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseDomainID(tt.in)
		if tt.wantErr {
			assert.Error(t, err, "ParseDomainID(%q)", tt.in)
			continue
		}
		assert.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestDomainID_Invalid(t *testing.T) {
	d := DomainID(200)
	assert.False(t, d.IsValid())
	assert.Equal(t, "DomainID(200)", d.String())
	assert.True(t, DomainACL.IsValid())
}

func TestDnoType(t *testing.T) {
	tests := []struct {
		typ    DnoType
		name   string
		digits int
	}{
		{DnoNone, "none", 0},
		{DnoNumber, "dno", 10},
		{DnoNPA, "dno_npa", 3},
		{DnoNPANXX, "dno_npa_nxx", 6},
		{DnoNPANXXX, "dno_npa_nxx_x", 7},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.name, tt.typ.String())
		assert.Equal(t, tt.digits, tt.typ.KeyDigits())
	}
}
