package feeds

import (
	"net/netip"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/callfwd/internal/callfwd/domain"
	"github.com/haukened/callfwd/internal/callfwd/repos/mapping"
)

var (
	_ mapping.RowCodec[uint64]            = Routing{}
	_ mapping.RowCodec[domain.Listed]     = Listed{}
	_ mapping.RowCodec[domain.DnoType]    = DNO{}
	_ mapping.RowCodec[domain.LergRecord] = Lerg{}
	_ mapping.RowCodec[domain.GeoRecord]  = Geo{}
	_ mapping.RowCodec[domain.SpamRecord] = Spam{}
	_ mapping.RowCodec[domain.Sighting]   = Sightings{}
	_ mapping.RowCodec[domain.ACLRange]   = ACL{}
)

func split(row string) []string { return strings.Split(row, Delimiter) }

func TestRouting(t *testing.T) {
	tests := []struct {
		row     string
		pn, rn  uint64
		wantErr string
	}{
		{row: "2135550100,2135559999", pn: 2135550100, rn: 2135559999},
		{row: " 2135550100 , 2135559999 ", pn: 2135550100, rn: 2135559999},
		{row: "2135550100", wantErr: "expected 2 fields"},
		{row: "2135550100,1,2", wantErr: "expected 2 fields"},
		{row: "x,1", wantErr: "invalid pn"},
		{row: "1,-1", wantErr: "invalid rn"},
	}
	for _, tt := range tests {
		t.Run(tt.row, func(t *testing.T) {
			pn, rn, err := Routing{}.ParseRow(split(tt.row))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.pn, pn)
			assert.Equal(t, tt.rn, rn)
			assert.Equal(t, []string{"2135550100", "2135559999"}, Routing{}.FormatRow(pn, rn))
		})
	}
}

func TestListed_IgnoresTrailingColumns(t *testing.T) {
	pn, _, err := Listed{}.ParseRow(split("8005550100,extra,columns"))
	require.NoError(t, err)
	assert.Equal(t, uint64(8005550100), pn)
	assert.Equal(t, []string{"8005550100"}, Listed{}.FormatRow(pn, domain.Listed{}))

	_, _, err = Listed{}.ParseRow(split(`"abc"`))
	assert.Error(t, err)
}

func TestDNO_KeyWidth(t *testing.T) {
	tests := []struct {
		typ  domain.DnoType
		row  string
		ok   bool
		want uint64
	}{
		{domain.DnoNPA, "900", true, 900},
		{domain.DnoNPA, "9001", false, 0},
		{domain.DnoNPANXX, "900555", true, 900555},
		{domain.DnoNPANXX, "9005551", false, 0},
		{domain.DnoNPANXXX, "9005551", true, 9005551},
		{domain.DnoNumber, "9005551234", true, 9005551234},
		{domain.DnoNumber, "19005551234", true, 19005551234},
		{domain.DnoNumber, "119005551234", false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.typ.String()+"/"+tt.row, func(t *testing.T) {
			k, typ, err := DNO{Type: tt.typ}.ParseRow(split(tt.row))
			if !tt.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, k)
			assert.Equal(t, tt.typ, typ)
		})
	}
}

func TestLerg_StripsQuotes(t *testing.T) {
	k, rec, err := Lerg{}.ParseRow(split(`213555,"PACIFIC BELL",9740,ILEC,730,"LOS ANGELES",US`))
	require.NoError(t, err)
	assert.Equal(t, uint64(213555), k)
	assert.Equal(t, domain.LergRecord{
		Company: "PACIFIC BELL", OCN: "9740", OCNType: "ILEC",
		LATA: "730", RateCenter: "LOS ANGELES", Country: "US",
	}, rec)
	assert.Equal(t, "213555,PACIFIC BELL,9740,ILEC,730,LOS ANGELES,US", strings.Join(Lerg{}.FormatRow(k, rec), Delimiter))

	k, _, err = Lerg{}.ParseRow(split("2135551,a,b,c,d,e,f"))
	require.NoError(t, err)
	assert.Equal(t, uint64(2135551), k)

	_, _, err = Lerg{}.ParseRow(split("21355512,a,b,c,d,e,f"))
	assert.Error(t, err)
	_, _, err = Lerg{}.ParseRow(split("213555,a,b"))
	assert.Error(t, err)
}

func TestGeo(t *testing.T) {
	k, rec, err := Geo{}.ParseRow(split(`213555,90012,"Los Angeles",Los Angeles,34.06,-118.24,America/Los_Angeles`))
	require.NoError(t, err)
	assert.Equal(t, uint64(213555), k)
	assert.Equal(t, "Los Angeles", rec.County)
	assert.Equal(t, "America/Los_Angeles", rec.Timezone)
	assert.Len(t, Geo{}.FormatRow(k, rec), 7)

	_, _, err = Geo{}.ParseRow(split("2135551,a,b,c,d,e,f"))
	assert.Error(t, err)
}

func TestSpamAndSightings(t *testing.T) {
	pn, spam, err := Spam{}.ParseRow(split("2135550100,0.9,0.5,true,false"))
	require.NoError(t, err)
	assert.Equal(t, uint64(2135550100), pn)
	assert.Equal(t, domain.SpamRecord{SpamScore: "0.9", FraudProbability: "0.5", Unlawful: "true", TCPAFraud: "false"}, spam)
	assert.Equal(t, "2135550100,0.9,0.5,true,false", strings.Join(Spam{}.FormatRow(pn, spam), Delimiter))

	pn, s, err := Sightings{}.ParseRow(split(`2135550100,"2024-05-01","2023-01-09"`))
	require.NoError(t, err)
	assert.Equal(t, domain.Sighting{LastSeen: "2024-05-01", FirstSeen: "2023-01-09"}, s)
	assert.Equal(t, []string{"2135550100", "2024-05-01", "2023-01-09"}, Sightings{}.FormatRow(pn, s))

	_, _, err = Sightings{}.ParseRow(split("2135550100,2024-05-01"))
	assert.Error(t, err)
}

func TestACL(t *testing.T) {
	tests := []struct {
		row         string
		first, last string
		format      string
	}{
		{"10.0.0.0/8", "10.0.0.0", "10.255.255.255", "10.0.0.0/8"},
		{"192.168.1.77/24", "192.168.1.0", "192.168.1.255", "192.168.1.0/24"},
		{"203.0.113.9", "203.0.113.9", "203.0.113.9", "203.0.113.9/32"},
		{"0.0.0.0/0", "0.0.0.0", "255.255.255.255", "0.0.0.0/0"},
	}
	for _, tt := range tests {
		t.Run(tt.row, func(t *testing.T) {
			k, r, err := ACL{}.ParseRow(split(tt.row))
			require.NoError(t, err)
			assert.Equal(t, uint64(IPv4Key(netip.MustParseAddr(tt.first))), k)
			assert.Equal(t, uint64(IPv4Key(netip.MustParseAddr(tt.last))), r.Last)
			assert.Equal(t, []string{tt.format}, ACL{}.FormatRow(k, r))
		})
	}

	for _, bad := range []string{"2001:db8::/32", "10.0.0.0/33", "not-an-ip", ""} {
		_, _, err := ACL{}.ParseRow(split(bad))
		assert.Error(t, err, bad)
	}
}

func TestIPv4Key_Mapped(t *testing.T) {
	assert.Equal(t, uint32(0x0a000001), IPv4Key(netip.MustParseAddr("::ffff:10.0.0.1")))
}
