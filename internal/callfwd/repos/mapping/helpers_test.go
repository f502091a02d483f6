package mapping

import (
	"bufio"
	"errors"
	"io"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/haukened/callfwd/internal/callfwd/common/phonenumber"
	"github.com/haukened/callfwd/internal/callfwd/domain"
)

// pairCodec parses "key,value" rows into uint64 payloads.
type pairCodec struct{}

func (pairCodec) Delimiter() string { return "," }

func (pairCodec) ParseRow(fields []string) (uint64, uint64, error) {
	if len(fields) != 2 {
		return 0, 0, errors.New("expected 2 fields")
	}
	k, err := phonenumber.ParseKey(fields[0])
	if err != nil {
		return 0, 0, err
	}
	v, err := phonenumber.ParseKey(fields[1])
	if err != nil {
		return 0, 0, err
	}
	return k, v, nil
}

func (pairCodec) FormatRow(key, value uint64) []string {
	return []string{strconv.FormatUint(key, 10), strconv.FormatUint(value, 10)}
}

// mapFilter is an exact KeyFilter that counts probes.
type mapFilter struct {
	keys   map[uint64]struct{}
	probes int
}

func (f *mapFilter) Add(key uint64) { f.keys[key] = struct{}{} }

func (f *mapFilter) MightContain(key uint64) bool {
	f.probes++
	_, ok := f.keys[key]
	return ok
}

type mapFilterFactory struct{ last *mapFilter }

func (f *mapFilterFactory) New(uint64, float64) KeyFilter {
	f.last = &mapFilter{keys: map[uint64]struct{}{}}
	return f.last
}

func buildFromCSV(t *testing.T, csv string) *Snapshot[uint64] {
	t.Helper()
	b := NewBuilder[uint64](domain.DomainUS, pairCodec{}, BuilderOptions{})
	_, err := b.IngestCSV(bufio.NewReader(strings.NewReader(csv)), 0)
	require.ErrorIs(t, err, io.EOF)
	s, err := b.Build()
	require.NoError(t, err)
	return s
}
