// Package bloom adapts bits-and-blooms filters to mapping.KeyFilter so a
// snapshot can reject most absent phone numbers before binary searching.
package bloom

import (
	bitsbloom "github.com/bits-and-blooms/bloom/v3"

	"github.com/haukened/callfwd/internal/callfwd/repos/mapping"
)

type factory struct {
	sizer Sizer
}

// NewFactory returns a FilterFactory that sizes filters from capacity and FP rate.
func NewFactory() mapping.FilterFactory { return factory{sizer: NewSizer()} }

// New constructs a filter sized for n keys at false-positive rate p.
func (f factory) New(n uint64, p float64) mapping.KeyFilter {
	m, k := f.sizer.Size(n, p)
	return &filter{bf: bitsbloom.New(uint(m), uint(k))}
}
