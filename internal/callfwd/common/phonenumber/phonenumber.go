// Package phonenumber holds the numeric conventions shared by every mapping:
// keys are unsigned 64-bit integers and None marks "no mapping".
package phonenumber

import (
	"math"
	"strconv"
	"strings"
)

// None is the reserved key meaning "no mapping". It is never a valid input key.
const None uint64 = math.MaxUint64

// nationalDigits is the length of a NANP national number (NPA-NXX-XXXX).
const nationalDigits = 10

var pow10 = [...]uint64{
	1, 10, 100, 1000, 10000, 100000, 1000000, 10000000, 100000000, 1000000000, 10000000000,
}

// Parse converts a textual phone number into its key. Surrounding whitespace and
// a leading '+' are ignored; the remainder must be 10 digits, or 11 digits with a
// leading country code 1. The digits are kept as written. Anything else yields None.
func Parse(s string) uint64 {
	s = strings.TrimPrefix(strings.TrimSpace(s), "+")
	switch len(s) {
	case nationalDigits:
	case nationalDigits + 1:
		if s[0] != '1' {
			return None
		}
	default:
		return None
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return None
		}
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return None
	}
	return n
}

// ParseKey parses a plain unsigned decimal key of any width. It rejects None.
func ParseKey(s string) (uint64, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, err
	}
	if n == None {
		return 0, strconv.ErrRange
	}
	return n, nil
}

// National strips a leading country code, leaving the 10-digit national number.
func National(pn uint64) uint64 {
	return pn % pow10[nationalDigits]
}

// NPA returns the 3-digit area code of pn.
func NPA(pn uint64) uint64 { return National(pn) / pow10[7] }

// NPANXX returns the 6-digit area code and exchange of pn.
func NPANXX(pn uint64) uint64 { return National(pn) / pow10[4] }

// NPANXXX returns the 7-digit thousands block of pn.
func NPANXXX(pn uint64) uint64 { return National(pn) / pow10[3] }

// PrefixRange converts a decimal prefix of up to 10 digits into the half-open
// key interval [low, high) of all 10-digit numbers starting with it.
func PrefixRange(prefix string) (low, high uint64, ok bool) {
	if len(prefix) == 0 || len(prefix) > nationalDigits {
		return 0, 0, false
	}
	for i := 0; i < len(prefix); i++ {
		if prefix[i] < '0' || prefix[i] > '9' {
			return 0, 0, false
		}
	}
	p, err := strconv.ParseUint(prefix, 10, 64)
	if err != nil {
		return 0, 0, false
	}
	scale := pow10[nationalDigits-len(prefix)]
	low = p * scale
	return low, low + scale, true
}
