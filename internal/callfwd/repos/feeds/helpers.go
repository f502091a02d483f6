// Package feeds holds the CSV row layouts of every lookup domain. Each codec
// satisfies mapping.RowCodec for its payload type.
package feeds

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/haukened/callfwd/internal/callfwd/common/phonenumber"
)

// Delimiter separates fields in every feed.
const Delimiter = ","

// cleanText strips double quotes and surrounding whitespace from a text column.
// Feeds quote free-text columns inconsistently, and none of them embed commas.
func cleanText(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, `"`, ""))
}

// parseKey parses a numeric key column.
func parseKey(name, s string) (uint64, error) {
	k, err := phonenumber.ParseKey(cleanText(s))
	if err != nil {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return k, nil
}

// parsePrefix parses a key column that must have at most digits digits.
func parsePrefix(name, s string, digits int) (uint64, error) {
	k, err := parseKey(name, s)
	if err != nil {
		return 0, err
	}
	if digits > 0 && k >= pow10(digits) {
		return 0, fmt.Errorf("%s wider than %d digits", name, digits)
	}
	return k, nil
}

func pow10(n int) uint64 {
	p := uint64(1)
	for i := 0; i < n; i++ {
		p *= 10
	}
	return p
}

func wantFields(fields []string, n int) error {
	if len(fields) != n {
		return fmt.Errorf("expected %d fields, got %d", n, len(fields))
	}
	return nil
}

func wantAtLeast(fields []string, n int) error {
	if len(fields) < n {
		return fmt.Errorf("expected at least %d fields, got %d", n, len(fields))
	}
	return nil
}

func formatKey(k uint64) string { return strconv.FormatUint(k, 10) }
