package domain

import (
	"fmt"
	"maps"
	"strconv"
)

// Metadata is the free-form key/value bag attached to a snapshot
// (source file name, row estimate, ingestion country, ...).
type Metadata map[string]any

// Clone returns a shallow copy; nil stays nil.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	return maps.Clone(m)
}

// String returns the value at key rendered as a string, or def when absent.
func (m Metadata) String(key, def string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return def
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Int64 returns the value at key as an integer, or def when absent or not numeric.
func (m Metadata) Int64(key string, def int64) int64 {
	switch v := m[key].(type) {
	case int:
		return int64(v)
	case int64:
		return v
	case uint64:
		return int64(v)
	case float64:
		return int64(v)
	case string:
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}
