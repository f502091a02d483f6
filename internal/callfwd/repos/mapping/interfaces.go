// Package mapping is the read-optimized key/value engine behind every lookup
// domain: an immutable sorted Snapshot, the Builder that compiles CSV rows into
// one, and the Slot/Handle pair that publishes snapshots to concurrent readers
// and reclaims retired ones once no reader observes them.
package mapping

// RowCodec converts between one domain's delimited text rows and its records.
// Implementations live in the feeds package.
type RowCodec[V any] interface {
	// Delimiter is the field separator of the domain's CSV layout.
	Delimiter() string
	// ParseRow decodes one row already split into fields. A non-nil error
	// rejects the row; the builder wraps it with the line number.
	ParseRow(fields []string) (key uint64, value V, err error)
	// FormatRow encodes a record back into fields, in ParseRow's order.
	FormatRow(key uint64, value V) []string
}

// KeyFilter is the minimal interface a snapshot needs from a probabilistic
// membership filter. MightContain must be safe for concurrent use once built.
type KeyFilter interface {
	Add(key uint64)
	MightContain(key uint64) bool
}

// FilterFactory builds a KeyFilter sized for n keys at false-positive rate p.
type FilterFactory interface {
	New(n uint64, p float64) KeyFilter
}
