package mapping

import (
	"cmp"
	"errors"
	"slices"

	"github.com/haukened/callfwd/internal/callfwd/domain"
)

// ErrBuilderConsumed is returned by any Builder method called after Build or Commit.
var ErrBuilderConsumed = errors.New("builder already consumed")

type entry[V any] struct {
	key   uint64
	line  int
	value V
}

// BuilderOptions tunes snapshot construction.
type BuilderOptions struct {
	// Filter, when set, attaches a membership prefilter sized for the final row
	// count at FalsePositiveRate.
	Filter            FilterFactory
	FalsePositiveRate float64
}

// Builder accumulates rows for one domain and compiles them into a Snapshot.
// A Builder belongs to the goroutine performing the ingestion and is consumed by
// Build or Commit whether or not they succeed.
type Builder[V any] struct {
	id       domain.DomainID
	codec    RowCodec[V]
	opts     BuilderOptions
	entries  []entry[V]
	meta     domain.Metadata
	valueKey func(V) uint64
	reachOf  func(V) uint64
	line     int
	ordered  bool
	consumed bool
}

// NewBuilder returns an empty builder for id using codec to parse rows.
func NewBuilder[V any](id domain.DomainID, codec RowCodec[V], opts BuilderOptions) *Builder[V] {
	return &Builder[V]{id: id, codec: codec, opts: opts, ordered: true}
}

// SizeHint reserves room for n rows.
func (b *Builder[V]) SizeHint(n int) {
	if b.consumed || n <= cap(b.entries) {
		return
	}
	grown := make([]entry[V], len(b.entries), n)
	copy(grown, b.entries)
	b.entries = grown
}

// SetMetadata attaches a copy of meta to the eventual snapshot.
func (b *Builder[V]) SetMetadata(meta domain.Metadata) {
	b.meta = meta.Clone()
}

// IndexValues makes the snapshot keep a secondary index ordered by fn(value),
// queried with InverseRange.
func (b *Builder[V]) IndexValues(fn func(V) uint64) {
	b.valueKey = fn
}

// IndexReach makes the snapshot keep, for every record, the largest fn(value)
// among that record and all records with smaller keys, queried with Reach.
// Interval payloads use it to answer containment when intervals nest.
func (b *Builder[V]) IndexReach(fn func(V) uint64) {
	b.reachOf = fn
}

// Lines returns how many input lines the builder has consumed.
func (b *Builder[V]) Lines() int { return b.line }

// Len returns the number of rows accepted so far.
func (b *Builder[V]) Len() int { return len(b.entries) }

// AddRow parses one row of fields and adds it to the scratch buffer. It fails with
// a *domain.RowFormatError when the codec rejects the row and with a
// *domain.DuplicateKeyError when the key repeats the previous row's key. Duplicates
// that are not adjacent are caught by Build.
func (b *Builder[V]) AddRow(fields []string) error {
	if b.consumed {
		return ErrBuilderConsumed
	}
	b.line++
	return b.addRow(b.line, fields, "")
}

func (b *Builder[V]) addRow(line int, fields []string, text string) error {
	key, value, err := b.codec.ParseRow(fields)
	if err != nil {
		if text == "" {
			text = joinFields(fields, b.codec.Delimiter())
		}
		return &domain.RowFormatError{Line: line, Text: text, Reason: err.Error()}
	}
	if n := len(b.entries); n > 0 {
		prev := b.entries[n-1].key
		if prev == key {
			return &domain.DuplicateKeyError{Line: line, Key: key}
		}
		if prev > key {
			b.ordered = false
		}
	}
	b.entries = append(b.entries, entry[V]{key: key, line: line, value: value})
	return nil
}

// Build sorts the scratch buffer, rejects duplicate keys and returns the frozen
// snapshot. The builder is consumed.
func (b *Builder[V]) Build() (*Snapshot[V], error) {
	if b.consumed {
		return nil, ErrBuilderConsumed
	}
	b.consumed = true
	entries := b.entries
	b.entries = nil

	if !b.ordered {
		slices.SortStableFunc(entries, func(x, y entry[V]) int { return cmp.Compare(x.key, y.key) })
		for i := 1; i < len(entries); i++ {
			if entries[i].key == entries[i-1].key {
				line := max(entries[i].line, entries[i-1].line)
				return nil, &domain.DuplicateKeyError{Line: line, Key: entries[i].key}
			}
		}
	}

	keys := make([]uint64, len(entries))
	values := make([]V, len(entries))
	for i, e := range entries {
		keys[i] = e.key
		values[i] = e.value
	}

	var filter KeyFilter
	if b.opts.Filter != nil && b.opts.FalsePositiveRate > 0 {
		filter = b.opts.Filter.New(uint64(len(keys)), b.opts.FalsePositiveRate)
		for _, k := range keys {
			filter.Add(k)
		}
	}

	meta := b.meta
	if meta == nil {
		meta = domain.Metadata{}
	}
	s := newSnapshot(b.id, keys, values, meta, filter)
	if b.valueKey != nil {
		s.valueKey = b.valueKey
		s.byValue = valueIndex(values, b.valueKey)
	}
	if b.reachOf != nil {
		s.reach = reachIndex(values, b.reachOf)
	}
	return s, nil
}

// valueIndex returns the positions of values ordered by fn(value). Positions
// are already in key order, so a stable sort breaks ties by key.
func valueIndex[V any](values []V, fn func(V) uint64) []uint32 {
	idx := make([]uint32, len(values))
	for i := range idx {
		idx[i] = uint32(i)
	}
	slices.SortStableFunc(idx, func(a, b uint32) int {
		return cmp.Compare(fn(values[a]), fn(values[b]))
	})
	return idx
}

// reachIndex returns the running maximum of fn over values in key order.
func reachIndex[V any](values []V, fn func(V) uint64) []uint64 {
	reach := make([]uint64, len(values))
	var top uint64
	for i, v := range values {
		top = max(top, fn(v))
		reach[i] = top
	}
	return reach
}

// Commit builds the snapshot and publishes it into slot, retiring the previous
// one. On error the slot is left untouched. It returns the published snapshot's
// generation.
func (b *Builder[V]) Commit(slot *Slot[V]) (uint64, error) {
	s, err := b.Build()
	if err != nil {
		return 0, err
	}
	return slot.Publish(s)
}
