package registry

import (
	"bufio"
	"context"
	"errors"
	"io"

	"github.com/haukened/callfwd/internal/callfwd/domain"
	"github.com/haukened/callfwd/internal/callfwd/repos/mapping"
)

// LoadOptions tunes one reload.
type LoadOptions struct {
	// RowEstimate pre-sizes the builder; 5% headroom is added.
	RowEstimate int
	// Chunk is how many rows are ingested between progress reports and
	// cancellation checks (<= 0: 10000).
	Chunk int
	// Metadata is attached to the new snapshot.
	Metadata domain.Metadata
	// Progress, when set, is called after each chunk with the rows read so far.
	Progress func(rows int)
	// Building, when set, is called once ingestion completes, before sorting
	// and publishing.
	Building func(rows int)
}

// LoadResult describes a successful reload.
type LoadResult struct {
	Rows       int
	Generation uint64
}

// Table is the payload-agnostic view of one domain used by the control plane.
type Table interface {
	Domain() domain.DomainID
	Available() bool
	Generation() uint64
	Size() int
	// Metadata returns the current snapshot's metadata, or a
	// *domain.DomainUnavailableError.
	Metadata() (domain.Metadata, error)
	// Load replaces the domain's contents with the rows of r. On any error the
	// current snapshot keeps serving.
	Load(ctx context.Context, r *bufio.Reader, opts LoadOptions) (LoadResult, error)
	Verify(ctx context.Context, r *bufio.Reader, opts mapping.VerifyOptions) (mapping.VerifyResult, error)
	Dump(ctx context.Context, w io.Writer, opts mapping.DumpOptions) (int, error)
	// Keys returns the keys in [low, high) of the current snapshot and its
	// generation.
	Keys(low, high uint64) ([]uint64, uint64, error)
	// Contains reports, for every key, whether the current snapshot holds it.
	// All answers come from one generation, which is returned.
	Contains(keys []uint64) ([]bool, uint64, error)
}

type table[V comparable] struct {
	slot     *mapping.Slot[V]
	codec    mapping.RowCodec[V]
	builder  mapping.BuilderOptions
	valueKey func(V) uint64
	reachOf  func(V) uint64
}

func newTable[V comparable](slot *mapping.Slot[V], codec mapping.RowCodec[V], opts mapping.BuilderOptions) *table[V] {
	return &table[V]{slot: slot, codec: codec, builder: opts}
}

func (t *table[V]) Domain() domain.DomainID { return t.slot.Domain() }
func (t *table[V]) Available() bool         { return t.slot.Available() }
func (t *table[V]) Generation() uint64      { return t.slot.Generation() }
func (t *table[V]) Size() int               { return t.slot.Size() }

func (t *table[V]) Metadata() (domain.Metadata, error) {
	h, err := t.slot.Acquire()
	if err != nil {
		return nil, err
	}
	defer h.Release()
	return h.Snapshot().Metadata(), nil
}

func (t *table[V]) Load(ctx context.Context, r *bufio.Reader, opts LoadOptions) (LoadResult, error) {
	b := mapping.NewBuilder(t.slot.Domain(), t.codec, t.builder)
	if opts.RowEstimate > 0 {
		b.SizeHint(opts.RowEstimate + opts.RowEstimate/20)
	}
	b.SetMetadata(opts.Metadata)
	if t.valueKey != nil {
		b.IndexValues(t.valueKey)
	}
	if t.reachOf != nil {
		b.IndexReach(t.reachOf)
	}

	chunk := opts.Chunk
	if chunk <= 0 {
		chunk = 10000
	}
	rows := 0
	for {
		n, err := b.IngestCSV(r, chunk)
		rows += n
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return LoadResult{Rows: rows}, err
		}
		if opts.Progress != nil {
			opts.Progress(rows)
		}
		if err := ctx.Err(); err != nil {
			return LoadResult{Rows: rows}, err
		}
	}

	if opts.Building != nil {
		opts.Building(rows)
	}
	gen, err := b.Commit(t.slot)
	if err != nil {
		return LoadResult{Rows: rows}, err
	}
	return LoadResult{Rows: rows, Generation: gen}, nil
}

func (t *table[V]) Verify(ctx context.Context, r *bufio.Reader, opts mapping.VerifyOptions) (mapping.VerifyResult, error) {
	h, err := t.slot.Acquire()
	if err != nil {
		return mapping.VerifyResult{}, err
	}
	defer h.Release()
	return mapping.Verify(ctx, h.Snapshot(), t.codec, r, opts)
}

func (t *table[V]) Dump(ctx context.Context, w io.Writer, opts mapping.DumpOptions) (int, error) {
	h, err := t.slot.Acquire()
	if err != nil {
		return 0, err
	}
	defer h.Release()
	return mapping.Dump(ctx, h.Snapshot(), t.codec, w, opts)
}

func (t *table[V]) Keys(low, high uint64) ([]uint64, uint64, error) {
	h, err := t.slot.Acquire()
	if err != nil {
		return nil, 0, err
	}
	c := h.Range(low, high)
	defer c.Close()
	keys := make([]uint64, 0, c.Remaining())
	for c.Next() {
		keys = append(keys, c.Key())
	}
	return keys, c.Generation(), nil
}

func (t *table[V]) Contains(keys []uint64) ([]bool, uint64, error) {
	h, err := t.slot.Acquire()
	if err != nil {
		return nil, 0, err
	}
	defer h.Release()
	values := make([]V, len(keys))
	found := make([]bool, len(keys))
	h.Snapshot().LookupBatch(keys, values, found)
	return found, h.Generation(), nil
}
