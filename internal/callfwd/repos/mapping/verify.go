package mapping

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"

	"github.com/bits-and-blooms/bitset"

	"github.com/haukened/callfwd/internal/callfwd/domain"
)

// VerifyOptions tunes Verify.
type VerifyOptions struct {
	// MaxDiff stops the comparison after that many differing rows (<= 0: no limit).
	MaxDiff int
	// Chunk is how many rows are compared between progress reports and
	// cancellation checks (<= 0: 10000).
	Chunk int
	// Progress, when set, is called after each chunk with the rows read so far.
	Progress func(rows int)
	// OnDiff, when set, is called for every row whose key is missing from the
	// snapshot, maps to a different value or repeats an earlier row's key.
	OnDiff func(line int, key uint64)
}

// VerifyResult summarizes a comparison between a CSV stream and a snapshot.
type VerifyResult struct {
	Rows    int  // rows read from the stream
	Diffs   int  // rows that did not match, including repeated keys
	Extra   int  // snapshot records never matched by the stream
	Stopped bool // MaxDiff was reached before the end of the stream
}

// Match reports whether the stream and the snapshot hold exactly the same records.
func (r VerifyResult) Match() bool { return r.Diffs == 0 && r.Extra == 0 && !r.Stopped }

const defaultChunk = 10000

// Verify reads rows from r with codec and compares each against s. Malformed
// rows abort with a *domain.RowFormatError, read failures with a *domain.IOError.
// Cancellation of ctx is observed between chunks.
func Verify[V comparable](ctx context.Context, s *Snapshot[V], codec RowCodec[V], r *bufio.Reader, opts VerifyOptions) (VerifyResult, error) {
	var res VerifyResult
	chunk := opts.Chunk
	if chunk <= 0 {
		chunk = defaultChunk
	}
	delim := codec.Delimiter()
	line := 0
	matched := bitset.New(uint(s.Size()))
	for {
		for i := 0; i < chunk; i++ {
			text, err := nextRow(r, &line)
			if errors.Is(err, io.EOF) {
				res.Extra = s.Size() - int(matched.Count())
				return res, nil
			}
			if err != nil {
				return res, &domain.IOError{Op: "read", Name: s.domain.String(), Rows: res.Rows, Err: err}
			}
			res.Rows++
			key, want, err := codec.ParseRow(strings.Split(text, delim))
			if err != nil {
				return res, &domain.RowFormatError{Line: line, Text: text, Reason: err.Error()}
			}
			if pos, ok := s.position(key); ok && s.values[pos] == want && !matched.Test(uint(pos)) {
				matched.Set(uint(pos))
				continue
			}
			res.Diffs++
			if opts.OnDiff != nil {
				opts.OnDiff(line, key)
			}
			if opts.MaxDiff > 0 && res.Diffs >= opts.MaxDiff {
				res.Stopped = true
				return res, nil
			}
		}
		if opts.Progress != nil {
			opts.Progress(res.Rows)
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}
	}
}
