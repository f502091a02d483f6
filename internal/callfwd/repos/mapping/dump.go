package mapping

import (
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/haukened/callfwd/internal/callfwd/domain"
)

// DumpOptions tunes Dump.
type DumpOptions struct {
	// Chunk is how many rows are written between progress reports and
	// cancellation checks (<= 0: 10000).
	Chunk int
	// Progress, when set, is called after each chunk with the rows written so far.
	Progress func(rows int)
}

// Dump writes every record of s to w in ascending key order, one
// delimiter-joined row per line terminated by CRLF. It returns the number of
// rows written. Write failures are returned as *domain.IOError.
func Dump[V any](ctx context.Context, s *Snapshot[V], codec RowCodec[V], w io.Writer, opts DumpOptions) (int, error) {
	chunk := opts.Chunk
	if chunk <= 0 {
		chunk = defaultChunk
	}
	bw := bufio.NewWriter(w)
	delim := codec.Delimiter()
	rows := 0
	wrap := func(err error) error {
		return &domain.IOError{Op: "write", Name: s.domain.String(), Rows: rows, Err: err}
	}

	c := s.Range(0, ^uint64(0))
	for {
		for i := 0; i < chunk; i++ {
			if !c.Next() {
				if err := bw.Flush(); err != nil {
					return rows, wrap(err)
				}
				return rows, nil
			}
			if _, err := bw.WriteString(strings.Join(codec.FormatRow(c.Key(), c.Value()), delim)); err != nil {
				return rows, wrap(err)
			}
			if _, err := bw.WriteString("\r\n"); err != nil {
				return rows, wrap(err)
			}
			rows++
		}
		if opts.Progress != nil {
			opts.Progress(rows)
		}
		if err := ctx.Err(); err != nil {
			return rows, err
		}
	}
}
