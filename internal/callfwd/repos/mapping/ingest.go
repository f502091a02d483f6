package mapping

import (
	"bufio"
	"errors"
	"io"
	"strings"

	"github.com/haukened/callfwd/internal/callfwd/domain"
)

const utf8BOM = "\ufeff"

// IngestCSV reads up to limit non-blank lines from r and adds them as rows. A
// limit <= 0 reads to the end of the stream. It returns the number of rows added
// and io.EOF once the stream is exhausted, so a caller can ingest in chunks and
// log progress between them:
//
//	for {
//		n, err := b.IngestCSV(r, chunk)
//		total += n
//		if errors.Is(err, io.EOF) {
//			break
//		}
//		if err != nil {
//			return err
//		}
//	}
//
// Row errors carry the 1-based line number and the offending text. Read errors
// are returned as *domain.IOError.
func (b *Builder[V]) IngestCSV(r *bufio.Reader, limit int) (int, error) {
	if b.consumed {
		return 0, ErrBuilderConsumed
	}
	delim := b.codec.Delimiter()
	added := 0
	for limit <= 0 || added < limit {
		text, err := nextRow(r, &b.line)
		if errors.Is(err, io.EOF) {
			return added, io.EOF
		}
		if err != nil {
			return added, &domain.IOError{Op: "read", Name: b.id.String(), Rows: b.line, Err: err}
		}
		if err := b.addRow(b.line, strings.Split(text, delim), text); err != nil {
			return added, err
		}
		added++
	}
	return added, nil
}

// nextRow returns the next non-blank line of r without its terminator and
// advances *line past every line consumed. It returns io.EOF at the end of
// the stream.
func nextRow(r *bufio.Reader, line *int) (string, error) {
	for {
		text, err := r.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		if text == "" && err != nil {
			return "", io.EOF
		}
		*line++
		text = strings.TrimRight(text, "\r\n")
		if *line == 1 {
			text = strings.TrimPrefix(text, utf8BOM)
		}
		if strings.TrimSpace(text) != "" {
			return text, nil
		}
		if err != nil {
			return "", io.EOF
		}
	}
}

func joinFields(fields []string, delim string) string {
	return strings.Join(fields, delim)
}
