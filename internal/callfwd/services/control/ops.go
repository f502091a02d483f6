package control

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/haukened/callfwd/internal/callfwd/common/clock"
	"github.com/haukened/callfwd/internal/callfwd/domain"
	"github.com/haukened/callfwd/internal/callfwd/repos/mapping"
	"github.com/haukened/callfwd/internal/callfwd/repos/registry"
)

const readBufferSize = 1 << 19

type readDeadliner interface {
	SetReadDeadline(t time.Time) error
}

type writeDeadliner interface {
	SetWriteDeadline(t time.Time) error
}

// openInput returns the passed stdin or, failing that, the file named by the
// "path" field. The returned close func is never nil.
func openInput(ctx context.Context, op *operation) (io.Reader, string, func(), error) {
	if in := op.cmd.Input; in != nil {
		if dl, ok := ctx.Deadline(); ok {
			if d, ok := in.(readDeadliner); ok {
				// Regular files report ErrNoDeadline; only pipes and sockets honor it.
				_ = d.SetReadDeadline(dl)
			}
		}
		return in, "stdin", func() {}, nil
	}
	path := op.cmd.Meta.String("path", "")
	if path == "" {
		return nil, "", func() {}, &domain.ProtocolError{Reason: "no input descriptor or path"}
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, path, func() {}, &domain.IOError{Op: "open", Name: path, Err: err}
	}
	return f, path, func() { _ = f.Close() }, nil
}

// openOutput mirrors openInput for the dump sink.
func openOutput(ctx context.Context, op *operation) (io.Writer, string, func() error, error) {
	if out := op.cmd.Output; out != nil {
		if dl, ok := ctx.Deadline(); ok {
			if d, ok := out.(writeDeadliner); ok {
				_ = d.SetWriteDeadline(dl)
			}
		}
		return out, "stdout", func() error { return nil }, nil
	}
	path := op.cmd.Meta.String("path", "")
	if path == "" {
		return nil, "", func() error { return nil }, &domain.ProtocolError{Reason: "no output descriptor or path"}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, path, func() error { return nil }, &domain.IOError{Op: "create", Name: path, Err: err}
	}
	return f, path, f.Close, nil
}

func (s *Service) table(op *operation) (registry.Table, error) {
	t, err := s.reg.Table(op.target)
	if err != nil {
		op.logger.Error(op.fields(map[string]any{"domain": op.target.String(), "error": err.Error()}), "Unknown domain")
		return nil, err
	}
	return t, nil
}

func (s *Service) reload(ctx context.Context, op *operation) error {
	t, err := s.table(op)
	if err != nil {
		return err
	}
	in, source, done, err := openInput(ctx, op)
	defer done()
	if err != nil {
		op.logger.Error(op.fields(map[string]any{"error": err.Error()}), "Cannot open input")
		return err
	}

	meta := op.cmd.Meta.Clone()
	if meta == nil {
		meta = domain.Metadata{}
	}
	name := meta.String("file_name", source)
	meta["file_name"] = name
	estimate := meta.Int64("row_estimate", 0)
	if estimate < 0 {
		estimate = 0
	}

	op.logger.Info(op.fields(map[string]any{
		"domain":       op.target.String(),
		"file":         name,
		"row_estimate": estimate,
	}), "Reading database")

	sw := clock.NewStopwatch(s.clock, s.reportPeriod)
	res, err := t.Load(ctx, bufio.NewReaderSize(in, readBufferSize), registry.LoadOptions{
		RowEstimate: int(estimate),
		Chunk:       s.rowChunk,
		Metadata:    meta,
		Progress: func(rows int) {
			if sw.Lap() {
				progress(op, rows, estimate)
			}
		},
		Building: func(rows int) {
			op.logger.Info(op.fields(map[string]any{"rows": rows}), fmt.Sprintf("Building index (%d rows)", rows))
		},
	})
	op.rows = res.Rows
	if err != nil {
		op.logger.Error(op.fields(map[string]any{
			"domain": op.target.String(),
			"file":   filepath.Base(name),
			"rows":   res.Rows,
			"error":  err.Error(),
		}), "Reload failed")
		return err
	}
	op.gen = res.Generation

	s.metrics.SetSnapshot(op.target.String(), res.Rows, res.Generation)
	s.metrics.SetRetiredPending(s.reg.RetiredPending())
	op.logger.Info(op.fields(map[string]any{
		"domain":     op.target.String(),
		"rows":       res.Rows,
		"generation": res.Generation,
		"elapsed":    sw.Elapsed().String(),
	}), "Reload complete")
	return nil
}

func (s *Service) verify(ctx context.Context, op *operation) error {
	t, err := s.table(op)
	if err != nil {
		return err
	}
	in, source, done, err := openInput(ctx, op)
	defer done()
	if err != nil {
		op.logger.Error(op.fields(map[string]any{"error": err.Error()}), "Cannot open input")
		return err
	}
	name := filepath.Base(op.cmd.Meta.String("file_name", source))

	op.logger.Info(op.fields(map[string]any{"domain": op.target.String()}), "Verifying database")
	total := int64(t.Size())
	sw := clock.NewStopwatch(s.clock, s.reportPeriod)
	res, err := t.Verify(ctx, bufio.NewReaderSize(in, readBufferSize), mapping.VerifyOptions{
		MaxDiff: s.maxDiff,
		Chunk:   s.rowChunk,
		Progress: func(rows int) {
			if sw.Lap() {
				progress(op, rows, total)
			}
		},
		OnDiff: func(line int, key uint64) {
			op.logger.Error(op.fields(map[string]any{"file": name, "line": line, "key": key}), "Key differs")
		},
	})
	op.rows = res.Rows
	if err != nil {
		op.logger.Error(op.fields(map[string]any{"file": name, "rows": res.Rows, "error": err.Error()}), "Verify failed")
		return err
	}

	switch {
	case res.Stopped:
		op.logger.Error(op.fields(map[string]any{"diffs": res.Diffs}), "Diff limit reached, stopping")
		return fmt.Errorf("%w: diff limit of %d reached", ErrMismatch, s.maxDiff)
	case res.Diffs > 0:
		return fmt.Errorf("%w: %d differing rows", ErrMismatch, res.Diffs)
	case res.Extra > 0:
		op.logger.Error(op.fields(map[string]any{"extra": res.Extra}), fmt.Sprintf("Loaded DB has %d extra rows", res.Extra))
		return fmt.Errorf("%w: %d extra rows", ErrMismatch, res.Extra)
	}
	op.logger.Info(op.fields(map[string]any{"rows": res.Rows}), "Loaded database matches file")
	return nil
}

func (s *Service) dump(ctx context.Context, op *operation) (err error) {
	t, err := s.table(op)
	if err != nil {
		return err
	}
	out, sink, done, err := openOutput(ctx, op)
	defer func() {
		if cerr := done(); cerr != nil && err == nil {
			err = &domain.IOError{Op: "close", Name: sink, Rows: op.rows, Err: cerr}
			op.logger.Error(op.fields(map[string]any{"error": err.Error()}), "Dump failed")
		}
	}()
	if err != nil {
		op.logger.Error(op.fields(map[string]any{"error": err.Error()}), "Cannot open output")
		return err
	}

	op.logger.Info(op.fields(map[string]any{"domain": op.target.String()}), "Dumping database")
	total := int64(t.Size())
	sw := clock.NewStopwatch(s.clock, s.reportPeriod)
	n, err := t.Dump(ctx, out, mapping.DumpOptions{
		Chunk: s.rowChunk,
		Progress: func(rows int) {
			if sw.Lap() {
				progress(op, rows, total)
			}
		},
	})
	op.rows = n
	if err != nil {
		op.logger.Error(op.fields(map[string]any{"rows": n, "error": err.Error()}), "Dump failed")
		return err
	}
	op.logger.Info(op.fields(map[string]any{"rows": n}), fmt.Sprintf("%d rows dumped", n))
	return nil
}

// meta prints the metadata of every loaded domain followed by recent history.
func (s *Service) meta(op *operation) error {
	for _, t := range s.reg.Tables() {
		md, err := t.Metadata()
		if err != nil {
			op.logger.Info(op.fields(map[string]any{"domain": t.Domain().String()}), "Not loaded")
			continue
		}
		kv := make(map[string]any, len(md)+3)
		for k, v := range md {
			kv[k] = v
		}
		kv["domain"] = t.Domain().String()
		kv["generation"] = t.Generation()
		kv["records"] = t.Size()
		op.logger.Info(op.fields(kv), "Metadata")
	}

	entries, err := s.journal.Recent(s.historyLimit)
	if err != nil {
		op.logger.Warn(op.fields(map[string]any{"error": err.Error()}), "Cannot read history")
		return nil
	}
	for _, e := range entries {
		kv := map[string]any{
			"entry_request_id": e.RequestID,
			"entry_cmd":        e.Cmd,
			"ok":               e.OK,
			"rows":             e.Rows,
			"started":          e.Started.Format(time.RFC3339),
			"duration":         e.Duration.String(),
		}
		if e.Domain != "" {
			kv["domain"] = e.Domain
		}
		if e.Error != "" {
			kv["error"] = e.Error
		}
		op.logger.Info(op.fields(kv), "History")
	}
	return nil
}
