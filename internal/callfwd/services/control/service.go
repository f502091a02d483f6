// Package control executes administrative commands against the registry:
// per-domain reloads, verify, dump and metadata reports.
package control

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap/zapcore"

	"github.com/haukened/callfwd/internal/callfwd/common/clock"
	"github.com/haukened/callfwd/internal/callfwd/common/log"
	"github.com/haukened/callfwd/internal/callfwd/domain"
	"github.com/haukened/callfwd/internal/callfwd/infra/metrics"
	"github.com/haukened/callfwd/internal/callfwd/repos/history"
)

// ErrMismatch is returned by verify when the file and the loaded table differ.
var ErrMismatch = errors.New("loaded table does not match file")

// Options configures a Service.
type Options struct {
	Registry Registry
	Journal  history.Journal
	Metrics  *metrics.Metrics
	Logger   log.Logger
	Clock    clock.Clock

	// ReportPeriod is the minimum interval between progress lines.
	ReportPeriod time.Duration
	// OpTimeout bounds every command; zero means no deadline.
	OpTimeout time.Duration
	// RowChunk is how many rows are processed between progress checks.
	RowChunk int
	// VerifyMaxDiff stops a verify after that many differing rows.
	VerifyMaxDiff int
	// HistoryLimit is how many journal entries meta prints (<= 0: 10).
	HistoryLimit int
}

// Service dispatches control commands. Each Execute call is independent;
// concurrent reloads of one domain race and the last commit wins.
type Service struct {
	reg          Registry
	journal      history.Journal
	metrics      *metrics.Metrics
	logger       log.Logger
	clock        clock.Clock
	reportPeriod time.Duration
	timeout      time.Duration
	rowChunk     int
	maxDiff      int
	historyLimit int
}

// New returns a Service. A nil journal keeps no history and a nil logger
// discards.
func New(opts Options) *Service {
	s := &Service{
		reg:          opts.Registry,
		journal:      opts.Journal,
		metrics:      opts.Metrics,
		logger:       opts.Logger,
		clock:        opts.Clock,
		reportPeriod: opts.ReportPeriod,
		timeout:      opts.OpTimeout,
		rowChunk:     opts.RowChunk,
		maxDiff:      opts.VerifyMaxDiff,
		historyLimit: opts.HistoryLimit,
	}
	if s.journal == nil {
		s.journal = history.Nop{}
	}
	if s.logger == nil {
		s.logger = log.NewNoopLogger()
	}
	if s.clock == nil {
		s.clock = clock.RealClock{}
	}
	if s.historyLimit <= 0 {
		s.historyLimit = 10
	}
	return s
}

// operation carries the per-command state shared by the handlers.
type operation struct {
	cmd    Command
	route  route
	target domain.DomainID
	// resolved is set once target names the domain the command acts on.
	resolved bool
	logger   log.Logger
	rows     int
	gen      uint64
}

// fields returns kv extended with the request identity.
func (o *operation) fields(kv map[string]any) map[string]any {
	out := make(map[string]any, len(kv)+2)
	for k, v := range kv {
		out[k] = v
	}
	out["request_id"] = o.cmd.RequestID
	out["cmd"] = o.cmd.Name
	return out
}

// Execute runs cmd to completion and reports its outcome. Every failure is
// logged to the daemon log and to cmd.Log; none of them affects the snapshots
// currently being served.
func (s *Service) Execute(ctx context.Context, cmd Command) error {
	started := s.clock.Now()
	if cmd.RequestID == "" {
		cmd.RequestID = uuid.NewString()
	}
	op := &operation{cmd: cmd, logger: s.logger}
	if cmd.Log != nil {
		op.logger = log.Tee(s.logger, log.NewWriterLogger(cmd.Log, zapcore.InfoLevel))
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	err := s.dispatch(ctx, op)
	s.finish(op, started, err)
	return err
}

func (s *Service) dispatch(ctx context.Context, op *operation) error {
	r, ok := routes[op.cmd.Name]
	if !ok {
		op.logger.Warn(op.fields(nil), "Unrecognized command")
		return &domain.ProtocolError{Reason: "unrecognized command " + op.cmd.Name}
	}
	op.route = r
	if r.kind == opMeta {
		return s.meta(op)
	}

	id, err := r.target(op.cmd.Meta)
	if err != nil {
		op.logger.Error(op.fields(map[string]any{"error": err.Error()}), "Bad command")
		return err
	}
	op.target = id
	op.resolved = true

	switch r.kind {
	case opReload:
		return s.reload(ctx, op)
	case opVerify:
		return s.verify(ctx, op)
	default:
		return s.dump(ctx, op)
	}
}

func (s *Service) finish(op *operation, started time.Time, err error) {
	d := s.clock.Now().Sub(started)
	label := op.cmd.Name
	if _, known := routes[label]; !known {
		label = "unknown"
	}
	s.metrics.ObserveControl(label, err == nil, d)

	e := history.Entry{
		RequestID:  op.cmd.RequestID,
		Cmd:        op.cmd.Name,
		Rows:       op.rows,
		Generation: op.gen,
		OK:         err == nil,
		Started:    started,
		Duration:   d,
	}
	if op.resolved {
		e.Domain = op.target.String()
	}
	if err != nil {
		e.Error = err.Error()
	}
	if jerr := s.journal.Record(e); jerr != nil {
		s.logger.Warn(op.fields(map[string]any{"error": jerr.Error()}), "Failed to record history")
	}
}

// progress logs a percentage when total is known, otherwise a row count.
func progress(op *operation, rows int, total int64) {
	if total > 0 {
		op.logger.Info(op.fields(map[string]any{"rows": rows, "percent": int64(rows) * 100 / total}), "Progress")
		return
	}
	op.logger.Info(op.fields(map[string]any{"rows": rows}), "Rows read")
}
