package control

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/callfwd/internal/callfwd/common/clock"
	"github.com/haukened/callfwd/internal/callfwd/domain"
	"github.com/haukened/callfwd/internal/callfwd/infra/metrics"
	"github.com/haukened/callfwd/internal/callfwd/repos/history"
	"github.com/haukened/callfwd/internal/callfwd/repos/registry"
)

type memJournal struct {
	mu      sync.Mutex
	entries []history.Entry
	failAll bool
}

func (j *memJournal) Record(e history.Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.failAll {
		return errors.New("journal full")
	}
	j.entries = append(j.entries, e)
	return nil
}

func (j *memJournal) Recent(n int) ([]history.Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.failAll {
		return nil, errors.New("journal unreadable")
	}
	out := make([]history.Entry, 0, n)
	for i := len(j.entries) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, j.entries[i])
	}
	return out, nil
}

func (j *memJournal) Close() error { return nil }

func (j *memJournal) last(t *testing.T) history.Entry {
	t.Helper()
	j.mu.Lock()
	defer j.mu.Unlock()
	require.NotEmpty(t, j.entries)
	return j.entries[len(j.entries)-1]
}

// tickingClock advances by step on every reading.
type tickingClock struct {
	clock.MockClock
	step time.Duration
}

func (c *tickingClock) Now() time.Time {
	c.Advance(c.step)
	return c.MockClock.Now()
}

type fixture struct {
	svc     *Service
	reg     *registry.Registry
	journal *memJournal
	prom    *prometheus.Registry
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	f := &fixture{
		reg:     registry.New(registry.Options{}),
		journal: &memJournal{},
		prom:    prometheus.NewRegistry(),
	}
	opts.Registry = f.reg
	if opts.Journal == nil {
		opts.Journal = f.journal
	}
	opts.Metrics = metrics.New(f.prom)
	if opts.Clock == nil {
		opts.Clock = &clock.MockClock{CurrentTime: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	}
	if opts.RowChunk == 0 {
		opts.RowChunk = 100
	}
	if opts.VerifyMaxDiff == 0 {
		opts.VerifyMaxDiff = 100
	}
	f.svc = New(opts)
	return f
}

func (f *fixture) run(t *testing.T, name, input string, meta domain.Metadata) (string, error) {
	t.Helper()
	var logs bytes.Buffer
	cmd := Command{Name: name, Log: &logs, Meta: meta}
	if input != "" {
		cmd.Input = strings.NewReader(input)
	}
	err := f.svc.Execute(context.Background(), cmd)
	return logs.String(), err
}

func (f *fixture) rn(t *testing.T, id domain.DomainID, pn uint64) (uint64, bool) {
	t.Helper()
	slot := f.reg.US()
	if id == domain.DomainCA {
		slot = f.reg.CA()
	}
	h, err := slot.Acquire()
	require.NoError(t, err)
	defer h.Release()
	return h.Snapshot().Lookup(pn)
}

func (f *fixture) counter(t *testing.T, cmd, status string) float64 {
	t.Helper()
	families, err := f.prom.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != "callfwd_control_operations_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			if labels["cmd"] == cmd && labels["status"] == status {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

const routingCSV = "2135550100,2135559999\r\n2135550101,2135559999\r\n"

func TestExecute_ReloadPublishesAndJournals(t *testing.T) {
	f := newFixture(t, Options{})

	logs, err := f.run(t, "reload", routingCSV, domain.Metadata{"row_estimate": float64(2), "file_name": "/srv/npac.csv"})
	require.NoError(t, err)

	rn, ok := f.rn(t, domain.DomainUS, 2135550100)
	require.True(t, ok)
	assert.Equal(t, uint64(2135559999), rn)
	assert.False(t, f.reg.CA().Available())

	assert.Contains(t, logs, "Reading database")
	assert.Contains(t, logs, "Building index (2 rows)")
	assert.Contains(t, logs, "Reload complete")

	e := f.journal.last(t)
	assert.Equal(t, "reload", e.Cmd)
	assert.Equal(t, "us", e.Domain)
	assert.Equal(t, 2, e.Rows)
	assert.Equal(t, uint64(1), e.Generation)
	assert.True(t, e.OK)
	assert.NotEmpty(t, e.RequestID)
	assert.Equal(t, float64(1), f.counter(t, "reload", "success"))

	tbl, err := f.reg.Table(domain.DomainUS)
	require.NoError(t, err)
	md, err := tbl.Metadata()
	require.NoError(t, err)
	assert.Equal(t, "/srv/npac.csv", md.String("file_name", ""))
}

func TestExecute_ReloadRoutesByCommand(t *testing.T) {
	tests := []struct {
		cmd    string
		meta   domain.Metadata
		input  string
		domain domain.DomainID
	}{
		{"reload", domain.Metadata{"country": "CA"}, routingCSV, domain.DomainCA},
		{"reload", domain.Metadata{"country": "us"}, routingCSV, domain.DomainUS},
		{"dnc_reload", nil, "2135550100\n", domain.DomainDNC},
		{"tollfree_reload", nil, "8005550100\n", domain.DomainTollFree},
		{"dno_reload", nil, "2135550100\n", domain.DomainDNO},
		{"dno_npa_reload", nil, "213\n", domain.DomainDNONPA},
		{"dno_npa_nxx_reload", nil, "213555\n", domain.DomainDNONPANXX},
		{"dno_npa_nxx_x_reload", nil, "2135550\n", domain.DomainDNONPANXXX},
		{"lerg_reload", nil, "213555,Acme,1234,CLEC,730,LSAN DA 01,US\n", domain.DomainLERG},
		{"geo_reload", nil, "213555,90012,Los Angeles,Los Angeles,34.05,-118.24,PST\n", domain.DomainGeo},
		{"youmail_reload", nil, "2135550100,0.9,0.5,1,0\n", domain.DomainYouMail},
		{"ftc_reload", nil, "2135550100,2026-01-01,2025-12-01\n", domain.DomainFTC},
		{"404_reload", nil, "2135550100,2026-01-01,2025-12-01\n", domain.Domain404},
		{"606_reload", nil, "2135550100,2026-01-01,2025-12-01\n", domain.Domain606},
		{"acl", nil, "10.0.0.0/8\n", domain.DomainACL},
	}
	for _, tt := range tests {
		t.Run(tt.cmd+"/"+tt.domain.String(), func(t *testing.T) {
			f := newFixture(t, Options{})
			logs, err := f.run(t, tt.cmd, tt.input, tt.meta)
			require.NoError(t, err, logs)

			for _, tbl := range f.reg.Tables() {
				assert.Equal(t, tbl.Domain() == tt.domain, tbl.Available(), tbl.Domain().String())
			}
			assert.Equal(t, tt.domain.String(), f.journal.last(t).Domain)
		})
	}
}

func TestExecute_MalformedRowKeepsPriorSnapshot(t *testing.T) {
	f := newFixture(t, Options{})
	_, err := f.run(t, "reload", routingCSV, nil)
	require.NoError(t, err)

	logs, err := f.run(t, "reload", "3125550100,3125559999\nnot-a-number,1\n", domain.Metadata{"file_name": "/srv/bad.csv"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRowFormat)
	assert.Contains(t, logs, "Reload failed")
	assert.Contains(t, logs, "bad.csv")

	rn, ok := f.rn(t, domain.DomainUS, 2135550100)
	require.True(t, ok)
	assert.Equal(t, uint64(2135559999), rn)
	_, ok = f.rn(t, domain.DomainUS, 3125550100)
	assert.False(t, ok)
	assert.Equal(t, uint64(1), f.reg.US().Generation())

	e := f.journal.last(t)
	assert.False(t, e.OK)
	assert.NotEmpty(t, e.Error)
	assert.Equal(t, float64(1), f.counter(t, "reload", "failure"))
}

func TestExecute_DuplicateKeyFails(t *testing.T) {
	f := newFixture(t, Options{})
	logs, err := f.run(t, "dnc_reload", "2135550100\n2135550100\n", nil)
	require.Error(t, err)
	var dup *domain.DuplicateKeyError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, 2, dup.Line)
	assert.Contains(t, logs, "duplicate key")
	assert.False(t, f.reg.DNC().Available())
}

func TestExecute_UnknownCommand(t *testing.T) {
	f := newFixture(t, Options{})
	logs, err := f.run(t, "reboot", "", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrProtocol)
	assert.Contains(t, logs, "Unrecognized command")
	assert.Empty(t, f.journal.last(t).Domain)
	assert.Equal(t, float64(1), f.counter(t, "unknown", "failure"))
}

func TestExecute_MissingInput(t *testing.T) {
	f := newFixture(t, Options{})
	logs, err := f.run(t, "reload", "", nil)
	assert.ErrorIs(t, err, domain.ErrProtocol)
	assert.Contains(t, logs, "Cannot open input")

	_, err = f.run(t, "reload", "", domain.Metadata{"path": filepath.Join(t.TempDir(), "missing.csv")})
	assert.ErrorIs(t, err, domain.ErrIO)
}

func TestExecute_BadDomainField(t *testing.T) {
	f := newFixture(t, Options{})
	logs, err := f.run(t, "verify", routingCSV, domain.Metadata{"domain": "nope"})
	assert.ErrorIs(t, err, domain.ErrProtocol)
	assert.Contains(t, logs, "Bad command")
}

func TestExecute_ReloadFromPath(t *testing.T) {
	f := newFixture(t, Options{})
	path := filepath.Join(t.TempDir(), "us.csv")
	require.NoError(t, os.WriteFile(path, []byte(routingCSV), 0o600))

	_, err := f.run(t, "reload", "", domain.Metadata{"path": path})
	require.NoError(t, err)
	assert.Equal(t, 2, f.reg.US().Size())

	tbl, err := f.reg.Table(domain.DomainUS)
	require.NoError(t, err)
	md, err := tbl.Metadata()
	require.NoError(t, err)
	assert.Equal(t, path, md.String("file_name", ""))
}

func TestExecute_ReloadReportsProgress(t *testing.T) {
	f := newFixture(t, Options{
		Clock:        &tickingClock{step: time.Second},
		ReportPeriod: time.Second,
		RowChunk:     1,
	})

	logs, err := f.run(t, "reload", "2135550100,1\n2135550101,1\n2135550102,1\n2135550103,1\n", domain.Metadata{"row_estimate": "4"})
	require.NoError(t, err)
	assert.Contains(t, logs, "Progress")
	assert.Contains(t, logs, `"percent"`)

	logs, err = f.run(t, "dnc_reload", "2135550100\n2135550101\n2135550102\n", nil)
	require.NoError(t, err)
	assert.Contains(t, logs, "Rows read")
	assert.NotContains(t, logs, `"percent"`)
}

func TestExecute_CancelledContextAbortsReload(t *testing.T) {
	f := newFixture(t, Options{RowChunk: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := f.svc.Execute(ctx, Command{Name: "reload", Input: strings.NewReader(routingCSV)})
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, f.reg.US().Available())
}

func TestExecute_Verify(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		maxDiff int
		wantErr bool
		wantLog string
	}{
		{"match", routingCSV, 100, false, "Loaded database matches file"},
		{"differs", "2135550100,2135559999\n2135550101,1\n", 100, true, "Key differs"},
		{"extra rows", "2135550100,2135559999\n", 100, true, "extra rows"},
		{"diff limit", "2135550100,1\n2135550101,1\n", 1, true, "Diff limit reached"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Options{VerifyMaxDiff: tt.maxDiff})
			_, err := f.run(t, "reload", routingCSV, nil)
			require.NoError(t, err)

			logs, err := f.run(t, "verify", tt.input, nil)
			assert.Contains(t, logs, tt.wantLog)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMismatch)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, 2, f.journal.last(t).Rows)
		})
	}
}

func TestExecute_VerifyCountryAndDomain(t *testing.T) {
	f := newFixture(t, Options{})
	_, err := f.run(t, "reload", routingCSV, domain.Metadata{"country": "CA"})
	require.NoError(t, err)
	_, err = f.run(t, "dnc_reload", "2135550100\n", nil)
	require.NoError(t, err)

	_, err = f.run(t, "verify", routingCSV, nil)
	assert.ErrorIs(t, err, domain.ErrDomainUnavailable)

	_, err = f.run(t, "verify", routingCSV, domain.Metadata{"country": "CA"})
	assert.NoError(t, err)

	_, err = f.run(t, "verify", "2135550100\n", domain.Metadata{"domain": "dnc"})
	assert.NoError(t, err)
	assert.Equal(t, "dnc", f.journal.last(t).Domain)
}

func TestExecute_Dump(t *testing.T) {
	f := newFixture(t, Options{})
	_, err := f.run(t, "reload", "2135550101,2135559999\n2135550100,2135559998\n", nil)
	require.NoError(t, err)

	var out bytes.Buffer
	var logs bytes.Buffer
	err = f.svc.Execute(context.Background(), Command{Name: "dump", Output: &out, Log: &logs})
	require.NoError(t, err)
	assert.Equal(t, "2135550100,2135559998\r\n2135550101,2135559999\r\n", out.String())
	assert.Contains(t, logs.String(), "2 rows dumped")

	path := filepath.Join(t.TempDir(), "dump.csv")
	_, err = f.run(t, "dump", "", domain.Metadata{"path": path})
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, out.String(), string(data))
}

func TestExecute_DumpWithoutSink(t *testing.T) {
	f := newFixture(t, Options{})
	_, err := f.run(t, "reload", routingCSV, nil)
	require.NoError(t, err)

	logs, err := f.run(t, "dump", "", nil)
	assert.ErrorIs(t, err, domain.ErrProtocol)
	assert.Contains(t, logs, "Cannot open output")
}

func TestExecute_MetaPrintsDomainsAndHistory(t *testing.T) {
	f := newFixture(t, Options{})
	_, err := f.run(t, "reload", routingCSV, domain.Metadata{"file_name": "npac.csv"})
	require.NoError(t, err)

	logs, err := f.run(t, "meta", "", nil)
	require.NoError(t, err)
	assert.Contains(t, logs, "Metadata")
	assert.Contains(t, logs, "npac.csv")
	assert.Contains(t, logs, "Not loaded")
	assert.Contains(t, logs, "History")
	assert.Empty(t, f.journal.last(t).Domain)
}

func TestExecute_JournalFailuresAreNotFatal(t *testing.T) {
	j := &memJournal{failAll: true}
	f := newFixture(t, Options{Journal: j})

	_, err := f.run(t, "reload", routingCSV, nil)
	assert.NoError(t, err)
	logs, err := f.run(t, "meta", "", nil)
	assert.NoError(t, err)
	assert.Contains(t, logs, "Cannot read history")
}

func TestExecute_DefaultsWithoutOptionalDependencies(t *testing.T) {
	svc := New(Options{Registry: registry.New(registry.Options{})})
	err := svc.Execute(context.Background(), Command{Name: "meta"})
	assert.NoError(t, err)
}

func TestCommands_ListsEveryRoute(t *testing.T) {
	names := Commands()
	assert.Len(t, names, len(routes))
	assert.Contains(t, names, "reload")
	assert.Contains(t, names, "dno_npa_nxx_x_reload")
	assert.Contains(t, names, "meta")
	assert.IsIncreasing(t, names)
}
