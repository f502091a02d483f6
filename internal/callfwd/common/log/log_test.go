package log

import (
	"bytes"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

type testLogger struct {
	entries []string
}

func (l *testLogger) Info(_ map[string]any, msg string)  { l.entries = append(l.entries, "INFO:"+msg) }
func (l *testLogger) Error(_ map[string]any, msg string) { l.entries = append(l.entries, "ERROR:"+msg) }
func (l *testLogger) Debug(_ map[string]any, msg string) { l.entries = append(l.entries, "DEBUG:"+msg) }
func (l *testLogger) Warn(_ map[string]any, msg string)  { l.entries = append(l.entries, "WARN:"+msg) }
func (l *testLogger) Panic(_ map[string]any, msg string) { l.entries = append(l.entries, "PANIC:"+msg) }
func (l *testLogger) Fatal(_ map[string]any, msg string) { l.entries = append(l.entries, "FATAL:"+msg) }

func TestActualZapLogger(t *testing.T) {
	Debug(map[string]any{
		"key1": "value1",
		"key2": 42,
		"key3": true,
	}, "test debug")
	Info(nil, "test info")
	Warn(nil, "test warn")
	Error(nil, "test error")
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic, but none occurred")
		}
	}()
	Panic(nil, "test panic")
}

func TestSetLoggerAndGlobalLogging(t *testing.T) {
	orig := GetLogger()
	defer SetLogger(orig)
	tlog := &testLogger{}
	SetLogger(tlog)

	Info(nil, "info msg")
	Error(nil, "error msg")
	Debug(nil, "debug msg")
	Warn(nil, "warn msg")

	expected := []string{
		"INFO:info msg",
		"ERROR:error msg",
		"DEBUG:debug msg",
		"WARN:warn msg",
	}

	if len(tlog.entries) != len(expected) {
		t.Fatalf("expected %d log entries, got %d", len(expected), len(tlog.entries))
	}
	for i, msg := range expected {
		if tlog.entries[i] != msg {
			t.Errorf("expected log[%d] = %q, got %q", i, msg, tlog.entries[i])
		}
	}
}

func TestConfigure_ValidLevels(t *testing.T) {
	orig := GetLogger()
	defer SetLogger(orig)

	if err := Configure("dev", "debug"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := Configure("prod", "info"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestConfigure_InvalidLevel(t *testing.T) {
	orig := GetLogger()
	defer SetLogger(orig)

	if err := Configure("dev", "notalevel"); err == nil {
		t.Fatal("expected error for invalid log level, got nil")
	}
}

func TestWriterLogger_WritesLines(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger(&buf, zapcore.InfoLevel)

	l.Debug(nil, "hidden")
	l.Info(map[string]any{"rows": 12}, "Reading database")
	l.Error(nil, "line 3: bad row")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug entry should be filtered at info level: %q", out)
	}
	if !strings.Contains(out, "Reading database") || !strings.Contains(out, `"rows"`) {
		t.Errorf("missing info line or field: %q", out)
	}
	if !strings.Contains(out, "line 3: bad row") {
		t.Errorf("missing error line: %q", out)
	}
}

func TestWriterLogger_PanicAndFatalDoNotTerminate(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger(&buf, zapcore.DebugLevel)

	l.Panic(nil, "would panic")
	l.Fatal(nil, "would exit")

	out := buf.String()
	if !strings.Contains(out, "would panic") || !strings.Contains(out, "would exit") {
		t.Errorf("expected both entries downgraded and written: %q", out)
	}
}

func TestTee_FansOut(t *testing.T) {
	a, b := &testLogger{}, &testLogger{}
	l := Tee(a, b)

	l.Info(nil, "i")
	l.Warn(nil, "w")
	l.Debug(nil, "d")
	l.Error(nil, "e")
	l.Fatal(nil, "f")

	wantA := []string{"INFO:i", "WARN:w", "DEBUG:d", "ERROR:e", "FATAL:f"}
	wantB := []string{"INFO:i", "WARN:w", "DEBUG:d", "ERROR:e", "ERROR:f"}
	if strings.Join(a.entries, "|") != strings.Join(wantA, "|") {
		t.Errorf("primary got %v, want %v", a.entries, wantA)
	}
	if strings.Join(b.entries, "|") != strings.Join(wantB, "|") {
		t.Errorf("secondary got %v, want %v", b.entries, wantB)
	}
}

func TestTee_NilSecondaryReturnsPrimary(t *testing.T) {
	a := &testLogger{}
	if got := Tee(a, nil); got != Logger(a) {
		t.Fatal("expected Tee(a, nil) to return a")
	}
}

func TestNoopLogger_TestAllLevels(t *testing.T) {
	orig := GetLogger()
	defer SetLogger(orig)
	SetLogger(NewNoopLogger())

	Debug(nil, "debug message")
	Info(nil, "info message")
	Warn(nil, "warn message")
	Error(nil, "error message")
	Panic(nil, "panic message")
	Fatal(nil, "fatal message")
}
