package domain

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is matching across the taxonomy.
var (
	ErrRowFormat         = errors.New("malformed row")
	ErrDuplicateKey      = errors.New("duplicate key")
	ErrDomainUnavailable = errors.New("domain unavailable")
	ErrProtocol          = errors.New("protocol error")
	ErrIO                = errors.New("i/o error")
)

// RowFormatError reports a row with the wrong field count or an unparsable value.
// Line is 1-based.
type RowFormatError struct {
	Line   int
	Text   string
	Reason string
}

func (e *RowFormatError) Error() string {
	return fmt.Sprintf("line %d: %s: %q", e.Line, e.Reason, e.Text)
}

func (e *RowFormatError) Is(target error) bool { return target == ErrRowFormat }

// DuplicateKeyError reports a key that already exists in the same ingestion.
// Line is the 1-based line of the later occurrence, or 0 when unknown.
type DuplicateKeyError struct {
	Line int
	Key  uint64
}

func (e *DuplicateKeyError) Error() string {
	if e.Line == 0 {
		return fmt.Sprintf("duplicate key %d", e.Key)
	}
	return fmt.Sprintf("line %d: duplicate key %d", e.Line, e.Key)
}

func (e *DuplicateKeyError) Is(target error) bool { return target == ErrDuplicateKey }

// DomainUnavailableError is returned for queries against a domain that has never
// been committed.
type DomainUnavailableError struct {
	Domain DomainID
}

func (e *DomainUnavailableError) Error() string {
	return fmt.Sprintf("domain %s unavailable", e.Domain)
}

func (e *DomainUnavailableError) Is(target error) bool { return target == ErrDomainUnavailable }

// ProtocolError reports a malformed control message.
type ProtocolError struct {
	Reason string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("protocol error: %s: %v", e.Reason, e.Err)
	}
	return "protocol error: " + e.Reason
}

func (e *ProtocolError) Unwrap() error { return e.Err }

func (e *ProtocolError) Is(target error) bool { return target == ErrProtocol }

// IOError reports a stream failure during ingestion, verify or dump.
type IOError struct {
	Op   string
	Name string
	Rows int
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s after %d rows: %v", e.Op, e.Name, e.Rows, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

func (e *IOError) Is(target error) bool { return target == ErrIO }
