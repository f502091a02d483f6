// Package history defines the journal of control operations. Only the
// operation outcomes are recorded; datasets are never persisted.
package history

import "time"

// Entry is one completed control operation.
type Entry struct {
	RequestID  string        `json:"request_id"`
	Cmd        string        `json:"cmd"`
	Domain     string        `json:"domain,omitempty"`
	Rows       int           `json:"rows"`
	Generation uint64        `json:"generation,omitempty"`
	OK         bool          `json:"ok"`
	Error      string        `json:"error,omitempty"`
	Started    time.Time     `json:"started"`
	Duration   time.Duration `json:"duration"`
}

// Journal stores control operation outcomes.
type Journal interface {
	Record(e Entry) error
	// Recent returns up to n entries, newest first.
	Recent(n int) ([]Entry, error)
	Close() error
}

// Nop is a Journal that keeps nothing.
type Nop struct{}

func (Nop) Record(Entry) error          { return nil }
func (Nop) Recent(int) ([]Entry, error) { return nil, nil }
func (Nop) Close() error                { return nil }

var _ Journal = Nop{}
