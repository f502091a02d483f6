// Package bolt is the bbolt-backed history.Journal.
package bolt

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	bbolt "go.etcd.io/bbolt"

	"github.com/haukened/callfwd/internal/callfwd/repos/history"
)

var bucketOps = []byte("ops")

// DefaultMaxEntries bounds the journal when New is given a non-positive limit.
const DefaultMaxEntries = 1000

type journal struct {
	db         *bbolt.DB
	maxEntries int
}

// New opens (or creates) a journal at path keeping at most maxEntries entries.
func New(path string, maxEntries int) (history.Journal, error) {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketOps)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &journal{db: db, maxEntries: maxEntries}, nil
}

func (j *journal) Close() error { return j.db.Close() }

// Record appends e under the next sequence number and drops the oldest entries
// beyond the configured limit.
func (j *journal) Record(e history.Entry) error {
	val, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return j.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketOps)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		if err := b.Put(seqKey(seq), val); err != nil {
			return err
		}
		var keys [][]byte
		c := b.Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			keys = append(keys, append([]byte(nil), k...))
		}
		for _, k := range keys[:max(len(keys)-j.maxEntries, 0)] {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

func (j *journal) Recent(n int) ([]history.Entry, error) {
	var out []history.Entry
	err := j.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketOps).Cursor()
		for k, v := c.Last(); k != nil && len(out) < n; k, v = c.Prev() {
			var e history.Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("entry %d: %w", binary.BigEndian.Uint64(k), err)
			}
			out = append(out, e)
		}
		return nil
	})
	return out, err
}

func seqKey(seq uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, seq)
	return k
}
