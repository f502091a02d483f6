package mapping

// Cursor is a forward-only iterator over a key interval of one snapshot.
// It is finite and not safe for concurrent use; to restart, build a new one.
//
//	c := h.Range(low, high)
//	defer c.Close()
//	for c.Next() {
//		use(c.Key(), c.Value())
//	}
type Cursor[V any] struct {
	snap   *Snapshot[V]
	pos    int
	end    int
	perm   []uint32 // set when walking the secondary index
	handle *Handle[V]
}

// Next advances to the next record and reports whether one exists.
func (c *Cursor[V]) Next() bool {
	if c.pos+1 >= c.end {
		c.pos = c.end
		return false
	}
	c.pos++
	return true
}

func (c *Cursor[V]) index() int {
	if c.perm != nil {
		return int(c.perm[c.pos])
	}
	return c.pos
}

// Key returns the key of the current record.
func (c *Cursor[V]) Key() uint64 { return c.snap.keys[c.index()] }

// Value returns the payload of the current record.
func (c *Cursor[V]) Value() V { return c.snap.values[c.index()] }

// Remaining returns the number of records not yet visited.
func (c *Cursor[V]) Remaining() int {
	if n := c.end - c.pos - 1; n > 0 {
		return n
	}
	return 0
}

// Generation returns the generation of the snapshot being iterated.
func (c *Cursor[V]) Generation() uint64 {
	if c.snap == nil {
		return 0
	}
	return c.snap.generation
}

// Close releases the handle the cursor was opened from, if any. Close is idempotent.
func (c *Cursor[V]) Close() {
	c.pos = c.end
	if c.handle != nil {
		c.handle.Release()
	}
}
