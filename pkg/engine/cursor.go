package engine

import "fmt"

// Cursor iterates the children of one directory.
//
// The child list is snapshotted when the cursor is opened; entries created
// afterwards are not returned, entries removed afterwards are skipped by the
// engine when it resolves them.
type Cursor struct {
	Dnid uint64

	children []uint64
	pos      int
	closed   bool
}

// NewCursor builds a cursor over a snapshot of child nids.
func NewCursor(dnid uint64, children []uint64) *Cursor {
	return &Cursor{Dnid: dnid, children: children}
}

// Next returns the next child nid, or false when the snapshot is exhausted.
func (c *Cursor) Next() (uint64, bool) {
	c.assertOpen("next")
	if c.pos >= len(c.children) {
		return 0, false
	}
	nid := c.children[c.pos]
	c.pos++
	return nid, true
}

// Close marks the cursor closed. Closing twice panics.
func (c *Cursor) Close() {
	c.assertOpen("close")
	c.closed = true
}

// Closed reports whether Close has been called.
func (c *Cursor) Closed() bool {
	return c.closed
}

func (c *Cursor) assertOpen(op string) {
	if c.closed {
		panic(fmt.Sprintf("cursor: %s on closed cursor for dir %d", op, c.Dnid))
	}
}
