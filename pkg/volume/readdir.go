package volume

import (
	"errors"
	"syscall"

	"github.com/marmos91/dittofuse/pkg/engine"
)

// OpendirCursor snapshots the children of dnid ordered by name.
func (v *Volume) OpendirCursor(dnid uint64) (*engine.Cursor, error) {
	if _, err := v.loadDir(dnid); err != nil {
		return nil, err
	}

	entries, err := v.meta.ListChildren(v.ctx, dnid)
	if err != nil {
		return nil, ioError(dnid, "list directory", err)
	}

	children := make([]uint64, len(entries))
	for i, e := range entries {
		children[i] = e.ID
	}
	return engine.NewCursor(dnid, children), nil
}

// ReaddirCursor yields the next child with a reference taken. Children
// removed after the snapshot are skipped.
func (v *Volume) ReaddirCursor(c *engine.Cursor) (uint64, error) {
	for {
		nid, ok := c.Next()
		if !ok {
			return 0, syscall.ENOENT
		}

		n, err := v.load(nid)
		var engErr *engine.Error
		if errors.As(err, &engErr) && engErr.Code == engine.ErrNotFound {
			continue
		}
		if err != nil {
			return 0, err
		}
		if n.Unlinked {
			continue
		}

		v.reg.Get(nid)
		return nid, nil
	}
}

func (v *Volume) ClosedirCursor(c *engine.Cursor) {
	c.Close()
}
