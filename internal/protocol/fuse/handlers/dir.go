package handlers

import (
	"errors"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/marmos91/dittofuse/internal/protocol/fuse/convert"
	"github.com/marmos91/dittofuse/pkg/engine"
)

// DirFiller receives directory entries. *fuse.DirEntryList implements it;
// AddDirEntry returns false once the reply buffer is full.
type DirFiller interface {
	AddDirEntry(fuse.DirEntry) bool
}

// Offsets of the synthesized entries. Real children start at firstChildOff.
const (
	dotOff        = 1
	dotDotOff     = 2
	firstChildOff = 3
)

// OpenDir takes a reference on the directory for the lifetime of the
// handle.
func (h *Handler) OpenDir(in *fuse.OpenIn, out *fuse.OpenOut) (status fuse.Status) {
	defer h.trace("OPENDIR", &in.InHeader)(&status)
	h.mu.Lock()
	defer h.mu.Unlock()

	nid := in.NodeId
	if _, ok := h.eng.Node(nid); !ok {
		return fuse.ENOENT
	}
	h.eng.Get(nid)
	h.opened()

	out.Fh = nid
	out.OpenFlags = fuse.FOPEN_KEEP_CACHE
	return fuse.OK
}

// ReadDir fills out with the entries at or after in.Offset.
//
// The offset of each entry is its position in the listing: 1 for ".",
// 2 for "..", then one per child in cursor order. A cursor is opened per
// call and walked from the start, so a listing split across several
// calls yields the same entries as one large call.
func (h *Handler) ReadDir(in *fuse.ReadIn, out DirFiller) (status fuse.Status) {
	defer h.trace("READDIR", &in.InHeader)(&status)
	h.mu.Lock()
	defer h.mu.Unlock()

	dnid := in.NodeId
	checkFh("READDIR", dnid, in.Fh)

	dir, ok := h.eng.Node(dnid)
	if !ok {
		return fuse.ENOENT
	}
	if !dir.IsDirectory() {
		return fuse.ENOTDIR
	}

	offset := in.Offset
	if offset < dotOff {
		if !out.AddDirEntry(fuse.DirEntry{Mode: syscall.S_IFDIR, Name: ".", Ino: dnid, Off: dotOff}) {
			return fuse.OK
		}
		offset++
	}
	if offset < dotDotOff {
		if !out.AddDirEntry(fuse.DirEntry{Mode: syscall.S_IFDIR, Name: "..", Ino: dir.Pnid, Off: dotDotOff}) {
			return fuse.OK
		}
		offset++
	}

	c, err := h.eng.OpendirCursor(dnid)
	if err != nil {
		return fail("READDIR", err)
	}
	defer h.eng.ClosedirCursor(c)

	for next := uint64(firstChildOff); ; next++ {
		child, err := h.eng.ReaddirCursor(c)
		if errors.Is(err, syscall.ENOENT) {
			break
		}
		if err != nil {
			return fail("READDIR", err)
		}

		if offset < next {
			full, err := h.addChild(out, child, next)
			if err != nil {
				h.eng.Put(child)
				return fail("READDIR", err)
			}
			if full {
				h.eng.Put(child)
				break
			}
			offset++
		}
		h.eng.Put(child)
	}
	return fuse.OK
}

// addChild appends child at position off. It reports whether out was full.
func (h *Handler) addChild(out DirFiller, child, off uint64) (bool, error) {
	st, err := h.eng.Stat(child)
	if err != nil {
		return false, err
	}
	n, ok := h.eng.Node(child)
	if !ok {
		return false, engine.NewError(engine.ErrNotFound, child, "node vanished during readdir")
	}
	entry := fuse.DirEntry{
		Mode: convert.DirentMode(st),
		Name: n.Name,
		Ino:  st.Ino,
		Off:  off,
	}
	return !out.AddDirEntry(entry), nil
}

// ReleaseDir drops the handle taken by OpenDir.
func (h *Handler) ReleaseDir(in *fuse.ReleaseIn) {
	status := fuse.OK
	defer h.trace("RELEASEDIR", &in.InHeader)(&status)
	h.mu.Lock()
	defer h.mu.Unlock()

	checkFh("RELEASEDIR", in.NodeId, in.Fh)
	h.closed("RELEASEDIR")
	h.eng.Put(in.NodeId)
}

// FsyncDir behaves like Fsync.
func (h *Handler) FsyncDir(in *fuse.FsyncIn) (status fuse.Status) {
	defer h.trace("FSYNCDIR", &in.InHeader)(&status)
	h.mu.Lock()
	defer h.mu.Unlock()

	checkFh("FSYNCDIR", in.NodeId, in.Fh)

	if err := h.syncAll(); err != nil {
		return fail("FSYNCDIR", err)
	}
	return fuse.OK
}
