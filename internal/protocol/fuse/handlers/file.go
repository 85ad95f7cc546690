package handlers

import (
	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/marmos91/dittofuse/internal/logger"
	"golang.org/x/sys/unix"
)

// Open takes a reference on the node for the lifetime of the handle.
func (h *Handler) Open(in *fuse.OpenIn, out *fuse.OpenOut) (status fuse.Status) {
	defer h.trace("OPEN", &in.InHeader)(&status)
	h.mu.Lock()
	defer h.mu.Unlock()

	nid := in.NodeId
	if _, ok := h.eng.Node(nid); !ok {
		return fuse.ENOENT
	}
	h.eng.Get(nid)

	if in.Flags&unix.O_TRUNC != 0 {
		// No release follows a failed open.
		if err := h.eng.Truncate(nid, 0, true); err != nil {
			h.eng.Put(nid)
			return fail("OPEN", err)
		}
	}
	h.opened()

	out.Fh = nid
	out.OpenFlags = fuse.FOPEN_KEEP_CACHE
	return fuse.OK
}

// Read returns up to in.Size bytes. Short reads are valid replies.
func (h *Handler) Read(in *fuse.ReadIn, buf []byte) (result fuse.ReadResult, status fuse.Status) {
	defer h.trace("READ", &in.InHeader)(&status)
	h.mu.Lock()
	defer h.mu.Unlock()

	checkFh("READ", in.NodeId, in.Fh)

	if uint32(len(buf)) > in.Size {
		buf = buf[:in.Size]
	} else if uint32(len(buf)) < in.Size {
		buf = make([]byte, in.Size)
	}

	n, err := h.eng.Pread(in.NodeId, buf, in.Offset)
	if err != nil {
		return nil, fail("READ", err)
	}
	h.metrics.RecordBytesTransferred("read", int64(n))
	return fuse.ReadResultData(buf[:n]), fuse.OK
}

// Write stores data at in.Offset and reports the bytes written.
func (h *Handler) Write(in *fuse.WriteIn, data []byte) (written uint32, status fuse.Status) {
	defer h.trace("WRITE", &in.InHeader)(&status)
	h.mu.Lock()
	defer h.mu.Unlock()

	checkFh("WRITE", in.NodeId, in.Fh)

	n, err := h.eng.Pwrite(in.NodeId, data, in.Offset)
	if err != nil {
		return 0, fail("WRITE", err)
	}
	h.metrics.RecordBytesTransferred("write", int64(n))
	return uint32(n), fuse.OK
}

// Flush writes the node back on close(2) of a descriptor.
func (h *Handler) Flush(in *fuse.FlushIn) (status fuse.Status) {
	defer h.trace("FLUSH", &in.InHeader)(&status)
	h.mu.Lock()
	defer h.mu.Unlock()

	checkFh("FLUSH", in.NodeId, in.Fh)

	if err := h.eng.FlushNode(in.NodeId); err != nil {
		return fail("FLUSH", err)
	}
	return fuse.OK
}

// Release drops the handle taken by Open or Create. It has no status to
// report, so a write-back failure is only logged.
func (h *Handler) Release(in *fuse.ReleaseIn) {
	status := fuse.OK
	defer h.trace("RELEASE", &in.InHeader)(&status)
	h.mu.Lock()
	defer h.mu.Unlock()

	nid := in.NodeId
	checkFh("RELEASE", nid, in.Fh)

	if err := h.eng.FlushNode(nid); err != nil {
		logger.Error("RELEASE: write-back of nid %d failed: %v", nid, err)
		status = fuse.EIO
	}
	h.closed("RELEASE")
	h.eng.Put(nid)
}

// Fsync makes every dirty node and the superblock durable.
func (h *Handler) Fsync(in *fuse.FsyncIn) (status fuse.Status) {
	defer h.trace("FSYNC", &in.InHeader)(&status)
	h.mu.Lock()
	defer h.mu.Unlock()

	checkFh("FSYNC", in.NodeId, in.Fh)

	if err := h.syncAll(); err != nil {
		return fail("FSYNC", err)
	}
	return fuse.OK
}
