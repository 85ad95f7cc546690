package handlers

import (
	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/marmos91/dittofuse/internal/logger"
	"github.com/marmos91/dittofuse/pkg/ctl"
)

// StatFs reports volume capacity.
func (h *Handler) StatFs(header *fuse.InHeader, out *fuse.StatfsOut) (status fuse.Status) {
	defer h.trace("STATFS", header)(&status)
	h.mu.Lock()
	defer h.mu.Unlock()

	st, err := h.eng.Statfs()
	if err != nil {
		return fail("STATFS", err)
	}
	out.Blocks = st.Blocks
	out.Bfree = st.Bfree
	out.Bavail = st.Bavail
	out.Files = st.Files
	out.Ffree = st.Ffree
	out.Bsize = st.Bsize
	out.NameLen = st.Namelen
	out.Frsize = st.Frsize
	return fuse.OK
}

// accessDiagnostic explains why Access must never be reached.
const accessDiagnostic = "access called: the volume must be mounted with default_permissions " +
	"so the kernel enforces permission checks"

// Access is never sent when the kernel checks permissions itself.
func (h *Handler) Access(in *fuse.AccessIn) fuse.Status {
	fatalf("ACCESS nid=%d mask=%#o: %s", in.NodeId, in.Mask, accessDiagnostic)
	return fuse.ENOSYS
}

// Ioctl serves the prune control command on an open directory or file.
//
// Pruning is refused while any handle other than the caller's own is open,
// since those handles pin nodes the walk would otherwise drop.
func (h *Handler) Ioctl(in *fuse.IoctlIn, inbuf []byte, out *fuse.IoctlOut, outbuf []byte) (status fuse.Status) {
	defer h.trace("IOCTL", &in.InHeader)(&status)
	h.mu.Lock()
	defer h.mu.Unlock()

	nid := in.NodeId
	checkFh("IOCTL", nid, in.Fh)

	if in.Cmd != ctl.CmdNIDPrune {
		logger.Error("IOCTL: unknown command %#x on nid %d", in.Cmd, nid)
		return fuse.EINVAL
	}

	if h.totalOpen <= 0 {
		fatalf("IOCTL: prune on nid %d without an open handle", nid)
	}
	if others := h.totalOpen - 1; others > 0 {
		logger.Error("IOCTL: prune of nid %d refused: %d pending open file(s)", nid, others)
		return fuse.EBUSY
	}
	if len(outbuf) < ctl.PruneReplySize {
		logger.Error("IOCTL: prune reply buffer too small (%d bytes)", len(outbuf))
		return fuse.EINVAL
	}

	pruned, remaining, err := h.eng.PruneNode(nid)
	if err != nil {
		return fail("IOCTL", err)
	}
	if err := ctl.EncodePruneReply(outbuf, pruned, remaining); err != nil {
		return fail("IOCTL", err)
	}
	h.metrics.RecordPrune(pruned, remaining)
	logger.Debug("IOCTL: pruned %d node(s) under nid %d, %d remaining", pruned, nid, remaining)

	out.Result = 0
	return fuse.OK
}
