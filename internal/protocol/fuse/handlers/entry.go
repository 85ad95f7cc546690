package handlers

import (
	"syscall"

	"github.com/hanwen/go-fuse/v2/fuse"
)

// settableMode is every mode bit setattr accepts.
const settableMode = syscall.S_IFREG | syscall.S_IFDIR | syscall.S_IRWXU | syscall.S_IRWXG | syscall.S_IRWXO

// Lookup resolves a name in a directory. The reference taken by the
// engine is dropped before replying; the node stays resident until it is
// unlinked or pruned, and is reloaded from the stores afterwards.
func (h *Handler) Lookup(header *fuse.InHeader, name string, out *fuse.EntryOut) (status fuse.Status) {
	defer h.trace("LOOKUP", header)(&status)
	h.mu.Lock()
	defer h.mu.Unlock()

	if !validName("LOOKUP", name) {
		return fuse.EINVAL
	}

	nid, err := h.eng.LookupAt(header.NodeId, name)
	if err != nil {
		return fail("LOOKUP", err)
	}
	if _, err := h.stat(nid, &out.Attr); err != nil {
		h.eng.Put(nid)
		return fail("LOOKUP", err)
	}
	h.eng.Put(nid)

	fillEntry(nid, out)
	return fuse.OK
}

// GetAttr returns the attributes of a node.
func (h *Handler) GetAttr(in *fuse.GetAttrIn, out *fuse.AttrOut) (status fuse.Status) {
	defer h.trace("GETATTR", &in.InHeader)(&status)
	h.mu.Lock()
	defer h.mu.Unlock()

	if in.Flags()&fuse.FUSE_GETATTR_FH != 0 {
		checkFh("GETATTR", in.NodeId, in.Fh())
	}

	if _, err := h.stat(in.NodeId, &out.Attr); err != nil {
		return fail("GETATTR", err)
	}
	out.SetTimeout(ttl)
	return fuse.OK
}

// SetAttr applies each requested change independently.
//
// Mode and ownership are not stored: the volume derives them from its mount
// options, so only changes that keep the current values are accepted.
// Size goes through the engine. Times are echoed back in the reply.
func (h *Handler) SetAttr(in *fuse.SetAttrIn, out *fuse.AttrOut) (status fuse.Status) {
	defer h.trace("SETATTR", &in.InHeader)(&status)
	h.mu.Lock()
	defer h.mu.Unlock()

	nid := in.NodeId
	if fh, ok := in.GetFh(); ok {
		checkFh("SETATTR", nid, fh)
	}

	st, err := h.stat(nid, &out.Attr)
	if err != nil {
		return fail("SETATTR", err)
	}

	if mode, ok := in.GetMode(); ok && mode&^uint32(settableMode) != 0 {
		return fuse.EPERM
	}
	if uid, ok := in.GetUID(); ok && uid != st.Uid {
		return fuse.EPERM
	}
	if gid, ok := in.GetGID(); ok && gid != st.Gid {
		return fuse.EPERM
	}

	if size, ok := in.GetSize(); ok {
		if status := h.resize(nid, size, &out.Attr); !status.Ok() {
			return status
		}
		out.Size = size
	}

	atime, hasAtime := in.GetATime()
	mtime, hasMtime := in.GetMTime()
	ctime, hasCtime := in.GetCTime()
	var pa, pm, pc = &atime, &mtime, &ctime
	if !hasAtime {
		pa = nil
	}
	if !hasMtime {
		pm = nil
	}
	if !hasCtime {
		pc = nil
	}
	out.SetTimes(pa, pm, pc)

	out.SetTimeout(ttl)
	return fuse.OK
}

// resize truncates nid while holding an extra reference, writes it back
// and refreshes out.
func (h *Handler) resize(nid, size uint64, out *fuse.Attr) fuse.Status {
	h.eng.Get(nid)
	defer h.eng.Put(nid)

	if err := h.eng.Truncate(nid, size, true); err != nil {
		_ = h.eng.FlushNode(nid)
		return fail("SETATTR", err)
	}
	if err := h.eng.FlushNode(nid); err != nil {
		return fail("SETATTR", err)
	}
	if _, err := h.stat(nid, out); err != nil {
		return fail("SETATTR", err)
	}
	return fuse.OK
}

// Mknod creates a regular file. Device nodes, fifos and sockets cannot be
// represented on a volume.
func (h *Handler) Mknod(in *fuse.MknodIn, name string, out *fuse.EntryOut) (status fuse.Status) {
	defer h.trace("MKNOD", &in.InHeader)(&status)
	h.mu.Lock()
	defer h.mu.Unlock()

	if !validName("MKNOD", name) {
		return fuse.EINVAL
	}
	if typ := in.Mode & syscall.S_IFMT; typ != 0 && typ != syscall.S_IFREG {
		return fuse.EPERM
	}

	nid, err := h.eng.MknodAt(in.NodeId, name)
	if err != nil {
		return fail("MKNOD", err)
	}
	if _, err := h.stat(nid, &out.Attr); err != nil {
		return fail("MKNOD", err)
	}

	fillEntry(nid, out)
	return fuse.OK
}

// Mkdir creates a directory.
func (h *Handler) Mkdir(in *fuse.MkdirIn, name string, out *fuse.EntryOut) (status fuse.Status) {
	defer h.trace("MKDIR", &in.InHeader)(&status)
	h.mu.Lock()
	defer h.mu.Unlock()

	if !validName("MKDIR", name) {
		return fuse.EINVAL
	}

	nid, err := h.eng.MkdirAt(in.NodeId, name)
	if err != nil {
		return fail("MKDIR", err)
	}
	if _, err := h.stat(nid, &out.Attr); err != nil {
		return fail("MKDIR", err)
	}

	fillEntry(nid, out)
	return fuse.OK
}

// Create creates a regular file and opens it. The handle is released by
// Release.
func (h *Handler) Create(in *fuse.CreateIn, name string, out *fuse.CreateOut) (status fuse.Status) {
	defer h.trace("CREATE", &in.InHeader)(&status)
	h.mu.Lock()
	defer h.mu.Unlock()

	if !validName("CREATE", name) {
		return fuse.EINVAL
	}

	nid, err := h.eng.MknodAt(in.NodeId, name)
	if err != nil {
		return fail("CREATE", err)
	}
	h.eng.Get(nid)
	if _, err := h.stat(nid, &out.Attr); err != nil {
		h.eng.Put(nid)
		return fail("CREATE", err)
	}
	h.opened()

	fillEntry(nid, &out.EntryOut)
	out.Fh = nid
	out.OpenFlags = 0
	return fuse.OK
}

// Unlink removes a file.
func (h *Handler) Unlink(header *fuse.InHeader, name string) (status fuse.Status) {
	defer h.trace("UNLINK", header)(&status)
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.remove("UNLINK", header.NodeId, name, h.eng.Unlink)
}

// Rmdir removes an empty directory.
func (h *Handler) Rmdir(header *fuse.InHeader, name string) (status fuse.Status) {
	defer h.trace("RMDIR", header)(&status)
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.remove("RMDIR", header.NodeId, name, h.eng.Rmdir)
}

// remove looks name up and hands the reference to op, which consumes it
// on success.
func (h *Handler) remove(opName string, parent uint64, name string, op func(uint64) error) fuse.Status {
	if !validName(opName, name) {
		return fuse.EINVAL
	}

	nid, err := h.eng.LookupAt(parent, name)
	if err != nil {
		return fail(opName, err)
	}
	if err := op(nid); err != nil {
		if _, ok := h.eng.Node(nid); ok {
			h.eng.Put(nid)
		}
		return fail(opName, err)
	}
	return fuse.OK
}

// Rename moves an entry. Flags are passed through to the engine.
func (h *Handler) Rename(in *fuse.RenameIn, oldName, newName string) (status fuse.Status) {
	defer h.trace("RENAME", &in.InHeader)(&status)
	h.mu.Lock()
	defer h.mu.Unlock()

	if !validName("RENAME", oldName) || !validName("RENAME", newName) {
		return fuse.EINVAL
	}

	if err := h.eng.RenameAt(in.NodeId, oldName, in.Newdir, newName, in.Flags); err != nil {
		return fail("RENAME", err)
	}
	return fuse.OK
}
