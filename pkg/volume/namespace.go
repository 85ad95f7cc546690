package volume

import (
	"errors"

	"github.com/google/uuid"
	"github.com/marmos91/dittofuse/internal/logger"
	"github.com/marmos91/dittofuse/pkg/engine"
	"github.com/marmos91/dittofuse/pkg/store/metadata"
	"golang.org/x/sys/unix"
)

// LookupAt resolves name under parent and takes a reference on the child.
func (v *Volume) LookupAt(parent uint64, name string) (uint64, error) {
	dir, err := v.loadDir(parent)
	if err != nil {
		return 0, err
	}
	switch name {
	case ".":
		v.reg.Get(parent)
		return parent, nil
	case "..":
		if _, err := v.load(dir.Pnid); err != nil {
			return 0, err
		}
		v.reg.Get(dir.Pnid)
		return dir.Pnid, nil
	}
	if err := validateName(parent, name); err != nil {
		return 0, err
	}

	id, err := v.meta.GetChild(v.ctx, parent, name)
	if errors.Is(err, metadata.ErrNotFound) {
		return 0, engine.NewError(engine.ErrNotFound, parent, "no entry %q", name)
	}
	if err != nil {
		return 0, ioError(parent, "lookup", err)
	}

	if _, err := v.load(id); err != nil {
		return 0, err
	}
	v.reg.Get(id)
	return id, nil
}

// MknodAt creates an empty regular file. No reference is taken.
func (v *Volume) MknodAt(parent uint64, name string) (uint64, error) {
	return v.create(parent, name, metadata.TypeRegular)
}

// MkdirAt creates an empty directory. No reference is taken.
func (v *Volume) MkdirAt(parent uint64, name string) (uint64, error) {
	return v.create(parent, name, metadata.TypeDirectory)
}

func (v *Volume) create(parent uint64, name string, typ metadata.InodeType) (uint64, error) {
	if err := v.checkWritable(parent); err != nil {
		return 0, err
	}
	if err := validateName(parent, name); err != nil {
		return 0, err
	}
	if _, err := v.loadDir(parent); err != nil {
		return 0, err
	}

	if _, err := v.meta.GetChild(v.ctx, parent, name); err == nil {
		return 0, engine.NewError(engine.ErrAlreadyExists, parent, "entry %q exists", name)
	} else if !errors.Is(err, metadata.ErrNotFound) {
		return 0, ioError(parent, "lookup", err)
	}

	if v.cfg.MaxFiles > 0 && v.sb.Files >= v.cfg.MaxFiles {
		return 0, engine.NewError(engine.ErrNoSpace, parent, "file limit %d reached", v.cfg.MaxFiles)
	}

	now := v.now().Unix()
	inode := &metadata.Inode{
		ID:       v.sb.NextID,
		ParentID: parent,
		Name:     name,
		Type:     typ,
		Atime:    now,
		Mtime:    now,
	}
	if typ == metadata.TypeRegular {
		inode.ContentID = uuid.NewString()
	}

	// NextID is persisted with the inode so a crash before Flush cannot
	// hand the same id out twice.
	sb := v.sb.Clone()
	sb.NextID++
	sb.Files++
	if err := v.meta.CreateChild(v.ctx, inode, sb); err != nil {
		if errors.Is(err, metadata.ErrExists) {
			return 0, engine.NewError(engine.ErrAlreadyExists, parent, "entry %q exists", name)
		}
		return 0, ioError(parent, "create entry", err)
	}
	v.sb = sb
	v.sbDirty = false

	v.insert(inode)
	v.touch(parent)

	logger.Debug("Created %s %q nid=%d in nid=%d", typ, name, inode.ID, parent)
	return inode.ID, nil
}

// Unlink removes a regular file's entry and consumes the caller's
// reference. The node and its content survive until the last reference
// is dropped.
func (v *Volume) Unlink(nid uint64) error {
	if err := v.checkWritable(nid); err != nil {
		return err
	}
	n, err := v.load(nid)
	if err != nil {
		return err
	}
	if n.Dir {
		return engine.NewError(engine.ErrIsDirectory, nid, "unlink of a directory")
	}

	if err := v.detach(n); err != nil {
		return err
	}
	v.reg.Put(nid)
	return nil
}

// Rmdir removes an empty directory and consumes the caller's reference.
func (v *Volume) Rmdir(nid uint64) error {
	if err := v.checkWritable(nid); err != nil {
		return err
	}
	n, err := v.load(nid)
	if err != nil {
		return err
	}
	if !n.Dir {
		return engine.NewError(engine.ErrNotDirectory, nid, "rmdir of a file")
	}
	if nid == engine.RootNid {
		return engine.NewError(engine.ErrBusy, nid, "cannot remove the root directory")
	}
	if err := v.checkEmpty(nid); err != nil {
		return err
	}

	if err := v.detach(n); err != nil {
		return err
	}
	v.reg.Put(nid)
	return nil
}

// RenameAt moves oldParent/oldName to newParent/newName, replacing a
// compatible target unless RENAME_NOREPLACE is set.
func (v *Volume) RenameAt(oldParent uint64, oldName string, newParent uint64, newName string, flags uint32) error {
	if err := v.checkWritable(oldParent); err != nil {
		return err
	}
	if flags&unix.RENAME_EXCHANGE != 0 {
		return engine.NewError(engine.ErrInvalidArgument, oldParent, "RENAME_EXCHANGE is not supported")
	}
	if flags&^uint32(unix.RENAME_NOREPLACE) != 0 {
		return engine.NewError(engine.ErrInvalidArgument, oldParent, "unsupported rename flags %#x", flags)
	}
	if err := validateName(oldParent, oldName); err != nil {
		return err
	}
	if err := validateName(newParent, newName); err != nil {
		return err
	}
	if _, err := v.loadDir(oldParent); err != nil {
		return err
	}
	if _, err := v.loadDir(newParent); err != nil {
		return err
	}

	srcID, err := v.meta.GetChild(v.ctx, oldParent, oldName)
	if errors.Is(err, metadata.ErrNotFound) {
		return engine.NewError(engine.ErrNotFound, oldParent, "no entry %q", oldName)
	}
	if err != nil {
		return ioError(oldParent, "lookup", err)
	}
	src, err := v.load(srcID)
	if err != nil {
		return err
	}

	if src.Dir {
		if err := v.checkNotAncestor(srcID, newParent); err != nil {
			return err
		}
	}

	var dst *engine.Node
	dstID, err := v.meta.GetChild(v.ctx, newParent, newName)
	switch {
	case errors.Is(err, metadata.ErrNotFound):
	case err != nil:
		return ioError(newParent, "lookup", err)
	case dstID == srcID:
		return nil
	case flags&unix.RENAME_NOREPLACE != 0:
		return engine.NewError(engine.ErrAlreadyExists, newParent, "entry %q exists", newName)
	default:
		if dst, err = v.checkReplace(src, dstID); err != nil {
			return err
		}
	}

	// One store write covers the target removal, the entry swap and the
	// inode update. Memory state follows only once it succeeded.
	st := v.inodes[srcID]
	moved := st.inode.Clone()
	moved.ParentID = newParent
	moved.Name = newName
	if err := v.meta.Move(v.ctx, oldParent, oldName, moved); err != nil {
		return ioError(srcID, "rename", err)
	}
	st.inode = moved
	st.dirty = false

	if dst != nil {
		v.unlinked(dst)
	}
	v.reg.Move(srcID, newParent, newName)
	v.touch(oldParent)
	v.touch(newParent)

	logger.Debug("Renamed nid=%d %q -> nid=%d %q", oldParent, oldName, newParent, newName)
	return nil
}

// checkReplace loads the rename target dstID and checks that src may
// take its name.
func (v *Volume) checkReplace(src *engine.Node, dstID uint64) (*engine.Node, error) {
	dst, err := v.load(dstID)
	if err != nil {
		return nil, err
	}
	switch {
	case src.Dir && !dst.Dir:
		return nil, engine.NewError(engine.ErrNotDirectory, dstID, "cannot replace a file with a directory")
	case !src.Dir && dst.Dir:
		return nil, engine.NewError(engine.ErrIsDirectory, dstID, "cannot replace a directory with a file")
	case dst.Dir:
		if err := v.checkEmpty(dstID); err != nil {
			return nil, err
		}
	}
	return dst, nil
}

// detach removes n's directory entry and marks it unlinked.
func (v *Volume) detach(n *engine.Node) error {
	if err := v.meta.RemoveChild(v.ctx, n.Pnid, n.Name); err != nil {
		return ioError(n.Nid, "unlink entry", err)
	}
	v.unlinked(n)
	return nil
}

// unlinked marks n unlinked once its entry is gone from the store.
func (v *Volume) unlinked(n *engine.Node) {
	pnid := n.Pnid
	v.reg.Detach(n.Nid)
	v.touch(pnid)
	logger.Debug("Unlinked nid=%d %q from nid=%d", n.Nid, n.Name, pnid)
}

// checkNotAncestor rejects moving directory srcID into its own subtree.
func (v *Volume) checkNotAncestor(srcID, dir uint64) error {
	for cur := dir; ; {
		if cur == srcID {
			return engine.NewError(engine.ErrInvalidArgument, srcID, "cannot move a directory into itself")
		}
		if cur == engine.RootNid {
			return nil
		}
		n, err := v.load(cur)
		if err != nil {
			return err
		}
		cur = n.Pnid
	}
}

func (v *Volume) checkEmpty(nid uint64) error {
	entries, err := v.meta.ListChildren(v.ctx, nid)
	if err != nil {
		return ioError(nid, "list directory", err)
	}
	if len(entries) > 0 {
		return engine.NewError(engine.ErrNotEmpty, nid, "directory has %d entries", len(entries))
	}
	return nil
}

// loadDir loads nid and requires it to be a directory.
func (v *Volume) loadDir(nid uint64) (*engine.Node, error) {
	n, err := v.load(nid)
	if err != nil {
		return nil, err
	}
	if !n.Dir {
		return nil, engine.NewError(engine.ErrNotDirectory, nid, "not a directory")
	}
	return n, nil
}

func validateName(parent uint64, name string) error {
	switch {
	case name == "" || name == "." || name == "..":
		return engine.NewError(engine.ErrInvalidArgument, parent, "invalid name %q", name)
	case len(name) > MaxNameLen:
		return engine.NewError(engine.ErrNameTooLong, parent, "name is %d bytes", len(name))
	}
	for i := 0; i < len(name); i++ {
		if name[i] == '/' || name[i] == 0 {
			return engine.NewError(engine.ErrInvalidArgument, parent, "invalid name %q", name)
		}
	}
	return nil
}
