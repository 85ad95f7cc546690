package volume

import (
	"errors"
	"math"
	"sort"

	"github.com/marmos91/dittofuse/internal/logger"
	"github.com/marmos91/dittofuse/pkg/engine"
	"github.com/marmos91/dittofuse/pkg/store/content"
	"golang.org/x/sys/unix"
)

// Stat builds the attribute record of nid. Permissions come from the
// volume masks; link counts are not tracked and always read 1.
func (v *Volume) Stat(nid uint64) (engine.Stat, error) {
	st, err := v.state(nid)
	if err != nil {
		return engine.Stat{}, err
	}
	inode := st.inode

	stat := engine.Stat{
		Ino:     nid,
		Nlink:   1,
		Uid:     v.cfg.UID,
		Gid:     v.cfg.GID,
		Blksize: v.cfg.BlockSize,
		Atime:   inode.Atime,
		Mtime:   inode.Mtime,
	}
	if inode.IsDirectory() {
		stat.Mode = unix.S_IFDIR | (0o777 &^ v.cfg.Dmask)
		stat.Size = uint64(v.cfg.BlockSize)
	} else {
		stat.Mode = unix.S_IFREG | (0o777 &^ v.cfg.Fmask)
		stat.Size = inode.Size
	}

	bs := uint64(v.cfg.BlockSize)
	stat.Blocks = (stat.Size + bs - 1) / bs * (bs / 512)
	return stat, nil
}

// Truncate resizes a regular file. Growth always reads back as zeros, so
// erase only matters to engines that can leave stale bytes behind.
func (v *Volume) Truncate(nid uint64, size uint64, erase bool) error {
	if err := v.checkWritable(nid); err != nil {
		return err
	}
	st, err := v.fileState(nid)
	if err != nil {
		return err
	}
	if err := v.reserve(nid, st.inode.Size, size); err != nil {
		return err
	}

	if err := v.data.Truncate(v.ctx, content.ContentID(st.inode.ContentID), size); err != nil {
		return contentError(nid, "truncate content", err)
	}

	v.account(st, size)
	st.inode.Mtime = v.now().Unix()
	st.dirty = true
	return nil
}

// Pread reads up to len(buf) bytes at offset. Ranges the content store
// does not hold read back as zeros up to the file size.
func (v *Volume) Pread(nid uint64, buf []byte, offset uint64) (int, error) {
	st, err := v.fileState(nid)
	if err != nil {
		return 0, err
	}

	size := st.inode.Size
	if offset >= size || len(buf) == 0 {
		return 0, nil
	}
	want := uint64(len(buf))
	if remaining := size - offset; want > remaining {
		want = remaining
	}
	buf = buf[:want]

	n, err := v.data.ReadAt(v.ctx, content.ContentID(st.inode.ContentID), buf, offset)
	switch {
	case errors.Is(err, content.ErrContentNotFound):
		n = 0
	case err != nil:
		return 0, ioError(nid, "read content", err)
	}
	clear(buf[n:])

	if !v.cfg.Noatime && !v.cfg.ReadOnly {
		st.inode.Atime = v.now().Unix()
		st.dirty = true
	}
	return len(buf), nil
}

// Pwrite writes data at offset, growing the file as needed.
func (v *Volume) Pwrite(nid uint64, data []byte, offset uint64) (int, error) {
	if err := v.checkWritable(nid); err != nil {
		return 0, err
	}
	st, err := v.fileState(nid)
	if err != nil {
		return 0, err
	}
	if len(data) == 0 {
		return 0, nil
	}

	end := offset + uint64(len(data))
	if end < offset {
		return 0, engine.NewError(engine.ErrInvalidArgument, nid, "write range overflows")
	}
	if err := v.reserve(nid, st.inode.Size, end); err != nil {
		return 0, err
	}

	if err := v.data.WriteAt(v.ctx, content.ContentID(st.inode.ContentID), data, offset); err != nil {
		return 0, contentError(nid, "write content", err)
	}

	if end > st.inode.Size {
		v.account(st, end)
	}
	st.inode.Mtime = v.now().Unix()
	st.dirty = true
	return len(data), nil
}

// FlushNode writes nid's inode record and content back.
func (v *Volume) FlushNode(nid uint64) error {
	st, ok := v.inodes[nid]
	if !ok {
		return nil
	}
	return v.flushState(nid, st)
}

// FlushNodes writes back every dirty resident node in nid order.
func (v *Volume) FlushNodes() error {
	nids := make([]uint64, 0, len(v.inodes))
	for nid, st := range v.inodes {
		if st.dirty {
			nids = append(nids, nid)
		}
	}
	sort.Slice(nids, func(i, j int) bool { return nids[i] < nids[j] })

	for _, nid := range nids {
		if err := v.flushState(nid, v.inodes[nid]); err != nil {
			return err
		}
	}
	if len(nids) > 0 {
		logger.Debug("Flushed %d dirty nodes", len(nids))
	}
	return nil
}

func (v *Volume) flushState(nid uint64, st *inodeState) error {
	if st.dirty {
		if err := v.meta.PutInode(v.ctx, st.inode); err != nil {
			return ioError(nid, "write inode", err)
		}
		st.dirty = false
	}
	if st.inode.ContentID != "" {
		if err := v.data.Flush(v.ctx, content.ContentID(st.inode.ContentID)); err != nil {
			return ioError(nid, "flush content", err)
		}
	}
	return nil
}

// Flush commits the superblock if it changed.
func (v *Volume) Flush() error {
	if !v.sbDirty || v.cfg.ReadOnly {
		return nil
	}
	if err := v.meta.PutSuperBlock(v.ctx, v.sb); err != nil {
		return ioError(0, "write superblock", err)
	}
	v.sbDirty = false
	return nil
}

// Fsync makes both stores durable.
func (v *Volume) Fsync() error {
	if err := v.meta.Sync(v.ctx); err != nil {
		return ioError(0, "sync metadata", err)
	}
	if err := v.data.Sync(v.ctx); err != nil {
		return ioError(0, "sync content", err)
	}
	return nil
}

// Statfs reports capacity counters against the same bound writes are
// checked against.
func (v *Volume) Statfs() (engine.Statfs, error) {
	bs := uint64(v.cfg.BlockSize)

	total, err := v.capacity()
	if err != nil {
		return engine.Statfs{}, err
	}

	blocks := total / bs
	used := (v.sb.UsedBytes + bs - 1) / bs
	free := uint64(0)
	if blocks > used {
		free = blocks - used
	}

	files := v.cfg.MaxFiles
	if files == 0 {
		files = v.sb.Files + math.MaxUint32
	}
	ffree := uint64(0)
	if files > v.sb.Files {
		ffree = files - v.sb.Files
	}

	return engine.Statfs{
		Blocks:  blocks,
		Bfree:   free,
		Bavail:  free,
		Files:   files,
		Ffree:   ffree,
		Bsize:   v.cfg.BlockSize,
		Namelen: MaxNameLen,
		Frsize:  v.cfg.BlockSize,
	}, nil
}

// fileState returns the record of nid, which must be a regular file.
func (v *Volume) fileState(nid uint64) (*inodeState, error) {
	st, err := v.state(nid)
	if err != nil {
		return nil, err
	}
	if st.inode.IsDirectory() {
		return nil, engine.NewError(engine.ErrIsDirectory, nid, "is a directory")
	}
	return st, nil
}

// capacity returns the byte bound of the volume: the configured value,
// else the content store's total, else defaultCapacity. The store is
// asked once per mount.
func (v *Volume) capacity() (uint64, error) {
	if v.cfg.CapacityBytes > 0 {
		return v.cfg.CapacityBytes, nil
	}
	if v.storeCapacity == 0 {
		stats, err := v.data.GetStorageStats(v.ctx)
		if err != nil {
			return 0, ioError(0, "storage stats", err)
		}
		v.storeCapacity = stats.TotalSize
		if v.storeCapacity == 0 {
			v.storeCapacity = defaultCapacity
		}
	}
	return v.storeCapacity, nil
}

// reserve checks that growing a file from oldSize to newSize fits.
func (v *Volume) reserve(nid, oldSize, newSize uint64) error {
	if newSize <= oldSize {
		return nil
	}
	total, err := v.capacity()
	if err != nil {
		return err
	}
	grow := newSize - oldSize
	if grow > total || v.sb.UsedBytes > total-grow {
		return engine.NewError(engine.ErrNoSpace, nid, "volume capacity %d bytes exceeded", total)
	}
	return nil
}

// contentError classifies a content store failure.
func contentError(nid uint64, op string, err error) error {
	if errors.Is(err, content.ErrTooLarge) {
		return engine.NewError(engine.ErrFileTooLarge, nid, "%s: %v", op, err)
	}
	return ioError(nid, op, err)
}

// account moves st to newSize and updates the used byte count.
func (v *Volume) account(st *inodeState, newSize uint64) {
	v.sb.UsedBytes = v.sb.UsedBytes - st.inode.Size + newSize
	st.inode.Size = newSize
	v.sbDirty = true
}
