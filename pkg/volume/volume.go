// Package volume implements engine.Engine over a metadata store and a
// content store.
//
// The volume keeps every node the kernel may refer to in an engine.Registry
// and mirrors each resident node's inode record in memory. Inode changes are
// written back on FlushNode/FlushNodes; directory entries and new inodes are
// persisted immediately.
//
// A Volume is not safe for concurrent use. The FUSE dispatcher serializes
// every call behind its global lock.
package volume

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/dittofuse/internal/logger"
	"github.com/marmos91/dittofuse/pkg/engine"
	"github.com/marmos91/dittofuse/pkg/store/content"
	"github.com/marmos91/dittofuse/pkg/store/metadata"
)

const (
	// MaxNameLen is the longest entry name accepted, in bytes.
	MaxNameLen = 255

	defaultBlockSize = 4096

	// defaultCapacity is reported by statfs when neither the configuration
	// nor the content store bounds the volume.
	defaultCapacity = 1 << 40
)

// Config controls how a volume presents itself.
type Config struct {
	// Name is reported as the FUSE fsname.
	Name string

	// ReadOnly rejects every mutation with EROFS and leaves the superblock
	// untouched.
	ReadOnly bool

	// UID and GID own every node.
	UID uint32
	GID uint32

	// Dmask and Fmask are cleared from 0777 to build directory and file
	// permissions.
	Dmask uint32
	Fmask uint32

	// Noatime disables access time updates on read.
	Noatime bool

	// CapacityBytes bounds the sum of file sizes. 0 defers to the content
	// store.
	CapacityBytes uint64

	// MaxFiles bounds the number of inodes. 0 means unlimited.
	MaxFiles uint64

	// BlockSize is reported as st_blksize and statfs f_bsize (default 4096).
	BlockSize uint32

	// Clock stamps atime and mtime. nil uses time.Now.
	Clock func() time.Time
}

// inodeState is the in-memory copy of a resident node's record.
type inodeState struct {
	inode *metadata.Inode
	dirty bool
}

// Volume is the concrete filesystem engine.
type Volume struct {
	ctx  context.Context
	cfg  Config
	meta metadata.Store
	data content.Store

	reg    *engine.Registry
	inodes map[uint64]*inodeState

	sb      *metadata.SuperBlock
	sbDirty bool

	// storeCapacity caches the content store's total when CapacityBytes
	// is unset.
	storeCapacity uint64

	// now is replaced in tests.
	now func() time.Time
}

var _ engine.Engine = (*Volume)(nil)

// Open mounts the volume held by the given stores, formatting it when the
// metadata store is empty. The stores are owned by the volume from here on
// and closed by Unmount.
func Open(ctx context.Context, meta metadata.Store, data content.Store, cfg Config) (*Volume, error) {
	if cfg.BlockSize == 0 {
		cfg.BlockSize = defaultBlockSize
	}

	v := &Volume{
		ctx:    ctx,
		cfg:    cfg,
		meta:   meta,
		data:   data,
		inodes: make(map[uint64]*inodeState),
		now:    cfg.Clock,
	}
	if v.now == nil {
		v.now = time.Now
	}
	v.reg = engine.NewRegistry(v.onEvict)

	sb, err := meta.GetSuperBlock(ctx)
	switch {
	case errors.Is(err, metadata.ErrNotFound):
		if cfg.ReadOnly {
			return nil, fmt.Errorf("volume %q is not formatted and cannot be formatted read-only", cfg.Name)
		}
		if sb, err = v.format(); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("failed to read superblock: %w", err)
	default:
		if sb.Dirty {
			logger.Warn("Volume %q (serial %s) was not cleanly unmounted", cfg.Name, sb.Serial)
		}
	}
	v.sb = sb

	root, err := meta.GetInode(ctx, engine.RootNid)
	if err != nil {
		return nil, fmt.Errorf("failed to read root directory: %w", err)
	}
	v.insert(root)

	logger.Info("Volume %q opened: serial=%s files=%d used=%d bytes read_only=%v",
		cfg.Name, sb.Serial, sb.Files, sb.UsedBytes, cfg.ReadOnly)
	return v, nil
}

// format writes a fresh superblock and an empty root directory.
func (v *Volume) format() (*metadata.SuperBlock, error) {
	now := v.now().Unix()
	root := &metadata.Inode{
		ID:       engine.RootNid,
		ParentID: engine.RootNid,
		Type:     metadata.TypeDirectory,
		Atime:    now,
		Mtime:    now,
	}
	if err := v.meta.PutInode(v.ctx, root); err != nil {
		return nil, fmt.Errorf("failed to create root directory: %w", err)
	}

	sb := &metadata.SuperBlock{
		Serial: uuid.NewString(),
		NextID: engine.RootNid + 1,
		Files:  1,
	}
	if err := v.meta.PutSuperBlock(v.ctx, sb); err != nil {
		return nil, fmt.Errorf("failed to write superblock: %w", err)
	}

	logger.Info("Formatted volume %q (serial %s)", v.cfg.Name, sb.Serial)
	return sb, nil
}

// Serial returns the volume's serial.
func (v *Volume) Serial() string {
	return v.sb.Serial
}

// IsReadonly reports whether the volume rejects mutations.
func (v *Volume) IsReadonly() bool {
	return v.cfg.ReadOnly
}

// Node returns the node for nid, loading it from the metadata store when
// it is not resident.
func (v *Volume) Node(nid uint64) (*engine.Node, bool) {
	n, err := v.load(nid)
	if err != nil {
		return nil, false
	}
	return n, true
}

func (v *Volume) Get(nid uint64) {
	v.reg.Get(nid)
}

func (v *Volume) Put(nid uint64) {
	v.reg.Put(nid)
}

// SoilSuperBlock marks the volume dirty on disk for the lifetime of the
// mount.
func (v *Volume) SoilSuperBlock() error {
	if v.cfg.ReadOnly {
		return nil
	}
	v.sb.Dirty = true
	if err := v.meta.PutSuperBlock(v.ctx, v.sb); err != nil {
		return ioError(0, "soil superblock", err)
	}
	v.sbDirty = false
	return nil
}

// Unmount writes everything back, clears the dirty flag and closes both
// stores. The first error is returned; later steps still run.
func (v *Volume) Unmount() error {
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if !v.cfg.ReadOnly {
		keep(v.FlushNodes())
		v.sb.Dirty = false
		v.sbDirty = true
		keep(v.Flush())
		keep(v.Fsync())
	}

	if err := v.data.Close(); err != nil {
		keep(ioError(0, "close content store", err))
	}
	if err := v.meta.Close(); err != nil {
		keep(ioError(0, "close metadata store", err))
	}

	logger.Info("Volume %q unmounted", v.cfg.Name)
	return firstErr
}

// load returns the resident node for nid, materializing it from the
// metadata store on a miss.
func (v *Volume) load(nid uint64) (*engine.Node, error) {
	if n, ok := v.reg.Lookup(nid); ok {
		return n, nil
	}

	inode, err := v.meta.GetInode(v.ctx, nid)
	if errors.Is(err, metadata.ErrNotFound) {
		return nil, engine.NewError(engine.ErrNotFound, nid, "no such node")
	}
	if err != nil {
		return nil, ioError(nid, "read inode", err)
	}
	return v.insert(inode), nil
}

func (v *Volume) insert(inode *metadata.Inode) *engine.Node {
	n := &engine.Node{
		Nid:  inode.ID,
		Pnid: inode.ParentID,
		Name: inode.Name,
		Dir:  inode.IsDirectory(),
	}
	v.reg.Insert(n)
	v.inodes[inode.ID] = &inodeState{inode: inode}
	return n
}

// state returns the in-memory record of a resident node.
func (v *Volume) state(nid uint64) (*inodeState, error) {
	if _, err := v.load(nid); err != nil {
		return nil, err
	}
	return v.inodes[nid], nil
}

// onEvict drops a node's in-memory record. Unlinked nodes also lose their
// persisted record and content.
func (v *Volume) onEvict(n *engine.Node) {
	st := v.inodes[n.Nid]
	delete(v.inodes, n.Nid)
	if !n.Unlinked || st == nil {
		return
	}

	if err := v.meta.DeleteInode(v.ctx, n.Nid); err != nil {
		logger.Error("Failed to delete inode record nid=%d: %v", n.Nid, err)
	}
	if st.inode.ContentID != "" {
		if err := v.data.Delete(v.ctx, content.ContentID(st.inode.ContentID)); err != nil {
			logger.Error("Failed to delete content of nid=%d: %v", n.Nid, err)
		}
	}

	v.sb.Files--
	v.sb.UsedBytes -= st.inode.Size
	v.sbDirty = true
	logger.Debug("Evicted unlinked nid=%d name=%q", n.Nid, n.Name)
}

// touch updates mtime of a resident node.
func (v *Volume) touch(nid uint64) {
	if st, ok := v.inodes[nid]; ok {
		st.inode.Mtime = v.now().Unix()
		st.dirty = true
	}
}

func (v *Volume) checkWritable(nid uint64) error {
	if v.cfg.ReadOnly {
		return engine.NewError(engine.ErrReadOnly, nid, "volume is read-only")
	}
	return nil
}

// ioError classifies a store failure as an I/O error.
func ioError(nid uint64, op string, err error) error {
	return engine.NewError(engine.ErrIOError, nid, "%s: %v", op, err)
}
