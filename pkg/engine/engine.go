// Package engine defines the boundary between the FUSE adapter and the
// filesystem engine that owns the storage format.
//
// The adapter never touches stores directly. Every filesystem operation goes
// through Engine, and every node the adapter refers to lives in the engine's
// Registry with an explicit reference count.
//
// Engines are NOT safe for concurrent use. Callers serialize every call
// (including Get/Put and cursor calls) behind a single lock.
package engine

// RootNid is the node identifier of the volume's root directory.
// It matches the FUSE root node id so the kernel's view and the engine's
// registry agree without translation.
const RootNid uint64 = 1

// Stat is the attribute record an engine reports for a node.
//
// Times are unix seconds. Blocks is counted in 512-byte units.
type Stat struct {
	Ino     uint64
	Mode    uint32
	Nlink   uint32
	Uid     uint32
	Gid     uint32
	Rdev    uint32
	Size    uint64
	Blocks  uint64
	Blksize uint32
	Atime   int64
	Mtime   int64
}

// Statfs holds the capacity counters reported for the whole volume.
type Statfs struct {
	Blocks  uint64
	Bfree   uint64
	Bavail  uint64
	Files   uint64
	Ffree   uint64
	Bsize   uint32
	Namelen uint32
	Frsize  uint32
}

// Engine is the filesystem engine consumed by the FUSE adapter.
//
// Reference semantics:
//   - LookupAt and ReaddirCursor return a nid with one reference taken;
//     the caller must Put it.
//   - MknodAt and MkdirAt return a nid without a reference.
//   - Unlink and Rmdir consume the reference the caller obtained through
//     LookupAt, but only on success.
//
// Fallible operations return either a syscall.Errno or an *Error.
type Engine interface {
	LookupAt(parent uint64, name string) (uint64, error)
	MknodAt(parent uint64, name string) (uint64, error)
	MkdirAt(parent uint64, name string) (uint64, error)
	Unlink(nid uint64) error
	Rmdir(nid uint64) error
	RenameAt(oldParent uint64, oldName string, newParent uint64, newName string, flags uint32) error

	Stat(nid uint64) (Stat, error)

	// Truncate resizes a regular file. When erase is set, bytes exposed by
	// growing the file read back as zero.
	Truncate(nid uint64, size uint64, erase bool) error

	Pread(nid uint64, buf []byte, offset uint64) (int, error)
	Pwrite(nid uint64, data []byte, offset uint64) (int, error)

	// FlushNode writes the node's buffered state back to the stores.
	FlushNode(nid uint64) error
	// FlushNodes writes every dirty node back.
	FlushNodes() error
	// Flush commits volume-level cached state (the superblock).
	Flush() error
	// Fsync makes everything flushed so far durable on the backing device.
	Fsync() error

	Statfs() (Statfs, error)

	// PruneNode evicts the cached, unreferenced descendants of nid and
	// reports how many nodes were pruned and how many stayed resident.
	PruneNode(nid uint64) (uint64, uint64, error)

	// Node returns the live node for nid. An engine may materialize the
	// node from its stores on a cache miss.
	Node(nid uint64) (*Node, bool)
	Get(nid uint64)
	Put(nid uint64)

	OpendirCursor(dnid uint64) (*Cursor, error)
	// ReaddirCursor yields the next child. It returns ENOENT once the
	// directory is exhausted.
	ReaddirCursor(c *Cursor) (uint64, error)
	ClosedirCursor(c *Cursor)

	// SoilSuperBlock marks the volume dirty for the lifetime of the mount.
	SoilSuperBlock() error
	Unmount() error
	IsReadonly() bool
}
