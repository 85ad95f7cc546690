package metadata

import (
	"context"
	"errors"
)

// ============================================================================
// Store Interface
// ============================================================================

// Store persists the volume's structure: inode records, directory entries
// and the superblock.
//
// The store does NOT manage file bytes. Regular files reference their data
// through Inode.ContentID, which is resolved by a content store.
//
// Storage Model:
//   - one record per inode, keyed by inode id
//   - one entry per (parent id, name) pair pointing at a child id
//   - a single superblock record
//
// The store has no notion of reference counts or open handles. Those live
// in the volume's node registry and never reach persistence.
//
// Thread Safety:
// Implementations must be safe for concurrent use by multiple goroutines.
type Store interface {
	// GetSuperBlock returns the persisted superblock, or ErrNotFound on a
	// freshly created store.
	GetSuperBlock(ctx context.Context) (*SuperBlock, error)

	// PutSuperBlock replaces the superblock.
	PutSuperBlock(ctx context.Context, sb *SuperBlock) error

	// GetInode returns the inode record for id, or ErrNotFound.
	GetInode(ctx context.Context, id uint64) (*Inode, error)

	// PutInode creates or replaces the inode record.
	PutInode(ctx context.Context, inode *Inode) error

	// DeleteInode removes the inode record. Deleting a missing record is
	// not an error.
	DeleteInode(ctx context.Context, id uint64) error

	// GetChild resolves a name inside a directory, or returns ErrNotFound.
	GetChild(ctx context.Context, parentID uint64, name string) (uint64, error)

	// SetChild creates or replaces a directory entry.
	SetChild(ctx context.Context, parentID uint64, name string, childID uint64) error

	// RemoveChild deletes a directory entry, or returns ErrNotFound.
	RemoveChild(ctx context.Context, parentID uint64, name string) error

	// CreateChild links a new inode into its parent and replaces the
	// superblock in one atomic write: the inode record, the entry
	// (inode.ParentID, inode.Name) and sb. Returns ErrExists when the entry
	// is already taken; nothing is written in that case.
	CreateChild(ctx context.Context, inode *Inode, sb *SuperBlock) error

	// Move renames the entry (oldParentID, oldName) to (inode.ParentID,
	// inode.Name) and stores inode, atomically. An entry already holding
	// the new name is overwritten. Returns ErrNotFound, with nothing
	// written, when the old entry does not exist.
	Move(ctx context.Context, oldParentID uint64, oldName string, inode *Inode) error

	// ListChildren returns every entry of a directory ordered by name.
	ListChildren(ctx context.Context, parentID uint64) ([]DirEntry, error)

	// Sync makes all previous writes durable.
	Sync(ctx context.Context) error

	// Close releases the store's resources. The store must not be used
	// afterwards.
	Close() error
}

var (
	// ErrNotFound is returned when a record or directory entry does not exist.
	ErrNotFound = errors.New("metadata: not found")

	// ErrExists is returned by CreateChild when the name is taken.
	ErrExists = errors.New("metadata: entry exists")
)
