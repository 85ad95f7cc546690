package content

import (
	"context"
)

// ContentID identifies one content object. It is opaque to callers; the
// volume generates a random UUID per regular file.
type ContentID string

// ============================================================================
// Store Interface
// ============================================================================

// Store holds the bytes of regular files.
//
// Separation of Concerns:
// The content store manages only raw file data. Sizes recorded in inode
// records are authoritative: a content object may be shorter than the file
// it backs (a never-written tail) and callers zero-fill the difference.
//
// Buffering:
// Backends may buffer writes. Flush pushes one object's buffered state to
// the backend; Sync makes everything flushed so far durable.
//
// Thread Safety:
// Implementations must be safe for concurrent use by multiple goroutines.
type Store interface {
	// ReadAt copies up to len(buf) bytes starting at offset. Reading at or
	// past the end of the object returns a short count and no error.
	// Missing objects return ErrContentNotFound.
	ReadAt(ctx context.Context, id ContentID, buf []byte, offset uint64) (int, error)

	// WriteAt writes data at offset, creating the object when missing and
	// zero-filling any gap.
	WriteAt(ctx context.Context, id ContentID, data []byte, offset uint64) error

	// Truncate resizes the object, creating it when missing. Growing
	// exposes zero bytes.
	Truncate(ctx context.Context, id ContentID, size uint64) error

	// Delete removes the object. Deleting a missing object is not an error.
	Delete(ctx context.Context, id ContentID) error

	// GetContentSize returns the object's size, or ErrContentNotFound.
	GetContentSize(ctx context.Context, id ContentID) (uint64, error)

	// Flush writes any buffered state of one object back to the backend.
	Flush(ctx context.Context, id ContentID) error

	// Sync makes every flushed object durable.
	Sync(ctx context.Context) error

	// GetStorageStats reports capacity and usage of the backend.
	GetStorageStats(ctx context.Context) (*StorageStats, error)

	// Close releases resources. Buffered state that was never flushed is
	// written back first.
	Close() error
}

// StorageStats contains statistics about a content store.
type StorageStats struct {
	// TotalSize is the backend capacity in bytes (0 when unbounded)
	TotalSize uint64

	// UsedSize is the number of bytes stored
	UsedSize uint64

	// AvailableSize is the number of bytes still available (0 when unbounded)
	AvailableSize uint64

	// ContentCount is the number of objects
	ContentCount uint64

	// AverageSize is UsedSize / ContentCount (0 when empty)
	AverageSize uint64
}
