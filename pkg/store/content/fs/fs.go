// Package fs implements filesystem-based content storage.
//
// Each content object is one regular file under the base directory, named
// after the hex encoding of its ContentID.
package fs

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/marmos91/dittofuse/pkg/store/content"
	"golang.org/x/sys/unix"
)

// FSContentStore implements content.Store using the local filesystem.
//
// Thread Safety:
// Positional I/O on one object is serialized by the descriptor cache's
// per-object lock. Different objects proceed concurrently.
type FSContentStore struct {
	basePath string
	files    *fdCache
}

// FSContentStoreConfig contains configuration for the filesystem content store.
type FSContentStoreConfig struct {
	// Path is the directory holding content files
	Path string `mapstructure:"path"`

	// FDCacheSize bounds the number of open descriptors (default: 512)
	FDCacheSize int `mapstructure:"fd_cache_size"`
}

// NewFSContentStore creates a new filesystem-based content store.
//
// The base directory is created with permissions 0755 when missing.
func NewFSContentStore(ctx context.Context, cfg FSContentStoreConfig) (*FSContentStore, error) {
	// ========================================================================
	// Step 1: Check context before filesystem operation
	// ========================================================================

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if cfg.Path == "" {
		return nil, fmt.Errorf("content path is required")
	}

	// ========================================================================
	// Step 2: Create the base directory if it doesn't exist
	// ========================================================================

	if err := os.MkdirAll(cfg.Path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	fdCacheSize := cfg.FDCacheSize
	if fdCacheSize == 0 {
		fdCacheSize = 512
	}

	r := &FSContentStore{basePath: cfg.Path}
	r.files = newFDCache(fdCacheSize, r.openFile)
	return r, nil
}

// getFilePath returns the full path for a given content ID.
func (r *FSContentStore) getFilePath(id content.ContentID) string {
	return filepath.Join(r.basePath, hex.EncodeToString([]byte(id)))
}

// openFile opens the content file of id read-write. With create unset, a
// missing file yields content.ErrContentNotFound.
func (r *FSContentStore) openFile(id content.ContentID, create bool) (*os.File, error) {
	filePath := r.getFilePath(id)
	flags := os.O_RDWR
	if create {
		flags |= os.O_CREATE
	}

	file, err := os.OpenFile(filePath, flags, 0644)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("content %s: %w", id, content.ErrContentNotFound)
		}
		return nil, fmt.Errorf("failed to open content: %w", err)
	}
	return file, nil
}

// ReadAt reads from the content file at offset. A short read at end of file
// is not an error.
func (r *FSContentStore) ReadAt(ctx context.Context, id content.ContentID, buf []byte, offset uint64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	defer r.files.lock(id)()

	file, err := r.files.file(id, false)
	if err != nil {
		return 0, err
	}

	n, err := file.ReadAt(buf, int64(offset))
	if err != nil && !errors.Is(err, io.EOF) {
		return n, fmt.Errorf("failed to read content: %w", err)
	}
	return n, nil
}

// WriteAt writes data at offset. The file is created if it doesn't exist
// and any gap past the current end is filled with zeros by the OS.
func (r *FSContentStore) WriteAt(ctx context.Context, id content.ContentID, data []byte, offset uint64) error {
	// ========================================================================
	// Step 1: Check context before filesystem operation
	// ========================================================================

	if err := ctx.Err(); err != nil {
		return err
	}

	// ========================================================================
	// Step 2: Per-file locking and descriptor lookup
	// ========================================================================

	defer r.files.lock(id)()

	file, err := r.files.file(id, true)
	if err != nil {
		return err
	}

	// ========================================================================
	// Step 3: Write data with chunking for large writes
	// ========================================================================

	const chunkSize = 256 * 1024
	for written := 0; written < len(data); written += chunkSize {
		if err := ctx.Err(); err != nil {
			return err
		}

		end := min(written+chunkSize, len(data))
		if _, err := file.WriteAt(data[written:end], int64(offset)+int64(written)); err != nil {
			return fmt.Errorf("failed to write data: %w", err)
		}
	}

	return nil
}

// Truncate resizes the content file, creating it when missing.
func (r *FSContentStore) Truncate(ctx context.Context, id content.ContentID, size uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	defer r.files.lock(id)()

	file, err := r.files.file(id, true)
	if err != nil {
		return err
	}
	if err := file.Truncate(int64(size)); err != nil {
		return fmt.Errorf("failed to truncate content: %w", err)
	}
	return nil
}

// Delete removes the content file. The operation is idempotent.
func (r *FSContentStore) Delete(ctx context.Context, id content.ContentID) error {
	// ========================================================================
	// Step 1: Check context before filesystem operation
	// ========================================================================

	if err := ctx.Err(); err != nil {
		return err
	}

	defer r.files.lock(id)()

	// ========================================================================
	// Step 2: Close the cached descriptor
	// ========================================================================

	if err := r.files.drop(id); err != nil {
		return fmt.Errorf("failed to close content: %w", err)
	}

	// ========================================================================
	// Step 3: Remove the file
	// ========================================================================

	if err := os.Remove(r.getFilePath(id)); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to delete content: %w", err)
	}

	return nil
}

// GetContentSize returns the size of the content file.
func (r *FSContentStore) GetContentSize(ctx context.Context, id content.ContentID) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	info, err := os.Stat(r.getFilePath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, fmt.Errorf("content %s: %w", id, content.ErrContentNotFound)
		}
		return 0, fmt.Errorf("failed to stat content: %w", err)
	}
	return uint64(info.Size()), nil
}

// Flush is a no-op: WriteAt goes straight to the kernel page cache.
func (r *FSContentStore) Flush(ctx context.Context, _ content.ContentID) error {
	return ctx.Err()
}

// Sync fsyncs every open content file.
func (r *FSContentStore) Sync(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.files.syncAll()
}

// GetStorageStats reports the capacity of the filesystem holding the base
// directory and the usage of the content files in it.
func (r *FSContentStore) GetStorageStats(ctx context.Context) (*content.StorageStats, error) {
	// ========================================================================
	// Step 1: Check context before filesystem operation
	// ========================================================================

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// ========================================================================
	// Step 2: Filesystem capacity
	// ========================================================================

	var st unix.Statfs_t
	if err := unix.Statfs(r.basePath, &st); err != nil {
		return nil, fmt.Errorf("failed to statfs %s: %w", r.basePath, err)
	}
	stats := &content.StorageStats{
		TotalSize:     st.Blocks * uint64(st.Bsize),
		AvailableSize: st.Bavail * uint64(st.Bsize),
	}

	// ========================================================================
	// Step 3: Scan content files
	// ========================================================================

	entries, err := os.ReadDir(r.basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read content directory: %w", err)
	}

	for i, entry := range entries {
		if i%100 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			continue
		}
		stats.ContentCount++
		stats.UsedSize += uint64(info.Size())
	}
	if stats.ContentCount > 0 {
		stats.AverageSize = stats.UsedSize / stats.ContentCount
	}

	return stats, nil
}

// Close closes all cached file descriptors.
func (r *FSContentStore) Close() error {
	return r.files.closeAll()
}
