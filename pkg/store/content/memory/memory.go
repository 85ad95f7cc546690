package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/marmos91/dittofuse/pkg/store/content"
)

// MemoryContentStore implements content.Store using in-memory storage.
//
// Characteristics:
//   - Fast: All operations are memory-speed
//   - Volatile: Data lost on restart
//   - Memory-bound: Limited by available RAM
//
// Thread Safety:
// All operations are protected by a sync.RWMutex. Data is copied on read
// and write so caller buffers are never retained.
type MemoryContentStore struct {
	// data stores the actual file content keyed by ContentID
	data map[content.ContentID][]byte

	// mu protects concurrent access to data map
	mu sync.RWMutex

	closed bool
}

// NewMemoryContentStore creates an empty in-memory content store.
func NewMemoryContentStore() *MemoryContentStore {
	return &MemoryContentStore{
		data: make(map[content.ContentID][]byte),
	}
}

func (s *MemoryContentStore) ReadAt(ctx context.Context, id content.ContentID, buf []byte, offset uint64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, content.ErrStoreClosed
	}
	data, ok := s.data[id]
	if !ok {
		return 0, fmt.Errorf("content %s: %w", id, content.ErrContentNotFound)
	}
	return content.ReadAtBuffer(data, buf, offset), nil
}

func (s *MemoryContentStore) WriteAt(ctx context.Context, id content.ContentID, data []byte, offset uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return content.ErrStoreClosed
	}
	buf, err := content.WriteAtBuffer(s.data[id], data, offset)
	if err != nil {
		return err
	}
	s.data[id] = buf
	return nil
}

func (s *MemoryContentStore) Truncate(ctx context.Context, id content.ContentID, size uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return content.ErrStoreClosed
	}
	buf, err := content.ResizeBuffer(s.data[id], size)
	if err != nil {
		return err
	}
	s.data[id] = buf
	return nil
}

func (s *MemoryContentStore) Delete(ctx context.Context, id content.ContentID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, id)
	return nil
}

func (s *MemoryContentStore) GetContentSize(ctx context.Context, id content.ContentID) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.data[id]
	if !ok {
		return 0, fmt.Errorf("content %s: %w", id, content.ErrContentNotFound)
	}
	return uint64(len(data)), nil
}

// Flush is a no-op: writes land in the map directly.
func (s *MemoryContentStore) Flush(ctx context.Context, _ content.ContentID) error {
	return ctx.Err()
}

// Sync is a no-op.
func (s *MemoryContentStore) Sync(ctx context.Context) error {
	return ctx.Err()
}

func (s *MemoryContentStore) GetStorageStats(ctx context.Context) (*content.StorageStats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &content.StorageStats{ContentCount: uint64(len(s.data))}
	for _, data := range s.data {
		stats.UsedSize += uint64(len(data))
	}
	if stats.ContentCount > 0 {
		stats.AverageSize = stats.UsedSize / stats.ContentCount
	}
	return stats, nil
}

func (s *MemoryContentStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}
