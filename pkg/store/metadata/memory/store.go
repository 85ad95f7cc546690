package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/marmos91/dittofuse/pkg/store/metadata"
)

// MemoryMetadataStore implements metadata.Store with in-process maps.
//
// Nothing survives a restart. It is suitable for tests and for scratch
// volumes. Records are copied on the way in and out so callers never share
// memory with the store.
type MemoryMetadataStore struct {
	mu       sync.RWMutex
	sb       *metadata.SuperBlock
	inodes   map[uint64]*metadata.Inode
	children map[uint64]map[string]uint64
	closed   bool
}

// NewMemoryMetadataStore creates an empty store.
func NewMemoryMetadataStore() *MemoryMetadataStore {
	return &MemoryMetadataStore{
		inodes:   make(map[uint64]*metadata.Inode),
		children: make(map[uint64]map[string]uint64),
	}
}

func (s *MemoryMetadataStore) GetSuperBlock(ctx context.Context) (*metadata.SuperBlock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.sb == nil {
		return nil, metadata.ErrNotFound
	}
	return s.sb.Clone(), nil
}

func (s *MemoryMetadataStore) PutSuperBlock(ctx context.Context, sb *metadata.SuperBlock) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sb = sb.Clone()
	return nil
}

func (s *MemoryMetadataStore) GetInode(ctx context.Context, id uint64) (*metadata.Inode, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	inode, ok := s.inodes[id]
	if !ok {
		return nil, metadata.ErrNotFound
	}
	return inode.Clone(), nil
}

func (s *MemoryMetadataStore) PutInode(ctx context.Context, inode *metadata.Inode) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.inodes[inode.ID] = inode.Clone()
	return nil
}

func (s *MemoryMetadataStore) DeleteInode(ctx context.Context, id uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.inodes, id)
	return nil
}

func (s *MemoryMetadataStore) GetChild(ctx context.Context, parentID uint64, name string) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.children[parentID][name]
	if !ok {
		return 0, metadata.ErrNotFound
	}
	return id, nil
}

func (s *MemoryMetadataStore) SetChild(ctx context.Context, parentID uint64, name string, childID uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.link(parentID, name, childID)
	return nil
}

func (s *MemoryMetadataStore) RemoveChild(ctx context.Context, parentID uint64, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.children[parentID][name]; !ok {
		return metadata.ErrNotFound
	}
	s.unlink(parentID, name)
	return nil
}

func (s *MemoryMetadataStore) CreateChild(ctx context.Context, inode *metadata.Inode, sb *metadata.SuperBlock) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.children[inode.ParentID][inode.Name]; ok {
		return metadata.ErrExists
	}
	s.inodes[inode.ID] = inode.Clone()
	s.link(inode.ParentID, inode.Name, inode.ID)
	s.sb = sb.Clone()
	return nil
}

func (s *MemoryMetadataStore) Move(ctx context.Context, oldParentID uint64, oldName string, inode *metadata.Inode) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.children[oldParentID][oldName]; !ok {
		return metadata.ErrNotFound
	}
	s.unlink(oldParentID, oldName)
	s.link(inode.ParentID, inode.Name, inode.ID)
	s.inodes[inode.ID] = inode.Clone()
	return nil
}

func (s *MemoryMetadataStore) ListChildren(ctx context.Context, parentID uint64) ([]metadata.DirEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.children[parentID]
	out := make([]metadata.DirEntry, 0, len(entries))
	for name, id := range entries {
		out = append(out, metadata.DirEntry{Name: name, ID: id})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemoryMetadataStore) Sync(ctx context.Context) error {
	return ctx.Err()
}

func (s *MemoryMetadataStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}

// link and unlink expect s.mu to be held for writing.
func (s *MemoryMetadataStore) link(parentID uint64, name string, childID uint64) {
	entries, ok := s.children[parentID]
	if !ok {
		entries = make(map[string]uint64)
		s.children[parentID] = entries
	}
	entries[name] = childID
}

func (s *MemoryMetadataStore) unlink(parentID uint64, name string) {
	entries := s.children[parentID]
	delete(entries, name)
	if len(entries) == 0 {
		delete(s.children, parentID)
	}
}
