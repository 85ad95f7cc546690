package testing

import (
	"context"
	"testing"

	"github.com/marmos91/dittofuse/pkg/store/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// StoreTestSuite is a test suite for metadata.Store implementations.
// It tests the interface contract, not implementation details, making it
// reusable across backends (memory, badger).
//
// Usage:
//
//	func TestMyMetadataStore(t *testing.T) {
//	    suite := &storetest.StoreTestSuite{
//	        NewStore: func(t *testing.T) metadata.Store {
//	            return mystore.New()
//	        },
//	    }
//	    suite.Run(t)
//	}
type StoreTestSuite struct {
	// NewStore creates a fresh, empty store for each test.
	NewStore func(t *testing.T) metadata.Store
}

// Run executes all tests in the suite.
func (suite *StoreTestSuite) Run(t *testing.T) {
	t.Run("SuperBlock", suite.RunSuperBlockTests)
	t.Run("Inodes", suite.RunInodeTests)
	t.Run("DirectoryEntries", suite.RunDirectoryTests)
	t.Run("Transactions", suite.RunTransactionTests)
	t.Run("Lifecycle", suite.RunLifecycleTests)
}

// testContext returns a standard test context.
func testContext() context.Context {
	return context.Background()
}

func (suite *StoreTestSuite) newStore(t *testing.T) metadata.Store {
	t.Helper()
	store := suite.NewStore(t)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// ============================================================================
// SuperBlock Tests
// ============================================================================

// RunSuperBlockTests checks superblock persistence.
func (suite *StoreTestSuite) RunSuperBlockTests(t *testing.T) {
	t.Run("Get_NotFoundOnFreshStore", func(t *testing.T) {
		store := suite.newStore(t)

		_, err := store.GetSuperBlock(testContext())
		assert.ErrorIs(t, err, metadata.ErrNotFound)
	})

	t.Run("PutThenGet", func(t *testing.T) {
		store := suite.newStore(t)
		sb := &metadata.SuperBlock{
			Serial:    "6f1c1a55-8f8e-4ff3-a2f3-9a70c2a7b0c1",
			NextID:    17,
			Dirty:     true,
			UsedBytes: 4096,
			Files:     3,
		}

		require.NoError(t, store.PutSuperBlock(testContext(), sb))

		got, err := store.GetSuperBlock(testContext())
		require.NoError(t, err)
		assert.Equal(t, sb, got)
	})

	t.Run("PutReplaces", func(t *testing.T) {
		store := suite.newStore(t)
		require.NoError(t, store.PutSuperBlock(testContext(), &metadata.SuperBlock{NextID: 2, Dirty: true}))
		require.NoError(t, store.PutSuperBlock(testContext(), &metadata.SuperBlock{NextID: 5}))

		got, err := store.GetSuperBlock(testContext())
		require.NoError(t, err)
		assert.Equal(t, uint64(5), got.NextID)
		assert.False(t, got.Dirty)
	})
}

// ============================================================================
// Inode Tests
// ============================================================================

// RunInodeTests checks inode record CRUD.
func (suite *StoreTestSuite) RunInodeTests(t *testing.T) {
	t.Run("Get_NotFound", func(t *testing.T) {
		store := suite.newStore(t)

		_, err := store.GetInode(testContext(), 42)
		assert.ErrorIs(t, err, metadata.ErrNotFound)
	})

	t.Run("PutThenGet", func(t *testing.T) {
		store := suite.newStore(t)
		inode := &metadata.Inode{
			ID:        2,
			ParentID:  1,
			Name:      "report.txt",
			Type:      metadata.TypeRegular,
			Size:      100,
			Atime:     1700000000,
			Mtime:     1700000001,
			ContentID: "c0ffee",
		}

		require.NoError(t, store.PutInode(testContext(), inode))

		got, err := store.GetInode(testContext(), 2)
		require.NoError(t, err)
		assert.Equal(t, inode, got)
	})

	t.Run("ReturnedRecordIsDetached", func(t *testing.T) {
		store := suite.newStore(t)
		inode := &metadata.Inode{ID: 2, ParentID: 1, Name: "a", Type: metadata.TypeRegular}
		require.NoError(t, store.PutInode(testContext(), inode))

		inode.Size = 999
		got, err := store.GetInode(testContext(), 2)
		require.NoError(t, err)
		assert.Zero(t, got.Size)

		got.Size = 123
		again, err := store.GetInode(testContext(), 2)
		require.NoError(t, err)
		assert.Zero(t, again.Size)
	})

	t.Run("Delete", func(t *testing.T) {
		store := suite.newStore(t)
		require.NoError(t, store.PutInode(testContext(), &metadata.Inode{ID: 2, Type: metadata.TypeDirectory}))

		require.NoError(t, store.DeleteInode(testContext(), 2))
		_, err := store.GetInode(testContext(), 2)
		assert.ErrorIs(t, err, metadata.ErrNotFound)

		assert.NoError(t, store.DeleteInode(testContext(), 2), "deleting a missing record is not an error")
	})
}

// ============================================================================
// Directory Entry Tests
// ============================================================================

// RunDirectoryTests checks directory entry bookkeeping.
func (suite *StoreTestSuite) RunDirectoryTests(t *testing.T) {
	t.Run("GetChild_NotFound", func(t *testing.T) {
		store := suite.newStore(t)

		_, err := store.GetChild(testContext(), 1, "missing")
		assert.ErrorIs(t, err, metadata.ErrNotFound)
	})

	t.Run("SetGetRemove", func(t *testing.T) {
		store := suite.newStore(t)

		require.NoError(t, store.SetChild(testContext(), 1, "a", 2))
		id, err := store.GetChild(testContext(), 1, "a")
		require.NoError(t, err)
		assert.Equal(t, uint64(2), id)

		require.NoError(t, store.RemoveChild(testContext(), 1, "a"))
		_, err = store.GetChild(testContext(), 1, "a")
		assert.ErrorIs(t, err, metadata.ErrNotFound)

		assert.ErrorIs(t, store.RemoveChild(testContext(), 1, "a"), metadata.ErrNotFound)
	})

	t.Run("SetReplaces", func(t *testing.T) {
		store := suite.newStore(t)
		require.NoError(t, store.SetChild(testContext(), 1, "a", 2))
		require.NoError(t, store.SetChild(testContext(), 1, "a", 3))

		id, err := store.GetChild(testContext(), 1, "a")
		require.NoError(t, err)
		assert.Equal(t, uint64(3), id)
	})

	t.Run("ListChildren_SortedByName", func(t *testing.T) {
		store := suite.newStore(t)
		for id, name := range map[uint64]string{2: "zeta", 3: "alpha", 4: "mid", 5: "Beta"} {
			require.NoError(t, store.SetChild(testContext(), 1, name, id))
		}
		// Entries of another directory must not leak in.
		require.NoError(t, store.SetChild(testContext(), 2, "nested", 6))

		entries, err := store.ListChildren(testContext(), 1)
		require.NoError(t, err)
		assert.Equal(t, []metadata.DirEntry{
			{Name: "Beta", ID: 5},
			{Name: "alpha", ID: 3},
			{Name: "mid", ID: 4},
			{Name: "zeta", ID: 2},
		}, entries)
	})

	t.Run("ListChildren_EmptyDirectory", func(t *testing.T) {
		store := suite.newStore(t)

		entries, err := store.ListChildren(testContext(), 1)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("ListChildren_PrefixIsolation", func(t *testing.T) {
		store := suite.newStore(t)
		// Parent ids 1 and 256 differ only in a byte that a naive string
		// prefix would confuse.
		require.NoError(t, store.SetChild(testContext(), 1, "one", 10))
		require.NoError(t, store.SetChild(testContext(), 256, "two", 11))

		entries, err := store.ListChildren(testContext(), 1)
		require.NoError(t, err)
		assert.Equal(t, []metadata.DirEntry{{Name: "one", ID: 10}}, entries)
	})
}

// ============================================================================
// Transaction Tests
// ============================================================================

// RunTransactionTests checks the multi-record writes CreateChild and Move.
func (suite *StoreTestSuite) RunTransactionTests(t *testing.T) {
	t.Run("CreateChild_WritesAllRecords", func(t *testing.T) {
		store := suite.newStore(t)
		inode := &metadata.Inode{ID: 7, ParentID: 1, Name: "a", Type: metadata.TypeRegular, ContentID: "c1"}
		sb := &metadata.SuperBlock{Serial: "s", NextID: 8, Files: 2}

		require.NoError(t, store.CreateChild(testContext(), inode, sb))

		got, err := store.GetInode(testContext(), 7)
		require.NoError(t, err)
		assert.Equal(t, inode, got)

		id, err := store.GetChild(testContext(), 1, "a")
		require.NoError(t, err)
		assert.Equal(t, uint64(7), id)

		gotSB, err := store.GetSuperBlock(testContext())
		require.NoError(t, err)
		assert.Equal(t, sb, gotSB)
	})

	t.Run("CreateChild_ExistingNameWritesNothing", func(t *testing.T) {
		store := suite.newStore(t)
		require.NoError(t, store.SetChild(testContext(), 1, "a", 2))
		require.NoError(t, store.PutSuperBlock(testContext(), &metadata.SuperBlock{NextID: 3}))

		err := store.CreateChild(testContext(),
			&metadata.Inode{ID: 3, ParentID: 1, Name: "a", Type: metadata.TypeRegular},
			&metadata.SuperBlock{NextID: 4})
		assert.ErrorIs(t, err, metadata.ErrExists)

		_, err = store.GetInode(testContext(), 3)
		assert.ErrorIs(t, err, metadata.ErrNotFound)
		id, err := store.GetChild(testContext(), 1, "a")
		require.NoError(t, err)
		assert.Equal(t, uint64(2), id)
		sb, err := store.GetSuperBlock(testContext())
		require.NoError(t, err)
		assert.Equal(t, uint64(3), sb.NextID)
	})

	t.Run("Move_RelinksAndStoresInode", func(t *testing.T) {
		store := suite.newStore(t)
		require.NoError(t, store.SetChild(testContext(), 1, "a", 5))
		require.NoError(t, store.PutInode(testContext(), &metadata.Inode{ID: 5, ParentID: 1, Name: "a", Type: metadata.TypeRegular}))

		moved := &metadata.Inode{ID: 5, ParentID: 9, Name: "b", Type: metadata.TypeRegular, Size: 10}
		require.NoError(t, store.Move(testContext(), 1, "a", moved))

		_, err := store.GetChild(testContext(), 1, "a")
		assert.ErrorIs(t, err, metadata.ErrNotFound)
		id, err := store.GetChild(testContext(), 9, "b")
		require.NoError(t, err)
		assert.Equal(t, uint64(5), id)
		got, err := store.GetInode(testContext(), 5)
		require.NoError(t, err)
		assert.Equal(t, moved, got)
	})

	t.Run("Move_OverwritesTarget", func(t *testing.T) {
		store := suite.newStore(t)
		require.NoError(t, store.SetChild(testContext(), 1, "a", 5))
		require.NoError(t, store.SetChild(testContext(), 1, "b", 6))

		require.NoError(t, store.Move(testContext(), 1, "a",
			&metadata.Inode{ID: 5, ParentID: 1, Name: "b", Type: metadata.TypeRegular}))

		entries, err := store.ListChildren(testContext(), 1)
		require.NoError(t, err)
		assert.Equal(t, []metadata.DirEntry{{Name: "b", ID: 5}}, entries)
	})

	t.Run("Move_MissingSourceWritesNothing", func(t *testing.T) {
		store := suite.newStore(t)
		require.NoError(t, store.SetChild(testContext(), 1, "b", 6))

		err := store.Move(testContext(), 1, "a",
			&metadata.Inode{ID: 5, ParentID: 1, Name: "b", Type: metadata.TypeRegular})
		assert.ErrorIs(t, err, metadata.ErrNotFound)

		id, err := store.GetChild(testContext(), 1, "b")
		require.NoError(t, err)
		assert.Equal(t, uint64(6), id)
		_, err = store.GetInode(testContext(), 5)
		assert.ErrorIs(t, err, metadata.ErrNotFound)
	})
}

// ============================================================================
// Lifecycle Tests
// ============================================================================

// RunLifecycleTests checks Sync and context handling.
func (suite *StoreTestSuite) RunLifecycleTests(t *testing.T) {
	t.Run("Sync", func(t *testing.T) {
		store := suite.newStore(t)
		require.NoError(t, store.PutInode(testContext(), &metadata.Inode{ID: 1, Type: metadata.TypeDirectory}))

		assert.NoError(t, store.Sync(testContext()))
	})

	t.Run("CancelledContext", func(t *testing.T) {
		store := suite.newStore(t)
		ctx, cancel := context.WithCancel(testContext())
		cancel()

		_, err := store.GetInode(ctx, 1)
		assert.ErrorIs(t, err, context.Canceled)
		assert.ErrorIs(t, store.PutInode(ctx, &metadata.Inode{ID: 1}), context.Canceled)
	})
}
