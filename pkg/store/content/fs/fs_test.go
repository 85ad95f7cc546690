package fs

import (
	"context"
	"os"
	"testing"

	"github.com/marmos91/dittofuse/pkg/store/content"
	storetest "github.com/marmos91/dittofuse/pkg/store/content/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFSContentStore(t *testing.T) {
	suite := &storetest.StoreTestSuite{
		NewStore: func(t *testing.T) content.Store {
			store, err := NewFSContentStore(context.Background(), FSContentStoreConfig{Path: t.TempDir()})
			require.NoError(t, err)
			return store
		},
	}
	suite.Run(t)
}

func TestFSContentStore_SmallFDCache(t *testing.T) {
	ctx := context.Background()
	store, err := NewFSContentStore(ctx, FSContentStoreConfig{Path: t.TempDir(), FDCacheSize: 2})
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	ids := []content.ContentID{"a", "b", "c", "d"}
	for i, id := range ids {
		require.NoError(t, store.WriteAt(ctx, id, []byte{byte('0' + i)}, 0))
	}

	open, capacity := store.files.stats()
	assert.Equal(t, 2, capacity)
	assert.Equal(t, 2, open)

	// Evicted descriptors are reopened transparently.
	for i, id := range ids {
		buf := make([]byte, 1)
		n, err := store.ReadAt(ctx, id, buf, 0)
		require.NoError(t, err)
		require.Equal(t, 1, n)
		assert.Equal(t, byte('0'+i), buf[0])
	}
	assert.NoError(t, store.Sync(ctx))
}

func TestFSContentStore_HexFilenames(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewFSContentStore(ctx, FSContentStoreConfig{Path: dir})
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	require.NoError(t, store.WriteAt(ctx, "a/b", []byte("x"), 0))

	_, err = os.Stat(store.getFilePath("a/b"))
	require.NoError(t, err)
	assert.Equal(t, dir+"/612f62", store.getFilePath("a/b"))
}

func TestFSContentStore_RequiresPath(t *testing.T) {
	_, err := NewFSContentStore(context.Background(), FSContentStoreConfig{})
	assert.Error(t, err)
}

func TestFSContentStore_CapacityReported(t *testing.T) {
	store, err := NewFSContentStore(context.Background(), FSContentStoreConfig{Path: t.TempDir()})
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	stats, err := store.GetStorageStats(context.Background())
	require.NoError(t, err)
	assert.NotZero(t, stats.TotalSize)
	assert.LessOrEqual(t, stats.AvailableSize, stats.TotalSize)
}

func TestFDCache_KeepsBusyDescriptors(t *testing.T) {
	store, err := NewFSContentStore(context.Background(), FSContentStoreConfig{Path: t.TempDir(), FDCacheSize: 1})
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	unlockA := store.files.lock("a")
	_, err = store.files.file("a", true)
	require.NoError(t, err)
	unlockB := store.files.lock("b")
	_, err = store.files.file("b", true)
	require.NoError(t, err)

	open, _ := store.files.stats()
	assert.Equal(t, 2, open, "held descriptors are not evicted")

	unlockA()
	unlockB()

	unlockC := store.files.lock("c")
	_, err = store.files.file("c", true)
	require.NoError(t, err)
	unlockC()

	open, _ = store.files.stats()
	assert.Equal(t, 1, open)
	assert.Empty(t, store.files.locks)
}
