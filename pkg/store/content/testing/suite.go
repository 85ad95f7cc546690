package testing

import (
	"bytes"
	"context"
	"testing"

	"github.com/marmos91/dittofuse/pkg/store/content"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// StoreTestSuite is a test suite for content.Store implementations.
// It tests the interface contract, not implementation details, making it
// reusable across backends (memory, filesystem, S3).
//
// Usage:
//
//	func TestMyContentStore(t *testing.T) {
//	    suite := &storetest.StoreTestSuite{
//	        NewStore: func(t *testing.T) content.Store {
//	            return mystore.New()
//	        },
//	    }
//	    suite.Run(t)
//	}
type StoreTestSuite struct {
	// NewStore creates a fresh, empty store for each test.
	NewStore func(t *testing.T) content.Store
}

// Run executes all tests in the suite.
func (suite *StoreTestSuite) Run(t *testing.T) {
	t.Run("ReadOperations", suite.RunReadTests)
	t.Run("WriteOperations", suite.RunWriteTests)
	t.Run("Truncate", suite.RunTruncateTests)
	t.Run("Delete", suite.RunDeleteTests)
	t.Run("Statistics", suite.RunStatsTests)
}

// testContext returns a standard test context.
func testContext() context.Context {
	return context.Background()
}

func (suite *StoreTestSuite) newStore(t *testing.T) content.Store {
	t.Helper()
	store := suite.NewStore(t)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// mustWrite writes data at offset and flushes the object.
func mustWrite(t *testing.T, store content.Store, id content.ContentID, data []byte, offset uint64) {
	t.Helper()
	require.NoError(t, store.WriteAt(testContext(), id, data, offset))
	require.NoError(t, store.Flush(testContext(), id))
}

// readAll reads size bytes from offset 0.
func readAll(t *testing.T, store content.Store, id content.ContentID, size int) []byte {
	t.Helper()
	buf := make([]byte, size)
	n, err := store.ReadAt(testContext(), id, buf, 0)
	require.NoError(t, err)
	return buf[:n]
}

// ============================================================================
// Read Tests
// ============================================================================

// RunReadTests checks ReadAt and GetContentSize.
func (suite *StoreTestSuite) RunReadTests(t *testing.T) {
	t.Run("ReadAt_NotFound", func(t *testing.T) {
		store := suite.newStore(t)

		_, err := store.ReadAt(testContext(), "missing", make([]byte, 4), 0)
		assert.ErrorIs(t, err, content.ErrContentNotFound)
	})

	t.Run("GetContentSize_NotFound", func(t *testing.T) {
		store := suite.newStore(t)

		_, err := store.GetContentSize(testContext(), "missing")
		assert.ErrorIs(t, err, content.ErrContentNotFound)
	})

	t.Run("ReadAt_Window", func(t *testing.T) {
		store := suite.newStore(t)
		mustWrite(t, store, "window", []byte("Hello, World!"), 0)

		buf := make([]byte, 5)
		n, err := store.ReadAt(testContext(), "window", buf, 7)
		require.NoError(t, err)
		assert.Equal(t, 5, n)
		assert.Equal(t, []byte("World"), buf)
	})

	t.Run("ReadAt_ShortAtEnd", func(t *testing.T) {
		store := suite.newStore(t)
		mustWrite(t, store, "short", []byte("abc"), 0)

		buf := make([]byte, 10)
		n, err := store.ReadAt(testContext(), "short", buf, 1)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.Equal(t, []byte("bc"), buf[:n])
	})

	t.Run("ReadAt_PastEnd", func(t *testing.T) {
		store := suite.newStore(t)
		mustWrite(t, store, "past", []byte("abc"), 0)

		n, err := store.ReadAt(testContext(), "past", make([]byte, 4), 100)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("ReadAt_Unflushed", func(t *testing.T) {
		store := suite.newStore(t)
		require.NoError(t, store.WriteAt(testContext(), "pending", []byte("buffered"), 0))

		assert.Equal(t, []byte("buffered"), readAll(t, store, "pending", 16))
	})

	t.Run("GetContentSize", func(t *testing.T) {
		store := suite.newStore(t)
		mustWrite(t, store, "sized", make([]byte, 1234), 0)

		size, err := store.GetContentSize(testContext(), "sized")
		require.NoError(t, err)
		assert.Equal(t, uint64(1234), size)
	})
}

// ============================================================================
// Write Tests
// ============================================================================

// RunWriteTests checks WriteAt semantics.
func (suite *StoreTestSuite) RunWriteTests(t *testing.T) {
	t.Run("WriteAt_CreatesObject", func(t *testing.T) {
		store := suite.newStore(t)
		mustWrite(t, store, "new", []byte("data"), 0)

		assert.Equal(t, []byte("data"), readAll(t, store, "new", 16))
	})

	t.Run("WriteAt_Overwrite", func(t *testing.T) {
		store := suite.newStore(t)
		mustWrite(t, store, "over", []byte("aaaaaa"), 0)
		mustWrite(t, store, "over", []byte("BB"), 2)

		assert.Equal(t, []byte("aaBBaa"), readAll(t, store, "over", 16))
	})

	t.Run("WriteAt_GapIsZeroFilled", func(t *testing.T) {
		store := suite.newStore(t)
		mustWrite(t, store, "gap", []byte("xy"), 4)

		assert.Equal(t, []byte{0, 0, 0, 0, 'x', 'y'}, readAll(t, store, "gap", 16))
	})

	t.Run("WriteAt_Large", func(t *testing.T) {
		store := suite.newStore(t)
		data := bytes.Repeat([]byte("0123456789abcdef"), 64*1024) // 1MiB
		mustWrite(t, store, "large", data, 0)

		assert.Equal(t, data, readAll(t, store, "large", len(data)))
	})

	t.Run("WriteAt_CallerBufferNotRetained", func(t *testing.T) {
		store := suite.newStore(t)
		data := []byte("keep")
		require.NoError(t, store.WriteAt(testContext(), "copy", data, 0))
		data[0] = 'X'
		require.NoError(t, store.Flush(testContext(), "copy"))

		assert.Equal(t, []byte("keep"), readAll(t, store, "copy", 8))
	})

	t.Run("Sync", func(t *testing.T) {
		store := suite.newStore(t)
		require.NoError(t, store.WriteAt(testContext(), "a", []byte("1"), 0))
		require.NoError(t, store.WriteAt(testContext(), "b", []byte("2"), 0))

		require.NoError(t, store.Sync(testContext()))
		assert.Equal(t, []byte("1"), readAll(t, store, "a", 4))
		assert.Equal(t, []byte("2"), readAll(t, store, "b", 4))
	})
}

// ============================================================================
// Truncate Tests
// ============================================================================

// RunTruncateTests checks Truncate semantics.
func (suite *StoreTestSuite) RunTruncateTests(t *testing.T) {
	t.Run("Shrink", func(t *testing.T) {
		store := suite.newStore(t)
		mustWrite(t, store, "shrink", []byte("abcdef"), 0)

		require.NoError(t, store.Truncate(testContext(), "shrink", 2))
		require.NoError(t, store.Flush(testContext(), "shrink"))

		assert.Equal(t, []byte("ab"), readAll(t, store, "shrink", 16))
	})

	t.Run("GrowZeroFills", func(t *testing.T) {
		store := suite.newStore(t)
		mustWrite(t, store, "grow", []byte("ab"), 0)

		require.NoError(t, store.Truncate(testContext(), "grow", 5))
		require.NoError(t, store.Flush(testContext(), "grow"))

		assert.Equal(t, []byte{'a', 'b', 0, 0, 0}, readAll(t, store, "grow", 16))
	})

	t.Run("ShrinkThenGrowExposesZeros", func(t *testing.T) {
		store := suite.newStore(t)
		mustWrite(t, store, "regrow", []byte("abcdef"), 0)

		require.NoError(t, store.Truncate(testContext(), "regrow", 1))
		require.NoError(t, store.Truncate(testContext(), "regrow", 4))
		require.NoError(t, store.Flush(testContext(), "regrow"))

		assert.Equal(t, []byte{'a', 0, 0, 0}, readAll(t, store, "regrow", 16))
	})

	t.Run("CreatesMissingObject", func(t *testing.T) {
		store := suite.newStore(t)

		require.NoError(t, store.Truncate(testContext(), "fresh", 3))
		require.NoError(t, store.Flush(testContext(), "fresh"))

		size, err := store.GetContentSize(testContext(), "fresh")
		require.NoError(t, err)
		assert.Equal(t, uint64(3), size)
	})
}

// ============================================================================
// Delete Tests
// ============================================================================

// RunDeleteTests checks Delete semantics.
func (suite *StoreTestSuite) RunDeleteTests(t *testing.T) {
	t.Run("Delete", func(t *testing.T) {
		store := suite.newStore(t)
		mustWrite(t, store, "doomed", []byte("x"), 0)

		require.NoError(t, store.Delete(testContext(), "doomed"))

		_, err := store.GetContentSize(testContext(), "doomed")
		assert.ErrorIs(t, err, content.ErrContentNotFound)
	})

	t.Run("DeleteMissingIsIdempotent", func(t *testing.T) {
		store := suite.newStore(t)

		assert.NoError(t, store.Delete(testContext(), "never-existed"))
	})

	t.Run("DeleteDropsPendingWrites", func(t *testing.T) {
		store := suite.newStore(t)
		require.NoError(t, store.WriteAt(testContext(), "pending", []byte("x"), 0))

		require.NoError(t, store.Delete(testContext(), "pending"))
		require.NoError(t, store.Sync(testContext()))

		_, err := store.ReadAt(testContext(), "pending", make([]byte, 1), 0)
		assert.ErrorIs(t, err, content.ErrContentNotFound)
	})
}

// ============================================================================
// Statistics Tests
// ============================================================================

// RunStatsTests checks GetStorageStats.
func (suite *StoreTestSuite) RunStatsTests(t *testing.T) {
	t.Run("CountsFlushedObjects", func(t *testing.T) {
		store := suite.newStore(t)
		mustWrite(t, store, "s1", make([]byte, 100), 0)
		mustWrite(t, store, "s2", make([]byte, 300), 0)

		stats, err := store.GetStorageStats(testContext())
		require.NoError(t, err)
		assert.Equal(t, uint64(2), stats.ContentCount)
		assert.Equal(t, uint64(400), stats.UsedSize)
		assert.Equal(t, uint64(200), stats.AverageSize)
	})

	t.Run("Empty", func(t *testing.T) {
		store := suite.newStore(t)

		stats, err := store.GetStorageStats(testContext())
		require.NoError(t, err)
		assert.Zero(t, stats.ContentCount)
		assert.Zero(t, stats.AverageSize)
	})
}
