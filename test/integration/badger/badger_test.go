//go:build integration

package badger_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/marmos91/dittofuse/pkg/config"
	"github.com/marmos91/dittofuse/pkg/engine"
	"github.com/marmos91/dittofuse/pkg/store/metadata"
	"github.com/marmos91/dittofuse/pkg/store/metadata/badger"
	storetest "github.com/marmos91/dittofuse/pkg/store/metadata/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// persistentConfig returns a configuration backed by BadgerDB and the local
// filesystem under dir.
func persistentConfig(dir string) *config.Config {
	cfg := config.GetDefaultConfig()
	cfg.Volume.Name = "integration"
	cfg.Metadata.Type = "badger"
	cfg.Metadata.Badger["db_path"] = filepath.Join(dir, "meta")
	cfg.Content.Type = "filesystem"
	cfg.Content.Filesystem["path"] = filepath.Join(dir, "content")
	return cfg
}

// TestBadgerMetadataStore_OnDisk runs the metadata store suite against an
// on-disk database.
func TestBadgerMetadataStore_OnDisk(t *testing.T) {
	suite := &storetest.StoreTestSuite{
		NewStore: func(t *testing.T) metadata.Store {
			store, err := badger.NewBadgerMetadataStore(context.Background(), badger.BadgerMetadataStoreConfig{
				DBPath: t.TempDir(),
			})
			require.NoError(t, err)
			return store
		},
	}
	suite.Run(t)
}

// TestVolume_SurvivesRemount writes through one volume instance and reads
// the data back through a fresh one over the same stores.
func TestVolume_SurvivesRemount(t *testing.T) {
	ctx := context.Background()
	cfg := persistentConfig(t.TempDir())
	require.NoError(t, config.Validate(cfg))

	vol, err := config.OpenVolume(ctx, cfg, nil)
	require.NoError(t, err)
	serial := vol.Serial()

	dir, err := vol.MkdirAt(engine.RootNid, "docs")
	require.NoError(t, err)
	nid, err := vol.MknodAt(dir, "readme.txt")
	require.NoError(t, err)

	payload := []byte("persisted across remounts")
	vol.Get(nid)
	n, err := vol.Pwrite(nid, payload, 0)
	require.NoError(t, err)
	require.Equal(t, len(payload), n)
	require.NoError(t, vol.FlushNode(nid))
	vol.Put(nid)

	require.NoError(t, vol.Unmount())

	vol, err = config.OpenVolume(ctx, cfg, nil)
	require.NoError(t, err)
	defer func() { assert.NoError(t, vol.Unmount()) }()

	assert.Equal(t, serial, vol.Serial(), "remount must find the same superblock")

	dir, err = vol.LookupAt(engine.RootNid, "docs")
	require.NoError(t, err)
	defer vol.Put(dir)

	nid, err = vol.LookupAt(dir, "readme.txt")
	require.NoError(t, err)
	defer vol.Put(nid)

	st, err := vol.Stat(nid)
	require.NoError(t, err)
	assert.Equal(t, uint64(len(payload)), st.Size)

	buf := make([]byte, 64)
	n, err = vol.Pread(nid, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, payload, buf[:n])
}

// TestVolume_ReadOnlyRemount reopens a formatted volume read-only and
// checks that mutations are refused.
func TestVolume_ReadOnlyRemount(t *testing.T) {
	ctx := context.Background()
	cfg := persistentConfig(t.TempDir())

	vol, err := config.OpenVolume(ctx, cfg, nil)
	require.NoError(t, err)
	require.NoError(t, vol.Unmount())

	cfg.Volume.ReadOnly = true
	vol, err = config.OpenVolume(ctx, cfg, nil)
	require.NoError(t, err)
	defer func() { assert.NoError(t, vol.Unmount()) }()

	assert.True(t, vol.IsReadonly())
	_, err = vol.MknodAt(engine.RootNid, "nope")
	var engErr *engine.Error
	require.ErrorAs(t, err, &engErr)
	assert.Equal(t, engine.ErrReadOnly, engErr.Code)
}
