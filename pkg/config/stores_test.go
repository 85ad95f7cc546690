package config

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateContentStore_Filesystem(t *testing.T) {
	cfg := &ContentConfig{
		Type:       "filesystem",
		Filesystem: map[string]any{"path": t.TempDir(), "fd_cache_size": "16"},
	}

	store, err := CreateContentStore(context.Background(), cfg, nil)
	require.NoError(t, err)
	require.NotNil(t, store)
	assert.NoError(t, store.Close())
}

func TestCreateContentStore_FilesystemMissingPath(t *testing.T) {
	cfg := &ContentConfig{Type: "filesystem", Filesystem: map[string]any{}}

	_, err := CreateContentStore(context.Background(), cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "path is required")
}

func TestCreateContentStore_S3Requirements(t *testing.T) {
	_, err := CreateContentStore(context.Background(), &ContentConfig{Type: "s3", S3: map[string]any{}}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket is required")

	_, err = CreateContentStore(context.Background(), &ContentConfig{
		Type: "s3",
		S3:   map[string]any{"bucket": "volumes"},
	}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "region is required")
}

func TestCreateContentStore_UnknownType(t *testing.T) {
	_, err := CreateContentStore(context.Background(), &ContentConfig{Type: "tape"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown content store type")
}

func TestCreateMetadataStore_Memory(t *testing.T) {
	store, err := CreateMetadataStore(context.Background(), &MetadataConfig{Type: "memory"})
	require.NoError(t, err)
	assert.NoError(t, store.Close())
}

func TestCreateMetadataStore_Badger(t *testing.T) {
	cfg := &MetadataConfig{
		Type:   "badger",
		Badger: map[string]any{"db_path": t.TempDir(), "block_cache_mb": 8},
	}

	store, err := CreateMetadataStore(context.Background(), cfg)
	require.NoError(t, err)
	assert.NoError(t, store.Close())
}

func TestCreateMetadataStore_UnknownType(t *testing.T) {
	_, err := CreateMetadataStore(context.Background(), &MetadataConfig{Type: "etcd"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown metadata store type")
}

func TestCreateStores_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := CreateMetadataStore(ctx, &MetadataConfig{Type: "memory"})
	assert.ErrorIs(t, err, context.Canceled)

	_, err = CreateContentStore(ctx, &ContentConfig{Type: "memory"}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestVolumeConfig_Masks(t *testing.T) {
	vc := VolumeConfig{Name: "v", UID: 1000, GID: 100, Umask: "022", Fmask: "0o133"}

	cfg, err := vc.VolumeConfig()
	require.NoError(t, err)
	assert.Equal(t, uint32(0o22), cfg.Dmask)
	assert.Equal(t, uint32(0o133), cfg.Fmask)
	assert.Equal(t, uint32(1000), cfg.UID)
	assert.Equal(t, uint32(100), cfg.GID)
}

func TestVolumeConfig_MountingUser(t *testing.T) {
	vc := VolumeConfig{Name: "v", UID: -1, GID: -1, Umask: "0"}

	cfg, err := vc.VolumeConfig()
	require.NoError(t, err)
	assert.Equal(t, uint32(os.Getuid()), cfg.UID)
	assert.Equal(t, uint32(os.Getgid()), cfg.GID)
	assert.Zero(t, cfg.Dmask)
}

func TestVolumeConfig_BadMask(t *testing.T) {
	_, err := (&VolumeConfig{Umask: "022", Dmask: "9"}).VolumeConfig()
	assert.NoError(t, err)

	_, err = (&VolumeConfig{Umask: "022", Dmask: "0999"}).VolumeConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dmask")
}

func TestOpenVolume_Memory(t *testing.T) {
	cfg := GetDefaultConfig()

	vol, err := OpenVolume(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, vol.Serial())
	assert.False(t, vol.IsReadonly())
	require.NoError(t, vol.Unmount())
}

func TestFUSEConfig(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Volume.ReadOnly = true
	cfg.Volume.NoAtime = true
	cfg.Mount.AllowRoot = true
	cfg.Mount.Debug = 2

	fc := cfg.FUSEConfig("/mnt/vol")
	assert.Equal(t, "/mnt/vol", fc.Mountpoint)
	assert.Equal(t, DefaultVolumeName, fc.FsName)
	assert.True(t, fc.ReadOnly)
	assert.True(t, fc.NoAtime)
	assert.True(t, fc.AllowRoot)
	assert.Equal(t, 2, fc.DebugLevel)
	assert.Equal(t, DefaultMaxWrite, fc.MaxWrite)
	assert.Equal(t, cfg.Server.ShutdownTimeout, fc.ShutdownTimeout)

	adapters, err := CreateAdapters(cfg, "/mnt/vol", nil)
	require.NoError(t, err)
	require.Len(t, adapters, 1)
	assert.Equal(t, "FUSE", adapters[0].Protocol())

	_, err = CreateAdapters(cfg, "", nil)
	assert.Error(t, err)
}

func TestInitializeMetrics_Disabled(t *testing.T) {
	res := InitializeMetrics(GetDefaultConfig())
	assert.Nil(t, res.Server)
	assert.Nil(t, res.S3Metrics)
	assert.Nil(t, res.MetadataMetrics)
	assert.NotNil(t, res.FUSEMetrics)
}
