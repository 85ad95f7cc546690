package config

import (
	"context"
	"fmt"
	"os"

	"github.com/marmos91/dittofuse/internal/logger"
	"github.com/marmos91/dittofuse/pkg/metrics"
	"github.com/marmos91/dittofuse/pkg/volume"
)

// VolumeConfig resolves the volume section into engine settings.
//
// dmask and fmask override umask for directories and files respectively;
// a uid or gid of -1 selects the calling process's.
func (c *VolumeConfig) VolumeConfig() (volume.Config, error) {
	umask, err := ParseMask(c.Umask)
	if err != nil {
		return volume.Config{}, fmt.Errorf("umask: %w", err)
	}

	dmask, fmask := umask, umask
	if c.Dmask != "" {
		if dmask, err = ParseMask(c.Dmask); err != nil {
			return volume.Config{}, fmt.Errorf("dmask: %w", err)
		}
	}
	if c.Fmask != "" {
		if fmask, err = ParseMask(c.Fmask); err != nil {
			return volume.Config{}, fmt.Errorf("fmask: %w", err)
		}
	}

	uid := uint32(os.Getuid())
	if c.UID >= 0 {
		uid = uint32(c.UID)
	}
	gid := uint32(os.Getgid())
	if c.GID >= 0 {
		gid = uint32(c.GID)
	}

	return volume.Config{
		Name:          c.Name,
		ReadOnly:      c.ReadOnly,
		UID:           uid,
		GID:           gid,
		Dmask:         dmask,
		Fmask:         fmask,
		Noatime:       c.NoAtime,
		CapacityBytes: c.CapacityBytes,
		MaxFiles:      c.MaxFiles,
	}, nil
}

// OpenVolume creates both stores and opens the volume over them. m may be
// nil.
//
// On failure every store already created is closed.
func OpenVolume(ctx context.Context, cfg *Config, m *MetricsResult) (*volume.Volume, error) {
	if m == nil {
		m = &MetricsResult{}
	}

	volCfg, err := cfg.Volume.VolumeConfig()
	if err != nil {
		return nil, err
	}

	meta, err := CreateMetadataStore(ctx, &cfg.Metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to create metadata store: %w", err)
	}
	meta = metrics.InstrumentMetadataStore(meta, m.MetadataMetrics)

	data, err := CreateContentStore(ctx, &cfg.Content, m.S3Metrics)
	if err != nil {
		_ = meta.Close()
		return nil, fmt.Errorf("failed to create content store: %w", err)
	}

	vol, err := volume.Open(ctx, meta, data, volCfg)
	if err != nil {
		_ = data.Close()
		_ = meta.Close()
		return nil, fmt.Errorf("failed to open volume: %w", err)
	}

	logger.Debug("Volume %q backed by metadata=%s content=%s",
		volCfg.Name, cfg.Metadata.Type, cfg.Content.Type)
	return vol, nil
}
