package config

import (
	"fmt"

	"github.com/marmos91/dittofuse/pkg/adapter"
	"github.com/marmos91/dittofuse/pkg/adapter/fuse"
	"github.com/marmos91/dittofuse/pkg/metrics"
)

// CreateAdapters creates the protocol adapters for a mount on mountpoint.
//
// fuseMetrics may be nil (no metrics).
func CreateAdapters(cfg *Config, mountpoint string, fuseMetrics metrics.FUSEMetrics) ([]adapter.Adapter, error) {
	if mountpoint == "" {
		return nil, fmt.Errorf("no mountpoint given")
	}

	fuseAdapter := fuse.New(cfg.FUSEConfig(mountpoint), fuseMetrics)
	return []adapter.Adapter{fuseAdapter}, nil
}

// FUSEConfig derives the adapter configuration for mountpoint.
func (c *Config) FUSEConfig(mountpoint string) fuse.FUSEConfig {
	return fuse.FUSEConfig{
		Mountpoint:      mountpoint,
		FsName:          c.Volume.Name,
		ReadOnly:        c.Volume.ReadOnly,
		AllowOther:      c.Mount.AllowOther,
		AllowRoot:       c.Mount.AllowRoot,
		AutoUnmount:     c.Mount.AutoUnmount,
		NoExec:          c.Mount.NoExec,
		NoAtime:         c.Volume.NoAtime,
		DirSync:         c.Mount.DirSync,
		Sync:            c.Mount.Sync,
		MaxWrite:        c.Mount.MaxWrite,
		DebugLevel:      c.Mount.Debug,
		ShutdownTimeout: c.Server.ShutdownTimeout,
	}
}
