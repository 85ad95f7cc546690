// Package fuse mounts a volume engine through the kernel FUSE driver.
package fuse

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	gofuse "github.com/hanwen/go-fuse/v2/fuse"
	"github.com/marmos91/dittofuse/internal/logger"
	fuseproto "github.com/marmos91/dittofuse/internal/protocol/fuse"
	"github.com/marmos91/dittofuse/internal/protocol/fuse/handlers"
	"github.com/marmos91/dittofuse/pkg/engine"
	"github.com/marmos91/dittofuse/pkg/metrics"
)

// FUSEConfig holds the mount configuration.
type FUSEConfig struct {
	// Mountpoint is the directory the volume is mounted on.
	Mountpoint string

	// FsName is reported as the mount source (df, /proc/mounts).
	FsName string

	// ReadOnly forces the ro mount option.
	ReadOnly bool

	AllowOther  bool
	AllowRoot   bool
	AutoUnmount bool
	NoExec      bool
	NoAtime     bool
	DirSync     bool
	Sync        bool

	// MaxWrite is the largest write request the kernel sends.
	MaxWrite int

	// DebugLevel > 0 traces requests in the handlers; > 1 also dumps
	// request headers and enables go-fuse's own tracing.
	DebugLevel int

	// ShutdownTimeout bounds Stop when its context carries no deadline.
	ShutdownTimeout time.Duration
}

// FUSEAdapter implements adapter.Adapter for a kernel FUSE mount.
//
// Shutdown flow:
//  1. Context cancelled or Stop() called
//  2. The mount is detached (fusermount -u)
//  3. go-fuse's serve loop exits and calls OnUnmount, which flushes the
//     volume and closes the stores
//  4. Serve returns
type FUSEAdapter struct {
	config  FUSEConfig
	eng     engine.Engine
	metrics metrics.FUSEMetrics

	mu      sync.Mutex
	server  *gofuse.Server
	handler *handlers.Handler

	// done is closed when the serve loop has exited.
	done     chan struct{}
	stopOnce sync.Once
}

// New creates a FUSE adapter. A nil metrics selects the no-op
// implementation.
func New(config FUSEConfig, m metrics.FUSEMetrics) *FUSEAdapter {
	if m == nil {
		m = metrics.NewNoopFUSEMetrics()
	}
	if config.ShutdownTimeout == 0 {
		config.ShutdownTimeout = 30 * time.Second
	}
	return &FUSEAdapter{
		config:  config,
		metrics: m,
		done:    make(chan struct{}),
	}
}

// SetEngine injects the volume to mount.
func (a *FUSEAdapter) SetEngine(eng engine.Engine) {
	a.eng = eng
}

func (a *FUSEAdapter) Protocol() string {
	return "FUSE"
}

func (a *FUSEAdapter) Mountpoint() string {
	return a.config.Mountpoint
}

// MountOptions builds the go-fuse mount options.
//
// default_permissions is always set: the kernel checks permissions from
// the reported attributes and never sends ACCESS.
func (a *FUSEAdapter) MountOptions() *gofuse.MountOptions {
	cfg := a.config

	opts := []string{"default_permissions", "nodev", "nosuid"}
	if cfg.ReadOnly {
		opts = append(opts, "ro")
	}
	if cfg.AllowRoot {
		opts = append(opts, "allow_root")
	}
	if cfg.AutoUnmount {
		opts = append(opts, "auto_unmount")
	}
	if cfg.NoExec {
		opts = append(opts, "noexec")
	} else {
		opts = append(opts, "exec")
	}
	if cfg.NoAtime {
		opts = append(opts, "noatime")
	}
	if cfg.DirSync {
		opts = append(opts, "dirsync")
	}
	if cfg.Sync {
		opts = append(opts, "sync")
	}

	return &gofuse.MountOptions{
		AllowOther:         cfg.AllowOther,
		Options:            opts,
		MaxWrite:           cfg.MaxWrite,
		FsName:             cfg.FsName,
		Name:               fuseproto.Name,
		Debug:              cfg.DebugLevel > 1,
		DisableReadDirPlus: true,
		Logger:             slog.NewLogLogger(logger.With("component", "go-fuse").Handler(), slog.LevelDebug),
	}
}

// Serve mounts the volume and blocks until it is unmounted.
func (a *FUSEAdapter) Serve(ctx context.Context) error {
	if a.eng == nil {
		return errors.New("fuse adapter: no engine set; call SetEngine() before Serve()")
	}
	if a.config.Mountpoint == "" {
		return errors.New("fuse adapter: mountpoint is required")
	}

	h := handlers.New(a.eng, a.metrics)
	h.SetDebugLevel(a.config.DebugLevel)

	server, err := gofuse.NewServer(fuseproto.NewRawFS(h), a.config.Mountpoint, a.MountOptions())
	if err != nil {
		// No session, so OnUnmount will never close the volume.
		if uerr := a.eng.Unmount(); uerr != nil {
			logger.Error("Unmount of volume after failed mount: %v", uerr)
		}
		return fmt.Errorf("failed to mount %s: %w", a.config.Mountpoint, err)
	}

	a.mu.Lock()
	a.server = server
	a.handler = h
	a.mu.Unlock()

	go func() {
		defer close(a.done)
		server.Serve()
	}()

	if err := server.WaitMount(); err != nil {
		_ = server.Unmount()
		<-a.done
		return fmt.Errorf("mount of %s did not complete: %w", a.config.Mountpoint, err)
	}
	logger.Info("Volume %q mounted on %s (read_only=%v)", a.config.FsName, a.config.Mountpoint, a.config.ReadOnly)

	select {
	case <-ctx.Done():
		stopCtx, cancel := context.WithTimeout(context.Background(), a.config.ShutdownTimeout)
		defer cancel()
		if err := a.Stop(stopCtx); err != nil {
			logger.Error("Unmount of %s failed: %v", a.config.Mountpoint, err)
		}
		return ctx.Err()
	case <-a.done:
		logger.Info("%s was unmounted externally", a.config.Mountpoint)
		return nil
	}
}

// Stop unmounts the volume and waits for the serve loop to finish.
func (a *FUSEAdapter) Stop(ctx context.Context) error {
	a.mu.Lock()
	server := a.server
	a.mu.Unlock()
	if server == nil {
		return nil
	}

	var err error
	a.stopOnce.Do(func() {
		logger.Debug("Unmounting %s", a.config.Mountpoint)
		err = unmount(ctx, server)
	})
	if err != nil {
		return err
	}

	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("unmount of %s: %w", a.config.Mountpoint, ctx.Err())
	}
}

// unmount retries while the mount is busy.
func unmount(ctx context.Context, server *gofuse.Server) error {
	const retryInterval = 250 * time.Millisecond
	for {
		err := server.Unmount()
		if err == nil {
			return nil
		}
		logger.Warn("Unmount failed, retrying: %v", err)

		select {
		case <-ctx.Done():
			return fmt.Errorf("giving up on unmount: %w", err)
		case <-time.After(retryInterval):
		}
	}
}

// OpenHandles reports the handles currently open on the mount, or 0
// before Serve.
func (a *FUSEAdapter) OpenHandles() int64 {
	a.mu.Lock()
	h := a.handler
	a.mu.Unlock()
	if h == nil {
		return 0
	}
	return h.OpenHandles()
}
