//go:build e2e

package e2e

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/marmos91/dittofuse/internal/logger"
	"github.com/marmos91/dittofuse/pkg/adapter/fuse"
	"github.com/marmos91/dittofuse/pkg/config"
	"github.com/marmos91/dittofuse/pkg/server"
	"golang.org/x/sys/unix"
)

// fuseSuperMagic is statfs f_type for every FUSE mount.
const fuseSuperMagic = 0x65735546

// TestContext provides a complete testing environment with:
// - An opened volume over the configured stores
// - The volume mounted through FUSE
// - Cleanup mechanisms
type TestContext struct {
	T         *testing.T
	Config    *TestConfig
	MountPath string
	StateDir  string

	adapter *fuse.FUSEAdapter
	cancel  context.CancelFunc
	done    chan error
}

// NewTestContext mounts a fresh volume for config.
func NewTestContext(t *testing.T, cfg *TestConfig) *TestContext {
	t.Helper()

	if _, err := os.Stat("/dev/fuse"); err != nil {
		t.Skip("FUSE is not available on this host")
	}

	// Functional tests, not debugging sessions.
	logger.SetLevel("ERROR")

	tc := &TestContext{
		T:         t,
		Config:    cfg,
		MountPath: t.TempDir(),
		StateDir:  t.TempDir(),
	}
	tc.Mount()
	t.Cleanup(tc.Unmount)
	return tc
}

// Mount opens the volume and mounts it on MountPath.
func (tc *TestContext) Mount() {
	tc.T.Helper()

	appCfg := tc.Config.AppConfig(tc.StateDir)
	ctx, cancel := context.WithCancel(context.Background())

	vol, err := config.OpenVolume(ctx, appCfg, nil)
	if err != nil {
		cancel()
		tc.T.Fatalf("Failed to open volume: %v", err)
	}

	tc.adapter = fuse.New(appCfg.FUSEConfig(tc.MountPath), nil)
	srv := server.New(vol)
	if err := srv.AddAdapter(tc.adapter); err != nil {
		cancel()
		tc.T.Fatalf("Failed to add FUSE adapter: %v", err)
	}

	tc.cancel = cancel
	tc.done = make(chan error, 1)
	go func() {
		tc.done <- srv.Serve(ctx)
	}()

	tc.waitForMount()
}

// Unmount detaches the mount and waits for the server to exit. It is a
// no-op when nothing is mounted.
func (tc *TestContext) Unmount() {
	if tc.cancel == nil {
		return
	}
	tc.cancel()
	tc.cancel = nil

	select {
	case err := <-tc.done:
		if err != nil && !errors.Is(err, context.Canceled) {
			tc.T.Errorf("Server error: %v", err)
		}
	case <-time.After(30 * time.Second):
		tc.T.Error("Timeout waiting for unmount")
	}
}

// OpenHandles reports the handles the kernel holds on the mount.
func (tc *TestContext) OpenHandles() int64 {
	return tc.adapter.OpenHandles()
}

// Path returns the absolute path of a file inside the mount.
func (tc *TestContext) Path(rel string) string {
	return filepath.Join(tc.MountPath, rel)
}

func (tc *TestContext) waitForMount() {
	tc.T.Helper()

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case err := <-tc.done:
			tc.T.Fatalf("Server exited before mounting: %v", err)
		default:
		}

		var st unix.Statfs_t
		if err := unix.Statfs(tc.MountPath, &st); err == nil && st.Type == fuseSuperMagic {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	tc.T.Fatal("Timeout waiting for mount")
}

// runOnAllConfigs runs a test on every store configuration.
func runOnAllConfigs(t *testing.T, testFunc func(t *testing.T, tc *TestContext)) {
	t.Helper()

	for _, cfg := range AllConfigurations() {
		t.Run(cfg.Name, func(t *testing.T) {
			testFunc(t, NewTestContext(t, cfg))
		})
	}
}
