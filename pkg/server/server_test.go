package server

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/marmos91/dittofuse/pkg/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEngine struct{ engine.Engine }

type fakeAdapter struct {
	mountpoint string
	serveErr   error

	mu      sync.Mutex
	eng     engine.Engine
	stopped bool
	stop    chan struct{}
}

func newFakeAdapter(mountpoint string) *fakeAdapter {
	return &fakeAdapter{mountpoint: mountpoint, stop: make(chan struct{})}
}

func (a *fakeAdapter) Serve(ctx context.Context) error {
	if a.serveErr != nil {
		return a.serveErr
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-a.stop:
		return nil
	}
}

func (a *fakeAdapter) SetEngine(eng engine.Engine) { a.eng = eng }

func (a *fakeAdapter) Stop(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.stopped {
		a.stopped = true
		close(a.stop)
	}
	return nil
}

func (a *fakeAdapter) Protocol() string   { return "FAKE" }
func (a *fakeAdapter) Mountpoint() string { return a.mountpoint }

func (a *fakeAdapter) wasStopped() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stopped
}

func TestAddAdapter_InjectsEngine(t *testing.T) {
	eng := stubEngine{}
	srv := New(eng)
	a := newFakeAdapter("/mnt/a")

	require.NoError(t, srv.AddAdapter(a))
	assert.Equal(t, eng, a.eng)
	assert.Len(t, srv.Adapters(), 1)
}

func TestAddAdapter_DuplicateMountpoint(t *testing.T) {
	srv := New(stubEngine{})
	require.NoError(t, srv.AddAdapter(newFakeAdapter("/mnt/a")))

	err := srv.AddAdapter(newFakeAdapter("/mnt/a"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already used")
}

func TestServe_NoAdapters(t *testing.T) {
	err := New(stubEngine{}).Serve(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no adapters")
}

func TestServe_ContextCancel(t *testing.T) {
	srv := New(stubEngine{})
	a := newFakeAdapter("/mnt/a")
	require.NoError(t, srv.AddAdapter(a))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancellation")
	}
	assert.True(t, a.wasStopped())

	err := srv.Serve(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already been called")
}

func TestServe_AdapterFailureStopsOthers(t *testing.T) {
	srv := New(stubEngine{})
	healthy := newFakeAdapter("/mnt/a")
	broken := newFakeAdapter("/mnt/b")
	broken.serveErr = errors.New("mount refused")
	require.NoError(t, srv.AddAdapter(healthy))
	require.NoError(t, srv.AddAdapter(broken))

	err := srv.Serve(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mount refused")
	assert.True(t, healthy.wasStopped())
}

func TestServe_ExternalUnmount(t *testing.T) {
	srv := New(stubEngine{})
	a := newFakeAdapter("/mnt/a")
	require.NoError(t, srv.AddAdapter(a))

	go func() { _ = a.Stop(context.Background()) }()
	assert.NoError(t, srv.Serve(context.Background()))
}

func TestNew_NilEnginePanics(t *testing.T) {
	assert.Panics(t, func() { New(nil) })
}
