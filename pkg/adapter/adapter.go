package adapter

import (
	"context"

	"github.com/marmos91/dittofuse/pkg/engine"
)

// Adapter exposes a volume engine through a kernel or network protocol and
// is managed by the server.
//
// Lifecycle:
//  1. Creation: Adapter is created with protocol-specific configuration
//  2. Engine injection: SetEngine() provides the volume to serve
//  3. Startup: Serve() mounts and blocks until shutdown
//  4. Shutdown: Stop() unmounts, bounded by its context
//
// Thread safety:
// SetEngine() is called once before Serve(), but Stop() may be called
// concurrently with Serve().
type Adapter interface {
	// Serve starts the adapter and blocks until the context is cancelled,
	// the mount goes away, or an unrecoverable error occurs.
	//
	// Returns nil when the mount was removed externally, ctx.Err() after
	// cancellation, or the startup error.
	Serve(ctx context.Context) error

	// SetEngine injects the engine to serve. Called exactly once before
	// Serve().
	SetEngine(eng engine.Engine)

	// Stop initiates graceful shutdown. It is idempotent and safe to call
	// concurrently with Serve().
	Stop(ctx context.Context) error

	// Protocol returns the human-readable protocol name for logging and
	// metrics.
	Protocol() string

	// Mountpoint returns where the adapter exposes the volume.
	Mountpoint() string
}
