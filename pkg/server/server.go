package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/marmos91/dittofuse/internal/logger"
	"github.com/marmos91/dittofuse/pkg/adapter"
	"github.com/marmos91/dittofuse/pkg/engine"
	"github.com/marmos91/dittofuse/pkg/metrics"
)

// DittoServer manages the lifecycle of the adapters exposing one volume
// engine, plus the optional metrics endpoint.
//
// Lifecycle:
//  1. Creation: New() with the engine
//  2. Registration: AddAdapter() for each mount
//  3. Startup: Serve() starts all adapters concurrently
//  4. Shutdown: Context cancellation or an adapter exiting stops the rest
//
// Thread safety:
// AddAdapter() may be called concurrently with other methods. Serve()
// should only be called once per server instance.
type DittoServer struct {
	engine engine.Engine

	// metricsServer is started alongside the adapters when set
	metricsServer *metrics.Server

	stopTimeout time.Duration

	mu       sync.RWMutex
	adapters []adapter.Adapter

	serveOnce sync.Once
	served    bool
}

// New creates a server for eng.
//
// Panics if eng is nil (indicates programmer error).
func New(eng engine.Engine) *DittoServer {
	if eng == nil {
		panic("engine cannot be nil")
	}

	return &DittoServer{
		engine:      eng,
		stopTimeout: 30 * time.Second,
		adapters:    make([]adapter.Adapter, 0, 1),
	}
}

// SetMetricsServer registers the Prometheus endpoint to run while serving.
func (s *DittoServer) SetMetricsServer(m *metrics.Server) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metricsServer = m
}

// SetStopTimeout bounds adapter shutdown.
func (s *DittoServer) SetStopTimeout(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d > 0 {
		s.stopTimeout = d
	}
}

// AddAdapter injects the engine into a and registers it.
//
// Returns an error if another adapter already uses the same mountpoint.
//
// Panics if a is nil or Serve() has already been called.
func (s *DittoServer) AddAdapter(a adapter.Adapter) error {
	if a == nil {
		panic("adapter cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.served {
		panic("cannot add adapter after Serve() has been called")
	}

	for _, existing := range s.adapters {
		if existing.Mountpoint() == a.Mountpoint() {
			return fmt.Errorf("mountpoint %s already used by %s adapter",
				a.Mountpoint(), existing.Protocol())
		}
	}

	a.SetEngine(s.engine)
	s.adapters = append(s.adapters, a)

	logger.Info("Registered %s adapter on %s", a.Protocol(), a.Mountpoint())
	return nil
}

// Serve starts every adapter and blocks until shutdown.
//
// Returns ctx.Err() after cancellation, nil when every mount was removed
// externally, or the first adapter failure.
func (s *DittoServer) Serve(ctx context.Context) error {
	var err error
	called := false

	s.serveOnce.Do(func() {
		called = true
		s.mu.Lock()
		s.served = true
		s.mu.Unlock()
		err = s.serve(ctx)
	})

	if !called {
		return errors.New("Serve() has already been called on this server instance")
	}
	return err
}

func (s *DittoServer) serve(ctx context.Context) error {
	s.mu.RLock()
	if len(s.adapters) == 0 {
		s.mu.RUnlock()
		return fmt.Errorf("no adapters registered; call AddAdapter() before Serve()")
	}
	adapters := make([]adapter.Adapter, len(s.adapters))
	copy(adapters, s.adapters)
	metricsServer := s.metricsServer
	s.mu.RUnlock()

	if metricsServer != nil {
		// Start blocks until mctx is done; a broken endpoint does not stop the mount.
		mctx, mcancel := context.WithCancel(ctx)
		go func() {
			if err := metricsServer.Start(mctx); err != nil {
				logger.Error("Metrics server: %v", err)
			}
		}()
		defer func() {
			mcancel()
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := metricsServer.Stop(stopCtx); err != nil {
				logger.Warn("Metrics server shutdown: %v", err)
			}
		}()
	}

	logger.Info("Starting DittoFUSE with %d adapter(s)", len(adapters))

	results := make(chan adapterResult, len(adapters))

	var wg sync.WaitGroup
	for _, adp := range adapters {
		wg.Add(1)
		go func(a adapter.Adapter) {
			defer wg.Done()
			err := a.Serve(ctx)
			if err != nil && errors.Is(err, context.Canceled) && ctx.Err() != nil {
				err = nil
			}
			results <- adapterResult{adapter: a, err: err}
		}(adp)
	}

	var shutdownErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received (reason: %v)", ctx.Err())
		shutdownErr = ctx.Err()

	case res := <-results:
		if res.err != nil {
			logger.Error("%s adapter on %s failed: %v - stopping remaining adapters",
				res.adapter.Protocol(), res.adapter.Mountpoint(), res.err)
			shutdownErr = fmt.Errorf("%s adapter error: %w", res.adapter.Protocol(), res.err)
		} else {
			logger.Info("%s adapter on %s stopped", res.adapter.Protocol(), res.adapter.Mountpoint())
		}
	}

	s.stopAllAdapters(adapters)

	logger.Debug("Waiting for all adapters to complete shutdown")
	wg.Wait()

	logger.Info("DittoFUSE stopped")
	return shutdownErr
}

type adapterResult struct {
	adapter adapter.Adapter
	err     error
}

// stopAllAdapters stops adapters in reverse registration order.
func (s *DittoServer) stopAllAdapters(adapters []adapter.Adapter) {
	s.mu.RLock()
	timeout := s.stopTimeout
	s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	for i := len(adapters) - 1; i >= 0; i-- {
		adp := adapters[i]
		if err := adp.Stop(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Error stopping %s adapter: %v", adp.Protocol(), err)
		}
	}
}

// Adapters returns the registered adapters.
func (s *DittoServer) Adapters() []adapter.Adapter {
	s.mu.RLock()
	defer s.mu.RUnlock()

	adapters := make([]adapter.Adapter, len(s.adapters))
	copy(adapters, s.adapters)
	return adapters
}
