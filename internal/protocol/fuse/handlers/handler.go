// Package handlers implements the FUSE request handlers of a mounted volume.
//
// Every handler body runs under one global lock, so the engine sees a single
// logical thread. Handlers translate engine results with the convert
// package and return exactly one status per request.
//
// Handles: the file handle returned by open, opendir and create is the node
// id itself. Each of those calls takes an engine reference that the matching
// release or releasedir drops, and counts the handle in totalOpen.
//
// Invariant violations (reference underflow, file handle mismatch,
// unmount with open handles) are programming errors. They are logged and
// then panic; go-fuse does not recover handler panics, so the daemon exits.
package handlers

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/marmos91/dittofuse/internal/logger"
	"github.com/marmos91/dittofuse/internal/protocol/fuse/convert"
	"github.com/marmos91/dittofuse/pkg/engine"
	"github.com/marmos91/dittofuse/pkg/metrics"
)

// ttl is the kernel cache validity for entries and attributes.
const ttl = time.Second

// Handler dispatches FUSE requests to an engine.
type Handler struct {
	mu sync.Mutex

	eng     engine.Engine
	metrics metrics.FUSEMetrics

	// totalOpen counts handles returned by open, opendir and create that
	// have not been released yet.
	totalOpen int64

	// debug > 0 logs every request; debug > 1 also logs request headers.
	// Read by trace before mu is taken.
	debug atomic.Int32
}

// New creates a Handler. A nil metrics selects the no-op implementation.
func New(eng engine.Engine, m metrics.FUSEMetrics) *Handler {
	if m == nil {
		m = metrics.NewNoopFUSEMetrics()
	}
	return &Handler{eng: eng, metrics: m}
}

// SetDebugLevel sets request tracing verbosity.
func (h *Handler) SetDebugLevel(level int) {
	h.debug.Store(int32(level))
}

// OpenHandles returns the number of outstanding handles.
func (h *Handler) OpenHandles() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.totalOpen
}

// Init marks the volume dirty for the lifetime of the mount. A failure is
// not fatal: the volume is still usable, it just won't be flagged as
// uncleanly unmounted after a crash.
func (h *Handler) Init() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.eng.SoilSuperBlock(); err != nil {
		logger.Warn("INIT: failed to mark volume dirty: %v", err)
	}
	logger.Debug("INIT: volume ready (read_only=%v)", h.eng.IsReadonly())
}

// Destroy unmounts the engine. Every handle must have been released.
func (h *Handler) Destroy() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.totalOpen != 0 {
		fatalf("DESTROY: unmount with %d open handle(s)", h.totalOpen)
	}
	if err := h.eng.Unmount(); err != nil {
		logger.Error("DESTROY: unmount failed: %v", err)
		return
	}
	logger.Debug("DESTROY: volume unmounted")
}

// ============================================================================
// Helpers
// ============================================================================

// trace logs the request and returns the completion hook that records its
// outcome. Use as: defer h.trace("OP", header)(&status)
func (h *Handler) trace(op string, header *fuse.InHeader) func(*fuse.Status) {
	start := time.Now()
	switch level := h.debug.Load(); {
	case level > 1:
		logger.Debug("%s: %+v", op, *header)
	case level > 0 || logger.IsDebug():
		logger.Debug("%s: nid=%d", op, header.NodeId)
	}

	return func(status *fuse.Status) {
		h.metrics.RecordRequest(op, time.Since(start), int32(*status))
		if !status.Ok() {
			logger.Debug("%s: nid=%d status=%v", op, header.NodeId, *status)
		}
	}
}

// fail maps err and reports it as the request status.
func fail(op string, err error) fuse.Status {
	return convert.MapEngineErrorToStatus(err, op)
}

// fatalf logs an invariant violation and panics.
func fatalf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	logger.Error("%s", msg)
	panic(msg)
}

// checkFh asserts that the kernel passed back the handle we gave it.
func checkFh(op string, nid, fh uint64) {
	if fh != nid {
		fatalf("%s: file handle %d does not match node %d", op, fh, nid)
	}
}

func validName(op, name string) bool {
	if !utf8.ValidString(name) {
		logger.Warn("%s: rejecting name that is not valid UTF-8: %q", op, name)
		return false
	}
	return true
}

func (h *Handler) opened() {
	h.totalOpen++
	h.metrics.SetOpenHandles(h.totalOpen)
}

func (h *Handler) closed(op string) {
	if h.totalOpen <= 0 {
		fatalf("%s: open handle count underflow (%d)", op, h.totalOpen)
	}
	h.totalOpen--
	h.metrics.SetOpenHandles(h.totalOpen)
}

// stat fetches and translates the attributes of nid.
func (h *Handler) stat(nid uint64, out *fuse.Attr) (engine.Stat, error) {
	st, err := h.eng.Stat(nid)
	if err != nil {
		return st, err
	}
	convert.FillAttr(st, out)
	return st, nil
}

func fillEntry(nid uint64, out *fuse.EntryOut) {
	out.NodeId = nid
	out.Generation = 0
	out.SetEntryTimeout(ttl)
	out.SetAttrTimeout(ttl)
}

// syncAll runs the three flush tiers in order and stops at the first
// failure.
func (h *Handler) syncAll() error {
	if err := h.eng.FlushNodes(); err != nil {
		return err
	}
	if err := h.eng.Flush(); err != nil {
		return err
	}
	return h.eng.Fsync()
}
