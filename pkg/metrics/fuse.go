package metrics

import (
	"time"
)

// FUSEMetrics provides observability for FUSE adapter operations.
//
// Implementations can collect metrics about kernel requests, their outcome,
// throughput and the open-handle count. This interface is optional - if not
// provided to the FUSE adapter, a no-op implementation is used with zero
// overhead.
//
// Example usage:
//
//	// With metrics enabled
//	metrics.InitRegistry()
//	m := prometheus.NewFUSEMetrics()
//	adapter := fuse.New(config, vol, m)
//
//	// Without metrics (no-op)
//	adapter := fuse.New(config, vol, nil)
type FUSEMetrics interface {
	// RecordRequest records a completed FUSE request.
	//
	// Parameters:
	//   - operation: FUSE operation name (e.g., "LOOKUP", "READ", "IOCTL")
	//   - duration: Time spent in the handler, lock wait included
	//   - errno: 0 on success, the returned errno otherwise
	RecordRequest(operation string, duration time.Duration, errno int32)

	// RecordBytesTransferred records bytes read or written.
	//
	// Parameters:
	//   - direction: "read" or "write"
	//   - bytes: Number of bytes transferred
	RecordBytesTransferred(direction string, bytes int64)

	// SetOpenHandles updates the number of open file and directory handles.
	SetOpenHandles(count int64)

	// RecordPrune records a completed prune request.
	RecordPrune(pruned, remaining uint64)
}

// NewNoopFUSEMetrics returns a FUSEMetrics that discards everything.
func NewNoopFUSEMetrics() FUSEMetrics {
	return noopFUSEMetrics{}
}

// noopFUSEMetrics is a no-op implementation of FUSEMetrics with zero overhead.
type noopFUSEMetrics struct{}

func (noopFUSEMetrics) RecordRequest(operation string, duration time.Duration, errno int32) {}
func (noopFUSEMetrics) RecordBytesTransferred(direction string, bytes int64)            {}
func (noopFUSEMetrics) SetOpenHandles(count int64)                                       {}
func (noopFUSEMetrics) RecordPrune(pruned, remaining uint64)                             {}
