package s3

import (
	"time"
)

// S3Metrics provides observability for S3 content store operations.
//
// Implementations live in pkg/metrics so this package does not depend on
// Prometheus. A nil S3Metrics in the config selects the no-op version.
type S3Metrics interface {
	// ObserveOperation records an S3 API call with its duration and outcome
	ObserveOperation(operation string, duration time.Duration, err error)

	// RecordBytes records bytes transferred ("read" or "write")
	RecordBytes(operation string, bytes int64)

	// RecordFlushOperation records one buffer upload.
	// reason is "flush" (per object) or "sync" (whole store).
	RecordFlushOperation(reason string, bytes int64, duration time.Duration, err error)
}

type noopMetrics struct{}

func (noopMetrics) ObserveOperation(operation string, duration time.Duration, err error) {}
func (noopMetrics) RecordBytes(operation string, bytes int64)                            {}
func (noopMetrics) RecordFlushOperation(reason string, bytes int64, duration time.Duration, err error) {
}
