package metrics

import (
	"time"

	"github.com/marmos91/dittofuse/pkg/store/content/s3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// s3Metrics implements s3.S3Metrics.
type s3Metrics struct {
	requests    *prometheus.CounterVec   // operation, status
	latency     *prometheus.HistogramVec // operation
	bytes       *prometheus.CounterVec   // direction
	uploads     *prometheus.CounterVec   // reason, status
	uploadSize  *prometheus.HistogramVec // reason
	uploadDelay prometheus.Histogram
}

// NewS3Metrics returns the S3 content store metrics, or nil while metrics
// are disabled.
func NewS3Metrics() s3.S3Metrics {
	if !IsEnabled() {
		return nil
	}
	factory := promauto.With(GetRegistry())

	return &s3Metrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dittofuse_s3_operations_total",
			Help: "S3 API calls by operation and status.",
		}, []string{"operation", "status"}),

		// 10ms to ~41s
		latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dittofuse_s3_operation_duration_seconds",
			Help:    "S3 API call latency.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 13),
		}, []string{"operation"}),

		bytes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dittofuse_s3_bytes_transferred_total",
			Help: "Object bytes moved to and from S3.",
		}, []string{"direction"}),

		uploads: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dittofuse_s3_flush_operations_total",
			Help: "Write-back uploads of buffered objects by reason and status.",
		}, []string{"reason", "status"}),

		// 4KiB to 1GiB
		uploadSize: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dittofuse_s3_flush_bytes",
			Help:    "Size of uploaded object buffers.",
			Buckets: prometheus.ExponentialBuckets(4096, 4, 10),
		}, []string{"reason"}),

		uploadDelay: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "dittofuse_s3_flush_duration_seconds",
			Help:    "Time to upload one buffered object.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 13),
		}),
	}
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func (m *s3Metrics) ObserveOperation(operation string, duration time.Duration, err error) {
	m.requests.WithLabelValues(operation, outcome(err)).Inc()
	m.latency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordBytes counts transferred bytes; operation is "read" or "write".
func (m *s3Metrics) RecordBytes(operation string, bytes int64) {
	m.bytes.WithLabelValues(operation).Add(float64(bytes))
}

func (m *s3Metrics) RecordFlushOperation(reason string, bytes int64, duration time.Duration, err error) {
	m.uploads.WithLabelValues(reason, outcome(err)).Inc()
	m.uploadSize.WithLabelValues(reason).Observe(float64(bytes))
	m.uploadDelay.Observe(duration.Seconds())
}
