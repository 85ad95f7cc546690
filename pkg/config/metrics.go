package config

import (
	"github.com/marmos91/dittofuse/pkg/metrics"
	promMetrics "github.com/marmos91/dittofuse/pkg/metrics/prometheus"
	contents3 "github.com/marmos91/dittofuse/pkg/store/content/s3"
)

// MetricsResult contains all metrics-related components created from configuration.
type MetricsResult struct {
	// Server is the HTTP server exposing Prometheus metrics (nil if disabled)
	Server *metrics.Server

	// FUSEMetrics is the collector for the FUSE adapter (never nil, uses noop if disabled)
	FUSEMetrics metrics.FUSEMetrics

	// S3Metrics is the collector for the S3 content store (nil if disabled)
	S3Metrics contents3.S3Metrics

	// MetadataMetrics times metadata store calls (nil if disabled)
	MetadataMetrics metrics.MetadataMetrics
}

// InitializeMetrics creates and initializes all metrics components based on configuration.
//
// If metrics are enabled in the configuration:
//   - Initializes the global Prometheus registry
//   - Creates the metrics HTTP server
//   - Creates Prometheus-backed metrics instances for all components
//
// If metrics are disabled:
//   - Returns nil server
//   - Returns no-op metrics implementations
func InitializeMetrics(cfg *Config) *MetricsResult {
	if !cfg.Metrics.Enabled {
		return &MetricsResult{
			FUSEMetrics: metrics.NewNoopFUSEMetrics(),
		}
	}

	metrics.InitRegistry()

	server := metrics.NewServer(metrics.ServerConfig{
		Port: cfg.Metrics.Port,
	})

	return &MetricsResult{
		Server:      server,
		FUSEMetrics: promMetrics.NewFUSEMetrics(),
		S3Metrics:   metrics.NewS3Metrics(),

		MetadataMetrics: metrics.NewMetadataMetrics(cfg.Metadata.Type),
	}
}
