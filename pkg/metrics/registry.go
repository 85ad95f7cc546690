// Package metrics collects Prometheus metrics for a mounted volume.
//
// Collection is off until InitRegistry is called. Before that every
// constructor returns nil (or a no-op), and the FUSE handlers, the
// metadata store and the S3 content store run uninstrumented.
//
//	metrics.InitRegistry()
//	fuseMetrics := prometheus.NewFUSEMetrics()
//	meta = metrics.InstrumentMetadataStore(meta, metrics.NewMetadataMetrics("badger"))
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	registry     *prometheus.Registry
	registryOnce sync.Once
)

// InitRegistry creates the process-wide registry with the Go runtime and
// process collectors. Later calls are no-ops.
func InitRegistry() {
	registryOnce.Do(func() {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		registry = reg
	})
}

// GetRegistry returns the registry, or nil while metrics are disabled.
func GetRegistry() *prometheus.Registry {
	return registry
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	return registry != nil
}
