// Package metrics holds the process-wide Prometheus registry state and the
// indirection that lets pkg/storage drivers obtain a storage.Metrics without
// importing pkg/metrics/prometheus directly (which would import this package
// back, forming a cycle).
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	mu       sync.RWMutex
	registry *prometheus.Registry
)

// InitRegistry enables metrics collection and returns the registry to expose
// over HTTP (e.g. via promhttp.HandlerFor). Calling it more than once
// replaces the registry; existing collectors built against the old one stop
// being scraped.
func InitRegistry() *prometheus.Registry {
	mu.Lock()
	defer mu.Unlock()
	registry = prometheus.NewRegistry()
	return registry
}

// IsEnabled reports whether InitRegistry has been called. Constructors
// across pkg/metrics use this to return nil (no-op) instrumentation when
// metrics were never enabled, so callers pay zero overhead by default.
func IsEnabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return registry != nil
}

// GetRegistry returns the registerer collectors should register into. Falls
// back to prometheus.DefaultRegisterer if InitRegistry was never called, so
// a constructor that forgets to check IsEnabled first still registers
// somewhere instead of panicking on a nil receiver.
func GetRegistry() prometheus.Registerer {
	mu.RLock()
	defer mu.RUnlock()
	if registry == nil {
		return prometheus.DefaultRegisterer
	}
	return registry
}
