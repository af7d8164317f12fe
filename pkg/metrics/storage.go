package metrics

import "github.com/marmos91/strata/pkg/storage"

// NewS3Metrics returns the Prometheus-backed instrumentation for the s3
// storage driver, or nil if metrics are not enabled. A nil storage.Metrics
// is itself a valid, zero-overhead value: pass it straight to s3.Config.
func NewS3Metrics() storage.Metrics {
	if !IsEnabled() || newPrometheusS3Metrics == nil {
		return nil
	}
	return newPrometheusS3Metrics()
}

// newPrometheusS3Metrics is set by pkg/metrics/prometheus/s3.go's init,
// breaking the import cycle that would result from this package importing
// the prometheus-backed implementation directly.
var newPrometheusS3Metrics func() storage.Metrics

// RegisterS3MetricsConstructor registers the constructor NewS3Metrics
// delegates to. Called from pkg/metrics/prometheus's init.
func RegisterS3MetricsConstructor(constructor func() storage.Metrics) {
	newPrometheusS3Metrics = constructor
}

// NewBadgerMetrics returns the Prometheus-backed instrumentation for the
// badger storage driver, or nil if metrics are not enabled.
func NewBadgerMetrics() storage.Metrics {
	if !IsEnabled() || newPrometheusBadgerMetrics == nil {
		return nil
	}
	return newPrometheusBadgerMetrics()
}

var newPrometheusBadgerMetrics func() storage.Metrics

// RegisterBadgerMetricsConstructor registers the constructor NewBadgerMetrics
// delegates to. Called from pkg/metrics/prometheus's init.
func RegisterBadgerMetricsConstructor(constructor func() storage.Metrics) {
	newPrometheusBadgerMetrics = constructor
}
