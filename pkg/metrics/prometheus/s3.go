// Package prometheus provides the Prometheus-backed storage.Metrics
// implementations for the instrumented storage drivers (s3, badger).
// Blank-import this package (e.g. in cmd/strata) to wire it in:
//
//	import _ "github.com/marmos91/strata/pkg/metrics/prometheus"
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/strata/pkg/metrics"
	"github.com/marmos91/strata/pkg/storage"
)

func init() {
	metrics.RegisterS3MetricsConstructor(func() storage.Metrics { return newS3Metrics() })
}

// s3Metrics is the Prometheus implementation of storage.Metrics for the s3
// driver.
type s3Metrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	bytesTransferred  *prometheus.CounterVec
}

func newS3Metrics() *s3Metrics {
	reg := metrics.GetRegistry()

	return &s3Metrics{
		operationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "strata_s3_operations_total",
				Help: "Total number of S3 storage operations by operation and status",
			},
			[]string{"operation", "status"},
		),
		operationDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "strata_s3_operation_duration_milliseconds",
				Help: "Duration of S3 storage operations in milliseconds",
				Buckets: []float64{
					10,    // 10ms - small object operations
					50,    // 50ms
					100,   // 100ms
					500,   // 500ms
					1000,  // 1s - medium objects
					5000,  // 5s - large objects
					30000, // 30s - very large streamed objects
				},
			},
			[]string{"operation"},
		),
		bytesTransferred: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "strata_s3_bytes_transferred_total",
				Help: "Total bytes transferred via S3 storage operations",
			},
			[]string{"operation", "direction"},
		),
	}
}

func (m *s3Metrics) ObserveOperation(operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}

	status := "success"
	if err != nil {
		status = "error"
	}

	m.operationsTotal.WithLabelValues(operation, status).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds() * 1000)
}

func (m *s3Metrics) RecordBytes(operation string, bytes int64) {
	if m == nil || bytes <= 0 {
		return
	}

	direction := "write"
	if operation == "GetObject" {
		direction = "read"
	}

	m.bytesTransferred.WithLabelValues(operation, direction).Add(float64(bytes))
}

var _ storage.Metrics = (*s3Metrics)(nil)
