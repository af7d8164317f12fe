package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/strata/pkg/metrics"
	"github.com/marmos91/strata/pkg/storage"
)

func init() {
	metrics.RegisterBadgerMetricsConstructor(func() storage.Metrics { return newBadgerMetrics() })
}

// badgerMetrics is the Prometheus implementation of storage.Metrics for the
// badger driver. Badger here is a direct content-addressed KV object store
// rather than a block/index cache, so it shares the operation/duration/bytes
// shape used for s3 rather than a cache hit-ratio shape.
type badgerMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	bytesTransferred  *prometheus.CounterVec
}

func newBadgerMetrics() *badgerMetrics {
	reg := metrics.GetRegistry()

	return &badgerMetrics{
		operationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "strata_badger_operations_total",
				Help: "Total number of badger storage operations by operation and status",
			},
			[]string{"operation", "status"},
		),
		operationDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "strata_badger_operation_duration_milliseconds",
				Help: "Duration of badger storage operations in milliseconds",
				Buckets: []float64{
					1,    // 1ms
					5,    // 5ms
					10,   // 10ms
					50,   // 50ms
					100,  // 100ms
					500,  // 500ms
					1000, // 1s
				},
			},
			[]string{"operation"},
		),
		bytesTransferred: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "strata_badger_bytes_transferred_total",
				Help: "Total bytes transferred via badger storage operations",
			},
			[]string{"operation", "direction"},
		),
	}
}

func (m *badgerMetrics) ObserveOperation(operation string, duration time.Duration, err error) {
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

func (m *badgerMetrics) RecordBytes(operation string, bytes int64) {
	if m == nil || bytes <= 0 {
		return
	}

	direction := "write"
	if operation == "Get" {
		direction = "read"
	}

	m.bytesTransferred.WithLabelValues(operation, direction).Add(float64(bytes))
}

var _ storage.Metrics = (*badgerMetrics)(nil)
