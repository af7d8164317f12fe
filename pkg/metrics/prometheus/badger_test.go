package prometheus

import (
	"errors"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"

	"github.com/marmos91/strata/pkg/metrics"
)

func TestBadgerMetricsObserveOperationIncrementsByStatus(t *testing.T) {
	metrics.InitRegistry()
	m := newBadgerMetrics()

	m.ObserveOperation("Set", time.Millisecond, nil)
	m.ObserveOperation("Get", time.Millisecond, errors.New("not found"))

	metric := &dto.Metric{}
	if err := m.operationsTotal.WithLabelValues("Set", "success").Write(metric); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	if got := metric.GetCounter().GetValue(); got != 1 {
		t.Fatalf("Set success count = %v, want 1", got)
	}

	if err := m.operationsTotal.WithLabelValues("Get", "error").Write(metric); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	if got := metric.GetCounter().GetValue(); got != 1 {
		t.Fatalf("Get error count = %v, want 1", got)
	}
}

func TestBadgerMetricsRecordBytesDirectionByOperation(t *testing.T) {
	metrics.InitRegistry()
	m := newBadgerMetrics()

	m.RecordBytes("Set", 64)
	m.RecordBytes("Get", 32)

	metric := &dto.Metric{}
	if err := m.bytesTransferred.WithLabelValues("Set", "write").Write(metric); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	if got := metric.GetCounter().GetValue(); got != 64 {
		t.Fatalf("write bytes = %v, want 64", got)
	}

	if err := m.bytesTransferred.WithLabelValues("Get", "read").Write(metric); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	if got := metric.GetCounter().GetValue(); got != 32 {
		t.Fatalf("read bytes = %v, want 32", got)
	}
}

func TestBadgerMetricsNilReceiverIsNoOp(t *testing.T) {
	var m *badgerMetrics
	m.ObserveOperation("Set", time.Millisecond, nil)
	m.RecordBytes("Set", 10)
}

func TestNewBadgerMetricsRegisteredThroughIndirection(t *testing.T) {
	metrics.InitRegistry()

	got := metrics.NewBadgerMetrics()
	if got == nil {
		t.Fatal("expected non-nil storage.Metrics once enabled and registered via init")
	}
	if _, ok := got.(*badgerMetrics); !ok {
		t.Fatalf("expected *badgerMetrics, got %T", got)
	}
}
