package badger

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/marmos91/strata/pkg/digest"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// recordingMetrics is a storage.Metrics stub that counts calls by
// operation.
type recordingMetrics struct {
	mu    sync.Mutex
	calls map[string]int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{calls: make(map[string]int)}
}

func (m *recordingMetrics) ObserveOperation(operation string, _ time.Duration, _ error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[operation]++
}

func (m *recordingMetrics) RecordBytes(string, int64) {}

func (m *recordingMetrics) count(operation string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[operation]
}

func TestWriteReadDataRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	data := []byte("embedded kv payload")
	d := digest.Of(data, "text/plain", "")

	loc, err := s.WriteData(ctx, data, d, nil)
	if err != nil {
		t.Fatalf("WriteData: %v", err)
	}

	got, err := s.ReadData(ctx, loc)
	if err != nil {
		t.Fatalf("ReadData: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("got %q, want %q", got, data)
	}
}

func TestWriteDataStreamBuffersThenWrites(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	data := []byte("streamed into badger")
	reader := digest.WrapReader(bytes.NewReader(data), "text/plain", "")

	loc, err := s.WriteDataStream(ctx, reader, reader.GetDigest, nil)
	if err != nil {
		t.Fatalf("WriteDataStream: %v", err)
	}

	rc, err := s.ReadDataStream(ctx, loc)
	if err != nil {
		t.Fatalf("ReadDataStream: %v", err)
	}
	defer rc.Close()

	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("got %q, want %q", got, data)
	}
}

func TestReadMissingKeyIsNoStorageData(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.ReadData(context.Background(), Locator{Key: "sha256/no/ne/nonexistent"}); err == nil {
		t.Fatal("expected error reading an unwritten key")
	}
}

func TestWriteReadDataObservesMetrics(t *testing.T) {
	rec := newRecordingMetrics()
	s, err := OpenWithMetrics(t.TempDir(), rec)
	if err != nil {
		t.Fatalf("OpenWithMetrics: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	data := []byte("instrumented kv payload")
	d := digest.Of(data, "text/plain", "")

	loc, err := s.WriteData(ctx, data, d, nil)
	if err != nil {
		t.Fatalf("WriteData: %v", err)
	}
	if _, err := s.ReadData(ctx, loc); err != nil {
		t.Fatalf("ReadData: %v", err)
	}

	if got := rec.count("Set"); got != 1 {
		t.Fatalf("Set observations = %d, want 1", got)
	}
	if got := rec.count("Get"); got != 1 {
		t.Fatalf("Get observations = %d, want 1", got)
	}
}

func TestConfigRoundTrip(t *testing.T) {
	s := newTestStore(t)
	loc := Locator{Key: "sha256/ab/cd/abcd"}

	cfg, err := s.SerializeConfig(loc)
	if err != nil {
		t.Fatalf("SerializeConfig: %v", err)
	}
	got, err := s.DeserializeConfig(cfg)
	if err != nil {
		t.Fatalf("DeserializeConfig: %v", err)
	}
	if got != loc {
		t.Fatalf("got %+v, want %+v", got, loc)
	}
}
