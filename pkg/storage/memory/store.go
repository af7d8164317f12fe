// Package memory provides an in-memory Storage driver, adapted from the
// block store used for component tests: everything lives in a map guarded
// by a RWMutex, with no temp/final distinction needed since writes are
// atomic map insertions.
package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/marmos91/strata/pkg/digest"
	"github.com/marmos91/strata/pkg/storage"
	"github.com/marmos91/strata/pkg/storeerr"
)

// Name is the versioned registry name for this driver.
const Name = "memory@v1"

// Locator addresses an object by its content hash within one Store
// instance. It round-trips through SerializeConfig as plain JSON.
type Locator struct {
	Key string `json:"key"`
}

// Store is an in-memory Storage implementation, intended for tests and the
// registry's default-storage fallback in examples.
type Store struct {
	mu     sync.RWMutex
	blobs  map[string][]byte
	closed bool
}

// New returns an empty Store.
func New() *Store {
	return &Store{blobs: make(map[string][]byte)}
}

func (s *Store) Name() string { return Name }

func (s *Store) WriteData(_ context.Context, data []byte, d digest.Digest, _ map[string]string) (storage.Locator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, storeerr.New(storeerr.NoStorageData, "store is closed")
	}

	copied := make([]byte, len(data))
	copy(copied, data)
	s.blobs[d.Path()] = copied

	return Locator{Key: d.Path()}, nil
}

func (s *Store) ReadData(_ context.Context, loc storage.Locator) ([]byte, error) {
	l, ok := loc.(Locator)
	if !ok {
		return nil, storeerr.New(storeerr.NoStorageData, "locator is not a memory.Locator")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.blobs[l.Key]
	if !ok {
		return nil, storeerr.NewNoStorageData(Name, l.Key)
	}

	copied := make([]byte, len(data))
	copy(copied, data)
	return copied, nil
}

// WriteDataStream drains src fully before committing, since the in-memory
// driver has no partial-object visibility to hide; the temp/final split
// still runs through getDigest the same way a durable driver would, so
// tests exercising this driver also exercise the saver's digest-accumulator
// wiring.
func (s *Store) WriteDataStream(ctx context.Context, src io.Reader, getDigest storage.GetDigest, tags map[string]string) (storage.Locator, error) {
	// Touch the provisional digest so drivers that genuinely need a temp
	// name could derive one here; memory has no filesystem path to stage.
	if _, err := getDigest(true); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(src)
	if err != nil {
		return nil, err
	}

	d, err := getDigest(false)
	if err != nil {
		return nil, storeerr.NewStorageDidNotConsumeStream(Name, "")
	}

	return s.WriteData(ctx, data, d.Digest, tags)
}

func (s *Store) ReadDataStream(ctx context.Context, loc storage.Locator) (io.ReadCloser, error) {
	data, err := s.ReadData(ctx, loc)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *Store) SerializeConfig(loc storage.Locator) (string, error) {
	l, ok := loc.(Locator)
	if !ok {
		return "", storeerr.New(storeerr.NoStorageData, "locator is not a memory.Locator")
	}
	b, err := json.Marshal(l)
	return string(b), err
}

func (s *Store) DeserializeConfig(config string) (storage.Locator, error) {
	var l Locator
	if err := json.Unmarshal([]byte(config), &l); err != nil {
		return nil, err
	}
	return l, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.blobs = nil
	return nil
}

// BlobCount returns the number of stored objects, for test assertions.
func (s *Store) BlobCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}

var _ storage.Storage = (*Store)(nil)
