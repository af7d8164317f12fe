// Package storage defines the Storage capability the Saver and Loader
// depend on: writing and reading the raw bytes a Serializer produces,
// addressed by an opaque, driver-defined locator.
package storage

import (
	"context"
	"io"
	"time"

	"github.com/marmos91/strata/pkg/digest"
)

// Locator is the opaque, driver-defined address a write returns and a read
// consumes. Drivers serialize/deserialize their own locator type to and
// from the contents.storage_config column; the core never inspects one.
type Locator any

// GetDigest is the accessor a streaming write calls to learn the digest of
// the bytes flowing through it. allow_incomplete=true before EOF yields a
// provisional digest (for choosing a temp location); allow_incomplete=false
// after EOF yields the final one, or storeerr.IncompleteStream if called
// too early.
type GetDigest func(allowIncomplete bool) (digest.StreamDigest, error)

// Storage persists and retrieves the byte payload of a Content, addressed
// by a Locator of the driver's own choosing.
//
// Drivers that stage a stream before its digest is final (fs, s3) follow
// the temp->rename pattern: stage under a provisional location, then
// promote to the final, content-addressed location once GetDigest(false)
// succeeds, deleting the temp object in every case (including error and
// context cancellation). Drivers that read the whole stream into memory
// and write it once (memory, badger, dbstore) create no temp object.
type Storage interface {
	// Name is this storage's versioned registry name, e.g. "fs@v1".
	Name() string

	// WriteData persists a finite buffer and returns its locator.
	WriteData(ctx context.Context, data []byte, d digest.Digest, tags map[string]string) (Locator, error)

	// ReadData returns the exact bytes a prior WriteData/WriteDataStream
	// received. Returns storeerr.NoStorageData if locator has no backing
	// data.
	ReadData(ctx context.Context, loc Locator) ([]byte, error)

	// WriteDataStream persists a byte stream lazily, consulting getDigest
	// to choose temp and final locations, and returns the final locator.
	WriteDataStream(ctx context.Context, src io.Reader, getDigest GetDigest, tags map[string]string) (Locator, error)

	// ReadDataStream returns a reader yielding the exact byte sequence a
	// prior write received. Returns storeerr.NoStorageData if locator has
	// no backing data.
	ReadDataStream(ctx context.Context, loc Locator) (io.ReadCloser, error)

	// SerializeConfig renders a locator to the string persisted in
	// contents.storage_config.
	SerializeConfig(loc Locator) (string, error)

	// DeserializeConfig parses a persisted storage_config string back into
	// this driver's locator type.
	DeserializeConfig(config string) (Locator, error)

	// Close releases driver resources (connections, file handles).
	Close() error
}

// Metrics is the optional instrumentation hook an instrumented Storage
// driver (s3, badger) calls around each operation. A nil Metrics is a
// valid no-op value; implementations must tolerate a nil receiver so a
// driver built with no Metrics configured pays zero overhead.
type Metrics interface {
	// ObserveOperation records one operation's outcome and duration.
	// operation is a driver-specific verb, e.g. "PutObject", "get".
	ObserveOperation(operation string, duration time.Duration, err error)

	// RecordBytes records bytes moved by operation, in either direction.
	RecordBytes(operation string, bytes int64)
}
