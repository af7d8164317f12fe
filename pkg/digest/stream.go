package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
	"sync"

	"github.com/marmos91/strata/pkg/storeerr"
)

// StreamDigest extends Digest with a flag recording whether the wrapped
// stream has actually reached EOF. It is only trustworthy (IsComplete ==
// true) once every byte has been drained by a downstream consumer.
type StreamDigest struct {
	Digest
	IsComplete bool
}

// Reader wraps an io.Reader, accumulating a running hash and byte count as
// chunks are consumed downstream. Storage drivers that need a hash before
// they know the final destination (temp->rename, temp->final-key) call
// GetDigest(true) to get a provisional digest for choosing a temp location,
// then GetDigest(false) after the stream has been fully drained to commit
// to a final, content-addressed location.
//
// Reader is safe for the single-reader, single-digest-reader pattern the
// Saver uses; it is not meant to be read from multiple goroutines at once.
type Reader struct {
	src             io.Reader
	contentType     string
	contentEncoding string

	mu   sync.Mutex
	h    hash.Hash
	size int64
	eof  bool
}

// WrapReader returns a Reader that hashes and counts bytes as they pass
// through Read, and the Reader itself for wiring into storage.write_data_stream.
func WrapReader(src io.Reader, contentType, contentEncoding string) *Reader {
	return &Reader{
		src:             src,
		contentType:     contentType,
		contentEncoding: contentEncoding,
		h:               sha256.New(),
	}
}

// Read implements io.Reader, hashing and counting each chunk as it is
// returned to the caller.
func (r *Reader) Read(p []byte) (int, error) {
	n, err := r.src.Read(p)

	r.mu.Lock()
	if n > 0 {
		r.h.Write(p[:n])
		r.size += int64(n)
	}
	if err == io.EOF {
		r.eof = true
	}
	r.mu.Unlock()

	return n, err
}

// GetDigest returns the digest accumulated so far.
//
// If allowIncomplete is false and the stream has not reached EOF, it
// returns storeerr.NewIncompleteStream rather than a digest that would
// silently under-report the final hash/size. Callers that need a
// provisional content-type/hint before the hash is known (to pick a temp
// storage location) must pass allowIncomplete=true explicitly.
func (r *Reader) GetDigest(allowIncomplete bool) (StreamDigest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !allowIncomplete && !r.eof {
		return StreamDigest{}, storeerr.NewIncompleteStream("")
	}

	sum := r.h.Sum(nil)
	d := Digest{
		ContentType:     r.contentType,
		ContentEncoding: r.contentEncoding,
		HashAlgorithm:   Algorithm,
		Size:            r.size,
	}
	if r.eof {
		d.Hash = hex.EncodeToString(sum)
	}
	return StreamDigest{Digest: d, IsComplete: r.eof}, nil
}
