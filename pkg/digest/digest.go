// Package digest computes content-addressing digests for the bytes and
// byte streams that flow through the Saver and Loader. A Digest is the
// content-addressing primitive: every Storage driver's locator is derived
// from one, and every Content row persists one.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
)

// Algorithm identifies a hash function by name, matching the
// content_hash_algorithm column.
const Algorithm = "sha256"

// Digest describes a finite byte sequence: its MIME metadata plus its
// content hash and size. Digest values are immutable once constructed.
type Digest struct {
	ContentType     string
	ContentEncoding string // optional, empty when not set
	HashAlgorithm   string
	Hash            string // lowercase hex
	Size            int64
}

// Of computes the Digest of a finite byte buffer using the default hash
// algorithm (sha256).
func Of(data []byte, contentType, contentEncoding string) Digest {
	sum := sha256.Sum256(data)
	return Digest{
		ContentType:     contentType,
		ContentEncoding: contentEncoding,
		HashAlgorithm:   Algorithm,
		Hash:            hex.EncodeToString(sum[:]),
		Size:            int64(len(data)),
	}
}

// Path returns a fan-out storage path for this digest's hash, e.g.
// "sha256/ab/cd/abcd...". Content-addressed storage drivers use this to
// avoid directories with too many entries and to make equal payloads map
// to the same locator regardless of how many times they're written.
func (d Digest) Path() string {
	h := d.Hash
	if len(h) < 4 {
		return d.HashAlgorithm + "/" + h
	}
	return d.HashAlgorithm + "/" + h[0:2] + "/" + h[2:4] + "/" + h
}
