// Package codec defines the two serialization capabilities the Saver and
// Loader depend on: Serializer for (typed value <-> bytes) and
// StreamSerializer for (async value sequence <-> byte stream). Concrete
// implementations (JSON, ndjson, MessagePack, ...) live in subpackages and
// are registered by name with pkg/registry.
package codec

import (
	"encoding/json"
	"io"
	"iter"
	"reflect"
	"regexp"

	"github.com/marmos91/strata/pkg/storeerr"
)

// NamePattern is the versioned component name format enforced at registry
// construction: a dotted identifier followed by `@v<int>`, with an
// optional trailing dotted suffix for pre-release/build tags.
var NamePattern = regexp.MustCompile(`^[a-z][a-z0-9_.-]*@v\d+(\..*)?$`)

// ValidateName checks a component name against NamePattern, returning a
// storeerr.BadComponentName error on mismatch. Registry construction calls
// this for every codec, storage, and unpacker it registers.
func ValidateName(name string) error {
	if !NamePattern.MatchString(name) {
		return storeerr.NewBadComponentName(name)
	}
	return nil
}

// Envelope is the wire contract a value Serializer produces and consumes:
// the exact bytes to persist, their MIME content type, an optional content
// encoding (e.g. "gzip"), and an opaque config blob the serializer needs
// to reverse its own encoding decisions (CSV dialect, Arrow schema hint).
type Envelope struct {
	Data            []byte
	ContentType     string
	ContentEncoding string
	Config          json.RawMessage
}

// StreamEnvelope is Envelope's streaming counterpart: DataStream replaces
// Data. The stream is lazy — constructing a StreamEnvelope for a read must
// not block or fully buffer the payload.
type StreamEnvelope struct {
	DataStream      io.Reader
	ContentType     string
	ContentEncoding string
	Config          json.RawMessage
}

// ValueSeq is a pull-based sequence of decoded values paired with any
// error encountered producing the next one. It is the in-process
// equivalent of spec's "asynchronous value sequence": range-over-func lets
// callers (and the Saver's type-inference peek) consume it cooperatively
// without buffering the whole sequence in memory.
type ValueSeq = iter.Seq2[any, error]

// Serializer transforms one value of a registered Go type to and from an
// Envelope. Implementations register a versioned Name, the concrete Types
// they can infer from a runtime value (covariant: a subclass/embedding
// matches its nearest registered ancestor), and the ContentTypes they can
// be selected for during MIME-based inference.
type Serializer interface {
	Name() string
	Types() []reflect.Type
	ContentTypes() []string

	Serialize(value any, config json.RawMessage) (Envelope, error)
	Deserialize(env Envelope) (any, error)
}

// StreamSerializer is Serializer's streaming counterpart: it produces and
// consumes a byte stream instead of a single buffer, and a ValueSeq
// instead of a single value.
type StreamSerializer interface {
	Name() string
	Types() []reflect.Type
	ContentTypes() []string

	SerializeStream(values ValueSeq, config json.RawMessage) (StreamEnvelope, error)
	DeserializeStream(env StreamEnvelope) (ValueSeq, error)
}

// PeekFirst pulls the first (value, err) pair out of a ValueSeq for
// type-inference purposes, then hands back an equivalent sequence that
// yields the peeked element first and continues from where the original
// left off — matching spec's "peek the first value, then prepend it back"
// requirement for stream contents with no explicit codec hint.
//
// ok is false if the sequence was already exhausted; callers must not read
// seq's first value a second time directly.
func PeekFirst(values ValueSeq) (first any, firstErr error, ok bool, seq ValueSeq) {
	next, stop := iter.Pull2(values)

	v, err, hasNext := next()
	if !hasNext {
		stop()
		return nil, nil, false, func(yield func(any, error) bool) {}
	}

	rest := func(yield func(any, error) bool) {
		defer stop()
		if !yield(v, err) {
			return
		}
		for {
			nv, nerr, more := next()
			if !more {
				return
			}
			if !yield(nv, nerr) {
				return
			}
		}
	}

	return v, err, true, rest
}
