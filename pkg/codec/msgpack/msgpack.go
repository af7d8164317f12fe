// Package msgpack provides a value and stream Serializer pair backed by
// vmihailenco/msgpack/v5, for callers that want a denser binary wire
// format than JSON for the same unpacker content shapes jsoncodec/ndjson
// handle.
package msgpack

import (
	"encoding/json"
	"fmt"
	"io"
	"reflect"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/marmos91/strata/pkg/codec"
	"github.com/marmos91/strata/pkg/storeerr"
)

// ContentType is the MIME type the value codec produces.
const ContentType = "application/vnd.msgpack"

// StreamContentType is the MIME type the stream codec produces: one
// concatenated sequence of msgpack-encoded values, decoded positionally.
const StreamContentType = "application/vnd.msgpack-stream"

// Codec serializes one Go type to and from msgpack.
type Codec struct {
	name string
	typ  reflect.Type
}

// New returns a Codec bound to typ. A nil typ decodes into `any`.
func New(name string, typ reflect.Type) (*Codec, error) {
	if err := codec.ValidateName(name); err != nil {
		return nil, err
	}
	return &Codec{name: name, typ: typ}, nil
}

func (c *Codec) Name() string { return c.name }

func (c *Codec) Types() []reflect.Type {
	if c.typ == nil {
		return nil
	}
	return []reflect.Type{c.typ}
}

func (c *Codec) ContentTypes() []string { return []string{ContentType} }

func (c *Codec) Serialize(value any, config json.RawMessage) (codec.Envelope, error) {
	data, err := msgpack.Marshal(value)
	if err != nil {
		return codec.Envelope{}, fmt.Errorf("msgpack %s: marshal: %w", c.name, err)
	}
	return codec.Envelope{Data: data, ContentType: ContentType, Config: config}, nil
}

func (c *Codec) Deserialize(env codec.Envelope) (any, error) {
	if len(env.Data) == 0 {
		return nil, storeerr.NewSerializerContract(c.name, "data")
	}

	if c.typ == nil {
		var v any
		if err := msgpack.Unmarshal(env.Data, &v); err != nil {
			return nil, fmt.Errorf("msgpack %s: unmarshal: %w", c.name, err)
		}
		return v, nil
	}

	ptr := reflect.New(c.typ)
	if err := msgpack.Unmarshal(env.Data, ptr.Interface()); err != nil {
		return nil, fmt.Errorf("msgpack %s: unmarshal into %s: %w", c.name, c.typ, err)
	}
	return ptr.Elem().Interface(), nil
}

var _ codec.Serializer = (*Codec)(nil)

// StreamCodec serializes a ValueSeq to and from a concatenated sequence of
// msgpack-encoded values, read back positionally with msgpack's own
// streaming Decoder.
type StreamCodec struct {
	name string
	typ  reflect.Type
}

// NewStream returns a StreamCodec bound to typ. A nil typ decodes each
// value into `any`.
func NewStream(name string, typ reflect.Type) (*StreamCodec, error) {
	if err := codec.ValidateName(name); err != nil {
		return nil, err
	}
	return &StreamCodec{name: name, typ: typ}, nil
}

func (c *StreamCodec) Name() string { return c.name }

func (c *StreamCodec) Types() []reflect.Type {
	if c.typ == nil {
		return nil
	}
	return []reflect.Type{c.typ}
}

func (c *StreamCodec) ContentTypes() []string { return []string{StreamContentType} }

func (c *StreamCodec) SerializeStream(values codec.ValueSeq, config json.RawMessage) (codec.StreamEnvelope, error) {
	pr, pw := io.Pipe()

	go func() {
		enc := msgpack.NewEncoder(pw)
		var encErr error
		for v, err := range values {
			if err != nil {
				encErr = err
				break
			}
			if encErr = enc.Encode(v); encErr != nil {
				break
			}
		}
		pw.CloseWithError(encErr)
	}()

	return codec.StreamEnvelope{DataStream: pr, ContentType: StreamContentType, Config: config}, nil
}

func (c *StreamCodec) DeserializeStream(env codec.StreamEnvelope) (codec.ValueSeq, error) {
	return func(yield func(any, error) bool) {
		dec := msgpack.NewDecoder(env.DataStream)

		for {
			var v any
			var target reflect.Value

			var decodeErr error
			if c.typ != nil {
				target = reflect.New(c.typ)
				decodeErr = dec.Decode(target.Interface())
				if decodeErr == nil {
					v = target.Elem().Interface()
				}
			} else {
				decodeErr = dec.Decode(&v)
			}

			if decodeErr == io.EOF {
				return
			}
			if decodeErr != nil {
				yield(nil, fmt.Errorf("msgpack %s: decode: %w", c.name, decodeErr))
				return
			}
			if !yield(v, nil) {
				return
			}
		}
	}, nil
}

var _ codec.StreamSerializer = (*StreamCodec)(nil)
