// Package jsoncodec is the reference value Serializer: encoding/json over
// one registered Go type (or, with a nil type, over `any` for ad hoc
// values an unpacker body document embeds directly).
package jsoncodec

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/marmos91/strata/pkg/codec"
	"github.com/marmos91/strata/pkg/storeerr"
)

// ContentType is the MIME type this codec produces.
const ContentType = "application/json"

// Codec serializes one Go type to and from JSON.
type Codec struct {
	name string
	typ  reflect.Type
}

// New returns a Codec bound to typ. A nil typ decodes into `any`, useful
// for unpackers that only need the raw decoded JSON shape (maps/slices/
// scalars) rather than a concrete struct.
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
	data, err := json.Marshal(value)
	if err != nil {
		return codec.Envelope{}, fmt.Errorf("jsoncodec %s: marshal: %w", c.name, err)
	}
	return codec.Envelope{Data: data, ContentType: ContentType, Config: config}, nil
}

func (c *Codec) Deserialize(env codec.Envelope) (any, error) {
	if len(env.Data) == 0 {
		return nil, storeerr.NewSerializerContract(c.name, "data")
	}

	if c.typ == nil {
		var v any
		if err := json.Unmarshal(env.Data, &v); err != nil {
			return nil, fmt.Errorf("jsoncodec %s: unmarshal: %w", c.name, err)
		}
		return v, nil
	}

	ptr := reflect.New(c.typ)
	if err := json.Unmarshal(env.Data, ptr.Interface()); err != nil {
		return nil, fmt.Errorf("jsoncodec %s: unmarshal into %s: %w", c.name, c.typ, err)
	}
	return ptr.Elem().Interface(), nil
}

var _ codec.Serializer = (*Codec)(nil)
