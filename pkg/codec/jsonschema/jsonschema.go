// Package jsonschema is a value Serializer variant for callers that want
// their stored config to double as documentation: the codec's config is
// always the invopop/jsonschema-generated schema for its bound type, and
// every deserialized value is re-validated with go-playground/validator
// before it is handed back to the unpacker's repack.
package jsonschema

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"

	"github.com/marmos91/strata/pkg/codec"
	"github.com/marmos91/strata/pkg/storeerr"
)

// ContentType is the MIME type this codec produces.
const ContentType = "application/schema+json"

var validate = validator.New(validator.WithRequiredStructEnabled())

// Codec serializes one struct type to and from JSON, embedding its
// reflected schema as the envelope's config and validating `validate:"..."`
// struct tags on every deserialize.
type Codec struct {
	name     string
	typ      reflect.Type
	reflector jsonschema.Reflector
}

// New returns a Codec bound to typ, which must be a struct type (or
// pointer to one).
func New(name string, typ reflect.Type) (*Codec, error) {
	if err := codec.ValidateName(name); err != nil {
		return nil, err
	}
	for typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		return nil, fmt.Errorf("jsonschema %s: bound type must be a struct, got %s", name, typ.Kind())
	}
	return &Codec{
		name: name,
		typ:  typ,
		reflector: jsonschema.Reflector{
			AllowAdditionalProperties: false,
			DoNotReference:            true,
		},
	}, nil
}

func (c *Codec) Name() string { return c.name }

func (c *Codec) Types() []reflect.Type { return []reflect.Type{c.typ} }

func (c *Codec) ContentTypes() []string { return []string{ContentType} }

func (c *Codec) Serialize(value any, _ json.RawMessage) (codec.Envelope, error) {
	if err := validate.Struct(value); err != nil {
		return codec.Envelope{}, fmt.Errorf("jsonschema %s: validate before save: %w", c.name, err)
	}

	data, err := json.Marshal(value)
	if err != nil {
		return codec.Envelope{}, fmt.Errorf("jsonschema %s: marshal: %w", c.name, err)
	}

	schema := c.reflector.ReflectFromType(c.typ)
	schemaJSON, err := json.Marshal(schema)
	if err != nil {
		return codec.Envelope{}, fmt.Errorf("jsonschema %s: marshal schema: %w", c.name, err)
	}

	return codec.Envelope{Data: data, ContentType: ContentType, Config: schemaJSON}, nil
}

func (c *Codec) Deserialize(env codec.Envelope) (any, error) {
	if len(env.Data) == 0 {
		return nil, storeerr.NewSerializerContract(c.name, "data")
	}

	ptr := reflect.New(c.typ)
	if err := json.Unmarshal(env.Data, ptr.Interface()); err != nil {
		return nil, fmt.Errorf("jsonschema %s: unmarshal into %s: %w", c.name, c.typ, err)
	}

	value := ptr.Interface()
	if err := validate.Struct(value); err != nil {
		return nil, fmt.Errorf("jsonschema %s: validate after load: %w", c.name, err)
	}

	return ptr.Elem().Interface(), nil
}

var _ codec.Serializer = (*Codec)(nil)
