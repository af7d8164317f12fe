// Package registry assembles the immutable lookup table the Saver and
// Loader consult for every class, codec, storage, and unpacker they
// handle, by name, by Go type, and by MIME content type.
package registry

import (
	"reflect"

	"github.com/google/uuid"

	"github.com/marmos91/strata/pkg/codec"
	"github.com/marmos91/strata/pkg/storage"
	"github.com/marmos91/strata/pkg/storeerr"
	"github.com/marmos91/strata/pkg/unpacker"
)

// Class is a registered storable: the Go type a class_id resolves to, and
// the unpacker bound to it.
type Class struct {
	ID           uuid.UUID
	Type         reflect.Type
	UnpackerName string
}

// Registry is an immutable value assembled by Builder. It is safe for
// concurrent read access from any number of saver/loader contexts.
type Registry struct {
	storables     map[uuid.UUID]Class
	unpackers     map[string]unpacker.Unpacker
	valueCodecs   []codec.Serializer // registration order, for type/content-type inference
	valueByName   map[string]codec.Serializer
	streamCodecs  []codec.StreamSerializer
	streamByName  map[string]codec.StreamSerializer
	storages      map[string]storage.Storage
	defaultStorageName string
}

// GetStorable resolves a class_id to its registered Class.
func (r *Registry) GetStorable(classID uuid.UUID) (Class, error) {
	c, ok := r.storables[classID]
	if !ok {
		return Class{}, storeerr.NewNotRegistered("storable", classID.String())
	}
	return c, nil
}

// FindStorableByType reverse-resolves a Go type to its registered
// class_id, for the Saver, which only has a bare value to start from.
func (r *Registry) FindStorableByType(t reflect.Type) (uuid.UUID, Class, error) {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	for id, c := range r.storables {
		if c.Type == t {
			return id, c, nil
		}
	}
	return uuid.Nil, Class{}, storeerr.NewNotRegistered("storable", t.String())
}

// IsSupertype reports whether hint is hint-or-ancestor of actual in the
// Go-embedding sense ancestorChain defines — used by the Loader to verify
// a load_one class_hint.
func IsSupertype(hint, actual reflect.Type) bool {
	for _, anc := range ancestorChain(actual) {
		if anc == hint {
			return true
		}
	}
	return false
}

// GetUnpacker resolves an unpacker by its versioned name.
func (r *Registry) GetUnpacker(name string) (unpacker.Unpacker, error) {
	u, ok := r.unpackers[name]
	if !ok {
		return nil, storeerr.NewNotRegistered("unpacker", name)
	}
	return u, nil
}

// GetSerializer resolves a value codec by its versioned name.
func (r *Registry) GetSerializer(name string) (codec.Serializer, error) {
	s, ok := r.valueByName[name]
	if !ok {
		return nil, storeerr.NewNotRegistered("codec", name)
	}
	return s, nil
}

// GetStreamSerializer resolves a stream codec by its versioned name.
func (r *Registry) GetStreamSerializer(name string) (codec.StreamSerializer, error) {
	s, ok := r.streamByName[name]
	if !ok {
		return nil, storeerr.NewNotRegistered("stream codec", name)
	}
	return s, nil
}

// GetSerializerByType walks t's ancestor chain in declaration order,
// returning the first value codec registered for a matching type.
func (r *Registry) GetSerializerByType(t reflect.Type) (codec.Serializer, error) {
	for _, anc := range ancestorChain(t) {
		for _, s := range r.valueCodecs {
			for _, st := range s.Types() {
				if st == anc {
					return s, nil
				}
			}
		}
	}
	return nil, storeerr.NewNotRegistered("codec", t.String())
}

// GetStreamSerializerByType is GetSerializerByType's streaming counterpart.
func (r *Registry) GetStreamSerializerByType(t reflect.Type) (codec.StreamSerializer, error) {
	for _, anc := range ancestorChain(t) {
		for _, s := range r.streamCodecs {
			for _, st := range s.Types() {
				if st == anc {
					return s, nil
				}
			}
		}
	}
	return nil, storeerr.NewNotRegistered("stream codec", t.String())
}

// GetSerializerByContentType parses contentType and returns the first
// registered value codec whose own content types match the full parsed
// tuple (parameters included, order-significant).
func (r *Registry) GetSerializerByContentType(contentType string) (codec.Serializer, error) {
	want, err := parseContentType(contentType)
	if err != nil {
		return nil, err
	}
	for _, s := range r.valueCodecs {
		for _, ct := range s.ContentTypes() {
			have, err := parseContentType(ct)
			if err != nil {
				continue
			}
			if have.equal(want) {
				return s, nil
			}
		}
	}
	return nil, storeerr.NewNotRegistered("codec", contentType)
}

// GetStreamSerializerByContentType is
// GetSerializerByContentType's streaming counterpart.
func (r *Registry) GetStreamSerializerByContentType(contentType string) (codec.StreamSerializer, error) {
	want, err := parseContentType(contentType)
	if err != nil {
		return nil, err
	}
	for _, s := range r.streamCodecs {
		for _, ct := range s.ContentTypes() {
			have, err := parseContentType(ct)
			if err != nil {
				continue
			}
			if have.equal(want) {
				return s, nil
			}
		}
	}
	return nil, storeerr.NewNotRegistered("stream codec", contentType)
}

// GetStorage resolves a storage driver by its versioned name.
func (r *Registry) GetStorage(name string) (storage.Storage, error) {
	s, ok := r.storages[name]
	if !ok {
		return nil, storeerr.NewNotRegistered("storage", name)
	}
	return s, nil
}

// GetDefaultStorage returns the storage designated as default at
// construction, or NotRegistered if none was.
func (r *Registry) GetDefaultStorage() (storage.Storage, error) {
	if r.defaultStorageName == "" {
		return nil, storeerr.NewNotRegistered("storage", "<default>")
	}
	return r.GetStorage(r.defaultStorageName)
}
