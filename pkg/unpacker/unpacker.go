// Package unpacker defines the Unpacker protocol: the pure function pair
// that decomposes one storable object into named pieces for the Saver,
// and reconstructs an object from those pieces for the Loader.
package unpacker

import (
	"reflect"

	"github.com/google/uuid"

	"github.com/marmos91/strata/pkg/codec"
	"github.com/marmos91/strata/pkg/manifest"
	"github.com/marmos91/strata/pkg/storage"
)

// Registry is the subset of pkg/registry.Registry the unpack/repack
// functions need. It is declared here, not imported from pkg/registry, so
// that registry can depend on this package without a cycle: any
// *registry.Registry satisfies this interface structurally.
type Registry interface {
	GetSerializer(name string) (codec.Serializer, error)
	GetStreamSerializer(name string) (codec.StreamSerializer, error)
	GetSerializerByType(t reflect.Type) (codec.Serializer, error)
	GetStreamSerializerByType(t reflect.Type) (codec.StreamSerializer, error)
	GetStorage(name string) (storage.Storage, error)
	GetDefaultStorage() (storage.Storage, error)
}

// UnpackedContent is one entry of the map an Unpacker's Unpack returns: a
// single value or value-stream, with optional explicit codec/storage
// overrides. An empty CodecName/StorageName means "infer" (by type, then
// registry default, respectively).
type UnpackedContent struct {
	Kind manifest.Kind

	Value       any           // set when Kind == manifest.Value
	ValueStream codec.ValueSeq // set when Kind == manifest.Stream

	CodecName   string
	StorageName string
}

// LoadedContent is one entry of the map Repack receives: the materialized
// value (or lazy value-stream) plus which serializer and storage produced
// it, so Repack can make type-aware decisions while reconstructing the
// object graph.
type LoadedContent struct {
	Kind manifest.Kind

	Value       any
	ValueStream codec.ValueSeq

	SerializerName string
	StorageName    string
}

// Unpacker binds one storable class to its decomposition and
// reconstruction functions. Both must be pure: no I/O, no registry
// mutation, deterministic map iteration order (Go map order is NOT
// deterministic, so implementations that care about content-row ordering
// should return an ordered key slice alongside the map, or encode order in
// the keys themselves — see Keys).
type Unpacker interface {
	// Name is this unpacker's versioned registry name, e.g. "document@v1".
	Name() string

	// Unpack decomposes object into named contents.
	Unpack(object any, reg Registry) (map[string]UnpackedContent, error)

	// Keys returns the deterministic iteration order for the map Unpack
	// last returned. The Saver persists Content rows in this order.
	Keys(contents map[string]UnpackedContent) []string

	// Repack reconstructs an object of classID from its loaded contents.
	Repack(classID uuid.UUID, contents map[string]LoadedContent, reg Registry) (any, error)
}
