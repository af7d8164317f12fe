package registry

import (
	"github.com/google/uuid"

	"github.com/marmos91/strata/pkg/codec"
	"github.com/marmos91/strata/pkg/storage"
	"github.com/marmos91/strata/pkg/unpacker"
)

// Builder assembles a Registry from explicit components and other,
// already-built registries. Merge priority is ascending: Merge(base) folds
// base's entries in first, and any explicit With* call — whether it
// happens before or after the Merge call in program order — wins on a
// name collision. Only the relative order of Merge calls against each
// other matters (a later Merge overrides an earlier one); an explicit
// With* call always beats whatever a Merge brings in, regardless of
// which line it appears on.
type Builder struct {
	reg  *Registry
	errs []error

	explicitStorables    map[uuid.UUID]bool
	explicitUnpackers    map[string]bool
	explicitValueCodecs  map[string]bool
	explicitStreamCodecs map[string]bool
	explicitStorages     map[string]bool
	explicitDefault      bool
}

// NewBuilder starts an empty Builder.
func NewBuilder() *Builder {
	return &Builder{
		reg: &Registry{
			storables:    make(map[uuid.UUID]Class),
			unpackers:    make(map[string]unpacker.Unpacker),
			valueByName:  make(map[string]codec.Serializer),
			streamByName: make(map[string]codec.StreamSerializer),
			storages:     make(map[string]storage.Storage),
		},
		explicitStorables:    make(map[uuid.UUID]bool),
		explicitUnpackers:    make(map[string]bool),
		explicitValueCodecs:  make(map[string]bool),
		explicitStreamCodecs: make(map[string]bool),
		explicitStorages:     make(map[string]bool),
	}
}

// Merge folds every entry of other into the builder. Entries already
// present by an explicit With* call — made before or after this Merge —
// are left untouched; everything else is overwritten, implementing
// ascending merge priority when callers merge lowest-priority sources
// first.
func (b *Builder) Merge(other *Registry) *Builder {
	if other == nil {
		return b
	}
	for id, c := range other.storables {
		if b.explicitStorables[id] {
			continue
		}
		b.reg.storables[id] = c
	}
	for name, u := range other.unpackers {
		if b.explicitUnpackers[name] {
			continue
		}
		b.reg.unpackers[name] = u
	}
	for _, s := range other.valueCodecs {
		if b.explicitValueCodecs[s.Name()] {
			continue
		}
		b.addValueCodec(s)
	}
	for _, s := range other.streamCodecs {
		if b.explicitStreamCodecs[s.Name()] {
			continue
		}
		b.addStreamCodec(s)
	}
	for name, s := range other.storages {
		if b.explicitStorages[name] {
			continue
		}
		b.reg.storages[name] = s
	}
	if other.defaultStorageName != "" && !b.explicitDefault {
		b.reg.defaultStorageName = other.defaultStorageName
	}
	return b
}

// WithStorable registers a storable class: classID resolves to a Go value
// of type t, decomposed/reconstructed by the named unpacker.
func (b *Builder) WithStorable(classID uuid.UUID, c Class) *Builder {
	c.ID = classID
	b.reg.storables[classID] = c
	b.explicitStorables[classID] = true
	return b
}

// WithUnpacker registers an Unpacker under its own Name().
func (b *Builder) WithUnpacker(u unpacker.Unpacker) *Builder {
	if err := codec.ValidateName(u.Name()); err != nil {
		b.errs = append(b.errs, err)
		return b
	}
	b.reg.unpackers[u.Name()] = u
	b.explicitUnpackers[u.Name()] = true
	return b
}

func (b *Builder) addValueCodec(s codec.Serializer) {
	if _, exists := b.reg.valueByName[s.Name()]; !exists {
		b.reg.valueCodecs = append(b.reg.valueCodecs, s)
	} else {
		for i, existing := range b.reg.valueCodecs {
			if existing.Name() == s.Name() {
				b.reg.valueCodecs[i] = s
				break
			}
		}
	}
	b.reg.valueByName[s.Name()] = s
}

func (b *Builder) addStreamCodec(s codec.StreamSerializer) {
	if _, exists := b.reg.streamByName[s.Name()]; !exists {
		b.reg.streamCodecs = append(b.reg.streamCodecs, s)
	} else {
		for i, existing := range b.reg.streamCodecs {
			if existing.Name() == s.Name() {
				b.reg.streamCodecs[i] = s
				break
			}
		}
	}
	b.reg.streamByName[s.Name()] = s
}

// WithSerializer registers a value codec under its own Name().
func (b *Builder) WithSerializer(s codec.Serializer) *Builder {
	if err := codec.ValidateName(s.Name()); err != nil {
		b.errs = append(b.errs, err)
		return b
	}
	b.addValueCodec(s)
	b.explicitValueCodecs[s.Name()] = true
	return b
}

// WithStreamSerializer registers a stream codec under its own Name().
func (b *Builder) WithStreamSerializer(s codec.StreamSerializer) *Builder {
	if err := codec.ValidateName(s.Name()); err != nil {
		b.errs = append(b.errs, err)
		return b
	}
	b.addStreamCodec(s)
	b.explicitStreamCodecs[s.Name()] = true
	return b
}

// WithStorage registers a Storage driver under its own Name().
func (b *Builder) WithStorage(s storage.Storage) *Builder {
	if err := codec.ValidateName(s.Name()); err != nil {
		b.errs = append(b.errs, err)
		return b
	}
	b.reg.storages[s.Name()] = s
	b.explicitStorages[s.Name()] = true
	return b
}

// WithDefaultStorage designates name (which must already be, or still be
// about to be, registered via WithStorage) as the fallback for unpacked
// contents with no explicit storage override.
func (b *Builder) WithDefaultStorage(name string) *Builder {
	b.reg.defaultStorageName = name
	b.explicitDefault = true
	return b
}

// Build validates every registered name and returns the assembled
// Registry, or the first validation error encountered.
func (b *Builder) Build() (*Registry, error) {
	if len(b.errs) > 0 {
		return nil, b.errs[0]
	}
	return b.reg, nil
}
