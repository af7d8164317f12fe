package registry

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/google/uuid"

	"github.com/marmos91/strata/pkg/codec"
)

type base struct {
	Name string
}

type derived struct {
	base
	Extra int
}

type stubSerializer struct {
	name        string
	types       []reflect.Type
	contentType string
}

func (s stubSerializer) Name() string                 { return s.name }
func (s stubSerializer) Types() []reflect.Type         { return s.types }
func (s stubSerializer) ContentTypes() []string        { return []string{s.contentType} }
func (s stubSerializer) Serialize(any, json.RawMessage) (codec.Envelope, error) {
	return codec.Envelope{}, nil
}
func (s stubSerializer) Deserialize(codec.Envelope) (any, error) { return nil, nil }

var _ codec.Serializer = stubSerializer{}

func TestGetSerializerByTypeWalksEmbeddedAncestor(t *testing.T) {
	baseSer := stubSerializer{name: "base@v1", types: []reflect.Type{reflect.TypeOf(base{})}, contentType: "application/vnd.base"}

	reg, err := NewBuilder().WithSerializer(baseSer).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	got, err := reg.GetSerializerByType(reflect.TypeOf(derived{}))
	if err != nil {
		t.Fatalf("GetSerializerByType: %v", err)
	}
	if got.Name() != "base@v1" {
		t.Fatalf("resolved %q, want base@v1", got.Name())
	}
}

func TestIsSupertypeCoversEmbedding(t *testing.T) {
	if !IsSupertype(reflect.TypeOf(base{}), reflect.TypeOf(derived{})) {
		t.Fatal("expected base to be a supertype of derived")
	}
	if IsSupertype(reflect.TypeOf(derived{}), reflect.TypeOf(base{})) {
		t.Fatal("derived must not be a supertype of base")
	}
}

func TestGetSerializerByContentTypeIsOrderSignificant(t *testing.T) {
	s := stubSerializer{name: "csv@v1", types: nil, contentType: "text/csv; header=true; delim=,"}
	reg, err := NewBuilder().WithSerializer(s).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if _, err := reg.GetSerializerByContentType("text/csv; header=true; delim=,"); err != nil {
		t.Fatalf("expected match on identical order: %v", err)
	}
	if _, err := reg.GetSerializerByContentType("text/csv; delim=,; header=true"); err == nil {
		t.Fatal("expected no match on reordered parameters")
	}
}

func TestBuilderMergeOverridesOnNameCollision(t *testing.T) {
	baseReg, err := NewBuilder().WithSerializer(stubSerializer{name: "x@v1", contentType: "a/a"}).Build()
	if err != nil {
		t.Fatalf("Build base: %v", err)
	}

	overridden := stubSerializer{name: "x@v1", contentType: "b/b"}
	merged, err := NewBuilder().Merge(baseReg).WithSerializer(overridden).Build()
	if err != nil {
		t.Fatalf("Build merged: %v", err)
	}

	got, err := merged.GetSerializer("x@v1")
	if err != nil {
		t.Fatalf("GetSerializer: %v", err)
	}
	if got.ContentTypes()[0] != "b/b" {
		t.Fatalf("merged registration = %q, want b/b", got.ContentTypes()[0])
	}
}

func TestBuilderWithBeforeMergeStillWinsOnNameCollision(t *testing.T) {
	explicit := stubSerializer{name: "x@v1", contentType: "explicit/explicit"}
	baseReg, err := NewBuilder().WithSerializer(stubSerializer{name: "x@v1", contentType: "from-merge/from-merge"}).Build()
	if err != nil {
		t.Fatalf("Build base: %v", err)
	}

	// The explicit WithSerializer call happens before Merge in program
	// order; it must still beat what the Merge brings in for the same name.
	merged, err := NewBuilder().WithSerializer(explicit).Merge(baseReg).Build()
	if err != nil {
		t.Fatalf("Build merged: %v", err)
	}

	got, err := merged.GetSerializer("x@v1")
	if err != nil {
		t.Fatalf("GetSerializer: %v", err)
	}
	if got.ContentTypes()[0] != "explicit/explicit" {
		t.Fatalf("merged registration = %q, want explicit/explicit (With-before-Merge must win)", got.ContentTypes()[0])
	}
}

func TestWithSerializerRejectsBadName(t *testing.T) {
	_, err := NewBuilder().WithSerializer(stubSerializer{name: "not valid"}).Build()
	if err == nil {
		t.Fatal("expected build error for invalid component name")
	}
}

func TestFindStorableByTypeDereferencesPointer(t *testing.T) {
	id := uuid.New()
	reg, err := NewBuilder().WithStorable(id, Class{Type: reflect.TypeOf(base{}), UnpackerName: "noop@v1"}).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	got, _, err := reg.FindStorableByType(reflect.TypeOf(&base{}))
	if err != nil {
		t.Fatalf("FindStorableByType: %v", err)
	}
	if got != id {
		t.Fatalf("got %s, want %s", got, id)
	}
}

func TestGetDefaultStorageUnset(t *testing.T) {
	reg, err := NewBuilder().Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if _, err := reg.GetDefaultStorage(); err == nil {
		t.Fatal("expected error when no default storage is configured")
	}
}
