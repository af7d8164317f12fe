package saver

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/marmos91/strata/pkg/codec/jsoncodec"
	"github.com/marmos91/strata/pkg/codec/ndjson"
	"github.com/marmos91/strata/pkg/manifest"
	"github.com/marmos91/strata/pkg/registry"
	"github.com/marmos91/strata/pkg/storage/memory"
	"github.com/marmos91/strata/pkg/storeerr"
	"github.com/marmos91/strata/pkg/unpacker"
)

type widget struct {
	Name  string
	Count int
}

type widgetUnpacker struct{}

func (widgetUnpacker) Name() string { return "widget@v1" }

func (widgetUnpacker) Unpack(object any, _ unpacker.Registry) (map[string]unpacker.UnpackedContent, error) {
	w := object.(widget)
	return map[string]unpacker.UnpackedContent{
		"body": {Kind: manifest.Value, Value: w},
	}, nil
}

func (widgetUnpacker) Keys(contents map[string]unpacker.UnpackedContent) []string {
	return []string{"body"}
}

func (widgetUnpacker) Repack(classID uuid.UUID, contents map[string]unpacker.LoadedContent, _ unpacker.Registry) (any, error) {
	return contents["body"].Value, nil
}

// fakeStore is an in-memory db.Store stand-in, avoiding a real database
// dependency for tests exercising only the saver's fan-out/commit logic.
type fakeStore struct {
	manifests map[uuid.UUID]*manifest.Manifest
}

func newFakeStore() *fakeStore { return &fakeStore{manifests: make(map[uuid.UUID]*manifest.Manifest)} }

func (s *fakeStore) CreateAll(context.Context) error { return nil }

func (s *fakeStore) InsertBatch(_ context.Context, manifests []*manifest.Manifest) error {
	for _, m := range manifests {
		s.manifests[m.ID] = m
	}
	return nil
}

func (s *fakeStore) GetManifest(_ context.Context, id uuid.UUID) (*manifest.Manifest, error) {
	m, ok := s.manifests[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return m, nil
}

func (s *fakeStore) ListManifests(context.Context, *uuid.UUID, map[string]string) ([]*manifest.Manifest, error) {
	return nil, nil
}

func (s *fakeStore) DB() *gorm.DB { return nil }

func (s *fakeStore) Close() error { return nil }

func buildTestRegistry(t *testing.T) (*registry.Registry, uuid.UUID) {
	t.Helper()

	ser, err := jsoncodec.New("json@v1", reflect.TypeOf(widget{}))
	if err != nil {
		t.Fatalf("jsoncodec.New: %v", err)
	}

	classID := uuid.New()
	reg, err := registry.NewBuilder().
		WithStorable(classID, registry.Class{Type: reflect.TypeOf(widget{}), UnpackerName: "widget@v1"}).
		WithUnpacker(widgetUnpacker{}).
		WithSerializer(ser).
		WithStorage(memory.New()).
		WithDefaultStorage(memory.Name).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return reg, classID
}

func TestSaveSoonCommitsManifest(t *testing.T) {
	reg, _ := buildTestRegistry(t)
	store := newFakeStore()

	sc := NewContext(context.Background(), reg, store)
	sc.SaveSoon(widget{Name: "bolt", Count: 3}, map[string]string{"env": "test"})

	if err := sc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if len(store.manifests) != 1 {
		t.Fatalf("got %d manifests, want 1", len(store.manifests))
	}
}

func TestSaveSoonIsolatesPerObjectFailure(t *testing.T) {
	reg, _ := buildTestRegistry(t)
	store := newFakeStore()

	sc := NewContext(context.Background(), reg, store)
	sc.SaveSoon(widget{Name: "bolt"}, nil)
	sc.SaveSoon("not a registered type", nil) // unresolvable class_id

	err := sc.Close()
	if err == nil {
		t.Fatal("expected aggregated failure for the unresolvable object")
	}
	if len(store.manifests) != 1 {
		t.Fatalf("expected the valid object to still commit, got %d manifests", len(store.manifests))
	}
}

// brokenWidget is a second storable class whose unpacker names a storage
// driver the registry never registers, for TestSaveSoonAggregatesThreeObjectFailure.
type brokenWidget struct{ Name string }

type brokenWidgetUnpacker struct{}

func (brokenWidgetUnpacker) Name() string { return "broken-widget@v1" }

func (brokenWidgetUnpacker) Unpack(object any, _ unpacker.Registry) (map[string]unpacker.UnpackedContent, error) {
	w := object.(brokenWidget)
	return map[string]unpacker.UnpackedContent{
		"body": {Kind: manifest.Value, Value: w, StorageName: "does-not-exist@v1"},
	}, nil
}

func (brokenWidgetUnpacker) Keys(map[string]unpacker.UnpackedContent) []string { return []string{"body"} }

func (brokenWidgetUnpacker) Repack(uuid.UUID, map[string]unpacker.LoadedContent, unpacker.Registry) (any, error) {
	return nil, nil
}

// TestSaveSoonAggregatesThreeObjectFailure is S6: three objects saved in
// one context, the middle one naming a storage the registry never
// registered. On Close, the first and third objects are committed and the
// aggregated error names the second one's failure as storeerr.NotRegistered.
func TestSaveSoonAggregatesThreeObjectFailure(t *testing.T) {
	ser, err := jsoncodec.New("json@v1", reflect.TypeOf(widget{}))
	if err != nil {
		t.Fatalf("jsoncodec.New: %v", err)
	}

	widgetClassID, brokenClassID := uuid.New(), uuid.New()
	reg, err := registry.NewBuilder().
		WithStorable(widgetClassID, registry.Class{Type: reflect.TypeOf(widget{}), UnpackerName: "widget@v1"}).
		WithStorable(brokenClassID, registry.Class{Type: reflect.TypeOf(brokenWidget{}), UnpackerName: "broken-widget@v1"}).
		WithUnpacker(widgetUnpacker{}).
		WithUnpacker(brokenWidgetUnpacker{}).
		WithSerializer(ser).
		WithStorage(memory.New()).
		WithDefaultStorage(memory.Name).
		Build()
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	store := newFakeStore()

	sc := NewContext(context.Background(), reg, store)
	sc.SaveSoon(widget{Name: "first"}, nil)
	sc.SaveSoon(brokenWidget{Name: "second"}, nil) // will fail: unresolvable storage
	sc.SaveSoon(widget{Name: "third"}, nil)

	err = sc.Close()
	if err == nil {
		t.Fatal("expected an aggregated failure for the misregistered storage")
	}
	var se *storeerr.Error
	if !errors.As(err, &se) {
		t.Fatalf("aggregated error is not a storeerr.Error: %v", err)
	}
	if se.Kind != storeerr.NotRegistered {
		t.Fatalf("failure kind = %v, want NotRegistered", se.Kind)
	}
	if len(store.manifests) != 2 {
		t.Fatalf("expected 2 manifests committed (first and third), got %d", len(store.manifests))
	}
}

// streamItem is the element type a streamWidget's content stream yields.
type streamItem struct {
	ID    int    `json:"id"`
	Label string `json:"label"`
}

// streamWidget is a storable class whose single content is a value stream
// rather than a single buffer, exercising saveStream's PeekFirst-based
// codec inference.
type streamWidget struct {
	Items []streamItem
}

type streamWidgetUnpacker struct{}

func (streamWidgetUnpacker) Name() string { return "stream-widget@v1" }

func (streamWidgetUnpacker) Unpack(object any, _ unpacker.Registry) (map[string]unpacker.UnpackedContent, error) {
	w := object.(streamWidget)
	seq := func(yield func(any, error) bool) {
		for _, it := range w.Items {
			if !yield(it, nil) {
				return
			}
		}
	}
	return map[string]unpacker.UnpackedContent{
		"items": {Kind: manifest.Stream, ValueStream: seq},
	}, nil
}

func (streamWidgetUnpacker) Keys(map[string]unpacker.UnpackedContent) []string {
	return []string{"items"}
}

func (streamWidgetUnpacker) Repack(_ uuid.UUID, contents map[string]unpacker.LoadedContent, _ unpacker.Registry) (any, error) {
	var items []streamItem
	for v, err := range contents["items"].ValueStream {
		if err != nil {
			return nil, err
		}
		items = append(items, v.(streamItem))
	}
	return streamWidget{Items: items}, nil
}

// container is a storable class whose body references a second content
// entry by key, exercising unpacker.PointerRef/ResolveRefs.
type container struct {
	Title      string
	Attachment string
}

type containerUnpacker struct{}

func (containerUnpacker) Name() string { return "container@v1" }

func (containerUnpacker) Unpack(object any, _ unpacker.Registry) (map[string]unpacker.UnpackedContent, error) {
	c := object.(container)
	body := map[string]any{
		"title":      c.Title,
		"attachment": unpacker.NewPointerRef("attachment"),
	}
	return map[string]unpacker.UnpackedContent{
		"attachment": {Kind: manifest.Value, Value: c.Attachment, CodecName: "string@v1"},
		"body":       {Kind: manifest.Value, Value: body, CodecName: "doc@v1"},
	}, nil
}

func (containerUnpacker) Keys(map[string]unpacker.UnpackedContent) []string {
	return []string{"attachment", "body"}
}

func (containerUnpacker) Repack(_ uuid.UUID, contents map[string]unpacker.LoadedContent, _ unpacker.Registry) (any, error) {
	resolved, err := unpacker.ResolveRefs(contents["body"].Value, contents)
	if err != nil {
		return nil, err
	}
	body := resolved.(map[string]any)
	return container{
		Title:      body["title"].(string),
		Attachment: body["attachment"].(string),
	}, nil
}

func buildStreamTestRegistry(t *testing.T) *registry.Registry {
	t.Helper()

	streamSer, err := ndjson.New("ndjson@v1", reflect.TypeOf(streamItem{}))
	if err != nil {
		t.Fatalf("ndjson.New: %v", err)
	}

	classID := uuid.New()
	reg, err := registry.NewBuilder().
		WithStorable(classID, registry.Class{Type: reflect.TypeOf(streamWidget{}), UnpackerName: "stream-widget@v1"}).
		WithUnpacker(streamWidgetUnpacker{}).
		WithStreamSerializer(streamSer).
		WithStorage(memory.New()).
		WithDefaultStorage(memory.Name).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return reg
}

// TestSaveSoonStreamsContent is S2: a content with Kind: manifest.Stream and
// no explicit codec hint, exercising saveStream's PeekFirst-based type
// inference and the StorageDidNotConsumeStream contract.
func TestSaveSoonStreamsContent(t *testing.T) {
	reg := buildStreamTestRegistry(t)
	store := newFakeStore()

	sc := NewContext(context.Background(), reg, store)
	sc.SaveSoon(streamWidget{Items: []streamItem{{ID: 1, Label: "a"}, {ID: 2, Label: "b"}}}, nil)

	if err := sc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if len(store.manifests) != 1 {
		t.Fatalf("got %d manifests, want 1", len(store.manifests))
	}
	for _, m := range store.manifests {
		if len(m.Contents) != 1 {
			t.Fatalf("got %d contents, want 1", len(m.Contents))
		}
		if m.Contents[0].SerializerKind != manifest.Stream {
			t.Fatalf("SerializerKind = %v, want manifest.Stream", m.Contents[0].SerializerKind)
		}
		if m.Contents[0].SerializerName != "ndjson@v1" {
			t.Fatalf("SerializerName = %q, want ndjson@v1 (inferred via PeekFirst)", m.Contents[0].SerializerName)
		}
	}
}

func buildContainerTestRegistry(t *testing.T) *registry.Registry {
	t.Helper()

	stringSer, err := jsoncodec.New("string@v1", reflect.TypeOf(""))
	if err != nil {
		t.Fatalf("jsoncodec.New(string): %v", err)
	}
	docSer, err := jsoncodec.New("doc@v1", nil)
	if err != nil {
		t.Fatalf("jsoncodec.New(doc): %v", err)
	}

	classID := uuid.New()
	reg, err := registry.NewBuilder().
		WithStorable(classID, registry.Class{Type: reflect.TypeOf(container{}), UnpackerName: "container@v1"}).
		WithUnpacker(containerUnpacker{}).
		WithSerializer(stringSer).
		WithSerializer(docSer).
		WithStorage(memory.New()).
		WithDefaultStorage(memory.Name).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return reg
}

// TestSaveSoonMixedNestedContentWithPointerRef is S3: one object with two
// contents, the body referencing the sibling "attachment" content by key
// via unpacker.PointerRef.
func TestSaveSoonMixedNestedContentWithPointerRef(t *testing.T) {
	reg := buildContainerTestRegistry(t)
	store := newFakeStore()

	sc := NewContext(context.Background(), reg, store)
	sc.SaveSoon(container{Title: "report", Attachment: "binary payload"}, nil)

	if err := sc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if len(store.manifests) != 1 {
		t.Fatalf("got %d manifests, want 1", len(store.manifests))
	}
	for _, m := range store.manifests {
		if len(m.Contents) != 2 {
			t.Fatalf("got %d contents, want 2", len(m.Contents))
		}
	}
}

func TestSetMaxContentSizeRejectsOversizedContent(t *testing.T) {
	reg, _ := buildTestRegistry(t)
	store := newFakeStore()

	sc := NewContext(context.Background(), reg, store)
	sc.SetMaxContentSize(1) // one byte: any real JSON body exceeds this
	sc.SaveSoon(widget{Name: "bolt", Count: 3}, nil)

	if err := sc.Close(); err == nil {
		t.Fatal("expected ContentTooLarge failure")
	}
	if len(store.manifests) != 0 {
		t.Fatalf("expected no manifest committed, got %d", len(store.manifests))
	}
}
