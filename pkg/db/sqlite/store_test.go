package sqlite

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/marmos91/strata/pkg/manifest"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.CreateAll(context.Background()); err != nil {
		t.Fatalf("CreateAll: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestManifest(t *testing.T) *manifest.Manifest {
	t.Helper()
	m, err := manifest.New(uuid.New(), "widget@v1", map[string]string{"env": "test"})
	if err != nil {
		t.Fatalf("manifest.New: %v", err)
	}
	m.Contents = []manifest.Content{{
		ID:                   uuid.New(),
		ManifestID:           m.ID,
		ContentKey:           "body",
		ContentType:          "application/json",
		ContentHash:          "deadbeef",
		ContentHashAlgorithm: "sha256",
		ContentSize:          4,
		SerializerName:       "json@v1",
		SerializerKind:       manifest.Value,
		StorageName:          "memory@v1",
	}}
	return m
}

func TestInsertBatchAndGetManifest(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	m := newTestManifest(t)
	if err := s.InsertBatch(ctx, []*manifest.Manifest{m}); err != nil {
		t.Fatalf("InsertBatch: %v", err)
	}

	got, err := s.GetManifest(ctx, m.ID)
	if err != nil {
		t.Fatalf("GetManifest: %v", err)
	}
	if got.ID != m.ID {
		t.Fatalf("got ID %s, want %s", got.ID, m.ID)
	}
	if len(got.Contents) != 1 || got.Contents[0].ContentKey != "body" {
		t.Fatalf("got Contents %+v", got.Contents)
	}
}

func TestGetManifestMissingReturnsError(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.GetManifest(context.Background(), uuid.New()); err == nil {
		t.Fatal("expected error for unknown manifest id")
	}
}

func TestInsertBatchEmptyIsNoop(t *testing.T) {
	s := newTestStore(t)
	if err := s.InsertBatch(context.Background(), nil); err != nil {
		t.Fatalf("InsertBatch(nil): %v", err)
	}
}

func TestListManifestsFiltersByClass(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	m1 := newTestManifest(t)
	m2 := newTestManifest(t)
	if err := s.InsertBatch(ctx, []*manifest.Manifest{m1, m2}); err != nil {
		t.Fatalf("InsertBatch: %v", err)
	}

	out, err := s.ListManifests(ctx, &m1.ClassID, nil)
	if err != nil {
		t.Fatalf("ListManifests: %v", err)
	}
	if len(out) != 1 || out[0].ID != m1.ID {
		t.Fatalf("got %d manifests, want 1 matching %s", len(out), m1.ID)
	}
}
