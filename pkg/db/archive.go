package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/marmos91/strata/pkg/manifest"
)

// logicalNameTag is the tag key ArchivingManifestStore keys
// replace-detection on. A caller opts a save into archival by setting this
// tag to a name stable across versions of the same logical object.
const logicalNameTag = "logical_name"

// ArchivedManifest is a snapshot of a manifest row (with its contents)
// taken at the moment a newer manifest for the same (class, logical_name)
// pair replaced it.
type ArchivedManifest struct {
	ID           uuid.UUID     `gorm:"type:uuid;primaryKey"`
	ManifestID   uuid.UUID     `gorm:"type:uuid;not null;index"`
	ClassID      uuid.UUID     `gorm:"type:uuid;not null;index"`
	UnpackerName string        `gorm:"not null"`
	Tags         manifest.JSON `gorm:"type:jsonb"`
	Contents     manifest.JSON `gorm:"type:jsonb"`
	CreatedAt    time.Time
	ArchivedAt   time.Time `gorm:"autoCreateTime"`
}

// TableName pins the gorm table name.
func (ArchivedManifest) TableName() string { return "archived_manifests" }

// ArchivingManifestStore decorates a Store so that inserting a manifest
// tagged with logical_name archives whatever live manifest previously held
// that (class_id, logical_name) pair into archived_manifests instead of
// letting its contents rows cascade away unrecorded. Manifests with no
// logical_name tag behave exactly as they would against the base Store:
// archival is opt-in per save, and the base store stays append-only.
type ArchivingManifestStore struct {
	Store
}

// NewArchivingManifestStore wraps base with replace-archival behavior.
func NewArchivingManifestStore(base Store) *ArchivingManifestStore {
	return &ArchivingManifestStore{Store: base}
}

// CreateAll brings the base schema into being, then adds the
// archived_manifests table.
func (a *ArchivingManifestStore) CreateAll(ctx context.Context) error {
	if err := a.Store.CreateAll(ctx); err != nil {
		return err
	}
	if err := a.Store.DB().WithContext(ctx).AutoMigrate(&ArchivedManifest{}); err != nil {
		return fmt.Errorf("db: auto migrate archived_manifests: %w", err)
	}
	return nil
}

// InsertBatch archives the previous live manifest for every incoming
// manifest tagged with logical_name, then inserts the new batch via the
// wrapped Store.
func (a *ArchivingManifestStore) InsertBatch(ctx context.Context, manifests []*manifest.Manifest) error {
	if len(manifests) == 0 {
		return nil
	}

	for _, m := range manifests {
		name, ok := logicalName(m.Tags)
		if !ok {
			continue
		}
		prevs, err := a.Store.ListManifests(ctx, &m.ClassID, map[string]string{logicalNameTag: name})
		if err != nil {
			return fmt.Errorf("db: find previous manifest for %q: %w", name, err)
		}
		for _, prev := range prevs {
			if err := a.archive(ctx, prev); err != nil {
				return err
			}
		}
	}

	return a.Store.InsertBatch(ctx, manifests)
}

// archive moves one superseded manifest (and its contents) into
// archived_manifests, in its own transaction. A concurrent archive of the
// same row loses the race on the manifest delete and surfaces gorm's
// "record not found"/no-rows-affected as an error; callers that need
// linearizable replace-and-archive should serialize saves per logical_name
// themselves, the same way the base Store expects callers to serialize
// concurrent writers to one manifest ID.
func (a *ArchivingManifestStore) archive(ctx context.Context, prev *manifest.Manifest) error {
	contentsJSON, err := json.Marshal(prev.Contents)
	if err != nil {
		return fmt.Errorf("db: marshal archived contents: %w", err)
	}

	return a.Store.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record := &ArchivedManifest{
			ID:           uuid.New(),
			ManifestID:   prev.ID,
			ClassID:      prev.ClassID,
			UnpackerName: prev.UnpackerName,
			Tags:         prev.Tags,
			Contents:     manifest.JSON(contentsJSON),
			CreatedAt:    prev.CreatedAt,
		}
		if err := tx.Create(record).Error; err != nil {
			return fmt.Errorf("db: archive manifest %s: %w", prev.ID, err)
		}
		if err := tx.Where("manifest_id = ?", prev.ID).Delete(&manifest.Content{}).Error; err != nil {
			return fmt.Errorf("db: delete superseded contents %s: %w", prev.ID, err)
		}
		res := tx.Delete(&manifest.Manifest{}, "id = ?", prev.ID)
		if res.Error != nil {
			return fmt.Errorf("db: delete superseded manifest %s: %w", prev.ID, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("db: delete superseded manifest %s: %w", prev.ID, gorm.ErrRecordNotFound)
		}
		return nil
	})
}

func logicalName(tags manifest.JSON) (string, bool) {
	if len(tags) == 0 {
		return "", false
	}
	var m map[string]string
	if err := json.Unmarshal(tags, &m); err != nil {
		return "", false
	}
	name, ok := m[logicalNameTag]
	return name, ok && name != ""
}
