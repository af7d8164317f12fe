// Package manifest defines the two persisted entities a Saver writes and a
// Loader reads: Manifest (one object) and Content (one serialized piece of
// it), mirroring the two-table layout of the database adapter.
package manifest

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Kind distinguishes a Value content (one buffer) from a Stream content
// (one byte stream), matching the contents.serializer_kind column.
type Kind int16

const (
	// Value indicates the content was produced by a Serializer.
	Value Kind = 1
	// Stream indicates the content was produced by a StreamSerializer.
	Stream Kind = 2
)

// Manifest is the persisted record of one saved object: its class, the
// unpacker that decomposed it, arbitrary tags, and its ordered Contents.
type Manifest struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	Tags         JSON      `gorm:"type:jsonb"`
	ClassID      uuid.UUID `gorm:"type:uuid;not null;index"`
	UnpackerName string    `gorm:"not null"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`

	Contents []Content `gorm:"foreignKey:ManifestID;constraint:OnDelete:CASCADE"`
}

// TableName pins the gorm table name to the one the spec names.
func (Manifest) TableName() string { return "manifests" }

// Content is one named, serialized piece of a Manifest: the bytes (or
// stream) a codec produced, which storage driver holds them, and enough
// metadata to reverse both without consulting the object that produced it.
type Content struct {
	ID                   uuid.UUID `gorm:"type:uuid;primaryKey"`
	ManifestID           uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_manifest_content_key"`
	ContentKey           string    `gorm:"not null;uniqueIndex:idx_manifest_content_key"`
	ContentType          string    `gorm:"not null"`
	ContentEncoding      *string
	ContentHash          string `gorm:"not null"`
	ContentHashAlgorithm string `gorm:"not null"`
	ContentSize          int64  `gorm:"not null"`
	SerializerName       string `gorm:"not null"`
	SerializerConfig     JSON   `gorm:"type:jsonb"`
	SerializerKind       Kind   `gorm:"not null"`
	StorageName          string `gorm:"not null"`
	StorageConfig        JSON   `gorm:"type:jsonb"`
	CreatedAt            time.Time `gorm:"autoCreateTime"`
}

// TableName pins the gorm table name to the one the spec names.
func (Content) TableName() string { return "contents" }

// New allocates a Manifest with a fresh ID, ready to receive Contents.
func New(classID uuid.UUID, unpackerName string, tags map[string]string) (*Manifest, error) {
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return nil, err
	}
	return &Manifest{
		ID:           uuid.New(),
		Tags:         tagsJSON,
		ClassID:      classID,
		UnpackerName: unpackerName,
	}, nil
}
