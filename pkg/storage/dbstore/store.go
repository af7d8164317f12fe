// Package dbstore is a Storage driver that keeps small payloads as a blob
// column in the same relational database as the manifest/content tables,
// avoiding a second storage system for deployments that only ever persist
// small objects.
package dbstore

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/marmos91/strata/pkg/digest"
	"github.com/marmos91/strata/pkg/storage"
	"github.com/marmos91/strata/pkg/storeerr"
)

// Name is the versioned registry name for this driver.
const Name = "dbstore@v1"

// Locator addresses a blob row by its primary key.
type Locator struct {
	ID uuid.UUID `json:"id"`
}

// blob is the row dbstore owns; New migrates its table on the gorm handle
// it is given, typically the same database as manifests and contents.
type blob struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Data       []byte    `gorm:"type:bytea"`
	Hash       string
	HashAlgo   string
	Size       int64
	CreatedAt  time.Time `gorm:"autoCreateTime"`
}

func (blob) TableName() string { return "dbstore_blobs" }

// Store is a gorm-backed Storage implementation.
type Store struct {
	gdb *gorm.DB
}

// New wraps an already-open gorm handle (typically db.Store.DB()) and
// ensures its blob table exists.
func New(gdb *gorm.DB) (*Store, error) {
	if err := gdb.AutoMigrate(&blob{}); err != nil {
		return nil, err
	}
	return &Store{gdb: gdb}, nil
}

func (s *Store) Name() string { return Name }

func (s *Store) WriteData(ctx context.Context, data []byte, d digest.Digest, _ map[string]string) (storage.Locator, error) {
	row := blob{ID: uuid.New(), Data: data, Hash: d.Hash, HashAlgo: d.HashAlgorithm, Size: d.Size}
	if err := s.gdb.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, err
	}
	return Locator{ID: row.ID}, nil
}

func (s *Store) ReadData(ctx context.Context, loc storage.Locator) ([]byte, error) {
	l, ok := loc.(Locator)
	if !ok {
		return nil, storeerr.New(storeerr.NoStorageData, "locator is not a dbstore.Locator")
	}

	var row blob
	err := s.gdb.WithContext(ctx).First(&row, "id = ?", l.ID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, storeerr.NewNoStorageData(Name, l.ID.String())
		}
		return nil, err
	}
	return row.Data, nil
}

func (s *Store) WriteDataStream(ctx context.Context, src io.Reader, getDigest storage.GetDigest, tags map[string]string) (storage.Locator, error) {
	if _, err := getDigest(true); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(src)
	if err != nil {
		return nil, err
	}

	d, err := getDigest(false)
	if err != nil {
		return nil, storeerr.NewStorageDidNotConsumeStream(Name, "")
	}

	return s.WriteData(ctx, data, d.Digest, tags)
}

func (s *Store) ReadDataStream(ctx context.Context, loc storage.Locator) (io.ReadCloser, error) {
	data, err := s.ReadData(ctx, loc)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *Store) SerializeConfig(loc storage.Locator) (string, error) {
	l, ok := loc.(Locator)
	if !ok {
		return "", storeerr.New(storeerr.NoStorageData, "locator is not a dbstore.Locator")
	}
	b, err := json.Marshal(l)
	return string(b), err
}

func (s *Store) DeserializeConfig(config string) (storage.Locator, error) {
	var l Locator
	if err := json.Unmarshal([]byte(config), &l); err != nil {
		return nil, err
	}
	return l, nil
}

func (s *Store) Close() error { return nil }

var _ storage.Storage = (*Store)(nil)
