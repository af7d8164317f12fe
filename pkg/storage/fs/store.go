// Package fs provides a filesystem-backed Storage driver, adapted from the
// repo's temp->rename block store: writes land under a provisional path
// first, then are atomically renamed to their final, content-addressed
// path once the digest is known.
package fs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/marmos91/strata/pkg/bufpool"
	"github.com/marmos91/strata/pkg/digest"
	"github.com/marmos91/strata/pkg/storage"
	"github.com/marmos91/strata/pkg/storeerr"
)

// Name is the versioned registry name for this driver.
const Name = "fs@v1"

// Locator addresses a file by its path relative to the store's base
// directory.
type Locator struct {
	Path string `json:"path"`
}

// Config configures a filesystem Store.
type Config struct {
	// BasePath is the root directory for object storage.
	BasePath string

	// CreateDir creates BasePath if it does not exist. Default: true.
	CreateDir bool

	// DirMode is the permission mode for created directories. Default: 0755.
	DirMode os.FileMode

	// FileMode is the permission mode for written files. Default: 0644.
	FileMode os.FileMode
}

// DefaultConfig returns Config with CreateDir, DirMode, and FileMode set to
// their defaults for the given base path.
func DefaultConfig(basePath string) Config {
	return Config{BasePath: basePath, CreateDir: true, DirMode: 0o755, FileMode: 0o644}
}

// Store is a filesystem-backed Storage implementation. Objects are stored
// content-addressed under digest.Path(), fanned out by hash prefix.
type Store struct {
	mu       sync.Mutex
	basePath string
	dirMode  os.FileMode
	fileMode os.FileMode
	closed   bool
}

// New creates a Store rooted at cfg.BasePath, creating the directory if
// requested.
func New(cfg Config) (*Store, error) {
	if cfg.BasePath == "" {
		return nil, errors.New("fs: base path is required")
	}
	if cfg.DirMode == 0 {
		cfg.DirMode = 0o755
	}
	if cfg.FileMode == 0 {
		cfg.FileMode = 0o644
	}

	if cfg.CreateDir {
		if err := os.MkdirAll(cfg.BasePath, cfg.DirMode); err != nil {
			return nil, err
		}
	}

	info, err := os.Stat(cfg.BasePath)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, errors.New("fs: base path is not a directory")
	}

	return &Store{basePath: cfg.BasePath, dirMode: cfg.DirMode, fileMode: cfg.FileMode}, nil
}

func (s *Store) Name() string { return Name }

func (s *Store) resolve(relPath string) string {
	return filepath.Join(s.basePath, filepath.FromSlash(relPath))
}

func (s *Store) writeAtomic(relPath string, data []byte) error {
	path := s.resolve(relPath)
	if err := os.MkdirAll(filepath.Dir(path), s.dirMode); err != nil {
		return err
	}

	tmp := path + ".tmp-" + uuid.NewString()
	if err := os.WriteFile(tmp, data, s.fileMode); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

func (s *Store) WriteData(_ context.Context, data []byte, d digest.Digest, _ map[string]string) (storage.Locator, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, errors.New("fs: store is closed")
	}

	if err := s.writeAtomic(d.Path(), data); err != nil {
		return nil, err
	}
	return Locator{Path: d.Path()}, nil
}

func (s *Store) ReadData(_ context.Context, loc storage.Locator) ([]byte, error) {
	l, ok := loc.(Locator)
	if !ok {
		return nil, storeerr.New(storeerr.NoStorageData, "locator is not a fs.Locator")
	}

	data, err := os.ReadFile(s.resolve(l.Path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, storeerr.NewNoStorageData(Name, l.Path)
		}
		return nil, err
	}
	return data, nil
}

// WriteDataStream stages the incoming bytes under a provisional, uuid-named
// temp path (since the final, content-addressed path is unknown until
// getDigest resolves), then renames into place once the digest is final.
// The temp file is always removed, on both the success and error paths.
func (s *Store) WriteDataStream(_ context.Context, src io.Reader, getDigest storage.GetDigest, _ map[string]string) (storage.Locator, error) {
	if _, err := getDigest(true); err != nil {
		return nil, err
	}

	tmpRel := "tmp/" + uuid.NewString()
	tmpPath := s.resolve(tmpRel)
	if err := os.MkdirAll(filepath.Dir(tmpPath), s.dirMode); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, s.fileMode)
	if err != nil {
		return nil, err
	}

	buf := bufpool.Get(bufpool.DefaultMediumSize)
	_, copyErr := io.CopyBuffer(f, src, buf)
	bufpool.Put(buf)
	closeErr := f.Close()
	if copyErr != nil {
		os.Remove(tmpPath)
		return nil, copyErr
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return nil, closeErr
	}

	d, err := getDigest(false)
	if err != nil {
		os.Remove(tmpPath)
		return nil, storeerr.NewStorageDidNotConsumeStream(Name, "")
	}

	finalPath := s.resolve(d.Path())
	if err := os.MkdirAll(filepath.Dir(finalPath), s.dirMode); err != nil {
		os.Remove(tmpPath)
		return nil, err
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return nil, err
	}

	return Locator{Path: d.Path()}, nil
}

func (s *Store) ReadDataStream(_ context.Context, loc storage.Locator) (io.ReadCloser, error) {
	l, ok := loc.(Locator)
	if !ok {
		return nil, storeerr.New(storeerr.NoStorageData, "locator is not a fs.Locator")
	}

	f, err := os.Open(s.resolve(l.Path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, storeerr.NewNoStorageData(Name, l.Path)
		}
		return nil, err
	}
	return f, nil
}

func (s *Store) SerializeConfig(loc storage.Locator) (string, error) {
	l, ok := loc.(Locator)
	if !ok {
		return "", storeerr.New(storeerr.NoStorageData, "locator is not a fs.Locator")
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

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

var _ storage.Storage = (*Store)(nil)
