// Package saver implements the core save algorithm: decompose objects via
// their unpacker, serialize and store each piece concurrently, and commit
// every successfully-built manifest in one transaction.
package saver

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/marmos91/strata/internal/log"
	"github.com/marmos91/strata/pkg/codec"
	"github.com/marmos91/strata/pkg/db"
	"github.com/marmos91/strata/pkg/digest"
	"github.com/marmos91/strata/pkg/manifest"
	"github.com/marmos91/strata/pkg/registry"
	"github.com/marmos91/strata/pkg/storage"
	"github.com/marmos91/strata/pkg/storeerr"
	"github.com/marmos91/strata/pkg/unpacker"
)

// Context is a structured-concurrency boundary for one batch of saves.
// Every SaveSoon call enqueues a child task; Close awaits all of them,
// batch-inserts the manifests that succeeded, and returns the aggregated
// failures of the ones that didn't.
//
// A Context is not safe for reuse after Close.
type Context struct {
	reg   *registry.Registry
	store db.Store

	group *errgroup.Group
	ctx   context.Context

	mu        sync.Mutex
	manifests []*manifest.Manifest
	failures  storeerr.Group

	maxContentSize int64 // 0 means unlimited
}

// SetMaxContentSize caps every content's stored size. A save that exceeds
// it fails with a ContentTooLarge error. Zero (the default) means
// unlimited.
func (c *Context) SetMaxContentSize(max int64) {
	c.maxContentSize = max
}

// NewContext opens a saver context bound to ctx's lifetime: cancelling ctx
// cancels every in-flight SaveSoon task.
func NewContext(ctx context.Context, reg *registry.Registry, store db.Store) *Context {
	g, gctx := errgroup.WithContext(ctx)
	return &Context{reg: reg, store: store, group: g, ctx: gctx}
}

// SaveSoon schedules object to be saved. It returns immediately; the save
// itself runs as a child task of this Context.
func (c *Context) SaveSoon(object any, tags map[string]string) {
	c.group.Go(func() error {
		m, err := c.saveOne(c.ctx, object, tags)
		if err != nil {
			c.mu.Lock()
			c.failures.Add(err)
			c.mu.Unlock()
			return nil // isolate: one failed object must not cancel siblings
		}
		c.mu.Lock()
		c.manifests = append(c.manifests, m)
		c.mu.Unlock()
		return nil
	})
}

// Close awaits every scheduled save, batch-commits the manifests that
// succeeded in one transaction, and returns the aggregated per-object
// failures (nil if every save succeeded).
func (c *Context) Close() error {
	_ = c.group.Wait() // child tasks never return non-nil; failures are isolated above

	if err := c.store.InsertBatch(c.ctx, c.manifests); err != nil {
		return fmt.Errorf("saver: commit batch: %w", err)
	}

	return c.failures.ErrOrNil()
}

func (c *Context) saveOne(ctx context.Context, object any, tags map[string]string) (*manifest.Manifest, error) {
	t := reflect.TypeOf(object)
	classID, unp, err := c.resolveClass(t)
	if err != nil {
		return nil, err
	}

	octx := log.WithContext(ctx, &log.OpContext{Operation: "save", ClassID: classID.String()})

	contents, err := unp.Unpack(object, c.reg)
	if err != nil {
		log.ErrorCtx(octx, "unpack failed", "unpacker", unp.Name(), "err", err)
		return nil, fmt.Errorf("saver: unpack %s: %w", unp.Name(), err)
	}

	m, err := manifest.New(classID, unp.Name(), tags)
	if err != nil {
		return nil, err
	}
	octx = log.WithContext(ctx, &log.OpContext{Operation: "save", ClassID: classID.String(), ManifestID: m.ID.String()})

	keys := unp.Keys(contents)
	rows := make([]manifest.Content, len(keys))

	group, gctx := errgroup.WithContext(octx)
	for i, key := range keys {
		i, key := i, key
		uc := contents[key]
		group.Go(func() error {
			row, err := c.saveContent(gctx, key, uc, tags)
			if err != nil {
				log.ErrorCtx(gctx, "save content failed", "content_key", key, "err", err)
				return fmt.Errorf("saver: content %q: %w", key, err)
			}
			rows[i] = row
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	m.Contents = rows
	log.InfoCtx(octx, "saved manifest", "contents", len(rows))
	return m, nil
}

// resolveClass looks up a class by its concrete Go type, since there is no
// other source of class_id from a bare Go value.
func (c *Context) resolveClass(t reflect.Type) (uuid.UUID, unpacker.Unpacker, error) {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	id, cls, err := c.reg.FindStorableByType(t)
	if err != nil {
		return uuid.Nil, nil, err
	}
	u, err := c.reg.GetUnpacker(cls.UnpackerName)
	if err != nil {
		return uuid.Nil, nil, err
	}
	return id, u, nil
}

func (c *Context) saveContent(ctx context.Context, key string, uc unpacker.UnpackedContent, tags map[string]string) (manifest.Content, error) {
	st, storageName, err := c.resolveStorage(uc.StorageName)
	if err != nil {
		return manifest.Content{}, err
	}

	switch uc.Kind {
	case manifest.Value:
		return c.saveValue(ctx, key, uc, st, storageName, tags)
	case manifest.Stream:
		return c.saveStream(ctx, key, uc, st, storageName, tags)
	default:
		return manifest.Content{}, storeerr.NewUnpackerContract("", fmt.Sprintf("content %q has no kind", key))
	}
}

func (c *Context) resolveStorage(hint string) (storage.Storage, string, error) {
	if hint != "" {
		st, err := c.reg.GetStorage(hint)
		return st, hint, err
	}
	st, err := c.reg.GetDefaultStorage()
	if err != nil {
		return nil, "", err
	}
	return st, st.Name(), nil
}

func (c *Context) saveValue(ctx context.Context, key string, uc unpacker.UnpackedContent, st storage.Storage, storageName string, tags map[string]string) (manifest.Content, error) {
	ser, err := c.resolveSerializer(uc.CodecName, uc.Value)
	if err != nil {
		return manifest.Content{}, err
	}

	env, err := ser.Serialize(uc.Value, nil)
	if err != nil {
		return manifest.Content{}, err
	}
	if len(env.Data) == 0 || env.ContentType == "" {
		return manifest.Content{}, storeerr.NewSerializerContract(ser.Name(), "data/content_type")
	}

	d := digest.Of(env.Data, env.ContentType, env.ContentEncoding)
	if c.maxContentSize > 0 && d.Size > c.maxContentSize {
		return manifest.Content{}, storeerr.NewContentTooLarge(key, d.Size, c.maxContentSize)
	}

	loc, err := st.WriteData(ctx, env.Data, d, tags)
	if err != nil {
		return manifest.Content{}, err
	}
	locConfig, err := st.SerializeConfig(loc)
	if err != nil {
		return manifest.Content{}, err
	}

	return manifest.Content{
		ID:                   uuid.New(),
		ContentKey:           key,
		ContentType:          env.ContentType,
		ContentEncoding:      nilIfEmpty(env.ContentEncoding),
		ContentHash:          d.Hash,
		ContentHashAlgorithm: d.HashAlgorithm,
		ContentSize:          d.Size,
		SerializerName:       ser.Name(),
		SerializerConfig:     manifest.JSON(env.Config),
		SerializerKind:       manifest.Value,
		StorageName:          storageName,
		StorageConfig:        manifest.JSON(locConfig),
	}, nil
}

func (c *Context) saveStream(ctx context.Context, key string, uc unpacker.UnpackedContent, st storage.Storage, storageName string, tags map[string]string) (manifest.Content, error) {
	values := uc.ValueStream

	var ser codec.StreamSerializer
	var err error
	if uc.CodecName != "" {
		ser, err = c.reg.GetStreamSerializer(uc.CodecName)
	} else {
		var first any
		var firstErr error
		var ok bool
		first, firstErr, ok, values = codec.PeekFirst(values)
		if !ok {
			return manifest.Content{}, storeerr.NewUnpackerContract("", fmt.Sprintf("content %q stream yielded no values to infer a codec from", key))
		}
		if firstErr != nil {
			return manifest.Content{}, firstErr
		}
		ser, err = c.reg.GetStreamSerializerByType(reflect.TypeOf(first))
	}
	if err != nil {
		return manifest.Content{}, err
	}

	env, err := ser.SerializeStream(values, nil)
	if err != nil {
		return manifest.Content{}, err
	}
	if env.ContentType == "" {
		return manifest.Content{}, storeerr.NewSerializerContract(ser.Name(), "content_type")
	}

	reader := digest.WrapReader(env.DataStream, env.ContentType, env.ContentEncoding)

	loc, err := st.WriteDataStream(ctx, reader, reader.GetDigest, tags)
	if err != nil {
		return manifest.Content{}, err
	}

	final, err := reader.GetDigest(false)
	if err != nil {
		return manifest.Content{}, storeerr.NewStorageDidNotConsumeStream(storageName, key)
	}
	if c.maxContentSize > 0 && final.Size > c.maxContentSize {
		return manifest.Content{}, storeerr.NewContentTooLarge(key, final.Size, c.maxContentSize)
	}

	locConfig, err := st.SerializeConfig(loc)
	if err != nil {
		return manifest.Content{}, err
	}

	return manifest.Content{
		ID:                   uuid.New(),
		ContentKey:           key,
		ContentType:          final.ContentType,
		ContentEncoding:      nilIfEmpty(final.ContentEncoding),
		ContentHash:          final.Hash,
		ContentHashAlgorithm: final.HashAlgorithm,
		ContentSize:          final.Size,
		SerializerName:       ser.Name(),
		SerializerConfig:     manifest.JSON(env.Config),
		SerializerKind:       manifest.Stream,
		StorageName:          storageName,
		StorageConfig:        manifest.JSON(locConfig),
	}, nil
}

func (c *Context) resolveSerializer(hint string, value any) (codec.Serializer, error) {
	if hint != "" {
		return c.reg.GetSerializer(hint)
	}
	return c.reg.GetSerializerByType(reflect.TypeOf(value))
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
