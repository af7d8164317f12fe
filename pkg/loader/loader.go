// Package loader implements the core load algorithm: resolve a manifest's
// class and unpacker, fetch and deserialize each content concurrently, and
// repack the original object.
package loader

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/marmos91/strata/internal/log"
	"github.com/marmos91/strata/pkg/db"
	"github.com/marmos91/strata/pkg/manifest"
	"github.com/marmos91/strata/pkg/registry"
	"github.com/marmos91/strata/pkg/storeerr"
	"github.com/marmos91/strata/pkg/unpacker"
)

// Result is one load_soon call's outcome, delivered after Close.
type Result struct {
	ManifestID uuid.UUID
	Object     any
	Err        error
}

// Context is a structured-concurrency boundary for one batch of loads.
// Every LoadSoon call enqueues a child task; Close awaits all of them and
// returns every Result (successes and per-manifest failures alike — a
// failed load never aborts its siblings).
type Context struct {
	reg   *registry.Registry
	store db.Store

	group   *errgroup.Group
	ctx     context.Context
	results chan Result
	n       int
}

// NewContext opens a loader context bound to ctx's lifetime.
func NewContext(ctx context.Context, reg *registry.Registry, store db.Store) *Context {
	g, gctx := errgroup.WithContext(ctx)
	return &Context{reg: reg, store: store, group: g, ctx: gctx, results: make(chan Result, 16)}
}

// LoadSoon schedules manifestID to be loaded. classHint, if non-nil, must
// be a supertype of the manifest's actual class or the load fails with
// TypeMismatch.
func (c *Context) LoadSoon(manifestID uuid.UUID, classHint reflect.Type) {
	c.n++
	c.group.Go(func() error {
		obj, err := c.loadOne(c.ctx, manifestID, classHint)
		c.results <- Result{ManifestID: manifestID, Object: obj, Err: err}
		return nil // isolate: one failed load must not cancel siblings
	})
}

// Close awaits every scheduled load and returns one Result per LoadSoon
// call, in completion order.
func (c *Context) Close() []Result {
	go func() {
		_ = c.group.Wait()
		close(c.results)
	}()

	out := make([]Result, 0, c.n)
	for r := range c.results {
		out = append(out, r)
	}
	return out
}

func (c *Context) loadOne(ctx context.Context, manifestID uuid.UUID, classHint reflect.Type) (any, error) {
	octx := log.WithContext(ctx, &log.OpContext{Operation: "load", ManifestID: manifestID.String()})

	m, err := c.store.GetManifest(ctx, manifestID)
	if err != nil {
		log.ErrorCtx(octx, "load manifest failed", "err", err)
		return nil, fmt.Errorf("loader: load manifest %s: %w", manifestID, err)
	}

	cls, err := c.reg.GetStorable(m.ClassID)
	if err != nil {
		return nil, err
	}
	if classHint != nil && !registry.IsSupertype(classHint, cls.Type) {
		return nil, storeerr.NewTypeMismatch(classHint.String(), cls.Type.String())
	}
	octx = log.WithContext(ctx, &log.OpContext{Operation: "load", ManifestID: manifestID.String(), ClassID: m.ClassID.String()})

	unp, err := c.reg.GetUnpacker(m.UnpackerName)
	if err != nil {
		return nil, err
	}

	contents := make(map[string]unpacker.LoadedContent, len(m.Contents))
	var mu sync.Mutex

	group, gctx := errgroup.WithContext(octx)
	for _, row := range m.Contents {
		row := row
		group.Go(func() error {
			lc, err := c.loadContent(gctx, row)
			if err != nil {
				log.ErrorCtx(gctx, "load content failed", "content_key", row.ContentKey, "err", err)
				return fmt.Errorf("loader: content %q: %w", row.ContentKey, err)
			}
			mu.Lock()
			contents[row.ContentKey] = lc
			mu.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	obj, err := unp.Repack(m.ClassID, contents, c.reg)
	if err != nil {
		return nil, fmt.Errorf("loader: repack %s: %w", unp.Name(), err)
	}
	log.InfoCtx(octx, "loaded manifest", "contents", len(contents))
	return obj, nil
}

func (c *Context) loadContent(ctx context.Context, row manifest.Content) (unpacker.LoadedContent, error) {
	st, err := c.reg.GetStorage(row.StorageName)
	if err != nil {
		return unpacker.LoadedContent{}, err
	}

	loc, err := st.DeserializeConfig(string(row.StorageConfig))
	if err != nil {
		return unpacker.LoadedContent{}, fmt.Errorf("deserialize storage config: %w", err)
	}

	switch row.SerializerKind {
	case manifest.Value:
		ser, err := c.reg.GetSerializer(row.SerializerName)
		if err != nil {
			return unpacker.LoadedContent{}, err
		}

		data, err := st.ReadData(ctx, loc)
		if err != nil {
			return unpacker.LoadedContent{}, err
		}

		encoding := ""
		if row.ContentEncoding != nil {
			encoding = *row.ContentEncoding
		}
		env := codecEnvelope(data, row.ContentType, encoding, row.SerializerConfig)

		value, err := ser.Deserialize(env)
		if err != nil {
			return unpacker.LoadedContent{}, err
		}

		return unpacker.LoadedContent{
			Kind:           manifest.Value,
			Value:          value,
			SerializerName: ser.Name(),
			StorageName:    row.StorageName,
		}, nil

	case manifest.Stream:
		ser, err := c.reg.GetStreamSerializer(row.SerializerName)
		if err != nil {
			return unpacker.LoadedContent{}, err
		}

		rc, err := st.ReadDataStream(ctx, loc)
		if err != nil {
			return unpacker.LoadedContent{}, err
		}

		encoding := ""
		if row.ContentEncoding != nil {
			encoding = *row.ContentEncoding
		}
		env := codecStreamEnvelope(rc, row.ContentType, encoding, row.SerializerConfig)

		values, err := ser.DeserializeStream(env)
		if err != nil {
			rc.Close()
			return unpacker.LoadedContent{}, err
		}

		return unpacker.LoadedContent{
			Kind:           manifest.Stream,
			ValueStream:    values,
			SerializerName: ser.Name(),
			StorageName:    row.StorageName,
		}, nil

	default:
		return unpacker.LoadedContent{}, storeerr.NewUnpackerContract("", fmt.Sprintf("content %q has unknown serializer kind %d", row.ContentKey, row.SerializerKind))
	}
}
