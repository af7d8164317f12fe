// Package ndjson is the reference StreamSerializer: one JSON value per
// line. It is the streaming counterpart to jsoncodec, exercising the
// Saver/Loader's stream path without requiring any non-stdlib dependency.
package ndjson

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"reflect"

	"github.com/marmos91/strata/pkg/codec"
)

// ContentType is the MIME type this codec produces.
const ContentType = "application/x-ndjson"

// Codec serializes a ValueSeq of one registered Go type to and from
// newline-delimited JSON.
type Codec struct {
	name string
	typ  reflect.Type
}

// New returns a Codec bound to typ. A nil typ decodes each line into `any`.
func New(name string, typ reflect.Type) (*Codec, error) {
	if err := codec.ValidateName(name); err != nil {
		return nil, err
	}
	return &Codec{name: name, typ: typ}, nil
}

func (c *Codec) Name() string { return c.name }

func (c *Codec) Types() []reflect.Type {
	if c.typ == nil {
		return nil
	}
	return []reflect.Type{c.typ}
}

func (c *Codec) ContentTypes() []string { return []string{ContentType} }

// SerializeStream writes one line per value to a pipe, so that a storage
// driver consuming the returned DataStream drives encoding at its own
// pace instead of the whole sequence being buffered up front.
func (c *Codec) SerializeStream(values codec.ValueSeq, config json.RawMessage) (codec.StreamEnvelope, error) {
	pr, pw := io.Pipe()

	go func() {
		enc := json.NewEncoder(pw)
		var encErr error
		for v, err := range values {
			if err != nil {
				encErr = err
				break
			}
			if encErr = enc.Encode(v); encErr != nil {
				break
			}
		}
		pw.CloseWithError(encErr)
	}()

	return codec.StreamEnvelope{DataStream: pr, ContentType: ContentType, Config: config}, nil
}

// DeserializeStream returns a lazy ValueSeq that scans one JSON value per
// line as the caller ranges over it; no line is decoded before it is
// requested.
func (c *Codec) DeserializeStream(env codec.StreamEnvelope) (codec.ValueSeq, error) {
	return func(yield func(any, error) bool) {
		scanner := bufio.NewScanner(env.DataStream)
		scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}

			var v any
			var target reflect.Value
			if c.typ != nil {
				target = reflect.New(c.typ)
			}

			var decodeErr error
			if c.typ != nil {
				decodeErr = json.Unmarshal(line, target.Interface())
				if decodeErr == nil {
					v = target.Elem().Interface()
				}
			} else {
				decodeErr = json.Unmarshal(line, &v)
			}

			if decodeErr != nil {
				yield(nil, fmt.Errorf("ndjson %s: decode line: %w", c.name, decodeErr))
				return
			}
			if !yield(v, nil) {
				return
			}
		}

		if err := scanner.Err(); err != nil {
			yield(nil, fmt.Errorf("ndjson %s: scan: %w", c.name, err))
		}
	}, nil
}

var _ codec.StreamSerializer = (*Codec)(nil)
