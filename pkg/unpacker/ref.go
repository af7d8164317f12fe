package unpacker

import (
	"encoding/base64"
	"fmt"
)

// RefTag is the discriminant field name of both tagged-union ref shapes an
// unpacker's body document may embed.
const RefTag = "__ref__"

// RefContentKind marks an inline content envelope: the payload is embedded
// in the body itself, base64-encoded.
const RefContentKind = "content"

// RefPointerKind marks a back-reference: the payload is stored as its own
// sibling entry in the contents map returned by Unpack.
const RefPointerKind = "ref"

// ContentRef is the inline envelope shape: `{"__ref__": "content",
// content_base64, content_encoding, content_type, serializer_name}`.
type ContentRef struct {
	Ref             string `json:"__ref__"`
	ContentBase64   string `json:"content_base64"`
	ContentEncoding string `json:"content_encoding,omitempty"`
	ContentType     string `json:"content_type"`
	SerializerName  string `json:"serializer_name"`
}

// NewContentRef builds a ContentRef embedding data inline.
func NewContentRef(data []byte, contentType, contentEncoding, serializerName string) ContentRef {
	return ContentRef{
		Ref:             RefContentKind,
		ContentBase64:   base64.StdEncoding.EncodeToString(data),
		ContentEncoding: contentEncoding,
		ContentType:     contentType,
		SerializerName:  serializerName,
	}
}

// Decode returns the raw bytes this ContentRef embeds.
func (r ContentRef) Decode() ([]byte, error) {
	return base64.StdEncoding.DecodeString(r.ContentBase64)
}

// PointerRef is the back-reference shape: `{"__ref__": "ref", "ref": key}`,
// pointing at another entry in the same Unpack-returned map.
type PointerRef struct {
	Ref string `json:"__ref__"`
	Key string `json:"ref"`
}

// NewPointerRef builds a PointerRef pointing at contentKey.
func NewPointerRef(contentKey string) PointerRef {
	return PointerRef{Ref: RefPointerKind, Key: contentKey}
}

// AsRefMap inspects a decoded JSON node (as produced by encoding/json's
// generic `any` unmarshal: map[string]any, []any, or a scalar) and reports
// whether it is a ref envelope, returning its discriminant.
func AsRefMap(node any) (m map[string]any, kind string, ok bool) {
	mm, isMap := node.(map[string]any)
	if !isMap {
		return nil, "", false
	}
	tag, hasTag := mm[RefTag].(string)
	if !hasTag {
		return nil, "", false
	}
	return mm, tag, true
}

// ResolveRefs recursively walks a decoded JSON document, replacing every
// PointerRef with the referenced sibling's already-loaded value and every
// ContentRef with its decoded bytes, leaving every other node untouched.
// Repack implementations that use the `"__ref__"` body convention call
// this once on their decoded body document before interpreting it.
func ResolveRefs(node any, siblings map[string]LoadedContent) (any, error) {
	switch v := node.(type) {
	case map[string]any:
		if _, kind, ok := AsRefMap(v); ok {
			switch kind {
			case RefPointerKind:
				key, _ := v["ref"].(string)
				sib, found := siblings[key]
				if !found {
					return nil, fmt.Errorf("unpacker: dangling ref to content key %q", key)
				}
				return sib.Value, nil
			case RefContentKind:
				b64, _ := v["content_base64"].(string)
				data, err := base64.StdEncoding.DecodeString(b64)
				if err != nil {
					return nil, fmt.Errorf("unpacker: decode inline content ref: %w", err)
				}
				return data, nil
			default:
				return nil, fmt.Errorf("unpacker: unknown ref kind %q", kind)
			}
		}

		out := make(map[string]any, len(v))
		for k, child := range v {
			resolved, err := ResolveRefs(child, siblings)
			if err != nil {
				return nil, err
			}
			out[k] = resolved
		}
		return out, nil

	case []any:
		out := make([]any, len(v))
		for i, child := range v {
			resolved, err := ResolveRefs(child, siblings)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil

	default:
		return node, nil
	}
}
