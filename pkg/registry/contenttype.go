package registry

import (
	"fmt"
	"strings"
)

// parsedContentType is a MIME type split into its type/subtype and an
// ordered parameter list. Parameters are order-significant: "a=1;b=2" and
// "b=2;a=1" are distinct contentType registrations, matching spec's rule
// that lookups compare the full parsed tuple rather than a normalized set.
type parsedContentType struct {
	typeSubtype string
	params      []contentTypeParam
}

type contentTypeParam struct {
	key   string
	value string
}

func parseContentType(s string) (parsedContentType, error) {
	parts := strings.Split(s, ";")
	if len(parts) == 0 || strings.TrimSpace(parts[0]) == "" {
		return parsedContentType{}, fmt.Errorf("registry: empty content type")
	}

	typeSubtype := strings.ToLower(strings.TrimSpace(parts[0]))
	if !strings.Contains(typeSubtype, "/") {
		return parsedContentType{}, fmt.Errorf("registry: malformed content type %q", s)
	}

	var params []contentTypeParam
	for _, p := range parts[1:] {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		kv := strings.SplitN(p, "=", 2)
		key := strings.ToLower(strings.TrimSpace(kv[0]))
		value := ""
		if len(kv) == 2 {
			value = strings.Trim(strings.TrimSpace(kv[1]), `"`)
		}
		params = append(params, contentTypeParam{key: key, value: value})
	}

	return parsedContentType{typeSubtype: typeSubtype, params: params}, nil
}

func (p parsedContentType) equal(other parsedContentType) bool {
	if p.typeSubtype != other.typeSubtype {
		return false
	}
	if len(p.params) != len(other.params) {
		return false
	}
	for i := range p.params {
		if p.params[i] != other.params[i] {
			return false
		}
	}
	return true
}
