package manifest

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSON is a raw JSON document column. It round-trips the exact bytes the
// caller supplied (including key order, on dialects that preserve it in
// their JSON/JSONB storage) while still validating well-formedness on the
// way in, even on dialects (SQLite) whose JSON column is really just TEXT
// and enforces nothing on its own.
type JSON []byte

// Value implements driver.Valuer. An empty/nil JSON is stored as SQL NULL.
func (j JSON) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	if !json.Valid(j) {
		return nil, fmt.Errorf("manifest: refusing to store invalid JSON: %s", j)
	}
	return string(j), nil
}

// Scan implements sql.Scanner.
func (j *JSON) Scan(src any) error {
	if src == nil {
		*j = nil
		return nil
	}

	var b []byte
	switch v := src.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("manifest: cannot scan %T into JSON", src)
	}

	if !json.Valid(b) {
		return fmt.Errorf("manifest: column holds invalid JSON: %s", b)
	}

	*j = append((*j)[:0], b...)
	return nil
}

// MarshalJSON makes JSON behave like json.RawMessage when the Manifest
// itself is marshaled.
func (j JSON) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("null"), nil
	}
	return j, nil
}

// UnmarshalJSON makes JSON behave like json.RawMessage when the Manifest
// itself is unmarshaled.
func (j *JSON) UnmarshalJSON(data []byte) error {
	*j = append((*j)[:0], data...)
	return nil
}
