// Package entity provides base types for all domain entities.
package entity

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"maps"
)

// Attributes holds free-form specification fields (JSONB in PostgreSQL),
// e.g. lot shade, finish or mill name.
// Numbers are decoded as json.Number so measurements keep their precision.
type Attributes map[string]any

// Scan implements sql.Scanner.
func (a *Attributes) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("scan attributes from %T", src)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		*a = nil
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out Attributes
	if err := dec.Decode(&out); err != nil {
		return fmt.Errorf("decode attributes: %w", err)
	}
	*a = out
	return nil
}

// Value implements driver.Valuer.
func (a Attributes) Value() (driver.Value, error) {
	if a == nil {
		return nil, nil
	}
	return json.Marshal(map[string]any(a))
}

// Clone creates a shallow copy.
func (a Attributes) Clone() Attributes {
	return maps.Clone(a)
}
