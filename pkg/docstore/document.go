// Copyright 2026 The Taskmesh Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package docstore models the free-form, JSON-shaped documents the core
// treats task/subtask input, output and audit metadata as (Design Notes:
// "a systems language should model them as a structured-document value").
package docstore

import (
	"database/sql/driver"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// Document is a tagged JSON DOM. The zero value is an empty object.
type Document struct {
	fields map[string]any
}

// NewDocument wraps an already-decoded map as a Document.
func NewDocument(fields map[string]any) Document {
	if fields == nil {
		fields = map[string]any{}
	}
	return Document{fields: fields}
}

// Parse validates and decodes raw JSON bytes into a Document. Validation
// uses jx's fast scanner so malformed envelopes are rejected before the
// (comparatively expensive) map[string]any decode runs.
func Parse(raw []byte) (Document, error) {
	if len(raw) == 0 {
		return NewDocument(nil), nil
	}
	if !jx.Valid(raw) {
		return Document{}, errors.New("docstore: invalid JSON document")
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Document{}, errors.Wrap(err, "docstore: decode document")
	}
	return NewDocument(fields), nil
}

// IsZero reports whether the document carries no fields.
func (d Document) IsZero() bool {
	return len(d.fields) == 0
}

// Get returns the top-level field value.
func (d Document) Get(key string) (any, bool) {
	v, ok := d.fields[key]
	return v, ok
}

// Lookup walks a dotted path of nested object keys, e.g.
// Lookup("_trace_context", "trace_id").
func (d Document) Lookup(path ...string) (any, bool) {
	if len(path) == 0 {
		return nil, false
	}
	cur := any(d.fields)
	for _, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		v, ok := m[key]
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

// With returns a copy of the document with key set to value.
func (d Document) With(key string, value any) Document {
	out := d.clone()
	out.fields[key] = value
	return out
}

// Merge returns a new document that is d overlaid with over: top-level keys
// in over win. This implements the orchestrator's
// merge(parent_input, output_of_previous_step).
func (d Document) Merge(over Document) Document {
	out := d.clone()
	for k, v := range over.fields {
		out.fields[k] = v
	}
	return out
}

func (d Document) clone() Document {
	out := make(map[string]any, len(d.fields))
	for k, v := range d.fields {
		out[k] = v
	}
	return Document{fields: out}
}

// Raw returns the document's fields for consumers (gojq, logging) that need
// a plain interface{} view.
func (d Document) Raw() map[string]any {
	return d.fields
}

// MarshalJSON implements json.Marshaler.
func (d Document) MarshalJSON() ([]byte, error) {
	if d.fields == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(d.fields)
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Document) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		d.fields = map[string]any{}
		return nil
	}
	if !jx.Valid(data) {
		return errors.New("docstore: invalid JSON document")
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return errors.Wrap(err, "docstore: decode document")
	}
	d.fields = fields
	return nil
}

// Value implements driver.Valuer so a Document can be written straight into
// a JSONB column via pgx or sqlx.
func (d Document) Value() (driver.Value, error) {
	b, err := d.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Scan implements sql.Scanner for reading a JSONB column back out.
func (d *Document) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		d.fields = map[string]any{}
		return nil
	case []byte:
		return d.UnmarshalJSON(v)
	case string:
		return d.UnmarshalJSON([]byte(v))
	default:
		return errors.Newf("docstore: cannot scan %T into Document", src)
	}
}
