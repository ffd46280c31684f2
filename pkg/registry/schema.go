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

package registry

import (
	"context"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"

	apperrors "github.com/taskmesh/orchestrator-core/internal/errortypes"
	"github.com/taskmesh/orchestrator-core/pkg/docstore"
)

// ToolSchema pairs a registered tool name with the OpenAPI schema its input
// document must satisfy, so a malformed envelope fails before the tool's
// Invoke ever runs.
type ToolSchema struct {
	schemas *Registry[*openapi3.Schema]
}

// NewToolSchema constructs an empty input-schema catalog.
func NewToolSchema() *ToolSchema {
	return &ToolSchema{schemas: New[*openapi3.Schema]("tool-schema")}
}

// RegisterSchema loads a JSON Schema document (as an OpenAPI 3 Schema
// object) for toolName's input shape.
func (t *ToolSchema) RegisterSchema(toolName string, raw []byte) error {
	schema := &openapi3.Schema{}
	if err := schema.UnmarshalJSON(raw); err != nil {
		return fmt.Errorf("parse input schema for tool %q: %w", toolName, err)
	}
	t.schemas.Replace(toolName, schema)
	return nil
}

// Validate checks input against toolName's registered schema. A tool with
// no registered schema is always considered valid, since schema
// registration is optional per tool.
func (t *ToolSchema) Validate(ctx context.Context, toolName string, input docstore.Document) error {
	schema, err := t.schemas.Get(toolName)
	if err != nil {
		return nil
	}
	if err := schema.VisitJSON(input.Raw()); err != nil {
		return apperrors.Wrapf(err, apperrors.ErrorTypeValidation, "input for tool %q failed schema validation", toolName)
	}
	return nil
}
