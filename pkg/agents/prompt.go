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

// Package agents implements registry.Agent for the model backends a
// workflow step can target: Anthropic's Messages API directly, and Bedrock
// Runtime for teams that must keep inference traffic inside their own AWS
// account. Both share one prompt-templating layer so a descriptor's prompt
// text never has to know which backend will render it.
package agents

import (
	"github.com/tmc/langchaingo/prompts"

	apperrors "github.com/taskmesh/orchestrator-core/internal/errortypes"
	"github.com/taskmesh/orchestrator-core/pkg/docstore"
)

// PromptTemplate renders an agent's instruction text against a task's
// input document, substituting {{.field}} placeholders from the document's
// top-level fields.
type PromptTemplate struct {
	template prompts.PromptTemplate
}

// NewPromptTemplate compiles template text using Go's text/template syntax
// via langchaingo's PromptTemplate, with inputVariables naming every
// placeholder the template references.
func NewPromptTemplate(template string, inputVariables ...string) PromptTemplate {
	return PromptTemplate{
		template: prompts.PromptTemplate{
			Template:       template,
			TemplateFormat: prompts.TemplateFormatGoTemplate,
			InputVariables: inputVariables,
		},
	}
}

// Render substitutes input's top-level fields into the compiled template.
func (p PromptTemplate) Render(input docstore.Document) (string, error) {
	rendered, err := p.template.Format(input.Raw())
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrorTypeValidation, "render agent prompt template")
	}
	return rendered, nil
}
