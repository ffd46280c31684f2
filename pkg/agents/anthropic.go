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

package agents

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	apperrors "github.com/taskmesh/orchestrator-core/internal/errortypes"
	"github.com/taskmesh/orchestrator-core/pkg/docstore"
	"github.com/taskmesh/orchestrator-core/pkg/types"
)

// AnthropicAgent invokes Anthropic's Messages API directly. It backs
// agent:research-style steps where a hosted-vendor connection is
// acceptable; BedrockAgent covers the in-VPC alternative.
type AnthropicAgent struct {
	name      string
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
	prompt    PromptTemplate
}

// AnthropicConfig configures a single AnthropicAgent registration.
type AnthropicConfig struct {
	Name           string
	APIKey         string
	Model          anthropic.Model
	MaxTokens      int64
	PromptTemplate PromptTemplate
}

// NewAnthropicAgent constructs an AnthropicAgent from cfg.
func NewAnthropicAgent(cfg AnthropicConfig) *AnthropicAgent {
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 1024
	}
	return &AnthropicAgent{
		name:      cfg.Name,
		client:    anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:     cfg.Model,
		maxTokens: maxTokens,
		prompt:    cfg.PromptTemplate,
	}
}

// Name implements registry.Agent.
func (a *AnthropicAgent) Name() string { return a.name }

// Invoke renders the agent's prompt template against input, sends it as a
// single user turn, and returns the model's text response alongside its
// reported token usage.
func (a *AnthropicAgent) Invoke(ctx context.Context, input docstore.Document) (docstore.Document, types.Usage, error) {
	prompt, err := a.prompt.Render(input)
	if err != nil {
		return docstore.Document{}, types.Usage{}, err
	}

	message, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return docstore.Document{}, types.Usage{}, apperrors.Wrapf(err, apperrors.ErrorTypeNetwork, "anthropic agent %q", a.name)
	}

	var text strings.Builder
	for _, block := range message.Content {
		if t := block.AsText(); t.Text != "" {
			text.WriteString(t.Text)
		}
	}

	usage := types.Usage{
		Model:        string(message.Model),
		InputTokens:  message.Usage.InputTokens,
		OutputTokens: message.Usage.OutputTokens,
	}
	output := docstore.NewDocument(map[string]any{"text": text.String()})
	return output, usage, nil
}
