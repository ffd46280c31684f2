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
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	apperrors "github.com/taskmesh/orchestrator-core/internal/errortypes"
	"github.com/taskmesh/orchestrator-core/pkg/docstore"
	"github.com/taskmesh/orchestrator-core/pkg/types"
)

const anthropicBedrockVersion = "bedrock-2023-05-31"

// bedrockRequest is the Anthropic-on-Bedrock request envelope; Bedrock
// wraps the same message schema Anthropic's own API uses but requires the
// anthropic_version field and drops the top-level model field (the model
// is selected via the ModelId on the InvokeModel call itself).
type bedrockRequest struct {
	AnthropicVersion string           `json:"anthropic_version"`
	MaxTokens        int64            `json:"max_tokens"`
	Messages         []bedrockMessage `json:"messages"`
}

type bedrockMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type bedrockResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int64 `json:"input_tokens"`
		OutputTokens int64 `json:"output_tokens"`
	} `json:"usage"`
}

// BedrockAgent invokes an Anthropic model through AWS Bedrock Runtime,
// keeping inference traffic inside the caller's own AWS account instead of
// a direct connection to Anthropic.
type BedrockAgent struct {
	name      string
	client    *bedrockruntime.Client
	modelID   string
	maxTokens int64
	prompt    PromptTemplate
}

// BedrockConfig configures a single BedrockAgent registration.
type BedrockConfig struct {
	Name      string
	Client    *bedrockruntime.Client
	ModelID   string
	MaxTokens int64
	Prompt    PromptTemplate
}

// NewBedrockAgent constructs a BedrockAgent from cfg. The caller owns
// constructing Client (typically via config.LoadDefaultConfig) so
// credentials and region resolution stay outside this package.
func NewBedrockAgent(cfg BedrockConfig) *BedrockAgent {
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 1024
	}
	return &BedrockAgent{
		name:      cfg.Name,
		client:    cfg.Client,
		modelID:   cfg.ModelID,
		maxTokens: maxTokens,
		prompt:    cfg.Prompt,
	}
}

// Name implements registry.Agent.
func (a *BedrockAgent) Name() string { return a.name }

// Invoke renders the agent's prompt template, invokes the Bedrock model,
// and decodes the Anthropic-on-Bedrock response envelope.
func (a *BedrockAgent) Invoke(ctx context.Context, input docstore.Document) (docstore.Document, types.Usage, error) {
	prompt, err := a.prompt.Render(input)
	if err != nil {
		return docstore.Document{}, types.Usage{}, err
	}

	body, err := json.Marshal(bedrockRequest{
		AnthropicVersion: anthropicBedrockVersion,
		MaxTokens:        a.maxTokens,
		Messages:         []bedrockMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return docstore.Document{}, types.Usage{}, apperrors.Wrap(err, apperrors.ErrorTypeValidation, "marshal bedrock request")
	}

	out, err := a.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(a.modelID),
		ContentType: aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return docstore.Document{}, types.Usage{}, apperrors.Wrapf(err, apperrors.ErrorTypeNetwork, "bedrock agent %q", a.name)
	}

	return decodeBedrockResponse(out.Body, a.modelID)
}

// decodeBedrockResponse parses an Anthropic-on-Bedrock response body into
// the agent's output document and usage, split out from Invoke so it can
// be exercised without a live Bedrock call.
func decodeBedrockResponse(body []byte, modelID string) (docstore.Document, types.Usage, error) {
	var resp bedrockResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return docstore.Document{}, types.Usage{}, apperrors.Wrap(err, apperrors.ErrorTypeValidation, "unmarshal bedrock response")
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	usage := types.Usage{
		Model:        modelID,
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
	}
	output := docstore.NewDocument(map[string]any{"text": text})
	return output, usage, nil
}
