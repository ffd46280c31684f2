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

// Package tools implements registry.Tool for the side-effecting actions a
// workflow step can invoke. A Tool never returns a Go error for a failed
// action: the failure is reported through the output document's success
// field so a workflow can branch on it the same way it branches on any
// other step output.
package tools

import (
	"context"

	"github.com/slack-go/slack"

	"github.com/taskmesh/orchestrator-core/pkg/docstore"
)

// slackClient is the subset of *slack.Client this tool depends on, so
// tests can substitute a fake without a real token or network access.
type slackClient interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// SlackNotifyTool posts a message to a Slack channel. It backs
// tool:notify_slack steps.
type SlackNotifyTool struct {
	client  slackClient
	channel string
}

// NewSlackNotifyTool constructs a SlackNotifyTool posting to channel using
// a bot token.
func NewSlackNotifyTool(botToken, channel string) *SlackNotifyTool {
	return &SlackNotifyTool{client: slack.New(botToken), channel: channel}
}

// Name implements registry.Tool.
func (t *SlackNotifyTool) Name() string { return "notify_slack" }

// Invoke posts input's "message" field to the configured channel. A
// missing message field or a Slack API error is reported as
// {"success": false, "error": "..."} rather than a returned error.
func (t *SlackNotifyTool) Invoke(ctx context.Context, input docstore.Document) (docstore.Document, error) {
	raw, ok := input.Get("message")
	if !ok {
		return failure("input document has no \"message\" field"), nil
	}
	message, ok := raw.(string)
	if !ok || message == "" {
		return failure("\"message\" field must be a non-empty string"), nil
	}

	channel := t.channel
	if override, ok := input.Get("channel"); ok {
		if s, ok := override.(string); ok && s != "" {
			channel = s
		}
	}

	_, timestamp, err := t.client.PostMessageContext(ctx, channel, slack.MsgOptionText(message, false))
	if err != nil {
		return failure(err.Error()), nil
	}
	return docstore.NewDocument(map[string]any{
		"success":   true,
		"channel":   channel,
		"timestamp": timestamp,
	}), nil
}

func failure(reason string) docstore.Document {
	return docstore.NewDocument(map[string]any{"success": false, "error": reason})
}
