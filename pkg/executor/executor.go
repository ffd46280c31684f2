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

// Package executor dispatches a claimed task's envelope to the agent,
// tool or workflow its type names, capturing usage and trace data along
// the way.
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	apperrors "github.com/taskmesh/orchestrator-core/internal/errortypes"
	"github.com/taskmesh/orchestrator-core/internal/telemetry"
	"github.com/taskmesh/orchestrator-core/pkg/docstore"
	"github.com/taskmesh/orchestrator-core/pkg/registry"
	"github.com/taskmesh/orchestrator-core/pkg/types"
)

// WorkflowRunner executes a workflow definition end to end, producing a
// final output document and aggregate usage. Implemented by
// pkg/orchestration to keep this package from importing it directly (the
// orchestrator dispatches each step to the catalog's agents and tools
// itself, without going through Executor).
type WorkflowRunner interface {
	Run(ctx context.Context, def registry.WorkflowDefinition, task *types.Task) (docstore.Document, types.Usage, error)
}

// Executor is the single entry point the worker state machine calls once
// it has claimed a task.
type Executor struct {
	catalog  *registry.Catalog
	schema   *registry.ToolSchema
	workflow WorkflowRunner
	logger   *logrus.Logger
}

// New constructs an Executor. workflow may be nil until pkg/orchestration
// is wired in cmd/worker; workflow-typed tasks fail with a clear error
// until then rather than panicking.
func New(catalog *registry.Catalog, schema *registry.ToolSchema, workflow WorkflowRunner, logger *logrus.Logger) *Executor {
	return &Executor{catalog: catalog, schema: schema, workflow: workflow, logger: logger}
}

// Execute dispatches task.Input's type prefix to the matching agent, tool
// or workflow and returns the produced output document plus any usage
// accrued. The caller (pkg/worker) is responsible for reporting the result
// back through pkg/lease.
func (e *Executor) Execute(ctx context.Context, task *types.Task) (docstore.Document, types.Usage, error) {
	envelope := types.Envelope{Type: task.Type, Input: task.Input}
	prefix, name := envelope.TypePrefix()
	if prefix == "" || name == "" {
		return docstore.Document{}, types.Usage{}, apperrors.Newf(apperrors.ErrorTypeValidation, "malformed task type %q", task.Type)
	}

	ctx, span := telemetry.StartTaskSpan(ctx, telemetry.SpanTaskProcess, task.ID, task.Type, envelope.TraceID())
	timer := telemetry.NewTimer()
	defer func() {
		timer.ObserveDurationVec(telemetry.TaskProcessingDuration, task.Type)
	}()

	var (
		output docstore.Document
		usage  types.Usage
		err    error
	)

	switch prefix {
	case "agent":
		output, usage, err = e.executeAgent(ctx, name, task.Input)
	case "tool":
		output, err = e.executeTool(ctx, name, task.Input)
	case "workflow":
		output, usage, err = e.executeWorkflow(ctx, name, task)
	default:
		err = apperrors.Newf(apperrors.ErrorTypeValidation, "unknown envelope prefix: %q", prefix)
	}

	telemetry.EndSpan(span, err)
	if err != nil {
		return docstore.Document{}, types.Usage{}, err
	}
	return output, usage, nil
}

func (e *Executor) executeAgent(ctx context.Context, name string, input docstore.Document) (docstore.Document, types.Usage, error) {
	ctx, span := telemetry.StartTaskSpan(ctx, telemetry.SpanAgentInvoke, "", "agent:"+name, "")
	defer func() { telemetry.EndSpan(span, nil) }()

	agent, err := e.catalog.Agents.Get(name)
	if err != nil {
		return docstore.Document{}, types.Usage{}, err
	}
	output, usage, err := agent.Invoke(ctx, input)
	if err != nil {
		return docstore.Document{}, types.Usage{}, fmt.Errorf("agent %q: %w", name, err)
	}
	return output, usage, nil
}

func (e *Executor) executeTool(ctx context.Context, name string, input docstore.Document) (docstore.Document, error) {
	ctx, span := telemetry.StartTaskSpan(ctx, telemetry.SpanToolInvoke, "", "tool:"+name, "")
	defer func() { telemetry.EndSpan(span, nil) }()

	tool, err := e.catalog.Tools.Get(name)
	if err != nil {
		return docstore.Document{}, err
	}
	if e.schema != nil {
		if err := e.schema.Validate(ctx, name, input); err != nil {
			return docstore.Document{}, err
		}
	}
	output, err := tool.Invoke(ctx, input)
	if err != nil {
		return docstore.Document{}, fmt.Errorf("tool %q: %w", name, err)
	}
	return output, nil
}

func (e *Executor) executeWorkflow(ctx context.Context, name string, task *types.Task) (docstore.Document, types.Usage, error) {
	def, err := e.catalog.Workflows.Get(name)
	if err != nil {
		return docstore.Document{}, types.Usage{}, err
	}
	if e.workflow == nil {
		return docstore.Document{}, types.Usage{}, apperrors.New(apperrors.ErrorTypeInternal, "workflow runner not configured")
	}
	return e.workflow.Run(ctx, def, task)
}

// HandlerTimeout bounds a single agent/tool invocation so one wedged call
// cannot hold a lease forever; pkg/worker applies it as a context deadline
// before calling Execute.
const HandlerTimeout = 5 * time.Minute
