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

package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	traceScopeTask = "taskmesh.task"

	SpanTaskProcess     = "taskmesh.task.process"
	SpanAgentInvoke     = "taskmesh.agent.invoke"
	SpanToolInvoke      = "taskmesh.tool.invoke"
	SpanWorkflowStep    = "taskmesh.workflow.step"

	attrTaskID   = "taskmesh.task_id"
	attrTraceID  = "taskmesh.trace_id"
	attrTaskType = "taskmesh.task_type"
	attrStatus   = "taskmesh.status"
)

// StartTaskSpan opens a span for one task's processing, seeded with the
// task's own id and the caller-supplied trace id pulled from
// input._trace_context.trace_id so a task's execution can be correlated
// with the request that submitted it.
func StartTaskSpan(ctx context.Context, spanName, taskID, taskType, externalTraceID string) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String(attrTaskID, taskID),
		attribute.String(attrTaskType, taskType),
	}
	if externalTraceID != "" {
		attrs = append(attrs, attribute.String(attrTraceID, externalTraceID))
	}
	return otel.Tracer(traceScopeTask).Start(ctx, spanName, trace.WithAttributes(attrs...))
}

// EndSpan records err (if any) and a final status attribute, then ends the
// span. Safe to call with a nil span.
func EndSpan(span trace.Span, err error) {
	if span == nil {
		return
	}
	defer span.End()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String(attrStatus, "error"))
		return
	}
	span.SetStatus(codes.Ok, "")
	span.SetAttributes(attribute.String(attrStatus, "success"))
}
