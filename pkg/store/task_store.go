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

// Package store is the lease-based task queue's Postgres persistence
// layer: claim, renew, complete and fail operate through SKIP LOCKED so
// many workers can share one queue without a central coordinator.
package store

import (
	"context"
	"time"

	"github.com/taskmesh/orchestrator-core/pkg/docstore"
	"github.com/taskmesh/orchestrator-core/pkg/types"
)

// TaskStore is the write-side interface the lease manager and worker drive.
type TaskStore interface {
	InsertTask(ctx context.Context, task *types.Task) error

	// ClaimOneReady atomically claims the oldest pending task under SKIP
	// LOCKED, stamping it with owner's lease, or returns (nil, nil) when no
	// task is ready. Lease-expired running tasks become claimable only after
	// ReclaimExpiredLeases has returned them to pending.
	ClaimOneReady(ctx context.Context, owner string, leaseDuration time.Duration) (*types.Task, error)

	RenewLease(ctx context.Context, taskID, owner string, leaseDuration time.Duration) error

	// CompleteTask marks a task done and writes its output and usage
	// totals in the same transaction as the audit entry it also appends.
	CompleteTask(ctx context.Context, taskID, owner string, output docstore.Document, usage types.Usage) error

	// FailTask records an execution failure. If task.TryCount has reached
	// MaxTries the task moves to StatusError permanently; otherwise it is
	// released back to pending for another worker to claim.
	FailTask(ctx context.Context, taskID, owner, errMsg string) error

	// ReclaimExpiredLeases clears the lease of every running task whose
	// lease has passed, without changing try_count: a task below max_tries
	// returns to pending so a crashed worker's work resumes elsewhere, and a
	// task at max_tries moves to StatusError. Returns the number of tasks
	// reclaimed, both kinds counted.
	ReclaimExpiredLeases(ctx context.Context) (int, error)

	GetTask(ctx context.Context, taskID string) (*types.Task, error)
}

// SubtaskStore persists the per-step record of one workflow execution.
type SubtaskStore interface {
	InsertSubtask(ctx context.Context, subtask *types.Subtask) error
	CompleteSubtask(ctx context.Context, subtaskID string, output docstore.Document, usage types.Usage) error
	FailSubtask(ctx context.Context, subtaskID, errMsg string) error
	ListSubtasks(ctx context.Context, parentTaskID string) ([]types.Subtask, error)
}

// WorkflowStateStore persists one parent task's progress through its
// workflow definition across iterations.
type WorkflowStateStore interface {
	InsertWorkflowState(ctx context.Context, state *types.WorkflowState) error
	GetWorkflowState(ctx context.Context, parentTaskID string) (*types.WorkflowState, error)
	UpdateWorkflowState(ctx context.Context, state *types.WorkflowState) error
}
