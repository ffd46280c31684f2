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

// Package types holds the data-model values shared across the store,
// executor, orchestrator and worker packages.
package types

import (
	"time"

	"github.com/taskmesh/orchestrator-core/pkg/docstore"
)

// Status is the lifecycle state of a Task.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusError   Status = "error"
)

// Task is a unit of work claimed and executed by exactly one worker at a
// time under a time-bounded lease.
type Task struct {
	ID            string
	Type          string // "workflow:<name>" | "agent:<type>" | "tool:<name>"
	Status        Status
	Input         docstore.Document
	Output        docstore.Document
	Error         string
	UserIDHash    string
	TenantID      string
	ModelUsed     string
	InputTokens   int64
	OutputTokens  int64
	TotalCost     float64
	TraceID       string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	LeaseOwner    string
	LeaseExpires  time.Time
	TryCount      int
	MaxTries      int
}

// HasLease reports whether the task currently carries an active lease.
func (t Task) HasLease() bool {
	return t.LeaseOwner != "" && !t.LeaseExpires.IsZero()
}

// Usage is the token/cost accounting an Agent reports for one invocation.
type Usage struct {
	Model        string
	InputTokens  int64
	OutputTokens int64
	Cost         float64
}

// Subtask is a single step of one iteration of a workflow execution.
type Subtask struct {
	ID            string
	ParentTaskID  string
	AgentType     string
	StepName      string
	Iteration     int
	Status        Status
	Input         docstore.Document
	Output        docstore.Document
	Error         string
	Usage         Usage
	CreatedAt     time.Time
	CompletedAt   time.Time
}

// WorkflowState tracks one parent Task's progress through its workflow
// definition.
type WorkflowState struct {
	ID                string
	ParentTaskID      string
	WorkflowName      string
	CurrentStep       int
	CurrentIteration  int
	MaxIterations     int
	Converged         bool
	AccumulatedOutput docstore.Document
}

// EventType enumerates the audit events the core emits.
type EventType string

const (
	EventTaskCreated         EventType = "task_created"
	EventTaskClaimed         EventType = "task_claimed"
	EventTaskCompleted       EventType = "task_completed"
	EventTaskFailed          EventType = "task_failed"
	EventLeaseRecovered      EventType = "lease_recovered"
	EventSubtaskCompleted    EventType = "subtask_completed"
	EventWorkflowInitialized EventType = "workflow_initialized"
)

// AuditEntry is an append-only record of one state transition.
type AuditEntry struct {
	ID         string
	EventType  EventType
	ResourceID string
	UserIDHash string
	TenantID   string
	Timestamp  time.Time
	Metadata   docstore.Document
}
