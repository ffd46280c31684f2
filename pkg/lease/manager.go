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

// Package lease wraps the task store's claim/renew/release operations
// behind a circuit breaker, so a flapping database doesn't turn every
// worker's poll loop into a synchronous retry storm.
package lease

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/taskmesh/orchestrator-core/pkg/docstore"
	"github.com/taskmesh/orchestrator-core/pkg/orchestration/dependency"
	"github.com/taskmesh/orchestrator-core/pkg/store"
	"github.com/taskmesh/orchestrator-core/pkg/types"
)

// Manager is the worker's sole entry point into the task store; the
// worker state machine never touches store.TaskStore directly so every
// database call it makes is circuit-breaker gated.
type Manager struct {
	store    store.TaskStore
	breaker  *dependency.CircuitBreaker
	logger   *logrus.Logger
	duration time.Duration
}

// NewManager constructs a Manager claiming leases of leaseDuration,
// gated by a breaker that opens once failureThreshold of calls fail and
// stays open for resetTimeout.
func NewManager(taskStore store.TaskStore, leaseDuration time.Duration, failureThreshold float64, resetTimeout time.Duration, logger *logrus.Logger) *Manager {
	return &Manager{
		store:    taskStore,
		breaker:  dependency.NewCircuitBreaker("lease-manager", failureThreshold, resetTimeout),
		logger:   logger,
		duration: leaseDuration,
	}
}

// State reports the underlying circuit breaker's state, which the worker
// state machine consults to decide whether Connecting should retry or
// fail straight to ErrorWait.
func (m *Manager) State() dependency.CircuitState {
	return m.breaker.GetState()
}

// ClaimNext claims the next ready task, or (nil, nil) when the queue is
// empty. A circuit-open database surfaces as a returned error rather than
// blocking the poll loop.
func (m *Manager) ClaimNext(ctx context.Context, owner string) (*types.Task, error) {
	var task *types.Task
	err := m.breaker.Call(func() error {
		t, err := m.store.ClaimOneReady(ctx, owner, m.duration)
		if err != nil {
			return err
		}
		task = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// RenewLease extends owner's hold on taskID for another full lease
// duration, used by long-running handlers to avoid losing the lease to a
// reclaim sweep mid-execution.
func (m *Manager) RenewLease(ctx context.Context, taskID, owner string) error {
	return m.breaker.Call(func() error {
		return m.store.RenewLease(ctx, taskID, owner, m.duration)
	})
}

// Complete reports successful completion of taskID back to the store.
func (m *Manager) Complete(ctx context.Context, taskID, owner string, output docstore.Document, usage types.Usage) error {
	return m.breaker.Call(func() error {
		return m.store.CompleteTask(ctx, taskID, owner, output, usage)
	})
}

// Fail reports a handler failure for taskID back to the store.
func (m *Manager) Fail(ctx context.Context, taskID, owner, errMsg string) error {
	return m.breaker.Call(func() error {
		return m.store.FailTask(ctx, taskID, owner, errMsg)
	})
}

// ReclaimExpired sweeps the store for leases that expired without a
// completion or failure report, releasing them back to pending (or to the
// error state once try_count has reached max_tries).
func (m *Manager) ReclaimExpired(ctx context.Context) (int, error) {
	var n int
	err := m.breaker.Call(func() error {
		count, err := m.store.ReclaimExpiredLeases(ctx)
		if err != nil {
			return err
		}
		n = count
		return nil
	})
	return n, err
}
