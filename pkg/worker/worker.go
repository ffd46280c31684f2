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

// Package worker runs one worker's lifecycle as an explicit state
// machine: each state is a handler dispatched from a table rather than a
// sprawling switch, so adding a state never risks falling through an
// existing one.
package worker

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/taskmesh/orchestrator-core/internal/telemetry"
	"github.com/taskmesh/orchestrator-core/pkg/docstore"
	"github.com/taskmesh/orchestrator-core/pkg/executor"
	"github.com/taskmesh/orchestrator-core/pkg/lease"
	"github.com/taskmesh/orchestrator-core/pkg/orchestration/dependency"
	"github.com/taskmesh/orchestrator-core/pkg/types"
)

// State is one node of the worker's lifecycle state machine.
type State string

const (
	StateStartup          State = "startup"
	StateConnecting       State = "connecting"
	StateRecovery         State = "recovery"
	StatePolling          State = "polling"
	StateClaiming         State = "claiming"
	StateProcessing       State = "processing"
	StateReportingSuccess State = "reporting_success"
	StateReportingFailure State = "reporting_failure"
	StateBackoff          State = "backoff"
	StateIdle             State = "idle"
	StateErrorWait        State = "error_wait"
)

// handler runs one state and returns the next state to transition to.
type handler func(*Worker, context.Context) State

// Worker drives a single worker's claim/process/report loop. The worker
// never touches pkg/store directly; every database operation goes through
// the circuit-breaker-gated lease.Manager.
type Worker struct {
	id       string
	lease    *lease.Manager
	executor *executor.Executor
	logger   *logrus.Logger

	pollMinInterval time.Duration
	pollMaxInterval time.Duration
	pollInterval    time.Duration
	recoveryEvery   time.Duration
	lastRecovery    time.Time

	current    *types.Task
	lastOutput docstore.Document
	lastUsage  types.Usage
	lastErr    error

	shuttingDown atomic.Bool
}

// Config bundles a Worker's tunables, mirrored from internal/config.WorkerConfig.
type Config struct {
	ID              string
	PollMinInterval time.Duration
	PollMaxInterval time.Duration
	RecoveryEvery   time.Duration
}

// New constructs a Worker ready to Run.
func New(cfg Config, leaseMgr *lease.Manager, exec *executor.Executor, logger *logrus.Logger) *Worker {
	return &Worker{
		id:              cfg.ID,
		lease:           leaseMgr,
		executor:        exec,
		logger:          logger,
		pollMinInterval: cfg.PollMinInterval,
		pollMaxInterval: cfg.PollMaxInterval,
		pollInterval:    cfg.PollMinInterval,
		recoveryEvery:   cfg.RecoveryEvery,
	}
}

// RequestShutdown asks the worker to stop at the next safe state boundary;
// it never interrupts a task mid-Processing.
func (w *Worker) RequestShutdown() {
	w.shuttingDown.Store(true)
}

var stateTable = map[State]handler{
	StateStartup:          (*Worker).runStartup,
	StateConnecting:       (*Worker).runConnecting,
	StateRecovery:         (*Worker).runRecovery,
	StatePolling:          (*Worker).runPolling,
	StateClaiming:         (*Worker).runClaiming,
	StateProcessing:       (*Worker).runProcessing,
	StateReportingSuccess: (*Worker).runReportingSuccess,
	StateReportingFailure: (*Worker).runReportingFailure,
	StateBackoff:          (*Worker).runBackoff,
	StateIdle:             (*Worker).runIdle,
	StateErrorWait:        (*Worker).runErrorWait,
}

// Run drives the state machine until ctx is canceled or a shutdown request
// lands on a safe state boundary.
func (w *Worker) Run(ctx context.Context) {
	state := StateStartup
	for {
		if ctx.Err() != nil {
			return
		}
		if w.shuttingDown.Load() && isShutdownSafe(state) {
			w.logger.WithField("worker_id", w.id).Info("worker shutting down")
			return
		}

		h, ok := stateTable[state]
		if !ok {
			w.logger.WithField("state", state).Error("worker reached an undispatchable state")
			return
		}
		next := h(w, ctx)
		if next != state {
			w.logger.WithFields(logrus.Fields{"worker_id": w.id, "from": state, "to": next}).Debug("worker state transition")
		}
		state = next
	}
}

// isShutdownSafe reports whether it's safe to stop the loop in this state
// without abandoning a claimed lease mid-flight.
func isShutdownSafe(s State) bool {
	return s != StateProcessing && s != StateClaiming && s != StateReportingSuccess && s != StateReportingFailure
}

func (w *Worker) runStartup(ctx context.Context) State { return StateConnecting }

func (w *Worker) runConnecting(ctx context.Context) State {
	if w.lease.State() == dependency.CircuitStateOpen {
		return StateErrorWait
	}
	return StateRecovery
}

func (w *Worker) runRecovery(ctx context.Context) State {
	if time.Since(w.lastRecovery) < w.recoveryEvery {
		return StatePolling
	}
	n, err := w.lease.ReclaimExpired(ctx)
	if err != nil {
		w.logger.WithError(err).Warn("lease recovery sweep failed")
		return StateErrorWait
	}
	if n > 0 {
		telemetry.LeasesReclaimedTotal.Add(float64(n))
		w.logger.WithField("count", n).Info("reclaimed expired leases")
	}
	w.lastRecovery = time.Now()
	return StatePolling
}

func (w *Worker) runPolling(ctx context.Context) State {
	return StateClaiming
}

func (w *Worker) runClaiming(ctx context.Context) State {
	task, err := w.lease.ClaimNext(ctx, w.id)
	if err != nil {
		w.logger.WithError(err).Warn("claim failed")
		return StateErrorWait
	}
	if task == nil {
		return StateBackoff
	}
	w.current = task
	telemetry.TasksClaimedTotal.WithLabelValues(task.Type).Inc()
	w.pollInterval = w.pollMinInterval
	return StateProcessing
}

func (w *Worker) runProcessing(ctx context.Context) State {
	procCtx, cancel := context.WithTimeout(ctx, executor.HandlerTimeout)
	defer cancel()

	output, usage, err := w.executor.Execute(procCtx, w.current)
	if err != nil {
		w.logger.WithError(err).WithField("task_id", w.current.ID).Warn("task processing failed")
		w.lastErr = err
		return StateReportingFailure
	}
	w.lastOutput = output
	w.lastUsage = usage
	return StateReportingSuccess
}

func (w *Worker) runReportingSuccess(ctx context.Context) State {
	err := w.lease.Complete(ctx, w.current.ID, w.id, w.lastOutput, w.lastUsage)
	if err != nil {
		w.logger.WithError(err).WithField("task_id", w.current.ID).Warn("failed to report task success")
		return StateErrorWait
	}
	telemetry.TasksCompletedTotal.WithLabelValues(w.current.Type).Inc()
	w.current = nil
	return StateIdle
}

func (w *Worker) runReportingFailure(ctx context.Context) State {
	errMsg := ""
	if w.lastErr != nil {
		errMsg = w.lastErr.Error()
	}
	taskType := w.current.Type
	if err := w.lease.Fail(ctx, w.current.ID, w.id, errMsg); err != nil {
		w.logger.WithError(err).WithField("task_id", w.current.ID).Warn("failed to report task failure")
		return StateErrorWait
	}
	telemetry.TasksFailedTotal.WithLabelValues(taskType, "unknown").Inc()
	w.current = nil
	w.lastErr = nil
	return StateIdle
}

func (w *Worker) runBackoff(ctx context.Context) State {
	telemetry.WorkerBackoffSeconds.Observe(w.pollInterval.Seconds())
	select {
	case <-ctx.Done():
		return StateBackoff
	case <-time.After(w.pollInterval):
	}
	w.pollInterval *= 2
	if w.pollInterval > w.pollMaxInterval {
		w.pollInterval = w.pollMaxInterval
	}
	return StateRecovery
}

func (w *Worker) runIdle(ctx context.Context) State {
	return StateRecovery
}

func (w *Worker) runErrorWait(ctx context.Context) State {
	select {
	case <-ctx.Done():
		return StateErrorWait
	case <-time.After(w.pollMaxInterval):
	}
	return StateConnecting
}
