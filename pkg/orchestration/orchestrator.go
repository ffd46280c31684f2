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

// Package orchestration runs a declarative WorkflowDefinition's steps
// against the agent/tool catalog, persisting progress so a crashed worker
// can resume a multi-step workflow from its last completed step instead
// of restarting it.
package orchestration

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/taskmesh/orchestrator-core/internal/errortypes"
	"github.com/taskmesh/orchestrator-core/pkg/docstore"
	"github.com/taskmesh/orchestrator-core/pkg/registry"
	"github.com/taskmesh/orchestrator-core/pkg/store"
	"github.com/taskmesh/orchestrator-core/pkg/types"
)

// Orchestrator runs workflow definitions, implementing
// pkg/executor.WorkflowRunner.
type Orchestrator struct {
	catalog    *registry.Catalog
	states     store.WorkflowStateStore
	subtasks   store.SubtaskStore
	logger     *logrus.Logger
	maxFanout  int
}

// New constructs an Orchestrator. maxFanout caps concurrent steps during
// a parallel_fanout strategy.
func New(catalog *registry.Catalog, states store.WorkflowStateStore, subtasks store.SubtaskStore, maxFanout int, logger *logrus.Logger) *Orchestrator {
	if maxFanout <= 0 {
		maxFanout = 4
	}
	return &Orchestrator{catalog: catalog, states: states, subtasks: subtasks, maxFanout: maxFanout, logger: logger}
}

// Run executes def against task, driving whichever strategy def.Strategy()
// names, and returns the final accumulated output plus total usage
// accrued across every step and iteration.
func (o *Orchestrator) Run(ctx context.Context, def registry.WorkflowDefinition, task *types.Task) (docstore.Document, types.Usage, error) {
	state, err := o.loadOrInitState(ctx, def, task)
	if err != nil {
		return docstore.Document{}, types.Usage{}, err
	}

	var total types.Usage
	switch def.Strategy() {
	case "sequential":
		total, err = o.runSequential(ctx, def, state)
	case "iterative_refinement":
		total, err = o.runIterativeRefinement(ctx, def, state)
	case "parallel_fanout":
		total, err = o.runParallelFanout(ctx, def, state)
	default:
		return docstore.Document{}, types.Usage{}, apperrors.Newf(apperrors.ErrorTypeValidation, "unknown workflow strategy %q", def.Strategy())
	}
	if err != nil {
		return docstore.Document{}, types.Usage{}, err
	}
	return state.AccumulatedOutput, total, nil
}

func (o *Orchestrator) loadOrInitState(ctx context.Context, def registry.WorkflowDefinition, task *types.Task) (*types.WorkflowState, error) {
	state, err := o.states.GetWorkflowState(ctx, task.ID)
	if err == nil {
		return state, nil
	}
	if !apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
		return nil, err
	}
	state = &types.WorkflowState{
		ParentTaskID:      task.ID,
		WorkflowName:      def.Name(),
		CurrentStep:       0,
		CurrentIteration:  0,
		MaxIterations:     def.MaxIterations(),
		Converged:         false,
		AccumulatedOutput: task.Input,
	}
	if err := o.states.InsertWorkflowState(ctx, state); err != nil {
		return nil, err
	}
	return state, nil
}

func (o *Orchestrator) runSequential(ctx context.Context, def registry.WorkflowDefinition, state *types.WorkflowState) (types.Usage, error) {
	var total types.Usage
	steps := def.Steps()
	iteration := state.CurrentIteration + 1
	for i := state.CurrentStep; i < len(steps); i++ {
		output, usage, err := o.runStep(ctx, steps[i], state.AccumulatedOutput, state, iteration)
		if err != nil {
			return total, err
		}
		total = addUsage(total, usage)
		state.AccumulatedOutput = state.AccumulatedOutput.Merge(output)
		state.CurrentStep = i + 1
		if err := o.states.UpdateWorkflowState(ctx, state); err != nil {
			return total, err
		}
	}
	return total, nil
}

func (o *Orchestrator) runIterativeRefinement(ctx context.Context, def registry.WorkflowDefinition, state *types.WorkflowState) (types.Usage, error) {
	var total types.Usage
	steps := def.Steps()
	for state.CurrentIteration < state.MaxIterations {
		iteration := state.CurrentIteration + 1
		for i := state.CurrentStep; i < len(steps); i++ {
			output, usage, err := o.runStep(ctx, steps[i], state.AccumulatedOutput, state, iteration)
			if err != nil {
				return total, err
			}
			total = addUsage(total, usage)
			state.AccumulatedOutput = state.AccumulatedOutput.Merge(output)
			state.CurrentStep = i + 1
		}

		converged, err := hasConverged(def.ConvergenceExpr(), state.AccumulatedOutput)
		if err != nil {
			return total, err
		}
		state.CurrentIteration++
		state.CurrentStep = 0
		state.Converged = converged
		if err := o.states.UpdateWorkflowState(ctx, state); err != nil {
			return total, err
		}
		if converged {
			break
		}
	}
	return total, nil
}

func (o *Orchestrator) runParallelFanout(ctx context.Context, def registry.WorkflowDefinition, state *types.WorkflowState) (types.Usage, error) {
	steps := def.Steps()
	outputs := make([]docstore.Document, len(steps))
	usages := make([]types.Usage, len(steps))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.maxFanout)

	iteration := state.CurrentIteration + 1
	for i, step := range steps {
		i, step := i, step
		g.Go(func() error {
			output, usage, err := o.runStep(gctx, step, state.AccumulatedOutput, state, iteration)
			if err != nil {
				return err
			}
			outputs[i] = output
			usages[i] = usage
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return types.Usage{}, err
	}

	var total types.Usage
	for i := range outputs {
		state.AccumulatedOutput = state.AccumulatedOutput.Merge(outputs[i])
		total = addUsage(total, usages[i])
	}
	state.CurrentStep = len(steps)
	if err := o.states.UpdateWorkflowState(ctx, state); err != nil {
		return total, err
	}
	return total, nil
}

// runStep records and dispatches a single step. iteration is the
// workflow's 1-based iteration number, shared by every step run within
// the same pass, not a per-step index.
func (o *Orchestrator) runStep(ctx context.Context, step registry.StepSpec, input docstore.Document, state *types.WorkflowState, iteration int) (docstore.Document, types.Usage, error) {
	subtask := &types.Subtask{
		ParentTaskID: state.ParentTaskID,
		AgentType:    step.AgentType,
		StepName:     step.Name,
		Iteration:    iteration,
		Input:        input,
	}
	if err := o.subtasks.InsertSubtask(ctx, subtask); err != nil {
		return docstore.Document{}, types.Usage{}, err
	}

	output, usage, err := o.dispatchStep(ctx, step, input)
	if err != nil {
		_ = o.subtasks.FailSubtask(ctx, subtask.ID, err.Error())
		return docstore.Document{}, types.Usage{}, fmt.Errorf("workflow step %q: %w", step.Name, err)
	}
	if err := o.subtasks.CompleteSubtask(ctx, subtask.ID, output, usage); err != nil {
		return docstore.Document{}, types.Usage{}, err
	}
	return output, usage, nil
}

func (o *Orchestrator) dispatchStep(ctx context.Context, step registry.StepSpec, input docstore.Document) (docstore.Document, types.Usage, error) {
	if step.AgentType != "" {
		agent, err := o.catalog.Agents.Get(step.AgentType)
		if err != nil {
			return docstore.Document{}, types.Usage{}, err
		}
		return agent.Invoke(ctx, input)
	}
	if step.ToolName != "" {
		tool, err := o.catalog.Tools.Get(step.ToolName)
		if err != nil {
			return docstore.Document{}, types.Usage{}, err
		}
		output, err := tool.Invoke(ctx, input)
		return output, types.Usage{}, err
	}
	return docstore.Document{}, types.Usage{}, apperrors.Newf(apperrors.ErrorTypeValidation, "step %q names neither an agent nor a tool", step.Name)
}

func addUsage(a, b types.Usage) types.Usage {
	model := a.Model
	if model == "" {
		model = b.Model
	}
	return types.Usage{
		Model:        model,
		InputTokens:  a.InputTokens + b.InputTokens,
		OutputTokens: a.OutputTokens + b.OutputTokens,
		Cost:         a.Cost + b.Cost,
	}
}
