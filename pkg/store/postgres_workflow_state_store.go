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

package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	apperrors "github.com/taskmesh/orchestrator-core/internal/errortypes"
	"github.com/taskmesh/orchestrator-core/pkg/types"
)

// PostgresWorkflowStateStore implements WorkflowStateStore over a pgx pool.
type PostgresWorkflowStateStore struct {
	pool *pgxpool.Pool
}

var _ WorkflowStateStore = (*PostgresWorkflowStateStore)(nil)

// NewPostgresWorkflowStateStore constructs a store over pool.
func NewPostgresWorkflowStateStore(pool *pgxpool.Pool) *PostgresWorkflowStateStore {
	return &PostgresWorkflowStateStore{pool: pool}
}

// InsertWorkflowState seeds a parent task's workflow progress row, one per
// task, on the first orchestrator step.
func (s *PostgresWorkflowStateStore) InsertWorkflowState(ctx context.Context, state *types.WorkflowState) error {
	if state.ID == "" {
		state.ID = uuid.NewString()
	}
	accumulatedJSON, err := state.AccumulatedOutput.MarshalJSON()
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeValidation, "marshal accumulated output")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO workflow_state
			(id, parent_task_id, workflow_name, current_step, current_iteration, max_iterations, converged, accumulated_output, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())`,
		state.ID, state.ParentTaskID, state.WorkflowName, state.CurrentStep,
		state.CurrentIteration, state.MaxIterations, state.Converged, accumulatedJSON,
	)
	if err != nil {
		return apperrors.NewDatabaseError("insert workflow state", err)
	}
	return nil
}

// GetWorkflowState fetches the workflow progress for parentTaskID.
func (s *PostgresWorkflowStateStore) GetWorkflowState(ctx context.Context, parentTaskID string) (*types.WorkflowState, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, parent_task_id, workflow_name, current_step, current_iteration,
		        max_iterations, converged, accumulated_output
		 FROM workflow_state WHERE parent_task_id = $1`,
		parentTaskID,
	)
	var ws types.WorkflowState
	var accumulatedJSON []byte
	err := row.Scan(&ws.ID, &ws.ParentTaskID, &ws.WorkflowName, &ws.CurrentStep,
		&ws.CurrentIteration, &ws.MaxIterations, &ws.Converged, &accumulatedJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("workflow state")
	}
	if err != nil {
		return nil, apperrors.NewDatabaseError("get workflow state", err)
	}
	if err := ws.AccumulatedOutput.UnmarshalJSON(accumulatedJSON); err != nil {
		return nil, err
	}
	return &ws, nil
}

// UpdateWorkflowState persists a workflow's advanced step/iteration and
// accumulated output after one orchestration step completes.
func (s *PostgresWorkflowStateStore) UpdateWorkflowState(ctx context.Context, state *types.WorkflowState) error {
	accumulatedJSON, err := state.AccumulatedOutput.MarshalJSON()
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeValidation, "marshal accumulated output")
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE workflow_state SET
			current_step = $1, current_iteration = $2, converged = $3, accumulated_output = $4, updated_at = now()
		 WHERE parent_task_id = $5`,
		state.CurrentStep, state.CurrentIteration, state.Converged, accumulatedJSON, state.ParentTaskID,
	)
	if err != nil {
		return apperrors.NewDatabaseError("update workflow state", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("workflow state")
	}
	return nil
}
