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
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	apperrors "github.com/taskmesh/orchestrator-core/internal/errortypes"
	"github.com/taskmesh/orchestrator-core/pkg/docstore"
	"github.com/taskmesh/orchestrator-core/pkg/types"
)

// PostgresSubtaskStore implements SubtaskStore over a pgx pool.
type PostgresSubtaskStore struct {
	pool *pgxpool.Pool
}

var _ SubtaskStore = (*PostgresSubtaskStore)(nil)

// NewPostgresSubtaskStore constructs a store over pool.
func NewPostgresSubtaskStore(pool *pgxpool.Pool) *PostgresSubtaskStore {
	return &PostgresSubtaskStore{pool: pool}
}

// InsertSubtask persists a new subtask row. No audit entry is written for
// subtasks.
func (s *PostgresSubtaskStore) InsertSubtask(ctx context.Context, subtask *types.Subtask) error {
	if subtask.ID == "" {
		subtask.ID = uuid.NewString()
	}
	subtask.CreatedAt = time.Now().UTC()
	subtask.Status = types.StatusRunning

	inputJSON, err := subtask.Input.MarshalJSON()
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeValidation, "marshal subtask input")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO subtasks (id, parent_task_id, agent_type, step_name, iteration, status, input, output, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, '{}', $8)`,
		subtask.ID, subtask.ParentTaskID, subtask.AgentType, subtask.StepName, subtask.Iteration,
		string(subtask.Status), inputJSON, subtask.CreatedAt,
	)
	if err != nil {
		return apperrors.NewDatabaseError("insert subtask", err)
	}
	return nil
}

// CompleteSubtask records a subtask's output and usage.
func (s *PostgresSubtaskStore) CompleteSubtask(ctx context.Context, subtaskID string, output docstore.Document, usage types.Usage) error {
	outputJSON, err := output.MarshalJSON()
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeValidation, "marshal subtask output")
	}
	_, err = s.pool.Exec(ctx,
		`UPDATE subtasks SET
			status = 'done', output = $1, usage_model = $2,
			usage_input_tokens = $3, usage_output_tokens = $4, usage_cost = $5, completed_at = now()
		 WHERE id = $6`,
		outputJSON, nullable(usage.Model), usage.InputTokens, usage.OutputTokens, usage.Cost, subtaskID,
	)
	if err != nil {
		return apperrors.NewDatabaseError("complete subtask", err)
	}
	return nil
}

// FailSubtask records a subtask execution failure.
func (s *PostgresSubtaskStore) FailSubtask(ctx context.Context, subtaskID, errMsg string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE subtasks SET status = 'error', error = $1, completed_at = now() WHERE id = $2`,
		errMsg, subtaskID,
	)
	if err != nil {
		return apperrors.NewDatabaseError("fail subtask", err)
	}
	return nil
}

// ListSubtasks returns every subtask of parentTaskID ordered by iteration
// then creation time.
func (s *PostgresSubtaskStore) ListSubtasks(ctx context.Context, parentTaskID string) ([]types.Subtask, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, parent_task_id, agent_type, step_name, iteration, status, input, output, error,
		        usage_model, usage_input_tokens, usage_output_tokens, usage_cost, created_at, completed_at
		 FROM subtasks WHERE parent_task_id = $1 ORDER BY iteration ASC, created_at ASC`,
		parentTaskID,
	)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list subtasks", err)
	}
	defer rows.Close()

	var out []types.Subtask
	for rows.Next() {
		var st types.Subtask
		var inputJSON, outputJSON []byte
		var errMsg, usageModel *string
		var completedAt *time.Time

		if err := rows.Scan(
			&st.ID, &st.ParentTaskID, &st.AgentType, &st.StepName, &st.Iteration, &st.Status,
			&inputJSON, &outputJSON, &errMsg, &usageModel,
			&st.Usage.InputTokens, &st.Usage.OutputTokens, &st.Usage.Cost, &st.CreatedAt, &completedAt,
		); err != nil {
			return nil, apperrors.NewDatabaseError("scan subtask", err)
		}
		if err := st.Input.UnmarshalJSON(inputJSON); err != nil {
			return nil, err
		}
		if err := st.Output.UnmarshalJSON(outputJSON); err != nil {
			return nil, err
		}
		st.Error = deref(errMsg)
		st.Usage.Model = deref(usageModel)
		if completedAt != nil {
			st.CompletedAt = *completedAt
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewDatabaseError("iterate subtasks", err)
	}
	return out, nil
}
