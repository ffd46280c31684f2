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
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	apperrors "github.com/taskmesh/orchestrator-core/internal/errortypes"
	"github.com/taskmesh/orchestrator-core/pkg/docstore"
	"github.com/taskmesh/orchestrator-core/pkg/types"
)

const taskTable = "tasks"

// PostgresTaskStore implements TaskStore over a pgx pool, claiming work
// with SELECT ... FOR UPDATE SKIP LOCKED so many workers can race a shared
// queue without blocking each other.
type PostgresTaskStore struct {
	pool   *pgxpool.Pool
	logger *logrus.Logger
}

var _ TaskStore = (*PostgresTaskStore)(nil)

// NewPostgresTaskStore constructs a store over pool.
func NewPostgresTaskStore(pool *pgxpool.Pool, logger *logrus.Logger) *PostgresTaskStore {
	return &PostgresTaskStore{pool: pool, logger: logger}
}

// EnsureSchema creates the tasks and audit_log tables and their indexes if
// they do not already exist. cmd/migrate's goose migrations are the
// source of truth in a deployed system; this exists for tests and
// single-binary setups that skip the migration step.
func (s *PostgresTaskStore) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS ` + taskTable + ` (
			id             TEXT PRIMARY KEY,
			type           TEXT NOT NULL,
			status         TEXT NOT NULL DEFAULT 'pending',
			input          JSONB NOT NULL DEFAULT '{}',
			output         JSONB NOT NULL DEFAULT '{}',
			error          TEXT,
			user_id_hash   TEXT,
			tenant_id      TEXT,
			model_used     TEXT,
			input_tokens   BIGINT NOT NULL DEFAULT 0,
			output_tokens  BIGINT NOT NULL DEFAULT 0,
			total_cost     DOUBLE PRECISION NOT NULL DEFAULT 0,
			trace_id       TEXT,
			lease_owner    TEXT,
			lease_expires  TIMESTAMPTZ,
			try_count      INTEGER NOT NULL DEFAULT 0,
			max_tries      INTEGER NOT NULL DEFAULT 3,
			created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_claimable
			ON ` + taskTable + ` (status, created_at)
			WHERE status = 'pending'`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_lease_expires
			ON ` + taskTable + ` (lease_expires)
			WHERE status = 'running'`,
		`CREATE TABLE IF NOT EXISTS audit_log (
			id            TEXT PRIMARY KEY,
			event_type    TEXT NOT NULL,
			resource_id   TEXT NOT NULL,
			user_id_hash  TEXT,
			tenant_id     TEXT,
			metadata      JSONB NOT NULL DEFAULT '{}',
			occurred_at   TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_log_resource
			ON audit_log (resource_id, occurred_at)`,
	}
	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return apperrors.NewDatabaseError("ensure task store schema", err)
		}
	}
	return nil
}

// InsertTask persists a new pending task and its task_created audit entry
// in one transaction.
func (s *PostgresTaskStore) InsertTask(ctx context.Context, task *types.Task) error {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.MaxTries == 0 {
		task.MaxTries = 3
	}
	now := time.Now().UTC()
	task.CreatedAt, task.UpdatedAt, task.Status = now, now, types.StatusPending

	inputJSON, err := task.Input.MarshalJSON()
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeValidation, "marshal task input")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return apperrors.NewDatabaseError("begin insert task tx", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx,
		`INSERT INTO `+taskTable+`
			(id, type, status, input, output, user_id_hash, tenant_id, trace_id, max_tries, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, '{}', $5, $6, $7, $8, $9, $10)`,
		task.ID, task.Type, string(task.Status), inputJSON,
		nullable(task.UserIDHash), nullable(task.TenantID), nullable(task.TraceID),
		task.MaxTries, task.CreatedAt, task.UpdatedAt,
	)
	if err != nil {
		return apperrors.NewDatabaseError("insert task", err)
	}

	if err := writeAuditEntry(ctx, tx, types.EventTaskCreated, task.ID, task.UserIDHash, task.TenantID, nil); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return apperrors.NewDatabaseError("commit insert task tx", err)
	}
	return nil
}

// ClaimOneReady claims the oldest pending task under FOR UPDATE SKIP LOCKED
// so concurrently polling workers never block each other or double-claim
// the same row. A running task whose lease has expired is never a claim
// candidate here: ReclaimExpiredLeases is the sole path that moves such a
// task back to pending (or, past max_tries, to its terminal error state)
// before it can be claimed again.
func (s *PostgresTaskStore) ClaimOneReady(ctx context.Context, owner string, leaseDuration time.Duration) (*types.Task, error) {
	now := time.Now().UTC()
	leaseExpires := now.Add(leaseDuration)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, apperrors.NewDatabaseError("begin claim tx", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	row := tx.QueryRow(ctx,
		`UPDATE `+taskTable+` SET
			status = 'running', lease_owner = $1, lease_expires = $2,
			try_count = try_count + 1, updated_at = $3
		 WHERE id = (
			SELECT id FROM `+taskTable+`
			WHERE status = 'pending'
			ORDER BY created_at ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		 )
		 RETURNING id, type, status, input, output, error, user_id_hash, tenant_id,
		           model_used, input_tokens, output_tokens, total_cost, trace_id,
		           lease_owner, lease_expires, try_count, max_tries, created_at, updated_at`,
		owner, leaseExpires, now,
	)

	task, err := scanTask(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, tx.Commit(ctx)
	}
	if err != nil {
		return nil, apperrors.NewDatabaseError("claim ready task", err)
	}

	if err := writeAuditEntry(ctx, tx, types.EventTaskClaimed, task.ID, task.UserIDHash, task.TenantID,
		map[string]any{"owner": owner}); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, apperrors.NewDatabaseError("commit claim tx", err)
	}
	return task, nil
}

// RenewLease extends owner's lease on taskID, failing with
// ErrorTypeLeaseConflict if owner no longer holds it.
func (s *PostgresTaskStore) RenewLease(ctx context.Context, taskID, owner string, leaseDuration time.Duration) error {
	leaseExpires := time.Now().UTC().Add(leaseDuration)
	tag, err := s.pool.Exec(ctx,
		`UPDATE `+taskTable+` SET lease_expires = $1, updated_at = now()
		 WHERE id = $2 AND lease_owner = $3 AND status = 'running'`,
		leaseExpires, taskID, owner,
	)
	if err != nil {
		return apperrors.NewDatabaseError("renew lease", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NewLeaseConflictError(taskID)
	}
	return nil
}

// CompleteTask writes the task's output and usage and its task_completed
// audit entry atomically: the state transition and its audit record must
// never diverge, so both happen in one transaction here rather than
// through a buffered async writer.
func (s *PostgresTaskStore) CompleteTask(ctx context.Context, taskID, owner string, output docstore.Document, usage types.Usage) error {
	outputJSON, err := output.MarshalJSON()
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeValidation, "marshal task output")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return apperrors.NewDatabaseError("begin complete tx", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	tag, err := tx.Exec(ctx,
		`UPDATE `+taskTable+` SET
			status = 'done', output = $1, model_used = $2,
			input_tokens = input_tokens + $3, output_tokens = output_tokens + $4,
			total_cost = total_cost + $5, lease_owner = NULL, lease_expires = NULL,
			updated_at = now()
		 WHERE id = $6 AND lease_owner = $7 AND status = 'running'`,
		outputJSON, nullable(usage.Model), usage.InputTokens, usage.OutputTokens, usage.Cost,
		taskID, owner,
	)
	if err != nil {
		return apperrors.NewDatabaseError("complete task", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NewLeaseConflictError(taskID)
	}

	if err := writeAuditEntry(ctx, tx, types.EventTaskCompleted, taskID, "", "", map[string]any{
		"model": usage.Model, "input_tokens": usage.InputTokens, "output_tokens": usage.OutputTokens, "cost": usage.Cost,
	}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return apperrors.NewDatabaseError("commit complete tx", err)
	}
	return nil
}

// FailTask records a handler failure. Below MaxTries the task returns to
// pending for another worker; at MaxTries it moves to the terminal error
// state. Either way the audit entry lands in the same transaction.
func (s *PostgresTaskStore) FailTask(ctx context.Context, taskID, owner, errMsg string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return apperrors.NewDatabaseError("begin fail tx", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var tryCount, maxTries int
	err = tx.QueryRow(ctx,
		`SELECT try_count, max_tries FROM `+taskTable+` WHERE id = $1 AND lease_owner = $2 FOR UPDATE`,
		taskID, owner,
	).Scan(&tryCount, &maxTries)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NewLeaseConflictError(taskID)
	}
	if err != nil {
		return apperrors.NewDatabaseError("read task for failure", err)
	}

	nextStatus := "pending"
	var nextOwner any
	var nextLease any
	if tryCount >= maxTries {
		nextStatus = "error"
	} else {
		nextOwner, nextLease = nil, nil
	}

	_, err = tx.Exec(ctx,
		`UPDATE `+taskTable+` SET
			status = $1, error = $2, try_count = $3, lease_owner = $4, lease_expires = $5, updated_at = now()
		 WHERE id = $6`,
		nextStatus, errMsg, tryCount, nextOwner, nextLease, taskID,
	)
	if err != nil {
		return apperrors.NewDatabaseError("fail task", err)
	}

	if err := writeAuditEntry(ctx, tx, types.EventTaskFailed, taskID, "", "", map[string]any{
		"error": errMsg, "try_count": tryCount, "terminal": nextStatus == "error",
	}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return apperrors.NewDatabaseError("commit fail tx", err)
	}
	return nil
}

// ReclaimExpiredLeases is the sole path out of an expired running lease.
// A task whose try_count already reached max_tries moves to the terminal
// error state instead of back to pending, so a task that keeps failing
// its handler or keeps outliving its lease can't cycle through workers
// forever.
func (s *PostgresTaskStore) ReclaimExpiredLeases(ctx context.Context) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, apperrors.NewDatabaseError("begin reclaim tx", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	rows, err := tx.Query(ctx,
		`UPDATE `+taskTable+` SET
			status = CASE WHEN try_count >= max_tries THEN 'error' ELSE 'pending' END,
			error = CASE WHEN try_count >= max_tries
			             THEN 'lease expired after max_tries (' || max_tries || ')'
			             ELSE error END,
			lease_owner = NULL, lease_expires = NULL, updated_at = now()
		 WHERE status = 'running' AND lease_expires < now()
		 RETURNING id, (try_count >= max_tries)`,
	)
	if err != nil {
		return 0, apperrors.NewDatabaseError("reclaim expired leases", err)
	}
	var ids []string
	var terminal []bool
	for rows.Next() {
		var id string
		var isTerminal bool
		if err := rows.Scan(&id, &isTerminal); err != nil {
			rows.Close()
			return 0, apperrors.NewDatabaseError("scan reclaimed task id", err)
		}
		ids = append(ids, id)
		terminal = append(terminal, isTerminal)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, apperrors.NewDatabaseError("iterate reclaimed tasks", err)
	}

	for i, id := range ids {
		if terminal[i] {
			if err := writeAuditEntry(ctx, tx, types.EventTaskFailed, id, "", "", map[string]any{
				"reason": "lease_expired_max_tries", "terminal": true,
			}); err != nil {
				return 0, err
			}
			continue
		}
		if err := writeAuditEntry(ctx, tx, types.EventLeaseRecovered, id, "", "", nil); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, apperrors.NewDatabaseError("commit reclaim tx", err)
	}
	return len(ids), nil
}

// GetTask fetches a task by id.
func (s *PostgresTaskStore) GetTask(ctx context.Context, taskID string) (*types.Task, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, type, status, input, output, error, user_id_hash, tenant_id,
		        model_used, input_tokens, output_tokens, total_cost, trace_id,
		        lease_owner, lease_expires, try_count, max_tries, created_at, updated_at
		 FROM `+taskTable+` WHERE id = $1`,
		taskID,
	)
	task, err := scanTask(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("task")
	}
	if err != nil {
		return nil, apperrors.NewDatabaseError("get task", err)
	}
	return task, nil
}

type scannableRow interface {
	Scan(dest ...any) error
}

func scanTask(row scannableRow) (*types.Task, error) {
	var t types.Task
	var inputJSON, outputJSON []byte
	var errMsg, userIDHash, tenantID, modelUsed, traceID, leaseOwner *string
	var leaseExpires *time.Time

	if err := row.Scan(
		&t.ID, &t.Type, &t.Status, &inputJSON, &outputJSON, &errMsg, &userIDHash, &tenantID,
		&modelUsed, &t.InputTokens, &t.OutputTokens, &t.TotalCost, &traceID,
		&leaseOwner, &leaseExpires, &t.TryCount, &t.MaxTries, &t.CreatedAt, &t.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if err := t.Input.UnmarshalJSON(inputJSON); err != nil {
		return nil, err
	}
	if err := t.Output.UnmarshalJSON(outputJSON); err != nil {
		return nil, err
	}
	t.Error = deref(errMsg)
	t.UserIDHash = deref(userIDHash)
	t.TenantID = deref(tenantID)
	t.ModelUsed = deref(modelUsed)
	t.TraceID = deref(traceID)
	t.LeaseOwner = deref(leaseOwner)
	if leaseExpires != nil {
		t.LeaseExpires = *leaseExpires
	}
	return &t, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func writeAuditEntry(ctx context.Context, tx pgx.Tx, eventType types.EventType, resourceID, userIDHash, tenantID string, metadata map[string]any) error {
	metaDoc := docstore.NewDocument(metadata)
	metaJSON, err := metaDoc.MarshalJSON()
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeValidation, "marshal audit metadata")
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO audit_log (id, event_type, resource_id, user_id_hash, tenant_id, metadata, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, $6, now())`,
		uuid.NewString(), string(eventType), resourceID, nullable(userIDHash), nullable(tenantID), metaJSON,
	)
	if err != nil {
		return apperrors.NewDatabaseError("write audit entry", err)
	}
	return nil
}
