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

	"github.com/jmoiron/sqlx"

	apperrors "github.com/taskmesh/orchestrator-core/internal/errortypes"
)

// TaskSummary is one row of the admin surface's task listing: cheap,
// read-only, and deliberately decoupled from the pgx claim path so a slow
// reporting query can never contend with lease claims.
type TaskSummary struct {
	ID           string    `db:"id"`
	Type         string    `db:"type"`
	Status       string    `db:"status"`
	TenantID     string    `db:"tenant_id"`
	TryCount     int       `db:"try_count"`
	TotalCost    float64   `db:"total_cost"`
	InputTokens  int64     `db:"input_tokens"`
	OutputTokens int64     `db:"output_tokens"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// UsageTotals aggregates token and cost accounting over a tenant's tasks.
type UsageTotals struct {
	TenantID     string  `db:"tenant_id"`
	InputTokens  int64   `db:"input_tokens"`
	OutputTokens int64   `db:"output_tokens"`
	TotalCost    float64 `db:"total_cost"`
	TaskCount    int64   `db:"task_count"`
}

// ReportingStore answers read-only queries over sqlx/lib-pq: it never
// claims or mutates a task, so it can run against a read replica.
type ReportingStore struct {
	db *sqlx.DB
}

// NewReportingStore constructs a ReportingStore over db.
func NewReportingStore(db *sqlx.DB) *ReportingStore {
	return &ReportingStore{db: db}
}

// ListTasks returns up to limit tasks, optionally filtered by status, most
// recently created first.
func (r *ReportingStore) ListTasks(ctx context.Context, status string, limit int) ([]TaskSummary, error) {
	var summaries []TaskSummary
	query := `SELECT id, type, status, COALESCE(tenant_id, '') AS tenant_id, try_count,
	                 total_cost, input_tokens, output_tokens, created_at, updated_at
	          FROM tasks`
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1 ORDER BY created_at DESC LIMIT $2`
		args = append(args, status, limit)
	} else {
		query += ` ORDER BY created_at DESC LIMIT $1`
		args = append(args, limit)
	}
	if err := r.db.SelectContext(ctx, &summaries, query, args...); err != nil {
		return nil, apperrors.NewDatabaseError("list tasks", err)
	}
	return summaries, nil
}

// UsageByTenant aggregates token/cost usage per tenant across completed
// tasks.
func (r *ReportingStore) UsageByTenant(ctx context.Context) ([]UsageTotals, error) {
	var totals []UsageTotals
	query := `SELECT COALESCE(tenant_id, 'unknown') AS tenant_id,
	                 SUM(input_tokens) AS input_tokens, SUM(output_tokens) AS output_tokens,
	                 SUM(total_cost) AS total_cost, COUNT(*) AS task_count
	          FROM tasks WHERE status = 'done' GROUP BY tenant_id ORDER BY total_cost DESC`
	if err := r.db.SelectContext(ctx, &totals, query); err != nil {
		return nil, apperrors.NewDatabaseError("usage by tenant", err)
	}
	return totals, nil
}

// QueueDepth returns the number of tasks currently pending.
func (r *ReportingStore) QueueDepth(ctx context.Context) (int64, error) {
	var depth int64
	if err := r.db.GetContext(ctx, &depth, `SELECT COUNT(*) FROM tasks WHERE status = 'pending'`); err != nil {
		return 0, apperrors.NewDatabaseError("queue depth", err)
	}
	return depth, nil
}
