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

// Package audit answers read-only queries over the audit_log table that
// pkg/store.PostgresTaskStore writes to transactionally alongside every
// state transition. There is no separate buffered/async audit writer here:
// a state transition and its audit record must never diverge, which only
// holds if the write happens in the same transaction as the transition, so
// the write side lives inline in pkg/store rather than behind a batching
// client. This package is the reporting half of that design, not a drop-in
// replacement for a buffered store.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"

	apperrors "github.com/taskmesh/orchestrator-core/internal/errortypes"
	"github.com/taskmesh/orchestrator-core/pkg/docstore"
	"github.com/taskmesh/orchestrator-core/pkg/types"
)

type auditRow struct {
	ID         string    `db:"id"`
	EventType  string    `db:"event_type"`
	ResourceID string    `db:"resource_id"`
	UserIDHash string    `db:"user_id_hash"`
	TenantID   string    `db:"tenant_id"`
	Metadata   []byte    `db:"metadata"`
	OccurredAt time.Time `db:"occurred_at"`
}

func (r auditRow) toEntry() (types.AuditEntry, error) {
	var meta map[string]any
	if len(r.Metadata) > 0 {
		if err := json.Unmarshal(r.Metadata, &meta); err != nil {
			return types.AuditEntry{}, apperrors.Wrap(err, apperrors.ErrorTypeValidation, "unmarshal audit metadata")
		}
	}
	return types.AuditEntry{
		ID:         r.ID,
		EventType:  types.EventType(r.EventType),
		ResourceID: r.ResourceID,
		UserIDHash: r.UserIDHash,
		TenantID:   r.TenantID,
		Timestamp:  r.OccurredAt,
		Metadata:   docstore.NewDocument(meta),
	}, nil
}

// Reader answers read-only queries over the audit_log table, mirroring
// store.ReportingStore's separation of read traffic from the claim path.
type Reader struct {
	db *sqlx.DB
}

// NewReader constructs a Reader over db.
func NewReader(db *sqlx.DB) *Reader {
	return &Reader{db: db}
}

// ForResource returns every audit entry recorded against resourceID, oldest
// first, reconstructing the full transition history of a task or subtask.
func (r *Reader) ForResource(ctx context.Context, resourceID string) ([]types.AuditEntry, error) {
	var rows []auditRow
	query := `SELECT id, event_type, resource_id, COALESCE(user_id_hash, '') AS user_id_hash,
	                 COALESCE(tenant_id, '') AS tenant_id, metadata, occurred_at
	          FROM audit_log WHERE resource_id = $1 ORDER BY occurred_at ASC`
	if err := r.db.SelectContext(ctx, &rows, query, resourceID); err != nil {
		return nil, apperrors.NewDatabaseError("audit entries for resource", err)
	}
	return toEntries(rows)
}

// ByEventType returns the most recent entries of eventType across every
// resource, newest first, capped at limit.
func (r *Reader) ByEventType(ctx context.Context, eventType types.EventType, limit int) ([]types.AuditEntry, error) {
	var rows []auditRow
	query := `SELECT id, event_type, resource_id, COALESCE(user_id_hash, '') AS user_id_hash,
	                 COALESCE(tenant_id, '') AS tenant_id, metadata, occurred_at
	          FROM audit_log WHERE event_type = $1 ORDER BY occurred_at DESC LIMIT $2`
	if err := r.db.SelectContext(ctx, &rows, query, string(eventType), limit); err != nil {
		return nil, apperrors.NewDatabaseError("audit entries by event type", err)
	}
	return toEntries(rows)
}

// ForTenant returns the most recent entries for tenantID across every
// resource, newest first, capped at limit.
func (r *Reader) ForTenant(ctx context.Context, tenantID string, limit int) ([]types.AuditEntry, error) {
	var rows []auditRow
	query := `SELECT id, event_type, resource_id, COALESCE(user_id_hash, '') AS user_id_hash,
	                 COALESCE(tenant_id, '') AS tenant_id, metadata, occurred_at
	          FROM audit_log WHERE tenant_id = $1 ORDER BY occurred_at DESC LIMIT $2`
	if err := r.db.SelectContext(ctx, &rows, query, tenantID, limit); err != nil {
		return nil, apperrors.NewDatabaseError("audit entries for tenant", err)
	}
	return toEntries(rows)
}

func toEntries(rows []auditRow) ([]types.AuditEntry, error) {
	entries := make([]types.AuditEntry, 0, len(rows))
	for _, row := range rows {
		entry, err := row.toEntry()
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
