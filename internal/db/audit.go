package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/claim-detective/internal/types"
)

// -----------------------------------------------------------------------------
// Audit events
// -----------------------------------------------------------------------------

// AppendAudit implements store.AuditStore.
func (db *DB) AppendAudit(ctx context.Context, ev *types.AuditEvent) error {
	data, err := marshalJSON(ev.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal audit data: %w", err)
	}

	err = db.pool.QueryRow(ctx,
		`INSERT INTO audit_events (id, claim_id, run_id, actor_id, type, data, timestamp)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING seq`,
		ev.ID, ev.ClaimID, ev.RunID, ev.ActorID, ev.Type, data, ev.Timestamp,
	).Scan(&ev.Seq)
	if err != nil {
		return fmt.Errorf("failed to append audit event: %w", err)
	}
	return nil
}

// ListAudit implements store.AuditStore.
func (db *DB) ListAudit(ctx context.Context, claimID uuid.UUID, filter types.AuditFilter) ([]types.AuditEvent, error) {
	query := `SELECT seq, id, claim_id, run_id, actor_id, type, data, timestamp
	          FROM audit_events
	          WHERE claim_id = $1`
	args := []any{claimID}
	argPos := 2

	if filter.Since != nil {
		query += fmt.Sprintf(" AND timestamp >= $%d", argPos)
		args = append(args, *filter.Since)
		argPos++
	}
	if filter.Until != nil {
		query += fmt.Sprintf(" AND timestamp < $%d", argPos)
		args = append(args, *filter.Until)
		argPos++
	}
	if filter.RunID != nil {
		query += fmt.Sprintf(" AND run_id = $%d", argPos)
		args = append(args, *filter.RunID)
		argPos++
	}
	if len(filter.Types) > 0 {
		query += fmt.Sprintf(" AND type = ANY($%d)", argPos)
		args = append(args, filter.Types)
	}
	query += " ORDER BY timestamp, seq"

	return db.queryAudit(ctx, query, args...)
}

// AuditRange implements store.AuditStore.
func (db *DB) AuditRange(ctx context.Context, start, end time.Time) ([]types.AuditEvent, error) {
	return db.queryAudit(ctx,
		`SELECT seq, id, claim_id, run_id, actor_id, type, data, timestamp
		 FROM audit_events
		 WHERE timestamp >= $1 AND timestamp < $2
		 ORDER BY timestamp, seq`, start, end)
}

func (db *DB) queryAudit(ctx context.Context, query string, args ...any) ([]types.AuditEvent, error) {
	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer rows.Close()

	events := []types.AuditEvent{}
	for rows.Next() {
		var ev types.AuditEvent
		var data []byte
		if err := rows.Scan(&ev.Seq, &ev.ID, &ev.ClaimID, &ev.RunID, &ev.ActorID, &ev.Type, &data, &ev.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		if err := unmarshalJSON(data, &ev.Data); err != nil {
			return nil, fmt.Errorf("failed to decode audit data: %w", err)
		}
		ev.Timestamp = ev.Timestamp.UTC()
		events = append(events, ev)
	}
	return events, rows.Err()
}
