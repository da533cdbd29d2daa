// Package audit records and reads the append-only decision trail of every claim.
package audit

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/claim-detective/internal/store"
	"github.com/jonathan/claim-detective/internal/types"
)

// Log appends typed events and serves filtered reads.
type Log struct {
	store store.AuditStore
	now   func() time.Time

	mu   sync.Mutex
	last time.Time
}

// NewLog creates an audit log backed by s.
func NewLog(s store.AuditStore) *Log {
	return &Log{store: s, now: time.Now}
}

// WithClock replaces the time source. Used by tests.
func (l *Log) WithClock(now func() time.Time) *Log {
	l.now = now
	return l
}

// timestamp returns a UTC time strictly after the previous one handed out.
func (l *Log) timestamp() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()

	ts := l.now().UTC()
	if !ts.After(l.last) {
		ts = l.last.Add(time.Nanosecond)
	}
	l.last = ts
	return ts
}

// Append stores ev, filling in the id and timestamp when missing.
func (l *Log) Append(ctx context.Context, ev *types.AuditEvent) error {
	if ev.ClaimID == uuid.Nil {
		return &types.ValidationError{Field: "claim_id", Message: "audit events must reference a claim"}
	}
	if ev.Type == "" {
		return &types.ValidationError{Field: "type", Message: "is required"}
	}
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	ev.Timestamp = l.timestamp()
	if err := l.store.AppendAudit(ctx, ev); err != nil {
		return types.Infra("append audit event", fmt.Errorf("failed to append %s: %w", ev.Type, err))
	}
	return nil
}

// Record is a convenience wrapper around Append.
func (l *Log) Record(ctx context.Context, claimID uuid.UUID, runID *uuid.UUID, actorID string, eventType string, data map[string]any) error {
	ev := &types.AuditEvent{
		ClaimID: claimID,
		RunID:   runID,
		Type:    eventType,
		Data:    data,
	}
	if actorID != "" {
		ev.ActorID = &actorID
	}
	return l.Append(ctx, ev)
}

// RecordBestEffort appends an event and only logs a failure. It is used on
// paths where the state change already happened and must not be undone.
func (l *Log) RecordBestEffort(ctx context.Context, claimID uuid.UUID, runID *uuid.UUID, actorID string, eventType string, data map[string]any) {
	if err := l.Record(ctx, claimID, runID, actorID, eventType, data); err != nil {
		log.Printf("[audit] failed to record %s for claim %s: %v", eventType, claimID, err)
	}
}

// Query returns the events of one claim ordered by timestamp and sequence.
func (l *Log) Query(ctx context.Context, claimID uuid.UUID, filter types.AuditFilter) ([]types.AuditEvent, error) {
	events, err := l.store.ListAudit(ctx, claimID, filter)
	if err != nil {
		return nil, types.Infra("query audit trail", err)
	}
	return events, nil
}

// ExportRange returns all events with start <= timestamp < end.
func (l *Log) ExportRange(ctx context.Context, start, end time.Time) ([]types.AuditEvent, error) {
	if !end.After(start) {
		return nil, &types.ValidationError{Field: "end", Message: "must be after start"}
	}
	events, err := l.store.AuditRange(ctx, start.UTC(), end.UTC())
	if err != nil {
		return nil, types.Infra("export audit range", err)
	}
	return events, nil
}
