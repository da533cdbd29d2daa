package types

import (
	"time"

	"github.com/google/uuid"
)

// Audit event types
const (
	EventClaimSubmitted             = "claim_submitted"
	EventRunStarted                 = "run_started"
	EventRunSuspended               = "run_suspended"
	EventRunResumed                 = "run_resumed"
	EventRunCompleted               = "run_completed"
	EventRunFailed                  = "run_failed"
	EventStageStarted               = "stage_started"
	EventStageCompleted             = "stage_completed"
	EventStageFailed                = "stage_failed"
	EventScoreComputed              = "score_computed"
	EventScoreSuperseded            = "score_superseded"
	EventClarificationRequested     = "clarification_requested"
	EventClarificationResponded     = "clarification_responded"
	EventClarificationExpired       = "clarification_expired"
	EventClarificationStatusChanged = "clarification_status_changed"
	EventVerificationSubmitted      = "verification_submitted"
	EventConsensusReached           = "consensus_reached"
	EventConsensusNotReached        = "consensus_not_reached"
)

// EventCategory groups an event type by the component that produced it.
func EventCategory(eventType string) string {
	switch eventType {
	case EventClaimSubmitted:
		return "claim"
	case EventRunStarted, EventRunSuspended, EventRunResumed, EventRunCompleted, EventRunFailed:
		return "run"
	case EventStageStarted, EventStageCompleted, EventStageFailed:
		return "stage"
	case EventScoreComputed, EventScoreSuperseded:
		return "score"
	case EventClarificationRequested, EventClarificationResponded, EventClarificationExpired,
		EventClarificationStatusChanged:
		return "clarification"
	case EventVerificationSubmitted, EventConsensusReached, EventConsensusNotReached:
		return "consensus"
	}
	return "other"
}

// IsHumanIntervention reports whether the event records a human decision.
func IsHumanIntervention(eventType string) bool {
	switch eventType {
	case EventClarificationResponded, EventVerificationSubmitted, EventClarificationStatusChanged:
		return true
	}
	return false
}

// AuditEvent is an immutable record of one state transition or decision.
// Seq is assigned by the store and breaks ties between equal timestamps.
type AuditEvent struct {
	ID        uuid.UUID      `json:"id"`
	Seq       int64          `json:"seq"`
	ClaimID   uuid.UUID      `json:"claim_id"`
	RunID     *uuid.UUID     `json:"run_id,omitempty"`
	ActorID   *string        `json:"actor_id,omitempty"`
	Type      string         `json:"type"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Before orders events by timestamp, then sequence.
func (e AuditEvent) Before(other AuditEvent) bool {
	if !e.Timestamp.Equal(other.Timestamp) {
		return e.Timestamp.Before(other.Timestamp)
	}
	return e.Seq < other.Seq
}

// AuditFilter narrows an audit query. Zero values match everything.
type AuditFilter struct {
	Since *time.Time
	Until *time.Time
	RunID *uuid.UUID
	Types []string
}

// Match reports whether e passes the filter.
func (f AuditFilter) Match(e AuditEvent) bool {
	if f.Since != nil && e.Timestamp.Before(*f.Since) {
		return false
	}
	if f.Until != nil && !e.Timestamp.Before(*f.Until) {
		return false
	}
	if f.RunID != nil && (e.RunID == nil || *e.RunID != *f.RunID) {
		return false
	}
	if len(f.Types) > 0 {
		for _, t := range f.Types {
			if t == e.Type {
				return true
			}
		}
		return false
	}
	return true
}
