package types

import (
	"time"

	"github.com/google/uuid"
)

// ClarificationType constants
const (
	ClarificationInput              = "input"
	ClarificationMultipleChoice     = "multiple_choice"
	ClarificationValueConfirmation  = "value_confirmation"
	ClarificationActionConfirmation = "action_confirmation"
	ClarificationCustom             = "custom"
)

// ClarificationPriority constants
const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

// ClarificationStatus constants
const (
	ClarificationPending   = "pending"
	ClarificationCompleted = "completed"
	ClarificationExpired   = "expired"
	ClarificationCancelled = "cancelled"
)

// ValidClarificationType reports whether t names a known clarification type.
func ValidClarificationType(t string) bool {
	switch t {
	case ClarificationInput, ClarificationMultipleChoice, ClarificationValueConfirmation,
		ClarificationActionConfirmation, ClarificationCustom:
		return true
	}
	return false
}

// PriorityRank orders priorities from most to least urgent. Unknown priorities sort last.
func PriorityRank(p string) int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 3
	}
	return 4
}

// ValidPriority reports whether p names a known priority.
func ValidPriority(p string) bool {
	return PriorityRank(p) < 4
}

// ClarificationRequest asks a human for input on behalf of one stage of one run.
type ClarificationRequest struct {
	ID                  uuid.UUID      `json:"id"`
	RunID               uuid.UUID      `json:"run_id"`
	ClaimID             uuid.UUID      `json:"claim_id"`
	StageIndex          int            `json:"stage_index"`
	Type                string         `json:"type"`
	Priority            string         `json:"priority"`
	Title               string         `json:"title"`
	Description         string         `json:"description"`
	Options             []string       `json:"options,omitempty"`
	DefaultValue        map[string]any `json:"default_value,omitempty"`
	Status              string         `json:"status"`
	CreatedAt           time.Time      `json:"created_at"`
	ExpiresAt           time.Time      `json:"expires_at"`
	ResponseData        map[string]any `json:"response_data,omitempty"`
	ResponderID         *string        `json:"responder_id,omitempty"`
	RespondedAt         *time.Time     `json:"responded_at,omitempty"`
	ResponseTimeSeconds *float64       `json:"response_time_seconds,omitempty"`
}

// Pending reports whether the request still awaits a response.
func (c *ClarificationRequest) Pending() bool {
	return c.Status == ClarificationPending
}

// Expired reports whether a pending request has passed its deadline at now.
func (c *ClarificationRequest) Expired(now time.Time) bool {
	return c.Pending() && !now.Before(c.ExpiresAt)
}

// HasOption reports whether opt is one of the offered options.
func (c *ClarificationRequest) HasOption(opt string) bool {
	for _, o := range c.Options {
		if o == opt {
			return true
		}
	}
	return false
}

// ClarificationResponse is handed back to the stage that asked for clarification.
// Fallback is set when the request expired or was cancelled and no human answered.
type ClarificationResponse struct {
	RequestID   uuid.UUID      `json:"request_id"`
	StageIndex  int            `json:"stage_index"`
	Data        map[string]any `json:"data,omitempty"`
	ResponderID string         `json:"responder_id,omitempty"`
	Fallback    bool           `json:"fallback"`
	Reason      string         `json:"reason,omitempty"`
}

// ClarificationNeed is returned by a stage instead of a result when it cannot
// proceed without human input.
type ClarificationNeed struct {
	Type           string         `json:"type"`
	Priority       string         `json:"priority"`
	Title          string         `json:"title"`
	Description    string         `json:"description"`
	Options        []string       `json:"options,omitempty"`
	DefaultValue   map[string]any `json:"default_value,omitempty"`
	TimeoutSeconds int            `json:"timeout_seconds"`
}
