// Package store defines the persistence contracts the verification core depends on.
// Implementations live in this package (Memory) and in internal/db (PostgreSQL).
package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/claim-detective/internal/types"
)

// ClaimStore persists immutable claims.
type ClaimStore interface {
	// CreateClaim stores a new claim. Returns *types.DuplicateClaimError when
	// a claim with the same fingerprint exists.
	CreateClaim(ctx context.Context, claim *types.Claim) error
	// GetClaim returns nil, nil when the claim does not exist.
	GetClaim(ctx context.Context, id uuid.UUID) (*types.Claim, error)
	// ListClaims returns the most recent claims submitted strictly before
	// before, newest first. A zero before means no bound.
	ListClaims(ctx context.Context, before time.Time, limit int) ([]types.Claim, error)
}

// RunStore persists runs and their stage statuses.
type RunStore interface {
	// CreateRun stores a new run. Returns *types.ActiveRunError when the claim
	// already has a run in an active state.
	CreateRun(ctx context.Context, run *types.Run) error
	// SaveRun replaces the stored run with run.
	SaveRun(ctx context.Context, run *types.Run) error
	// GetRun returns nil, nil when the run does not exist.
	GetRun(ctx context.Context, id uuid.UUID) (*types.Run, error)
	// LatestRun returns the most recently created run for a claim, or nil.
	LatestRun(ctx context.Context, claimID uuid.UUID) (*types.Run, error)
	// ListRunsByState returns the runs in any of states, oldest first.
	ListRunsByState(ctx context.Context, states ...string) ([]types.Run, error)
}

// ClarificationFilter narrows a clarification listing. Zero values match everything.
type ClarificationFilter struct {
	Status   string
	RunID    *uuid.UUID
	ClaimID  *uuid.UUID
	Priority string
}

// ClarificationStore persists clarification requests.
type ClarificationStore interface {
	CreateClarification(ctx context.Context, req *types.ClarificationRequest) error
	// GetClarification returns nil, nil when the request does not exist.
	GetClarification(ctx context.Context, id uuid.UUID) (*types.ClarificationRequest, error)
	ListClarifications(ctx context.Context, filter ClarificationFilter) ([]types.ClarificationRequest, error)
	// TransitionClarification atomically replaces the stored request with next
	// only if its current status equals from. It reports whether the swap happened.
	TransitionClarification(ctx context.Context, from string, next *types.ClarificationRequest) (bool, error)
	// ListExpiredClarifications returns pending requests whose deadline is at or before now.
	ListExpiredClarifications(ctx context.Context, now time.Time) ([]types.ClarificationRequest, error)
}

// VerificationStore persists crowd verifications.
type VerificationStore interface {
	// CreateVerification stores v. Returns *types.DuplicateVerificationError when
	// the verifier already judged the claim.
	CreateVerification(ctx context.Context, v *types.Verification) error
	ListVerifications(ctx context.Context, claimID uuid.UUID) ([]types.Verification, error)
}

// ScoreStore persists the current reliability score of each claim.
type ScoreStore interface {
	// PutScore writes score if it supersedes the current one and reports
	// whether it was applied. The check and the write are atomic.
	PutScore(ctx context.Context, score *types.ReliabilityScore) (bool, error)
	// GetScore returns nil, nil when the claim has no score.
	GetScore(ctx context.Context, claimID uuid.UUID) (*types.ReliabilityScore, error)
}

// AuditStore persists audit events. Events are never updated or deleted.
type AuditStore interface {
	// AppendAudit stores ev and sets ev.Seq.
	AppendAudit(ctx context.Context, ev *types.AuditEvent) error
	ListAudit(ctx context.Context, claimID uuid.UUID, filter types.AuditFilter) ([]types.AuditEvent, error)
	// AuditRange returns events with start <= timestamp < end across all claims.
	AuditRange(ctx context.Context, start, end time.Time) ([]types.AuditEvent, error)
}

// Repository aggregates every store the core needs.
type Repository interface {
	ClaimStore
	RunStore
	ClarificationStore
	VerificationStore
	ScoreStore
	AuditStore
	Ping(ctx context.Context) error
}
