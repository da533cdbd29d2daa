package progress

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonathan/claim-detective/internal/audit"
	"github.com/jonathan/claim-detective/internal/store"
	"github.com/jonathan/claim-detective/internal/types"
)

// Reader is the slice of the repository the projector reads.
type Reader interface {
	store.ClaimStore
	store.RunStore
	store.ScoreStore
}

// PendingLister lists pending clarifications. The clarification coordinator
// satisfies it and expires stale requests before listing.
type PendingLister interface {
	ListPending(ctx context.Context, filter store.ClarificationFilter) ([]types.ClarificationRequest, error)
}

// ClaimStatus summarizes a claim and its latest run.
type ClaimStatus struct {
	ClaimID               uuid.UUID                    `json:"claim_id"`
	RunID                 *uuid.UUID                   `json:"run_id,omitempty"`
	RunState              string                       `json:"run_state,omitempty"`
	CurrentStage          string                       `json:"current_stage,omitempty"`
	PercentComplete       float64                      `json:"percent_complete"`
	PendingClarifications []types.ClarificationRequest `json:"pending_clarifications"`
	LastScore             *types.ReliabilityScore      `json:"last_score,omitempty"`
	Transparency          audit.TransparencyReport     `json:"transparency"`
}

// RunStatus summarizes one run.
type RunStatus struct {
	RunID                 uuid.UUID                    `json:"run_id"`
	ClaimID               uuid.UUID                    `json:"claim_id"`
	State                 string                       `json:"state"`
	CurrentStage          string                       `json:"current_stage,omitempty"`
	PercentComplete       float64                      `json:"percent_complete"`
	Stages                []types.StageStatus          `json:"stages"`
	PendingClarifications []types.ClarificationRequest `json:"pending_clarifications"`
	Error                 *string                      `json:"error,omitempty"`
}

// Projector answers status queries.
type Projector struct {
	reader  Reader
	pending PendingLister
	audit   *audit.Log
}

// NewProjector creates a projector.
func NewProjector(reader Reader, pending PendingLister, auditLog *audit.Log) *Projector {
	return &Projector{reader: reader, pending: pending, audit: auditLog}
}

// GetStatus reports the claim's latest run, score and audit transparency.
func (p *Projector) GetStatus(ctx context.Context, claimID uuid.UUID) (*ClaimStatus, error) {
	claim, err := p.reader.GetClaim(ctx, claimID)
	if err != nil {
		return nil, types.Infra("get claim", err)
	}
	if claim == nil {
		return nil, &types.NotFoundError{Kind: "claim", ID: claimID.String()}
	}

	status := &ClaimStatus{ClaimID: claimID, PendingClarifications: []types.ClarificationRequest{}}

	run, err := p.reader.LatestRun(ctx, claimID)
	if err != nil {
		return nil, types.Infra("get latest run", err)
	}
	if run != nil {
		runID := run.ID
		status.RunID = &runID
		status.RunState = run.State
		status.CurrentStage = CurrentStage(run)
		status.PercentComplete = Percent(run)
	}

	pending, err := p.pending.ListPending(ctx, store.ClarificationFilter{ClaimID: &claimID})
	if err != nil {
		return nil, err
	}
	if pending != nil {
		status.PendingClarifications = pending
	}

	score, err := p.reader.GetScore(ctx, claimID)
	if err != nil {
		return nil, types.Infra("get score", err)
	}
	status.LastScore = score

	events, err := p.audit.Query(ctx, claimID, types.AuditFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to read audit trail: %w", err)
	}
	status.Transparency = audit.Transparency(events)

	return status, nil
}

// GetRunStatus reports the state of every stage of a run.
func (p *Projector) GetRunStatus(ctx context.Context, runID uuid.UUID) (*RunStatus, error) {
	run, err := p.reader.GetRun(ctx, runID)
	if err != nil {
		return nil, types.Infra("get run", err)
	}
	if run == nil {
		return nil, &types.NotFoundError{Kind: "run", ID: runID.String()}
	}

	pending, err := p.pending.ListPending(ctx, store.ClarificationFilter{RunID: &runID})
	if err != nil {
		return nil, err
	}
	if pending == nil {
		pending = []types.ClarificationRequest{}
	}

	return &RunStatus{
		RunID:                 run.ID,
		ClaimID:               run.ClaimID,
		State:                 run.State,
		CurrentStage:          CurrentStage(run),
		PercentComplete:       Percent(run),
		Stages:                run.Stages,
		PendingClarifications: pending,
		Error:                 run.Error,
	}, nil
}
