// Package consensus folds independent crowd verifications of a claim into a
// verdict and, once enough verifiers agree, into the claim's score.
package consensus

import (
	"context"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/claim-detective/internal/audit"
	"github.com/jonathan/claim-detective/internal/keylock"
	"github.com/jonathan/claim-detective/internal/store"
	"github.com/jonathan/claim-detective/internal/types"
)

// Thresholds for reaching consensus.
const (
	MinVerifications   = 3
	AgreementThreshold = 0.6
)

// Anchors map each verdict to the score it stands for.
var Anchors = map[string]float64{
	types.VerdictTrue:       0.9,
	types.VerdictFalse:      0.1,
	types.VerdictMixed:      0.5,
	types.VerdictMisleading: 0.3,
	types.VerdictUnverified: 0.5,
}

// WeightFunc returns how much a verifier's judgment counts.
type WeightFunc func(verifierID string) float64

// EqualWeight gives every verifier weight 1.
func EqualWeight(string) float64 { return 1 }

// Repository is the slice of persistence the aggregator needs.
type Repository interface {
	store.ClaimStore
	store.VerificationStore
	store.ScoreStore
}

// Aggregator records verifications and evaluates consensus.
type Aggregator struct {
	repo   Repository
	audit  *audit.Log
	weight WeightFunc
	now    func() time.Time
	locks  *keylock.Map
}

// NewAggregator creates an aggregator with equal verifier weights.
func NewAggregator(repo Repository, auditLog *audit.Log) *Aggregator {
	return &Aggregator{
		repo:   repo,
		audit:  auditLog,
		weight: EqualWeight,
		now:    time.Now,
		locks:  keylock.New(),
	}
}

// WithWeights replaces the verifier weighting.
func (a *Aggregator) WithWeights(fn WeightFunc) *Aggregator {
	if fn != nil {
		a.weight = fn
	}
	return a
}

// WithClock replaces the time source. Used by tests.
func (a *Aggregator) WithClock(now func() time.Time) *Aggregator {
	a.now = now
	return a
}

// Submit stores one verifier's verdict and re-evaluates the claim.
// Submissions for the same claim are serialized.
func (a *Aggregator) Submit(ctx context.Context, claimID uuid.UUID, verifierID, verdict string, confidence float64) (*types.ConsensusResult, error) {
	verifierID = strings.TrimSpace(verifierID)
	verdict = strings.ToLower(strings.TrimSpace(verdict))
	if err := validate(verifierID, verdict, confidence); err != nil {
		return nil, err
	}

	unlock := a.locks.Lock(claimID)
	defer unlock()

	claim, err := a.repo.GetClaim(ctx, claimID)
	if err != nil {
		return nil, types.Infra("get claim", err)
	}
	if claim == nil {
		return nil, &types.NotFoundError{Kind: "claim", ID: claimID.String()}
	}

	v := &types.Verification{
		ID:          uuid.New(),
		ClaimID:     claimID,
		VerifierID:  verifierID,
		Verdict:     verdict,
		Confidence:  confidence,
		SubmittedAt: a.now().UTC(),
	}
	if err := a.repo.CreateVerification(ctx, v); err != nil {
		return nil, types.Infra("create verification", err)
	}
	if err := a.audit.Record(ctx, claimID, nil, verifierID, types.EventVerificationSubmitted, map[string]any{
		"verification_id": v.ID.String(),
		"verdict":         verdict,
		"confidence":      confidence,
	}); err != nil {
		return nil, err
	}

	result, err := a.evaluate(ctx, claimID)
	if err != nil {
		return nil, err
	}
	if err := a.apply(ctx, result); err != nil {
		return nil, err
	}
	return result, nil
}

// Evaluate computes the current consensus without changing anything.
func (a *Aggregator) Evaluate(ctx context.Context, claimID uuid.UUID) (*types.ConsensusResult, error) {
	claim, err := a.repo.GetClaim(ctx, claimID)
	if err != nil {
		return nil, types.Infra("get claim", err)
	}
	if claim == nil {
		return nil, &types.NotFoundError{Kind: "claim", ID: claimID.String()}
	}
	return a.evaluate(ctx, claimID)
}

func (a *Aggregator) evaluate(ctx context.Context, claimID uuid.UUID) (*types.ConsensusResult, error) {
	verifications, err := a.repo.ListVerifications(ctx, claimID)
	if err != nil {
		return nil, types.Infra("list verifications", err)
	}
	result := Compute(claimID, verifications, a.weight)
	return &result, nil
}

// apply writes the consensus score once it is reached.
func (a *Aggregator) apply(ctx context.Context, result *types.ConsensusResult) error {
	data := map[string]any{
		"count":            result.Count,
		"agreement":        result.Agreement,
		"weighted_score":   result.WeightedScore,
		"dominant_verdict": result.DominantVerdict,
	}
	if !result.Reached {
		if result.Count >= MinVerifications {
			return a.audit.Record(ctx, result.ClaimID, nil, "", types.EventConsensusNotReached, data)
		}
		return nil
	}

	score := &types.ReliabilityScore{
		ClaimID:       result.ClaimID,
		Value:         result.WeightedScore,
		Source:        types.ScoreSourceConsensus,
		Justification: justification(result),
		ComputedAt:    a.now().UTC(),
	}
	if _, err := a.repo.PutScore(ctx, score); err != nil {
		return types.Infra("put consensus score", err)
	}
	if err := a.audit.Record(ctx, result.ClaimID, nil, "", types.EventConsensusReached, data); err != nil {
		return err
	}
	log.Printf("[consensus] claim %s reached %s at %.3f agreement over %d verification(s)",
		result.ClaimID, result.DominantVerdict, result.Agreement, result.Count)
	return nil
}

// Compute folds verifications into a consensus result.
func Compute(claimID uuid.UUID, verifications []types.Verification, weight WeightFunc) types.ConsensusResult {
	if weight == nil {
		weight = EqualWeight
	}
	result := types.ConsensusResult{
		ClaimID:      claimID,
		Count:        len(verifications),
		GroupWeights: make(map[string]float64),
	}

	var total, weighted float64
	for _, v := range verifications {
		w := math.Max(weight(v.VerifierID), 0)
		total += w
		weighted += Anchors[v.Verdict] * v.Confidence * w
		result.GroupWeights[v.Verdict] += w
	}
	if total == 0 {
		return result
	}

	best := -1.0
	for _, verdict := range types.Verdicts {
		if g, ok := result.GroupWeights[verdict]; ok && g > best {
			best = g
			result.DominantVerdict = verdict
		}
	}
	result.WeightedScore = types.Clamp01(weighted / total)
	result.Agreement = best / total
	result.Reached = result.Count >= MinVerifications && result.Agreement >= AgreementThreshold
	return result
}

func validate(verifierID, verdict string, confidence float64) error {
	switch {
	case verifierID == "":
		return &types.ValidationError{Field: "verifier_id", Message: "is required"}
	case !types.ValidVerdict(verdict):
		return &types.ValidationError{Field: "verdict", Message: fmt.Sprintf("must be one of: %s", strings.Join(types.Verdicts, " "))}
	case math.IsNaN(confidence) || confidence < 0 || confidence > 1:
		return &types.ValidationError{Field: "confidence", Message: "must be between 0 and 1"}
	}
	return nil
}

func justification(r *types.ConsensusResult) string {
	return fmt.Sprintf("consensus: %d verification(s), %s at %.3f agreement, weighted score %.3f",
		r.Count, r.DominantVerdict, r.Agreement, r.WeightedScore)
}
