package types

import (
	"time"

	"github.com/google/uuid"
)

// Verdict constants
const (
	VerdictTrue       = "true"
	VerdictFalse      = "false"
	VerdictMixed      = "mixed"
	VerdictMisleading = "misleading"
	VerdictUnverified = "unverified"
)

// Verdicts lists every verdict in tie-break order.
var Verdicts = []string{VerdictTrue, VerdictFalse, VerdictMixed, VerdictMisleading, VerdictUnverified}

// ValidVerdict reports whether v names a known verdict.
func ValidVerdict(v string) bool {
	for _, known := range Verdicts {
		if v == known {
			return true
		}
	}
	return false
}

// Verification is an independent crowd judgment on a claim. It is not tied to a run.
type Verification struct {
	ID          uuid.UUID `json:"id"`
	ClaimID     uuid.UUID `json:"claim_id"`
	VerifierID  string    `json:"verifier_id"`
	Verdict     string    `json:"verdict"`
	Confidence  float64   `json:"confidence"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// ConsensusResult is the outcome of folding all verifications of a claim.
type ConsensusResult struct {
	ClaimID         uuid.UUID          `json:"claim_id"`
	Count           int                `json:"count"`
	Reached         bool               `json:"consensus_reached"`
	DominantVerdict string             `json:"dominant_verdict,omitempty"`
	Agreement       float64            `json:"agreement"`
	WeightedScore   float64            `json:"weighted_score"`
	GroupWeights    map[string]float64 `json:"group_weights"`
}

// ScoreSource constants
const (
	ScoreSourcePipeline  = "pipeline"
	ScoreSourceConsensus = "consensus"
)

// ReliabilityScore is the single current trust value attached to a claim.
type ReliabilityScore struct {
	ClaimID       uuid.UUID          `json:"claim_id"`
	Value         float64            `json:"value"`
	Source        string             `json:"source"`
	Factors       map[string]float64 `json:"factors,omitempty"`
	Justification string             `json:"justification,omitempty"`
	RunID         *uuid.UUID         `json:"run_id,omitempty"`
	ComputedAt    time.Time          `json:"computed_at"`
}

// Supersedes reports whether s may replace current as the claim's score.
// A consensus score always replaces. A pipeline score never replaces a
// consensus score.
func (s *ReliabilityScore) Supersedes(current *ReliabilityScore) bool {
	if current == nil || s.Source == ScoreSourceConsensus {
		return true
	}
	return current.Source != ScoreSourceConsensus
}
