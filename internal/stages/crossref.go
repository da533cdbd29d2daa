package stages

import (
	"context"
	"fmt"
	"math"

	"github.com/jonathan/claim-detective/internal/analysis"
	"github.com/jonathan/claim-detective/internal/store"
	"github.com/jonathan/claim-detective/internal/types"
)

const (
	crossReferenceWindow = 500
	duplicateSimilarity  = 0.8
	relatedSimilarity    = 0.3
)

// CrossReferencer compares the claim with claims submitted before it by
// keyword overlap. Re-running an old claim never looks at later ones.
type CrossReferencer struct {
	claims store.ClaimStore
}

// NewCrossReferencer returns the cross-referencing stage. A nil store
// treats every claim as novel.
func NewCrossReferencer(claims store.ClaimStore) *CrossReferencer {
	return &CrossReferencer{claims: claims}
}

// Name implements Stage.
func (*CrossReferencer) Name() string { return CrossReferencing }

// Analyze implements Stage.
func (c *CrossReferencer) Analyze(ctx context.Context, in Input) (Outcome, error) {
	keywords := priorStrings(in.Prior, ClaimParsing, "keywords")
	if len(keywords) == 0 {
		keywords = analysis.Keywords(in.Claim.Text, 5)
	}

	var others []types.Claim
	if c.claims != nil {
		var err error
		others, err = c.claims.ListClaims(ctx, in.Claim.SubmittedAt, crossReferenceWindow)
		if err != nil {
			return Outcome{}, fmt.Errorf("failed to list prior claims: %w", err)
		}
	}

	maxSim := 0.0
	related, duplicates := 0, 0
	refs := []types.EvidenceRef{}
	for _, other := range others {
		if other.ID == in.Claim.ID {
			continue
		}
		sim := analysis.Similarity(keywords, analysis.Keywords(other.Text, 5))
		maxSim = math.Max(maxSim, sim)
		if sim < relatedSimilarity {
			continue
		}
		related++
		kind := "related_claim"
		if sim >= duplicateSimilarity {
			duplicates++
			kind = "duplicate_claim"
		}
		refs = append(refs, types.EvidenceRef{
			Type:        kind,
			Description: fmt.Sprintf("keyword similarity %.2f", sim),
			Confidence:  round3(sim),
			SourceID:    other.ID.String(),
		})
	}

	novelty := 1 - maxSim
	var confidence float64
	if related > 0 {
		confidence = math.Max(math.Min(0.4+0.1*float64(related), 0.9)*novelty, 0.1)
	} else {
		confidence = 0.5 * novelty
	}

	return Outcome{Result: &types.StageResult{
		Stage:      CrossReferencing,
		Confidence: round3(types.Clamp01(confidence)),
		Evidence:   refs,
		Data: map[string]any{
			"compared":       len(others),
			"related":        related,
			"duplicates":     duplicates,
			"max_similarity": round3(maxSim),
			"novelty":        round3(novelty),
		},
	}}, nil
}
