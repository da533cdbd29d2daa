package stages

import (
	"context"
	"fmt"

	"github.com/jonathan/claim-detective/internal/credibility"
	"github.com/jonathan/claim-detective/internal/types"
)

// SourceValidator rates the credibility of the URLs submitted with the claim.
type SourceValidator struct {
	scorer *credibility.Scorer
}

// NewSourceValidator returns the source-validation stage.
func NewSourceValidator(scorer *credibility.Scorer) *SourceValidator {
	return &SourceValidator{scorer: scorer}
}

// Name implements Stage.
func (*SourceValidator) Name() string { return SourceValidation }

// Analyze implements Stage.
func (v *SourceValidator) Analyze(_ context.Context, in Input) (Outcome, error) {
	if len(in.Claim.SourceURLs) == 0 {
		return Outcome{Result: &types.StageResult{
			Stage:      SourceValidation,
			Confidence: 0.5,
			Evidence:   []types.EvidenceRef{},
			Data:       map[string]any{"sources": []credibility.Assessment{}, "note": "no sources provided"},
		}}, nil
	}

	assessments := make([]credibility.Assessment, 0, len(in.Claim.SourceURLs))
	scores := make([]float64, 0, len(in.Claim.SourceURLs))
	refs := make([]types.EvidenceRef, 0, len(in.Claim.SourceURLs))
	for _, u := range in.Claim.SourceURLs {
		a := v.scorer.Assess(u)
		assessments = append(assessments, a)
		scores = append(scores, a.Score)
		refs = append(refs, types.EvidenceRef{
			Type:        "source",
			Description: fmt.Sprintf("%s source %s", a.Type, a.Domain),
			Confidence:  a.Score,
			SourceID:    u,
		})
	}

	return Outcome{Result: &types.StageResult{
		Stage:      SourceValidation,
		Confidence: round3(mean(scores)),
		Evidence:   refs,
		Data:       map[string]any{"sources": assessments},
	}}, nil
}
