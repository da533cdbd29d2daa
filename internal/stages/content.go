package stages

import (
	"context"
	"fmt"

	"github.com/jonathan/claim-detective/internal/analysis"
	"github.com/jonathan/claim-detective/internal/types"
)

// ContentAnalyzer scores how the claim is written.
type ContentAnalyzer struct {
	analyzer analysis.TextAnalyzer
}

// NewContentAnalyzer returns the content-analysis stage.
func NewContentAnalyzer(a analysis.TextAnalyzer) *ContentAnalyzer {
	return &ContentAnalyzer{analyzer: a}
}

// Name implements Stage.
func (*ContentAnalyzer) Name() string { return ContentAnalysis }

// Analyze implements Stage.
func (c *ContentAnalyzer) Analyze(ctx context.Context, in Input) (Outcome, error) {
	m, err := c.analyzer.Analyze(ctx, in.Claim.Text)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to analyze text: %w", err)
	}

	confidence := mean([]float64{m.Readability, 1 - m.ManipulationRisk, m.Objectivity})

	refs := make([]types.EvidenceRef, 0, len(m.EmotionalTerms))
	for _, term := range m.EmotionalTerms {
		refs = append(refs, types.EvidenceRef{
			Type:        "emotional_language",
			Description: fmt.Sprintf("emotionally loaded term %q", term),
			Confidence:  m.ManipulationRisk,
			SourceID:    "claim_text",
		})
	}

	return Outcome{Result: &types.StageResult{
		Stage:      ContentAnalysis,
		Confidence: round3(types.Clamp01(confidence)),
		Evidence:   refs,
		Data: map[string]any{
			"readability":       m.Readability,
			"coherence":         m.Coherence,
			"specificity":       m.Specificity,
			"manipulation_risk": m.ManipulationRisk,
			"objectivity":       m.Objectivity,
			"emotional_terms":   m.EmotionalTerms,
		},
	}}, nil
}
