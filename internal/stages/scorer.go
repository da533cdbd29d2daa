package stages

import (
	"context"
	"fmt"
	"strings"

	"github.com/jonathan/claim-detective/internal/types"
)

// Factor names and the stages they read.
const (
	FactorContent           = "content"
	FactorFactVerification  = "factVerification"
	FactorSourceCredibility = "sourceCredibility"
	FactorCrossReference    = "crossReference"
	FactorClaimDetection    = "claimDetection"
)

// Weight pairs a scoring factor with its stage and weight.
type Weight struct {
	Factor string
	Stage  string
	Weight float64
}

// Weights are the fixed scoring weights. They sum to 1.
var Weights = []Weight{
	{FactorContent, ContentAnalysis, 0.15},
	{FactorFactVerification, FactChecking, 0.35},
	{FactorSourceCredibility, SourceValidation, 0.25},
	{FactorCrossReference, CrossReferencing, 0.15},
	{FactorClaimDetection, ClaimParsing, 0.10},
}

// Breakdown is a computed reliability score with its parts.
type Breakdown struct {
	Value         float64
	Factors       map[string]float64
	Verdict       string
	Justification string
}

// Compute folds the stage confidences into a reliability score. Missing
// stages count as zero.
func Compute(prior map[string]types.StageResult) Breakdown {
	factors := make(map[string]float64, len(Weights))
	lines := make([]string, 0, len(Weights)+1)
	total := 0.0
	for _, w := range Weights {
		score := 0.0
		if res, ok := prior[w.Stage]; ok {
			score = types.Clamp01(res.Confidence)
		}
		contribution := score * w.Weight
		total += contribution
		factors[w.Factor] = score
		lines = append(lines, fmt.Sprintf("%s: %.3f × %.2f = %.3f", w.Factor, score, w.Weight, contribution))
	}
	total = types.Clamp01(total)
	verdict := VerdictBand(total)
	lines = append(lines, fmt.Sprintf("reliability: %.3f (%s)", total, verdict))

	return Breakdown{
		Value:         total,
		Factors:       factors,
		Verdict:       verdict,
		Justification: strings.Join(lines, "\n"),
	}
}

// VerdictBand names the band a reliability value falls in.
func VerdictBand(v float64) string {
	switch {
	case v >= 0.8:
		return "Highly Reliable"
	case v >= 0.6:
		return "Likely Reliable"
	case v >= 0.4:
		return "Uncertain"
	case v >= 0.2:
		return "Likely Unreliable"
	}
	return "Highly Unreliable"
}

// ReliabilityScorer is the terminal stage.
type ReliabilityScorer struct{}

// NewReliabilityScorer returns the reliability-scoring stage.
func NewReliabilityScorer() *ReliabilityScorer { return &ReliabilityScorer{} }

// Name implements Stage.
func (*ReliabilityScorer) Name() string { return ReliabilityScoring }

// Analyze implements Stage.
func (*ReliabilityScorer) Analyze(_ context.Context, in Input) (Outcome, error) {
	b := Compute(in.Prior)
	refs := make([]types.EvidenceRef, 0, len(Weights))
	for _, w := range Weights {
		refs = append(refs, types.EvidenceRef{
			Type:        "factor",
			Description: w.Factor,
			Confidence:  b.Factors[w.Factor],
			SourceID:    w.Stage,
		})
	}
	return Outcome{Result: &types.StageResult{
		Stage:      ReliabilityScoring,
		Confidence: b.Value,
		Evidence:   refs,
		Data: map[string]any{
			"score":         b.Value,
			"factors":       b.Factors,
			"verdict":       b.Verdict,
			"justification": b.Justification,
		},
	}}, nil
}
