package stages

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonathan/claim-detective/internal/analysis"
	"github.com/jonathan/claim-detective/internal/clarification"
	"github.com/jonathan/claim-detective/internal/credibility"
	"github.com/jonathan/claim-detective/internal/evidence"
	"github.com/jonathan/claim-detective/internal/store"
	"github.com/jonathan/claim-detective/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClaim(text string, urls ...string) *types.Claim {
	return types.NewClaim(text, urls, time.Now())
}

func hint(v float64) *float64 { return &v }

func TestDefault_Order(t *testing.T) {
	r := Default(Deps{})
	assert.Equal(t, []string{
		ClaimParsing, ContentAnalysis, FactChecking, SourceValidation, CrossReferencing, ReliabilityScoring,
	}, r.Names())
	assert.Equal(t, 6, r.Len())
	assert.Equal(t, FactChecking, r.At(2).Name())
}

func TestNewRegistry(t *testing.T) {
	_, err := NewRegistry(NewClaimParser(), NewReliabilityScorer())
	var depErr *DependencyError
	require.ErrorAs(t, err, &depErr)
	assert.Equal(t, ReliabilityScoring, depErr.Stage)
	assert.Contains(t, depErr.MissingDependencies, FactChecking)

	_, err = NewRegistry(NewClaimParser(), NewClaimParser())
	assert.ErrorContains(t, err, "duplicate stage")

	r, err := NewRegistry(NewClaimParser(), NewContentAnalyzer(analysis.NewHeuristic()))
	require.NoError(t, err)
	assert.Equal(t, 2, r.Len())
}

func TestClaimParser(t *testing.T) {
	out, err := NewClaimParser().Analyze(context.Background(), Input{
		Claim: newClaim("The Eiffel Tower was completed in 1889. It is very tall."),
	})
	require.NoError(t, err)
	require.NotNil(t, out.Result)
	assert.Nil(t, out.Clarify)

	res := out.Result
	assert.Equal(t, 0.75, res.Confidence)
	assert.Equal(t, []string{"The Eiffel Tower was completed in 1889."}, res.Data["statements"])
	assert.Equal(t, []string{"eiffel", "tower", "completed", "1889", "tall"}, res.Data["keywords"])
	require.Len(t, res.Evidence, 1)
	assert.Equal(t, "statement", res.Evidence[0].Type)
}

func TestVerifiableReasons(t *testing.T) {
	tests := []struct {
		sentence string
		want     bool
	}{
		{"Unemployment fell to 3.5% last year.", true},
		{"According to officials, the bridge is safe.", true},
		{"the senator from Ohio voted no.", true},
		{"things are getting worse.", false},
		{"Everything is fine.", false},
	}
	for _, tt := range tests {
		t.Run(tt.sentence, func(t *testing.T) {
			assert.Equal(t, tt.want, len(verifiableReasons(tt.sentence)) > 0)
		})
	}
}

func TestContentAnalyzer(t *testing.T) {
	out, err := NewContentAnalyzer(analysis.NewHeuristic()).Analyze(context.Background(), Input{
		Claim: newClaim("According to NASA, the Artemis launch happened in November 2022."),
	})
	require.NoError(t, err)
	res := out.Result
	require.NotNil(t, res)

	readability := res.Data["readability"].(float64)
	risk := res.Data["manipulation_risk"].(float64)
	objectivity := res.Data["objectivity"].(float64)
	assert.InDelta(t, (readability+(1-risk)+objectivity)/3, res.Confidence, 0.001)
}

type failingAnalyzer struct{}

func (failingAnalyzer) Analyze(context.Context, string) (*analysis.TextMetrics, error) {
	return nil, errors.New("analyzer offline")
}

func TestContentAnalyzer_Error(t *testing.T) {
	_, err := NewContentAnalyzer(failingAnalyzer{}).Analyze(context.Background(), Input{Claim: newClaim("some claim text")})
	assert.ErrorContains(t, err, "analyzer offline")
}

func TestSourceValidator(t *testing.T) {
	v := NewSourceValidator(credibility.NewScorer(time.Minute))

	out, err := v.Analyze(context.Background(), Input{Claim: newClaim("a claim with no sources")})
	require.NoError(t, err)
	assert.Equal(t, 0.5, out.Result.Confidence)

	out, err = v.Analyze(context.Background(), Input{
		Claim: newClaim("a claim with sources", "https://www.reuters.com/world/x", "not a url"),
	})
	require.NoError(t, err)
	assert.InDelta(t, (0.85+0.1)/2, out.Result.Confidence, 0.001)
	require.Len(t, out.Result.Evidence, 2)
	assert.Equal(t, "not a url", out.Result.Evidence[1].SourceID)
}

func TestCrossReferencer(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	earlier := types.NewClaim("Coffee consumption reduces heart disease risk in adults", nil, base)
	unrelated := types.NewClaim("Mars has two moons called Phobos and Deimos", nil, base.Add(time.Minute))
	current := types.NewClaim("Coffee consumption reduces heart disease risk in older adults", nil, base.Add(2*time.Minute))
	for _, c := range []*types.Claim{earlier, unrelated, current} {
		require.NoError(t, mem.CreateClaim(ctx, c))
	}

	out, err := NewCrossReferencer(mem).Analyze(ctx, Input{Claim: current})
	require.NoError(t, err)
	res := out.Result
	assert.Equal(t, 1, res.Data["related"])
	assert.Equal(t, 1, res.Data["duplicates"])
	assert.Equal(t, 0.0, res.Data["novelty"])
	assert.Equal(t, 0.1, res.Confidence)
	require.Len(t, res.Evidence, 1)
	assert.Equal(t, "duplicate_claim", res.Evidence[0].Type)
	assert.Equal(t, earlier.ID.String(), res.Evidence[0].SourceID)

	out, err = NewCrossReferencer(mem).Analyze(ctx, Input{Claim: newClaim("Octopuses have three hearts and blue blood")})
	require.NoError(t, err)
	assert.Equal(t, 0.5, out.Result.Confidence)

	out, err = NewCrossReferencer(nil).Analyze(ctx, Input{Claim: current})
	require.NoError(t, err)
	assert.Equal(t, 0.5, out.Result.Confidence)
}

func TestCrossReferencer_IgnoresLaterClaims(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	original := types.NewClaim("Coffee consumption reduces heart disease risk in adults", nil, base)
	later := types.NewClaim("Coffee consumption reduces heart disease risk in older adults", nil, base.Add(time.Hour))
	require.NoError(t, mem.CreateClaim(ctx, original))
	require.NoError(t, mem.CreateClaim(ctx, later))

	out, err := NewCrossReferencer(mem).Analyze(ctx, Input{Claim: original})
	require.NoError(t, err)
	assert.Equal(t, 0, out.Result.Data["related"])
	assert.Equal(t, 0, out.Result.Data["duplicates"])
	assert.Equal(t, 0.5, out.Result.Confidence)
	assert.Empty(t, out.Result.Evidence)

	out, err = NewCrossReferencer(mem).Analyze(ctx, Input{Claim: later})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Result.Data["related"])
}

func TestCompute_WeightedSum(t *testing.T) {
	prior := map[string]types.StageResult{
		ContentAnalysis:  {Confidence: 0.8},
		FactChecking:     {Confidence: 0.6},
		SourceValidation: {Confidence: 0.9},
		CrossReferencing: {Confidence: 0.5},
		ClaimParsing:     {Confidence: 0.7},
	}
	b := Compute(prior)
	assert.InDelta(t, 0.8*0.15+0.6*0.35+0.9*0.25+0.5*0.15+0.7*0.10, b.Value, 1e-9)
	assert.Equal(t, "Likely Reliable", b.Verdict)
	assert.Contains(t, b.Justification, "factVerification: 0.600 × 0.35 = 0.210")
	assert.Len(t, b.Factors, 5)
}

func TestCompute_Bounds(t *testing.T) {
	total := 0.0
	for _, w := range Weights {
		total += w.Weight
	}
	assert.InDelta(t, 1.0, total, 1e-9)

	assert.Equal(t, 0.0, Compute(nil).Value)

	all := map[string]types.StageResult{}
	for _, w := range Weights {
		all[w.Stage] = types.StageResult{Confidence: 1}
	}
	assert.InDelta(t, 1.0, Compute(all).Value, 1e-9)

	all[FactChecking] = types.StageResult{Confidence: 7}
	assert.LessOrEqual(t, Compute(all).Value, 1.0)
}

func TestVerdictBand(t *testing.T) {
	tests := []struct {
		v    float64
		want string
	}{
		{0.95, "Highly Reliable"},
		{0.8, "Highly Reliable"},
		{0.6, "Likely Reliable"},
		{0.45, "Uncertain"},
		{0.2, "Likely Unreliable"},
		{0.19, "Highly Unreliable"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, VerdictBand(tt.v), "value %.2f", tt.v)
	}
}

func TestReliabilityScorer(t *testing.T) {
	out, err := NewReliabilityScorer().Analyze(context.Background(), Input{
		Claim: newClaim("anything at all"),
		Prior: map[string]types.StageResult{FactChecking: {Confidence: 1}},
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.35, out.Result.Confidence, 1e-9)
	assert.Equal(t, "Likely Unreliable", out.Result.Data["verdict"])
	assert.Len(t, out.Result.Evidence, 5)
}

func coffeeCorpus() *evidence.Static {
	return evidence.NewStatic(
		evidence.Entry{Item: evidence.Item{URL: "https://health.example/a", Snippet: "Study finds coffee lowers risk", VerdictHint: evidence.HintSupporting, CredibilityHint: hint(0.9)}, Keywords: []string{"coffee"}},
		evidence.Entry{Item: evidence.Item{URL: "https://health.example/b", Snippet: "Claim about coffee is misleading", VerdictHint: evidence.HintContradicting, CredibilityHint: hint(0.9)}, Keywords: []string{"coffee"}},
	)
}

func TestFactChecker_Supporting(t *testing.T) {
	corpus := evidence.NewStatic(
		evidence.Entry{Item: evidence.Item{URL: "https://a.example", VerdictHint: evidence.HintSupporting, CredibilityHint: hint(0.8)}, Keywords: []string{"coffee"}},
		evidence.Entry{Item: evidence.Item{URL: "https://b.example", VerdictHint: evidence.HintNeutral, CredibilityHint: hint(0.5)}, Keywords: []string{"coffee"}},
	)
	fc := NewFactChecker(credibility.NewScorer(time.Minute), clarification.DefaultPolicy())

	out, err := fc.Analyze(context.Background(), Input{Claim: newClaim("Coffee is good for you"), Evidence: corpus})
	require.NoError(t, err)
	require.NotNil(t, out.Result)
	assert.Equal(t, Supporting, out.Result.Data["classification"])
	assert.Equal(t, 0.5, out.Result.Confidence)
	assert.Equal(t, 1.0, out.Result.Data["consensus_ratio"])
	assert.Len(t, out.Result.Evidence, 2)
}

func TestFactChecker_NoEvidence(t *testing.T) {
	fc := NewFactChecker(credibility.NewScorer(time.Minute), clarification.DefaultPolicy())
	out, err := fc.Analyze(context.Background(), Input{Claim: newClaim("Nothing matches this claim")})
	require.NoError(t, err)
	assert.Equal(t, Neutral, out.Result.Data["classification"])
	assert.Equal(t, 0.15, out.Result.Confidence)
}

func TestFactChecker_ConflictRequestsClarification(t *testing.T) {
	fc := NewFactChecker(credibility.NewScorer(time.Minute), clarification.DefaultPolicy())

	out, err := fc.Analyze(context.Background(), Input{Claim: newClaim("Coffee prevents heart disease"), Evidence: coffeeCorpus()})
	require.NoError(t, err)
	assert.Nil(t, out.Result)
	require.NotNil(t, out.Clarify)
	assert.Equal(t, types.ClarificationMultipleChoice, out.Clarify.Type)
	assert.Equal(t, types.PriorityHigh, out.Clarify.Priority)
	assert.Equal(t, 900, out.Clarify.TimeoutSeconds)
	assert.Equal(t, ConflictOptions, out.Clarify.Options)
	assert.Equal(t, map[string]any{"selected_option": OptionManualReview}, out.Clarify.DefaultValue)
}

func TestFactChecker_ConflictWithClarificationsDisabled(t *testing.T) {
	policy := clarification.DefaultPolicy()
	policy.Enabled = false
	fc := NewFactChecker(credibility.NewScorer(time.Minute), policy)

	out, err := fc.Analyze(context.Background(), Input{Claim: newClaim("Coffee prevents heart disease"), Evidence: coffeeCorpus()})
	require.NoError(t, err)
	require.NotNil(t, out.Result)
	assert.Equal(t, Neutral, out.Result.Data["classification"])
	assert.Equal(t, 0.5, out.Result.Data["consensus_ratio"])
}

func TestFactChecker_ReEntry(t *testing.T) {
	fc := NewFactChecker(credibility.NewScorer(time.Minute), clarification.DefaultPolicy())
	claim := newClaim("Coffee prevents heart disease")

	tests := []struct {
		name           string
		response       *types.ClarificationResponse
		classification string
		confidence     float64
	}{
		{
			name:           "human supports",
			response:       &types.ClarificationResponse{Data: map[string]any{"selected_option": Supporting}, ResponderID: "reviewer-1"},
			classification: Supporting,
			confidence:     0.9,
		},
		{
			name:           "human contradicts with confidence",
			response:       &types.ClarificationResponse{Data: map[string]any{"selected_option": Contradicting, "confidence": 0.7}},
			classification: Contradicting,
			confidence:     0.7,
		},
		{
			name:           "manual review fallback",
			response:       &types.ClarificationResponse{Data: map[string]any{"selected_option": OptionManualReview}, Fallback: true, Reason: "expired"},
			classification: Neutral,
			confidence:     0.5,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := fc.Analyze(context.Background(), Input{Claim: claim, Evidence: coffeeCorpus(), Response: tt.response})
			require.NoError(t, err)
			require.NotNil(t, out.Result)
			assert.Nil(t, out.Clarify)
			assert.Equal(t, tt.classification, out.Result.Data["classification"])
			assert.Equal(t, tt.confidence, out.Result.Confidence)
			assert.Equal(t, tt.response.Data["selected_option"], out.Result.Data["human_decision"])
		})
	}
}

func TestFactChecker_RequestMoreEvidence(t *testing.T) {
	var queries []string
	provider := evidence.ProviderFunc(func(_ context.Context, q string) ([]evidence.Item, error) {
		queries = append(queries, q)
		return nil, nil
	})
	fc := NewFactChecker(credibility.NewScorer(time.Minute), clarification.DefaultPolicy())

	_, err := fc.Analyze(context.Background(), Input{
		Claim: newClaim("Vaccine trial showed 95% efficacy"),
		Prior: map[string]types.StageResult{ClaimParsing: {Data: map[string]any{
			"statements": []any{"Vaccine trial showed 95% efficacy"},
			"keywords":   []any{"vaccine", "trial"},
		}}},
		Evidence: provider,
		Response: &types.ClarificationResponse{Data: map[string]any{"selected_option": OptionRequestMoreEvidence}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Vaccine trial showed 95% efficacy", "vaccine trial"}, queries)
}

func TestFactChecker_ProviderError(t *testing.T) {
	provider := evidence.ProviderFunc(func(context.Context, string) ([]evidence.Item, error) {
		return nil, errors.New("search backend down")
	})
	fc := NewFactChecker(credibility.NewScorer(time.Minute), clarification.DefaultPolicy())
	_, err := fc.Analyze(context.Background(), Input{Claim: newClaim("Anything to check here"), Evidence: provider})
	assert.ErrorContains(t, err, "search backend down")
}
