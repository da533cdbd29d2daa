package stages

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/jonathan/claim-detective/internal/clarification"
	"github.com/jonathan/claim-detective/internal/credibility"
	"github.com/jonathan/claim-detective/internal/evidence"
	"github.com/jonathan/claim-detective/internal/types"
)

// Fact-check classifications and clarification options.
const (
	Supporting    = "supporting"
	Contradicting = "contradicting"
	Neutral       = "neutral"

	OptionRequestMoreEvidence = "request_more_evidence"
	OptionManualReview        = "manual_review"
)

// ConflictOptions are offered when evidence disagrees.
var ConflictOptions = []string{Supporting, Contradicting, OptionRequestMoreEvidence, OptionManualReview}

const defaultHumanConfidence = 0.9

// FactChecker looks up evidence for each checkable statement and classifies it.
type FactChecker struct {
	scorer *credibility.Scorer
	policy clarification.Policy
}

// NewFactChecker returns the fact-checking stage.
func NewFactChecker(scorer *credibility.Scorer, policy clarification.Policy) *FactChecker {
	return &FactChecker{scorer: scorer, policy: policy}
}

// Name implements Stage.
func (*FactChecker) Name() string { return FactChecking }

type tally struct {
	items         []evidence.Item
	weights       []float64
	supporting    float64
	contradicting float64
	supportN      int
	contradictN   int
}

// Analyze implements Stage.
func (f *FactChecker) Analyze(ctx context.Context, in Input) (Outcome, error) {
	queries := priorStrings(in.Prior, ClaimParsing, "statements")
	if len(queries) == 0 {
		queries = []string{in.Claim.Text}
	}

	if in.Response != nil && selectedOption(in.Response) == OptionRequestMoreEvidence {
		if kw := priorStrings(in.Prior, ClaimParsing, "keywords"); len(kw) > 0 {
			queries = append(queries, strings.Join(kw, " "))
		}
	}

	t, err := f.gather(ctx, in.Evidence, queries)
	if err != nil {
		return Outcome{}, err
	}

	classification, confidence := t.classify()

	if in.Response != nil {
		return Outcome{Result: f.applyDecision(t, classification, confidence, in.Response)}, nil
	}

	if t.supportN > 0 && t.contradictN > 0 {
		severity := clarification.ConflictSeverity(t.conflictConfidence())
		decision := f.policy.Decide(clarification.Signal{
			Confidence:       confidence,
			Conflicts:        1,
			ConflictSeverity: severity,
		})
		if decision.Clarify && severity >= f.policy.ConflictThreshold {
			return Outcome{Clarify: &types.ClarificationNeed{
				Type:     types.ClarificationMultipleChoice,
				Priority: decision.Priority,
				Title:    "Resolve evidence conflict",
				Description: fmt.Sprintf("%d supporting and %d contradicting sources disagree about: %s",
					t.supportN, t.contradictN, truncate(in.Claim.Text, 100)),
				Options:        ConflictOptions,
				DefaultValue:   map[string]any{"selected_option": OptionManualReview},
				TimeoutSeconds: decision.TimeoutSeconds,
			}}, nil
		}
	}

	return Outcome{Result: t.result(classification, confidence, nil)}, nil
}

func (f *FactChecker) gather(ctx context.Context, provider evidence.Provider, queries []string) (*tally, error) {
	t := &tally{}
	if provider == nil {
		return t, nil
	}
	seen := make(map[string]bool)
	for _, q := range queries {
		items, err := provider.Search(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("failed to search evidence: %w", err)
		}
		for _, item := range items {
			if seen[item.URL] {
				continue
			}
			seen[item.URL] = true
			t.add(item, f.weight(item))
		}
	}
	return t, nil
}

func (f *FactChecker) weight(item evidence.Item) float64 {
	if item.CredibilityHint != nil {
		return types.Clamp01(*item.CredibilityHint)
	}
	return f.scorer.Assess(item.URL).Score
}

func (t *tally) add(item evidence.Item, w float64) {
	t.items = append(t.items, item)
	t.weights = append(t.weights, w)
	switch item.VerdictHint {
	case evidence.HintSupporting:
		t.supporting += w
		t.supportN++
	case evidence.HintContradicting:
		t.contradicting += w
		t.contradictN++
	}
}

// ratio is supporting weight over decisive weight, or -1 without decisive evidence.
func (t *tally) ratio() float64 {
	decisive := t.supporting + t.contradicting
	if decisive == 0 {
		return -1
	}
	return t.supporting / decisive
}

func (t *tally) classify() (string, float64) {
	volume := math.Min(0.3+0.1*float64(len(t.items)), 0.9)
	r := t.ratio()
	if r < 0 {
		return Neutral, round3(volume * 0.5)
	}
	strength := math.Max(r, 1-r)
	classification := Neutral
	switch {
	case r >= 0.6:
		classification = Supporting
	case r <= 0.4:
		classification = Contradicting
	}
	return classification, round3(types.Clamp01(volume * strength))
}

// conflictConfidence averages the credibility of the decisive items.
func (t *tally) conflictConfidence() float64 {
	var ws []float64
	for i, item := range t.items {
		if item.VerdictHint == evidence.HintSupporting || item.VerdictHint == evidence.HintContradicting {
			ws = append(ws, t.weights[i])
		}
	}
	return mean(ws)
}

func (t *tally) result(classification string, confidence float64, extra map[string]any) *types.StageResult {
	refs := make([]types.EvidenceRef, 0, len(t.items))
	for i, item := range t.items {
		refs = append(refs, types.EvidenceRef{
			Type:        "evidence_" + item.VerdictHint,
			Description: truncate(item.Snippet, 200),
			Confidence:  round3(t.weights[i]),
			SourceID:    item.URL,
		})
	}
	data := map[string]any{
		"classification":       classification,
		"evidence_count":       len(t.items),
		"supporting_count":     t.supportN,
		"contradicting_count":  t.contradictN,
		"supporting_weight":    round3(t.supporting),
		"contradicting_weight": round3(t.contradicting),
	}
	if r := t.ratio(); r >= 0 {
		data["consensus_ratio"] = round3(r)
	}
	for k, v := range extra {
		data[k] = v
	}
	return &types.StageResult{Stage: FactChecking, Confidence: confidence, Evidence: refs, Data: data}
}

// applyDecision folds a human answer into the result.
func (f *FactChecker) applyDecision(t *tally, classification string, confidence float64, resp *types.ClarificationResponse) *types.StageResult {
	option := selectedOption(resp)
	extra := map[string]any{"human_decision": option}
	if resp.ResponderID != "" {
		extra["responder_id"] = resp.ResponderID
	}
	if resp.Fallback {
		extra["fallback_reason"] = resp.Reason
	}
	if notes, ok := resp.Data["notes"].(string); ok && notes != "" {
		extra["notes"] = notes
	}

	switch option {
	case Supporting, Contradicting:
		c := defaultHumanConfidence
		if v, ok := floatValue(resp.Data["confidence"]); ok {
			c = types.Clamp01(v)
		}
		return t.result(option, c, extra)
	case OptionRequestMoreEvidence:
		return t.result(classification, confidence, extra)
	default:
		return t.result(Neutral, 0.5, extra)
	}
}

func selectedOption(resp *types.ClarificationResponse) string {
	if resp == nil || resp.Data == nil {
		return ""
	}
	opt, _ := resp.Data["selected_option"].(string)
	return opt
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
