package stages

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/jonathan/claim-detective/internal/analysis"
	"github.com/jonathan/claim-detective/internal/types"
)

var (
	yearPattern   = regexp.MustCompile(`\b(1[5-9]\d{2}|20\d{2})\b`)
	numberPattern = regexp.MustCompile(`\d+(\.\d+)?\s*(%|percent\b)?`)
)

var attributionPhrases = []string{"according to", " said", " says", "reported", "study", "survey", "research"}

// ClaimParser splits the claim into sentences and keeps those that state
// something checkable.
type ClaimParser struct{}

// NewClaimParser returns the claim-parsing stage.
func NewClaimParser() *ClaimParser { return &ClaimParser{} }

// Name implements Stage.
func (*ClaimParser) Name() string { return ClaimParsing }

// Analyze implements Stage.
func (*ClaimParser) Analyze(_ context.Context, in Input) (Outcome, error) {
	sentences := analysis.Sentences(in.Claim.Text)
	statements := make([]string, 0, len(sentences))
	refs := make([]types.EvidenceRef, 0, len(sentences))
	for i, s := range sentences {
		if reasons := verifiableReasons(s); len(reasons) > 0 {
			statements = append(statements, s)
			refs = append(refs, types.EvidenceRef{
				Type:        "statement",
				Description: s,
				Confidence:  round3(0.6 + 0.1*float64(len(reasons))),
				SourceID:    sentenceID(i),
			})
		}
	}

	confidence := 0.5
	if len(sentences) > 0 {
		confidence = 0.5 + 0.5*float64(len(statements))/float64(len(sentences))
	}

	return Outcome{Result: &types.StageResult{
		Stage:      ClaimParsing,
		Confidence: round3(types.Clamp01(confidence)),
		Evidence:   refs,
		Data: map[string]any{
			"sentences":  len(sentences),
			"statements": statements,
			"keywords":   analysis.Keywords(in.Claim.Text, 5),
		},
	}}, nil
}

// verifiableReasons lists the features that make a sentence checkable.
func verifiableReasons(sentence string) []string {
	var reasons []string
	if yearPattern.MatchString(sentence) {
		reasons = append(reasons, "year")
	} else if numberPattern.MatchString(sentence) {
		reasons = append(reasons, "quantity")
	}
	if hasProperNoun(sentence) {
		reasons = append(reasons, "proper_noun")
	}
	lower := " " + strings.ToLower(sentence)
	for _, p := range attributionPhrases {
		if strings.Contains(lower, p) {
			reasons = append(reasons, "attribution")
			break
		}
	}
	return reasons
}

// hasProperNoun reports a capitalized word after the first one.
func hasProperNoun(sentence string) bool {
	fields := strings.Fields(sentence)
	for _, f := range fields[min(1, len(fields)):] {
		f = strings.TrimLeftFunc(f, func(r rune) bool { return !unicode.IsLetter(r) })
		if f == "" {
			continue
		}
		if r := []rune(f); unicode.IsUpper(r[0]) && len(r) > 1 {
			return true
		}
	}
	return false
}

func sentenceID(i int) string {
	return "sentence-" + strconv.Itoa(i)
}
