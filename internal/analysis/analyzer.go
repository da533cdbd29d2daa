package analysis

import (
	"context"
	"math"
	"strings"
	"unicode"
)

// TextMetrics scores how a claim is written. All scores are in [0,1].
type TextMetrics struct {
	Readability      float64  `json:"readability"`
	Coherence        float64  `json:"coherence"`
	Specificity      float64  `json:"specificity"`
	ManipulationRisk float64  `json:"manipulation_risk"`
	Objectivity      float64  `json:"objectivity"`
	EmotionalTerms   []string `json:"emotional_terms,omitempty"`
}

// TextAnalyzer scores claim text.
type TextAnalyzer interface {
	Analyze(ctx context.Context, text string) (*TextMetrics, error)
}

var emotionalTerms = map[string]bool{
	"shocking": true, "outrageous": true, "horrifying": true, "terrifying": true,
	"disgusting": true, "unbelievable": true, "incredible": true, "amazing": true,
	"devastating": true, "destroyed": true, "evil": true, "insane": true,
	"catastrophic": true, "miracle": true, "scandal": true, "bombshell": true,
	"explosive": true, "secret": true, "exposed": true, "panic": true, "crisis": true,
	"disaster": true, "furious": true, "slams": true, "epic": true, "unprecedented": true,
}

var absoluteTerms = map[string]bool{
	"always": true, "never": true, "everyone": true, "nobody": true, "all": true,
	"totally": true, "completely": true, "undeniable": true, "proven": true, "guaranteed": true,
}

var opinionTerms = map[string]bool{
	"i": true, "we": true, "think": true, "believe": true, "feel": true, "obviously": true,
	"clearly": true, "best": true, "worst": true, "terrible": true, "awesome": true,
	"should": true, "must": true,
}

var attributionCues = []string{"according to", "reported", "study", "survey", "data from", "said", "published"}

// Heuristic is a dependency-free TextAnalyzer based on word statistics.
type Heuristic struct{}

// NewHeuristic returns the heuristic analyzer.
func NewHeuristic() *Heuristic { return &Heuristic{} }

// Analyze implements TextAnalyzer.
func (Heuristic) Analyze(_ context.Context, text string) (*TextMetrics, error) {
	words := Words(text)
	sentences := Sentences(text)
	if len(words) == 0 {
		return &TextMetrics{Readability: 0, Coherence: 0, Specificity: 0, ManipulationRisk: 0, Objectivity: 0.5}, nil
	}

	var emotional []string
	absolute, opinion := 0, 0
	letters := 0
	for _, w := range words {
		letters += len([]rune(w))
		switch {
		case emotionalTerms[w]:
			emotional = append(emotional, w)
		case absoluteTerms[w]:
			absolute++
		case opinionTerms[w]:
			opinion++
		}
	}
	n := float64(len(words))

	return &TextMetrics{
		Readability:      readability(n, float64(len(sentences)), float64(letters)/n),
		Coherence:        coherence(sentences),
		Specificity:      specificity(text, n),
		ManipulationRisk: manipulationRisk(text, n, len(emotional), absolute),
		Objectivity:      round3(clamp(1 - float64(len(emotional)+opinion)/n*4)),
		EmotionalTerms:   emotional,
	}, nil
}

// readability peaks for sentences of about 15 words made of average-length words.
func readability(words, sentences, avgWordLen float64) float64 {
	if sentences == 0 {
		sentences = 1
	}
	perSentence := words / sentences
	sentenceScore := clamp(1 - math.Abs(perSentence-15)/30)
	wordScore := clamp(1 - math.Max(avgWordLen-5, 0)/5)
	return round3(0.6*sentenceScore + 0.4*wordScore)
}

// coherence is the share of sentences that share a keyword with the one before.
func coherence(sentences []string) float64 {
	if len(sentences) <= 1 {
		return 0.7
	}
	linked := 0
	prev := Keywords(sentences[0], 0)
	for _, s := range sentences[1:] {
		cur := Keywords(s, 0)
		if Similarity(prev, cur) > 0 {
			linked++
		}
		prev = cur
	}
	return round3(0.4 + 0.6*float64(linked)/float64(len(sentences)-1))
}

// specificity rewards numbers and proper nouns.
func specificity(text string, words float64) float64 {
	concrete := 0
	for i, tok := range strings.Fields(text) {
		tok = strings.TrimFunc(tok, func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsDigit(r) })
		if tok == "" {
			continue
		}
		r := []rune(tok)
		switch {
		case unicode.IsDigit(r[0]):
			concrete++
		case i > 0 && unicode.IsUpper(r[0]):
			concrete++
		}
	}
	return round3(clamp(0.2 + float64(concrete)/words*2))
}

func manipulationRisk(text string, words float64, emotional, absolute int) float64 {
	risk := float64(emotional)/words*5 + float64(absolute)/words*2
	if strings.Contains(text, "!") {
		risk += 0.1
	}
	for _, tok := range strings.Fields(text) {
		if len(tok) > 3 && strings.ToUpper(tok) == tok && strings.ToLower(tok) != tok {
			risk += 0.1
			break
		}
	}
	lower := strings.ToLower(text)
	attributed := false
	for _, cue := range attributionCues {
		if strings.Contains(lower, cue) {
			attributed = true
			break
		}
	}
	if !attributed {
		risk += 0.15
	}
	return round3(clamp(risk))
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
