// Package evidence defines the Evidence Source Provider consumed by the fact-checking
// stage, together with a Google Custom Search adapter, an offline corpus, and
// caching and rate-limiting decorators.
package evidence

import (
	"context"
	"net/url"
	"strings"
)

// Verdict hints attached to an evidence item.
const (
	HintSupporting    = "supporting"
	HintContradicting = "contradicting"
	HintNeutral       = "neutral"
)

// Item is one piece of externally retrieved material.
type Item struct {
	URL             string   `json:"url"`
	Domain          string   `json:"domain"`
	CredibilityHint *float64 `json:"credibility_hint,omitempty"`
	Snippet         string   `json:"snippet"`
	VerdictHint     string   `json:"verdict_hint"`
}

// Provider searches for evidence related to a query.
type Provider interface {
	Search(ctx context.Context, query string) ([]Item, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, query string) ([]Item, error)

// Search implements Provider.
func (f ProviderFunc) Search(ctx context.Context, query string) ([]Item, error) {
	return f(ctx, query)
}

// Domain extracts the lowercased host of rawURL without a leading "www.".
func Domain(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

var contradictingCues = []string{
	"false", "debunked", "misleading", "hoax", "no evidence", "not true", "fabricated",
	"incorrect", "inaccurate", "myth", "pants on fire", "fake",
}

var supportingCues = []string{
	"confirmed", "verified", "accurate", "true", "correct", "according to official",
	"evidence shows", "data shows", "study finds",
}

// ClassifySnippet infers a verdict hint from snippet wording.
// Contradicting cues are checked first because fact-check headlines often
// quote the claim they refute.
func ClassifySnippet(snippet string) string {
	text := " " + strings.ToLower(snippet) + " "
	for _, cue := range contradictingCues {
		if strings.Contains(text, " "+cue) {
			return HintContradicting
		}
	}
	for _, cue := range supportingCues {
		if strings.Contains(text, " "+cue) {
			return HintSupporting
		}
	}
	return HintNeutral
}
