// Package analysis scores the wording of claim text and extracts the keyword
// sets used for cross-referencing.
package analysis

import (
	"sort"
	"strings"
	"unicode"
)

var stopWords = map[string]bool{
	"the": true, "and": true, "that": true, "this": true, "with": true, "from": true,
	"have": true, "has": true, "had": true, "were": true, "was": true, "are": true,
	"been": true, "being": true, "will": true, "would": true, "could": true, "should": true,
	"there": true, "their": true, "they": true, "them": true, "than": true, "then": true,
	"what": true, "when": true, "where": true, "which": true, "while": true, "who": true,
	"whom": true, "whose": true, "into": true, "onto": true, "over": true, "under": true,
	"about": true, "after": true, "before": true, "also": true, "just": true, "only": true,
	"very": true, "more": true, "most": true, "some": true, "such": true, "each": true,
	"other": true, "these": true, "those": true, "your": true, "ours": true, "does": true,
	"did": true, "doing": true, "because": true, "through": true, "between": true,
	"said": true, "says": true, "according": true,
}

// Words splits text into lowercased word tokens. Digits are kept so years
// and quantities survive.
func Words(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}

// Sentences splits text on terminal punctuation and drops empty fragments.
// A period between two digits does not end a sentence.
func Sentences(text string) []string {
	var out []string
	var sb strings.Builder
	runes := []rune(text)
	for i, r := range runes {
		sb.WriteRune(r)
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if r == '.' && i > 0 && i+1 < len(runes) && unicode.IsDigit(runes[i-1]) && unicode.IsDigit(runes[i+1]) {
			continue
		}
		if s := strings.TrimSpace(sb.String()); len(s) > 1 {
			out = append(out, s)
		}
		sb.Reset()
	}
	if s := strings.TrimSpace(sb.String()); s != "" {
		out = append(out, s)
	}
	return out
}

// Keywords returns up to limit significant words of text, most frequent
// first. Stop words and words of three letters or fewer are ignored; ties
// keep first-occurrence order.
func Keywords(text string, limit int) []string {
	counts := make(map[string]int)
	var order []string
	for _, w := range Words(text) {
		w = strings.Trim(w, "'")
		if len([]rune(w)) <= 3 || stopWords[w] {
			continue
		}
		if counts[w] == 0 {
			order = append(order, w)
		}
		counts[w]++
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if limit > 0 && len(order) > limit {
		order = order[:limit]
	}
	return order
}

// Similarity is the Jaccard index of two keyword sets.
func Similarity(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]bool, len(a))
	for _, w := range a {
		set[w] = true
	}
	inter := 0
	union := len(set)
	seen := make(map[string]bool, len(b))
	for _, w := range b {
		if seen[w] {
			continue
		}
		seen[w] = true
		if set[w] {
			inter++
		} else {
			union++
		}
	}
	return float64(inter) / float64(union)
}
