package evidence

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/option"
)

// defaultResultsPerQuery is the number of results requested per search call.
const defaultResultsPerQuery = 5

// Google retrieves evidence through the Custom Search JSON API.
type Google struct {
	svc     *customsearch.Service
	cx      string
	results int64
}

// NewGoogle creates a Google provider for the given search engine id.
func NewGoogle(ctx context.Context, apiKey, cx string, opts ...option.ClientOption) (*Google, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("google search API key is required")
	}
	if cx == "" {
		return nil, fmt.Errorf("google search engine id (cx) is required")
	}
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	svc, err := customsearch.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create customsearch service: %w", err)
	}
	return &Google{svc: svc, cx: cx, results: defaultResultsPerQuery}, nil
}

// Search implements Provider.
func (g *Google) Search(ctx context.Context, query string) ([]Item, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []Item{}, nil
	}

	resp, err := g.svc.Cse.List().Cx(g.cx).Q(query).Num(g.results).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	items := make([]Item, 0, len(resp.Items))
	seen := make(map[string]bool)
	for _, r := range resp.Items {
		if r.Link == "" || seen[r.Link] {
			continue
		}
		seen[r.Link] = true

		snippet := r.Snippet
		if r.HtmlSnippet != "" {
			snippet = CleanSnippet(r.HtmlSnippet)
		}
		items = append(items, Item{
			URL:         r.Link,
			Domain:      Domain(r.Link),
			Snippet:     snippet,
			VerdictHint: ClassifySnippet(r.Title + " " + snippet),
		})
	}
	return items, nil
}

// CleanSnippet strips markup from an HTML snippet and collapses whitespace.
func CleanSnippet(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return strings.Join(strings.Fields(html), " ")
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
