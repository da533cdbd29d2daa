package evidence

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifySnippet(t *testing.T) {
	tests := []struct {
		snippet string
		want    string
	}{
		{"Fact check: the viral claim is FALSE, officials say", HintContradicting},
		{"Researchers debunked the rumor last week", HintContradicting},
		{"It is not true that the bridge collapsed", HintContradicting},
		{"The agency confirmed the figures on Tuesday", HintSupporting},
		{"A new study finds rates rose 4% in 2023", HintSupporting},
		{"The city council met on Monday", HintNeutral},
		{"Truthfulness aside, the post went viral", HintNeutral},
	}
	for _, tt := range tests {
		t.Run(tt.snippet, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifySnippet(tt.snippet))
		})
	}
}

func TestDomain(t *testing.T) {
	assert.Equal(t, "cdc.gov", Domain("https://www.CDC.gov/flu/index.html"))
	assert.Equal(t, "example.org", Domain("http://example.org:8080/a"))
	assert.Equal(t, "", Domain("not a url"))
}

func TestCleanSnippet(t *testing.T) {
	got := CleanSnippet("The <b>moon</b> landing\n happened in <b>1969</b>&nbsp;...")
	assert.Equal(t, "The moon landing happened in 1969 ...", got)
}

func TestStatic_SearchByKeyword(t *testing.T) {
	s := NewStatic(
		Entry{Item: Item{URL: "https://www.snopes.com/vaccines", Snippet: "Claim is false"}, Keywords: []string{"Vaccines", "autism"}},
		Entry{Item: Item{URL: "https://www.nasa.gov/apollo", Snippet: "NASA confirmed the landing"}, Keywords: []string{"moon", "apollo"}},
	)

	items, err := s.Search(context.Background(), "Did the Moon landing happen?")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "nasa.gov", items[0].Domain)
	assert.Equal(t, HintSupporting, items[0].VerdictHint)

	items, err = s.Search(context.Background(), "vaccines cause autism")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, HintContradicting, items[0].VerdictHint)

	items, err = s.Search(context.Background(), "unrelated topic")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestLoadStatic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpus.json")
	content := `[{"url": "https://reuters.com/x", "snippet": "Data shows growth", "keywords": ["growth"]}]`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	s, err := LoadStatic(path)
	require.NoError(t, err)

	items, err := s.Search(context.Background(), "economic growth")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "reuters.com", items[0].Domain)

	_, err = LoadStatic(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestCached_HitsUnderlyingProviderOnce(t *testing.T) {
	var calls int32
	next := ProviderFunc(func(context.Context, string) ([]Item, error) {
		atomic.AddInt32(&calls, 1)
		return []Item{{URL: "https://a.org"}}, nil
	})
	c := NewCached(next, time.Minute)

	for i := 0; i < 3; i++ {
		items, err := c.Search(context.Background(), "  Same   QUERY ")
		require.NoError(t, err)
		assert.Len(t, items, 1)
	}
	_, err := c.Search(context.Background(), "same query")
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestRateLimited_RespectsContext(t *testing.T) {
	next := ProviderFunc(func(context.Context, string) ([]Item, error) { return []Item{}, nil })
	r := NewRateLimited(next, 0.001, 1)

	_, err := r.Search(context.Background(), "first")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = r.Search(ctx, "second")
	assert.Error(t, err)
}
