package evidence

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
)

// Entry is one document of an offline evidence corpus.
type Entry struct {
	Item
	Keywords []string `json:"keywords"`
}

// Static answers searches from a fixed corpus by keyword overlap. It needs
// no network and is used for local runs and tests.
type Static struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewStatic creates a provider over entries.
func NewStatic(entries ...Entry) *Static {
	s := &Static{}
	for _, e := range entries {
		s.Add(e)
	}
	return s
}

// LoadStatic reads a JSON array of entries from path.
func LoadStatic(path string) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read evidence corpus %s: %w", path, err)
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse evidence corpus JSON: %w", err)
	}
	return NewStatic(entries...), nil
}

// Add appends an entry, deriving its domain and hint when absent.
func (s *Static) Add(e Entry) {
	if e.Domain == "" {
		e.Domain = Domain(e.URL)
	}
	if e.VerdictHint == "" {
		e.VerdictHint = ClassifySnippet(e.Snippet)
	}
	for i, k := range e.Keywords {
		e.Keywords[i] = strings.ToLower(k)
	}

	s.mu.Lock()
	s.entries = append(s.entries, e)
	s.mu.Unlock()
}

// Search implements Provider.
func (s *Static) Search(_ context.Context, query string) ([]Item, error) {
	terms := make(map[string]bool)
	for _, f := range strings.Fields(strings.ToLower(query)) {
		f = strings.Trim(f, ".,;:!?\"'()")
		if f != "" {
			terms[f] = true
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]Item, 0)
	for _, e := range s.entries {
		for _, k := range e.Keywords {
			if terms[k] {
				items = append(items, e.Item)
				break
			}
		}
	}
	return items, nil
}
