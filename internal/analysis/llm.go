package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/jonathan/claim-detective/internal/llm"
	"github.com/jonathan/claim-detective/internal/prompts"
	"github.com/jonathan/claim-detective/internal/schemas"
)

// LLM scores text with a language model and falls back to another analyzer
// when the model fails or answers outside the text_metrics schema.
type LLM struct {
	client   llm.Client
	fallback TextAnalyzer
}

// NewLLM creates a model-backed analyzer. A nil fallback uses Heuristic.
func NewLLM(client llm.Client, fallback TextAnalyzer) *LLM {
	if fallback == nil {
		fallback = NewHeuristic()
	}
	return &LLM{client: client, fallback: fallback}
}

// Analyze implements TextAnalyzer.
func (a *LLM) Analyze(ctx context.Context, text string) (*TextMetrics, error) {
	metrics, err := a.score(ctx, text)
	if err == nil {
		return metrics, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	log.Printf("[analysis] model scoring failed, using fallback: %v", err)
	return a.fallback.Analyze(ctx, text)
}

func (a *LLM) score(ctx context.Context, text string) (*TextMetrics, error) {
	prompt, err := buildMetricsPrompt(text)
	if err != nil {
		return nil, err
	}

	response, err := a.client.GenerateJSON(ctx, prompt, llm.TierLite)
	if err != nil {
		return nil, fmt.Errorf("LLM call failed: %w", err)
	}
	response = llm.CleanJSONBlock(response)

	if err := schemas.Validate(schemas.TextMetrics, response); err != nil {
		return nil, err
	}

	var metrics TextMetrics
	if err := json.Unmarshal([]byte(response), &metrics); err != nil {
		return nil, fmt.Errorf("failed to parse LLM response: %w", err)
	}
	return &metrics, nil
}

func buildMetricsPrompt(text string) (string, error) {
	system, err := prompts.Get("analysis.json", "text-metrics-system")
	if err != nil {
		return "", err
	}
	user, err := prompts.Render("analysis.json", "text-metrics-user", map[string]string{"Claim": text})
	if err != nil {
		return "", err
	}
	return system + "\n\n" + user, nil
}
