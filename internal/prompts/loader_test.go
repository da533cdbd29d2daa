package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet(t *testing.T) {
	prompt, err := Get("analysis.json", "text-metrics-user")
	require.NoError(t, err)
	assert.Contains(t, prompt, "manipulation_risk")
	assert.Contains(t, prompt, "{{.Claim}}")

	_, err = Get("nonexistent.json", "text-metrics-user")
	assert.ErrorContains(t, err, "prompt file nonexistent.json not found")

	_, err = Get("analysis.json", "nonexistent-key")
	assert.ErrorContains(t, err, "not found in analysis.json")
}

func TestRender(t *testing.T) {
	out, err := Render("analysis.json", "text-metrics-user", map[string]string{"Claim": "Water boils at 100C at sea level."})
	require.NoError(t, err)
	assert.Contains(t, out, "\"\"\"\nWater boils at 100C at sea level.\n\"\"\"")
	assert.NotContains(t, out, "{{")
	assert.Contains(t, out, `{"readability": 0.0`)

	_, err = Render("analysis.json", "text-metrics-user", map[string]string{})
	assert.ErrorContains(t, err, "failed to render prompt")
}

func TestKeys(t *testing.T) {
	keys, err := Keys("analysis.json")
	require.NoError(t, err)
	assert.Equal(t, []string{"text-metrics-system", "text-metrics-user"}, keys)
}
