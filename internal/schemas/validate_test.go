package schemas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNames_AllEmbeddedSchemasCompile(t *testing.T) {
	names, err := Names()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"clarification_input",
		"clarification_multiple_choice",
		"clarification_value_confirmation",
		"clarification_action_confirmation",
		"clarification_custom",
		"text_metrics",
	}, names)
}

func TestValidate_ClarificationResponses(t *testing.T) {
	tests := []struct {
		name      string
		ctype     string
		doc       any
		wantError bool
	}{
		{"multiple choice ok", "multiple_choice", map[string]any{"selected_option": "supporting"}, false},
		{"multiple choice missing option", "multiple_choice", map[string]any{"notes": "hmm"}, true},
		{"input ok", "input", map[string]any{"value": 42}, false},
		{"input bad confidence", "input", map[string]any{"value": "x", "confidence": 1.5}, true},
		{"value confirmation ok", "value_confirmation", map[string]any{"confirmed": false, "corrected_value": "1968"}, false},
		{"value confirmation wrong type", "value_confirmation", map[string]any{"confirmed": "yes"}, true},
		{"action confirmation ok", "action_confirmation", map[string]any{"approved": true}, false},
		{"custom empty", "custom", map[string]any{}, true},
		{"custom anything", "custom", map[string]any{"verdict": "looks fine"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(ClarificationSchema(tt.ctype), tt.doc)
			if !tt.wantError {
				assert.NoError(t, err)
				return
			}
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.NotEmpty(t, ve.Errors)
			assert.NotEmpty(t, ve.First().Field)
		})
	}
}

func TestValidate_TextMetricsFromString(t *testing.T) {
	ok := `{"readability":0.7,"coherence":0.6,"specificity":0.5,"manipulation_risk":0.1,"objectivity":0.8}`
	assert.NoError(t, Validate(TextMetrics, ok))

	err := Validate(TextMetrics, []byte(`{"readability":0.7}`))
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Error(), "text_metrics validation failed")

	err = Validate(TextMetrics, "{ not json")
	require.ErrorAs(t, err, &ve)
}

func TestValidate_UnknownSchema(t *testing.T) {
	err := Validate("nope", map[string]any{})
	var le *SchemaLoadError
	require.ErrorAs(t, err, &le)
	assert.Contains(t, le.Error(), "unknown schema")
}
