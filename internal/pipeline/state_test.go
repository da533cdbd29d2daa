package pipeline

import (
	"testing"

	"github.com/jonathan/claim-detective/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateTransition(t *testing.T) {
	tests := []struct {
		from, to string
		ok       bool
	}{
		{types.RunStateCreated, types.RunStateRunning, true},
		{types.RunStateCreated, types.RunStateFailed, true},
		{types.RunStateRunning, types.RunStateAwaitingClarification, true},
		{types.RunStateRunning, types.RunStateCompleted, true},
		{types.RunStateRunning, types.RunStateFailed, true},
		{types.RunStateAwaitingClarification, types.RunStateRunning, true},
		{types.RunStateCreated, types.RunStateCompleted, false},
		{types.RunStateAwaitingClarification, types.RunStateCompleted, false},
		{types.RunStateCompleted, types.RunStateRunning, false},
		{types.RunStateFailed, types.RunStateRunning, false},
		{"bogus", types.RunStateRunning, false},
	}

	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			err := ValidateTransition(tt.from, tt.to)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			var invalid *types.InvalidTransitionError
			require.ErrorAs(t, err, &invalid)
			assert.Equal(t, tt.from, invalid.From)
			assert.Equal(t, tt.to, invalid.To)
			assert.Equal(t, types.CodeInvalidTransition, types.ErrorCode(err))
		})
	}
}
