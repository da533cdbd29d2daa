package audit

import (
	"testing"

	"github.com/jonathan/claim-detective/internal/types"
	"github.com/stretchr/testify/assert"
)

func events(eventTypes ...string) []types.AuditEvent {
	out := make([]types.AuditEvent, len(eventTypes))
	for i, t := range eventTypes {
		out[i] = types.AuditEvent{Type: t}
	}
	return out
}

func TestTransparency(t *testing.T) {
	rich := map[string]any{"a": 1, "b": 2, "c": 3}

	tests := []struct {
		name   string
		events []types.AuditEvent
		want   float64
	}{
		{
			name:   "empty trail scores base",
			events: nil,
			want:   0.5,
		},
		{
			name:   "single category below count threshold",
			events: events(types.EventStageStarted, types.EventStageCompleted),
			want:   0.5,
		},
		{
			name: "five events across three categories",
			events: events(types.EventClaimSubmitted, types.EventRunStarted, types.EventStageStarted,
				types.EventStageCompleted, types.EventRunCompleted),
			want: 0.5 + 0.1 + 0.1,
		},
		{
			name:   "human intervention",
			events: events(types.EventClarificationRequested, types.EventClarificationResponded),
			want:   0.6,
		},
		{
			name: "rich details",
			events: []types.AuditEvent{
				{Type: types.EventStageCompleted, Data: rich},
				{Type: types.EventStageCompleted, Data: rich},
			},
			want: 0.6,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Transparency(tt.events).Score, 1e-9)
		})
	}
}

func TestTransparency_CappedAtOne(t *testing.T) {
	rich := map[string]any{"a": 1, "b": 2, "c": 3, "d": 4}
	all := []string{
		types.EventClaimSubmitted, types.EventRunStarted, types.EventStageStarted, types.EventScoreComputed,
		types.EventClarificationResponded, types.EventVerificationSubmitted,
	}
	var trail []types.AuditEvent
	for i := 0; i < 20; i++ {
		trail = append(trail, types.AuditEvent{Type: all[i%len(all)], Data: rich})
	}

	report := Transparency(trail)
	assert.Equal(t, 1.0, report.Score)
	assert.True(t, report.HumanIntervention)
	assert.Len(t, report.Categories, 6)
	assert.Equal(t, 20, report.EventCount)
}
