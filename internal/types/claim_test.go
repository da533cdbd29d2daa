package types

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprint_NormalizesWhitespaceAndCase(t *testing.T) {
	a := Fingerprint("The Moon   landing happened in 1969")
	b := Fingerprint("  the moon landing\thappened in 1969 ")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, Fingerprint("The moon landing happened in 1970"))
}

func TestNewClaim_TrimsSources(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c := NewClaim("  Water boils at 100C at sea level ", []string{" https://a.gov ", "", "  "}, now)

	assert.NotEqual(t, uuid.Nil, c.ID)
	assert.Equal(t, "Water boils at 100C at sea level", c.Text)
	assert.Equal(t, []string{"https://a.gov"}, c.SourceURLs)
	assert.Equal(t, now, c.SubmittedAt)
	assert.Equal(t, Fingerprint(c.Text), c.Fingerprint)
}

func TestNewRun_StagesPendingInOrder(t *testing.T) {
	run := NewRun(uuid.New(), []string{"a", "b", "c"}, time.Now())

	assert.Equal(t, RunStateCreated, run.State)
	require.Len(t, run.Stages, 3)
	for i, s := range run.Stages {
		assert.Equal(t, i, s.Index)
		assert.Equal(t, StageStatusPending, s.Status)
	}
	assert.Equal(t, "a", run.CurrentStage().Name)
	assert.Equal(t, 0, run.CompletedStages())
}

func TestRun_CloneIsDeep(t *testing.T) {
	run := NewRun(uuid.New(), []string{"a", "b"}, time.Now())
	clone := run.Clone()
	clone.Stages[0].Status = StageStatusCompleted

	assert.Equal(t, StageStatusPending, run.Stages[0].Status)
}

func TestRun_OutputsOnlyTerminalStages(t *testing.T) {
	run := NewRun(uuid.New(), []string{"a", "b", "c"}, time.Now())
	run.Stages[0].Status = StageStatusCompleted
	run.Stages[0].Output = &StageResult{Stage: "a", Confidence: 0.7}
	run.Stages[1].Status = StageStatusFailed
	run.Stages[1].Output = FailedResult("b")
	run.Stages[2].Status = StageStatusRunning
	run.Stages[2].Output = &StageResult{Stage: "c", Confidence: 1}

	out := run.Outputs()
	assert.Len(t, out, 2)
	assert.Equal(t, 0.7, out["a"].Confidence)
	assert.Equal(t, 0.0, out["b"].Confidence)
	assert.Empty(t, out["b"].Evidence)
	assert.Equal(t, 2, run.CompletedStages())
	assert.Equal(t, "c", run.CurrentStage().Name)
}

func TestIsActiveRunState(t *testing.T) {
	tests := []struct {
		state  string
		active bool
	}{
		{RunStateCreated, true},
		{RunStateRunning, true},
		{RunStateAwaitingClarification, true},
		{RunStateCompleted, false},
		{RunStateFailed, false},
	}
	for _, tt := range tests {
		t.Run(tt.state, func(t *testing.T) {
			assert.Equal(t, tt.active, IsActiveRunState(tt.state))
		})
	}
}

func TestClamp01(t *testing.T) {
	assert.Equal(t, 0.0, Clamp01(-0.2))
	assert.Equal(t, 1.0, Clamp01(1.3))
	assert.Equal(t, 0.42, Clamp01(0.42))
}

func TestReliabilityScore_Supersedes(t *testing.T) {
	pipeline := &ReliabilityScore{Source: ScoreSourcePipeline}
	consensus := &ReliabilityScore{Source: ScoreSourceConsensus}

	assert.True(t, pipeline.Supersedes(nil))
	assert.True(t, pipeline.Supersedes(pipeline))
	assert.False(t, pipeline.Supersedes(consensus))
	assert.True(t, consensus.Supersedes(pipeline))
	assert.True(t, consensus.Supersedes(consensus))
}

func TestClarificationRequest_Expired(t *testing.T) {
	now := time.Now()
	req := &ClarificationRequest{Status: ClarificationPending, ExpiresAt: now.Add(time.Second)}

	assert.False(t, req.Expired(now))
	assert.True(t, req.Expired(now.Add(time.Second)))

	req.Status = ClarificationCompleted
	assert.False(t, req.Expired(now.Add(time.Hour)))
}

func TestPriorityRank(t *testing.T) {
	assert.Less(t, PriorityRank(PriorityCritical), PriorityRank(PriorityHigh))
	assert.Less(t, PriorityRank(PriorityHigh), PriorityRank(PriorityMedium))
	assert.Less(t, PriorityRank(PriorityMedium), PriorityRank(PriorityLow))
	assert.False(t, ValidPriority("urgent"))
}

func TestAuditFilter_Match(t *testing.T) {
	runID := uuid.New()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ev := AuditEvent{Type: EventStageCompleted, RunID: &runID, Timestamp: base}

	since := base.Add(time.Second)
	other := uuid.New()

	assert.True(t, AuditFilter{}.Match(ev))
	assert.False(t, AuditFilter{Since: &since}.Match(ev))
	assert.True(t, AuditFilter{RunID: &runID}.Match(ev))
	assert.False(t, AuditFilter{RunID: &other}.Match(ev))
	assert.True(t, AuditFilter{Types: []string{EventStageFailed, EventStageCompleted}}.Match(ev))
	assert.False(t, AuditFilter{Types: []string{EventRunStarted}}.Match(ev))
}

func TestAuditEvent_BeforeUsesSequenceTiebreak(t *testing.T) {
	ts := time.Now()
	a := AuditEvent{Timestamp: ts, Seq: 1}
	b := AuditEvent{Timestamp: ts, Seq: 2}
	assert.True(t, a.Before(b))
	assert.False(t, b.Before(a))
}
