// Package types provides the domain model shared by the claim verification pipeline,
// the clarification coordinator, the consensus aggregator and the storage layers.
package types

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Claim is an unverified textual statement submitted for evaluation.
// Claims are never mutated after creation.
type Claim struct {
	ID          uuid.UUID `json:"id"`
	Text        string    `json:"text"`
	SourceURLs  []string  `json:"source_urls"`
	Fingerprint string    `json:"fingerprint"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// NewClaim builds a claim with a fresh id and a fingerprint of its normalized text.
func NewClaim(text string, sourceURLs []string, now time.Time) *Claim {
	urls := make([]string, 0, len(sourceURLs))
	for _, u := range sourceURLs {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}
	return &Claim{
		ID:          uuid.New(),
		Text:        strings.TrimSpace(text),
		SourceURLs:  urls,
		Fingerprint: Fingerprint(text),
		SubmittedAt: now.UTC(),
	}
}

// Fingerprint returns a stable hash of the claim text after lowercasing
// and collapsing whitespace. Two submissions with the same fingerprint are
// the same claim.
func Fingerprint(text string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(text)), " ")
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// RunState constants
const (
	RunStateCreated               = "created"
	RunStateRunning               = "running"
	RunStateAwaitingClarification = "awaiting_clarification"
	RunStateCompleted             = "completed"
	RunStateFailed                = "failed"
)

// IsActiveRunState reports whether a run in this state blocks new runs for the same claim.
func IsActiveRunState(state string) bool {
	switch state {
	case RunStateCreated, RunStateRunning, RunStateAwaitingClarification:
		return true
	}
	return false
}

// StageStatus constants
const (
	StageStatusPending   = "pending"
	StageStatusRunning   = "running"
	StageStatusCompleted = "completed"
	StageStatusFailed    = "failed"
)

// Run is one processing attempt of a claim through the stage pipeline.
type Run struct {
	ID          uuid.UUID     `json:"id"`
	ClaimID     uuid.UUID     `json:"claim_id"`
	Stages      []StageStatus `json:"stages"`
	State       string        `json:"state"`
	Error       *string       `json:"error,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
}

// StageStatus tracks a single stage within a run.
type StageStatus struct {
	Index           int          `json:"index"`
	Name            string       `json:"name"`
	Status          string       `json:"status"`
	Output          *StageResult `json:"output,omitempty"`
	Confidence      *float64     `json:"confidence,omitempty"`
	StartedAt       *time.Time   `json:"started_at,omitempty"`
	CompletedAt     *time.Time   `json:"completed_at,omitempty"`
	ErrorMessage    *string      `json:"error_message,omitempty"`
	ClarificationID *uuid.UUID   `json:"clarification_id,omitempty"`
}

// Terminal reports whether the stage has finished, successfully or not.
func (s StageStatus) Terminal() bool {
	return s.Status == StageStatusCompleted || s.Status == StageStatusFailed
}

// NewRun creates a run in the created state with one pending stage per name.
func NewRun(claimID uuid.UUID, stageNames []string, now time.Time) *Run {
	stages := make([]StageStatus, len(stageNames))
	for i, name := range stageNames {
		stages[i] = StageStatus{Index: i, Name: name, Status: StageStatusPending}
	}
	now = now.UTC()
	return &Run{
		ID:        uuid.New(),
		ClaimID:   claimID,
		Stages:    stages,
		State:     RunStateCreated,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a deep copy so callers can mutate the result without
// touching shared state held by a store.
func (r *Run) Clone() *Run {
	if r == nil {
		return nil
	}
	out := *r
	out.Stages = make([]StageStatus, len(r.Stages))
	for i, s := range r.Stages {
		out.Stages[i] = s.Clone()
	}
	out.Error = clonePtr(r.Error)
	out.CompletedAt = clonePtr(r.CompletedAt)
	return &out
}

// CompletedStages counts stages that reached a terminal status.
func (r *Run) CompletedStages() int {
	n := 0
	for _, s := range r.Stages {
		if s.Terminal() {
			n++
		}
	}
	return n
}

// CurrentStage returns the first non-terminal stage, or nil when every stage finished.
func (r *Run) CurrentStage() *StageStatus {
	for i := range r.Stages {
		if !r.Stages[i].Terminal() {
			return &r.Stages[i]
		}
	}
	return nil
}

// Outputs collects the results of finished stages keyed by stage name.
func (r *Run) Outputs() map[string]StageResult {
	out := make(map[string]StageResult, len(r.Stages))
	for _, s := range r.Stages {
		if s.Terminal() && s.Output != nil {
			out[s.Name] = *s.Output
		}
	}
	return out
}

// EvidenceRef points at one piece of evidence a stage relied on.
type EvidenceRef struct {
	Type        string  `json:"type"`
	Description string  `json:"description"`
	Confidence  float64 `json:"confidence"`
	SourceID    string  `json:"source_id"`
}

// StageResult is the output of one stage. Data is stage specific.
type StageResult struct {
	Stage      string         `json:"stage"`
	Confidence float64        `json:"confidence"`
	Evidence   []EvidenceRef  `json:"evidence"`
	Data       map[string]any `json:"data,omitempty"`
}

// FailedResult is the degraded result recorded for a stage that errored.
func FailedResult(stage string) *StageResult {
	return &StageResult{Stage: stage, Confidence: 0, Evidence: []EvidenceRef{}}
}

// Clamp01 limits v to the closed unit interval.
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
