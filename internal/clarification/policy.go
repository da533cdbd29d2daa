package clarification

import (
	"math"
	"strings"

	"github.com/jonathan/claim-detective/internal/types"
)

// Policy decides when a stage should ask a human instead of answering alone.
type Policy struct {
	Enabled           bool
	LowThreshold      float64
	MediumThreshold   float64
	HighThreshold     float64
	ConflictThreshold float64
	Timeouts          map[string]int
}

// DefaultPolicy returns the standard thresholds with clarifications enabled.
func DefaultPolicy() Policy {
	return Policy{
		Enabled:           true,
		LowThreshold:      0.5,
		MediumThreshold:   0.7,
		HighThreshold:     0.85,
		ConflictThreshold: 0.6,
		Timeouts: map[string]int{
			types.PriorityLow:      3600,
			types.PriorityMedium:   1800,
			types.PriorityHigh:     900,
			types.PriorityCritical: 300,
		},
	}
}

// Decision is the outcome of evaluating a stage's confidence.
type Decision struct {
	Clarify        bool
	Priority       string
	Type           string
	Reason         string
	TimeoutSeconds int
}

// Signal summarizes what a stage knows when deciding whether to ask.
type Signal struct {
	Confidence       float64
	ConflictSeverity float64
	Conflicts        int
}

// ConflictSeverity rates a disagreement between sources from their average confidence.
func ConflictSeverity(avgConfidence float64) float64 {
	return math.Min(avgConfidence*1.2, 1)
}

// Decide evaluates s. Low confidence or any conflict produces a request;
// the priority rises with how far below the thresholds the stage is.
func (p Policy) Decide(s Signal) Decision {
	if !p.Enabled {
		return Decision{Reason: "clarifications disabled"}
	}

	var reasons []string
	priority := types.PriorityLow

	switch {
	case s.Confidence < p.LowThreshold:
		reasons = append(reasons, "very low confidence")
		priority = types.PriorityHigh
	case s.Confidence < p.MediumThreshold:
		reasons = append(reasons, "low confidence")
		priority = raise(priority, types.PriorityMedium)
	}

	if s.Conflicts > 0 {
		if s.ConflictSeverity >= p.ConflictThreshold {
			reasons = append(reasons, "high severity evidence conflict")
			priority = types.PriorityHigh
		} else {
			reasons = append(reasons, "evidence conflict")
			priority = raise(priority, types.PriorityMedium)
		}
	}

	if len(reasons) == 0 {
		return Decision{Reason: "no clarification needed"}
	}
	return Decision{
		Clarify:        true,
		Priority:       priority,
		Type:           SelectType(s.Confidence, s.Conflicts > 0),
		Reason:         strings.Join(reasons, "; "),
		TimeoutSeconds: p.Timeout(priority),
	}
}

// Timeout returns the default timeout in seconds for a priority.
func (p Policy) Timeout(priority string) int {
	if t, ok := p.Timeouts[priority]; ok && t > 0 {
		return t
	}
	return DefaultPolicy().Timeouts[types.PriorityMedium]
}

// SelectType picks the request type that fits the situation.
func SelectType(confidence float64, conflicted bool) string {
	switch {
	case conflicted:
		return types.ClarificationMultipleChoice
	case confidence < 0.4:
		return types.ClarificationInput
	case confidence < 0.8:
		return types.ClarificationValueConfirmation
	}
	return types.ClarificationCustom
}

func raise(current, candidate string) string {
	if types.PriorityRank(candidate) < types.PriorityRank(current) {
		return candidate
	}
	return current
}
