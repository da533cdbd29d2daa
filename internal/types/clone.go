package types

import (
	"maps"
	"slices"
)

// CloneData deep-copies a JSON-shaped map. Nested maps and slices are copied;
// scalars are shared.
func CloneData(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return CloneData(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case []string:
		return slices.Clone(t)
	case []float64:
		return slices.Clone(t)
	case map[string]float64:
		return maps.Clone(t)
	default:
		return v
	}
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Clone returns a copy of c sharing no memory with it.
func (c *Claim) Clone() *Claim {
	if c == nil {
		return nil
	}
	out := *c
	out.SourceURLs = slices.Clone(c.SourceURLs)
	return &out
}

// Clone returns a copy of c sharing no memory with it.
func (c *ClarificationRequest) Clone() *ClarificationRequest {
	if c == nil {
		return nil
	}
	out := *c
	out.Options = slices.Clone(c.Options)
	out.DefaultValue = CloneData(c.DefaultValue)
	out.ResponseData = CloneData(c.ResponseData)
	out.ResponderID = clonePtr(c.ResponderID)
	out.RespondedAt = clonePtr(c.RespondedAt)
	out.ResponseTimeSeconds = clonePtr(c.ResponseTimeSeconds)
	return &out
}

// Clone returns a copy of r sharing no memory with it.
func (r *StageResult) Clone() *StageResult {
	if r == nil {
		return nil
	}
	out := *r
	out.Evidence = slices.Clone(r.Evidence)
	out.Data = CloneData(r.Data)
	return &out
}

// Clone returns a copy of s sharing no memory with it.
func (s StageStatus) Clone() StageStatus {
	s.Output = s.Output.Clone()
	s.Confidence = clonePtr(s.Confidence)
	s.StartedAt = clonePtr(s.StartedAt)
	s.CompletedAt = clonePtr(s.CompletedAt)
	s.ErrorMessage = clonePtr(s.ErrorMessage)
	s.ClarificationID = clonePtr(s.ClarificationID)
	return s
}

// Clone returns a copy of s sharing no memory with it.
func (s *ReliabilityScore) Clone() *ReliabilityScore {
	if s == nil {
		return nil
	}
	out := *s
	out.Factors = maps.Clone(s.Factors)
	out.RunID = clonePtr(s.RunID)
	return &out
}

// Clone returns a copy of e sharing no memory with it.
func (e AuditEvent) Clone() AuditEvent {
	e.RunID = clonePtr(e.RunID)
	e.ActorID = clonePtr(e.ActorID)
	e.Data = CloneData(e.Data)
	return e
}
