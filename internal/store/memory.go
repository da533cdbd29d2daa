package store

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/claim-detective/internal/types"
)

// Memory is a thread-safe in-process Repository. It backs the CLI, local
// development and tests.
type Memory struct {
	mu             sync.RWMutex
	claims         map[uuid.UUID]*types.Claim
	fingerprints   map[string]uuid.UUID
	runs           map[uuid.UUID]*types.Run
	runsByClaim    map[uuid.UUID][]uuid.UUID
	clarifications map[uuid.UUID]*types.ClarificationRequest
	verifications  map[uuid.UUID][]types.Verification
	scores         map[uuid.UUID]*types.ReliabilityScore
	audit          []types.AuditEvent
	seq            int64
}

// NewMemory returns an empty in-memory repository.
func NewMemory() *Memory {
	return &Memory{
		claims:         make(map[uuid.UUID]*types.Claim),
		fingerprints:   make(map[string]uuid.UUID),
		runs:           make(map[uuid.UUID]*types.Run),
		runsByClaim:    make(map[uuid.UUID][]uuid.UUID),
		clarifications: make(map[uuid.UUID]*types.ClarificationRequest),
		verifications:  make(map[uuid.UUID][]types.Verification),
		scores:         make(map[uuid.UUID]*types.ReliabilityScore),
	}
}

var _ Repository = (*Memory)(nil)

// Ping always succeeds.
func (m *Memory) Ping(_ context.Context) error { return nil }

// ---------------------------------------------------------------------------
// Claims
// ---------------------------------------------------------------------------

// CreateClaim implements ClaimStore.
func (m *Memory) CreateClaim(_ context.Context, claim *types.Claim) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.fingerprints[claim.Fingerprint]; ok {
		return &types.DuplicateClaimError{ExistingID: existing}
	}
	c := claim.Clone()
	m.claims[c.ID] = c
	m.fingerprints[c.Fingerprint] = c.ID
	return nil
}

// GetClaim implements ClaimStore.
func (m *Memory) GetClaim(_ context.Context, id uuid.UUID) (*types.Claim, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.claims[id].Clone(), nil
}

// ListClaims implements ClaimStore.
func (m *Memory) ListClaims(_ context.Context, before time.Time, limit int) ([]types.Claim, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]types.Claim, 0, len(m.claims))
	for _, c := range m.claims {
		if !before.IsZero() && !c.SubmittedAt.Before(before) {
			continue
		}
		out = append(out, *c.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.After(out[j].SubmittedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Runs
// ---------------------------------------------------------------------------

// CreateRun implements RunStore.
func (m *Memory) CreateRun(_ context.Context, run *types.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range m.runsByClaim[run.ClaimID] {
		if existing := m.runs[id]; existing != nil && types.IsActiveRunState(existing.State) {
			return &types.ActiveRunError{ClaimID: run.ClaimID, ExistingID: existing.ID}
		}
	}
	m.runs[run.ID] = run.Clone()
	m.runsByClaim[run.ClaimID] = append(m.runsByClaim[run.ClaimID], run.ID)
	return nil
}

// SaveRun implements RunStore.
func (m *Memory) SaveRun(_ context.Context, run *types.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.runs[run.ID]; !ok {
		return &types.NotFoundError{Kind: "run", ID: run.ID.String()}
	}
	m.runs[run.ID] = run.Clone()
	return nil
}

// GetRun implements RunStore.
func (m *Memory) GetRun(_ context.Context, id uuid.UUID) (*types.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.runs[id].Clone(), nil
}

// LatestRun implements RunStore.
func (m *Memory) LatestRun(_ context.Context, claimID uuid.UUID) (*types.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := m.runsByClaim[claimID]
	if len(ids) == 0 {
		return nil, nil
	}
	return m.runs[ids[len(ids)-1]].Clone(), nil
}

// ListRunsByState implements RunStore.
func (m *Memory) ListRunsByState(_ context.Context, states ...string) ([]types.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []types.Run{}
	for _, r := range m.runs {
		if slices.Contains(states, r.State) {
			out = append(out, *r.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// ---------------------------------------------------------------------------
// Clarifications
// ---------------------------------------------------------------------------

// CreateClarification implements ClarificationStore.
func (m *Memory) CreateClarification(_ context.Context, req *types.ClarificationRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clarifications[req.ID] = req.Clone()
	return nil
}

// GetClarification implements ClarificationStore.
func (m *Memory) GetClarification(_ context.Context, id uuid.UUID) (*types.ClarificationRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.clarifications[id].Clone(), nil
}

// ListClarifications implements ClarificationStore.
func (m *Memory) ListClarifications(_ context.Context, filter ClarificationFilter) ([]types.ClarificationRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]types.ClarificationRequest, 0)
	for _, c := range m.clarifications {
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		if filter.RunID != nil && c.RunID != *filter.RunID {
			continue
		}
		if filter.ClaimID != nil && c.ClaimID != *filter.ClaimID {
			continue
		}
		if filter.Priority != "" && c.Priority != filter.Priority {
			continue
		}
		out = append(out, *c.Clone())
	}
	sortClarifications(out)
	return out, nil
}

// TransitionClarification implements ClarificationStore.
func (m *Memory) TransitionClarification(_ context.Context, from string, next *types.ClarificationRequest) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.clarifications[next.ID]
	if !ok {
		return false, &types.NotFoundError{Kind: "clarification", ID: next.ID.String()}
	}
	if current.Status != from {
		return false, nil
	}
	m.clarifications[next.ID] = next.Clone()
	return true, nil
}

// ListExpiredClarifications implements ClarificationStore.
func (m *Memory) ListExpiredClarifications(_ context.Context, now time.Time) ([]types.ClarificationRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]types.ClarificationRequest, 0)
	for _, c := range m.clarifications {
		if c.Expired(now) {
			out = append(out, *c.Clone())
		}
	}
	sortClarifications(out)
	return out, nil
}

// sortClarifications orders by priority (most urgent first), then creation time.
func sortClarifications(list []types.ClarificationRequest) {
	sort.SliceStable(list, func(i, j int) bool {
		pi, pj := types.PriorityRank(list[i].Priority), types.PriorityRank(list[j].Priority)
		if pi != pj {
			return pi < pj
		}
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
}

// ---------------------------------------------------------------------------
// Verifications and scores
// ---------------------------------------------------------------------------

// CreateVerification implements VerificationStore.
func (m *Memory) CreateVerification(_ context.Context, v *types.Verification) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.verifications[v.ClaimID] {
		if existing.VerifierID == v.VerifierID {
			return &types.DuplicateVerificationError{
				ClaimID:    v.ClaimID,
				VerifierID: v.VerifierID,
				ExistingID: existing.ID,
			}
		}
	}
	m.verifications[v.ClaimID] = append(m.verifications[v.ClaimID], *v)
	return nil
}

// ListVerifications implements VerificationStore.
func (m *Memory) ListVerifications(_ context.Context, claimID uuid.UUID) ([]types.Verification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]types.Verification(nil), m.verifications[claimID]...), nil
}

// PutScore implements ScoreStore.
func (m *Memory) PutScore(_ context.Context, score *types.ReliabilityScore) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !score.Supersedes(m.scores[score.ClaimID]) {
		return false, nil
	}
	m.scores[score.ClaimID] = score.Clone()
	return true, nil
}

// GetScore implements ScoreStore.
func (m *Memory) GetScore(_ context.Context, claimID uuid.UUID) (*types.ReliabilityScore, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.scores[claimID].Clone(), nil
}

// ---------------------------------------------------------------------------
// Audit
// ---------------------------------------------------------------------------

// AppendAudit implements AuditStore.
func (m *Memory) AppendAudit(_ context.Context, ev *types.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	ev.Seq = m.seq
	m.audit = append(m.audit, ev.Clone())
	return nil
}

// ListAudit implements AuditStore.
func (m *Memory) ListAudit(_ context.Context, claimID uuid.UUID, filter types.AuditFilter) ([]types.AuditEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]types.AuditEvent, 0)
	for _, ev := range m.audit {
		if ev.ClaimID == claimID && filter.Match(ev) {
			out = append(out, ev.Clone())
		}
	}
	sortEvents(out)
	return out, nil
}

// AuditRange implements AuditStore.
func (m *Memory) AuditRange(_ context.Context, start, end time.Time) ([]types.AuditEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	filter := types.AuditFilter{Since: &start, Until: &end}
	out := make([]types.AuditEvent, 0)
	for _, ev := range m.audit {
		if filter.Match(ev) {
			out = append(out, ev.Clone())
		}
	}
	sortEvents(out)
	return out, nil
}

func sortEvents(list []types.AuditEvent) {
	sort.SliceStable(list, func(i, j int) bool { return list[i].Before(list[j]) })
}
