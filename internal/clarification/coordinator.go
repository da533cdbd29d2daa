// Package clarification creates, tracks, expires and resolves requests for
// human input on behalf of suspended runs.
package clarification

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/claim-detective/internal/audit"
	"github.com/jonathan/claim-detective/internal/schemas"
	"github.com/jonathan/claim-detective/internal/store"
	"github.com/jonathan/claim-detective/internal/types"
)

// Resumer continues a suspended run once its clarification is resolved.
type Resumer interface {
	Resume(ctx context.Context, runID uuid.UUID, resp types.ClarificationResponse) error
}

// CreateParams describes a new clarification request.
type CreateParams struct {
	RunID          uuid.UUID
	ClaimID        uuid.UUID
	StageIndex     int
	Type           string
	Priority       string
	Title          string
	Description    string
	Options        []string
	DefaultValue   map[string]any
	TimeoutSeconds int
}

// RespondResult is returned by a successful Respond.
type RespondResult struct {
	Request             *types.ClarificationRequest `json:"request"`
	ResponseTimeSeconds float64                     `json:"response_time_seconds"`
}

// Coordinator owns the clarification lifecycle.
type Coordinator struct {
	store  store.ClarificationStore
	audit  *audit.Log
	policy Policy
	now    func() time.Time

	mu      sync.RWMutex
	resumer Resumer
}

// NewCoordinator creates a coordinator. The resumer is attached later with
// SetResumer because the orchestrator itself depends on the coordinator.
func NewCoordinator(s store.ClarificationStore, auditLog *audit.Log, policy Policy) *Coordinator {
	return &Coordinator{store: s, audit: auditLog, policy: policy, now: time.Now}
}

// WithClock replaces the time source. Used by tests.
func (c *Coordinator) WithClock(now func() time.Time) *Coordinator {
	c.now = now
	return c
}

// SetResumer attaches the component resumed on resolution.
func (c *Coordinator) SetResumer(r Resumer) {
	c.mu.Lock()
	c.resumer = r
	c.mu.Unlock()
}

// Policy returns the decision policy in use.
func (c *Coordinator) Policy() Policy { return c.policy }

// Create stores a pending request and records clarification_requested.
func (c *Coordinator) Create(ctx context.Context, p CreateParams) (*types.ClarificationRequest, error) {
	if err := ValidateParams(p); err != nil {
		return nil, err
	}

	timeout := p.TimeoutSeconds
	if timeout <= 0 {
		timeout = c.policy.Timeout(p.Priority)
	}
	now := c.now().UTC()
	req := &types.ClarificationRequest{
		ID:           uuid.New(),
		RunID:        p.RunID,
		ClaimID:      p.ClaimID,
		StageIndex:   p.StageIndex,
		Type:         p.Type,
		Priority:     p.Priority,
		Title:        p.Title,
		Description:  p.Description,
		Options:      p.Options,
		DefaultValue: p.DefaultValue,
		Status:       types.ClarificationPending,
		CreatedAt:    now,
		ExpiresAt:    now.Add(time.Duration(timeout) * time.Second),
	}

	if err := c.store.CreateClarification(ctx, req); err != nil {
		return nil, types.Infra("create clarification", err)
	}

	runID := req.RunID
	if err := c.audit.Record(ctx, req.ClaimID, &runID, "", types.EventClarificationRequested, map[string]any{
		"request_id":      req.ID.String(),
		"stage_index":     req.StageIndex,
		"type":            req.Type,
		"priority":        req.Priority,
		"timeout_seconds": timeout,
		"expires_at":      req.ExpiresAt,
	}); err != nil {
		return nil, err
	}

	log.Printf("[clarification] created %s (%s, %s) for run %s stage %d", req.ID, req.Type, req.Priority, req.RunID, req.StageIndex)
	return req, nil
}

// ValidateParams checks p the way Create does, without storing anything.
func ValidateParams(p CreateParams) error {
	switch {
	case p.RunID == uuid.Nil:
		return &types.ValidationError{Field: "run_id", Message: "is required"}
	case p.ClaimID == uuid.Nil:
		return &types.ValidationError{Field: "claim_id", Message: "is required"}
	case p.StageIndex < 0:
		return &types.ValidationError{Field: "stage_index", Message: "must be non-negative"}
	case !types.ValidClarificationType(p.Type):
		return &types.ValidationError{Field: "type", Message: fmt.Sprintf("unknown clarification type %q", p.Type)}
	case !types.ValidPriority(p.Priority):
		return &types.ValidationError{Field: "priority", Message: fmt.Sprintf("unknown priority %q", p.Priority)}
	case strings.TrimSpace(p.Title) == "":
		return &types.ValidationError{Field: "title", Message: "is required"}
	case p.Type == types.ClarificationMultipleChoice && len(p.Options) < 2:
		return &types.ValidationError{Field: "options", Message: "multiple_choice requires at least 2 options"}
	}
	return nil
}

// Get returns a request, expiring it first if its deadline passed.
func (c *Coordinator) Get(ctx context.Context, id uuid.UUID) (*types.ClarificationRequest, error) {
	req, err := c.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Expired(c.now()) {
		if _, err := c.expire(ctx, req, types.ClarificationExpired, "", ""); err != nil {
			return nil, err
		}
		return c.load(ctx, id)
	}
	return req, nil
}

func (c *Coordinator) load(ctx context.Context, id uuid.UUID) (*types.ClarificationRequest, error) {
	req, err := c.store.GetClarification(ctx, id)
	if err != nil {
		return nil, types.Infra("get clarification", err)
	}
	if req == nil {
		return nil, &types.NotFoundError{Kind: "clarification", ID: id.String()}
	}
	return req, nil
}

// ListPending sweeps expired requests and returns the pending ones ordered
// by priority then creation time.
func (c *Coordinator) ListPending(ctx context.Context, filter store.ClarificationFilter) ([]types.ClarificationRequest, error) {
	if _, err := c.SweepExpired(ctx); err != nil {
		return nil, err
	}
	filter.Status = types.ClarificationPending
	reqs, err := c.store.ListClarifications(ctx, filter)
	if err != nil {
		return nil, types.Infra("list clarifications", err)
	}
	return reqs, nil
}

// Respond resolves a pending request with data and resumes its run.
func (c *Coordinator) Respond(ctx context.Context, id uuid.UUID, data map[string]any, responderID string) (*RespondResult, error) {
	if strings.TrimSpace(responderID) == "" {
		return nil, &types.ValidationError{Field: "responder_id", Message: "is required"}
	}
	req, err := c.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !req.Pending() {
		return nil, &types.AlreadyResolvedError{RequestID: id, Status: req.Status}
	}
	if err := validateResponse(req, data); err != nil {
		return nil, err
	}

	now := c.now().UTC()
	elapsed := now.Sub(req.CreatedAt).Seconds()
	next := *req
	next.Status = types.ClarificationCompleted
	next.ResponseData = data
	next.ResponderID = &responderID
	next.RespondedAt = &now
	next.ResponseTimeSeconds = &elapsed

	won, err := c.store.TransitionClarification(ctx, types.ClarificationPending, &next)
	if err != nil {
		return nil, types.Infra("resolve clarification", err)
	}
	if !won {
		current, err := c.load(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, &types.AlreadyResolvedError{RequestID: id, Status: current.Status}
	}

	runID := next.RunID
	auditData := map[string]any{
		"request_id":            next.ID.String(),
		"stage_index":           next.StageIndex,
		"response_time_seconds": elapsed,
	}
	if opt, ok := data["selected_option"]; ok {
		auditData["selected_option"] = opt
	}
	c.audit.RecordBestEffort(ctx, next.ClaimID, &runID, responderID, types.EventClarificationResponded, auditData)

	c.resume(ctx, &next, types.ClarificationResponse{
		RequestID:   next.ID,
		StageIndex:  next.StageIndex,
		Data:        data,
		ResponderID: responderID,
	})

	return &RespondResult{Request: &next, ResponseTimeSeconds: elapsed}, nil
}

// validateResponse checks data against the schema for the request type and
// against the offered options.
func validateResponse(req *types.ClarificationRequest, data map[string]any) error {
	if data == nil {
		return &types.ValidationError{Field: "response_data", Message: "is required"}
	}
	if err := schemas.Validate(schemas.ClarificationSchema(req.Type), data); err != nil {
		var ve *schemas.ValidationError
		if errors.As(err, &ve) {
			first := ve.First()
			return &types.ValidationError{Field: "response_data." + first.Field, Message: first.Message}
		}
		return types.Infra("load clarification schema", err)
	}
	if len(req.Options) > 0 {
		if opt, ok := data["selected_option"].(string); ok && !req.HasOption(opt) {
			return &types.ValidationError{
				Field:   "response_data.selected_option",
				Message: fmt.Sprintf("must be one of: %s", strings.Join(req.Options, ", ")),
			}
		}
	}
	return nil
}

// Cancel withdraws a pending request. The run resumes as if it had expired.
func (c *Coordinator) Cancel(ctx context.Context, id uuid.UUID, reason, actorID string) (*types.ClarificationRequest, error) {
	req, err := c.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !req.Pending() {
		return nil, &types.AlreadyResolvedError{RequestID: id, Status: req.Status}
	}
	won, err := c.expire(ctx, req, types.ClarificationCancelled, reason, actorID)
	if err != nil {
		return nil, err
	}
	if !won {
		current, err := c.load(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, &types.AlreadyResolvedError{RequestID: id, Status: current.Status}
	}
	return c.load(ctx, id)
}

// SweepExpired expires every overdue pending request and resumes its run
// with the fallback. It returns how many requests this call expired.
func (c *Coordinator) SweepExpired(ctx context.Context) (int, error) {
	overdue, err := c.store.ListExpiredClarifications(ctx, c.now().UTC())
	if err != nil {
		return 0, types.Infra("list expired clarifications", err)
	}
	expired := 0
	for i := range overdue {
		won, err := c.expire(ctx, &overdue[i], types.ClarificationExpired, "", "")
		if err != nil {
			return expired, err
		}
		if won {
			expired++
		}
	}
	return expired, nil
}

// expire moves req from pending to status. Losing the swap to a concurrent
// Respond is not an error; the caller is told through the bool.
func (c *Coordinator) expire(ctx context.Context, req *types.ClarificationRequest, status, reason, actorID string) (bool, error) {
	next := *req
	next.Status = status

	won, err := c.store.TransitionClarification(ctx, types.ClarificationPending, &next)
	if err != nil {
		return false, types.Infra("expire clarification", err)
	}
	if !won {
		return false, nil
	}

	runID := next.RunID
	timeoutErr := &types.ClarificationTimeoutError{RequestID: next.ID}
	fallbackReason := timeoutErr.Error()
	if status == types.ClarificationExpired {
		c.audit.RecordBestEffort(ctx, next.ClaimID, &runID, actorID, types.EventClarificationExpired, map[string]any{
			"request_id":    next.ID.String(),
			"stage_index":   next.StageIndex,
			"expires_at":    next.ExpiresAt,
			"used_default":  next.DefaultValue != nil,
			"fallback_code": timeoutErr.Code(),
		})
		log.Printf("[clarification] expired %s for run %s", next.ID, next.RunID)
	} else {
		fallbackReason = "clarification cancelled"
		if reason != "" {
			fallbackReason += ": " + reason
		}
		c.audit.RecordBestEffort(ctx, next.ClaimID, &runID, actorID, types.EventClarificationStatusChanged, map[string]any{
			"request_id":   next.ID.String(),
			"stage_index":  next.StageIndex,
			"from":         types.ClarificationPending,
			"to":           status,
			"reason":       reason,
			"used_default": next.DefaultValue != nil,
		})
		log.Printf("[clarification] %s %s for run %s", status, next.ID, next.RunID)
	}

	c.resume(ctx, &next, types.ClarificationResponse{
		RequestID:  next.ID,
		StageIndex: next.StageIndex,
		Data:       next.DefaultValue,
		Fallback:   true,
		Reason:     fallbackReason,
	})
	return true, nil
}

// resume hands the response to the run. The request is already resolved,
// so a failure is logged and left to the run's own state.
func (c *Coordinator) resume(ctx context.Context, req *types.ClarificationRequest, resp types.ClarificationResponse) {
	c.mu.RLock()
	r := c.resumer
	c.mu.RUnlock()
	if r == nil {
		return
	}
	if err := r.Resume(ctx, req.RunID, resp); err != nil {
		log.Printf("[clarification] failed to resume run %s after %s: %v", req.RunID, req.ID, err)
	}
}

// Run sweeps expired requests every interval until ctx is cancelled.
func (c *Coordinator) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("sweep interval must be positive, got %s", interval)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("[sweeper] started, interval %s", interval)
	for {
		select {
		case <-ctx.Done():
			log.Printf("[sweeper] stopped")
			return nil
		case <-ticker.C:
			n, err := c.SweepExpired(ctx)
			if err != nil {
				log.Printf("[sweeper] sweep failed: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("[sweeper] expired %d clarification(s)", n)
			}
		}
	}
}
