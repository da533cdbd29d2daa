package server

import (
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/claim-detective/internal/audit"
	"github.com/jonathan/claim-detective/internal/pipeline"
	"github.com/jonathan/claim-detective/internal/types"
)

// CreateClaimResponse is returned when a claim is accepted for verification.
type CreateClaimResponse struct {
	ClaimID uuid.UUID `json:"claim_id"`
	RunID   uuid.UUID `json:"run_id"`
	State   string    `json:"state"`
}

// AuditTrailResponse is the audit trail of one claim.
type AuditTrailResponse struct {
	ClaimID      uuid.UUID                `json:"claim_id"`
	Events       []types.AuditEvent       `json:"events"`
	Transparency audit.TransparencyReport `json:"transparency"`
}

// handleCreateClaim stores a claim and starts its first run.
func (s *Server) handleCreateClaim(w http.ResponseWriter, r *http.Request) {
	var req types.CreateClaimRequest
	if !s.decodeJSON(w, r, &req, false) {
		return
	}

	claim, run, err := s.orch.Submit(r.Context(), req.ClaimText, req.SourceURLs, actorID(r, ""))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.jsonResponse(w, http.StatusAccepted, CreateClaimResponse{
		ClaimID: claim.ID,
		RunID:   run.ID,
		State:   run.State,
	})
}

// handleStartRun starts a new run for an existing claim.
func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	claimID, ok := s.pathID(w, r)
	if !ok {
		return
	}

	run, err := s.orch.StartRun(r.Context(), claimID, actorID(r, ""))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.jsonResponse(w, http.StatusAccepted, CreateClaimResponse{
		ClaimID: claimID,
		RunID:   run.ID,
		State:   run.State,
	})
}

// handleGetClaim returns a claim
func (s *Server) handleGetClaim(w http.ResponseWriter, r *http.Request) {
	claimID, ok := s.pathID(w, r)
	if !ok {
		return
	}

	claim, err := s.repo.GetClaim(r.Context(), claimID)
	if err != nil {
		s.writeError(w, r, types.Infra("get claim", err))
		return
	}
	if claim == nil {
		s.writeError(w, r, &types.NotFoundError{Kind: "claim", ID: claimID.String()})
		return
	}

	s.jsonResponse(w, http.StatusOK, claim)
}

// handleClaimStatus returns the progress projection of a claim.
func (s *Server) handleClaimStatus(w http.ResponseWriter, r *http.Request) {
	claimID, ok := s.pathID(w, r)
	if !ok {
		return
	}

	status, err := s.projector.GetStatus(r.Context(), claimID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.jsonResponse(w, http.StatusOK, status)
}

// handleAuditTrail returns the claim's audit events, optionally narrowed by
// since, until, run_id and type (repeatable).
func (s *Server) handleAuditTrail(w http.ResponseWriter, r *http.Request) {
	claimID, ok := s.pathID(w, r)
	if !ok {
		return
	}

	filter, ok := s.auditFilter(w, r)
	if !ok {
		return
	}

	events, err := s.audit.Query(r.Context(), claimID, filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	// Transparency always describes the whole trail.
	full := events
	if filter.Since != nil || filter.Until != nil || filter.RunID != nil || len(filter.Types) > 0 {
		full, err = s.audit.Query(r.Context(), claimID, types.AuditFilter{})
		if err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	if len(full) == 0 {
		claim, err := s.repo.GetClaim(r.Context(), claimID)
		if err != nil {
			s.writeError(w, r, types.Infra("get claim", err))
			return
		}
		if claim == nil {
			s.writeError(w, r, &types.NotFoundError{Kind: "claim", ID: claimID.String()})
			return
		}
	}

	if events == nil {
		events = []types.AuditEvent{}
	}
	s.jsonResponse(w, http.StatusOK, AuditTrailResponse{
		ClaimID:      claimID,
		Events:       events,
		Transparency: audit.Transparency(full),
	})
}

func (s *Server) auditFilter(w http.ResponseWriter, r *http.Request) (types.AuditFilter, bool) {
	var filter types.AuditFilter
	q := r.URL.Query()

	for _, bound := range []struct {
		name string
		dst  **time.Time
	}{{"since", &filter.Since}, {"until", &filter.Until}} {
		raw := q.Get(bound.name)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			s.badRequest(w, bound.name, "must be an RFC3339 timestamp")
			return filter, false
		}
		*bound.dst = &t
	}

	if raw := q.Get("run_id"); raw != "" {
		runID, err := uuid.Parse(raw)
		if err != nil {
			s.badRequest(w, "run_id", "must be a UUID")
			return filter, false
		}
		filter.RunID = &runID
	}
	filter.Types = q["type"]
	return filter, true
}

// handleClaimEvents streams progress events of the claim's runs as
// Server-Sent Events until the run finishes or the client goes away. A
// stream that falls behind the broadcaster starts over from a new snapshot.
func (s *Server) handleClaimEvents(w http.ResponseWriter, r *http.Request) {
	claimID, ok := s.pathID(w, r)
	if !ok {
		return
	}

	var sse *eventStream
	for {
		// Subscribe before reading the snapshot so no event falls in between.
		events, cancel := s.events.Subscribe(claimID)
		status, err := s.projector.GetStatus(r.Context(), claimID)
		if err != nil {
			cancel()
			if sse == nil {
				s.writeError(w, r, err)
			} else {
				sse.fail("status unavailable")
			}
			return
		}

		if sse == nil {
			if sse, err = openEventStream(w); err != nil {
				cancel()
				s.writeError(w, r, err)
				return
			}
		}
		if err := sse.send("status", status); err != nil {
			cancel()
			return
		}
		if status.RunID == nil || !types.IsActiveRunState(status.RunState) {
			cancel()
			runID := ""
			if status.RunID != nil {
				runID = status.RunID.String()
			}
			sse.complete(runID, status.RunState)
			return
		}

		lagged := s.relayEvents(r, sse, claimID, events)
		cancel()
		if !lagged {
			return
		}
		log.Printf("[sse] stream for claim %s fell behind, resyncing", claimID)
	}
}

// relayEvents forwards events until the run ends, the client or server goes
// away, or the broadcaster closes the subscription. It reports the last case.
func (s *Server) relayEvents(r *http.Request, sse *eventStream, claimID uuid.UUID, events <-chan pipeline.ProgressEvent) bool {
	keepalive := time.NewTicker(keepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return false
		case <-s.done:
			sse.fail("server shutting down")
			return false
		case <-keepalive.C:
			if err := sse.comment("keepalive"); err != nil {
				return false
			}
		case ev, open := <-events:
			if !open {
				return true
			}
			if err := sse.send(ev.Type, ev); err != nil {
				log.Printf("[sse] client for claim %s gone: %v", claimID, err)
				return false
			}
			if ev.Terminal() {
				sse.complete(ev.RunID.String(), ev.State)
				return false
			}
		}
	}
}

// handleSubmitVerification records a crowd verification and re-evaluates consensus.
func (s *Server) handleSubmitVerification(w http.ResponseWriter, r *http.Request) {
	claimID, ok := s.pathID(w, r)
	if !ok {
		return
	}

	var req types.SubmitVerificationRequest
	if !s.decodeJSON(w, r, &req, false) {
		return
	}
	req.VerifierID = actorID(r, req.VerifierID)
	if err := req.Validate(); err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := s.consensus.Submit(r.Context(), claimID, req.VerifierID, req.Verdict, *req.Confidence)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.jsonResponse(w, http.StatusCreated, result)
}
