package server

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/claim-detective/internal/store"
	"github.com/jonathan/claim-detective/internal/types"
)

// CreateClarificationResponse is returned for an externally raised clarification.
type CreateClarificationResponse struct {
	RequestID uuid.UUID                   `json:"request_id"`
	ExpiresAt time.Time                   `json:"expires_at"`
	Request   *types.ClarificationRequest `json:"request"`
}

// ListClarificationsResponse lists pending clarifications.
type ListClarificationsResponse struct {
	Clarifications []types.ClarificationRequest `json:"clarifications"`
	Count          int                          `json:"count"`
}

// handleRunStatus returns the progress projection of a run.
func (s *Server) handleRunStatus(w http.ResponseWriter, r *http.Request) {
	runID, ok := s.pathID(w, r)
	if !ok {
		return
	}

	status, err := s.projector.GetRunStatus(r.Context(), runID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.jsonResponse(w, http.StatusOK, status)
}

// handleCreateClarification attaches a clarification request to a run.
func (s *Server) handleCreateClarification(w http.ResponseWriter, r *http.Request) {
	runID, ok := s.pathID(w, r)
	if !ok {
		return
	}

	var req types.CreateClarificationRequest
	if !s.decodeJSON(w, r, &req, false) {
		return
	}

	created, err := s.orch.RequestClarification(r.Context(), runID, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.jsonResponse(w, http.StatusCreated, CreateClarificationResponse{
		RequestID: created.ID,
		ExpiresAt: created.ExpiresAt,
		Request:   created,
	})
}

// handleListClarifications lists pending clarifications, most urgent first.
func (s *Server) handleListClarifications(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter store.ClarificationFilter

	for _, param := range []struct {
		name string
		dst  **uuid.UUID
	}{{"run_id", &filter.RunID}, {"claim_id", &filter.ClaimID}} {
		raw := q.Get(param.name)
		if raw == "" {
			continue
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			s.badRequest(w, param.name, "must be a UUID")
			return
		}
		*param.dst = &id
	}
	if priority := q.Get("priority"); priority != "" {
		if !types.ValidPriority(priority) {
			s.badRequest(w, "priority", "must be one of: low medium high critical")
			return
		}
		filter.Priority = priority
	}

	pending, err := s.coord.ListPending(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if pending == nil {
		pending = []types.ClarificationRequest{}
	}

	s.jsonResponse(w, http.StatusOK, ListClarificationsResponse{Clarifications: pending, Count: len(pending)})
}

// handleGetClarification returns one clarification request.
func (s *Server) handleGetClarification(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	req, err := s.coord.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.jsonResponse(w, http.StatusOK, req)
}

// handleRespondClarification resolves a clarification and resumes its run.
func (s *Server) handleRespondClarification(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	var req types.RespondClarificationRequest
	if !s.decodeJSON(w, r, &req, false) {
		return
	}
	req.ResponderID = actorID(r, req.ResponderID)
	if err := req.Validate(); err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := s.coord.Respond(r.Context(), id, req.ResponseData, req.ResponderID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.jsonResponse(w, http.StatusOK, result)
}

// handleCancelClarification withdraws a pending clarification.
func (s *Server) handleCancelClarification(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	var req types.CancelClarificationRequest
	if !s.decodeJSON(w, r, &req, true) {
		return
	}
	if err := req.Validate(); err != nil {
		s.writeError(w, r, err)
		return
	}

	cancelled, err := s.coord.Cancel(r.Context(), id, req.Reason, actorID(r, ""))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.jsonResponse(w, http.StatusOK, cancelled)
}
