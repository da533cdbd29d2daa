package server

import (
	"net/http"
	"time"

	"github.com/jonathan/claim-detective/internal/types"
)

// AuditExportResponse carries every audit event in a time range.
type AuditExportResponse struct {
	Start  time.Time          `json:"start"`
	End    time.Time          `json:"end"`
	Count  int                `json:"count"`
	Events []types.AuditEvent `json:"events"`
}

// handleAuditExport returns events with start <= timestamp < end across all claims.
func (s *Server) handleAuditExport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	start, err := time.Parse(time.RFC3339, q.Get("start"))
	if err != nil {
		s.badRequest(w, "start", "must be an RFC3339 timestamp")
		return
	}
	end, err := time.Parse(time.RFC3339, q.Get("end"))
	if err != nil {
		s.badRequest(w, "end", "must be an RFC3339 timestamp")
		return
	}
	if !end.After(start) {
		s.badRequest(w, "end", "must be after start")
		return
	}

	events, err := s.audit.ExportRange(r.Context(), start, end)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if events == nil {
		events = []types.AuditEvent{}
	}

	s.jsonResponse(w, http.StatusOK, AuditExportResponse{
		Start:  start,
		End:    end,
		Count:  len(events),
		Events: events,
	})
}
