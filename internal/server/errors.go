package server

import (
	"errors"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/jonathan/claim-detective/internal/types"
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error      string     `json:"error"`
	Message    string     `json:"message"`
	ExistingID *uuid.UUID `json:"existing_id,omitempty"`
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	switch types.ErrorCode(err) {
	case types.CodeValidation:
		return http.StatusBadRequest
	case types.CodeNotFound:
		return http.StatusNotFound
	case types.CodeDuplicateClaim, types.CodeDuplicateVerification, types.CodeRunActive,
		types.CodeAlreadyResolved, types.CodeInvalidTransition:
		return http.StatusConflict
	case types.CodeInfrastructure:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ErrorCode returns the machine-readable code reported for err.
func ErrorCode(err error) string {
	return types.ErrorCode(err)
}

// errorBody builds the reply for err. Infrastructure and unknown errors get a
// generic message; their cause is only logged.
func errorBody(err error) ErrorResponse {
	resp := ErrorResponse{Error: ErrorCode(err), Message: err.Error()}

	switch resp.Error {
	case types.CodeInfrastructure:
		resp.Message = "a backing service is unavailable, try again later"
	case types.CodeInternal:
		resp.Message = "internal server error"
	}

	var dupClaim *types.DuplicateClaimError
	var dupVerification *types.DuplicateVerificationError
	var active *types.ActiveRunError
	switch {
	case errors.As(err, &dupClaim):
		resp.ExistingID = &dupClaim.ExistingID
	case errors.As(err, &dupVerification):
		resp.ExistingID = &dupVerification.ExistingID
	case errors.As(err, &active):
		resp.ExistingID = &active.ExistingID
	}
	return resp
}

// writeError maps err to a status and error body.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		log.Printf("[%s] %s failed: %v", r.Method, r.URL.Path, err)
	}
	s.jsonResponse(w, status, errorBody(err))
}

// badRequest reports a malformed request that never reached the core.
func (s *Server) badRequest(w http.ResponseWriter, field, message string) {
	s.jsonResponse(w, http.StatusBadRequest, ErrorResponse{
		Error:   types.CodeValidation,
		Message: (&types.ValidationError{Field: field, Message: message}).Error(),
	})
}
