package server

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/jonathan/claim-detective/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPStatus(t *testing.T) {
	id := uuid.New()
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", &types.ValidationError{Field: "claim_text", Message: "too short"}, http.StatusBadRequest, types.CodeValidation},
		{"not found", &types.NotFoundError{Kind: "claim", ID: id.String()}, http.StatusNotFound, types.CodeNotFound},
		{"duplicate claim", &types.DuplicateClaimError{ExistingID: id}, http.StatusConflict, types.CodeDuplicateClaim},
		{"duplicate verification", &types.DuplicateVerificationError{ClaimID: id, VerifierID: "v1", ExistingID: id}, http.StatusConflict, types.CodeDuplicateVerification},
		{"active run", &types.ActiveRunError{ClaimID: id, ExistingID: id}, http.StatusConflict, types.CodeRunActive},
		{"already resolved", &types.AlreadyResolvedError{RequestID: id, Status: types.ClarificationExpired}, http.StatusConflict, types.CodeAlreadyResolved},
		{"invalid transition", &types.InvalidTransitionError{From: "completed", To: "running"}, http.StatusConflict, types.CodeInvalidTransition},
		{"infrastructure", &types.InfrastructureError{Op: "get claim", Cause: errors.New("conn refused")}, http.StatusServiceUnavailable, types.CodeInfrastructure},
		{"wrapped", fmt.Errorf("failed to submit: %w", &types.NotFoundError{Kind: "run"}), http.StatusNotFound, types.CodeNotFound},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, types.CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, HTTPStatus(tt.err))
			assert.Equal(t, tt.code, ErrorCode(tt.err))
		})
	}
}

func TestErrorBody(t *testing.T) {
	id := uuid.New()

	body := errorBody(&types.DuplicateClaimError{ExistingID: id})
	require.NotNil(t, body.ExistingID)
	assert.Equal(t, id, *body.ExistingID)

	body = errorBody(&types.ActiveRunError{ExistingID: id})
	require.NotNil(t, body.ExistingID)
	assert.Equal(t, id, *body.ExistingID)

	body = errorBody(&types.InfrastructureError{Op: "ping", Cause: errors.New("password=secret")})
	assert.Equal(t, types.CodeInfrastructure, body.Error)
	assert.NotContains(t, body.Message, "secret")
	assert.Nil(t, body.ExistingID)

	body = errorBody(errors.New("nil pointer somewhere"))
	assert.Equal(t, "internal server error", body.Message)
}
