package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testTokenValidator is a test implementation of TokenValidator for unit tests.
type testTokenValidator struct {
	validTokens map[string]string
}

func (v *testTokenValidator) ValidateToken(tokenString string) (ActorGetter, error) {
	actorID, ok := v.validTokens[tokenString]
	if !ok {
		return nil, fmt.Errorf("invalid token")
	}
	return testClaims(actorID), nil
}

type testClaims string

func (c testClaims) GetActorID() string { return string(c) }

func serve(t *testing.T, header string) (*httptest.ResponseRecorder, string, bool) {
	t.Helper()
	validator := &testTokenValidator{validTokens: map[string]string{"good-token": "verifier-1"}}

	var (
		called  bool
		actorID string
	)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		actorID, _ = ActorID(r)
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/claims", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	ActorMiddleware(validator)(handler).ServeHTTP(w, req)
	return w, actorID, called
}

func TestActorMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantActor  string
		wantCalled bool
	}{
		{name: "anonymous", header: "", wantStatus: http.StatusOK, wantCalled: true},
		{name: "valid token", header: "Bearer good-token", wantStatus: http.StatusOK, wantActor: "verifier-1", wantCalled: true},
		{name: "lowercase scheme", header: "bearer good-token", wantStatus: http.StatusOK, wantActor: "verifier-1", wantCalled: true},
		{name: "unknown token", header: "Bearer forged", wantStatus: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic good-token", wantStatus: http.StatusUnauthorized},
		{name: "missing token", header: "Bearer", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, actorID, called := serve(t, tt.header)
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantCalled, called)
			assert.Equal(t, tt.wantActor, actorID)
			if tt.wantStatus == http.StatusUnauthorized {
				assert.Contains(t, w.Body.String(), "unauthorized")
			}
		})
	}
}

func TestActorID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, ok := ActorID(req)
	assert.False(t, ok)

	req = req.WithContext(WithActorID(context.Background(), "alice"))
	actorID, ok := ActorID(req)
	require.True(t, ok)
	assert.Equal(t, "alice", actorID)

	req = req.WithContext(context.WithValue(context.Background(), actorIDKey, 42))
	_, ok = ActorID(req)
	assert.False(t, ok)
}
