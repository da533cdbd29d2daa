package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jonathan/claim-detective/internal/server/middleware"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 1 << 20

// decodeJSON reads the request body into v. An empty body is allowed only
// when optional is set.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any, optional bool) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return true
		}
		s.badRequest(w, "body", "invalid request body: "+err.Error())
		return false
	}
	return true
}

// pathID parses the {id} path value.
func (s *Server) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.badRequest(w, "id", "must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

// actorID returns the token-authenticated actor when there is one, and the
// self-declared id from the request otherwise.
func actorID(r *http.Request, declared string) string {
	if id, ok := middleware.ActorID(r); ok {
		return id
	}
	return strings.TrimSpace(declared)
}
