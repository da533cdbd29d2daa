// Package server provides the HTTP REST API for claim verification.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/jonathan/claim-detective/internal/audit"
	"github.com/jonathan/claim-detective/internal/clarification"
	"github.com/jonathan/claim-detective/internal/consensus"
	"github.com/jonathan/claim-detective/internal/pipeline"
	"github.com/jonathan/claim-detective/internal/progress"
	"github.com/jonathan/claim-detective/internal/server/middleware"
	"github.com/jonathan/claim-detective/internal/server/ratelimit"
	"github.com/jonathan/claim-detective/internal/store"
)

// Server serves the claim verification API.
type Server struct {
	httpServer *http.Server
	repo       store.Repository
	orch       *pipeline.Orchestrator
	coord      *clarification.Coordinator
	consensus  *consensus.Aggregator
	projector  *progress.Projector
	audit      *audit.Log
	events     *pipeline.Broadcaster
	tokens     *TokenService
	limiter    *ratelimit.Limiter

	// done is closed when shutdown begins so open event streams end.
	done chan struct{}
}

// Config holds the listener settings.
type Config struct {
	Port      int
	RateLimit *ratelimit.Config
}

// Deps are the components the API exposes.
type Deps struct {
	Repo         store.Repository
	Orchestrator *pipeline.Orchestrator
	Coordinator  *clarification.Coordinator
	Aggregator   *consensus.Aggregator
	Projector    *progress.Projector
	Audit        *audit.Log
	Events       *pipeline.Broadcaster
	// Tokens is optional. Without it every caller is anonymous.
	Tokens *TokenService
}

// New builds a server listening on cfg.Port. A nil cfg.RateLimit uses the
// limiter defaults.
func New(cfg Config, deps Deps) *Server {
	s := &Server{
		repo:      deps.Repo,
		orch:      deps.Orchestrator,
		coord:     deps.Coordinator,
		consensus: deps.Aggregator,
		projector: deps.Projector,
		audit:     deps.Audit,
		events:    deps.Events,
		tokens:    deps.Tokens,
		limiter:   ratelimit.NewLimiter(cfg.RateLimit),
		done:      make(chan struct{}),
	}

	s.httpServer = &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     s.Handler(),
		ReadTimeout: 30 * time.Second,
		// Event streams clear their own write deadline.
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	s.httpServer.RegisterOnShutdown(func() { close(s.done) })

	return s
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Claims
	mux.HandleFunc("POST /claims", s.handleCreateClaim)
	mux.HandleFunc("GET /claims/{id}", s.handleGetClaim)
	mux.HandleFunc("POST /claims/{id}/runs", s.handleStartRun)
	mux.HandleFunc("GET /claims/{id}/status", s.handleClaimStatus)
	mux.HandleFunc("GET /claims/{id}/audit", s.handleAuditTrail)
	mux.HandleFunc("GET /claims/{id}/events", s.handleClaimEvents)
	mux.HandleFunc("POST /claims/{id}/verifications", s.handleSubmitVerification)

	// Runs
	mux.HandleFunc("GET /runs/{id}", s.handleRunStatus)
	mux.HandleFunc("POST /runs/{id}/clarifications", s.handleCreateClarification)

	// Clarifications
	mux.HandleFunc("GET /clarifications", s.handleListClarifications)
	mux.HandleFunc("GET /clarifications/{id}", s.handleGetClarification)
	mux.HandleFunc("POST /clarifications/{id}/respond", s.handleRespondClarification)
	mux.HandleFunc("POST /clarifications/{id}/cancel", s.handleCancelClarification)

	// Audit
	mux.HandleFunc("GET /audit/export", s.handleAuditExport)

	mux.HandleFunc("GET /health", s.handleHealth)

	// Outermost first: limit, log, CORS, then actor identification.
	var handler http.Handler = mux
	if s.tokens != nil {
		handler = middleware.ActorMiddleware(s.tokens.AsTokenValidator())(handler)
	}
	return s.limiter.Middleware(middleware.Logging(middleware.CORS(handler)))
}

// Run serves until ctx is cancelled, then drains open requests for up to
// 30 seconds.
func (s *Server) Run(ctx context.Context) error {
	defer s.limiter.Stop()

	served := make(chan error, 1)
	go func() {
		log.Printf("[server] listening on %s", s.httpServer.Addr)
		served <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-served:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	log.Printf("[server] shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	log.Printf("[server] stopped")
	return nil
}

// handleHealth reports server health and whether the store answers.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.repo.Ping(ctx); err != nil {
		log.Printf("[health] store ping failed: %v", err)
		s.jsonResponse(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "store": "unavailable"})
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok", "store": "ok"})
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("[server] encoding %T response: %v", data, err)
	}
}
